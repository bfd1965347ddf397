package domain

import "time"

// EventKind labels events pushed to a session's room.
type EventKind string

const (
	EventParticipantJoined  EventKind = "participant_joined"
	EventQuestionOpened     EventKind = "question_opened"
	EventAnswerResult       EventKind = "answer_result"
	EventQuestionClosed     EventKind = "question_closed"
	EventLeaderboardUpdated EventKind = "leaderboard_updated"
	EventSessionFinished    EventKind = "session_finished"
)

// Event is one room broadcast.
type Event struct {
	Kind    EventKind `json:"type"`
	Payload any       `json:"payload"`
}

// ParticipantJoined announces a new (or reconnecting) participant and the roster.
type ParticipantJoined struct {
	ParticipantID string   `json:"participantId"`
	DisplayName   string   `json:"displayName"`
	Roster        []string `json:"roster"`
}

// QuestionOpened starts an answer window. Deadline lets clients render a countdown
// without trusting their own clock for acceptance.
type QuestionOpened struct {
	Question QuestionView `json:"question"`
	Deadline time.Time    `json:"deadline"`
}

// AnswerResult goes only to the submitter.
type AnswerResult struct {
	QuestionIndex int  `json:"questionIndex"`
	Correct       bool `json:"correct"`
	Awarded       int  `json:"awarded"`
	TotalScore    int  `json:"totalScore"`
}

// QuestionClosed reveals the correct answer and how the room voted.
type QuestionClosed struct {
	QuestionIndex int            `json:"questionIndex"`
	CorrectAnswer string         `json:"correctAnswer"`
	Tally         map[string]int `json:"tally"`
}

// SessionFinished carries the final standings.
type SessionFinished struct {
	Pin   string      `json:"pin"`
	Final Leaderboard `json:"final"`
}
