package domain

import "time"

// SessionStatus tracks where a game session is in its lifecycle.
type SessionStatus string

const (
	StatusWaiting  SessionStatus = "waiting"
	StatusActive   SessionStatus = "active"
	StatusFinished SessionStatus = "finished"
)

// Question models one MCQ with its answer window length.
type Question struct {
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
	TimeLimitSec  int      `json:"timeLimitSec"` // defaults to 15 if zero
}

// Quiz is an ordered list of questions; read-only to the game engine.
type Quiz struct {
	ID        string     `json:"id"`
	Questions []Question `json:"questions"`
}

// QuestionView is the client-facing shape of a question. It never carries
// the correct answer.
type QuestionView struct {
	Index        int      `json:"index"`
	Text         string   `json:"text"`
	Options      []string `json:"options"`
	TimeLimitSec int      `json:"timeLimitSec"`
}

// AnswerRecord is immutable once accepted; persisted for audit.
type AnswerRecord struct {
	SessionID     string    `json:"sessionId"`
	ParticipantID string    `json:"participantId"`
	QuestionIndex int       `json:"questionIndex"`
	Answer        string    `json:"answer"`
	Correct       bool      `json:"correct"`
	Score         int       `json:"score"`
	SubmittedAt   time.Time `json:"submittedAt"`
}

// LeaderboardEntry is a snapshot-friendly view of a participant.
type LeaderboardEntry struct {
	ParticipantID string `json:"participantId"`
	DisplayName   string `json:"displayName"`
	Score         int    `json:"score"`
}

// Leaderboard captures the ordered scoreboard for a game session.
type Leaderboard struct {
	Pin       string             `json:"pin"`
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// SessionSnapshot is the persisted view of a session. The in-memory session
// is the authority for live play; snapshots trail it.
type SessionSnapshot struct {
	ID              string             `json:"id"`
	Pin             string             `json:"pin"`
	QuizID          string             `json:"quizId"`
	HostID          string             `json:"hostId"`
	Status          SessionStatus      `json:"status"`
	CurrentQuestion int                `json:"currentQuestion"`
	Leaderboard     []LeaderboardEntry `json:"leaderboard"`
	CreatedAt       time.Time          `json:"createdAt"`
	FinishedAt      time.Time          `json:"finishedAt,omitempty"`
}
