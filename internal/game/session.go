package game

import (
	"context"
	"log"
	"math/rand"
	"sort"
	"sync"
	"time"

	"quizrally/internal/domain"
)

// SessionDeps bundles the collaborators every session needs. Now and
// FallbackLimit are overridable for deterministic tests.
type SessionDeps struct {
	Rooms         Broadcaster
	Store         SessionStore
	Scoring       ScoringPolicy
	Now           func() time.Time
	FallbackLimit time.Duration
}

func (d SessionDeps) normalized() SessionDeps {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.FallbackLimit <= 0 {
		d.FallbackLimit = 15 * time.Second
	}
	if d.Scoring.MaxPoints == 0 {
		d.Scoring = DefaultScoring()
	}
	return d
}

type participant struct {
	id       string
	name     string
	score    int
	joinedAt time.Time
	// lastScored is when the cumulative score last changed; it breaks
	// leaderboard ties in favor of whoever got there first.
	lastScored time.Time
}

type answerKey struct {
	participantID string
	question      int
}

// Session owns one quiz run: status, answer ledger, leaderboard. Every
// mutation serializes on mu, including the answer-window expiry timer, so
// "time's up" and a last-moment submission cannot interleave. Sessions never
// share locks; unrelated games do not block each other.
type Session struct {
	id     string
	pin    string
	quiz   domain.Quiz
	hostID string
	deps   SessionDeps

	mu           sync.Mutex
	rnd          *rand.Rand
	status       domain.SessionStatus
	current      int // -1 while waiting
	openedAt     time.Time
	deadline     time.Time
	windowOpen   bool
	timer        *time.Timer
	participants map[string]*participant
	answers      map[answerKey]domain.AnswerRecord
	createdAt    time.Time
	finishedAt   time.Time
}

func newSession(id, pin string, quiz domain.Quiz, hostID string, deps SessionDeps) *Session {
	deps = deps.normalized()
	return &Session{
		id:           id,
		pin:          pin,
		quiz:         quiz,
		hostID:       hostID,
		deps:         deps,
		rnd:          rand.New(rand.NewSource(time.Now().UnixNano())),
		status:       domain.StatusWaiting,
		current:      -1,
		participants: make(map[string]*participant),
		answers:      make(map[answerKey]domain.AnswerRecord),
		createdAt:    deps.Now(),
	}
}

func (s *Session) ID() string     { return s.id }
func (s *Session) Pin() string    { return s.pin }
func (s *Session) HostID() string { return s.hostID }
func (s *Session) QuizID() string { return s.quiz.ID }

func (s *Session) Status() domain.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Join adds a participant. It is idempotent and allowed while waiting or
// active; a late joiner simply has no answers for earlier questions.
func (s *Session) Join(participantID, displayName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == domain.StatusFinished {
		return domain.ErrInvalidState
	}
	now := s.deps.Now()
	if p, ok := s.participants[participantID]; ok {
		p.name = displayName
	} else {
		s.participants[participantID] = &participant{
			id:         participantID,
			name:       displayName,
			joinedAt:   now,
			lastScored: now,
		}
	}
	s.deps.Rooms.Publish(s.pin, domain.Event{
		Kind: domain.EventParticipantJoined,
		Payload: domain.ParticipantJoined{
			ParticipantID: participantID,
			DisplayName:   displayName,
			Roster:        s.rosterLocked(),
		},
	})
	s.persistLocked()
	return nil
}

// Start moves waiting -> active and opens the window for question 0.
func (s *Session) Start(hostID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if hostID != s.hostID {
		return domain.ErrNotAuthorized
	}
	if s.status != domain.StatusWaiting {
		return domain.ErrInvalidState
	}
	s.status = domain.StatusActive
	if len(s.quiz.Questions) == 0 {
		s.finishLocked()
		return nil
	}
	s.openQuestionLocked(0)
	return nil
}

// SubmitAnswer records exactly one answer per participant per question.
// Acceptance is timestamp-based: at-or-before the deadline wins, even when
// the expiry timer beat the submission to the lock.
func (s *Session) SubmitAnswer(participantID string, questionIndex int, answer string, submittedAt time.Time) (domain.AnswerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != domain.StatusActive {
		return domain.AnswerRecord{}, domain.ErrInvalidState
	}
	p, ok := s.participants[participantID]
	if !ok {
		return domain.AnswerRecord{}, domain.ErrUnknownParticipant
	}
	if questionIndex != s.current || submittedAt.After(s.deadline) {
		return domain.AnswerRecord{}, domain.ErrWindowClosed
	}
	key := answerKey{participantID: participantID, question: questionIndex}
	if _, dup := s.answers[key]; dup {
		return domain.AnswerRecord{}, domain.ErrDuplicateAnswer
	}

	q := s.quiz.Questions[questionIndex]
	correct := answer == q.CorrectAnswer
	score := s.deps.Scoring.Score(correct, submittedAt.Sub(s.openedAt), s.deadline.Sub(s.openedAt))
	rec := domain.AnswerRecord{
		SessionID:     s.id,
		ParticipantID: participantID,
		QuestionIndex: questionIndex,
		Answer:        answer,
		Correct:       correct,
		Score:         score,
		SubmittedAt:   submittedAt,
	}
	s.answers[key] = rec
	if score > 0 {
		p.score += score
		p.lastScored = s.deps.Now()
	}

	s.deps.Rooms.PublishTo(s.pin, participantID, domain.Event{
		Kind: domain.EventAnswerResult,
		Payload: domain.AnswerResult{
			QuestionIndex: questionIndex,
			Correct:       correct,
			Awarded:       score,
			TotalScore:    p.score,
		},
	})
	s.deps.Rooms.Publish(s.pin, domain.Event{
		Kind:    domain.EventLeaderboardUpdated,
		Payload: s.leaderboardLocked(),
	})
	s.persistAnswer(rec)
	s.persistLocked()
	return rec, nil
}

// Advance closes the current window if still open, then either opens the next
// question or finishes the session when none remain.
func (s *Session) Advance(hostID string) (domain.QuestionView, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if hostID != s.hostID {
		return domain.QuestionView{}, false, domain.ErrNotAuthorized
	}
	if s.status != domain.StatusActive {
		return domain.QuestionView{}, false, domain.ErrInvalidState
	}
	s.stopTimerLocked()
	if s.windowOpen {
		s.closeWindowLocked()
	}
	next := s.current + 1
	if next >= len(s.quiz.Questions) {
		s.finishLocked()
		return domain.QuestionView{}, true, nil
	}
	s.openQuestionLocked(next)
	return s.questionViewLocked(next), false, nil
}

// End forces the session to finished, cancelling any pending expiry timer.
func (s *Session) End(hostID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if hostID != s.hostID {
		return domain.ErrNotAuthorized
	}
	if s.status == domain.StatusFinished {
		return domain.ErrInvalidState
	}
	s.finishLocked()
	return nil
}

// Leaderboard returns the current standings.
func (s *Session) Leaderboard() domain.Leaderboard {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.leaderboardLocked()
}

// OpenQuestion reports the question whose window is currently open, for
// late joiners and reconnects.
func (s *Session) OpenQuestion() (domain.QuestionOpened, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != domain.StatusActive || !s.windowOpen {
		return domain.QuestionOpened{}, false
	}
	return domain.QuestionOpened{
		Question: s.questionViewLocked(s.current),
		Deadline: s.deadline,
	}, true
}

// Snapshot is the persisted view of the session.
func (s *Session) Snapshot() domain.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) openQuestionLocked(index int) {
	q := s.quiz.Questions[index]
	limit := time.Duration(q.TimeLimitSec) * time.Second
	if limit <= 0 {
		limit = s.deps.FallbackLimit
	}
	s.current = index
	s.openedAt = s.deps.Now()
	s.deadline = s.openedAt.Add(limit)
	s.windowOpen = true
	s.timer = time.AfterFunc(limit, func() { s.expireWindow(index) })

	s.deps.Rooms.Publish(s.pin, domain.Event{
		Kind: domain.EventQuestionOpened,
		Payload: domain.QuestionOpened{
			Question: s.questionViewLocked(index),
			Deadline: s.deadline,
		},
	})
	s.persistLocked()
}

// expireWindow is the timer event for an elapsed answer window. It takes the
// session lock like any other mutation; firing against an advanced or
// finished session is a no-op.
func (s *Session) expireWindow(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != domain.StatusActive || s.current != index || !s.windowOpen {
		return
	}
	s.closeWindowLocked()
	s.persistLocked()
}

func (s *Session) closeWindowLocked() {
	s.windowOpen = false
	q := s.quiz.Questions[s.current]

	tally := make(map[string]int)
	for key, rec := range s.answers {
		if key.question == s.current {
			tally[rec.Answer]++
		}
	}
	s.deps.Rooms.Publish(s.pin, domain.Event{
		Kind: domain.EventQuestionClosed,
		Payload: domain.QuestionClosed{
			QuestionIndex: s.current,
			CorrectAnswer: q.CorrectAnswer,
			Tally:         tally,
		},
	})
	s.deps.Rooms.Publish(s.pin, domain.Event{
		Kind:    domain.EventLeaderboardUpdated,
		Payload: s.leaderboardLocked(),
	})
}

func (s *Session) finishLocked() {
	s.stopTimerLocked()
	s.windowOpen = false
	s.status = domain.StatusFinished
	s.finishedAt = s.deps.Now()
	s.deps.Rooms.Publish(s.pin, domain.Event{
		Kind: domain.EventSessionFinished,
		Payload: domain.SessionFinished{
			Pin:   s.pin,
			Final: s.leaderboardLocked(),
		},
	})
	s.persistLocked()
}

func (s *Session) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// questionViewLocked builds the client-facing view. Options are shuffled into
// a fresh slice so the stored order gives nothing away; answers match by
// string, never by position.
func (s *Session) questionViewLocked(index int) domain.QuestionView {
	q := s.quiz.Questions[index]
	limit := q.TimeLimitSec
	if limit <= 0 {
		limit = int(s.deps.FallbackLimit / time.Second)
	}
	options := make([]string, len(q.Options))
	copy(options, q.Options)
	s.rnd.Shuffle(len(options), func(i, j int) {
		options[i], options[j] = options[j], options[i]
	})
	return domain.QuestionView{
		Index:        index,
		Text:         q.Text,
		Options:      options,
		TimeLimitSec: limit,
	}
}

func (s *Session) rosterLocked() []string {
	names := make([]string, 0, len(s.participants))
	for _, p := range s.participants {
		names = append(names, p.name)
	}
	sort.Strings(names)
	return names
}

func (s *Session) leaderboardLocked() domain.Leaderboard {
	entries := make([]domain.LeaderboardEntry, 0, len(s.participants))
	for _, p := range s.participants {
		entries = append(entries, domain.LeaderboardEntry{
			ParticipantID: p.id,
			DisplayName:   p.name,
			Score:         p.score,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		// Tie-break by who reached the score earlier, then name.
		pi := s.participants[entries[i].ParticipantID]
		pj := s.participants[entries[j].ParticipantID]
		if !pi.lastScored.Equal(pj.lastScored) {
			return pi.lastScored.Before(pj.lastScored)
		}
		return entries[i].DisplayName < entries[j].DisplayName
	})
	return domain.Leaderboard{
		Pin:       s.pin,
		Entries:   entries,
		UpdatedAt: s.deps.Now(),
	}
}

func (s *Session) snapshotLocked() domain.SessionSnapshot {
	return domain.SessionSnapshot{
		ID:              s.id,
		Pin:             s.pin,
		QuizID:          s.quiz.ID,
		HostID:          s.hostID,
		Status:          s.status,
		CurrentQuestion: s.current,
		Leaderboard:     s.leaderboardLocked().Entries,
		CreatedAt:       s.createdAt,
		FinishedAt:      s.finishedAt,
	}
}

func (s *Session) persist() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persistLocked()
}

// persistLocked writes the snapshot behind the in-memory transition. The
// transition is visible to readers before durability is confirmed; a failed
// write is logged and tolerated.
func (s *Session) persistLocked() {
	snap := s.snapshotLocked()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.deps.Store.SaveSession(ctx, snap); err != nil {
			log.Printf("save session %s: %v", snap.Pin, err)
		}
	}()
}

func (s *Session) persistAnswer(rec domain.AnswerRecord) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.deps.Store.SaveAnswer(ctx, rec); err != nil {
			log.Printf("save answer %s/q%d: %v", rec.SessionID, rec.QuestionIndex, err)
		}
	}()
}
