package game

import (
	"context"

	"quizrally/internal/domain"
)

// Broadcaster fans session events out to a PIN's room. Delivery is
// best-effort; the engine never waits on a slow subscriber.
type Broadcaster interface {
	Publish(pin string, event domain.Event)
	PublishTo(pin, participantID string, event domain.Event)
}

// SessionStore persists session snapshots and accepted answers. Writes trail
// the authoritative in-memory state; failures are logged, never rolled back.
type SessionStore interface {
	SaveSession(ctx context.Context, snap domain.SessionSnapshot) error
	LoadSession(ctx context.Context, pin string) (domain.SessionSnapshot, error)
	SaveAnswer(ctx context.Context, rec domain.AnswerRecord) error
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}
