package memory

import (
	"context"
	"sync"

	"quizrally/internal/domain"
)

// SessionStore is an in-memory implementation of game.SessionStore, used in
// dev mode and tests where durability does not matter.
type SessionStore struct {
	mu        sync.RWMutex
	snapshots map[string]domain.SessionSnapshot
	answers   map[string][]domain.AnswerRecord
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		snapshots: make(map[string]domain.SessionSnapshot),
		answers:   make(map[string][]domain.AnswerRecord),
	}
}

func (s *SessionStore) SaveSession(_ context.Context, snap domain.SessionSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snap.Pin] = snap
	return nil
}

func (s *SessionStore) LoadSession(_ context.Context, pin string) (domain.SessionSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[pin]
	if !ok {
		return domain.SessionSnapshot{}, domain.ErrSessionNotFound
	}
	return snap, nil
}

func (s *SessionStore) SaveAnswer(_ context.Context, rec domain.AnswerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answers[rec.SessionID] = append(s.answers[rec.SessionID], rec)
	return nil
}

// Answers returns the recorded answers for a session, in acceptance order.
func (s *SessionStore) Answers(sessionID string) []domain.AnswerRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.AnswerRecord, len(s.answers[sessionID]))
	copy(out, s.answers[sessionID])
	return out
}
