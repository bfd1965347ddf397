package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"quizrally/internal/domain"
)

// SessionStore keeps session snapshots and answer history in Redis. Snapshots
// live under a TTL'd key per PIN; answers append to a list per session so the
// audit trail survives the session's retirement window.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

func (s *SessionStore) SaveSession(ctx context.Context, snap domain.SessionSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.client.Set(ctx, s.sessionKey(snap.Pin), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *SessionStore) LoadSession(ctx context.Context, pin string) (domain.SessionSnapshot, error) {
	data, err := s.client.Get(ctx, s.sessionKey(pin)).Bytes()
	if err == redis.Nil {
		return domain.SessionSnapshot{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.SessionSnapshot{}, fmt.Errorf("load session: %w", err)
	}
	var snap domain.SessionSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.SessionSnapshot{}, fmt.Errorf("unmarshal session: %w", err)
	}
	return snap, nil
}

func (s *SessionStore) SaveAnswer(ctx context.Context, rec domain.AnswerRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal answer: %w", err)
	}
	key := s.answersKey(rec.SessionID)
	pipe := s.client.Pipeline()
	pipe.RPush(ctx, key, data)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save answer: %w", err)
	}
	return nil
}

// Answers returns the persisted answer trail for a session.
func (s *SessionStore) Answers(ctx context.Context, sessionID string) ([]domain.AnswerRecord, error) {
	raw, err := s.client.LRange(ctx, s.answersKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	records := make([]domain.AnswerRecord, 0, len(raw))
	for _, item := range raw {
		var rec domain.AnswerRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, fmt.Errorf("unmarshal answer: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *SessionStore) sessionKey(pin string) string {
	return "game:session:" + pin
}

func (s *SessionStore) answersKey(sessionID string) string {
	return "game:answers:" + sessionID
}
