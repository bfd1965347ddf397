package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quizrally/internal/domain"
)

// SessionStore persists session snapshots and answer records in Postgres.
type SessionStore struct {
	pool *pgxpool.Pool
}

func NewSessionStore(pool *pgxpool.Pool) *SessionStore {
	return &SessionStore{pool: pool}
}

func (s *SessionStore) SaveSession(ctx context.Context, snap domain.SessionSnapshot) error {
	leaderboard, err := json.Marshal(snap.Leaderboard)
	if err != nil {
		return fmt.Errorf("marshal leaderboard: %w", err)
	}
	var finishedAt interface{}
	if !snap.FinishedAt.IsZero() {
		finishedAt = snap.FinishedAt
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO game_sessions (id, pin, quiz_id, host_id, status, current_question, leaderboard, created_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			current_question = EXCLUDED.current_question,
			leaderboard = EXCLUDED.leaderboard,
			finished_at = EXCLUDED.finished_at`,
		snap.ID, snap.Pin, snap.QuizID, snap.HostID, string(snap.Status),
		snap.CurrentQuestion, leaderboard, snap.CreatedAt, finishedAt)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// LoadSession returns the most recent snapshot for a PIN; PINs are reused
// across retired sessions, so newest wins.
func (s *SessionStore) LoadSession(ctx context.Context, pin string) (domain.SessionSnapshot, error) {
	var (
		snap        domain.SessionSnapshot
		status      string
		leaderboard []byte
		finishedAt  *time.Time
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, pin, quiz_id, host_id, status, current_question, leaderboard, created_at, finished_at
		FROM game_sessions WHERE pin=$1 ORDER BY created_at DESC LIMIT 1`, pin).
		Scan(&snap.ID, &snap.Pin, &snap.QuizID, &snap.HostID, &status,
			&snap.CurrentQuestion, &leaderboard, &snap.CreatedAt, &finishedAt)
	if err == pgx.ErrNoRows {
		return domain.SessionSnapshot{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.SessionSnapshot{}, fmt.Errorf("load session: %w", err)
	}
	snap.Status = domain.SessionStatus(status)
	if finishedAt != nil {
		snap.FinishedAt = *finishedAt
	}
	if len(leaderboard) > 0 {
		if err := json.Unmarshal(leaderboard, &snap.Leaderboard); err != nil {
			return domain.SessionSnapshot{}, fmt.Errorf("unmarshal leaderboard: %w", err)
		}
	}
	return snap, nil
}

// SaveAnswer inserts one accepted answer. The primary key repeats the
// engine's exactly-once guarantee at the storage layer.
func (s *SessionStore) SaveAnswer(ctx context.Context, rec domain.AnswerRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO game_answers (session_id, participant_id, question_index, answer, correct, score, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (session_id, participant_id, question_index) DO NOTHING`,
		rec.SessionID, rec.ParticipantID, rec.QuestionIndex, rec.Answer, rec.Correct, rec.Score, rec.SubmittedAt)
	if err != nil {
		return fmt.Errorf("save answer: %w", err)
	}
	return nil
}
