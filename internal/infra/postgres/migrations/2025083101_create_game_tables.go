package migrations

import (
	"context"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

var Migrations = migrate.NewMigrations()

const createGameTablesSQL = `
CREATE TABLE IF NOT EXISTS quizzes (
	id   TEXT PRIMARY KEY,
	data JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS game_sessions (
	id               TEXT PRIMARY KEY,
	pin              TEXT NOT NULL,
	quiz_id          TEXT NOT NULL,
	host_id          TEXT NOT NULL,
	status           TEXT NOT NULL,
	current_question INT NOT NULL DEFAULT -1,
	leaderboard      JSONB,
	created_at       TIMESTAMPTZ NOT NULL,
	finished_at      TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS game_sessions_pin_idx ON game_sessions (pin, created_at DESC);

CREATE TABLE IF NOT EXISTS game_answers (
	session_id     TEXT NOT NULL,
	participant_id TEXT NOT NULL,
	question_index INT NOT NULL,
	answer         TEXT NOT NULL,
	correct        BOOLEAN NOT NULL,
	score          INT NOT NULL,
	submitted_at   TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (session_id, participant_id, question_index)
);
`

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, createGameTablesSQL)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, `
				DROP TABLE IF EXISTS game_answers;
				DROP TABLE IF EXISTS game_sessions;
				DROP TABLE IF EXISTS quizzes`)
			return err
		},
	)
}
