package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

func Connect(connString string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connString)
	if err != nil {
		return nil, err
	}

	err = db.Ping()
	if err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS todos (
	id           TEXT PRIMARY KEY,
	title        TEXT NOT NULL,
	completed    BOOLEAN NOT NULL DEFAULT FALSE,
	priority     TEXT,
	owner        TEXT NOT NULL DEFAULT '',
	created_time TIMESTAMPTZ NOT NULL DEFAULT now(),
	parent_id    TEXT,
	sort_order   INTEGER,
	due_date     TIMESTAMPTZ,
	description  TEXT,
	flagged      BOOLEAN
);

CREATE INDEX IF NOT EXISTS todos_parent_id_idx ON todos (parent_id);

CREATE TABLE IF NOT EXISTS analytics_events (
	id               BIGSERIAL PRIMARY KEY,
	event_name       TEXT NOT NULL,
	event_time       TIMESTAMPTZ NOT NULL,
	user_id          TEXT,
	session_id       TEXT,
	platform         TEXT,
	app_version      TEXT,
	device_locale    TEXT,
	properties       JSONB NOT NULL DEFAULT '{}'::jsonb,
	source_event_key TEXT UNIQUE
);
`

// EnsureSchema creates the tables the service writes to when they are missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
