package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("not found")

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id          BIGSERIAL PRIMARY KEY,
	external_id VARCHAR(100) NOT NULL UNIQUE,
	email       VARCHAR(100),
	name        VARCHAR(50),
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS manuals (
	id          BIGSERIAL PRIMARY KEY,
	manual_id   VARCHAR(64) NOT NULL UNIQUE,
	user_id     BIGINT REFERENCES users(id) ON DELETE SET NULL,
	filename    VARCHAR(200) NOT NULL DEFAULT '',
	title       VARCHAR(200),
	manual_type VARCHAR(50),
	status      VARCHAR(20) NOT NULL DEFAULT 'uploaded',
	uploaded_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS chat_logs (
	id         BIGSERIAL PRIMARY KEY,
	user_id    BIGINT REFERENCES users(id) ON DELETE SET NULL,
	manual_id  BIGINT REFERENCES manuals(id) ON DELETE SET NULL,
	session_id VARCHAR(100) NOT NULL,
	sender     VARCHAR(50) NOT NULL,
	message    TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS chat_logs_session_idx ON chat_logs (session_id, id);
`

// Init creates the tables used by the chat log pipeline if they do not exist.
func (s *Store) Init(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}
