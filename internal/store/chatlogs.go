package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ChatLog is a persisted chat_logs row. UserID and ManualID are nil when the
// external identifier could not be resolved at enqueue time.
type ChatLog struct {
	ID        int64     `json:"id"`
	UserID    *int64    `json:"user_id"`
	ManualID  *int64    `json:"manual_id"`
	SessionID string    `json:"session_id"`
	Sender    string    `json:"sender"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// InsertChatLogs writes all logs in a single transaction. Either every row
// is committed or none is. ID and CreatedAt of the inputs are ignored.
func (s *Store) InsertChatLogs(ctx context.Context, logs []ChatLog) error {
	if len(logs) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	batch := &pgx.Batch{}
	for _, l := range logs {
		batch.Queue(`
			INSERT INTO chat_logs (user_id, manual_id, session_id, sender, message, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			l.UserID, l.ManualID, l.SessionID, l.Sender, l.Message, now,
		)
	}

	br := tx.SendBatch(ctx, batch)
	for i := range logs {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("insert chat log %d: %w", i, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ChatLogsBySession returns every persisted log of a session in insertion order.
func (s *Store) ChatLogsBySession(ctx context.Context, sessionID string) ([]ChatLog, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, manual_id, session_id, sender, message, created_at
		FROM chat_logs
		WHERE session_id = $1
		ORDER BY id ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query chat logs: %w", err)
	}
	return collectChatLogs(rows)
}

// RecentChatLogs returns the last limit logs of a session, oldest first.
// It backs the "continue conversation" view.
func (s *Store) RecentChatLogs(ctx context.Context, sessionID string, limit int) ([]ChatLog, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, manual_id, session_id, sender, message, created_at
		FROM (
			SELECT * FROM chat_logs
			WHERE session_id = $1
			ORDER BY id DESC
			LIMIT $2
		) recent
		ORDER BY id ASC`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent chat logs: %w", err)
	}
	return collectChatLogs(rows)
}

func collectChatLogs(rows pgx.Rows) ([]ChatLog, error) {
	logs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ChatLog, error) {
		var l ChatLog
		err := row.Scan(&l.ID, &l.UserID, &l.ManualID, &l.SessionID, &l.Sender, &l.Message, &l.CreatedAt)
		return l, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan chat logs: %w", err)
	}
	return logs, nil
}
