package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// UserIDByExternalID returns the primary key of the user with the given external handle.
func (s *Store) UserIDByExternalID(ctx context.Context, externalID string) (int64, error) {
	return s.lookupID(ctx, `SELECT id FROM users WHERE external_id = $1`, externalID)
}

// ManualIDByExternalID returns the primary key of the manual with the given manual_id handle.
func (s *Store) ManualIDByExternalID(ctx context.Context, externalID string) (int64, error) {
	return s.lookupID(ctx, `SELECT id FROM manuals WHERE manual_id = $1`, externalID)
}

func (s *Store) lookupID(ctx context.Context, query, key string) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, query, key).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("lookup %q: %w", key, err)
	}
	return id, nil
}

// CreateUser inserts a user and returns its primary key.
func (s *Store) CreateUser(ctx context.Context, externalID, email, name string) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (external_id, email, name)
		VALUES ($1, $2, $3)
		RETURNING id`,
		externalID, email, name,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert user: %w", err)
	}
	return id, nil
}

// CreateManual inserts a manual owned by userID (nil for no owner) and returns its primary key.
func (s *Store) CreateManual(ctx context.Context, manualID, title, filename string, userID *int64) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO manuals (manual_id, title, filename, user_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		manualID, title, filename, userID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert manual: %w", err)
	}
	return id, nil
}

// DeleteManual removes a manual. Chat logs referencing it keep their rows with manual_id set to NULL.
func (s *Store) DeleteManual(ctx context.Context, manualID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM manuals WHERE manual_id = $1`, manualID)
	if err != nil {
		return fmt.Errorf("delete manual: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
