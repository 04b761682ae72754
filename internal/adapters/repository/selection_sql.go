package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/studylog/core/internal/ports"
)

// SQLSelectionRepository stores selections in the session_selections table.
// Queries are written with ? placeholders and rebound for the driver.
type SQLSelectionRepository struct {
	db *sqlx.DB
}

// NewSQLSelectionRepository creates a selection store over a migrated database
func NewSQLSelectionRepository(db *sqlx.DB) ports.SelectionRepository {
	return &SQLSelectionRepository{db: db}
}

// Get retrieves a session's selection; a missing row is not an error
func (r *SQLSelectionRepository) Get(ctx context.Context, sessionID string) (string, bool, error) {
	query := r.db.Rebind(`SELECT collection FROM session_selections WHERE session_id = ?`)

	var collection string
	err := r.db.GetContext(ctx, &collection, query, sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get selection: %w", err)
	}
	return collection, true, nil
}

// Set upserts a session's selection
func (r *SQLSelectionRepository) Set(ctx context.Context, sessionID, collection string) error {
	query := r.db.Rebind(`
		INSERT INTO session_selections (session_id, collection, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (session_id) DO UPDATE
		SET collection = excluded.collection, updated_at = excluded.updated_at`)

	if _, err := r.db.ExecContext(ctx, query, sessionID, collection, time.Now().UTC()); err != nil {
		return fmt.Errorf("set selection: %w", err)
	}
	return nil
}

// Reassign updates every row pointing at from in one statement
func (r *SQLSelectionRepository) Reassign(ctx context.Context, from, to string) (int64, error) {
	query := r.db.Rebind(`
		UPDATE session_selections
		SET collection = ?, updated_at = ?
		WHERE collection = ?`)

	result, err := r.db.ExecContext(ctx, query, to, time.Now().UTC(), from)
	if err != nil {
		return 0, fmt.Errorf("reassign selections: %w", err)
	}
	moved, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reassign selections: %w", err)
	}
	return moved, nil
}

// Ping checks the database connection
func (r *SQLSelectionRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the underlying database
func (r *SQLSelectionRepository) Close() error {
	return r.db.Close()
}
