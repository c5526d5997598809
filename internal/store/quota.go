package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// IncrementUsage adds one AI call to the window and returns the new total.
func (s *SQLiteStore) IncrementUsage(ctx context.Context, window string) (int64, error) {
	var calls int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO ai_quota_usage (window_key, calls, updated_at) VALUES (?, 1, ?)
			ON CONFLICT(window_key) DO UPDATE SET calls = calls + 1, updated_at = excluded.updated_at`,
			window, millis(time.Now()))
		if err != nil {
			return err
		}
		return tx.QueryRowContext(ctx, `SELECT calls FROM ai_quota_usage WHERE window_key = ?`, window).Scan(&calls)
	})
	if err != nil {
		return 0, fmt.Errorf("increment ai quota usage: %w", err)
	}
	return calls, nil
}

// Usage returns the AI calls counted for the window.
func (s *SQLiteStore) Usage(ctx context.Context, window string) (int64, error) {
	var calls int64
	err := s.db.QueryRowContext(ctx, `SELECT calls FROM ai_quota_usage WHERE window_key = ?`, window).Scan(&calls)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read ai quota usage: %w", err)
	}
	return calls, nil
}
