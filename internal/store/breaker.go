package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ThreadSentinel/internal/model"
)

const breakerColumns = `worker_type, status, consecutive_failures, last_failure_at, backoff_until,
	recent_failures, last_success_at, updated_at`

// GetBreaker returns the breaker row for workerType, or a fresh active state if none exists.
func (s *SQLiteStore) GetBreaker(ctx context.Context, workerType string) (*model.BreakerState, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+breakerColumns+` FROM breaker_state WHERE worker_type = ?`, workerType)
	st, err := scanBreaker(row)
	if errors.Is(err, sql.ErrNoRows) {
		return newBreakerState(workerType), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get breaker %s: %w", workerType, err)
	}
	return st, nil
}

// UpdateBreaker loads (or initialises) the row, applies fn and saves it in one transaction.
func (s *SQLiteStore) UpdateBreaker(ctx context.Context, workerType string, fn func(*model.BreakerState) error) (*model.BreakerState, error) {
	var out *model.BreakerState
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT `+breakerColumns+` FROM breaker_state WHERE worker_type = ?`, workerType)
		st, err := scanBreaker(row)
		if errors.Is(err, sql.ErrNoRows) {
			st, err = newBreakerState(workerType), nil
		}
		if err != nil {
			return err
		}
		if err := fn(st); err != nil {
			return err
		}
		st.WorkerType = workerType
		st.UpdatedAt = time.Now().UTC()

		recent, err := json.Marshal(st.RecentFailures)
		if err != nil {
			return fmt.Errorf("encode recent failures: %w", err)
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO breaker_state (`+breakerColumns+`)
			VALUES (?,?,?,?,?,?,?,?)
			ON CONFLICT(worker_type) DO UPDATE SET
				status = excluded.status, consecutive_failures = excluded.consecutive_failures,
				last_failure_at = excluded.last_failure_at, backoff_until = excluded.backoff_until,
				recent_failures = excluded.recent_failures, last_success_at = excluded.last_success_at,
				updated_at = excluded.updated_at`,
			st.WorkerType, string(st.Status), st.ConsecutiveFailures, nullMillis(st.LastFailureAt),
			nullMillis(st.BackoffUntil), string(recent), nullMillis(st.LastSuccessAt), millis(st.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("save breaker %s: %w", workerType, err)
		}
		out = st
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update breaker: %w", err)
	}
	return out, nil
}

func newBreakerState(workerType string) *model.BreakerState {
	return &model.BreakerState{
		WorkerType:     workerType,
		Status:         model.BreakerActive,
		RecentFailures: []model.FailureReason{},
	}
}

func scanBreaker(row scanner) (*model.BreakerState, error) {
	var (
		st                  model.BreakerState
		status, recent      string
		lastFail, until, ok sql.NullInt64
		updated             int64
	)
	err := row.Scan(&st.WorkerType, &status, &st.ConsecutiveFailures, &lastFail, &until, &recent, &ok, &updated)
	if err != nil {
		return nil, err
	}
	st.Status = model.BreakerStatus(status)
	st.LastFailureAt = fromNullMillis(lastFail)
	st.BackoffUntil = fromNullMillis(until)
	st.LastSuccessAt = fromNullMillis(ok)
	st.UpdatedAt = fromMillis(updated)
	if err := json.Unmarshal([]byte(recent), &st.RecentFailures); err != nil {
		return nil, fmt.Errorf("decode recent failures of %s: %w", st.WorkerType, err)
	}
	return &st, nil
}
