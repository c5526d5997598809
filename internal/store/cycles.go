package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"ThreadSentinel/internal/model"
)

// RecordCycle appends a finished cycle to the run history.
func (s *SQLiteStore) RecordCycle(ctx context.Context, res *model.CycleResult) error {
	errs, err := json.Marshal(nonNil(res.Errors))
	if err != nil {
		return fmt.Errorf("encode cycle errors: %w", err)
	}
	outcomes := res.Outcomes
	if outcomes == nil {
		outcomes = []model.CampaignOutcome{}
	}
	outs, err := json.Marshal(outcomes)
	if err != nil {
		return fmt.Errorf("encode cycle outcomes: %w", err)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO cycle_runs (id, started_at, finished_at, skipped, skip_reason,
			campaigns_processed, total_posts, errors, outcomes) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			res.CycleID, millis(res.StartedAt), millis(res.FinishedAt), boolInt(res.Skipped), res.SkipReason,
			res.CampaignsProcessed, res.TotalPosts, string(errs), string(outs))
		if err != nil {
			return fmt.Errorf("insert cycle run %s: %w", res.CycleID, err)
		}
		return nil
	})
}

// RecentCycles returns the newest cycle runs, newest first.
func (s *SQLiteStore) RecentCycles(ctx context.Context, limit int) ([]*model.CycleResult, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, started_at, finished_at, skipped, skip_reason,
		campaigns_processed, total_posts, errors, outcomes
		FROM cycle_runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query cycle runs: %w", err)
	}
	defer rows.Close()

	var out []*model.CycleResult
	for rows.Next() {
		var (
			r                 model.CycleResult
			started, finished int64
			skipped           int
			errs, outs        string
		)
		if err := rows.Scan(&r.CycleID, &started, &finished, &skipped, &r.SkipReason,
			&r.CampaignsProcessed, &r.TotalPosts, &errs, &outs); err != nil {
			return nil, err
		}
		r.StartedAt = fromMillis(started)
		r.FinishedAt = fromMillis(finished)
		r.Skipped = skipped != 0
		if err := json.Unmarshal([]byte(errs), &r.Errors); err != nil {
			return nil, fmt.Errorf("decode errors of cycle %s: %w", r.CycleID, err)
		}
		if err := json.Unmarshal([]byte(outs), &r.Outcomes); err != nil {
			return nil, fmt.Errorf("decode outcomes of cycle %s: %w", r.CycleID, err)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}
