package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ThreadSentinel/internal/model"
)

// HasPosted reports whether the (campaign, discussion) pair is in the ledger.
func (s *SQLiteStore) HasPosted(ctx context.Context, campaignID, discussionID string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM posted_records WHERE campaign_id = ? AND discussion_id = ?)`,
		campaignID, discussionID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query posted record: %w", err)
	}
	return exists == 1, nil
}

// InsertPosted appends rec. A duplicate (campaign, discussion) pair is ignored.
func (s *SQLiteStore) InsertPosted(ctx context.Context, rec *model.PostedRecord) (bool, error) {
	var inserted bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `INSERT INTO posted_records
			(id, campaign_id, discussion_id, subreddit, posted_text, score, account_id, comment_id, comment_url, created_at)
			VALUES (?,?,?,?,?,?,?,?,?,?)
			ON CONFLICT(campaign_id, discussion_id) DO NOTHING`,
			rec.ID, rec.CampaignID, rec.DiscussionID, rec.Subreddit, rec.PostedText, rec.Score,
			rec.AccountID, rec.CommentID, rec.CommentURL, millis(rec.CreatedAt),
		)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		inserted = n > 0
		return err
	})
	if err != nil {
		return false, fmt.Errorf("insert posted record: %w", err)
	}
	return inserted, nil
}

// RecentPosted returns the newest ledger rows, newest first.
func (s *SQLiteStore) RecentPosted(ctx context.Context, limit int) ([]*model.PostedRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, campaign_id, discussion_id, subreddit, posted_text, score,
		account_id, comment_id, comment_url, created_at
		FROM posted_records ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query posted records: %w", err)
	}
	defer rows.Close()

	var out []*model.PostedRecord
	for rows.Next() {
		var (
			r       model.PostedRecord
			created int64
		)
		if err := rows.Scan(&r.ID, &r.CampaignID, &r.DiscussionID, &r.Subreddit, &r.PostedText, &r.Score,
			&r.AccountID, &r.CommentID, &r.CommentURL, &created); err != nil {
			return nil, err
		}
		r.CreatedAt = fromMillis(created)
		out = append(out, &r)
	}
	return out, rows.Err()
}

// CountPostedSince counts ledger rows created at or after since.
func (s *SQLiteStore) CountPostedSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posted_records WHERE created_at >= ?`, millis(since)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count posted records: %w", err)
	}
	return n, nil
}
