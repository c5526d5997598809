package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ThreadSentinel/internal/model"
)

const campaignColumns = `id, user_id, name, website_url, description, reply_template, enabled, status,
	interval_minutes, max_posts_per_day, posts_today, next_eligible_at, rotation_index,
	subreddits, profile, created_at, updated_at`

// SaveCampaign inserts or replaces a campaign. Empty ids are assigned.
func (s *SQLiteStore) SaveCampaign(ctx context.Context, c *model.Campaign) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	return s.withTx(ctx, func(tx *sql.Tx) error {
		return upsertCampaign(ctx, tx, c)
	})
}

// GetCampaign loads one campaign by id.
func (s *SQLiteStore) GetCampaign(ctx context.Context, id string) (*model.Campaign, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+campaignColumns+` FROM campaigns WHERE id = ?`, id)
	c, err := scanCampaign(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("campaign %s: %w", id, ErrNotFound)
	}
	return c, err
}

// ListActiveCampaigns returns enabled campaigns in active status.
func (s *SQLiteStore) ListActiveCampaigns(ctx context.Context) ([]*model.Campaign, error) {
	return s.queryCampaigns(ctx, `SELECT `+campaignColumns+` FROM campaigns
		WHERE enabled = 1 AND status = ? ORDER BY created_at, id`, string(model.CampaignActive))
}

// ListReadyCampaigns returns active campaigns under their daily cap whose next
// eligible time is unset or before now, oldest schedule first.
func (s *SQLiteStore) ListReadyCampaigns(ctx context.Context, now time.Time) ([]*model.Campaign, error) {
	return s.queryCampaigns(ctx, `SELECT `+campaignColumns+` FROM campaigns
		WHERE enabled = 1 AND status = ?
		  AND posts_today < max_posts_per_day
		  AND (next_eligible_at IS NULL OR next_eligible_at < ?)
		ORDER BY COALESCE(next_eligible_at, 0), created_at, id`,
		string(model.CampaignActive), millis(now))
}

// UpdateCampaign applies fn to the campaign inside one transaction.
func (s *SQLiteStore) UpdateCampaign(ctx context.Context, id string, fn func(*model.Campaign) error) (*model.Campaign, error) {
	var out *model.Campaign
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT `+campaignColumns+` FROM campaigns WHERE id = ?`, id)
		c, err := scanCampaign(row)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("campaign %s: %w", id, ErrNotFound)
		}
		if err != nil {
			return err
		}
		if err := fn(c); err != nil {
			return err
		}
		c.ID = id
		c.UpdatedAt = time.Now().UTC()
		if err := upsertCampaign(ctx, tx, c); err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update campaign: %w", err)
	}
	return out, nil
}

// ResetDailyPostCounts zeroes posts_today on every campaign.
func (s *SQLiteStore) ResetDailyPostCounts(ctx context.Context) (int64, error) {
	var n int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE campaigns SET posts_today = 0, updated_at = ? WHERE posts_today <> 0`,
			millis(time.Now()))
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("reset daily post counts: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) queryCampaigns(ctx context.Context, query string, args ...any) ([]*model.Campaign, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query campaigns: %w", err)
	}
	defer rows.Close()

	var out []*model.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func upsertCampaign(ctx context.Context, tx *sql.Tx, c *model.Campaign) error {
	subs, err := json.Marshal(nonNil(c.Subreddits))
	if err != nil {
		return fmt.Errorf("encode subreddits: %w", err)
	}
	profile, err := json.Marshal(c.Profile)
	if err != nil {
		return fmt.Errorf("encode targeting profile: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO campaigns (`+campaignColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id, name = excluded.name, website_url = excluded.website_url,
			description = excluded.description, reply_template = excluded.reply_template,
			enabled = excluded.enabled, status = excluded.status,
			interval_minutes = excluded.interval_minutes, max_posts_per_day = excluded.max_posts_per_day,
			posts_today = excluded.posts_today, next_eligible_at = excluded.next_eligible_at,
			rotation_index = excluded.rotation_index, subreddits = excluded.subreddits,
			profile = excluded.profile, updated_at = excluded.updated_at`,
		c.ID, c.UserID, c.Name, c.WebsiteURL, c.Description, c.ReplyTemplate, boolInt(c.Enabled), string(c.Status),
		c.IntervalMinutes, c.MaxPostsPerDay, c.PostsToday, nullMillis(c.NextEligibleAt), c.RotationIndex,
		string(subs), string(profile), millis(c.CreatedAt), millis(c.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("save campaign %s: %w", c.ID, err)
	}
	return nil
}

func scanCampaign(row scanner) (*model.Campaign, error) {
	var (
		c                model.Campaign
		enabled          int
		status           string
		next             sql.NullInt64
		subs, profile    string
		created, updated int64
	)
	err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.WebsiteURL, &c.Description, &c.ReplyTemplate, &enabled, &status,
		&c.IntervalMinutes, &c.MaxPostsPerDay, &c.PostsToday, &next, &c.RotationIndex,
		&subs, &profile, &created, &updated)
	if err != nil {
		return nil, err
	}
	c.Enabled = enabled != 0
	c.Status = model.CampaignStatus(status)
	c.NextEligibleAt = fromNullMillis(next)
	c.CreatedAt = fromMillis(created)
	c.UpdatedAt = fromMillis(updated)
	if err := json.Unmarshal([]byte(subs), &c.Subreddits); err != nil {
		return nil, fmt.Errorf("decode subreddits of %s: %w", c.ID, err)
	}
	if err := json.Unmarshal([]byte(profile), &c.Profile); err != nil {
		return nil, fmt.Errorf("decode targeting profile of %s: %w", c.ID, err)
	}
	return &c, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
