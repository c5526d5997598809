package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ThreadSentinel/internal/model"
)

const accountColumns = `id, username, password, client_id, client_secret, proxy_url,
	is_discussion_poster, is_validated, status, status_note, last_used_at, cooldown_minutes,
	cooldown_until, is_available, total_posts, created_at, updated_at`

// SaveAccount inserts or replaces a posting account. Empty ids are assigned.
func (s *SQLiteStore) SaveAccount(ctx context.Context, a *model.Account) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	return s.withTx(ctx, func(tx *sql.Tx) error {
		return upsertAccount(ctx, tx, a)
	})
}

// ListAccounts returns every account ordered by id.
func (s *SQLiteStore) ListAccounts(ctx context.Context) ([]*model.Account, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	var out []*model.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetAccount loads one account by id.
func (s *SQLiteStore) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account %s: %w", id, ErrNotFound)
	}
	return a, err
}

// UpdateAccount applies fn to the account inside one transaction so that
// availability checks and cooldown writes cannot interleave.
func (s *SQLiteStore) UpdateAccount(ctx context.Context, id string, fn func(*model.Account) error) (*model.Account, error) {
	var out *model.Account
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
		a, err := scanAccount(row)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("account %s: %w", id, ErrNotFound)
		}
		if err != nil {
			return err
		}
		if err := fn(a); err != nil {
			return err
		}
		a.ID = id
		a.UpdatedAt = time.Now().UTC()
		if err := upsertAccount(ctx, tx, a); err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update account: %w", err)
	}
	return out, nil
}

func upsertAccount(ctx context.Context, tx *sql.Tx, a *model.Account) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO accounts (`+accountColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username, password = excluded.password,
			client_id = excluded.client_id, client_secret = excluded.client_secret,
			proxy_url = excluded.proxy_url, is_discussion_poster = excluded.is_discussion_poster,
			is_validated = excluded.is_validated, status = excluded.status, status_note = excluded.status_note,
			last_used_at = excluded.last_used_at, cooldown_minutes = excluded.cooldown_minutes,
			cooldown_until = excluded.cooldown_until, is_available = excluded.is_available,
			total_posts = excluded.total_posts, updated_at = excluded.updated_at`,
		a.ID, a.Credentials.Username, a.Credentials.Password, a.Credentials.ClientID, a.Credentials.ClientSecret,
		a.ProxyURL, boolInt(a.IsDiscussionPoster), boolInt(a.IsValidated), string(a.Status), a.StatusNote,
		nullMillis(a.LastUsedAt), a.CooldownMinutes, nullMillis(a.CooldownUntil), boolInt(a.IsAvailable),
		a.TotalPosts, millis(a.CreatedAt), millis(a.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("save account %s: %w", a.ID, err)
	}
	return nil
}

func scanAccount(row scanner) (*model.Account, error) {
	var (
		a                     model.Account
		poster, validated     int
		available             int
		status                string
		lastUsed, cooldownEnd sql.NullInt64
		created, updated      int64
	)
	err := row.Scan(&a.ID, &a.Credentials.Username, &a.Credentials.Password, &a.Credentials.ClientID,
		&a.Credentials.ClientSecret, &a.ProxyURL, &poster, &validated, &status, &a.StatusNote,
		&lastUsed, &a.CooldownMinutes, &cooldownEnd, &available, &a.TotalPosts, &created, &updated)
	if err != nil {
		return nil, err
	}
	a.IsDiscussionPoster = poster != 0
	a.IsValidated = validated != 0
	a.IsAvailable = available != 0
	a.Status = model.AccountStatus(status)
	a.LastUsedAt = fromNullMillis(lastUsed)
	a.CooldownUntil = fromNullMillis(cooldownEnd)
	a.CreatedAt = fromMillis(created)
	a.UpdatedAt = fromMillis(updated)
	return &a, nil
}
