package accounts

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"ThreadSentinel/internal/model"
	"ThreadSentinel/internal/transport"
)

// ErrAccountUnavailable is returned when an account fails the eligibility predicate
// at the moment it is about to be used.
var ErrAccountUnavailable = errors.New("account not available")

// Store persists posting accounts. UpdateAccount must read, apply fn and write
// the row in one transaction keyed by id.
type Store interface {
	ListAccounts(ctx context.Context) ([]*model.Account, error)
	GetAccount(ctx context.Context, id string) (*model.Account, error)
	UpdateAccount(ctx context.Context, id string, fn func(*model.Account) error) (*model.Account, error)
}

// Availability is an aggregate snapshot of the pool.
type Availability struct {
	Available       bool
	Count           int
	Total           int
	Reason          string
	NextAvailableAt *time.Time
}

// Summary is the operator view of one account.
type Summary struct {
	ID            string              `json:"id"`
	Username      string              `json:"username"`
	Status        model.AccountStatus `json:"status"`
	InPool        bool                `json:"in_pool"`
	Available     bool                `json:"available"`
	AvailableFrom *time.Time          `json:"available_from,omitempty"`
	LastUsedAt    *time.Time          `json:"last_used_at,omitempty"`
	TotalPosts    int                 `json:"total_posts"`
	StatusNote    string              `json:"status_note,omitempty"`
}

// Pool hands out least-recently-used accounts and tracks their cooldowns.
// Credentials never leave the pool.
type Pool struct {
	store  Store
	poster transport.Poster
	now    func() time.Time
}

// NewPool creates a Pool over store, posting through poster.
func NewPool(store Store, poster transport.Poster) *Pool {
	return &Pool{store: store, poster: poster, now: time.Now}
}

// CheckAvailability counts accounts eligible right now.
func (p *Pool) CheckAvailability(ctx context.Context) (Availability, error) {
	all, err := p.store.ListAccounts(ctx)
	if err != nil {
		return Availability{}, fmt.Errorf("check availability: %w", err)
	}
	now := p.now()

	var av Availability
	for _, a := range all {
		if !a.InPool() {
			continue
		}
		av.Total++
		if a.AvailableAt(now) {
			av.Count++
			continue
		}
		if from := a.AvailableFrom(now); from != nil {
			if av.NextAvailableAt == nil || from.Before(*av.NextAvailableAt) {
				av.NextAvailableAt = from
			}
		}
	}

	av.Available = av.Count > 0
	switch {
	case av.Total == 0:
		av.Reason = "no validated discussion-poster accounts in active status"
	case av.Count == 0 && av.NextAvailableAt != nil:
		av.Reason = fmt.Sprintf("all %d accounts cooling down, next available at %s",
			av.Total, av.NextAvailableAt.Format(time.RFC3339))
	case av.Count == 0:
		av.Reason = fmt.Sprintf("all %d accounts cooling down", av.Total)
	}
	return av, nil
}

// SelectNext returns the eligible account with the oldest last_used_at (never-used first),
// or nil when none is eligible.
func (p *Pool) SelectNext(ctx context.Context) (*model.AccountRef, error) {
	all, err := p.store.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("select next account: %w", err)
	}
	now := p.now()

	eligible := make([]*model.Account, 0, len(all))
	for _, a := range all {
		if a.EligibleAt(now) {
			eligible = append(eligible, a)
		}
	}
	if len(eligible) == 0 {
		return nil, nil
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		a, b := eligible[i].LastUsedAt, eligible[j].LastUsedAt
		switch {
		case a == nil && b == nil:
			return eligible[i].ID < eligible[j].ID
		case a == nil:
			return true
		case b == nil:
			return false
		case a.Equal(*b):
			return eligible[i].ID < eligible[j].ID
		default:
			return a.Before(*b)
		}
	})
	return eligible[0].Ref(), nil
}

// Submit posts text on the discussion as the referenced account.
// Terminal platform rejections flip the account to banned / credential_error before returning.
func (p *Pool) Submit(ctx context.Context, ref *model.AccountRef, discussionID, text string) (*transport.SubmitResult, error) {
	acct, err := p.store.GetAccount(ctx, ref.ID)
	if err != nil {
		return nil, fmt.Errorf("submit as %s: %w", ref.ID, err)
	}
	if !acct.EligibleAt(p.now()) {
		return nil, fmt.Errorf("submit as %s: %w", ref.ID, ErrAccountUnavailable)
	}

	res, err := p.poster.Submit(ctx, transport.SubmitRequest{
		Credentials:  acct.Credentials,
		ProxyURL:     acct.ProxyURL,
		DiscussionID: discussionID,
		Text:         text,
	})
	if err == nil {
		return res, nil
	}

	switch {
	case errors.Is(err, transport.ErrAccountBanned):
		log.Printf("[ALERT] account %s (%s) reported banned: %v", acct.ID, acct.Credentials.Username, err)
		if markErr := p.MarkBanned(ctx, acct.ID, err.Error()); markErr != nil {
			log.Printf("[ERROR] mark account %s banned: %v", acct.ID, markErr)
		}
	case errors.Is(err, transport.ErrInvalidCredentials):
		log.Printf("[ALERT] account %s (%s) credentials rejected: %v", acct.ID, acct.Credentials.Username, err)
		if markErr := p.MarkCredentialError(ctx, acct.ID, err.Error()); markErr != nil {
			log.Printf("[ERROR] mark account %s credential error: %v", acct.ID, markErr)
		}
	}
	return nil, fmt.Errorf("submit as %s: %w", acct.ID, err)
}

// MarkUsed starts the account's cooldown. The availability check and the
// cooldown write happen in one store transaction, so an account already
// cooling down cannot be marked used a second time.
func (p *Pool) MarkUsed(ctx context.Context, accountID string, cooldownMinutes int) error {
	now := p.now()
	_, err := p.store.UpdateAccount(ctx, accountID, func(a *model.Account) error {
		if !a.EligibleAt(now) {
			return ErrAccountUnavailable
		}
		until := now.Add(time.Duration(cooldownMinutes) * time.Minute)
		a.LastUsedAt = &now
		a.CooldownUntil = &until
		a.IsAvailable = false
		a.TotalPosts++
		return nil
	})
	if err != nil {
		return fmt.Errorf("mark account %s used: %w", accountID, err)
	}
	return nil
}

// ReleaseExpired flips accounts whose cooldown has elapsed back to available.
// Safe to run any number of times.
func (p *Pool) ReleaseExpired(ctx context.Context) (int, error) {
	all, err := p.store.ListAccounts(ctx)
	if err != nil {
		return 0, fmt.Errorf("release expired cooldowns: %w", err)
	}

	released := 0
	for _, a := range all {
		if a.IsAvailable && a.CooldownUntil == nil {
			continue
		}
		changed := false
		_, err := p.store.UpdateAccount(ctx, a.ID, func(cur *model.Account) error {
			now := p.now()
			if cur.IsAvailable && cur.CooldownUntil == nil {
				return nil
			}
			if cur.CooldownUntil != nil && now.Before(*cur.CooldownUntil) {
				return nil
			}
			if cur.CooldownUntil == nil && !cur.AvailableAt(now) {
				return nil
			}
			cur.IsAvailable = true
			cur.CooldownUntil = nil
			changed = true
			return nil
		})
		if err != nil {
			return released, fmt.Errorf("release account %s: %w", a.ID, err)
		}
		if changed {
			released++
		}
	}
	return released, nil
}

// MarkBanned permanently excludes the account until an operator resets it.
func (p *Pool) MarkBanned(ctx context.Context, accountID, note string) error {
	return p.setStatus(ctx, accountID, model.AccountBanned, note)
}

// MarkCredentialError permanently excludes the account until an operator resets it.
func (p *Pool) MarkCredentialError(ctx context.Context, accountID, note string) error {
	return p.setStatus(ctx, accountID, model.AccountCredentialError, note)
}

// Reset is the operator override that returns an account to active and available.
func (p *Pool) Reset(ctx context.Context, accountID string) error {
	_, err := p.store.UpdateAccount(ctx, accountID, func(a *model.Account) error {
		a.Status = model.AccountActive
		a.StatusNote = ""
		a.IsAvailable = true
		a.CooldownUntil = nil
		return nil
	})
	if err != nil {
		return fmt.Errorf("reset account %s: %w", accountID, err)
	}
	log.Printf("[INFO] account %s manually reset to active", accountID)
	return nil
}

// Summaries lists every account for operator views.
func (p *Pool) Summaries(ctx context.Context) ([]Summary, error) {
	all, err := p.store.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	now := p.now()
	out := make([]Summary, 0, len(all))
	for _, a := range all {
		out = append(out, Summary{
			ID:            a.ID,
			Username:      a.Credentials.Username,
			Status:        a.Status,
			InPool:        a.InPool(),
			Available:     a.EligibleAt(now),
			AvailableFrom: a.AvailableFrom(now),
			LastUsedAt:    a.LastUsedAt,
			TotalPosts:    a.TotalPosts,
			StatusNote:    a.StatusNote,
		})
	}
	return out, nil
}

func (p *Pool) setStatus(ctx context.Context, accountID string, status model.AccountStatus, note string) error {
	_, err := p.store.UpdateAccount(ctx, accountID, func(a *model.Account) error {
		a.Status = status
		a.StatusNote = note
		return nil
	})
	if err != nil {
		return fmt.Errorf("set account %s %s: %w", accountID, status, err)
	}
	return nil
}
