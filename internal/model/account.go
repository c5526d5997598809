package model

import "time"

// AccountStatus is the platform-level standing of a posting account.
type AccountStatus string

const (
	AccountActive          AccountStatus = "active"
	AccountBanned          AccountStatus = "banned"
	AccountCredentialError AccountStatus = "credential_error"
)

// Credentials are the secrets needed to act as an account on the platform.
type Credentials struct {
	Username     string
	Password     string
	ClientID     string
	ClientSecret string
}

// Account is a platform account in the shared posting pool.
type Account struct {
	ID                 string
	Credentials        Credentials
	ProxyURL           string
	IsDiscussionPoster bool
	IsValidated        bool
	Status             AccountStatus
	StatusNote         string
	LastUsedAt         *time.Time
	CooldownMinutes    int
	CooldownUntil      *time.Time
	IsAvailable        bool
	TotalPosts         int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// AccountRef is the credential-free view of an account handed to the scheduler.
type AccountRef struct {
	ID              string
	Username        string
	CooldownMinutes int
	LastUsedAt      *time.Time
}

// Ref strips credentials from the account.
func (a *Account) Ref() *AccountRef {
	return &AccountRef{
		ID:              a.ID,
		Username:        a.Credentials.Username,
		CooldownMinutes: a.CooldownMinutes,
		LastUsedAt:      a.LastUsedAt,
	}
}

// InPool reports whether the account is opted in, validated and in good standing.
func (a *Account) InPool() bool {
	return a.IsValidated && a.IsDiscussionPoster && a.Status == AccountActive
}

// AvailableAt reports whether the account's cooldown permits use at now.
// An explicit cooldown timestamp takes precedence over last_used_at + cooldown_minutes.
func (a *Account) AvailableAt(now time.Time) bool {
	if a.IsAvailable {
		return true
	}
	if a.CooldownUntil != nil {
		return !now.Before(*a.CooldownUntil)
	}
	if a.LastUsedAt == nil {
		return true
	}
	return !now.Before(a.LastUsedAt.Add(time.Duration(a.CooldownMinutes) * time.Minute))
}

// EligibleAt is the single selection predicate for the pool.
func (a *Account) EligibleAt(now time.Time) bool {
	return a.InPool() && a.AvailableAt(now)
}

// AvailableFrom returns when the account's cooldown ends, or nil if it is available now.
func (a *Account) AvailableFrom(now time.Time) *time.Time {
	if a.AvailableAt(now) {
		return nil
	}
	if a.CooldownUntil != nil {
		t := *a.CooldownUntil
		return &t
	}
	t := a.LastUsedAt.Add(time.Duration(a.CooldownMinutes) * time.Minute)
	return &t
}
