package model

import "time"

// CampaignStatus is the lifecycle status of a campaign.
type CampaignStatus string

const (
	CampaignActive CampaignStatus = "active"
	CampaignPaused CampaignStatus = "paused"
)

// TargetingProfile describes which discussions a campaign wants to reply to.
type TargetingProfile struct {
	Keywords           []string `json:"keywords"`
	NegativeKeywords   []string `json:"negative_keywords"`
	CustomerSegments   []string `json:"customer_segments"`
	RelevanceThreshold float64  `json:"relevance_threshold"`
}

// Campaign is a user's configured target for automated discussion replies.
type Campaign struct {
	ID              string
	UserID          string
	Name            string
	WebsiteURL      string
	Description     string
	ReplyTemplate   string
	Enabled         bool
	Status          CampaignStatus
	IntervalMinutes int
	MaxPostsPerDay  int
	PostsToday      int
	NextEligibleAt  *time.Time
	RotationIndex   int
	Subreddits      []string
	Profile         TargetingProfile
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsActive reports whether the campaign may be scheduled at all.
func (c *Campaign) IsActive() bool {
	return c.Enabled && c.Status == CampaignActive
}

// ReadyAt reports whether the campaign passes the readiness gate at now.
func (c *Campaign) ReadyAt(now time.Time) bool {
	if !c.IsActive() {
		return false
	}
	if c.PostsToday >= c.MaxPostsPerDay {
		return false
	}
	return c.NextEligibleAt == nil || c.NextEligibleAt.Before(now)
}

// TargetSubreddit picks the subreddit the rotation index currently points at.
// Returns "" when the rotation list is empty.
func (c *Campaign) TargetSubreddit(fallback []string) string {
	list := c.Subreddits
	if len(list) == 0 {
		list = fallback
	}
	if len(list) == 0 {
		return ""
	}
	idx := c.RotationIndex % len(list)
	if idx < 0 {
		idx += len(list)
	}
	return list[idx]
}

// AdvanceRotation moves the rotation index one step, wrapping at the list length.
func (c *Campaign) AdvanceRotation(fallback []string) {
	n := len(c.Subreddits)
	if n == 0 {
		n = len(fallback)
	}
	if n == 0 {
		c.RotationIndex = 0
		return
	}
	c.RotationIndex = (c.RotationIndex + 1) % n
}

// Interval is the minimum spacing between two posts of the campaign.
func (c *Campaign) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}
