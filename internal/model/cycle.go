package model

import "time"

// OutcomeState is how one campaign ended within a cycle.
type OutcomeState string

const (
	OutcomePosted  OutcomeState = "posted"
	OutcomeSkipped OutcomeState = "skipped"
	OutcomeFailed  OutcomeState = "failed"
)

// CampaignOutcome describes what a cycle did for one ready campaign.
type CampaignOutcome struct {
	CampaignID   string       `json:"campaign_id"`
	CampaignName string       `json:"campaign_name,omitempty"`
	Subreddit    string       `json:"subreddit,omitempty"`
	State        OutcomeState `json:"state"`
	Reason       string       `json:"reason,omitempty"`
	Candidates   int          `json:"candidates"`
	DiscussionID string       `json:"discussion_id,omitempty"`
	Score        float64      `json:"score,omitempty"`
	AccountID    string       `json:"account_id,omitempty"`
	CommentURL   string       `json:"comment_url,omitempty"`
}

// CycleResult summarizes one posting cycle.
type CycleResult struct {
	CycleID            string            `json:"cycle_id"`
	StartedAt          time.Time         `json:"started_at"`
	FinishedAt         time.Time         `json:"finished_at"`
	Skipped            bool              `json:"skipped"`
	SkipReason         string            `json:"skip_reason,omitempty"`
	CampaignsProcessed int               `json:"campaigns_processed"`
	TotalPosts         int               `json:"total_posts"`
	Errors             []string          `json:"errors,omitempty"`
	Outcomes           []CampaignOutcome `json:"outcomes,omitempty"`
}

// StatusSnapshot is the operator view of the posting subsystem.
type StatusSnapshot struct {
	Breaker           *BreakerState `json:"breaker"`
	AccountsTotal     int           `json:"accounts_total"`
	AccountsAvailable int           `json:"accounts_available"`
	NextAccountAt     *time.Time    `json:"next_account_at,omitempty"`
	ActiveCampaigns   int           `json:"active_campaigns"`
	ReadyCampaigns    int           `json:"ready_campaigns"`
	PostsToday        int           `json:"posts_today"`
	AIQuotaRemaining  int           `json:"ai_quota_remaining"`
	CycleRunning      bool          `json:"cycle_running"`
	LastCycle         *CycleResult  `json:"last_cycle,omitempty"`
}
