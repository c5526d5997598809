package model

import "time"

// Discussion is a candidate thread returned by the discussion source.
type Discussion struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Text        string    `json:"text"`
	Subreddit   string    `json:"subreddit"`
	Author      string    `json:"author"`
	Score       int       `json:"score"`
	NumComments int       `json:"num_comments"`
	CreatedAt   time.Time `json:"created_at"`
	Permalink   string    `json:"permalink"`
	IsSelf      bool      `json:"is_self"`
}

// PostedRecord is one row of the append-only deduplication ledger.
type PostedRecord struct {
	ID           string
	CampaignID   string
	DiscussionID string
	Subreddit    string
	PostedText   string
	Score        float64
	AccountID    string
	CommentID    string
	CommentURL   string
	CreatedAt    time.Time
}
