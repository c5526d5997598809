package transport

import (
	"context"
	"errors"

	"ThreadSentinel/internal/model"
)

// Terminal account failures reported by the platform.
var (
	ErrAccountBanned      = errors.New("account banned or suspended")
	ErrInvalidCredentials = errors.New("account credentials rejected")
)

// SubmitRequest is one comment to post as one account.
// ProxyURL is applied to this request's HTTP client only.
type SubmitRequest struct {
	Credentials  model.Credentials
	ProxyURL     string
	DiscussionID string
	Text         string
}

// SubmitResult describes a posted comment.
type SubmitResult struct {
	CommentID  string
	CommentURL string
}

// Poster posts comments to the discussion platform.
type Poster interface {
	Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error)
}

// IsTerminal reports whether err permanently disqualifies the account.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrAccountBanned) || errors.Is(err, ErrInvalidCredentials)
}
