package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/loganintech/go-reddit/v2/reddit"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// RedditPoster submits comments through the Reddit API with a client per account.
type RedditPoster struct {
	userAgent string
	baseURL   string
	tokenURL  string
	limiter   *rate.Limiter
}

// NewRedditPoster creates a poster. Reddit asks for at most one write per second per app.
func NewRedditPoster(userAgent string) *RedditPoster {
	return &RedditPoster{
		userAgent: userAgent,
		limiter:   rate.NewLimiter(rate.Every(1*time.Second), 1),
	}
}

// WithEndpoints points the poster at alternative API and token URLs.
func (p *RedditPoster) WithEndpoints(baseURL, tokenURL string) *RedditPoster {
	p.baseURL = baseURL
	p.tokenURL = tokenURL
	return p
}

// Submit posts req.Text as a top-level reply on the discussion.
func (p *RedditPoster) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	if req.DiscussionID == "" {
		return nil, fmt.Errorf("submit: discussion id is empty")
	}
	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("submit: comment text is empty")
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	client, err := p.clientFor(req)
	if err != nil {
		return nil, fmt.Errorf("submit: build client: %w", err)
	}

	comment, _, err := client.Comment.Submit(ctx, fullname(req.DiscussionID), req.Text)
	if err != nil {
		return nil, classify(err)
	}

	res := &SubmitResult{CommentID: comment.ID}
	if comment.Permalink != "" {
		res.CommentURL = "https://www.reddit.com" + comment.Permalink
	}
	return res, nil
}

// clientFor builds a go-reddit client whose HTTP transport carries the account's proxy.
func (p *RedditPoster) clientFor(req SubmitRequest) (*reddit.Client, error) {
	transport := &http.Transport{}
	if req.ProxyURL != "" {
		u, err := url.Parse(req.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		transport.Proxy = http.ProxyURL(u)
	}

	opts := []reddit.Opt{
		reddit.WithUserAgent(p.userAgent),
		reddit.WithHTTPClient(&http.Client{Timeout: 30 * time.Second, Transport: transport}),
	}
	if p.baseURL != "" {
		opts = append(opts, reddit.WithBaseURL(p.baseURL))
	}
	if p.tokenURL != "" {
		opts = append(opts, reddit.WithTokenURL(p.tokenURL))
	}

	creds := reddit.Credentials{
		ID:       req.Credentials.ClientID,
		Secret:   req.Credentials.ClientSecret,
		Username: req.Credentials.Username,
		Password: req.Credentials.Password,
	}
	return reddit.NewClient(creds, opts...)
}

func fullname(id string) string {
	if strings.HasPrefix(id, "t3_") || strings.HasPrefix(id, "t1_") {
		return id
	}
	return "t3_" + id
}

var bannedMarkers = []string{"suspended", "banned", "user_blocked", "account has been"}

var credentialMarkers = []string{"invalid_grant", "unauthorized_client", "missing access_token", "401 unauthorized"}

// classify maps a go-reddit or oauth2 error onto the terminal sentinels when it is one.
func classify(err error) error {
	msg := strings.ToLower(err.Error())

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
		switch retrieveErr.Response.StatusCode {
		case http.StatusUnauthorized, http.StatusBadRequest:
			return fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
		}
	}

	var respErr *reddit.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		switch respErr.Response.StatusCode {
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
		case http.StatusForbidden:
			for _, m := range bannedMarkers {
				if strings.Contains(msg, m) {
					return fmt.Errorf("%w: %v", ErrAccountBanned, err)
				}
			}
		}
	}

	for _, m := range credentialMarkers {
		if strings.Contains(msg, m) {
			return fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
		}
	}
	for _, m := range bannedMarkers {
		if strings.Contains(msg, m) {
			return fmt.Errorf("%w: %v", ErrAccountBanned, err)
		}
	}
	return fmt.Errorf("submit comment: %w", err)
}
