package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/loganintech/go-reddit/v2/reddit"
	"golang.org/x/time/rate"

	"ThreadSentinel/internal/model"
)

// APISource reads listings through the authenticated Reddit API.
type APISource struct {
	client  *reddit.Client
	limiter *rate.Limiter
}

// NewAPISource creates an authenticated source. Listing calls are limited to ~60/min.
func NewAPISource(opts Options) (*APISource, error) {
	creds := reddit.Credentials{
		ID:       opts.ClientID,
		Secret:   opts.ClientSecret,
		Username: opts.Username,
		Password: opts.Password,
	}

	transport := &http.Transport{}
	if opts.ProxyURL != "" {
		u, err := url.Parse(opts.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("parse collector proxy: %w", err)
		}
		transport.Proxy = http.ProxyURL(u)
	}

	client, err := reddit.NewClient(creds,
		reddit.WithUserAgent(opts.UserAgent),
		reddit.WithHTTPClient(&http.Client{Timeout: 30 * time.Second, Transport: transport}),
	)
	if err != nil {
		return nil, fmt.Errorf("create reddit client: %w", err)
	}

	return &APISource{
		client:  client,
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}, nil
}

func (s *APISource) Name() string { return "api" }

func (s *APISource) FetchDiscussions(ctx context.Context, subreddit string, limit int) ([]*model.Discussion, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	sub := normalizeSubreddit(subreddit)
	posts, _, err := s.client.Subreddit.NewPosts(ctx, sub, &reddit.ListOptions{Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("list r/%s: %w", sub, err)
	}

	out := make([]*model.Discussion, 0, len(posts))
	for _, p := range posts {
		d := &model.Discussion{
			ID:          p.ID,
			Title:       p.Title,
			Text:        p.Body,
			Subreddit:   p.SubredditName,
			Author:      p.Author,
			Score:       p.Score,
			NumComments: p.NumberOfComments,
			Permalink:   permalinkURL(p.Permalink),
			IsSelf:      p.IsSelfPost,
		}
		if p.Created != nil {
			d.CreatedAt = p.Created.Time.UTC()
		}
		out = append(out, d)
	}
	return out, nil
}
