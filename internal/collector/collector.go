package collector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ThreadSentinel/internal/model"
)

// Source lists candidate discussions of a subreddit, newest first.
type Source interface {
	FetchDiscussions(ctx context.Context, subreddit string, limit int) ([]*model.Discussion, error)
	Name() string
}

// Options selects and configures a Source.
type Options struct {
	Mode         string // "api", "public" or "mock"
	UserAgent    string
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
	ProxyURL     string
}

// New builds the Source named by opts.Mode.
func New(opts Options) (Source, error) {
	switch opts.Mode {
	case "api":
		return NewAPISource(opts)
	case "public":
		if opts.UserAgent == "" {
			return nil, fmt.Errorf("user agent is required for public mode")
		}
		return NewPublicSource(opts.UserAgent, opts.ProxyURL), nil
	case "mock":
		return NewMockSource(), nil
	default:
		return nil, fmt.Errorf("unknown collector mode: %q (use 'api', 'public', or 'mock')", opts.Mode)
	}
}

// normalizeSubreddit strips an "r/" or "/r/" prefix.
func normalizeSubreddit(sub string) string {
	sub = strings.TrimSpace(sub)
	sub = strings.TrimPrefix(sub, "/")
	sub = strings.TrimPrefix(sub, "r/")
	return sub
}

func permalinkURL(permalink string) string {
	if permalink == "" || strings.HasPrefix(permalink, "http") {
		return permalink
	}
	return "https://www.reddit.com" + permalink
}

func unixTime(sec float64) time.Time {
	return time.Unix(int64(sec), 0).UTC()
}
