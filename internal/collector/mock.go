package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ThreadSentinel/internal/model"
)

// MockSource serves fixed discussions per subreddit for development and tests.
// Subreddits without fixtures get generated posts.
type MockSource struct {
	mu       sync.Mutex
	fixtures map[string][]*model.Discussion
	errs     map[string]error
	calls    map[string]int
}

// NewMockSource creates an empty MockSource.
func NewMockSource() *MockSource {
	return &MockSource{
		fixtures: make(map[string][]*model.Discussion),
		errs:     make(map[string]error),
		calls:    make(map[string]int),
	}
}

func (m *MockSource) Name() string { return "mock" }

// Set replaces the fixtures of a subreddit.
func (m *MockSource) Set(subreddit string, ds ...*model.Discussion) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fixtures[normalizeSubreddit(subreddit)] = ds
}

// Fail makes every fetch of subreddit return err.
func (m *MockSource) Fail(subreddit string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[normalizeSubreddit(subreddit)] = err
}

// Calls returns how often subreddit was fetched.
func (m *MockSource) Calls(subreddit string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[normalizeSubreddit(subreddit)]
}

func (m *MockSource) FetchDiscussions(_ context.Context, subreddit string, limit int) ([]*model.Discussion, error) {
	sub := normalizeSubreddit(subreddit)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[sub]++
	if err := m.errs[sub]; err != nil {
		return nil, err
	}

	ds, ok := m.fixtures[sub]
	if !ok {
		ds = generateMockDiscussions(sub, limit)
	}
	if limit > 0 && len(ds) > limit {
		ds = ds[:limit]
	}
	out := make([]*model.Discussion, len(ds))
	for i, d := range ds {
		cp := *d
		out[i] = &cp
	}
	return out, nil
}

func generateMockDiscussions(sub string, count int) []*model.Discussion {
	if count <= 0 {
		count = 25
	}
	out := make([]*model.Discussion, count)
	for i := 0; i < count; i++ {
		out[i] = &model.Discussion{
			ID:          fmt.Sprintf("mock_%s_%d", sub, i),
			Title:       fmt.Sprintf("Any recommendations for a tool to manage %s workflow? (#%d)", sub, i),
			Text:        "Our small team is struggling with spreadsheets and looking for a better solution.",
			Subreddit:   sub,
			Author:      "simulated_user",
			Score:       10 + i,
			NumComments: 3 + i,
			CreatedAt:   time.Now().Add(-time.Duration(i) * time.Hour).UTC(),
			Permalink:   fmt.Sprintf("https://www.reddit.com/r/%s/comments/mock_%d", sub, i),
			IsSelf:      true,
		}
	}
	return out
}
