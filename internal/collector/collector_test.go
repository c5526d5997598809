package collector

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"ThreadSentinel/internal/model"
)

const listingFixture = `{
  "kind": "Listing",
  "data": {
    "children": [
      {"kind": "t3", "data": {
        "id": "1abcde", "title": "Best CRM for a small agency?", "selftext": "We are outgrowing spreadsheets.",
        "subreddit": "smallbusiness", "author": "owner42", "permalink": "/r/smallbusiness/comments/1abcde/best_crm/",
        "score": 14, "num_comments": 9, "created_utc": 1760400000, "is_self": true
      }},
      {"kind": "t3", "data": {
        "id": "1fghij", "title": "Look at my dashboard", "selftext": "",
        "subreddit": "smallbusiness", "author": "builder", "permalink": "/r/smallbusiness/comments/1fghij/look/",
        "score": 3, "num_comments": 0, "created_utc": 1760401000, "is_self": false
      }}
    ]
  }
}`

func TestPublicSource_FetchDiscussions(t *testing.T) {
	var gotPath, gotUA, gotLimit string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUA = r.Header.Get("User-Agent")
		gotLimit = r.URL.Query().Get("limit")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(listingFixture))
	}))
	defer srv.Close()

	src := NewPublicSource("threadsentinel-test/1.0", "")
	src.baseURL = srv.URL

	ds, err := src.FetchDiscussions(context.Background(), "r/smallbusiness", 25)
	if err != nil {
		t.Fatal(err)
	}
	if gotPath != "/r/smallbusiness/new.json" || gotLimit != "25" {
		t.Errorf("unexpected request path=%s limit=%s", gotPath, gotLimit)
	}
	if gotUA != "threadsentinel-test/1.0" {
		t.Errorf("expected user agent forwarded, got %q", gotUA)
	}
	if len(ds) != 2 {
		t.Fatalf("expected 2 discussions, got %d", len(ds))
	}
	d := ds[0]
	if d.ID != "1abcde" || d.Text != "We are outgrowing spreadsheets." || !d.IsSelf || d.Score != 14 || d.NumComments != 9 {
		t.Errorf("unexpected discussion %+v", d)
	}
	if d.Permalink != "https://www.reddit.com/r/smallbusiness/comments/1abcde/best_crm/" {
		t.Errorf("unexpected permalink %s", d.Permalink)
	}
	if d.CreatedAt.Unix() != 1760400000 {
		t.Errorf("unexpected created time %v", d.CreatedAt)
	}
}

func TestPublicSource_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	src := NewPublicSource("ua", "")
	src.baseURL = srv.URL
	if _, err := src.FetchDiscussions(context.Background(), "saas", 10); err == nil {
		t.Error("expected error for 429 response")
	}
}

func TestMockSource(t *testing.T) {
	m := NewMockSource()
	m.Set("saas", &model.Discussion{ID: "a"}, &model.Discussion{ID: "b"}, &model.Discussion{ID: "c"})
	boom := errors.New("listing unavailable")
	m.Fail("broken", boom)
	ctx := context.Background()

	ds, err := m.FetchDiscussions(ctx, "/r/saas", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(ds) != 2 || ds[0].ID != "a" {
		t.Errorf("expected first two fixtures, got %d", len(ds))
	}
	ds[0].ID = "mutated"
	again, _ := m.FetchDiscussions(ctx, "saas", 1)
	if again[0].ID != "a" {
		t.Error("fixtures must be copied on read")
	}

	if _, err := m.FetchDiscussions(ctx, "broken", 5); !errors.Is(err, boom) {
		t.Errorf("expected injected error, got %v", err)
	}
	generated, _ := m.FetchDiscussions(ctx, "startups", 3)
	if len(generated) != 3 {
		t.Errorf("expected 3 generated discussions, got %d", len(generated))
	}
	if m.Calls("saas") != 2 {
		t.Errorf("expected 2 calls for saas, got %d", m.Calls("saas"))
	}
}

func TestNew_Modes(t *testing.T) {
	if _, err := New(Options{Mode: "public"}); err == nil {
		t.Error("public mode without user agent must fail")
	}
	if src, err := New(Options{Mode: "mock"}); err != nil || src.Name() != "mock" {
		t.Errorf("mock mode: %v %v", src, err)
	}
	if _, err := New(Options{Mode: "scrape"}); err == nil {
		t.Error("unknown mode must fail")
	}
}

func TestNormalizeSubreddit(t *testing.T) {
	tests := map[string]string{"saas": "saas", "r/saas": "saas", "/r/saas": "saas", " startups ": "startups"}
	for in, want := range tests {
		if got := normalizeSubreddit(in); got != want {
			t.Errorf("normalizeSubreddit(%q) = %q, want %q", in, got, want)
		}
	}
}
