package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ThreadSentinel/internal/accounts"
	"ThreadSentinel/internal/model"
	"ThreadSentinel/internal/store"
	"ThreadSentinel/internal/trigger"
)

type fakeRunner struct {
	err    error
	runCtx context.Context
}

func (f *fakeRunner) RunNow(ctx context.Context) (*model.CycleResult, error) {
	f.runCtx = ctx
	if f.err != nil {
		return nil, f.err
	}
	return &model.CycleResult{CycleID: "cy1", TotalPosts: 2}, nil
}

func (f *fakeRunner) Status(context.Context) (*model.StatusSnapshot, error) {
	return &model.StatusSnapshot{AccountsTotal: 3, AccountsAvailable: 1, AIQuotaRemaining: -1}, nil
}

type fakeAccounts struct {
	reset []string
}

func (f *fakeAccounts) Summaries(context.Context) ([]accounts.Summary, error) {
	return []accounts.Summary{{ID: "a1", Username: "poster1", Status: model.AccountActive}}, nil
}

func (f *fakeAccounts) Reset(_ context.Context, id string) error {
	if id != "a1" {
		return fmt.Errorf("reset account %s: %w", id, store.ErrNotFound)
	}
	f.reset = append(f.reset, id)
	return nil
}

type fakeBreakers struct {
	reset []string
}

func (f *fakeBreakers) Reset(_ context.Context, worker string) error {
	f.reset = append(f.reset, worker)
	return nil
}

type fakeStore struct {
	pingErr error
}

func (f *fakeStore) Ping(context.Context) error { return f.pingErr }

func (f *fakeStore) RecentPosted(_ context.Context, limit int) ([]*model.PostedRecord, error) {
	return []*model.PostedRecord{{CampaignID: "c1", DiscussionID: "d1", Score: 81.5, CreatedAt: time.Unix(1700000000, 0)}}, nil
}

func (f *fakeStore) RecentCycles(_ context.Context, limit int) ([]*model.CycleResult, error) {
	return []*model.CycleResult{{CycleID: "cy0", Skipped: true, SkipReason: "no campaigns ready"}}, nil
}

func newTestServer(t *testing.T, runner *fakeRunner, st *fakeStore, token string) (*httptest.Server, *fakeAccounts, *fakeBreakers) {
	t.Helper()
	accts := &fakeAccounts{}
	brk := &fakeBreakers{}
	srv := httptest.NewServer(NewRouter(NewHandler(runner, accts, brk, st), token))
	t.Cleanup(srv.Close)
	return srv, accts, brk
}

func do(t *testing.T, method, url, token string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode %s %s: %v", method, url, err)
	}
	return resp.StatusCode, body
}

func TestRoutes(t *testing.T) {
	srv, accts, brk := newTestServer(t, &fakeRunner{}, &fakeStore{}, "")

	tests := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, "/healthz", http.StatusOK},
		{http.MethodGet, "/v1/status", http.StatusOK},
		{http.MethodPost, "/v1/cycles", http.StatusOK},
		{http.MethodGet, "/v1/cycles", http.StatusOK},
		{http.MethodGet, "/v1/cycles?limit=0", http.StatusBadRequest},
		{http.MethodGet, "/v1/accounts", http.StatusOK},
		{http.MethodPost, "/v1/accounts/a1/reset", http.StatusOK},
		{http.MethodPost, "/v1/accounts/missing/reset", http.StatusNotFound},
		{http.MethodPost, "/v1/breakers/posting/reset", http.StatusOK},
		{http.MethodPost, "/v1/breakers/scraping/reset", http.StatusNotFound},
		{http.MethodGet, "/v1/posted?limit=10", http.StatusOK},
		{http.MethodGet, "/v1/posted?limit=abc", http.StatusBadRequest},
	}
	for _, tt := range tests {
		status, body := do(t, tt.method, srv.URL+tt.path, "")
		if status != tt.status {
			t.Errorf("%s %s: expected %d, got %d (%v)", tt.method, tt.path, tt.status, status, body)
		}
	}

	if len(accts.reset) != 1 || accts.reset[0] != "a1" {
		t.Errorf("unexpected account resets %v", accts.reset)
	}
	if len(brk.reset) != 1 || brk.reset[0] != "posting" {
		t.Errorf("unexpected breaker resets %v", brk.reset)
	}
}

func TestRunCycle_ConflictWhileRunning(t *testing.T) {
	srv, _, _ := newTestServer(t, &fakeRunner{err: trigger.ErrCycleRunning}, &fakeStore{}, "")

	status, body := do(t, http.MethodPost, srv.URL+"/v1/cycles", "")
	if status != http.StatusConflict {
		t.Fatalf("expected 409, got %d", status)
	}
	e, _ := body["error"].(map[string]any)
	if e["code"] != "cycle_running" {
		t.Errorf("unexpected error body %v", body)
	}
}

func TestRunCycle_DetachedFromRequest(t *testing.T) {
	runner := &fakeRunner{}
	srv, _, _ := newTestServer(t, runner, &fakeStore{}, "")

	if status, _ := do(t, http.MethodPost, srv.URL+"/v1/cycles", ""); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if runner.runCtx == nil {
		t.Fatal("runner not called")
	}
	if _, ok := runner.runCtx.Deadline(); ok {
		t.Error("manual cycle must not inherit the request timeout")
	}
	if err := runner.runCtx.Err(); err != nil {
		t.Errorf("manual cycle context ended with the request: %v", err)
	}
}

func TestHealth_StoreDown(t *testing.T) {
	srv, _, _ := newTestServer(t, &fakeRunner{}, &fakeStore{pingErr: errors.New("disk I/O error")}, "")
	if status, _ := do(t, http.MethodGet, srv.URL+"/healthz", ""); status != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", status)
	}
}

func TestBearerAuth(t *testing.T) {
	srv, _, _ := newTestServer(t, &fakeRunner{}, &fakeStore{}, "s3cret")

	if status, _ := do(t, http.MethodGet, srv.URL+"/v1/status", ""); status != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", status)
	}
	if status, _ := do(t, http.MethodGet, srv.URL+"/v1/status", "wrong"); status != http.StatusUnauthorized {
		t.Errorf("expected 401 with wrong token, got %d", status)
	}
	if status, _ := do(t, http.MethodGet, srv.URL+"/v1/status", "s3cret"); status != http.StatusOK {
		t.Errorf("expected 200 with token, got %d", status)
	}
	if status, _ := do(t, http.MethodGet, srv.URL+"/healthz", ""); status != http.StatusOK {
		t.Errorf("health route must stay open, got %d", status)
	}
}
