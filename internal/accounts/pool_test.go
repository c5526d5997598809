package accounts

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"ThreadSentinel/internal/model"
	"ThreadSentinel/internal/transport"
)

type memStore struct {
	rows map[string]*model.Account
}

func newMemStore(accts ...*model.Account) *memStore {
	m := &memStore{rows: make(map[string]*model.Account)}
	for _, a := range accts {
		m.rows[a.ID] = a
	}
	return m
}

func (m *memStore) ListAccounts(_ context.Context) ([]*model.Account, error) {
	out := make([]*model.Account, 0, len(m.rows))
	for _, a := range m.rows {
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) GetAccount(_ context.Context, id string) (*model.Account, error) {
	a, ok := m.rows[id]
	if !ok {
		return nil, fmt.Errorf("account %s not found", id)
	}
	cp := *a
	return &cp, nil
}

func (m *memStore) UpdateAccount(ctx context.Context, id string, fn func(*model.Account) error) (*model.Account, error) {
	a, err := m.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(a); err != nil {
		return nil, err
	}
	m.rows[id] = a
	return a, nil
}

type fakePoster struct {
	err  error
	reqs []transport.SubmitRequest
}

func (f *fakePoster) Submit(_ context.Context, req transport.SubmitRequest) (*transport.SubmitResult, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	return &transport.SubmitResult{CommentID: "c1", CommentURL: "https://www.reddit.com/c1"}, nil
}

func poolAccount(id string, lastUsed *time.Time) *model.Account {
	return &model.Account{
		ID:                 id,
		Credentials:        model.Credentials{Username: "user_" + id, Password: "secret"},
		IsDiscussionPoster: true,
		IsValidated:        true,
		Status:             model.AccountActive,
		LastUsedAt:         lastUsed,
		CooldownMinutes:    30,
		IsAvailable:        true,
	}
}

func ptr(t time.Time) *time.Time { return &t }

func newTestPool(now time.Time, poster transport.Poster, accts ...*model.Account) (*Pool, *memStore) {
	st := newMemStore(accts...)
	p := NewPool(st, poster)
	p.now = func() time.Time { return now }
	return p, st
}

func TestSelectNext_LeastRecentlyUsed(t *testing.T) {
	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	t1 := now.Add(-1 * time.Hour)
	t2 := now.Add(-3 * time.Hour)

	p, _ := newTestPool(now, &fakePoster{}, poolAccount("a", ptr(t1)), poolAccount("b", ptr(t2)))
	got, err := p.SelectNext(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.ID != "b" {
		t.Fatalf("expected account b (older last_used_at), got %+v", got)
	}
}

func TestSelectNext_NeverUsedFirst(t *testing.T) {
	now := time.Now()
	p, _ := newTestPool(now, &fakePoster{},
		poolAccount("a", ptr(now.Add(-48*time.Hour))),
		poolAccount("z", nil),
	)
	got, err := p.SelectNext(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.ID != "z" {
		t.Fatalf("expected never-used account z, got %+v", got)
	}
}

func TestSelectNext_ExcludesIneligible(t *testing.T) {
	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

	banned := poolAccount("banned", nil)
	banned.Status = model.AccountBanned
	credErr := poolAccount("cred", nil)
	credErr.Status = model.AccountCredentialError
	notPoster := poolAccount("optout", nil)
	notPoster.IsDiscussionPoster = false
	unvalidated := poolAccount("unvalidated", nil)
	unvalidated.IsValidated = false
	cooling := poolAccount("cooling", ptr(now.Add(-10*time.Minute)))
	cooling.IsAvailable = false
	cooling.CooldownUntil = ptr(now.Add(20 * time.Minute))

	p, _ := newTestPool(now, &fakePoster{}, banned, credErr, notPoster, unvalidated, cooling)
	got, err := p.SelectNext(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatalf("expected no eligible account, got %+v", got)
	}

	av, err := p.CheckAvailability(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if av.Available || av.Count != 0 || av.Total != 1 {
		t.Errorf("expected 0/1 available, got %+v", av)
	}
	if av.NextAvailableAt == nil || !av.NextAvailableAt.Equal(now.Add(20*time.Minute)) {
		t.Errorf("expected next available at cooldown end, got %v", av.NextAvailableAt)
	}
	if av.Reason == "" {
		t.Error("expected a reason when nothing is available")
	}
}

func TestAvailability_CooldownRules(t *testing.T) {
	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		acct func() *model.Account
		want bool
	}{
		{"available flag", func() *model.Account { return poolAccount("a", ptr(now)) }, true},
		{"explicit cooldown elapsed", func() *model.Account {
			a := poolAccount("a", ptr(now.Add(-time.Minute)))
			a.IsAvailable = false
			a.CooldownUntil = ptr(now.Add(-time.Second))
			return a
		}, true},
		{"explicit cooldown pending", func() *model.Account {
			a := poolAccount("a", ptr(now.Add(-2*time.Hour)))
			a.IsAvailable = false
			a.CooldownUntil = ptr(now.Add(time.Minute))
			return a
		}, false},
		{"implicit cooldown elapsed", func() *model.Account {
			a := poolAccount("a", ptr(now.Add(-31*time.Minute)))
			a.IsAvailable = false
			return a
		}, true},
		{"implicit cooldown pending", func() *model.Account {
			a := poolAccount("a", ptr(now.Add(-29*time.Minute)))
			a.IsAvailable = false
			return a
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.acct().EligibleAt(now); got != tt.want {
				t.Errorf("expected eligible=%v, got %v", tt.want, got)
			}
		})
	}
}

func TestMarkUsed_StartsCooldown(t *testing.T) {
	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	p, st := newTestPool(now, &fakePoster{}, poolAccount("a", nil))

	if err := p.MarkUsed(context.Background(), "a", 45); err != nil {
		t.Fatal(err)
	}
	a := st.rows["a"]
	if a.IsAvailable {
		t.Error("expected account unavailable after use")
	}
	if a.LastUsedAt == nil || !a.LastUsedAt.Equal(now) {
		t.Errorf("expected last_used_at=now, got %v", a.LastUsedAt)
	}
	if a.CooldownUntil == nil || !a.CooldownUntil.Equal(now.Add(45*time.Minute)) {
		t.Errorf("expected cooldown until now+45m, got %v", a.CooldownUntil)
	}
	if a.TotalPosts != 1 {
		t.Errorf("expected 1 total post, got %d", a.TotalPosts)
	}

	ref, err := p.SelectNext(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if ref != nil {
		t.Errorf("expected no account during cooldown, got %+v", ref)
	}
}

func TestMarkUsed_RejectsBannedAccount(t *testing.T) {
	a := poolAccount("a", nil)
	a.Status = model.AccountBanned
	p, _ := newTestPool(time.Now(), &fakePoster{}, a)

	err := p.MarkUsed(context.Background(), "a", 30)
	if !errors.Is(err, ErrAccountUnavailable) {
		t.Errorf("expected ErrAccountUnavailable, got %v", err)
	}
}

func TestMarkUsed_RejectsSecondUseDuringCooldown(t *testing.T) {
	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	p, st := newTestPool(now, &fakePoster{}, poolAccount("a", nil))
	ctx := context.Background()

	if err := p.MarkUsed(ctx, "a", 45); err != nil {
		t.Fatal(err)
	}
	if err := p.MarkUsed(ctx, "a", 45); !errors.Is(err, ErrAccountUnavailable) {
		t.Errorf("expected ErrAccountUnavailable for second use, got %v", err)
	}
	if a := st.rows["a"]; a.TotalPosts != 1 || !a.CooldownUntil.Equal(now.Add(45*time.Minute)) {
		t.Errorf("second use must not touch the row: total_posts=%d cooldown_until=%v", a.TotalPosts, a.CooldownUntil)
	}

	p.now = func() time.Time { return now.Add(45 * time.Minute) }
	if err := p.MarkUsed(ctx, "a", 45); err != nil {
		t.Errorf("expected use after cooldown to succeed, got %v", err)
	}
}

func TestReleaseExpired_Idempotent(t *testing.T) {
	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	expired := poolAccount("expired", ptr(now.Add(-time.Hour)))
	expired.IsAvailable = false
	expired.CooldownUntil = ptr(now.Add(-time.Minute))
	pending := poolAccount("pending", ptr(now))
	pending.IsAvailable = false
	pending.CooldownUntil = ptr(now.Add(time.Hour))

	p, st := newTestPool(now, &fakePoster{}, expired, pending)
	ctx := context.Background()

	n, err := p.ReleaseExpired(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected 1 released, got %d", n)
	}
	if !st.rows["expired"].IsAvailable || st.rows["expired"].CooldownUntil != nil {
		t.Errorf("expected expired account released, got %+v", st.rows["expired"])
	}
	if st.rows["pending"].IsAvailable {
		t.Error("pending cooldown must not be released")
	}

	n, err = p.ReleaseExpired(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("second release should be a no-op, released %d", n)
	}
}

func TestSubmit_TerminalFailuresExcludeAccount(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status model.AccountStatus
	}{
		{"banned", fmt.Errorf("%w: suspended", transport.ErrAccountBanned), model.AccountBanned},
		{"credentials", fmt.Errorf("%w: invalid_grant", transport.ErrInvalidCredentials), model.AccountCredentialError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			poster := &fakePoster{err: tt.err}
			p, st := newTestPool(time.Now(), poster, poolAccount("a", nil))
			ctx := context.Background()

			ref, err := p.SelectNext(ctx)
			if err != nil || ref == nil {
				t.Fatalf("select: %v %v", ref, err)
			}
			if _, err := p.Submit(ctx, ref, "d1", "hello"); !transport.IsTerminal(err) {
				t.Fatalf("expected terminal error, got %v", err)
			}
			if st.rows["a"].Status != tt.status {
				t.Errorf("expected status %s, got %s", tt.status, st.rows["a"].Status)
			}

			ref, err = p.SelectNext(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if ref != nil {
				t.Error("terminal account must not be selected again")
			}

			if err := p.Reset(ctx, "a"); err != nil {
				t.Fatal(err)
			}
			if ref, _ := p.SelectNext(ctx); ref == nil {
				t.Error("expected account selectable after operator reset")
			}
		})
	}
}

func TestSubmit_PassesCredentialsAndProxy(t *testing.T) {
	a := poolAccount("a", nil)
	a.ProxyURL = "http://proxy.local:3128"
	poster := &fakePoster{}
	p, _ := newTestPool(time.Now(), poster, a)

	ref, _ := p.SelectNext(context.Background())
	res, err := p.Submit(context.Background(), ref, "d1", "hello")
	if err != nil {
		t.Fatal(err)
	}
	if res.CommentID != "c1" {
		t.Errorf("unexpected result %+v", res)
	}
	if len(poster.reqs) != 1 {
		t.Fatalf("expected 1 request, got %d", len(poster.reqs))
	}
	req := poster.reqs[0]
	if req.Credentials.Password != "secret" || req.ProxyURL != "http://proxy.local:3128" || req.DiscussionID != "d1" {
		t.Errorf("unexpected request %+v", req)
	}
}
