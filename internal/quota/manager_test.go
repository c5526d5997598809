package quota

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestManager(cfg Config, now *time.Time) *Manager {
	m := NewManager(NewMemoryCounter(), cfg)
	m.now = func() time.Time { return *now }
	return m
}

func TestReserve_DailyLimit(t *testing.T) {
	now := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	m := newTestManager(Config{DailyLimit: 3}, &now)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := m.Reserve(ctx); err != nil {
			t.Fatalf("reserve %d: %v", i, err)
		}
	}
	if err := m.Reserve(ctx); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
	if left, _ := m.Remaining(ctx); left != 0 {
		t.Errorf("expected 0 remaining, got %d", left)
	}

	now = now.Add(24 * time.Hour)
	if err := m.Reserve(ctx); err != nil {
		t.Errorf("expected new window to allow calls, got %v", err)
	}
	if left, _ := m.Remaining(ctx); left != 2 {
		t.Errorf("expected 2 remaining in new window, got %d", left)
	}
}

func TestReserve_PerMinuteBurst(t *testing.T) {
	now := time.Now()
	m := newTestManager(Config{PerMinute: 2}, &now)
	ctx := context.Background()

	if err := m.Reserve(ctx); err != nil {
		t.Fatal(err)
	}
	if err := m.Reserve(ctx); err != nil {
		t.Fatal(err)
	}
	if err := m.Reserve(ctx); !errors.Is(err, ErrQuotaExceeded) {
		t.Errorf("expected burst limit to trip, got %v", err)
	}
}

func TestMarkExhausted(t *testing.T) {
	now := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	m := newTestManager(Config{DailyLimit: 100}, &now)
	ctx := context.Background()

	m.MarkExhausted()
	if err := m.Reserve(ctx); !errors.Is(err, ErrQuotaExceeded) {
		t.Errorf("expected exhausted window, got %v", err)
	}
	if left, _ := m.Remaining(ctx); left != 0 {
		t.Errorf("expected 0 remaining, got %d", left)
	}

	now = now.Add(24 * time.Hour)
	if err := m.Reserve(ctx); err != nil {
		t.Errorf("expected next window to reopen, got %v", err)
	}
}

func TestRemaining_Uncapped(t *testing.T) {
	now := time.Now()
	m := newTestManager(Config{}, &now)
	left, err := m.Remaining(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if left != -1 {
		t.Errorf("expected -1 for uncapped budget, got %d", left)
	}
}

func TestWindowKey(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)
	got := WindowKey(time.Date(2026, 10, 15, 3, 0, 0, 0, loc))
	if got != "2026-10-14" {
		t.Errorf("expected UTC date 2026-10-14, got %s", got)
	}
}
