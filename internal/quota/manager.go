package quota

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrQuotaExceeded signals that no AI call may be made in the current window.
var ErrQuotaExceeded = errors.New("ai quota exceeded")

// Counter persists per-window call counts.
type Counter interface {
	IncrementUsage(ctx context.Context, window string) (int64, error)
	Usage(ctx context.Context, window string) (int64, error)
}

// Config is the AI call budget. DailyLimit <= 0 disables the daily cap,
// PerMinute <= 0 disables burst limiting.
type Config struct {
	DailyLimit int
	PerMinute  int
}

// Manager enforces the daily call budget and a per-minute burst limit.
type Manager struct {
	counter Counter
	cfg     Config
	limiter *rate.Limiter
	now     func() time.Time

	mu        sync.Mutex
	exhausted string
}

// NewManager creates a Manager counting calls in counter.
func NewManager(counter Counter, cfg Config) *Manager {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.PerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.PerMinute)), cfg.PerMinute)
	}
	return &Manager{
		counter: counter,
		cfg:     cfg,
		limiter: limiter,
		now:     time.Now,
	}
}

// WindowKey is the UTC date a call is counted against.
func WindowKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Reserve consumes one call from the budget or returns ErrQuotaExceeded.
func (m *Manager) Reserve(ctx context.Context) error {
	window := WindowKey(m.now())
	if m.isExhausted(window) {
		return ErrQuotaExceeded
	}
	if !m.limiter.Allow() {
		return fmt.Errorf("%w: per-minute limit of %d reached", ErrQuotaExceeded, m.cfg.PerMinute)
	}

	used, err := m.counter.IncrementUsage(ctx, window)
	if err != nil {
		return fmt.Errorf("reserve ai quota: %w", err)
	}
	if m.cfg.DailyLimit > 0 && used > int64(m.cfg.DailyLimit) {
		m.markExhausted(window)
		return fmt.Errorf("%w: %d/%d calls used for %s", ErrQuotaExceeded, used-1, m.cfg.DailyLimit, window)
	}
	return nil
}

// Remaining returns calls left in the current window, or -1 when uncapped.
func (m *Manager) Remaining(ctx context.Context) (int, error) {
	if m.cfg.DailyLimit <= 0 {
		return -1, nil
	}
	window := WindowKey(m.now())
	if m.isExhausted(window) {
		return 0, nil
	}
	used, err := m.counter.Usage(ctx, window)
	if err != nil {
		return 0, fmt.Errorf("read ai quota: %w", err)
	}
	left := int64(m.cfg.DailyLimit) - used
	if left < 0 {
		left = 0
	}
	return int(left), nil
}

// MarkExhausted closes the current window after the AI service reported its own quota as spent.
func (m *Manager) MarkExhausted() {
	window := WindowKey(m.now())
	if !m.isExhausted(window) {
		log.Printf("[WARN] ai service reported quota exhausted, heuristic scoring until %s ends", window)
	}
	m.markExhausted(window)
}

func (m *Manager) isExhausted(window string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.exhausted == window
}

func (m *Manager) markExhausted(window string) {
	m.mu.Lock()
	m.exhausted = window
	m.mu.Unlock()
}

// MemoryCounter is a process-local Counter.
type MemoryCounter struct {
	mu     sync.Mutex
	counts map[string]int64
}

// NewMemoryCounter creates an empty MemoryCounter.
func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{counts: make(map[string]int64)}
}

func (c *MemoryCounter) IncrementUsage(_ context.Context, window string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[window]++
	return c.counts[window], nil
}

func (c *MemoryCounter) Usage(_ context.Context, window string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[window], nil
}
