package trigger

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"ThreadSentinel/internal/accounts"
	"ThreadSentinel/internal/breaker"
	"ThreadSentinel/internal/model"
	"ThreadSentinel/internal/notifier"
)

// ErrCycleRunning is returned by RunNow while another cycle holds the guard.
var ErrCycleRunning = errors.New("a posting cycle is already running")

// Cycler runs one posting cycle.
type Cycler interface {
	RunCycle(ctx context.Context) (*model.CycleResult, error)
}

// Store is the campaign persistence the trigger reads and resets.
type Store interface {
	ListActiveCampaigns(ctx context.Context) ([]*model.Campaign, error)
	ListReadyCampaigns(ctx context.Context, now time.Time) ([]*model.Campaign, error)
	ResetDailyPostCounts(ctx context.Context) (int64, error)
	CountPostedSince(ctx context.Context, since time.Time) (int, error)
}

// QuotaReporter reports the AI calls left in the current window, -1 when uncapped.
type QuotaReporter interface {
	Remaining(ctx context.Context) (int, error)
}

// History persists finished cycles.
type History interface {
	RecordCycle(ctx context.Context, res *model.CycleResult) error
}

// Schedule holds the cron expressions, seconds field first.
type Schedule struct {
	CycleCron      string
	ReleaseCron    string
	DailyResetCron string
	// NotifyCycles sends a summary after every cycle that posted or failed.
	NotifyCycles bool
}

// Deps are the collaborators of the trigger. Quota, History and Notifier may be nil.
type Deps struct {
	Cycler   Cycler
	Store    Store
	History  History
	Breaker  *breaker.Breaker
	Accounts *accounts.Pool
	Quota    QuotaReporter
	Notifier notifier.Notifier
}

// Trigger owns the cron jobs and the at-most-one-cycle guard shared by cron,
// operator commands and the admin API.
type Trigger struct {
	Cron *cron.Cron

	cycler   Cycler
	store    Store
	history  History
	breaker  *breaker.Breaker
	accounts *accounts.Pool
	quota    QuotaReporter
	notifier notifier.Notifier
	sched    Schedule
	ctx      context.Context

	runMu   sync.Mutex
	running atomic.Bool

	lastMu sync.RWMutex
	last   *model.CycleResult
}

// New creates a Trigger whose jobs run under ctx. Cron times are UTC so the
// daily reset lines up with the AI quota window.
func New(ctx context.Context, deps Deps, sched Schedule) *Trigger {
	n := deps.Notifier
	if n == nil {
		n = notifier.Noop{}
	}
	return &Trigger{
		Cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(time.UTC),
			cron.WithLogger(cron.PrintfLogger(log.Default())),
		),
		cycler:   deps.Cycler,
		store:    deps.Store,
		history:  deps.History,
		breaker:  deps.Breaker,
		accounts: deps.Accounts,
		quota:    deps.Quota,
		notifier: n,
		sched:    sched,
		ctx:      ctx,
	}
}

// RegisterAll registers the cycle, cooldown release and daily reset jobs.
// An empty expression leaves that job out.
func (t *Trigger) RegisterAll() error {
	jobs := []struct {
		name string
		spec string
		fn   func()
	}{
		{"posting cycle", t.sched.CycleCron, t.cycleJob},
		{"cooldown release", t.sched.ReleaseCron, t.releaseJob},
		{"daily reset", t.sched.DailyResetCron, t.dailyResetJob},
	}
	for _, j := range jobs {
		if j.spec == "" {
			continue
		}
		if _, err := t.Cron.AddFunc(j.spec, j.fn); err != nil {
			return fmt.Errorf("register %s task: %w", j.name, err)
		}
	}
	return nil
}

// Start starts the cron scheduler.
func (t *Trigger) Start() {
	t.Cron.Start()
	log.Println("[INFO] trigger started")
}

// Stop stops the cron scheduler and waits for running jobs.
func (t *Trigger) Stop() {
	<-t.Cron.Stop().Done()
	log.Println("[INFO] trigger stopped")
}

// RunNow runs a cycle immediately unless one is already in progress.
func (t *Trigger) RunNow(ctx context.Context) (*model.CycleResult, error) {
	if !t.runMu.TryLock() {
		return nil, ErrCycleRunning
	}
	defer t.runMu.Unlock()
	t.running.Store(true)
	defer t.running.Store(false)

	res, err := t.cycler.RunCycle(ctx)
	if err != nil {
		return nil, err
	}
	t.lastMu.Lock()
	t.last = res
	t.lastMu.Unlock()
	if t.history != nil {
		if err := t.history.RecordCycle(ctx, res); err != nil {
			log.Printf("[ERROR] record cycle %s: %v", res.CycleID, err)
		}
	}
	return res, nil
}

// Running reports whether a cycle is in progress.
func (t *Trigger) Running() bool {
	return t.running.Load()
}

// LastResult returns the most recent completed cycle, or nil.
func (t *Trigger) LastResult() *model.CycleResult {
	t.lastMu.RLock()
	defer t.lastMu.RUnlock()
	return t.last
}

// Status assembles the operator snapshot.
func (t *Trigger) Status(ctx context.Context) (*model.StatusSnapshot, error) {
	st, err := t.breaker.State(ctx, breaker.WorkerPosting)
	if err != nil {
		return nil, err
	}
	avail, err := t.accounts.CheckAvailability(ctx)
	if err != nil {
		return nil, err
	}
	active, err := t.store.ListActiveCampaigns(ctx)
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	now := time.Now().UTC()
	ready, err := t.store.ListReadyCampaigns(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	posted, err := t.store.CountPostedSince(ctx, time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC))
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}

	remaining := -1
	if t.quota != nil {
		if remaining, err = t.quota.Remaining(ctx); err != nil {
			return nil, fmt.Errorf("status: %w", err)
		}
	}

	return &model.StatusSnapshot{
		Breaker:           st,
		AccountsTotal:     avail.Total,
		AccountsAvailable: avail.Count,
		NextAccountAt:     avail.NextAvailableAt,
		ActiveCampaigns:   len(active),
		ReadyCampaigns:    len(ready),
		PostsToday:        posted,
		AIQuotaRemaining:  remaining,
		CycleRunning:      t.Running(),
		LastCycle:         t.LastResult(),
	}, nil
}

func (t *Trigger) cycleJob() {
	res, err := t.RunNow(t.ctx)
	switch {
	case errors.Is(err, ErrCycleRunning):
		log.Println("[WARN] previous cycle still running, skipping this tick")
		return
	case err != nil:
		log.Printf("[ERROR] posting cycle: %v", err)
		t.trySend(fmt.Sprintf("❌ Posting cycle failed: %v", err))
		return
	}
	if t.sched.NotifyCycles && (res.TotalPosts > 0 || len(res.Errors) > 0) {
		t.trySend(notifier.FormatCycleSummary(res))
	}
}

func (t *Trigger) releaseJob() {
	if _, err := t.accounts.ReleaseExpired(t.ctx); err != nil {
		log.Printf("[ERROR] release cooldowns: %v", err)
	}
}

func (t *Trigger) dailyResetJob() {
	n, err := t.store.ResetDailyPostCounts(t.ctx)
	if err != nil {
		log.Printf("[ERROR] daily reset: %v", err)
		return
	}
	log.Printf("[INFO] daily post counters reset on %d campaign(s)", n)
}

func (t *Trigger) trySend(text string) {
	if err := t.notifier.Notify(t.ctx, text); err != nil {
		log.Printf("[ERROR] send notification: %v", err)
	}
}
