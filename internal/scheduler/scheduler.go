package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"ThreadSentinel/internal/accounts"
	"ThreadSentinel/internal/breaker"
	"ThreadSentinel/internal/collector"
	"ThreadSentinel/internal/compose"
	"ThreadSentinel/internal/dedup"
	"ThreadSentinel/internal/model"
	"ThreadSentinel/internal/notifier"
	"ThreadSentinel/internal/scoring"
)

// CampaignStore is the campaign persistence the scheduler needs.
type CampaignStore interface {
	ListReadyCampaigns(ctx context.Context, now time.Time) ([]*model.Campaign, error)
	ListActiveCampaigns(ctx context.Context) ([]*model.Campaign, error)
	UpdateCampaign(ctx context.Context, id string, fn func(*model.Campaign) error) (*model.Campaign, error)
}

// Config tunes a posting cycle.
type Config struct {
	CandidateLimit         int
	CampaignDelay          time.Duration
	DefaultSubreddits      []string
	DefaultCooldownMinutes int
	// MaxScheduleDrift limits self-healing to schedules further out than
	// interval + drift. Zero resets every future schedule.
	MaxScheduleDrift time.Duration
}

// DefaultConfig returns 25 candidates per campaign, a 5 second inter-campaign
// delay and a 30 minute fallback account cooldown.
func DefaultConfig() Config {
	return Config{
		CandidateLimit:         25,
		CampaignDelay:          5 * time.Second,
		DefaultCooldownMinutes: 30,
	}
}

// Deps are the collaborators of the scheduler.
type Deps struct {
	Campaigns CampaignStore
	Breaker   *breaker.Breaker
	Accounts  *accounts.Pool
	Source    collector.Source
	Scorer    scoring.Scorer
	Dedup     *dedup.Guard
	Composer  compose.Composer
	Notifier  notifier.Notifier
}

// Scheduler runs posting cycles. It has no timer of its own; a trigger calls RunCycle.
type Scheduler struct {
	campaigns CampaignStore
	breaker   *breaker.Breaker
	accounts  *accounts.Pool
	source    collector.Source
	scorer    scoring.Scorer
	dedup     *dedup.Guard
	composer  compose.Composer
	notifier  notifier.Notifier
	cfg       Config

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Scheduler. Zero config fields take DefaultConfig values,
// except CampaignDelay which may be zero.
func New(deps Deps, cfg Config) *Scheduler {
	def := DefaultConfig()
	if cfg.CandidateLimit <= 0 {
		cfg.CandidateLimit = def.CandidateLimit
	}
	if cfg.CampaignDelay < 0 {
		cfg.CampaignDelay = def.CampaignDelay
	}
	if cfg.DefaultCooldownMinutes <= 0 {
		cfg.DefaultCooldownMinutes = def.DefaultCooldownMinutes
	}
	n := deps.Notifier
	if n == nil {
		n = notifier.Noop{}
	}
	return &Scheduler{
		campaigns: deps.Campaigns,
		breaker:   deps.Breaker,
		accounts:  deps.Accounts,
		source:    deps.Source,
		scorer:    deps.Scorer,
		dedup:     deps.Dedup,
		composer:  deps.Composer,
		notifier:  n,
		cfg:       cfg,
		now:       time.Now,
		sleep:     sleepCtx,
	}
}

// RunCycle executes one posting cycle. Gating conditions produce a skipped
// result; only store failures before the campaign loop return an error.
func (s *Scheduler) RunCycle(ctx context.Context) (*model.CycleResult, error) {
	res := &model.CycleResult{CycleID: uuid.NewString(), StartedAt: s.now()}
	log.Printf("[INFO] cycle %s started", res.CycleID)
	defer func() {
		res.FinishedAt = s.now()
	}()

	released, err := s.accounts.ReleaseExpired(ctx)
	if err != nil {
		return nil, fmt.Errorf("run cycle: %w", err)
	}
	if released > 0 {
		log.Printf("[INFO] released %d account(s) from cooldown", released)
	}

	decision, err := s.breaker.CanExecute(ctx, breaker.WorkerPosting)
	if err != nil {
		return nil, fmt.Errorf("run cycle: %w", err)
	}
	if !decision.Allowed {
		return s.skip(res, decision.Reason), nil
	}

	avail, err := s.accounts.CheckAvailability(ctx)
	if err != nil {
		return nil, fmt.Errorf("run cycle: %w", err)
	}
	if !avail.Available {
		s.recordFailure(ctx, avail.Reason, model.SeverityLow)
		return s.skip(res, avail.Reason), nil
	}

	ready, err := s.readyCampaigns(ctx)
	if err != nil {
		return nil, fmt.Errorf("run cycle: %w", err)
	}
	if len(ready) == 0 {
		return s.skip(res, "no campaigns ready"), nil
	}

	for i, c := range ready {
		if i > 0 {
			if err := s.sleep(ctx, s.cfg.CampaignDelay); err != nil {
				res.Errors = append(res.Errors, fmt.Sprintf("cycle interrupted: %v", err))
				break
			}
		}
		out := s.processCampaign(ctx, c)
		res.Outcomes = append(res.Outcomes, out)
		res.CampaignsProcessed++
		switch out.State {
		case model.OutcomePosted:
			res.TotalPosts++
		case model.OutcomeFailed:
			res.Errors = append(res.Errors, fmt.Sprintf("campaign %s: %s", c.ID, out.Reason))
		}
	}

	log.Printf("[INFO] cycle %s finished: %d campaign(s), %d post(s), %d error(s)",
		res.CycleID, res.CampaignsProcessed, res.TotalPosts, len(res.Errors))
	return res, nil
}

func (s *Scheduler) skip(res *model.CycleResult, reason string) *model.CycleResult {
	res.Skipped = true
	res.SkipReason = reason
	log.Printf("[INFO] cycle %s skipped: %s", res.CycleID, reason)
	return res
}

// readyCampaigns loads campaigns passing the readiness gate, self-healing
// stuck schedules once when none qualify.
func (s *Scheduler) readyCampaigns(ctx context.Context) ([]*model.Campaign, error) {
	now := s.now()
	ready, err := s.campaigns.ListReadyCampaigns(ctx, now)
	if err != nil {
		return nil, err
	}
	if len(ready) > 0 {
		return ready, nil
	}

	active, err := s.campaigns.ListActiveCampaigns(ctx)
	if err != nil {
		return nil, err
	}
	if len(active) == 0 {
		return nil, nil
	}

	healed := 0
	for _, c := range active {
		if !s.stuck(c, now) {
			continue
		}
		if _, err := s.campaigns.UpdateCampaign(ctx, c.ID, func(c *model.Campaign) error {
			c.NextEligibleAt = &now
			return nil
		}); err != nil {
			return nil, err
		}
		healed++
	}

	if healed > 0 {
		log.Printf("[WARN] no campaigns ready, reset next eligible time of %d campaign(s)", healed)
		// A healed schedule equals now; query just past it.
		ready, err = s.campaigns.ListReadyCampaigns(ctx, now.Add(time.Millisecond))
		if err != nil {
			return nil, err
		}
		if len(ready) > 0 {
			return ready, nil
		}
	}

	for _, c := range active {
		if _, err := s.campaigns.UpdateCampaign(ctx, c.ID, func(c *model.Campaign) error {
			c.AdvanceRotation(s.cfg.DefaultSubreddits)
			return nil
		}); err != nil {
			return nil, err
		}
	}
	log.Printf("[INFO] no campaigns ready, advanced rotation of %d active campaign(s)", len(active))
	return nil, nil
}

func (s *Scheduler) stuck(c *model.Campaign, now time.Time) bool {
	if c.NextEligibleAt == nil || !c.NextEligibleAt.After(now) {
		return false
	}
	if s.cfg.MaxScheduleDrift <= 0 {
		return true
	}
	limit := now.Add(c.Interval() + s.cfg.MaxScheduleDrift)
	return c.NextEligibleAt.After(limit)
}

// recordFailure records a breaker failure and alerts when it opens the circuit.
func (s *Scheduler) recordFailure(ctx context.Context, reason string, severity model.Severity) {
	fr, err := s.breaker.RecordFailure(ctx, breaker.WorkerPosting, reason, severity)
	if err != nil {
		log.Printf("[ERROR] record breaker failure: %v", err)
		return
	}
	if fr.CircuitOpened {
		s.alert(ctx, notifier.FormatCircuitOpen(breaker.WorkerPosting, fr.ConsecutiveFailures, fr.BackoffUntil, reason))
	}
}

func (s *Scheduler) alert(ctx context.Context, text string) {
	if err := s.notifier.Notify(ctx, text); err != nil {
		log.Printf("[ERROR] send alert: %v", err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
