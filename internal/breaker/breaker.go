package breaker

import (
	"context"
	"fmt"
	"log"
	"time"

	"ThreadSentinel/internal/model"
)

// WorkerPosting is the worker type gating the posting cycle.
const WorkerPosting = "posting"

// Store persists one breaker row per worker type.
// UpdateBreaker must load (or initialise) the row, apply fn and save it atomically.
type Store interface {
	GetBreaker(ctx context.Context, workerType string) (*model.BreakerState, error)
	UpdateBreaker(ctx context.Context, workerType string, fn func(*model.BreakerState) error) (*model.BreakerState, error)
}

// Config holds the backoff policy.
type Config struct {
	FailureThreshold int
	BaseBackoff      time.Duration
	MaxBackoff       time.Duration
}

// DefaultConfig returns threshold 3, 15 minute base and a 4 hour ceiling.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 3,
		BaseBackoff:      15 * time.Minute,
		MaxBackoff:       240 * time.Minute,
	}
}

// Decision is the answer of CanExecute.
type Decision struct {
	Allowed      bool
	Reason       string
	BackoffUntil *time.Time
	Remaining    time.Duration
	CircuitOpen  bool
}

// FailureResult reports what a recorded failure did to the breaker.
type FailureResult struct {
	ConsecutiveFailures int
	BackoffTriggered    bool
	CircuitOpen         bool
	CircuitOpened       bool // this failure moved the breaker into circuit_open
	BackoffUntil        *time.Time
}

// Breaker is a persisted failure-counting gate per worker type.
type Breaker struct {
	store Store
	cfg   Config
	now   func() time.Time
}

// New creates a Breaker, filling zero config fields from DefaultConfig.
func New(store Store, cfg Config) *Breaker {
	def := DefaultConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = def.BaseBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = def.MaxBackoff
	}
	if cfg.MaxBackoff < cfg.BaseBackoff {
		cfg.MaxBackoff = cfg.BaseBackoff
	}
	return &Breaker{store: store, cfg: cfg, now: time.Now}
}

// BackoffDuration returns min(base * 2^(failures-threshold), max).
// The exponent is floored at zero so early high-severity trips get the base duration.
func (b *Breaker) BackoffDuration(failures int) time.Duration {
	exp := failures - b.cfg.FailureThreshold
	if exp < 0 {
		exp = 0
	}
	d := b.cfg.BaseBackoff
	for i := 0; i < exp; i++ {
		d *= 2
		if d >= b.cfg.MaxBackoff {
			return b.cfg.MaxBackoff
		}
	}
	if d > b.cfg.MaxBackoff {
		d = b.cfg.MaxBackoff
	}
	return d
}

// CanExecute reports whether work of workerType may proceed.
// An elapsed backoff is reset to active on observation.
func (b *Breaker) CanExecute(ctx context.Context, workerType string) (Decision, error) {
	now := b.now()
	dec := Decision{Allowed: true}

	_, err := b.store.UpdateBreaker(ctx, workerType, func(s *model.BreakerState) error {
		if s.BackoffUntil == nil {
			s.Status = model.BreakerActive
			return nil
		}
		if now.Before(*s.BackoffUntil) {
			until := *s.BackoffUntil
			dec.Allowed = false
			dec.BackoffUntil = &until
			dec.Remaining = until.Sub(now)
			dec.CircuitOpen = s.Status == model.BreakerCircuitOpen
			dec.Reason = fmt.Sprintf("%s breaker %s for another %s (%d consecutive failures)",
				workerType, s.Status, dec.Remaining.Round(time.Second), s.ConsecutiveFailures)
			return nil
		}

		log.Printf("[INFO] breaker %s: backoff elapsed, %s -> active", workerType, s.Status)
		s.Status = model.BreakerActive
		s.BackoffUntil = nil
		return nil
	})
	if err != nil {
		return Decision{}, fmt.Errorf("breaker can execute %s: %w", workerType, err)
	}
	return dec, nil
}

// RecordSuccess resets the failure count and clears any backoff.
func (b *Breaker) RecordSuccess(ctx context.Context, workerType string) error {
	now := b.now()
	_, err := b.store.UpdateBreaker(ctx, workerType, func(s *model.BreakerState) error {
		s.ConsecutiveFailures = 0
		s.BackoffUntil = nil
		s.Status = model.BreakerActive
		s.LastSuccessAt = &now
		return nil
	})
	if err != nil {
		return fmt.Errorf("breaker record success %s: %w", workerType, err)
	}
	return nil
}

// RecordFailure counts a failure and triggers backoff once the threshold is reached
// or the severity is high. Twice the threshold escalates to circuit_open.
func (b *Breaker) RecordFailure(ctx context.Context, workerType, reason string, severity model.Severity) (FailureResult, error) {
	now := b.now()
	var res FailureResult

	_, err := b.store.UpdateBreaker(ctx, workerType, func(s *model.BreakerState) error {
		s.ConsecutiveFailures++
		s.LastFailureAt = &now
		s.AppendFailure(model.FailureReason{At: now, Reason: reason, Severity: severity})
		res.ConsecutiveFailures = s.ConsecutiveFailures

		if s.ConsecutiveFailures < b.cfg.FailureThreshold && severity != model.SeverityHigh {
			return nil
		}

		until := now.Add(b.BackoffDuration(s.ConsecutiveFailures))
		if s.BackoffUntil != nil && s.BackoffUntil.After(until) {
			until = *s.BackoffUntil
		}
		wasOpen := s.Status == model.BreakerCircuitOpen
		s.BackoffUntil = &until
		s.Status = model.BreakerBackoff
		if s.ConsecutiveFailures >= 2*b.cfg.FailureThreshold {
			s.Status = model.BreakerCircuitOpen
		}

		res.BackoffTriggered = true
		res.CircuitOpen = s.Status == model.BreakerCircuitOpen
		res.CircuitOpened = res.CircuitOpen && !wasOpen
		res.BackoffUntil = &until
		return nil
	})
	if err != nil {
		return FailureResult{}, fmt.Errorf("breaker record failure %s: %w", workerType, err)
	}

	if res.BackoffTriggered {
		log.Printf("[WARN] breaker %s: %d consecutive failures (%s, %s), backing off until %s (circuit_open=%v)",
			workerType, res.ConsecutiveFailures, severity, reason, res.BackoffUntil.Format(time.RFC3339), res.CircuitOpen)
	} else {
		log.Printf("[WARN] breaker %s: failure %d/%d (%s): %s",
			workerType, res.ConsecutiveFailures, b.cfg.FailureThreshold, severity, reason)
	}
	return res, nil
}

// Reset is the operator override: back to active with a zero count.
func (b *Breaker) Reset(ctx context.Context, workerType string) error {
	_, err := b.store.UpdateBreaker(ctx, workerType, func(s *model.BreakerState) error {
		s.ConsecutiveFailures = 0
		s.BackoffUntil = nil
		s.Status = model.BreakerActive
		return nil
	})
	if err != nil {
		return fmt.Errorf("breaker reset %s: %w", workerType, err)
	}
	log.Printf("[INFO] breaker %s: manually reset", workerType)
	return nil
}

// State returns the persisted state for workerType.
func (b *Breaker) State(ctx context.Context, workerType string) (*model.BreakerState, error) {
	s, err := b.store.GetBreaker(ctx, workerType)
	if err != nil {
		return nil, fmt.Errorf("breaker state %s: %w", workerType, err)
	}
	return s, nil
}
