package model

import "time"

// BreakerStatus is the circuit breaker state for one worker type.
type BreakerStatus string

const (
	BreakerActive      BreakerStatus = "active"
	BreakerBackoff     BreakerStatus = "backoff"
	BreakerCircuitOpen BreakerStatus = "circuit_open"
)

// Severity grades a recorded failure.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// MaxRecentFailures caps the failure-reason ring.
const MaxRecentFailures = 10

// FailureReason is one entry of the recent-failures ring.
type FailureReason struct {
	At       time.Time `json:"at"`
	Reason   string    `json:"reason"`
	Severity Severity  `json:"severity"`
}

// BreakerState is the persisted breaker row for a worker type.
type BreakerState struct {
	WorkerType          string          `json:"worker_type"`
	Status              BreakerStatus   `json:"status"`
	ConsecutiveFailures int             `json:"consecutive_failures"`
	LastFailureAt       *time.Time      `json:"last_failure_at,omitempty"`
	BackoffUntil        *time.Time      `json:"backoff_until,omitempty"`
	RecentFailures      []FailureReason `json:"recent_failures"`
	LastSuccessAt       *time.Time      `json:"last_success_at,omitempty"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// AppendFailure pushes a reason onto the ring, dropping the oldest past the cap.
func (s *BreakerState) AppendFailure(f FailureReason) {
	s.RecentFailures = append(s.RecentFailures, f)
	if len(s.RecentFailures) > MaxRecentFailures {
		s.RecentFailures = s.RecentFailures[len(s.RecentFailures)-MaxRecentFailures:]
	}
}
