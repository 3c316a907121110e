package health

import (
	"sync"
	"time"
)

// Status represents the liveness state derived from probe results.
// It says nothing about the functional health of the supervised
// workload, only that probes succeed or fail.
type Status string

const (
	StatusStarting  Status = "starting"  // within the grace period
	StatusHealthy   Status = "healthy"   // last probe succeeded
	StatusUnhealthy Status = "unhealthy" // threshold consecutive failures reached
)

// Snapshot is a point-in-time view of the liveness signal
type Snapshot struct {
	Status              Status    `json:"status"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastProbeAt         time.Time `json:"last_probe_at,omitempty"`
	LastError           string    `json:"last_error,omitempty"`
}

// Signal tracks liveness across probe results.
//
// State machine: starting -> healthy -> unhealthy -> healthy. There is
// no terminal state; the signal is re-evaluated on every probe. Failures
// observed before the grace deadline do not count toward the unhealthy
// threshold. Any success resets the failure counter to zero.
type Signal struct {
	mu         sync.Mutex
	status     Status
	threshold  int
	graceUntil time.Time
	failures   int
	lastProbe  time.Time
	lastError  string
	now        func() time.Time
}

// NewSignal creates a liveness signal in the starting state.
// now may be nil, in which case time.Now is used.
func NewSignal(gracePeriod time.Duration, threshold int, now func() time.Time) *Signal {
	if now == nil {
		now = time.Now
	}
	if threshold <= 0 {
		threshold = 1
	}
	return &Signal{
		status:     StatusStarting,
		threshold:  threshold,
		graceUntil: now().Add(gracePeriod),
		now:        now,
	}
}

// ObserveSuccess records a successful probe and returns the new status.
// A success always moves the signal to healthy, including recovery from
// unhealthy, and resets the consecutive-failure counter.
func (s *Signal) ObserveSuccess() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failures = 0
	s.lastError = ""
	s.lastProbe = s.now()
	s.status = StatusHealthy
	return s.status
}

// ObserveFailure records a failed probe and returns the new status.
// Each call counts as exactly one failure; there is no retry within a
// probe attempt. Failures within the grace period are recorded but do
// not count toward the threshold.
func (s *Signal) ObserveFailure(err error) Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastProbe = s.now()
	if err != nil {
		s.lastError = err.Error()
	}

	if s.now().Before(s.graceUntil) && s.status == StatusStarting {
		return s.status
	}

	s.failures++
	if s.failures >= s.threshold {
		s.status = StatusUnhealthy
	}
	return s.status
}

// Status returns the current liveness status
func (s *Signal) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// ConsecutiveFailures returns the current consecutive-failure count
func (s *Signal) ConsecutiveFailures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures
}

// Snapshot returns a consistent view of the signal
func (s *Signal) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Status:              s.status,
		ConsecutiveFailures: s.failures,
		LastProbeAt:         s.lastProbe,
		LastError:           s.lastError,
	}
}
