package health

import (
	"errors"
	"testing"
	"time"
)

// fakeClock lets tests move through the grace period deterministically
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newTestSignal(grace time.Duration, threshold int) (*Signal, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	return NewSignal(grace, threshold, clock.Now), clock
}

func TestSignalStartsInStarting(t *testing.T) {
	s, _ := newTestSignal(20*time.Second, 3)
	if got := s.Status(); got != StatusStarting {
		t.Errorf("initial status = %v, want %v", got, StatusStarting)
	}
}

func TestFailuresDuringGraceDoNotCount(t *testing.T) {
	// Two failing probes within the 20s grace period leave the signal
	// in starting and the counter at zero.
	s, clock := newTestSignal(20*time.Second, 3)

	clock.Advance(5 * time.Second)
	if got := s.ObserveFailure(errors.New("probe timed out")); got != StatusStarting {
		t.Errorf("status after first grace failure = %v, want %v", got, StatusStarting)
	}

	clock.Advance(10 * time.Second)
	if got := s.ObserveFailure(errors.New("probe timed out")); got != StatusStarting {
		t.Errorf("status after second grace failure = %v, want %v", got, StatusStarting)
	}

	if got := s.ConsecutiveFailures(); got != 0 {
		t.Errorf("failures during grace = %d, want 0", got)
	}
}

func TestUnhealthyAfterThresholdFailures(t *testing.T) {
	// After the grace period, three consecutive failures at probe
	// intervals flip the signal to unhealthy on the third.
	s, clock := newTestSignal(20*time.Second, 3)
	clock.Advance(30 * time.Second)

	if got := s.ObserveFailure(errors.New("exit status 1")); got != StatusStarting {
		t.Errorf("status after 1 failure = %v, want %v", got, StatusStarting)
	}
	clock.Advance(30 * time.Second)
	if got := s.ObserveFailure(errors.New("exit status 1")); got != StatusStarting {
		t.Errorf("status after 2 failures = %v, want %v", got, StatusStarting)
	}
	clock.Advance(30 * time.Second)
	if got := s.ObserveFailure(errors.New("exit status 1")); got != StatusUnhealthy {
		t.Errorf("status after 3 failures = %v, want %v", got, StatusUnhealthy)
	}
	if got := s.ConsecutiveFailures(); got != 3 {
		t.Errorf("failures = %d, want 3", got)
	}
}

func TestSuccessRecoversFromUnhealthy(t *testing.T) {
	// One successful probe returns an unhealthy signal to healthy and
	// resets the counter.
	s, clock := newTestSignal(20*time.Second, 3)
	clock.Advance(30 * time.Second)

	for i := 0; i < 3; i++ {
		s.ObserveFailure(errors.New("exit status 1"))
		clock.Advance(30 * time.Second)
	}
	if got := s.Status(); got != StatusUnhealthy {
		t.Fatalf("status = %v, want %v", got, StatusUnhealthy)
	}

	if got := s.ObserveSuccess(); got != StatusHealthy {
		t.Errorf("status after success = %v, want %v", got, StatusHealthy)
	}
	if got := s.ConsecutiveFailures(); got != 0 {
		t.Errorf("failures after success = %d, want 0", got)
	}
}

func TestSuccessResetsFailureCounter(t *testing.T) {
	s, clock := newTestSignal(20*time.Second, 3)
	clock.Advance(30 * time.Second)

	s.ObserveFailure(errors.New("exit status 1"))
	s.ObserveFailure(errors.New("exit status 1"))
	s.ObserveSuccess()
	s.ObserveFailure(errors.New("exit status 1"))
	s.ObserveFailure(errors.New("exit status 1"))

	// Two failures after the reset must not reach the threshold
	if got := s.Status(); got == StatusUnhealthy {
		t.Errorf("status = %v after 2 post-reset failures, want not unhealthy", got)
	}
	if got := s.ConsecutiveFailures(); got != 2 {
		t.Errorf("failures = %d, want 2", got)
	}
}

func TestFailuresCountAfterFirstSuccessWithinGrace(t *testing.T) {
	// Once the signal has been healthy, the grace period no longer
	// shields failures even if its deadline has not passed yet.
	s, clock := newTestSignal(20*time.Second, 3)

	clock.Advance(2 * time.Second)
	s.ObserveSuccess()

	clock.Advance(2 * time.Second)
	s.ObserveFailure(errors.New("exit status 1"))
	if got := s.ConsecutiveFailures(); got != 1 {
		t.Errorf("failures = %d, want 1", got)
	}
}

func TestGraceBoundary(t *testing.T) {
	tests := []struct {
		name         string
		advance      time.Duration
		wantCounted  bool
	}{
		{"just inside grace", 19 * time.Second, false},
		{"exactly at grace deadline", 20 * time.Second, true},
		{"after grace", 21 * time.Second, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, clock := newTestSignal(20*time.Second, 3)
			clock.Advance(tt.advance)
			s.ObserveFailure(errors.New("exit status 1"))

			counted := s.ConsecutiveFailures() == 1
			if counted != tt.wantCounted {
				t.Errorf("failure counted = %v, want %v", counted, tt.wantCounted)
			}
		})
	}
}

func TestSnapshot(t *testing.T) {
	s, clock := newTestSignal(20*time.Second, 3)
	clock.Advance(30 * time.Second)
	s.ObserveFailure(errors.New("probe command failed"))

	snap := s.Snapshot()
	if snap.Status != StatusStarting {
		t.Errorf("snapshot status = %v, want %v", snap.Status, StatusStarting)
	}
	if snap.ConsecutiveFailures != 1 {
		t.Errorf("snapshot failures = %d, want 1", snap.ConsecutiveFailures)
	}
	if snap.LastError == "" {
		t.Error("snapshot should carry the last probe error")
	}
	if snap.LastProbeAt.IsZero() {
		t.Error("snapshot should carry the last probe time")
	}
}
