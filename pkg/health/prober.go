package health

import (
	"context"
	"time"
)

// Result describes one completed probe attempt
type Result struct {
	Timestamp time.Time
	OK        bool
	Duration  time.Duration
	Status    Status
	Failures  int
	Err       error
}

// Prober drives a Probe on a fixed cadence and feeds results into a
// Signal. It runs independently of the supervised process; the two
// share no synchronization beyond the signal itself.
type Prober struct {
	probe    Probe
	signal   *Signal
	interval time.Duration
	onResult func(Result)
}

// NewProber creates a prober. onResult may be nil; when set it is
// invoked after every attempt (journal and metrics hang off it).
func NewProber(probe Probe, signal *Signal, interval time.Duration, onResult func(Result)) *Prober {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Prober{
		probe:    probe,
		signal:   signal,
		interval: interval,
		onResult: onResult,
	}
}

// Run probes on the configured interval until ctx is cancelled.
// Cancellation also cancels an in-flight probe attempt.
func (p *Prober) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.probeOnce(ctx)
		}
	}
}

func (p *Prober) probeOnce(ctx context.Context) {
	start := time.Now()
	err := p.probe.Check(ctx)
	duration := time.Since(start)

	var status Status
	if err == nil {
		status = p.signal.ObserveSuccess()
	} else {
		status = p.signal.ObserveFailure(err)
	}

	if p.onResult != nil {
		p.onResult(Result{
			Timestamp: start,
			OK:        err == nil,
			Duration:  duration,
			Status:    status,
			Failures:  p.signal.ConsecutiveFailures(),
			Err:       err,
		})
	}
}
