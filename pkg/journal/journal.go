package journal

import (
	"errors"
	"time"
)

var ErrClosed = errors.New("journal closed")

// ProbeRecord is one completed liveness probe attempt
type ProbeRecord struct {
	Timestamp time.Time     `json:"timestamp"`
	OK        bool          `json:"ok"`
	Duration  time.Duration `json:"duration"`
	Status    string        `json:"status"`
	Failures  int           `json:"failures"`
	Error     string        `json:"error,omitempty"`
}

// Event is an operational event worth keeping: lifecycle state changes,
// provisioning outcomes, liveness transitions
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
}

// Event kinds
const (
	KindLifecycle = "lifecycle"
	KindLiveness  = "liveness"
	KindProvision = "provision"
)

// Journal records probe attempts and operational events and serves them
// back newest-first for the status API and CLI.
type Journal interface {
	AppendProbe(rec ProbeRecord) error
	AppendEvent(ev Event) error
	RecentProbes(limit int) ([]ProbeRecord, error)
	RecentEvents(limit int) ([]Event, error)
	Close() error
}
