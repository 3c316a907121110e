package journal

import (
	"sync"
)

// retention caps for the in-memory backend
const (
	maxProbes = 1024
	maxEvents = 1024
)

// MemoryJournal is an in-memory journal, the default when no database
// path is configured. History does not survive a restart.
type MemoryJournal struct {
	mu     sync.RWMutex
	probes []ProbeRecord
	events []Event
	closed bool
}

// NewMemoryJournal creates an in-memory journal
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{}
}

// AppendProbe records a probe attempt
func (j *MemoryJournal) AppendProbe(rec ProbeRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return ErrClosed
	}

	j.probes = append(j.probes, rec)
	if len(j.probes) > maxProbes {
		j.probes = j.probes[len(j.probes)-maxProbes:]
	}
	return nil
}

// AppendEvent records an operational event
func (j *MemoryJournal) AppendEvent(ev Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return ErrClosed
	}

	j.events = append(j.events, ev)
	if len(j.events) > maxEvents {
		j.events = j.events[len(j.events)-maxEvents:]
	}
	return nil
}

// RecentProbes returns up to limit probes, newest first
func (j *MemoryJournal) RecentProbes(limit int) ([]ProbeRecord, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return nil, ErrClosed
	}

	n := len(j.probes)
	if limit <= 0 || limit > n {
		limit = n
	}

	out := make([]ProbeRecord, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, j.probes[i])
	}
	return out, nil
}

// RecentEvents returns up to limit events, newest first
func (j *MemoryJournal) RecentEvents(limit int) ([]Event, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return nil, ErrClosed
	}

	n := len(j.events)
	if limit <= 0 || limit > n {
		limit = n
	}

	out := make([]Event, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, j.events[i])
	}
	return out, nil
}

// Close marks the journal closed
func (j *MemoryJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.closed = true
	return nil
}
