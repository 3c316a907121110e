package metrics

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// Sampler periodically samples CPU and memory of the supervised process
type Sampler struct {
	pid      int32
	set      *Set
	interval time.Duration
}

// NewSampler creates a sampler for the given pid
func NewSampler(pid int, set *Set, interval time.Duration) *Sampler {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Sampler{
		pid:      int32(pid),
		set:      set,
		interval: interval,
	}
}

// Run samples until ctx is cancelled or the process disappears
func (s *Sampler) Run(ctx context.Context) {
	proc, err := process.NewProcess(s.pid)
	if err != nil {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cpuPercent, err := proc.CPUPercent()
			if err != nil {
				// Process exited; stop sampling
				return
			}

			var rss uint64
			if memInfo, err := proc.MemoryInfo(); err == nil {
				rss = memInfo.RSS
			}

			s.set.SetProcessUsage(cpuPercent, rss)
		}
	}
}
