package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/pverhoeven/warden/pkg/provision"
)

// Options configures a Runner
type Options struct {
	Command []string           // argv of the workload
	WorkDir string             // working directory, empty for inherited
	Env     []string           // fully resolved child environment
	Sink    io.Writer          // log sink for stdout/stderr, nil for os.Stdout
	Receipt *provision.Receipt // proof the environment was provisioned
	OnEvent func(Event)        // optional lifecycle event hook
}

// Runner launches and owns exactly one workload process. Output is
// forwarded to the sink write-for-write; nothing is buffered locally,
// so external collectors see it in real time.
type Runner struct {
	opts Options
	cmd  *exec.Cmd

	mu         sync.Mutex
	pid        int
	startTime  time.Time
	events     []Event
	exitCode   int
	exitReason ExitReason

	waitDone chan struct{}
}

// New creates a runner for the given options
func New(opts Options) *Runner {
	return &Runner{
		opts:     opts,
		waitDone: make(chan struct{}),
	}
}

// Start launches the workload process. It refuses to run without a
// provision receipt: dependency installation strictly precedes startup.
func (r *Runner) Start(ctx context.Context) error {
	if len(r.opts.Command) == 0 {
		return fmt.Errorf("no command configured")
	}
	if r.opts.Receipt == nil {
		return fmt.Errorf("refusing to start: runtime environment not provisioned")
	}

	cmd := exec.CommandContext(ctx, r.opts.Command[0], r.opts.Command[1:]...)
	cmd.Dir = r.opts.WorkDir
	cmd.Env = r.opts.Env

	// Own process group so a signal to the supervisor does not reach
	// the workload before Stop decides to deliver it
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
		Pgid:    0,
	}

	sink := r.opts.Sink
	if sink == nil {
		sink = os.Stdout
	}
	cmd.Stdout = sink
	cmd.Stderr = sink

	r.emit(StateStarting, fmt.Sprintf("Spawning workload: %v", r.opts.Command))

	if err := cmd.Start(); err != nil {
		r.emit(StateFailed, fmt.Sprintf("Failed to start: %v", err))
		return fmt.Errorf("failed to start workload: %w", err)
	}

	r.mu.Lock()
	r.cmd = cmd
	r.pid = cmd.Process.Pid
	r.startTime = time.Now()
	r.mu.Unlock()

	r.emit(StateRunning, fmt.Sprintf("PID %d started", cmd.Process.Pid))
	return nil
}

// Wait blocks until the workload exits and returns its exit code.
// The exit is classified and emitted as a lifecycle event.
func (r *Runner) Wait() (int, error) {
	r.mu.Lock()
	cmd := r.cmd
	r.mu.Unlock()
	if cmd == nil {
		return 0, fmt.Errorf("workload not started")
	}

	err := cmd.Wait()
	defer close(r.waitDone)

	r.mu.Lock()
	defer r.mu.Unlock()

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			r.exitCode = exitErr.ExitCode()
			if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
				r.exitReason = DetermineExitReason(r.exitCode, status)
				if status.Signaled() {
					// Exit code for a signaled process is 128+signal
					r.exitCode = 128 + int(status.Signal())
					r.emitLocked(StateKilled, fmt.Sprintf("Killed by %s", SignalName(status.Signal())))
				} else {
					r.emitLocked(StateFailed, fmt.Sprintf("Exited with code %d", r.exitCode))
				}
			} else {
				r.exitReason = ExitReasonError
				r.emitLocked(StateFailed, fmt.Sprintf("Exited with code %d", r.exitCode))
			}
		} else {
			r.exitCode = 1
			r.exitReason = ExitReasonUnknown
			r.emitLocked(StateFailed, fmt.Sprintf("Wait error: %v", err))
		}
	} else {
		r.exitCode = 0
		r.exitReason = ExitReasonSuccess
		r.emitLocked(StateCompleted, "Completed successfully")
	}

	return r.exitCode, nil
}

// Stop terminates the workload gracefully: SIGTERM to the process
// group, then SIGKILL if it has not exited within the timeout.
func (r *Runner) Stop(timeout time.Duration) error {
	r.mu.Lock()
	pid := r.pid
	r.mu.Unlock()
	if pid == 0 {
		return nil
	}

	// Negative pid targets the whole process group
	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil {
		if err == syscall.ESRCH {
			return nil
		}
		return fmt.Errorf("failed to signal workload: %w", err)
	}

	select {
	case <-r.waitDone:
		return nil
	case <-time.After(timeout):
	}

	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil && err != syscall.ESRCH {
		return fmt.Errorf("failed to kill workload: %w", err)
	}
	return nil
}

// PID returns the workload process id, 0 before Start
func (r *Runner) PID() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pid
}

// Uptime returns how long the workload has been running
func (r *Runner) Uptime() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.startTime.IsZero() {
		return 0
	}
	return time.Since(r.startTime)
}

// StartedAt returns the workload start time
func (r *Runner) StartedAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.startTime
}

// ExitCode returns the exit code after Wait
func (r *Runner) ExitCode() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.exitCode
}

// GetExitReason returns the classified exit reason after Wait
func (r *Runner) GetExitReason() ExitReason {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.exitReason
}

// Events returns a copy of all lifecycle events
func (r *Runner) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *Runner) emit(state State, message string) {
	r.mu.Lock()
	r.emitLocked(state, message)
	r.mu.Unlock()
}

func (r *Runner) emitLocked(state State, message string) {
	event := Event{
		PID:        r.pid,
		State:      state,
		Timestamp:  time.Now(),
		Message:    message,
		ExitCode:   r.exitCode,
		ExitReason: r.exitReason,
	}
	r.events = append(r.events, event)
	if r.opts.OnEvent != nil {
		r.opts.OnEvent(event)
	}
}
