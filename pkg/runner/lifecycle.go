package runner

import (
	"fmt"
	"syscall"
	"time"
)

// State represents the supervised process's lifecycle state
type State string

const (
	StateStarting  State = "starting"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateKilled    State = "killed"
)

// ExitReason describes why the process terminated
type ExitReason string

const (
	ExitReasonSuccess ExitReason = "success" // exit code 0
	ExitReasonError   ExitReason = "error"   // non-zero exit code
	ExitReasonSignal  ExitReason = "signal"  // killed by signal
	ExitReasonOOM     ExitReason = "oom"     // out of memory killed
	ExitReasonUnknown ExitReason = "unknown"
)

// Event represents a lifecycle state change
type Event struct {
	PID        int        `json:"pid"`
	State      State      `json:"state"`
	Timestamp  time.Time  `json:"timestamp"`
	ExitCode   int        `json:"exit_code,omitempty"`
	ExitReason ExitReason `json:"exit_reason,omitempty"`
	Message    string     `json:"message,omitempty"`
}

// DetermineExitReason classifies a process exit
func DetermineExitReason(exitCode int, waitStatus syscall.WaitStatus) ExitReason {
	if waitStatus.Exited() {
		if exitCode == 0 {
			return ExitReasonSuccess
		}
		// 137/143 are the conventional OOM-kill / forced-termination codes
		if exitCode == 137 || exitCode == 143 {
			return ExitReasonOOM
		}
		return ExitReasonError
	}

	if waitStatus.Signaled() {
		return ExitReasonSignal
	}

	return ExitReasonUnknown
}

// SignalName returns the signal name for a signal number
func SignalName(sig syscall.Signal) string {
	switch sig {
	case syscall.SIGKILL:
		return "SIGKILL"
	case syscall.SIGTERM:
		return "SIGTERM"
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGHUP:
		return "SIGHUP"
	case syscall.SIGQUIT:
		return "SIGQUIT"
	case syscall.SIGSEGV:
		return "SIGSEGV"
	default:
		return fmt.Sprintf("SIG%d", sig)
	}
}
