package health

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Probe is a single liveness check attempt
type Probe interface {
	Check(ctx context.Context) error
}

// CommandProbe executes a trivial command and expects a fixed token on
// stdout. The default probe runs the workload interpreter itself, so a
// success only proves the interpreter can execute, not that the
// workload is functionally correct.
type CommandProbe struct {
	Command []string      // argv of the probe command
	Token   string        // expected trimmed stdout, empty to accept any
	Timeout time.Duration // bound per attempt
}

// Check runs the probe command once within the configured timeout
func (p CommandProbe) Check(ctx context.Context) error {
	if len(p.Command) == 0 {
		return errors.New("probe command not configured")
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.Command[0], p.Command[1:]...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("probe timed out after %s", timeout)
		}
		return fmt.Errorf("probe command failed: %w", err)
	}

	if p.Token != "" {
		got := strings.TrimSpace(stdout.String())
		if got != p.Token {
			return fmt.Errorf("unexpected probe output %q, want %q", got, p.Token)
		}
	}

	return nil
}
