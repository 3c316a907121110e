package runner

import (
	"bytes"
	"context"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/pverhoeven/warden/pkg/provision"
)

func testReceipt() *provision.Receipt {
	return &provision.Receipt{
		ManifestHash: "deadbeef",
		Installed:    true,
		CompletedAt:  time.Now(),
	}
}

func TestStartRequiresReceipt(t *testing.T) {
	r := New(Options{Command: []string{"true"}})
	if err := r.Start(context.Background()); err == nil {
		t.Error("Start without a provision receipt should fail")
	}
}

func TestStartRequiresCommand(t *testing.T) {
	r := New(Options{Receipt: testReceipt()})
	if err := r.Start(context.Background()); err == nil {
		t.Error("Start without a command should fail")
	}
}

func TestRunForwardsOutputToSink(t *testing.T) {
	var sink bytes.Buffer
	r := New(Options{
		Command: []string{"echo", "hello from the workload"},
		Sink:    &sink,
		Receipt: testReceipt(),
	})

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	code, err := r.Wait()
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}

	if code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}
	if r.GetExitReason() != ExitReasonSuccess {
		t.Errorf("exit reason = %v, want %v", r.GetExitReason(), ExitReasonSuccess)
	}
	if !strings.Contains(sink.String(), "hello from the workload") {
		t.Errorf("sink did not capture workload output: %q", sink.String())
	}
}

func TestRunPropagatesExitCode(t *testing.T) {
	r := New(Options{
		Command: []string{"sh", "-c", "exit 3"},
		Receipt: testReceipt(),
		Sink:    &bytes.Buffer{},
	})

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	code, err := r.Wait()
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}

	if code != 3 {
		t.Errorf("exit code = %d, want 3", code)
	}
	if r.GetExitReason() != ExitReasonError {
		t.Errorf("exit reason = %v, want %v", r.GetExitReason(), ExitReasonError)
	}
}

func TestRunInjectsEnvironment(t *testing.T) {
	var sink bytes.Buffer
	r := New(Options{
		Command: []string{"sh", "-c", "echo $TZ"},
		Env:     []string{"TZ=Europe/Amsterdam", "PATH=/usr/bin:/bin"},
		Sink:    &sink,
		Receipt: testReceipt(),
	})

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := r.Wait(); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}

	if got := strings.TrimSpace(sink.String()); got != "Europe/Amsterdam" {
		t.Errorf("TZ in child = %q, want Europe/Amsterdam", got)
	}
}

func TestStopTerminatesWorkload(t *testing.T) {
	r := New(Options{
		Command: []string{"sleep", "30"},
		Receipt: testReceipt(),
		Sink:    &bytes.Buffer{},
	})

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	waitErr := make(chan error, 1)
	go func() {
		_, err := r.Wait()
		waitErr <- err
	}()

	// Give Wait a moment to be in place before signaling
	time.Sleep(50 * time.Millisecond)
	if err := r.Stop(2 * time.Second); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	select {
	case err := <-waitErr:
		if err != nil {
			t.Fatalf("Wait failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("workload did not exit after Stop")
	}

	if r.GetExitReason() != ExitReasonSignal {
		t.Errorf("exit reason = %v, want %v", r.GetExitReason(), ExitReasonSignal)
	}
}

func TestLifecycleEvents(t *testing.T) {
	r := New(Options{
		Command: []string{"true"},
		Receipt: testReceipt(),
		Sink:    &bytes.Buffer{},
	})

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := r.Wait(); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}

	events := r.Events()
	if len(events) < 3 {
		t.Fatalf("got %d events, want at least 3", len(events))
	}

	wantStates := []State{StateStarting, StateRunning, StateCompleted}
	for i, want := range wantStates {
		if events[i].State != want {
			t.Errorf("event %d state = %v, want %v", i, events[i].State, want)
		}
	}
}

func TestDetermineExitReason(t *testing.T) {
	tests := []struct {
		name     string
		exitCode int
		status   syscall.WaitStatus
		want     ExitReason
	}{
		{"clean exit", 0, makeWaitStatus(0, 0), ExitReasonSuccess},
		{"error exit", 1, makeWaitStatus(1, 0), ExitReasonError},
		{"oom kill code", 137, makeWaitStatus(137, 0), ExitReasonOOM},
		{"forced termination code", 143, makeWaitStatus(143, 0), ExitReasonOOM},
		{"signaled", -1, makeWaitStatus(0, int(syscall.SIGTERM)), ExitReasonSignal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetermineExitReason(tt.exitCode, tt.status)
			if got != tt.want {
				t.Errorf("DetermineExitReason(%d) = %v, want %v", tt.exitCode, got, tt.want)
			}
		})
	}
}

// makeWaitStatus constructs a WaitStatus the way the kernel encodes it:
// exit code in bits 8-15, termination signal in bits 0-6
func makeWaitStatus(exitCode, signal int) syscall.WaitStatus {
	if signal != 0 {
		return syscall.WaitStatus(signal)
	}
	return syscall.WaitStatus(exitCode << 8)
}
