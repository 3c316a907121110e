package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDoSucceedsAfterRetries(t *testing.T) {
	config := Config{
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     10 * time.Millisecond,
		Multiplier:     2.0,
	}

	calls := 0
	err := Do(context.Background(), config, func() error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	})

	if err != nil {
		t.Errorf("Do failed: %v", err)
	}
	if calls != 3 {
		t.Errorf("fn called %d times, want 3", calls)
	}
}

func TestDoExhaustsRetries(t *testing.T) {
	config := Config{
		MaxRetries:     2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     10 * time.Millisecond,
		Multiplier:     2.0,
	}

	calls := 0
	err := Do(context.Background(), config, func() error {
		calls++
		return errors.New("connection refused")
	})

	if err == nil {
		t.Fatal("Do should fail after exhausting retries")
	}
	if calls != 3 {
		t.Errorf("fn called %d times, want 3 (initial + 2 retries)", calls)
	}
}

func TestDoRespectsCancellation(t *testing.T) {
	config := Config{
		MaxRetries:     10,
		InitialBackoff: time.Second,
		MaxBackoff:     time.Second,
		Multiplier:     1.0,
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := Do(ctx, config, func() error {
		return errors.New("connection refused")
	})

	if err == nil {
		t.Fatal("Do should fail on cancellation")
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("Do did not return promptly after cancellation")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"connection refused", errors.New("dial tcp 127.0.0.1:9620: connection refused"), true},
		{"timeout", errors.New("context deadline exceeded (Client.Timeout)"), true},
		{"permanent", errors.New("404 not found"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
