package retry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func fastConfig(maxRetries int) *Config {
	return &Config{
		MaxRetries:    maxRetries,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		BackoffFactor: 2,
	}
}

func TestIsRetryableError(t *testing.T) {
	config := DefaultRetryConfig()
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"refused", errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"), true},
		{"pg starting", errors.New("FATAL: the database system is starting up (SQLSTATE 57P03)"), true},
		{"syntax", errors.New("syntax error at or near SELEC"), false},
		{"cancelled", context.Canceled, false},
		{"give up", fmt.Errorf("status 404: %w", ErrGiveUp), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := config.isRetryableError(tt.err); got != tt.expected {
				t.Fatalf("isRetryableError(%v)=%v, want %v", tt.err, got, tt.expected)
			}
		})
	}

	if !fastConfig(1).isRetryableError(errors.New("anything")) {
		t.Fatal("empty RetryableErrors should retry every error")
	}
}

func TestCalculateDelay(t *testing.T) {
	c := &Config{InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second, BackoffFactor: 2}
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond, 800 * time.Millisecond, time.Second, time.Second}
	for attempt, w := range want {
		if got := c.calculateDelay(attempt); got != w {
			t.Fatalf("attempt %d: delay=%v, want %v", attempt, got, w)
		}
	}
}

func TestDoSucceedsAfterRetries(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(5), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(2), func(context.Context) error {
		calls++
		return errors.New("connection refused")
	})
	if err == nil || !strings.Contains(err.Error(), "after 3 attempts") {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	calls := 0
	cfg := fastConfig(5)
	cfg.RetryableErrors = []string{"refused"}
	err := Do(context.Background(), cfg, func(context.Context) error {
		calls++
		return errors.New("permission denied")
	})
	if err == nil || calls != 1 {
		t.Fatalf("expected a single failing call, got calls=%d err=%v", calls, err)
	}
}

func TestDoUnlimitedUntilContextDone(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	calls := 0
	err := Do(ctx, fastConfig(0), func(context.Context) error {
		calls++
		return errors.New("not ready")
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if calls < 2 {
		t.Fatalf("expected several attempts, got %d", calls)
	}
}
