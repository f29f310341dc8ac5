package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/loykin/catalogdb/internal/common"
)

// ErrGiveUp marks an error that must not be retried.
var ErrGiveUp = errors.New("not retryable")

// Config holds the backoff policy
type Config struct {
	MaxRetries      int           // Maximum number of retry attempts; 0 retries until ctx is done
	InitialDelay    time.Duration // Initial delay before first retry
	MaxDelay        time.Duration // Maximum delay between retries
	BackoffFactor   float64       // Multiplier for exponential backoff
	RetryableErrors []string      // Error substrings that trigger retries; empty retries everything
}

// DefaultRetryConfig returns the policy used when waiting for a database to come up
func DefaultRetryConfig() *Config {
	return &Config{
		MaxRetries:    5,
		InitialDelay:  250 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
		RetryableErrors: []string{
			"connection refused",
			"connection reset",
			"timeout",
			"temporary failure",
			"the database system is starting up",
			"database is locked",
			"bad connection",
			"broken pipe",
			"eof",
		},
	}
}

// isRetryableError checks if an error should trigger a retry
func (rc *Config) isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrGiveUp) {
		return false
	}
	if len(rc.RetryableErrors) == 0 {
		return true
	}

	errStr := strings.ToLower(err.Error())
	for _, retryableErr := range rc.RetryableErrors {
		if strings.Contains(errStr, retryableErr) {
			return true
		}
	}
	return false
}

// calculateDelay calculates the delay for a given retry attempt using exponential backoff
func (rc *Config) calculateDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return rc.InitialDelay
	}

	factor := rc.BackoffFactor
	if factor < 1 {
		factor = 1
	}
	delay := time.Duration(float64(rc.InitialDelay) * math.Pow(factor, float64(attempt)))
	if rc.MaxDelay > 0 && (delay > rc.MaxDelay || delay < 0) {
		delay = rc.MaxDelay
	}
	return delay
}

// Operation is one attempt
type Operation func(ctx context.Context) error

// Do runs op until it succeeds, fails with a non-retryable error, runs out
// of attempts, or ctx is done.
func Do(ctx context.Context, config *Config, op Operation) error {
	if config == nil {
		config = DefaultRetryConfig()
	}

	logger := common.GetLogger().WithComponent("retry")

	var lastErr error
	for attempt := 0; config.MaxRetries <= 0 || attempt <= config.MaxRetries; attempt++ {
		err := op(ctx)
		if err == nil {
			if attempt > 0 {
				logger.Info("operation succeeded after retry", "attempt", attempt+1)
			}
			return nil
		}
		lastErr = err

		if config.MaxRetries > 0 && attempt == config.MaxRetries {
			break
		}
		if !config.isRetryableError(err) {
			logger.Debug("operation failed with non-retryable error", "error", err, "attempt", attempt+1)
			return err
		}

		delay := config.calculateDelay(attempt)
		logger.Debug("operation failed, retrying", "error", err, "attempt", attempt+1, "retry_delay", delay)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("gave up after %d attempts: %w (last error: %v)", attempt+1, ctx.Err(), lastErr)
		case <-timer.C:
		}
	}

	return fmt.Errorf("operation failed after %d attempts: %w", config.MaxRetries+1, lastErr)
}
