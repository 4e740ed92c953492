// Package retry provides retry with exponential backoff for transient failures.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

var (
	// ErrMaxAttemptsExceeded is returned when max retry attempts are exceeded.
	ErrMaxAttemptsExceeded = errors.New("max retry attempts exceeded")
	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled during retry")
)

// Config configures retry behavior.
type Config struct {
	// MaxAttempts counts the initial attempt.
	MaxAttempts int
	// InitialDelay is the delay before the first retry.
	InitialDelay time.Duration
	// MaxDelay caps the exponential backoff.
	MaxDelay time.Duration
	// Multiplier is the backoff multiplier (default 2.0).
	Multiplier float64
	// IsRetryable decides whether an error should be retried.
	IsRetryable func(error) bool
}

// DefaultConfig returns the standard retry configuration.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		IsRetryable:  DefaultIsRetryable,
	}
}

// retryablePatterns are substrings of errors worth another attempt.
var retryablePatterns = []string{
	"timeout",
	"deadline exceeded",
	"connection refused",
	"connection reset",
	"no such host",
	"temporary failure",
	"network is unreachable",
	"i/o timeout",
}

// DefaultIsRetryable reports whether an error looks transient: network
// failures, timeouts, resets.
func DefaultIsRetryable(err error) bool {
	if err == nil {
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range retryablePatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}

	return false
}

// Retry executes fn with exponential backoff until it succeeds, the error is
// not retryable, attempts run out, or ctx is cancelled.
func Retry(ctx context.Context, config Config, fn func() error) error {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = 100 * time.Millisecond
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 30 * time.Second
	}
	if config.Multiplier <= 0 {
		config.Multiplier = 2.0
	}
	if config.IsRetryable == nil {
		config.IsRetryable = DefaultIsRetryable
	}

	var lastErr error

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		}

		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err

		if !config.IsRetryable(err) {
			return err
		}

		if attempt < config.MaxAttempts {
			delay := time.Duration(float64(config.InitialDelay) * math.Pow(config.Multiplier, float64(attempt-1)))
			if delay > config.MaxDelay {
				delay = config.MaxDelay
			}

			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
			case <-time.After(delay):
			}
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrMaxAttemptsExceeded, config.MaxAttempts, lastErr)
}

// RetryWithDefaults executes fn with the default configuration.
func RetryWithDefaults(ctx context.Context, fn func() error) error {
	return Retry(ctx, DefaultConfig(), fn)
}
