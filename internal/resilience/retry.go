// Package resilience implements retry-with-backoff for the transport
// adapter's dial/reconnect path, the one place in meshbus that talks to a
// genuinely unreliable peer.
package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/corvuslab/meshbus/internal/metrics"
)

// RetryPolicy configures WithRetry/WithRetryFunc.
type RetryPolicy struct {
	MaxRetries    int
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	Multiplier    float64
	Jitter        bool
	ErrorChecker  RetryableErrorChecker
	Logger        *slog.Logger
	Metrics       *metrics.RetryMetrics
	OperationName string
}

// RetryableErrorChecker decides whether an error should trigger another
// attempt. A nil checker treats every non-nil error as retryable.
type RetryableErrorChecker interface {
	IsRetryable(err error) bool
}

// DefaultRetryPolicy is a sensible default for reconnecting to a peer: 3
// retries, 100ms base delay doubling up to 5s, with jitter.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   5 * time.Second,
		Multiplier: 2.0,
		Jitter:     true,
	}
}

// WithRetry runs operation under policy, retrying on failure until it
// succeeds, a non-retryable error is returned, retries are exhausted, or ctx
// is cancelled.
func WithRetry(ctx context.Context, policy *RetryPolicy, operation func() error) error {
	_, err := WithRetryFunc(ctx, policy, func() (struct{}, error) {
		return struct{}{}, operation()
	})
	return err
}

// WithRetryFunc is WithRetry for operations that also produce a result.
func WithRetryFunc[T any](ctx context.Context, policy *RetryPolicy, operation func() (T, error)) (T, error) {
	if policy == nil {
		policy = DefaultRetryPolicy()
	}
	logger := policy.Logger
	if logger == nil {
		logger = slog.Default()
	}
	opName := policy.OperationName
	if opName == "" {
		opName = "unknown"
	}
	startTime := time.Now()

	var lastResult T
	var lastErr error
	delay := policy.BaseDelay
	attempts := 0

	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		attempts++
		attemptStart := time.Now()

		result, err := operation()
		attemptDuration := time.Since(attemptStart).Seconds()

		if err == nil {
			if attempt > 0 {
				logger.Info("operation succeeded after retry", "attempt", attempt+1)
			}
			policy.Metrics.RecordAttempt(opName, "success", "none", attemptDuration)
			policy.Metrics.RecordFinalAttempt(opName, "success", attempts)
			return result, nil
		}

		lastResult, lastErr = result, err
		errType := classifyError(err)

		if !shouldRetry(err, policy.ErrorChecker) {
			logger.Debug("error is non-retryable, stopping", "error", err, "attempt", attempt+1)
			policy.Metrics.RecordAttempt(opName, "failure", errType, attemptDuration)
			policy.Metrics.RecordFinalAttempt(opName, "failure", attempts)
			return lastResult, lastErr
		}

		policy.Metrics.RecordAttempt(opName, "failure", errType, attemptDuration)

		if attempt >= policy.MaxRetries {
			logger.Error("operation failed after all retries",
				"max_retries", policy.MaxRetries, "attempts", attempts, "error", lastErr)
			policy.Metrics.RecordFinalAttempt(opName, "failure", attempts)
			break
		}

		logger.Warn("operation failed, retrying",
			"attempt", attempt+1, "max_retries", policy.MaxRetries, "delay", delay, "error", err)
		policy.Metrics.RecordBackoff(opName, delay.Seconds())

		if !waitWithContext(ctx, delay) {
			logger.Debug("context cancelled during retry delay", "attempt", attempt+1)
			policy.Metrics.RecordAttempt(opName, "cancelled", classifyError(ctx.Err()), time.Since(startTime).Seconds())
			policy.Metrics.RecordFinalAttempt(opName, "cancelled", attempts)
			var zero T
			return zero, ctx.Err()
		}

		delay = calculateNextDelay(delay, policy)
	}

	return lastResult, fmt.Errorf("operation %q failed after %d attempts: %w", opName, attempts, lastErr)
}

func shouldRetry(err error, checker RetryableErrorChecker) bool {
	if err == nil {
		return false
	}
	if checker != nil {
		return checker.IsRetryable(err)
	}
	return true
}

func waitWithContext(ctx context.Context, delay time.Duration) bool {
	select {
	case <-time.After(delay):
		return true
	case <-ctx.Done():
		return false
	}
}

func calculateNextDelay(currentDelay time.Duration, policy *RetryPolicy) time.Duration {
	nextDelay := time.Duration(float64(currentDelay) * policy.Multiplier)
	if nextDelay > policy.MaxDelay {
		nextDelay = policy.MaxDelay
	}
	if policy.Jitter {
		nextDelay += time.Duration(float64(nextDelay) * 0.1 * rand.Float64())
	}
	return nextDelay
}
