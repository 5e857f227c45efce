package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWithRetrySuccess(t *testing.T) {
	policy := &RetryPolicy{MaxRetries: 3, BaseDelay: 5 * time.Millisecond, MaxDelay: 20 * time.Millisecond, Multiplier: 2.0}

	called := 0
	err := WithRetry(context.Background(), policy, func() error {
		called++
		return nil
	})

	if err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
	if called != 1 {
		t.Errorf("expected 1 call, got %d", called)
	}
}

func TestWithRetrySuccessAfterRetries(t *testing.T) {
	policy := &RetryPolicy{MaxRetries: 3, BaseDelay: 5 * time.Millisecond, MaxDelay: 20 * time.Millisecond, Multiplier: 2.0}

	called := 0
	err := WithRetry(context.Background(), policy, func() error {
		called++
		if called < 3 {
			return errors.New("transient error")
		}
		return nil
	})

	if err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
	if called != 3 {
		t.Errorf("expected 3 calls, got %d", called)
	}
}

func TestWithRetryExhausted(t *testing.T) {
	policy := &RetryPolicy{MaxRetries: 2, BaseDelay: 5 * time.Millisecond, MaxDelay: 20 * time.Millisecond, Multiplier: 2.0}

	called := 0
	err := WithRetry(context.Background(), policy, func() error {
		called++
		return errors.New("permanent error")
	})

	if err == nil {
		t.Error("expected an error after exhausting retries")
	}
	if called != 3 {
		t.Errorf("expected 3 calls (1 + 2 retries), got %d", called)
	}
}

type alwaysNonRetryable struct{}

func (alwaysNonRetryable) IsRetryable(error) bool { return false }

func TestWithRetryNonRetryableStopsImmediately(t *testing.T) {
	policy := &RetryPolicy{MaxRetries: 5, BaseDelay: 5 * time.Millisecond, MaxDelay: 20 * time.Millisecond, Multiplier: 2.0, ErrorChecker: alwaysNonRetryable{}}

	called := 0
	err := WithRetry(context.Background(), policy, func() error {
		called++
		return errors.New("not worth retrying")
	})

	if err == nil {
		t.Error("expected an error")
	}
	if called != 1 {
		t.Errorf("expected exactly 1 call, got %d", called)
	}
}

func TestWithRetryRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	policy := &RetryPolicy{MaxRetries: 3, BaseDelay: 50 * time.Millisecond, MaxDelay: 200 * time.Millisecond, Multiplier: 2.0}

	called := 0
	err := WithRetry(ctx, policy, func() error {
		called++
		return errors.New("transient")
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestWithRetryFuncReturnsResult(t *testing.T) {
	policy := &RetryPolicy{MaxRetries: 2, BaseDelay: 5 * time.Millisecond, MaxDelay: 20 * time.Millisecond, Multiplier: 2.0}

	result, err := WithRetryFunc(context.Background(), policy, func() (string, error) {
		return "ok", nil
	})

	if err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
	if result != "ok" {
		t.Errorf("expected %q, got %q", "ok", result)
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: "none"},
		{name: "context cancelled", err: context.Canceled, want: "context_cancelled"},
		{name: "context deadline", err: context.DeadlineExceeded, want: "context_deadline"},
		{name: "timeout message", err: errors.New("i/o timeout"), want: "timeout"},
		{name: "rate limit message", err: errors.New("429 too many requests"), want: "rate_limit"},
		{name: "unrecognized", err: errors.New("something else"), want: "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyError(tt.err)
			if got != tt.want {
				t.Errorf("classifyError(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}
