package httputil

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errTransient = errors.New("connection refused")

func TestRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("success on first try", func(t *testing.T) {
		calls := 0
		err := Retry(ctx, 3, time.Millisecond, func() error {
			calls++
			return nil
		})
		if err != nil || calls != 1 {
			t.Errorf("Retry() = %v after %d calls; want nil after 1", err, calls)
		}
	})

	t.Run("non-retryable stops immediately", func(t *testing.T) {
		calls := 0
		permanent := errors.New("bad request")
		err := Retry(ctx, 3, time.Millisecond, func() error {
			calls++
			return permanent
		})
		if err != permanent || calls != 1 {
			t.Errorf("Retry() = %v after %d calls; want %v after 1", err, calls, permanent)
		}
	})

	t.Run("retryable is retried", func(t *testing.T) {
		calls := 0
		err := Retry(ctx, 3, time.Millisecond, func() error {
			calls++
			if calls < 3 {
				return &RetryableError{Err: errTransient}
			}
			return nil
		})
		if err != nil || calls != 3 {
			t.Errorf("Retry() = %v after %d calls; want nil after 3", err, calls)
		}
	})

	t.Run("returns last error when exhausted", func(t *testing.T) {
		calls := 0
		err := Retry(ctx, 2, time.Millisecond, func() error {
			calls++
			return &RetryableError{Err: errTransient}
		})
		if !errors.Is(err, errTransient) || calls != 2 {
			t.Errorf("Retry() = %v after %d calls; want %v after 2", err, calls, errTransient)
		}
	})

	t.Run("zero attempts still runs once", func(t *testing.T) {
		calls := 0
		_ = Retry(ctx, 0, time.Millisecond, func() error {
			calls++
			return nil
		})
		if calls != 1 {
			t.Errorf("calls = %d, want 1", calls)
		}
	})
}

func TestRetryContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, 3, time.Hour, func() error {
		return &RetryableError{Err: errTransient}
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Retry() = %v, want context.Canceled", err)
	}
}

func TestIsRetryable(t *testing.T) {
	if IsRetryable(errTransient) {
		t.Error("plain error should not be retryable")
	}
	if !IsRetryable(&RetryableError{Err: errTransient}) {
		t.Error("RetryableError should be retryable")
	}
	wrapped := errors.Join(errors.New("outer"), &RetryableError{Err: errTransient})
	if !IsRetryable(wrapped) {
		t.Error("wrapped RetryableError should be retryable")
	}
	if got := (&RetryableError{Err: errTransient}).Error(); got != errTransient.Error() {
		t.Errorf("Error() = %q, want %q", got, errTransient.Error())
	}
}
