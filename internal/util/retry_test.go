package util

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetry_SuccessImmediate(t *testing.T) {
	result, err := Retry(3, func() (int, error) {
		return 42, nil
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if result != 42 {
		t.Fatalf("expected 42, got %d", result)
	}
}

func TestRetry_SuccessAfterRetries(t *testing.T) {
	calls := 0
	result, err := Retry(3, func() (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("transient")
		}
		return 99, nil
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if result != 99 {
		t.Fatalf("expected 99, got %d", result)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestRetry_PersistentFailure(t *testing.T) {
	calls := 0
	want := errors.New("persistent")
	_, err := Retry(4, func() (string, error) {
		calls++
		return "", want
	})
	if !errors.Is(err, want) {
		t.Fatalf("expected last error, got %v", err)
	}
	if calls != 4 {
		t.Fatalf("expected 4 calls, got %d", calls)
	}
}

func TestRetry_MaxTriesZeroOrNegative(t *testing.T) {
	for _, tries := range []int{0, -1} {
		calls := 0
		_ = RetryErr(tries, func() error {
			calls++
			return errors.New("fail")
		})
		if calls != 1 {
			t.Fatalf("maxTries %d: expected 1 call, got %d", tries, calls)
		}
	}
}

func TestRetryWithContext_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := RetryWithContext(ctx, 5, 0, func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, errors.New("fail")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestRetryWithContext_FunctionReturnsContextError(t *testing.T) {
	calls := 0
	err := RetryErrWithContext(context.Background(), 5, 0, func(context.Context) error {
		calls++
		return context.DeadlineExceeded
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("context errors must not be retried, got %d calls", calls)
	}
}

func TestRetryWithContext_Backoff(t *testing.T) {
	calls := 0
	start := time.Now()
	_, err := RetryWithContext(context.Background(), 3, 10*time.Millisecond, func(context.Context) (int, error) {
		calls++
		return 0, errors.New("fail")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	// 10ms + 20ms between three attempts
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Fatalf("expected backoff of at least 30ms, got %v", elapsed)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestRetryWithContext_BackoffHonoursDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := RetryWithContext(ctx, 10, time.Second, func(context.Context) (int, error) {
		return 0, errors.New("fail")
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded while waiting, got %v", err)
	}
}

func TestRetry_PermanentError(t *testing.T) {
	calls := 0
	want := errors.New("not found")
	_, err := Retry(5, func() (int, error) {
		calls++
		return 0, Permanent(want)
	})
	if err != want {
		t.Fatalf("expected unwrapped permanent error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("permanent errors must not be retried, got %d calls", calls)
	}
	if Permanent(nil) != nil {
		t.Fatal("Permanent(nil) must be nil")
	}
}
