package util

import (
	"context"
	"errors"
	"time"
)

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. The retry helpers return the
// wrapped error immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Retry calls fn up to maxTries times until it returns a nil error.
// If maxTries <= 0, it defaults to 1. Returns the last error if all attempts fail.
func Retry[T any](maxTries int, fn func() (T, error)) (T, error) {
	return RetryWithContext(context.Background(), maxTries, 0, func(context.Context) (T, error) {
		return fn()
	})
}

// RetryErr is Retry for functions without a result.
func RetryErr(maxTries int, fn func() error) error {
	return RetryErrWithContext(context.Background(), maxTries, 0, func(context.Context) error {
		return fn()
	})
}

// RetryErrWithContext is RetryWithContext for functions without a result.
func RetryErrWithContext(ctx context.Context, maxTries int, backoff time.Duration, fn func(context.Context) error) error {
	_, err := RetryWithContext(ctx, maxTries, backoff, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// RetryWithContext calls fn up to maxTries times until it returns a nil
// error, or until ctx is done. Between attempts it waits backoff, doubling
// after every failure; a zero backoff retries immediately.
// Context errors and errors wrapped with Permanent are not retried.
func RetryWithContext[T any](
	ctx context.Context,
	maxTries int,
	backoff time.Duration,
	fn func(context.Context) (T, error),
) (T, error) {
	if maxTries <= 0 {
		maxTries = 1
	}
	var lastErr error
	var zero T
	for i := 0; i < maxTries; i++ {
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return zero, err
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return zero, perm.err
		}
		lastErr = err

		if backoff > 0 && i < maxTries-1 {
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, ctx.Err()
			case <-timer.C:
			}
			backoff *= 2
		}
	}
	return zero, lastErr
}
