// Package retry wraps fallible operations in a bounded, strictly
// sequential attempt loop with advisory notifications on each failure.
package retry

import (
	"context"
	"errors"
	"fmt"
)

// DefaultMaxAttempts bounds the attempt loop when a policy does not
// specify its own budget.
const DefaultMaxAttempts = 3

// Policy configures one retry loop.
type Policy struct {
	// MaxAttempts is the total attempt budget, not the number of
	// retries. Zero or negative falls back to DefaultMaxAttempts.
	MaxAttempts int
	// Title names the operation in retry notifications.
	Title string
}

// ExhaustedError reports that every attempt failed. It wraps the last
// observed error.
type ExhaustedError struct {
	Title    string
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: exhausted %d attempts: %v", e.Title, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// OnRetry observes a non-final failure before the next attempt starts.
// attempt is 1-based. Panics are swallowed: notification is advisory
// and must never abort the loop.
type OnRetry func(attempt int, err error)

type abortError struct {
	err error
}

func (e *abortError) Error() string {
	return e.err.Error()
}

func (e *abortError) Unwrap() error {
	return e.err
}

// Abort marks err as permanent. Do returns it immediately without
// spending further attempts and without a retry notification.
func Abort(err error) error {
	return &abortError{err: err}
}

// Do runs attempt up to the policy budget and returns the first
// success. Attempts are strictly sequential with no backoff delay; the
// bottleneck is the wrapped operation itself, not contention. Context
// cancellation stops the loop between attempts.
func Do[T any](ctx context.Context, policy Policy, attempt func(ctx context.Context, n int) (T, error), onRetry OnRetry) (T, error) {
	var zero T

	max := policy.MaxAttempts
	if max < 1 {
		max = DefaultMaxAttempts
	}

	var lastErr error
	for n := 1; n <= max; n++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		value, err := attempt(ctx, n)
		if err == nil {
			return value, nil
		}
		var abort *abortError
		if errors.As(err, &abort) {
			return zero, abort.err
		}
		lastErr = err

		if n < max && onRetry != nil {
			notifySafely(onRetry, n, err)
		}
	}

	return zero, &ExhaustedError{Title: policy.Title, Attempts: max, Err: lastErr}
}

func notifySafely(onRetry OnRetry, attempt int, err error) {
	defer func() {
		_ = recover()
	}()
	onRetry(attempt, err)
}
