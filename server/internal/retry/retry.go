// Package retry runs an operation until it succeeds or a fixed retry budget
// is spent. Waits between attempts are scheduled on a clockwork.Clock so that
// tests can drive them with a fake clock.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

// ErrExhausted matches every error returned after the retry budget is spent.
var ErrExhausted = errors.New("retries exhausted")

// Policy describes how many times to retry and how long to wait in between.
type Policy struct {
	// MaxRetries is the number of retries after the first attempt, so an
	// operation runs at most MaxRetries+1 times.
	MaxRetries int

	// Delay is the wait before the first retry.
	Delay time.Duration

	// Multiplier scales Delay after every retry. Values <= 1 keep the delay fixed.
	Multiplier float64

	// OnRetry, when set, is called before each wait with the 1-based number
	// of the attempt that just failed.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// Operation is one attempt. attempt is 1-based.
type Operation[T any] func(ctx context.Context, attempt int) (T, error)

// Do runs op until it succeeds, returns a Permanent error, or fails
// MaxRetries+1 times. It returns exactly once.
func Do[T any](ctx context.Context, clock clockwork.Clock, p Policy, op Operation[T]) (T, error) {
	var zero T
	delay := p.Delay

	for attempt := 1; ; attempt++ {
		val, err := op(ctx, attempt)
		if err == nil {
			return val, nil
		}

		var perm *PermanentError
		if errors.As(err, &perm) {
			return zero, err
		}

		if attempt > p.MaxRetries {
			return zero, &ExhaustedError{Attempts: attempt, Err: err}
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt, err, delay)
		}

		select {
		case <-clock.After(delay):
		case <-ctx.Done():
			return zero, fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		}

		if p.Multiplier > 1 {
			delay = time.Duration(float64(delay) * p.Multiplier)
		}
	}
}

// DoVoid is Do for operations without a result value.
func DoVoid(ctx context.Context, clock clockwork.Clock, p Policy, op func(ctx context.Context, attempt int) error) error {
	_, err := Do(ctx, clock, p, func(ctx context.Context, attempt int) (struct{}, error) {
		return struct{}{}, op(ctx, attempt)
	})
	return err
}

// ExhaustedError reports the last failure once the retry budget is spent.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() []error { return []error{ErrExhausted, e.Err} }

// PermanentError stops Do without further retries.
type PermanentError struct {
	Err error
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }
