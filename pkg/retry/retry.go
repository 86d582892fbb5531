// Package retry wraps an operation in a capped, constant-interval retry policy.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	DefaultMaxAttempts = 30
	DefaultWait        = 120 * time.Second
)

// Timer is the clock used between attempts. Tests inject a timer that fires immediately.
type Timer = backoff.Timer

// Operation is one attempt. attempt starts at 1.
type Operation func(ctx context.Context, attempt int) error

// ExhaustedRetriesError is returned when every attempt failed with a retriable error.
type ExhaustedRetriesError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedRetriesError) Error() string {
	return fmt.Sprintf("giving up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedRetriesError) Unwrap() error {
	return e.Err
}

// IsRetriable reports whether err (or anything it wraps) declares itself retriable through a
// Retriable() bool method.
func IsRetriable(err error) bool {
	var r interface{ Retriable() bool }
	return errors.As(err, &r) && r.Retriable()
}

// Policy retries an operation up to MaxAttempts times, waiting Wait between attempts.
// Errors that are not retriable end the loop immediately and are returned unchanged.
type Policy struct {
	MaxAttempts int
	Wait        time.Duration

	// Retriable classifies errors; IsRetriable when nil.
	Retriable func(error) bool
	// OnRetry is called after a failed attempt, before waiting.
	OnRetry func(attempt int, err error, wait time.Duration)
	// Timer overrides the wall clock timer.
	Timer Timer
}

// DefaultPolicy returns the policy used against the payments API: 30 attempts, 120s apart.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		Wait:        DefaultWait,
	}
}

// Do runs op until it succeeds, fails with a non-retriable error, the attempt budget is spent,
// or ctx is done. Spending the budget returns *ExhaustedRetriesError wrapping the last error.
func (p Policy) Do(ctx context.Context, op Operation) error {
	maxAttempts := max(p.MaxAttempts, 1)
	retriable := p.Retriable
	if retriable == nil {
		retriable = IsRetriable
	}

	attempt := 0
	operation := func() error {
		attempt++
		err := op(ctx, attempt)
		if err == nil {
			return nil
		}
		if !retriable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(p.Wait), uint64(maxAttempts-1)),
		ctx,
	)
	notify := func(err error, wait time.Duration) {
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, wait)
		}
	}

	err := backoff.RetryNotifyWithTimer(operation, b, notify, p.Timer)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return err
	}
	if retriable(err) {
		return &ExhaustedRetriesError{Attempts: attempt, Err: err}
	}
	return err
}
