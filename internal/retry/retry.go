// Package retry provides the bounded, fixed-delay retry policy used for
// control-plane authentication and directory removal.
package retry

import (
	"context"
	"errors"
	"time"

	goretry "github.com/sethvargo/go-retry"
)

// Policy describes how an operation is retried.
type Policy struct {
	// Attempts is the total number of tries, including the first. Values below 1 mean 1.
	Attempts int

	// Delay is the fixed pause between tries.
	Delay time.Duration

	// Retryable classifies errors. Nil treats every error except context
	// cancellation as retryable.
	Retryable func(error) bool

	// OnRetry is called after a failed try that will be retried.
	OnRetry func(attempt int, err error)
}

// Fixed returns a policy with the given attempts and delay.
func Fixed(attempts int, delay time.Duration) Policy {
	return Policy{Attempts: attempts, Delay: delay}
}

// Permanent marks an error as not retryable regardless of the classifier.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

func (p Policy) retryable(err error) bool {
	if IsPermanent(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if p.Retryable == nil {
		return true
	}
	return p.Retryable(err)
}

func (p Policy) backoff() goretry.Backoff {
	var b goretry.Backoff
	if p.Delay > 0 {
		b = goretry.NewConstant(p.Delay)
	} else {
		b = goretry.BackoffFunc(func() (time.Duration, bool) { return 0, false })
	}
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	return goretry.WithMaxRetries(uint64(attempts-1), b)
}

// Do runs fn until it succeeds, returns a non-retryable error, or the
// attempts are exhausted. fn receives the 1-based attempt number. The last
// error is returned with any Permanent marker removed.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	attempt := 0
	err := goretry.Do(ctx, p.backoff(), func(ctx context.Context) error {
		attempt++
		err := fn(ctx, attempt)
		if err == nil {
			return nil
		}
		if !p.retryable(err) {
			return err
		}
		if p.OnRetry != nil && attempt < max(p.Attempts, 1) {
			p.OnRetry(attempt, err)
		}
		return goretry.RetryableError(err)
	})

	var perm *permanentError
	if errors.As(err, &perm) {
		return perm.err
	}
	return err
}

// DoValue is Do for functions that produce a value.
func DoValue[T any](ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) (T, error)) (T, error) {
	var out T
	err := p.Do(ctx, func(ctx context.Context, attempt int) error {
		v, err := fn(ctx, attempt)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
