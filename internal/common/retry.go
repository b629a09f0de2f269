package common

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// HTTPStatusError is implemented by client errors that carry an HTTP status
// code, letting the retry classifier distinguish 5xx/429 from 4xx.
type HTTPStatusError interface {
	error
	HTTPStatus() int
}

// ExhaustedError wraps the last error after all retry attempts failed.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retry exhausted (attempts=%d): %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// SleepFunc delays for d or returns early with the context's error.
// Injected so tests can record the schedule instead of sleeping.
type SleepFunc func(ctx context.Context, d time.Duration) error

// SleepWithContext is the production SleepFunc.
func SleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RetryOptions configures Retry.
type RetryOptions struct {
	MaxAttempts int
	Base        time.Duration
	Cap         time.Duration
	IsRetryable func(error) bool
	Sleep       SleepFunc
}

// DefaultRetryOptions matches the external-port retry contract: five
// attempts with exponential backoff between them.
func DefaultRetryOptions() RetryOptions {
	return RetryOptions{
		MaxAttempts: 5,
		Base:        1 * time.Second,
		Cap:         32 * time.Second,
		IsRetryable: IsTransient,
		Sleep:       SleepWithContext,
	}
}

// IsTransient reports whether an error is worth retrying: network timeouts,
// HTTP 5xx, and explicit rate limits. Cancellation and client-side errors
// surface immediately.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr HTTPStatusError
	if errors.As(err, &statusErr) {
		code := statusErr.HTTPStatus()
		return code >= 500 || code == 429
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	// Unclassified errors from external ports are treated as transient.
	return true
}

// Retry runs op up to MaxAttempts times, sleeping min(base*2^(n-1), cap)
// between attempts. Non-retryable errors surface immediately. On
// exhaustion the last error is wrapped with the attempt count.
func Retry(ctx context.Context, op func() error, opts RetryOptions) error {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	if opts.Base <= 0 {
		opts.Base = 1 * time.Second
	}
	if opts.Cap <= 0 {
		opts.Cap = 32 * time.Second
	}
	if opts.IsRetryable == nil {
		opts.IsRetryable = IsTransient
	}
	if opts.Sleep == nil {
		opts.Sleep = SleepWithContext
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = opts.Base
	bo.MaxInterval = opts.Cap
	bo.Multiplier = 2.0
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0 // attempts are bounded, not elapsed time
	bo.Reset()

	var lastErr error
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !opts.IsRetryable(lastErr) {
			return lastErr
		}
		if attempt == opts.MaxAttempts {
			break
		}

		if err := opts.Sleep(ctx, bo.NextBackOff()); err != nil {
			return err
		}
	}

	return &ExhaustedError{Attempts: opts.MaxAttempts, Err: lastErr}
}
