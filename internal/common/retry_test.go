package common

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusErr struct{ code int }

func (e *statusErr) Error() string   { return fmt.Sprintf("http %d", e.code) }
func (e *statusErr) HTTPStatus() int { return e.code }

// recordedSleep collects the delay schedule instead of sleeping.
func recordedSleep(delays *[]time.Duration) SleepFunc {
	return func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
}

func TestRetry_ExhaustionScheduleAndAttempts(t *testing.T) {
	var delays []time.Duration
	attempts := 0

	opts := RetryOptions{
		MaxAttempts: 5,
		Base:        2 * time.Second,
		Cap:         32 * time.Second,
		Sleep:       recordedSleep(&delays),
	}

	err := Retry(context.Background(), func() error {
		attempts++
		return &statusErr{code: 503}
	}, opts)

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 5, exhausted.Attempts)
	assert.Contains(t, err.Error(), "attempts=5")
	assert.Equal(t, 5, attempts)

	// Delays double from the base: 2+4+8+16 = 30s total between 5 attempts.
	require.Equal(t, []time.Duration{
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
	}, delays)

	var total time.Duration
	for _, d := range delays {
		total += d
	}
	assert.GreaterOrEqual(t, total, 30*time.Second)
	assert.LessOrEqual(t, total, 62*time.Second)
}

func TestRetry_SucceedsMidway(t *testing.T) {
	var delays []time.Duration
	attempts := 0

	err := Retry(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return &statusErr{code: 500}
		}
		return nil
	}, RetryOptions{MaxAttempts: 5, Base: time.Second, Sleep: recordedSleep(&delays)})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Len(t, delays, 2)
}

func TestRetry_ClientErrorSurfacesImmediately(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), func() error {
		attempts++
		return &statusErr{code: 404}
	}, RetryOptions{MaxAttempts: 5, Sleep: recordedSleep(&[]time.Duration{})})

	var exhausted *ExhaustedError
	assert.False(t, errors.As(err, &exhausted))
	assert.Equal(t, 1, attempts)
}

func TestRetry_CancellationStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0

	err := Retry(ctx, func() error {
		attempts++
		cancel()
		return &statusErr{code: 503}
	}, RetryOptions{
		MaxAttempts: 5,
		Sleep:       SleepWithContext,
		Base:        10 * time.Millisecond,
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(context.Canceled))
	assert.False(t, IsTransient(context.DeadlineExceeded))
	assert.False(t, IsTransient(&statusErr{code: 400}))
	assert.False(t, IsTransient(&statusErr{code: 404}))
	assert.True(t, IsTransient(&statusErr{code: 429}))
	assert.True(t, IsTransient(&statusErr{code: 500}))
	assert.True(t, IsTransient(&statusErr{code: 503}))
	// Unclassified errors are retried.
	assert.True(t, IsTransient(errors.New("connection reset")))
}
