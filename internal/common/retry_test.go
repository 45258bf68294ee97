package common

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeSleep(record *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*record = append(*record, d)
		return nil
	}
}

func TestWithRetrySucceedsFirstAttempt(t *testing.T) {
	var slept []time.Duration
	calls := 0

	err := WithRetry(context.Background(), func() error {
		calls++
		return nil
	}, RetryOptions{MaxAttempts: 3, Sleep: fakeSleep(&slept)})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, slept)
}

func TestWithRetryBackoffSchedule(t *testing.T) {
	var slept []time.Duration
	calls := 0

	opts := DefaultRetryOptions()
	opts.Sleep = fakeSleep(&slept)

	err := WithRetry(context.Background(), func() error {
		calls++
		return errors.New("transient")
	}, opts)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMaxRetries)
	assert.Equal(t, 3, calls)
	// Final attempt fails without sleeping again.
	assert.Equal(t, []time.Duration{10 * time.Second, 30 * time.Second}, slept)
}

func TestWithRetryEventualSuccess(t *testing.T) {
	var slept []time.Duration
	calls := 0

	err := WithRetry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, RetryOptions{
		MaxAttempts: 3,
		Delays:      []time.Duration{time.Second, 2 * time.Second},
		Sleep:       fakeSleep(&slept),
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, slept)
}

func TestWithRetryNonRetryableAbortsImmediately(t *testing.T) {
	calls := 0

	err := WithRetry(context.Background(), func() error {
		calls++
		return &RetryableError{Err: errors.New("bad config"), Retryable: false}
	}, RetryOptions{MaxAttempts: 3, Sleep: fakeSleep(new([]time.Duration))})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.NotErrorIs(t, err, ErrMaxRetries)
}

func TestWithRetryContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WithRetry(ctx, func() error {
		return errors.New("transient")
	}, RetryOptions{MaxAttempts: 2, Delays: []time.Duration{time.Millisecond}})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrRateLimit))
	assert.True(t, IsRetryable(&RetryableError{Err: errors.New("x"), Retryable: true}))
	assert.False(t, IsRetryable(&RetryableError{Err: errors.New("x"), Retryable: false}))
	assert.False(t, IsRetryable(errors.New("plain")))
}
