package common

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// RetryOptions configures the retry behavior of WithRetry.
type RetryOptions struct {
	// Sleep waits for the given duration or until the context is done.
	// Defaults to a real time.After based sleep; tests inject a fake.
	Sleep func(ctx context.Context, d time.Duration) error
	// Delays holds the wait before each retry. Attempt n waits Delays[n-1];
	// attempts past the end of the slice reuse the last delay.
	Delays      []time.Duration
	MaxAttempts int
}

// DefaultRetryOptions returns the backoff schedule used for classification
// passes: three attempts with 10s, 30s and 60s between them.
func DefaultRetryOptions() RetryOptions {
	return RetryOptions{
		MaxAttempts: 3,
		Delays:      []time.Duration{10 * time.Second, 30 * time.Second, 60 * time.Second},
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// WithRetry executes an operation with configurable retry behavior. Errors
// wrapped in a non-retryable RetryableError abort immediately; everything
// else is retried until the attempt budget runs out.
func WithRetry(ctx context.Context, operation func() error, opts RetryOptions) error {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if len(opts.Delays) == 0 {
		opts.Delays = []time.Duration{time.Second}
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}

	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}

		var retryableErr *RetryableError
		if errors.As(err, &retryableErr) && !retryableErr.Retryable {
			return err
		}

		if attempt == opts.MaxAttempts {
			return fmt.Errorf("%w after %d attempts: %v", ErrMaxRetries, opts.MaxAttempts, err)
		}

		delay := opts.Delays[min(attempt, len(opts.Delays))-1]

		slog.Warn("Operation failed, retrying",
			"attempt", attempt,
			"max_attempts", opts.MaxAttempts,
			"delay", delay,
			"error", err)

		if sleepErr := opts.Sleep(ctx, delay); sleepErr != nil {
			return sleepErr
		}
	}

	return ErrMaxRetries
}
