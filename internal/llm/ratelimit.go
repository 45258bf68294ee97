package llm

import (
	"context"
	"sync"
	"time"

	"github.com/fodmapworks/fodmap-flow/internal/common"
)

// WindowLimiter bounds external calls to N per fixed time window. The counter
// and its expiry are checked and advanced under one lock, so concurrent
// callers (a job run and a request-path classification) cannot double-spend
// the budget.
type WindowLimiter struct {
	now         func() time.Time
	windowStart time.Time
	limit       int
	window      time.Duration
	count       int
	mu          sync.Mutex
}

// NewWindowLimiter creates a limiter allowing limit calls per window.
func NewWindowLimiter(limit int, window time.Duration) *WindowLimiter {
	if limit <= 0 {
		limit = 15
	}
	if window <= 0 {
		window = time.Minute
	}
	return &WindowLimiter{
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// Allow reports whether a call fits in the current window, consuming one slot
// when it does. The first call of a fresh window starts the window's expiry.
func (l *WindowLimiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if l.count == 0 || now.Sub(l.windowStart) >= l.window {
		l.windowStart = now
		l.count = 1
		return true
	}

	if l.count < l.limit {
		l.count++
		return true
	}
	return false
}

// Remaining returns the unused budget of the current window.
func (l *WindowLimiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.count == 0 || l.now().Sub(l.windowStart) >= l.window {
		return l.limit
	}
	return l.limit - l.count
}

// Wait polls Allow up to attempts times, sleeping delay between tries.
// Returns common.ErrRateLimit when the budget never frees up.
func (l *WindowLimiter) Wait(ctx context.Context, attempts int, delay time.Duration, sleep func(context.Context, time.Duration) error) error {
	if attempts <= 0 {
		attempts = 1
	}
	if sleep == nil {
		sleep = func(ctx context.Context, d time.Duration) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d):
				return nil
			}
		}
	}

	for attempt := 0; attempt < attempts; attempt++ {
		if l.Allow() {
			return nil
		}
		if attempt == attempts-1 {
			break
		}
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
	return common.ErrRateLimit
}
