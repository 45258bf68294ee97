package engine

import (
	"sync"
	"time"
)

// OverlapLock prevents two classification passes from running concurrently.
// The hold expires after a TTL so a crashed run cannot block the scheduler
// forever; the TTL also caps the worst-case run duration a trigger will wait
// out.
type OverlapLock struct {
	now       func() time.Time
	heldUntil time.Time
	ttl       time.Duration
	mu        sync.Mutex
}

// NewOverlapLock creates a lock whose holds expire after ttl.
func NewOverlapLock(ttl time.Duration) *OverlapLock {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &OverlapLock{
		ttl: ttl,
		now: time.Now,
	}
}

// TryAcquire takes the lock if it is free or its previous hold expired.
// Returns false when another pass is still active.
func (l *OverlapLock) TryAcquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Before(l.heldUntil) {
		return false
	}
	l.heldUntil = now.Add(l.ttl)
	return true
}

// Release frees the lock before its TTL expires.
func (l *OverlapLock) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.heldUntil = time.Time{}
}

// Held reports whether the lock is currently taken.
func (l *OverlapLock) Held() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.now().Before(l.heldUntil)
}
