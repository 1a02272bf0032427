package ratelimit

import (
	"math"
	"sync"
	"time"
)

// Limiter is the slow-mode gate: one fixed cooldown per connection, measured
// from the last accepted send. Rejected sends are dropped, never queued.
type Limiter struct {
	mu       sync.Mutex
	cooldown time.Duration
	lastSend map[string]time.Time
	now      func() time.Time
}

func New(cooldown time.Duration) *Limiter {
	return &Limiter{
		cooldown: cooldown,
		lastSend: make(map[string]time.Time),
		now:      time.Now,
	}
}

// TryAcquire reports whether the connection may send now. On success the
// send time is recorded; on rejection it returns the whole seconds left on
// the cooldown, rounded up so the client never undershoots the wait.
func (l *Limiter) TryAcquire(connID string) (bool, int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if last, ok := l.lastSend[connID]; ok {
		remaining := l.cooldown - now.Sub(last)
		if remaining > 0 {
			return false, int(math.Ceil(remaining.Seconds()))
		}
	}
	l.lastSend[connID] = now
	return true, 0
}

// Forget drops the connection's state. Called on disconnect so limiter
// lifetime matches the connection, and when an accepted send is rolled back
// because the message was never delivered.
func (l *Limiter) Forget(connID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.lastSend, connID)
}
