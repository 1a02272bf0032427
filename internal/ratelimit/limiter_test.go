package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testLimiter(cooldown time.Duration) (*Limiter, *time.Time) {
	l := New(cooldown)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestLimiter_FirstSendAllowed(t *testing.T) {
	req := require.New(t)
	l, _ := testLimiter(5 * time.Second)

	allowed, left := l.TryAcquire("conn-1")
	req.True(allowed)
	req.Zero(left)
}

func TestLimiter_CooldownRejectsWithSecondsLeft(t *testing.T) {
	req := require.New(t)
	l, now := testLimiter(5 * time.Second)

	allowed, _ := l.TryAcquire("conn-1")
	req.True(allowed)

	// 2s later: 3s remain on the cooldown.
	*now = now.Add(2 * time.Second)
	allowed, left := l.TryAcquire("conn-1")
	req.False(allowed)
	req.Equal(3, left)

	// 6s after the accepted send: allowed again.
	*now = now.Add(4 * time.Second)
	allowed, left = l.TryAcquire("conn-1")
	req.True(allowed)
	req.Zero(left)
}

func TestLimiter_SecondsLeftRoundsUp(t *testing.T) {
	req := require.New(t)
	l, now := testLimiter(5 * time.Second)

	l.TryAcquire("conn-1")
	*now = now.Add(4*time.Second + 500*time.Millisecond)

	allowed, left := l.TryAcquire("conn-1")
	req.False(allowed)
	req.Equal(1, left)
}

func TestLimiter_RejectionDoesNotExtendCooldown(t *testing.T) {
	req := require.New(t)
	l, now := testLimiter(5 * time.Second)

	l.TryAcquire("conn-1")
	*now = now.Add(3 * time.Second)
	allowed, _ := l.TryAcquire("conn-1")
	req.False(allowed)

	// Cooldown still measured from the accepted send, not the rejection.
	*now = now.Add(2 * time.Second)
	allowed, _ = l.TryAcquire("conn-1")
	req.True(allowed)
}

func TestLimiter_ConnectionsAreIndependent(t *testing.T) {
	req := require.New(t)
	l, _ := testLimiter(5 * time.Second)

	allowed, _ := l.TryAcquire("conn-1")
	req.True(allowed)
	allowed, _ = l.TryAcquire("conn-2")
	req.True(allowed)
}

func TestLimiter_ForgetResetsState(t *testing.T) {
	req := require.New(t)
	l, _ := testLimiter(5 * time.Second)

	l.TryAcquire("conn-1")
	l.Forget("conn-1")

	// A brand-new connection with the same ID starts clean.
	allowed, _ := l.TryAcquire("conn-1")
	req.True(allowed)
}
