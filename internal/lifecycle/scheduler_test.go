package lifecycle

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestScheduler_FiresAfterDuration(t *testing.T) {
	req := require.New(t)
	s := NewScheduler()
	defer s.Shutdown()

	fired := make(chan struct{})
	s.ScheduleFormingTimeout("r1", 10*time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("forming timeout never fired")
	}
	req.False(s.Pending("r1", KindForming))
}

func TestScheduler_ReArmCancelsPrevious(t *testing.T) {
	req := require.New(t)
	s := NewScheduler()
	defer s.Shutdown()

	var fires atomic.Int32
	for range 5 {
		s.ScheduleInactivityExpiry("r1", 20*time.Millisecond, func() { fires.Add(1) })
	}

	time.Sleep(100 * time.Millisecond)
	req.EqualValues(1, fires.Load(), "re-arming must be single-flight")
}

func TestScheduler_CancelPreventsFiring(t *testing.T) {
	req := require.New(t)
	s := NewScheduler()
	defer s.Shutdown()

	var fired atomic.Bool
	s.ScheduleFormingTimeout("r1", 20*time.Millisecond, func() { fired.Store(true) })
	s.Cancel("r1", KindForming)

	time.Sleep(60 * time.Millisecond)
	req.False(fired.Load())
	req.False(s.Pending("r1", KindForming))
}

func TestScheduler_CancelAllStopsEveryKind(t *testing.T) {
	req := require.New(t)
	s := NewScheduler()
	defer s.Shutdown()

	var fired atomic.Int32
	s.ScheduleInactivityExpiry("r1", 20*time.Millisecond, func() { fired.Add(1) })
	s.ScheduleFormingTimeout("r1", 20*time.Millisecond, func() { fired.Add(1) })
	s.ScheduleLastUserGrace("r1", 20*time.Millisecond, func() { fired.Add(1) })
	s.CancelAll("r1")

	time.Sleep(60 * time.Millisecond)
	req.Zero(fired.Load(), "cancelled timers must not call back")
}

func TestScheduler_RoomsAreIndependent(t *testing.T) {
	req := require.New(t)
	s := NewScheduler()
	defer s.Shutdown()

	var fired atomic.Int32
	s.ScheduleInactivityExpiry("r1", 20*time.Millisecond, func() { fired.Add(1) })
	s.ScheduleInactivityExpiry("r2", 20*time.Millisecond, func() { fired.Add(1) })
	s.CancelAll("r1")

	time.Sleep(100 * time.Millisecond)
	req.EqualValues(1, fired.Load())
}

func TestScheduler_ShutdownRejectsNewTimers(t *testing.T) {
	req := require.New(t)
	s := NewScheduler()
	s.Shutdown()

	var fired atomic.Bool
	s.ScheduleFormingTimeout("r1", time.Millisecond, func() { fired.Store(true) })

	time.Sleep(30 * time.Millisecond)
	req.False(fired.Load())
}
