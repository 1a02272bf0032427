package lifecycle

import (
	"sync"
	"time"
)

type TimerKind int

const (
	KindInactivity TimerKind = iota
	KindForming
	KindLastUser
)

func (k TimerKind) String() string {
	switch k {
	case KindInactivity:
		return "inactivity"
	case KindForming:
		return "forming"
	case KindLastUser:
		return "last-user"
	default:
		return "unknown"
	}
}

// Scheduler owns every room timer. Timers are single-flight per room and
// kind: re-arming cancels the previous instance, and CancelAll on room
// deletion guarantees no dangling callback fires against a dead room.
type Scheduler struct {
	mu     sync.Mutex
	timers map[string]map[TimerKind]*time.Timer
	closed bool
}

func NewScheduler() *Scheduler {
	return &Scheduler{
		timers: make(map[string]map[TimerKind]*time.Timer),
	}
}

// ScheduleInactivityExpiry arms or re-arms the inactivity countdown;
// callers re-arm it on every join, leave and message.
func (s *Scheduler) ScheduleInactivityExpiry(roomID string, d time.Duration, fire func()) {
	s.schedule(roomID, KindInactivity, d, fire)
}

// ScheduleFormingTimeout arms the waiting-for-second-user countdown.
// A second join cancels it via Cancel(roomID, KindForming).
func (s *Scheduler) ScheduleFormingTimeout(roomID string, d time.Duration, fire func()) {
	s.schedule(roomID, KindForming, d, fire)
}

// ScheduleLastUserGrace arms the countdown that runs while exactly one
// member remains in the room.
func (s *Scheduler) ScheduleLastUserGrace(roomID string, d time.Duration, fire func()) {
	s.schedule(roomID, KindLastUser, d, fire)
}

func (s *Scheduler) schedule(roomID string, kind TimerKind, d time.Duration, fire func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	byKind, ok := s.timers[roomID]
	if !ok {
		byKind = make(map[TimerKind]*time.Timer)
		s.timers[roomID] = byKind
	}
	if prev, ok := byKind[kind]; ok {
		prev.Stop()
	}

	var t *time.Timer
	t = time.AfterFunc(d, func() {
		// A re-arm may have replaced this timer between firing and
		// running; only the current instance is allowed to act.
		if !s.clearIfCurrent(roomID, kind, t) {
			return
		}
		fire()
	})
	byKind[kind] = t
}

func (s *Scheduler) clearIfCurrent(roomID string, kind TimerKind, t *time.Timer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	byKind, ok := s.timers[roomID]
	if !ok || byKind[kind] != t {
		return false
	}
	delete(byKind, kind)
	if len(byKind) == 0 {
		delete(s.timers, roomID)
	}
	return true
}

func (s *Scheduler) Cancel(roomID string, kind TimerKind) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if byKind, ok := s.timers[roomID]; ok {
		if t, ok := byKind[kind]; ok {
			t.Stop()
			delete(byKind, kind)
		}
		if len(byKind) == 0 {
			delete(s.timers, roomID)
		}
	}
}

// CancelAll stops every timer for the room; called on room deletion.
func (s *Scheduler) CancelAll(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.timers[roomID] {
		t.Stop()
	}
	delete(s.timers, roomID)
}

// Shutdown stops all timers and rejects further scheduling.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	for roomID, byKind := range s.timers {
		for _, t := range byKind {
			t.Stop()
		}
		delete(s.timers, roomID)
	}
}

// Pending reports whether a timer of the given kind is armed for the room.
func (s *Scheduler) Pending(roomID string, kind TimerKind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	byKind, ok := s.timers[roomID]
	if !ok {
		return false
	}
	_, ok = byKind[kind]
	return ok
}
