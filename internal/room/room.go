package room

import (
	"sync"
	"time"

	"room-coordinator/internal/models"
	"room-coordinator/internal/protocol"
)

// State is the per-room lifecycle phase.
type State int

const (
	// StateForming: user-created room that has not yet seen a second member.
	StateForming State = iota
	StateActive
	// StateClosing: teardown initiated, no new joins accepted.
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateForming:
		return "forming"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// Sink receives outbound events for one connection. Send must not block;
// it reports false when the consumer is too slow and the event was dropped.
type Sink interface {
	ID() string
	Send(ev protocol.Outbound) bool
}

// Member binds one connection to the room under its assigned name.
type Member struct {
	ConnID   string
	UserID   string
	Username string
	Sink     Sink
}

// Membership is what Admit returns to the gateway.
type Membership struct {
	RoomID   string
	Username string
	Count    int
	// SecondJoin is true when this admit moved the room out of forming.
	SecondJoin bool
}

// Room holds the live membership of one channel. All mutation happens under
// mu, giving the per-room serialization the membership invariant depends on.
type Room struct {
	// immutable after creation
	id    string
	title string
	kind  models.RoomKind

	mu           sync.Mutex
	state        State
	members      map[string]*Member
	lastActivity time.Time
	expiresAt    *time.Time
}

func (r *Room) ID() string            { return r.id }
func (r *Room) Title() string         { return r.title }
func (r *Room) Kind() models.RoomKind { return r.kind }

func (r *Room) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Room) MemberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// Members returns a snapshot safe to iterate without holding the room lock.
func (r *Room) Members() []*Member {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.memberSnapshot()
}

func (r *Room) LastActivity() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastActivity
}

// Fanout enqueues ev to every member under the room lock, so concurrent
// fanouts on one room reach all members in a single order. Returns the
// connection IDs of members whose send buffer was full.
func (r *Room) Fanout(ev protocol.Outbound) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fanoutLocked(ev)
}

// fanoutLocked must be called with r.mu held.
func (r *Room) fanoutLocked(ev protocol.Outbound) []string {
	var dropped []string
	for _, m := range r.members {
		if !m.Sink.Send(ev) {
			dropped = append(dropped, m.ConnID)
		}
	}
	return dropped
}

// memberSnapshot must be called with r.mu held.
func (r *Room) memberSnapshot() []*Member {
	out := make([]*Member, 0, len(r.members))
	for _, m := range r.members {
		out = append(out, m)
	}
	return out
}

// takenNames must be called with r.mu held.
func (r *Room) takenNames() map[string]struct{} {
	taken := make(map[string]struct{}, len(r.members))
	for _, m := range r.members {
		taken[m.Username] = struct{}{}
	}
	return taken
}
