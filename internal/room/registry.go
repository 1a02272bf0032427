package room

import (
	"sync"
	"time"

	"github.com/samber/lo"

	"room-coordinator/internal/identity"
	"room-coordinator/internal/models"
	"room-coordinator/internal/protocol"
)

// Registry is the in-memory authority for live rooms and their members.
// The registry lock only guards the room map; each room serializes its own
// mutation, so operations on different rooms run fully in parallel.
type Registry struct {
	mu       sync.RWMutex
	rooms    map[string]*Room
	alloc    *identity.Allocator
	capacity int
	now      func() time.Time
}

func NewRegistry(alloc *identity.Allocator, capacity int) *Registry {
	return &Registry{
		rooms:    make(map[string]*Room),
		alloc:    alloc,
		capacity: capacity,
		now:      time.Now,
	}
}

// Create registers a live room from its stored metadata. System rooms skip
// forming; user rooms start forming until a second member arrives.
func (g *Registry) Create(rm *models.Room) *Room {
	g.mu.Lock()
	defer g.mu.Unlock()

	if existing, ok := g.rooms[rm.ID]; ok {
		return existing
	}

	state := StateActive
	if rm.Kind == models.RoomKindUser {
		state = StateForming
	}
	r := &Room{
		id:           rm.ID,
		title:        rm.Title,
		kind:         rm.Kind,
		state:        state,
		members:      make(map[string]*Member),
		lastActivity: g.now(),
		expiresAt:    rm.ExpiresAt,
	}
	g.rooms[rm.ID] = r
	return r
}

func (g *Registry) Get(roomID string) (*Room, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	r, ok := g.rooms[roomID]
	return r, ok
}

func (g *Registry) Rooms() []*Room {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return lo.Values(g.rooms)
}

// LiveCount returns the current member count, 0 for unknown rooms.
func (g *Registry) LiveCount(roomID string) int {
	r, ok := g.Get(roomID)
	if !ok {
		return 0
	}
	return r.MemberCount()
}

// Admit adds the connection to the room under a freshly allocated name.
// The identity, join announcement and fresh count are enqueued before the
// room mutex is released, so every member observes membership changes in
// admit order and no one sees a count stale relative to a join it already
// received.
func (g *Registry) Admit(roomID, connID, userID string, sink Sink) (Membership, error) {
	r, ok := g.Get(roomID)
	if !ok {
		return Membership{}, ErrRoomNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateClosing {
		return Membership{}, ErrRoomClosing
	}
	if r.expiresAt != nil && g.now().After(*r.expiresAt) {
		return Membership{}, ErrRoomNotFound
	}
	if g.capacity > 0 && len(r.members) >= g.capacity {
		return Membership{}, ErrRoomFull
	}

	name := g.alloc.Allocate(r.takenNames())
	r.members[connID] = &Member{
		ConnID:   connID,
		UserID:   userID,
		Username: name,
		Sink:     sink,
	}
	r.lastActivity = g.now()

	secondJoin := false
	if r.state == StateForming && len(r.members) >= 2 {
		r.state = StateActive
		secondJoin = true
	}

	// Identity first, so the new member never sees itself announced as
	// "other"; then the join announcement; then the fresh count to all.
	sink.Send(protocol.YourIdentity{Username: name})
	for _, m := range r.members {
		if m.ConnID != connID {
			m.Sink.Send(protocol.UserJoined{Username: name})
		}
	}
	r.fanoutLocked(protocol.UserCount{Count: len(r.members)})

	return Membership{
		RoomID:     roomID,
		Username:   name,
		Count:      len(r.members),
		SecondJoin: secondJoin,
	}, nil
}

// Remove drops the connection's membership and announces the departure to
// the remaining members, still under the room mutex for the same ordering
// guarantee Admit gives. Safe to call twice: the second call reports
// removed=false and changes nothing.
func (g *Registry) Remove(roomID, connID string) (username string, count int, empty bool, removed bool) {
	r, ok := g.Get(roomID)
	if !ok {
		return "", 0, false, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.members[connID]
	if !ok {
		return "", len(r.members), len(r.members) == 0, false
	}
	delete(r.members, connID)
	r.lastActivity = g.now()

	for _, rest := range r.members {
		rest.Sink.Send(protocol.UserLeft{Username: m.Username})
	}
	r.fanoutLocked(protocol.UserCount{Count: len(r.members)})

	return m.Username, len(r.members), len(r.members) == 0, true
}

// TouchActivity resets the room's inactivity clock.
func (g *Registry) TouchActivity(roomID string) {
	r, ok := g.Get(roomID)
	if !ok {
		return
	}
	r.mu.Lock()
	r.lastActivity = g.now()
	r.mu.Unlock()
}

// Delete marks the room closing, removes it from the registry and returns
// the final member snapshot so the caller can emit terminal events before
// severing the transports.
func (g *Registry) Delete(roomID string) ([]*Member, bool) {
	g.mu.Lock()
	r, ok := g.rooms[roomID]
	if !ok {
		g.mu.Unlock()
		return nil, false
	}
	delete(g.rooms, roomID)
	g.mu.Unlock()

	r.mu.Lock()
	r.state = StateClosing
	members := r.memberSnapshot()
	r.members = make(map[string]*Member)
	r.mu.Unlock()

	return members, true
}
