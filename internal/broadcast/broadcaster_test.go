package broadcast

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"room-coordinator/internal/identity"
	"room-coordinator/internal/models"
	"room-coordinator/internal/protocol"
	"room-coordinator/internal/room"
)

type recordingSink struct {
	id string

	mu     sync.Mutex
	events []protocol.Outbound
}

func (s *recordingSink) ID() string { return s.id }

func (s *recordingSink) Send(ev protocol.Outbound) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return true
}

func (s *recordingSink) Events() []protocol.Outbound {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]protocol.Outbound(nil), s.events...)
}

func (s *recordingSink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}

type fakeMessageStore struct {
	mu    sync.Mutex
	saved []models.Message
	err   error
	done  chan struct{}
}

func newFakeMessageStore() *fakeMessageStore {
	return &fakeMessageStore{done: make(chan struct{}, 16)}
}

func (f *fakeMessageStore) SaveMessage(ctx context.Context, roomID, username, content string, sentAt time.Time) error {
	f.mu.Lock()
	f.saved = append(f.saved, models.Message{RoomID: roomID, Username: username, Content: content, SentAt: sentAt})
	err := f.err
	f.mu.Unlock()
	f.done <- struct{}{}
	return err
}

func (f *fakeMessageStore) RoomHistory(ctx context.Context, roomID string, limit int) ([]*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Message
	for i := range f.saved {
		if f.saved[i].RoomID == roomID {
			out = append(out, &f.saved[i])
		}
	}
	return out, nil
}

type staticFeed struct {
	sinks []room.Sink
}

func (f staticFeed) Sinks() []room.Sink { return f.sinks }

func setupRoom(t *testing.T, reg *room.Registry, roomID string, sinks ...*recordingSink) {
	t.Helper()
	reg.Create(&models.Room{ID: roomID, Title: "test", Kind: models.RoomKindSystem, IsActive: true})
	for _, s := range sinks {
		_, err := reg.Admit(roomID, s.id, "user", s)
		require.NoError(t, err)
	}
	// Drop the admission announcements; the tests below assert on what the
	// broadcaster itself delivers.
	for _, s := range sinks {
		s.Reset()
	}
}

func TestBroadcast_DeliversToAllMembersIncludingSender(t *testing.T) {
	req := require.New(t)
	reg := room.NewRegistry(identity.NewAllocator(), 0)
	store := newFakeMessageStore()
	a := &recordingSink{id: "conn-a"}
	b := &recordingSink{id: "conn-b"}
	setupRoom(t, reg, "r1", a, b)

	bc := New(reg, store, staticFeed{})
	ev := bc.Broadcast("r1", "SwiftFox7", "hello")

	req.Equal("SwiftFox7", ev.Username)
	for _, sink := range []*recordingSink{a, b} {
		events := sink.Events()
		req.Len(events, 1)
		msg, ok := events[0].(protocol.NewMessage)
		req.True(ok)
		req.Equal("hello", msg.Message)
		req.Equal("SwiftFox7", msg.Username)
	}
}

func TestBroadcast_PersistsAsynchronously(t *testing.T) {
	req := require.New(t)
	reg := room.NewRegistry(identity.NewAllocator(), 0)
	store := newFakeMessageStore()
	a := &recordingSink{id: "conn-a"}
	setupRoom(t, reg, "r1", a)

	bc := New(reg, store, staticFeed{})
	sent := bc.Broadcast("r1", "SwiftFox7", "hello")

	select {
	case <-store.done:
	case <-time.After(time.Second):
		t.Fatal("message was never persisted")
	}

	// Round-trip: history reproduces the broadcast fields.
	history, err := store.RoomHistory(context.Background(), "r1", 10)
	req.NoError(err)
	req.Len(history, 1)
	req.Equal(sent.Username, history[0].Username)
	req.Equal(sent.Message, history[0].Content)
	req.True(history[0].SentAt.Equal(sent.Time))
}

func TestBroadcast_PersistenceFailureDoesNotAffectDelivery(t *testing.T) {
	req := require.New(t)
	reg := room.NewRegistry(identity.NewAllocator(), 0)
	store := newFakeMessageStore()
	store.err = errors.New("store down")
	a := &recordingSink{id: "conn-a"}
	setupRoom(t, reg, "r1", a)

	bc := New(reg, store, staticFeed{})
	bc.Broadcast("r1", "SwiftFox7", "hello")

	select {
	case <-store.done:
	case <-time.After(time.Second):
		t.Fatal("persistence was never attempted")
	}
	req.Len(a.Events(), 1, "delivery must not be rolled back")
}

func TestSystemEvent_RoomScoped(t *testing.T) {
	req := require.New(t)
	reg := room.NewRegistry(identity.NewAllocator(), 0)
	a := &recordingSink{id: "conn-a"}
	b := &recordingSink{id: "conn-b"}
	setupRoom(t, reg, "r1", a)
	setupRoom(t, reg, "r2", b)

	bc := New(reg, newFakeMessageStore(), staticFeed{})
	bc.SystemEvent("r1", protocol.LastUserWarning{Message: "alone"})

	req.Len(a.Events(), 1)
	req.Empty(b.Events(), "system events must stay room-scoped")
}

func TestAnnounceRoom_ReachesNonMembers(t *testing.T) {
	req := require.New(t)
	reg := room.NewRegistry(identity.NewAllocator(), 0)
	member := &recordingSink{id: "conn-a"}
	lurker := &recordingSink{id: "conn-b"} // connected, in no room
	setupRoom(t, reg, "r1", member)

	bc := New(reg, newFakeMessageStore(), staticFeed{sinks: []room.Sink{member, lurker}})

	expires := time.Now().Add(2 * time.Hour)
	bc.AnnounceRoom(&models.Room{
		ID:        "r2",
		Title:     "rooftop",
		Kind:      models.RoomKindUser,
		Latitude:  28.6,
		Longitude: 77.2,
		CreatedBy: "user-9",
		ExpiresAt: &expires,
	})

	for _, sink := range []*recordingSink{member, lurker} {
		events := sink.Events()
		req.Len(events, 1)
		created, ok := events[0].(protocol.NewRoomCreated)
		req.True(ok)
		req.Equal("r2", created.ID)
		req.Equal("rooftop", created.Title)
	}
}
