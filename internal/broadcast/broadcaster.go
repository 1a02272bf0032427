package broadcast

import (
	"context"
	"time"

	"room-coordinator/internal/database"
	"room-coordinator/internal/models"
	"room-coordinator/internal/protocol"
	"room-coordinator/internal/room"
	"room-coordinator/pkg/logger"
)

const persistTimeout = 10 * time.Second

// Feed lists every connected sink, room member or not. It backs the
// geographic discovery fan-out, which is deliberately cross-room.
type Feed interface {
	Sinks() []room.Sink
}

// Broadcaster fans events out to room members and hands accepted messages
// to the store. Delivery to connected members is the primary guarantee;
// durable history is best-effort.
type Broadcaster struct {
	registry *room.Registry
	store    database.MessageStore
	feed     Feed
	now      func() time.Time
}

func New(registry *room.Registry, store database.MessageStore, feed Feed) *Broadcaster {
	return &Broadcaster{
		registry: registry,
		store:    store,
		feed:     feed,
		now:      time.Now,
	}
}

// Broadcast delivers a new-message event to every member of the room,
// sender included, and persists it without blocking delivery.
func (b *Broadcaster) Broadcast(roomID, senderName, text string) protocol.NewMessage {
	ev := protocol.NewMessage{
		Username: senderName,
		Message:  text,
		Time:     b.now(),
	}

	if r, ok := b.registry.Get(roomID); ok {
		for _, connID := range r.Fanout(ev) {
			logger.Error("Dropped new-message for slow consumer %s in room %s", connID, roomID)
		}
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := b.store.SaveMessage(ctx, roomID, ev.Username, ev.Message, ev.Time); err != nil {
			logger.Error("Failed to persist message in room %s: %v", roomID, err)
		}
	}()

	return ev
}

// SystemEvent delivers a room-scoped event to every current member, under
// the room's fanout serialization.
func (b *Broadcaster) SystemEvent(roomID string, ev protocol.Outbound) {
	r, ok := b.registry.Get(roomID)
	if !ok {
		return
	}
	for _, connID := range r.Fanout(ev) {
		logger.Error("Dropped %s for slow consumer %s in room %s", ev.EventName(), connID, roomID)
	}
}

// AnnounceRoom pushes a new-room-created event to the discovery feed:
// every connected socket, not just members of any room.
func (b *Broadcaster) AnnounceRoom(rm *models.Room) {
	ev := protocol.NewRoomCreated{
		ID:        rm.ID,
		Title:     rm.Title,
		Latitude:  rm.Latitude,
		Longitude: rm.Longitude,
		CreatedBy: rm.CreatedBy,
		ExpiresAt: rm.ExpiresAt,
	}
	for _, sink := range b.feed.Sinks() {
		sink.Send(ev)
	}
}
