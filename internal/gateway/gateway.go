package gateway

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"room-coordinator/internal/auth"
	"room-coordinator/internal/broadcast"
	"room-coordinator/internal/config"
	"room-coordinator/internal/database"
	"room-coordinator/internal/lifecycle"
	"room-coordinator/internal/models"
	"room-coordinator/internal/moderation"
	"room-coordinator/internal/protocol"
	"room-coordinator/internal/ratelimit"
	"room-coordinator/internal/room"
	"room-coordinator/pkg/logger"
)

// Gateway is the protocol-facing layer: it authenticates connections, binds
// them to rooms, routes inbound events and pushes outbound events back.
type Gateway struct {
	cfg       *config.Config
	auth      *auth.Service
	registry  *room.Registry
	limiter   *ratelimit.Limiter
	scheduler *lifecycle.Scheduler
	mod       moderation.Checker
	rooms     database.RoomStore
	upgrader  websocket.Upgrader

	// set after construction; the broadcaster's discovery feed is this
	// gateway's connection set
	broadcaster *broadcast.Broadcaster

	mu    sync.RWMutex
	conns map[string]*Connection
}

func New(cfg *config.Config, authService *auth.Service, registry *room.Registry,
	limiter *ratelimit.Limiter, scheduler *lifecycle.Scheduler,
	mod moderation.Checker, rooms database.RoomStore) *Gateway {
	return &Gateway{
		cfg:       cfg,
		auth:      authService,
		registry:  registry,
		limiter:   limiter,
		scheduler: scheduler,
		mod:       mod,
		rooms:     rooms,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // Configure for production
		},
		conns: make(map[string]*Connection),
	}
}

func (g *Gateway) SetBroadcaster(b *broadcast.Broadcaster) {
	g.broadcaster = b
}

// Sinks implements broadcast.Feed: every connected socket, for the
// cross-room discovery fan-out.
func (g *Gateway) Sinks() []room.Sink {
	g.mu.RLock()
	defer g.mu.RUnlock()
	sinks := make([]room.Sink, 0, len(g.conns))
	for _, c := range g.conns {
		sinks = append(sinks, c)
	}
	return sinks
}

// HandleWebSocket authenticates and upgrades an incoming connection.
// Missing or invalid tokens are rejected before the upgrade; banned users
// get the user-banned event over the socket and are then disconnected.
func (g *Gateway) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}

	userID, err := g.auth.Verify(r.Context(), token)
	var banErr *auth.BanError
	if err != nil && !errors.As(err, &banErr) {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, upgradeErr := g.upgrader.Upgrade(w, r, nil)
	if upgradeErr != nil {
		logger.Error("Upgrade error: %v", upgradeErr)
		return
	}

	c := &Connection{
		id:     uuid.NewString(),
		userID: userID,
		gw:     g,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
	}

	if banErr != nil {
		// Relay the verdict, then force the disconnect.
		go c.writePump()
		c.Send(protocol.UserBanned{
			Message:   "You have been banned",
			BanReason: banErr.Reason,
			BannedAt:  banErr.BannedAt,
		})
		c.closeSend()
		return
	}

	g.mu.Lock()
	g.conns[c.id] = c
	g.mu.Unlock()

	logger.Info("Connection %s established for user %s", c.id, userID)

	go c.writePump()
	go c.readPump()
}

func (g *Gateway) route(c *Connection, ev protocol.Inbound) {
	switch ev := ev.(type) {
	case protocol.JoinRoom:
		g.onJoinRoom(c, ev.RoomID)
	case protocol.LeaveRoom:
		g.onLeaveRoom(c, ev.RoomID)
	case protocol.SendMessage:
		g.onSendMessage(c, ev.RoomID, ev.Message)
	}
}

func (g *Gateway) onJoinRoom(c *Connection, roomID string) {
	// A connection is in at most one room; joining another leaves the
	// current one first.
	if current, _ := c.currentRoom(); current != "" && current != roomID {
		g.leaveCurrentRoom(c)
	}

	liveRoom, err := g.resolveRoom(roomID)
	if err != nil {
		c.Send(protocol.RoomExpired{
			RoomID:  roomID,
			Message: "This room no longer exists",
		})
		return
	}

	membership, err := g.registry.Admit(roomID, c.id, c.userID, c)
	switch {
	case errors.Is(err, room.ErrRoomFull):
		c.Send(protocol.RoomClosing{Message: "This room is full"})
		return
	case err != nil:
		c.Send(protocol.RoomExpired{
			RoomID:   roomID,
			RoomName: liveRoom.Title(),
			Message:  "This room no longer exists",
		})
		return
	}

	// Admit announced identity, join and count under the room mutex;
	// only the binding and timer bookkeeping are left to do here.
	c.setRoom(roomID, membership.Username)

	if membership.SecondJoin {
		g.scheduler.Cancel(roomID, lifecycle.KindForming)
	}
	if membership.Count == 1 && liveRoom.State() == room.StateForming {
		g.scheduler.ScheduleFormingTimeout(roomID, g.cfg.Rooms.FormingTimeout, func() {
			g.CloseRoom(roomID, "Room closed - no one else joined in time")
		})
	}
	g.touchRoom(liveRoom)

	logger.Info("Connection %s joined room %s as %s (%d members)",
		c.id, roomID, membership.Username, membership.Count)
}

// resolveRoom returns the live room, reviving it from stored metadata when
// the coordinator has no members in it yet.
func (g *Gateway) resolveRoom(roomID string) (*room.Room, error) {
	if r, ok := g.registry.Get(roomID); ok {
		return r, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rm, err := g.rooms.GetRoomByID(ctx, roomID)
	if err != nil {
		return nil, room.ErrRoomNotFound
	}
	if !rm.IsActive || rm.Expired(time.Now()) {
		return nil, room.ErrRoomNotFound
	}
	return g.registry.Create(rm), nil
}

func (g *Gateway) onLeaveRoom(c *Connection, roomID string) {
	if current, _ := c.currentRoom(); current != roomID {
		return
	}
	g.leaveCurrentRoom(c)
}

func (g *Gateway) onSendMessage(c *Connection, roomID, text string) {
	current, username := c.currentRoom()
	if current != roomID {
		logger.Error("Connection %s sent to room %s: %v", c.id, roomID, room.ErrNotInRoom)
		return
	}

	text, err := room.ValidateMessage(text, g.cfg.Rooms.MaxMessageLength)
	if err != nil {
		logger.Debug("Dropped message from %s: %v", c.id, err)
		return
	}

	allowed, secondsLeft := g.limiter.TryAcquire(c.id)
	if !allowed {
		c.Send(protocol.SlowMode{SecondsLeft: secondsLeft})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), g.cfg.Moderation.Timeout)
	verdict := g.mod.Check(ctx, text)
	cancel()
	if verdict.Blocked {
		// The message was never delivered, so it must not consume the
		// slow-mode window.
		g.limiter.Forget(c.id)
		c.Send(protocol.MessageBlocked{
			Message: "Your message was blocked",
			Reason:  verdict.Reason,
		})
		return
	}

	g.broadcaster.Broadcast(roomID, username, text)
	if liveRoom, ok := g.registry.Get(roomID); ok {
		g.touchRoom(liveRoom)
	}
}

// leaveCurrentRoom removes the connection's membership and notifies the
// remaining members. Idempotent: a second call finds no membership and
// emits nothing.
func (g *Gateway) leaveCurrentRoom(c *Connection) {
	roomID, _ := c.currentRoom()
	if roomID == "" {
		return
	}
	c.clearRoom()

	// Remove announces user-left and the fresh count under the room mutex.
	_, count, empty, removed := g.registry.Remove(roomID, c.id)
	if !removed {
		return
	}
	logger.Info("Connection %s left room %s (%d members remain)", c.id, roomID, count)

	liveRoom, ok := g.registry.Get(roomID)
	if !ok {
		return
	}

	if empty {
		// Empty-room policy: user-created rooms are torn down right
		// away, system rooms persist empty.
		if liveRoom.Kind() == models.RoomKindUser {
			g.deleteEmptyRoom(roomID)
		}
		return
	}

	if count == 1 && liveRoom.Kind() == models.RoomKindUser {
		g.broadcaster.SystemEvent(roomID, protocol.LastUserWarning{
			Message: "You are the only one left in this room",
		})
		if g.cfg.Rooms.LastUserTeardown {
			g.scheduler.ScheduleLastUserGrace(roomID, g.cfg.Rooms.LastUserGrace, func() {
				g.CloseRoom(roomID, "Room closed - everyone else left")
			})
		}
	}
	g.touchRoom(liveRoom)
}

func (g *Gateway) deleteEmptyRoom(roomID string) {
	g.scheduler.CancelAll(roomID)
	g.registry.Delete(roomID)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := g.rooms.DeleteRoom(ctx, roomID); err != nil {
			logger.Error("Failed to delete empty room %s: %v", roomID, err)
		}
	}()
	logger.Info("Deleted empty room %s", roomID)
}

// ExpireRoom tears a room down on timeout: room-expired to every member,
// then the transports are severed.
func (g *Gateway) ExpireRoom(roomID, roomName, message string) {
	g.teardownRoom(roomID, protocol.RoomExpired{
		RoomID:   roomID,
		RoomName: roomName,
		Message:  message,
	})
}

// CloseRoom tears a room down deliberately: room-closing, then severance.
func (g *Gateway) CloseRoom(roomID, message string) {
	g.teardownRoom(roomID, protocol.RoomClosing{Message: message})
}

func (g *Gateway) teardownRoom(roomID string, terminal protocol.Outbound) {
	g.scheduler.CancelAll(roomID)

	members, ok := g.registry.Delete(roomID)
	if !ok {
		return
	}

	for _, m := range members {
		m.Sink.Send(terminal)
		g.mu.RLock()
		c := g.conns[m.ConnID]
		g.mu.RUnlock()
		if c != nil {
			c.clearRoom()
			c.closeSend()
		}
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := g.rooms.DeleteRoom(ctx, roomID); err != nil {
			logger.Error("Failed to delete room %s: %v", roomID, err)
		}
	}()

	logger.Info("Tore down room %s (%s, %d members notified)",
		roomID, terminal.EventName(), len(members))
}

// onDisconnect runs when the read pump exits for any reason. An abrupt
// disconnect behaves exactly like a leave, minus the explicit event.
func (g *Gateway) onDisconnect(c *Connection) {
	g.mu.Lock()
	_, known := g.conns[c.id]
	delete(g.conns, c.id)
	g.mu.Unlock()
	if !known {
		return
	}

	g.leaveCurrentRoom(c)
	g.limiter.Forget(c.id)
	c.closeSend()
	logger.Info("Connection %s closed", c.id)
}

// touchRoom resets the activity clock and re-arms the inactivity countdown.
// System rooms never expire from inactivity.
func (g *Gateway) touchRoom(liveRoom *room.Room) {
	roomID := liveRoom.ID()
	g.registry.TouchActivity(roomID)

	if liveRoom.Kind() == models.RoomKindSystem {
		return
	}

	title := liveRoom.Title()
	g.scheduler.ScheduleInactivityExpiry(roomID, g.cfg.Rooms.InactivityExpiry, func() {
		g.ExpireRoom(roomID, title, "Room expired due to inactivity")
	})

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := g.rooms.TouchRoom(ctx, roomID, time.Now()); err != nil {
			logger.Error("Failed to touch room %s: %v", roomID, err)
		}
	}()
}

// ConnectionCount is used by the health endpoint.
func (g *Gateway) ConnectionCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.conns)
}
