package gateway

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"room-coordinator/internal/protocol"
	"room-coordinator/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 256
)

// Connection is one live transport session. It is owned exclusively by the
// gateway: created on handshake, destroyed on transport close.
type Connection struct {
	id     string
	userID string
	gw     *Gateway
	conn   *websocket.Conn
	send   chan []byte

	closeOnce sync.Once

	mu       sync.Mutex
	roomID   string
	username string
	sealed   bool
}

func (c *Connection) ID() string { return c.id }

// Send encodes and queues an outbound event. Non-blocking: a slow consumer
// gets the event dropped rather than stalling the room. A sealed connection
// drops everything; the read pump may still route frames after teardown, so
// late sends must be safe.
func (c *Connection) Send(ev protocol.Outbound) bool {
	data, err := protocol.Encode(ev)
	if err != nil {
		logger.Error("Error encoding %s: %v", ev.EventName(), err)
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sealed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Connection) currentRoom() (roomID, username string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomID, c.username
}

func (c *Connection) setRoom(roomID, username string) {
	c.mu.Lock()
	c.roomID = roomID
	c.username = username
	c.mu.Unlock()
}

func (c *Connection) clearRoom() {
	c.setRoom("", "")
}

// closeSend seals the connection for writing. The write pump drains what is
// queued, writes a close frame and shuts the transport; Send rejects anything
// enqueued after the seal.
func (c *Connection) closeSend() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.sealed = true
		close(c.send)
		c.mu.Unlock()
	})
}

func (c *Connection) readPump() {
	defer func() {
		c.gw.onDisconnect(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Error("WebSocket error on %s: %v", c.id, err)
			}
			return
		}

		ev, err := protocol.DecodeInbound(raw)
		if err != nil {
			// Per-event rejection; a malformed frame never tears
			// down the connection.
			logger.Error("Rejected frame from %s: %v", c.id, err)
			continue
		}
		c.gw.route(c, ev)
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Error("Write error on %s: %v", c.id, err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
