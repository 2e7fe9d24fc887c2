package transport

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/huddlekit/huddle/internal/v1/events"
	"github.com/huddlekit/huddle/internal/v1/logging"
	"github.com/huddlekit/huddle/internal/v1/metrics"
	"github.com/huddlekit/huddle/internal/v1/room"
	"go.uber.org/zap"
)

const (
	// writeWait is the time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// maxMessageSize bounds inbound frames. Chunk payloads ride base64 inside
	// JSON, so this allows roughly 768 KiB of raw chunk per frame.
	maxMessageSize = 1 << 20

	// sendBufferSize is the per-connection outbound queue. A recipient that
	// falls this far behind is dropped rather than allowed to stall senders.
	sendBufferSize = 256
)

// wsConnection is the subset of *websocket.Conn the client needs; tests
// substitute a mock.
type wsConnection interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
	SetReadLimit(limit int64)
	SetWriteDeadline(t time.Time) error
}

// Client is one duplex connection. It implements room.Sender; its connection
// id is minted at accept time and stable for the connection's life.
type Client struct {
	hub  *Hub
	conn wsConnection
	id   string

	mu       sync.RWMutex
	boundTo  *room.Room // nil until join-room succeeds
	roomCode string
	nickname string
	closed   bool

	closeOnce sync.Once
	send      chan []byte
}

func newClient(hub *Hub, conn wsConnection, id string) *Client {
	conn.SetReadLimit(maxMessageSize)
	return &Client{
		hub:  hub,
		conn: conn,
		id:   id,
		send: make(chan []byte, sendBufferSize),
	}
}

// ID satisfies room.Sender.
func (c *Client) ID() string {
	return c.id
}

// bind records the room the connection joined.
func (c *Client) bind(r *room.Room, code, nickname string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.boundTo = r
	c.roomCode = code
	c.nickname = nickname
}

// boundRoom returns the joined room, or nil for an unbound connection.
func (c *Client) boundRoom() *room.Room {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.boundTo
}

// BoundRoomCode returns the joined room code, or "".
func (c *Client) BoundRoomCode() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.roomCode
}

// Send marshals one event for this client only and queues it.
func (c *Client) Send(event string, payload any) {
	data, err := events.Marshal(event, payload)
	if err != nil {
		logging.Error(context.Background(), "failed to marshal event",
			zap.String("event", event), zap.Error(err))
		return
	}
	c.SendRaw(data)
}

// SendRaw queues a pre-serialized frame without blocking. A full queue means
// the peer is too slow or gone; the connection is dropped, which triggers
// the normal teardown cascade.
func (c *Client) SendRaw(data []byte) {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return
	}
	c.mu.RUnlock()

	defer func() {
		if r := recover(); r != nil {
			logging.Warn(context.Background(), "recovered from send on closing client",
				zap.String("connId", c.id), zap.Any("panic", r))
		}
	}()

	select {
	case c.send <- data:
	default:
		logging.Warn(context.Background(), "send buffer full, dropping connection",
			zap.String("connId", c.id))
		c.Disconnect()
	}
}

// Disconnect closes the outbound channel, which lets writePump drain, send a
// close frame, and close the socket. Safe to call more than once.
func (c *Client) Disconnect() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// readPump processes inbound frames in arrival order until the socket dies,
// then runs the teardown cascade exactly once.
func (c *Client) readPump() {
	defer func() {
		c.hub.handleDisconnect(c)
		_ = c.conn.Close()
		metrics.DecConnection()
	}()

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var env events.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			logging.Warn(context.Background(), "failed to decode envelope",
				zap.String("connId", c.id), zap.Error(err))
			continue
		}

		c.hub.route(c, env)
	}
}

// writePump owns all writes to the socket.
func (c *Client) writePump() {
	defer func() { _ = c.conn.Close() }()

	for {
		message, ok := <-c.send
		if !ok {
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			logging.Warn(context.Background(), "error writing message",
				zap.String("connId", c.id), zap.Error(err))
			return
		}
	}
}
