package transport

import (
	"context"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/huddlekit/huddle/internal/v1/events"
	"github.com/huddlekit/huddle/internal/v1/logging"
	"github.com/huddlekit/huddle/internal/v1/metrics"
	"github.com/huddlekit/huddle/internal/v1/ratelimit"
	"github.com/huddlekit/huddle/internal/v1/room"
	"go.uber.org/zap"
)

// uploadStore is the upload manager surface the hub drives; tests substitute
// a failing implementation.
type uploadStore interface {
	Start(ownerID, roomCode, originalName, mimeType string, size int64) (string, error)
	Chunk(ownerID, uploadID string, chunk []byte) (int64, error)
	Complete(ownerID, uploadID string) (*events.FileMeta, error)
	AbortAllForConnection(ownerID string)
}

// Hub accepts duplex connections, assigns them stable connection ids, and
// dispatches their named events to the room registry and the upload manager.
type Hub struct {
	registry *room.Registry
	uploads  uploadStore
	limiter  *ratelimit.Limiter
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[string]*Client
}

// NewHub wires the hub to its dependencies. A nil limiter disables the
// per-IP accept check (tests, development mode).
func NewHub(registry *room.Registry, uploads uploadStore, limiter *ratelimit.Limiter, clientOrigin string) *Hub {
	return &Hub{
		registry: registry,
		uploads:  uploads,
		limiter:  limiter,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(clientOrigin),
		},
		clients: make(map[string]*Client),
	}
}

// originChecker allows the configured client origin plus non-browser clients
// that send no Origin header.
func originChecker(clientOrigin string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || origin == clientOrigin
	}
}

// ServeWs upgrades the request and starts the connection's pumps.
func (h *Hub) ServeWs(c *gin.Context) {
	if h.limiter != nil && !h.limiter.AllowWebSocket(c) {
		return // response already written
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Warn(c.Request.Context(), "websocket upgrade failed", zap.Error(err))
		return
	}

	h.HandleConnection(conn)
}

// HandleConnection registers an established connection and starts its pumps.
// Split from ServeWs so tests can drive mock connections.
func (h *Hub) HandleConnection(conn wsConnection) *Client {
	client := newClient(h, conn, uuid.New().String())

	h.mu.Lock()
	h.clients[client.id] = client
	h.mu.Unlock()

	metrics.IncConnection()
	logging.Info(context.Background(), "connection accepted", zap.String("connId", client.id))

	go client.writePump()
	go client.readPump()
	return client
}

// handleDisconnect runs the teardown cascade for a dead connection: leave
// the room (fanning out user-left) and abort owned upload sessions.
func (h *Hub) handleDisconnect(c *Client) {
	h.mu.Lock()
	delete(h.clients, c.id)
	h.mu.Unlock()

	c.Disconnect()

	if code := c.BoundRoomCode(); code != "" {
		h.registry.Leave(code, c.id)
	}
	h.uploads.AbortAllForConnection(c.id)

	logging.Info(context.Background(), "connection closed", zap.String("connId", c.id))
}

// Shutdown closes every live connection and waits for the context.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.Disconnect()
	}

	logging.Info(ctx, "hub shut down", zap.Int("connections", len(clients)))
	return nil
}
