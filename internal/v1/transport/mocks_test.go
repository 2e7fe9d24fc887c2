package transport

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/huddlekit/huddle/internal/v1/events"
	"github.com/huddlekit/huddle/internal/v1/room"
	"github.com/huddlekit/huddle/internal/v1/upload"
	"github.com/stretchr/testify/require"
)

// mockConn implements wsConnection. Frames pushed into inbound are returned
// from ReadMessage; writes are recorded. Close unblocks pending reads.
type mockConn struct {
	inbound chan []byte

	mu      sync.Mutex
	written []writtenFrame
	closed  bool

	closeOnce sync.Once
	closeCh   chan struct{}
}

type writtenFrame struct {
	messageType int
	data        []byte
}

func newMockConn() *mockConn {
	return &mockConn{
		inbound: make(chan []byte, 64),
		closeCh: make(chan struct{}),
	}
}

func (m *mockConn) ReadMessage() (int, []byte, error) {
	select {
	case data := <-m.inbound:
		return websocket.TextMessage, data, nil
	case <-m.closeCh:
		return 0, nil, errors.New("connection closed")
	}
}

func (m *mockConn) WriteMessage(messageType int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errors.New("write on closed connection")
	}
	m.written = append(m.written, writtenFrame{messageType, append([]byte(nil), data...)})
	return nil
}

func (m *mockConn) Close() error {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.closed = true
		m.mu.Unlock()
		close(m.closeCh)
	})
	return nil
}

func (m *mockConn) SetReadLimit(int64)              {}
func (m *mockConn) SetWriteDeadline(time.Time) error { return nil }

// push queues an inbound frame for the read pump.
func (m *mockConn) push(t *testing.T, event string, payload any) {
	t.Helper()
	data, err := events.Marshal(event, payload)
	require.NoError(t, err)
	m.inbound <- data
}

// writtenEvents decodes every recorded text frame.
func (m *mockConn) writtenEvents() []events.Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []events.Envelope
	for _, f := range m.written {
		if f.messageType != websocket.TextMessage {
			continue
		}
		var env events.Envelope
		if json.Unmarshal(f.data, &env) == nil {
			out = append(out, env)
		}
	}
	return out
}

// eventCount returns how many frames with the given event were written.
func (m *mockConn) eventCount(event string) int {
	n := 0
	for _, env := range m.writtenEvents() {
		if env.Event == event {
			n++
		}
	}
	return n
}

// lastEvent decodes the newest frame for the event into dst, reporting
// whether one was found.
func (m *mockConn) lastEvent(event string, dst any) bool {
	envs := m.writtenEvents()
	for i := len(envs) - 1; i >= 0; i-- {
		if envs[i].Event == event {
			return json.Unmarshal(envs[i].Data, dst) == nil
		}
	}
	return false
}

// newTestHub builds a hub with a real registry and upload manager and no
// rate limiter.
func newTestHub(t *testing.T) (*Hub, *room.Registry, *upload.Manager) {
	t.Helper()
	registry := room.NewRegistry()
	uploads, err := upload.NewManager(t.TempDir())
	require.NoError(t, err)
	return NewHub(registry, uploads, nil, "http://localhost:3000"), registry, uploads
}

// newRoutedClient builds a client wired to the hub but without running
// pumps, so router tests stay synchronous. Queued frames are read straight
// off the send channel.
func newRoutedClient(h *Hub, id string) (*Client, *mockConn) {
	conn := newMockConn()
	c := newClient(h, conn, id)
	h.mu.Lock()
	h.clients[id] = c
	h.mu.Unlock()
	return c, conn
}

// drainSent decodes everything currently queued on the client's send
// channel.
func drainSent(c *Client) []events.Envelope {
	var out []events.Envelope
	for {
		select {
		case data := <-c.send:
			var env events.Envelope
			if json.Unmarshal(data, &env) == nil {
				out = append(out, env)
			}
		default:
			return out
		}
	}
}

// mintRoom mints a room code, failing the test on exhaustion.
func mintRoom(t *testing.T, registry *room.Registry) string {
	t.Helper()
	code, err := registry.Mint()
	require.NoError(t, err)
	return code
}

// newOriginRequest builds a GET request carrying the given Origin header.
func newOriginRequest(t *testing.T, origin string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	return req
}

// lastSent decodes the newest queued frame for the event into dst.
func lastSent(t *testing.T, c *Client, event string, dst any) {
	t.Helper()
	envs := drainSent(c)
	for i := len(envs) - 1; i >= 0; i-- {
		if envs[i].Event == event {
			require.NoError(t, json.Unmarshal(envs[i].Data, dst))
			return
		}
	}
	t.Fatalf("no %q event queued", event)
}
