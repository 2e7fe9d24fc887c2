package room

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/huddlekit/huddle/internal/v1/events"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// mockSender implements Sender for testing, recording every event delivered
// to it in arrival order.
type mockSender struct {
	id string

	mu   sync.Mutex
	sent []events.Envelope
}

func newMockSender(id string) *mockSender {
	return &mockSender{id: id}
}

func (m *mockSender) ID() string {
	return m.id
}

func (m *mockSender) Send(event string, payload any) {
	data, err := events.Marshal(event, payload)
	if err != nil {
		panic(err)
	}
	m.SendRaw(data)
}

func (m *mockSender) SendRaw(data []byte) {
	var env events.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		panic(err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, env)
}

// received returns all recorded envelopes for the given event name.
func (m *mockSender) received(event string) []events.Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []events.Envelope
	for _, env := range m.sent {
		if env.Event == event {
			out = append(out, env)
		}
	}
	return out
}

// lastPayload decodes the most recent envelope for the event into dst.
func (m *mockSender) lastPayload(t *testing.T, event string, dst any) {
	t.Helper()
	envs := m.received(event)
	require.NotEmpty(t, envs, "no %q event received", event)
	require.NoError(t, json.Unmarshal(envs[len(envs)-1].Data, dst))
}

// count returns how many envelopes were recorded for the event.
func (m *mockSender) count(event string) int {
	return len(m.received(event))
}

// mintAndJoin is a helper that mints a room and joins the given senders.
func mintAndJoin(t *testing.T, reg *Registry, senders ...*mockSender) (string, *Room) {
	t.Helper()
	code, err := reg.Mint()
	require.NoError(t, err)

	var r *Room
	for i, s := range senders {
		nickname := string(rune('a'+i)) + "-user"
		var err error
		r, _, err = reg.Join(code, s.id, nickname, s)
		require.NoError(t, err)
	}
	if r == nil {
		r, _ = reg.Lookup(code)
	}
	return code, r
}
