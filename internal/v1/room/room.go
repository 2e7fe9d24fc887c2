// Package room implements the authoritative meeting state: the room
// registry, per-room participant state, the chat log, signaling relay, and
// screen-share arbitration. All mutations of a single Room are serialized
// under its mutex; the transport layer is reached only through the Sender
// interface so the package stays testable without sockets.
package room

import (
	"container/list"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/huddlekit/huddle/internal/v1/events"
	"github.com/huddlekit/huddle/internal/v1/logging"
	"github.com/huddlekit/huddle/internal/v1/metrics"
	"go.uber.org/zap"
)

const (
	// MaxParticipants is the maximum allowed users in a room.
	MaxParticipants = 10

	// MaxNicknameLength bounds nicknames in runes.
	MaxNicknameLength = 40

	// MaxChatMessageLength bounds chat text in runes.
	MaxChatMessageLength = 2000
)

var (
	ErrRoomNotFound  = errors.New("room not found")
	ErrRoomFull      = errors.New("room is full")
	ErrNicknameTaken = errors.New("nickname already taken")
	ErrBadNickname   = errors.New("invalid nickname")
)

// Sender is the transport-facing side of one connection. The transport
// package implements it with buffered, non-blocking delivery; a full buffer
// drops the connection rather than blocking the room.
type Sender interface {
	ID() string
	Send(event string, payload any)
	SendRaw(data []byte)
}

// Participant is the per-connection state owned by a Room.
type Participant struct {
	ConnID          string
	Nickname        string
	IsMuted         bool
	IsVideoEnabled  bool
	IsHandRaised    bool
	IsScreenSharing bool
	JoinedAt        time.Time

	sender Sender
	elem   *list.Element // position in Room.order
}

// Info snapshots the participant into its wire form.
func (p *Participant) Info() events.ParticipantInfo {
	return events.ParticipantInfo{
		SocketID:        p.ConnID,
		Nickname:        p.Nickname,
		IsMuted:         p.IsMuted,
		IsVideoEnabled:  p.IsVideoEnabled,
		IsHandRaised:    p.IsHandRaised,
		IsScreenSharing: p.IsScreenSharing,
		JoinedAt:        p.JoinedAt.UnixMilli(),
	}
}

// ChatRecord is one append-only entry in a room's chat log.
type ChatRecord struct {
	ID       string
	SenderID string
	Nickname string
	Text     string
	File     *events.FileMeta
	SentAt   time.Time
}

// Room is the aggregate for one meeting. It owns its participants by value;
// the registry is the only holder of Room pointers.
type Room struct {
	Code string

	mu           sync.Mutex
	participants map[string]*Participant
	order        *list.List // of connection ids, insertion order
	hostID       string
	chatLog      []ChatRecord
	createdAt    time.Time
	closed       bool
}

func newRoom(code string) *Room {
	return &Room{
		Code:         code,
		participants: make(map[string]*Participant),
		order:        list.New(),
		createdAt:    time.Now(),
	}
}

// JoinResult is the view returned to a successful joiner.
type JoinResult struct {
	Self         events.ParticipantInfo
	Participants []events.ParticipantInfo // insertion order, self included
	IsHost       bool
}

// join inserts a participant. Idempotent for an already-joined connection id.
// Caller is the registry; the room lock is taken here.
func (r *Room) join(connID, nickname string, sender Sender) (*JoinResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrRoomNotFound
	}

	// Rejoin by the same connection id is a no-op returning the current view.
	if p, ok := r.participants[connID]; ok {
		return &JoinResult{
			Self:         p.Info(),
			Participants: r.participantListLocked(),
			IsHost:       r.hostID == connID,
		}, nil
	}

	if len(r.participants) >= MaxParticipants {
		return nil, ErrRoomFull
	}
	for _, p := range r.participants {
		if p.Nickname == nickname {
			return nil, ErrNicknameTaken
		}
	}

	p := &Participant{
		ConnID:         connID,
		Nickname:       nickname,
		IsVideoEnabled: true,
		JoinedAt:       time.Now(),
		sender:         sender,
	}
	p.elem = r.order.PushBack(connID)
	r.participants[connID] = p

	if r.hostID == "" {
		r.hostID = connID
	}

	metrics.RoomParticipants.WithLabelValues(r.Code).Set(float64(len(r.participants)))

	r.broadcastLocked(connID, events.EventUserJoined, p.Info())

	return &JoinResult{
		Self:         p.Info(),
		Participants: r.participantListLocked(),
		IsHost:       r.hostID == connID,
	}, nil
}

// leave removes a participant, transfers the host role if needed, and
// reports whether the room is now empty. Unknown ids report the current
// emptiness without mutation.
func (r *Room) leave(connID string) (left *Participant, empty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[connID]
	if !ok {
		return nil, len(r.participants) == 0
	}

	r.order.Remove(p.elem)
	delete(r.participants, connID)

	if r.hostID == connID {
		r.hostID = ""
		// Host transfers to the insertion-order-earliest remaining participant.
		if front := r.order.Front(); front != nil {
			r.hostID = front.Value.(string)
		}
	}

	metrics.RoomParticipants.WithLabelValues(r.Code).Set(float64(len(r.participants)))

	r.broadcastLocked(connID, events.EventUserLeft, events.UserLeft{
		SocketID: connID,
		Nickname: p.Nickname,
	})

	return p, len(r.participants) == 0
}

// markClosed makes any in-flight join fail once the registry has decided to
// evict the room. Returns false if participants slipped in first.
func (r *Room) markClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.participants) > 0 {
		return false
	}
	r.closed = true
	return true
}

// Has reports whether the connection id is a current participant.
func (r *Room) Has(connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.participants[connID]
	return ok
}

// Size returns the current participant count.
func (r *Room) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.participants)
}

// HostID returns the current host's connection id, or "" for an empty room.
func (r *Room) HostID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hostID
}

// Participant returns a snapshot of one participant's state.
func (r *Room) Participant(connID string) (events.ParticipantInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[connID]
	if !ok {
		return events.ParticipantInfo{}, false
	}
	return p.Info(), true
}

// ChatLog returns a copy of the room's chat records in append order.
func (r *Room) ChatLog() []ChatRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ChatRecord, len(r.chatLog))
	copy(out, r.chatLog)
	return out
}

// participantListLocked snapshots all participants in insertion order.
func (r *Room) participantListLocked() []events.ParticipantInfo {
	out := make([]events.ParticipantInfo, 0, len(r.participants))
	for e := r.order.Front(); e != nil; e = e.Next() {
		if p, ok := r.participants[e.Value.(string)]; ok {
			out = append(out, p.Info())
		}
	}
	return out
}

// broadcastLocked serializes the payload once and fans it out to every
// participant except excludeID. Pass "" to include everyone. Delivery is
// non-blocking per recipient; each sender owns its outbound buffer.
func (r *Room) broadcastLocked(excludeID string, event string, payload any) {
	data, err := events.Marshal(event, payload)
	if err != nil {
		logging.Error(context.Background(), "failed to marshal broadcast",
			zap.String("event", event), zap.Error(err))
		return
	}
	for e := r.order.Front(); e != nil; e = e.Next() {
		connID := e.Value.(string)
		if connID == excludeID {
			continue
		}
		if p, ok := r.participants[connID]; ok && p.sender != nil {
			p.sender.SendRaw(data)
		}
	}
}

// sendToLocked delivers to a single participant, silently dropping when the
// target is no longer present.
func (r *Room) sendToLocked(connID string, event string, payload any) {
	p, ok := r.participants[connID]
	if !ok || p.sender == nil {
		return
	}
	p.sender.Send(event, payload)
}
