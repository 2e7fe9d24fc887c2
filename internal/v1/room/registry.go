package room

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/huddlekit/huddle/internal/v1/logging"
	"github.com/huddlekit/huddle/internal/v1/metrics"
	"go.uber.org/zap"
)

const (
	roomCodeLength   = 8
	roomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// Registry is the authoritative mapping from room code to Room. It is safe
// for concurrent use; per-room state is protected by each Room's own lock.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

// NewRegistry creates an empty registry. Instantiable in isolation for tests;
// the process wires exactly one into the transport and API layers.
func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*Room)}
}

// Mint produces a fresh room code and registers an empty Room for it.
// Joining an unminted code fails, so this is the only way rooms come to be.
func (reg *Registry) Mint() (string, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	for range 10 {
		code, err := generateRoomCode()
		if err != nil {
			return "", fmt.Errorf("minting room code: %w", err)
		}
		if _, taken := reg.rooms[code]; taken {
			continue
		}
		reg.rooms[code] = newRoom(code)
		metrics.ActiveRooms.Inc()
		logging.Info(context.Background(), "room minted", zap.String("roomId", code))
		return code, nil
	}
	return "", fmt.Errorf("minting room code: exhausted retries")
}

// Lookup resolves a code to its Room. Lookup is case-insensitive; codes are
// stored in canonical uppercase form.
func (reg *Registry) Lookup(code string) (*Room, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	r, ok := reg.rooms[strings.ToUpper(code)]
	return r, ok
}

// Join atomically inserts a participant into the named room. On success the
// room has already fanned out user-joined to the other participants; the
// returned Room handle is the one the connection should bind to.
func (reg *Registry) Join(code, connID, nickname string, sender Sender) (*Room, *JoinResult, error) {
	if err := validateNickname(nickname); err != nil {
		return nil, nil, err
	}
	r, ok := reg.Lookup(code)
	if !ok {
		return nil, nil, ErrRoomNotFound
	}
	result, err := r.join(connID, nickname, sender)
	if err != nil {
		return nil, nil, err
	}
	return r, result, nil
}

// Leave removes the participant from the named room, transferring the host
// role if needed. When the last participant leaves, the room is destroyed
// and its code evicted.
func (reg *Registry) Leave(code, connID string) {
	r, ok := reg.Lookup(code)
	if !ok {
		return
	}

	_, empty := r.leave(connID)
	if !empty {
		return
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()
	// A join may have raced the leave; only evict a room that is still empty.
	if current, ok := reg.rooms[r.Code]; ok && current == r && r.markClosed() {
		delete(reg.rooms, r.Code)
		metrics.ActiveRooms.Dec()
		metrics.RoomParticipants.DeleteLabelValues(r.Code)
		logging.Info(context.Background(), "room destroyed", zap.String("roomId", r.Code))
	}
}

// Count returns the number of registered rooms.
func (reg *Registry) Count() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.rooms)
}

// generateRoomCode draws 8 characters from A-Z0-9 using crypto/rand.
func generateRoomCode() (string, error) {
	buf := make([]byte, roomCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	code := make([]byte, roomCodeLength)
	for i, b := range buf {
		code[i] = roomCodeAlphabet[int(b)%len(roomCodeAlphabet)]
	}
	return string(code), nil
}

// validateNickname enforces 1-40 printable characters.
func validateNickname(nickname string) error {
	runes := []rune(nickname)
	if len(runes) == 0 || len(runes) > MaxNicknameLength {
		return ErrBadNickname
	}
	for _, r := range runes {
		if !unicode.IsPrint(r) {
			return ErrBadNickname
		}
	}
	return nil
}
