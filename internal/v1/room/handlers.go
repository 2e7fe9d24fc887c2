package room

import (
	"time"

	"github.com/google/uuid"
	"github.com/huddlekit/huddle/internal/v1/events"
)

// Handlers in this file are the per-event entry points the transport router
// dispatches to. Each one takes the room lock, applies the transition, and
// fans out while still holding it so broadcast order matches mutation order.

// HandleChat appends a chat record and echoes it to every participant,
// the sender included. Empty messages with no file and messages from
// non-participants are dropped. Returns false when the message was rejected
// for being over-long, so the transport can surface an error event.
func (r *Room) HandleChat(sender Sender, req events.ChatMessageRequest) bool {
	if req.Message == "" && req.File == nil {
		return true
	}
	if len([]rune(req.Message)) > MaxChatMessageLength {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[sender.ID()]
	if !ok {
		return true
	}

	rec := ChatRecord{
		ID:       uuid.New().String(),
		SenderID: p.ConnID,
		Nickname: p.Nickname,
		Text:     req.Message,
		File:     req.File,
		SentAt:   time.Now(),
	}
	r.chatLog = append(r.chatLog, rec)

	r.broadcastLocked("", events.EventChatMessage, events.ChatMessageEvent{
		ID:        rec.ID,
		SocketID:  rec.SenderID,
		Nickname:  rec.Nickname,
		Message:   rec.Text,
		File:      rec.File,
		Timestamp: rec.SentAt.UnixMilli(),
	})
	return true
}

// HandleToggleMute flips the sender's mute flag and notifies the others.
// The origin already knows its own state and is excluded from the fan-out.
func (r *Room) HandleToggleMute(sender Sender, isMuted bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[sender.ID()]
	if !ok {
		return
	}
	p.IsMuted = isMuted

	r.broadcastLocked(p.ConnID, events.EventUserMuteChanged, events.UserMuteChanged{
		SocketID: p.ConnID,
		IsMuted:  isMuted,
	})
}

// HandleToggleHand flips the sender's raised-hand flag and notifies the
// others, carrying the nickname for display.
func (r *Room) HandleToggleHand(sender Sender, isRaised bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[sender.ID()]
	if !ok {
		return
	}
	p.IsHandRaised = isRaised

	r.broadcastLocked(p.ConnID, events.EventUserHandRaised, events.UserHandRaised{
		SocketID:     p.ConnID,
		IsHandRaised: isRaised,
		Nickname:     p.Nickname,
	})
}

// HandleToggleVideo flips the sender's camera flag and notifies the others.
func (r *Room) HandleToggleVideo(sender Sender, isEnabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[sender.ID()]
	if !ok {
		return
	}
	p.IsVideoEnabled = isEnabled

	r.broadcastLocked(p.ConnID, events.EventUserVideoChanged, events.UserVideoChanged{
		SocketID:       p.ConnID,
		IsVideoEnabled: isEnabled,
	})
}

// HandleOffer relays an opaque SDP offer to one participant. The event name
// is passed through so the camera and screen-share channels share mechanics.
// The sender must be a participant of this room; the target is not validated
// (it may have just left) and absence is a silent drop.
func (r *Room) HandleOffer(sender Sender, event string, req events.SignalOffer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.participants[sender.ID()]; !ok {
		return
	}
	r.sendToLocked(req.To, event, events.OfferEvent{
		Offer: req.Offer,
		From:  sender.ID(),
	})
}

// HandleAnswer relays an opaque SDP answer back to the offerer.
func (r *Room) HandleAnswer(sender Sender, event string, req events.SignalAnswer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.participants[sender.ID()]; !ok {
		return
	}
	r.sendToLocked(req.To, event, events.AnswerEvent{
		Answer: req.Answer,
		From:   sender.ID(),
	})
}

// HandleScreenShareStart makes the sender the room's single sharer. Any
// previous sharer's flag is cleared atomically; a new start supersedes an
// existing one without negotiation. Arrival order at this lock resolves
// concurrent starts.
func (r *Room) HandleScreenShareStart(sender Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[sender.ID()]
	if !ok {
		return
	}
	for _, other := range r.participants {
		other.IsScreenSharing = false
	}
	p.IsScreenSharing = true

	r.broadcastLocked(p.ConnID, events.EventScreenShareStart, events.ScreenShareStarted{
		UserID:   p.ConnID,
		UserName: p.Nickname,
	})
}

// HandleScreenShareStop clears the sender's sharing flag. Stops from a
// participant that is not the current sharer still broadcast; clients treat
// a stop for an unknown sharer as a no-op.
func (r *Room) HandleScreenShareStop(sender Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[sender.ID()]
	if !ok {
		return
	}
	p.IsScreenSharing = false

	r.broadcastLocked(p.ConnID, events.EventScreenShareStop, events.ScreenShareStopped{
		UserID: p.ConnID,
	})
}
