package transport

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/huddlekit/huddle/internal/v1/events"
	"github.com/huddlekit/huddle/internal/v1/logging"
	"github.com/huddlekit/huddle/internal/v1/metrics"
	"github.com/huddlekit/huddle/internal/v1/room"
	"github.com/huddlekit/huddle/internal/v1/upload"
	"go.uber.org/zap"
)

// route dispatches one inbound envelope. Events from a single connection
// arrive here in order because readPump is the only caller.
func (h *Hub) route(c *Client, env events.Envelope) {
	start := time.Now()
	status := "ok"

	switch env.Event {
	case events.EventJoinRoom:
		status = h.handleJoinRoom(c, env.Data)
	case events.EventOffer, events.EventScreenShareOffer:
		status = h.handleOffer(c, env.Event, env.Data)
	case events.EventAnswer, events.EventScreenShareAnswer:
		status = h.handleAnswer(c, env.Event, env.Data)
	case events.EventScreenShareStart:
		status = h.handleScreenShareStart(c, env.Data)
	case events.EventScreenShareStop:
		status = h.handleScreenShareStop(c, env.Data)
	case events.EventChatMessage:
		status = h.handleChatMessage(c, env.Data)
	case events.EventToggleMute:
		status = h.handleToggleMute(c, env.Data)
	case events.EventToggleRaiseHand:
		status = h.handleToggleHand(c, env.Data)
	case events.EventToggleVideo:
		status = h.handleToggleVideo(c, env.Data)
	case events.EventUploadStart:
		status = h.handleUploadStart(c, env.Data)
	case events.EventUploadChunk:
		status = h.handleUploadChunk(c, env.Data)
	case events.EventUploadComplete:
		status = h.handleUploadComplete(c, env.Data)
	default:
		status = "dropped"
		logging.Warn(context.Background(), "unknown event",
			zap.String("event", env.Event), zap.String("connId", c.id))
	}

	metrics.Events.WithLabelValues(env.Event, status).Inc()
	metrics.EventProcessingDuration.WithLabelValues(env.Event).Observe(time.Since(start).Seconds())
}

func (h *Hub) handleJoinRoom(c *Client, data json.RawMessage) string {
	var req events.JoinRoomRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return "dropped"
	}

	r, result, err := h.registry.Join(req.RoomID, c.id, req.Nickname, c)
	if err != nil {
		c.Send(events.EventError, events.ErrorEvent{Message: joinErrorMessage(err)})
		return "error"
	}

	// A connection is a participant of at most one room. Switching rooms
	// leaves the old one, fanning out user-left there, before rebinding.
	if prev := c.BoundRoomCode(); prev != "" && prev != r.Code {
		h.registry.Leave(prev, c.id)
	}

	c.bind(r, r.Code, result.Self.Nickname)

	c.Send(events.EventRoomJoined, events.RoomJoined{
		RoomID:       r.Code,
		Participants: result.Participants,
		IsHost:       result.IsHost,
	})
	return "ok"
}

// joinErrorMessage translates registry sentinels to wire strings.
func joinErrorMessage(err error) string {
	switch {
	case errors.Is(err, room.ErrRoomNotFound):
		return "Room not found"
	case errors.Is(err, room.ErrRoomFull):
		return "Room is full"
	case errors.Is(err, room.ErrNicknameTaken):
		return "Nickname already taken"
	case errors.Is(err, room.ErrBadNickname):
		return "Invalid nickname"
	default:
		return "Failed to join room"
	}
}

// signalingRoom resolves the room named in a signaling payload. Sender
// membership is validated by the room handler; an unknown room is a silent
// drop, same as an unknown recipient.
func (h *Hub) signalingRoom(roomID string) *room.Room {
	r, ok := h.registry.Lookup(roomID)
	if !ok {
		return nil
	}
	return r
}

func (h *Hub) handleOffer(c *Client, event string, data json.RawMessage) string {
	var req events.SignalOffer
	if err := json.Unmarshal(data, &req); err != nil {
		return "dropped"
	}
	r := h.signalingRoom(req.RoomID)
	if r == nil {
		return "dropped"
	}
	r.HandleOffer(c, event, req)
	return "ok"
}

func (h *Hub) handleAnswer(c *Client, event string, data json.RawMessage) string {
	var req events.SignalAnswer
	if err := json.Unmarshal(data, &req); err != nil {
		return "dropped"
	}
	r := h.signalingRoom(req.RoomID)
	if r == nil {
		return "dropped"
	}
	r.HandleAnswer(c, event, req)
	return "ok"
}

func (h *Hub) handleScreenShareStart(c *Client, data json.RawMessage) string {
	var req events.ScreenShareStartRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return "dropped"
	}
	r := h.signalingRoom(req.RoomID)
	if r == nil {
		return "dropped"
	}
	r.HandleScreenShareStart(c)
	return "ok"
}

func (h *Hub) handleScreenShareStop(c *Client, data json.RawMessage) string {
	var req events.ScreenShareStopRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return "dropped"
	}
	r := h.signalingRoom(req.RoomID)
	if r == nil {
		return "dropped"
	}
	r.HandleScreenShareStop(c)
	return "ok"
}

func (h *Hub) handleChatMessage(c *Client, data json.RawMessage) string {
	var req events.ChatMessageRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return "dropped"
	}
	r := c.boundRoom()
	if r == nil {
		return "dropped"
	}
	if !r.HandleChat(c, req) {
		c.Send(events.EventError, events.ErrorEvent{Message: "Message too long"})
		return "error"
	}
	return "ok"
}

func (h *Hub) handleToggleMute(c *Client, data json.RawMessage) string {
	var req events.ToggleMuteRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return "dropped"
	}
	r := c.boundRoom()
	if r == nil {
		return "dropped"
	}
	r.HandleToggleMute(c, req.IsMuted)
	return "ok"
}

func (h *Hub) handleToggleHand(c *Client, data json.RawMessage) string {
	var req events.ToggleHandRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return "dropped"
	}
	r := c.boundRoom()
	if r == nil {
		return "dropped"
	}
	r.HandleToggleHand(c, req.IsHandRaised)
	return "ok"
}

func (h *Hub) handleToggleVideo(c *Client, data json.RawMessage) string {
	var req events.ToggleVideoRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return "dropped"
	}
	r := c.boundRoom()
	if r == nil {
		return "dropped"
	}
	r.HandleToggleVideo(c, req.IsVideoEnabled)
	return "ok"
}

func (h *Hub) handleUploadStart(c *Client, data json.RawMessage) string {
	var req events.UploadStartRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return "dropped"
	}

	r, ok := h.registry.Lookup(req.RoomID)
	if !ok {
		c.Send(events.EventUploadStartAck, events.UploadStartAck{OK: false, Error: "RoomNotFound"})
		return "error"
	}

	uploadID, err := h.uploads.Start(c.id, r.Code, req.OriginalName, req.MimeType, req.Size)
	if err != nil {
		c.Send(events.EventUploadStartAck, events.UploadStartAck{OK: false, Error: upload.ErrorCode(err)})
		return "error"
	}

	c.Send(events.EventUploadStartAck, events.UploadStartAck{OK: true, UploadID: uploadID})
	return "ok"
}

func (h *Hub) handleUploadChunk(c *Client, data json.RawMessage) string {
	var req events.UploadChunkRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return "dropped"
	}

	received, err := h.uploads.Chunk(c.id, req.UploadID, req.Chunk)
	if err != nil {
		c.Send(events.EventUploadChunkAck, events.UploadChunkAck{
			OK:       false,
			UploadID: req.UploadID,
			Error:    upload.ErrorCode(err),
		})
		// IO failures additionally notify out of band so an in-flight
		// client can abort without waiting on its next ack.
		if errors.Is(err, upload.ErrWriteFailed) {
			c.Send(events.EventUploadError, events.UploadErrorEvent{
				UploadID: req.UploadID,
				Error:    upload.ErrorCode(err),
			})
		}
		return "error"
	}

	c.Send(events.EventUploadChunkAck, events.UploadChunkAck{
		OK:       true,
		UploadID: req.UploadID,
		Received: received,
	})
	return "ok"
}

func (h *Hub) handleUploadComplete(c *Client, data json.RawMessage) string {
	var req events.UploadCompleteRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return "dropped"
	}

	meta, err := h.uploads.Complete(c.id, req.UploadID)
	if err != nil {
		c.Send(events.EventUploadCompleteAck, events.UploadCompleteAck{
			OK:       false,
			UploadID: req.UploadID,
			Error:    upload.ErrorCode(err),
		})
		if errors.Is(err, upload.ErrWriteFailed) {
			c.Send(events.EventUploadError, events.UploadErrorEvent{
				UploadID: req.UploadID,
				Error:    upload.ErrorCode(err),
			})
		}
		return "error"
	}

	c.Send(events.EventUploadCompleteAck, events.UploadCompleteAck{
		OK:       true,
		UploadID: req.UploadID,
		File:     meta,
	})
	return "ok"
}
