// Package events defines the named-event wire protocol for the duplex
// channel. Every WebSocket frame carries one Envelope; payloads are JSON and
// chunk bytes ride base64-encoded inside the payload.
package events

import "encoding/json"

// Client -> server event names.
const (
	EventJoinRoom          = "join-room"
	EventOffer             = "offer"
	EventAnswer            = "answer"
	EventScreenShareOffer  = "screen-share-offer"
	EventScreenShareAnswer = "screen-share-answer"
	EventScreenShareStart  = "screen-share-start"
	EventScreenShareStop   = "screen-share-stop"
	EventChatMessage       = "chat-message"
	EventToggleMute        = "toggle-mute"
	EventToggleRaiseHand   = "toggle-raise-hand"
	EventToggleVideo       = "toggle-video"
	EventUploadStart       = "file-upload-start"
	EventUploadChunk       = "file-upload-chunk"
	EventUploadComplete    = "file-upload-complete"
)

// Server -> client event names. Relay events (offer, answer, screen-share
// offer/answer, chat-message, screen-share-start/stop) reuse the inbound name.
const (
	EventRoomJoined        = "room-joined"
	EventUserJoined        = "user-joined"
	EventUserLeft          = "user-left"
	EventUserMuteChanged   = "user-mute-changed"
	EventUserHandRaised    = "user-hand-raised"
	EventUserVideoChanged  = "user-video-changed"
	EventUploadStartAck    = "file-upload-start-ack"
	EventUploadChunkAck    = "file-upload-chunk-ack"
	EventUploadCompleteAck = "file-upload-complete-ack"
	EventUploadError       = "file-upload-error"
	EventError             = "error"
)

// Envelope is the base message frame for the duplex channel.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Marshal wraps a payload in an Envelope and serializes it to wire form.
func Marshal(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

// --- Client -> server payloads ---

// JoinRoomRequest binds a connection to a room under a nickname.
type JoinRoomRequest struct {
	RoomID   string `json:"roomId"`
	Nickname string `json:"nickname"`
}

// SignalOffer relays an opaque SDP offer to one participant. The same shape
// serves the camera and the screen-share sessions.
type SignalOffer struct {
	RoomID string          `json:"roomId"`
	Offer  json.RawMessage `json:"offer"`
	To     string          `json:"to"`
}

// SignalAnswer relays an opaque SDP answer back to the offerer.
type SignalAnswer struct {
	RoomID string          `json:"roomId"`
	Answer json.RawMessage `json:"answer"`
	To     string          `json:"to"`
}

// ScreenShareStartRequest announces that the sender begins sharing.
type ScreenShareStartRequest struct {
	RoomID   string `json:"roomId"`
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

// ScreenShareStopRequest announces that the sender stops sharing.
type ScreenShareStopRequest struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}

// ChatMessageRequest carries text and/or a completed upload reference.
type ChatMessageRequest struct {
	Message string    `json:"message"`
	File    *FileMeta `json:"file,omitempty"`
}

// ToggleMuteRequest sets the sender's mute flag.
type ToggleMuteRequest struct {
	IsMuted bool `json:"isMuted"`
}

// ToggleHandRequest sets the sender's raised-hand flag.
type ToggleHandRequest struct {
	IsHandRaised bool `json:"isHandRaised"`
}

// ToggleVideoRequest sets the sender's camera flag.
type ToggleVideoRequest struct {
	IsVideoEnabled bool `json:"isVideoEnabled"`
}

// UploadStartRequest opens an upload session.
type UploadStartRequest struct {
	RoomID       string `json:"roomId"`
	OriginalName string `json:"originalName"`
	MimeType     string `json:"mimeType"`
	Size         int64  `json:"size"`
}

// UploadChunkRequest appends bytes to an open session.
type UploadChunkRequest struct {
	UploadID string `json:"uploadId"`
	Chunk    []byte `json:"chunk"`
}

// UploadCompleteRequest finalizes a session.
type UploadCompleteRequest struct {
	UploadID string `json:"uploadId"`
}

// --- Server -> client payloads ---

// ParticipantInfo is the wire snapshot of one participant.
type ParticipantInfo struct {
	SocketID        string `json:"socketId"`
	Nickname        string `json:"nickname"`
	IsMuted         bool   `json:"isMuted"`
	IsVideoEnabled  bool   `json:"isVideoEnabled"`
	IsHandRaised    bool   `json:"isHandRaised"`
	IsScreenSharing bool   `json:"isScreenSharing"`
	JoinedAt        int64  `json:"joinedAt"`
}

// RoomJoined confirms a join and carries the current room view.
type RoomJoined struct {
	RoomID       string            `json:"roomId"`
	Participants []ParticipantInfo `json:"participants"`
	IsHost       bool              `json:"isHost"`
}

// UserLeft announces a departure.
type UserLeft struct {
	SocketID string `json:"socketId"`
	Nickname string `json:"nickname"`
}

// OfferEvent is the relayed form of SignalOffer.
type OfferEvent struct {
	Offer json.RawMessage `json:"offer"`
	From  string          `json:"from"`
}

// AnswerEvent is the relayed form of SignalAnswer.
type AnswerEvent struct {
	Answer json.RawMessage `json:"answer"`
	From   string          `json:"from"`
}

// ScreenShareStarted is broadcast when a participant becomes the sharer.
type ScreenShareStarted struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

// ScreenShareStopped is broadcast when the sharer stops.
type ScreenShareStopped struct {
	UserID string `json:"userId"`
}

// ChatMessageEvent is the broadcast form of one chat record.
type ChatMessageEvent struct {
	ID        string    `json:"id"`
	SocketID  string    `json:"socketId"`
	Nickname  string    `json:"nickname"`
	Message   string    `json:"message"`
	File      *FileMeta `json:"file,omitempty"`
	Timestamp int64     `json:"timestamp"`
}

// UserMuteChanged fans out a mute transition.
type UserMuteChanged struct {
	SocketID string `json:"socketId"`
	IsMuted  bool   `json:"isMuted"`
}

// UserHandRaised fans out a hand transition. Carries the nickname so clients
// can render a toast without a lookup.
type UserHandRaised struct {
	SocketID     string `json:"socketId"`
	IsHandRaised bool   `json:"isHandRaised"`
	Nickname     string `json:"nickname"`
}

// UserVideoChanged fans out a camera transition.
type UserVideoChanged struct {
	SocketID       string `json:"socketId"`
	IsVideoEnabled bool   `json:"isVideoEnabled"`
}

// FileMeta describes a completed upload. URL is server-relative and stable.
type FileMeta struct {
	ID           string `json:"id"`
	URL          string `json:"url"`
	OriginalName string `json:"originalName"`
	MimeType     string `json:"mimeType"`
	Size         int64  `json:"size"`
	UploadedAt   int64  `json:"uploadedAt"`
}

// UploadStartAck answers file-upload-start.
type UploadStartAck struct {
	OK       bool   `json:"ok"`
	UploadID string `json:"uploadId,omitempty"`
	Error    string `json:"error,omitempty"`
}

// UploadChunkAck answers file-upload-chunk.
type UploadChunkAck struct {
	OK       bool   `json:"ok"`
	UploadID string `json:"uploadId"`
	Received int64  `json:"received,omitempty"`
	Error    string `json:"error,omitempty"`
}

// UploadCompleteAck answers file-upload-complete.
type UploadCompleteAck struct {
	OK       bool      `json:"ok"`
	UploadID string    `json:"uploadId"`
	File     *FileMeta `json:"file,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// UploadErrorEvent is the asynchronous abort notification for IO failures.
type UploadErrorEvent struct {
	UploadID string `json:"uploadId"`
	Error    string `json:"error"`
}

// ErrorEvent carries a human-readable failure for the originating client.
type ErrorEvent struct {
	Message string `json:"message"`
}
