package room

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/huddlekit/huddle/internal/v1/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleChat_EchoesToEveryone(t *testing.T) {
	reg := NewRegistry()
	alice, bob := newMockSender("c1"), newMockSender("c2")
	_, r := mintAndJoin(t, reg, alice, bob)

	ok := r.HandleChat(alice, events.ChatMessageRequest{Message: "hi"})
	assert.True(t, ok)

	for _, s := range []*mockSender{alice, bob} {
		var msg events.ChatMessageEvent
		s.lastPayload(t, events.EventChatMessage, &msg)
		assert.Equal(t, "c1", msg.SocketID)
		assert.Equal(t, "a-user", msg.Nickname)
		assert.Equal(t, "hi", msg.Message)
		assert.NotEmpty(t, msg.ID)
		assert.NotZero(t, msg.Timestamp)
		assert.Nil(t, msg.File)
	}

	log := r.ChatLog()
	require.Len(t, log, 1)
	assert.Equal(t, "hi", log[0].Text)
	assert.Equal(t, "c1", log[0].SenderID)
}

func TestHandleChat_FileAttachment(t *testing.T) {
	reg := NewRegistry()
	alice, bob := newMockSender("c1"), newMockSender("c2")
	_, r := mintAndJoin(t, reg, alice, bob)

	file := &events.FileMeta{
		ID:           "f1",
		URL:          "/uploads/report-123-456.pdf",
		OriginalName: "report.pdf",
		MimeType:     "application/pdf",
		Size:         1234,
	}
	r.HandleChat(alice, events.ChatMessageRequest{File: file})

	var msg events.ChatMessageEvent
	bob.lastPayload(t, events.EventChatMessage, &msg)
	require.NotNil(t, msg.File)
	assert.Equal(t, file.URL, msg.File.URL)
	assert.Empty(t, msg.Message)
}

func TestHandleChat_IgnoresEmpty(t *testing.T) {
	reg := NewRegistry()
	alice := newMockSender("c1")
	_, r := mintAndJoin(t, reg, alice)

	ok := r.HandleChat(alice, events.ChatMessageRequest{})
	assert.True(t, ok)
	assert.Zero(t, alice.count(events.EventChatMessage))
	assert.Empty(t, r.ChatLog())
}

func TestHandleChat_RejectsOverlong(t *testing.T) {
	reg := NewRegistry()
	alice := newMockSender("c1")
	_, r := mintAndJoin(t, reg, alice)

	ok := r.HandleChat(alice, events.ChatMessageRequest{
		Message: strings.Repeat("x", MaxChatMessageLength+1),
	})
	assert.False(t, ok)
	assert.Empty(t, r.ChatLog())
}

func TestHandleChat_NonParticipantDropped(t *testing.T) {
	reg := NewRegistry()
	alice := newMockSender("c1")
	_, r := mintAndJoin(t, reg, alice)

	stranger := newMockSender("ghost")
	ok := r.HandleChat(stranger, events.ChatMessageRequest{Message: "boo"})
	assert.True(t, ok)
	assert.Empty(t, r.ChatLog())
	assert.Zero(t, alice.count(events.EventChatMessage))
}

func TestHandleToggleMute_OriginExcluded(t *testing.T) {
	reg := NewRegistry()
	alice, bob := newMockSender("c1"), newMockSender("c2")
	_, r := mintAndJoin(t, reg, alice, bob)

	r.HandleToggleMute(alice, true)

	var changed events.UserMuteChanged
	bob.lastPayload(t, events.EventUserMuteChanged, &changed)
	assert.Equal(t, "c1", changed.SocketID)
	assert.True(t, changed.IsMuted)
	assert.Zero(t, alice.count(events.EventUserMuteChanged))

	info, ok := r.Participant("c1")
	require.True(t, ok)
	assert.True(t, info.IsMuted)

	// Toggling to the same value again is accepted and re-broadcast;
	// the flag stays set.
	r.HandleToggleMute(alice, true)
	assert.Equal(t, 2, bob.count(events.EventUserMuteChanged))
	info, _ = r.Participant("c1")
	assert.True(t, info.IsMuted)
}

func TestHandleToggleHand_CarriesNickname(t *testing.T) {
	reg := NewRegistry()
	alice, bob := newMockSender("c1"), newMockSender("c2")
	_, r := mintAndJoin(t, reg, alice, bob)

	r.HandleToggleHand(bob, true)

	var raised events.UserHandRaised
	alice.lastPayload(t, events.EventUserHandRaised, &raised)
	assert.Equal(t, "c2", raised.SocketID)
	assert.True(t, raised.IsHandRaised)
	assert.Equal(t, "b-user", raised.Nickname)

	info, _ := r.Participant("c2")
	assert.True(t, info.IsHandRaised)
}

func TestHandleToggleVideo(t *testing.T) {
	reg := NewRegistry()
	alice, bob := newMockSender("c1"), newMockSender("c2")
	_, r := mintAndJoin(t, reg, alice, bob)

	r.HandleToggleVideo(alice, false)

	var changed events.UserVideoChanged
	bob.lastPayload(t, events.EventUserVideoChanged, &changed)
	assert.Equal(t, "c1", changed.SocketID)
	assert.False(t, changed.IsVideoEnabled)

	info, _ := r.Participant("c1")
	assert.False(t, info.IsVideoEnabled)
}

func TestHandleToggle_NonParticipantDropped(t *testing.T) {
	reg := NewRegistry()
	alice := newMockSender("c1")
	_, r := mintAndJoin(t, reg, alice)

	stranger := newMockSender("ghost")
	r.HandleToggleMute(stranger, true)
	r.HandleToggleHand(stranger, true)
	r.HandleToggleVideo(stranger, false)

	assert.Zero(t, alice.count(events.EventUserMuteChanged))
	assert.Zero(t, alice.count(events.EventUserHandRaised))
	assert.Zero(t, alice.count(events.EventUserVideoChanged))
}

func TestHandleOffer_RelaysToTarget(t *testing.T) {
	reg := NewRegistry()
	alice, bob, carol := newMockSender("c1"), newMockSender("c2"), newMockSender("c3")
	code, r := mintAndJoin(t, reg, alice, bob, carol)

	sdp := json.RawMessage(`{"type":"offer","sdp":"v=0..."}`)
	r.HandleOffer(alice, events.EventOffer, events.SignalOffer{
		RoomID: code,
		Offer:  sdp,
		To:     "c2",
	})

	var relayed events.OfferEvent
	bob.lastPayload(t, events.EventOffer, &relayed)
	assert.Equal(t, "c1", relayed.From)
	assert.JSONEq(t, string(sdp), string(relayed.Offer))

	// Point-to-point: nobody else sees it.
	assert.Zero(t, carol.count(events.EventOffer))
	assert.Zero(t, alice.count(events.EventOffer))
}

func TestHandleAnswer_RelaysToTarget(t *testing.T) {
	reg := NewRegistry()
	alice, bob := newMockSender("c1"), newMockSender("c2")
	code, r := mintAndJoin(t, reg, alice, bob)

	sdp := json.RawMessage(`{"type":"answer","sdp":"v=0..."}`)
	r.HandleAnswer(bob, events.EventAnswer, events.SignalAnswer{
		RoomID: code,
		Answer: sdp,
		To:     "c1",
	})

	var relayed events.AnswerEvent
	alice.lastPayload(t, events.EventAnswer, &relayed)
	assert.Equal(t, "c2", relayed.From)
	assert.JSONEq(t, string(sdp), string(relayed.Answer))
}

func TestHandleOffer_ScreenShareChannelIsSeparate(t *testing.T) {
	reg := NewRegistry()
	alice, bob := newMockSender("c1"), newMockSender("c2")
	code, r := mintAndJoin(t, reg, alice, bob)

	r.HandleOffer(alice, events.EventScreenShareOffer, events.SignalOffer{
		RoomID: code,
		Offer:  json.RawMessage(`{"sdp":"screen"}`),
		To:     "c2",
	})

	assert.Equal(t, 1, bob.count(events.EventScreenShareOffer))
	assert.Zero(t, bob.count(events.EventOffer))
}

func TestHandleOffer_UnknownTargetSilentDrop(t *testing.T) {
	reg := NewRegistry()
	alice := newMockSender("c1")
	code, r := mintAndJoin(t, reg, alice)

	r.HandleOffer(alice, events.EventOffer, events.SignalOffer{
		RoomID: code,
		Offer:  json.RawMessage(`{}`),
		To:     "departed",
	})
	// Nothing to assert beyond not panicking and no echo to the sender.
	assert.Zero(t, alice.count(events.EventOffer))
}

func TestHandleOffer_NonParticipantDropped(t *testing.T) {
	reg := NewRegistry()
	alice := newMockSender("c1")
	code, r := mintAndJoin(t, reg, alice)

	stranger := newMockSender("ghost")
	r.HandleOffer(stranger, events.EventOffer, events.SignalOffer{
		RoomID: code,
		Offer:  json.RawMessage(`{}`),
		To:     "c1",
	})
	assert.Zero(t, alice.count(events.EventOffer))
}

func TestScreenShare_Arbitration(t *testing.T) {
	reg := NewRegistry()
	alice, bob := newMockSender("c1"), newMockSender("c2")
	_, r := mintAndJoin(t, reg, alice, bob)

	r.HandleScreenShareStart(alice)

	var started events.ScreenShareStarted
	bob.lastPayload(t, events.EventScreenShareStart, &started)
	assert.Equal(t, "c1", started.UserID)
	assert.Equal(t, "a-user", started.UserName)

	info, _ := r.Participant("c1")
	assert.True(t, info.IsScreenSharing)

	// A new start supersedes the old sharer without negotiation.
	r.HandleScreenShareStop(alice)
	r.HandleScreenShareStart(bob)

	aliceInfo, _ := r.Participant("c1")
	bobInfo, _ := r.Participant("c2")
	assert.False(t, aliceInfo.IsScreenSharing)
	assert.True(t, bobInfo.IsScreenSharing)

	alice.lastPayload(t, events.EventScreenShareStart, &started)
	assert.Equal(t, "c2", started.UserID)
}

func TestScreenShare_StartReplacingStart(t *testing.T) {
	reg := NewRegistry()
	alice, bob := newMockSender("c1"), newMockSender("c2")
	_, r := mintAndJoin(t, reg, alice, bob)

	r.HandleScreenShareStart(alice)
	r.HandleScreenShareStart(bob)

	// At most one sharer, resolved by arrival order at the room lock.
	aliceInfo, _ := r.Participant("c1")
	bobInfo, _ := r.Participant("c2")
	assert.False(t, aliceInfo.IsScreenSharing)
	assert.True(t, bobInfo.IsScreenSharing)
}

func TestScreenShare_Stop(t *testing.T) {
	reg := NewRegistry()
	alice, bob := newMockSender("c1"), newMockSender("c2")
	_, r := mintAndJoin(t, reg, alice, bob)

	r.HandleScreenShareStart(alice)
	r.HandleScreenShareStop(alice)

	var stopped events.ScreenShareStopped
	bob.lastPayload(t, events.EventScreenShareStop, &stopped)
	assert.Equal(t, "c1", stopped.UserID)

	info, _ := r.Participant("c1")
	assert.False(t, info.IsScreenSharing)
}

func TestScreenShare_SharerFlagGoneAfterLeave(t *testing.T) {
	reg := NewRegistry()
	alice, bob := newMockSender("c1"), newMockSender("c2")
	code, r := mintAndJoin(t, reg, alice, bob)

	r.HandleScreenShareStart(bob)
	reg.Leave(code, "c2")

	_, ok := r.Participant("c2")
	assert.False(t, ok)
	assert.Equal(t, 1, alice.count(events.EventUserLeft))
	// No synthetic screen-share-stop is emitted; user-left carries the news.
	assert.Zero(t, alice.count(events.EventScreenShareStop))
}
