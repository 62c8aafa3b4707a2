package service

import (
	"context"
	"testing"

	"github.com/JeevanLal1/ProChat/internal/domain"
	"github.com/JeevanLal1/ProChat/internal/hub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_RegistersAndBroadcastsPresence(t *testing.T) {
	h := newHarness(t, 0)
	a := h.connect(t, "a1", "A")

	frames := drain(a)
	require.Len(t, frames, 2)
	assert.Equal(t, domain.MsgTypeOnlineUsers, frames[0]["type"])
	assert.Equal(t, domain.MsgTypeUserOnline, frames[1]["type"])
	assert.Equal(t, domain.ConnOpen, a.Session.State())
	assert.Equal(t, []string{"a1"}, h.registry.ConnectionsFor("A"))
}

func TestOpen_AnonymousIsUnroutable(t *testing.T) {
	h := newHarness(t, 0)
	anon := h.connect(t, "x1", "")

	assert.Empty(t, drain(anon), "anonymous connections trigger no presence change")
	assert.Empty(t, h.registry.OnlineUserIDs())
	assert.Equal(t, 1, h.hub.Count())

	h.send(anon, map[string]any{"type": domain.MsgTypeSendMessage, "recipient_id": "B", "content": "hi", "message_type": "text"})
	errs := ofType(drain(anon), domain.MsgTypeError)
	require.Len(t, errs, 1)
	assert.Equal(t, domain.ErrCodeUnauthorized, errs[0]["code"])

	h.send(anon, map[string]any{"type": domain.MsgTypeJoinRoom, "room_id": "R1"})
	assert.True(t, h.rooms.IsSubscribed("R1", "x1"))
}

func TestClose_CleansEverythingOnce(t *testing.T) {
	h := newHarness(t, 0)
	a := h.connect(t, "a1", "A")
	b := h.connect(t, "b1", "B")
	h.send(a, map[string]any{"type": domain.MsgTypeJoinRoom, "room_id": "R1"})
	drainAll(a, b)

	h.lc.Close(a)

	assert.Empty(t, h.rooms.SubscribersOf("R1"))
	assert.False(t, h.registry.IsOnline("A"))
	assert.Equal(t, 1, h.hub.Count())
	assert.Equal(t, domain.ConnClosed, a.Session.State())

	frames := drain(b)
	assert.Len(t, ofType(frames, domain.MsgTypeUserOffline), 1)
	assert.Len(t, ofType(frames, domain.MsgTypeOnlineUsers), 1)

	h.lc.Close(a)
	assert.Empty(t, drain(b), "second close is a no-op")
}

func TestClose_MultiDeviceKeepsUserOnline(t *testing.T) {
	h := newHarness(t, 0)
	a1 := h.connect(t, "a1", "A")
	a2 := h.connect(t, "a2", "A")
	drainAll(a1, a2)

	h.lc.Close(a1)

	frames := drain(a2)
	assert.Empty(t, ofType(frames, domain.MsgTypeUserOffline))
	assert.Len(t, ofType(frames, domain.MsgTypeOnlineUsers), 1)
	assert.True(t, h.registry.IsOnline("A"))
}

func TestHandleMessage_IgnoredAfterClose(t *testing.T) {
	h := newHarness(t, 0)
	a := h.connect(t, "a1", "A")
	h.lc.Close(a)

	h.send(a, map[string]any{"type": domain.MsgTypeJoinRoom, "room_id": "R1"})

	assert.Empty(t, h.rooms.SubscribersOf("R1"))
}

func TestHandleMessage_BadFrames(t *testing.T) {
	h := newHarness(t, 0)
	a := h.connect(t, "a1", "A")
	drainAll(a)

	h.lc.HandleMessage(a, []byte("{not json"))
	h.send(a, map[string]any{"type": "dance"})
	h.send(a, map[string]any{"type": domain.MsgTypeJoinRoom})

	errs := ofType(drain(a), domain.MsgTypeError)
	require.Len(t, errs, 3)
	for _, e := range errs {
		assert.Equal(t, domain.ErrCodeBadRequest, e["code"])
	}
	assert.Equal(t, domain.ConnOpen, a.Session.State())
}

func TestHandleMessage_Ping(t *testing.T) {
	h := newHarness(t, 0)
	a := h.connect(t, "a1", "A")
	drainAll(a)

	h.send(a, map[string]any{"type": domain.MsgTypePing})

	assert.Len(t, ofType(drain(a), domain.MsgTypePong), 1)
}

type panickingRouter struct{}

func (panickingRouter) SendDirect(context.Context, DirectMessage) (*domain.ResolvedMessage, int, error) {
	panic("boom")
}

func (panickingRouter) SendChannel(context.Context, ChannelMessage) (*domain.ResolvedMessage, int, error) {
	panic("boom")
}

func (panickingRouter) AnnounceChannel(context.Context, *domain.Channel) int { return 0 }

func TestHandleMessage_RecoversFromPanic(t *testing.T) {
	h := newHarness(t, 0)
	lc := NewLifecycle(context.Background(), h.hub, h.presence, h.rooms, panickingRouter{}, h.typing)
	c := hub.NewClient("a1", h.hub, nil)
	require.NoError(t, lc.Open(context.Background(), c, "A", "A"))
	drainAll(c)

	frame := []byte(`{"type":"send_message","recipient_id":"B","content":"x","message_type":"text"}`)
	assert.NotPanics(t, func() { lc.HandleMessage(c, frame) })

	errs := ofType(drain(c), domain.MsgTypeError)
	require.Len(t, errs, 1)
	assert.Equal(t, domain.ErrCodeInternalError, errs[0]["code"])
	assert.Equal(t, domain.ConnOpen, c.Session.State())
}

func TestShutdown_ClosesAllConnections(t *testing.T) {
	h := newHarness(t, 0)
	h.connect(t, "a1", "A")
	h.connect(t, "b1", "B")

	require.NoError(t, h.lc.Shutdown(context.Background()))

	assert.Equal(t, 0, h.hub.Count())
	assert.Empty(t, h.registry.OnlineUserIDs())
	assert.ErrorIs(t, h.lc.Open(context.Background(), hub.NewClient("c1", h.hub, nil), "C", "C"), ErrShuttingDown)
}
