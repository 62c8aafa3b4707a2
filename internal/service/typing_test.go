package service

import (
	"context"
	"testing"
	"time"

	"github.com/JeevanLal1/ProChat/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTyping_DirectGoesToEveryTargetConnection(t *testing.T) {
	h := newHarness(t, 0)
	a := h.connect(t, "a1", "A")
	b1 := h.connect(t, "b1", "B")
	b2 := h.connect(t, "b2", "B")
	drainAll(a, b1, b2)

	h.send(a, map[string]any{"type": domain.MsgTypeTyping, "target_id": "B", "first_name": "Ann"})

	for _, c := range [][]map[string]any{drain(b1), drain(b2)} {
		got := ofType(c, domain.MsgTypeUserTyping)
		require.Len(t, got, 1)
		assert.Equal(t, "A", got[0]["user_id"])
		assert.Equal(t, "A", got[0]["chat_id"], "direct chat id is the typing user")
		assert.Equal(t, "Ann", got[0]["first_name"])
	}
	assert.Empty(t, drain(a))
}

func TestTyping_ChannelExcludesOrigin(t *testing.T) {
	h := newHarness(t, 0)
	a := h.connect(t, "a1", "A")
	b := h.connect(t, "b1", "B")
	h.rooms.Join("R1", "a1")
	h.rooms.Join("R1", "b1")
	drainAll(a, b)

	h.send(a, map[string]any{"type": domain.MsgTypeTyping, "target_id": "R1", "is_channel": true})
	h.send(a, map[string]any{"type": domain.MsgTypeStopTyping, "target_id": "R1", "is_channel": true})

	frames := drain(b)
	require.Len(t, frames, 2)
	assert.Equal(t, domain.MsgTypeUserTyping, frames[0]["type"])
	assert.Equal(t, "R1", frames[0]["chat_id"])
	assert.Equal(t, "A", frames[0]["first_name"], "falls back to the handshake name")
	assert.Equal(t, domain.MsgTypeUserStopTyping, frames[1]["type"])
	assert.Empty(t, drain(a))
	assert.Equal(t, 0, h.typing.Active())
}

func TestTyping_StopWithoutStartIsNoop(t *testing.T) {
	h := newHarness(t, 0)
	a := h.connect(t, "a1", "A")
	b := h.connect(t, "b1", "B")
	drainAll(a, b)

	n, err := h.typing.Stop(context.Background(), TypingSignal{UserID: "A", ConnID: "a1", TargetID: "B"})

	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Empty(t, drain(b))
	assert.Empty(t, drain(a), "no error frame either")
}

func TestTyping_DisconnectSynthesizesStop(t *testing.T) {
	h := newHarness(t, 0)
	a := h.connect(t, "a1", "A")
	b := h.connect(t, "b1", "B")
	drainAll(a, b)

	h.send(a, map[string]any{"type": domain.MsgTypeTyping, "target_id": "B"})
	h.lc.Close(a)

	stops := ofType(drain(b), domain.MsgTypeUserStopTyping)
	require.Len(t, stops, 1)
	assert.Equal(t, "A", stops[0]["user_id"])
	assert.Equal(t, 0, h.typing.Active())
}

func TestTyping_DeadlineSynthesizesStop(t *testing.T) {
	h := newHarness(t, 20*time.Millisecond)
	a := h.connect(t, "a1", "A")
	b := h.connect(t, "b1", "B")
	drainAll(a, b)

	_, err := h.typing.Start(context.Background(), TypingSignal{UserID: "A", ConnID: "a1", TargetID: "B"})
	require.NoError(t, err)

	var frames []map[string]any
	assert.Eventually(t, func() bool {
		frames = append(frames, drain(b)...)
		return len(ofType(frames, domain.MsgTypeUserStopTyping)) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, h.typing.Active())

	// A late stop from the client after expiry is dropped.
	n, err := h.typing.Stop(context.Background(), TypingSignal{UserID: "A", ConnID: "a1", TargetID: "B"})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestTyping_RepeatedStartRefreshesState(t *testing.T) {
	h := newHarness(t, time.Hour)
	h.connect(t, "a1", "A")

	sig := TypingSignal{UserID: "A", ConnID: "a1", TargetID: "B"}
	_, err := h.typing.Start(context.Background(), sig)
	require.NoError(t, err)
	_, err = h.typing.Start(context.Background(), sig)
	require.NoError(t, err)

	assert.Equal(t, 1, h.typing.Active())
}

func TestTyping_RejectsMissingTarget(t *testing.T) {
	h := newHarness(t, 0)

	_, err := h.typing.Start(context.Background(), TypingSignal{UserID: "A", ConnID: "a1"})
	assert.ErrorIs(t, err, ErrMalformedEvent)

	_, err = h.typing.Start(context.Background(), TypingSignal{ConnID: "a1", TargetID: "B"})
	assert.ErrorIs(t, err, ErrAnonymous)
}
