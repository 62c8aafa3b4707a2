package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessageValidate(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		err  error
	}{
		{"direct text", Message{SenderID: "a", RecipientID: "b", MessageType: MessageTypeText, Content: "hi"}, nil},
		{"channel file", Message{SenderID: "a", ChannelID: "R1", MessageType: MessageTypeFile, FileURL: "f.png"}, nil},
		{"no sender", Message{RecipientID: "b", MessageType: MessageTypeText, Content: "hi"}, ErrMissingSender},
		{"both targets", Message{SenderID: "a", RecipientID: "b", ChannelID: "R1", MessageType: MessageTypeText, Content: "hi"}, ErrAmbiguousTarget},
		{"no target", Message{SenderID: "a", MessageType: MessageTypeText, Content: "hi"}, ErrAmbiguousTarget},
		{"empty text", Message{SenderID: "a", RecipientID: "b", MessageType: MessageTypeText}, ErrMissingContent},
		{"file without url", Message{SenderID: "a", RecipientID: "b", MessageType: MessageTypeFile, Content: "x"}, ErrMissingFileURL},
		{"unknown kind", Message{SenderID: "a", RecipientID: "b", MessageType: "audio", Content: "x"}, ErrUnknownMessageType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if tt.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestSessionLifecycle(t *testing.T) {
	s := NewSession("c1")
	assert.Equal(t, ConnOpening, s.State())
	assert.False(t, s.IsRoutable())

	s.Bind("alice", "Alice")
	assert.True(t, s.IsRoutable())
	assert.True(t, s.Open())
	assert.False(t, s.Open(), "open only from opening")
	assert.Equal(t, "open", s.State().String())

	s.Bind("mallory", "M")
	assert.Equal(t, "alice", s.GetUserID(), "identity is fixed after open")

	assert.True(t, s.Close())
	assert.False(t, s.Close())
	assert.Equal(t, ConnClosed, s.State())
}
