package store

import (
	"context"
	"testing"

	"github.com/JeevanLal1/ProChat/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestMemoryStore_DirectMessageResolved(t *testing.T) {
	s := NewMemoryStore()
	s.SeedProfile(domain.UserProfile{ID: "alice", FirstName: "Alice", Color: 2})
	ctx := context.Background()

	id, err := s.CreateMessage(ctx, &domain.Message{
		SenderID:    "alice",
		RecipientID: "bob",
		MessageType: domain.MessageTypeText,
		Content:     "hi",
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	msg, err := s.ReadMessageResolved(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Alice", msg.Sender.FirstName)
	require.NotNil(t, msg.Recipient)
	assert.Equal(t, "bob", msg.Recipient.ID, "unknown users resolve to a bare id")
	assert.Equal(t, "hi", msg.Content)
	assert.False(t, msg.Timestamp.IsZero())
}

func TestMemoryStore_RejectsInvalidMessage(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.CreateMessage(context.Background(), &domain.Message{
		SenderID:    "alice",
		RecipientID: "bob",
		ChannelID:   "R1",
		MessageType: domain.MessageTypeText,
		Content:     "hi",
	})
	assert.ErrorIs(t, err, domain.ErrAmbiguousTarget)
	assert.Empty(t, s.Messages())
}

func TestMemoryStore_ChannelAppend(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	id, err := s.CreateMessage(ctx, &domain.Message{
		SenderID:    "alice",
		ChannelID:   "R1",
		MessageType: domain.MessageTypeFile,
		FileURL:     "uploads/a.png",
	})
	require.NoError(t, err)
	require.NoError(t, s.AppendChannelMessage(ctx, "R1", id))

	assert.Equal(t, []string{id}, s.ChannelMessages("R1"))
	assert.ErrorIs(t, s.AppendChannelMessage(ctx, "R1", "missing"), ErrNotFound)

	msg, err := s.ReadMessageResolved(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, msg.Recipient)
	assert.Equal(t, "R1", msg.ChannelID)
}

func TestMemoryStore_ReadUnknown(t *testing.T) {
	_, err := NewMemoryStore().ReadMessageResolved(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMemoryStore().CreateMessage(ctx, &domain.Message{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseID(t *testing.T) {
	oid := primitive.NewObjectID()

	got, err := parseID(oid.Hex())
	require.NoError(t, err)
	assert.Equal(t, oid, got)

	_, err = parseID("alice")
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestUserDoc_ToProfile(t *testing.T) {
	oid := primitive.NewObjectID()
	doc := userDoc{ID: oid, Email: "a@x.io", FirstName: "A", LastName: "B", Image: "img", Color: 3}

	assert.Equal(t, domain.UserProfile{
		ID: oid.Hex(), Email: "a@x.io", FirstName: "A", LastName: "B", Image: "img", Color: 3,
	}, doc.toProfile())
}

func TestRedisProfileCache_Key(t *testing.T) {
	c := &RedisProfileCache{prefix: "chat:profile"}
	assert.Equal(t, "chat:profile:id:u1", c.BuildKeyByID("u1"))
}
