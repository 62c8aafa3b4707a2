package store

import (
	"context"
	"errors"

	"github.com/JeevanLal1/ProChat/internal/domain"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrInvalidID = errors.New("invalid id")
	ErrCacheMiss = errors.New("cache miss")
)

// MessageStore is the persistence boundary of the message router.
type MessageStore interface {
	// CreateMessage persists msg and returns its storage id.
	CreateMessage(ctx context.Context, msg *domain.Message) (string, error)
	// ReadMessageResolved re-reads a message with sender and recipient
	// expanded to display attributes.
	ReadMessageResolved(ctx context.Context, id string) (*domain.ResolvedMessage, error)
	// AppendChannelMessage adds a message id to the channel's message list.
	AppendChannelMessage(ctx context.Context, channelID, messageID string) error
	Close(ctx context.Context) error
}

// ProfileCache caches resolved user profiles by id.
type ProfileCache interface {
	Get(ctx context.Context, userID string) (*domain.UserProfile, error)
	Set(ctx context.Context, profile *domain.UserProfile) error
	Close() error
}
