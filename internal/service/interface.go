package service

import (
	"context"
	"errors"

	"github.com/JeevanLal1/ProChat/internal/domain"
	"github.com/JeevanLal1/ProChat/internal/hub"
)

var (
	// ErrMalformedEvent marks inbound frames missing required fields.
	ErrMalformedEvent = errors.New("malformed event")
	// ErrPersistFailed marks a send aborted because the store failed.
	ErrPersistFailed = errors.New("persist failed")
	ErrAnonymous     = errors.New("connection has no identity")
)

// Delivery queues frames on live connections. Unknown ids are skipped.
type Delivery interface {
	Send(connID string, data []byte) bool
	SendMany(connIDs []string, data []byte) int
}

// MessageRouter couples persistence and fan-out for chat messages.
type MessageRouter interface {
	SendDirect(ctx context.Context, in DirectMessage) (*domain.ResolvedMessage, int, error)
	SendChannel(ctx context.Context, in ChannelMessage) (*domain.ResolvedMessage, int, error)
	AnnounceChannel(ctx context.Context, channel *domain.Channel) int
}

// ConnectionManager drives one connection through Opening -> Open -> Closed.
type ConnectionManager interface {
	Open(ctx context.Context, c *hub.Client, userID, username string) error
	HandleMessage(c *hub.Client, data []byte)
	Close(c *hub.Client)
	Shutdown(ctx context.Context) error
}
