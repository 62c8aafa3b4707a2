package presence

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/JeevanLal1/ProChat/internal/domain"
	"github.com/JeevanLal1/ProChat/internal/registry"
	"github.com/JeevanLal1/ProChat/pkg/log"
)

// Fanout delivers a frame to every live connection.
type Fanout interface {
	Broadcast(data []byte) int
}

const (
	mirrorTimeout = 3 * time.Second
	mirrorBacklog = 1024
)

type mirrorUpdate struct {
	userID string
	online bool
}

// Broadcaster turns registry mutations into presence frames. Every connect
// and disconnect sends a full online_users snapshot to all connections; a
// user_online or user_offline frame follows only on an actual transition.
type Broadcaster struct {
	registry *registry.Registry
	out      Fanout
	mirror   registry.PresenceMirror
	updates  chan mirrorUpdate
	done     chan struct{}

	// mu orders mutation and enqueue so snapshots reach each connection in
	// the order the registry changed.
	mu sync.Mutex
}

// NewBroadcaster builds a broadcaster. mirror may be nil; when set, online
// transitions are applied to it in order by a background worker.
func NewBroadcaster(reg *registry.Registry, out Fanout, mirror registry.PresenceMirror) *Broadcaster {
	b := &Broadcaster{
		registry: reg,
		out:      out,
		mirror:   mirror,
	}
	if mirror != nil {
		b.updates = make(chan mirrorUpdate, mirrorBacklog)
		b.done = make(chan struct{})
		go b.runMirror(b.updates)
	}
	return b
}

// Close stops the mirror worker after it drains pending updates.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	updates := b.updates
	b.updates = nil
	b.mu.Unlock()

	if updates == nil {
		return
	}
	close(updates)
	<-b.done
}

// Connect registers connID for userID and emits presence frames.
func (b *Broadcaster) Connect(ctx context.Context, userID, connID string) bool {
	b.mu.Lock()
	becameOnline := b.registry.Register(userID, connID)
	snapshot := b.registry.OnlineUserIDs()
	b.emitSnapshot(ctx, snapshot)
	if becameOnline {
		b.emit(ctx, &domain.PresenceMessage{Type: domain.MsgTypeUserOnline, UserID: userID})
		b.queueMirror(ctx, userID, true)
	}
	b.mu.Unlock()
	return becameOnline
}

// Disconnect unregisters connID. Unknown connection ids emit nothing.
func (b *Broadcaster) Disconnect(ctx context.Context, connID string) (userID string, becameOffline bool) {
	b.mu.Lock()
	userID, becameOffline, ok := b.registry.Unregister(connID)
	if !ok {
		b.mu.Unlock()
		return "", false
	}
	snapshot := b.registry.OnlineUserIDs()
	b.emitSnapshot(ctx, snapshot)
	if becameOffline {
		b.emit(ctx, &domain.PresenceMessage{Type: domain.MsgTypeUserOffline, UserID: userID})
		b.queueMirror(ctx, userID, false)
	}
	b.mu.Unlock()
	return userID, becameOffline
}

// Snapshot returns the local online user ids.
func (b *Broadcaster) Snapshot() []string {
	return b.registry.OnlineUserIDs()
}

// GlobalSnapshot reads presence across instances from the mirror, falling
// back to the local view without one.
func (b *Broadcaster) GlobalSnapshot(ctx context.Context) ([]string, error) {
	if b.mirror == nil {
		return b.Snapshot(), nil
	}
	return b.mirror.OnlineUserIDs(ctx)
}

func (b *Broadcaster) emitSnapshot(ctx context.Context, userIDs []string) {
	b.emit(ctx, &domain.OnlineUsersMessage{Type: domain.MsgTypeOnlineUsers, UserIDs: userIDs})
	l := log.Ctx(ctx)
	l.Debug().Int(log.FieldOnline, len(userIDs)).Msg("presence snapshot broadcast")
}

func (b *Broadcaster) emit(ctx context.Context, message any) {
	data, err := json.Marshal(message)
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Msg("failed to marshal presence frame")
		return
	}
	b.out.Broadcast(data)
}

// queueMirror must be called with mu held.
func (b *Broadcaster) queueMirror(ctx context.Context, userID string, online bool) {
	if b.updates == nil {
		return
	}
	select {
	case b.updates <- mirrorUpdate{userID: userID, online: online}:
	default:
		l := log.Ctx(ctx)
		l.Warn().Str(log.FieldUserID, userID).Msg("presence mirror backlog full, dropping update")
	}
}

func (b *Broadcaster) runMirror(updates <-chan mirrorUpdate) {
	defer close(b.done)
	for u := range updates {
		ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
		var err error
		if u.online {
			err = b.mirror.SetOnline(ctx, u.userID)
		} else {
			err = b.mirror.SetOffline(ctx, u.userID)
		}
		cancel()
		if err != nil {
			l := log.L()
			l.Error().Err(err).Str(log.FieldUserID, u.userID).Bool("online", u.online).Msg("failed to update presence mirror")
		}
	}
}
