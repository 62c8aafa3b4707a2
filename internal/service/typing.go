package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/JeevanLal1/ProChat/internal/domain"
	"github.com/JeevanLal1/ProChat/internal/registry"
	"github.com/JeevanLal1/ProChat/internal/rooms"
	"github.com/JeevanLal1/ProChat/pkg/log"
)

// TypingSignal is one typing start or stop from a connection.
type TypingSignal struct {
	UserID    string
	ConnID    string
	FirstName string
	TargetID  string
	IsChannel bool
}

type typingKey struct {
	targetID  string
	isChannel bool
	userID    string
}

type typingState struct {
	connID    string
	firstName string
	timer     *time.Timer
}

// TypingRelay forwards ephemeral typing signals. Each start is tracked with
// a deadline; a stop is synthesized when the deadline passes or the
// originating connection closes without sending one.
type TypingRelay struct {
	registry *registry.Registry
	rooms    *rooms.Tracker
	out      Delivery
	ttl      time.Duration

	states map[typingKey]*typingState
	mu     sync.Mutex
}

// NewTypingRelay builds a relay. A non-positive ttl disables expiry.
func NewTypingRelay(reg *registry.Registry, rm *rooms.Tracker, out Delivery, ttl time.Duration) *TypingRelay {
	return &TypingRelay{
		registry: reg,
		rooms:    rm,
		out:      out,
		ttl:      ttl,
		states:   make(map[typingKey]*typingState),
	}
}

// Start forwards a typing start and (re)arms its deadline.
func (t *TypingRelay) Start(ctx context.Context, sig TypingSignal) (int, error) {
	if err := validateTyping(sig); err != nil {
		return 0, err
	}

	key := typingKey{targetID: sig.TargetID, isChannel: sig.IsChannel, userID: sig.UserID}
	st := &typingState{connID: sig.ConnID, firstName: sig.FirstName}

	t.mu.Lock()
	if prev, ok := t.states[key]; ok && prev.timer != nil {
		prev.timer.Stop()
	}
	if t.ttl > 0 {
		st.timer = time.AfterFunc(t.ttl, func() { t.expire(key, st) })
	}
	t.states[key] = st
	t.mu.Unlock()

	return t.emit(ctx, domain.MsgTypeUserTyping, key, st), nil
}

// Stop forwards a typing stop. A stop with no tracked start is dropped.
func (t *TypingRelay) Stop(ctx context.Context, sig TypingSignal) (int, error) {
	if err := validateTyping(sig); err != nil {
		return 0, err
	}

	key := typingKey{targetID: sig.TargetID, isChannel: sig.IsChannel, userID: sig.UserID}

	t.mu.Lock()
	st, ok := t.states[key]
	if ok {
		delete(t.states, key)
		if st.timer != nil {
			st.timer.Stop()
		}
	}
	t.mu.Unlock()

	if !ok {
		return 0, nil
	}
	return t.emit(ctx, domain.MsgTypeUserStopTyping, key, &typingState{connID: sig.ConnID}), nil
}

// OnConnectionClosed synthesizes a stop for every signal connID left open.
func (t *TypingRelay) OnConnectionClosed(ctx context.Context, connID string) int {
	type pending struct {
		key typingKey
		st  *typingState
	}

	t.mu.Lock()
	var stale []pending
	for key, st := range t.states {
		if st.connID != connID {
			continue
		}
		if st.timer != nil {
			st.timer.Stop()
		}
		delete(t.states, key)
		stale = append(stale, pending{key: key, st: st})
	}
	t.mu.Unlock()

	sent := 0
	for _, p := range stale {
		sent += t.emit(ctx, domain.MsgTypeUserStopTyping, p.key, p.st)
	}
	return sent
}

// Active reports how many typing indicators are currently tracked.
func (t *TypingRelay) Active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.states)
}

func (t *TypingRelay) expire(key typingKey, st *typingState) {
	t.mu.Lock()
	if cur, ok := t.states[key]; !ok || cur != st {
		t.mu.Unlock()
		return
	}
	delete(t.states, key)
	t.mu.Unlock()

	ctx := log.WithConn(context.Background(), st.connID, key.userID)
	l := log.Ctx(ctx)
	l.Debug().Str("target_id", key.targetID).Msg("typing indicator expired")
	t.emit(ctx, domain.MsgTypeUserStopTyping, key, st)
}

// emit sends to every connection of a direct target, or to the room minus
// the originating connection for a channel target.
func (t *TypingRelay) emit(ctx context.Context, kind string, key typingKey, st *typingState) int {
	out := &domain.TypingOut{
		Type:      kind,
		UserID:    key.userID,
		ChatID:    key.userID,
		IsChannel: key.isChannel,
	}
	if kind == domain.MsgTypeUserTyping {
		out.FirstName = st.firstName
	}

	var targets []string
	if key.isChannel {
		out.ChatID = key.targetID
		for _, id := range t.rooms.SubscribersOf(key.targetID) {
			if id != st.connID {
				targets = append(targets, id)
			}
		}
	} else {
		targets = t.registry.ConnectionsFor(key.targetID)
	}
	if len(targets) == 0 {
		return 0
	}

	data, err := json.Marshal(out)
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Msg("failed to marshal typing frame")
		return 0
	}
	return t.out.SendMany(targets, data)
}

func validateTyping(sig TypingSignal) error {
	if sig.UserID == "" {
		return ErrAnonymous
	}
	if sig.TargetID == "" {
		return ErrMalformedEvent
	}
	return nil
}

// Close stops every pending deadline without emitting.
func (t *TypingRelay) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key, st := range t.states {
		if st.timer != nil {
			st.timer.Stop()
		}
		delete(t.states, key)
	}
}
