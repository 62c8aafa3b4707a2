package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/JeevanLal1/ProChat/internal/config"
	"github.com/JeevanLal1/ProChat/internal/domain"
	"github.com/JeevanLal1/ProChat/internal/hub"
	"github.com/JeevanLal1/ProChat/internal/presence"
	"github.com/JeevanLal1/ProChat/internal/registry"
	"github.com/JeevanLal1/ProChat/internal/rooms"
	"github.com/JeevanLal1/ProChat/internal/store"
	"github.com/JeevanLal1/ProChat/pkg/pubsub"
	"github.com/stretchr/testify/require"
)

type harness struct {
	hub      *hub.Hub
	registry *registry.Registry
	rooms    *rooms.Tracker
	store    *flakyStore
	events   *recordingPublisher
	router   *Router
	typing   *TypingRelay
	presence *presence.Broadcaster
	lc       *Lifecycle
}

func newHarness(t *testing.T, typingTTL time.Duration) *harness {
	t.Helper()

	h := &harness{
		hub:      hub.NewHub(config.WebSocketConfig{SendBuffer: 64}),
		registry: registry.New(),
		rooms:    rooms.NewTracker(),
		store:    &flakyStore{MemoryStore: store.NewMemoryStore()},
		events:   &recordingPublisher{},
	}
	h.router = NewRouter(h.store, h.registry, h.rooms, h.hub, h.events)
	h.typing = NewTypingRelay(h.registry, h.rooms, h.hub, typingTTL)
	h.presence = presence.NewBroadcaster(h.registry, h.hub, nil)
	h.lc = NewLifecycle(context.Background(), h.hub, h.presence, h.rooms, h.router, h.typing)

	t.Cleanup(func() {
		h.typing.Close()
		h.presence.Close()
	})
	return h
}

// connect opens a connection and drains the presence frames it caused.
func (h *harness) connect(t *testing.T, connID, userID string) *hub.Client {
	t.Helper()
	c := hub.NewClient(connID, h.hub, nil)
	require.NoError(t, h.lc.Open(context.Background(), c, userID, userID))
	return c
}

func (h *harness) send(c *hub.Client, frame map[string]any) {
	data, err := json.Marshal(frame)
	if err != nil {
		panic(err)
	}
	h.lc.HandleMessage(c, data)
}

// drain returns every frame queued on c without blocking.
func drain(c *hub.Client) []map[string]any {
	var frames []map[string]any
	for {
		select {
		case data, ok := <-c.Send:
			if !ok {
				return frames
			}
			var m map[string]any
			if err := json.Unmarshal(data, &m); err != nil {
				panic(err)
			}
			frames = append(frames, m)
		default:
			return frames
		}
	}
}

func drainAll(clients ...*hub.Client) {
	for _, c := range clients {
		drain(c)
	}
}

func ofType(frames []map[string]any, kind string) []map[string]any {
	var out []map[string]any
	for _, f := range frames {
		if f["type"] == kind {
			out = append(out, f)
		}
	}
	return out
}

var errStoreDown = errors.New("store unreachable")

// flakyStore wraps the memory store with switchable failures.
type flakyStore struct {
	*store.MemoryStore
	mu         sync.Mutex
	failCreate bool
	failRead   bool
	failAppend bool
}

func (s *flakyStore) set(create, read, appendMsg bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failCreate, s.failRead, s.failAppend = create, read, appendMsg
}

func (s *flakyStore) CreateMessage(ctx context.Context, msg *domain.Message) (string, error) {
	s.mu.Lock()
	fail := s.failCreate
	s.mu.Unlock()
	if fail {
		return "", errStoreDown
	}
	return s.MemoryStore.CreateMessage(ctx, msg)
}

func (s *flakyStore) ReadMessageResolved(ctx context.Context, id string) (*domain.ResolvedMessage, error) {
	s.mu.Lock()
	fail := s.failRead
	s.mu.Unlock()
	if fail {
		return nil, errStoreDown
	}
	return s.MemoryStore.ReadMessageResolved(ctx, id)
}

func (s *flakyStore) AppendChannelMessage(ctx context.Context, channelID, messageID string) error {
	s.mu.Lock()
	fail := s.failAppend
	s.mu.Unlock()
	if fail {
		return errStoreDown
	}
	return s.MemoryStore.AppendChannelMessage(ctx, channelID, messageID)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*pubsub.Event
	fail   bool
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, event *pubsub.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("bus down")
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}
