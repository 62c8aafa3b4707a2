package registry

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"testing"

	"github.com/JeevanLal1/ProChat/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister_FirstConnectionBringsUserOnline(t *testing.T) {
	r := New()

	assert.True(t, r.Register("alice", "c1"))
	assert.False(t, r.Register("alice", "c2"), "second device must not signal online again")
	assert.False(t, r.Register("alice", "c2"), "duplicate registration is idempotent")

	assert.Equal(t, []string{"c1", "c2"}, r.ConnectionsFor("alice"))
	assert.Equal(t, []string{"alice"}, r.OnlineUserIDs())
	assert.True(t, r.IsOnline("alice"))
}

func TestRegister_IgnoresEmptyIdentity(t *testing.T) {
	r := New()

	assert.False(t, r.Register("", "c1"))
	assert.False(t, r.Register("alice", ""))
	assert.Empty(t, r.OnlineUserIDs())
	assert.Equal(t, 0, r.ConnectionCount())
}

func TestUnregister_MultiDevice(t *testing.T) {
	r := New()
	r.Register("alice", "c1")
	r.Register("alice", "c2")

	userID, offline, ok := r.Unregister("c1")
	require.True(t, ok)
	assert.Equal(t, "alice", userID)
	assert.False(t, offline, "alice still has c2")
	assert.True(t, r.IsOnline("alice"))

	userID, offline, ok = r.Unregister("c2")
	require.True(t, ok)
	assert.Equal(t, "alice", userID)
	assert.True(t, offline)
	assert.False(t, r.IsOnline("alice"))
	assert.Nil(t, r.ConnectionsFor("alice"))
}

func TestUnregister_UnknownIsNoop(t *testing.T) {
	r := New()
	r.Register("bob", "c3")

	userID, offline, ok := r.Unregister("missing")
	assert.False(t, ok)
	assert.False(t, offline)
	assert.Empty(t, userID)

	r.Unregister("c3")
	_, _, ok = r.Unregister("c3")
	assert.False(t, ok, "double close is a no-op")
	assert.Empty(t, r.OnlineUserIDs())
}

func TestRegister_RebindMovesConnection(t *testing.T) {
	r := New()
	r.Register("alice", "c1")

	assert.True(t, r.Register("bob", "c1"))
	assert.False(t, r.IsOnline("alice"))
	assert.Equal(t, []string{"c1"}, r.ConnectionsFor("bob"))

	userID, ok := r.UserFor("c1")
	require.True(t, ok)
	assert.Equal(t, "bob", userID)
}

func TestPresenceInvariant_RandomSequence(t *testing.T) {
	r := New()
	model := map[string]map[string]struct{}{}
	owner := map[string]string{}
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 2000; i++ {
		connID := fmt.Sprintf("c%d", rng.Intn(40))
		if rng.Intn(2) == 0 {
			userID := fmt.Sprintf("u%d", rng.Intn(8))
			if prev, ok := owner[connID]; ok {
				delete(model[prev], connID)
				if len(model[prev]) == 0 {
					delete(model, prev)
				}
			}
			if model[userID] == nil {
				model[userID] = map[string]struct{}{}
			}
			model[userID][connID] = struct{}{}
			owner[connID] = userID
			r.Register(userID, connID)
		} else {
			if prev, ok := owner[connID]; ok {
				delete(owner, connID)
				delete(model[prev], connID)
				if len(model[prev]) == 0 {
					delete(model, prev)
				}
			}
			r.Unregister(connID)
		}

		want := make([]string, 0, len(model))
		for u := range model {
			want = append(want, u)
		}
		sort.Strings(want)
		require.Equal(t, want, r.OnlineUserIDs(), "step %d", i)
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := New()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			connID := fmt.Sprintf("c%d", i)
			userID := fmt.Sprintf("u%d", i%5)
			r.Register(userID, connID)
			_ = r.ConnectionsFor(userID)
			_ = r.OnlineUserIDs()
			r.Unregister(connID)
		}(i)
	}
	wg.Wait()

	assert.Empty(t, r.OnlineUserIDs())
	assert.Equal(t, 0, r.ConnectionCount())
}

func TestRedisMirror_KeyRoundTrip(t *testing.T) {
	m := &RedisMirror{prefix: "chat:presence", instanceID: "node-1"}

	key := m.keyFor("user:42")
	assert.Equal(t, "chat:presence:user:user:42:node-1", key)

	userID, ok := m.userFromKey(key)
	require.True(t, ok)
	assert.Equal(t, "user:42", userID)

	_, ok = m.userFromKey("other:user:x:node-1")
	assert.False(t, ok)
}

func TestNewRedisMirrorFromClient_UsesConfig(t *testing.T) {
	cfg := config.RedisConfig{PresencePrefix: "p", KeyTTL: 30, HeartbeatInterval: 10}
	m := NewRedisMirrorFromClient(nil, cfg, "i1")

	assert.Equal(t, "p:user:u:i1", m.keyFor("u"))
	assert.NotNil(t, m.managedKeys)
}
