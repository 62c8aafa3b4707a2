package rooms

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJoin_Idempotent(t *testing.T) {
	tr := NewTracker()

	assert.True(t, tr.Join("R1", "c1"))
	assert.False(t, tr.Join("R1", "c1"))
	assert.True(t, tr.Join("R1", "c2"))

	assert.Equal(t, []string{"c1", "c2"}, tr.SubscribersOf("R1"))
	assert.True(t, tr.IsSubscribed("R1", "c1"))
	assert.False(t, tr.Join("", "c1"))
}

func TestLeave_UnknownIsNoop(t *testing.T) {
	tr := NewTracker()

	assert.False(t, tr.Leave("nope", "c1"))
	tr.Join("R1", "c1")
	assert.False(t, tr.Leave("R1", "c9"))
	assert.True(t, tr.Leave("R1", "c1"))
	assert.False(t, tr.Leave("R1", "c1"))

	assert.Empty(t, tr.SubscribersOf("R1"))
	assert.Equal(t, 0, tr.RoomCount(), "empty rooms are dropped")
}

func TestEnsureJoined_RepairsMissingJoin(t *testing.T) {
	tr := NewTracker()

	assert.True(t, tr.EnsureJoined("R1", "c1"))
	assert.False(t, tr.EnsureJoined("R1", "c1"))
	assert.Equal(t, []string{"c1"}, tr.SubscribersOf("R1"))
}

func TestOnConnectionClosed_RemovesEveryMembership(t *testing.T) {
	tr := NewTracker()
	tr.Join("R1", "c1")
	tr.Join("R2", "c1")
	tr.Join("R2", "c2")

	left := tr.OnConnectionClosed("c1")

	assert.Equal(t, []string{"R1", "R2"}, left)
	assert.Empty(t, tr.SubscribersOf("R1"))
	assert.Equal(t, []string{"c2"}, tr.SubscribersOf("R2"))
	assert.Empty(t, tr.RoomsOf("c1"))
	assert.Empty(t, tr.OnConnectionClosed("c1"))
}

func TestRoomIsolation(t *testing.T) {
	tr := NewTracker()
	tr.Join("A", "c1")
	tr.Join("B", "c2")

	assert.Equal(t, []string{"c1"}, tr.SubscribersOf("A"))
	assert.Equal(t, []string{"c2"}, tr.SubscribersOf("B"))
}

func TestTracker_ConcurrentAccess(t *testing.T) {
	tr := NewTracker()
	var wg sync.WaitGroup

	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			connID := fmt.Sprintf("c%d", i)
			tr.Join("R1", connID)
			tr.Join(fmt.Sprintf("R%d", i%3), connID)
			_ = tr.SubscribersOf("R1")
			tr.OnConnectionClosed(connID)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, tr.RoomCount())
}
