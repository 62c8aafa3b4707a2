package rooms

import (
	"sort"
	"sync"
)

// Tracker holds the transient subscriber set of every room. Rooms appear on
// first join and are dropped once empty.
type Tracker struct {
	rooms map[string]map[string]struct{} // roomID -> connIDs
	conns map[string]map[string]struct{} // connID -> roomIDs
	mu    sync.RWMutex
}

func NewTracker() *Tracker {
	return &Tracker{
		rooms: make(map[string]map[string]struct{}),
		conns: make(map[string]map[string]struct{}),
	}
}

// Join subscribes connID to roomID and reports whether it was newly added.
func (t *Tracker) Join(roomID, connID string) bool {
	if roomID == "" || connID == "" {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	subs, ok := t.rooms[roomID]
	if !ok {
		subs = make(map[string]struct{})
		t.rooms[roomID] = subs
	}
	if _, ok := subs[connID]; ok {
		return false
	}
	subs[connID] = struct{}{}

	joined, ok := t.conns[connID]
	if !ok {
		joined = make(map[string]struct{})
		t.conns[connID] = joined
	}
	joined[roomID] = struct{}{}
	return true
}

// EnsureJoined repairs a missing subscription for a sender whose join may
// not have been processed yet. Joins and sends on one connection can arrive
// in either order.
func (t *Tracker) EnsureJoined(roomID, connID string) bool {
	return t.Join(roomID, connID)
}

// Leave unsubscribes connID from roomID. Unknown rooms or connections are ignored.
func (t *Tracker) Leave(roomID, connID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.leaveLocked(roomID, connID)
}

func (t *Tracker) leaveLocked(roomID, connID string) bool {
	subs, ok := t.rooms[roomID]
	if !ok {
		return false
	}
	if _, ok := subs[connID]; !ok {
		return false
	}
	delete(subs, connID)
	if len(subs) == 0 {
		delete(t.rooms, roomID)
	}

	if joined, ok := t.conns[connID]; ok {
		delete(joined, roomID)
		if len(joined) == 0 {
			delete(t.conns, connID)
		}
	}
	return true
}

// OnConnectionClosed removes connID from every room and returns the rooms it left.
func (t *Tracker) OnConnectionClosed(connID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	joined := t.conns[connID]
	left := make([]string, 0, len(joined))
	for roomID := range joined {
		left = append(left, roomID)
	}
	for _, roomID := range left {
		t.leaveLocked(roomID, connID)
	}
	sort.Strings(left)
	return left
}

// SubscribersOf returns a snapshot of the connections subscribed to roomID.
func (t *Tracker) SubscribersOf(roomID string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	subs := t.rooms[roomID]
	ids := make([]string, 0, len(subs))
	for id := range subs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (t *Tracker) IsSubscribed(roomID, connID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.rooms[roomID][connID]
	return ok
}

// RoomsOf returns the rooms connID is subscribed to.
func (t *Tracker) RoomsOf(connID string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	joined := t.conns[connID]
	ids := make([]string, 0, len(joined))
	for id := range joined {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (t *Tracker) RoomCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rooms)
}
