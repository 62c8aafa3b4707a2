package registry

import (
	"sort"
	"sync"
)

// Registry maps user identities to their live connection ids. A user is
// online iff its connection set is non-empty.
type Registry struct {
	users map[string]map[string]struct{} // userID -> connIDs
	conns map[string]string              // connID -> userID
	mu    sync.RWMutex
}

func New() *Registry {
	return &Registry{
		users: make(map[string]map[string]struct{}),
		conns: make(map[string]string),
	}
}

// Register adds connID to userID's set and reports whether the user just
// became online. Re-registering a known connID under another user moves it.
func (r *Registry) Register(userID, connID string) (becameOnline bool) {
	if userID == "" || connID == "" {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.conns[connID]; ok {
		if prev == userID {
			return false
		}
		r.removeLocked(prev, connID)
	}

	set, ok := r.users[userID]
	if !ok {
		set = make(map[string]struct{})
		r.users[userID] = set
	}
	set[connID] = struct{}{}
	r.conns[connID] = userID

	return !ok
}

// Unregister removes connID. ok is false for an unknown connection id, in
// which case nothing changes.
func (r *Registry) Unregister(connID string) (userID string, becameOffline bool, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok = r.conns[connID]
	if !ok {
		return "", false, false
	}
	return userID, r.removeLocked(userID, connID), true
}

func (r *Registry) removeLocked(userID, connID string) bool {
	delete(r.conns, connID)

	set, ok := r.users[userID]
	if !ok {
		return false
	}
	delete(set, connID)
	if len(set) > 0 {
		return false
	}
	delete(r.users, userID)
	return true
}

// ConnectionsFor returns a snapshot of userID's connection ids, or nil when
// the user is offline.
func (r *Registry) ConnectionsFor(userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.users[userID]
	if len(set) == 0 {
		return nil
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// UserFor returns the user bound to connID.
func (r *Registry) UserFor(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	userID, ok := r.conns[connID]
	return userID, ok
}

func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users[userID]) > 0
}

// OnlineUserIDs returns the sorted set of users with at least one connection.
func (r *Registry) OnlineUserIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.users))
	for id := range r.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Registry) ConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
