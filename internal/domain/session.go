package domain

import (
	"sync"
	"time"
)

// ConnState is the lifecycle state of one connection.
type ConnState int

const (
	ConnOpening ConnState = iota
	ConnOpen
	ConnClosed
)

func (s ConnState) String() string {
	switch s {
	case ConnOpening:
		return "opening"
	case ConnOpen:
		return "open"
	case ConnClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session is the per-connection state: the identity resolved at handshake
// and the Opening -> Open -> Closed state machine.
type Session struct {
	ConnID       string
	UserID       string
	Username     string
	CreatedAt    time.Time
	LastActiveAt time.Time
	state        ConnState
	mu           sync.RWMutex
}

func NewSession(connID string) *Session {
	now := time.Now()
	return &Session{
		ConnID:       connID,
		CreatedAt:    now,
		LastActiveAt: now,
		state:        ConnOpening,
	}
}

// Bind attaches the resolved identity. Only valid while Opening.
func (s *Session) Bind(userID, username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != ConnOpening {
		return
	}
	s.UserID = userID
	s.Username = username
}

// IsRoutable reports whether the connection carries a user identity.
func (s *Session) IsRoutable() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.UserID != ""
}

func (s *Session) GetUserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.UserID
}

func (s *Session) GetUsername() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Username
}

func (s *Session) State() ConnState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Open moves Opening -> Open. It reports false for any other starting state.
func (s *Session) Open() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != ConnOpening {
		return false
	}
	s.state = ConnOpen
	s.LastActiveAt = time.Now()
	return true
}

// Close moves the session to the terminal Closed state. It reports false if
// the session was already closed.
func (s *Session) Close() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == ConnClosed {
		return false
	}
	s.state = ConnClosed
	return true
}

func (s *Session) UpdateActivity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastActiveAt = time.Now()
}
