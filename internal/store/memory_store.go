package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/JeevanLal1/ProChat/internal/domain"
	"github.com/google/uuid"
)

// MemoryStore keeps messages, profiles and channel message lists in process.
type MemoryStore struct {
	messages map[string]domain.Message
	order    []string
	profiles map[string]domain.UserProfile
	channels map[string][]string // channelID -> messageIDs
	mu       sync.RWMutex
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		messages: make(map[string]domain.Message),
		profiles: make(map[string]domain.UserProfile),
		channels: make(map[string][]string),
		now:      time.Now,
	}
}

// SeedProfile makes profile available for message resolution.
func (s *MemoryStore) SeedProfile(profile domain.UserProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[profile.ID] = profile
}

func (s *MemoryStore) CreateMessage(ctx context.Context, msg *domain.Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := msg.Validate(); err != nil {
		return "", fmt.Errorf("failed to create message: %w", err)
	}

	stored := *msg
	stored.ID = uuid.NewString()
	if stored.Timestamp.IsZero() {
		stored.Timestamp = s.now().UTC()
	}

	s.mu.Lock()
	s.messages[stored.ID] = stored
	s.order = append(s.order, stored.ID)
	s.mu.Unlock()

	return stored.ID, nil
}

func (s *MemoryStore) ReadMessageResolved(ctx context.Context, id string) (*domain.ResolvedMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	msg, ok := s.messages[id]
	if !ok {
		return nil, fmt.Errorf("message %s: %w", id, ErrNotFound)
	}

	resolved := &domain.ResolvedMessage{
		ID:          msg.ID,
		Sender:      s.profileLocked(msg.SenderID),
		ChannelID:   msg.ChannelID,
		MessageType: msg.MessageType,
		Content:     msg.Content,
		FileURL:     msg.FileURL,
		Timestamp:   msg.Timestamp,
	}
	if msg.RecipientID != "" {
		recipient := s.profileLocked(msg.RecipientID)
		resolved.Recipient = &recipient
	}
	return resolved, nil
}

// profileLocked falls back to a bare id for unknown users.
func (s *MemoryStore) profileLocked(userID string) domain.UserProfile {
	if p, ok := s.profiles[userID]; ok {
		return p
	}
	return domain.UserProfile{ID: userID}
}

func (s *MemoryStore) AppendChannelMessage(ctx context.Context, channelID, messageID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.messages[messageID]; !ok {
		return fmt.Errorf("message %s: %w", messageID, ErrNotFound)
	}
	s.channels[channelID] = append(s.channels[channelID], messageID)
	return nil
}

// ChannelMessages returns the message ids appended to channelID.
func (s *MemoryStore) ChannelMessages(channelID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.channels[channelID]...)
}

// Messages returns every stored message in creation order.
func (s *MemoryStore) Messages() []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Message, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.messages[id])
	}
	return out
}

func (s *MemoryStore) Close(context.Context) error {
	return nil
}
