package domain

import (
	"errors"
	"time"
)

// MessageType distinguishes plain text from file references.
type MessageType string

const (
	MessageTypeText MessageType = "text"
	MessageTypeFile MessageType = "file"
)

var (
	ErrMissingSender      = errors.New("message has no sender")
	ErrAmbiguousTarget    = errors.New("message must have exactly one of recipient or channel")
	ErrMissingContent     = errors.New("text message requires content")
	ErrMissingFileURL     = errors.New("file message requires file_url")
	ErrUnknownMessageType = errors.New("unknown message type")
)

// Message is the persisted chat message. Exactly one of RecipientID and
// ChannelID is set.
type Message struct {
	ID          string      `json:"id,omitempty"`
	SenderID    string      `json:"sender_id"`
	RecipientID string      `json:"recipient_id,omitempty"`
	ChannelID   string      `json:"channel_id,omitempty"`
	MessageType MessageType `json:"message_type"`
	Content     string      `json:"content,omitempty"`
	FileURL     string      `json:"file_url,omitempty"`
	Timestamp   time.Time   `json:"timestamp"`
}

// Validate checks the message invariants before it is persisted.
func (m *Message) Validate() error {
	if m.SenderID == "" {
		return ErrMissingSender
	}
	if (m.RecipientID == "") == (m.ChannelID == "") {
		return ErrAmbiguousTarget
	}
	return ValidateBody(m.MessageType, m.Content, m.FileURL)
}

// ValidateBody checks that the payload matches the message type.
func ValidateBody(kind MessageType, content, fileURL string) error {
	switch kind {
	case MessageTypeText:
		if content == "" {
			return ErrMissingContent
		}
	case MessageTypeFile:
		if fileURL == "" {
			return ErrMissingFileURL
		}
	default:
		return ErrUnknownMessageType
	}
	return nil
}

// UserProfile holds the display attributes a message is resolved with.
type UserProfile struct {
	ID        string `json:"id"`
	Email     string `json:"email,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Image     string `json:"image,omitempty"`
	Color     int    `json:"color"`
}

// ResolvedMessage is a persisted message with its sender and recipient
// expanded to display attributes.
type ResolvedMessage struct {
	ID          string       `json:"id"`
	Sender      UserProfile  `json:"sender"`
	Recipient   *UserProfile `json:"recipient,omitempty"`
	ChannelID   string       `json:"channel_id,omitempty"`
	MessageType MessageType  `json:"message_type"`
	Content     string       `json:"content,omitempty"`
	FileURL     string       `json:"file_url,omitempty"`
	Timestamp   time.Time    `json:"timestamp"`
}

// Channel is the announcement payload of a newly created channel.
type Channel struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Members []string `json:"members"`
	Admin   string   `json:"admin,omitempty"`
}
