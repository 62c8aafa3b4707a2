package pubsub

// Channel naming conventions for relay events.
const (
	// ChannelMessageCreated carries every message the relay persisted.
	ChannelMessageCreated = "chat:messages:created"

	// ChannelChannelCreated carries channel announcements fanned out by the relay.
	ChannelChannelCreated = "chat:channels:created"
)

// Event types published by the relay.
const (
	EventMessageCreated = "message.created"
	EventChannelCreated = "channel.created"
)

// MessageCreatedPayload is published after a message was persisted.
type MessageCreatedPayload struct {
	MessageID   string `json:"message_id"`
	SenderID    string `json:"sender_id"`
	RecipientID string `json:"recipient_id,omitempty"`
	ChannelID   string `json:"channel_id,omitempty"`
	MessageType string `json:"message_type"`
	Delivered   int    `json:"delivered"`
}

// ChannelCreatedPayload is published when a client announces a new channel.
type ChannelCreatedPayload struct {
	ChannelID string   `json:"channel_id"`
	Members   []string `json:"members"`
	Notified  int      `json:"notified"`
}
