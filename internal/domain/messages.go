package domain

// WebSocket message types from client.
const (
	MsgTypeJoinRoom           = "join_room"
	MsgTypeLeaveRoom          = "leave_room"
	MsgTypeSendMessage        = "send_message"
	MsgTypeSendChannelMessage = "send_channel_message"
	MsgTypeTyping             = "typing"
	MsgTypeStopTyping         = "stop_typing"
	MsgTypeAddChannelNotify   = "add_channel_notify"
	MsgTypePing               = "ping"
)

// WebSocket message types to client.
const (
	MsgTypeOnlineUsers           = "online_users"
	MsgTypeUserOnline            = "user_online"
	MsgTypeUserOffline           = "user_offline"
	MsgTypeReceiveMessage        = "receive_message"
	MsgTypeReceiveChannelMessage = "receive_channel_message"
	MsgTypeUserTyping            = "user_typing"
	MsgTypeUserStopTyping        = "user_stop_typing"
	MsgTypeNewChannelAdded       = "new_channel_added"
	MsgTypeError                 = "error"
	MsgTypePong                  = "pong"
)

// Error codes
const (
	ErrCodeBadRequest    = "BAD_REQUEST"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeSendFailed    = "SEND_FAILED"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// BaseMessage is the base structure for all WebSocket messages.
type BaseMessage struct {
	Type string `json:"type"`
}

// Client -> Server messages

type JoinRoomMessage struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
}

type LeaveRoomMessage struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
}

type SendMessageWS struct {
	Type        string      `json:"type"`
	RecipientID string      `json:"recipient_id"`
	Content     string      `json:"content"`
	FileURL     string      `json:"file_url"`
	MessageType MessageType `json:"message_type"`
	ClientMsgID string      `json:"client_msg_id,omitempty"`
}

type SendChannelMessageWS struct {
	Type        string      `json:"type"`
	ChannelID   string      `json:"channel_id"`
	Content     string      `json:"content"`
	FileURL     string      `json:"file_url"`
	MessageType MessageType `json:"message_type"`
	ClientMsgID string      `json:"client_msg_id,omitempty"`
}

// TypingWS is shared by typing and stop_typing.
type TypingWS struct {
	Type      string `json:"type"`
	TargetID  string `json:"target_id"`
	IsChannel bool   `json:"is_channel"`
	FirstName string `json:"first_name,omitempty"`
}

type AddChannelNotifyWS struct {
	Type    string   `json:"type"`
	Channel *Channel `json:"channel"`
}

// Server -> Client messages

type OnlineUsersMessage struct {
	Type    string   `json:"type"`
	UserIDs []string `json:"user_ids"`
}

type PresenceMessage struct {
	Type   string `json:"type"`
	UserID string `json:"user_id"`
}

type ReceiveMessageOut struct {
	Type    string           `json:"type"`
	Message *ResolvedMessage `json:"message"`
}

type ReceiveChannelMessageOut struct {
	Type      string           `json:"type"`
	ChannelID string           `json:"channel_id"`
	Message   *ResolvedMessage `json:"message"`
}

type TypingOut struct {
	Type      string `json:"type"`
	UserID    string `json:"user_id"`
	FirstName string `json:"first_name,omitempty"`
	ChatID    string `json:"chat_id"`
	IsChannel bool   `json:"is_channel"`
}

type NewChannelAddedOut struct {
	Type    string   `json:"type"`
	Channel *Channel `json:"channel"`
}

type ErrorMessage struct {
	Type        string `json:"type"`
	Code        string `json:"code"`
	Message     string `json:"message"`
	ClientMsgID string `json:"client_msg_id,omitempty"`
}

func NewErrorMessage(code, message string) *ErrorMessage {
	return &ErrorMessage{
		Type:    MsgTypeError,
		Code:    code,
		Message: message,
	}
}
