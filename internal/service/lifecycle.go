package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/JeevanLal1/ProChat/internal/audit"
	"github.com/JeevanLal1/ProChat/internal/domain"
	"github.com/JeevanLal1/ProChat/internal/hub"
	"github.com/JeevanLal1/ProChat/internal/presence"
	"github.com/JeevanLal1/ProChat/internal/rooms"
	"github.com/JeevanLal1/ProChat/pkg/log"
)

var ErrShuttingDown = errors.New("relay is shutting down")

// Lifecycle wires connection open, inbound frames and close to the
// registries, the router and the typing relay.
type Lifecycle struct {
	hub      *hub.Hub
	presence *presence.Broadcaster
	rooms    *rooms.Tracker
	router   MessageRouter
	typing   *TypingRelay
	baseCtx  context.Context
}

func NewLifecycle(
	ctx context.Context,
	h *hub.Hub,
	p *presence.Broadcaster,
	rm *rooms.Tracker,
	router MessageRouter,
	typing *TypingRelay,
) *Lifecycle {
	return &Lifecycle{
		hub:      h,
		presence: p,
		rooms:    rm,
		router:   router,
		typing:   typing,
		baseCtx:  ctx,
	}
}

func (m *Lifecycle) connCtx(c *hub.Client) context.Context {
	return log.WithConn(m.baseCtx, c.ID, c.Session.GetUserID())
}

// Open binds the handshake identity and moves the connection to Open. An
// empty userID leaves the connection anonymous: it can join rooms and
// receive broadcasts but is never registered for direct delivery.
func (m *Lifecycle) Open(ctx context.Context, c *hub.Client, userID, username string) error {
	c.Session.Bind(userID, username)

	if !m.hub.Add(c) {
		c.Session.Close()
		return ErrShuttingDown
	}
	c.Session.Open()

	ctx = log.WithConn(ctx, c.ID, userID)
	if !c.Session.IsRoutable() {
		audit.Log(ctx, audit.ActionConnectAnon, "", "anonymous connection accepted")
		return nil
	}

	m.presence.Connect(ctx, userID, c.ID)
	audit.Log(ctx, audit.ActionConnect, userID, "connection opened")
	return nil
}

// HandleMessage dispatches one inbound frame. Failures never escape: they
// are logged and, where the client can act on them, answered with an error
// frame on this connection.
func (m *Lifecycle) HandleMessage(c *hub.Client, data []byte) {
	ctx := m.connCtx(c)

	defer func() {
		if r := recover(); r != nil {
			l := log.Ctx(ctx)
			l.Error().Interface("panic", r).Msg("recovered from panic in message handler")
			c.SendMessage(domain.NewErrorMessage(domain.ErrCodeInternalError, "internal error"))
		}
	}()

	if c.Session.State() != domain.ConnOpen {
		return
	}

	var base domain.BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		m.reject(ctx, c, "", fmt.Errorf("%w: invalid JSON", ErrMalformedEvent))
		return
	}

	switch base.Type {
	case domain.MsgTypeJoinRoom:
		var msg domain.JoinRoomMessage
		if err := json.Unmarshal(data, &msg); err != nil || msg.RoomID == "" {
			m.reject(ctx, c, "", fmt.Errorf("%w: room_id is required", ErrMalformedEvent))
			return
		}
		if m.rooms.Join(msg.RoomID, c.ID) {
			audit.LogTarget(ctx, audit.ActionJoinRoom, c.Session.GetUserID(), msg.RoomID, "joined room")
		}

	case domain.MsgTypeLeaveRoom:
		var msg domain.LeaveRoomMessage
		if err := json.Unmarshal(data, &msg); err != nil || msg.RoomID == "" {
			m.reject(ctx, c, "", fmt.Errorf("%w: room_id is required", ErrMalformedEvent))
			return
		}
		if m.rooms.Leave(msg.RoomID, c.ID) {
			audit.LogTarget(ctx, audit.ActionLeaveRoom, c.Session.GetUserID(), msg.RoomID, "left room")
		}

	case domain.MsgTypeSendMessage:
		var msg domain.SendMessageWS
		if err := json.Unmarshal(data, &msg); err != nil {
			m.reject(ctx, c, "", fmt.Errorf("%w: invalid send_message", ErrMalformedEvent))
			return
		}
		_, _, err := m.router.SendDirect(ctx, DirectMessage{
			SenderID:     c.Session.GetUserID(),
			SenderConnID: c.ID,
			RecipientID:  msg.RecipientID,
			Kind:         msg.MessageType,
			Content:      msg.Content,
			FileURL:      msg.FileURL,
		})
		m.afterSend(ctx, c, msg.RecipientID, msg.ClientMsgID, err)

	case domain.MsgTypeSendChannelMessage:
		var msg domain.SendChannelMessageWS
		if err := json.Unmarshal(data, &msg); err != nil {
			m.reject(ctx, c, "", fmt.Errorf("%w: invalid send_channel_message", ErrMalformedEvent))
			return
		}
		_, _, err := m.router.SendChannel(ctx, ChannelMessage{
			SenderID:     c.Session.GetUserID(),
			SenderConnID: c.ID,
			ChannelID:    msg.ChannelID,
			Kind:         msg.MessageType,
			Content:      msg.Content,
			FileURL:      msg.FileURL,
		})
		m.afterSend(ctx, c, msg.ChannelID, msg.ClientMsgID, err)

	case domain.MsgTypeTyping, domain.MsgTypeStopTyping:
		var msg domain.TypingWS
		if err := json.Unmarshal(data, &msg); err != nil {
			m.reject(ctx, c, "", fmt.Errorf("%w: invalid typing", ErrMalformedEvent))
			return
		}
		sig := TypingSignal{
			UserID:    c.Session.GetUserID(),
			ConnID:    c.ID,
			FirstName: msg.FirstName,
			TargetID:  msg.TargetID,
			IsChannel: msg.IsChannel,
		}
		if sig.FirstName == "" {
			sig.FirstName = c.Session.GetUsername()
		}
		var err error
		if base.Type == domain.MsgTypeTyping {
			_, err = m.typing.Start(ctx, sig)
		} else {
			_, err = m.typing.Stop(ctx, sig)
		}
		if err != nil {
			// Typing failures are never surfaced to the client.
			l := log.Ctx(ctx)
			l.Warn().Err(err).Str(log.FieldEventType, base.Type).Msg("dropped typing signal")
		}

	case domain.MsgTypeAddChannelNotify:
		var msg domain.AddChannelNotifyWS
		if err := json.Unmarshal(data, &msg); err != nil || msg.Channel == nil || msg.Channel.ID == "" {
			m.reject(ctx, c, "", fmt.Errorf("%w: channel is required", ErrMalformedEvent))
			return
		}
		if !c.Session.IsRoutable() {
			m.reject(ctx, c, "", ErrAnonymous)
			return
		}
		notified := m.router.AnnounceChannel(ctx, msg.Channel)
		audit.LogTarget(ctx, audit.ActionChannelAnnounce, c.Session.GetUserID(), msg.Channel.ID, fmt.Sprintf("channel announced to %d connections", notified))

	case domain.MsgTypePing:
		c.SendMessage(&domain.BaseMessage{Type: domain.MsgTypePong})

	default:
		m.reject(ctx, c, "", fmt.Errorf("%w: unknown message type %q", ErrMalformedEvent, base.Type))
	}
}

func (m *Lifecycle) afterSend(ctx context.Context, c *hub.Client, targetID, clientMsgID string, err error) {
	userID := c.Session.GetUserID()
	if err == nil {
		audit.LogTarget(ctx, audit.ActionSendMessage, userID, targetID, "message sent")
		return
	}
	if errors.Is(err, ErrPersistFailed) {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str("target_id", targetID).Msg("failed to send message")
		audit.LogFailure(ctx, audit.ActionSendFailed, userID, targetID, err, "message not sent")

		frame := domain.NewErrorMessage(domain.ErrCodeSendFailed, "message could not be delivered")
		frame.ClientMsgID = clientMsgID
		c.SendMessage(frame)
		return
	}
	m.reject(ctx, c, clientMsgID, err)
}

// reject logs a dropped frame and tells the client why.
func (m *Lifecycle) reject(ctx context.Context, c *hub.Client, clientMsgID string, err error) {
	l := log.Ctx(ctx)
	l.Warn().Err(err).Msg("dropped inbound frame")

	code := domain.ErrCodeBadRequest
	if errors.Is(err, ErrAnonymous) {
		code = domain.ErrCodeUnauthorized
	}
	frame := domain.NewErrorMessage(code, err.Error())
	frame.ClientMsgID = clientMsgID
	c.SendMessage(frame)
}

// Close runs the Closed transition once: typing cleanup, registry and room
// removal, then the handle is dropped from the hub.
func (m *Lifecycle) Close(c *hub.Client) {
	if !c.Session.Close() {
		return
	}
	ctx := m.connCtx(c)

	m.typing.OnConnectionClosed(ctx, c.ID)
	left := m.rooms.OnConnectionClosed(c.ID)

	userID := c.Session.GetUserID()
	if c.Session.IsRoutable() {
		m.presence.Disconnect(ctx, c.ID)
	}
	m.hub.Remove(c.ID)

	l := log.Ctx(ctx)
	l.Debug().Int("rooms_left", len(left)).Msg("connection closed")
	audit.Log(ctx, audit.ActionDisconnect, userID, "connection closed")
}

// Shutdown closes every live connection through the Closed transition.
func (m *Lifecycle) Shutdown(ctx context.Context) error {
	err := m.hub.Shutdown(ctx, m.Close)
	m.typing.Close()
	return err
}
