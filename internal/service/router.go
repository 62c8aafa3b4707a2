package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/JeevanLal1/ProChat/internal/domain"
	"github.com/JeevanLal1/ProChat/internal/registry"
	"github.com/JeevanLal1/ProChat/internal/rooms"
	"github.com/JeevanLal1/ProChat/internal/store"
	"github.com/JeevanLal1/ProChat/pkg/log"
	"github.com/JeevanLal1/ProChat/pkg/pubsub"
)

// DirectMessage is a send from one connection to a peer user.
type DirectMessage struct {
	SenderID     string
	SenderConnID string
	RecipientID  string
	Kind         domain.MessageType
	Content      string
	FileURL      string
}

// ChannelMessage is a send from one connection to a channel room.
type ChannelMessage struct {
	SenderID     string
	SenderConnID string
	ChannelID    string
	Kind         domain.MessageType
	Content      string
	FileURL      string
}

// Router is the only place persistence and delivery meet. A message is
// delivered only after it has been persisted and re-read.
type Router struct {
	store    store.MessageStore
	registry *registry.Registry
	rooms    *rooms.Tracker
	out      Delivery
	events   pubsub.Publisher
	now      func() time.Time
}

// NewRouter builds a router. events may be nil.
func NewRouter(st store.MessageStore, reg *registry.Registry, rm *rooms.Tracker, out Delivery, events pubsub.Publisher) *Router {
	if events == nil {
		events = pubsub.NopPublisher{}
	}
	return &Router{
		store:    st,
		registry: reg,
		rooms:    rm,
		out:      out,
		events:   events,
		now:      time.Now,
	}
}

// SendDirect persists a direct message and delivers it to every connection
// of the recipient and to the sender's other connections. The originating
// connection gets no echo.
func (r *Router) SendDirect(ctx context.Context, in DirectMessage) (*domain.ResolvedMessage, int, error) {
	if in.RecipientID == "" {
		return nil, 0, fmt.Errorf("%w: recipient_id is required", ErrMalformedEvent)
	}
	if err := domain.ValidateBody(in.Kind, in.Content, in.FileURL); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	resolved, err := r.persist(ctx, &domain.Message{
		SenderID:    in.SenderID,
		RecipientID: in.RecipientID,
		MessageType: in.Kind,
		Content:     in.Content,
		FileURL:     in.FileURL,
		Timestamp:   r.now().UTC(),
	})
	if err != nil {
		return nil, 0, err
	}

	data, err := json.Marshal(&domain.ReceiveMessageOut{
		Type:    domain.MsgTypeReceiveMessage,
		Message: resolved,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to marshal message: %w", err)
	}

	targets := r.registry.ConnectionsFor(in.RecipientID)
	if in.SenderID != in.RecipientID {
		for _, id := range r.registry.ConnectionsFor(in.SenderID) {
			if id != in.SenderConnID {
				targets = append(targets, id)
			}
		}
	}
	delivered := r.out.SendMany(targets, data)

	l := log.Ctx(ctx)
	l.Debug().
		Str(log.FieldMessageID, resolved.ID).
		Str("recipient_id", in.RecipientID).
		Int(log.FieldDelivered, delivered).
		Msg("direct message delivered")

	r.publishCreated(ctx, resolved, in.SenderID, in.RecipientID, "", delivered)
	return resolved, delivered, nil
}

// SendChannel persists a channel message, appends it to the channel and
// broadcasts it to every connection subscribed to the channel's room,
// including the sender's.
func (r *Router) SendChannel(ctx context.Context, in ChannelMessage) (*domain.ResolvedMessage, int, error) {
	if in.ChannelID == "" {
		return nil, 0, fmt.Errorf("%w: channel_id is required", ErrMalformedEvent)
	}
	if err := domain.ValidateBody(in.Kind, in.Content, in.FileURL); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	resolved, err := r.persist(ctx, &domain.Message{
		SenderID:    in.SenderID,
		ChannelID:   in.ChannelID,
		MessageType: in.Kind,
		Content:     in.Content,
		FileURL:     in.FileURL,
		Timestamp:   r.now().UTC(),
	})
	if err != nil {
		return nil, 0, err
	}
	resolved.ChannelID = in.ChannelID

	if err := r.store.AppendChannelMessage(ctx, in.ChannelID, resolved.ID); err != nil {
		return nil, 0, fmt.Errorf("%w: append to channel %s: %v", ErrPersistFailed, in.ChannelID, err)
	}

	if in.SenderConnID != "" {
		r.rooms.EnsureJoined(in.ChannelID, in.SenderConnID)
	}

	data, err := json.Marshal(&domain.ReceiveChannelMessageOut{
		Type:      domain.MsgTypeReceiveChannelMessage,
		ChannelID: in.ChannelID,
		Message:   resolved,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to marshal message: %w", err)
	}

	delivered := r.out.SendMany(r.rooms.SubscribersOf(in.ChannelID), data)

	l := log.Ctx(ctx)
	l.Debug().
		Str(log.FieldMessageID, resolved.ID).
		Str(log.FieldChannelID, in.ChannelID).
		Int(log.FieldDelivered, delivered).
		Msg("channel message broadcast")

	r.publishCreated(ctx, resolved, in.SenderID, "", in.ChannelID, delivered)
	return resolved, delivered, nil
}

// AnnounceChannel pushes a newly created channel to every live connection
// of each listed member.
func (r *Router) AnnounceChannel(ctx context.Context, channel *domain.Channel) int {
	if channel == nil || len(channel.Members) == 0 {
		return 0
	}

	data, err := json.Marshal(&domain.NewChannelAddedOut{
		Type:    domain.MsgTypeNewChannelAdded,
		Channel: channel,
	})
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Msg("failed to marshal channel announcement")
		return 0
	}

	seen := make(map[string]struct{}, len(channel.Members))
	var targets []string
	for _, member := range channel.Members {
		if _, ok := seen[member]; ok {
			continue
		}
		seen[member] = struct{}{}
		targets = append(targets, r.registry.ConnectionsFor(member)...)
	}
	notified := r.out.SendMany(targets, data)

	event, err := pubsub.NewEvent(pubsub.EventChannelCreated, channel.ID, &pubsub.ChannelCreatedPayload{
		ChannelID: channel.ID,
		Members:   channel.Members,
		Notified:  notified,
	})
	if err == nil {
		r.publish(ctx, pubsub.ChannelChannelCreated, event)
	}
	return notified
}

// persist creates the message and re-reads it resolved. Nothing is
// delivered when either step fails.
func (r *Router) persist(ctx context.Context, msg *domain.Message) (*domain.ResolvedMessage, error) {
	if msg.SenderID == "" {
		return nil, ErrAnonymous
	}

	id, err := r.store.CreateMessage(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("%w: create: %v", ErrPersistFailed, err)
	}

	resolved, err := r.store.ReadMessageResolved(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrPersistFailed, id, err)
	}
	return resolved, nil
}

func (r *Router) publishCreated(ctx context.Context, msg *domain.ResolvedMessage, senderID, recipientID, channelID string, delivered int) {
	key := channelID
	if key == "" {
		key = recipientID
	}
	event, err := pubsub.NewEvent(pubsub.EventMessageCreated, key, &pubsub.MessageCreatedPayload{
		MessageID:   msg.ID,
		SenderID:    senderID,
		RecipientID: recipientID,
		ChannelID:   channelID,
		MessageType: string(msg.MessageType),
		Delivered:   delivered,
	})
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Msg("failed to build message event")
		return
	}
	r.publish(ctx, pubsub.ChannelMessageCreated, event)
}

// publish never fails the caller; the message is already persisted.
func (r *Router) publish(ctx context.Context, channel string, event *pubsub.Event) {
	if err := r.events.Publish(ctx, channel, event); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str(log.FieldEventType, event.Type).Msg("failed to publish event")
	}
}
