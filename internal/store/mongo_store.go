package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JeevanLal1/ProChat/internal/config"
	"github.com/JeevanLal1/ProChat/internal/domain"
	"github.com/JeevanLal1/ProChat/pkg/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"
)

const (
	collMessages = "messages"
	collUsers    = "users"
	collChannels = "channels"
)

type messageDoc struct {
	ID          primitive.ObjectID  `bson:"_id,omitempty"`
	Sender      primitive.ObjectID  `bson:"sender"`
	Recipient   *primitive.ObjectID `bson:"recipient,omitempty"`
	ChannelID   *primitive.ObjectID `bson:"channelId,omitempty"`
	MessageType string              `bson:"messageType"`
	Content     string              `bson:"content,omitempty"`
	FileURL     string              `bson:"fileUrl,omitempty"`
	Timestamp   time.Time           `bson:"timestamp"`
}

type userDoc struct {
	ID        primitive.ObjectID `bson:"_id"`
	Email     string             `bson:"email"`
	FirstName string             `bson:"firstName"`
	LastName  string             `bson:"lastName"`
	Image     string             `bson:"image"`
	Color     int                `bson:"color"`
}

func (u *userDoc) toProfile() domain.UserProfile {
	return domain.UserProfile{
		ID:        u.ID.Hex(),
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Image:     u.Image,
		Color:     u.Color,
	}
}

var profileProjection = bson.M{"email": 1, "firstName": 1, "lastName": 1, "image": 1, "color": 1}

// MongoStore persists messages in MongoDB. User and channel documents are
// owned by other services; this store only reads users and pushes onto a
// channel's message list.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
	cache  ProfileCache
	now    func() time.Time
}

// NewMongoStore connects to MongoDB. cache may be nil.
func NewMongoStore(ctx context.Context, cfg config.MongoConfig, cache ProfileCache) (*MongoStore, error) {
	if cfg.URI == "" {
		return nil, errors.New("mongo uri is required")
	}

	opts := options.Client().ApplyURI(cfg.URI)
	if cfg.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(cfg.MaxPoolSize)
	}
	if cfg.Timeout > 0 {
		opts.SetTimeout(cfg.Timeout)
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	return &MongoStore{
		client: client,
		db:     client.Database(cfg.Database),
		cache:  cache,
		now:    time.Now,
	}, nil
}

func parseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%q: %w", id, ErrInvalidID)
	}
	return oid, nil
}

func (s *MongoStore) CreateMessage(ctx context.Context, msg *domain.Message) (string, error) {
	if err := msg.Validate(); err != nil {
		return "", fmt.Errorf("failed to create message: %w", err)
	}

	sender, err := parseID(msg.SenderID)
	if err != nil {
		return "", fmt.Errorf("sender: %w", err)
	}

	doc := messageDoc{
		Sender:      sender,
		MessageType: string(msg.MessageType),
		Content:     msg.Content,
		FileURL:     msg.FileURL,
		Timestamp:   msg.Timestamp,
	}
	if doc.Timestamp.IsZero() {
		doc.Timestamp = s.now().UTC()
	}
	if msg.RecipientID != "" {
		oid, err := parseID(msg.RecipientID)
		if err != nil {
			return "", fmt.Errorf("recipient: %w", err)
		}
		doc.Recipient = &oid
	}
	if msg.ChannelID != "" {
		oid, err := parseID(msg.ChannelID)
		if err != nil {
			return "", fmt.Errorf("channel: %w", err)
		}
		doc.ChannelID = &oid
	}

	res, err := s.db.Collection(collMessages).InsertOne(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("failed to insert message: %w", err)
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("unexpected inserted id type %T", res.InsertedID)
	}
	return oid.Hex(), nil
}

func (s *MongoStore) ReadMessageResolved(ctx context.Context, id string) (*domain.ResolvedMessage, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}

	var doc messageDoc
	if err := s.db.Collection(collMessages).FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("message %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read message: %w", err)
	}

	resolved := &domain.ResolvedMessage{
		ID:          doc.ID.Hex(),
		MessageType: domain.MessageType(doc.MessageType),
		Content:     doc.Content,
		FileURL:     doc.FileURL,
		Timestamp:   doc.Timestamp,
	}
	if doc.ChannelID != nil {
		resolved.ChannelID = doc.ChannelID.Hex()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := s.profile(gctx, doc.Sender)
		if err != nil {
			return fmt.Errorf("sender: %w", err)
		}
		resolved.Sender = p
		return nil
	})
	if doc.Recipient != nil {
		g.Go(func() error {
			p, err := s.profile(gctx, *doc.Recipient)
			if err != nil {
				return fmt.Errorf("recipient: %w", err)
			}
			resolved.Recipient = &p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to resolve message %s: %w", id, err)
	}
	return resolved, nil
}

// profile reads a user through the cache. A deleted user resolves to a bare
// id rather than failing the message.
func (s *MongoStore) profile(ctx context.Context, oid primitive.ObjectID) (domain.UserProfile, error) {
	userID := oid.Hex()
	l := log.Ctx(ctx)

	if s.cache != nil {
		p, err := s.cache.Get(ctx, userID)
		if err == nil {
			return *p, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			l.Warn().Err(err).Str(log.FieldUserID, userID).Msg("profile cache read failed")
		}
	}

	var doc userDoc
	opts := options.FindOne().SetProjection(profileProjection)
	if err := s.db.Collection(collUsers).FindOne(ctx, bson.M{"_id": oid}, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.UserProfile{ID: userID}, nil
		}
		return domain.UserProfile{}, fmt.Errorf("failed to read user: %w", err)
	}

	p := doc.toProfile()
	if s.cache != nil {
		if err := s.cache.Set(ctx, &p); err != nil {
			l.Warn().Err(err).Str(log.FieldUserID, userID).Msg("profile cache write failed")
		}
	}
	return p, nil
}

func (s *MongoStore) AppendChannelMessage(ctx context.Context, channelID, messageID string) error {
	channel, err := parseID(channelID)
	if err != nil {
		return fmt.Errorf("channel: %w", err)
	}
	msg, err := parseID(messageID)
	if err != nil {
		return fmt.Errorf("message: %w", err)
	}

	res, err := s.db.Collection(collChannels).UpdateByID(ctx, channel, bson.M{
		"$push": bson.M{"messages": msg},
		"$set":  bson.M{"updatedAt": s.now().UTC()},
	})
	if err != nil {
		return fmt.Errorf("failed to append channel message: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("channel %s: %w", channelID, ErrNotFound)
	}
	return nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			l := log.L()
			l.Warn().Err(err).Msg("failed to close profile cache")
		}
	}
	return s.client.Disconnect(ctx)
}
