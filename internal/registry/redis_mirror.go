package registry

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/JeevanLal1/ProChat/internal/config"
	"github.com/JeevanLal1/ProChat/pkg/log"
	"github.com/redis/go-redis/v9"
)

// PresenceMirror publishes this instance's online users to shared storage so
// other processes can read global presence.
type PresenceMirror interface {
	SetOnline(ctx context.Context, userID string) error
	SetOffline(ctx context.Context, userID string) error
	OnlineUserIDs(ctx context.Context) ([]string, error)
	StartHeartbeat(ctx context.Context) error
	StopHeartbeat()
	Close() error
}

// Redis key pattern:
// {prefix}:user:{user_id}:{instance_id}   STRING<instance_id>  - refreshed by heartbeat, expires with TTL

type RedisMirror struct {
	client            *redis.Client
	instanceID        string
	prefix            string
	keyTTL            time.Duration
	heartbeatInterval time.Duration
	managedKeys       map[string]struct{} // keys owned by this instance
	mu                sync.RWMutex
	cancel            context.CancelFunc
}

func NewRedisMirror(cfg config.RedisConfig, instanceID string) (*RedisMirror, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisMirrorFromClient(client, cfg, instanceID), nil
}

func NewRedisMirrorFromClient(client *redis.Client, cfg config.RedisConfig, instanceID string) *RedisMirror {
	return &RedisMirror{
		client:            client,
		instanceID:        instanceID,
		prefix:            cfg.PresencePrefix,
		keyTTL:            cfg.KeyTTL,
		heartbeatInterval: cfg.HeartbeatInterval,
		managedKeys:       make(map[string]struct{}),
	}
}

func (r *RedisMirror) keyFor(userID string) string {
	return fmt.Sprintf("%s:user:%s:%s", r.prefix, userID, r.instanceID)
}

// userFromKey extracts the user id from a key built by keyFor.
func (r *RedisMirror) userFromKey(key string) (string, bool) {
	rest, ok := strings.CutPrefix(key, r.prefix+":user:")
	if !ok {
		return "", false
	}
	i := strings.LastIndex(rest, ":")
	if i <= 0 {
		return "", false
	}
	return rest[:i], true
}

func (r *RedisMirror) SetOnline(ctx context.Context, userID string) error {
	key := r.keyFor(userID)

	if err := r.client.Set(ctx, key, r.instanceID, r.keyTTL).Err(); err != nil {
		return fmt.Errorf("failed to mirror online user: %w", err)
	}

	r.mu.Lock()
	r.managedKeys[key] = struct{}{}
	r.mu.Unlock()
	return nil
}

func (r *RedisMirror) SetOffline(ctx context.Context, userID string) error {
	key := r.keyFor(userID)

	r.mu.Lock()
	delete(r.managedKeys, key)
	r.mu.Unlock()

	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to mirror offline user: %w", err)
	}
	return nil
}

// OnlineUserIDs scans every instance's keys and returns the distinct users.
func (r *RedisMirror) OnlineUserIDs(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	iter := r.client.Scan(ctx, 0, r.prefix+":user:*", 256).Iterator()
	for iter.Next(ctx) {
		if userID, ok := r.userFromKey(iter.Val()); ok {
			seen[userID] = struct{}{}
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan presence keys: %w", err)
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *RedisMirror) StartHeartbeat(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	go r.heartbeatLoop(ctx)
	l := log.L()
	l.Info().Dur("interval", r.heartbeatInterval).Dur("ttl", r.keyTTL).Msg("presence mirror heartbeat started")
	return nil
}

func (r *RedisMirror) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(r.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refreshKeys(ctx)
		}
	}
}

func (r *RedisMirror) refreshKeys(ctx context.Context) {
	r.mu.RLock()
	keys := make([]string, 0, len(r.managedKeys))
	for k := range r.managedKeys {
		keys = append(keys, k)
	}
	r.mu.RUnlock()

	if len(keys) == 0 {
		return
	}

	pipe := r.client.Pipeline()
	for _, key := range keys {
		pipe.Expire(ctx, key, r.keyTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		l := log.L()
		l.Error().Int("keys", len(keys)).Err(err).Msg("failed to refresh presence keys")
	}
}

func (r *RedisMirror) StopHeartbeat() {
	if r.cancel != nil {
		r.cancel()
	}
}

// Close drops every key owned by this instance and closes the client.
func (r *RedisMirror) Close() error {
	r.StopHeartbeat()

	r.mu.Lock()
	keys := make([]string, 0, len(r.managedKeys))
	for k := range r.managedKeys {
		keys = append(keys, k)
	}
	r.managedKeys = make(map[string]struct{})
	r.mu.Unlock()

	if len(keys) > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := r.client.Del(ctx, keys...).Err(); err != nil {
			l := log.L()
			l.Warn().Err(err).Msg("failed to drop presence keys on close")
		}
	}
	return r.client.Close()
}
