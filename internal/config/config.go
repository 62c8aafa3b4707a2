package config

import (
	"strings"
	"time"

	pkgconfig "github.com/JeevanLal1/ProChat/pkg/config"
	"github.com/JeevanLal1/ProChat/pkg/pubsub"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	GRPC      GRPCConfig
	WebSocket WebSocketConfig
	Store     StoreConfig
	Mongo     MongoConfig
	Redis     RedisConfig
	Events    pubsub.Config
	Identity  IdentityConfig
	Typing    TypingConfig
	Log       LogConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type GRPCConfig struct {
	Host string
	Port int
}

type WebSocketConfig struct {
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	SendBuffer     int           `mapstructure:"send_buffer"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

type StoreConfig struct {
	Driver string // mongo, memory
}

type MongoConfig struct {
	URI         string
	Database    string
	MaxPoolSize uint64        `mapstructure:"max_pool_size"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type RedisConfig struct {
	Enabled           bool
	Address           string
	Password          string
	DB                int
	PresencePrefix    string        `mapstructure:"presence_prefix"`
	ProfilePrefix     string        `mapstructure:"profile_prefix"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	KeyTTL            time.Duration `mapstructure:"key_ttl"`
	ProfileTTL        time.Duration `mapstructure:"profile_ttl"`
}

type IdentityConfig struct {
	Mode      string // query, jwt
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string
}

type TypingConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type LogConfig struct {
	Level string
}

const (
	StoreDriverMongo  = "mongo"
	StoreDriverMemory = "memory"

	IdentityModeQuery = "query"
	IdentityModeJWT   = "jwt"
)

func Load() (*Config, error) {
	v, err := pkgconfig.Load("./config", "config")
	if err != nil {
		return nil, err
	}
	return FromViper(v)
}

// FromViper applies defaults and env bindings to v and decodes it.
func FromViper(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	if err := pkgconfig.BindEnvs(v, map[string]string{
		"server.port":               "PORT",
		"grpc.port":                 "GRPC_PORT",
		"store.driver":              "STORE_DRIVER",
		"mongo.uri":                 "MONGO_URI",
		"mongo.database":            "MONGO_DATABASE",
		"redis.enabled":             "REDIS_ENABLED",
		"redis.address":             "REDIS_ADDRESS",
		"redis.password":            "REDIS_PASSWORD",
		"events.driver":             "EVENTS_DRIVER",
		"events.kafka.brokers":      "KAFKA_BROKERS",
		"identity.mode":             "IDENTITY_MODE",
		"identity.jwt_secret":       "JWT_SECRET",
		"websocket.allowed_origins": "ORIGIN",
		"log.level":                 "LOG_LEVEL",
	}); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Parse durations
	cfg.WebSocket.PingInterval = pkgconfig.Duration(v, "websocket.ping_interval", 30*time.Second)
	cfg.WebSocket.PongWait = pkgconfig.Duration(v, "websocket.pong_wait", 60*time.Second)
	cfg.WebSocket.WriteWait = pkgconfig.Duration(v, "websocket.write_wait", 10*time.Second)
	cfg.Mongo.Timeout = pkgconfig.Duration(v, "mongo.timeout", 10*time.Second)
	cfg.Redis.HeartbeatInterval = pkgconfig.Duration(v, "redis.heartbeat_interval", 10*time.Second)
	cfg.Redis.KeyTTL = pkgconfig.Duration(v, "redis.key_ttl", 30*time.Second)
	cfg.Redis.ProfileTTL = pkgconfig.Duration(v, "redis.profile_ttl", 5*time.Minute)
	cfg.Typing.TTL = pkgconfig.Duration(v, "typing.ttl", 5*time.Second)
	cfg.Events.Redis.ReadTimeout = pkgconfig.Duration(v, "events.redis.read_timeout", 3*time.Second)
	cfg.Events.Redis.WriteTimeout = pkgconfig.Duration(v, "events.redis.write_timeout", 3*time.Second)

	cfg.WebSocket.AllowedOrigins = splitList(v.GetStringSlice("websocket.allowed_origins"))

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	events := pubsub.DefaultConfig()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8747)
	v.SetDefault("grpc.host", "0.0.0.0")
	v.SetDefault("grpc.port", 50062)
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_size", 65536)
	v.SetDefault("websocket.send_buffer", 256)
	v.SetDefault("websocket.allowed_origins", []string{})
	v.SetDefault("store.driver", StoreDriverMongo)
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "prochat")
	v.SetDefault("mongo.max_pool_size", 50)
	v.SetDefault("mongo.timeout", "10s")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.presence_prefix", "chat:presence")
	v.SetDefault("redis.profile_prefix", "chat:profile")
	v.SetDefault("redis.heartbeat_interval", "10s")
	v.SetDefault("redis.key_ttl", "30s")
	v.SetDefault("redis.profile_ttl", "5m")
	v.SetDefault("events.driver", events.Driver)
	v.SetDefault("events.redis.address", events.Redis.Address)
	v.SetDefault("events.redis.pool_size", events.Redis.PoolSize)
	v.SetDefault("events.redis.read_timeout", "3s")
	v.SetDefault("events.redis.write_timeout", "3s")
	v.SetDefault("events.kafka.brokers", events.Kafka.Brokers)
	v.SetDefault("events.kafka.partitions", events.Kafka.Partitions)
	v.SetDefault("identity.mode", IdentityModeQuery)
	v.SetDefault("identity.jwt_secret", "")
	v.SetDefault("identity.issuer", "")
	v.SetDefault("typing.ttl", "5s")
	v.SetDefault("log.level", "info")
}

// splitList flattens comma-separated entries; env values arrive as one element.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
