package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/JeevanLal1/ProChat/internal/config"
	relaygrpc "github.com/JeevanLal1/ProChat/internal/grpc"
	"github.com/JeevanLal1/ProChat/internal/handler"
	"github.com/JeevanLal1/ProChat/internal/hub"
	"github.com/JeevanLal1/ProChat/internal/identity"
	"github.com/JeevanLal1/ProChat/internal/presence"
	"github.com/JeevanLal1/ProChat/internal/registry"
	"github.com/JeevanLal1/ProChat/internal/rooms"
	"github.com/JeevanLal1/ProChat/internal/service"
	"github.com/JeevanLal1/ProChat/internal/store"
	"github.com/JeevanLal1/ProChat/pkg/jwt"
	"github.com/JeevanLal1/ProChat/pkg/log"
	"github.com/JeevanLal1/ProChat/pkg/middleware"
	"github.com/JeevanLal1/ProChat/pkg/pubsub"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const serviceName = "chat-relay"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := log.L()
		l.Fatal().Err(err).Msg("failed to load configuration")
	}

	log.Init(log.Config{Level: cfg.Log.Level, ServiceName: serviceName})
	logger := log.L()
	if log.ParseLevel(cfg.Log.Level) > zerolog.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := context.WithCancel(log.WithLogger(context.Background(), logger))
	defer cancel()

	instanceID := uuid.New().String()
	logger.Info().Str("instance_id", instanceID).Str("address", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)).Msg("starting chat relay")

	// Message store
	msgStore, err := newStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize message store")
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer closeCancel()
		if err := msgStore.Close(closeCtx); err != nil {
			logger.Warn().Err(err).Msg("failed to close message store")
		}
	}()

	// Presence mirror
	var mirror registry.PresenceMirror
	if cfg.Redis.Enabled {
		rm, err := registry.NewRedisMirror(cfg.Redis, instanceID)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize presence mirror")
		}
		if err := rm.StartHeartbeat(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to start presence heartbeat")
		}
		defer rm.Close()
		mirror = rm
		logger.Info().Str("address", cfg.Redis.Address).Msg("presence mirror connected")
	}

	// Event publisher
	publisher, err := pubsub.NewPublisher(cfg.Events)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize event publisher")
	}
	defer publisher.Close()
	logger.Info().Str("driver", cfg.Events.Driver).Msg("event publisher ready")

	// Identity
	resolver, err := identity.New(cfg.Identity)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize identity resolver")
	}
	var apiAuth []gin.HandlerFunc
	if cfg.Identity.Mode == config.IdentityModeJWT {
		manager, err := jwt.NewManager(cfg.Identity.JWTSecret, 0, cfg.Identity.Issuer)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize token manager")
		}
		apiAuth = append(apiAuth, middleware.NewAuthMiddleware(manager).RequireAuth())
	}

	// Realtime core
	wsHub := hub.NewHub(cfg.WebSocket)
	reg := registry.New()
	roomTracker := rooms.NewTracker()
	broadcaster := presence.NewBroadcaster(reg, wsHub, mirror)
	defer broadcaster.Close()

	router := service.NewRouter(msgStore, reg, roomTracker, wsHub, publisher)
	typing := service.NewTypingRelay(reg, roomTracker, wsHub, cfg.Typing.TTL)
	lifecycle := service.NewLifecycle(ctx, wsHub, broadcaster, roomTracker, router, typing)

	// gRPC health
	grpcServer := relaygrpc.NewServer(logger)
	if err := grpcServer.Start(fmt.Sprintf("%s:%d", cfg.GRPC.Host, cfg.GRPC.Port)); err != nil {
		logger.Fatal().Err(err).Msg("failed to start gRPC server")
	}
	defer grpcServer.Stop()

	// HTTP
	engine := handler.NewEngine(
		logger,
		handler.NewHandler(broadcaster, wsHub, apiAuth...),
		handler.NewWSHandler(wsHub, lifecycle, resolver, cfg.WebSocket),
	)

	server := &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:     engine,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info().Str("address", server.Addr).Msg("chat relay listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down chat relay")
	grpcServer.SetServing(false)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Hijacked websocket connections are not tracked by Shutdown; the
	// lifecycle closes them.
	if err := lifecycle.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("connections did not close cleanly")
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("chat relay stopped")
}

func newStore(ctx context.Context, cfg *config.Config) (store.MessageStore, error) {
	switch cfg.Store.Driver {
	case config.StoreDriverMemory:
		return store.NewMemoryStore(), nil
	case config.StoreDriverMongo:
		var cache store.ProfileCache
		if cfg.Redis.Enabled {
			c, err := store.NewRedisProfileCache(cfg.Redis)
			if err != nil {
				return nil, err
			}
			cache = c
		}
		connectCtx, cancel := context.WithTimeout(ctx, cfg.Mongo.Timeout)
		defer cancel()
		return store.NewMongoStore(connectCtx, cfg.Mongo, cache)
	default:
		return nil, fmt.Errorf("unknown store driver: %s", cfg.Store.Driver)
	}
}
