package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/chathub/sessionhub/internal/api"
	"github.com/chathub/sessionhub/internal/auth"
	"github.com/chathub/sessionhub/internal/cache"
	"github.com/chathub/sessionhub/internal/config"
	"github.com/chathub/sessionhub/internal/db"
	"github.com/chathub/sessionhub/internal/handler"
	"github.com/chathub/sessionhub/internal/hub/heartbeat"
	"github.com/chathub/sessionhub/internal/hub/presence"
	"github.com/chathub/sessionhub/internal/hub/room"
	"github.com/chathub/sessionhub/internal/hub/session"
	"github.com/chathub/sessionhub/internal/hub/stats"
	"github.com/chathub/sessionhub/internal/logging"
	"github.com/chathub/sessionhub/internal/maintenance"
	"github.com/chathub/sessionhub/internal/middleware"
	"github.com/chathub/sessionhub/internal/models"
	"github.com/chathub/sessionhub/internal/observability"
	"github.com/chathub/sessionhub/internal/security/ipmonitor"
	"github.com/chathub/sessionhub/internal/security/ratelimit"
	"github.com/chathub/sessionhub/internal/security/sessionmanager"
	"github.com/chathub/sessionhub/internal/store"
)

const awayThreshold = 5 * time.Minute

func main() {
	cfg := config.Load()

	otelCleanup, err := observability.InitOpenTelemetry(cfg.OTelServiceName, cfg.OTelServiceVersion)
	if err != nil {
		log.Fatalf("failed to initialize OpenTelemetry: %v", err)
	}
	defer func() {
		if err := otelCleanup(context.Background()); err != nil {
			log.Printf("error shutting down OpenTelemetry: %v", err)
		}
	}()

	logger := logging.New(cfg.LogLevel)
	ctx := context.Background()

	database, err := db.New(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal(ctx, "failed to initialize database: %v", err)
	}

	redisCache, err := cache.New(cfg.RedisURL)
	if err != nil {
		logger.Fatal(ctx, "failed to initialize cache: %v", err)
	}

	jwtMgr, err := auth.NewJWTManager(cfg.JWTRSAPrivateKey, cfg.JWTRSAPublicKey)
	if err != nil {
		logger.Fatal(ctx, "failed to initialize JWT manager: %v", err)
	}

	messageStore := store.New(database)
	rooms := room.NewRegistry()
	sessions := session.NewRegistry(rooms)
	hubStats := stats.New()
	rateLimiter := ratelimit.New()
	sessionManager := sessionmanager.New(cfg.ConnectionLimitPerUser, sessions)
	ipMon := ipmonitor.New()
	presenceTracker := presence.NewTracker(redisCache, awayThreshold)

	// Apply every presence transition published on the channel (this node's
	// own included) to the local tracker without re-publishing it.
	presenceSub := redisCache.Subscribe(ctx, cache.PresenceChannel)
	go func() {
		for msg := range presenceSub.Channel() {
			var p models.Presence
			if err := json.Unmarshal([]byte(msg.Payload), &p); err != nil {
				logger.Warn(ctx, "failed to decode presence event: %v", err)
				continue
			}
			presenceTracker.ApplyRemote(p)
		}
	}()

	msgHandler := handler.New(messageStore, sessions, rooms, rateLimiter, presenceTracker, hubStats, logger)

	heartbeatSupervisor := heartbeat.New(sessions, []byte(`{"type":"ping"}`), cfg.HeartbeatInterval, logger)
	go heartbeatSupervisor.Run(ctx)

	maintenanceSupervisor := maintenance.New(rateLimiter, sessions, presenceTracker, messageStore, logger)
	maintenanceSupervisor.Start(ctx)

	connRateLimiter := middleware.NewConnectionRateLimiter(redisCache.GetClient())

	router := api.NewRouter(messageStore, jwtMgr, sessionManager, ipMon, msgHandler, sessions, rooms, presenceTracker, connRateLimiter, logger, cfg)

	server := &http.Server{
		Addr:         cfg.BindAddress,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info(ctx, "starting server on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(ctx, "server error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	gracefulShutdown(ctx, logger, cfg, server, heartbeatSupervisor, maintenanceSupervisor, sessions, database, redisCache, presenceSub, otelCleanup)
	logger.Info(ctx, "application stopped")
}

// gracefulShutdown tears components down in the order fixed by the hub's
// shutdown contract: stop accepting connections, stop the Heartbeat
// Supervisor, stop Background Maintenance, close every live session, stop
// the store/pool, stop the presence cache, then flush OTel exporters.
func gracefulShutdown(
	ctx context.Context,
	logger *logging.Logger,
	cfg *config.Config,
	server *http.Server,
	heartbeatSupervisor *heartbeat.Supervisor,
	maintenanceSupervisor *maintenance.Supervisor,
	sessions *session.Registry,
	database *db.Database,
	redisCache *cache.Cache,
	presenceSub *redis.PubSub,
	otelCleanup func(context.Context) error,
) {
	logger.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "http server shutdown error: %v", err)
	} else {
		logger.Info(ctx, "http server stopped")
	}

	heartbeatSupervisor.Stop()
	logger.Info(ctx, "heartbeat supervisor stopped")

	maintenanceSupervisor.Stop()
	logger.Info(ctx, "background maintenance stopped")

	live := sessions.Snapshot()
	for _, sess := range live {
		sess.Close()
	}
	logger.Info(ctx, "closed %d live sessions", len(live))

	if err := database.Close(); err != nil {
		logger.Error(ctx, "database close error: %v", err)
	} else {
		logger.Info(ctx, "database connection closed")
	}

	if err := presenceSub.Close(); err != nil {
		logger.Error(ctx, "presence subscription close error: %v", err)
	}
	if err := redisCache.Close(); err != nil {
		logger.Error(ctx, "redis cache close error: %v", err)
	} else {
		logger.Info(ctx, "redis cache connection closed")
	}

	if otelCleanup != nil {
		if err := otelCleanup(shutdownCtx); err != nil {
			logger.Error(ctx, "opentelemetry shutdown error: %v", err)
		} else {
			logger.Info(ctx, "opentelemetry shut down")
		}
	}

	logger.Info(ctx, "graceful shutdown complete")
}
