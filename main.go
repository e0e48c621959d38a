package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"pairdrawgo/internal/auth"
	"pairdrawgo/internal/config"
	"pairdrawgo/internal/database/db_client"
	"pairdrawgo/internal/http/http_server"
	"pairdrawgo/internal/http/presencehandler"
	"pairdrawgo/internal/presence"
	"pairdrawgo/internal/presencesync"
	"pairdrawgo/internal/redis/redis_client"
	"pairdrawgo/internal/redis/redis_functions"
	"pairdrawgo/internal/redis/watcher/bindingwatcher"
	"pairdrawgo/internal/services/pairing"
	"pairdrawgo/internal/syncsessions"
	"pairdrawgo/internal/ws"
)

var (
	Log, _ = zap.NewDevelopment()
)

func main() {
	defer Log.Sync()
	zap.ReplaceGlobals(Log)

	// 1. Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		Log.Fatal("Failed to load configuration", zap.Error(err))
	}
	Log.Debug("Configuration loaded successfully", zap.Any("config", cfg))

	// 2. Context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	// 3. Redis. Unreachable or unconfigured Redis is the documented
	//    degraded mode: single-process presence, no cross-process relay.
	var redisClient *redis.Client
	if cfg.RedisHost != "" {
		redisClient, err = redis_client.NewRedisClient(ctx, cfg.RedisHost, int(cfg.RedisPort))
		if err != nil {
			Log.Warn("Redis unavailable, continuing local-only", zap.Error(err))
			redisClient = nil
		}
	} else {
		Log.Warn("REDIS_HOST empty, running local-only")
	}
	if redisClient != nil {
		defer redisClient.Close()

		// Load the Redis Functions lua
		if err := redis_functions.LoadAll(ctx, redisClient); err != nil {
			Log.Fatal("load-redis-funcs", zap.Error(err))
		}
	}

	// 4. Postgres db client (pair authorization + user directory)
	pgDb, err := db_client.Open(cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDb)
	if err != nil {
		Log.Fatal("pg-open", zap.Error(err))
	}
	defer pgDb.Close()

	pairingService := pairing.NewPairingService(pgDb)
	verifier := auth.NewHS256Verifier([]byte(cfg.AuthSecret))

	// 5. Identity binding registry (shared store when Redis is up)
	var store presence.Store
	if redisClient != nil {
		store = presence.NewRedisStore(redisClient, time.Duration(cfg.PresenceTTLSeconds)*time.Second)
	}
	registry := presence.NewRegistry(store, redisClient)

	// 6. Background workers: session audit trail, binding TTL refresh,
	//    expired-binding cache invalidation.
	if redisClient != nil {
		syncsessions.Run(ctx, redisClient, pgDb)
		presencesync.Run(ctx, redisClient, registry, time.Duration(cfg.PresenceTTLSeconds)*time.Second)
		go bindingwatcher.Run(ctx, redisClient)
	}

	// 7. WebSockets hub + Redis fan‑out
	hub := ws.NewHub()
	var fanout *ws.Fanout
	if redisClient != nil {
		fanout = ws.NewFanout(redisClient, hub, uuid.NewString())
	}

	// 8. Initialize the WS server
	wsSrv := ws.NewWsServer(hub, fanout, registry, verifier, pairingService,
		cfg.StrokeRateLimit, cfg.ClearRateLimit)

	// 9. HTTP + WS server
	ph := presencehandler.New(registry, pairingService, redisClient)
	httpServer := http_server.NewHttpServer(cfg.HttpServerPort, wsSrv, ph)

	// SIGINT/SIGTERM drains in-flight requests and unblocks Start.
	go func() {
		<-ctx.Done()
		if err := httpServer.Dispose(); err != nil {
			Log.Error("HTTP server shutdown", zap.Error(err))
		}
	}()

	if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		Log.Fatal("Failed to start HTTP server", zap.Error(err))
	}
}
