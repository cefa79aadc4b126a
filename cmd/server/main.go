package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/mmuslimabdulj/goat-rooms/internal/config"
	httpHandler "github.com/mmuslimabdulj/goat-rooms/internal/delivery/http"
	"github.com/mmuslimabdulj/goat-rooms/internal/delivery/ws"
	"github.com/mmuslimabdulj/goat-rooms/internal/domain"
	"github.com/mmuslimabdulj/goat-rooms/internal/middleware"
	"github.com/mmuslimabdulj/goat-rooms/internal/telemetry"
	"github.com/mmuslimabdulj/goat-rooms/internal/usecase/room"
)

func main() {
	// Load .env file (ignore error if not exists, e.g. in production)
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	telemetry.SetupLogging(cfg.LogLevel, cfg.LogFormat)

	shutdownTracing, err := telemetry.SetupTracing(context.Background(), cfg.OTELEndpoint, cfg.ServiceName)
	if err != nil {
		log.Fatal().Err(err).Msg("setup tracing")
	}

	backend, err := openBackend(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("open room store")
	}

	// Initialize dependencies
	engine := room.New(backend, room.Init[domain.Fields, domain.PlayerData, domain.Fields]{
		Game:       domain.Fields{},
		PublicData: &domain.Fields{},
	}, room.Options{
		WriteTimeout:         cfg.WriteTimeout,
		ClaimVacantOwnership: cfg.ClaimVacantOwnership,
	})
	roomManager := ws.NewRoomManager(engine, ws.ManagerConfig{
		MessageLimit:    cfg.MessageLimit(),
		MaxMessageSize:  cfg.MaxMessageSize,
		SessionTTL:      cfg.SessionTTL,
		TeardownTimeout: cfg.TeardownTimeout,
	})
	handler := httpHandler.NewHandler(roomManager, cfg.AllowedOrigins)
	limiters := middleware.NewLimiters(cfg)

	// Setup routes
	mux := http.NewServeMux()

	// Serve the client bundle
	mux.Handle("/static/", http.StripPrefix("/static/", staticHandler(cfg.StaticDir)))

	// Page routes
	mux.HandleFunc("/", handler.HandleLobby)
	mux.HandleFunc("/room", handler.HandleRoom)

	// WebSocket route with rate limiting
	mux.HandleFunc("/ws", middleware.RateLimitFunc(limiters.WebSocket, handler.HandleWebSocket))

	// API routes with rate limiting
	mux.HandleFunc("/api/room/create", middleware.RateLimitFunc(limiters.API, handler.HandleCreateRoom))
	mux.HandleFunc("/api/room/join", middleware.RateLimitFunc(limiters.API, handler.HandleJoinRoom))

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      middleware.RequestLogger(log.Logger)(middleware.SecurityHeaders(mux)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Str("store", cfg.StoreDriver).Msg("GOAT rooms running")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	// Sessions leave their rooms before the store closes
	teardownCtx, cancelTeardown := context.WithTimeout(ctx, cfg.TeardownTimeout)
	if err := roomManager.Shutdown(teardownCtx); err != nil {
		log.Warn().Err(err).Msg("room teardown incomplete")
	}
	cancelTeardown()

	limiters.Close()
	if err := backend.Close(); err != nil {
		log.Error().Err(err).Msg("close room store")
	}
	if err := shutdownTracing(ctx); err != nil {
		log.Error().Err(err).Msg("flush traces")
	}

	log.Info().Msg("server exited gracefully")
}
