package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/Strob0t/SpeakerKit/internal/adapter/aixplain"
	skhttp "github.com/Strob0t/SpeakerKit/internal/adapter/http"
	skotel "github.com/Strob0t/SpeakerKit/internal/adapter/otel"
	"github.com/Strob0t/SpeakerKit/internal/adapter/postgres"
	"github.com/Strob0t/SpeakerKit/internal/adapter/ristretto"
	"github.com/Strob0t/SpeakerKit/internal/adapter/ws"
	"github.com/Strob0t/SpeakerKit/internal/config"
	"github.com/Strob0t/SpeakerKit/internal/logger"
	"github.com/Strob0t/SpeakerKit/internal/resilience"
	"github.com/Strob0t/SpeakerKit/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logCloser := logger.New(cfg.Logging)
	slog.SetDefault(log)
	defer logCloser.Close()

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"agent_base_url", cfg.Agent.BaseURL,
		"pg_max_conns", cfg.Postgres.MaxConns,
	)

	ctx := context.Background()

	// --- Infrastructure ---

	// PostgreSQL
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	slog.Info("postgres connected")

	// Run migrations
	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	// Conversation read cache
	convCache, err := ristretto.New(cfg.Cache.MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer convCache.Close()

	// Tracing + metrics
	shutdownTracer := skotel.InitTracer(cfg.Logging.Service)
	defer func() { _ = shutdownTracer(ctx) }()

	metrics, err := skotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Agent provider ---
	agentClient := aixplain.NewClient(aixplain.Config{
		BaseURL:         cfg.Agent.BaseURL,
		APIKey:          cfg.Agent.APIKey,
		AgentID:         cfg.Agent.AgentID,
		HTTPTimeout:     cfg.Agent.HTTPTimeout,
		PollInterval:    cfg.Agent.PollInterval,
		PollMaxAttempts: cfg.Agent.PollMaxAttempts,
	})
	breaker := resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout)
	agentClient.SetBreaker(breaker)

	// --- Services ---
	hub := ws.NewHub()
	store := postgres.NewStore(pool)
	chatSvc := service.NewChatService(store, agentClient, hub, convCache, cfg.Cache.TTL, metrics)

	// --- HTTP ---
	handlers := &skhttp.Handlers{
		Conversations: chatSvc,
		Hub:           hub,
		Breaker:       breaker,
	}

	r := chi.NewRouter()

	// Middleware (request id first, so every log line below carries it)
	r.Use(skhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(skhttp.SecurityHeaders)
	r.Use(skhttp.RequestID)
	r.Use(skhttp.Logger)
	r.Use(skotel.HTTPMiddleware(cfg.Logging.Service))
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(3 * time.Minute)) // a sync turn can poll up to 2 minutes

	// Health endpoint with service status
	r.Get("/health", handlers.Health)

	// WebSocket endpoint
	r.Get("/ws", hub.HandleWS)

	// API routes
	skhttp.MountRoutes(r, handlers)

	addr := ":" + cfg.Server.Port

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      3 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
		}
	}()

	<-done
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
