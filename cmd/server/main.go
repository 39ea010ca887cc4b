// Auditsseus chat relay server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/auditsseus-chat/internal/api"
	"github.com/ashureev/auditsseus-chat/internal/config"
	"github.com/ashureev/auditsseus-chat/internal/middleware"
	"github.com/ashureev/auditsseus-chat/internal/monitoring"
	"github.com/ashureev/auditsseus-chat/internal/relay"
	"github.com/ashureev/auditsseus-chat/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("Starting relay",
		"port", cfg.Port,
		"dev", cfg.IsDevelopment(),
		"backend", cfg.BackendURL(),
		"api_timeout", cfg.APITimeout,
	)

	// Initialize dependencies.
	metrics := monitoring.NewMetrics(prometheus.DefaultRegisterer)

	conversationLogger, err := relay.NewConversationLogger(cfg.ConversationLog, logger)
	if err != nil {
		slog.Error("Failed to initialize conversation logger", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := conversationLogger.Close(); closeErr != nil {
			slog.Error("Failed to close conversation logger", "error", closeErr)
		}
	}()
	if cfg.ConversationLog.Enabled {
		slog.Info("Conversation logging enabled", "dir", cfg.ConversationLog.Dir)
	}

	// Initialize handlers.
	healthHandler := api.NewHealthHandler(cfg)
	relayHandler := relay.NewHandler(cfg, metrics, conversationLogger, logger)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(cfg.CORSOrigins))

	// Public routes.
	healthHandler.RegisterHealth(r)
	relayHandler.RegisterRoutes(r)
	r.Handle("/metrics", promhttp.Handler())

	// Serve embedded chat page (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	// The write deadline must outlive the backend call so 504s reach the client.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.APITimeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
