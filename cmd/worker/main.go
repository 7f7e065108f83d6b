// Package main runs the history worker: it stores trip_recorded messages
// published by the API when history writes are asynchronous.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/haulplan/haulplan/internal/database"
	"github.com/haulplan/haulplan/internal/history"
	"github.com/haulplan/haulplan/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", "haulplan-worker").
		Str("version", Version).
		Logger()

	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, using environment")
	}

	log.Info().Str("build_time", BuildTime).Msg("starting history worker")

	// Worker also exposes health endpoint for Cloud Run
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := database.Connect(ctx, database.ConfigFromEnv())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	repo := history.NewPostgresRepository(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to prepare history schema")
	}

	cfg := worker.DefaultConfig()
	cfg.ProjectID = os.Getenv("GOOGLE_CLOUD_PROJECT")
	if sub := os.Getenv("PUBSUB_SUBSCRIPTION"); sub != "" {
		cfg.SubscriptionName = sub
	}
	if n, convErr := strconv.Atoi(os.Getenv("PUBSUB_MAX_OUTSTANDING")); convErr == nil {
		cfg.MaxOutstandingMessages = n
	}

	job := worker.NewHistoryJob(worker.HistoryJobConfig{
		Store:   history.NewService(history.ServiceConfig{Repository: repo, Logger: log}),
		Timeout: cfg.StoreTimeout,
		Logger:  log,
	})

	handler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
		Config: cfg,
		Job:    job,
		Logger: log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create pubsub handler")
	}
	defer func() {
		if closeErr := handler.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("failed to close pubsub client")
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		checkCtx, checkCancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer checkCancel()

		status, code := "healthy", http.StatusOK
		if pingErr := pool.Ping(checkCtx); pingErr != nil {
			status, code = "unhealthy", http.StatusServiceUnavailable
		}

		stats := job.Stats()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":       status,
			"version":      Version,
			"received":     stats.Received,
			"stored":       stats.Stored,
			"failed":       stats.Failed,
			"malformed":    stats.Malformed,
			"healthChecks": stats.HealthChecks,
		})
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	go func() {
		if err := handler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("pubsub receive stopped")
			cancel()
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}
