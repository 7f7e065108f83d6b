// Package main provides the entrypoint for the haulplan API server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/haulplan/haulplan/internal/api"
	"github.com/haulplan/haulplan/internal/api/handler"
	"github.com/haulplan/haulplan/internal/api/middleware"
	"github.com/haulplan/haulplan/internal/auth"
	"github.com/haulplan/haulplan/internal/database"
	"github.com/haulplan/haulplan/internal/history"
	"github.com/haulplan/haulplan/internal/planner"
	"github.com/haulplan/haulplan/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "haulplan-api"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, using environment")
	}

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting haulplan API")

	port := getEnvOrDefault("APP_PORT", "8080")

	ctx := context.Background()
	telemetryConfig := telemetry.ConfigFromEnv(serviceName, Version)
	tp, err := telemetry.Init(ctx, telemetryConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	if telemetryConfig.Enabled {
		log.Info().
			Str("otlp_endpoint", telemetryConfig.OTLPEndpoint).
			Str("environment", telemetryConfig.Environment).
			Msg("OpenTelemetry initialized")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	metrics, err := middleware.NewMetrics(nil)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	// Planning stack
	stack, err := planner.Build(ctx, planner.ConfigFromEnv(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build planning stack")
	}
	defer func() {
		if closeErr := stack.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("failed to close geocode cache")
		}
	}()

	// Trip history
	var (
		repo   history.Repository
		probes []handler.Probe
	)
	switch store := getEnvOrDefault("HISTORY_STORE", "memory"); store {
	case "postgres":
		dbConfig := database.ConfigFromEnv()
		pool, dbErr := database.Connect(ctx, dbConfig)
		if dbErr != nil {
			log.Fatal().Err(dbErr).Msg("failed to connect to database")
		}
		defer pool.Close()

		pgRepo := history.NewPostgresRepository(pool)
		if dbErr = pgRepo.EnsureSchema(ctx); dbErr != nil {
			log.Fatal().Err(dbErr).Msg("failed to prepare history schema")
		}
		repo = pgRepo
		probes = append(probes, handler.Probe{Name: "database", Check: pool.Ping})
		log.Info().Str("database", dbConfig.Database).Msg("history stored in postgres")
	case "memory":
		repo = history.NewInMemoryRepository()
		log.Warn().Msg("history kept in memory, entries are lost on restart")
	default:
		log.Fatal().Str("store", store).Msg("unknown HISTORY_STORE")
	}

	var publisher history.Publisher
	if topic := os.Getenv("PUBSUB_TOPIC"); topic != "" {
		client, psErr := pubsub.NewClient(ctx, os.Getenv("GOOGLE_CLOUD_PROJECT"))
		if psErr != nil {
			log.Fatal().Err(psErr).Msg("failed to create pubsub client")
		}
		defer client.Close()

		tpub := history.NewTopicPublisher(client.Publisher(topic))
		defer tpub.Stop()
		publisher = tpub
		log.Info().Str("topic", topic).Msg("history writes delegated to worker")
	}

	historyService := history.NewService(history.ServiceConfig{
		Repository: repo,
		Publisher:  publisher,
		Logger:     log,
	})

	// Operator tokens
	jwtService := auth.NewJWTService(auth.JWTConfig{
		SigningKey: os.Getenv("JWT_SIGNING_KEY"),
		Issuer:     os.Getenv("JWT_ISSUER"),
		Audience:   os.Getenv("JWT_AUDIENCE"),
	})
	if !jwtService.Enabled() {
		log.Warn().Msg("JWT_SIGNING_KEY not set, history endpoints are unauthenticated")
	}

	detailLogInfo, err := parseLogInfo(os.Getenv("HISTORY_DETAIL_LOG_INFO"))
	if err != nil {
		log.Fatal().Err(err).Msg("invalid HISTORY_DETAIL_LOG_INFO")
	}

	router := api.NewRouter(api.RouterConfig{
		Version:            Version,
		BuildTime:          BuildTime,
		Logger:             log,
		ServiceName:        serviceName,
		Metrics:            metrics,
		Trips:              stack.Trips,
		History:            historyService,
		Tokens:             jwtService,
		Providers:          stack.Registry,
		Probes:             probes,
		DetailLogInfo:      detailLogInfo,
		CORSAllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		RequireTLS:         os.Getenv("REQUIRE_TLS") == "true",
	})

	// Trip calculations can take two provider round trips per leg.
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		return
	}

	log.Info().Msg("server stopped")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseLogInfo decodes a JSON object of log sheet header fields.
func parseLogInfo(s string) (map[string]any, error) {
	if s == "" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, err
	}
	return m, nil
}
