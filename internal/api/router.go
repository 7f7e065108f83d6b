// Package api provides the HTTP API for haulplan.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/haulplan/haulplan/internal/api/handler"
	"github.com/haulplan/haulplan/internal/api/middleware"
	"github.com/haulplan/haulplan/internal/auth"
	"github.com/haulplan/haulplan/internal/history"
)

// TripService plans trips and reports the limits it plans under.
type TripService interface {
	handler.TripPlanner
	MaxLegMeters() float64
}

// HistoryService records, lists and removes trip history.
type HistoryService interface {
	handler.TripRecorder
	handler.HistoryStore
}

var _ HistoryService = (*history.Service)(nil)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics

	Trips   TripService
	History HistoryService

	// Tokens guards the history endpoints. Nil or disabled leaves them open.
	Tokens middleware.TokenValidator

	Providers handler.ProviderHealth
	Probes    []handler.Probe

	// DetailLogInfo is echoed with recalculated history trips.
	DetailLogInfo map[string]any

	CORSAllowedOrigins []string
	RequireTLS         bool
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "haulplan-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-Id"},
			ExposedHeaders: []string{"X-Request-Id", "Retry-After"},
			MaxAge:         300,
		}))
	}
	r.Use(middleware.MaxBodyBytes(middleware.DefaultMaxBodyBytes))
	r.Use(middleware.RequireJSON)

	opsHandler := handler.NewOpsHandler(handler.OpsHandlerConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		Providers: cfg.Providers,
		Probes:    cfg.Probes,
	})
	metadataHandler := handler.NewMetadataHandler(cfg.Trips)

	tripHandler := handler.NewTripHandler(handler.TripHandlerConfig{
		Planner:  cfg.Trips,
		Recorder: cfg.History,
		Logger:   cfg.Logger,
	})

	planningRateLimit := middleware.RateLimitByIP(middleware.PlanningRateLimit)
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.With(middleware.RequireRole(cfg.Tokens, auth.RoleViewer)).Get("/status", opsHandler.SystemStatus)
		})

		r.Route("/metadata", func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/rules", metadataHandler.GetRules)
			r.Get("/enums", metadataHandler.GetEnums)
		})

		r.With(planningRateLimit).Post("/trips:calculate", tripHandler.Calculate)

		if cfg.History != nil {
			historyHandler := handler.NewHistoryHandler(handler.HistoryHandlerConfig{
				Store:         cfg.History,
				Planner:       cfg.Trips,
				DetailLogInfo: cfg.DetailLogInfo,
				Logger:        cfg.Logger,
			})
			viewer := middleware.RequireRole(cfg.Tokens, auth.RoleViewer)
			admin := middleware.RequireRole(cfg.Tokens, auth.RoleAdmin)
			historyRateLimit := middleware.RateLimitBySubject(middleware.HistoryRateLimit)

			r.Route("/history", func(r chi.Router) {
				r.With(viewer, historyRateLimit).Get("/", historyHandler.List)
				r.With(admin, historyRateLimit).Delete("/", historyHandler.DeleteAll)
				r.Route("/{historyId}", func(r chi.Router) {
					// Detail recalculates the trip, so it shares the planning budget.
					r.With(viewer, planningRateLimit).Get("/", historyHandler.Get)
					r.With(admin, historyRateLimit).Delete("/", historyHandler.Delete)
				})
			})
		}
	})

	return r
}

