// Package planner assembles the trip planning stack from configuration:
// OpenRouteService clients behind the resilience layer, the geocoding and
// routing caches, the HOS engine and the trip service.
package planner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
	_ "time/tzdata" // trip zones must resolve on minimal images

	"github.com/rs/zerolog"

	"github.com/haulplan/haulplan/internal/geo"
	geoors "github.com/haulplan/haulplan/internal/geo/openrouteservice"
	"github.com/haulplan/haulplan/internal/geo/sqlitestore"
	"github.com/haulplan/haulplan/internal/hos"
	"github.com/haulplan/haulplan/internal/provider/resilience"
	"github.com/haulplan/haulplan/internal/routing"
	routingors "github.com/haulplan/haulplan/internal/routing/openrouteservice"
	"github.com/haulplan/haulplan/internal/telemetry"
	"github.com/haulplan/haulplan/internal/trip"
)

// ErrMissingAPIKey is returned when no OpenRouteService key is configured.
var ErrMissingAPIKey = errors.New("planner: ORS_API_KEY is required")

// Config holds planning stack configuration.
type Config struct {
	ORSAPIKey  string
	ORSBaseURL string

	// GeocodeCountry restricts geocoding to one ISO 3166 country (optional).
	GeocodeCountry string

	// GeocodeCachePath is the SQLite geocode cache file. Empty disables the
	// persistent cache.
	GeocodeCachePath   string
	GeocodeCacheMaxAge time.Duration

	// RulesFile overrides the standard rule set with a YAML file (optional).
	RulesFile string

	// TimeZone is the IANA zone for default trip start times.
	TimeZone string

	MaxLegMeters    float64
	ProviderTimeout time.Duration
}

// ConfigFromEnv creates a Config from environment variables.
func ConfigFromEnv() Config {
	maxLeg, _ := strconv.ParseFloat(os.Getenv("MAX_LEG_METERS"), 64)
	timeout, _ := time.ParseDuration(getEnvOrDefault("PROVIDER_TIMEOUT", "10s"))
	cacheAge, _ := time.ParseDuration(getEnvOrDefault("GEOCODE_CACHE_MAX_AGE", "720h"))

	return Config{
		ORSAPIKey:          os.Getenv("ORS_API_KEY"),
		ORSBaseURL:         os.Getenv("ORS_BASE_URL"),
		GeocodeCountry:     os.Getenv("GEOCODE_COUNTRY"),
		GeocodeCachePath:   os.Getenv("GEOCODE_CACHE_PATH"),
		GeocodeCacheMaxAge: cacheAge,
		RulesFile:          os.Getenv("HOS_RULES_FILE"),
		TimeZone:           getEnvOrDefault("TRIP_TIMEZONE", "UTC"),
		MaxLegMeters:       maxLeg,
		ProviderTimeout:    timeout,
	}
}

// Rules returns the configured rule set.
func (c Config) Rules() (hos.RuleSet, error) {
	if c.RulesFile == "" {
		return hos.StandardRules(), nil
	}
	return hos.LoadRuleSet(c.RulesFile)
}

// Location resolves the configured time zone.
func (c Config) Location() (*time.Location, error) {
	if c.TimeZone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("planner: time zone %q: %w", c.TimeZone, err)
	}
	return loc, nil
}

// Stack is a wired planning stack.
type Stack struct {
	Trips    *trip.Service
	Geo      *geo.Service
	Routing  *routing.Service
	Engine   *hos.Engine
	Registry *resilience.Registry

	store *sqlitestore.Store
}

// Build wires the planning stack.
func Build(ctx context.Context, cfg Config, logger zerolog.Logger) (*Stack, error) {
	if cfg.ORSAPIKey == "" {
		return nil, ErrMissingAPIKey
	}

	rules, err := cfg.Rules()
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	engine, err := hos.NewEngine(hos.Config{Rules: rules, Logger: logger})
	if err != nil {
		return nil, err
	}

	providerMetrics, err := telemetry.NewProviderMetrics()
	if err != nil {
		return nil, fmt.Errorf("planner: provider metrics: %w", err)
	}
	tripMetrics, err := telemetry.NewTripMetrics()
	if err != nil {
		return nil, fmt.Errorf("planner: trip metrics: %w", err)
	}

	s := &Stack{Engine: engine, Registry: resilience.NewRegistry()}

	var store geo.Store
	if cfg.GeocodeCachePath != "" {
		s.store, err = sqlitestore.Open(ctx, cfg.GeocodeCachePath, cfg.GeocodeCacheMaxAge)
		if err != nil {
			return nil, err
		}
		store = s.store
		logger.Info().Str("path", cfg.GeocodeCachePath).Msg("geocode cache opened")
	}

	s.Geo = geo.NewService(geo.ServiceConfig{
		Provider: geoors.NewClient(geoors.ClientConfig{
			APIKey:   cfg.ORSAPIKey,
			BaseURL:  cfg.ORSBaseURL,
			Timeout:  cfg.ProviderTimeout,
			Country:  cfg.GeocodeCountry,
			Registry: s.Registry,
			Logger:   logger,
		}),
		Store:   store,
		Metrics: providerMetrics,
		Logger:  logger,
	})

	s.Routing = routing.NewService(routing.ServiceConfig{
		Provider: routingors.NewClient(routingors.ClientConfig{
			APIKey:   cfg.ORSAPIKey,
			BaseURL:  cfg.ORSBaseURL,
			Timeout:  2 * cfg.ProviderTimeout,
			Registry: s.Registry,
			Logger:   logger,
		}),
		Metrics: providerMetrics,
		Logger:  logger,
	})

	s.Trips = trip.NewService(trip.Config{
		Resolver:     s.Geo,
		Router:       s.Routing,
		Engine:       engine,
		Metrics:      tripMetrics,
		Logger:       logger,
		MaxLegMeters: cfg.MaxLegMeters,
		Location:     loc,
	})

	return s, nil
}

// Close releases the geocode cache.
func (s *Stack) Close() error {
	if s.store == nil {
		return nil
	}
	return s.store.Close()
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
