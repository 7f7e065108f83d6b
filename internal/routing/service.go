package routing

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"

	"github.com/haulplan/haulplan/internal/geo"
)

const tracerName = "github.com/haulplan/haulplan/internal/routing"

// Metrics records provider calls and cache outcomes. The telemetry
// package's ProviderMetrics satisfies it.
type Metrics interface {
	RecordRequest(provider, operation string, duration time.Duration, err error)
	RecordCacheHit(provider, operation string)
	RecordCacheMiss(provider, operation string)
}

// ServiceConfig configures a routing Service. Zero durations take the
// defaults noted per field.
type ServiceConfig struct {
	Provider Provider

	// Profiles are tried in order until one yields a route. Default: HGV
	// then car.
	Profiles []RouteProfile

	Metrics Metrics // optional
	Logger  zerolog.Logger

	// CacheTTL keeps a route fresh (30m).
	CacheTTL time.Duration

	// CacheGridSize is the cell size in degrees that endpoints snap to
	// before keying (0.001, roughly 110m).
	CacheGridSize float64

	// StaleIfErrorTTL lets an expired route answer for a retryable provider
	// failure (2h).
	StaleIfErrorTTL time.Duration

	// CleanupInterval spaces cache sweeps (10m).
	CleanupInterval time.Duration
}

// Service routes legs through a Provider with profile fallback, a grid
// cache and request coalescing.
type Service struct {
	provider Provider
	profiles []RouteProfile
	metrics  Metrics
	logger   zerolog.Logger
	cache    *routeCache
	group    singleflight.Group
}

func orDefault[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}

// usableProfiles keeps the wanted profiles (default: DefaultProfiles) the
// provider supports, in the wanted order. If none survive, the provider's own
// list is used.
func usableProfiles(wanted, supported []RouteProfile) []RouteProfile {
	if len(wanted) == 0 {
		wanted = DefaultProfiles
	}
	if len(supported) == 0 {
		return wanted
	}
	out := make([]RouteProfile, 0, len(wanted))
	for _, p := range wanted {
		if slices.Contains(supported, p) {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return supported
	}
	return out
}

// NewService creates a routing service. Profiles the provider does not
// support are dropped from the fallback order, and zero cache settings take
// their defaults.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		provider: cfg.Provider,
		profiles: usableProfiles(cfg.Profiles, cfg.Provider.SupportedProfiles()),
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
		cache: newRouteCache(
			orDefault(cfg.CacheTTL, 30*time.Minute),
			orDefault(cfg.StaleIfErrorTTL, 2*time.Hour),
			orDefault(cfg.CleanupInterval, 10*time.Minute),
			orDefault(cfg.CacheGridSize, 0.001),
		),
	}
}

// Route returns the first route found between from and to, trying each
// configured profile in order. When every profile fails the error is a
// *Error wrapping ErrProviderTimeout if any attempt timed out,
// ErrRouteUnavailable if every attempt was a definitive rejection, and
// ErrProviderUnavailable otherwise.
func (s *Service) Route(ctx context.Context, from, to geo.Coordinate) (*Leg, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "routing.Route")
	defer span.End()

	var (
		failures []error
		timedOut bool
		rejected = true
	)
	for _, profile := range s.profiles {
		resp, err := s.GetDirections(ctx, DirectionsRequest{Origin: from, Destination: to, Profile: profile})
		if err == nil && len(resp.Routes) == 0 {
			err = &Error{Provider: s.provider.Name(), Code: "NO_ROUTE", Message: "provider returned no routes", Err: ErrNoRouteFound}
		}
		if err == nil {
			r := resp.Routes[0]
			span.SetAttributes(
				attribute.String("routing.profile", string(profile)),
				attribute.Float64("routing.distance_m", r.DistanceMeters),
			)
			return &Leg{
				From:           from,
				To:             to,
				DistanceMeters: r.DistanceMeters,
				Duration:       r.Duration,
				Geometry:       r.Geometry,
				Profile:        profile,
				Provider:       resp.Provider,
			}, nil
		}

		s.logger.Warn().Err(err).
			Str("profile", string(profile)).
			Msg("routing profile failed")
		failures = append(failures, fmt.Errorf("%s: %w", profile, err))

		switch {
		case errors.Is(err, ErrProviderTimeout):
			timedOut = true
			rejected = false
		case !errors.Is(err, ErrNoRouteFound) && !errors.Is(err, ErrInvalidCoordinates):
			rejected = false
		}

		if ctx.Err() != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				timedOut = true
			}
			rejected = false
			break
		}
	}

	rerr := s.classify(failures, timedOut, rejected)
	span.RecordError(rerr)
	span.SetStatus(codes.Error, rerr.Error())
	return nil, rerr
}

func (s *Service) classify(failures []error, timedOut, rejected bool) *Error {
	detail := errors.Join(failures...)
	msg := "no route found"
	if detail != nil {
		msg = detail.Error()
	}

	switch {
	case timedOut:
		return &Error{Provider: s.provider.Name(), Code: "TIMEOUT", Message: msg, Err: ErrProviderTimeout}
	case rejected:
		return &Error{Provider: s.provider.Name(), Code: "ROUTE_UNAVAILABLE", Message: msg, Err: ErrRouteUnavailable}
	default:
		return &Error{Provider: s.provider.Name(), Code: "PROVIDER_ERROR", Message: msg, Err: ErrProviderUnavailable}
	}
}

// GetDirections returns directions for one profile, from cache when fresh.
// Concurrent misses for the same cell share one provider call.
func (s *Service) GetDirections(ctx context.Context, req DirectionsRequest) (*DirectionsResponse, error) {
	switch {
	case !req.Origin.Valid():
		return nil, &Error{Provider: s.provider.Name(), Code: "INVALID_ORIGIN", Message: "invalid origin coordinates", Err: ErrInvalidCoordinates}
	case !req.Destination.Valid():
		return nil, &Error{Provider: s.provider.Name(), Code: "INVALID_DESTINATION", Message: "invalid destination coordinates", Err: ErrInvalidCoordinates}
	}

	key := s.cache.key(req)
	if resp, ok := s.cache.fresh(key); ok {
		s.recordCache(true)
		s.logger.Debug().Str("cache_key", key).Msg("directions cache hit")
		return resp, nil
	}
	s.recordCache(false)

	v, err, _ := s.group.Do(key, func() (any, error) {
		return s.fetch(ctx, req, key)
	})
	if err != nil {
		return nil, err
	}
	return v.(*DirectionsResponse), nil
}

func (s *Service) fetch(ctx context.Context, req DirectionsRequest, key string) (*DirectionsResponse, error) {
	start := time.Now()
	resp, err := s.provider.GetDirections(ctx, req)
	if s.metrics != nil {
		s.metrics.RecordRequest(s.provider.Name(), "directions", time.Since(start), err)
	}

	if err != nil {
		// Only transient failures fall back to stale data; a rejected
		// route stays rejected.
		var rerr *Error
		if !errors.As(err, &rerr) || !rerr.IsRetryable() {
			return nil, err
		}
		if e, ok := s.cache.stale(key); ok {
			s.logger.Warn().Err(err).
				Time("fetched_at", e.fetchedAt).
				Str("cache_key", key).
				Msg("serving stale directions")
			return e.resp, nil
		}
		return nil, err
	}

	if len(resp.Routes) > 0 {
		if swept := s.cache.put(key, resp); swept > 0 {
			s.logger.Debug().Int("swept", swept).Msg("routing cache swept")
		}
	}
	return resp, nil
}

func (s *Service) recordCache(hit bool) {
	switch {
	case s.metrics == nil:
	case hit:
		s.metrics.RecordCacheHit(s.provider.Name(), "directions")
	default:
		s.metrics.RecordCacheMiss(s.provider.Name(), "directions")
	}
}

// InvalidateCache drops every cached route.
func (s *Service) InvalidateCache() { s.cache.reset() }

// CacheStats counts cached routes by freshness.
type CacheStats struct {
	TotalEntries int
	FreshEntries int
	StaleEntries int
	Provider     string
}

// CacheStats reports the current cache contents for the ops status endpoint.
func (s *Service) CacheStats() CacheStats {
	total, fresh, stale := s.cache.stats()
	return CacheStats{TotalEntries: total, FreshEntries: fresh, StaleEntries: stale, Provider: s.provider.Name()}
}

// ProviderName returns the name of the underlying routing provider.
func (s *Service) ProviderName() string { return s.provider.Name() }
