package geo

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const tracerName = "github.com/haulplan/haulplan/internal/geo"

// Store is a persistent cache of search results keyed by normalized query.
type Store interface {
	Get(ctx context.Context, key string) (*Place, error)
	Put(ctx context.Context, key string, place Place) error
}

// Metrics records provider calls and cache outcomes.
type Metrics interface {
	RecordRequest(provider, operation string, duration time.Duration, err error)
	RecordCacheHit(provider, operation string)
	RecordCacheMiss(provider, operation string)
}

// ServiceConfig holds configuration for the geocoding service.
type ServiceConfig struct {
	Provider Provider

	// Store persists search results across restarts (optional).
	Store Store

	// Metrics receives per-call measurements (optional).
	Metrics Metrics

	Logger zerolog.Logger

	// CacheTTL is how long search results stay in memory (default: 1 hour).
	CacheTTL time.Duration

	// DisableSnapping skips reverse geocoding of coordinate input.
	DisableSnapping bool
}

// Service resolves locations with an in-memory cache in front of an optional
// persistent store and the provider.
type Service struct {
	provider        Provider
	store           Store
	metrics         Metrics
	logger          zerolog.Logger
	cacheTTL        time.Duration
	disableSnapping bool

	mu    sync.RWMutex
	cache map[string]cachedPlace
}

type cachedPlace struct {
	place     Place
	expiresAt time.Time
}

var _ Resolver = (*Service)(nil)

// NewService creates a geocoding service.
func NewService(cfg ServiceConfig) *Service {
	ttl := cfg.CacheTTL
	if ttl == 0 {
		ttl = time.Hour
	}
	return &Service{
		provider:        cfg.Provider,
		store:           cfg.Store,
		metrics:         cfg.Metrics,
		logger:          cfg.Logger,
		cacheTTL:        ttl,
		disableSnapping: cfg.DisableSnapping,
		cache:           make(map[string]cachedPlace),
	}
}

// Resolve turns text into a Location. Text containing a valid "lat, lng"
// pair bypasses search and is snapped to the nearest addressable point.
func (s *Service) Resolve(ctx context.Context, text string) (*Location, error) {
	query := strings.TrimSpace(text)
	if query == "" {
		return nil, &Error{
			Provider: s.provider.Name(),
			Code:     "EMPTY_QUERY",
			Message:  "location must not be empty",
			Err:      ErrInvalidQuery,
		}
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "geo.Resolve")
	defer span.End()
	span.SetAttributes(attribute.String("geo.query", query))

	if c, ok := ParseCoordinates(query); ok {
		snap := s.Snap(ctx, c)
		span.SetAttributes(attribute.Bool("geo.snapped", snap.Snapped))
		return &Location{
			Query:       query,
			Coordinate:  snap.Coordinate,
			DisplayName: snap.DisplayName(),
		}, nil
	}

	place, err := s.search(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	name := place.Label
	if name == "" {
		name = query
	}
	return &Location{
		Query:       query,
		Coordinate:  place.Coordinate,
		DisplayName: name,
	}, nil
}

// Snap reverse-geocodes c. Failures are reported in the result, never returned.
func (s *Service) Snap(ctx context.Context, c Coordinate) SnapResult {
	if s.disableSnapping {
		return SnapResult{Coordinate: c, Err: errors.New("snapping disabled")}
	}

	start := time.Now()
	place, err := s.provider.Reverse(ctx, c)
	s.recordRequest("reverse", time.Since(start), err)
	if err != nil {
		s.logger.Debug().Err(err).
			Float64("lat", c.Lat).
			Float64("lng", c.Lng).
			Msg("reverse geocoding failed, keeping raw coordinates")
		return SnapResult{Coordinate: c, Err: err}
	}
	return SnapResult{Coordinate: place.Coordinate, Name: place.Label, Snapped: true}
}

func (s *Service) search(ctx context.Context, query string) (*Place, error) {
	key := normalize(query)

	s.mu.RLock()
	cached, ok := s.cache[key]
	s.mu.RUnlock()
	if ok && time.Now().Before(cached.expiresAt) {
		s.recordCache(true)
		place := cached.place
		return &place, nil
	}

	if s.store != nil {
		place, err := s.store.Get(ctx, key)
		if err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("geocode store lookup failed")
		} else if place != nil {
			s.recordCache(true)
			s.remember(key, *place)
			return place, nil
		}
	}
	s.recordCache(false)

	start := time.Now()
	place, err := s.provider.Search(ctx, query)
	s.recordRequest("search", time.Since(start), err)
	if err != nil {
		s.logger.Error().Err(err).Str("query", query).Msg("geocoding failed")
		var gerr *Error
		if errors.As(err, &gerr) {
			if gerr.Query == "" {
				gerr.Query = query
			}
			return nil, gerr
		}
		return nil, &Error{
			Provider: s.provider.Name(),
			Code:     "SEARCH_FAILED",
			Message:  "geocoding failed",
			Query:    query,
			Err:      err,
		}
	}

	s.remember(key, *place)
	if s.store != nil {
		if err := s.store.Put(ctx, key, *place); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("geocode store write failed")
		}
	}
	return place, nil
}

func (s *Service) remember(key string, place Place) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[key] = cachedPlace{place: place, expiresAt: time.Now().Add(s.cacheTTL)}
}

func (s *Service) recordRequest(op string, d time.Duration, err error) {
	if s.metrics != nil {
		s.metrics.RecordRequest(s.provider.Name(), "geocode."+op, d, err)
	}
}

func (s *Service) recordCache(hit bool) {
	if s.metrics == nil {
		return
	}
	if hit {
		s.metrics.RecordCacheHit(s.provider.Name(), "geocode.search")
	} else {
		s.metrics.RecordCacheMiss(s.provider.Name(), "geocode.search")
	}
}

// ProviderName returns the name of the underlying provider.
func (s *Service) ProviderName() string {
	return s.provider.Name()
}

func normalize(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}
