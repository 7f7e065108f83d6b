package geo

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockProvider struct {
	searchResult *Place
	searchErr    error
	reverseFn    func(Coordinate) (*Place, error)
	searches     atomic.Int32
	reverses     atomic.Int32
}

func (m *mockProvider) Search(_ context.Context, _ string) (*Place, error) {
	m.searches.Add(1)
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	p := *m.searchResult
	return &p, nil
}

func (m *mockProvider) Reverse(_ context.Context, c Coordinate) (*Place, error) {
	m.reverses.Add(1)
	if m.reverseFn == nil {
		return nil, ErrLocationNotFound
	}
	return m.reverseFn(c)
}

func (m *mockProvider) Name() string { return "mock" }

type memStore struct {
	mu     sync.Mutex
	places map[string]Place
	getErr error
}

func (s *memStore) Get(_ context.Context, key string) (*Place, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	p, ok := s.places[key]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *memStore) Put(_ context.Context, key string, p Place) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.places[key] = p
	return nil
}

type countingMetrics struct {
	requests, hits, misses atomic.Int32
}

func (m *countingMetrics) RecordRequest(string, string, time.Duration, error) { m.requests.Add(1) }
func (m *countingMetrics) RecordCacheHit(string, string)                      { m.hits.Add(1) }
func (m *countingMetrics) RecordCacheMiss(string, string)                     { m.misses.Add(1) }

func TestService_ResolveSearch(t *testing.T) {
	provider := &mockProvider{searchResult: &Place{Coordinate: Coordinate{Lat: 32.78, Lng: -96.8}, Label: "Dallas"}}
	metrics := &countingMetrics{}
	svc := NewService(ServiceConfig{Provider: provider, Metrics: metrics, Logger: zerolog.Nop()})

	loc, err := svc.Resolve(context.Background(), "  Dallas, TX ")
	require.NoError(t, err)
	assert.Equal(t, "Dallas, TX", loc.Query)
	assert.Equal(t, "Dallas", loc.DisplayName)
	assert.InDelta(t, 32.78, loc.Lat, 1e-9)

	// Second lookup with different spacing and case is served from memory.
	_, err = svc.Resolve(context.Background(), "dallas,   tx")
	require.NoError(t, err)
	assert.Equal(t, int32(1), provider.searches.Load())
	assert.Equal(t, int32(1), metrics.hits.Load())
	assert.Equal(t, int32(1), metrics.misses.Load())
	assert.Equal(t, int32(1), metrics.requests.Load())
}

func TestService_ResolveFallsBackToQueryName(t *testing.T) {
	provider := &mockProvider{searchResult: &Place{Coordinate: Coordinate{Lat: 1, Lng: 1}}}
	svc := NewService(ServiceConfig{Provider: provider, Logger: zerolog.Nop()})

	loc, err := svc.Resolve(context.Background(), "Nowhere Yard")
	require.NoError(t, err)
	assert.Equal(t, "Nowhere Yard", loc.DisplayName)
}

func TestService_ResolveNotFound(t *testing.T) {
	provider := &mockProvider{searchErr: &Error{Provider: "mock", Code: "NOT_FOUND", Message: "missing", Err: ErrLocationNotFound}}
	svc := NewService(ServiceConfig{Provider: provider, Logger: zerolog.Nop()})

	_, err := svc.Resolve(context.Background(), "Atlantis")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLocationNotFound)

	var gerr *Error
	require.True(t, errors.As(err, &gerr))
	assert.Equal(t, "Atlantis", gerr.Query)
	assert.False(t, gerr.IsRetryable())
}

func TestService_ResolveWrapsUntypedErrors(t *testing.T) {
	provider := &mockProvider{searchErr: errors.New("socket closed")}
	svc := NewService(ServiceConfig{Provider: provider, Logger: zerolog.Nop()})

	_, err := svc.Resolve(context.Background(), "Austin")
	var gerr *Error
	require.True(t, errors.As(err, &gerr))
	assert.Equal(t, "SEARCH_FAILED", gerr.Code)
	assert.Equal(t, "Austin", gerr.Query)
}

func TestService_ResolveEmpty(t *testing.T) {
	svc := NewService(ServiceConfig{Provider: &mockProvider{}, Logger: zerolog.Nop()})

	_, err := svc.Resolve(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestService_ResolveCoordinatesSnapped(t *testing.T) {
	provider := &mockProvider{
		reverseFn: func(c Coordinate) (*Place, error) {
			return &Place{Coordinate: Coordinate{Lat: c.Lat + 0.001, Lng: c.Lng}, Label: "I-35E, Dallas"}, nil
		},
	}
	svc := NewService(ServiceConfig{Provider: provider, Logger: zerolog.Nop()})

	loc, err := svc.Resolve(context.Background(), "32.7767, -96.7970")
	require.NoError(t, err)
	assert.Equal(t, "I-35E, Dallas", loc.DisplayName)
	assert.InDelta(t, 32.7777, loc.Lat, 1e-9)
	assert.Equal(t, int32(0), provider.searches.Load())
}

func TestService_ResolveCoordinatesSnapFailure(t *testing.T) {
	provider := &mockProvider{
		reverseFn: func(Coordinate) (*Place, error) { return nil, ErrProviderTimeout },
	}
	svc := NewService(ServiceConfig{Provider: provider, Logger: zerolog.Nop()})

	loc, err := svc.Resolve(context.Background(), "Location at 39.1234, -84.5678")
	require.NoError(t, err)
	assert.Equal(t, "39.1234, -84.5678", loc.DisplayName)
	assert.InDelta(t, 39.1234, loc.Lat, 1e-9)

	snap := svc.Snap(context.Background(), Coordinate{Lat: 1, Lng: 2})
	assert.False(t, snap.Snapped)
	assert.ErrorIs(t, snap.Err, ErrProviderTimeout)
	assert.Equal(t, Coordinate{Lat: 1, Lng: 2}, snap.Coordinate)
	assert.Empty(t, snap.Name)
}

func TestService_SnappingDisabled(t *testing.T) {
	provider := &mockProvider{}
	svc := NewService(ServiceConfig{Provider: provider, DisableSnapping: true, Logger: zerolog.Nop()})

	loc, err := svc.Resolve(context.Background(), "10.5, 20.25")
	require.NoError(t, err)
	assert.Equal(t, "10.5000, 20.2500", loc.DisplayName)
	assert.Equal(t, int32(0), provider.reverses.Load())
}

func TestService_Store(t *testing.T) {
	store := &memStore{places: map[string]Place{
		"houston, tx": {Coordinate: Coordinate{Lat: 29.76, Lng: -95.37}, Label: "Houston"},
	}}
	provider := &mockProvider{searchResult: &Place{Coordinate: Coordinate{Lat: 30.27, Lng: -97.74}, Label: "Austin"}}
	svc := NewService(ServiceConfig{Provider: provider, Store: store, Logger: zerolog.Nop()})

	loc, err := svc.Resolve(context.Background(), "Houston, TX")
	require.NoError(t, err)
	assert.Equal(t, "Houston", loc.DisplayName)
	assert.Equal(t, int32(0), provider.searches.Load())

	_, err = svc.Resolve(context.Background(), "Austin, TX")
	require.NoError(t, err)
	assert.Contains(t, store.places, "austin, tx")
}

func TestService_StoreErrorsAreNotFatal(t *testing.T) {
	store := &memStore{places: map[string]Place{}, getErr: errors.New("disk full")}
	provider := &mockProvider{searchResult: &Place{Coordinate: Coordinate{Lat: 1, Lng: 1}, Label: "X"}}
	svc := NewService(ServiceConfig{Provider: provider, Store: store, Logger: zerolog.Nop()})

	loc, err := svc.Resolve(context.Background(), "X")
	require.NoError(t, err)
	assert.Equal(t, "X", loc.DisplayName)
}

func TestError_IsRetryable(t *testing.T) {
	assert.True(t, (&Error{Err: ErrProviderUnavailable}).IsRetryable())
	assert.True(t, (&Error{Err: ErrProviderTimeout}).IsRetryable())
	assert.True(t, (&Error{Err: ErrRateLimitExceeded}).IsRetryable())
	assert.False(t, (&Error{Err: ErrLocationNotFound}).IsRetryable())
	assert.Equal(t, "msg: inner", (&Error{Message: "msg", Err: errors.New("inner")}).Error())
}
