// Package geo resolves free-text or "lat, lng" locations into coordinates
// and a display name.
package geo

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for geocoding operations.
var (
	// ErrLocationNotFound indicates the provider had no match for the query.
	ErrLocationNotFound = errors.New("location not found")
	// ErrInvalidQuery indicates an empty or malformed location text.
	ErrInvalidQuery = errors.New("invalid location query")
	// ErrProviderUnavailable indicates the provider is down or its breaker is open.
	ErrProviderUnavailable = errors.New("geocoding provider unavailable")
	// ErrProviderTimeout indicates the provider did not answer in time.
	ErrProviderTimeout = errors.New("geocoding provider timeout")
	// ErrRateLimitExceeded indicates the API quota has been exceeded.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
)

// Coordinate is a WGS84 point.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// String formats the coordinate with four decimals, the display fallback
// for points that could not be named.
func (c Coordinate) String() string {
	return fmt.Sprintf("%.4f, %.4f", c.Lat, c.Lng)
}

// Valid reports whether the coordinate is inside WGS84 bounds.
func (c Coordinate) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// Place is a single provider match.
type Place struct {
	Coordinate
	Label string
}

// Location is a resolved user location.
type Location struct {
	// Query is the text the caller supplied.
	Query string `json:"name"`
	Coordinate
	// DisplayName is the provider label, or the coordinate text when none exists.
	DisplayName string `json:"formattedName"`
}

// Provider is a geocoding backend.
type Provider interface {
	// Search returns the best match for text, or ErrLocationNotFound.
	Search(ctx context.Context, text string) (*Place, error)
	// Reverse returns the nearest addressable point, or ErrLocationNotFound.
	Reverse(ctx context.Context, c Coordinate) (*Place, error)
	// Name returns the provider identifier for logging and metrics.
	Name() string
}

// Resolver turns location text into a Location.
type Resolver interface {
	Resolve(ctx context.Context, text string) (*Location, error)
}

// Error carries provider detail for a failed geocoding call.
type Error struct {
	Provider string
	Code     string
	Message  string
	Query    string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable reports transient failures.
func (e *Error) IsRetryable() bool {
	return errors.Is(e.Err, ErrProviderUnavailable) ||
		errors.Is(e.Err, ErrProviderTimeout) ||
		errors.Is(e.Err, ErrRateLimitExceeded)
}
