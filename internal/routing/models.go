// Package routing provides truck routing between two points, falling back
// from the heavy-goods-vehicle profile to the car profile.
package routing

import (
	"context"
	"errors"
	"time"

	"github.com/haulplan/haulplan/internal/geo"
)

// Failure classes. Provider errors wrap one of these inside *Error.
var (
	ErrProviderUnavailable = errors.New("routing provider unavailable") // down, 5xx or breaker open
	ErrProviderTimeout     = errors.New("routing provider timeout")
	ErrNoRouteFound        = errors.New("no route found between the given points")
	ErrRateLimitExceeded   = errors.New("rate limit exceeded")
	ErrInvalidCoordinates  = errors.New("invalid coordinates")

	// ErrRouteUnavailable means every profile was tried and rejected.
	ErrRouteUnavailable = errors.New("route unavailable")
)

// Provider computes single-profile directions.
type Provider interface {
	GetDirections(ctx context.Context, req DirectionsRequest) (*DirectionsResponse, error)
	Name() string
	// SupportedProfiles limits which fallback profiles Service will ask for.
	SupportedProfiles() []RouteProfile
}

// RouteProfile is a vehicle routing profile.
type RouteProfile string

const (
	// ProfileHGV routes for heavy goods vehicles (height, weight and hazmat restrictions).
	ProfileHGV RouteProfile = "driving-hgv"
	// ProfileCar is the general driving profile used as fallback.
	ProfileCar RouteProfile = "driving-car"
)

// DefaultProfiles is the order in which profiles are tried.
var DefaultProfiles = []RouteProfile{ProfileHGV, ProfileCar}

// DirectionsRequest is the request for computing a route.
type DirectionsRequest struct {
	Origin      geo.Coordinate
	Destination geo.Coordinate
	Profile     RouteProfile
}

// DirectionsResponse is the provider answer.
type DirectionsResponse struct {
	Routes    []Route
	Provider  string
	FetchedAt time.Time
}

// Route is a single route option.
type Route struct {
	GeometryPolyline string // Encoded polyline (precision 5)
	Geometry         []geo.Coordinate
	DistanceMeters   float64
	Duration         time.Duration
}

// Leg is one resolved point-to-point segment of a trip.
type Leg struct {
	From           geo.Coordinate
	To             geo.Coordinate
	DistanceMeters float64
	Duration       time.Duration
	Geometry       []geo.Coordinate
	Profile        RouteProfile
	Provider       string
}

// Error is a provider failure. Code is the provider's own classification
// (NO_ROUTE, SERVER_503, ...); Err is one of the sentinels above.
type Error struct {
	Provider string
	Code     string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// IsRetryable reports whether the same request may succeed later.
func (e *Error) IsRetryable() bool {
	for _, transient := range []error{ErrProviderUnavailable, ErrProviderTimeout, ErrRateLimitExceeded} {
		if errors.Is(e.Err, transient) {
			return true
		}
	}
	return false
}
