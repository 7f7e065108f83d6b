// Package openrouteservice implements routing.Provider on top of the
// OpenRouteService directions API.
package openrouteservice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/haulplan/haulplan/internal/provider/resilience"
	"github.com/haulplan/haulplan/internal/routing"
)

const (
	ProviderName   = "ors-directions"
	DefaultBaseURL = "https://api.openrouteservice.org"

	// DefaultTimeout is higher than the geocoder's: long truck routes take
	// noticeably longer to compute.
	DefaultTimeout = 20 * time.Second
)

// HTTPDoer is satisfied by *http.Client and *resilience.Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig configures a directions Client. Only APIKey is required.
type ClientConfig struct {
	APIKey  string
	BaseURL string

	// HTTPClient replaces the default resilient client built from Timeout
	// and Registry.
	HTTPClient HTTPDoer
	Timeout    time.Duration
	Registry   *resilience.Registry

	Logger zerolog.Logger
}

// Client calls the ORS v2 directions endpoint.
type Client struct {
	apiKey  string
	baseURL string
	doer    HTTPDoer
	logger  zerolog.Logger
}

var _ routing.Provider = (*Client)(nil)

func NewClient(cfg ClientConfig) *Client {
	c := &Client{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		doer:    cfg.HTTPClient,
		logger:  cfg.Logger.With().Str("component", ProviderName).Logger(),
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.doer == nil {
		rc := resilience.DefaultClientConfig(ProviderName)
		rc.Timeout = cfg.Timeout
		if rc.Timeout == 0 {
			rc.Timeout = DefaultTimeout
		}
		rc.Registry = cfg.Registry
		rc.Logger = cfg.Logger
		c.doer = resilience.NewClient(rc)
	}
	return c
}

func (c *Client) Name() string { return ProviderName }

// SupportedProfiles lists the profiles in fallback order.
func (c *Client) SupportedProfiles() []routing.RouteProfile {
	return []routing.RouteProfile{routing.ProfileHGV, routing.ProfileCar}
}

// GetDirections asks ORS for a route from req.Origin to req.Destination.
// Failures come back as *routing.Error wrapping one of the routing sentinels.
func (c *Client) GetDirections(ctx context.Context, req routing.DirectionsRequest) (*routing.DirectionsResponse, error) {
	switch {
	case !req.Origin.Valid():
		return nil, fail("INVALID_ORIGIN", "invalid origin coordinates", routing.ErrInvalidCoordinates)
	case !req.Destination.Valid():
		return nil, fail("INVALID_DESTINATION", "invalid destination coordinates", routing.ErrInvalidCoordinates)
	}

	httpReq, err := c.newDirectionsRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	log := c.logger.With().
		Str("profile", string(req.Profile)).
		Str("origin", req.Origin.String()).
		Str("destination", req.Destination.String()).
		Logger()
	log.Debug().Msg("requesting directions")

	resp, err := c.doer.Do(httpReq)
	if err != nil {
		if resilience.IsTimeout(err) {
			return nil, fail("TIMEOUT", "routing provider timed out", routing.ErrProviderTimeout)
		}
		return nil, fail("REQUEST_FAILED", "failed to reach routing provider",
			errors.Join(routing.ErrProviderUnavailable, err))
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading directions body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, classify(resp.StatusCode, payload)
	}

	var decoded orsResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, fail("DECODE_FAILED", "malformed directions response",
			errors.Join(routing.ErrProviderUnavailable, err))
	}

	out := decoded.toDomain(time.Now())
	log.Debug().Int("routes", len(out.Routes)).Msg("directions received")
	return out, nil
}

func (c *Client) newDirectionsRequest(ctx context.Context, req routing.DirectionsRequest) (*http.Request, error) {
	body, err := json.Marshal(orsRequest{
		// GeoJSON order: lon, lat.
		Coordinates: [][]float64{
			{req.Origin.Lng, req.Origin.Lat},
			{req.Destination.Lng, req.Destination.Lat},
		},
		Geometry: true,
		Units:    "m",
	})
	if err != nil {
		return nil, fmt.Errorf("encoding directions request: %w", err)
	}

	endpoint := c.baseURL + "/v2/directions/" + string(req.Profile)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building directions request: %w", err)
	}
	httpReq.Header.Set("Authorization", c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json, application/geo+json")
	return httpReq, nil
}

func fail(code, message string, err error) *routing.Error {
	return &routing.Error{Provider: ProviderName, Code: code, Message: message, Err: err}
}

// classify turns a non-200 ORS reply into a routing error. The status
// decides the class; an engine code in the body only separates unroutable
// input from bad parameters on a 400.
func classify(status int, body []byte) error {
	var reply orsErrorResponse
	_ = json.Unmarshal(body, &reply)
	engineCode, msg := reply.detail()

	switch {
	case status == http.StatusTooManyRequests:
		return fail("RATE_LIMIT", "routing quota exhausted", routing.ErrRateLimitExceeded)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fail("FORBIDDEN", "routing provider rejected the API key", routing.ErrProviderUnavailable)
	case status == http.StatusNotFound:
		return fail("NO_ROUTE", "no route found between the given points", routing.ErrNoRouteFound)
	case status == http.StatusBadRequest && unroutable(engineCode):
		return fail("NO_ROUTE", orDefault(msg, "no route found between the given points"), routing.ErrNoRouteFound)
	case status == http.StatusBadRequest:
		return fail("BAD_REQUEST", orDefault(msg, "invalid routing request"), routing.ErrInvalidCoordinates)
	case status >= 500:
		return fail(fmt.Sprintf("SERVER_%d", status), "routing provider is temporarily unavailable", routing.ErrProviderUnavailable)
	default:
		return fail(fmt.Sprintf("HTTP_%d", status),
			orDefault(msg, fmt.Sprintf("routing provider returned status %d", status)), routing.ErrProviderUnavailable)
	}
}

func orDefault(msg, fallback string) string {
	if msg == "" {
		return fallback
	}
	return msg
}
