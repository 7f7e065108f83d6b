// Package openrouteservice provides a client for the OpenRouteService
// geocoding API (Pelias search and reverse).
package openrouteservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/haulplan/haulplan/internal/geo"
	"github.com/haulplan/haulplan/internal/provider/resilience"
)

const (
	// ProviderName identifies this geocoding provider.
	ProviderName = "ors-geocode"

	// DefaultBaseURL is the OpenRouteService API base URL.
	DefaultBaseURL = "https://api.openrouteservice.org"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 10 * time.Second
)

// HTTPDoer executes HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the geocoding client.
type ClientConfig struct {
	// APIKey is the ORS API key (required).
	APIKey string

	// BaseURL overrides the API base URL.
	BaseURL string

	// HTTPClient overrides the resilient default client.
	HTTPClient HTTPDoer

	// Timeout is the per-attempt timeout (default: 10s).
	Timeout time.Duration

	// Country restricts search results (ISO 3166 alpha-2), optional.
	Country string

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry

	Logger zerolog.Logger
}

// Client is an OpenRouteService geocoding client.
type Client struct {
	apiKey     string
	baseURL    string
	country    string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

var _ geo.Provider = (*Client)(nil)

// NewClient creates a geocoding client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(ProviderName)
		clientCfg.Timeout = timeout
		clientCfg.Registry = cfg.Registry
		clientCfg.Logger = cfg.Logger
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		country:    cfg.Country,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// Search returns the best match for text.
func (c *Client) Search(ctx context.Context, text string) (*geo.Place, error) {
	q := url.Values{}
	q.Set("text", text)
	q.Set("size", "1")
	if c.country != "" {
		q.Set("boundary.country", c.country)
	}

	resp, err := c.get(ctx, "/geocode/search", q)
	if err != nil {
		return nil, c.withQuery(err, text)
	}

	place, ok := resp.first(false)
	if !ok {
		return nil, &geo.Error{
			Provider: ProviderName,
			Code:     "NOT_FOUND",
			Message:  fmt.Sprintf("location %q could not be found", text),
			Query:    text,
			Err:      geo.ErrLocationNotFound,
		}
	}
	return place, nil
}

// Reverse returns the addressable point nearest to pt.
func (c *Client) Reverse(ctx context.Context, pt geo.Coordinate) (*geo.Place, error) {
	q := url.Values{}
	q.Set("point.lat", strconv.FormatFloat(pt.Lat, 'f', -1, 64))
	q.Set("point.lon", strconv.FormatFloat(pt.Lng, 'f', -1, 64))
	q.Set("size", "1")

	resp, err := c.get(ctx, "/geocode/reverse", q)
	if err != nil {
		return nil, err
	}

	place, ok := resp.first(true)
	if !ok {
		return nil, &geo.Error{
			Provider: ProviderName,
			Code:     "NOT_FOUND",
			Message:  "no addressable point near coordinates",
			Query:    pt.String(),
			Err:      geo.ErrLocationNotFound,
		}
	}
	return place, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values) (*featureCollection, error) {
	endpoint := c.baseURL + path + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Accept", "application/json, application/geo+json")

	c.logger.Debug().Str("path", path).Msg("requesting geocode from ORS")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if resilience.IsTimeout(err) {
			return nil, &geo.Error{
				Provider: ProviderName,
				Code:     "TIMEOUT",
				Message:  "geocoding provider timed out",
				Err:      geo.ErrProviderTimeout,
			}
		}
		return nil, &geo.Error{
			Provider: ProviderName,
			Code:     "REQUEST_FAILED",
			Message:  "failed to reach geocoding provider",
			Err:      errors.Join(geo.ErrProviderUnavailable, withoutURL(err)),
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp.StatusCode, body)
	}

	var fc featureCollection
	if err := json.Unmarshal(body, &fc); err != nil {
		return nil, &geo.Error{
			Provider: ProviderName,
			Code:     "DECODE_FAILED",
			Message:  "malformed geocoding response",
			Err:      errors.Join(geo.ErrProviderUnavailable, err),
		}
	}
	return &fc, nil
}

// withoutURL drops the request URL from transport errors so query
// parameters never reach logs.
func withoutURL(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return fmt.Errorf("%s %s: %w", uerr.Op, ProviderName, uerr.Err)
	}
	return err
}

func (c *Client) withQuery(err error, text string) error {
	var gerr *geo.Error
	if errors.As(err, &gerr) {
		gerr.Query = text
	}
	return err
}

func statusError(status int, body []byte) error {
	var e errorResponse
	_ = json.Unmarshal(body, &e)
	msg := e.message()

	switch {
	case status == http.StatusTooManyRequests:
		return &geo.Error{
			Provider: ProviderName,
			Code:     "RATE_LIMIT",
			Message:  "API rate limit exceeded, please try again later",
			Err:      geo.ErrRateLimitExceeded,
		}
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &geo.Error{
			Provider: ProviderName,
			Code:     "FORBIDDEN",
			Message:  "API access denied - check API key configuration",
			Err:      geo.ErrProviderUnavailable,
		}
	case status == http.StatusBadRequest:
		if msg == "" {
			msg = "invalid geocoding request"
		}
		return &geo.Error{
			Provider: ProviderName,
			Code:     "BAD_REQUEST",
			Message:  msg,
			Err:      geo.ErrInvalidQuery,
		}
	default:
		if msg == "" {
			msg = fmt.Sprintf("geocoding provider returned status %d", status)
		}
		return &geo.Error{
			Provider: ProviderName,
			Code:     fmt.Sprintf("HTTP_%d", status),
			Message:  msg,
			Err:      geo.ErrProviderUnavailable,
		}
	}
}
