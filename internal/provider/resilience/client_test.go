package resilience_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haulplan/haulplan/internal/provider/resilience"
)

// upstream is a test provider that answers with statuses in order, repeating
// the last one, and remembers every request body it saw.
type upstream struct {
	*httptest.Server
	hits atomic.Int32

	mu     sync.Mutex
	bodies []string
}

func newUpstream(t *testing.T, delay time.Duration, statuses ...int) *upstream {
	t.Helper()
	u := &upstream{}
	u.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(u.hits.Add(1))
		data, _ := io.ReadAll(r.Body)
		u.mu.Lock()
		u.bodies = append(u.bodies, string(data))
		u.mu.Unlock()

		time.Sleep(delay)
		w.WriteHeader(statuses[min(n, len(statuses))-1])
	}))
	t.Cleanup(u.Close)
	return u
}

func quickClient(name string, retries uint64, registry *resilience.Registry) *resilience.Client {
	cb := resilience.DefaultCircuitBreakerConfig(name)
	cb.ReadyToTrip = func(c gobreaker.Counts) bool { return c.Requests >= 100 }
	return resilience.NewClient(resilience.ClientConfig{
		Name:            name,
		Timeout:         2 * time.Second,
		MaxRetries:      retries,
		InitialInterval: 5 * time.Millisecond,
		MaxInterval:     20 * time.Millisecond,
		CircuitBreaker:  &cb,
		Registry:        registry,
	})
}

func do(ctx context.Context, c *resilience.Client, method, url string, body []byte) (int, error) {
	var rd io.Reader = http.NoBody
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return 0, err
	}
	resp, err := c.Do(req)
	if resp != nil {
		resp.Body.Close()
	}
	if err != nil {
		return 0, err
	}
	return resp.StatusCode, nil
}

func TestClient_RetryPolicy(t *testing.T) {
	tests := []struct {
		name     string
		retries  uint64
		statuses []int
		want     int
		attempts int32
	}{
		{"first try succeeds", 1, []int{200}, 200, 1},
		{"recovers after 5xx", 5, []int{502, 502, 200}, 200, 3},
		{"exhausted returns last response", 2, []int{503}, 503, 3},
		{"4xx is final", 3, []int{404}, 404, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			up := newUpstream(t, 0, tt.statuses...)
			status, err := do(context.Background(), quickClient("ors", tt.retries, nil), http.MethodGet, up.URL, nil)

			require.NoError(t, err)
			assert.Equal(t, tt.want, status)
			assert.Equal(t, tt.attempts, up.hits.Load())
		})
	}
}

func TestClient_RetriesReplayPostBody(t *testing.T) {
	up := newUpstream(t, 0, 502, 502, 200)
	payload := []byte(`{"coordinates":[[-96.8,32.7],[-95.3,29.7]]}`)

	status, err := do(context.Background(), quickClient("ors-directions", 5, nil), http.MethodPost, up.URL, payload)
	require.NoError(t, err)
	assert.Equal(t, 200, status)

	require.Len(t, up.bodies, 3)
	for _, b := range up.bodies {
		assert.Equal(t, string(payload), b)
	}
}

func TestClient_RecordsHealth(t *testing.T) {
	registry := resilience.NewRegistry()

	ok := newUpstream(t, 0, 200)
	_, err := do(context.Background(), quickClient("ors-geocode", 1, registry), http.MethodGet, ok.URL, nil)
	require.NoError(t, err)

	down := newUpstream(t, 0, 503)
	_, err = do(context.Background(), quickClient("ors-directions", 1, registry), http.MethodGet, down.URL, nil)
	require.NoError(t, err)

	geocode := registry.GetHealth("ors-geocode")
	require.NotNil(t, geocode)
	assert.NotNil(t, geocode.LastSuccessAt)

	directions := registry.GetHealth("ors-directions")
	require.NotNil(t, directions)
	assert.NotNil(t, directions.LastFailureAt)
}

func TestClient_CircuitBreakerTrips(t *testing.T) {
	up := newUpstream(t, 0, 500)
	registry := resilience.NewRegistry()
	client := resilience.NewClient(resilience.ClientConfig{
		Name:            "ors-directions",
		Timeout:         2 * time.Second,
		InitialInterval: 5 * time.Millisecond,
		MaxInterval:     20 * time.Millisecond,
		CircuitBreaker:  &resilience.CircuitBreakerConfig{Name: "ors-directions", MaxRequests: 1, Timeout: time.Second},
		Registry:        registry,
	})

	// MaxRetries 0 means the default of 3, so each call is four attempts.
	for range 2 {
		_, _ = do(context.Background(), client, http.MethodGet, up.URL, nil)
	}
	assert.Equal(t, gobreaker.StateOpen, client.CircuitBreakerState())
	assert.Equal(t, resilience.StatusDown, registry.Overall())

	before := up.hits.Load()
	_, err := do(context.Background(), client, http.MethodGet, up.URL, nil)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, before, up.hits.Load(), "open breaker short-circuits")
}

func TestClient_Deadlines(t *testing.T) {
	t.Run("client timeout", func(t *testing.T) {
		up := newUpstream(t, 300*time.Millisecond, 200)
		client := resilience.NewClient(resilience.ClientConfig{
			Name:            "slow",
			Timeout:         50 * time.Millisecond,
			MaxRetries:      1,
			InitialInterval: 5 * time.Millisecond,
		})

		_, err := do(context.Background(), client, http.MethodGet, up.URL, nil)
		require.Error(t, err)
		assert.True(t, resilience.IsTimeout(err))
	})

	t.Run("caller deadline", func(t *testing.T) {
		up := newUpstream(t, time.Second, 200)
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err := do(ctx, resilience.NewClient(resilience.DefaultClientConfig("cancel")), http.MethodGet, up.URL, nil)
		assert.Error(t, err)
	})
}

func TestDefaultClientConfig(t *testing.T) {
	cfg := resilience.DefaultClientConfig("ors")

	assert.Equal(t, "ors", cfg.Name)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
	assert.Equal(t, uint64(3), cfg.MaxRetries)
	require.NotNil(t, cfg.CircuitBreaker)
	assert.Equal(t, uint32(1), cfg.CircuitBreaker.MaxRequests)
	assert.Equal(t, time.Minute, cfg.CircuitBreaker.Timeout)
}

func TestDefaultReadyToTrip(t *testing.T) {
	tests := []struct {
		requests, failures uint32
		trip               bool
	}{
		{4, 4, false},
		{10, 4, false},
		{10, 5, true},
		{5, 5, true},
	}
	for _, tt := range tests {
		got := resilience.DefaultReadyToTrip(gobreaker.Counts{Requests: tt.requests, TotalFailures: tt.failures})
		assert.Equal(t, tt.trip, got, "%d/%d", tt.failures, tt.requests)
	}
}

func TestServerError(t *testing.T) {
	assert.Contains(t, (&resilience.ServerError{StatusCode: http.StatusBadGateway}).Error(), "Bad Gateway")
}
