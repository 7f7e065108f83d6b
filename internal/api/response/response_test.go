package response_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haulplan/haulplan/internal/api/middleware"
	"github.com/haulplan/haulplan/internal/api/models"
	"github.com/haulplan/haulplan/internal/api/response"
	"github.com/haulplan/haulplan/internal/trip"
)

// serve runs fn behind the RequestID middleware, the way the router does.
func serve(t *testing.T, method, path, requestID string, fn http.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, http.NoBody)
	if requestID != "" {
		req.Header.Set("X-Request-Id", requestID)
	}
	rec := httptest.NewRecorder()
	middleware.RequestID(fn).ServeHTTP(rec, req)
	return rec
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) models.Problem {
	t.Helper()
	var p models.Problem
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&p))
	return p
}

func TestJSON(t *testing.T) {
	t.Run("echoes request id", func(t *testing.T) {
		rec := serve(t, http.MethodGet, "/v1/ops/health", "dispatch-42", func(w http.ResponseWriter, r *http.Request) {
			response.JSON(w, r, http.StatusCreated, map[string]string{"status": "ok"})
		})

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "dispatch-42", rec.Header().Get("X-Request-Id"))
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	})

	t.Run("nil data leaves body empty", func(t *testing.T) {
		rec := serve(t, http.MethodGet, "/", "", func(w http.ResponseWriter, r *http.Request) {
			response.JSON(w, r, http.StatusOK, nil)
		})
		assert.Zero(t, rec.Body.Len())
	})

	t.Run("no request id outside middleware", func(t *testing.T) {
		rec := httptest.NewRecorder()
		response.JSON(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody), http.StatusOK, struct{}{})
		assert.Empty(t, rec.Header().Get("X-Request-Id"))
	})
}

func TestProblemHelpers(t *testing.T) {
	tests := []struct {
		name   string
		write  func(w http.ResponseWriter, r *http.Request)
		status int
	}{
		{"bad request", func(w http.ResponseWriter, r *http.Request) {
			response.BadRequest(w, r, "validation failed", []models.FieldError{{Field: "startLocation", Code: "REQUIRED"}})
		}, http.StatusBadRequest},
		{"not found", func(w http.ResponseWriter, r *http.Request) {
			response.NotFound(w, r, "history entry not found")
		}, http.StatusNotFound},
		{"internal", func(w http.ResponseWriter, r *http.Request) {
			response.InternalError(w, r, "boom")
		}, http.StatusInternalServerError},
		{"unavailable", func(w http.ResponseWriter, r *http.Request) {
			response.ServiceUnavailable(w, r, "history store offline")
		}, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, http.MethodGet, "/v1/history/trp_x", "req-7", tt.write)

			require.Equal(t, tt.status, rec.Code)
			p := decodeProblem(t, rec)
			assert.Equal(t, tt.status, p.Status)
			assert.Equal(t, "req-7", p.TraceID)
			assert.Equal(t, "/v1/history/trp_x", p.Instance)
		})
	}
}

func TestTripStatus(t *testing.T) {
	want := map[trip.Kind]int{
		trip.KindInvalidInput:        http.StatusBadRequest,
		trip.KindLocationNotFound:    http.StatusBadRequest,
		trip.KindLegTooLong:          http.StatusBadRequest,
		trip.KindRouteUnavailable:    http.StatusBadRequest,
		trip.KindProviderTimeout:     http.StatusServiceUnavailable,
		trip.KindProviderError:       http.StatusServiceUnavailable,
		trip.KindInternalConsistency: http.StatusInternalServerError,
	}
	for kind, status := range want {
		assert.Equal(t, status, response.TripStatus(kind), kind)
	}
}

func TestTripError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		status     int
		kind       string
		detail     string
		retryable  bool
		retryAfter string
	}{
		{
			name: "wrapped location failure",
			err: fmt.Errorf("plan: %w", &trip.Error{
				Kind:     trip.KindLocationNotFound,
				Message:  `pickup location "Atlantis" could not be found`,
				Location: "Atlantis",
			}),
			status: http.StatusBadRequest,
			kind:   "LOCATION_NOT_FOUND",
			detail: `pickup location "Atlantis" could not be found`,
		},
		{
			name:       "provider timeout",
			err:        &trip.Error{Kind: trip.KindProviderTimeout, Message: "routing service timed out"},
			status:     http.StatusServiceUnavailable,
			kind:       "PROVIDER_TIMEOUT",
			detail:     "routing service timed out",
			retryable:  true,
			retryAfter: response.RetryAfterSeconds,
		},
		{
			name: "internal detail hidden",
			err: &trip.Error{
				Kind:    trip.KindInternalConsistency,
				Message: "schedule simulation exceeded its safety bound",
				Err:     errors.New("more than 10000 iterations"),
			},
			status: http.StatusInternalServerError,
			kind:   "INTERNAL_CONSISTENCY",
			detail: "the trip could not be scheduled",
		},
		{
			name:   "untyped error",
			err:    errors.New("secret connection string"),
			status: http.StatusInternalServerError,
			detail: "an unexpected error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, http.MethodPost, "/v1/trips:calculate", "", func(w http.ResponseWriter, r *http.Request) {
				response.TripError(w, r, tt.err)
			})

			require.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.retryAfter, rec.Header().Get("Retry-After"))

			p := decodeProblem(t, rec)
			assert.Equal(t, tt.kind, p.Kind)
			assert.Equal(t, tt.detail, p.Detail)
			assert.Equal(t, tt.retryable, p.Retryable)
			assert.Equal(t, "/v1/trips:calculate", p.Instance)
			assert.NotContains(t, rec.Body.String(), "secret")
			if tt.kind != "" {
				assert.Equal(t, models.ProblemTypeTripPlanning, p.Type)
			}
		})
	}
}
