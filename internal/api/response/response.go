// Package response writes JSON bodies and Problem+JSON errors for handlers.
package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/haulplan/haulplan/internal/api/middleware"
	"github.com/haulplan/haulplan/internal/api/models"
	"github.com/haulplan/haulplan/internal/trip"
)

// RetryAfterSeconds is advertised on 503 trip failures.
const RetryAfterSeconds = "30"

// JSON encodes data with the given status. The request ID, when the
// RequestID middleware set one, is echoed as X-Request-Id.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	if id := middleware.GetRequestID(r.Context()); id != "" {
		w.Header().Set("X-Request-Id", id)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(data)
}

// Error stamps the request path as the problem instance and writes it.
func Error(w http.ResponseWriter, r *http.Request, problem *models.Problem) {
	problem.Instance = r.URL.Path
	problem.Write(w)
}

func traceID(r *http.Request) string {
	return middleware.GetRequestID(r.Context())
}

func BadRequest(w http.ResponseWriter, r *http.Request, detail string, fields []models.FieldError) {
	Error(w, r, models.NewBadRequest(traceID(r), detail, fields))
}

func NotFound(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewNotFound(traceID(r), detail))
}

func InternalError(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewInternalError(traceID(r), detail))
}

func ServiceUnavailable(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewServiceUnavailable(traceID(r), detail))
}

// TripStatus maps a planning failure kind to its HTTP status: bad input and
// unroutable trips are 400, provider trouble is 503, anything else is 500.
func TripStatus(kind trip.Kind) int {
	switch kind {
	case trip.KindInvalidInput, trip.KindLocationNotFound, trip.KindLegTooLong, trip.KindRouteUnavailable:
		return http.StatusBadRequest
	case trip.KindProviderTimeout, trip.KindProviderError:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// TripError writes the problem for a failed trip calculation. Anything that
// is not a *trip.Error becomes a 500 whose detail never includes err's text.
func TripError(w http.ResponseWriter, r *http.Request, err error) {
	var terr *trip.Error
	if !errors.As(err, &terr) {
		InternalError(w, r, "an unexpected error occurred")
		return
	}

	detail := terr.Message
	if terr.Kind == trip.KindInternalConsistency {
		detail = "the trip could not be scheduled"
	}

	status := TripStatus(terr.Kind)
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", RetryAfterSeconds)
	}
	Error(w, r, models.NewTripProblem(traceID(r), status, string(terr.Kind), terr.Location, detail, terr.Retryable()))
}
