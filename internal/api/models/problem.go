package models

import (
	"encoding/json"
	"net/http"
)

// Problem is an RFC 7807 error body, served as application/problem+json.
// Trip planning failures add Kind, Location and Retryable; validation
// failures list offending fields in Errors.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
	TraceID  string `json:"traceId"`

	Kind      string `json:"kind,omitempty"`     // e.g. LOCATION_NOT_FOUND
	Location  string `json:"location,omitempty"` // input or leg at fault
	Retryable bool   `json:"retryable,omitempty"`

	Errors []FieldError `json:"errors,omitempty"`
}

// FieldError represents a validation error on a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Problem type URIs.
const (
	ProblemTypeValidation      = "https://api.haulplan.dev/problems/validation-error"
	ProblemTypeTripPlanning    = "https://api.haulplan.dev/problems/trip-planning"
	ProblemTypeUnauthorized    = "https://api.haulplan.dev/problems/unauthorized"
	ProblemTypeForbidden       = "https://api.haulplan.dev/problems/forbidden"
	ProblemTypeNotFound        = "https://api.haulplan.dev/problems/not-found"
	ProblemTypeTooManyRequests = "https://api.haulplan.dev/problems/too-many-requests"
	ProblemTypeInternal        = "https://api.haulplan.dev/problems/internal-error"
	ProblemTypeUnavailable     = "https://api.haulplan.dev/problems/service-unavailable"
	ProblemTypeTLSRequired     = "https://api.haulplan.dev/problems/tls-required"
	ProblemTypeUnsupportedBody = "https://api.haulplan.dev/problems/unsupported-media-type"
)

// NewProblem creates a Problem without detail.
func NewProblem(problemType, title string, status int, traceID string) *Problem {
	return &Problem{
		Type:    problemType,
		Title:   title,
		Status:  status,
		TraceID: traceID,
	}
}

// Write sends the problem with its own status and echoes TraceID as
// X-Request-Id.
func (p *Problem) Write(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.Header().Set("X-Request-Id", p.TraceID)
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

// NewBadRequest is a validation failure listing the offending fields.
func NewBadRequest(traceID, detail string, fields []FieldError) *Problem {
	p := detailed(ProblemTypeValidation, "Validation error", http.StatusBadRequest, traceID, detail)
	p.Errors = fields
	return p
}

// NewTripProblem describes a failed trip calculation. The status comes from
// the failure kind (see response.TripStatus).
func NewTripProblem(traceID string, status int, kind, location, detail string, retryable bool) *Problem {
	p := detailed(ProblemTypeTripPlanning, "Trip could not be planned", status, traceID, detail)
	p.Kind = kind
	p.Location = location
	p.Retryable = retryable
	return p
}

func detailed(problemType, title string, status int, traceID, detail string) *Problem {
	p := NewProblem(problemType, title, status, traceID)
	p.Detail = detail
	return p
}

func NewUnauthorized(traceID, detail string) *Problem {
	return detailed(ProblemTypeUnauthorized, "Unauthorized", http.StatusUnauthorized, traceID, detail)
}

func NewForbidden(traceID, detail string) *Problem {
	return detailed(ProblemTypeForbidden, "Forbidden", http.StatusForbidden, traceID, detail)
}

func NewNotFound(traceID, detail string) *Problem {
	return detailed(ProblemTypeNotFound, "Not found", http.StatusNotFound, traceID, detail)
}

// NewUnsupportedMediaType rejects request bodies that are not JSON.
func NewUnsupportedMediaType(traceID, detail string) *Problem {
	return detailed(ProblemTypeUnsupportedBody, "Unsupported media type", http.StatusUnsupportedMediaType, traceID, detail)
}

func NewTooManyRequests(traceID, detail string) *Problem {
	return detailed(ProblemTypeTooManyRequests, "Too many requests", http.StatusTooManyRequests, traceID, detail)
}

// NewInternalError never carries the underlying error text; callers pass a
// generic detail.
func NewInternalError(traceID, detail string) *Problem {
	return detailed(ProblemTypeInternal, "Internal server error", http.StatusInternalServerError, traceID, detail)
}

func NewServiceUnavailable(traceID, detail string) *Problem {
	return detailed(ProblemTypeUnavailable, "Service unavailable", http.StatusServiceUnavailable, traceID, detail)
}
