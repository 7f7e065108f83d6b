package trip

import (
	"context"
	"errors"
	"fmt"

	"github.com/haulplan/haulplan/internal/geo"
	"github.com/haulplan/haulplan/internal/hos"
	"github.com/haulplan/haulplan/internal/routing"
)

// Kind classifies a planning failure.
type Kind string

const (
	KindInvalidInput        Kind = "INVALID_INPUT"
	KindLocationNotFound    Kind = "LOCATION_NOT_FOUND"
	KindLegTooLong          Kind = "LEG_TOO_LONG"
	KindRouteUnavailable    Kind = "ROUTE_UNAVAILABLE"
	KindProviderTimeout     Kind = "PROVIDER_TIMEOUT"
	KindProviderError       Kind = "PROVIDER_ERROR"
	KindInternalConsistency Kind = "INTERNAL_CONSISTENCY"
)

// Sentinel errors, one per Kind, for errors.Is checks.
var (
	ErrInvalidInput        = errors.New("invalid trip input")
	ErrLocationNotFound    = errors.New("location not found")
	ErrLegTooLong          = errors.New("leg too long")
	ErrRouteUnavailable    = errors.New("route unavailable")
	ErrProviderTimeout     = errors.New("provider timeout")
	ErrProviderError       = errors.New("provider error")
	ErrInternalConsistency = errors.New("internal consistency error")
)

var kindSentinels = map[Kind]error{
	KindInvalidInput:        ErrInvalidInput,
	KindLocationNotFound:    ErrLocationNotFound,
	KindLegTooLong:          ErrLegTooLong,
	KindRouteUnavailable:    ErrRouteUnavailable,
	KindProviderTimeout:     ErrProviderTimeout,
	KindProviderError:       ErrProviderError,
	KindInternalConsistency: ErrInternalConsistency,
}

// Error is the single failure returned by Calculate. Location names the
// offending input or leg when there is one.
type Error struct {
	Kind     Kind
	Message  string
	Location string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes both the kind sentinel and the collaborator error.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s, ok := kindSentinels[e.Kind]; ok {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Retryable reports whether the same request may succeed later.
func (e *Error) Retryable() bool {
	return e.Kind == KindProviderTimeout || e.Kind == KindProviderError
}

// KindOf returns the Kind of err, or "" when err is not a *Error.
func KindOf(err error) Kind {
	var terr *Error
	if errors.As(err, &terr) {
		return terr.Kind
	}
	return ""
}

func invalidInput(msg string) *Error {
	return &Error{Kind: KindInvalidInput, Message: msg}
}

func geoError(label, text string, err error) *Error {
	switch {
	case errors.Is(err, geo.ErrLocationNotFound), errors.Is(err, geo.ErrInvalidQuery):
		return &Error{
			Kind:     KindLocationNotFound,
			Message:  fmt.Sprintf("%s location %q could not be found", label, text),
			Location: text,
			Err:      err,
		}
	case errors.Is(err, geo.ErrProviderTimeout), errors.Is(err, context.DeadlineExceeded):
		return &Error{
			Kind:     KindProviderTimeout,
			Message:  "geocoding service timed out",
			Location: text,
			Err:      err,
		}
	default:
		return &Error{
			Kind:     KindProviderError,
			Message:  "geocoding service is unavailable",
			Location: text,
			Err:      err,
		}
	}
}

func routeError(leg string, err error) *Error {
	switch {
	case errors.Is(err, routing.ErrRouteUnavailable), errors.Is(err, routing.ErrNoRouteFound):
		return &Error{
			Kind:     KindRouteUnavailable,
			Message:  fmt.Sprintf("no drivable route for the %s leg", leg),
			Location: leg,
			Err:      err,
		}
	case errors.Is(err, routing.ErrProviderTimeout), errors.Is(err, context.DeadlineExceeded):
		return &Error{
			Kind:     KindProviderTimeout,
			Message:  "routing service timed out",
			Location: leg,
			Err:      err,
		}
	default:
		return &Error{
			Kind:     KindProviderError,
			Message:  "routing service is unavailable",
			Location: leg,
			Err:      err,
		}
	}
}

func engineError(err error) *Error {
	msg := "schedule simulation failed"
	if errors.Is(err, hos.ErrInternalConsistency) {
		msg = "schedule simulation exceeded its safety bound"
	}
	return &Error{Kind: KindInternalConsistency, Message: msg, Err: err}
}
