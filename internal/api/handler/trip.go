package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/haulplan/haulplan/internal/api/middleware"
	"github.com/haulplan/haulplan/internal/api/models"
	"github.com/haulplan/haulplan/internal/api/response"
	"github.com/haulplan/haulplan/internal/history"
	"github.com/haulplan/haulplan/internal/hos"
	"github.com/haulplan/haulplan/internal/trip"
)

// TripPlanner plans trips.
type TripPlanner interface {
	Calculate(ctx context.Context, req trip.Request) (*trip.Result, error)
	Rules() hos.RuleSet
}

// TripRecorder records the inputs of successfully planned trips.
type TripRecorder interface {
	Record(ctx context.Context, start, pickup, dropoff string, cycleUsed float64) (*history.Entry, error)
}

// TripHandlerConfig holds configuration for TripHandler.
type TripHandlerConfig struct {
	Planner TripPlanner

	// Recorder is optional; without one trips are not recorded.
	Recorder TripRecorder

	Logger zerolog.Logger
}

// TripHandler handles trip calculation.
type TripHandler struct {
	planner  TripPlanner
	recorder TripRecorder
	logger   zerolog.Logger
}

// NewTripHandler creates a new TripHandler.
func NewTripHandler(cfg TripHandlerConfig) *TripHandler {
	return &TripHandler{
		planner:  cfg.Planner,
		recorder: cfg.Recorder,
		logger:   cfg.Logger.With().Str("handler", "trip").Logger(),
	}
}

// Calculate handles POST /v1/trips:calculate.
func (h *TripHandler) Calculate(w http.ResponseWriter, r *http.Request) {
	var input models.TripCalculateRequest
	if err := decodeJSON(r, &input); err != nil {
		response.BadRequest(w, r, err.Error(), nil)
		return
	}

	maxCycle := h.planner.Rules().WeeklyCycleLimit.Hours()
	if errs := input.Validate(maxCycle); len(errs) > 0 {
		response.BadRequest(w, r, "request validation failed", errs)
		return
	}

	req := trip.Request{
		Start:     strings.TrimSpace(input.StartLocation),
		Pickup:    strings.TrimSpace(input.PickupLocation),
		Dropoff:   strings.TrimSpace(input.DropoffLocation),
		CycleUsed: *input.CycleHoursUsed,
	}
	if input.StartTime != nil {
		t := input.StartTime.Time()
		req.StartTime = &t
	}

	res, err := h.planner.Calculate(r.Context(), req)
	if err != nil {
		response.TripError(w, r, err)
		return
	}

	plan := NewTripPlan(res, input.LogInfo)

	if h.recorder != nil {
		entry, err := h.recorder.Record(r.Context(), req.Start, req.Pickup, req.Dropoff, req.CycleUsed)
		if err != nil {
			h.logger.Error().Err(err).
				Str("request_id", middleware.GetRequestID(r.Context())).
				Msg("failed to record trip history")
		} else {
			plan.HistoryID = entry.ID
		}
	}

	response.JSON(w, r, http.StatusOK, plan)
}

// decodeJSON decodes a single JSON object from the request body.
func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return errors.New("request body is required")
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errors.New("request body too large")
		}
		return errors.New("invalid JSON body")
	}
	return nil
}

// hours converts a duration to hours rounded to two decimals.
func hours(d time.Duration) float64 {
	return round2(d.Hours())
}
