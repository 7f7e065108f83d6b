package handler

import (
	"context"
	"errors"
	"maps"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/haulplan/haulplan/internal/api/models"
	"github.com/haulplan/haulplan/internal/api/response"
	"github.com/haulplan/haulplan/internal/history"
	"github.com/haulplan/haulplan/internal/trip"
)

// HistoryStore lists and removes recorded trips.
type HistoryStore interface {
	List(ctx context.Context, limit int) ([]*history.Entry, error)
	Get(ctx context.Context, id string) (*history.Entry, error)
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) (int64, error)
}

// HistoryHandlerConfig holds configuration for HistoryHandler.
type HistoryHandlerConfig struct {
	Store   HistoryStore
	Planner TripPlanner

	// DetailLogInfo is the log sheet header returned with recalculated
	// trips. History keeps only the trip inputs, so the original header is
	// not available.
	DetailLogInfo map[string]any

	Logger zerolog.Logger
}

// HistoryHandler handles trip history endpoints.
type HistoryHandler struct {
	store   HistoryStore
	planner TripPlanner
	logInfo map[string]any
	logger  zerolog.Logger
}

// NewHistoryHandler creates a new HistoryHandler.
func NewHistoryHandler(cfg HistoryHandlerConfig) *HistoryHandler {
	return &HistoryHandler{
		store:   cfg.Store,
		planner: cfg.Planner,
		logInfo: cfg.DetailLogInfo,
		logger:  cfg.Logger.With().Str("handler", "history").Logger(),
	}
}

// List handles GET /v1/history.
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := history.DefaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > history.DefaultListLimit {
			response.BadRequest(w, r, "invalid query parameter", []models.FieldError{{
				Field:   "limit",
				Message: "must be an integer between 1 and " + strconv.Itoa(history.DefaultListLimit),
				Code:    "OUT_OF_RANGE",
			}})
			return
		}
		limit = n
	}

	entries, err := h.store.List(r.Context(), limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list trip history")
		response.InternalError(w, r, "unable to retrieve trip history")
		return
	}

	items := make([]models.HistoryEntry, len(entries))
	for i, e := range entries {
		items[i] = toHistoryEntry(e)
	}
	response.JSON(w, r, http.StatusOK, models.HistoryList{Items: items, Limit: limit})
}

// DeleteAll handles DELETE /v1/history.
func (h *HistoryHandler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	n, err := h.store.DeleteAll(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to clear trip history")
		response.InternalError(w, r, "unable to delete trip history")
		return
	}
	response.JSON(w, r, http.StatusOK, models.HistoryCleared{
		Message: "All trip history entries deleted successfully.",
		Deleted: n,
	})
}

// Get handles GET /v1/history/{historyId}. The trip is recalculated from the
// recorded inputs, so routes and rules in effect today apply.
func (h *HistoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.lookup(w, r)
	if !ok {
		return
	}

	res, err := h.planner.Calculate(r.Context(), trip.Request{
		Start:     entry.Start,
		Pickup:    entry.Pickup,
		Dropoff:   entry.Dropoff,
		CycleUsed: entry.CycleUsed,
	})
	if err != nil {
		response.TripError(w, r, err)
		return
	}

	plan := NewTripPlan(res, maps.Clone(h.logInfo))
	detail := toHistoryEntry(entry)
	plan.HistoryID = entry.ID
	plan.HistoryEntry = &detail

	response.JSON(w, r, http.StatusOK, plan)
}

// Delete handles DELETE /v1/history/{historyId}.
func (h *HistoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "historyId")

	if err := h.store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, history.ErrNotFound) {
			response.NotFound(w, r, "trip history entry not found")
			return
		}
		h.logger.Error().Err(err).Str("history_id", id).Msg("failed to delete trip history entry")
		response.InternalError(w, r, "unable to delete trip history entry")
		return
	}
	response.JSON(w, r, http.StatusOK, models.Message{Message: "Trip history entry deleted successfully."})
}

func (h *HistoryHandler) lookup(w http.ResponseWriter, r *http.Request) (*history.Entry, bool) {
	id := chi.URLParam(r, "historyId")

	entry, err := h.store.Get(r.Context(), id)
	switch {
	case errors.Is(err, history.ErrNotFound):
		response.NotFound(w, r, "trip history entry not found")
		return nil, false
	case err != nil:
		h.logger.Error().Err(err).Str("history_id", id).Msg("failed to load trip history entry")
		response.InternalError(w, r, "unable to retrieve trip history entry")
		return nil, false
	}
	return entry, true
}
