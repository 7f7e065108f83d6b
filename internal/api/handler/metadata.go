package handler

import (
	"net/http"

	"github.com/haulplan/haulplan/internal/api/models"
	"github.com/haulplan/haulplan/internal/api/response"
	"github.com/haulplan/haulplan/internal/hos"
	"github.com/haulplan/haulplan/internal/trip"
)

// RuleSource exposes the planning limits currently in effect.
type RuleSource interface {
	Rules() hos.RuleSet
	MaxLegMeters() float64
}

// MetadataHandler handles metadata endpoints.
type MetadataHandler struct {
	rules RuleSource
}

// NewMetadataHandler creates a new MetadataHandler.
func NewMetadataHandler(rules RuleSource) *MetadataHandler {
	return &MetadataHandler{rules: rules}
}

// GetRules handles GET /v1/metadata/rules - the effective rule set.
func (h *MetadataHandler) GetRules(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=300")
	response.JSON(w, r, http.StatusOK, toRuleSet(h.rules.Rules(), h.rules.MaxLegMeters()))
}

// GetEnums handles GET /v1/metadata/enums - get enum values used by the API.
func (h *MetadataHandler) GetEnums(w http.ResponseWriter, r *http.Request) {
	statuses := make([]string, len(hos.Statuses))
	for i, s := range hos.Statuses {
		statuses[i] = string(s)
	}

	enums := models.Enums{
		DutyStatuses: statuses,
		ErrorKinds: []string{
			string(trip.KindInvalidInput),
			string(trip.KindLocationNotFound),
			string(trip.KindLegTooLong),
			string(trip.KindRouteUnavailable),
			string(trip.KindProviderTimeout),
			string(trip.KindProviderError),
			string(trip.KindInternalConsistency),
		},
	}
	response.JSON(w, r, http.StatusOK, enums)
}
