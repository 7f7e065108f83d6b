package models

import (
	"fmt"
	"math"
	"strings"
)

// MaxLocationLength bounds free-text location inputs.
const MaxLocationLength = 200

// TripCalculateRequest is the body of POST /v1/trips:calculate.
type TripCalculateRequest struct {
	StartLocation   string     `json:"startLocation"`
	PickupLocation  string     `json:"pickupLocation"`
	DropoffLocation string     `json:"dropoffLocation"`
	CycleHoursUsed  *float64   `json:"cycleHoursUsed"`
	StartTime       *Timestamp `json:"startTime,omitempty"`

	// LogInfo is free-form log sheet header data (driver, carrier, truck
	// number...). It is echoed back untouched.
	LogInfo map[string]any `json:"logInfo,omitempty"`
}

// Validate checks the request and returns one error per offending field.
func (r *TripCalculateRequest) Validate(maxCycleHours float64) []FieldError {
	var errs []FieldError

	locations := []struct {
		field string
		value string
	}{
		{"startLocation", r.StartLocation},
		{"pickupLocation", r.PickupLocation},
		{"dropoffLocation", r.DropoffLocation},
	}
	for _, l := range locations {
		switch v := strings.TrimSpace(l.value); {
		case v == "":
			errs = append(errs, FieldError{Field: l.field, Message: "is required", Code: "REQUIRED"})
		case len(v) > MaxLocationLength:
			errs = append(errs, FieldError{
				Field:   l.field,
				Message: fmt.Sprintf("must be at most %d characters", MaxLocationLength),
				Code:    "TOO_LONG",
			})
		}
	}

	switch {
	case r.CycleHoursUsed == nil:
		errs = append(errs, FieldError{Field: "cycleHoursUsed", Message: "is required", Code: "REQUIRED"})
	case math.IsNaN(*r.CycleHoursUsed) || *r.CycleHoursUsed < 0 || *r.CycleHoursUsed > maxCycleHours:
		errs = append(errs, FieldError{
			Field:   "cycleHoursUsed",
			Message: fmt.Sprintf("must be between 0 and %g", maxCycleHours),
			Code:    "OUT_OF_RANGE",
		})
	}

	return errs
}

// TripLocation is a resolved trip location.
type TripLocation struct {
	Name          string  `json:"name"`
	FormattedName string  `json:"formattedName"`
	Lat           float64 `json:"lat"`
	Lng           float64 `json:"lng"`
}

// HoursOfService holds the bank remainders after an event, in hours
// rounded to two decimals.
type HoursOfService struct {
	DailyDrivingRemaining float64 `json:"dailyDrivingRemaining"`
	OnDutyWindowRemaining float64 `json:"onDutyWindowRemaining"`
	BreakCycleRemaining   float64 `json:"breakCycleRemaining"`
	WeeklyCycleRemaining  float64 `json:"weeklyCycleRemaining"`
}

// LogEvent is one entry on a daily log sheet.
type LogEvent struct {
	Status          string          `json:"status"`
	DurationSeconds int64           `json:"duration"`
	DurationHours   float64         `json:"durationHours"`
	StartTime       *Timestamp      `json:"startTime"`
	StartTimeHours  *float64        `json:"startTimeHours"`
	Description     string          `json:"description"`
	Location        string          `json:"location"`
	Remarks         string          `json:"remarks"`
	HOSAfter        *HoursOfService `json:"hosAfter,omitempty"`
}

// StatusTotals are per-status hours for one day.
type StatusTotals struct {
	OffDuty      float64 `json:"offDuty"`
	SleeperBerth float64 `json:"sleeperBerth"`
	Driving      float64 `json:"driving"`
	OnDuty       float64 `json:"onDuty"`
}

// DailyLog is one 24-hour log sheet.
type DailyLog struct {
	Day          int          `json:"day"`
	Date         string       `json:"date"`
	Events       []LogEvent   `json:"events"`
	StatusTotals StatusTotals `json:"statusTotals"`
	TotalHours   float64      `json:"totalHours"`
}

// TripSummary is the headline of a planned trip.
type TripSummary struct {
	TotalDays          int     `json:"totalDays"`
	TotalDrivingHours  float64 `json:"totalDrivingHours"`
	TotalDistanceMiles float64 `json:"totalDistanceMiles"`
	FuelingStops       int     `json:"fuelingStops"`
}

// TripPlan is the response of a trip calculation.
type TripPlan struct {
	// RouteGeometry lists [lat, lng] pairs along both legs.
	RouteGeometry         [][2]float64   `json:"routeGeometry"`
	Logs                  []DailyLog     `json:"logs"`
	TotalDistanceMiles    float64        `json:"totalDistanceMiles"`
	TotalDrivingTimeHours float64        `json:"totalDrivingTimeHours"`
	StartLocation         TripLocation   `json:"startLocation"`
	PickupLocation        TripLocation   `json:"pickupLocation"`
	DropoffLocation       TripLocation   `json:"dropoffLocation"`
	TripSummary           TripSummary    `json:"tripSummary"`
	StartTime             Timestamp      `json:"startTime"`
	LogInfo               map[string]any `json:"logInfo"`
	HistoryID             string         `json:"historyId,omitempty"`
	HistoryEntry          *HistoryEntry  `json:"historyEntry,omitempty"`
}
