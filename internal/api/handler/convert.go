package handler

import (
	"math"
	"time"

	"github.com/haulplan/haulplan/internal/api/models"
	"github.com/haulplan/haulplan/internal/geo"
	"github.com/haulplan/haulplan/internal/history"
	"github.com/haulplan/haulplan/internal/hos"
	"github.com/haulplan/haulplan/internal/trip"
)

const (
	logDateLayout     = "2006-01-02"
	historyDateLayout = "2006-01-02 15:04"
)

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// NewTripPlan converts a planned trip to its wire representation.
func NewTripPlan(res *trip.Result, logInfo map[string]any) models.TripPlan {
	if logInfo == nil {
		logInfo = map[string]any{}
	}

	geometry := make([][2]float64, len(res.Geometry))
	for i, c := range res.Geometry {
		geometry[i] = [2]float64{c.Lat, c.Lng}
	}

	return models.TripPlan{
		RouteGeometry:         geometry,
		Logs:                  NewDailyLogs(res.Logs),
		TotalDistanceMiles:    round2(res.TotalDistanceMiles),
		TotalDrivingTimeHours: hours(res.TotalDriving),
		StartLocation:         toTripLocation(res.Start),
		PickupLocation:        toTripLocation(res.Pickup),
		DropoffLocation:       toTripLocation(res.Dropoff),
		TripSummary: models.TripSummary{
			TotalDays:          res.Summary.TotalDays,
			TotalDrivingHours:  round2(res.Summary.TotalDrivingHours),
			TotalDistanceMiles: round2(res.Summary.TotalDistanceMiles),
			FuelingStops:       res.Summary.FuelingStops,
		},
		StartTime: models.Timestamp(res.StartTime),
		LogInfo:   logInfo,
	}
}

// NewDailyLogs converts day logs to their wire representation.
func NewDailyLogs(days []hos.DayLog) []models.DailyLog {
	logs := make([]models.DailyLog, len(days))
	for i, day := range days {
		logs[i] = toDailyLog(day)
	}
	return logs
}

func toTripLocation(l geo.Location) models.TripLocation {
	return models.TripLocation{
		Name:          l.Query,
		FormattedName: l.DisplayName,
		Lat:           l.Lat,
		Lng:           l.Lng,
	}
}

func toDailyLog(day hos.DayLog) models.DailyLog {
	events := make([]models.LogEvent, len(day.Events))
	for i, e := range day.Events {
		events[i] = toLogEvent(e)
	}
	return models.DailyLog{
		Day:    day.Day,
		Date:   day.Date.Format(logDateLayout),
		Events: events,
		StatusTotals: models.StatusTotals{
			OffDuty:      hours(day.Totals.OffDuty),
			SleeperBerth: hours(day.Totals.SleeperBerth),
			Driving:      hours(day.Totals.Driving),
			OnDuty:       hours(day.Totals.OnDuty),
		},
		TotalHours: round2(day.TotalHours()),
	}
}

func toLogEvent(e hos.Event) models.LogEvent {
	ev := models.LogEvent{
		Status:          string(e.Status),
		DurationSeconds: int64(e.Duration / time.Second),
		DurationHours:   hours(e.Duration),
		Description:     e.Description,
		Location:        e.Location,
		Remarks:         e.Remarks,
	}
	if e.Start != nil {
		ts := models.Timestamp(*e.Start)
		clock := float64(e.Start.Hour()) + float64(e.Start.Minute())/60
		ev.StartTime = &ts
		ev.StartTimeHours = &clock
	}
	if e.Banks != nil {
		ev.HOSAfter = &models.HoursOfService{
			DailyDrivingRemaining: hours(e.Banks.DailyDriving),
			OnDutyWindowRemaining: hours(e.Banks.OnDutyWindow),
			BreakCycleRemaining:   hours(e.Banks.BreakCycle),
			WeeklyCycleRemaining:  hours(e.Banks.WeeklyCycle),
		}
	}
	return ev
}

func toHistoryEntry(e *history.Entry) models.HistoryEntry {
	return models.HistoryEntry{
		ID:              e.ID,
		StartLocation:   e.Start,
		PickupLocation:  e.Pickup,
		DropoffLocation: e.Dropoff,
		CycleHoursUsed:  e.CycleUsed,
		CreatedAt:       models.Timestamp(e.CreatedAt),
		FormattedDate:   e.CreatedAt.Format(historyDateLayout),
	}
}

func toRuleSet(r hos.RuleSet, maxLegMeters float64) models.RuleSet {
	return models.RuleSet{
		MaxDrivingPerDayHours:   r.MaxDrivingPerDay.Hours(),
		MaxOnDutyWindowHours:    r.MaxOnDutyWindow.Hours(),
		DrivingBeforeBreakHours: r.DrivingBeforeBreak.Hours(),
		WeeklyCycleLimitHours:   r.WeeklyCycleLimit.Hours(),
		DailyResetHours:         r.DailyReset.Hours(),
		WeeklyRestartHours:      r.WeeklyRestart.Hours(),
		RequiredBreakHours:      r.RequiredBreak.Hours(),
		PreTripInspectionHours:  r.PreTripInspection.Hours(),
		PickupDropoffHours:      r.PickupDropoff.Hours(),
		FuelingHours:            r.Fueling.Hours(),
		FuelingIntervalMiles:    r.FuelingIntervalMiles,
		MaxLegKilometers:        maxLegMeters / 1000,
	}
}
