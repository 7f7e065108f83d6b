package hos

import (
	"fmt"
	"slices"
	"time"
)

const dayLength = 24 * time.Hour

// Filler event text used to pad a finalized day to 24 hours.
const (
	FillerDescription = "Off Duty"
	FillerLocation    = "End of Day"
	FillerRemarks     = "Remaining time to complete 24-hour log"
)

// Event is one logged activity. Events are immutable once appended.
type Event struct {
	Status      Status
	Duration    time.Duration
	Start       *time.Time // nil for end-of-day filler
	Description string
	Location    string
	Remarks     string
	Banks       *BankSnapshot // remainders after the event, nil for filler
}

// StatusTotals is the time spent in each duty status during one day.
type StatusTotals struct {
	OffDuty      time.Duration
	SleeperBerth time.Duration
	Driving      time.Duration
	OnDuty       time.Duration
}

// Get returns the total for one status.
func (t StatusTotals) Get(s Status) time.Duration {
	switch s {
	case StatusOffDuty:
		return t.OffDuty
	case StatusSleeperBerth:
		return t.SleeperBerth
	case StatusDriving:
		return t.Driving
	case StatusOnDuty:
		return t.OnDuty
	}
	return 0
}

func (t *StatusTotals) add(s Status, d time.Duration) {
	switch s {
	case StatusOffDuty:
		t.OffDuty += d
	case StatusSleeperBerth:
		t.SleeperBerth += d
	case StatusDriving:
		t.Driving += d
	case StatusOnDuty:
		t.OnDuty += d
	}
}

// Sum returns the combined total of every status.
func (t StatusTotals) Sum() time.Duration {
	return t.OffDuty + t.SleeperBerth + t.Driving + t.OnDuty
}

// DayLog holds the events of one calendar day.
type DayLog struct {
	Day       int
	Date      time.Time // local midnight opening the day
	Events    []Event
	Totals    StatusTotals
	Finalized bool
}

// End returns the midnight closing the day.
func (d DayLog) End() time.Time {
	return d.Date.Add(dayLength)
}

// Logged returns the sum of event durations recorded so far.
func (d DayLog) Logged() time.Duration {
	var total time.Duration
	for _, e := range d.Events {
		total += e.Duration
	}
	return total
}

// TotalHours returns the finalized grand total in hours.
func (d DayLog) TotalHours() float64 {
	return d.Totals.Sum().Hours()
}

// Midnight returns the start of the calendar day containing t.
func Midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Append records e starting at cursor and returns the updated logs and the
// cursor advanced by e.Duration. The input slice is not modified.
//
// An event that runs past midnight is split into numbered parts, one per
// calendar day touched; every day closed by a split is finalized. An event
// that starts exactly at the end of the current day opens the next day first.
func Append(logs []DayLog, cursor time.Time, e Event) ([]DayLog, time.Time) {
	out := make([]DayLog, len(logs), len(logs)+2)
	copy(out, logs)
	if n := len(out); n > 0 {
		out[n-1].Events = slices.Clone(out[n-1].Events)
	}

	if len(out) == 0 {
		out = append(out, DayLog{Day: 1, Date: Midnight(cursor)})
	} else if last := &out[len(out)-1]; !cursor.Before(last.End()) {
		end := last.End()
		Finalize(last)
		out = append(out, DayLog{Day: len(out) + 1, Date: end})
	}

	remaining := e.Duration
	part := 0
	for {
		day := &out[len(out)-1]
		untilMidnight := day.End().Sub(cursor)

		if remaining <= untilMidnight {
			ev := e
			ev.Duration = remaining
			ev.Start = timePtr(cursor)
			if part == 0 {
				ev.Remarks = fmt.Sprintf("%s at %s", e.Description, e.Location)
			} else {
				part++
				ev.Description = fmt.Sprintf("%s (Part %d)", e.Description, part)
				ev.Remarks = fmt.Sprintf("%s at %s (continued from previous day)", e.Description, e.Location)
			}
			day.Events = append(day.Events, ev)
			return out, cursor.Add(remaining)
		}

		part++
		ev := e
		ev.Duration = untilMidnight
		ev.Start = timePtr(cursor)
		ev.Description = fmt.Sprintf("%s (Part %d)", e.Description, part)
		ev.Remarks = fmt.Sprintf("%s at %s (continues to next day)", e.Description, e.Location)
		day.Events = append(day.Events, ev)

		end := day.End()
		Finalize(day)
		out = append(out, DayLog{Day: len(out) + 1, Date: end})
		cursor = end
		remaining -= untilMidnight
	}
}

// Finalize pads the day to 24 hours with an Off Duty filler and computes
// per-status totals. Finalizing an already finalized day is a no-op.
func Finalize(day *DayLog) {
	if day.Finalized {
		return
	}
	if residual := dayLength - day.Logged(); residual > 0 {
		day.Events = append(day.Events, Event{
			Status:      StatusOffDuty,
			Duration:    residual,
			Description: FillerDescription,
			Location:    FillerLocation,
			Remarks:     FillerRemarks,
		})
	}

	var totals StatusTotals
	for _, e := range day.Events {
		totals.add(e.Status, e.Duration)
	}
	day.Totals = totals
	day.Finalized = true
}

func timePtr(t time.Time) *time.Time {
	return &t
}
