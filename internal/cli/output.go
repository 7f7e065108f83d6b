package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/haulplan/haulplan/internal/hos"
	"github.com/haulplan/haulplan/internal/trip"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printTrip(w io.Writer, res *trip.Result) error {
	fmt.Fprintf(w, "Start:    %s\n", res.Start.DisplayName)
	fmt.Fprintf(w, "Pickup:   %s\n", res.Pickup.DisplayName)
	fmt.Fprintf(w, "Dropoff:  %s\n", res.Dropoff.DisplayName)
	fmt.Fprintf(w, "Distance: %s mi\n", humanize.CommafWithDigits(res.Summary.TotalDistanceMiles, 1))
	fmt.Fprintf(w, "Driving:  %s\n", formatHours(res.TotalDriving))
	fmt.Fprintf(w, "Days:     %d (fueling stops: %d)\n\n", res.Summary.TotalDays, res.Summary.FuelingStops)
	return printLogs(w, res.Logs)
}

// printLogs writes one table per day followed by its status totals.
func printLogs(w io.Writer, logs []hos.DayLog) error {
	for _, day := range logs {
		fmt.Fprintf(w, "Day %d  %s\n", day.Day, day.Date.Format("Mon 2006-01-02"))

		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "  START\tDURATION\tSTATUS\tDESCRIPTION\tLOCATION")
		for _, e := range day.Events {
			start := "--:--"
			if e.Start != nil {
				start = e.Start.Format("15:04")
			}
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\n", start, formatHours(e.Duration), e.Status, e.Description, e.Location)
		}
		if err := tw.Flush(); err != nil {
			return err
		}

		fmt.Fprintf(w, "  Off %s | Sleeper %s | Driving %s | On duty %s | Total %s\n\n",
			formatHours(day.Totals.OffDuty),
			formatHours(day.Totals.SleeperBerth),
			formatHours(day.Totals.Driving),
			formatHours(day.Totals.OnDuty),
			formatHours(day.Totals.Sum()),
		)
	}
	return nil
}

// formatHours renders d as h:mm, e.g. 10:30.
func formatHours(d time.Duration) string {
	d = d.Round(time.Minute)
	return fmt.Sprintf("%d:%02d", int(d.Hours()), int(d.Minutes())%60)
}
