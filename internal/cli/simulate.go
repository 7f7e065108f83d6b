package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/haulplan/haulplan/internal/api/handler"
	"github.com/haulplan/haulplan/internal/hos"
)

type simulateOptions struct {
	driving         time.Duration
	pickupToDropoff time.Duration
	miles           float64
	cycleUsed       float64
	startTime       string
	labels          [3]string
	asJSON          bool
}

func newSimulateCmd(global *globalOptions) *cobra.Command {
	opts := &simulateOptions{}

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run the HOS engine on given driving times without any providers",
		Example: `  haulplan simulate --driving 42h --pickup-to-dropoff 20h --miles 2600 --cycle-used 55
  haulplan simulate --driving 6h30m --pickup-to-dropoff 2h40m --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSimulate(cmd, global, opts)
		},
	}

	f := cmd.Flags()
	f.DurationVar(&opts.driving, "driving", 0, "total driving time for both legs")
	f.DurationVar(&opts.pickupToDropoff, "pickup-to-dropoff", 0, "driving time of the pickup to dropoff leg")
	f.Float64Var(&opts.miles, "miles", 0, "total distance, used to place fueling stops")
	f.Float64Var(&opts.cycleUsed, "cycle-used", 0, "hours already used in the weekly cycle")
	f.StringVar(&opts.startTime, "start-time", "", "RFC 3339 start of the pre-trip inspection (default: today 06:00)")
	f.StringVar(&opts.labels[0], "start-label", "Start", "name of the start location")
	f.StringVar(&opts.labels[1], "pickup-label", "Pickup", "name of the pickup location")
	f.StringVar(&opts.labels[2], "dropoff-label", "Dropoff", "name of the dropoff location")
	f.BoolVar(&opts.asJSON, "json", false, "print the day logs as JSON")
	_ = cmd.MarkFlagRequired("driving")

	return cmd
}

func runSimulate(cmd *cobra.Command, global *globalOptions, opts *simulateOptions) error {
	cfg := global.config()
	rules, err := cfg.Rules()
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	start, err := startTime(opts.startTime, loc, time.Now())
	if err != nil {
		return err
	}

	engine, err := hos.NewEngine(hos.Config{Rules: rules, Logger: global.logger(cmd.ErrOrStderr())})
	if err != nil {
		return err
	}

	schedule, err := engine.Run(hos.Plan{
		StartTime:       start,
		TotalDriving:    opts.driving,
		PickupToDropoff: opts.pickupToDropoff,
		CycleUsed:       time.Duration(opts.cycleUsed * float64(time.Hour)),
		StartLabel:      opts.labels[0],
		PickupLabel:     opts.labels[1],
		DropoffLabel:    opts.labels[2],
		FuelingStops:    rules.FuelingStops(opts.miles),
	})
	if err != nil {
		return err
	}

	if opts.asJSON {
		return writeJSON(cmd.OutOrStdout(), handler.NewDailyLogs(schedule.Logs))
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Days: %d  Breaks: %d  10h resets: %d  34h restarts: %d  Fueling stops: %d\n\n",
		len(schedule.Logs), schedule.Stats.Breaks, schedule.Stats.DailyResets,
		schedule.Stats.WeeklyRestarts, schedule.Stats.FuelingStops)
	return printLogs(out, schedule.Logs)
}

// startTime parses an RFC 3339 value, or returns 06:00 today in loc. The
// result is pinned to its UTC offset so every log day spans exactly 24h,
// matching what the API does.
func startTime(value string, loc *time.Location, now time.Time) (time.Time, error) {
	var t time.Time
	if value != "" {
		parsed, err := time.Parse(time.RFC3339, value)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid --start-time: %w", err)
		}
		t = parsed
	} else {
		local := now.In(loc)
		t = time.Date(local.Year(), local.Month(), local.Day(), 6, 0, 0, 0, loc)
	}
	name, offset := t.Zone()
	return t.In(time.FixedZone(name, offset)), nil
}
