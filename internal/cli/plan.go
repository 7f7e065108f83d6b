package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/haulplan/haulplan/internal/api/handler"
	"github.com/haulplan/haulplan/internal/planner"
	"github.com/haulplan/haulplan/internal/trip"
)

type planOptions struct {
	start, pickup, dropoff string
	cycleUsed              float64
	startTime              string
	logInfo                map[string]string
	asJSON                 bool
}

func newPlanCmd(global *globalOptions) *cobra.Command {
	opts := &planOptions{}

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Plan a trip using the configured geocoding and routing providers",
		Example: `  haulplan plan --start "Dallas, TX" --pickup "Houston, TX" --dropoff "Austin, TX" --cycle-used 12
  haulplan plan --start "32.7767, -96.7970" --pickup "Tulsa, OK" --dropoff "Denver, CO" --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPlan(cmd, global, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.start, "start", "", "current location (address or \"lat, lng\")")
	f.StringVar(&opts.pickup, "pickup", "", "pickup location")
	f.StringVar(&opts.dropoff, "dropoff", "", "dropoff location")
	f.Float64Var(&opts.cycleUsed, "cycle-used", 0, "hours already used in the weekly cycle")
	f.StringVar(&opts.startTime, "start-time", "", "RFC 3339 start of the pre-trip inspection (default: today 06:00)")
	f.StringToStringVar(&opts.logInfo, "log-info", nil, "log sheet header fields, e.g. driverName=J. Doe,truckNumber=42")
	f.BoolVar(&opts.asJSON, "json", false, "print the plan as JSON")
	for _, name := range []string{"start", "pickup", "dropoff"} {
		_ = cmd.MarkFlagRequired(name)
	}

	return cmd
}

func runPlan(cmd *cobra.Command, global *globalOptions, opts *planOptions) error {
	req := trip.Request{
		Start:     opts.start,
		Pickup:    opts.pickup,
		Dropoff:   opts.dropoff,
		CycleUsed: opts.cycleUsed,
	}
	if opts.startTime != "" {
		t, err := time.Parse(time.RFC3339, opts.startTime)
		if err != nil {
			return fmt.Errorf("invalid --start-time: %w", err)
		}
		req.StartTime = &t
	}

	logger := global.logger(cmd.ErrOrStderr())
	stack, err := planner.Build(cmd.Context(), global.config(), logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := stack.Close(); closeErr != nil {
			logger.Warn().Err(closeErr).Msg("closing geocode cache")
		}
	}()

	res, err := stack.Trips.Calculate(cmd.Context(), req)
	if err != nil {
		return describeTripError(err)
	}

	if opts.asJSON {
		info := make(map[string]any, len(opts.logInfo))
		for k, v := range opts.logInfo {
			info[k] = v
		}
		return writeJSON(cmd.OutOrStdout(), handler.NewTripPlan(res, info))
	}
	return printTrip(cmd.OutOrStdout(), res)
}

// describeTripError prefixes planning failures with their kind so scripts
// can tell caller mistakes from provider outages.
func describeTripError(err error) error {
	var terr *trip.Error
	if !errors.As(err, &terr) {
		return err
	}
	if terr.Retryable() {
		return fmt.Errorf("%s (retryable): %s", terr.Kind, terr.Message)
	}
	return fmt.Errorf("%s: %s", terr.Kind, terr.Message)
}
