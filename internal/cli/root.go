// Package cli implements the haulplan command-line interface using Cobra.
// Each subcommand wraps one capability: planning a trip against the live
// providers, simulating a schedule offline, showing the rule set and minting
// operator tokens.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/haulplan/haulplan/internal/hos"
	"github.com/haulplan/haulplan/internal/planner"
)

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	rulesFile string
	timeZone  string
	verbose   bool
}

// config overlays the flags on the environment configuration.
func (o *globalOptions) config() planner.Config {
	cfg := planner.ConfigFromEnv()
	if o.rulesFile != "" {
		cfg.RulesFile = o.rulesFile
	}
	if o.timeZone != "" {
		cfg.TimeZone = o.timeZone
	}
	return cfg
}

func (o *globalOptions) rules() (hos.RuleSet, error) {
	return o.config().Rules()
}

// logger writes human-readable logs to w. Only warnings surface unless
// --verbose is set.
func (o *globalOptions) logger(w io.Writer) zerolog.Logger {
	level := zerolog.WarnLevel
	if o.verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, NoColor: true}).
		Level(level).
		With().
		Timestamp().
		Logger()
}

// NewRootCommand builds the haulplan command tree.
func NewRootCommand(version string) *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "haulplan",
		Short: "haulplan plans hours-of-service compliant truck trips",
		Long: `haulplan computes multi-day driving schedules under the
11/14/8/70-hour rules and prints the resulting daily log sheets.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.rulesFile, "rules", "", "YAML rule set overrides (default: $HOS_RULES_FILE)")
	root.PersistentFlags().StringVar(&opts.timeZone, "tz", "", "IANA time zone for default start times (default: $TRIP_TIMEZONE)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log engine decisions")

	root.AddCommand(
		newPlanCmd(opts),
		newSimulateCmd(opts),
		newRulesCmd(opts),
		newTokenCmd(),
	)
	return root
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	if err := NewRootCommand(version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
