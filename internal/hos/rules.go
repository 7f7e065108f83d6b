// Package hos implements the Hours-of-Service simulation: the four regulatory
// time banks, the day-by-day duty log and the decision loop that turns a
// required driving time into a compliant multi-day schedule.
package hos

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidRuleSet is returned when a rule set has a non-positive limit.
var ErrInvalidRuleSet = errors.New("invalid rule set")

// RuleSet is the table of regulatory limits and fixed activity durations.
// A RuleSet is treated as immutable once handed to an Engine.
type RuleSet struct {
	// Bank capacities.
	MaxDrivingPerDay   time.Duration `yaml:"max_driving_per_day"`
	MaxOnDutyWindow    time.Duration `yaml:"max_on_duty_window"`
	DrivingBeforeBreak time.Duration `yaml:"driving_before_break"`
	WeeklyCycleLimit   time.Duration `yaml:"weekly_cycle_limit"`

	// Mandatory rest durations.
	DailyReset    time.Duration `yaml:"daily_reset"`
	WeeklyRestart time.Duration `yaml:"weekly_restart"`
	RequiredBreak time.Duration `yaml:"required_break"`

	// Fixed on-duty task durations.
	PreTripInspection time.Duration `yaml:"pre_trip_inspection"`
	PickupDropoff     time.Duration `yaml:"pickup_dropoff"`
	Fueling           time.Duration `yaml:"fueling"`

	// FuelingIntervalMiles is the distance covered per fueling stop.
	FuelingIntervalMiles float64 `yaml:"fueling_interval_miles"`
}

// StandardRules returns the federal property-carrying 11/14/8/70 rule set.
func StandardRules() RuleSet {
	return RuleSet{
		MaxDrivingPerDay:     11 * time.Hour,
		MaxOnDutyWindow:      14 * time.Hour,
		DrivingBeforeBreak:   8 * time.Hour,
		WeeklyCycleLimit:     70 * time.Hour,
		DailyReset:           10 * time.Hour,
		WeeklyRestart:        34 * time.Hour,
		RequiredBreak:        30 * time.Minute,
		PreTripInspection:    30 * time.Minute,
		PickupDropoff:        1 * time.Hour,
		Fueling:              30 * time.Minute,
		FuelingIntervalMiles: 1000,
	}
}

// Validate checks that every limit is positive.
func (r RuleSet) Validate() error {
	limits := []struct {
		name  string
		value time.Duration
	}{
		{"max_driving_per_day", r.MaxDrivingPerDay},
		{"max_on_duty_window", r.MaxOnDutyWindow},
		{"driving_before_break", r.DrivingBeforeBreak},
		{"weekly_cycle_limit", r.WeeklyCycleLimit},
		{"daily_reset", r.DailyReset},
		{"weekly_restart", r.WeeklyRestart},
		{"required_break", r.RequiredBreak},
		{"pre_trip_inspection", r.PreTripInspection},
		{"pickup_dropoff", r.PickupDropoff},
		{"fueling", r.Fueling},
	}
	for _, l := range limits {
		if l.value <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %s", ErrInvalidRuleSet, l.name, l.value)
		}
	}
	if r.FuelingIntervalMiles <= 0 {
		return fmt.Errorf("%w: fueling_interval_miles must be positive", ErrInvalidRuleSet)
	}
	return nil
}

// FuelingStops returns how many fueling stops a trip of the given length needs.
func (r RuleSet) FuelingStops(totalMiles float64) int {
	if totalMiles <= 0 {
		return 0
	}
	return int(totalMiles / r.FuelingIntervalMiles)
}

// LoadRuleSet reads a YAML rule file. Keys that are absent keep their
// standard value, so a file only needs to list what it overrides.
func LoadRuleSet(path string) (RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RuleSet{}, fmt.Errorf("reading rule file: %w", err)
	}
	return ParseRuleSet(data)
}

// ParseRuleSet decodes YAML rule overrides on top of StandardRules.
// Durations use Go syntax ("11h", "30m").
func ParseRuleSet(data []byte) (RuleSet, error) {
	rules := StandardRules()
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return RuleSet{}, fmt.Errorf("parsing rule file: %w", err)
	}
	if err := rules.Validate(); err != nil {
		return RuleSet{}, err
	}
	return rules, nil
}
