package hos

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// ErrInternalConsistency is returned when a simulation exceeds its safety
// bounds. It always indicates a modelling bug, never bad input.
var ErrInternalConsistency = errors.New("simulation exceeded safety bound")

// Default safety bounds.
const (
	DefaultMaxIterations = 10000
	DefaultMaxDays       = 400
)

// Event descriptions for the mandatory rests and fixed tasks.
const (
	DescWeeklyRestart = "34-hour Restart"
	DescDailyReset    = "10-hour Reset"
	DescBreak         = "30-minute Break"
	DescPreTrip       = "Pre-Trip Inspection"
	DescPickup        = "Pickup Stop"
	DescDropoff       = "Dropoff Stop"
)

// TaskKind identifies a planned fixed-duration on-duty activity.
type TaskKind string

const (
	TaskPreTripInspection TaskKind = "pre_trip_inspection"
	TaskFueling           TaskKind = "fueling"
	TaskPickup            TaskKind = "pickup"
	TaskDropoff           TaskKind = "dropoff"
)

// Task is a planned On Duty activity consumed at most once.
type Task struct {
	Kind        TaskKind
	Duration    time.Duration
	Description string
	Location    string
}

// Plan is the input to one simulation.
type Plan struct {
	// StartTime is the instant the pre-trip inspection begins.
	StartTime time.Time
	// TotalDriving is the driving time for both legs combined.
	TotalDriving time.Duration
	// PickupToDropoff is the driving time of the second leg.
	PickupToDropoff time.Duration
	// CycleUsed is the on-duty time already spent in the weekly cycle.
	CycleUsed time.Duration

	StartLabel   string
	PickupLabel  string
	DropoffLabel string

	FuelingStops int
}

// Stats counts the decisions taken during a simulation.
type Stats struct {
	Iterations     int
	DrivingBlocks  int
	Breaks         int
	DailyResets    int
	WeeklyRestarts int
	FuelingStops   int
}

// Schedule is the outcome of a simulation.
type Schedule struct {
	Logs  []DayLog
	Stats Stats
	End   time.Time
}

// Config holds Engine construction parameters.
type Config struct {
	Rules         RuleSet
	MaxIterations int
	MaxDays       int
	Logger        zerolog.Logger
}

// Engine runs the HOS decision loop. It holds no per-trip state and may be
// shared between goroutines.
type Engine struct {
	rules         RuleSet
	maxIterations int
	maxDays       int
	logger        zerolog.Logger
}

// NewEngine creates an engine. Zero bounds fall back to the defaults.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Rules.Validate(); err != nil {
		return nil, err
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.MaxDays <= 0 {
		cfg.MaxDays = DefaultMaxDays
	}
	return &Engine{
		rules:         cfg.Rules,
		maxIterations: cfg.MaxIterations,
		maxDays:       cfg.MaxDays,
		logger:        cfg.Logger.With().Str("component", "hos_engine").Logger(),
	}, nil
}

// Rules returns the engine's rule set.
func (e *Engine) Rules() RuleSet {
	return e.rules
}

// run is the mutable state of one simulation.
type run struct {
	banks     *Banks
	logs      []DayLog
	cursor    time.Time
	location  string
	remaining time.Duration
	pickup    *Task
	dropoff   *Task
	fueling   []Task
	stats     Stats
}

func (r *run) log(status Status, d time.Duration, description, location string) {
	snap := r.banks.Snapshot()
	r.logs, r.cursor = Append(r.logs, r.cursor, Event{
		Status:      status,
		Duration:    d,
		Description: description,
		Location:    location,
		Banks:       &snap,
	})
}

// Run simulates the plan and returns finalized day logs.
func (e *Engine) Run(plan Plan) (*Schedule, error) {
	if plan.TotalDriving < 0 || plan.PickupToDropoff < 0 || plan.PickupToDropoff > plan.TotalDriving {
		return nil, fmt.Errorf("invalid driving durations: total %s, pickup to dropoff %s", plan.TotalDriving, plan.PickupToDropoff)
	}
	if plan.CycleUsed < 0 || plan.CycleUsed > e.rules.WeeklyCycleLimit {
		return nil, fmt.Errorf("cycle used %s outside [0, %s]", plan.CycleUsed, e.rules.WeeklyCycleLimit)
	}

	r := &run{
		banks:     NewBanks(e.rules, plan.CycleUsed),
		cursor:    plan.StartTime,
		location:  plan.StartLabel,
		remaining: plan.TotalDriving,
		pickup: &Task{
			Kind:        TaskPickup,
			Duration:    e.rules.PickupDropoff,
			Description: DescPickup,
			Location:    plan.PickupLabel,
		},
		dropoff: &Task{
			Kind:        TaskDropoff,
			Duration:    e.rules.PickupDropoff,
			Description: DescDropoff,
			Location:    plan.DropoffLabel,
		},
	}
	for i := 1; i <= plan.FuelingStops; i++ {
		r.fueling = append(r.fueling, Task{
			Kind:        TaskFueling,
			Duration:    e.rules.Fueling,
			Description: fmt.Sprintf("Fueling Stop %d", i),
			Location:    fmt.Sprintf("En Route - Fuel Stop %d", i),
		})
	}

	r.banks.Consume(StatusOnDuty, e.rules.PreTripInspection)
	r.log(StatusOnDuty, e.rules.PreTripInspection, DescPreTrip, r.location)

	for r.remaining > 0 || r.pickup != nil || r.dropoff != nil {
		r.stats.Iterations++
		if r.stats.Iterations > e.maxIterations {
			return nil, fmt.Errorf("%w: more than %d iterations", ErrInternalConsistency, e.maxIterations)
		}
		if len(r.logs) > e.maxDays {
			return nil, fmt.Errorf("%w: more than %d days", ErrInternalConsistency, e.maxDays)
		}
		e.step(r, plan)
	}

	Finalize(&r.logs[len(r.logs)-1])

	e.logger.Debug().
		Int("days", len(r.logs)).
		Int("iterations", r.stats.Iterations).
		Int("breaks", r.stats.Breaks).
		Int("daily_resets", r.stats.DailyResets).
		Int("weekly_restarts", r.stats.WeeklyRestarts).
		Msg("simulation complete")

	return &Schedule{Logs: r.logs, Stats: r.stats, End: r.cursor}, nil
}

// step performs exactly one action, chosen by strict priority.
func (e *Engine) step(r *run, plan Plan) {
	b := r.banks

	switch {
	case b.WeeklyCycle <= 0:
		e.logger.Debug().Dur("weekly_cycle", b.WeeklyCycle).Msg("weekly restart")
		b.Consume(StatusOffDuty, e.rules.WeeklyRestart)
		b.ApplyWeeklyReset()
		r.log(StatusOffDuty, e.rules.WeeklyRestart, DescWeeklyRestart, r.location)
		r.stats.WeeklyRestarts++
		return

	case b.DailyDriving <= 0 || (b.WindowStarted && b.OnDutyWindow <= 0):
		e.logger.Debug().
			Dur("daily_driving", b.DailyDriving).
			Dur("on_duty_window", b.OnDutyWindow).
			Msg("daily reset")
		b.Consume(StatusSleeperBerth, e.rules.DailyReset)
		b.ApplyDailyReset()
		r.log(StatusSleeperBerth, e.rules.DailyReset, DescDailyReset, r.location)
		r.stats.DailyResets++
		return

	case b.BreakCycle <= 0 && r.remaining > 0:
		e.logger.Debug().Dur("remaining", r.remaining).Msg("30-minute break")
		b.Consume(StatusOffDuty, e.rules.RequiredBreak)
		b.ApplyBreakReset()
		r.log(StatusOffDuty, e.rules.RequiredBreak, DescBreak, r.location)
		r.stats.Breaks++
		return
	}

	if task := r.nextTask(plan); task != nil {
		e.logger.Debug().Str("task", task.Description).Msg("executing planned task")
		b.Consume(StatusOnDuty, task.Duration)
		r.location = task.Location
		r.log(StatusOnDuty, task.Duration, task.Description, task.Location)
		if task.Kind == TaskFueling {
			r.stats.FuelingStops++
		}
		return
	}

	drive := b.DrivingAllowance(r.remaining)
	e.logger.Debug().
		Dur("drive", drive).
		Dur("remaining", r.remaining).
		Dur("daily_driving", b.DailyDriving).
		Dur("on_duty_window", b.OnDutyWindow).
		Dur("break_cycle", b.BreakCycle).
		Msg("driving")

	description := fmt.Sprintf("Drive from %s toward %s", plan.PickupLabel, plan.DropoffLabel)
	if r.remaining > plan.PickupToDropoff {
		description = fmt.Sprintf("Drive from %s toward %s", plan.StartLabel, plan.PickupLabel)
	}

	b.Consume(StatusDriving, drive)
	r.remaining -= drive
	r.log(StatusDriving, drive, description, r.location)
	r.stats.DrivingBlocks++

	if r.remaining <= plan.PickupToDropoff {
		r.location = "En route to " + plan.DropoffLabel
	} else {
		r.location = "En route to " + plan.PickupLabel
	}
}

// nextTask pops the planned task due now, if any: pickup once the first leg
// is driven, dropoff at the destination, then fueling in the second half.
func (r *run) nextTask(plan Plan) *Task {
	switch {
	case r.pickup != nil && r.remaining <= plan.PickupToDropoff:
		t := r.pickup
		r.pickup = nil
		return t
	case r.dropoff != nil && r.remaining <= 0:
		t := r.dropoff
		r.dropoff = nil
		return t
	case len(r.fueling) > 0 && r.remaining < plan.TotalDriving/2:
		t := r.fueling[0]
		r.fueling = r.fueling[1:]
		return &t
	}
	return nil
}
