package hos

import "time"

// Status is the duty status of a logged activity.
type Status string

const (
	StatusOffDuty      Status = "Off Duty"
	StatusSleeperBerth Status = "Sleeper Berth"
	StatusDriving      Status = "Driving"
	StatusOnDuty       Status = "On Duty"
)

// Statuses lists every duty status in log-sheet row order.
var Statuses = []Status{StatusOffDuty, StatusSleeperBerth, StatusDriving, StatusOnDuty}

// IsWork reports whether the status counts against the on-duty window
// unconditionally and against the weekly cycle.
func (s Status) IsWork() bool {
	return s == StatusDriving || s == StatusOnDuty
}

// BankSnapshot holds the four bank remainders at one instant.
type BankSnapshot struct {
	DailyDriving time.Duration
	OnDutyWindow time.Duration
	BreakCycle   time.Duration
	WeeklyCycle  time.Duration
}

// Banks tracks the four regulatory counters for a single trip computation.
// It is not safe for concurrent use; each simulation owns its own Banks.
type Banks struct {
	DailyDriving  time.Duration
	OnDutyWindow  time.Duration
	BreakCycle    time.Duration
	WeeklyCycle   time.Duration
	WindowStarted bool

	rules RuleSet
}

// NewBanks returns full daily banks and a weekly cycle reduced by cycleUsed.
func NewBanks(rules RuleSet, cycleUsed time.Duration) *Banks {
	return &Banks{
		DailyDriving: rules.MaxDrivingPerDay,
		OnDutyWindow: rules.MaxOnDutyWindow,
		BreakCycle:   rules.DrivingBeforeBreak,
		WeeklyCycle:  rules.WeeklyCycleLimit - cycleUsed,
		rules:        rules,
	}
}

// Consume debits the banks for an activity of duration d.
//
// Driving and on-duty time start the 14-hour window if needed and count
// against it and the weekly cycle. Driving also counts against the daily
// driving and break-cycle banks. Off-duty and sleeper time only run the
// window down, and only once it has started: the window never pauses.
func (b *Banks) Consume(status Status, d time.Duration) {
	if status.IsWork() {
		b.WindowStarted = true
		b.OnDutyWindow -= d
		b.WeeklyCycle -= d
		if status == StatusDriving {
			b.DailyDriving -= d
			b.BreakCycle -= d
		}
		return
	}

	if b.WindowStarted {
		b.OnDutyWindow -= d
	}
}

// ApplyDailyReset restores the daily banks after a 10-hour reset.
// The weekly cycle is left untouched.
func (b *Banks) ApplyDailyReset() {
	b.DailyDriving = b.rules.MaxDrivingPerDay
	b.OnDutyWindow = b.rules.MaxOnDutyWindow
	b.BreakCycle = b.rules.DrivingBeforeBreak
	b.WindowStarted = false
}

// ApplyBreakReset restores the break cycle after a 30-minute break.
func (b *Banks) ApplyBreakReset() {
	b.BreakCycle = b.rules.DrivingBeforeBreak
}

// ApplyWeeklyReset restores every bank after a 34-hour restart.
func (b *Banks) ApplyWeeklyReset() {
	b.ApplyDailyReset()
	b.WeeklyCycle = b.rules.WeeklyCycleLimit
}

// Snapshot returns the current remainders.
func (b *Banks) Snapshot() BankSnapshot {
	return BankSnapshot{
		DailyDriving: b.DailyDriving,
		OnDutyWindow: b.OnDutyWindow,
		BreakCycle:   b.BreakCycle,
		WeeklyCycle:  b.WeeklyCycle,
	}
}

// DrivingAllowance applies the minimum-of-bounds rule: the longest stretch
// that can be driven without overrunning the destination or any driving cap.
// The window only bounds driving once it has started.
func (b *Banks) DrivingAllowance(remaining time.Duration) time.Duration {
	allowance := min(remaining, b.DailyDriving, b.BreakCycle)
	if b.WindowStarted {
		allowance = min(allowance, b.OnDutyWindow)
	}
	return allowance
}
