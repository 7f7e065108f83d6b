package models

// RuleSet describes the hours-of-service limits trips are planned under.
// Durations are in hours.
type RuleSet struct {
	MaxDrivingPerDayHours   float64 `json:"maxDrivingPerDayHours"`
	MaxOnDutyWindowHours    float64 `json:"maxOnDutyWindowHours"`
	DrivingBeforeBreakHours float64 `json:"drivingBeforeBreakHours"`
	WeeklyCycleLimitHours   float64 `json:"weeklyCycleLimitHours"`
	DailyResetHours         float64 `json:"dailyResetHours"`
	WeeklyRestartHours      float64 `json:"weeklyRestartHours"`
	RequiredBreakHours      float64 `json:"requiredBreakHours"`
	PreTripInspectionHours  float64 `json:"preTripInspectionHours"`
	PickupDropoffHours      float64 `json:"pickupDropoffHours"`
	FuelingHours            float64 `json:"fuelingHours"`
	FuelingIntervalMiles    float64 `json:"fuelingIntervalMiles"`
	MaxLegKilometers        float64 `json:"maxLegKilometers"`
}

// Enums lists the enumerated values used by the API.
type Enums struct {
	DutyStatuses []string `json:"dutyStatuses"`
	ErrorKinds   []string `json:"errorKinds"`
}
