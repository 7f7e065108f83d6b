package models

// HistoryEntry is a recorded trip request.
type HistoryEntry struct {
	ID              string    `json:"id"`
	StartLocation   string    `json:"startLocation"`
	PickupLocation  string    `json:"pickupLocation"`
	DropoffLocation string    `json:"dropoffLocation"`
	CycleHoursUsed  float64   `json:"cycleHoursUsed"`
	CreatedAt       Timestamp `json:"createdAt"`
	FormattedDate   string    `json:"formattedDate"`
}

// HistoryList is the response of GET /v1/history.
type HistoryList struct {
	Items []HistoryEntry `json:"items"`
	Limit int            `json:"limit"`
}

// HistoryCleared is the response of DELETE /v1/history.
type HistoryCleared struct {
	Message string `json:"message"`
	Deleted int64  `json:"deleted"`
}
