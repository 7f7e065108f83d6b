// Package history keeps a record of planned trips so they can be listed and
// recalculated later.
package history

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository errors.
var (
	ErrNotFound = errors.New("history entry not found")
)

// IDPrefix marks history identifiers.
const IDPrefix = "trp_"

// Entry is one recorded trip request. Only the inputs are stored; the plan
// itself is recalculated on demand.
type Entry struct {
	ID        string    `json:"id"`
	Start     string    `json:"start"`
	Pickup    string    `json:"pickup"`
	Dropoff   string    `json:"dropoff"`
	CycleUsed float64   `json:"cycleUsed"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewEntry stamps a new entry with an ID and creation time.
func NewEntry(start, pickup, dropoff string, cycleUsed float64, now time.Time) Entry {
	return Entry{
		ID:        IDPrefix + uuid.New().String(),
		Start:     start,
		Pickup:    pickup,
		Dropoff:   dropoff,
		CycleUsed: cycleUsed,
		CreatedAt: now.UTC(),
	}
}
