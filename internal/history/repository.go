package history

import "context"

// DefaultListLimit is the number of entries List returns when no limit is set.
const DefaultListLimit = 50

// Repository defines the interface for trip history persistence.
type Repository interface {
	// Create stores an entry. Creating an ID that already exists is a no-op,
	// so redelivered messages are harmless.
	Create(ctx context.Context, e *Entry) error

	// List returns the newest entries first.
	List(ctx context.Context, limit int) ([]*Entry, error)

	// Get retrieves an entry by ID. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*Entry, error)

	// Delete removes an entry. Returns ErrNotFound if it doesn't exist.
	Delete(ctx context.Context, id string) error

	// DeleteAll removes every entry and returns how many were removed.
	DeleteAll(ctx context.Context) (int64, error)
}
