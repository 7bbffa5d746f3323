package sequence

import (
	"context"
)

// DefaultListLimit caps List when the caller passes no limit.
const DefaultListLimit = 100

// Record is the persisted state of one counter.
// SequenceValue is the last value handed out; 0 means never allocated.
type Record struct {
	CounterID     string `db:"counter_id" json:"counterId"`
	SequenceValue int64  `db:"sequence_value" json:"sequenceValue"`
}

// Store is the atomic primitive every counter backend provides.
//
// FindAndIncrement must be a single atomic read-modify-write: create the
// record with value 0 if absent, add 1, return the new value. Concurrent
// callers, possibly in other processes, never observe the same result.
type Store interface {
	FindAndIncrement(ctx context.Context, counterID string) (int64, error)
}

// Inspector exposes read and migration operations on counters.
type Inspector interface {
	// Get returns the current record without advancing it.
	// Returns apperror NOT_FOUND if the counter was never allocated.
	Get(ctx context.Context, counterID string) (Record, error)

	// List returns records whose id starts with prefix, ordered by id.
	List(ctx context.Context, prefix string, limit int) ([]Record, error)

	// Raise atomically sets the counter to max(current, value), creating it
	// if absent, and returns the resulting value. It never lowers a counter.
	Raise(ctx context.Context, counterID string, value int64) (int64, error)
}

// AdminStore is a Store with inspection and health checks.
type AdminStore interface {
	Store
	Inspector

	// Ping checks connectivity to the backing service.
	Ping(ctx context.Context) error
}
