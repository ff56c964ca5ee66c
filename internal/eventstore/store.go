package eventstore

import (
	"context"
	"time"
)

// Store defines the interface for persisting and retrieving events.
type Store interface {
	// Append adds an event to the store.
	Append(ctx context.Context, e Event) error

	// GetBySessionID retrieves all events for one feed session, oldest first.
	GetBySessionID(ctx context.Context, sessionID string) ([]Event, error)

	// GetRange retrieves events with start <= timestamp <= end.
	GetRange(ctx context.Context, start, end time.Time) ([]Event, error)

	// PruneBefore deletes events older than cutoff and returns how many went.
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Close closes the store and releases resources.
	Close() error
}
