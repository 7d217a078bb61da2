package shared

import (
	"context"
	"time"
)

// IdempotencyStore tracks already-processed external events so duplicate
// deliveries can be suppressed cheaply before any transactional work starts.
// It is an optimization layer only: the authoritative duplicate check is the
// terminal-state test inside the reconciliation transaction.
type IdempotencyStore interface {
	// MarkProcessed marks a key as processed with a TTL.
	// Returns true if the key was newly marked, false if it already existed.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsProcessed checks if a key has already been processed
	IsProcessed(ctx context.Context, key string) (bool, error)

	// Close closes the store and releases resources
	Close() error
}
