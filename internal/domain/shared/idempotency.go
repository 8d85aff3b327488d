package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers processed event IDs so that a redelivered event
// does not notify staff twice
type IdempotencyStore interface {
	// MarkProcessed marks an event as processed with a TTL.
	// Returns true if the event was newly marked, false if it was already processed.
	MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error)

	// Close releases resources held by the store
	Close() error
}
