package storage

import (
	"context"
	"time"
)

// Backend defines the interface for admission entry stores.
// Implementations must be thread-safe and support concurrent access.
type Backend interface {
	// CheckAndIncrement performs one fixed-window admission step for key:
	// it lazily creates the entry, resets it when the window has elapsed,
	// and increments the counter only when the request is admitted. The
	// whole step is atomic per key. Returns an error only on backend
	// failure; a rejected request is a normal Outcome, not an error.
	CheckAndIncrement(ctx context.Context, key string, limit int, window time.Duration) (Outcome, error)

	// Sweep removes entries that have been idle since before olderThan.
	// Returns the number of entries removed. Backends that expire entries
	// on their own may implement this as a no-op.
	Sweep(ctx context.Context, olderThan time.Time) (int, error)

	// Ping reports whether the backend is reachable. Used by readiness
	// checks; in-process backends always succeed.
	Ping(ctx context.Context) error

	// Close releases any resources held by the backend.
	// The backend should not be used after calling Close.
	Close() error
}

// Outcome is the result of a single CheckAndIncrement step.
type Outcome struct {
	// Allowed indicates whether the request was admitted.
	Allowed bool

	// Count is the number of admitted requests in the current window,
	// including this one when Allowed is true.
	Count int64

	// ResetAfter is the time remaining until the current window ends
	// and the counter resets.
	ResetAfter time.Duration
}
