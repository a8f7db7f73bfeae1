package journal

import (
	"context"
	"time"
)

// Mode selects which admission decisions the recorder persists.
type Mode string

const (
	// ModeRejected persists only rejected and failed-open decisions.
	ModeRejected Mode = "rejected"

	// ModeAll persists every decision.
	ModeAll Mode = "all"
)

// Valid reports whether the mode is one of the supported values.
func (m Mode) Valid() bool {
	return m == ModeRejected || m == ModeAll
}

// Record is a single admission decision captured for audit.
type Record struct {
	// ID uniquely identifies the record. Assigned by the recorder
	// when empty.
	ID string

	// Time is when the decision was made. Assigned by the recorder
	// when zero.
	Time time.Time

	// RequestID correlates the record with request logs.
	RequestID string

	// Route is the request path the decision applied to.
	Route string

	// Identity is the resolved client identifier.
	Identity string

	// PolicySource names the policy layer that matched: route, tier,
	// or default.
	PolicySource string

	// Limit is the request quota of the applied policy.
	Limit int

	// Window is the window length of the applied policy.
	Window time.Duration

	// Allowed reports whether the request was admitted.
	Allowed bool

	// FailedOpen reports whether the request was admitted because the
	// counter store was unavailable.
	FailedOpen bool

	// RetryAfter is the wait advertised on rejection, zero otherwise.
	RetryAfter time.Duration
}

// Store persists journal records.
type Store interface {
	// Insert persists a single record.
	Insert(ctx context.Context, rec *Record) error

	// Recent returns up to limit records ordered newest first.
	Recent(ctx context.Context, limit int) ([]*Record, error)

	// CountSince returns the number of records at or after cutoff.
	CountSince(ctx context.Context, cutoff time.Time) (int64, error)

	// Count returns the total number of records.
	Count(ctx context.Context) (int64, error)

	// DeleteBefore removes records older than cutoff and returns how
	// many were removed.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// TrimToCount removes the oldest records until at most max remain
	// and returns how many were removed.
	TrimToCount(ctx context.Context, max int64) (int64, error)

	// Close releases the store's resources.
	Close() error
}
