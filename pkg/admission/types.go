package admission

import "time"

// Decision is the outcome of a single admission check.
type Decision struct {
	// Allowed indicates whether the request may proceed.
	Allowed bool

	// RetryAfter is how long the caller should wait before retrying.
	// Positive only when the request was rejected; always a whole number
	// of seconds, rounded up so a retry at the suggested time lands in a
	// fresh window.
	RetryAfter time.Duration

	// Limit is the policy quota that applied.
	Limit int

	// Remaining is how much of the quota is left in the current window.
	Remaining int64

	// Reset is when the current window ends.
	Reset time.Time

	// FailedOpen is true when the entry store was unreachable and the
	// request was admitted without a counted check.
	FailedOpen bool
}
