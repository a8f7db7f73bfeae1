// Package admission decides whether a request may proceed under its
// identifier's fixed-window budget.
//
// # Overview
//
// The Gate is the decision core of the limiter. It takes a resolved
// identifier and a policy (window length plus request quota), performs one
// atomic check-and-increment against the configured entry store, and returns
// a Decision with retry timing for rejections. It never inspects request
// bodies or business semantics; callers resolve identity and policy before
// invoking it.
//
// # Algorithm
//
// Fixed-window counting, per identifier:
//
//  1. Look up the identifier's entry, creating it lazily with a zero count
//     and a window starting now.
//  2. If the window has elapsed, reset the count and start a new window.
//  3. If the count has reached the policy quota, reject. Rejected requests
//     do not increment the counter, so being rejected never extends the
//     wait.
//  4. Otherwise increment and admit.
//
// The window is a hard cliff: quota spent in the final moments of one window
// does not dampen the next, so a caller can burst up to twice the quota
// across a boundary. That trade-off is inherent to fixed-window counting and
// is kept for its O(1) state and single-roundtrip checks.
//
// # Fail-Open
//
// With a networked entry store, any store error (including a timed-out
// call) is treated as store unavailability: the request is admitted, the
// decision is marked FailedOpen, a store-failure counter ticks, and the
// fault is logged through a throttle so an outage cannot flood the log.
// Limiter trouble is never allowed to become an outage of the gated surface.
//
// # Thread Safety
//
// Gate is stateless apart from its store and safe for concurrent use. The
// per-identifier atomicity lives in the store; see the storage package.
package admission
