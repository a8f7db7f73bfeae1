// Package telemetry groups the observability building blocks shared by
// the gateway: structured logging setup, Prometheus metrics plumbing,
// and readiness checks.
//
// The subpackages are deliberately small. Components log through
// log/slog with a "component" attribute, register their own metrics on
// an injected registry, and expose health through named check
// functions; this package only provides the shared wiring.
//
//   - logging: slog handler construction from configuration
//   - metrics: registry construction and the /metrics HTTP handler
//   - health: named readiness checks with per-check timeouts
package telemetry
