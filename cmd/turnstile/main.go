// Turnstile is an admission-control gateway for HTTP trigger surfaces.
//
// It sits in front of an upstream service and enforces per-identifier
// request budgets, providing:
//   - Fixed-window admission control per client identity
//   - Per-route and per-tier policy overrides
//   - In-process or Redis-backed counting
//   - Standard X-RateLimit-* and Retry-After response headers
//   - A queryable journal of rejected decisions
//
// Usage:
//
//	# Start the gateway with default configuration
//	turnstile run
//
//	# Start with a custom configuration file
//	turnstile run --config /path/to/config.yaml
//
//	# Validate a configuration file
//	turnstile validate --config config.yaml
//
//	# Inspect recent rejections
//	turnstile journal query --limit 20
//
//	# Load-test a running gateway
//	turnstile bench --target http://localhost:8080 --rate 50
//
//	# Show version information
//	turnstile version
package main

func main() {
	Execute()
}
