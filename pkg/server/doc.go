// Package server assembles the turnstile admission gateway.
//
// This package ties together the admission gate, identity resolver,
// policy table, journal, and upstream proxy, and provides server
// lifecycle management including start, shutdown, and policy reload.
//
// # Architecture
//
// The server package is the top-level orchestrator that:
//   - Builds the entry store named by the configuration (memory or Redis)
//   - Builds the policy table and holds it behind an atomic pointer
//   - Sets up HTTP routes and the middleware chain
//   - Runs background maintenance (entry sweeper, journal pruner)
//   - Manages graceful shutdown
//   - Handles OS signals (SIGTERM, SIGINT)
//
// # Basic Usage
//
// Creating and starting a server:
//
//	import (
//	    "context"
//	    "crescendo-hq/turnstile/pkg/config"
//	    "crescendo-hq/turnstile/pkg/server"
//	)
//
//	cfg, err := config.LoadConfigWithEnvOverrides("config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	srv, err := server.NewServer(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := srv.Start(context.Background()); err != nil {
//	    log.Fatal(err)
//	}
//
// # Graceful Shutdown
//
// The server shuts down gracefully when receiving SIGTERM or SIGINT,
// when its context is cancelled, or when Stop is called:
//
//	srv.Stop()
//
// The shutdown process:
//  1. Stops accepting new connections
//  2. Waits for active requests to complete (up to shutdown timeout)
//  3. Stops the sweeper and journal pruner
//  4. Flushes and closes the journal
//  5. Closes the entry store
//
// # Routes
//
// The server exposes the following HTTP endpoints:
//
//   - GET /healthz - Liveness probe (always returns 200)
//   - GET /readyz - Readiness probe (checks the entry store)
//   - GET /metrics - Prometheus metrics (path configurable)
//   - *          - Everything else is admission-checked and proxied upstream
//
// Probe and metrics routes never count against a policy.
//
// # Middleware Chain
//
// Proxied requests pass through the following middleware (innermost to
// outermost):
//  1. Admission: Resolves identity and enforces the policy table
//  2. Timeout: Enforces the per-request timeout
//  3. CORS: Adds Cross-Origin Resource Sharing headers
//  4. RequestID: Generates a unique request ID for tracing
//  5. Logging: Logs request/response details
//  6. Recovery: Recovers from panics and returns 500
//
// # Policy Reload
//
// ApplyPolicies rebuilds the policy table from a freshly loaded
// configuration and swaps it in atomically. Combined with
// config.Watcher this gives hot reload without dropping requests; a
// configuration that fails validation leaves the running table
// untouched.
//
// # Thread Safety
//
// All server operations are thread-safe and can be called concurrently
// from multiple goroutines.
package server
