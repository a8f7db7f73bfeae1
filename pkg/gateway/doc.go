// Package gateway provides the network-facing pieces of the admission
// proxy: the reverse proxy that forwards admitted requests to the
// protected upstream, and the health endpoints.
//
// # Architecture
//
// The gateway is deliberately thin. Policy enforcement lives in the
// middleware subpackage; this package only moves admitted requests
// along and answers probes:
//
//   - UpstreamProxy: single-host reverse proxy to the configured upstream
//   - HealthHandler: liveness probe, always 200 while the process serves
//   - ReadyHandler: readiness probe, 503 while the entry store is unreachable
//
// A gateway whose entry store is down still reports live (requests flow,
// fail-open) but not ready, so orchestrators can hold traffic shifts
// without restarting a working process.
package gateway
