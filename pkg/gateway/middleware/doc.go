// Package middleware provides the HTTP middleware chain for the gateway.
//
// This package implements the admission middleware that enforces request
// policies, plus the cross-cutting middleware every request passes
// through: request ID generation, structured logging, CORS, panic
// recovery, and timeout enforcement.
//
// # Middleware Chain
//
// Middleware functions are chained in a specific order:
//
//	handler = Recovery(Logging(RequestID(CORS(Timeout(Admission(handler))))))
//
// Order (innermost to outermost):
//  1. Admission: check the request against its rate policy
//  2. Timeout: enforce per-request timeout
//  3. CORS: add Cross-Origin Resource Sharing headers
//  4. RequestID: generate and propagate request ID
//  5. Logging: log request/response details
//  6. Recovery: recover from panics
//
// Admission sits innermost so rejected requests still get an ID and a
// log line, and so a wedged policy check is cut off by the timeout.
//
// # Admission
//
// AdmissionMiddleware resolves the client identity, looks up the policy
// for the route and caller tier, and asks the gate for a decision.
// Admitted requests continue down the chain carrying the identity in
// their context. Rejected requests receive:
//
//	HTTP/1.1 429 Too Many Requests
//	Retry-After: 31
//
//	{"success": false, "error": "Rate limit exceeded. Retry after 31s", "timestamp": "2025-06-01T12:00:00Z"}
//
// Every response that went through a counted check also carries
// X-RateLimit-Limit, X-RateLimit-Remaining, and X-RateLimit-Reset
// headers. Fail-open admissions omit them rather than report quota
// numbers that were never read.
//
// # Error Body
//
// Middleware that answers a request itself (429, 500, 504) uses one
// JSON shape:
//
//	{
//	  "success": false,
//	  "error": "human-readable message",
//	  "timestamp": "RFC 3339 UTC"
//	}
//
// # Context Values
//
// Middleware stores values in context for handler access:
//
//	requestID := middleware.GetRequestID(r.Context())
//	identity := middleware.GetIdentity(r.Context())
//
// # Thread Safety
//
// All middleware functions are stateless or rely on thread-safe
// dependencies and can serve concurrent requests.
package middleware
