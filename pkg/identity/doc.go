// Package identity resolves the rate-limiting identity of an HTTP request.
//
// # Overview
//
// Every request is attributed to exactly one identity string before the
// admission gate sees it. Resolution follows a fixed precedence:
//
//  1. A configured identity header (e.g. X-API-Key), when present
//  2. The first entry of the X-Forwarded-For chain, when trusted
//  3. The transport peer address
//  4. The "unknown" sentinel
//
// Resolution never fails and never yields an empty string: callers that
// strip or garble their headers simply share the sentinel's budget instead
// of escaping limiting or causing errors.
//
// # Forwarded chains
//
// The first X-Forwarded-For entry is the original client as recorded by the
// outermost proxy. Trusting it only makes sense when that proxy is yours;
// deployments exposed directly to the internet should leave TrustForwarded
// off, since clients can send the header themselves.
//
// # Bypass
//
// The resolver also answers whether an identity is exempt from limiting.
// Loopback addresses are always exempt so health probes and sidecars cannot
// be throttled; the configured bypass list adds exact-match identities on
// top.
package identity
