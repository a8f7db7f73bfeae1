// Package policy defines admission policies and the lookup table that maps
// requests to them.
//
// # Overview
//
// A Policy is a fixed-window budget: at most MaxRequests admissions per
// Window. Two presets cover the common cases:
//
//   - Strict:   10 requests per minute (expensive trigger surfaces)
//   - Standard: 30 requests per minute (default for everything else)
//
// Arbitrary custom policies are supported; presets are plain values with no
// special behavior.
//
// # Lookup
//
// The Table resolves the policy for a request in fixed precedence order:
//
//  1. Route override (exact path, or prefix entries ending in "/")
//  2. Tier override (caller tier supplied by the gateway)
//  3. Default policy (Standard unless configured otherwise)
//
// A miss at every level is not an error; the default always applies.
//
// # Immutability
//
// A Table never changes after construction. Configuration reloads build a
// fresh Table and swap it in atomically, so a request observes exactly one
// consistent policy set for its whole lifetime.
package policy
