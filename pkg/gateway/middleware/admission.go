package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"crescendo-hq/turnstile/pkg/admission"
	"crescendo-hq/turnstile/pkg/admission/policy"
	"crescendo-hq/turnstile/pkg/identity"
	"crescendo-hq/turnstile/pkg/journal"
)

// AdmissionConfig contains the dependencies of the admission middleware.
// Gate, Resolver, and Table are required.
type AdmissionConfig struct {
	// Gate performs the admission check.
	Gate *admission.Gate

	// Resolver attributes requests to client identities.
	Resolver *identity.Resolver

	// Table returns the current policy table. Called once per request,
	// so a hot-reloaded table takes effect without restarting anything.
	Table func() *policy.Table

	// TierHeader names the request header carrying the caller's tier.
	// Empty disables tier overrides.
	TierHeader string

	// Metrics records decision and bypass counters. Optional.
	Metrics *admission.Metrics

	// Journal records decisions for audit. Optional.
	Journal *journal.Recorder
}

// AdmissionMiddleware enforces request policies before forwarding.
//
// This middleware:
//   - Resolves the client identity from the request
//   - Skips counting for bypassed identities (loopback, allow-list)
//   - Resolves the policy for the route and caller tier
//   - Checks the request against the gate and sets X-RateLimit-* headers
//   - Rejects over-quota requests with 429 and a Retry-After header
//   - Journals the decision
//
// Admitted requests continue with the identity stored in their context.
//
// Example:
//
//	handler := AdmissionMiddleware(AdmissionConfig{
//	    Gate:     gate,
//	    Resolver: resolver,
//	    Table:    func() *policy.Table { return table },
//	})(next)
func AdmissionMiddleware(cfg AdmissionConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := cfg.Resolver.Resolve(r)
			ctx := context.WithValue(r.Context(), IdentityKey, id)

			if cfg.Resolver.Bypassed(id) {
				cfg.Metrics.RecordBypass()
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			tier := ""
			if cfg.TierHeader != "" {
				tier = strings.TrimSpace(r.Header.Get(cfg.TierHeader))
			}

			lookup := cfg.Table().Resolve(r.URL.Path, tier)
			decision := cfg.Gate.Check(ctx, gateKey(lookup, id), lookup.Policy)

			cfg.Metrics.RecordDecision(string(lookup.Source), decision.Allowed)
			setAdmissionHeaders(w, decision)

			if cfg.Journal != nil {
				cfg.Journal.Submit(&journal.Record{
					RequestID:    GetRequestID(ctx),
					Route:        r.URL.Path,
					Identity:     id,
					PolicySource: string(lookup.Source),
					Limit:        decision.Limit,
					Window:       lookup.Policy.Window,
					Allowed:      decision.Allowed,
					FailedOpen:   decision.FailedOpen,
					RetryAfter:   decision.RetryAfter,
				})
			}

			if !decision.Allowed {
				writeRateLimited(w, decision.RetryAfter)
				return
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// gateKey scopes the counter to the policy layer that matched, so
// overrides never share a window. Without the scope, one client hitting
// a strict route would also burn its budget everywhere else.
func gateKey(lookup policy.Lookup, id string) string {
	switch lookup.Source {
	case policy.SourceRoute:
		return "route:" + lookup.Scope + "|" + id
	case policy.SourceTier:
		return "tier:" + lookup.Scope + "|" + id
	default:
		return "default|" + id
	}
}

// setAdmissionHeaders reports quota state to the client. Fail-open
// decisions carry no quota numbers, so they set nothing.
func setAdmissionHeaders(w http.ResponseWriter, d admission.Decision) {
	if d.FailedOpen {
		return
	}

	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))
	if !d.Reset.IsZero() {
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.Reset.Unix(), 10))
	}
}

// GetIdentity extracts the resolved client identity from the context.
// Returns empty string if the admission middleware did not run.
func GetIdentity(ctx context.Context) string {
	if id, ok := ctx.Value(IdentityKey).(string); ok {
		return id
	}
	return ""
}
