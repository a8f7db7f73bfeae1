package admission

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"crescendo-hq/turnstile/pkg/admission/policy"
	"crescendo-hq/turnstile/pkg/admission/storage"
)

// unknownIdentifier stands in when a caller passes an empty identifier.
// The HTTP layer resolves its own sentinel before reaching the gate; this
// covers direct library use.
const unknownIdentifier = "unknown"

// Gate performs fixed-window admission checks against an entry store.
//
// A single Gate serves all identifiers and policies; per-identifier state
// lives in the store. Construct one per process and share it.
type Gate struct {
	backend storage.Backend
	metrics *Metrics
	logger  *slog.Logger

	// faultLog throttles store-fault logging during outages.
	faultLog *rate.Limiter
}

// Config contains configuration for the admission gate.
type Config struct {
	// Backend stores per-identifier window state.
	// Default: storage.NewMemoryBackend()
	Backend storage.Backend

	// Metrics receives check and failure counters. Optional.
	Metrics *Metrics

	// Logger for store faults.
	// Default: slog.Default()
	Logger *slog.Logger
}

// NewGate creates a gate backed by an in-process entry store.
func NewGate() *Gate {
	return NewGateWithConfig(Config{})
}

// NewGateWithConfig creates a gate with custom configuration.
func NewGateWithConfig(cfg Config) *Gate {
	if cfg.Backend == nil {
		cfg.Backend = storage.NewMemoryBackend()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Gate{
		backend:  cfg.Backend,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger.With("component", "admission.gate"),
		faultLog: rate.NewLimiter(rate.Every(10*time.Second), 1),
	}
}

// Check performs one admission check for identifier under pol.
//
// The check is atomic per identifier: concurrent callers with the same
// identifier observe a consistent counter and never over-admit. Rejections
// carry a positive RetryAfter in whole seconds; admissions carry the
// remaining quota and the window reset time.
//
// Check never returns an error. If the entry store is unreachable the
// request is admitted with FailedOpen set; rate limiting degrades before
// the gated surface does.
func (g *Gate) Check(ctx context.Context, identifier string, pol policy.Policy) Decision {
	if identifier == "" {
		identifier = unknownIdentifier
	}

	start := time.Now()
	out, err := g.backend.CheckAndIncrement(ctx, identifier, pol.MaxRequests, pol.Window)
	if err != nil {
		g.metrics.RecordStoreFailure()
		if g.faultLog.Allow() {
			g.logger.Warn("entry store unavailable, admitting request",
				"error", err,
				"policy", pol.String(),
			)
		}
		return Decision{
			Allowed:    true,
			Limit:      pol.MaxRequests,
			FailedOpen: true,
		}
	}

	g.metrics.RecordCheck(out.Allowed, time.Since(start))

	d := Decision{
		Allowed:   out.Allowed,
		Limit:     pol.MaxRequests,
		Remaining: int64(pol.MaxRequests) - out.Count,
		Reset:     time.Now().Add(out.ResetAfter),
	}
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	if !out.Allowed {
		d.RetryAfter = ceilSeconds(out.ResetAfter)
	}

	return d
}

// Backend returns the gate's entry store, for readiness checks and sweeping.
func (g *Gate) Backend() storage.Backend {
	return g.backend
}

// Close releases the underlying entry store.
func (g *Gate) Close() error {
	return g.backend.Close()
}

// ceilSeconds rounds d up to a whole second, with a 1s floor so a rejection
// never advises an instant retry.
func ceilSeconds(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Second
	}
	secs := (d + time.Second - 1) / time.Second
	return secs * time.Second
}
