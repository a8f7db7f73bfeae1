// Package health runs named readiness checks against the gateway's
// dependencies. The gateway is live as long as the process serves; it
// is ready only while every registered dependency check passes, so an
// instance that could only fail open is held out of rotation.
package health

import (
	"context"
	"sync"
	"time"
)

// CheckFunc probes one dependency. It returns nil when the dependency
// is healthy, or an error describing the problem.
type CheckFunc func(ctx context.Context) error

// CheckResult is the outcome of a single dependency check.
type CheckResult struct {
	// Status is "ok" or "unhealthy".
	Status string `json:"status"`

	// Message carries the error for unhealthy checks.
	Message string `json:"message,omitempty"`

	// DurationMS is how long the check took, in milliseconds.
	DurationMS int64 `json:"duration_ms"`
}

// Report aggregates all dependency checks into one readiness answer.
type Report struct {
	// Status is "ready" when every check passed, "not_ready" otherwise.
	Status string `json:"status"`

	// Checks holds the per-dependency results.
	Checks map[string]CheckResult `json:"checks"`

	// Timestamp is when the report was produced, as a Unix timestamp.
	Timestamp int64 `json:"timestamp"`
}

// Ready reports whether every check passed.
func (r Report) Ready() bool {
	return r.Status == "ready"
}

// Checker runs registered dependency checks with a per-check timeout.
type Checker struct {
	mu     sync.RWMutex
	checks map[string]CheckFunc

	checkTimeout time.Duration
}

// New creates a checker. A zero timeout defaults to 2 seconds per
// check, which keeps readiness probes fast even when a dependency hangs.
func New(checkTimeout time.Duration) *Checker {
	if checkTimeout <= 0 {
		checkTimeout = 2 * time.Second
	}

	return &Checker{
		checks:       make(map[string]CheckFunc),
		checkTimeout: checkTimeout,
	}
}

// RegisterCheck registers a dependency check under a name. Registering
// the same name again replaces the previous check.
func (c *Checker) RegisterCheck(name string, check CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.checks[name] = check
}

// CheckReadiness runs every registered check concurrently and
// aggregates the results. With no checks registered the gateway is
// ready by definition.
func (c *Checker) CheckReadiness(ctx context.Context) Report {
	c.mu.RLock()
	checks := make(map[string]CheckFunc, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	c.mu.RUnlock()

	report := Report{
		Status:    "ready",
		Checks:    make(map[string]CheckResult, len(checks)),
		Timestamp: time.Now().Unix(),
	}
	if len(checks) == 0 {
		return report
	}

	var resultMu sync.Mutex
	var wg sync.WaitGroup

	for name, check := range checks {
		wg.Add(1)
		go func(name string, check CheckFunc) {
			defer wg.Done()

			result := c.runCheck(ctx, check)

			resultMu.Lock()
			report.Checks[name] = result
			resultMu.Unlock()
		}(name, check)
	}

	wg.Wait()

	for _, result := range report.Checks {
		if result.Status != "ok" {
			report.Status = "not_ready"
		}
	}

	return report
}

// runCheck executes a single check, bounding it with the per-check
// timeout even when the check function ignores its context.
func (c *Checker) runCheck(ctx context.Context, check CheckFunc) CheckResult {
	checkCtx, cancel := context.WithTimeout(ctx, c.checkTimeout)
	defer cancel()

	start := time.Now()

	errChan := make(chan error, 1)
	go func() {
		errChan <- check(checkCtx)
	}()

	select {
	case err := <-errChan:
		duration := time.Since(start)
		if err != nil {
			return CheckResult{
				Status:     "unhealthy",
				Message:    err.Error(),
				DurationMS: duration.Milliseconds(),
			}
		}
		return CheckResult{
			Status:     "ok",
			DurationMS: duration.Milliseconds(),
		}

	case <-checkCtx.Done():
		return CheckResult{
			Status:     "unhealthy",
			Message:    "health check timeout",
			DurationMS: time.Since(start).Milliseconds(),
		}
	}
}
