package gateway

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"crescendo-hq/turnstile/pkg/telemetry/health"
)

// HealthHandler answers liveness probes. It reports ok whenever the
// process is serving, regardless of backend state.
type HealthHandler struct{}

// NewHealthHandler creates a liveness probe handler.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// ServeHTTP implements http.Handler.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("failed to encode health response", "error", err)
	}
}

// ReadyHandler answers readiness probes by running the registered
// dependency checks. It reports 503 while any check fails, so
// orchestrators can hold traffic from an instance that would only
// fail open.
type ReadyHandler struct {
	checker *health.Checker
}

// NewReadyHandler creates a readiness probe handler around the given
// checker.
func NewReadyHandler(checker *health.Checker) *ReadyHandler {
	return &ReadyHandler{checker: checker}
}

// ServeHTTP implements http.Handler.
func (h *ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	report := h.checker.CheckReadiness(r.Context())

	code := http.StatusOK
	if !report.Ready() {
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(report); err != nil {
		slog.Error("failed to encode readiness response", "error", err)
	}
}
