package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// envelope is the JSON body returned by middleware for requests the
// gateway answers itself instead of forwarding.
type envelope struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Timestamp string `json:"timestamp"`
}

// writeError writes a JSON error response with the given status.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(envelope{
		Success:   false,
		Error:     message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// writeRateLimited writes the 429 response for a rejected request. The
// Retry-After header carries whole seconds per RFC 9110; the gate
// already rounds the wait up, the floor here only guards direct calls.
func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	secs := int(retryAfter / time.Second)
	if secs < 1 {
		secs = 1
	}

	w.Header().Set("Retry-After", strconv.Itoa(secs))
	writeError(w, http.StatusTooManyRequests,
		fmt.Sprintf("Rate limit exceeded. Retry after %ds", secs))
}
