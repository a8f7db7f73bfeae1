package gateway

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"
)

// UpstreamProxy forwards admitted requests to the protected upstream
// service. It wraps httputil.ReverseProxy with structured error logging
// and a JSON 502 response when the upstream is unreachable.
type UpstreamProxy struct {
	target *url.URL
	proxy  *httputil.ReverseProxy
	logger *slog.Logger
}

// NewUpstreamProxy creates a reverse proxy for the given upstream URL.
// The URL must be absolute (scheme and host).
func NewUpstreamProxy(upstream string) (*UpstreamProxy, error) {
	target, err := url.Parse(upstream)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream URL %q: %w", upstream, err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("upstream URL %q must be absolute with scheme and host", upstream)
	}

	logger := slog.Default().With("component", "gateway.proxy")

	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Error("upstream request failed",
			"error", err,
			"method", r.Method,
			"path", r.URL.Path,
			"upstream", target.Host,
		)
		writeUpstreamError(w)
	}

	return &UpstreamProxy{
		target: target,
		proxy:  proxy,
		logger: logger,
	}, nil
}

// Target returns the upstream URL this proxy forwards to.
func (p *UpstreamProxy) Target() *url.URL {
	return p.target
}

// ServeHTTP implements http.Handler.
func (p *UpstreamProxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.proxy.ServeHTTP(w, r)
}

func writeUpstreamError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadGateway)

	response := map[string]interface{}{
		"success":   false,
		"error":     "Upstream service unavailable",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("failed to encode upstream error response", "error", err)
	}
}
