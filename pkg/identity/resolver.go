package identity

import (
	"net"
	"net/http"
	"strings"
)

// Unknown is the sentinel identity for requests whose origin cannot be
// determined. Such requests share one budget rather than escaping limits.
const Unknown = "unknown"

// Resolver attributes requests to identity strings and answers bypass
// queries. Immutable after construction and safe for concurrent use.
type Resolver struct {
	header         string
	trustForwarded bool
	bypass         map[string]struct{}
}

// Config contains configuration for the resolver.
type Config struct {
	// Header names a request header whose non-blank value is taken as the
	// identity outright (e.g. "X-API-Key"). Optional.
	Header string

	// TrustForwarded enables resolution from the first X-Forwarded-For
	// entry. Enable only behind a proxy you control.
	TrustForwarded bool

	// Bypass lists identities exempt from limiting, matched exactly.
	// Loopback addresses are always exempt regardless of this list.
	Bypass []string
}

// NewResolver creates a resolver with the given configuration.
func NewResolver(cfg Config) *Resolver {
	bypass := make(map[string]struct{}, len(cfg.Bypass))
	for _, id := range cfg.Bypass {
		id = strings.TrimSpace(id)
		if id != "" {
			bypass[id] = struct{}{}
		}
	}

	return &Resolver{
		header:         cfg.Header,
		trustForwarded: cfg.TrustForwarded,
		bypass:         bypass,
	}
}

// Resolve returns the identity of req. It never returns an empty string;
// requests with no usable origin resolve to Unknown.
func (r *Resolver) Resolve(req *http.Request) string {
	if req == nil {
		return Unknown
	}

	if r.header != "" {
		if v := strings.TrimSpace(req.Header.Get(r.header)); v != "" {
			return v
		}
	}

	if r.trustForwarded {
		// The first chain entry is the original client. A chain that is
		// present but blank resolves to the sentinel, not the peer address.
		if chain, ok := req.Header["X-Forwarded-For"]; ok && len(chain) > 0 {
			first, _, _ := strings.Cut(chain[0], ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
			return Unknown
		}
	}

	if host, _, err := net.SplitHostPort(strings.TrimSpace(req.RemoteAddr)); err == nil && host != "" {
		return host
	}
	if addr := strings.TrimSpace(req.RemoteAddr); addr != "" {
		return addr
	}

	return Unknown
}

// Bypassed reports whether id is exempt from admission control.
func (r *Resolver) Bypassed(id string) bool {
	if _, ok := r.bypass[id]; ok {
		return true
	}
	if ip := net.ParseIP(id); ip != nil && ip.IsLoopback() {
		return true
	}
	return false
}
