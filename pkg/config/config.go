package config

import (
	"fmt"
	"time"

	"crescendo-hq/turnstile/pkg/admission/policy"
)

// Config is the root configuration structure for Turnstile. It contains
// the server, admission, journal, and telemetry sections.
type Config struct {
	// Server contains HTTP server configuration including listen address,
	// upstream target, timeouts, and CORS.
	Server ServerConfig `yaml:"server"`

	// Admission contains the rate limiting configuration: entry store
	// backend, policies, identity resolution, and sweeping.
	Admission AdmissionConfig `yaml:"admission"`

	// Journal contains the decision journal configuration.
	Journal JournalConfig `yaml:"journal"`

	// Telemetry contains logging and metrics configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Format: "host:port" (e.g., "127.0.0.1:8080", "0.0.0.0:8080").
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// UpstreamURL is the absolute URL of the protected upstream service
	// that admitted requests are forwarded to. Required.
	// Example: "http://127.0.0.1:9000"
	UpstreamURL string `yaml:"upstream_url"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// ReadHeaderTimeout is the maximum duration for reading request headers.
	// Default: 10s
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response.
	// Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request
	// when keep-alives are enabled.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown
	// before in-flight requests are dropped.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// RequestTimeout bounds each proxied request end to end. Requests that
	// exceed it receive 504.
	// Default: 60s
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// MaxHeaderBytes controls the maximum number of bytes the server will
	// read parsing request headers.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// CORS contains Cross-Origin Resource Sharing configuration.
	CORS CORSConfig `yaml:"cors"`
}

// CORSConfig contains CORS (Cross-Origin Resource Sharing) configuration.
type CORSConfig struct {
	// Enabled controls whether CORS headers are emitted.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// AllowedOrigins is a list of allowed origins for CORS requests.
	// Use ["*"] to allow all origins.
	// Default: ["*"]
	AllowedOrigins []string `yaml:"allowed_origins"`

	// AllowedMethods is a list of allowed HTTP methods for CORS requests.
	// Default: ["GET", "POST", "PUT", "DELETE", "OPTIONS"]
	AllowedMethods []string `yaml:"allowed_methods"`

	// AllowedHeaders is a list of allowed HTTP headers for CORS requests.
	// Default: ["Authorization", "Content-Type", "X-Request-ID"]
	AllowedHeaders []string `yaml:"allowed_headers"`

	// ExposedHeaders is a list of headers exposed to the client.
	// Default: ["X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining",
	// "X-RateLimit-Reset", "Retry-After"]
	ExposedHeaders []string `yaml:"exposed_headers"`

	// MaxAge is the maximum age (in seconds) for preflight request caching.
	// Default: 3600
	MaxAge int `yaml:"max_age"`

	// AllowCredentials controls whether credentials are allowed in CORS
	// requests.
	// Default: false
	AllowCredentials bool `yaml:"allow_credentials"`
}

// AdmissionConfig contains the rate limiting configuration.
type AdmissionConfig struct {
	// Backend selects the entry store: "memory" (in-process) or "redis"
	// (shared across instances).
	// Default: "memory"
	Backend string `yaml:"backend"`

	// Memory configures the in-process entry store. Used when Backend is
	// "memory".
	Memory MemoryBackendConfig `yaml:"memory"`

	// Redis configures the Redis entry store. Used when Backend is "redis".
	Redis RedisBackendConfig `yaml:"redis"`

	// Policies defines named policies that routes, tiers, and the default
	// may reference alongside the built-in "strict" and "standard" presets.
	Policies map[string]PolicyDef `yaml:"policies"`

	// DefaultPolicy applies when no route or tier override matches. A name
	// or an inline {window, max_requests} mapping.
	// Default: "standard"
	DefaultPolicy policy.Spec `yaml:"default_policy"`

	// Routes maps route keys to policies. Keys ending in "/" match any
	// deeper path by prefix; all other keys match exactly.
	Routes map[string]policy.Spec `yaml:"routes"`

	// Tiers maps caller tier names to policies. The tier is read from the
	// TierHeader request header.
	Tiers map[string]policy.Spec `yaml:"tiers"`

	// TierHeader names the request header carrying the caller tier.
	// Default: "X-Tier"
	TierHeader string `yaml:"tier_header"`

	// Identity configures how requests are attributed to identifiers.
	Identity IdentityConfig `yaml:"identity"`

	// Sweep configures eviction of idle entries from the store.
	Sweep SweepConfig `yaml:"sweep"`

	// Watch enables hot reloading of the policy table when the
	// configuration file changes. A reload that fails validation keeps the
	// running table.
	// Default: false
	Watch bool `yaml:"watch"`
}

// PolicyDef is an inline policy definition for the named policy set.
type PolicyDef struct {
	// Window is the length of the counting window. Must be > 0.
	Window time.Duration `yaml:"window"`

	// MaxRequests is the number of admissions allowed per window. Must be > 0.
	MaxRequests int `yaml:"max_requests"`
}

// MemoryBackendConfig configures the in-process entry store.
type MemoryBackendConfig struct {
	// Shards is the number of map shards. Zero means the store default (16).
	Shards int `yaml:"shards"`

	// MaxEntries is the maximum number of tracked identifiers. Zero means
	// the store default (100000).
	MaxEntries int `yaml:"max_entries"`
}

// RedisBackendConfig configures the Redis entry store.
type RedisBackendConfig struct {
	// Address is the Redis server address ("host:port"). Required when the
	// backend is "redis".
	// Default: "127.0.0.1:6379"
	Address string `yaml:"address"`

	// Password authenticates against the Redis server. Optional.
	Password string `yaml:"password"`

	// DB is the Redis database number.
	// Default: 0
	DB int `yaml:"db"`

	// KeyPrefix namespaces this limiter's keys.
	// Default: "turnstile:"
	KeyPrefix string `yaml:"key_prefix"`

	// Timeout bounds each Redis call. A call that exceeds it fails open.
	// Default: 150ms
	Timeout time.Duration `yaml:"timeout"`

	// PoolSize is the connection pool size. Zero means the client default.
	PoolSize int `yaml:"pool_size"`
}

// IdentityConfig configures request identity resolution.
type IdentityConfig struct {
	// Header names a request header whose non-blank value is taken as the
	// identity outright (e.g. "X-API-Key"). Optional.
	Header string `yaml:"header"`

	// TrustForwarded enables resolution from the first X-Forwarded-For
	// entry. Disable when Turnstile is directly reachable by clients.
	// Default: true
	TrustForwarded *bool `yaml:"trust_forwarded"`

	// Bypass lists identities exempt from limiting, matched exactly.
	// Loopback addresses are always exempt regardless of this list.
	Bypass []string `yaml:"bypass"`
}

// SweepConfig configures eviction of idle entries from the entry store.
type SweepConfig struct {
	// Schedule is a cron expression for sweep runs. Supports the standard
	// five-field syntax plus descriptors like "@every 1m".
	// Default: "@every 1m"
	Schedule string `yaml:"schedule"`

	// Retention is how long an entry may sit idle before eviction. Must
	// comfortably exceed the longest configured policy window.
	// Default: 10m
	Retention time.Duration `yaml:"retention"`
}

// JournalConfig contains the decision journal configuration.
type JournalConfig struct {
	// Enabled controls whether decisions are journaled at all.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// Mode selects which decisions are journaled: "rejected" (rejections
	// and failed-open admissions) or "all".
	// Default: "rejected"
	Mode string `yaml:"mode"`

	// Path is the SQLite database file for the journal.
	// Default: "data/journal.db"
	Path string `yaml:"path"`

	// Buffer is the size of the asynchronous write buffer. Records
	// submitted while the buffer is full are dropped and counted.
	// Default: 1000
	Buffer int `yaml:"buffer"`

	// WriteTimeout bounds each journal write.
	// Default: 5s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// Retention configures pruning of old journal records.
	Retention JournalRetentionConfig `yaml:"retention"`
}

// JournalRetentionConfig configures journal pruning.
type JournalRetentionConfig struct {
	// Days is how many days of records to keep.
	// Default: 7
	Days int `yaml:"days"`

	// MaxRecords caps the journal size by record count. Zero disables the
	// count cap.
	// Default: 0
	MaxRecords int64 `yaml:"max_records"`

	// Schedule is a cron expression for prune runs.
	// Default: "0 3 * * *" (daily at 03:00)
	Schedule string `yaml:"schedule"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging contains structured logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains Prometheus metrics configuration.
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains structured logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level ("debug", "info", "warn", "error").
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the log output format ("json", "text").
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in every record.
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled controls whether the metrics endpoint is served.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// Path is the HTTP path of the metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`
}

// BuildTable resolves the admission section into an immutable policy
// table: named policies are materialized, then the default, route, and
// tier references are resolved against them and the built-in presets.
func (c *AdmissionConfig) BuildTable() (*policy.Table, error) {
	named := make(map[string]policy.Policy, len(c.Policies))
	for name, def := range c.Policies {
		p := policy.Policy{Window: def.Window, MaxRequests: def.MaxRequests}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("policy %q: %w", name, err)
		}
		named[name] = p
	}

	fallback, err := c.DefaultPolicy.Resolve(named)
	if err != nil {
		return nil, fmt.Errorf("default policy: %w", err)
	}

	routes := make(map[string]policy.Policy, len(c.Routes))
	for route, spec := range c.Routes {
		p, err := spec.Resolve(named)
		if err != nil {
			return nil, fmt.Errorf("route %q: %w", route, err)
		}
		routes[route] = p
	}

	tiers := make(map[string]policy.Policy, len(c.Tiers))
	for tier, spec := range c.Tiers {
		p, err := spec.Resolve(named)
		if err != nil {
			return nil, fmt.Errorf("tier %q: %w", tier, err)
		}
		tiers[tier] = p
	}

	return policy.NewTable(policy.TableConfig{
		Default: fallback,
		Routes:  routes,
		Tiers:   tiers,
	})
}
