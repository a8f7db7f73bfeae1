package config

import (
	"time"

	"crescendo-hq/turnstile/pkg/admission/policy"
)

// ConfigBuilder provides a fluent API for building Config instances in tests.
// It starts with default values and allows selective overrides.
type ConfigBuilder struct {
	cfg Config
}

// NewTestConfig creates a new ConfigBuilder with sensible defaults for testing.
// The resulting configuration is valid and can be used immediately.
func NewTestConfig() *ConfigBuilder {
	cfg := Config{}
	ApplyDefaults(&cfg)

	// The upstream URL has no default and is required
	cfg.Server.UpstreamURL = "http://127.0.0.1:9000"

	return &ConfigBuilder{cfg: cfg}
}

// Build returns the built Config instance.
func (b *ConfigBuilder) Build() *Config {
	return &b.cfg
}

// WithListenAddress sets the server listen address.
func (b *ConfigBuilder) WithListenAddress(addr string) *ConfigBuilder {
	b.cfg.Server.ListenAddress = addr
	return b
}

// WithUpstreamURL sets the upstream URL.
func (b *ConfigBuilder) WithUpstreamURL(u string) *ConfigBuilder {
	b.cfg.Server.UpstreamURL = u
	return b
}

// WithBackend sets the entry store backend.
func (b *ConfigBuilder) WithBackend(backend string) *ConfigBuilder {
	b.cfg.Admission.Backend = backend
	return b
}

// WithRedisAddress sets the Redis address and switches to the redis backend.
func (b *ConfigBuilder) WithRedisAddress(addr string) *ConfigBuilder {
	b.cfg.Admission.Backend = "redis"
	b.cfg.Admission.Redis.Address = addr
	return b
}

// WithPolicy adds or updates a named policy definition.
func (b *ConfigBuilder) WithPolicy(name string, window time.Duration, maxRequests int) *ConfigBuilder {
	if b.cfg.Admission.Policies == nil {
		b.cfg.Admission.Policies = make(map[string]PolicyDef)
	}
	b.cfg.Admission.Policies[name] = PolicyDef{Window: window, MaxRequests: maxRequests}
	return b
}

// WithDefaultPolicy sets the default policy by name.
func (b *ConfigBuilder) WithDefaultPolicy(name string) *ConfigBuilder {
	b.cfg.Admission.DefaultPolicy = policy.Spec{Name: name}
	return b
}

// WithRoute maps a route key to a policy by name.
func (b *ConfigBuilder) WithRoute(route, policyName string) *ConfigBuilder {
	if b.cfg.Admission.Routes == nil {
		b.cfg.Admission.Routes = make(map[string]policy.Spec)
	}
	b.cfg.Admission.Routes[route] = policy.Spec{Name: policyName}
	return b
}

// WithInlineRoute maps a route key to an inline policy.
func (b *ConfigBuilder) WithInlineRoute(route string, window time.Duration, maxRequests int) *ConfigBuilder {
	if b.cfg.Admission.Routes == nil {
		b.cfg.Admission.Routes = make(map[string]policy.Spec)
	}
	b.cfg.Admission.Routes[route] = policy.Spec{
		Inline: &policy.Policy{Window: window, MaxRequests: maxRequests},
	}
	return b
}

// WithTier maps a caller tier to a policy by name.
func (b *ConfigBuilder) WithTier(tier, policyName string) *ConfigBuilder {
	if b.cfg.Admission.Tiers == nil {
		b.cfg.Admission.Tiers = make(map[string]policy.Spec)
	}
	b.cfg.Admission.Tiers[tier] = policy.Spec{Name: policyName}
	return b
}

// WithIdentityHeader sets the identity header name.
func (b *ConfigBuilder) WithIdentityHeader(header string) *ConfigBuilder {
	b.cfg.Admission.Identity.Header = header
	return b
}

// WithTrustForwarded sets whether X-Forwarded-For is honored.
func (b *ConfigBuilder) WithTrustForwarded(trust bool) *ConfigBuilder {
	b.cfg.Admission.Identity.TrustForwarded = boolPtr(trust)
	return b
}

// WithWatch sets whether the configuration file is watched for changes.
func (b *ConfigBuilder) WithWatch(watch bool) *ConfigBuilder {
	b.cfg.Admission.Watch = watch
	return b
}

// WithJournalEnabled sets whether decisions are journaled.
func (b *ConfigBuilder) WithJournalEnabled(enabled bool) *ConfigBuilder {
	b.cfg.Journal.Enabled = boolPtr(enabled)
	return b
}

// WithJournalPath sets the journal database path.
func (b *ConfigBuilder) WithJournalPath(path string) *ConfigBuilder {
	b.cfg.Journal.Path = path
	return b
}

// WithJournalMode sets which decisions are journaled.
func (b *ConfigBuilder) WithJournalMode(mode string) *ConfigBuilder {
	b.cfg.Journal.Mode = mode
	return b
}

// WithLoggingLevel sets the logging level.
func (b *ConfigBuilder) WithLoggingLevel(level string) *ConfigBuilder {
	b.cfg.Telemetry.Logging.Level = level
	return b
}

// WithLoggingFormat sets the logging format.
func (b *ConfigBuilder) WithLoggingFormat(format string) *ConfigBuilder {
	b.cfg.Telemetry.Logging.Format = format
	return b
}

// WithMetricsEnabled sets whether the metrics endpoint is served.
func (b *ConfigBuilder) WithMetricsEnabled(enabled bool) *ConfigBuilder {
	b.cfg.Telemetry.Metrics.Enabled = boolPtr(enabled)
	return b
}

// MinimalConfig returns a minimal valid configuration for testing.
// This is useful for tests that don't care about most configuration values.
func MinimalConfig() *Config {
	return NewTestConfig().Build()
}

// inlineSpec builds an inline policy spec.
func inlineSpec(window time.Duration, maxRequests int) policy.Spec {
	return policy.Spec{Inline: &policy.Policy{Window: window, MaxRequests: maxRequests}}
}
