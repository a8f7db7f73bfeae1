package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress     = "127.0.0.1:8080"
	DefaultReadTimeout       = 30 * time.Second
	DefaultReadHeaderTimeout = 10 * time.Second
	DefaultWriteTimeout      = 30 * time.Second
	DefaultIdleTimeout       = 120 * time.Second
	DefaultShutdownTimeout   = 30 * time.Second
	DefaultRequestTimeout    = 60 * time.Second
	DefaultMaxHeaderBytes    = 1048576 // 1MB

	// CORS defaults
	DefaultCORSEnabled = true
	DefaultCORSMaxAge  = 3600 // 1 hour

	// Admission defaults
	DefaultBackend        = "memory"
	DefaultRedisAddress   = "127.0.0.1:6379"
	DefaultRedisKeyPrefix = "turnstile:"
	DefaultRedisTimeout   = 150 * time.Millisecond
	DefaultPolicyName     = "standard"
	DefaultTierHeader     = "X-Tier"
	DefaultTrustForwarded = true
	DefaultSweepSchedule  = "@every 1m"
	DefaultSweepRetention = 10 * time.Minute

	// Journal defaults
	DefaultJournalEnabled           = true
	DefaultJournalMode              = "rejected"
	DefaultJournalPath              = "data/journal.db"
	DefaultJournalBuffer            = 1000
	DefaultJournalWriteTimeout      = 5 * time.Second
	DefaultJournalRetentionDays     = 7
	DefaultJournalRetentionSchedule = "0 3 * * *"

	// Telemetry defaults
	DefaultLoggingLevel   = "info"
	DefaultLoggingFormat  = "json"
	DefaultMetricsEnabled = true
	DefaultMetricsPath    = "/metrics"
)

// ApplyDefaults applies default values to a Config struct. It sets
// defaults for any fields that have zero values. Idempotent and safe to
// call multiple times.
func ApplyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.ReadHeaderTimeout == 0 {
		cfg.Server.ReadHeaderTimeout = DefaultReadHeaderTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = DefaultMaxHeaderBytes
	}

	// CORS defaults
	if cfg.Server.CORS.Enabled == nil {
		cfg.Server.CORS.Enabled = boolPtr(DefaultCORSEnabled)
	}
	if len(cfg.Server.CORS.AllowedOrigins) == 0 {
		cfg.Server.CORS.AllowedOrigins = []string{"*"}
	}
	if len(cfg.Server.CORS.AllowedMethods) == 0 {
		cfg.Server.CORS.AllowedMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	}
	if len(cfg.Server.CORS.AllowedHeaders) == 0 {
		cfg.Server.CORS.AllowedHeaders = []string{"Authorization", "Content-Type", "X-Request-ID"}
	}
	if len(cfg.Server.CORS.ExposedHeaders) == 0 {
		cfg.Server.CORS.ExposedHeaders = []string{
			"X-Request-ID",
			"X-RateLimit-Limit",
			"X-RateLimit-Remaining",
			"X-RateLimit-Reset",
			"Retry-After",
		}
	}
	if cfg.Server.CORS.MaxAge == 0 {
		cfg.Server.CORS.MaxAge = DefaultCORSMaxAge
	}

	// Admission defaults
	if cfg.Admission.Backend == "" {
		cfg.Admission.Backend = DefaultBackend
	}
	if cfg.Admission.Redis.Address == "" {
		cfg.Admission.Redis.Address = DefaultRedisAddress
	}
	if cfg.Admission.Redis.KeyPrefix == "" {
		cfg.Admission.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}
	if cfg.Admission.Redis.Timeout == 0 {
		cfg.Admission.Redis.Timeout = DefaultRedisTimeout
	}
	if cfg.Admission.DefaultPolicy.Name == "" && cfg.Admission.DefaultPolicy.Inline == nil {
		cfg.Admission.DefaultPolicy.Name = DefaultPolicyName
	}
	if cfg.Admission.TierHeader == "" {
		cfg.Admission.TierHeader = DefaultTierHeader
	}
	if cfg.Admission.Identity.TrustForwarded == nil {
		cfg.Admission.Identity.TrustForwarded = boolPtr(DefaultTrustForwarded)
	}
	if cfg.Admission.Sweep.Schedule == "" {
		cfg.Admission.Sweep.Schedule = DefaultSweepSchedule
	}
	if cfg.Admission.Sweep.Retention == 0 {
		cfg.Admission.Sweep.Retention = DefaultSweepRetention
	}

	// Journal defaults
	if cfg.Journal.Enabled == nil {
		cfg.Journal.Enabled = boolPtr(DefaultJournalEnabled)
	}
	if cfg.Journal.Mode == "" {
		cfg.Journal.Mode = DefaultJournalMode
	}
	if cfg.Journal.Path == "" {
		cfg.Journal.Path = DefaultJournalPath
	}
	if cfg.Journal.Buffer == 0 {
		cfg.Journal.Buffer = DefaultJournalBuffer
	}
	if cfg.Journal.WriteTimeout == 0 {
		cfg.Journal.WriteTimeout = DefaultJournalWriteTimeout
	}
	if cfg.Journal.Retention.Days == 0 {
		cfg.Journal.Retention.Days = DefaultJournalRetentionDays
	}
	if cfg.Journal.Retention.Schedule == "" {
		cfg.Journal.Retention.Schedule = DefaultJournalRetentionSchedule
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Enabled == nil {
		cfg.Telemetry.Metrics.Enabled = boolPtr(DefaultMetricsEnabled)
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
}

// boolPtr is used for defaulting *bool fields, which distinguish an
// explicit false from an unset value.
func boolPtr(b bool) *bool {
	return &b
}
