package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"

	"crescendo-hq/turnstile/pkg/admission/policy"
)

// FieldError represents a validation error for a specific configuration
// field.
type FieldError struct {
	// Field is the dotted path to the configuration field
	// (e.g., "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a
// configuration. It implements the error interface and provides access
// to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a
// ValidationError if any validation rules fail. All validation errors
// are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateAdmission(&cfg.Admission)...)
	errs = append(errs, validateJournal(&cfg.Journal)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

// validateServer validates the server section.
func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: "listen address is required",
		})
	}

	if cfg.UpstreamURL == "" {
		errs = append(errs, FieldError{
			Field:   "server.upstream_url",
			Message: "upstream URL is required",
		})
	} else if u, err := url.Parse(cfg.UpstreamURL); err != nil {
		errs = append(errs, FieldError{
			Field:   "server.upstream_url",
			Message: fmt.Sprintf("invalid URL: %v", err),
		})
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errs = append(errs, FieldError{
			Field:   "server.upstream_url",
			Message: fmt.Sprintf("scheme must be http or https, got %q", u.Scheme),
		})
	} else if u.Host == "" {
		errs = append(errs, FieldError{
			Field:   "server.upstream_url",
			Message: "URL must include a host",
		})
	}

	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.read_timeout",
			Message: "read timeout must be positive",
		})
	}
	if cfg.ReadHeaderTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.read_header_timeout",
			Message: "read header timeout must be positive",
		})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.write_timeout",
			Message: "write timeout must be positive",
		})
	}
	if cfg.IdleTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.idle_timeout",
			Message: "idle timeout must be positive",
		})
	}
	if cfg.RequestTimeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "server.request_timeout",
			Message: "request timeout must be positive",
		})
	}

	if cfg.MaxHeaderBytes < 0 {
		errs = append(errs, FieldError{
			Field:   "server.max_header_bytes",
			Message: "max header bytes must be non-negative",
		})
	}
	if cfg.MaxHeaderBytes > 10*1024*1024 {
		errs = append(errs, FieldError{
			Field:   "server.max_header_bytes",
			Message: "max header bytes exceeds reasonable limit (10MB)",
		})
	}

	return errs
}

// validateAdmission validates the admission section, including full
// resolution of every policy reference.
func validateAdmission(cfg *AdmissionConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "memory", "redis":
	default:
		errs = append(errs, FieldError{
			Field:   "admission.backend",
			Message: fmt.Sprintf("must be %q or %q, got %q", "memory", "redis", cfg.Backend),
		})
	}

	if cfg.Memory.Shards < 0 {
		errs = append(errs, FieldError{
			Field:   "admission.memory.shards",
			Message: "shards must be non-negative",
		})
	}
	if cfg.Memory.MaxEntries < 0 {
		errs = append(errs, FieldError{
			Field:   "admission.memory.max_entries",
			Message: "max entries must be non-negative",
		})
	}

	if cfg.Backend == "redis" && cfg.Redis.Address == "" {
		errs = append(errs, FieldError{
			Field:   "admission.redis.address",
			Message: "address is required for the redis backend",
		})
	}
	if cfg.Redis.DB < 0 {
		errs = append(errs, FieldError{
			Field:   "admission.redis.db",
			Message: "db must be non-negative",
		})
	}
	if cfg.Redis.Timeout < 0 {
		errs = append(errs, FieldError{
			Field:   "admission.redis.timeout",
			Message: "timeout must be positive",
		})
	}
	if cfg.Redis.PoolSize < 0 {
		errs = append(errs, FieldError{
			Field:   "admission.redis.pool_size",
			Message: "pool size must be non-negative",
		})
	}

	errs = append(errs, validatePolicies(cfg)...)

	if cfg.TierHeader == "" {
		errs = append(errs, FieldError{
			Field:   "admission.tier_header",
			Message: "tier header is required",
		})
	}

	if cfg.Sweep.Retention <= 0 {
		errs = append(errs, FieldError{
			Field:   "admission.sweep.retention",
			Message: "retention must be positive",
		})
	}
	if cfg.Sweep.Schedule != "" {
		if err := validateSchedule(cfg.Sweep.Schedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "admission.sweep.schedule",
				Message: err.Error(),
			})
		}
	}

	return errs
}

// validatePolicies validates named policies and resolves every route,
// tier, and default reference so a bad reference is caught at load time
// rather than on the first matching request.
func validatePolicies(cfg *AdmissionConfig) []FieldError {
	var errs []FieldError

	for name, def := range cfg.Policies {
		prefix := fmt.Sprintf("admission.policies.%s", name)

		if strings.TrimSpace(name) == "" {
			errs = append(errs, FieldError{
				Field:   "admission.policies",
				Message: "policy name must not be blank",
			})
			continue
		}
		if def.Window <= 0 {
			errs = append(errs, FieldError{
				Field:   prefix + ".window",
				Message: fmt.Sprintf("window must be positive, got %v", def.Window),
			})
		}
		if def.MaxRequests <= 0 {
			errs = append(errs, FieldError{
				Field:   prefix + ".max_requests",
				Message: fmt.Sprintf("max_requests must be positive, got %d", def.MaxRequests),
			})
		}
	}

	resolved := resolvablePolicies(cfg)

	if _, err := cfg.DefaultPolicy.Resolve(resolved); err != nil {
		errs = append(errs, FieldError{
			Field:   "admission.default_policy",
			Message: err.Error(),
		})
	}

	for route, spec := range cfg.Routes {
		if !strings.HasPrefix(route, "/") {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("admission.routes.%s", route),
				Message: "route keys must start with /",
			})
		}
		if _, err := spec.Resolve(resolved); err != nil {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("admission.routes.%s", route),
				Message: err.Error(),
			})
		}
	}

	for tier, spec := range cfg.Tiers {
		if strings.TrimSpace(tier) == "" {
			errs = append(errs, FieldError{
				Field:   "admission.tiers",
				Message: "tier name must not be blank",
			})
		}
		if _, err := spec.Resolve(resolved); err != nil {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("admission.tiers.%s", tier),
				Message: err.Error(),
			})
		}
	}

	return errs
}

// validateJournal validates the journal section.
func validateJournal(cfg *JournalConfig) []FieldError {
	var errs []FieldError

	switch cfg.Mode {
	case "rejected", "all":
	default:
		errs = append(errs, FieldError{
			Field:   "journal.mode",
			Message: fmt.Sprintf("must be %q or %q, got %q", "rejected", "all", cfg.Mode),
		})
	}

	if cfg.Path == "" {
		errs = append(errs, FieldError{
			Field:   "journal.path",
			Message: "path is required",
		})
	}
	if cfg.Buffer < 0 {
		errs = append(errs, FieldError{
			Field:   "journal.buffer",
			Message: "buffer must be non-negative",
		})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "journal.write_timeout",
			Message: "write timeout must be positive",
		})
	}
	if cfg.Retention.Days < 0 {
		errs = append(errs, FieldError{
			Field:   "journal.retention.days",
			Message: "retention days must be non-negative",
		})
	}
	if cfg.Retention.MaxRecords < 0 {
		errs = append(errs, FieldError{
			Field:   "journal.retention.max_records",
			Message: "max records must be non-negative",
		})
	}
	if cfg.Retention.Schedule != "" {
		if err := validateSchedule(cfg.Retention.Schedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "journal.retention.schedule",
				Message: err.Error(),
			})
		}
	}

	return errs
}

// validateTelemetry validates the telemetry section.
func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "warning", "error", "":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("unknown log level %q", cfg.Logging.Level),
		})
	}

	switch cfg.Logging.Format {
	case "json", "text", "":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("unknown log format %q", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Path != "" && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.path",
			Message: "path must start with /",
		})
	}

	return errs
}

// validateSchedule checks a cron expression, accepting the standard
// five-field syntax and descriptors like "@every 1m".
func validateSchedule(schedule string) error {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule: %v", err)
	}
	return nil
}

// resolvablePolicies materializes the named policy set for reference
// resolution, skipping definitions that failed their own validation.
func resolvablePolicies(cfg *AdmissionConfig) map[string]policy.Policy {
	named := make(map[string]policy.Policy, len(cfg.Policies))
	for name, def := range cfg.Policies {
		if def.Window > 0 && def.MaxRequests > 0 {
			named[name] = policy.Policy{Window: def.Window, MaxRequests: def.MaxRequests}
		}
	}
	return named
}
