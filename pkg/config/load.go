package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified
// path. It applies default values, validates the configuration, and
// returns any errors. Environment variables are not consulted; use
// LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and
// applies environment variable overrides. Variables follow the naming
// convention TURNSTILE_SECTION_FIELD (e.g., TURNSTILE_SERVER_LISTEN_ADDRESS)
// and always take precedence over file-based configuration.
//
// The loading sequence is:
//  1. Load YAML from file
//  2. Apply default values
//  3. Apply environment variable overrides
//  4. Validate the final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the
// configuration. Variables use the format TURNSTILE_SECTION_FIELD.
func applyEnvOverrides(cfg *Config) {
	// Server overrides
	if val := os.Getenv("TURNSTILE_SERVER_LISTEN_ADDRESS"); val != "" {
		cfg.Server.ListenAddress = val
	}
	if val := os.Getenv("TURNSTILE_SERVER_UPSTREAM_URL"); val != "" {
		cfg.Server.UpstreamURL = val
	}
	if val := os.Getenv("TURNSTILE_SERVER_READ_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if val := os.Getenv("TURNSTILE_SERVER_WRITE_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}
	if val := os.Getenv("TURNSTILE_SERVER_IDLE_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.IdleTimeout = d
		}
	}
	if val := os.Getenv("TURNSTILE_SERVER_SHUTDOWN_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.ShutdownTimeout = d
		}
	}
	if val := os.Getenv("TURNSTILE_SERVER_REQUEST_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.RequestTimeout = d
		}
	}

	// Admission overrides
	if val := os.Getenv("TURNSTILE_ADMISSION_BACKEND"); val != "" {
		cfg.Admission.Backend = val
	}
	if val := os.Getenv("TURNSTILE_ADMISSION_MEMORY_SHARDS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Admission.Memory.Shards = i
		}
	}
	if val := os.Getenv("TURNSTILE_ADMISSION_MEMORY_MAX_ENTRIES"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Admission.Memory.MaxEntries = i
		}
	}
	if val := os.Getenv("TURNSTILE_ADMISSION_REDIS_ADDRESS"); val != "" {
		cfg.Admission.Redis.Address = val
	}
	if val := os.Getenv("TURNSTILE_ADMISSION_REDIS_PASSWORD"); val != "" {
		cfg.Admission.Redis.Password = val
	}
	if val := os.Getenv("TURNSTILE_ADMISSION_REDIS_DB"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Admission.Redis.DB = i
		}
	}
	if val := os.Getenv("TURNSTILE_ADMISSION_REDIS_KEY_PREFIX"); val != "" {
		cfg.Admission.Redis.KeyPrefix = val
	}
	if val := os.Getenv("TURNSTILE_ADMISSION_REDIS_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Admission.Redis.Timeout = d
		}
	}
	if val := os.Getenv("TURNSTILE_ADMISSION_TIER_HEADER"); val != "" {
		cfg.Admission.TierHeader = val
	}
	if val := os.Getenv("TURNSTILE_ADMISSION_IDENTITY_HEADER"); val != "" {
		cfg.Admission.Identity.Header = val
	}
	if val := os.Getenv("TURNSTILE_ADMISSION_IDENTITY_TRUST_FORWARDED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Admission.Identity.TrustForwarded = &b
		}
	}
	if val := os.Getenv("TURNSTILE_ADMISSION_SWEEP_SCHEDULE"); val != "" {
		cfg.Admission.Sweep.Schedule = val
	}
	if val := os.Getenv("TURNSTILE_ADMISSION_SWEEP_RETENTION"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Admission.Sweep.Retention = d
		}
	}
	if val := os.Getenv("TURNSTILE_ADMISSION_WATCH"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Admission.Watch = b
		}
	}

	// Journal overrides
	if val := os.Getenv("TURNSTILE_JOURNAL_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Journal.Enabled = &b
		}
	}
	if val := os.Getenv("TURNSTILE_JOURNAL_MODE"); val != "" {
		cfg.Journal.Mode = val
	}
	if val := os.Getenv("TURNSTILE_JOURNAL_PATH"); val != "" {
		cfg.Journal.Path = val
	}
	if val := os.Getenv("TURNSTILE_JOURNAL_BUFFER"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Journal.Buffer = i
		}
	}
	if val := os.Getenv("TURNSTILE_JOURNAL_RETENTION_DAYS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Journal.Retention.Days = i
		}
	}
	if val := os.Getenv("TURNSTILE_JOURNAL_RETENTION_MAX_RECORDS"); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			cfg.Journal.Retention.MaxRecords = i
		}
	}
	if val := os.Getenv("TURNSTILE_JOURNAL_RETENTION_SCHEDULE"); val != "" {
		cfg.Journal.Retention.Schedule = val
	}

	// Telemetry overrides
	if val := os.Getenv("TURNSTILE_TELEMETRY_LOGGING_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("TURNSTILE_TELEMETRY_LOGGING_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
	if val := os.Getenv("TURNSTILE_TELEMETRY_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Metrics.Enabled = &b
		}
	}
	if val := os.Getenv("TURNSTILE_TELEMETRY_METRICS_PATH"); val != "" {
		cfg.Telemetry.Metrics.Path = val
	}
}
