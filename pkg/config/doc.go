// Package config provides configuration management for Turnstile.
//
// This package handles loading, validating, and managing configuration from
// YAML files with environment variable overrides. It provides a type-safe
// configuration system with comprehensive validation and sensible defaults.
//
// # Configuration Loading
//
// Configuration can be loaded in two ways:
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("config.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("config.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention TURNSTILE_SECTION_FIELD.
// For example:
//
//   - TURNSTILE_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - TURNSTILE_ADMISSION_REDIS_ADDRESS overrides admission.redis.address
//   - TURNSTILE_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// Environment variables always take precedence over file-based configuration.
//
// # Configuration Precedence
//
// Configuration values are applied in the following order (later overrides earlier):
//
//  1. Default values (defined in defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Hot Reload
//
// The Watcher observes the configuration file and invokes a reload callback
// after each debounced change:
//
//	watcher, err := config.NewWatcher("config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	go watcher.Watch(ctx, func() error {
//	    cfg, err := config.LoadConfigWithEnvOverrides("config.yaml")
//	    if err != nil {
//	        return err
//	    }
//	    return srv.ApplyPolicies(cfg)
//	})
//
// A reload that fails to load or validate keeps the previous configuration
// in effect.
//
// # Validation
//
// All configuration is validated automatically during loading. Validation includes:
//
//   - Required field checks (e.g., upstream URL, journal path)
//   - Range validation (e.g., buffer sizes, retention periods)
//   - Format validation (e.g., valid URL format, cron schedules)
//   - Referential validation (e.g., routes naming a policy that exists)
//
// Validation errors include field paths and helpful messages:
//
//	configuration validation failed with 2 errors:
//	  - server.upstream_url: field is required
//	  - admission.routes./api/search: references unknown policy "burst"
//
// # Example Configuration
//
// Here is a minimal configuration file:
//
//	server:
//	  listen_address: "127.0.0.1:8080"
//	  upstream_url: "http://127.0.0.1:9000"
//
//	admission:
//	  backend: "memory"
//	  policies:
//	    search:
//	      window: 1m
//	      max_requests: 120
//	  default_policy: "standard"
//	  routes:
//	    "/api/search": "search"
//
//	journal:
//	  enabled: true
//	  path: "data/journal.db"
//
//	telemetry:
//	  logging:
//	    level: "info"
//	    format: "json"
//
// # Thread Safety
//
// A loaded Config is treated as immutable. Hot reload builds a fresh Config
// and swaps derived state (such as the policy table) atomically rather than
// mutating a shared instance.
package config
