package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"crescendo-hq/turnstile/pkg/cli"
	"crescendo-hq/turnstile/pkg/config"
	"crescendo-hq/turnstile/pkg/server"
	"crescendo-hq/turnstile/pkg/telemetry/logging"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Turnstile gateway",
	Long: `Start the Turnstile gateway with the specified configuration.

The gateway listens on the configured address, checks every request
against the policy table, and proxies admitted requests to the upstream
service.

Examples:
  # Start with default config
  turnstile run

  # Start with custom config
  turnstile run --config /etc/turnstile/config.yaml

  # Override listen address
  turnstile run --listen 0.0.0.0:8080

  # Validate config without starting the gateway
  turnstile run --dry-run`,
	RunE: runGateway,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting the gateway")
}

func runGateway(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.NewConfigError(cfgFile, err)
	}

	// Apply flag overrides
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if verbose && runFlags.logLevel == "" {
		cfg.Telemetry.Logging.Level = "debug"
	}
	if err := config.Validate(cfg); err != nil {
		return cli.NewConfigError(cfgFile, err)
	}

	// Initialize logging based on config
	if _, err := logging.Setup(logging.Config{
		Level:     cfg.Telemetry.Logging.Level,
		Format:    cfg.Telemetry.Logging.Format,
		AddSource: cfg.Telemetry.Logging.AddSource,
	}); err != nil {
		return cli.NewConfigError(cfgFile, err)
	}

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	printBanner(cfg)

	// Create the gateway
	srv, err := server.NewServerWithOptions(cfg, server.Options{Version: Version})
	if err != nil {
		return cli.NewCommandError("run", err)
	}

	ctx := cli.SetupSignalHandler()

	// Watch the config file and reload the policy table on change. A
	// reload that fails to load or validate keeps the running table.
	if cfg.Admission.Watch {
		watcher, err := config.NewWatcher(cfgFile)
		if err != nil {
			return cli.NewCommandError("run", fmt.Errorf("starting config watcher: %w", err))
		}
		go func() {
			if err := watcher.Watch(ctx, func() error {
				next, err := config.LoadConfigWithEnvOverrides(cfgFile)
				if err != nil {
					return err
				}
				return srv.ApplyPolicies(next)
			}); err != nil {
				slog.Error("config watcher stopped", "error", err)
			}
		}()
		defer func() {
			if err := watcher.Stop(); err != nil {
				slog.Warn("stopping config watcher", "error", err)
			}
		}()
		fmt.Printf("✓ Watching %s for policy changes\n", cfgFile)
	}

	fmt.Println()
	fmt.Printf("✓ Listening on %s, proxying to %s\n", cfg.Server.ListenAddress, cfg.Server.UpstreamURL)
	fmt.Printf("✓ Health endpoint: http://%s/healthz\n", cfg.Server.ListenAddress)
	if cfg.Telemetry.Metrics.Enabled != nil && *cfg.Telemetry.Metrics.Enabled {
		fmt.Printf("✓ Metrics endpoint: http://%s%s\n", cfg.Server.ListenAddress, cfg.Telemetry.Metrics.Path)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	// Start blocks until a signal, context cancellation, or server error.
	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}

	fmt.Println("✓ Gateway stopped")
	return nil
}

func printBanner(cfg *config.Config) {
	fmt.Printf("Turnstile v%s\n", Version)
	fmt.Printf("Loading configuration from: %s\n", cfgFile)
	fmt.Println("✓ Configuration loaded")
	fmt.Printf("✓ Policy table: %d named policies, %d route overrides, %d tier overrides\n",
		len(cfg.Admission.Policies), len(cfg.Admission.Routes), len(cfg.Admission.Tiers))
	fmt.Printf("✓ Entry store: %s\n", cfg.Admission.Backend)

	if cfg.Journal.Enabled != nil && *cfg.Journal.Enabled {
		fmt.Printf("✓ Journal: %s (%s mode)\n", cfg.Journal.Path, cfg.Journal.Mode)
	}
}
