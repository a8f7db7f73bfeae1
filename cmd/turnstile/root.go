package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "turnstile",
	Short: "Turnstile - admission control for HTTP trigger surfaces",
	Long: `Turnstile is a reverse proxy that decides, per client identity, whether
each request may proceed right now.

It enforces fixed-window request budgets in front of an upstream service:
  - Per-identifier counting with atomic check-and-increment
  - Named policies with per-route and per-tier overrides
  - In-process sharded store or Redis for multi-instance deployments
  - X-RateLimit-* response headers and 429 with Retry-After
  - Fail-open admission when the store is unreachable

Budgets answer "may this caller trigger this much work right now"; they
are not billing quotas or authentication.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
