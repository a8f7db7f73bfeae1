package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"crescendo-hq/turnstile/pkg/cli"
	"crescendo-hq/turnstile/pkg/config"
)

var validateFlags struct {
	format string
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Validate a Turnstile configuration file.

The validate command loads the configuration the same way run does,
including TURNSTILE_* environment overrides, and reports every
validation error it finds:
  - YAML syntax errors
  - Missing or malformed fields
  - Policy references that do not resolve
  - Invalid cron schedules

Examples:
  # Validate the default config file
  turnstile validate

  # Validate a specific file
  turnstile validate --config /etc/turnstile/config.yaml

  # JSON output for CI
  turnstile validate --format json`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVar(&validateFlags.format, "format", "text", "output format: text, json")
}

// validationReport is the structured result of a validate run.
type validationReport struct {
	File   string             `json:"file"`
	Valid  bool               `json:"valid"`
	Errors []validationIssue  `json:"errors,omitempty"`
	Policy *policyTableReport `json:"policy_table,omitempty"`
}

type validationIssue struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

type policyTableReport struct {
	NamedPolicies  int    `json:"named_policies"`
	RouteOverrides int    `json:"route_overrides"`
	TierOverrides  int    `json:"tier_overrides"`
	Backend        string `json:"backend"`
}

func validateConfig(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(validateFlags.format)
	if err != nil {
		return err
	}

	report := validationReport{File: cfgFile, Valid: true}

	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		report.Valid = false

		var verr config.ValidationError
		if errors.As(err, &verr) {
			for _, fieldErr := range verr.Errors {
				report.Errors = append(report.Errors, validationIssue{
					Field:   fieldErr.Field,
					Message: fieldErr.Message,
				})
			}
		} else {
			report.Errors = append(report.Errors, validationIssue{Message: err.Error()})
		}
	} else {
		report.Policy = &policyTableReport{
			NamedPolicies:  len(cfg.Admission.Policies),
			RouteOverrides: len(cfg.Admission.Routes),
			TierOverrides:  len(cfg.Admission.Tiers),
			Backend:        cfg.Admission.Backend,
		}
	}

	if format == cli.FormatJSON {
		if err := cli.NewFormatter(format).FormatTo(os.Stdout, report); err != nil {
			return err
		}
	} else {
		printValidationReport(report)
	}

	if !report.Valid {
		return cli.NewConfigError(cfgFile, fmt.Errorf("%d validation errors", len(report.Errors)))
	}
	return nil
}

func printValidationReport(report validationReport) {
	fmt.Printf("Validating %s\n", report.File)
	fmt.Println()

	if report.Valid {
		fmt.Println("✓ Configuration valid")
		if report.Policy != nil {
			fmt.Printf("  Named policies:  %d\n", report.Policy.NamedPolicies)
			fmt.Printf("  Route overrides: %d\n", report.Policy.RouteOverrides)
			fmt.Printf("  Tier overrides:  %d\n", report.Policy.TierOverrides)
			fmt.Printf("  Entry store:     %s\n", report.Policy.Backend)
		}
		return
	}

	fmt.Printf("✗ %d validation errors:\n", len(report.Errors))
	for _, issue := range report.Errors {
		if issue.Field != "" {
			fmt.Printf("  - %s: %s\n", issue.Field, issue.Message)
		} else {
			fmt.Printf("  - %s\n", issue.Message)
		}
	}
}
