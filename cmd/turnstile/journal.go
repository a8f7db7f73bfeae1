package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"crescendo-hq/turnstile/pkg/cli"
	"crescendo-hq/turnstile/pkg/config"
	"crescendo-hq/turnstile/pkg/journal"
)

var journalFlags struct {
	db     string
	limit  int
	since  time.Duration
	format string
	output string
}

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Inspect the decision journal",
	Long: `Query the decision journal recorded by a running gateway.

The journal stores admission decisions (rejections by default, or
everything in "all" mode) in a local SQLite database. The journal
command reads that database directly; the gateway does not need to be
running.

Subcommands:
  query - Show recent decisions
  stats - Show record counts

Examples:
  # Show the last 20 decisions
  turnstile journal query

  # Show more, as JSON
  turnstile journal query --limit 100 --format json

  # Count records from the last 24 hours
  turnstile journal stats --since 24h`,
}

var journalQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "Show recent decisions",
	Long: `Show the most recent journaled decisions, newest first.

Examples:
  # Show the last 20 decisions
  turnstile journal query

  # Query a specific journal database
  turnstile journal query --db data/journal.db

  # Export to a JSON file
  turnstile journal query --format json --output decisions.json`,
	RunE: queryJournal,
}

var journalStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show record counts",
	Long:  `Show total and recent record counts for the decision journal.`,
	RunE:  journalStats,
}

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalQueryCmd, journalStatsCmd)

	journalCmd.PersistentFlags().StringVar(&journalFlags.db, "db", "", "journal database path (uses config if not specified)")
	journalCmd.PersistentFlags().StringVar(&journalFlags.format, "format", "text", "output format: text, json")

	journalQueryCmd.Flags().IntVar(&journalFlags.limit, "limit", 20, "max records to show")
	journalQueryCmd.Flags().StringVarP(&journalFlags.output, "output", "o", "", "output file (default: stdout)")

	journalStatsCmd.Flags().DurationVar(&journalFlags.since, "since", 24*time.Hour, "window for the recent count")
}

// openJournalStore opens the journal database named by --db or the
// configuration file.
func openJournalStore() (*journal.SQLiteStore, error) {
	path := journalFlags.db
	if path == "" {
		cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
		if err != nil {
			return nil, cli.NewConfigError(cfgFile, err)
		}
		path = cfg.Journal.Path
	}

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("journal database %s: %w", path, err)
	}

	store, err := journal.NewSQLiteStore(&journal.SQLiteConfig{Path: path})
	if err != nil {
		return nil, cli.NewCommandError("journal", err)
	}
	return store, nil
}

func queryJournal(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(journalFlags.format)
	if err != nil {
		return err
	}

	store, err := openJournalStore()
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.Recent(context.Background(), journalFlags.limit)
	if err != nil {
		return cli.NewCommandError("journal", fmt.Errorf("query failed: %w", err))
	}

	output := os.Stdout
	if journalFlags.output != "" {
		output, err = os.Create(journalFlags.output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer output.Close()
	}

	if format == cli.FormatJSON {
		views := make([]recordView, 0, len(records))
		for _, record := range records {
			views = append(views, newRecordView(record))
		}
		result := map[string]interface{}{
			"total_records": len(records),
			"records":       views,
		}
		return cli.NewFormatter(format).FormatTo(output, result)
	}
	return printJournalRecords(output, records)
}

// recordView is the JSON shape of a journal record, with durations
// rendered as strings.
type recordView struct {
	ID           string    `json:"id"`
	Time         time.Time `json:"time"`
	RequestID    string    `json:"request_id,omitempty"`
	Route        string    `json:"route"`
	Identity     string    `json:"identity"`
	PolicySource string    `json:"policy_source"`
	Limit        int       `json:"limit"`
	Window       string    `json:"window"`
	Allowed      bool      `json:"allowed"`
	FailedOpen   bool      `json:"failed_open,omitempty"`
	RetryAfter   string    `json:"retry_after,omitempty"`
}

func newRecordView(record *journal.Record) recordView {
	view := recordView{
		ID:           record.ID,
		Time:         record.Time,
		RequestID:    record.RequestID,
		Route:        record.Route,
		Identity:     record.Identity,
		PolicySource: record.PolicySource,
		Limit:        record.Limit,
		Window:       record.Window.String(),
		Allowed:      record.Allowed,
		FailedOpen:   record.FailedOpen,
	}
	if record.RetryAfter > 0 {
		view.RetryAfter = record.RetryAfter.String()
	}
	return view
}

func printJournalRecords(output *os.File, records []*journal.Record) error {
	fmt.Fprintf(output, "Records: %d\n", len(records))

	if len(records) == 0 {
		fmt.Fprintln(output)
		fmt.Fprintln(output, "No records found.")
		return nil
	}

	for _, record := range records {
		fmt.Fprintln(output)
		fmt.Fprintf(output, "Record ID: %s\n", record.ID)
		fmt.Fprintf(output, "Time: %s\n", record.Time.Format(time.RFC3339))
		fmt.Fprintf(output, "Route: %s\n", record.Route)
		fmt.Fprintf(output, "Identity: %s\n", record.Identity)
		fmt.Fprintf(output, "Policy: %s (%d per %s)\n", record.PolicySource, record.Limit, record.Window)

		switch {
		case record.FailedOpen:
			fmt.Fprintln(output, "Outcome: admitted (failed open)")
		case record.Allowed:
			fmt.Fprintln(output, "Outcome: admitted")
		default:
			fmt.Fprintf(output, "Outcome: rejected (retry after %s)\n", record.RetryAfter)
		}

		if record.RequestID != "" {
			fmt.Fprintf(output, "Request ID: %s\n", record.RequestID)
		}
	}

	return nil
}

// journalStatsReport is the structured result of a stats run.
type journalStatsReport struct {
	Total int64  `json:"total_records"`
	Since string `json:"since"`
	Count int64  `json:"records_since"`
}

func journalStats(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(journalFlags.format)
	if err != nil {
		return err
	}

	store, err := openJournalStore()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()

	total, err := store.Count(ctx)
	if err != nil {
		return cli.NewCommandError("journal", fmt.Errorf("count failed: %w", err))
	}

	cutoff := time.Now().Add(-journalFlags.since)
	recent, err := store.CountSince(ctx, cutoff)
	if err != nil {
		return cli.NewCommandError("journal", fmt.Errorf("count failed: %w", err))
	}

	report := journalStatsReport{
		Total: total,
		Since: journalFlags.since.String(),
		Count: recent,
	}

	if format == cli.FormatJSON {
		return cli.NewFormatter(format).FormatTo(os.Stdout, report)
	}

	fmt.Printf("Total records: %d\n", report.Total)
	fmt.Printf("Last %s: %d\n", report.Since, report.Count)
	return nil
}
