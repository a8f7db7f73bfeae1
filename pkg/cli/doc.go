/*
Package cli provides command-line interface utilities for Turnstile.

The cli package includes output formatters, a progress bar, and common
CLI helpers used by the turnstile command.

Output Formatting:

The cli package supports text and JSON output for command results:

	formatter := cli.NewFormatter(cli.FormatJSON)
	data := MyCommandResult{...}
	if err := formatter.FormatTo(os.Stdout, data); err != nil {
		return err
	}

Progress Reporting:

For long-running operations, use the progress bar:

	progress := cli.NewProgress(os.Stdout, totalItems)
	for i := 0; i < totalItems; i++ {
		// Do work
		progress.Increment()
	}
	progress.Finish()

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx := cli.SetupSignalHandler()
	// Use ctx for operations that should be cancelled on shutdown
*/
package cli
