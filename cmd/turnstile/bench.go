package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"crescendo-hq/turnstile/pkg/cli"
)

var benchFlags struct {
	target      string
	path        string
	duration    time.Duration
	rate        int
	concurrency int
	identities  int
	tier        string
	format      string
}

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Load test a running gateway",
	Long: `Send synthetic requests to a running gateway at a fixed rate and
report how admission behaved.

The bench command is the quickest way to see a policy in action: point
it at a gateway, push past the configured budget, and watch the split
between 200s and 429s. With --identities it rotates synthetic client
addresses through the X-Forwarded-For header, exercising separate
budgets the way distinct clients would (the gateway must trust
forwarded headers for this to take effect).

Examples:
  # Hammer the default policy
  turnstile bench --target http://localhost:8080 --rate 50

  # Exercise a specific route for a minute
  turnstile bench --path /api/search --duration 60s

  # Simulate five distinct clients
  turnstile bench --identities 5 --rate 100

  # Check a tier override
  turnstile bench --tier gold --rate 20`,
	RunE: runBench,
}

func init() {
	rootCmd.AddCommand(benchCmd)

	benchCmd.Flags().StringVar(&benchFlags.target, "target", "http://localhost:8080", "gateway URL")
	benchCmd.Flags().StringVar(&benchFlags.path, "path", "/", "request path")
	benchCmd.Flags().DurationVar(&benchFlags.duration, "duration", 30*time.Second, "test duration")
	benchCmd.Flags().IntVar(&benchFlags.rate, "rate", 10, "requests per second")
	benchCmd.Flags().IntVar(&benchFlags.concurrency, "concurrency", 4, "concurrent clients")
	benchCmd.Flags().IntVar(&benchFlags.identities, "identities", 0, "rotate this many synthetic client addresses (0 = caller's own)")
	benchCmd.Flags().StringVar(&benchFlags.tier, "tier", "", "value for the X-Tier header")
	benchCmd.Flags().StringVar(&benchFlags.format, "format", "text", "output format: text, json")
}

func runBench(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(benchFlags.format)
	if err != nil {
		return err
	}
	if benchFlags.rate <= 0 {
		return fmt.Errorf("--rate must be positive")
	}
	if benchFlags.concurrency <= 0 {
		return fmt.Errorf("--concurrency must be positive")
	}

	totalRequests := int(benchFlags.duration.Seconds()) * benchFlags.rate
	if totalRequests <= 0 {
		return fmt.Errorf("duration %s at %d req/s yields no requests", benchFlags.duration, benchFlags.rate)
	}

	if format == cli.FormatText {
		fmt.Println("Turnstile Bench")
		fmt.Println("===============")
		fmt.Printf("Target: %s%s\n", benchFlags.target, benchFlags.path)
		fmt.Printf("Duration: %s\n", benchFlags.duration)
		fmt.Printf("Rate: %d req/s\n", benchFlags.rate)
		fmt.Printf("Concurrency: %d\n", benchFlags.concurrency)
		if benchFlags.identities > 0 {
			fmt.Printf("Identities: %d\n", benchFlags.identities)
		}
		fmt.Println()
	}

	ctx, cancel := context.WithTimeout(cli.SetupSignalHandler(), benchFlags.duration)
	defer cancel()

	results := runLoadTest(ctx, totalRequests, format == cli.FormatText)

	if format == cli.FormatJSON {
		return cli.NewFormatter(format).FormatTo(os.Stdout, newBenchReport(results))
	}
	printBenchResults(results)
	return nil
}

// benchResults aggregates the outcome of one load test.
type benchResults struct {
	totalRequests int
	completed     int
	networkErrors int
	duration      time.Duration
	statusCounts  map[int]int
	latencies     []time.Duration
}

// runLoadTest drives workers off a ticker so requests leave at a
// steady rate rather than in bursts.
func runLoadTest(ctx context.Context, totalRequests int, showProgress bool) *benchResults {
	results := &benchResults{
		totalRequests: totalRequests,
		statusCounts:  make(map[int]int),
		latencies:     make([]time.Duration, 0, totalRequests),
	}

	var progress *cli.Progress
	if showProgress {
		progress = cli.NewProgress(os.Stdout, int64(totalRequests))
	}

	client := &http.Client{Timeout: 10 * time.Second}

	var (
		mu         sync.Mutex
		wg         sync.WaitGroup
		requestSeq atomic.Int64
	)

	jobs := make(chan struct{})
	for i := 0; i < benchFlags.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range jobs {
				seq := requestSeq.Add(1)
				status, latency, err := sendBenchRequest(ctx, client, seq)

				mu.Lock()
				if err != nil {
					results.networkErrors++
				} else {
					results.statusCounts[status]++
					results.latencies = append(results.latencies, latency)
				}
				results.completed++
				mu.Unlock()

				if progress != nil {
					progress.Increment()
				}
			}
		}()
	}

	start := time.Now()
	interval := time.Second / time.Duration(benchFlags.rate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sent := 0
produce:
	for sent < totalRequests {
		select {
		case <-ctx.Done():
			break produce
		case <-ticker.C:
			select {
			case jobs <- struct{}{}:
				sent++
			case <-ctx.Done():
				break produce
			}
		}
	}

	close(jobs)
	wg.Wait()

	if progress != nil {
		if results.completed < totalRequests {
			progress.Abort()
		} else {
			progress.Finish()
		}
	}

	results.duration = time.Since(start)
	return results
}

// sendBenchRequest issues one request, rotating synthetic client
// addresses when --identities is set.
func sendBenchRequest(ctx context.Context, client *http.Client, seq int64) (int, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, benchFlags.target+benchFlags.path, nil)
	if err != nil {
		return 0, 0, err
	}

	if benchFlags.tier != "" {
		req.Header.Set("X-Tier", benchFlags.tier)
	}
	if benchFlags.identities > 0 {
		// TEST-NET-3 addresses; one per simulated client.
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", seq%int64(benchFlags.identities)))
	}

	start := time.Now()
	resp, err := client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return 0, latency, err
	}
	resp.Body.Close()

	return resp.StatusCode, latency, nil
}

func printBenchResults(results *benchResults) {
	admitted := results.statusCounts[http.StatusOK]
	rejected := results.statusCounts[http.StatusTooManyRequests]

	fmt.Println()
	fmt.Println("Results:")
	fmt.Println("--------")
	fmt.Printf("Requests:    %d sent, %d admitted, %d rejected, %d errors\n",
		results.completed, admitted, rejected, results.networkErrors)
	fmt.Printf("Duration:    %.1fs\n", results.duration.Seconds())

	if results.completed > 0 {
		throughput := float64(results.completed) / results.duration.Seconds()
		fmt.Printf("Throughput:  %.2f req/s\n", throughput)
	}

	if len(results.latencies) > 0 {
		stats := computeLatencyStats(results.latencies)

		fmt.Println()
		fmt.Println("Latency:")
		fmt.Printf("  Min:     %.1fms\n", float64(stats.min.Microseconds())/1000)
		fmt.Printf("  Mean:    %.1fms\n", float64(stats.mean.Microseconds())/1000)
		fmt.Printf("  Median:  %.1fms\n", float64(stats.median.Microseconds())/1000)
		fmt.Printf("  p95:     %.1fms\n", float64(stats.p95.Microseconds())/1000)
		fmt.Printf("  p99:     %.1fms\n", float64(stats.p99.Microseconds())/1000)
		fmt.Printf("  Max:     %.1fms\n", float64(stats.max.Microseconds())/1000)
	}

	if results.completed > 0 {
		fmt.Println()
		fmt.Println("Status Codes:")
		codes := make([]int, 0, len(results.statusCounts))
		for code := range results.statusCounts {
			codes = append(codes, code)
		}
		sort.Ints(codes)
		for _, code := range codes {
			count := results.statusCounts[code]
			pct := float64(count) / float64(results.completed) * 100
			fmt.Printf("  %d:     %d (%.0f%%)\n", code, count, pct)
		}
	}
}

// benchReport is the JSON shape of a bench run.
type benchReport struct {
	Target        string         `json:"target"`
	Path          string         `json:"path"`
	Duration      string         `json:"duration"`
	Sent          int            `json:"sent"`
	Admitted      int            `json:"admitted"`
	Rejected      int            `json:"rejected"`
	NetworkErrors int            `json:"network_errors"`
	Throughput    float64        `json:"throughput_rps"`
	StatusCounts  map[string]int `json:"status_counts"`
	Latency       *latencyReport `json:"latency,omitempty"`
}

type latencyReport struct {
	Min    string `json:"min"`
	Mean   string `json:"mean"`
	Median string `json:"median"`
	P95    string `json:"p95"`
	P99    string `json:"p99"`
	Max    string `json:"max"`
}

func newBenchReport(results *benchResults) benchReport {
	report := benchReport{
		Target:        benchFlags.target,
		Path:          benchFlags.path,
		Duration:      results.duration.Round(time.Millisecond).String(),
		Sent:          results.completed,
		Admitted:      results.statusCounts[http.StatusOK],
		Rejected:      results.statusCounts[http.StatusTooManyRequests],
		NetworkErrors: results.networkErrors,
		StatusCounts:  make(map[string]int, len(results.statusCounts)),
	}
	if results.duration > 0 {
		report.Throughput = float64(results.completed) / results.duration.Seconds()
	}
	for code, count := range results.statusCounts {
		report.StatusCounts[fmt.Sprintf("%d", code)] = count
	}

	if len(results.latencies) > 0 {
		stats := computeLatencyStats(results.latencies)
		report.Latency = &latencyReport{
			Min:    stats.min.Round(time.Microsecond).String(),
			Mean:   stats.mean.Round(time.Microsecond).String(),
			Median: stats.median.Round(time.Microsecond).String(),
			P95:    stats.p95.Round(time.Microsecond).String(),
			P99:    stats.p99.Round(time.Microsecond).String(),
			Max:    stats.max.Round(time.Microsecond).String(),
		}
	}

	return report
}

type latencyStats struct {
	min, mean, median, p95, p99, max time.Duration
}

func computeLatencyStats(latencies []time.Duration) latencyStats {
	sorted := make([]time.Duration, len(latencies))
	copy(sorted, latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, lat := range sorted {
		sum += lat
	}

	idx := func(q float64) int {
		i := int(float64(len(sorted)) * q)
		if i >= len(sorted) {
			i = len(sorted) - 1
		}
		return i
	}

	return latencyStats{
		min:    sorted[0],
		mean:   sum / time.Duration(len(sorted)),
		median: sorted[len(sorted)/2],
		p95:    sorted[idx(0.95)],
		p99:    sorted[idx(0.99)],
		max:    sorted[len(sorted)-1],
	}
}
