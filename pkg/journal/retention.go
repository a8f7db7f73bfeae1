package journal

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// RetentionConfig configures the journal pruner.
type RetentionConfig struct {
	// RetentionDays is the number of days to keep records. Zero
	// disables age-based pruning.
	// Default: 7
	RetentionDays int

	// MaxRecords caps the total number of records kept. Zero disables
	// count-based pruning.
	// Default: 0 (unlimited)
	MaxRecords int64

	// Schedule is a cron expression controlling when pruning runs.
	// Supports the standard five-field syntax plus descriptors like
	// "@daily".
	// Default: "0 3 * * *" (daily at 3 AM)
	Schedule string
}

// DefaultRetentionConfig returns the default retention configuration.
func DefaultRetentionConfig() *RetentionConfig {
	return &RetentionConfig{
		RetentionDays: 7,
		MaxRecords:    0,
		Schedule:      "0 3 * * *",
	}
}

// Pruner enforces the retention policy on journal records. Pruning runs
// in two phases: age-based, then count-based.
type Pruner struct {
	store   Store
	config  *RetentionConfig
	cron    *cron.Cron
	mu      sync.Mutex
	logger  *slog.Logger
	running bool
}

// NewPruner creates a pruner for the given store.
func NewPruner(store Store, config *RetentionConfig) *Pruner {
	if config == nil {
		config = DefaultRetentionConfig()
	}
	if config.Schedule == "" {
		config.Schedule = "0 3 * * *"
	}

	return &Pruner{
		store:  store,
		config: config,
		cron:   cron.New(),
		logger: slog.Default().With("component", "journal.retention"),
	}
}

// Prune removes records older than the retention period, then trims the
// total count down to MaxRecords. Returns how many records were removed.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	var total int64

	if p.config.RetentionDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -p.config.RetentionDays)
		deleted, err := p.store.DeleteBefore(ctx, cutoff)
		if err != nil {
			return total, fmt.Errorf("prune by age: %w", err)
		}
		total += deleted
		if deleted > 0 {
			p.logger.Info("pruned journal records by age",
				"deleted", deleted,
				"retention_days", p.config.RetentionDays,
			)
		}
	}

	if p.config.MaxRecords > 0 {
		deleted, err := p.store.TrimToCount(ctx, p.config.MaxRecords)
		if err != nil {
			return total, fmt.Errorf("prune by count: %w", err)
		}
		total += deleted
		if deleted > 0 {
			p.logger.Info("pruned journal records by count",
				"deleted", deleted,
				"max_records", p.config.MaxRecords,
			)
		}
	}

	if total == 0 {
		p.logger.Debug("no journal records pruned")
	}

	return total, nil
}

// Start begins scheduled pruning. The pruner stops automatically when
// ctx is cancelled.
func (p *Pruner) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, err := cron.ParseStandard(p.config.Schedule); err != nil {
		return fmt.Errorf("invalid prune schedule %q: %w", p.config.Schedule, err)
	}

	if _, err := p.cron.AddFunc(p.config.Schedule, func() {
		if _, err := p.Prune(ctx); err != nil {
			p.logger.Error("scheduled prune failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule prune: %w", err)
	}

	p.cron.Start()
	p.running = true

	p.logger.Info("journal pruner started",
		"schedule", p.config.Schedule,
		"retention_days", p.config.RetentionDays,
		"max_records", p.config.MaxRecords,
	)

	go func() {
		<-ctx.Done()
		p.Stop()
	}()

	return nil
}

// Stop stops the pruner and waits for a running prune to complete.
func (p *Pruner) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cron != nil && p.running {
		ctx := p.cron.Stop()
		<-ctx.Done()
		p.running = false
		p.logger.Info("journal pruner stopped")
	}
}

// IsRunning returns true if the pruner is running.
func (p *Pruner) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.running
}
