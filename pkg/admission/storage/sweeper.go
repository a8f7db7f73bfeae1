package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Sweeper evicts idle entries from a backend on a cron schedule. Without it
// an in-process backend would accumulate one entry per identifier ever seen;
// with it, identifiers that stop sending requests cost nothing after the
// retention period.
type Sweeper struct {
	backend   Backend
	schedule  string
	retention time.Duration
	cron      *cron.Cron
	mu        sync.Mutex
	logger    *slog.Logger
	running   bool
}

// SweeperConfig configures a Sweeper.
type SweeperConfig struct {
	// Schedule is a cron expression for sweep runs. Supports the standard
	// five-field syntax plus descriptors like "@every 1m".
	// Default: "@every 1m"
	Schedule string

	// Retention is how long an entry may sit idle before eviction. Must
	// comfortably exceed the longest configured policy window so live
	// windows are never swept.
	// Default: 10m
	Retention time.Duration
}

// NewSweeper creates a sweeper for the given backend.
func NewSweeper(backend Backend, cfg SweeperConfig) *Sweeper {
	if cfg.Schedule == "" {
		cfg.Schedule = "@every 1m"
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 10 * time.Minute
	}

	return &Sweeper{
		backend:   backend,
		schedule:  cfg.Schedule,
		retention: cfg.Retention,
		cron:      cron.New(),
		logger:    slog.Default().With("component", "storage.sweeper"),
	}
}

// Start begins scheduled sweeping. The sweeper stops automatically when ctx
// is cancelled.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate cron expression
	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.schedule, err)
	}

	if _, err := s.cron.AddFunc(s.schedule, func() {
		s.runSweep(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("entry sweeper started",
		"schedule", s.schedule,
		"retention", s.retention,
	)

	// Wait for context cancellation in background
	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// runSweep executes one sweep cycle.
func (s *Sweeper) runSweep(ctx context.Context) {
	cutoff := time.Now().Add(-s.retention)

	removed, err := s.backend.Sweep(ctx, cutoff)
	if err != nil {
		s.logger.Error("entry sweep failed",
			"error", err,
		)
		return
	}

	if removed > 0 {
		s.logger.Info("entry sweep completed",
			"removed", removed,
		)
	} else {
		s.logger.Debug("entry sweep completed, nothing to remove")
	}
}

// Stop stops the sweeper and waits for a running sweep to complete.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil && s.running {
		ctx := s.cron.Stop()
		<-ctx.Done() // Wait for running jobs to finish
		s.running = false
		s.logger.Info("entry sweeper stopped")
	}
}

// IsRunning returns true if the sweeper is running.
func (s *Sweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}
