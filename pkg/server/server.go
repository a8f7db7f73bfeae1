// Package server assembles the turnstile admission gateway.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/redis/go-redis/v9"

	"crescendo-hq/turnstile/pkg/admission"
	"crescendo-hq/turnstile/pkg/admission/policy"
	"crescendo-hq/turnstile/pkg/admission/storage"
	"crescendo-hq/turnstile/pkg/config"
	"crescendo-hq/turnstile/pkg/gateway"
	"crescendo-hq/turnstile/pkg/gateway/middleware"
	"crescendo-hq/turnstile/pkg/identity"
	"crescendo-hq/turnstile/pkg/journal"
	"crescendo-hq/turnstile/pkg/telemetry/health"
	"crescendo-hq/turnstile/pkg/telemetry/metrics"
)

// Options carries optional construction parameters.
type Options struct {
	// Version is reported by the build info metric.
	Version string
}

// Server is the admission gateway: an HTTP server that checks every
// request against the policy table and proxies admitted requests to the
// upstream service.
type Server struct {
	config *config.Config
	logger *slog.Logger

	gate             *admission.Gate
	resolver         *identity.Resolver
	table            atomic.Pointer[policy.Table]
	proxy            *gateway.UpstreamProxy
	sweeper          *storage.Sweeper
	collector        *metrics.Collector
	admissionMetrics *admission.Metrics
	checker          *health.Checker

	journalStore *journal.SQLiteStore
	recorder     *journal.Recorder
	pruner       *journal.Pruner

	httpServer   *http.Server
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	stopOnce     sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// NewServer creates a gateway server from a validated configuration.
func NewServer(cfg *config.Config) (*Server, error) {
	return NewServerWithOptions(cfg, Options{})
}

// NewServerWithOptions creates a gateway server with explicit options.
//
// The configuration is assumed to have passed config.Validate; defaults
// for optional sections must already be applied.
func NewServerWithOptions(cfg *config.Config, opts Options) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	table, err := cfg.Admission.BuildTable()
	if err != nil {
		return nil, fmt.Errorf("building policy table: %w", err)
	}

	proxy, err := gateway.NewUpstreamProxy(cfg.Server.UpstreamURL)
	if err != nil {
		return nil, fmt.Errorf("configuring upstream proxy: %w", err)
	}

	backend, err := buildBackend(&cfg.Admission)
	if err != nil {
		return nil, fmt.Errorf("configuring entry store: %w", err)
	}

	collector := metrics.NewCollector(nil)
	if opts.Version != "" {
		collector.SetBuildInfo(opts.Version)
	}
	admissionMetrics := admission.NewMetrics(collector.Registry())

	gate := admission.NewGateWithConfig(admission.Config{
		Backend: backend,
		Metrics: admissionMetrics,
	})

	resolver := identity.NewResolver(identity.Config{
		Header:         cfg.Admission.Identity.Header,
		TrustForwarded: boolValue(cfg.Admission.Identity.TrustForwarded),
		Bypass:         cfg.Admission.Identity.Bypass,
	})

	sweeper := storage.NewSweeper(backend, storage.SweeperConfig{
		Schedule:  cfg.Admission.Sweep.Schedule,
		Retention: cfg.Admission.Sweep.Retention,
	})

	checker := health.New(0)
	checker.RegisterCheck("store", backend.Ping)

	s := &Server{
		config:           cfg,
		logger:           slog.Default().With("component", "server"),
		gate:             gate,
		resolver:         resolver,
		proxy:            proxy,
		sweeper:          sweeper,
		collector:        collector,
		admissionMetrics: admissionMetrics,
		checker:          checker,
		shutdownChan:     make(chan struct{}),
	}
	s.table.Store(table)

	if boolValue(cfg.Journal.Enabled) {
		if err := s.setupJournal(&cfg.Journal); err != nil {
			gate.Close()
			return nil, err
		}
	}

	return s, nil
}

// buildBackend constructs the entry store named by the configuration.
func buildBackend(cfg *config.AdmissionConfig) (storage.Backend, error) {
	switch cfg.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		return storage.NewRedisBackend(storage.RedisConfig{
			Client:  client,
			Prefix:  cfg.Redis.KeyPrefix,
			Timeout: cfg.Redis.Timeout,
		})
	default:
		return storage.NewMemoryBackendWithConfig(storage.MemoryConfig{
			Shards:     cfg.Memory.Shards,
			MaxEntries: cfg.Memory.MaxEntries,
		}), nil
	}
}

// setupJournal opens the journal store and starts the recorder.
func (s *Server) setupJournal(cfg *config.JournalConfig) error {
	store, err := journal.NewSQLiteStore(&journal.SQLiteConfig{Path: cfg.Path})
	if err != nil {
		return fmt.Errorf("opening journal store: %w", err)
	}

	s.journalStore = store
	s.recorder = journal.NewRecorder(store, &journal.Config{
		Enabled:      true,
		Mode:         journal.Mode(cfg.Mode),
		Buffer:       cfg.Buffer,
		WriteTimeout: cfg.WriteTimeout,
	})
	s.pruner = journal.NewPruner(store, &journal.RetentionConfig{
		RetentionDays: cfg.Retention.Days,
		MaxRecords:    cfg.Retention.MaxRecords,
		Schedule:      cfg.Retention.Schedule,
	})

	return nil
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	handler := s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:              s.config.Server.ListenAddress,
		Handler:           handler,
		ReadTimeout:       s.config.Server.ReadTimeout,
		ReadHeaderTimeout: s.config.Server.ReadHeaderTimeout,
		WriteTimeout:      s.config.Server.WriteTimeout,
		IdleTimeout:       s.config.Server.IdleTimeout,
		MaxHeaderBytes:    s.config.Server.MaxHeaderBytes,
	}

	// Start background maintenance
	if err := s.sweeper.Start(ctx); err != nil {
		s.setRunning(false)
		return fmt.Errorf("starting sweeper: %w", err)
	}
	if s.pruner != nil {
		if err := s.pruner.Start(ctx); err != nil {
			s.sweeper.Stop()
			s.setRunning(false)
			return fmt.Errorf("starting journal pruner: %w", err)
		}
	}

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("gateway listening",
			"address", s.config.Server.ListenAddress,
			"upstream", s.config.Server.UpstreamURL,
			"backend", s.config.Admission.Backend,
		)

		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	// Set up signal handlers
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	// Wait for shutdown signal or error
	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	case <-s.shutdownChan:
		s.logger.Info("shutdown requested")
		return s.Shutdown(context.Background())
	}
}

// Stop requests a graceful shutdown from another goroutine. It returns
// once the request is registered, not when shutdown completes.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.shutdownChan)
	})
}

// Shutdown gracefully shuts down the server and its background
// components. In-flight requests get the configured shutdown timeout to
// complete; the journal is flushed before its store closes.
//
// Shutdown also releases the stores of a server that was never
// started, so construction followed by an early exit does not leak
// the journal database or the Redis client.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.logger.Info("initiating graceful shutdown", "timeout", s.config.Server.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.Server.ShutdownTimeout)
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				s.logger.Error("error during server shutdown", "error", err)
				shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			}
		}

		s.sweeper.Stop()
		if s.pruner != nil {
			s.pruner.Stop()
		}

		// The recorder flushes buffered records on close, so it must
		// close before the store it writes to.
		if s.recorder != nil {
			if err := s.recorder.Close(); err != nil && shutdownErr == nil {
				shutdownErr = fmt.Errorf("journal recorder close error: %w", err)
			}
		}
		if s.journalStore != nil {
			if err := s.journalStore.Close(); err != nil && shutdownErr == nil {
				shutdownErr = fmt.Errorf("journal store close error: %w", err)
			}
		}

		if err := s.gate.Close(); err != nil && shutdownErr == nil {
			shutdownErr = fmt.Errorf("entry store close error: %w", err)
		}

		s.setRunning(false)

		s.logger.Info("gateway stopped")
	})

	return shutdownErr
}

func (s *Server) setRunning(v bool) {
	s.mu.Lock()
	s.isRunning = v
	s.mu.Unlock()
}

// ApplyPolicies rebuilds the policy table from cfg and swaps it in. A
// configuration that fails to build leaves the current table in place.
//
// Requests already past admission keep the lookup they resolved; new
// requests see the new table immediately.
func (s *Server) ApplyPolicies(cfg *config.Config) error {
	table, err := cfg.Admission.BuildTable()
	if err != nil {
		return fmt.Errorf("building policy table: %w", err)
	}

	s.table.Store(table)
	s.logger.Info("policy table reloaded", "entries", table.Len())
	return nil
}

// setupRoutes configures HTTP routes and the middleware chain.
func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	// Register probe and telemetry routes. These bypass admission:
	// orchestrators must be able to probe an instance that is over
	// quota or has lost its store.
	mux.Handle("/healthz", gateway.NewHealthHandler())
	mux.Handle("/readyz", gateway.NewReadyHandler(s.checker))
	if boolValue(s.config.Telemetry.Metrics.Enabled) {
		mux.Handle(s.config.Telemetry.Metrics.Path, s.collector.Handler())
	}

	// Everything else is admission-checked and proxied upstream.
	admit := middleware.AdmissionMiddleware(middleware.AdmissionConfig{
		Gate:       s.gate,
		Resolver:   s.resolver,
		Table:      s.table.Load,
		TierHeader: s.config.Admission.TierHeader,
		Metrics:    s.admissionMetrics,
		Journal:    s.recorder,
	})
	mux.Handle("/", admit(s.proxy))

	// Apply middleware chain
	var handler http.Handler = mux

	// Timeout middleware
	handler = middleware.TimeoutMiddleware(s.config.Server.RequestTimeout)(handler)

	// CORS middleware
	handler = middleware.CORSMiddleware(convertCORSConfig(&s.config.Server.CORS))(handler)

	// Request ID middleware
	handler = middleware.RequestIDMiddleware(handler)

	// Logging middleware
	handler = middleware.LoggingMiddleware(handler)

	// Recovery middleware (outermost)
	handler = middleware.RecoveryMiddleware(handler)

	return handler
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Handler returns the configured HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

// convertCORSConfig converts config.CORSConfig to middleware.CORSConfig.
func convertCORSConfig(cfg *config.CORSConfig) *middleware.CORSConfig {
	return &middleware.CORSConfig{
		Enabled:          boolValue(cfg.Enabled),
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   cfg.AllowedMethods,
		AllowedHeaders:   cfg.AllowedHeaders,
		ExposedHeaders:   cfg.ExposedHeaders,
		MaxAge:           cfg.MaxAge,
		AllowCredentials: cfg.AllowCredentials,
	}
}

// boolValue dereferences an optional flag, treating nil as false.
func boolValue(b *bool) bool {
	return b != nil && *b
}
