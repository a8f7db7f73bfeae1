package journal

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Config contains configuration for the decision recorder.
type Config struct {
	// Enabled enables decision journaling.
	Enabled bool

	// Mode selects which decisions are persisted.
	// Default: ModeRejected
	Mode Mode

	// Buffer is the size of the async write channel.
	// Default: 1000
	Buffer int

	// WriteTimeout is the timeout for writing a record to the store.
	// Default: 5 seconds
	WriteTimeout time.Duration
}

// DefaultConfig returns the default recorder configuration.
func DefaultConfig() *Config {
	return &Config{
		Enabled:      true,
		Mode:         ModeRejected,
		Buffer:       1000,
		WriteTimeout: 5 * time.Second,
	}
}

// Recorder journals admission decisions asynchronously. Submissions
// never block: when the buffer is full the record is dropped and
// counted instead.
type Recorder struct {
	store    Store
	config   *Config
	recordCh chan *Record
	wg       sync.WaitGroup
	done     chan struct{}
	logger   *slog.Logger
	dropLog  *rate.Limiter
	dropped  atomic.Int64

	closeOnce sync.Once
}

// NewRecorder creates a recorder writing to the provided store and
// starts its background worker. The recorder does not own the store;
// close them separately.
func NewRecorder(store Store, config *Config) *Recorder {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Mode == "" {
		config.Mode = ModeRejected
	}
	if config.Buffer <= 0 {
		config.Buffer = 1000
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 5 * time.Second
	}

	r := &Recorder{
		store:    store,
		config:   config,
		recordCh: make(chan *Record, config.Buffer),
		done:     make(chan struct{}),
		logger:   slog.Default().With("component", "journal.recorder"),
		dropLog:  rate.NewLimiter(rate.Every(10*time.Second), 1),
	}

	r.wg.Add(1)
	go r.worker()

	r.logger.Info("journal recorder initialized",
		"mode", config.Mode,
		"buffer", config.Buffer,
		"write_timeout", config.WriteTimeout,
	)

	return r
}

// Submit enqueues a decision record for async writing. Records filtered
// out by the configured mode are discarded. Submit never blocks and is
// safe to call from request handlers.
func (r *Recorder) Submit(rec *Record) {
	if r == nil || !r.config.Enabled || rec == nil {
		return
	}
	if r.config.Mode == ModeRejected && rec.Allowed && !rec.FailedOpen {
		return
	}

	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Time.IsZero() {
		rec.Time = time.Now()
	}

	select {
	case r.recordCh <- rec:
	case <-r.done:
	default:
		r.dropped.Add(1)
		if r.dropLog.Allow() {
			r.logger.Warn("journal buffer full, dropping records",
				"buffer", r.config.Buffer,
				"dropped_total", r.dropped.Load(),
			)
		}
	}
}

// Dropped returns the number of records discarded because the buffer
// was full.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// Close drains the buffer and waits for pending writes to finish.
func (r *Recorder) Close() error {
	r.closeOnce.Do(func() {
		close(r.done)
	})
	r.wg.Wait()

	r.logger.Info("journal recorder shut down", "dropped_total", r.dropped.Load())
	return nil
}

// worker drains the record channel and writes records to the store.
func (r *Recorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case rec := <-r.recordCh:
			r.writeRecord(rec)

		case <-r.done:
			// Drain remaining records before exit.
			for {
				select {
				case rec := <-r.recordCh:
					r.writeRecord(rec)
				default:
					return
				}
			}
		}
	}
}

// writeRecord writes a single record to the store.
func (r *Recorder) writeRecord(rec *Record) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
	defer cancel()

	start := time.Now()

	if err := r.store.Insert(ctx, rec); err != nil {
		r.logger.Error("failed to journal decision",
			"record_id", rec.ID,
			"identity", rec.Identity,
			"error", err,
		)
		return
	}

	duration := time.Since(start)

	r.logger.Debug("decision journaled",
		"record_id", rec.ID,
		"identity", rec.Identity,
		"allowed", rec.Allowed,
		"duration_ms", duration.Milliseconds(),
	)

	if duration > r.config.WriteTimeout/2 {
		r.logger.Warn("slow journal write",
			"record_id", rec.ID,
			"duration_ms", duration.Milliseconds(),
			"threshold_ms", (r.config.WriteTimeout / 2).Milliseconds(),
		)
	}
}
