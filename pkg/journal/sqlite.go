package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

// schemaVersion is the current journal schema version.
const schemaVersion = 1

// Timestamps are stored as integer unix milliseconds so ordering and
// range comparisons stay exact regardless of driver time formatting.
const schema = `
CREATE TABLE IF NOT EXISTS decisions (
    id TEXT PRIMARY KEY,
    recorded_at_ms INTEGER NOT NULL,
    request_id TEXT,
    route TEXT NOT NULL,
    identity TEXT NOT NULL,
    policy_source TEXT NOT NULL,
    request_limit INTEGER NOT NULL,
    window_ms INTEGER NOT NULL,
    allowed INTEGER NOT NULL,
    failed_open INTEGER NOT NULL,
    retry_after_ms INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_decisions_recorded_at ON decisions(recorded_at_ms);
CREATE INDEX IF NOT EXISTS idx_decisions_identity ON decisions(identity);
CREATE INDEX IF NOT EXISTS idx_decisions_allowed ON decisions(allowed);
`

const insertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, datetime('now'))
ON CONFLICT(version) DO NOTHING;
`

const getSchemaVersion = `
SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;
`

const recordColumns = `id, recorded_at_ms, request_id, route, identity, policy_source,
request_limit, window_ms, allowed, failed_open, retry_after_ms`

// SQLiteConfig contains configuration for the SQLite journal store.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections to the
	// database.
	// Default: 4
	MaxOpenConns int

	// WALMode enables Write-Ahead Logging for better concurrency.
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/journal.db",
		MaxOpenConns: 4,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// SQLiteStore implements Store on an embedded SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteStore opens the journal database at the configured path and
// creates the schema when missing.
func NewSQLiteStore(config *SQLiteConfig) (*SQLiteStore, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}

	logger := slog.Default().With("component", "journal.sqlite")

	db, err := sql.Open("sqlite", config.Path)
	if err != nil {
		return nil, fmt.Errorf("open journal database: %w", err)
	}

	maxOpen := config.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 4
	}
	db.SetMaxOpenConns(maxOpen)

	s := &SQLiteStore{
		db:     db,
		config: config,
		logger: logger,
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("journal store initialized",
		"path", config.Path,
		"wal_mode", config.WALMode,
		"max_open_conns", maxOpen,
	)

	return s, nil
}

// initialize sets up the schema and the configured pragmas.
func (s *SQLiteStore) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return fmt.Errorf("enable wal: %w", err)
		}
	}

	busyTimeout := s.config.BusyTimeout
	if busyTimeout <= 0 {
		busyTimeout = 5 * time.Second
	}
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", busyTimeout.Milliseconds())); err != nil {
		return fmt.Errorf("set busy_timeout: %w", err)
	}

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	if _, err := s.db.Exec(insertSchemaVersion, schemaVersion); err != nil {
		return fmt.Errorf("insert schema version: %w", err)
	}

	var version int
	err := s.db.QueryRow(getSchemaVersion).Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("get schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("schema version mismatch: expected %d, got %d", schemaVersion, version)
	}

	return nil
}

// Insert persists a single record.
func (s *SQLiteStore) Insert(ctx context.Context, rec *Record) error {
	const query = `
		INSERT INTO decisions (` + recordColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		rec.ID,
		rec.Time.UTC().UnixMilli(),
		rec.RequestID,
		rec.Route,
		rec.Identity,
		rec.PolicySource,
		rec.Limit,
		rec.Window.Milliseconds(),
		rec.Allowed,
		rec.FailedOpen,
		rec.RetryAfter.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert decision: %w", err)
	}
	return nil
}

// Recent returns up to limit records ordered newest first. A limit of
// zero or less falls back to 100.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 100
	}

	const query = `
		SELECT ` + recordColumns + `
		FROM decisions
		ORDER BY recorded_at_ms DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()

	records := []*Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}

	return records, nil
}

// CountSince returns the number of records at or after cutoff.
func (s *SQLiteStore) CountSince(ctx context.Context, cutoff time.Time) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM decisions WHERE recorded_at_ms >= ?",
		cutoff.UTC().UnixMilli(),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count decisions: %w", err)
	}
	return count, nil
}

// Count returns the total number of records.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM decisions").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count decisions: %w", err)
	}
	return count, nil
}

// DeleteBefore removes records older than cutoff and returns how many
// were removed.
func (s *SQLiteStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM decisions WHERE recorded_at_ms < ?",
		cutoff.UTC().UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("delete decisions: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete decisions: %w", err)
	}
	return deleted, nil
}

// TrimToCount removes the oldest records until at most max remain.
// LIMIT -1 OFFSET max selects everything except the max newest rows.
func (s *SQLiteStore) TrimToCount(ctx context.Context, max int64) (int64, error) {
	if max < 0 {
		max = 0
	}

	result, err := s.db.ExecContext(ctx, `
		DELETE FROM decisions WHERE id IN (
			SELECT id FROM decisions ORDER BY recorded_at_ms DESC LIMIT -1 OFFSET ?
		)`, max)
	if err != nil {
		return 0, fmt.Errorf("trim decisions: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("trim decisions: %w", err)
	}
	return deleted, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close journal database: %w", err)
	}
	return nil
}

func scanRecord(rows *sql.Rows) (*Record, error) {
	var (
		rec          Record
		recordedAtMS int64
		windowMS     int64
		retryAfterMS int64
	)

	err := rows.Scan(
		&rec.ID,
		&recordedAtMS,
		&rec.RequestID,
		&rec.Route,
		&rec.Identity,
		&rec.PolicySource,
		&rec.Limit,
		&windowMS,
		&rec.Allowed,
		&rec.FailedOpen,
		&retryAfterMS,
	)
	if err != nil {
		return nil, err
	}

	rec.Time = time.UnixMilli(recordedAtMS).UTC()
	rec.Window = time.Duration(windowMS) * time.Millisecond
	rec.RetryAfter = time.Duration(retryAfterMS) * time.Millisecond
	return &rec, nil
}
