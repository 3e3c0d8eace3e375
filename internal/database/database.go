package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"cloud-indexer/internal/logging"
	"cloud-indexer/internal/metrics"
)

// Default timeout for state database operations
const defaultTimeout = 5 * time.Second

// Sentinel errors returned by the store. The management API maps these to
// synchronous HTTP errors; everything else surfaces through ScanProgress.
var (
	ErrVolumeExists   = errors.New("volume already exists")
	ErrVolumeNotFound = errors.New("volume not found")

	// ErrCursorRegression guards the forward-only cursor invariant: a commit
	// carrying a cursor at or before the committed one is refused.
	ErrCursorRegression = errors.New("cursor would move backward")
)

// Store is the durable registry + progress store backing the engine.
// One row per volume in each table; CommitBatch is the only mutation path for
// indexing progress and runs in a single transaction, so a crash either lands
// the whole batch or none of it.
type Store struct {
	db     *sql.DB
	dbPath string
}

// Open opens (creating if needed) the state database at dbPath.
// The parent directory must already exist and be writable; use
// startup.LoadConfig to validate directories before calling this.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	logging.Info("State database path: %s", dbPath)

	// WAL keeps readers (handlers, volstat) from blocking batch commits.
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close state database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to state database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{db: db, dbPath: dbPath}

	if err := s.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close state database after init failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize state schema: %w", err)
	}

	logging.Info("State database initialized at %s", dbPath)
	return s, nil
}

func (s *Store) initialize(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS volumes (
		name TEXT PRIMARY KEY,
		mount_path TEXT NOT NULL,
		index_name TEXT NOT NULL,
		include_patterns TEXT NOT NULL DEFAULT '[]',
		exclude_patterns TEXT NOT NULL DEFAULT '[]',
		enabled INTEGER NOT NULL DEFAULT 1,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE TABLE IF NOT EXISTS scan_progress (
		volume TEXT PRIMARY KEY REFERENCES volumes(name) ON DELETE CASCADE,
		total_files INTEGER,
		indexed_files INTEGER NOT NULL DEFAULT 0,
		cursor TEXT NOT NULL DEFAULT '',
		state TEXT NOT NULL DEFAULT 'NotStarted',
		last_scan_at INTEGER,
		last_error TEXT,
		error_count INTEGER NOT NULL DEFAULT 0
	);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the state database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the on-disk location of the state database.
func (s *Store) Path() string {
	return s.dbPath
}

// recordQuery records store query metrics.
func recordQuery(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// inTx runs fn inside a transaction, committing on nil and rolling back on
// error, and records the transaction duration.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	start := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		metrics.DBTransactionDuration.WithLabelValues("rollback").Observe(time.Since(start).Seconds())
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
		}
		return err
	}

	metrics.DBTransactionDuration.WithLabelValues("commit").Observe(time.Since(start).Seconds())
	return tx.Commit()
}
