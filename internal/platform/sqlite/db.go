package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// TxLockMode selects the locking behavior of new transactions.
type TxLockMode string

const (
	// TxLockDeferred postpones locking until the first read/write (SQLite default).
	TxLockDeferred TxLockMode = "DEFERRED"
	// TxLockImmediate takes the RESERVED lock up front, avoiding SQLITE_BUSY on write.
	TxLockImmediate TxLockMode = "IMMEDIATE"
	// TxLockExclusive takes the EXCLUSIVE lock up front.
	TxLockExclusive TxLockMode = "EXCLUSIVE"
)

// AccessMode selects how the database file is opened.
type AccessMode string

const (
	// AccessModeReadWrite opens an existing database for reading and writing.
	AccessModeReadWrite AccessMode = "rw"
	// AccessModeReadOnly opens the database read-only.
	AccessModeReadOnly AccessMode = "ro"
	// AccessModeReadWriteCreate opens read-write and creates the file if missing.
	AccessModeReadWriteCreate AccessMode = "rwc"
)

// DBOptions holds SQLite connection settings.
type DBOptions struct {
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	MaxOpenConns    int
	MaxIdleConns    int
	// PingTimeout bounds the connectivity check when opening the database.
	PingTimeout time.Duration
	// WALMode enables write-ahead logging. Snapshot reads during observation
	// rely on WAL: readers see a consistent view while the writer proceeds.
	WALMode bool
	// ForeignKeys enables foreign-key enforcement.
	ForeignKeys bool
	// BusyTimeout is how long SQLite waits on SQLITE_BUSY before failing.
	BusyTimeout time.Duration
	// TxLockMode is the locking mode for transactions started by TxRunner.
	TxLockMode TxLockMode
	// EnableWriteQueue serializes write transactions through a queue goroutine.
	EnableWriteQueue bool
	// WriteQueueSize is the write queue buffer size (default 100).
	WriteQueueSize int
	AccessMode     AccessMode
}

// DefaultDBOptions returns settings tuned for embedded use with observation:
// WAL on, a small pool sized for one writer plus snapshot readers.
func DefaultDBOptions() DBOptions {
	return DBOptions{
		ConnMaxLifetime:  time.Hour,
		ConnMaxIdleTime:  10 * time.Minute,
		MaxOpenConns:     4,
		MaxIdleConns:     1,
		PingTimeout:      5 * time.Second,
		WALMode:          true,
		ForeignKeys:      true,
		BusyTimeout:      5 * time.Second,
		TxLockMode:       TxLockDeferred,
		EnableWriteQueue: false,
		WriteQueueSize:   100,
		AccessMode:       AccessModeReadWrite,
	}
}

// NewDB opens a SQLite database at dbPath with default settings.
func NewDB(ctx context.Context, dbPath string) (*sql.DB, error) {
	return NewDBWithOptions(ctx, dbPath, DefaultDBOptions())
}

// NewReadOnlyDB opens the database read-only.
func NewReadOnlyDB(ctx context.Context, dbPath string) (*sql.DB, error) {
	opts := DefaultDBOptions()
	opts.AccessMode = AccessModeReadOnly
	opts.EnableWriteQueue = false
	return NewDBWithOptions(ctx, dbPath, opts)
}

// NewDBWithOptions opens a SQLite database with explicit settings.
func NewDBWithOptions(ctx context.Context, dbPath string, opts DBOptions) (*sql.DB, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", buildDSN(dbPath, opts))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	db.SetConnMaxIdleTime(opts.ConnMaxIdleTime)
	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)

	pingCtx, cancel := context.WithTimeout(ctx, opts.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	if err := applyPragmas(ctx, db, opts); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply PRAGMA settings: %w", err)
	}

	return db, nil
}

// buildDSN builds the DSN with the few parameters that must be set at open
// time; everything else is applied via PRAGMA afterwards.
func buildDSN(dbPath string, opts DBOptions) string {
	params := []string{}
	if opts.AccessMode != "" && opts.AccessMode != AccessModeReadWrite {
		params = append(params, fmt.Sprintf("mode=%s", opts.AccessMode))
	}
	if opts.BusyTimeout > 0 {
		params = append(params, fmt.Sprintf("_busy_timeout=%d", int(opts.BusyTimeout.Milliseconds())))
	}
	if len(params) > 0 {
		return dbPath + "?" + strings.Join(params, "&")
	}
	return dbPath
}

// NewInMemoryDB opens an in-memory database for tests. The pool is limited to
// a single connection so every statement sees the same schema.
func NewInMemoryDB(ctx context.Context) (*sql.DB, error) {
	opts := DefaultDBOptions()
	opts.WALMode = false // WAL is not supported for in-memory databases
	opts.MaxOpenConns = 1
	opts.MaxIdleConns = 1
	opts.EnableWriteQueue = false
	return NewDBWithOptions(ctx, ":memory:", opts)
}

// NewTempDB opens a database backed by a unique temp file, for tests that
// need WAL and concurrent reader connections.
func NewTempDB(ctx context.Context) (*sql.DB, string, error) {
	tmpFile, err := os.CreateTemp("", "rowwatch_test_*.sqlite")
	if err != nil {
		return nil, "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()

	db, err := NewDB(ctx, tmpPath)
	if err != nil {
		_ = os.Remove(tmpPath)
		return nil, "", err
	}
	return db, tmpPath, nil
}

// CleanupTempDB closes a temp-file database and removes its files.
func CleanupTempDB(db *sql.DB, dbPath string) error {
	if db != nil {
		_ = db.Close()
	}
	if dbPath != "" && dbPath != ":memory:" {
		_ = os.Remove(dbPath + "-wal")
		_ = os.Remove(dbPath + "-shm")
		return os.Remove(dbPath)
	}
	return nil
}

func applyPragmas(ctx context.Context, db *sql.DB, opts DBOptions) error {
	pragmas := make([]string, 0, 4)
	if opts.ForeignKeys {
		pragmas = append(pragmas, "PRAGMA foreign_keys = ON")
	}
	if opts.WALMode {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}
	pragmas = append(pragmas, "PRAGMA synchronous = NORMAL")
	if opts.BusyTimeout > 0 {
		pragmas = append(pragmas, fmt.Sprintf("PRAGMA busy_timeout = %d", int(opts.BusyTimeout.Milliseconds())))
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}
	return nil
}
