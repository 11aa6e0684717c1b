package sqlite

import (
	"context"
	"database/sql"
	"testing"

	"rowwatch/pkg/observe"
)

// TestDB bundles a test database with its TxRunner and commit hub.
type TestDB struct {
	DB       *sql.DB
	Path     string // empty path means in-memory
	TxRunner *TxRunner
	Hub      *observe.Hub
}

// NewTestDBInMemory creates an in-memory database wired to a fresh hub. The
// database is closed automatically when the test finishes.
func NewTestDBInMemory(t *testing.T) *TestDB {
	t.Helper()

	ctx := context.Background()
	db, err := NewInMemoryDB(ctx)
	if err != nil {
		t.Fatalf("Failed to create in-memory test DB: %v", err)
	}

	hub := observe.NewHub()
	testDB := &TestDB{
		DB:       db,
		Path:     ":memory:",
		TxRunner: NewTxRunner(db).WithHub(hub),
		Hub:      hub,
	}
	t.Cleanup(func() {
		_ = testDB.TxRunner.Close()
		_ = db.Close()
	})
	return testDB
}

// NewTestDBFile creates a temp-file database (WAL mode, multiple
// connections) wired to a fresh hub, removed when the test finishes.
func NewTestDBFile(t *testing.T) *TestDB {
	t.Helper()

	ctx := context.Background()
	db, path, err := NewTempDB(ctx)
	if err != nil {
		t.Fatalf("Failed to create file test DB: %v", err)
	}

	hub := observe.NewHub()
	testDB := &TestDB{
		DB:       db,
		Path:     path,
		TxRunner: NewTxRunner(db).WithHub(hub),
		Hub:      hub,
	}
	t.Cleanup(func() {
		_ = testDB.TxRunner.Close()
		_ = CleanupTempDB(db, path)
	})
	return testDB
}

// Exec runs a SQL statement and fails the test on error.
func (tdb *TestDB) Exec(t *testing.T, query string, args ...any) sql.Result {
	t.Helper()

	result, err := tdb.DB.ExecContext(context.Background(), query, args...)
	if err != nil {
		t.Fatalf("Failed to execute query: %v", err)
	}
	return result
}

// Write runs fn in a write transaction touching the given tables and fails
// the test on error. The commit notification goes to the test hub.
func (tdb *TestDB) Write(t *testing.T, writes observe.Region, fn func(ctx context.Context) error) {
	t.Helper()

	if err := tdb.TxRunner.WithinWriteTx(context.Background(), writes, fn); err != nil {
		t.Fatalf("Write transaction failed: %v", err)
	}
}
