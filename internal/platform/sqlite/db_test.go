package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInMemoryDB(t *testing.T) {
	ctx := context.Background()
	db, err := NewInMemoryDB(ctx)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.ExecContext(ctx, "CREATE TABLE t (id INTEGER PRIMARY KEY)")
	require.NoError(t, err)

	var fk int
	require.NoError(t, db.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)
}

func TestNewTempDB_WALMode(t *testing.T) {
	ctx := context.Background()
	db, path, err := NewTempDB(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = CleanupTempDB(db, path) })

	var mode string
	require.NoError(t, db.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestBuildDSN(t *testing.T) {
	opts := DefaultDBOptions()
	opts.BusyTimeout = 0
	assert.Equal(t, "app.db", buildDSN("app.db", opts))

	opts = DefaultDBOptions()
	opts.AccessMode = AccessModeReadOnly
	dsn := buildDSN("app.db", opts)
	assert.Contains(t, dsn, "mode=ro")
	assert.Contains(t, dsn, "_busy_timeout=5000")
}
