// Package sqlite provides the SQLite platform layer for query observation.
//
// It owns connection setup (WAL mode, foreign keys, busy timeout), callback
// transactions, migrations, and the bridge between write transactions and the
// commit notification hub.
//
// # Opening a database
//
//	ctx := context.Background()
//	db, err := sqlite.NewDB(ctx, "app.db")
//	if err != nil {
//		return err
//	}
//	defer db.Close()
//
// # Transactions
//
//	runner := sqlite.NewTxRunner(db).WithHub(hub)
//	err = runner.WithinWriteTx(ctx, observe.NewRegion("players"), func(ctx context.Context) error {
//		q := runner.GetQuerier(ctx)
//		_, err := q.ExecContext(ctx, "INSERT INTO players (name) VALUES (?)", "Arthur")
//		return err
//	})
//
// On successful commit the hub receives exactly one notification for the
// declared write region; a rollback publishes nothing. Reads for observation
// go through WithinReadTx, which pins a consistent WAL snapshot.
//
// # Observation fetches
//
//	reader := sqlite.NewQueryReader(runner,
//		"SELECT id, name, score FROM players", []string{"id"})
//	obs := observe.Observe(ctx, hub, observe.NewRegion("players"), reader)
//
// # Migrations
//
//	err = sqlite.ApplyMigrations("app.db", "file://migrations/sqlite")
package sqlite
