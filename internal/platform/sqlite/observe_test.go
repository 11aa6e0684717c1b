package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rowwatch/pkg/observe"
	"rowwatch/pkg/rowdiff"
)

// End-to-end: observe a query over a real database and drive it with write
// transactions, checking the emitted diffs.
func TestObserveQuery_EndToEnd(t *testing.T) {
	ctx := context.Background()
	tdb := NewTestDBFile(t)
	tdb.Exec(t, "CREATE TABLE players (id INTEGER PRIMARY KEY, name TEXT NOT NULL, score INTEGER NOT NULL DEFAULT 0)")

	region := observe.NewRegion("players")
	reader := NewQueryReader(tdb.TxRunner, "SELECT id, name, score FROM players", []string{"id"})

	obs := observe.Observe(ctx, tdb.Hub, region, reader)
	defer obs.Cancel()

	e := nextEvent(t, obs)
	assert.True(t, e.Diff.Initial)
	assert.Empty(t, e.Rows)

	// Insert two rows in one transaction: one event, two insertions.
	tdb.Write(t, region, func(ctx context.Context) error {
		q := tdb.TxRunner.GetQuerier(ctx)
		_, err := q.ExecContext(ctx,
			"INSERT INTO players (id, name) VALUES (1, 'Arthur'), (2, 'Barbara')")
		return err
	})
	e = nextEvent(t, obs)
	require.Len(t, e.Diff.Changes, 2)
	assert.Equal(t, rowdiff.Insert, e.Diff.Changes[0].Kind)
	assert.Equal(t, rowdiff.Insert, e.Diff.Changes[1].Kind)

	// Update one row.
	tdb.Write(t, region, func(ctx context.Context) error {
		_, err := tdb.TxRunner.GetQuerier(ctx).ExecContext(ctx,
			"UPDATE players SET name = 'Barbie' WHERE id = 2")
		return err
	})
	e = nextEvent(t, obs)
	require.Len(t, e.Diff.Changes, 1)
	assert.Equal(t, rowdiff.Update, e.Diff.Changes[0].Kind)
	assert.Equal(t, map[string]any{"name": "Barbara"}, e.Diff.Changes[0].OldValues)

	// Delete everything.
	tdb.Write(t, region, func(ctx context.Context) error {
		_, err := tdb.TxRunner.GetQuerier(ctx).ExecContext(ctx, "DELETE FROM players")
		return err
	})
	e = nextEvent(t, obs)
	require.Len(t, e.Diff.Changes, 2)
	assert.Equal(t, rowdiff.Delete, e.Diff.Changes[0].Kind)
	assert.Equal(t, rowdiff.Delete, e.Diff.Changes[1].Kind)
	assert.Empty(t, e.Rows)
}

func TestObserveQuery_UnrelatedTableDoesNotFetch(t *testing.T) {
	ctx := context.Background()
	tdb := NewTestDBFile(t)
	tdb.Exec(t, "CREATE TABLE players (id INTEGER PRIMARY KEY, name TEXT)")
	tdb.Exec(t, "CREATE TABLE teams (id INTEGER PRIMARY KEY, name TEXT)")

	region := observe.NewRegion("players")
	reader := NewQueryReader(tdb.TxRunner, "SELECT id, name FROM players", []string{"id"})

	obs := observe.Observe(ctx, tdb.Hub, region, reader)
	defer obs.Cancel()
	_ = nextEvent(t, obs)

	tdb.Write(t, observe.NewRegion("teams"), func(ctx context.Context) error {
		_, err := tdb.TxRunner.GetQuerier(ctx).ExecContext(ctx, "INSERT INTO teams (name) VALUES ('reds')")
		return err
	})

	select {
	case e := <-obs.Events():
		t.Fatalf("unexpected event seq %d for unrelated write", e.Seq)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestObserveQuery_TypedRecords(t *testing.T) {
	ctx := context.Background()
	tdb := NewTestDBFile(t)
	tdb.Exec(t, "CREATE TABLE players (id INTEGER PRIMARY KEY, name TEXT NOT NULL)")
	tdb.Exec(t, "INSERT INTO players (id, name) VALUES (1, 'Arthur')")

	type player struct {
		ID   int64
		Name string
	}
	decode := func(r rowdiff.Row) (player, error) {
		var p player
		id, _ := r.Value("id")
		name, _ := r.Value("name")
		p.ID = id.(int64)
		p.Name = name.(string)
		return p, nil
	}

	region := observe.NewRegion("players")
	reader := NewQueryReader(tdb.TxRunner, "SELECT id, name FROM players", []string{"id"})
	obs := observe.Observe(ctx, tdb.Hub, region, reader)
	defer obs.Cancel()

	e := nextEvent(t, obs)
	recs := observe.Records(e, decode)
	require.Len(t, recs, 1)
	p, err := recs[0].Materialize()
	require.NoError(t, err)
	assert.Equal(t, player{ID: 1, Name: "Arthur"}, p)
}

func nextEvent(t *testing.T, obs *observe.Observation) observe.Event {
	t.Helper()
	select {
	case e, ok := <-obs.Events():
		if !ok {
			t.Fatalf("observation terminated: %v", obs.Err())
		}
		return e
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for observation event")
		return observe.Event{}
	}
}
