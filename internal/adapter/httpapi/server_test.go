package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rowwatch/internal/platform/sqlite"
	"rowwatch/pkg/observe"
	"rowwatch/pkg/rowdiff"
)

func newTestServer(t *testing.T) (*Server, *sqlite.TestDB) {
	t.Helper()
	tdb := sqlite.NewTestDBInMemory(t)
	tdb.Exec(t, "CREATE TABLE players (id INTEGER PRIMARY KEY, name TEXT, score INTEGER NOT NULL DEFAULT 0)")

	reader := sqlite.NewQueryReader(tdb.TxRunner, "SELECT id, name, score FROM players", []string{"id"})
	observeFn := func(ctx context.Context) *observe.Observation {
		return observe.Observe(ctx, tdb.Hub, observe.NewRegion("players"), reader)
	}
	log := slog.New(slog.DiscardHandler)
	return New(log, tdb.TxRunner, observeFn, "prod"), tdb
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestWrite_CommitsAndNotifies(t *testing.T) {
	srv, tdb := newTestServer(t)

	sub := tdb.Hub.Subscribe(observe.NewRegion("players"))
	defer sub.Close()

	body := `{"sql":"INSERT INTO players (id, name, score) VALUES (?, ?, ?)","args":[1,"Arthur",10],"tables":["players"]}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/write", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	select {
	case c := <-sub.C():
		assert.Equal(t, uint64(1), c.Seq)
	default:
		t.Fatal("expected a commit notification from /write")
	}

	var name string
	err := tdb.DB.QueryRow("SELECT name FROM players WHERE id = 1").Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "Arthur", name)
}

func TestWrite_ValidatesBody(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/write", strings.NewReader(`{"sql":""}`))
	req.Header.Set("Content-Type", "application/json")
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWrite_SQLErrorRollsBack(t *testing.T) {
	srv, tdb := newTestServer(t)

	sub := tdb.Hub.Subscribe(observe.NewRegion("players"))
	defer sub.Close()

	body := `{"sql":"INSERT INTO missing (x) VALUES (1)","tables":["players"]}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/write", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	select {
	case <-sub.C():
		t.Fatal("failed write must not notify")
	default:
	}
}

func TestToPayload(t *testing.T) {
	row, err := rowdiff.NewRow([]string{"id", "name"}, []any{1, "Arthur"}, []string{"id"})
	require.NoError(t, err)

	initial := observe.Event{Seq: 0, Rows: []rowdiff.Row{row}, Diff: rowdiff.DiffResult{Initial: true}}
	p := toPayload(initial)
	assert.True(t, p.Initial)
	require.Len(t, p.Rows, 1)
	assert.Equal(t, "Arthur", p.Rows[0]["name"])
	assert.Empty(t, p.Changes)

	diff := observe.Event{Seq: 3, Diff: rowdiff.DiffResult{Changes: []rowdiff.Change{
		{Kind: rowdiff.Insert, Row: row, Index: 0},
	}}}
	p = toPayload(diff)
	assert.False(t, p.Initial)
	assert.Empty(t, p.Rows)
	require.Len(t, p.Changes, 1)
	assert.Equal(t, "insert", p.Changes[0].Kind)
	assert.Equal(t, int64(1), p.Changes[0].Row["id"])
}
