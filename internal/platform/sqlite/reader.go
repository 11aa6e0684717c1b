package sqlite

import (
	"context"
	"fmt"
	"sort"
	"time"

	"rowwatch/internal/shared"
	"rowwatch/pkg/rowdiff"
)

// QueryReader fetches one query's full result set as a key-sorted snapshot
// sequence, inside a DEFERRED read transaction so the rows reflect a single
// consistent point-in-time view. It implements observe.Reader.
type QueryReader struct {
	runner  *TxRunner
	query   string
	args    []any
	keyCols []string
}

// NewQueryReader builds a reader over query with the given primary-key
// columns (in key order) and bind arguments. The key columns must appear in
// the query's select list.
func NewQueryReader(runner *TxRunner, query string, keyCols []string, args ...any) *QueryReader {
	return &QueryReader{runner: runner, query: query, args: args, keyCols: keyCols}
}

// ReadRows executes the query in a read transaction and returns the rows
// sorted ascending by primary key. Duplicate primary keys mean the declared
// key columns do not identify rows; that is reported as an invariant
// violation rather than handed to the diff, which would panic on it.
func (r *QueryReader) ReadRows(ctx context.Context) ([]rowdiff.Row, error) {
	var out []rowdiff.Row
	err := r.runner.WithinReadTx(ctx, func(txCtx context.Context) error {
		querier := r.runner.GetQuerier(txCtx)
		rows, err := querier.QueryContext(txCtx, r.query, r.args...)
		if err != nil {
			return fmt.Errorf("query failed: %w", err)
		}
		defer rows.Close()

		cols, err := rows.Columns()
		if err != nil {
			return fmt.Errorf("failed to read columns: %w", err)
		}

		for rows.Next() {
			vals := make([]any, len(cols))
			ptrs := make([]any, len(cols))
			for i := range vals {
				ptrs[i] = &vals[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				return fmt.Errorf("scan failed: %w", err)
			}
			for i, v := range vals {
				vals[i] = normalizeDriverValue(v)
			}
			row, err := rowdiff.NewRow(cols, vals, r.keyCols)
			if err != nil {
				return err
			}
			out = append(out, row)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Key().Compare(out[j].Key()) < 0
	})
	for i := 1; i < len(out); i++ {
		if out[i-1].Key().Equal(out[i].Key()) {
			return nil, shared.E(shared.KindInvariantViolated,
				fmt.Sprintf("duplicate primary key %s in query result", out[i].Key()))
		}
	}
	return out, nil
}

// normalizeDriverValue maps driver-specific scalars onto the SQLite storage
// classes rowdiff understands.
func normalizeDriverValue(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	default:
		return v
	}
}
