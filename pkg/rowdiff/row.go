package rowdiff

import (
	"bytes"
	"fmt"
)

// Row is an immutable snapshot of one fetched database row: an ordered set of
// column names with their SQLite dynamic values (nil, int64, float64, string
// or []byte) plus the primary-key value extracted at construction time.
type Row struct {
	cols []string
	vals []any
	key  Key
}

// Key is the primary-key value of a Row, one element per key column.
// Keys order the way SQLite orders values: NULL < numeric < text < blob.
type Key []any

// NewRow builds a Row from parallel column/value slices and the names of the
// primary-key columns, in key order. Values are normalized to the five SQLite
// storage classes; blobs are copied so the Row never aliases caller memory.
func NewRow(cols []string, vals []any, keyCols []string) (Row, error) {
	if len(cols) != len(vals) {
		return Row{}, fmt.Errorf("rowdiff: %d columns but %d values", len(cols), len(vals))
	}
	if len(keyCols) == 0 {
		return Row{}, fmt.Errorf("rowdiff: at least one primary-key column required")
	}

	r := Row{
		cols: append([]string(nil), cols...),
		vals: make([]any, len(vals)),
	}
	for i, v := range vals {
		nv, err := normalizeValue(v)
		if err != nil {
			return Row{}, fmt.Errorf("rowdiff: column %q: %w", cols[i], err)
		}
		r.vals[i] = nv
	}

	r.key = make(Key, len(keyCols))
	for i, kc := range keyCols {
		idx := indexOf(r.cols, kc)
		if idx < 0 {
			return Row{}, fmt.Errorf("rowdiff: primary-key column %q not present in row", kc)
		}
		r.key[i] = r.vals[idx]
	}
	return r, nil
}

// Key returns the primary-key value extracted at construction.
func (r Row) Key() Key { return r.key }

// Columns returns the column names in fetch order.
func (r Row) Columns() []string {
	return append([]string(nil), r.cols...)
}

// Value returns the value of the named column and whether the column exists.
func (r Row) Value(col string) (any, bool) {
	idx := indexOf(r.cols, col)
	if idx < 0 {
		return nil, false
	}
	return r.vals[idx], true
}

// Map returns the row as a column → value map. Mutating the returned map does
// not affect the Row.
func (r Row) Map() map[string]any {
	m := make(map[string]any, len(r.cols))
	for i, c := range r.cols {
		m[c] = r.vals[i]
	}
	return m
}

// Len returns the number of columns.
func (r Row) Len() int { return len(r.cols) }

// Equal reports whether every column of r equals the corresponding column of
// o, by value. Rows with different column sets are never equal.
func (r Row) Equal(o Row) bool {
	if len(r.cols) != len(o.cols) {
		return false
	}
	for i, c := range r.cols {
		if c != o.cols[i] {
			return false
		}
		if !valueEqual(r.vals[i], o.vals[i]) {
			return false
		}
	}
	return true
}

// changedColumns returns the names of columns whose value differs between r
// (the old row) and o (the new row), mapped to the old value.
func (r Row) changedColumns(o Row) map[string]any {
	changed := make(map[string]any)
	for i, c := range r.cols {
		nv, ok := o.Value(c)
		if !ok || !valueEqual(r.vals[i], nv) {
			changed[c] = r.vals[i]
		}
	}
	for _, c := range o.cols {
		if _, ok := r.Value(c); !ok {
			// Column only present in the new row: report nil as old value.
			changed[c] = nil
		}
	}
	return changed
}

// Compare orders two keys the way SQLite orders values. Keys of different
// length compare by their common prefix first, shorter key first on a tie.
func (k Key) Compare(o Key) int {
	n := min(len(k), len(o))
	for i := 0; i < n; i++ {
		if c := compareValues(k[i], o[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(k) < len(o):
		return -1
	case len(k) > len(o):
		return 1
	default:
		return 0
	}
}

// Equal reports whether two keys are equal.
func (k Key) Equal(o Key) bool { return k.Compare(o) == 0 }

// String renders the key for error messages and logs.
func (k Key) String() string {
	if len(k) == 1 {
		return fmt.Sprintf("%v", k[0])
	}
	return fmt.Sprintf("%v", []any(k))
}

// typeRank assigns SQLite's cross-type ordering: NULL < numeric < text < blob.
func typeRank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case int64, float64:
		return 1
	case string:
		return 2
	case []byte:
		return 3
	default:
		panic(fmt.Sprintf("rowdiff: unsupported value type %T", v))
	}
}

func compareValues(a, b any) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch av := a.(type) {
	case nil:
		return 0
	case int64:
		switch bv := b.(type) {
		case int64:
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			}
			return 0
		case float64:
			return compareFloat(float64(av), bv)
		}
	case float64:
		switch bv := b.(type) {
		case int64:
			return compareFloat(av, float64(bv))
		case float64:
			return compareFloat(av, bv)
		}
	case string:
		bv := b.(string)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	case []byte:
		return bytes.Compare(av, b.([]byte))
	}
	return 0
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func valueEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if ab, ok := a.([]byte); ok {
		bb, ok := b.([]byte)
		return ok && bytes.Equal(ab, bb)
	}
	if typeRank(a) != typeRank(b) {
		return false
	}
	// Integers and reals are distinct storage classes but compare numerically,
	// matching SQLite: 1 == 1.0.
	if typeRank(a) == 1 {
		return compareValues(a, b) == 0
	}
	return a == b
}

// normalizeValue widens Go scalars into the five SQLite storage classes.
func normalizeValue(v any) (any, error) {
	switch t := v.(type) {
	case nil, int64, float64, string:
		return v, nil
	case []byte:
		return append([]byte(nil), t...), nil
	case bool:
		if t {
			return int64(1), nil
		}
		return int64(0), nil
	case int:
		return int64(t), nil
	case int8:
		return int64(t), nil
	case int16:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case uint8:
		return int64(t), nil
	case uint16:
		return int64(t), nil
	case uint32:
		return int64(t), nil
	case float32:
		return float64(t), nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

func indexOf(ss []string, s string) int {
	for i, v := range ss {
		if v == s {
			return i
		}
	}
	return -1
}
