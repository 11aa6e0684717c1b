package observe

// Region is a set of tables with optional column restrictions. It describes
// both the read set an observation declares and the write set a committed
// transaction touched. An empty column set means the whole table.
type Region map[string]ColumnSet

// ColumnSet is a set of column names.
type ColumnSet map[string]struct{}

// NewRegion builds a Region covering the given tables in full.
func NewRegion(tables ...string) Region {
	r := make(Region, len(tables))
	for _, t := range tables {
		r[t] = nil
	}
	return r
}

// Columns returns a ColumnSet over the given names.
func Columns(cols ...string) ColumnSet {
	cs := make(ColumnSet, len(cols))
	for _, c := range cols {
		cs[c] = struct{}{}
	}
	return cs
}

// WithColumns restricts table to the given columns and returns the Region for
// chaining. No columns removes the restriction again.
func (r Region) WithColumns(table string, cols ...string) Region {
	if len(cols) == 0 {
		r[table] = nil
		return r
	}
	r[table] = Columns(cols...)
	return r
}

// Overlaps reports whether any table appears in both regions with
// intersecting column sets. An empty column set on either side matches any
// column of that table.
func (r Region) Overlaps(other Region) bool {
	for table, cols := range r {
		ocols, ok := other[table]
		if !ok {
			continue
		}
		if len(cols) == 0 || len(ocols) == 0 {
			return true
		}
		for c := range cols {
			if _, ok := ocols[c]; ok {
				return true
			}
		}
	}
	return false
}

// Tables returns the table names covered by the region.
func (r Region) Tables() []string {
	ts := make([]string, 0, len(r))
	for t := range r {
		ts = append(ts, t)
	}
	return ts
}
