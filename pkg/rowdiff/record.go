package rowdiff

import "sync"

// Decoder materializes a Row into a typed record. It must be a pure function
// of the row and must not mutate it.
type Decoder[T any] func(Row) (T, error)

// Record pairs a Row with a lazily materialized typed value. Decoding runs at
// most once per Record instance and the result is cached, so rows the
// consumer never inspects are never decoded. The cached value is safe to read
// from multiple goroutines.
type Record[T any] struct {
	row  Row
	dec  Decoder[T]
	once sync.Once
	val  T
	err  error
}

// NewRecord wraps row with a decoder for on-demand materialization.
func NewRecord[T any](row Row, dec Decoder[T]) *Record[T] {
	return &Record[T]{row: row, dec: dec}
}

// Row returns the underlying row snapshot.
func (r *Record[T]) Row() Row { return r.row }

// Materialize decodes the row into T, caching the result. A decode error is
// returned to the caller on every invocation; it never aborts a diff, since
// diffing needs only primary keys and raw column equality.
func (r *Record[T]) Materialize() (T, error) {
	r.once.Do(func() {
		r.val, r.err = r.dec(r.row)
	})
	return r.val, r.err
}
