package rowdiff

// DiffResult is the outcome of one scanner step: either the very first
// snapshot ever seen (Initial, no prior state to compare against) or the list
// of changes since the previous snapshot. An empty Changes slice on a
// non-initial result means the snapshot was materially identical.
type DiffResult struct {
	Initial bool
	Changes []Change
}

// Scanner threads diff state through a stream of snapshot sequences. It holds
// the most recently seen sequence; Diffed returns the successor state along
// with the diff, so the caller owns sequencing and no hidden mutable field
// exists. A Scanner must not be used from two goroutines at once.
type Scanner struct {
	prior  []Row
	primed bool
}

// NewScanner creates a Scanner seeded with an initial sequence, usually empty.
// The seed only becomes the comparison base after the first Diffed call: that
// first call always reports Initial, even for a non-empty seed. The seed must
// be sorted strictly ascending by primary key.
func NewScanner(initial []Row) Scanner {
	mustBeKeySorted("initial", initial)
	return Scanner{prior: initial}
}

// Diffed consumes the next snapshot sequence and returns the successor
// Scanner plus the diff against the previously consumed sequence. The first
// call returns an Initial result; later calls return Changes, empty when
// nothing changed. rows must be sorted strictly ascending by primary key.
func (s Scanner) Diffed(rows []Row) (Scanner, DiffResult) {
	if !s.primed {
		mustBeKeySorted("new", rows)
		return Scanner{prior: rows, primed: true}, DiffResult{Initial: true}
	}
	changes := Diff(s.prior, rows)
	if changes == nil {
		changes = []Change{}
	}
	return Scanner{prior: rows, primed: true}, DiffResult{Changes: changes}
}
