package rowdiff

import "fmt"

// Kind classifies one Change.
type Kind int

const (
	// Insert is a row present only in the new sequence.
	Insert Kind = iota
	// Update is a row present in both sequences with differing content.
	Update
	// Delete is a row present only in the old sequence.
	Delete
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case Insert:
		return "insert"
	case Update:
		return "update"
	case Delete:
		return "delete"
	default:
		return "unknown"
	}
}

// Change is one edit in the minimal description transforming the old snapshot
// sequence into the new one.
//
// For Insert and Update, Row is the new row and Index its position in the new
// sequence. For Delete, Row is the last known value of the removed row and
// Index its position in the old sequence. OldValues is set only for Update
// and maps each changed column name to its previous value.
type Change struct {
	Kind      Kind
	Row       Row
	Index     int
	OldValues map[string]any
}

// Diff computes the minimal Insert/Update/Delete edits between two snapshot
// sequences in a single linear merge pass, O(len(old)+len(new)).
//
// Both sequences must be sorted strictly ascending by primary key; duplicate
// keys within one sequence or unsorted input are programming errors and panic
// rather than produce a silently wrong diff. Rows with equal keys are always
// the same logical row (an Update when content differs, nothing when it does
// not), never a Delete plus an Insert. The returned slice is ordered by the
// position of occurrence in the merge walk.
func Diff(old, new []Row) []Change {
	mustBeKeySorted("old", old)
	mustBeKeySorted("new", new)

	var changes []Change
	i, j := 0, 0
	for i < len(old) && j < len(new) {
		switch c := old[i].Key().Compare(new[j].Key()); {
		case c < 0:
			changes = append(changes, Change{Kind: Delete, Row: old[i], Index: i})
			i++
		case c > 0:
			changes = append(changes, Change{Kind: Insert, Row: new[j], Index: j})
			j++
		default:
			if !old[i].Equal(new[j]) {
				changes = append(changes, Change{
					Kind:      Update,
					Row:       new[j],
					Index:     j,
					OldValues: old[i].changedColumns(new[j]),
				})
			}
			i++
			j++
		}
	}
	for ; i < len(old); i++ {
		changes = append(changes, Change{Kind: Delete, Row: old[i], Index: i})
	}
	for ; j < len(new); j++ {
		changes = append(changes, Change{Kind: Insert, Row: new[j], Index: j})
	}
	return changes
}

// mustBeKeySorted panics unless rows are strictly ascending by key.
func mustBeKeySorted(name string, rows []Row) {
	for i := 1; i < len(rows); i++ {
		c := rows[i-1].Key().Compare(rows[i].Key())
		if c > 0 {
			panic(fmt.Sprintf("rowdiff: %s sequence not sorted by primary key at index %d", name, i))
		}
		if c == 0 {
			panic(fmt.Sprintf("rowdiff: duplicate primary key %s in %s sequence at index %d", rows[i].Key(), name, i))
		}
	}
}
