// Package rowdiff computes primary-key-keyed diffs between successive full
// snapshots of a query's result rows.
//
// A snapshot sequence is a slice of Row values sorted strictly ascending by
// primary key. Diff merges two sequences in one linear pass and describes the
// difference as Insert/Update/Delete changes with positions, suitable for
// driving incremental list or table updates. Scanner folds Diff over a stream
// of sequences, threading the prior snapshot as explicit state.
//
// Row identity is the primary key: rows with equal keys are always the same
// logical row regardless of how many columns changed, so a content change is
// reported as a single Update and never as a Delete plus an Insert.
//
//	scanner := rowdiff.NewScanner(nil)
//	scanner, res := scanner.Diffed(rows)   // res.Initial == true
//	scanner, res = scanner.Diffed(rows2)   // res.Changes holds the edits
package rowdiff
