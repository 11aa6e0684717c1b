// Package shared contains common error types and utilities for error handling
// across the application without domain-specific logic.
//
// # Error Types and Classification
//
// This package provides a set of standard error types (sentinel errors) that
// represent common failure conditions:
//
//   - ErrDecode: Row could not be materialized into a record
//   - ErrFetch: Snapshot fetch against the database failed
//   - ErrClosed: Use of an already cancelled observation or closed resource
//   - ErrInvariantViolated: Broken precondition, such as duplicate keys
//   - ErrTimeout: Operation timed out
//
// # Error Classification
//
// Use KindOf() to classify errors into categories:
//
//	err := obs.Err()
//	switch shared.KindOf(err) {
//	case shared.KindFetch:
//	    // The snapshot query failed; retrying may help.
//	case shared.KindDecode:
//	    // A row did not match the expected record shape.
//	case shared.KindCanceled:
//	    // The observation was cancelled; nothing to do.
//	default:
//	    // Handle other errors.
//	}
//
// KindOf traverses the full error chain, so classification works through any
// number of fmt.Errorf("%w") wrappers. Context cancellation and timeouts are
// recognized without explicit marking.
//
// # Marking Errors
//
// Errors from lower layers can be tagged with a kind while keeping the
// original chain intact:
//
//	rows, err := tx.QueryContext(ctx, query)
//	if err != nil {
//	    return shared.MarkKind(err, shared.KindFetch)
//	}
//
// Marking is idempotent: marking an error with a kind it already has returns
// it unchanged.
package shared
