package shared

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Common domain errors used across the application.
var (
	// ErrDecode indicates that a row could not be materialized into a record.
	ErrDecode = errors.New("decode failed")

	// ErrFetch indicates that a snapshot fetch against the database failed.
	ErrFetch = errors.New("fetch failed")

	// ErrClosed indicates use of an already cancelled observation or closed resource.
	ErrClosed = errors.New("closed")

	// ErrInvariantViolated indicates a broken precondition, such as duplicate
	// primary keys in one snapshot sequence.
	ErrInvariantViolated = errors.New("invariant violated")

	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = errors.New("operation timed out")
)

// Kind represents a category of error for classification and handling.
type Kind int

const (
	// KindUnknown represents an unclassified error.
	KindUnknown Kind = iota
	// KindDecode represents row materialization failures.
	KindDecode
	// KindFetch represents snapshot fetch failures.
	KindFetch
	// KindClosed represents use-after-close errors.
	KindClosed
	// KindInvariantViolated represents broken preconditions.
	KindInvariantViolated
	// KindTimeout represents timeout errors.
	KindTimeout
	// KindCanceled represents context cancellation.
	KindCanceled
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case KindDecode:
		return "Decode"
	case KindFetch:
		return "Fetch"
	case KindClosed:
		return "Closed"
	case KindInvariantViolated:
		return "InvariantViolated"
	case KindTimeout:
		return "Timeout"
	case KindCanceled:
		return "Canceled"
	default:
		return "Unknown"
	}
}

// kindToSentinel maps error kinds to their sentinel errors.
var kindToSentinel = map[Kind]error{
	KindDecode:            ErrDecode,
	KindFetch:             ErrFetch,
	KindClosed:            ErrClosed,
	KindInvariantViolated: ErrInvariantViolated,
	KindTimeout:           ErrTimeout,
}

// kindPriorities defines the deterministic order for error classification.
var kindPriorities = []struct {
	kind Kind
	err  error
}{
	{KindCanceled, nil},
	{KindTimeout, ErrTimeout},
	{KindInvariantViolated, ErrInvariantViolated},
	{KindDecode, ErrDecode},
	{KindFetch, ErrFetch},
	{KindClosed, ErrClosed},
}

// KindOf returns the Kind of the given error by checking against known
// sentinel errors, traversing the error chain in a deterministic priority
// order. Returns KindUnknown for unrecognized errors.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	for _, priority := range kindPriorities {
		switch priority.kind {
		case KindCanceled:
			if IsCanceled(err) {
				return KindCanceled
			}
		case KindTimeout:
			if IsTimeout(err) {
				return KindTimeout
			}
		default:
			if priority.err != nil && errors.Is(err, priority.err) {
				return priority.kind
			}
		}
	}
	return KindUnknown
}

// HasKind reports whether the given error has the specified kind.
func HasKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// MarkKind wraps err with the sentinel for kind, preserving the original
// error chain. Marking is idempotent; KindUnknown and KindCanceled return the
// error unchanged.
func MarkKind(err error, kind Kind) error {
	sentinel, ok := kindToSentinel[kind]
	if !ok {
		return err
	}
	if err == nil {
		return sentinel
	}
	if errors.Is(err, sentinel) {
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}

// E creates a new error of the given kind with a message.
func E(kind Kind, msg string) error {
	sentinel, ok := kindToSentinel[kind]
	if !ok {
		return errors.New(msg)
	}
	return fmt.Errorf("%w: %s", sentinel, msg)
}

// Wrap annotates err with a message, keeping the chain intact.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// IsCanceled reports whether err stems from context cancellation.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}

// IsTimeout reports whether err is a timeout of any flavor: context deadline,
// the ErrTimeout sentinel, or a net.Error timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrTimeout) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return false
}
