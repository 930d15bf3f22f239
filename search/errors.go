package search

import (
	"errors"
	"fmt"
)

// ValidationError reports a malformed filter, pagination, or sorting input.
// It names the offending field so the caller gets a structured description
// of the violated constraint. Validation errors are raised before any cache
// lookup or store access.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid search input: %s: %s", e.Field, e.Reason)
}

// ExecutionError wraps a store-level failure during count, fetch, or
// aggregation. Internals stay in the wrapped error for logs; callers see
// only the generic message.
type ExecutionError struct {
	Err error
}

func (e *ExecutionError) Error() string {
	return "search execution failed"
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

var (
	// ErrURLTooLong rejects simple-form requests whose encoded URL exceeds
	// the bookmarkable limit; such queries belong on the rich POST form.
	ErrURLTooLong = errors.New("encoded search URL exceeds the simple-form limit; use the POST search endpoint")

	// ErrForbidden rejects callers lacking the role an operation requires.
	ErrForbidden = errors.New("insufficient role for this operation")

	// ErrNotImplemented signals a declared-but-unimplemented export
	// encoding, distinct from a generic failure so callers can fall back.
	ErrNotImplemented = errors.New("requested format is not implemented")
)

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
