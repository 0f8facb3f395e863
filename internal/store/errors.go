package store

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by Update (and transaction updates) when the target
// document does not exist. Plain reads of an absent document return (nil, nil)
// instead; absence is not an error there.
var ErrNotFound = errors.New("document not found")

// ErrNotConfigured is returned by every operation of an adapter whose
// backing client was never initialized.
var ErrNotConfigured = errors.New("store is not configured")

// ErrUnsupportedOperator is returned when a query uses an operator outside
// the closed set, or one the active adapter cannot translate.
var ErrUnsupportedOperator = errors.New("unsupported query operator")

// ErrCursorMismatch is returned when a pagination cursor issued by one
// backend is replayed against another.
var ErrCursorMismatch = errors.New("cursor backend mismatch")

// PermissionError carries a stable machine-readable code for authorization
// failures. It is never swallowed into an empty result.
type PermissionError struct {
	Code string // stable, e.g. "permission-denied", "unauthenticated"
	Op   string // facade operation that failed
	Err  error
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Op, e.Err)
}

func (e *PermissionError) Unwrap() error { return e.Err }

// BatchError reports a mid-batch failure under the emulated batch writer,
// where operations already applied stay committed. Applied is the count of
// operations that succeeded before FailedIndex.
type BatchError struct {
	Applied     int
	FailedIndex int
	Err         error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch partially applied: %d operation(s) committed, operation %d failed: %v",
		e.Applied, e.FailedIndex, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }
