// Package apperr defines the error kinds shared by every bounded context.
//
// Domain errors wrap exactly one kind so callers can branch on either the
// specific error or its kind:
//
//	var ErrSerialAlreadyActive = apperr.Invariant("serial already active")
//
//	errors.Is(err, ErrSerialAlreadyActive) // specific
//	errors.Is(err, apperr.ErrInvariant)    // kind
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrInvariant marks an attempted transition from an illegal status.
	ErrInvariant = errors.New("invariant violation")
	// ErrNotFound marks a reference to a missing entity.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks a uniqueness violation.
	ErrConflict = errors.New("conflict")
)

// Invariant returns a new error of kind ErrInvariant.
func Invariant(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvariant, msg)
}

// NotFound returns a new error of kind ErrNotFound.
func NotFound(msg string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, msg)
}

// Conflict returns a new error of kind ErrConflict.
func Conflict(msg string) error {
	return fmt.Errorf("%w: %s", ErrConflict, msg)
}
