package model

import (
	"errors"
	"fmt"
)

// Sentinel errors for the runtime core. Typed errors below wrap these so
// callers can branch with errors.Is without depending on concrete types.
var (
	// ErrIllegalState - a lifecycle operation was invoked out of order, or a
	// binding was mutated after use.
	ErrIllegalState = errors.New("illegal state")

	// ErrDuplicateIdentifier - two distinct declarations share one identifier.
	ErrDuplicateIdentifier = errors.New("duplicate identifier")

	// ErrInvalidArgument - an empty or malformed required value.
	ErrInvalidArgument = errors.New("invalid argument")
)

// IllegalStateError reports a lifecycle or binding violation.
type IllegalStateError struct {
	Op     string // the operation that was rejected
	Detail string
}

// NewIllegalStateError creates an IllegalStateError.
func NewIllegalStateError(op, detail string) *IllegalStateError {
	return &IllegalStateError{Op: op, Detail: detail}
}

func (e *IllegalStateError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: illegal state", e.Op)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Detail)
}

func (e *IllegalStateError) Unwrap() error { return ErrIllegalState }

// IsIllegalState reports whether err is an illegal-state error.
func IsIllegalState(err error) bool {
	return errors.Is(err, ErrIllegalState)
}

// DuplicateIdentifierError reports two declarations registered under one
// identifier that resolve to different identity keys.
type DuplicateIdentifierError struct {
	ID          string
	ExistingKey string
	NewKey      string
}

// NewDuplicateIdentifierError creates a DuplicateIdentifierError.
func NewDuplicateIdentifierError(id, existingKey, newKey string) *DuplicateIdentifierError {
	return &DuplicateIdentifierError{ID: id, ExistingKey: existingKey, NewKey: newKey}
}

func (e *DuplicateIdentifierError) Error() string {
	return fmt.Sprintf("duplicated declaration with id %q, old: %s, new: %s", e.ID, e.ExistingKey, e.NewKey)
}

func (e *DuplicateIdentifierError) Unwrap() error { return ErrDuplicateIdentifier }

// IsDuplicateIdentifier reports whether err is a duplicate-identifier error.
func IsDuplicateIdentifier(err error) bool {
	return errors.Is(err, ErrDuplicateIdentifier)
}

// RequiredError reports a missing required field.
func RequiredError(field string) error {
	return fmt.Errorf("%s: is required: %w", field, ErrInvalidArgument)
}

// IsInvalidArgument reports whether err is an invalid-argument error.
func IsInvalidArgument(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}
