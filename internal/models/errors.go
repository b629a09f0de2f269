package models

import (
	"errors"
	"fmt"
)

// ErrRunInProgress is returned when a second run of the same type is
// started while one is already in flight.
var ErrRunInProgress = errors.New("a run of this type is already in progress")

// ErrNoActiveCategories aborts a categorization run that has nothing to
// assign from.
var ErrNoActiveCategories = errors.New("no active categories configured")

// ErrWriteBackUnsupported is returned by source stores that cannot write
// synthesized IDs back into the export.
var ErrWriteBackUnsupported = errors.New("source does not support ID write-back")

// ValidationError reports a bad shape or value in a raw record.
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s (value: %q)", e.Field, e.Message, e.Value)
}

// InvalidTransitionError reports a status change outside the state machine.
// Indicates a programming error; fails loudly.
type InvalidTransitionError struct {
	From ProcessingStatus
	To   ProcessingStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition: %s -> %s", e.From, e.To)
}

// DuplicateError reports an already-ingested stable key.
type DuplicateError struct {
	Key string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate transaction: %s", e.Key)
}

// IsDuplicate reports whether err is a DuplicateError.
func IsDuplicate(err error) bool {
	var d *DuplicateError
	return errors.As(err, &d)
}
