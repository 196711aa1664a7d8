/*
errors.go - Centralized error types for the allocation engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The subsidy package and the storage adapters wrap these; the HTTP layer
  maps them onto status codes.

ERROR CATEGORIES:
  1. Validation errors - Malformed input to a leaf function
  2. Configuration errors - Threshold misconfiguration
  3. Store errors - Any failure from a persistence collaborator

An empty allocation (every leave segment rejected as overlapping) is NOT an
error. See subsidy.AllocationResult.Empty.

USAGE:
    if errors.Is(err, generic.ErrValidation) {
        // caller sent bad input
    }
    if errors.Is(err, generic.ErrPersistence) {
        // store failed; nothing was written, caller may retry
    }

SEE ALSO:
  - subsidy/errors.go: Workflow errors (transitions, claims)
  - api/handlers.go: HTTP status mapping
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation marks malformed caller input.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period: end before start")

	// ErrThresholdMisconfigured is returned for a non-positive day threshold.
	ErrThresholdMisconfigured = errors.New("threshold misconfigured")

	// ErrPersistence marks any failure reported by a store.
	ErrPersistence = errors.New("persistence failure")

	// ErrNotFound is returned when a referenced interval doesn't exist.
	ErrNotFound = errors.New("not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError describes one rejected input field.
type ValidationError struct {
	Field  string
	Reason string
	Err    error // optional cause, e.g. ErrInvalidPeriod
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ThresholdError is raised before any store interaction when the configured
// day threshold cannot be used.
type ThresholdError struct {
	ThresholdDays int
}

func (e *ThresholdError) Error() string {
	return fmt.Sprintf("threshold must be positive, got %d days", e.ThresholdDays)
}

func (e *ThresholdError) Unwrap() error {
	return ErrThresholdMisconfigured
}

// PersistenceError wraps a store failure with the operation that failed.
// errors.Is matches both ErrPersistence and the underlying cause.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Persistence wraps err as a PersistenceError unless it already is one.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidPeriod)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
