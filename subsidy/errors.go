package subsidy

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is returned for a status change the subsidy
	// workflow does not allow.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrNotReimbursable is returned when a claim is drafted for a
	// non-reimbursable subsidy period.
	ErrNotReimbursable = errors.New("subsidy period is not reimbursable")

	// ErrStoreRequired is returned when an operation requires a store capability
	// the service was not wired with.
	ErrStoreRequired = errors.New("operation requires a report store")

	// ErrDuplicateID is returned by stores when CreateMany receives an id
	// that is already stored or repeated within the batch.
	ErrDuplicateID = errors.New("duplicate interval id")
)

// TransitionError provides details about a rejected status change.
type TransitionError struct {
	IntervalID IntervalID
	Kind       Kind
	From       Status
	To         Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s interval %s cannot move from %s to %s", e.Kind, e.IntervalID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}
