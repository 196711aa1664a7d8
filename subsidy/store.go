/*
store.go - Persistence interfaces for leave intervals and subsidy periods

PURPOSE:
  Defines the interface between the allocation engine and the database.
  The engine has zero knowledge of the storage technology; it only needs
  the four queries below plus a transaction boundary.

KEY INTERFACES:
  Store:       Overlap lookup, most-recent lookup, cumulative counter, CreateMany
  TxStore:     Store + WithTx for the atomic allocate-then-persist unit
  ReportStore: Read models and status updates for reporting and workflow

ATOMICITY:
  CreateMany() is all-or-nothing for one kind. A single allocation writes
  leave intervals AND subsidy periods, so Service wraps both CreateMany
  calls in one WithTx. If any write fails, nothing from that call persists.

ERRORS:
  Implementations return raw driver errors; Service wraps them as
  generic.PersistenceError. GetInterval returns generic.ErrNotFound for an
  unknown id.

IMPLEMENTATIONS:
  - subsidy/store/memory.go: In-memory for tests and the CLI dry-run
  - store/sqlite/sqlite.go: SQLite

SEE ALSO:
  - service.go: The only writer
  - report.go: Uses ReportStore
*/
package subsidy

import (
	"context"

	"github.com/warp/subsidy-engine/generic"
)

// =============================================================================
// STORE
// =============================================================================

type Store interface {
	// FindOverlapping returns the subject's live intervals of kind that share
	// at least one day with period, ordered by start ascending.
	FindOverlapping(ctx context.Context, subjectID SubjectID, kind Kind, period generic.Period) ([]Interval, error)

	// FindMostRecent returns the subject's live interval of kind with the
	// latest end date, or nil when there is none.
	FindMostRecent(ctx context.Context, subjectID SubjectID, kind Kind) (*Interval, error)

	// SumAcceptedDays sums TotalDays over the subject's accepted leave
	// intervals, skipping the one with id excluding (may be empty).
	SumAcceptedDays(ctx context.Context, subjectID SubjectID, excluding IntervalID) (int, error)

	// CreateMany persists intervals of one kind atomically and returns them
	// as committed.
	CreateMany(ctx context.Context, kind Kind, intervals []Interval) ([]Interval, error)
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// REPORT STORE - Read models and workflow updates
// =============================================================================

// IntervalFilter narrows ListIntervals. Zero-valued fields match everything.
type IntervalFilter struct {
	Kind         Kind
	SubjectID    SubjectID
	Statuses     []Status
	Reimbursable *bool
}

type ReportStore interface {
	// ListIntervals returns matching intervals ordered by subject, then start.
	ListIntervals(ctx context.Context, filter IntervalFilter) ([]Interval, error)

	GetInterval(ctx context.Context, id IntervalID) (*Interval, error)

	UpdateStatus(ctx context.Context, id IntervalID, status Status) error
}

// Matches applies the filter in memory; stores without a query language use it.
func (f IntervalFilter) Matches(iv Interval) bool {
	if f.Kind != "" && iv.Kind != f.Kind {
		return false
	}
	if f.SubjectID != "" && iv.SubjectID != f.SubjectID {
		return false
	}
	if f.Reimbursable != nil && iv.Reimbursable != *f.Reimbursable {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if iv.Status == s {
			return true
		}
	}
	return false
}
