/*
service.go - Store-backed allocation with per-subject serialization

PURPOSE:
  Drives the pure Allocator against a TxStore:
  1. Reads the existing intervals, the most recent ones and the cumulative
     counter for the subject
  2. Runs Allocator.Allocate
  3. Persists leave intervals and subsidy periods in ONE transaction

CONCURRENCY:
  Two submissions for the same subject racing through read-allocate-write
  could both see the same snapshot and write overlapping intervals. Service
  holds a per-subject mutex for the whole sequence. Different subjects never
  contend.

ERRORS:
  - ThresholdError and ValidationError are raised before any store call
  - Store failures come back as generic.PersistenceError; nothing was written
  - An empty allocation is returned as a result, not an error

SUBSIDY WORKFLOW:
  registered ──▶ under_review ──▶ accepted ──▶ filed
       │               │              ▲
       │               └─▶ registered │
       └──────────────────────────────┘
  Reaching accepted on a reimbursable period emits claim_triggered.

LEAVE REVIEW:
  accepted ◀──▶ pending_review
      │              │
      └──────┬───────┘
             ▼
  rejected_documentation   (final, frees the leave's days)
*/
package subsidy

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/warp/subsidy-engine/generic"
)

// =============================================================================
// SERVICE
// =============================================================================

type Service struct {
	Store     TxStore
	Reports   ReportStore // optional; required by AdvanceSubsidy
	Allocator *Allocator
	DailyRate decimal.Decimal

	locks subjectLocks
}

// NewService wires a service to a store that supports both the allocation
// and the reporting contracts.
func NewService(store interface {
	TxStore
	ReportStore
}, allocator *Allocator, dailyRate decimal.Decimal) *Service {
	return &Service{
		Store:     store,
		Reports:   store,
		Allocator: allocator,
		DailyRate: dailyRate,
	}
}

// Allocate records a leave submission and derives its subsidy periods.
func (s *Service) Allocate(ctx context.Context, sub Submission, thresholdDays int) (*AllocationResult, error) {
	if thresholdDays <= 0 {
		return nil, &generic.ThresholdError{ThresholdDays: thresholdDays}
	}
	if err := sub.Validate(); err != nil {
		return nil, err
	}

	unlock := s.locks.lock(sub.SubjectID)
	defer unlock()

	var (
		result *AllocationResult
		fnErr  error
	)
	err := s.Store.WithTx(ctx, func(tx Store) error {
		result, fnErr = s.allocateTx(ctx, tx, sub, thresholdDays)
		return fnErr
	})
	if fnErr != nil {
		return nil, fnErr
	}
	if err != nil {
		return nil, generic.Persistence("allocate transaction", err)
	}
	return result, nil
}

func (s *Service) allocateTx(ctx context.Context, tx Store, sub Submission, thresholdDays int) (*AllocationResult, error) {
	input, err := s.loadInput(ctx, tx, sub, thresholdDays)
	if err != nil {
		return nil, err
	}

	result, err := s.Allocator.Allocate(input)
	if err != nil {
		return nil, err
	}
	if result.Empty() {
		return result, nil
	}

	leaves, err := tx.CreateMany(ctx, KindLeave, result.Leaves)
	if err != nil {
		return nil, generic.Persistence("create leave intervals", err)
	}
	result.Leaves = leaves

	if len(result.Subsidies) > 0 {
		subsidies, err := tx.CreateMany(ctx, KindSubsidy, result.Subsidies)
		if err != nil {
			return nil, generic.Persistence("create subsidy periods", err)
		}
		result.Subsidies = subsidies
	}
	return result, nil
}

func (s *Service) loadInput(ctx context.Context, tx Store, sub Submission, thresholdDays int) (AllocationInput, error) {
	input := AllocationInput{Submission: sub, ThresholdDays: thresholdDays}

	leaves, err := tx.FindOverlapping(ctx, sub.SubjectID, KindLeave, sub.Period)
	if err != nil {
		return input, generic.Persistence("find overlapping leave", err)
	}
	for _, l := range leaves {
		if l.Status == LeaveAccepted {
			input.ExistingLeaves = append(input.ExistingLeaves, l.Period)
		}
	}

	subsidies, err := tx.FindOverlapping(ctx, sub.SubjectID, KindSubsidy, sub.Period)
	if err != nil {
		return input, generic.Persistence("find overlapping subsidy periods", err)
	}
	input.ExistingSubsidies = Periods(subsidies)

	if input.PriorLeaveEnd, err = mostRecentEnd(ctx, tx, sub.SubjectID, KindLeave); err != nil {
		return input, err
	}
	if input.PriorSubsidyEnd, err = mostRecentEnd(ctx, tx, sub.SubjectID, KindSubsidy); err != nil {
		return input, err
	}

	if input.CumulativeDays, err = tx.SumAcceptedDays(ctx, sub.SubjectID, ""); err != nil {
		return input, generic.Persistence("sum accepted days", err)
	}
	return input, nil
}

func mostRecentEnd(ctx context.Context, tx Store, subjectID SubjectID, kind Kind) (*generic.TimePoint, error) {
	recent, err := tx.FindMostRecent(ctx, subjectID, kind)
	if err != nil {
		return nil, generic.Persistence("find most recent "+string(kind), err)
	}
	if recent == nil {
		return nil, nil
	}
	end := recent.Period.End
	return &end, nil
}

// =============================================================================
// SUBSIDY WORKFLOW
// =============================================================================

var subsidyTransitions = map[Status][]Status{
	SubsidyRegistered:  {SubsidyUnderReview, SubsidyAccepted},
	SubsidyUnderReview: {SubsidyAccepted, SubsidyRegistered},
	SubsidyAccepted:    {SubsidyFiled},
}

// Rejected leave is final: its days are already free for resubmission.
var leaveTransitions = map[Status][]Status{
	LeaveAccepted:      {LeavePendingReview, LeaveRejectedDocumentation},
	LeavePendingReview: {LeaveAccepted, LeaveRejectedDocumentation},
}

// CanTransition reports whether a subsidy period may move from one status to another.
func CanTransition(from, to Status) bool {
	return allowed(subsidyTransitions, from, to)
}

// CanReviewLeave reports whether a leave interval may move from one status to another.
func CanReviewLeave(from, to Status) bool {
	return allowed(leaveTransitions, from, to)
}

func allowed(transitions map[Status][]Status, from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// AdvanceSubsidy moves a subsidy period through its workflow and returns the
// updated period with the events the change produced.
func (s *Service) AdvanceSubsidy(ctx context.Context, id IntervalID, to Status) (*Interval, []Event, error) {
	return s.transition(ctx, id, KindSubsidy, to, func(updated Interval) ([]Event, error) {
		events := []Event{statusEvent(EventSubsidyStatusChanged, updated)}
		if to != SubsidyAccepted || !updated.Reimbursable {
			return events, nil
		}
		claim, err := NewClaimDraft(updated, s.DailyRate)
		if err != nil {
			return nil, err
		}
		claimed := statusEvent(EventClaimTriggered, updated)
		claimed.Claim = claim
		return append(events, claimed), nil
	})
}

// ReviewLeave moves a leave interval through document review. Rejecting the
// documentation frees the leave's days and emits documentation_rejected.
func (s *Service) ReviewLeave(ctx context.Context, id IntervalID, to Status) (*Interval, []Event, error) {
	return s.transition(ctx, id, KindLeave, to, func(updated Interval) ([]Event, error) {
		events := []Event{statusEvent(EventLeaveStatusChanged, updated)}
		if to == LeaveRejectedDocumentation {
			events = append(events, statusEvent(EventDocumentationRejected, updated))
		}
		return events, nil
	})
}

// transition checks and applies a status change under the subject lock.
// Events are built before the store is touched, so a failure leaves the
// stored status unchanged.
func (s *Service) transition(
	ctx context.Context,
	id IntervalID,
	kind Kind,
	to Status,
	buildEvents func(updated Interval) ([]Event, error),
) (*Interval, []Event, error) {
	if s.Reports == nil {
		return nil, nil, ErrStoreRequired
	}

	current, err := s.getInterval(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if current.Kind != kind {
		return nil, nil, &generic.ValidationError{Field: "id", Reason: "interval " + string(id) + " is not a " + string(kind) + " interval"}
	}

	unlock := s.locks.lock(current.SubjectID)
	defer unlock()

	// Re-read under the subject lock so the transition check is current.
	current, err = s.getInterval(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	can := CanTransition
	if kind == KindLeave {
		can = CanReviewLeave
	}
	if !can(current.Status, to) {
		return nil, nil, &TransitionError{IntervalID: id, Kind: kind, From: current.Status, To: to}
	}

	updated := *current
	updated.Status = to
	events, err := buildEvents(updated)
	if err != nil {
		return nil, nil, err
	}

	if err := s.Reports.UpdateStatus(ctx, id, to); err != nil {
		if generic.IsNotFound(err) {
			return nil, nil, err
		}
		return nil, nil, generic.Persistence("update interval status", err)
	}
	return &updated, events, nil
}

// getInterval passes ErrNotFound through and wraps every other store failure.
func (s *Service) getInterval(ctx context.Context, id IntervalID) (*Interval, error) {
	iv, err := s.Reports.GetInterval(ctx, id)
	if err != nil {
		if generic.IsNotFound(err) {
			return nil, err
		}
		return nil, generic.Persistence("get interval", err)
	}
	return iv, nil
}

func statusEvent(t EventType, iv Interval) Event {
	return Event{
		Type:       t,
		SubjectID:  iv.SubjectID,
		IntervalID: iv.ID,
		Period:     iv.Period,
		Status:     iv.Status,
	}
}

// =============================================================================
// PER-SUBJECT LOCKS
// =============================================================================

type subjectLock struct {
	mu   sync.Mutex
	refs int
}

// subjectLocks hands out one mutex per subject and forgets it once no
// goroutine holds or waits on it.
type subjectLocks struct {
	mu    sync.Mutex
	locks map[SubjectID]*subjectLock
}

func (l *subjectLocks) lock(id SubjectID) (unlock func()) {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[SubjectID]*subjectLock)
	}
	sl := l.locks[id]
	if sl == nil {
		sl = &subjectLock{}
		l.locks[id] = sl
	}
	sl.refs++
	l.mu.Unlock()

	sl.mu.Lock()
	return func() {
		sl.mu.Unlock()
		l.mu.Lock()
		sl.refs--
		if sl.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}
