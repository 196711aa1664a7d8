/*
allocator.go - Leave-to-subsidy threshold allocation

PURPOSE:
  Turns one leave submission into the leave intervals and subsidy periods
  to persist. Pure: all store-derived inputs arrive in AllocationInput and
  nothing is written here. Service supplies the inputs and persists the
  result atomically.

ALLOCATION FLOW:
  ┌───────────────────────────────────────────────────────────────────────┐
  │                                                                       │
  │  Submission ──▶ SplitByMonth ──▶ ResolveOverlap ──▶ IsContinuous      │
  │                                  (vs leave)          (leave chain)    │
  │                                        │                              │
  │                                        ▼                              │
  │                     ┌─────── privileged category? ───────┐            │
  │                     │ yes                             no │            │
  │                     ▼                                    ▼            │
  │           mirror every segment            cumulative + new < threshold│
  │             as reimbursable                 ? nothing : cut at the    │
  │                     │                        threshold day            │
  │                     └──────────────┬─────────────────────┘            │
  │                                    ▼                                  │
  │                SplitByMonth ──▶ ResolveOverlap ──▶ IsContinuous       │
  │                                 (vs subsidy)       (subsidy chain)    │
  │                                                                       │
  └───────────────────────────────────────────────────────────────────────┘

THRESHOLD EXAMPLE:
  cumulative 15, threshold 20, 10-day submission (newCumulative 25):
    days 1-5   non-reimbursable (employer-borne, up to the 20th day)
    days 6-10  reimbursable
  cumulative 5, threshold 20, 10-day submission (newCumulative 15):
    no subsidy periods; every day stays employer-borne.
  newCumulative == threshold produces subsidy periods.

THRESHOLD CUT:
  The cut is counted in leave days across the surviving segments, so a gap
  left by overlap trimming never turns into subsidy days. Each subsidy
  period keeps the id of the leave interval it was carved from.

SEE ALSO:
  - generic/period.go, generic/overlap.go: The leaf functions
  - service.go: Store-backed, serialized, transactional driver
*/
package subsidy

import (
	"time"

	"github.com/google/uuid"
	"github.com/warp/subsidy-engine/generic"
)

// DefaultFilingWindowDays is the days after the grant date within which a
// subsidy period must be filed for reimbursement.
const DefaultFilingWindowDays = 30

// =============================================================================
// ALLOCATOR
// =============================================================================

type Allocator struct {
	PrivilegedCategory Category
	FilingWindowDays   int

	NewID func() IntervalID
	Now   func() time.Time
}

// NewAllocator creates an allocator with uuid ids and the wall clock.
func NewAllocator(privileged Category, filingWindowDays int) *Allocator {
	if privileged == "" {
		privileged = DefaultPrivilegedCategory
	}
	if filingWindowDays <= 0 {
		filingWindowDays = DefaultFilingWindowDays
	}
	return &Allocator{
		PrivilegedCategory: privileged,
		FilingWindowDays:   filingWindowDays,
		NewID:              func() IntervalID { return IntervalID(uuid.NewString()) },
		Now:                time.Now,
	}
}

// AllocationInput is everything Allocate needs from the store.
type AllocationInput struct {
	Submission     Submission
	CumulativeDays int // accepted leave days before this submission
	ThresholdDays  int

	// Existing intervals of the subject overlapping the submission.
	ExistingLeaves    []generic.Period
	ExistingSubsidies []generic.Period

	// End dates of the subject's most recent interval of each kind.
	PriorLeaveEnd   *generic.TimePoint
	PriorSubsidyEnd *generic.TimePoint
}

// subsidyPiece is a slice of one leave segment before subsidy-side overlap
// resolution.
type subsidyPiece struct {
	leaveID      IntervalID
	period       generic.Period
	reimbursable bool
}

// Allocate computes the leave intervals and subsidy periods for a submission.
// An empty result (Outcome == OutcomeNothingToRecord) is returned when every
// leave segment overlaps existing leave.
func (a *Allocator) Allocate(in AllocationInput) (*AllocationResult, error) {
	if in.ThresholdDays <= 0 {
		return nil, &generic.ThresholdError{ThresholdDays: in.ThresholdDays}
	}
	if err := in.Submission.Validate(); err != nil {
		return nil, err
	}
	if in.CumulativeDays < 0 {
		return nil, &generic.ValidationError{Field: "cumulative_days", Reason: "must not be negative"}
	}

	sub := in.Submission
	now := a.now()

	// 1. Leave segments: split, trim, classify.
	segments, err := sub.Period.SplitByMonth()
	if err != nil {
		return nil, err
	}

	var leaves []Interval
	prior := in.PriorLeaveEnd
	for _, seg := range segments {
		for i, resolved := range generic.ResolveOverlapAll(seg, in.ExistingLeaves) {
			if i > 0 {
				prior = dayBefore(resolved.Start)
			}
			leaves = append(leaves, Interval{
				ID:          a.newID(),
				Kind:        KindLeave,
				SubjectID:   sub.SubjectID,
				Period:      resolved,
				TotalDays:   resolved.Days(),
				Category:    sub.Category,
				Continuous:  generic.IsContinuous(prior, resolved.Start),
				Status:      LeaveAccepted,
				GrantedDate: sub.GrantedDate,
				CreatedAt:   now,
			})
			end := resolved.End
			prior = &end
		}
	}

	if len(leaves) == 0 {
		return &AllocationResult{
			Outcome:        OutcomeNothingToRecord,
			CumulativeDays: in.CumulativeDays,
			Events: []Event{{
				Type:      EventSubmissionDiscarded,
				SubjectID: sub.SubjectID,
				Period:    sub.Period,
			}},
		}, nil
	}

	// 2. Days recorded by this submission.
	newTotal := 0
	for _, l := range leaves {
		newTotal += l.TotalDays
	}

	result := &AllocationResult{
		Outcome:        OutcomeRecorded,
		Leaves:         leaves,
		CumulativeDays: in.CumulativeDays + newTotal,
	}
	for _, l := range leaves {
		result.Events = append(result.Events, Event{
			Type:       EventLeaveAccepted,
			SubjectID:  l.SubjectID,
			IntervalID: l.ID,
			Period:     l.Period,
			Status:     l.Status,
		})
	}

	// 3/4. Subsidy pieces.
	var pieces []subsidyPiece
	if sub.Category == a.PrivilegedCategory {
		pieces = mirrorPieces(leaves)
	} else if result.CumulativeDays >= in.ThresholdDays {
		pieces = thresholdPieces(leaves, in.ThresholdDays-in.CumulativeDays)
	}

	subsidies, err := a.subsidyIntervals(sub, pieces, in.ExistingSubsidies, in.PriorSubsidyEnd, now)
	if err != nil {
		return nil, err
	}
	result.Subsidies = subsidies
	for _, s := range subsidies {
		result.Events = append(result.Events, Event{
			Type:       EventSubsidyRegistered,
			SubjectID:  s.SubjectID,
			IntervalID: s.ID,
			Period:     s.Period,
			Status:     s.Status,
		})
	}

	return result, nil
}

// mirrorPieces maps every leave segment to a fully reimbursable piece.
func mirrorPieces(leaves []Interval) []subsidyPiece {
	pieces := make([]subsidyPiece, 0, len(leaves))
	for _, l := range leaves {
		pieces = append(pieces, subsidyPiece{leaveID: l.ID, period: l.Period, reimbursable: true})
	}
	return pieces
}

// thresholdPieces marks the first untilThreshold leave days as
// non-reimbursable and every later day as reimbursable. A segment holding
// the cut yields one piece on each side.
func thresholdPieces(leaves []Interval, untilThreshold int) []subsidyPiece {
	var pieces []subsidyPiece
	remaining := untilThreshold
	for _, l := range leaves {
		if remaining <= 0 {
			pieces = append(pieces, subsidyPiece{leaveID: l.ID, period: l.Period, reimbursable: true})
			continue
		}
		if remaining >= l.TotalDays {
			pieces = append(pieces, subsidyPiece{leaveID: l.ID, period: l.Period})
			remaining -= l.TotalDays
			continue
		}
		cut := l.Period.Start.AddDays(remaining - 1)
		pieces = append(pieces,
			subsidyPiece{leaveID: l.ID, period: generic.Period{Start: l.Period.Start, End: cut}},
			subsidyPiece{leaveID: l.ID, period: generic.Period{Start: cut.AddDays(1), End: l.Period.End}, reimbursable: true},
		)
		remaining = 0
	}
	return pieces
}

// subsidyIntervals runs each piece through the splitter and the overlap
// resolver against existing subsidy periods, dropping what does not survive.
func (a *Allocator) subsidyIntervals(
	sub Submission,
	pieces []subsidyPiece,
	existing []generic.Period,
	priorEnd *generic.TimePoint,
	now time.Time,
) ([]Interval, error) {
	maxFiling := sub.GrantedDate.AddDays(a.filingWindow())

	var out []Interval
	prior := priorEnd
	for _, piece := range pieces {
		segments, err := piece.period.SplitByMonth()
		if err != nil {
			return nil, err
		}
		for _, seg := range segments {
			for i, resolved := range generic.ResolveOverlapAll(seg, existing) {
				if i > 0 {
					prior = dayBefore(resolved.Start)
				}
				out = append(out, Interval{
					ID:            a.newID(),
					Kind:          KindSubsidy,
					SubjectID:     sub.SubjectID,
					LeaveID:       piece.leaveID,
					Period:        resolved,
					TotalDays:     resolved.Days(),
					Category:      sub.Category,
					Continuous:    generic.IsContinuous(prior, resolved.Start),
					Status:        SubsidyRegistered,
					Reimbursable:  piece.reimbursable,
					MaxFilingDate: maxFiling,
					GrantedDate:   sub.GrantedDate,
					CreatedAt:     now,
				})
				end := resolved.End
				prior = &end
			}
		}
	}
	return out, nil
}

// dayBefore is the end of the existing interval a trailing free stretch was
// cut after, which makes that stretch continuous with it.
func dayBefore(start generic.TimePoint) *generic.TimePoint {
	d := start.AddDays(-1)
	return &d
}

func (a *Allocator) newID() IntervalID {
	if a.NewID == nil {
		return IntervalID(uuid.NewString())
	}
	return a.NewID()
}

func (a *Allocator) now() time.Time {
	if a.Now == nil {
		return time.Now().UTC()
	}
	return a.Now().UTC()
}

func (a *Allocator) filingWindow() int {
	if a.FilingWindowDays <= 0 {
		return DefaultFilingWindowDays
	}
	return a.FilingWindowDays
}
