// Package subsidy implements medical-leave administration on top of the
// generic interval engine: it records leave intervals, derives the subsidy
// periods that separate employer-borne days from reimbursable ones, and
// reports subjects whose reimbursable days exceed a limit.
package subsidy

import (
	"time"

	"github.com/warp/subsidy-engine/generic"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type SubjectID string
type IntervalID string

// Kind discriminates the two interval families. Overlap and continuity are
// always evaluated within one kind.
type Kind string

const (
	KindLeave   Kind = "leave"
	KindSubsidy Kind = "subsidy"
)

// =============================================================================
// CONTINGENCY CATEGORY
// =============================================================================

// Category is the clinical/administrative classification of a leave.
type Category string

const (
	CategoryCommonIllness   Category = "common_illness"
	CategoryWorkAccident    Category = "work_accident"
	CategoryOccupational    Category = "occupational_disease"
	CategoryMaternity       Category = "maternity"
	CategoryTrafficAccident Category = "traffic_accident"
)

// DefaultPrivilegedCategory is always fully reimbursable regardless of the
// cumulative-day threshold.
const DefaultPrivilegedCategory = CategoryMaternity

// =============================================================================
// LIFECYCLE STATUS
// =============================================================================

type Status string

// Leave interval statuses.
const (
	LeavePendingReview         Status = "pending_review"
	LeaveAccepted              Status = "accepted"
	LeaveRejectedDocumentation Status = "rejected_documentation"
)

// Subsidy period statuses.
const (
	SubsidyRegistered  Status = "registered"
	SubsidyUnderReview Status = "under_review"
	SubsidyAccepted    Status = "accepted"
	SubsidyFiled       Status = "filed"
)

// Live reports whether an interval with this status still occupies its
// days. Leave rejected for documentation frees its days.
func (s Status) Live() bool {
	return s != LeaveRejectedDocumentation
}

// =============================================================================
// INTERVAL - Persisted leave interval or subsidy period
// =============================================================================

// Interval is one stored leave interval (Kind == KindLeave) or subsidy
// period (Kind == KindSubsidy). Associations are ids only.
type Interval struct {
	ID        IntervalID
	Kind      Kind
	SubjectID SubjectID
	LeaveID   IntervalID // owning leave interval; subsidy periods only

	Period     generic.Period
	TotalDays  int
	Category   Category
	Continuous bool
	Status     Status

	// Subsidy-only fields
	Reimbursable  bool
	MaxFilingDate generic.TimePoint

	GrantedDate generic.TimePoint
	CreatedAt   time.Time
}

// Periods extracts the date ranges of intervals, preserving order.
func Periods(intervals []Interval) []generic.Period {
	periods := make([]generic.Period, len(intervals))
	for i, iv := range intervals {
		periods[i] = iv.Period
	}
	return periods
}

// =============================================================================
// SUBMISSION & RESULT
// =============================================================================

// Submission is one logical leave request as certified by a physician.
// A submission spanning several months yields several leave intervals.
type Submission struct {
	SubjectID   SubjectID
	Period      generic.Period
	Category    Category
	GrantedDate generic.TimePoint
}

// Validate checks the fields every allocation needs.
func (s Submission) Validate() error {
	if s.SubjectID == "" {
		return &generic.ValidationError{Field: "subject_id", Reason: "is required"}
	}
	if s.Category == "" {
		return &generic.ValidationError{Field: "category", Reason: "is required"}
	}
	if s.GrantedDate.IsZero() {
		return &generic.ValidationError{Field: "granted_date", Reason: "is required"}
	}
	return s.Period.Validate()
}

// Outcome distinguishes a recorded allocation from one that added nothing.
type Outcome string

const (
	OutcomeRecorded        Outcome = "recorded"
	OutcomeNothingToRecord Outcome = "nothing_to_record"
)

// AllocationResult carries the intervals to persist (or persisted, when
// returned by Service) and the events for an external dispatcher.
type AllocationResult struct {
	Outcome        Outcome
	Leaves         []Interval
	Subsidies      []Interval
	CumulativeDays int // cumulative accepted days including this submission
	Events         []Event
}

// Empty is true when every leave segment overlapped existing leave.
// This is a valid business outcome, not an error.
func (r *AllocationResult) Empty() bool {
	return r.Outcome == OutcomeNothingToRecord
}

// LeaveDays sums the recorded leave days.
func (r *AllocationResult) LeaveDays() int {
	return generic.TotalDays(Periods(r.Leaves))
}

// ReimbursableDays sums the days of reimbursable subsidy periods.
func (r *AllocationResult) ReimbursableDays() int {
	total := 0
	for _, s := range r.Subsidies {
		if s.Reimbursable {
			total += s.TotalDays
		}
	}
	return total
}

// =============================================================================
// DOMAIN EVENTS
// =============================================================================

type EventType string

const (
	EventLeaveAccepted         EventType = "leave_accepted"
	EventSubsidyRegistered     EventType = "subsidy_registered"
	EventSubsidyStatusChanged  EventType = "subsidy_status_changed"
	EventClaimTriggered        EventType = "claim_triggered"
	EventSubmissionDiscarded   EventType = "submission_discarded"
	EventLeaveStatusChanged    EventType = "leave_status_changed"
	EventDocumentationRejected EventType = "documentation_rejected"
)

// Event is handed to an external dispatcher (e.g. email notifications).
// The engine never delivers events itself.
type Event struct {
	Type       EventType
	SubjectID  SubjectID
	IntervalID IntervalID
	Period     generic.Period
	Status     Status
	Claim      *ClaimDraft // claim_triggered only
}
