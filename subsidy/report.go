package subsidy

import (
	"context"
	"sort"

	"github.com/warp/subsidy-engine/generic"
)

// =============================================================================
// AGGREGATION REPORTER - Read-only breach and deadline reports
// =============================================================================

// BreachKind selects which accepted reimbursable days count toward a limit.
type BreachKind string

const (
	BreachNonContinuous BreachKind = "non_continuous"
	BreachContinuous    BreachKind = "continuous"
	BreachGlobal        BreachKind = "global"
)

// ParseBreachKind validates a kind coming from config, HTTP or CLI input.
func ParseBreachKind(s string) (BreachKind, error) {
	switch k := BreachKind(s); k {
	case BreachNonContinuous, BreachContinuous, BreachGlobal:
		return k, nil
	}
	return "", &generic.ValidationError{Field: "kind", Reason: "must be non_continuous, continuous or global, got " + s}
}

func (k BreachKind) counts(iv Interval) bool {
	switch k {
	case BreachContinuous:
		return iv.Continuous
	case BreachNonContinuous:
		return !iv.Continuous
	default:
		return true
	}
}

// SubjectBreach is one subject whose counted days exceed the limit.
type SubjectBreach struct {
	SubjectID SubjectID
	Kind      BreachKind
	TotalDays int
	LimitDays int
	Periods   []Interval // ordered by start
}

type Reporter struct {
	Store ReportStore
}

// FindOverThreshold groups accepted reimbursable subsidy periods by subject
// and returns the subjects whose counted days strictly exceed limitDays,
// ordered by subject id.
func (r *Reporter) FindOverThreshold(ctx context.Context, kind BreachKind, limitDays int) ([]SubjectBreach, error) {
	if _, err := ParseBreachKind(string(kind)); err != nil {
		return nil, err
	}
	if limitDays < 0 {
		return nil, &generic.ValidationError{Field: "limit_days", Reason: "must not be negative"}
	}

	reimbursable := true
	periods, err := r.Store.ListIntervals(ctx, IntervalFilter{
		Kind:         KindSubsidy,
		Statuses:     []Status{SubsidyAccepted},
		Reimbursable: &reimbursable,
	})
	if err != nil {
		return nil, generic.Persistence("list accepted subsidy periods", err)
	}

	bySubject := make(map[SubjectID]*SubjectBreach)
	for _, p := range periods {
		if !kind.counts(p) {
			continue
		}
		b := bySubject[p.SubjectID]
		if b == nil {
			b = &SubjectBreach{SubjectID: p.SubjectID, Kind: kind, LimitDays: limitDays}
			bySubject[p.SubjectID] = b
		}
		b.TotalDays += p.TotalDays
		b.Periods = append(b.Periods, p)
	}

	var breaches []SubjectBreach
	for _, b := range bySubject {
		if b.TotalDays <= limitDays {
			continue
		}
		sort.SliceStable(b.Periods, func(i, j int) bool {
			return b.Periods[i].Period.Start.Before(b.Periods[j].Period.Start)
		})
		breaches = append(breaches, *b)
	}
	sort.Slice(breaches, func(i, j int) bool {
		return breaches[i].SubjectID < breaches[j].SubjectID
	})
	return breaches, nil
}

// FindOverdueFilings returns reimbursable subsidy periods still awaiting
// filing whose deadline is before asOf, earliest deadline first.
func (r *Reporter) FindOverdueFilings(ctx context.Context, asOf generic.TimePoint) ([]Interval, error) {
	if asOf.IsZero() {
		return nil, &generic.ValidationError{Field: "as_of", Reason: "is required"}
	}

	reimbursable := true
	pending, err := r.Store.ListIntervals(ctx, IntervalFilter{
		Kind:         KindSubsidy,
		Statuses:     []Status{SubsidyRegistered, SubsidyUnderReview},
		Reimbursable: &reimbursable,
	})
	if err != nil {
		return nil, generic.Persistence("list pending subsidy periods", err)
	}

	var overdue []Interval
	for _, p := range pending {
		if p.MaxFilingDate.Before(asOf) {
			overdue = append(overdue, p)
		}
	}
	sort.SliceStable(overdue, func(i, j int) bool {
		return overdue[i].MaxFilingDate.Before(overdue[j].MaxFilingDate)
	})
	return overdue, nil
}
