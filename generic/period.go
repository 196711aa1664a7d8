package generic

// =============================================================================
// PERIOD - Inclusive date range
// =============================================================================

// Period is an inclusive [Start, End] range of calendar dates.
//
// Examples:
//   - A single day of leave: 2024-03-10 .. 2024-03-10 (1 day)
//   - February of a leap year: 2024-02-01 .. 2024-02-29 (29 days)
type Period struct {
	Start TimePoint
	End   TimePoint
}

// NewPeriod builds a Period and rejects an inverted range.
func NewPeriod(start, end TimePoint) (Period, error) {
	p := Period{Start: start, End: end}
	if err := p.Validate(); err != nil {
		return Period{}, err
	}
	return p, nil
}

// Validate checks the Start <= End precondition.
func (p Period) Validate() error {
	if p.Start.IsZero() || p.End.IsZero() {
		return &ValidationError{Field: "period", Reason: "start and end dates are required", Err: ErrInvalidPeriod}
	}
	if p.Start.After(p.End) {
		return &ValidationError{Field: "period", Reason: "start " + p.Start.String() + " is after end " + p.End.String(), Err: ErrInvalidPeriod}
	}
	return nil
}

// Days returns the inclusive day count. Inverted periods count as zero.
func (p Period) Days() int {
	if p.Start.After(p.End) {
		return 0
	}
	return DaysBetween(p.Start, p.End) + 1
}

// Contains returns true if the time point is within the period [Start, End]
func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.BeforeOrEqual(p.End)
}

// Covers returns true if other lies entirely within p.
func (p Period) Covers(other Period) bool {
	return other.Start.AfterOrEqual(p.Start) && other.End.BeforeOrEqual(p.End)
}

// Overlaps returns true if the two periods share at least one day.
func (p Period) Overlaps(other Period) bool {
	return p.Start.BeforeOrEqual(other.End) && other.Start.BeforeOrEqual(p.End)
}

// Equal compares both bounds at day granularity.
func (p Period) Equal(other Period) bool {
	return p.Start.Equal(other.Start) && p.End.Equal(other.End)
}

// String returns a string representation of the period.
func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// =============================================================================
// MONTH-BOUNDARY SPLITTER
// =============================================================================

// SplitByMonth returns one segment per calendar month the period touches.
//
//	[2024-01-20, 2024-03-05] -> [2024-01-20, 2024-01-31] (12)
//	                            [2024-02-01, 2024-02-29] (29)
//	                            [2024-03-01, 2024-03-05] (5)
//
// The segments are contiguous and in chronological order; concatenated they
// reconstruct p exactly. A period inside one month is returned unchanged.
func (p Period) SplitByMonth() ([]Period, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.Start.SameMonth(p.End) {
		return []Period{p}, nil
	}

	var segments []Period
	cursor := p.Start
	for !cursor.SameMonth(p.End) {
		monthEnd := EndOfMonth(cursor.Year(), cursor.Month())
		segments = append(segments, Period{Start: cursor, End: monthEnd})
		cursor = monthEnd.AddDays(1)
	}
	segments = append(segments, Period{Start: cursor, End: p.End})
	return segments, nil
}

// TotalDays sums the inclusive day counts of periods.
func TotalDays(periods []Period) int {
	total := 0
	for _, p := range periods {
		total += p.Days()
	}
	return total
}
