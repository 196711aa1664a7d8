package subsidy

import (
	"github.com/shopspring/decimal"
	"github.com/warp/subsidy-engine/generic"
)

// =============================================================================
// REIMBURSEMENT CLAIM DRAFT
// =============================================================================

// ClaimDraft is the data an external claims system needs once a reimbursable
// subsidy period is accepted. The engine drafts it; filing happens elsewhere.
type ClaimDraft struct {
	SubsidyID IntervalID
	LeaveID   IntervalID
	SubjectID SubjectID
	Period    generic.Period
	Days      int
	DailyRate decimal.Decimal
	Amount    decimal.Decimal
	FileBy    generic.TimePoint
}

// NewClaimDraft prices an accepted subsidy period at dailyRate per day.
func NewClaimDraft(period Interval, dailyRate decimal.Decimal) (*ClaimDraft, error) {
	if period.Kind != KindSubsidy || !period.Reimbursable {
		return nil, ErrNotReimbursable
	}
	if dailyRate.IsNegative() {
		return nil, &generic.ValidationError{Field: "daily_rate", Reason: "must not be negative"}
	}

	return &ClaimDraft{
		SubsidyID: period.ID,
		LeaveID:   period.LeaveID,
		SubjectID: period.SubjectID,
		Period:    period.Period,
		Days:      period.TotalDays,
		DailyRate: dailyRate,
		Amount:    dailyRate.Mul(decimal.NewFromInt(int64(period.TotalDays))).Round(2),
		FileBy:    period.MaxFilingDate,
	}, nil
}
