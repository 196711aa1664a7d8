package subsidy_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/subsidy-engine/generic"
	"github.com/warp/subsidy-engine/subsidy"
)

func TestNewClaimDraft(t *testing.T) {
	p := subsidy.Interval{
		ID:            "sub-1",
		Kind:          subsidy.KindSubsidy,
		SubjectID:     "emp-1",
		LeaveID:       "leave-1",
		Period:        period("2024-03-06", "2024-03-10"),
		TotalDays:     5,
		Reimbursable:  true,
		MaxFilingDate: date("2024-04-11"),
	}

	claim, err := subsidy.NewClaimDraft(p, decimal.RequireFromString("33.333"))
	require.NoError(t, err)
	assert.Equal(t, "166.67", claim.Amount.StringFixed(2))
	assert.Equal(t, 5, claim.Days)
	assert.Equal(t, subsidy.IntervalID("leave-1"), claim.LeaveID)
	assert.Equal(t, "2024-04-11", claim.FileBy.String())
}

func TestNewClaimDraft_Rejects(t *testing.T) {
	reimbursable := subsidy.Interval{Kind: subsidy.KindSubsidy, Reimbursable: true, TotalDays: 3}

	employerBorne := reimbursable
	employerBorne.Reimbursable = false
	_, err := subsidy.NewClaimDraft(employerBorne, decimal.NewFromInt(10))
	assert.ErrorIs(t, err, subsidy.ErrNotReimbursable)

	leave := reimbursable
	leave.Kind = subsidy.KindLeave
	_, err = subsidy.NewClaimDraft(leave, decimal.NewFromInt(10))
	assert.ErrorIs(t, err, subsidy.ErrNotReimbursable)

	_, err = subsidy.NewClaimDraft(reimbursable, decimal.NewFromInt(-1))
	assert.ErrorIs(t, err, generic.ErrValidation)
}

func TestCanTransition(t *testing.T) {
	assert.True(t, subsidy.CanTransition(subsidy.SubsidyRegistered, subsidy.SubsidyAccepted))
	assert.True(t, subsidy.CanTransition(subsidy.SubsidyUnderReview, subsidy.SubsidyRegistered))
	assert.True(t, subsidy.CanTransition(subsidy.SubsidyAccepted, subsidy.SubsidyFiled))
	assert.False(t, subsidy.CanTransition(subsidy.SubsidyFiled, subsidy.SubsidyAccepted))
	assert.False(t, subsidy.CanTransition(subsidy.SubsidyRegistered, subsidy.SubsidyFiled))

	assert.True(t, subsidy.CanReviewLeave(subsidy.LeaveAccepted, subsidy.LeavePendingReview))
	assert.True(t, subsidy.CanReviewLeave(subsidy.LeavePendingReview, subsidy.LeaveRejectedDocumentation))
	assert.False(t, subsidy.CanReviewLeave(subsidy.LeaveRejectedDocumentation, subsidy.LeaveAccepted))
}
