package sqlite_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/subsidy-engine/generic"
	"github.com/warp/subsidy-engine/store/sqlite"
	"github.com/warp/subsidy-engine/subsidy"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func interval(id, subject, start, end string, status subsidy.Status) subsidy.Interval {
	p := generic.Period{Start: generic.MustParseDate(start), End: generic.MustParseDate(end)}
	return subsidy.Interval{
		ID:          subsidy.IntervalID(id),
		SubjectID:   subsidy.SubjectID(subject),
		Period:      p,
		TotalDays:   p.Days(),
		Category:    subsidy.CategoryCommonIllness,
		Status:      status,
		GrantedDate: p.Start,
	}
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	sp := interval("s-1", "emp-1", "2024-03-06", "2024-03-10", subsidy.SubsidyRegistered)
	sp.LeaveID = "l-1"
	sp.Continuous = true
	sp.Reimbursable = true
	sp.MaxFilingDate = generic.MustParseDate("2024-04-05")

	_, err := s.CreateMany(ctx, subsidy.KindSubsidy, []subsidy.Interval{sp})
	require.NoError(t, err)

	got, err := s.GetInterval(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, subsidy.KindSubsidy, got.Kind)
	assert.Equal(t, subsidy.IntervalID("l-1"), got.LeaveID)
	assert.Equal(t, "[2024-03-06, 2024-03-10]", got.Period.String())
	assert.Equal(t, 5, got.TotalDays)
	assert.True(t, got.Continuous)
	assert.True(t, got.Reimbursable)
	assert.Equal(t, "2024-04-05", got.MaxFilingDate.String())
	assert.Equal(t, "2024-03-06", got.GrantedDate.String())
	assert.False(t, got.CreatedAt.IsZero())

	_, err = s.GetInterval(ctx, "missing")
	assert.ErrorIs(t, err, generic.ErrNotFound)
}

func TestStore_CorruptDeadlineIsAnError(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "corrupt.db")
	s, err := sqlite.New(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	sp := interval("s-1", "emp-1", "2024-03-06", "2024-03-10", subsidy.SubsidyRegistered)
	sp.Reimbursable = true
	sp.MaxFilingDate = generic.MustParseDate("2024-04-05")
	_, err = s.CreateMany(ctx, subsidy.KindSubsidy, []subsidy.Interval{sp})
	require.NoError(t, err)

	raw, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = raw.ExecContext(ctx, `UPDATE intervals SET max_filing_date = 'someday' WHERE id = 's-1'`)
	require.NoError(t, err)
	require.NoError(t, raw.Close())

	_, err = s.GetInterval(ctx, "s-1")
	assert.ErrorIs(t, err, sqlite.ErrCorruptRow)
	assert.NotErrorIs(t, err, generic.ErrValidation, "stored data is not caller input")
	assert.Contains(t, err.Error(), "max_filing_date")

	reporter := &subsidy.Reporter{Store: s}
	overdue, err := reporter.FindOverdueFilings(ctx, generic.MustParseDate("2024-06-01"))
	assert.ErrorIs(t, err, generic.ErrPersistence, "a corrupt deadline is never reported as overdue")
	assert.Empty(t, overdue)
}

func TestStore_Queries(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	_, err := s.CreateMany(ctx, subsidy.KindLeave, []subsidy.Interval{
		interval("l-2", "emp-1", "2024-03-01", "2024-03-10", subsidy.LeaveAccepted),
		interval("l-1", "emp-1", "2024-01-01", "2024-01-05", subsidy.LeaveAccepted),
		interval("l-3", "emp-1", "2024-04-01", "2024-04-30", subsidy.LeaveRejectedDocumentation),
		interval("l-4", "emp-2", "2024-03-01", "2024-03-31", subsidy.LeaveAccepted),
	})
	require.NoError(t, err)

	found, err := s.FindOverlapping(ctx, "emp-1", subsidy.KindLeave,
		generic.Period{Start: generic.MustParseDate("2024-01-05"), End: generic.MustParseDate("2024-04-15")})
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, subsidy.IntervalID("l-1"), found[0].ID)
	assert.Equal(t, subsidy.IntervalID("l-2"), found[1].ID)

	recent, err := s.FindMostRecent(ctx, "emp-1", subsidy.KindLeave)
	require.NoError(t, err)
	require.NotNil(t, recent)
	assert.Equal(t, subsidy.IntervalID("l-2"), recent.ID, "rejected leave is ignored")

	none, err := s.FindMostRecent(ctx, "emp-1", subsidy.KindSubsidy)
	require.NoError(t, err)
	assert.Nil(t, none)

	sum, err := s.SumAcceptedDays(ctx, "emp-1", "")
	require.NoError(t, err)
	assert.Equal(t, 15, sum)

	sum, err = s.SumAcceptedDays(ctx, "emp-1", "l-1")
	require.NoError(t, err)
	assert.Equal(t, 10, sum)
}

func TestStore_DuplicateID(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	_, err := s.CreateMany(ctx, subsidy.KindLeave, []subsidy.Interval{
		interval("l-1", "emp-1", "2024-01-01", "2024-01-05", subsidy.LeaveAccepted),
	})
	require.NoError(t, err)

	_, err = s.CreateMany(ctx, subsidy.KindLeave, []subsidy.Interval{
		interval("l-2", "emp-1", "2024-02-01", "2024-02-05", subsidy.LeaveAccepted),
		interval("l-1", "emp-1", "2024-03-01", "2024-03-05", subsidy.LeaveAccepted),
	})
	assert.ErrorIs(t, err, subsidy.ErrDuplicateID)

	_, err = s.GetInterval(ctx, "l-2")
	assert.ErrorIs(t, err, generic.ErrNotFound, "batch rolled back")
}

func TestStore_WithTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx subsidy.Store) error {
		_, err := tx.CreateMany(ctx, subsidy.KindLeave, []subsidy.Interval{
			interval("l-1", "emp-1", "2024-01-01", "2024-01-05", subsidy.LeaveAccepted),
		})
		require.NoError(t, err)

		sum, err := tx.SumAcceptedDays(ctx, "emp-1", "")
		require.NoError(t, err)
		assert.Equal(t, 5, sum)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	sum, err := s.SumAcceptedDays(ctx, "emp-1", "")
	require.NoError(t, err)
	assert.Zero(t, sum)
}

func TestStore_ListAndUpdateStatus(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	a := interval("s-1", "emp-a", "2024-02-01", "2024-02-05", subsidy.SubsidyRegistered)
	a.Reimbursable = true
	b := interval("s-0", "emp-a", "2024-01-01", "2024-01-05", subsidy.SubsidyRegistered)
	c := interval("s-2", "emp-b", "2024-01-01", "2024-01-05", subsidy.SubsidyRegistered)
	c.Reimbursable = true
	_, err := s.CreateMany(ctx, subsidy.KindSubsidy, []subsidy.Interval{a, b, c})
	require.NoError(t, err)

	require.NoError(t, s.UpdateStatus(ctx, "s-1", subsidy.SubsidyAccepted))
	assert.ErrorIs(t, s.UpdateStatus(ctx, "nope", subsidy.SubsidyAccepted), generic.ErrNotFound)

	all, err := s.ListIntervals(ctx, subsidy.IntervalFilter{Kind: subsidy.KindSubsidy})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, subsidy.IntervalID("s-0"), all[0].ID)
	assert.Equal(t, subsidy.IntervalID("s-1"), all[1].ID)
	assert.Equal(t, subsidy.IntervalID("s-2"), all[2].ID)

	reimbursable := true
	pending, err := s.ListIntervals(ctx, subsidy.IntervalFilter{
		Kind:         subsidy.KindSubsidy,
		Statuses:     []subsidy.Status{subsidy.SubsidyRegistered, subsidy.SubsidyUnderReview},
		Reimbursable: &reimbursable,
	})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, subsidy.IntervalID("s-2"), pending[0].ID)
}

// The whole allocation flow against SQLite: the transaction view must see
// the rows it writes and nothing may deadlock on the single connection.
func TestStore_ServiceEndToEnd(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	svc := subsidy.NewService(s, subsidy.NewAllocator("", 30), decimal.NewFromInt(50))

	sub := subsidy.Submission{
		SubjectID:   "emp-1",
		Period:      generic.Period{Start: generic.MustParseDate("2024-01-20"), End: generic.MustParseDate("2024-02-10")},
		Category:    subsidy.CategoryCommonIllness,
		GrantedDate: generic.MustParseDate("2024-01-20"),
	}
	result, err := svc.Allocate(ctx, sub, 10)
	require.NoError(t, err)
	assert.Equal(t, 22, result.CumulativeDays)
	assert.Equal(t, 12, result.ReimbursableDays())

	again, err := svc.Allocate(ctx, sub, 10)
	require.NoError(t, err)
	assert.True(t, again.Empty())

	var reimbursable *subsidy.Interval
	for i := range result.Subsidies {
		if result.Subsidies[i].Reimbursable {
			reimbursable = &result.Subsidies[i]
			break
		}
	}
	require.NotNil(t, reimbursable)

	_, events, err := svc.AdvanceSubsidy(ctx, reimbursable.ID, subsidy.SubsidyAccepted)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, subsidy.EventClaimTriggered, events[1].Type)
}
