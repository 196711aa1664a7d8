package subsidy_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/subsidy-engine/generic"
	"github.com/warp/subsidy-engine/subsidy"
	"github.com/warp/subsidy-engine/subsidy/store"
)

type seed struct {
	subject      subsidy.SubjectID
	start, end   string
	continuous   bool
	reimbursable bool
	status       subsidy.Status
	fileBy       string
}

func seedSubsidies(t *testing.T, seeds ...seed) *store.Memory {
	t.Helper()
	mem := store.NewMemory()
	var ivs []subsidy.Interval
	for _, s := range seeds {
		p := period(s.start, s.end)
		iv := subsidy.Interval{
			SubjectID:    s.subject,
			Period:       p,
			TotalDays:    p.Days(),
			Category:     subsidy.CategoryCommonIllness,
			Continuous:   s.continuous,
			Status:       s.status,
			Reimbursable: s.reimbursable,
			GrantedDate:  p.Start,
		}
		if s.fileBy != "" {
			iv.MaxFilingDate = date(s.fileBy)
		}
		ivs = append(ivs, iv)
	}
	_, err := mem.CreateMany(context.Background(), subsidy.KindSubsidy, ivs)
	require.NoError(t, err)
	return mem
}

// =============================================================================
// BREACH REPORT TESTS
// =============================================================================

func TestFindOverThreshold(t *testing.T) {
	mem := seedSubsidies(t,
		// emp-a: 10 continuous + 10 non-continuous accepted reimbursable days
		seed{subject: "emp-a", start: "2024-03-11", end: "2024-03-20", continuous: true, reimbursable: true, status: subsidy.SubsidyAccepted},
		seed{subject: "emp-a", start: "2024-01-01", end: "2024-01-10", reimbursable: true, status: subsidy.SubsidyAccepted},
		// emp-b: 25 continuous days, but 5 only registered
		seed{subject: "emp-b", start: "2024-02-01", end: "2024-02-20", continuous: true, reimbursable: true, status: subsidy.SubsidyAccepted},
		seed{subject: "emp-b", start: "2024-02-21", end: "2024-02-25", continuous: true, reimbursable: true, status: subsidy.SubsidyRegistered},
		// emp-c: employer-borne days never count
		seed{subject: "emp-c", start: "2024-02-01", end: "2024-02-29", continuous: true, status: subsidy.SubsidyAccepted},
	)
	reporter := &subsidy.Reporter{Store: mem}
	ctx := context.Background()

	tests := []struct {
		kind     subsidy.BreachKind
		limit    int
		subjects []subsidy.SubjectID
		totals   []int
	}{
		{subsidy.BreachGlobal, 15, []subsidy.SubjectID{"emp-a", "emp-b"}, []int{20, 20}},
		{subsidy.BreachGlobal, 20, nil, nil},
		{subsidy.BreachContinuous, 5, []subsidy.SubjectID{"emp-a", "emp-b"}, []int{10, 20}},
		{subsidy.BreachContinuous, 10, []subsidy.SubjectID{"emp-b"}, []int{20}},
		{subsidy.BreachNonContinuous, 9, []subsidy.SubjectID{"emp-a"}, []int{10}},
		{subsidy.BreachNonContinuous, 0, []subsidy.SubjectID{"emp-a"}, []int{10}},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			breaches, err := reporter.FindOverThreshold(ctx, tt.kind, tt.limit)
			require.NoError(t, err)

			var subjects []subsidy.SubjectID
			var totals []int
			for _, b := range breaches {
				subjects = append(subjects, b.SubjectID)
				totals = append(totals, b.TotalDays)
				assert.Equal(t, tt.limit, b.LimitDays)
				assert.Equal(t, tt.kind, b.Kind)
			}
			assert.Equal(t, tt.subjects, subjects)
			assert.Equal(t, tt.totals, totals)
		})
	}
}

func TestFindOverThreshold_PeriodsOrderedByStart(t *testing.T) {
	mem := seedSubsidies(t,
		seed{subject: "emp-a", start: "2024-05-01", end: "2024-05-10", reimbursable: true, status: subsidy.SubsidyAccepted},
		seed{subject: "emp-a", start: "2024-01-01", end: "2024-01-10", reimbursable: true, status: subsidy.SubsidyAccepted},
		seed{subject: "emp-a", start: "2024-03-01", end: "2024-03-10", reimbursable: true, status: subsidy.SubsidyAccepted},
	)
	breaches, err := (&subsidy.Reporter{Store: mem}).FindOverThreshold(context.Background(), subsidy.BreachGlobal, 0)
	require.NoError(t, err)
	require.Len(t, breaches, 1)

	var starts []string
	for _, p := range breaches[0].Periods {
		starts = append(starts, p.Period.Start.String())
	}
	assert.Equal(t, []string{"2024-01-01", "2024-03-01", "2024-05-01"}, starts)
}

func TestFindOverThreshold_InvalidInput(t *testing.T) {
	reporter := &subsidy.Reporter{Store: store.NewMemory()}

	_, err := reporter.FindOverThreshold(context.Background(), "weekly", 10)
	assert.ErrorIs(t, err, generic.ErrValidation)

	_, err = reporter.FindOverThreshold(context.Background(), subsidy.BreachGlobal, -1)
	assert.ErrorIs(t, err, generic.ErrValidation)
}

func TestParseBreachKind(t *testing.T) {
	k, err := subsidy.ParseBreachKind("continuous")
	require.NoError(t, err)
	assert.Equal(t, subsidy.BreachContinuous, k)

	_, err = subsidy.ParseBreachKind("")
	assert.Error(t, err)
}

// =============================================================================
// OVERDUE FILING TESTS
// =============================================================================

func TestFindOverdueFilings(t *testing.T) {
	mem := seedSubsidies(t,
		seed{subject: "emp-a", start: "2024-01-01", end: "2024-01-10", reimbursable: true, status: subsidy.SubsidyRegistered, fileBy: "2024-02-09"},
		seed{subject: "emp-b", start: "2024-01-01", end: "2024-01-05", reimbursable: true, status: subsidy.SubsidyUnderReview, fileBy: "2024-01-31"},
		// deadline is today: not yet overdue
		seed{subject: "emp-c", start: "2024-02-01", end: "2024-02-05", reimbursable: true, status: subsidy.SubsidyRegistered, fileBy: "2024-03-01"},
		// already accepted or not reimbursable: never overdue
		seed{subject: "emp-d", start: "2024-01-01", end: "2024-01-05", reimbursable: true, status: subsidy.SubsidyAccepted, fileBy: "2024-01-31"},
		seed{subject: "emp-e", start: "2024-01-01", end: "2024-01-05", status: subsidy.SubsidyRegistered, fileBy: "2024-01-31"},
	)
	reporter := &subsidy.Reporter{Store: mem}

	overdue, err := reporter.FindOverdueFilings(context.Background(), date("2024-03-01"))
	require.NoError(t, err)

	var subjects []subsidy.SubjectID
	for _, p := range overdue {
		subjects = append(subjects, p.SubjectID)
	}
	assert.Equal(t, []subsidy.SubjectID{"emp-b", "emp-a"}, subjects, "earliest deadline first")
}

func TestFindOverdueFilings_RequiresDate(t *testing.T) {
	_, err := (&subsidy.Reporter{Store: store.NewMemory()}).FindOverdueFilings(context.Background(), generic.TimePoint{})
	assert.ErrorIs(t, err, generic.ErrValidation)
}
