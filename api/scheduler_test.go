package api

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/subsidy-engine/config"
	"github.com/warp/subsidy-engine/metrics"
	"github.com/warp/subsidy-engine/subsidy"
	"github.com/warp/subsidy-engine/subsidy/store"
)

func TestReportScheduler_RunNow(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	h := NewHandler(store.NewMemory(), cfg)

	for _, id := range []string{"long-illness", "overdue-filing"} {
		sc, ok := findScenario(id)
		require.True(t, ok)
		_, err := h.loadScenario(ctx, sc)
		require.NoError(t, err)
	}

	rs := NewReportScheduler(h.Reporter, "@daily", []config.BreachCheck{
		{Kind: "continuous", LimitDays: 365},
		{Kind: "non_continuous", LimitDays: 0},
		{Kind: "bogus", LimitDays: 1},
	})
	rs.Now = func() time.Time { return time.Date(2024, time.June, 1, 6, 0, 0, 0, time.UTC) }

	assert.Nil(t, rs.LastScan())
	result := rs.RunNow(ctx)

	require.Len(t, result.Breaches[subsidy.BreachContinuous], 1)
	assert.Equal(t, subsidy.SubjectID("demo-long-illness"), result.Breaches[subsidy.BreachContinuous][0].SubjectID)
	assert.Empty(t, result.Breaches[subsidy.BreachNonContinuous])
	assert.Len(t, result.Overdue, 2)
	assert.Len(t, result.Errors, 1, "unknown kind is reported, other checks still run")

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.BreachesFound.WithLabelValues("continuous")))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.OverdueFilings))

	last := rs.LastScan()
	require.NotNil(t, last)
	assert.Equal(t, result.RanAt, last.RanAt)
}

func TestReportScheduler_StartRejectsBadSpec(t *testing.T) {
	rs := NewReportScheduler(&subsidy.Reporter{Store: store.NewMemory()}, "not a cron spec", nil)
	assert.Error(t, rs.Start())
}

func TestReportScheduler_StartStop(t *testing.T) {
	rs := NewReportScheduler(&subsidy.Reporter{Store: store.NewMemory()}, "0 0 6 * * *", nil)
	require.NoError(t, rs.Start())
	rs.Stop()
}
