// Package metrics exposes Prometheus instruments for allocations and reports.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/warp/subsidy-engine/subsidy"
)

// ─── Allocation Metrics ─────────────────────────────────────────────────────

// AllocationsTotal counts allocations by outcome.
var AllocationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "subsidy",
	Name:      "allocations_total",
	Help:      "Total leave submissions allocated, by outcome.",
}, []string{"outcome"})

// AllocatedDaysTotal counts subsidy days produced, split by reimbursability.
var AllocatedDaysTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "subsidy",
	Name:      "allocated_days_total",
	Help:      "Total subsidy-period days registered.",
}, []string{"reimbursable"})

// AllocationErrors counts failed allocations by error class.
var AllocationErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "subsidy",
	Name:      "allocation_errors_total",
	Help:      "Total allocations that returned an error.",
}, []string{"class"})

// ─── Report Metrics ─────────────────────────────────────────────────────────

// BreachesFound is the subject count of the last scan, per breach kind.
var BreachesFound = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "subsidy",
	Name:      "breaches_found",
	Help:      "Subjects over a limit in the last scan.",
}, []string{"kind"})

// OverdueFilings is the number of overdue subsidy periods in the last scan.
var OverdueFilings = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "subsidy",
	Name:      "overdue_filings",
	Help:      "Reimbursable subsidy periods past their filing deadline in the last scan.",
})

// ObserveAllocation records a successful allocation.
func ObserveAllocation(result *subsidy.AllocationResult) {
	if result == nil {
		return
	}
	AllocationsTotal.WithLabelValues(string(result.Outcome)).Inc()

	reimbursable := result.ReimbursableDays()
	total := 0
	for _, s := range result.Subsidies {
		total += s.TotalDays
	}
	AllocatedDaysTotal.WithLabelValues(strconv.FormatBool(true)).Add(float64(reimbursable))
	AllocatedDaysTotal.WithLabelValues(strconv.FormatBool(false)).Add(float64(total - reimbursable))
}

// ObserveAllocationError records a failed allocation under class.
func ObserveAllocationError(class string) {
	AllocationErrors.WithLabelValues(class).Inc()
}
