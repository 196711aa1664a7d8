/*
scheduler.go - Scheduled breach and filing-deadline scan

PURPOSE:
  Periodically runs every configured breach check and the overdue-filings
  report, logs the findings and publishes them as gauges.

DESIGN:
  - robfig/cron drives the schedule (six-field spec, seconds first)
  - Scans are read-only; a failing check is logged and the rest still run
  - The last scan result is kept for inspection

CONFIGURATION:
  - report.cron:   When to scan (default: 06:00 every day)
  - report.checks: (kind, limit_days) pairs

USAGE:
  scheduler := NewReportScheduler(reporter, cfg.Report.Cron, cfg.Report.Checks)
  if err := scheduler.Start(); err != nil { ... }
  // ... later
  scheduler.Stop()

SEE ALSO:
  - subsidy/report.go: Reporter
  - metrics/metrics.go: BreachesFound, OverdueFilings
*/
package api

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/warp/subsidy-engine/config"
	"github.com/warp/subsidy-engine/generic"
	"github.com/warp/subsidy-engine/metrics"
	"github.com/warp/subsidy-engine/subsidy"
)

// ScanResult is the outcome of one scan.
type ScanResult struct {
	RanAt    time.Time
	Breaches map[subsidy.BreachKind][]subsidy.SubjectBreach
	Overdue  []subsidy.Interval
	Errors   []error
}

// ReportScheduler runs the scan on a cron schedule.
type ReportScheduler struct {
	Reporter *subsidy.Reporter
	Spec     string
	Checks   []config.BreachCheck
	Now      func() time.Time

	cron *cron.Cron
	mu   sync.Mutex
	last *ScanResult
}

// NewReportScheduler creates a new scheduler.
func NewReportScheduler(reporter *subsidy.Reporter, spec string, checks []config.BreachCheck) *ReportScheduler {
	return &ReportScheduler{
		Reporter: reporter,
		Spec:     spec,
		Checks:   checks,
		Now:      time.Now,
		cron:     cron.New(cron.WithSeconds()),
	}
}

// Start registers the scan and starts the cron scheduler.
func (rs *ReportScheduler) Start() error {
	if _, err := rs.cron.AddFunc(rs.Spec, func() { rs.RunNow(context.Background()) }); err != nil {
		return fmt.Errorf("register report scan %q: %w", rs.Spec, err)
	}
	rs.cron.Start()
	log.Printf("[Scheduler] Started with schedule: %s", rs.Spec)
	return nil
}

// Stop stops the scheduler and waits for a running scan to finish.
func (rs *ReportScheduler) Stop() {
	<-rs.cron.Stop().Done()
	log.Println("[Scheduler] Stopped")
}

// RunNow executes one scan immediately.
func (rs *ReportScheduler) RunNow(ctx context.Context) ScanResult {
	now := rs.now()
	result := ScanResult{
		RanAt:    now,
		Breaches: make(map[subsidy.BreachKind][]subsidy.SubjectBreach),
	}

	log.Printf("[Scheduler] Scanning reports at %v", now.Format(time.RFC3339))

	for _, check := range rs.Checks {
		kind, err := subsidy.ParseBreachKind(check.Kind)
		if err != nil {
			result.Errors = append(result.Errors, err)
			continue
		}
		breaches, err := rs.Reporter.FindOverThreshold(ctx, kind, check.LimitDays)
		if err != nil {
			log.Printf("[Scheduler] Error in %s check (limit %d): %v", kind, check.LimitDays, err)
			result.Errors = append(result.Errors, err)
			continue
		}
		result.Breaches[kind] = breaches
		metrics.BreachesFound.WithLabelValues(string(kind)).Set(float64(len(breaches)))
		for _, b := range breaches {
			log.Printf("[Scheduler] %s over %s limit: %d > %d days", b.SubjectID, kind, b.TotalDays, b.LimitDays)
		}
	}

	overdue, err := rs.Reporter.FindOverdueFilings(ctx, generic.FromTime(now))
	if err != nil {
		log.Printf("[Scheduler] Error in overdue filings: %v", err)
		result.Errors = append(result.Errors, err)
	} else {
		result.Overdue = overdue
		metrics.OverdueFilings.Set(float64(len(overdue)))
		for _, p := range overdue {
			log.Printf("[Scheduler] Subsidy %s of %s overdue since %s", p.ID, p.SubjectID, p.MaxFilingDate)
		}
	}

	log.Printf("[Scheduler] Completed: %d checks, %d overdue, %d errors", len(rs.Checks), len(result.Overdue), len(result.Errors))

	rs.mu.Lock()
	rs.last = &result
	rs.mu.Unlock()
	return result
}

// LastScan returns the most recent scan, or nil before the first one.
func (rs *ReportScheduler) LastScan() *ScanResult {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.last
}

func (rs *ReportScheduler) now() time.Time {
	if rs.Now == nil {
		return time.Now()
	}
	return rs.Now()
}
