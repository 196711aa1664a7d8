// Package store provides in-memory subsidy.Store implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/warp/subsidy-engine/generic"
	"github.com/warp/subsidy-engine/subsidy"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu        sync.RWMutex
	intervals map[subsidy.SubjectID][]subsidy.Interval // ordered by start
	byID      map[subsidy.IntervalID]subsidy.SubjectID
}

var (
	_ subsidy.TxStore     = (*Memory)(nil)
	_ subsidy.ReportStore = (*Memory)(nil)
)

func NewMemory() *Memory {
	return &Memory{
		intervals: make(map[subsidy.SubjectID][]subsidy.Interval),
		byID:      make(map[subsidy.IntervalID]subsidy.SubjectID),
	}
}

func (m *Memory) FindOverlapping(_ context.Context, subjectID subsidy.SubjectID, kind subsidy.Kind, period generic.Period) ([]subsidy.Interval, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.findOverlappingLocked(subjectID, kind, period), nil
}

func (m *Memory) findOverlappingLocked(subjectID subsidy.SubjectID, kind subsidy.Kind, period generic.Period) []subsidy.Interval {
	var result []subsidy.Interval
	for _, iv := range m.intervals[subjectID] {
		if iv.Kind == kind && iv.Status.Live() && iv.Period.Overlaps(period) {
			result = append(result, iv)
		}
	}
	return result
}

func (m *Memory) FindMostRecent(_ context.Context, subjectID subsidy.SubjectID, kind subsidy.Kind) (*subsidy.Interval, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.findMostRecentLocked(subjectID, kind), nil
}

func (m *Memory) findMostRecentLocked(subjectID subsidy.SubjectID, kind subsidy.Kind) *subsidy.Interval {
	var recent *subsidy.Interval
	for _, iv := range m.intervals[subjectID] {
		if iv.Kind != kind || !iv.Status.Live() {
			continue
		}
		if recent == nil || iv.Period.End.After(recent.Period.End) {
			found := iv
			recent = &found
		}
	}
	return recent
}

func (m *Memory) SumAcceptedDays(_ context.Context, subjectID subsidy.SubjectID, excluding subsidy.IntervalID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sumAcceptedDaysLocked(subjectID, excluding), nil
}

func (m *Memory) sumAcceptedDaysLocked(subjectID subsidy.SubjectID, excluding subsidy.IntervalID) int {
	total := 0
	for _, iv := range m.intervals[subjectID] {
		if iv.Kind == subsidy.KindLeave && iv.Status == subsidy.LeaveAccepted && iv.ID != excluding {
			total += iv.TotalDays
		}
	}
	return total
}

// CreateMany adds intervals atomically: every id is checked before any write.
func (m *Memory) CreateMany(_ context.Context, kind subsidy.Kind, intervals []subsidy.Interval) ([]subsidy.Interval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createManyLocked(kind, intervals)
}

func (m *Memory) createManyLocked(kind subsidy.Kind, intervals []subsidy.Interval) ([]subsidy.Interval, error) {
	now := time.Now().UTC()
	committed := make([]subsidy.Interval, len(intervals))
	seen := make(map[subsidy.IntervalID]bool, len(intervals))
	for i, iv := range intervals {
		if iv.ID == "" {
			iv.ID = subsidy.IntervalID(uuid.NewString())
		}
		if _, exists := m.byID[iv.ID]; exists || seen[iv.ID] {
			return nil, subsidy.ErrDuplicateID
		}
		seen[iv.ID] = true
		iv.Kind = kind
		if iv.CreatedAt.IsZero() {
			iv.CreatedAt = now
		}
		committed[i] = iv
	}

	for _, iv := range committed {
		m.insertLocked(iv)
	}
	return committed, nil
}

func (m *Memory) insertLocked(iv subsidy.Interval) {
	ivs := m.intervals[iv.SubjectID]

	// Binary search for insertion point keeps the slice ordered by start.
	i := sort.Search(len(ivs), func(i int) bool {
		return ivs[i].Period.Start.After(iv.Period.Start)
	})
	ivs = append(ivs, subsidy.Interval{})
	copy(ivs[i+1:], ivs[i:])
	ivs[i] = iv
	m.intervals[iv.SubjectID] = ivs
	m.byID[iv.ID] = iv.SubjectID
}

// =============================================================================
// REPORT STORE
// =============================================================================

func (m *Memory) ListIntervals(_ context.Context, filter subsidy.IntervalFilter) ([]subsidy.Interval, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	subjects := make([]subsidy.SubjectID, 0, len(m.intervals))
	for s := range m.intervals {
		subjects = append(subjects, s)
	}
	sort.Slice(subjects, func(i, j int) bool { return subjects[i] < subjects[j] })

	var result []subsidy.Interval
	for _, s := range subjects {
		for _, iv := range m.intervals[s] {
			if filter.Matches(iv) {
				result = append(result, iv)
			}
		}
	}
	return result, nil
}

func (m *Memory) GetInterval(_ context.Context, id subsidy.IntervalID) (*subsidy.Interval, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i, ok := m.indexLocked(id)
	if !ok {
		return nil, generic.ErrNotFound
	}
	found := m.intervals[m.byID[id]][i]
	return &found, nil
}

func (m *Memory) UpdateStatus(_ context.Context, id subsidy.IntervalID, status subsidy.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i, ok := m.indexLocked(id)
	if !ok {
		return generic.ErrNotFound
	}
	m.intervals[m.byID[id]][i].Status = status
	return nil
}

func (m *Memory) indexLocked(id subsidy.IntervalID) (int, bool) {
	subject, ok := m.byID[id]
	if !ok {
		return 0, false
	}
	for i, iv := range m.intervals[subject] {
		if iv.ID == id {
			return i, true
		}
	}
	return 0, false
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(_ context.Context, fn func(subsidy.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.snapshot()
	if err := fn(&txMemoryView{parent: m}); err != nil {
		m.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	intervals map[subsidy.SubjectID][]subsidy.Interval
	byID      map[subsidy.IntervalID]subsidy.SubjectID
}

func (m *Memory) snapshot() memorySnapshot {
	ivs := make(map[subsidy.SubjectID][]subsidy.Interval, len(m.intervals))
	for k, v := range m.intervals {
		ivs[k] = append([]subsidy.Interval{}, v...)
	}
	ids := make(map[subsidy.IntervalID]subsidy.SubjectID, len(m.byID))
	for k, v := range m.byID {
		ids[k] = v
	}
	return memorySnapshot{intervals: ivs, byID: ids}
}

func (m *Memory) restore(s memorySnapshot) {
	m.intervals = s.intervals
	m.byID = s.byID
}

// txMemoryView runs with the parent's write lock already held.
type txMemoryView struct {
	parent *Memory
}

func (tv *txMemoryView) FindOverlapping(_ context.Context, subjectID subsidy.SubjectID, kind subsidy.Kind, period generic.Period) ([]subsidy.Interval, error) {
	return tv.parent.findOverlappingLocked(subjectID, kind, period), nil
}

func (tv *txMemoryView) FindMostRecent(_ context.Context, subjectID subsidy.SubjectID, kind subsidy.Kind) (*subsidy.Interval, error) {
	return tv.parent.findMostRecentLocked(subjectID, kind), nil
}

func (tv *txMemoryView) SumAcceptedDays(_ context.Context, subjectID subsidy.SubjectID, excluding subsidy.IntervalID) (int, error) {
	return tv.parent.sumAcceptedDaysLocked(subjectID, excluding), nil
}

func (tv *txMemoryView) CreateMany(_ context.Context, kind subsidy.Kind, intervals []subsidy.Interval) ([]subsidy.Interval, error) {
	return tv.parent.createManyLocked(kind, intervals)
}
