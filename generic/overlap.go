package generic

import "sort"

// =============================================================================
// OVERLAP RESOLVER - Trim a proposed period against existing ones
// =============================================================================

// ResolveOverlap trims proposed so that it shares no day with any period in
// existing. It returns false when nothing survives.
//
// Existing periods are visited in ascending Start order against a working
// copy of proposed:
//
//	working inside existing        -> reject
//	working.Start inside existing  -> Start = existing.End + 1
//	working.End inside existing    -> End   = existing.Start - 1
//	working strictly spans existing -> End  = existing.Start - 1
//
// After the walk an inverted working period is rejected. Partial overlaps
// keep their non-overlapping remainder; a period that engulfs an existing one
// keeps only its leading remainder. ResolveOverlapAll recovers the rest.
func ResolveOverlap(proposed Period, existing []Period) (Period, bool) {
	ordered := make([]Period, len(existing))
	copy(ordered, existing)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Start.Before(ordered[j].Start)
	})

	working := proposed
	for _, e := range ordered {
		if working.Start.After(working.End) {
			break
		}
		switch {
		case e.Covers(working):
			return Period{}, false
		case e.Contains(working.Start):
			working.Start = e.End.AddDays(1)
		case e.Contains(working.End):
			working.End = e.Start.AddDays(-1)
		case working.Covers(e):
			working.End = e.Start.AddDays(-1)
		}
	}

	if working.Start.After(working.End) {
		return Period{}, false
	}
	return working, true
}

// ResolveOverlapAll returns every free stretch of proposed, in order. It
// calls ResolveOverlap on what follows each surviving stretch, so a proposed
// period engulfing existing ones comes back as the gaps around them.
func ResolveOverlapAll(proposed Period, existing []Period) []Period {
	var free []Period
	rest := proposed
	for !rest.Start.After(rest.End) {
		resolved, ok := ResolveOverlap(rest, existing)
		if !ok {
			break
		}
		free = append(free, resolved)
		if !resolved.End.Before(rest.End) {
			break
		}
		rest = Period{Start: resolved.End.AddDays(1), End: rest.End}
	}
	return free
}

// =============================================================================
// CONTINUITY CLASSIFIER
// =============================================================================

// IsContinuous reports whether start immediately follows priorEnd.
// With no prior interval the new one is continuous by definition.
func IsContinuous(priorEnd *TimePoint, start TimePoint) bool {
	if priorEnd == nil {
		return true
	}
	return start.Equal(priorEnd.AddDays(1))
}
