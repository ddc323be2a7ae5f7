package core

import (
	"slices"

	m "github.com/rakesh-tiwari-alersal/Universal-Market-Cycles/models"
)

// Matching and coverage bounds in days. Candidate periods are only ever
// compared against the table inside this window.
const (
	MinMatchPeriod = 175
	MaxMatchPeriod = 680
)

// ReferenceTable is the fixed ordered set of candidate cycle lengths in days.
// Read only, shared by every matcher and by the coverage engine.
type ReferenceTable struct {
	Kind   m.TableKind
	Cycles []int
}

// extendedCycles is the unified 53 entry table used by the production runs.
var extendedCycles = []int{
	179, 183, 189, 196, 202, 206, 220, 237,
	243, 250, 260, 268, 273, 291, 308, 314,
	322, 331, 345, 355, 362, 368, 385, 403,
	408, 416, 426, 439, 457, 470, 480, 487,
	493, 510, 528, 534, 541, 551, 564, 582,
	605, 622, 636, 645, 653, 659, 676, 694,
	699, 707, 717, 730, 747,
}

// legacyCycles is the shorter 47 entry table, kept for comparability with
// earlier runs.
var legacyCycles = extendedCycles[:47]

func GetReferenceTable(kind m.TableKind) ReferenceTable {
	if kind == m.TableLegacy {
		return ReferenceTable{Kind: kind, Cycles: legacyCycles}
	}
	return ReferenceTable{Kind: m.TableExtended, Cycles: extendedCycles}
}

// Interval is an inclusive day range [Start, End].
type Interval struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (iv Interval) Days() int {
	return iv.End - iv.Start + 1
}

// CoverageIntervals builds the tolerance interval [c-t, c+t] around every
// reference cycle, clips to [MinMatchPeriod, MaxMatchPeriod], then merges
// overlapping or adjacent (gap <= 1) intervals into a minimal disjoint set
// sorted by start. Returns the merged set and the total number of distinct
// days covered. The result does not depend on table entry order.
func (rt ReferenceTable) CoverageIntervals(tolerance int) ([]Interval, int) {
	intervals := make([]Interval, 0, len(rt.Cycles))
	for _, c := range rt.Cycles {
		low := max(MinMatchPeriod, c-tolerance)
		high := min(MaxMatchPeriod, c+tolerance)
		if low > high {
			// the cycle sits entirely outside the coverage window
			continue
		}
		intervals = append(intervals, Interval{Start: low, End: high})
	}

	if len(intervals) == 0 {
		return nil, 0
	}

	slices.SortFunc(intervals, func(a, b Interval) int {
		if a.Start != b.Start {
			return a.Start - b.Start
		}
		return a.End - b.End
	})

	merged := make([]Interval, 0, len(intervals))
	current := intervals[0]
	for _, iv := range intervals[1:] {
		if iv.Start <= current.End+1 {
			current.End = max(current.End, iv.End)
			continue
		}
		merged = append(merged, current)
		current = iv
	}
	merged = append(merged, current)

	days := 0
	for _, iv := range merged {
		days += iv.Days()
	}

	return merged, days
}
