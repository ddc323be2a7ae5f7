package core

import (
	m "github.com/rakesh-tiwari-alersal/Universal-Market-Cycles/models"
)

// SecondPick tells which branch of the two step selection fired for the
// second cycle, so callers and tests can distinguish a properly separated
// pick from the unconditional fallback.
type SecondPick int

const (
	SecondNone SecondPick = iota
	SecondSeparated
	SecondFallback
)

// pickSecond scans candidates (already ordered by descending strength, with
// the primary at index 0) for the strongest one at least minSeparation days
// away from the primary. If none qualifies it falls back to the second
// strongest candidate unconditionally.
//
// Known anomaly, preserved on purpose: the fallback can return a period
// closer than minSeparation to the primary, silently violating the
// separation the scan was enforcing.
func pickSecond(candidates []m.RawCycle, minSeparation float64) (m.RawCycle, SecondPick) {
	if len(candidates) < 2 {
		return m.RawCycle{}, SecondNone
	}

	primary := candidates[0]
	for _, c := range candidates[1:] {
		if abs(c.Period-primary.Period) >= minSeparation {
			return c, SecondSeparated
		}
	}

	return candidates[1], SecondFallback
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
