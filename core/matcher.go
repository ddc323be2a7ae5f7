package core

import (
	"github.com/guregu/null/v6"
)

// NearestCycle selects the table entry minimizing the absolute difference to
// period. Linear scan with a strict comparison so a midpoint tie goes to the
// lowest index entry. Pure and stateless.
func NearestCycle(period int, table ReferenceTable) (closest int, delta int) {
	closest = table.Cycles[0]
	delta = absInt(period - closest)
	for _, c := range table.Cycles[1:] {
		if d := absInt(period - c); d < delta {
			closest = c
			delta = d
		}
	}
	return closest, delta
}

// MatchCycle resolves one raw period to a MatchResult slot. A null period
// stays null all the way through.
func MatchCycle(period null.Int, table ReferenceTable) (match null.Int, delta null.Int) {
	if !period.Valid || len(table.Cycles) == 0 {
		return null.Int{}, null.Int{}
	}
	closest, d := NearestCycle(int(period.Int64), table)
	return null.IntFrom(int64(closest)), null.IntFrom(int64(d))
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
