package core

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	ex "github.com/rakesh-tiwari-alersal/Universal-Market-Cycles/extensions"
	m "github.com/rakesh-tiwari-alersal/Universal-Market-Cycles/models"
)

// CoverageEngine computes the Coverage Acceptance Ratio and its significance
// for one batch of instrument outcomes. Strictly a reduction, it runs after
// every per instrument outcome for the method and tolerance is in hand.
type CoverageEngine struct {
	table ReferenceTable
}

func NewCoverageEngine(table ReferenceTable) *CoverageEngine {
	return &CoverageEngine{table: table}
}

// Summarize aggregates a full batch into one CoverageSummary. Instruments
// with no detected cycle at all are excluded from the denominator, they are
// not failures. Deterministic, no hidden state.
func (ce *CoverageEngine) Summarize(method m.Method, tolerance int, outcomes []m.InstrumentOutcome) m.CoverageSummary {
	detected := ex.FilterMultiple(outcomes, func(o m.InstrumentOutcome) bool { return o.Detected() })
	processed := len(detected)
	covered := 0
	for i := range detected {
		if best, ok := detected[i].BestDelta(); ok && best <= int64(tolerance) {
			covered++
		}
	}

	car := 0.0
	if processed > 0 {
		car = float64(covered) / float64(processed)
	}

	_, coveredDays := ce.table.CoverageIntervals(tolerance)
	coverageRange := MaxMatchPeriod - MinMatchPeriod + 1
	pSingle := float64(coveredDays) / float64(coverageRange)

	// each instrument gets two independent random period draws under the
	// null, mirroring the two cycle detection budget
	pAtLeastOne := math.Min(1, 1-(1-pSingle)*(1-pSingle))

	pValue, zScore, expected := coverageSignificance(covered, processed, pAtLeastOne)

	return m.CoverageSummary{
		Method:          method,
		Tolerance:       tolerance,
		Covered:         covered,
		Processed:       processed,
		CAR:             car,
		PValue:          pValue,
		ZScore:          zScore,
		ExcessCoverage:  car - pAtLeastOne,
		ExpectedRandom:  expected,
		PSingleMatch:    pSingle,
		PAtLeastOne:     pAtLeastOne,
		CoveredDays:     coveredDays,
		TotalInstrument: len(outcomes),
	}
}

// coverageSignificance runs the one sided binomial test of covered against
// the chance level, plus the normal approximation z score. The test is
// always one sided toward excess coverage, also when the excess is negative.
func coverageSignificance(covered, processed int, pAtLeastOne float64) (pValue, zScore, expected float64) {
	expected = float64(processed) * pAtLeastOne

	if processed == 0 {
		return 1, 0, 0
	}

	binomial := distuv.Binomial{N: float64(processed), P: pAtLeastOne}
	pValue = binomial.Survival(float64(covered) - 0.5) // P(X >= covered)

	stdDev := math.Sqrt(float64(processed) * pAtLeastOne * (1 - pAtLeastOne))
	if stdDev > 0 {
		zScore = (float64(covered) - expected) / stdDev
	}
	return pValue, zScore, expected
}
