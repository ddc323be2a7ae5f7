package models

import (
	"fmt"
	"time"

	"github.com/guregu/null/v6"
)

// Instrument is one row of the per class metadata file.
type Instrument struct {
	Category string
	Name     string
	Ticker   string
}

// RawCycle is one periodicity reported by an extractor before matching.
// Strength is the peak power for PSD and the absolute PACF value for PACF.
type RawCycle struct {
	Period   float64
	Strength float64
}

// MatchResult pairs a detected period with its nearest reference cycle.
// All three fields are null when no cycle was detected in that slot.
type MatchResult struct {
	Cycle null.Int `json:"cycle"`
	Match null.Int `json:"match"`
	Delta null.Int `json:"delta"`
}

const (
	StatusSuccess = "SUCCESS"
	StatusError   = "ERROR"
)

// InstrumentOutcome is the per instrument row of a batch run. It is written
// once by the worker that processed the instrument and never mutated after.
type InstrumentOutcome struct {
	Category string `json:"category"`
	Name     string `json:"instrument"`
	Ticker   string `json:"ticker"`

	Cycle1 MatchResult `json:"cycle1"`
	Cycle2 MatchResult `json:"cycle2"`

	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Detected reports whether at least one cycle with a valid delta was found.
// Instruments where this is false are excluded from the CAR denominator.
func (o *InstrumentOutcome) Detected() bool {
	return o.Cycle1.Delta.Valid || o.Cycle2.Delta.Valid
}

// BestDelta returns the smaller of the two deltas, treating null as +inf.
func (o *InstrumentOutcome) BestDelta() (int64, bool) {
	switch {
	case o.Cycle1.Delta.Valid && o.Cycle2.Delta.Valid:
		return min(o.Cycle1.Delta.Int64, o.Cycle2.Delta.Int64), true
	case o.Cycle1.Delta.Valid:
		return o.Cycle1.Delta.Int64, true
	case o.Cycle2.Delta.Valid:
		return o.Cycle2.Delta.Int64, true
	default:
		return 0, false
	}
}

// LogEntry is one row of the processing log.
type LogEntry struct {
	Timestamp  time.Time
	AssetClass AssetClass
	Category   string
	Instrument string
	Ticker     string
	Status     string
	Message    string
}

// CoverageSummary is the output of the coverage significance engine for one
// method and tolerance. Recomputed fresh on every invocation.
type CoverageSummary struct {
	Method    Method `json:"method"`
	Tolerance int    `json:"tolerance"`

	Covered   int     `json:"covered"`
	Processed int     `json:"processed"`
	CAR       float64 `json:"car"`

	PValue         float64 `json:"p_value"`
	ZScore         float64 `json:"z_score"`
	ExcessCoverage float64 `json:"excess_coverage"`
	ExpectedRandom float64 `json:"expected_random"`

	PSingleMatch    float64 `json:"p_single_match"`
	PAtLeastOne     float64 `json:"p_at_least_one_match"`
	CoveredDays     int     `json:"covered_days"`
	TotalInstrument int     `json:"total_instruments"`
}

// Render formats the summary the way the batch report prints it.
func (s CoverageSummary) Render() string {
	return fmt.Sprintf(
		"%s results (tolerance=%d):\n"+
			"\tinstruments with cycles detected: %d of %d\n"+
			"\tCAR: %.2f%% (%d instruments)\n"+
			"\texpected random coverage: %.1f instruments\n"+
			"\texcess coverage: %.2f%% points\n"+
			"\tstatistical significance: z=%.2f, p=%.2e",
		s.Method, s.Tolerance,
		s.Processed, s.TotalInstrument,
		s.CAR*100, s.Covered,
		s.ExpectedRandom,
		s.ExcessCoverage*100,
		s.ZScore, s.PValue,
	)
}
