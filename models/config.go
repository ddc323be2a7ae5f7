package models

import (
	"runtime"
	"slices"
	"time"
)

type AssetClass string

const (
	AssetClassEquity    AssetClass = "eq"
	AssetClassIndex     AssetClass = "ix"
	AssetClassCrypto    AssetClass = "cr"
	AssetClassCommodity AssetClass = "co"
	AssetClassForex     AssetClass = "fx"
)

var AssetClasses = []AssetClass{
	AssetClassEquity,
	AssetClassIndex,
	AssetClassCrypto,
	AssetClassCommodity,
	AssetClassForex,
}

type Method string

const (
	MethodPSD  Method = "psd"
	MethodPACF Method = "pacf"
)

type TableKind string

const (
	TableExtended TableKind = "extended" // 53 entry table
	TableLegacy   TableKind = "legacy"   // 47 entry table
)

type PSDSelectionPolicy string

const (
	PSDThresholdMass PSDSelectionPolicy = "threshold_mass"
	PSDMinSeparation PSDSelectionPolicy = "min_separation"
)

type PACFSelectionPolicy string

const (
	PACFMinSeparation PACFSelectionPolicy = "min_separation"
	PACFTopTwo        PACFSelectionPolicy = "top_two"
)

type PACFTransform string

const (
	TransformFirstDifference PACFTransform = "first_difference"
	TransformLogReturns      PACFTransform = "log_returns"
)

type MinLengthRule string

const (
	MinLengthFixed       MinLengthRule = "fixed"         // 1000 observation floor
	MinLengthTwiceMaxLag MinLengthRule = "twice_max_lag" // 2 x MAX_LAG on the transformed series
)

const (
	MinObservations = 1000

	DefaultPSDMinSeparationDays  = 41.0
	DefaultPACFMinSeparationDays = 71.0
	DefaultPACFMinLag            = 179
	DefaultPACFMaxLag            = 676
	DefaultConfidenceZ95         = 1.96
	ConfidenceZ99                = 2.576

	DefaultInstrumentTimeout = 2 * time.Minute
)

// per asset class tuning for the PSD extractor. the period window and the
// power mass threshold both come from the production calibration, they are
// resolved here rather than hardwired in the algorithm.
type classSettings struct {
	minPeriod    float64
	maxPeriod    float64
	psdThreshold float64
}

var assetClassSettings = map[AssetClass]classSettings{
	AssetClassEquity:    {minPeriod: 179, maxPeriod: 511, psdThreshold: 0.30},
	AssetClassCommodity: {minPeriod: 249, maxPeriod: 511, psdThreshold: 0.60},
	AssetClassIndex:     {minPeriod: 342, maxPeriod: 718, psdThreshold: 0.60},
	AssetClassCrypto:    {minPeriod: 179, maxPeriod: 511, psdThreshold: 0.60},
	AssetClassForex:     {minPeriod: 179, maxPeriod: 511, psdThreshold: 0.60},
}

func (c AssetClass) Known() bool {
	_, ok := assetClassSettings[c]
	return ok
}

// PeriodRange returns the in scope period window in days for the class.
func (c AssetClass) PeriodRange() (float64, float64) {
	s := assetClassSettings[c]
	return s.minPeriod, s.maxPeriod
}

// PSDThreshold returns the default power mass threshold for the class.
func (c AssetClass) PSDThreshold() float64 {
	return assetClassSettings[c].psdThreshold
}

type PSDOptions struct {
	Policy PSDSelectionPolicy `json:"policy,omitempty"`

	// Threshold overrides the asset class default power mass threshold
	// when non zero. Must lie in (0, 1).
	Threshold float64 `json:"threshold,omitempty"`

	MinSeparationDays float64 `json:"min_separation_days,omitempty"`
}

type PACFOptions struct {
	Policy        PACFSelectionPolicy `json:"policy,omitempty"`
	Transform     PACFTransform       `json:"transform,omitempty"`
	MinLengthRule MinLengthRule       `json:"min_length_rule,omitempty"`

	// ConfidenceZ is the significance z value, 1.96 for 95% or 2.576 for 99%.
	ConfidenceZ float64 `json:"confidence_z,omitempty"`

	MinLag            int     `json:"min_lag,omitempty"`
	MaxLag            int     `json:"max_lag,omitempty"`
	MinSeparationDays float64 `json:"min_separation_days,omitempty"`
}

// RunConfig is the explicit immutable configuration record for one batch run.
// Every component receives it at construction, nothing reads ambient globals.
type RunConfig struct {
	AssetClass AssetClass `json:"asset_class"`
	Method     Method     `json:"method"`
	Tolerance  int        `json:"tolerance"`
	Table      TableKind  `json:"table,omitempty"`

	PSD  PSDOptions  `json:"psd,omitempty"`
	PACF PACFOptions `json:"pacf,omitempty"`

	Workers                  int `json:"workers,omitempty"`
	InstrumentTimeoutSeconds int `json:"instrument_timeout_seconds,omitempty"`
}

// DefaultRunConfig builds the production configuration for one class, method
// and tolerance. The variant choices match the authoritative lineage:
// threshold mass PSD selection, 95% confidence, first differenced PACF input.
func DefaultRunConfig(class AssetClass, method Method, tolerance int) RunConfig {
	cfg := RunConfig{
		AssetClass: class,
		Method:     method,
		Tolerance:  tolerance,
	}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills every zero valued option so the rest of the engine can
// read the record without re-deriving defaults.
func (c *RunConfig) ApplyDefaults() {
	if c.Table == "" {
		c.Table = TableExtended
	}

	if c.PSD.Policy == "" {
		c.PSD.Policy = PSDThresholdMass
	}
	if c.PSD.Threshold == 0 && c.AssetClass.Known() {
		c.PSD.Threshold = c.AssetClass.PSDThreshold()
	}
	if c.PSD.MinSeparationDays == 0 {
		c.PSD.MinSeparationDays = DefaultPSDMinSeparationDays
	}

	if c.PACF.Policy == "" {
		c.PACF.Policy = PACFMinSeparation
	}
	if c.PACF.Transform == "" {
		c.PACF.Transform = TransformFirstDifference
	}
	if c.PACF.MinLengthRule == "" {
		c.PACF.MinLengthRule = MinLengthFixed
	}
	if c.PACF.ConfidenceZ == 0 {
		c.PACF.ConfidenceZ = DefaultConfidenceZ95
	}
	if c.PACF.MinLag == 0 {
		c.PACF.MinLag = DefaultPACFMinLag
	}
	if c.PACF.MaxLag == 0 {
		c.PACF.MaxLag = DefaultPACFMaxLag
	}
	if c.PACF.MinSeparationDays == 0 {
		c.PACF.MinSeparationDays = DefaultPACFMinSeparationDays
	}

	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.InstrumentTimeoutSeconds <= 0 {
		c.InstrumentTimeoutSeconds = int(DefaultInstrumentTimeout.Seconds())
	}
}

func (c *RunConfig) InstrumentTimeout() time.Duration {
	return time.Duration(c.InstrumentTimeoutSeconds) * time.Second
}

// Validate checks the record before any instrument is processed. Any failure
// here is a ConfigurationError and aborts the whole run.
func (c *RunConfig) Validate() error {
	if !c.AssetClass.Known() {
		return NewConfigurationError("asset_class", "unknown asset class %q, valid: %v", c.AssetClass, AssetClasses)
	}

	if c.Method != MethodPSD && c.Method != MethodPACF {
		return NewConfigurationError("method", "unknown method %q, valid: %s, %s", c.Method, MethodPSD, MethodPACF)
	}

	if !slices.Contains([]int{1, 2, 3}, c.Tolerance) {
		return NewConfigurationError("tolerance", "tolerance must be 1, 2 or 3, got %d", c.Tolerance)
	}

	if c.Table != TableExtended && c.Table != TableLegacy {
		return NewConfigurationError("table", "unknown reference table %q", c.Table)
	}

	if c.PSD.Policy != PSDThresholdMass && c.PSD.Policy != PSDMinSeparation {
		return NewConfigurationError("psd.policy", "unknown selection policy %q", c.PSD.Policy)
	}

	if c.PSD.Threshold <= 0 || c.PSD.Threshold >= 1 {
		return NewConfigurationError("psd.threshold", "threshold must be in (0, 1), got %v", c.PSD.Threshold)
	}

	if c.PACF.Policy != PACFMinSeparation && c.PACF.Policy != PACFTopTwo {
		return NewConfigurationError("pacf.policy", "unknown selection policy %q", c.PACF.Policy)
	}

	if c.PACF.Transform != TransformFirstDifference && c.PACF.Transform != TransformLogReturns {
		return NewConfigurationError("pacf.transform", "unknown transform %q", c.PACF.Transform)
	}

	if c.PACF.MinLengthRule != MinLengthFixed && c.PACF.MinLengthRule != MinLengthTwiceMaxLag {
		return NewConfigurationError("pacf.min_length_rule", "unknown rule %q", c.PACF.MinLengthRule)
	}

	if c.PACF.ConfidenceZ != DefaultConfidenceZ95 && c.PACF.ConfidenceZ != ConfidenceZ99 {
		return NewConfigurationError("pacf.confidence_z", "confidence z must be %v or %v, got %v", DefaultConfidenceZ95, ConfidenceZ99, c.PACF.ConfidenceZ)
	}

	if c.PACF.MinLag <= 0 || c.PACF.MaxLag <= c.PACF.MinLag {
		return NewConfigurationError("pacf.lag_window", "need 0 < min_lag < max_lag, got [%d, %d]", c.PACF.MinLag, c.PACF.MaxLag)
	}

	return nil
}
