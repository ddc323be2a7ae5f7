package core

import (
	"context"
	"math"
	"math/cmplx"
	"slices"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"

	ex "github.com/rakesh-tiwari-alersal/Universal-Market-Cycles/extensions"
	m "github.com/rakesh-tiwari-alersal/Universal-Market-Cycles/models"
)

const (
	// relative height floor for peak detection, 0.1% of the strongest
	// in-range power
	peakHeightFloor = 0.001

	// number of ranked peaks that participate in selection
	maxPeakCandidates = 10
)

// PSDExtractor detects up to two dominant periodicities in the periodogram of
// a price series' log returns.
type PSDExtractor struct {
	minPeriod float64
	maxPeriod float64
	threshold float64
	policy    m.PSDSelectionPolicy
	minSep    float64
}

func NewPSDExtractor(cfg m.RunConfig) *PSDExtractor {
	minPeriod, maxPeriod := cfg.AssetClass.PeriodRange()
	return &PSDExtractor{
		minPeriod: minPeriod,
		maxPeriod: maxPeriod,
		threshold: cfg.PSD.Threshold,
		policy:    cfg.PSD.Policy,
		minSep:    cfg.PSD.MinSeparationDays,
	}
}

// Extract computes the log return periodogram and returns 0, 1 or 2 raw
// cycles with periods rounded to the nearest day. Finding nothing is a
// normal outcome, not an error.
func (e *PSDExtractor) Extract(ctx context.Context, closes []float64) ([]m.RawCycle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if len(closes) < m.MinObservations {
		return nil, m.ErrInsufficientData
	}

	returns := logReturns(closes)
	freqs, psd := periodogram(returns)

	peaks := e.rankPeaks(freqs, psd)
	selected := e.selectCycles(peaks)

	cycles := make([]m.RawCycle, 0, len(selected))
	for _, p := range selected {
		cycles = append(cycles, m.RawCycle{
			Period:   math.Round(p.Period),
			Strength: p.Strength,
		})
	}
	return cycles, nil
}

// rankPeaks converts frequency bins to periods, restricts them to the asset
// class window, finds local maxima above the relative height floor and
// returns the strongest candidates in descending power order.
func (e *PSDExtractor) rankPeaks(freqs, psd []float64) []m.RawCycle {
	// exclude the zero frequency bin, then keep only bins whose period
	// falls inside the class window
	var periods, powers []float64
	for i, f := range freqs {
		if f <= 0 {
			continue
		}
		period := 1 / f
		if period < e.minPeriod || period > e.maxPeriod {
			continue
		}
		periods = append(periods, period)
		powers = append(powers, psd[i])
	}

	if len(powers) == 0 {
		return nil
	}

	floor := peakHeightFloor * slices.Max(powers)
	peakIdx := localMaxima(powers, floor)
	if len(peakIdx) == 0 {
		return nil
	}

	peaks := make([]m.RawCycle, len(peakIdx))
	for i, idx := range peakIdx {
		peaks[i] = m.RawCycle{Period: periods[idx], Strength: powers[idx]}
	}

	slices.SortStableFunc(peaks, func(a, b m.RawCycle) int {
		switch {
		case a.Strength > b.Strength:
			return -1
		case a.Strength < b.Strength:
			return 1
		default:
			return 0
		}
	})

	if len(peaks) > maxPeakCandidates {
		peaks = peaks[:maxPeakCandidates]
	}
	return peaks
}

func (e *PSDExtractor) selectCycles(peaks []m.RawCycle) []m.RawCycle {
	if len(peaks) == 0 {
		return nil
	}

	if e.policy == m.PSDMinSeparation {
		selected := []m.RawCycle{peaks[0]}
		if second, pick := pickSecond(peaks, e.minSep); pick != SecondNone {
			selected = append(selected, second)
		}
		return selected
	}

	return e.selectThresholdMass(peaks)
}

// selectThresholdMass always keeps the strongest peak and adds the second
// strongest only when the top two together carry at least threshold of the
// total candidate power. A lone peak is kept only if it meets the threshold
// by itself.
func (e *PSDExtractor) selectThresholdMass(peaks []m.RawCycle) []m.RawCycle {
	powers := make([]float64, len(peaks))
	for i, p := range peaks {
		powers[i] = p.Strength
	}

	totalPower := ex.Sum(powers)
	if totalPower == 0 {
		return nil
	}

	if len(peaks) == 1 {
		if peaks[0].Strength >= e.threshold*totalPower {
			return peaks[:1]
		}
		return nil
	}

	selected := []m.RawCycle{peaks[0]}
	if peaks[0].Strength+peaks[1].Strength >= e.threshold*totalPower {
		selected = append(selected, peaks[1])
	}
	return selected
}

func logReturns(closes []float64) []float64 {
	returns := make([]float64, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		returns[i-1] = math.Log(closes[i]) - math.Log(closes[i-1])
	}
	return returns
}

// periodogram estimates the one sided power spectral density of x at unit
// sampling with a periodic Hann window and density scaling. The constant
// component is removed before windowing. Returns frequencies in cycles per
// day and power per bin.
func periodogram(x []float64) (freqs, psd []float64) {
	n := len(x)
	mean := stat.Mean(x, nil)

	windowed := make([]float64, n)
	windowPower := 0.0
	for i := range x {
		w := 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n)))
		windowed[i] = (x[i] - mean) * w
		windowPower += w * w
	}

	fft := fourier.NewFFT(n)
	coeffs := fft.Coefficients(nil, windowed)

	nBins := len(coeffs)
	freqs = make([]float64, nBins)
	psd = make([]float64, nBins)
	scale := 1 / windowPower // fs = 1
	for i, c := range coeffs {
		p := scale * real(c*cmplx.Conj(c))
		// one sided spectrum doubles everything except DC and, for even
		// length input, the Nyquist bin
		if i > 0 && !(n%2 == 0 && i == nBins-1) {
			p *= 2
		}
		freqs[i] = fft.Freq(i)
		psd[i] = p
	}
	return freqs, psd
}

// localMaxima returns indices of samples at least floor high that rise above
// the preceding sample and fall off after. A flat topped run of equal values
// counts as one peak reported at its midpoint (rounding left). Peaks touching
// either boundary never qualify.
func localMaxima(values []float64, floor float64) []int {
	var idx []int
	i := 1
	for i < len(values)-1 {
		if values[i] <= values[i-1] {
			i++
			continue
		}

		// walk to the far edge of the plateau, if any
		j := i
		for j < len(values)-1 && values[j+1] == values[i] {
			j++
		}
		if j < len(values)-1 && values[j+1] < values[i] && values[i] >= floor {
			idx = append(idx, i+(j-i)/2)
		}
		i = j + 1
	}
	return idx
}
