package core

import (
	"context"
	"math"
	"slices"

	"gonum.org/v1/gonum/mat"

	m "github.com/rakesh-tiwari-alersal/Universal-Market-Cycles/models"
)

// PACFExtractor detects up to two significant partial autocorrelation lags in
// a transformed price series.
type PACFExtractor struct {
	transform     m.PACFTransform
	minLengthRule m.MinLengthRule
	confidenceZ   float64
	minLag        int
	maxLag        int
	policy        m.PACFSelectionPolicy
	minSep        float64
}

func NewPACFExtractor(cfg m.RunConfig) *PACFExtractor {
	return &PACFExtractor{
		transform:     cfg.PACF.Transform,
		minLengthRule: cfg.PACF.MinLengthRule,
		confidenceZ:   cfg.PACF.ConfidenceZ,
		minLag:        cfg.PACF.MinLag,
		maxLag:        cfg.PACF.MaxLag,
		policy:        cfg.PACF.Policy,
		minSep:        cfg.PACF.MinSeparationDays,
	}
}

// Extract computes the PACF of the transformed series up to maxLag and
// returns 0, 1 or 2 significant lags as raw cycles. The strength of a cycle
// is the absolute PACF value at its lag.
func (e *PACFExtractor) Extract(ctx context.Context, closes []float64) ([]m.RawCycle, error) {
	if e.minLengthRule == m.MinLengthFixed && len(closes) < m.MinObservations {
		return nil, m.ErrInsufficientData
	}

	var series []float64
	switch e.transform {
	case m.TransformLogReturns:
		series = logReturns(closes)
	default:
		series = firstDifference(closes)
	}

	if e.minLengthRule == m.MinLengthTwiceMaxLag && len(series) < 2*e.maxLag {
		return nil, m.ErrInsufficientData
	}
	if len(series) <= e.maxLag+1 {
		return nil, m.ErrInsufficientData
	}

	pacfVals, err := pacfOLS(ctx, series, e.maxLag)
	if err != nil {
		return nil, err
	}

	// significance band for a white noise null at the configured level
	threshold := e.confidenceZ / math.Sqrt(float64(len(series)))

	var significant []m.RawCycle
	for lag := e.minLag; lag <= e.maxLag && lag < len(pacfVals); lag++ {
		v := pacfVals[lag]
		if !isFinite(v) {
			continue
		}
		if math.Abs(v) > threshold {
			significant = append(significant, m.RawCycle{
				Period:   float64(lag),
				Strength: math.Abs(v),
			})
		}
	}

	if len(significant) == 0 {
		return nil, nil
	}

	slices.SortStableFunc(significant, func(a, b m.RawCycle) int {
		switch {
		case a.Strength > b.Strength:
			return -1
		case a.Strength < b.Strength:
			return 1
		default:
			return 0
		}
	})

	if e.policy == m.PACFTopTwo {
		if len(significant) > 2 {
			significant = significant[:2]
		}
		return significant, nil
	}

	selected := []m.RawCycle{significant[0]}
	if second, pick := pickSecond(significant, e.minSep); pick != SecondNone {
		selected = append(selected, second)
	}
	return selected, nil
}

// pacfOLS estimates the partial autocorrelation function of x by ordinary
// least squares: for each lag k the PACF is the coefficient on x[t-k] in the
// regression of x[t] on an intercept and x[t-1] .. x[t-k]. Each lag's
// regression runs over its own maximal sample t = k .. n-1, so low lags keep
// every available observation. The per lag normal equations are assembled in
// O(k^2) from prefix sums shared across the sweep.
//
// A lag whose normal equations are not positive definite gets NaN, callers
// skip non finite values. When every lag collapses this way the estimation
// as a whole has failed and ErrNumericalFailure comes back instead.
func pacfOLS(ctx context.Context, x []float64, maxLag int) ([]float64, error) {
	n := len(x)
	if n-maxLag < 2 {
		return nil, m.ErrInsufficientData
	}

	// cumulative sums, cs[u] = sum of x[0..u]
	cs := make([]float64, n)
	acc := 0.0
	for i, v := range x {
		acc += v
		cs[i] = acc
	}
	sumRange := func(a, b int) float64 {
		if a <= 0 {
			return cs[b]
		}
		return cs[b] - cs[a-1]
	}

	// cumulative lagged products, cp[d][u] = sum of x[v]*x[v+d] for v in 0..u
	cp := make([][]float64, maxLag+1)
	for d := 0; d <= maxLag; d++ {
		cp[d] = make([]float64, n-d)
		acc = 0.0
		for v := 0; v+d < n; v++ {
			acc += x[v] * x[v+d]
			cp[d][v] = acc
		}
	}
	prodRange := func(d, a, b int) float64 {
		if a <= 0 {
			return cp[d][b]
		}
		return cp[d][b] - cp[d][a-1]
	}

	pacf := make([]float64, maxLag+1)
	pacf[0] = 1
	finite := 0

	// scratch reused across lags, lag k works on the leading (k+1) block
	dim := maxLag + 1
	aFull := mat.NewSymDense(dim, nil)
	bFull := make([]float64, dim)
	sol := mat.NewVecDense(dim, nil)

	var chol mat.Cholesky
	for k := 1; k <= maxLag; k++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// normal equations over t = k .. n-1, column 0 is the intercept,
		// column i is lag i
		aFull.SetSym(0, 0, float64(n-k))
		bFull[0] = sumRange(k, n-1)
		for i := 1; i <= k; i++ {
			// sums of x[t-i] and x[t]*x[t-i] shift with the lag
			aFull.SetSym(0, i, sumRange(k-i, n-1-i))
			bFull[i] = prodRange(i, k-i, n-1-i)
			for j := 1; j <= i; j++ {
				aFull.SetSym(j, i, prodRange(i-j, k-i, n-1-i))
			}
		}

		sub := aFull.SliceSym(0, k+1)
		if ok := chol.Factorize(sub); !ok {
			pacf[k] = math.NaN()
			continue
		}

		b := mat.NewVecDense(k+1, bFull[:k+1])
		s := sol.SliceVec(0, k+1).(*mat.VecDense)
		if err := chol.SolveVecTo(s, b); err != nil {
			pacf[k] = math.NaN()
			continue
		}
		pacf[k] = s.AtVec(k)
		finite++
	}

	if finite == 0 {
		return nil, m.ErrNumericalFailure
	}
	return pacf, nil
}

func firstDifference(values []float64) []float64 {
	diff := make([]float64, len(values)-1)
	for i := 1; i < len(values); i++ {
		diff[i-1] = values[i] - values[i-1]
	}
	return diff
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
