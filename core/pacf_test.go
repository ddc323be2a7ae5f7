package core

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/stat/distuv"

	ex "github.com/rakesh-tiwari-alersal/Universal-Market-Cycles/extensions"
	m "github.com/rakesh-tiwari-alersal/Universal-Market-Cycles/models"
)

func generateWhiteNoise(t *testing.T, n int, seed uint64) []float64 {
	t.Helper()

	noise := distuv.Normal{Mu: 0, Sigma: 1, Src: rand.NewPCG(seed, 1)}
	x := make([]float64, n)
	for i := range x {
		x[i] = noise.Rand()
	}
	return x
}

func Test_PacfOLS_AR1(t *testing.T) {
	// x[t] = 0.5 x[t-1] + e, the PACF is 0.5 at lag 1 and noise after
	noise := distuv.Normal{Mu: 0, Sigma: 1, Src: rand.NewPCG(3, 1)}
	n := 4000
	x := make([]float64, n)
	for i := 1; i < n; i++ {
		x[i] = 0.5*x[i-1] + noise.Rand()
	}

	pacf, err := pacfOLS(context.Background(), x, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ex.AssertInDelta(t, "pacf[0]", 1.0, pacf[0], 1e-12)
	ex.AssertInDelta(t, "pacf[1]", 0.5, pacf[1], 0.05)
	for lag := 2; lag <= 10; lag++ {
		if math.Abs(pacf[lag]) > 0.08 {
			t.Fatalf("pacf[%d] = %v, expected near zero beyond lag 1", lag, pacf[lag])
		}
	}
}

func Test_PacfOLS_SeasonalLag(t *testing.T) {
	// strong autoregression at lag 200 only
	noise := distuv.Normal{Mu: 0, Sigma: 1, Src: rand.NewPCG(11, 1)}
	n := 3000
	x := make([]float64, n)
	for i := range x {
		x[i] = noise.Rand()
		if i >= 200 {
			x[i] += 0.8 * x[i-200]
		}
	}

	pacf, err := pacfOLS(context.Background(), x, 260)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	best := 179
	for lag := 179; lag <= 260; lag++ {
		if math.Abs(pacf[lag]) > math.Abs(pacf[best]) {
			best = lag
		}
	}
	ex.AssertAreEqual(t, "strongest lag", 200, best)
	if math.Abs(pacf[200]) < 0.5 {
		t.Fatalf("pacf at the seasonal lag should be large, got %v", pacf[200])
	}
}

func Test_PacfOLS_WhiteNoiseFalsePositiveRate(t *testing.T) {
	// under the null the band z/sqrt(n) should trip at roughly the nominal
	// rate, systematically more would mean a biased estimator
	const (
		n      = 1000
		maxLag = 40
		minLag = 5
		seeds  = 25
	)

	threshold := m.DefaultConfidenceZ95 / math.Sqrt(float64(n))

	exceedances, total := 0, 0
	for seed := uint64(1); seed <= seeds; seed++ {
		x := generateWhiteNoise(t, n, seed)
		pacf, err := pacfOLS(context.Background(), x, maxLag)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		for lag := minLag; lag <= maxLag; lag++ {
			total++
			if math.Abs(pacf[lag]) > threshold {
				exceedances++
			}
		}
	}

	rate := float64(exceedances) / float64(total)
	if rate < 0.01 || rate > 0.11 {
		t.Fatalf("false positive rate %.3f not near the nominal 5%% (%d of %d lags)", rate, exceedances, total)
	}
}

func Test_PacfOLS_LowLagsKeepFullSample(t *testing.T) {
	// the lag k regression runs over t = k .. n-1, so lag 1 must see the
	// whole series even with a large maxLag. Here all the lag 1 structure
	// sits in the first half, a common sample starting at maxLag would
	// only ever see the white noise tail.
	noise := distuv.Normal{Mu: 0, Sigma: 1, Src: rand.NewPCG(29, 1)}
	n := 700
	x := make([]float64, n)
	for i := 1; i < n; i++ {
		if i < n/2 {
			x[i] = 0.9*x[i-1] + noise.Rand()
		} else {
			x[i] = noise.Rand()
		}
	}

	pacf, err := pacfOLS(context.Background(), x, 350)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// pooled over both halves the lag 1 coefficient stays large
	if pacf[1] < 0.5 {
		t.Fatalf("pacf[1] = %v, the autocorrelated first half was dropped from the sample", pacf[1])
	}
}

func Test_PacfOLS_DegenerateSeries(t *testing.T) {
	// a zero series leaves every normal equation system singular
	_, err := pacfOLS(context.Background(), make([]float64, 1200), 676)
	if !errors.Is(err, m.ErrNumericalFailure) {
		t.Fatalf("expected ErrNumericalFailure, got %v", err)
	}
}

func Test_PACFExtractor_ConstantPrices(t *testing.T) {
	cfg := m.DefaultRunConfig(m.AssetClassEquity, m.MethodPACF, 2)
	extractor := NewPACFExtractor(cfg)

	closes := make([]float64, 1100)
	for i := range closes {
		closes[i] = 250.0
	}

	// constant closes difference to all zeros, the estimation collapses
	_, err := extractor.Extract(context.Background(), closes)
	if !errors.Is(err, m.ErrNumericalFailure) {
		t.Fatalf("expected ErrNumericalFailure, got %v", err)
	}
}

func Test_PACFExtractor_FindsSeasonalCycle(t *testing.T) {
	cfg := m.DefaultRunConfig(m.AssetClassEquity, m.MethodPACF, 2)
	cfg.PACF.MinLag = 179
	cfg.PACF.MaxLag = 260

	extractor := NewPACFExtractor(cfg)

	// closes whose first difference is an AR process at lag 200
	noise := distuv.Normal{Mu: 0, Sigma: 1, Src: rand.NewPCG(17, 1)}
	n := 3000
	diff := make([]float64, n)
	for i := range diff {
		diff[i] = noise.Rand()
		if i >= 200 {
			diff[i] += 0.8 * diff[i-200]
		}
	}

	closes := make([]float64, n+1)
	closes[0] = 10000
	for i, d := range diff {
		closes[i+1] = closes[i] + d
	}

	cycles, err := extractor.Extract(context.Background(), closes)
	if err != nil {
		t.Fatalf("unexpected extraction error: %v", err)
	}
	if len(cycles) == 0 {
		t.Fatal("expected the seasonal lag to be significant")
	}
	ex.AssertInDelta(t, "lag", 200, cycles[0].Period, 1)
}

func Test_PACFExtractor_MinLengthRules(t *testing.T) {
	cfg := m.DefaultRunConfig(m.AssetClassEquity, m.MethodPACF, 2)
	cfg.PACF.MinLag = 5
	cfg.PACF.MaxLag = 50

	// fixed rule: 999 closes miss the 1000 observation floor
	fixed := NewPACFExtractor(cfg)
	_, err := fixed.Extract(context.Background(), generateWhiteNoise(t, 999, 1))
	if !errors.Is(err, m.ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData for the fixed rule, got %v", err)
	}

	// twice max lag rule: the same series is plenty
	cfg.PACF.MinLengthRule = m.MinLengthTwiceMaxLag
	relaxed := NewPACFExtractor(cfg)
	closes := generateWhiteNoise(t, 999, 1)
	for i := range closes {
		closes[i] += 1000 // keep the series price-like
	}
	if _, err := relaxed.Extract(context.Background(), closes); err != nil {
		t.Fatalf("expected the relaxed rule to accept 999 closes, got %v", err)
	}

	// but 80 closes give a 79 element diff, under 2 x 50
	if _, err := relaxed.Extract(context.Background(), closes[:80]); !errors.Is(err, m.ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData under twice max lag, got %v", err)
	}
}

func Test_PACFExtractor_TopTwoPolicy(t *testing.T) {
	cfg := m.DefaultRunConfig(m.AssetClassEquity, m.MethodPACF, 2)
	cfg.PACF.Policy = m.PACFTopTwo
	cfg.PACF.MinLag = 179
	cfg.PACF.MaxLag = 230

	extractor := NewPACFExtractor(cfg)

	// two nearby seasonal lags, top two keeps both even though they are
	// closer than the separation distance
	noise := distuv.Normal{Mu: 0, Sigma: 1, Src: rand.NewPCG(23, 1)}
	n := 4000
	diff := make([]float64, n)
	for i := range diff {
		diff[i] = noise.Rand()
		if i >= 190 {
			diff[i] += 0.5 * diff[i-190]
		}
		if i >= 210 {
			diff[i] += 0.3 * diff[i-210]
		}
	}

	closes := make([]float64, n+1)
	closes[0] = 10000
	for i, d := range diff {
		closes[i+1] = closes[i] + d
	}

	cycles, err := extractor.Extract(context.Background(), closes)
	if err != nil {
		t.Fatalf("unexpected extraction error: %v", err)
	}
	if len(cycles) != 2 {
		t.Fatalf("expected two significant lags, got %d", len(cycles))
	}
	if math.Abs(cycles[0].Period-cycles[1].Period) >= m.DefaultPACFMinSeparationDays {
		t.Fatal("test setup broken, the two lags should be inside the separation window")
	}
}

func Test_PACFExtractor_CancelledContext(t *testing.T) {
	cfg := m.DefaultRunConfig(m.AssetClassEquity, m.MethodPACF, 2)
	extractor := NewPACFExtractor(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	closes := generateWhiteNoise(t, 2000, 5)
	for i := range closes {
		closes[i] += 1000
	}

	_, err := extractor.Extract(ctx, closes)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
