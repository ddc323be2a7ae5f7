package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	ex "github.com/rakesh-tiwari-alersal/Universal-Market-Cycles/extensions"
	m "github.com/rakesh-tiwari-alersal/Universal-Market-Cycles/models"
)

// fakeStore keeps everything in memory so batch tests never touch disk.
type fakeStore struct {
	instruments []m.Instrument
	series      map[string][]float64

	mu      sync.Mutex
	logs    []m.LogEntry
	written []m.InstrumentOutcome
}

func (f *fakeStore) LoadInstruments(class m.AssetClass) ([]m.Instrument, error) {
	return f.instruments, nil
}

func (f *fakeStore) LoadPriceSeries(ticker string) ([]float64, error) {
	closes, ok := f.series[ticker]
	if !ok {
		return nil, fmt.Errorf("%w: %s", m.ErrDataUnavailable, ticker)
	}
	return closes, nil
}

func (f *fakeStore) WriteResults(cfg m.RunConfig, outcomes []m.InstrumentOutcome) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.written = append([]m.InstrumentOutcome(nil), outcomes...)
	return nil
}

func (f *fakeStore) AppendLog(entry m.LogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, entry)
	return nil
}

func newBatchFixture(t *testing.T) (*ServiceContext, *fakeStore) {
	t.Helper()

	store := &fakeStore{
		instruments: []m.Instrument{
			{Category: "Equity", Name: "Good Corp", Ticker: "GOOD"},
			{Category: "Equity", Name: "Gone Corp", Ticker: "MISSING"},
			{Category: "Equity", Name: "Short Corp", Ticker: "SHORT"},
		},
		series: map[string][]float64{
			"GOOD":  generateCyclicalCloses(t, 3001, 250, 0.01, 0.001, 99),
			"SHORT": generateCyclicalCloses(t, 100, 250, 0.01, 0.001, 99),
		},
	}

	return &ServiceContext{Context: context.Background(), Store: store}, store
}

func Test_RunBatch_IsolatesInstrumentFailures(t *testing.T) {
	sc, store := newBatchFixture(t)
	cfg := m.DefaultRunConfig(m.AssetClassEquity, m.MethodPSD, 3)

	result, err := sc.RunBatch(cfg)
	if err != nil {
		t.Fatalf("batch must survive per instrument failures, got %v", err)
	}

	ex.AssertAreEqual(t, "outcome count", 3, len(result.Outcomes))

	good := result.Outcomes[0]
	ex.AssertAreEqual(t, "good status", m.StatusSuccess, good.Status)
	if !good.Cycle1.Cycle.Valid {
		t.Fatal("expected a detected cycle for the synthetic instrument")
	}
	// 250 sits in the reference table, the detected period lands within
	// a few days of it
	ex.AssertAreEqual(t, "good match", int64(250), good.Cycle1.Match.Int64)
	if good.Cycle1.Delta.Int64 > 3 {
		t.Fatalf("expected a near exact match, delta was %d", good.Cycle1.Delta.Int64)
	}

	missing := result.Outcomes[1]
	ex.AssertAreEqual(t, "missing status", m.StatusError, missing.Status)
	if missing.Message == "" {
		t.Fatal("error outcomes must carry a message")
	}

	short := result.Outcomes[2]
	ex.AssertAreEqual(t, "short status", m.StatusError, short.Status)

	// only the instrument with a detected cycle enters the denominator
	ex.AssertAreEqual(t, "total", 3, result.Summary.TotalInstrument)
	ex.AssertAreEqual(t, "processed", 1, result.Summary.Processed)
	ex.AssertAreEqual(t, "covered", 1, result.Summary.Covered)

	// every instrument is logged regardless of status, results written once
	ex.AssertAreEqual(t, "log rows", 3, len(store.logs))
	ex.AssertAreEqual(t, "written rows", 3, len(store.written))
}

func Test_RunBatch_RejectsBadConfiguration(t *testing.T) {
	sc, store := newBatchFixture(t)

	cfg := m.DefaultRunConfig(m.AssetClassEquity, m.MethodPSD, 2)
	cfg.Tolerance = 7

	_, err := sc.RunBatch(cfg)

	var confErr *m.ConfigurationError
	if !errors.As(err, &confErr) {
		t.Fatalf("expected a ConfigurationError, got %v", err)
	}

	// configuration problems surface before any instrument is touched
	ex.AssertAreEqual(t, "log rows", 0, len(store.logs))
	ex.AssertAreEqual(t, "written rows", 0, len(store.written))
}

func Test_RunBatch_UnknownAssetClass(t *testing.T) {
	sc, _ := newBatchFixture(t)

	cfg := m.RunConfig{AssetClass: "bonds", Method: m.MethodPSD, Tolerance: 2}

	var confErr *m.ConfigurationError
	if _, err := sc.RunBatch(cfg); !errors.As(err, &confErr) {
		t.Fatalf("expected a ConfigurationError for an unknown class, got %v", err)
	}
}

func Test_RunBatch_Deterministic(t *testing.T) {
	sc, _ := newBatchFixture(t)
	cfg := m.DefaultRunConfig(m.AssetClassEquity, m.MethodPSD, 2)

	first, err := sc.RunBatch(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := sc.RunBatch(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ex.AssertAreEqual(t, "summary", first.Summary, second.Summary)
	for i := range first.Outcomes {
		ex.AssertAreEqual(t, "outcome", first.Outcomes[i], second.Outcomes[i])
	}
}

func Test_RunBatch_CancelledContext(t *testing.T) {
	sc, store := newBatchFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sc.Context = ctx

	cfg := m.DefaultRunConfig(m.AssetClassEquity, m.MethodPSD, 2)
	if _, err := sc.RunBatch(cfg); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	ex.AssertAreEqual(t, "written rows", 0, len(store.written))
}
