package core

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/guregu/null/v6"
	"golang.org/x/sync/errgroup"

	ex "github.com/rakesh-tiwari-alersal/Universal-Market-Cycles/extensions"
	m "github.com/rakesh-tiwari-alersal/Universal-Market-Cycles/models"
)

// CycleExtractor produces at most two raw cycles for one instrument's closing
// price series. Implementations are safe for concurrent use, all tuning is
// read only after construction.
type CycleExtractor interface {
	Extract(ctx context.Context, closes []float64) ([]m.RawCycle, error)
}

func NewExtractor(cfg m.RunConfig) CycleExtractor {
	if cfg.Method == m.MethodPACF {
		return NewPACFExtractor(cfg)
	}
	return NewPSDExtractor(cfg)
}

type BatchResult struct {
	Config   m.RunConfig           `json:"config"`
	Outcomes []m.InstrumentOutcome `json:"outcomes"`
	Summary  m.CoverageSummary     `json:"summary"`
	Elapsed  time.Duration         `json:"elapsed"`
}

// RunBatch processes every instrument of the configured asset class through
// the configured extractor and reduces the outcomes to one coverage summary.
// Per instrument failures are recorded and do not stop the batch, only a
// configuration problem or a cancelled context aborts the run.
func (sc *ServiceContext) RunBatch(cfg m.RunConfig) (*BatchResult, error) {
	start := time.Now()

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	instruments, err := sc.Store.LoadInstruments(cfg.AssetClass)
	if err != nil {
		return nil, fmt.Errorf("error loading instrument metadata for class %s: %w", cfg.AssetClass, err)
	}

	table := GetReferenceTable(cfg.Table)
	extractor := NewExtractor(cfg)
	workers := max(1, ex.Min(cfg.Workers, len(instruments)))

	log.Printf("Starting %s batch for %s: %d instruments, tolerance %d, %d workers",
		cfg.Method, cfg.AssetClass, len(instruments), cfg.Tolerance, workers)

	// workers steal instrument indices from this channel, nothing else is
	// ever added to it
	jobsChannel := make(chan int, len(instruments))
	for i := range instruments {
		jobsChannel <- i
	}
	close(jobsChannel)

	// each worker writes only its own index of outcomes, so no lock is
	// needed during extraction; the log writer serializes internally
	outcomes := make([]m.InstrumentOutcome, len(instruments))

	// deriving from the service context means a cancelled caller stops the
	// batch, while one bad instrument never takes anyone down
	g, ctx := errgroup.WithContext(sc.Context)
	for range workers {
		g.Go(func() error {
			for idx := range jobsChannel {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}

				inst := instruments[idx]
				outcome := sc.analyzeInstrument(ctx, cfg, extractor, table, inst)
				if err := ctx.Err(); err != nil {
					return err
				}
				outcomes[idx] = outcome

				log.Printf("[%s/%s] %s: %s %s", cfg.AssetClass, cfg.Method, inst.Ticker, outcome.Status, outcome.Message)
				logErr := sc.Store.AppendLog(m.LogEntry{
					Timestamp:  time.Now(),
					AssetClass: cfg.AssetClass,
					Category:   inst.Category,
					Instrument: inst.Name,
					Ticker:     inst.Ticker,
					Status:     outcome.Status,
					Message:    outcome.Message,
				})
				if logErr != nil {
					log.Printf("error appending processing log for %s: %v", inst.Ticker, logErr)
				}
			}
			return nil
		})
	}

	// full batch barrier, the coverage reduction must not start before
	// every outcome is in
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := sc.Store.WriteResults(cfg, outcomes); err != nil {
		return nil, fmt.Errorf("error writing batch results: %w", err)
	}

	summary := NewCoverageEngine(table).Summarize(cfg.Method, cfg.Tolerance, outcomes)

	log.Printf("Batch complete (time: %v)", time.Since(start))
	log.Print(summary.Render())

	return &BatchResult{
		Config:   cfg,
		Outcomes: outcomes,
		Summary:  summary,
		Elapsed:  time.Since(start),
	}, nil
}

// analyzeInstrument runs one instrument end to end: load, validate, extract,
// match. Every failure is folded into the outcome, never propagated.
func (sc *ServiceContext) analyzeInstrument(ctx context.Context, cfg m.RunConfig, extractor CycleExtractor, table ReferenceTable, inst m.Instrument) m.InstrumentOutcome {
	outcome := m.InstrumentOutcome{
		Category: inst.Category,
		Name:     inst.Name,
		Ticker:   inst.Ticker,
		Status:   m.StatusSuccess,
	}

	// bound pathological estimator stalls without taking out the batch
	ictx, cancel := context.WithTimeout(ctx, cfg.InstrumentTimeout())
	defer cancel()

	closes, err := sc.Store.LoadPriceSeries(inst.Ticker)
	if err == nil {
		err = validateCloses(closes)
	}

	var cycles []m.RawCycle
	if err == nil {
		cycles, err = extractor.Extract(ictx, closes)
	}

	if err != nil {
		outcome.Status = m.StatusError
		outcome.Message = err.Error()
		return outcome
	}

	if len(cycles) > 0 {
		outcome.Cycle1 = matchSlot(cycles[0], table)
	}
	if len(cycles) > 1 {
		outcome.Cycle2 = matchSlot(cycles[1], table)
	}
	return outcome
}

func matchSlot(cycle m.RawCycle, table ReferenceTable) m.MatchResult {
	period := null.IntFrom(int64(math.Round(cycle.Period)))
	match, delta := MatchCycle(period, table)
	return m.MatchResult{Cycle: period, Match: match, Delta: delta}
}

func validateCloses(closes []float64) error {
	for _, v := range closes {
		if v <= 0 || !isFinite(v) {
			return m.ErrInvalidPrices
		}
	}
	return nil
}
