package core

import (
	"context"

	m "github.com/rakesh-tiwari-alersal/Universal-Market-Cycles/models"
)

// Store is everything the engine needs from the flat file layer. Results and
// logs only ever go to tabular files, there is no other persistence.
type Store interface {
	LoadInstruments(class m.AssetClass) ([]m.Instrument, error)
	LoadPriceSeries(ticker string) ([]float64, error)
	WriteResults(cfg m.RunConfig, outcomes []m.InstrumentOutcome) error
	AppendLog(entry m.LogEntry) error
}

type ServiceContext struct {
	Context context.Context
	Store   Store
}
