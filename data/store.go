package data

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/guregu/null/v6"

	m "github.com/rakesh-tiwari-alersal/Universal-Market-Cycles/models"
)

var priceDateFormats = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
}

var resultColumns = []string{
	"Category", "Instrument", "Ticker",
	"Cycle1", "Cycle1_Match", "Cycle1_Delta",
	"Cycle2", "Cycle2_Match", "Cycle2_Delta",
}

var logColumns = []string{
	"Timestamp", "AssetClass", "Category", "Instrument", "Ticker", "Status", "Message",
}

// FileStore reads instrument metadata and per instrument history files from
// DataDir and writes batch results and the processing log under OutputDir.
// Everything is flat CSV, there is no other persistence.
type FileStore struct {
	DataDir   string
	OutputDir string

	// single writer lock for the shared processing log, workers append
	// concurrently
	logMu sync.Mutex
}

func NewFileStore(dataDir, outputDir string) *FileStore {
	return &FileStore{DataDir: dataDir, OutputDir: outputDir}
}

// SafeTicker strips the exchange punctuation that cannot appear in a file
// name, the history files are stored under the sanitized ticker.
func SafeTicker(ticker string) string {
	return strings.NewReplacer("^", "", "=", "", "/", "_").Replace(ticker)
}

// LoadInstruments reads instrument_data_<class>.csv, which needs Category,
// Instrument and Ticker columns.
func (s *FileStore) LoadInstruments(class m.AssetClass) ([]m.Instrument, error) {
	path := filepath.Join(s.DataDir, fmt.Sprintf("instrument_data_%s.csv", class))
	records, err := readCsv(path)
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("metadata file %s has no instrument rows", path)
	}

	header := indexHeader(records[0])
	catIdx, ok1 := header["category"]
	nameIdx, ok2 := header["instrument"]
	tickerIdx, ok3 := header["ticker"]
	if !ok1 || !ok2 || !ok3 {
		return nil, fmt.Errorf("metadata file %s is missing Category/Instrument/Ticker columns", path)
	}

	instruments := make([]m.Instrument, 0, len(records)-1)
	for _, row := range records[1:] {
		instruments = append(instruments, m.Instrument{
			Category: row[catIdx],
			Name:     row[nameIdx],
			Ticker:   row[tickerIdx],
		})
	}
	return instruments, nil
}

// LoadPriceSeries reads <DataDir>/<safe ticker>.csv, needing Date and close
// columns, and returns the closes sorted by date ascending. Unsorted input
// is corrected here, never passed through. A close that fails to parse comes
// back NaN so the validation stage can flag the series.
func (s *FileStore) LoadPriceSeries(ticker string) ([]float64, error) {
	path := filepath.Join(s.DataDir, SafeTicker(ticker)+".csv")
	records, err := readCsv(path)
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("%w: %s has no data rows", m.ErrInsufficientData, path)
	}

	header := indexHeader(records[0])
	dateIdx, ok1 := header["date"]
	closeIdx, ok2 := header["close"]
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("history file %s is missing Date/close columns", path)
	}

	type row struct {
		date  time.Time
		close float64
	}
	rows := make([]row, 0, len(records)-1)
	for _, rec := range records[1:] {
		date, err := parseDate(rec[dateIdx])
		if err != nil {
			return nil, fmt.Errorf("history file %s: %w", path, err)
		}

		value := math.NaN()
		if v, err := strconv.ParseFloat(rec[closeIdx], 64); err == nil {
			value = v
		}
		rows = append(rows, row{date: date, close: value})
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].date.Before(rows[j].date) })

	closes := make([]float64, len(rows))
	for i, r := range rows {
		closes[i] = r.close
	}
	return closes, nil
}

// WriteResults writes the nine column result table for one run, one row per
// instrument, blank fields where fewer than two cycles were detected.
func (s *FileStore) WriteResults(cfg m.RunConfig, outcomes []m.InstrumentOutcome) error {
	if err := os.MkdirAll(s.OutputDir, 0o755); err != nil {
		return fmt.Errorf("error creating output dir: %w", err)
	}

	path := filepath.Join(s.OutputDir, fmt.Sprintf("match_%s_results_%s.csv", cfg.Method, cfg.AssetClass))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating result file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(resultColumns); err != nil {
		return err
	}
	for i := range outcomes {
		o := &outcomes[i]
		record := []string{
			o.Category, o.Name, o.Ticker,
			fmtNullInt(o.Cycle1.Cycle), fmtNullInt(o.Cycle1.Match), fmtNullInt(o.Cycle1.Delta),
			fmtNullInt(o.Cycle2.Cycle), fmtNullInt(o.Cycle2.Match), fmtNullInt(o.Cycle2.Delta),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

// AppendLog appends one processing log row, creating the file with its
// header on first use. Safe for concurrent workers.
func (s *FileStore) AppendLog(entry m.LogEntry) error {
	s.logMu.Lock()
	defer s.logMu.Unlock()

	if err := os.MkdirAll(s.OutputDir, 0o755); err != nil {
		return fmt.Errorf("error creating output dir: %w", err)
	}

	path := filepath.Join(s.OutputDir, "processing_log.csv")
	_, statErr := os.Stat(path)
	writeHeader := errors.Is(statErr, fs.ErrNotExist)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("error opening processing log: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if writeHeader {
		if err := w.Write(logColumns); err != nil {
			return err
		}
	}
	record := []string{
		entry.Timestamp.Format("2006-01-02 15:04:05"),
		string(entry.AssetClass),
		entry.Category,
		entry.Instrument,
		entry.Ticker,
		entry.Status,
		entry.Message,
	}
	if err := w.Write(record); err != nil {
		return err
	}

	w.Flush()
	return w.Error()
}

func readCsv(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", m.ErrDataUnavailable, path)
		}
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", path, err)
	}
	return records, nil
}

// indexHeader maps lower cased column names to their position, history files
// from different vendors disagree on capitalization.
func indexHeader(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return idx
}

func parseDate(value string) (time.Time, error) {
	for _, format := range priceDateFormats {
		if t, err := time.Parse(format, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("error converting date %s to time.Time", value)
}

func fmtNullInt(v null.Int) string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatInt(v.Int64, 10)
}
