package data

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/glowback/glowback/internal/types"
)

// csvColumns is the expected header of a bar file.
var csvColumns = []string{"timestamp", "open", "high", "low", "close", "volume"}

// CSVStore reads OHLCV bars from per-symbol CSV files laid out as
// <root>/<TICKER>_<resolution>.csv. Loads are rate limited so that a
// scan across many symbols does not saturate slow storage.
type CSVStore struct {
	root    string
	logger  *slog.Logger
	limiter *rate.Limiter
}

// NewCSVStore creates a store rooted at dir. A nil logger falls back
// to slog.Default.
func NewCSVStore(dir string, logger *slog.Logger) *CSVStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVStore{
		root:    dir,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(20), 5),
	}
}

func (s *CSVStore) path(symbol types.Symbol, resolution types.Resolution) string {
	return filepath.Join(s.root, fmt.Sprintf("%s_%s.csv", symbol.Ticker, resolution))
}

// LoadBars reads the file for the symbol and returns the bars inside
// [start, end], sorted by timestamp.
func (s *CSVStore) LoadBars(ctx context.Context, symbol types.Symbol, start, end time.Time, resolution types.Resolution) ([]types.Bar, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	path := s.path(symbol, resolution)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: no file for %s at %s", types.ErrDataUnavailable, symbol, path)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	bars, err := s.parse(f, symbol, resolution)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	out := bars[:0]
	for _, bar := range bars {
		if bar.Timestamp.Before(start) || bar.Timestamp.After(end) {
			continue
		}
		out = append(out, bar)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no bars for %s in range", types.ErrInsufficientData, symbol)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })

	s.logger.Debug("bars loaded", "symbol", symbol.String(), "bars", len(out))
	return out, nil
}

func (s *CSVStore) parse(r io.Reader, symbol types.Symbol, resolution types.Resolution) ([]types.Bar, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: missing header", types.ErrInvalidData)
	}
	if len(header) < len(csvColumns) {
		return nil, fmt.Errorf("%w: header has %d columns, want %d", types.ErrInvalidData, len(header), len(csvColumns))
	}

	var bars []types.Bar
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", types.ErrInvalidData, line, err)
		}

		bar, err := parseRecord(record, symbol, resolution)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func parseRecord(record []string, symbol types.Symbol, resolution types.Resolution) (types.Bar, error) {
	if len(record) < len(csvColumns) {
		return types.Bar{}, fmt.Errorf("%w: %d fields, want %d", types.ErrInvalidData, len(record), len(csvColumns))
	}

	ts, err := time.Parse(time.RFC3339, record[0])
	if err != nil {
		return types.Bar{}, fmt.Errorf("%w: timestamp %q", types.ErrInvalidData, record[0])
	}

	fields := make([]decimal.Decimal, 5)
	for i := 0; i < 5; i++ {
		d, err := decimal.NewFromString(record[i+1])
		if err != nil {
			return types.Bar{}, fmt.Errorf("%w: %s %q", types.ErrInvalidData, csvColumns[i+1], record[i+1])
		}
		fields[i] = d
	}

	bar := types.Bar{
		Symbol:     symbol,
		Timestamp:  ts.UTC(),
		Open:       fields[0],
		High:       fields[1],
		Low:        fields[2],
		Close:      fields[3],
		Volume:     fields[4],
		Resolution: resolution,
	}
	if err := bar.Validate(); err != nil {
		return types.Bar{}, err
	}
	return bar, nil
}

var _ Manager = (*CSVStore)(nil)
