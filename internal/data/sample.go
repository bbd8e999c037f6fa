package data

import (
	"context"
	"hash/fnv"
	"log/slog"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"github.com/glowback/glowback/internal/types"
)

// SampleGenerator produces synthetic random-walk bars. It is the
// fallback when no real data is available for a symbol, so backtests
// can still exercise a strategy end to end. The walk is seeded from
// the ticker, so repeated runs over the same symbol and range yield
// identical bars.
type SampleGenerator struct {
	logger     *slog.Logger
	startPrice decimal.Decimal
}

// NewSampleGenerator creates a generator with a starting price of 100.
func NewSampleGenerator(logger *slog.Logger) *SampleGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	return &SampleGenerator{
		logger:     logger,
		startPrice: decimal.NewFromInt(100),
	}
}

// LoadBars generates one bar per resolution step in [start, end].
func (g *SampleGenerator) LoadBars(ctx context.Context, symbol types.Symbol, start, end time.Time, resolution types.Resolution) ([]types.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, types.ErrInsufficientData
	}

	rng := rand.New(rand.NewSource(seedFor(symbol)))
	step := resolution.Duration()
	price := g.startPrice

	var bars []types.Bar
	for ts := start; !ts.After(end); ts = ts.Add(step) {
		// Drift up to 2% per bar in either direction.
		move := decimal.NewFromFloat(rng.Float64()*0.04 - 0.02)
		open := price
		close := open.Mul(decimal.NewFromInt(1).Add(move))
		high := decimal.Max(open, close).Mul(decimal.NewFromFloat(1.005))
		low := decimal.Min(open, close).Mul(decimal.NewFromFloat(0.995))
		volume := decimal.NewFromInt(int64(500000 + rng.Intn(1500000)))

		bars = append(bars, types.Bar{
			Symbol:     symbol,
			Timestamp:  ts,
			Open:       open,
			High:       high,
			Low:        low,
			Close:      close,
			Volume:     volume,
			Resolution: resolution,
		})
		price = close
	}
	if len(bars) == 0 {
		return nil, types.ErrInsufficientData
	}

	g.logger.Debug("generated sample bars",
		"symbol", symbol.String(),
		"bars", len(bars))
	return bars, nil
}

func seedFor(symbol types.Symbol) int64 {
	h := fnv.New64a()
	h.Write([]byte(symbol.Ticker))
	return int64(h.Sum64())
}

var _ Manager = (*SampleGenerator)(nil)
