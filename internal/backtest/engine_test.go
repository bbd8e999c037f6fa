package backtest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/glowback/glowback/internal/strategy"
	"github.com/glowback/glowback/internal/types"
)

// fakeManager serves canned bars, or a fixed error, for tests.
type fakeManager struct {
	bars map[types.Symbol][]types.Bar
	err  error
}

func (m *fakeManager) LoadBars(ctx context.Context, symbol types.Symbol, start, end time.Time, resolution types.Resolution) ([]types.Bar, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.bars[symbol], nil
}

func risingBars(symbol types.Symbol, start time.Time, days int) []types.Bar {
	bars := make([]types.Bar, 0, days)
	for i := 0; i < days; i++ {
		base := decimal.NewFromInt(int64(100 + i))
		bars = append(bars, types.Bar{
			Symbol:     symbol,
			Timestamp:  start.Add(time.Duration(i) * 24 * time.Hour),
			Open:       base,
			High:       base.Add(dec("1.5")),
			Low:        base.Sub(dec("0.5")),
			Close:      base.Add(dec("1")),
			Volume:     decimal.NewFromInt(1000000),
			Resolution: types.ResolutionDay,
		})
	}
	return bars
}

func testConfig(symbol types.Symbol, start time.Time, days int) Config {
	return NewConfig("test run", []types.Symbol{symbol}, start, start.Add(time.Duration(days)*24*time.Hour))
}

func TestBuyAndHoldRoundTrip(t *testing.T) {
	symbol := types.NewEquity("AAPL", "NASDAQ")
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	days := 30

	mgr := &fakeManager{bars: map[types.Symbol][]types.Bar{
		symbol: risingBars(symbol, start, days),
	}}
	engine, err := New(testConfig(symbol, start, days), mgr, strategy.NewBuyAndHold(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	result, err := engine.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Status != StatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", result.Status)
	}

	if len(result.TradeLog) != 1 {
		t.Fatalf("trades = %d, want 1", len(result.TradeLog))
	}
	// The entry order is placed on the first bar and can only fill on
	// the second.
	wantFill := start.Add(24 * time.Hour)
	if !result.TradeLog[0].Timestamp.Equal(wantFill) {
		t.Errorf("fill at %s, want %s", result.TradeLog[0].Timestamp, wantFill)
	}

	if len(result.EquityCurve) != days {
		t.Errorf("equity points = %d, want %d", len(result.EquityCurve), days)
	}
	final := result.FinalPortfolio.TotalEquity
	if !final.GreaterThan(result.Config.InitialCapital) {
		t.Errorf("final equity %s not above initial in a rising market", final)
	}
	last := result.EquityCurve[len(result.EquityCurve)-1]
	if !last.PortfolioValue.Equal(final) {
		t.Errorf("last equity point %s != final portfolio %s", last.PortfolioValue, final)
	}

	if result.Performance == nil {
		t.Fatal("nil performance metrics")
	}
	if !result.Performance.TotalReturn.IsPositive() {
		t.Errorf("total return %s, want positive", result.Performance.TotalReturn)
	}
	if result.StrategyMetrics.TotalTrades != 1 {
		t.Errorf("strategy trades = %d, want 1", result.StrategyMetrics.TotalTrades)
	}
	if _, ok := result.Metadata["sample_data"]; ok {
		t.Error("sample data flagged despite real bars")
	}
}

func TestSampleDataFallback(t *testing.T) {
	symbol := types.NewEquity("AAPL", "NASDAQ")
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	mgr := &fakeManager{err: types.ErrDataUnavailable}
	engine, err := New(testConfig(symbol, start, 30), mgr, strategy.NewBuyAndHold(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	result, err := engine.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Metadata["sample_data"] != "AAPL" {
		t.Errorf("sample_data metadata = %q, want AAPL", result.Metadata["sample_data"])
	}
	if result.Status != StatusCompleted {
		t.Errorf("status = %s, want COMPLETED", result.Status)
	}
}

func TestRunHonorsContextCancellation(t *testing.T) {
	symbol := types.NewEquity("AAPL", "NASDAQ")
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	mgr := &fakeManager{bars: map[types.Symbol][]types.Bar{
		symbol: risingBars(symbol, start, 30),
	}}
	engine, err := New(testConfig(symbol, start, 30), mgr, strategy.NewBuyAndHold(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := engine.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if result.Status != StatusFailed {
		t.Errorf("status = %s, want FAILED", result.Status)
	}
}

func TestProgressCallback(t *testing.T) {
	symbol := types.NewEquity("AAPL", "NASDAQ")
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	days := 10

	mgr := &fakeManager{bars: map[types.Symbol][]types.Bar{
		symbol: risingBars(symbol, start, days),
	}}
	engine, err := New(testConfig(symbol, start, days), mgr, strategy.NewBuyAndHold(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var updates []ProgressUpdate
	engine.SetProgressCallback(func(u ProgressUpdate) {
		updates = append(updates, u)
	})

	if _, err := engine.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(updates) != days {
		t.Fatalf("updates = %d, want %d", len(updates), days)
	}
	for i := 1; i < len(updates); i++ {
		if updates[i].Progress < updates[i-1].Progress {
			t.Errorf("progress regressed at update %d", i)
		}
	}
	if got := updates[len(updates)-1].Progress; got != 1 {
		t.Errorf("final progress = %f, want 1", got)
	}
}

func TestConfigValidation(t *testing.T) {
	symbol := types.NewEquity("AAPL", "NASDAQ")
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no symbols", func(c *Config) { c.Symbols = nil }},
		{"end before start", func(c *Config) { c.EndDate = c.StartDate.Add(-time.Hour) }},
		{"zero capital", func(c *Config) { c.InitialCapital = decimal.Zero }},
		{"negative risk free", func(c *Config) { c.RiskFreeRate = dec("-0.01") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(symbol, start, 10)
			tt.mutate(&cfg)
			if _, err := New(cfg, &fakeManager{}, strategy.NewBuyAndHold(), nil); err == nil {
				t.Error("expected config error")
			}
		})
	}
}
