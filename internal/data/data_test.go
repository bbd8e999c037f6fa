package data

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/glowback/glowback/internal/types"
)

func testSymbol() types.Symbol {
	return types.NewEquity("AAPL", "NASDAQ")
}

func writeCSV(t *testing.T, dir, name, contents string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(contents), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
}

const sampleCSV = `timestamp,open,high,low,close,volume
2024-01-03T00:00:00Z,102,103,101,102.5,1100000
2024-01-01T00:00:00Z,100,101,99,100.5,1000000
2024-01-02T00:00:00Z,100.5,102,100,101.5,1200000
2024-01-04T00:00:00Z,102.5,104,102,103.5,900000
`

func TestCSVStoreLoadBars(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "AAPL_1d.csv", sampleCSV)
	store := NewCSVStore(dir, nil)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	bars, err := store.LoadBars(context.Background(), testSymbol(), start, end, types.ResolutionDay)
	if err != nil {
		t.Fatalf("LoadBars: %v", err)
	}
	if len(bars) != 3 {
		t.Fatalf("bars = %d, want 3", len(bars))
	}
	for i := 1; i < len(bars); i++ {
		if !bars[i].Timestamp.After(bars[i-1].Timestamp) {
			t.Errorf("bars not sorted at index %d", i)
		}
	}
	if got := bars[0].Close.String(); got != "100.5" {
		t.Errorf("first close = %s, want 100.5", got)
	}
}

func TestCSVStoreMissingFile(t *testing.T) {
	store := NewCSVStore(t.TempDir(), nil)
	_, err := store.LoadBars(context.Background(), testSymbol(),
		time.Now().Add(-24*time.Hour), time.Now(), types.ResolutionDay)
	if !errors.Is(err, types.ErrDataUnavailable) {
		t.Errorf("err = %v, want ErrDataUnavailable", err)
	}
}

func TestCSVStoreEmptyRange(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "AAPL_1d.csv", sampleCSV)
	store := NewCSVStore(dir, nil)

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	_, err := store.LoadBars(context.Background(), testSymbol(), start, start.Add(24*time.Hour), types.ResolutionDay)
	if !errors.Is(err, types.ErrInsufficientData) {
		t.Errorf("err = %v, want ErrInsufficientData", err)
	}
}

func TestCSVStoreRejectsBadRow(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "AAPL_1d.csv", `timestamp,open,high,low,close,volume
2024-01-01T00:00:00Z,100,99,101,100.5,1000000
`)
	store := NewCSVStore(dir, nil)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := store.LoadBars(context.Background(), testSymbol(), start, start.Add(24*time.Hour), types.ResolutionDay)
	if !errors.Is(err, types.ErrInvalidData) {
		t.Errorf("err = %v, want ErrInvalidData", err)
	}
}

// countingManager counts delegated loads so cache tests can tell a hit
// from a miss.
type countingManager struct {
	inner Manager
	loads int
}

func (m *countingManager) LoadBars(ctx context.Context, symbol types.Symbol, start, end time.Time, resolution types.Resolution) ([]types.Bar, error) {
	m.loads++
	return m.inner.LoadBars(ctx, symbol, start, end, resolution)
}

func TestCacheHitAndMiss(t *testing.T) {
	counting := &countingManager{inner: NewSampleGenerator(nil)}
	cache := NewCache(counting, 8, nil)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(10 * 24 * time.Hour)
	sym := testSymbol()

	first, err := cache.LoadBars(context.Background(), sym, start, end, types.ResolutionDay)
	if err != nil {
		t.Fatalf("first load: %v", err)
	}
	if counting.loads != 1 {
		t.Fatalf("loads = %d, want 1", counting.loads)
	}

	second, err := cache.LoadBars(context.Background(), sym, start, end, types.ResolutionDay)
	if err != nil {
		t.Fatalf("second load: %v", err)
	}
	if counting.loads != 1 {
		t.Errorf("loads = %d after repeat, want 1", counting.loads)
	}
	if len(second) != len(first) {
		t.Errorf("cached bars = %d, want %d", len(second), len(first))
	}

	hits, misses := cache.Stats()
	if hits != 1 || misses != 1 {
		t.Errorf("stats = %d hits %d misses, want 1 and 1", hits, misses)
	}
}

func TestCacheServesSubRange(t *testing.T) {
	counting := &countingManager{inner: NewSampleGenerator(nil)}
	cache := NewCache(counting, 8, nil)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(20 * 24 * time.Hour)
	sym := testSymbol()

	if _, err := cache.LoadBars(context.Background(), sym, start, end, types.ResolutionDay); err != nil {
		t.Fatalf("warm load: %v", err)
	}

	subStart := start.Add(5 * 24 * time.Hour)
	subEnd := start.Add(10 * 24 * time.Hour)
	bars, err := cache.LoadBars(context.Background(), sym, subStart, subEnd, types.ResolutionDay)
	if err != nil {
		t.Fatalf("sub-range load: %v", err)
	}
	if counting.loads != 1 {
		t.Errorf("loads = %d, want 1", counting.loads)
	}
	if len(bars) != 6 {
		t.Errorf("sub-range bars = %d, want 6", len(bars))
	}
	for _, bar := range bars {
		if bar.Timestamp.Before(subStart) || bar.Timestamp.After(subEnd) {
			t.Errorf("bar at %s outside requested range", bar.Timestamp)
		}
	}
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	counting := &countingManager{inner: NewSampleGenerator(nil)}
	cache := NewCache(counting, 2, nil)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(5 * 24 * time.Hour)
	ctx := context.Background()
	aapl := types.NewEquity("AAPL", "NASDAQ")
	msft := types.NewEquity("MSFT", "NASDAQ")
	goog := types.NewEquity("GOOG", "NASDAQ")

	for _, sym := range []types.Symbol{aapl, msft, goog} {
		if _, err := cache.LoadBars(ctx, sym, start, end, types.ResolutionDay); err != nil {
			t.Fatalf("load %s: %v", sym.Ticker, err)
		}
		time.Sleep(time.Millisecond)
	}
	if counting.loads != 3 {
		t.Fatalf("loads = %d after warm-up, want 3", counting.loads)
	}

	// The newest key survives its own insertion.
	if _, err := cache.LoadBars(ctx, goog, start, end, types.ResolutionDay); err != nil {
		t.Fatalf("reload GOOG: %v", err)
	}
	if counting.loads != 3 {
		t.Errorf("loads = %d after GOOG reload, want 3", counting.loads)
	}

	// The oldest key was the eviction victim.
	if _, err := cache.LoadBars(ctx, aapl, start, end, types.ResolutionDay); err != nil {
		t.Fatalf("reload AAPL: %v", err)
	}
	if counting.loads != 4 {
		t.Errorf("loads = %d after AAPL reload, want 4", counting.loads)
	}
}

func TestCacheDistinguishesResolutions(t *testing.T) {
	counting := &countingManager{inner: NewSampleGenerator(nil)}
	cache := NewCache(counting, 8, nil)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	sym := testSymbol()

	if _, err := cache.LoadBars(context.Background(), sym, start, end, types.ResolutionDay); err != nil {
		t.Fatalf("daily load: %v", err)
	}
	if _, err := cache.LoadBars(context.Background(), sym, start, end, types.ResolutionHour); err != nil {
		t.Fatalf("hourly load: %v", err)
	}
	if counting.loads != 2 {
		t.Errorf("loads = %d, want 2", counting.loads)
	}
}

func TestSampleGeneratorDeterministic(t *testing.T) {
	gen := NewSampleGenerator(nil)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(30 * 24 * time.Hour)

	first, err := gen.LoadBars(context.Background(), testSymbol(), start, end, types.ResolutionDay)
	if err != nil {
		t.Fatalf("first generate: %v", err)
	}
	second, err := gen.LoadBars(context.Background(), testSymbol(), start, end, types.ResolutionDay)
	if err != nil {
		t.Fatalf("second generate: %v", err)
	}

	if len(first) != 31 {
		t.Fatalf("bars = %d, want 31", len(first))
	}
	for i := range first {
		if !first[i].Close.Equal(second[i].Close) {
			t.Fatalf("close diverges at bar %d: %s vs %s", i, first[i].Close, second[i].Close)
		}
	}
	for i, bar := range first {
		if err := bar.Validate(); err != nil {
			t.Fatalf("bar %d invalid: %v", i, err)
		}
	}
}

func TestSampleGeneratorVariesBySymbol(t *testing.T) {
	gen := NewSampleGenerator(nil)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(10 * 24 * time.Hour)

	aapl, err := gen.LoadBars(context.Background(), testSymbol(), start, end, types.ResolutionDay)
	if err != nil {
		t.Fatalf("generate AAPL: %v", err)
	}
	msft, err := gen.LoadBars(context.Background(), types.NewEquity("MSFT", "NASDAQ"), start, end, types.ResolutionDay)
	if err != nil {
		t.Fatalf("generate MSFT: %v", err)
	}

	same := true
	for i := range aapl {
		if !aapl[i].Close.Equal(msft[i].Close) {
			same = false
			break
		}
	}
	if same {
		t.Error("different symbols produced identical walks")
	}
}
