package alerting

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestNewDailySummary(t *testing.T) {
	date := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	startEquity := decimal.NewFromInt(10000)
	endEquity := decimal.NewFromInt(10500)
	highWater := decimal.NewFromInt(11000)

	summary := NewDailySummary(date, startEquity, endEquity, highWater, 10, 2, false)

	if !summary.StartingEquity.Equal(startEquity) {
		t.Errorf("StartingEquity = %s, want %s", summary.StartingEquity, startEquity)
	}
	if !summary.EndingEquity.Equal(endEquity) {
		t.Errorf("EndingEquity = %s, want %s", summary.EndingEquity, endEquity)
	}
	if !summary.HighWaterMark.Equal(highWater) {
		t.Errorf("HighWaterMark = %s, want %s", summary.HighWaterMark, highWater)
	}

	expectedPnL := decimal.NewFromInt(500)
	if !summary.TotalPnL.Equal(expectedPnL) {
		t.Errorf("TotalPnL = %s, want %s", summary.TotalPnL, expectedPnL)
	}

	expectedReturn := decimal.NewFromFloat(5)
	if !summary.ReturnPct.Equal(expectedReturn) {
		t.Errorf("ReturnPct = %s, want %s", summary.ReturnPct, expectedReturn)
	}

	// (11000 - 10500) / 11000 * 100 = 4.545...
	expectedDrawdown := decimal.NewFromFloat(4.545454545454545)
	if summary.DrawdownPct.Sub(expectedDrawdown).Abs().GreaterThan(decimal.NewFromFloat(0.001)) {
		t.Errorf("DrawdownPct = %s, want ~%s", summary.DrawdownPct, expectedDrawdown)
	}

	if summary.TotalFills != 10 {
		t.Errorf("TotalFills = %d, want 10", summary.TotalFills)
	}
	if summary.OpenPositions != 2 {
		t.Errorf("OpenPositions = %d, want 2", summary.OpenPositions)
	}
	if summary.CircuitBreakerTripped {
		t.Error("breaker should not be tripped")
	}
}

func TestNewDailySummaryQuietDay(t *testing.T) {
	equity := decimal.NewFromInt(10000)

	summary := NewDailySummary(time.Now(), equity, equity, equity, 0, 0, false)

	if !summary.TotalPnL.IsZero() {
		t.Errorf("TotalPnL = %s, want 0", summary.TotalPnL)
	}
	if !summary.DrawdownPct.IsZero() {
		t.Errorf("DrawdownPct = %s, want 0", summary.DrawdownPct)
	}
	if !summary.ReturnPct.IsZero() {
		t.Errorf("ReturnPct = %s, want 0", summary.ReturnPct)
	}
}

func TestNewDailySummaryNegativeReturn(t *testing.T) {
	startEquity := decimal.NewFromInt(10000)
	endEquity := decimal.NewFromInt(9500)
	highWater := decimal.NewFromInt(10000)

	summary := NewDailySummary(time.Now(), startEquity, endEquity, highWater, 5, 1, true)

	expectedPnL := decimal.NewFromInt(-500)
	if !summary.TotalPnL.Equal(expectedPnL) {
		t.Errorf("TotalPnL = %s, want %s", summary.TotalPnL, expectedPnL)
	}

	expectedReturn := decimal.NewFromInt(-5)
	if !summary.ReturnPct.Equal(expectedReturn) {
		t.Errorf("ReturnPct = %s, want %s", summary.ReturnPct, expectedReturn)
	}

	if !summary.CircuitBreakerTripped {
		t.Error("CircuitBreakerTripped should be true")
	}
}
