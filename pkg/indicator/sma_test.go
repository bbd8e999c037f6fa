package indicator

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// TestSMA_Update tests rolling average over a filling and full window.
func TestSMA_Update(t *testing.T) {
	sma := NewSMA(3)

	if got := sma.Update(d("100")); !got.IsZero() {
		t.Errorf("partial window SMA = %s, want 0", got)
	}
	if sma.Ready() {
		t.Error("SMA should not be ready with 1 of 3 values")
	}

	sma.Update(d("101"))
	got := sma.Update(d("102"))
	if !got.Equal(d("101")) {
		t.Errorf("SMA(100,101,102) = %s, want 101", got)
	}
	if !sma.Ready() {
		t.Error("SMA should be ready with full window")
	}

	// Window slides: (101+102+106)/3 = 103.
	got = sma.Update(d("106"))
	if !got.Equal(d("103")) {
		t.Errorf("SMA after slide = %s, want 103", got)
	}
}

// TestSMA_CurrentDoesNotMutate tests read-only access.
func TestSMA_CurrentDoesNotMutate(t *testing.T) {
	sma := NewSMA(2)
	sma.Update(d("10"))
	sma.Update(d("20"))

	first := sma.Current()
	second := sma.Current()
	if !first.Equal(second) || !first.Equal(d("15")) {
		t.Errorf("Current() = %s then %s, want stable 15", first, second)
	}
	if sma.Count() != 2 {
		t.Errorf("Count() = %d, want 2", sma.Count())
	}
}

// TestSMA_Reset tests clearing state.
func TestSMA_Reset(t *testing.T) {
	sma := NewSMA(2)
	sma.Update(d("10"))
	sma.Update(d("20"))
	sma.Reset()

	if sma.Ready() {
		t.Error("SMA should not be ready after reset")
	}
	if !sma.Current().IsZero() {
		t.Errorf("Current() after reset = %s, want 0", sma.Current())
	}
}

// TestSMA_InvalidPeriod tests the minimum period clamp.
func TestSMA_InvalidPeriod(t *testing.T) {
	sma := NewSMA(0)
	if sma.Period() != 1 {
		t.Errorf("period = %d, want clamp to 1", sma.Period())
	}
	if got := sma.Update(d("42")); !got.Equal(d("42")) {
		t.Errorf("period-1 SMA = %s, want 42", got)
	}
}
