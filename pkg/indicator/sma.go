package indicator

import (
	"github.com/shopspring/decimal"
)

// SMA calculates a simple moving average over a fixed period.
type SMA struct {
	win *window
}

// NewSMA creates an SMA calculator with the given period.
func NewSMA(period int) *SMA {
	return &SMA{win: newWindow(period)}
}

// Update adds a new value and returns the current SMA.
// Returns zero until the window fills.
func (s *SMA) Update(value decimal.Decimal) decimal.Decimal {
	s.win.push(value)
	return s.Current()
}

// Current returns the current SMA without adding new data.
func (s *SMA) Current() decimal.Decimal {
	if !s.win.full() {
		return decimal.Zero
	}
	return s.win.mean()
}

// Ready returns true once enough values have been collected.
func (s *SMA) Ready() bool {
	return s.win.full()
}

// Period returns the configured period.
func (s *SMA) Period() int {
	return s.win.size
}

// Count returns the number of values currently held.
func (s *SMA) Count() int {
	return len(s.win.values)
}

// Reset clears all data.
func (s *SMA) Reset() {
	s.win.reset()
}
