package indicator

import (
	"github.com/shopspring/decimal"
)

// StdDev calculates the population standard deviation over a fixed
// period.
type StdDev struct {
	win *window
}

// NewStdDev creates a StdDev calculator with the given period.
func NewStdDev(period int) *StdDev {
	return &StdDev{win: newWindow(period)}
}

// Update adds a new value and returns the current standard deviation.
// Returns zero until the window fills.
func (s *StdDev) Update(value decimal.Decimal) decimal.Decimal {
	s.win.push(value)
	return s.Current()
}

// Current returns the current standard deviation without adding data.
func (s *StdDev) Current() decimal.Decimal {
	if !s.win.full() {
		return decimal.Zero
	}

	mean := s.win.mean()
	var sumSquares decimal.Decimal
	for _, v := range s.win.values {
		diff := v.Sub(mean)
		sumSquares = sumSquares.Add(diff.Mul(diff))
	}
	variance := sumSquares.Div(decimal.NewFromInt(int64(len(s.win.values))))
	return sqrtDecimal(variance)
}

// Mean returns the mean of the current window.
func (s *StdDev) Mean() decimal.Decimal {
	if !s.win.full() {
		return decimal.Zero
	}
	return s.win.mean()
}

// ZScore returns how many standard deviations the value sits from the
// window mean, or zero when the window is not full or has no spread.
func (s *StdDev) ZScore(value decimal.Decimal) decimal.Decimal {
	sd := s.Current()
	if sd.IsZero() {
		return decimal.Zero
	}
	return value.Sub(s.win.mean()).Div(sd)
}

// Ready returns true once enough values have been collected.
func (s *StdDev) Ready() bool {
	return s.win.full()
}

// Period returns the configured period.
func (s *StdDev) Period() int {
	return s.win.size
}

// Reset clears all data.
func (s *StdDev) Reset() {
	s.win.reset()
}
