package indicator

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// RSI calculates the Relative Strength Index over a fixed lookback,
// using simple averages of gains and losses.
type RSI struct {
	period  int
	prev    decimal.Decimal
	hasPrev bool
	gains   *window
	losses  *window
}

// NewRSI creates an RSI calculator with the given lookback period.
func NewRSI(period int) *RSI {
	if period < 1 {
		period = 1
	}
	return &RSI{
		period: period,
		gains:  newWindow(period),
		losses: newWindow(period),
	}
}

// Update adds a new closing price and returns the current RSI in
// [0, 100]. Returns zero until the lookback fills. All-gain windows
// read 100, all-loss windows read 0.
func (r *RSI) Update(price decimal.Decimal) decimal.Decimal {
	if !r.hasPrev {
		r.prev = price
		r.hasPrev = true
		return decimal.Zero
	}

	change := price.Sub(r.prev)
	r.prev = price

	if change.GreaterThan(decimal.Zero) {
		r.gains.push(change)
		r.losses.push(decimal.Zero)
	} else {
		r.gains.push(decimal.Zero)
		r.losses.push(change.Abs())
	}

	return r.Current()
}

// Current returns the current RSI without adding new data.
func (r *RSI) Current() decimal.Decimal {
	if !r.gains.full() {
		return decimal.Zero
	}

	avgGain := r.gains.mean()
	avgLoss := r.losses.mean()

	if avgLoss.IsZero() {
		return hundred
	}
	if avgGain.IsZero() {
		return decimal.Zero
	}

	rs := avgGain.Div(avgLoss)
	return hundred.Sub(hundred.Div(decimal.NewFromInt(1).Add(rs)))
}

// Ready returns true once the lookback is full.
func (r *RSI) Ready() bool {
	return r.gains.full()
}

// Period returns the configured lookback.
func (r *RSI) Period() int {
	return r.period
}

// Reset clears all data.
func (r *RSI) Reset() {
	r.prev = decimal.Zero
	r.hasPrev = false
	r.gains.reset()
	r.losses.reset()
}
