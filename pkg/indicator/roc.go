package indicator

import (
	"github.com/shopspring/decimal"
)

// ROC calculates the rate of change (momentum) as a percentage over a
// fixed lookback: (current - past) / past * 100.
type ROC struct {
	period int
	values []decimal.Decimal
}

// NewROC creates a ROC calculator with the given lookback period.
func NewROC(period int) *ROC {
	if period < 1 {
		period = 1
	}
	return &ROC{
		period: period,
		values: make([]decimal.Decimal, 0, period+1),
	}
}

// Update adds a new price and returns the current rate of change.
// Returns zero until period+1 values have been seen or when the
// reference price is zero.
func (r *ROC) Update(price decimal.Decimal) decimal.Decimal {
	r.values = append(r.values, price)
	if len(r.values) > r.period+1 {
		r.values = r.values[1:]
	}
	return r.Current()
}

// Current returns the current rate of change without adding data.
func (r *ROC) Current() decimal.Decimal {
	if len(r.values) < r.period+1 {
		return decimal.Zero
	}
	past := r.values[0]
	if past.IsZero() {
		return decimal.Zero
	}
	current := r.values[len(r.values)-1]
	return current.Sub(past).Div(past).Mul(hundred)
}

// Ready returns true once the lookback is full.
func (r *ROC) Ready() bool {
	return len(r.values) >= r.period+1
}

// Period returns the configured lookback.
func (r *ROC) Period() int {
	return r.period
}

// Reset clears all data.
func (r *ROC) Reset() {
	r.values = r.values[:0]
}
