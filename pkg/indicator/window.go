// Package indicator provides incremental technical indicator calculators.
package indicator

import (
	"github.com/shopspring/decimal"
)

// window is a fixed-capacity rolling window of values with a running sum.
type window struct {
	size   int
	values []decimal.Decimal
	sum    decimal.Decimal
}

func newWindow(size int) *window {
	if size < 1 {
		size = 1
	}
	return &window{
		size:   size,
		values: make([]decimal.Decimal, 0, size),
		sum:    decimal.Zero,
	}
}

// push adds a value, evicting the oldest once the window is full.
func (w *window) push(v decimal.Decimal) {
	w.values = append(w.values, v)
	w.sum = w.sum.Add(v)
	if len(w.values) > w.size {
		w.sum = w.sum.Sub(w.values[0])
		w.values = w.values[1:]
	}
}

func (w *window) full() bool {
	return len(w.values) >= w.size
}

func (w *window) mean() decimal.Decimal {
	if len(w.values) == 0 {
		return decimal.Zero
	}
	return w.sum.Div(decimal.NewFromInt(int64(len(w.values))))
}

func (w *window) reset() {
	w.values = w.values[:0]
	w.sum = decimal.Zero
}

// sqrtDecimal computes a square root by Newton's method, rounded to
// eight places.
func sqrtDecimal(d decimal.Decimal) decimal.Decimal {
	if d.IsZero() || d.IsNegative() {
		return decimal.Zero
	}

	guess := d.Div(decimal.NewFromInt(2))
	if guess.IsZero() {
		guess = decimal.NewFromInt(1)
	}

	two := decimal.NewFromInt(2)
	epsilon := decimal.RequireFromString("0.00000001")

	for i := 0; i < 100; i++ {
		next := guess.Add(d.Div(guess)).Div(two)
		if next.Sub(guess).Abs().LessThan(epsilon) {
			return next.Round(8)
		}
		guess = next
	}

	return guess.Round(8)
}
