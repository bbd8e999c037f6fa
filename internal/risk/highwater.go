// Package risk implements pre-trade risk controls: ordered order
// checks, a daily-loss circuit breaker, and peak-equity tracking.
package risk

import (
	"sync"

	"github.com/shopspring/decimal"
)

// HighWaterMark tracks peak equity and the drawdown from it.
// Thread-safe.
type HighWaterMark struct {
	mu      sync.RWMutex
	peak    decimal.Decimal
	current decimal.Decimal
}

// NewHighWaterMark creates a tracker seeded with initial equity.
func NewHighWaterMark(initialEquity decimal.Decimal) *HighWaterMark {
	return &HighWaterMark{
		peak:    initialEquity,
		current: initialEquity,
	}
}

// Update records the current equity. Returns true when a new peak was
// set.
func (h *HighWaterMark) Update(equity decimal.Decimal) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.current = equity
	if equity.GreaterThan(h.peak) {
		h.peak = equity
		return true
	}
	return false
}

// Current returns the last recorded equity.
func (h *HighWaterMark) Current() decimal.Decimal {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Peak returns the highest equity seen so far.
func (h *HighWaterMark) Peak() decimal.Decimal {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.peak
}

// Drawdown returns (peak - current) / peak, zero at or above the peak.
func (h *HighWaterMark) Drawdown() decimal.Decimal {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.drawdownLocked()
}

func (h *HighWaterMark) drawdownLocked() decimal.Decimal {
	if h.peak.IsZero() || h.current.GreaterThanOrEqual(h.peak) {
		return decimal.Zero
	}
	return h.peak.Sub(h.current).Div(h.peak)
}

// Reset re-seeds the tracker.
func (h *HighWaterMark) Reset(equity decimal.Decimal) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.peak = equity
	h.current = equity
}

// Snapshot returns current equity, peak, and drawdown together.
func (h *HighWaterMark) Snapshot() (current, peak, drawdown decimal.Decimal) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current, h.peak, h.drawdownLocked()
}
