// Package execution converts pending orders and market bars into fills.
package execution

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/glowback/glowback/internal/types"
)

// Settings controls simulated fill pricing and costs.
type Settings struct {
	// CommissionPerShare is charged on every share filled.
	CommissionPerShare decimal.Decimal
	// CommissionPct is charged against fill notional.
	CommissionPct decimal.Decimal
	// MinCommission floors the total commission per fill.
	MinCommission decimal.Decimal
	// SlippageBps is applied against notional, adverse to the order side.
	SlippageBps decimal.Decimal
	// Latency is the minimum simulated time between consecutive fills.
	Latency time.Duration
}

// DefaultSettings returns the standard simulation cost model.
func DefaultSettings() Settings {
	return Settings{
		CommissionPerShare: decimal.RequireFromString("0.001"),
		CommissionPct:      decimal.RequireFromString("0.0005"),
		MinCommission:      decimal.RequireFromString("1"),
		SlippageBps:        decimal.RequireFromString("5"),
		Latency:            100 * time.Millisecond,
	}
}

// Validate checks the settings for negative values.
func (s Settings) Validate() error {
	if s.CommissionPerShare.IsNegative() || s.CommissionPct.IsNegative() || s.MinCommission.IsNegative() {
		return fmt.Errorf("%w: negative commission", types.ErrInvalidConfig)
	}
	if s.SlippageBps.IsNegative() {
		return fmt.Errorf("%w: negative slippage", types.ErrInvalidConfig)
	}
	if s.Latency < 0 {
		return fmt.Errorf("%w: negative latency", types.ErrInvalidConfig)
	}
	return nil
}

// Commission computes the per-fill commission for a quantity and
// notional, floored at the configured minimum.
func (s Settings) Commission(qty, notional decimal.Decimal) decimal.Decimal {
	c := s.CommissionPerShare.Mul(qty).Add(s.CommissionPct.Mul(notional))
	if c.LessThan(s.MinCommission) {
		return s.MinCommission
	}
	return c
}
