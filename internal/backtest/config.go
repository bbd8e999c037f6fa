// Package backtest runs strategies against historical data and
// produces performance results.
package backtest

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/glowback/glowback/internal/execution"
	"github.com/glowback/glowback/internal/types"
)

// Config identifies one backtest run and fixes its universe, date
// range, capital, and cost model.
type Config struct {
	ID             uuid.UUID
	Name           string
	Symbols        []types.Symbol
	StartDate      time.Time
	EndDate        time.Time
	InitialCapital decimal.Decimal
	Resolution     types.Resolution
	Execution      execution.Settings
	// RiskFreeRate is the annual rate used by Sharpe and Sortino.
	RiskFreeRate decimal.Decimal
}

// NewConfig creates a config with a fresh ID and default execution
// settings.
func NewConfig(name string, symbols []types.Symbol, start, end time.Time) Config {
	return Config{
		ID:             uuid.New(),
		Name:           name,
		Symbols:        symbols,
		StartDate:      start,
		EndDate:        end,
		InitialCapital: decimal.NewFromInt(100000),
		Resolution:     types.ResolutionDay,
		Execution:      execution.DefaultSettings(),
		RiskFreeRate:   decimal.RequireFromString("0.02"),
	}
}

// Validate checks the config before a run starts.
func (c Config) Validate() error {
	if len(c.Symbols) == 0 {
		return fmt.Errorf("%w: no symbols", types.ErrInvalidConfig)
	}
	if !c.EndDate.After(c.StartDate) {
		return fmt.Errorf("%w: end date %s not after start date %s",
			types.ErrInvalidConfig, c.EndDate.Format(time.DateOnly), c.StartDate.Format(time.DateOnly))
	}
	if c.InitialCapital.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: initial capital %s", types.ErrInvalidConfig, c.InitialCapital)
	}
	if c.RiskFreeRate.IsNegative() {
		return fmt.Errorf("%w: risk-free rate %s", types.ErrInvalidConfig, c.RiskFreeRate)
	}
	return c.Execution.Validate()
}
