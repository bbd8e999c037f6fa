package main

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/glowback/glowback/internal/config"
	"github.com/glowback/glowback/internal/strategy"
)

// buildStrategy constructs the configured strategy from its id and
// parameter map.
func buildStrategy(cfg config.StrategyConfig) (strategy.Strategy, error) {
	params := cfg.Parameters

	switch cfg.ID {
	case "buy_and_hold":
		return strategy.NewBuyAndHold(), nil
	case "ma_crossover":
		return strategy.NewMACrossover(
			paramInt(params, "short_period", 10),
			paramInt(params, "long_period", 30),
		), nil
	case "mean_reversion":
		return strategy.NewMeanReversion(
			paramInt(params, "lookback_period", 20),
			paramDecimal(params, "entry_threshold", "2.0"),
			paramDecimal(params, "exit_threshold", "0.5"),
		), nil
	case "momentum":
		return strategy.NewMomentum(
			paramInt(params, "lookback_period", 20),
			paramDecimal(params, "momentum_threshold", "0.05"),
		), nil
	case "rsi":
		return strategy.NewRSIStrategy(
			paramInt(params, "lookback_period", 14),
			paramDecimal(params, "oversold_threshold", "30"),
			paramDecimal(params, "overbought_threshold", "70"),
		), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q (available: buy_and_hold, ma_crossover, mean_reversion, momentum, rsi)", cfg.ID)
	}
}

func paramInt(params map[string]any, key string, def int) int {
	v, ok := params[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		return def
	}
}

func paramDecimal(params map[string]any, key, def string) decimal.Decimal {
	v, ok := params[key]
	if !ok {
		return decimal.RequireFromString(def)
	}
	switch n := v.(type) {
	case string:
		if d, err := decimal.NewFromString(n); err == nil {
			return d
		}
	case float64:
		return decimal.NewFromFloat(n)
	case int:
		return decimal.NewFromInt(int64(n))
	}
	return decimal.RequireFromString(def)
}
