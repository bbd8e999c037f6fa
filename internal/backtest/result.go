package backtest

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/glowback/glowback/internal/strategy"
	"github.com/glowback/glowback/internal/types"
)

// Status tracks a backtest run through its lifecycle.
type Status int

const (
	StatusPending Status = iota
	StatusRunning
	StatusCompleted
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "PENDING"
	case StatusRunning:
		return "RUNNING"
	case StatusCompleted:
		return "COMPLETED"
	case StatusFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// EquityPoint is one day-end snapshot of the portfolio.
type EquityPoint struct {
	Timestamp      time.Time
	PortfolioValue decimal.Decimal
	Cash           decimal.Decimal
	TotalPnL       decimal.Decimal
	DailyReturn    decimal.Decimal
	Drawdown       decimal.Decimal
}

// TradeRecord is one execution in the trade log. RealizedPnL is
// non-zero only on fills that closed existing exposure.
type TradeRecord struct {
	OrderID     string
	Symbol      types.Symbol
	Side        types.Side
	Quantity    decimal.Decimal
	Price       decimal.Decimal
	Commission  decimal.Decimal
	RealizedPnL decimal.Decimal
	Timestamp   time.Time
}

// Result is the complete outcome of one backtest run.
type Result struct {
	Config          Config
	Status          Status
	StartedAt       time.Time
	CompletedAt     time.Time
	FinalPortfolio  *types.Portfolio
	Performance     *PerformanceMetrics
	StrategyMetrics strategy.Metrics
	EquityCurve     []EquityPoint
	TradeLog        []TradeRecord
	Metadata        map[string]string
	Err             error
}

// ProgressUpdate carries per-instant state for progress reporting.
type ProgressUpdate struct {
	Timestamp time.Time
	Progress  float64
	Equity    decimal.Decimal
	Trades    int
}

// ProgressCallback receives progress updates during a run.
type ProgressCallback func(update ProgressUpdate)
