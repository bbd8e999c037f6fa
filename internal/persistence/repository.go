// Package persistence stores orders, fills, equity history, and run
// summaries so paper sessions can recover and backtests can be
// inspected after the fact.
package persistence

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/glowback/glowback/internal/types"
)

// Repository is the storage interface for trading state.
type Repository interface {
	// Order operations
	SaveOrder(ctx context.Context, order *types.Order) error
	GetOpenOrders(ctx context.Context) ([]*types.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID string, status types.OrderStatus, filledQty, avgFillPrice decimal.Decimal) error

	// Fill operations
	SaveFill(ctx context.Context, fill types.Fill) error
	GetFills(ctx context.Context, from, to time.Time) ([]types.Fill, error)
	GetFillsBySymbol(ctx context.Context, ticker string, limit int) ([]types.Fill, error)

	// Equity operations
	SaveEquityPoint(ctx context.Context, point EquityRecord) error
	GetEquityHistory(ctx context.Context, runID string, from, to time.Time) ([]EquityRecord, error)

	// Run operations
	SaveRun(ctx context.Context, run RunRecord) error
	GetRun(ctx context.Context, runID string) (*RunRecord, error)

	// Session operations
	SaveSessionState(ctx context.Context, state SessionState) error
	GetSessionState(ctx context.Context) (*SessionState, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// EquityRecord is one persisted point of an equity curve.
type EquityRecord struct {
	ID          int64
	RunID       string
	Timestamp   time.Time
	Equity      decimal.Decimal
	Cash        decimal.Decimal
	TotalPnL    decimal.Decimal
	DailyReturn decimal.Decimal
	Drawdown    decimal.Decimal
}

// RunRecord summarizes a finished backtest or paper session.
type RunRecord struct {
	ID             string
	Name           string
	Status         string
	StartedAt      time.Time
	CompletedAt    time.Time
	InitialCapital decimal.Decimal
	FinalEquity    decimal.Decimal
	TotalReturn    decimal.Decimal
	SharpeRatio    decimal.Decimal
	MaxDrawdown    decimal.Decimal
	TotalTrades    int
	Err            string
}

// SessionState is the single-row live snapshot used for recovery.
type SessionState struct {
	ID                    int64
	LastUpdated           time.Time
	Equity                decimal.Decimal
	HighWaterMark         decimal.Decimal
	CircuitBreakerTripped bool
	TotalFills            int
	RealizedPnL           decimal.Decimal
}
