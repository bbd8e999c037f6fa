// Package broker defines the seam between the live engine and any
// execution venue.
package broker

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/glowback/glowback/internal/types"
)

// ConnectionStatus represents the broker connection state.
type ConnectionStatus int

const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnected
	StatusReconnecting
)

func (s ConnectionStatus) String() string {
	switch s {
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// AccountBalance is a snapshot of account cash and equity.
type AccountBalance struct {
	Cash        decimal.Decimal
	BuyingPower decimal.Decimal
	Equity      decimal.Decimal
	Timestamp   time.Time
}

// Position is a snapshot of one position held at the broker.
type Position struct {
	Symbol        types.Symbol
	Quantity      decimal.Decimal
	MarketValue   decimal.Decimal
	AverageCost   decimal.Decimal
	UnrealizedPnL decimal.Decimal
}

// Broker is the execution venue interface. All mutating calls fail with
// a NotConnected broker error until Connect succeeds.
type Broker interface {
	Connect(ctx context.Context) error
	Disconnect() error
	ConnectionStatus() ConnectionStatus

	// Order management
	SubmitOrder(ctx context.Context, order *types.Order) (string, error)
	CancelOrder(ctx context.Context, orderID string) error
	OrderStatus(orderID string) (types.OrderStatus, error)
	OpenOrders() ([]*types.Order, error)

	// Account queries
	AccountBalance() (AccountBalance, error)
	Positions() ([]Position, error)
	Position(symbol types.Symbol) (*Position, error)

	// Market data
	SubscribeMarketData(ctx context.Context, symbols []types.Symbol) error
	UnsubscribeMarketData(symbols []types.Symbol) error
	LatestPrice(symbol types.Symbol) (decimal.Decimal, bool)
	AllPrices() map[types.Symbol]decimal.Decimal
}
