// Package paper provides a fully in-process broker that simulates order
// execution against incoming market data. It is the sandbox venue used
// for strategy development and for validating risk controls before
// trading real money.
package paper

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/glowback/glowback/internal/broker"
	"github.com/glowback/glowback/internal/metrics"
	"github.com/glowback/glowback/internal/types"
)

var tenThousand = decimal.NewFromInt(10000)

// Config holds paper broker settings.
type Config struct {
	InitialCash                 decimal.Decimal `yaml:"initial_cash"`
	CommissionPerShare          decimal.Decimal `yaml:"commission_per_share"`
	SlippageBps                 decimal.Decimal `yaml:"slippage_bps"`
	FillMarketOrdersImmediately bool            `yaml:"fill_market_orders_immediately"`
}

// DefaultConfig returns the default paper broker settings.
func DefaultConfig() Config {
	return Config{
		InitialCash:                 decimal.NewFromInt(100000),
		CommissionPerShare:          decimal.RequireFromString("0.01"),
		SlippageBps:                 decimal.NewFromInt(5),
		FillMarketOrdersImmediately: true,
	}
}

// Validate checks the settings.
func (c Config) Validate() error {
	if c.InitialCash.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: initial cash must be positive", types.ErrInvalidConfig)
	}
	if c.CommissionPerShare.IsNegative() || c.SlippageBps.IsNegative() {
		return fmt.Errorf("%w: commission and slippage must be non-negative", types.ErrInvalidConfig)
	}
	return nil
}

type position struct {
	symbol      types.Symbol
	quantity    decimal.Decimal
	averageCost decimal.Decimal
}

// Broker simulates order execution locally.
type Broker struct {
	cfg      Config
	logger   *slog.Logger
	recorder *metrics.Recorder

	mu           sync.RWMutex
	status       broker.ConnectionStatus
	cash         decimal.Decimal
	positions    map[types.Symbol]*position
	orders       map[string]*types.Order
	fills        []types.Fill
	latestPrices map[types.Symbol]decimal.Decimal
	subscribed   map[types.Symbol]bool
}

// New creates a paper broker. A nil logger falls back to slog.Default.
func New(cfg Config, logger *slog.Logger) (*Broker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Broker{
		cfg:          cfg,
		logger:       logger,
		recorder:     metrics.NewRecorder(),
		status:       broker.StatusDisconnected,
		cash:         cfg.InitialCash,
		positions:    make(map[types.Symbol]*position),
		orders:       make(map[string]*types.Order),
		latestPrices: make(map[types.Symbol]decimal.Decimal),
		subscribed:   make(map[types.Symbol]bool),
	}, nil
}

// Connect marks the broker connected.
func (b *Broker) Connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status = broker.StatusConnected
	b.logger.Info("paper broker connected", "initial_cash", b.cfg.InitialCash)
	return nil
}

// Disconnect marks the broker disconnected.
func (b *Broker) Disconnect() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status = broker.StatusDisconnected
	b.logger.Info("paper broker disconnected")
	return nil
}

// ConnectionStatus returns the current connection state.
func (b *Broker) ConnectionStatus() broker.ConnectionStatus {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.status
}

func (b *Broker) connected() bool {
	return b.status == broker.StatusConnected
}

// SubmitOrder accepts an order for execution. Market orders fill
// immediately when a price is already known and the broker is
// configured to do so; every other order waits for the next market
// event.
func (b *Broker) SubmitOrder(ctx context.Context, order *types.Order) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.connected() {
		return "", types.NewBrokerNotConnected()
	}
	if err := order.Submit(); err != nil {
		return "", types.NewBrokerOrderRejected(err.Error())
	}
	b.orders[order.ID] = order
	b.recorder.RecordOrder(order.Symbol.Ticker, order.Side.String(), order.Status.String())

	b.logger.Info("order submitted",
		"order_id", order.ID,
		"symbol", order.Symbol,
		"side", order.Side,
		"type", order.Type,
		"quantity", order.Quantity,
	)

	if b.cfg.FillMarketOrdersImmediately && order.Type == types.OrderTypeMarket {
		if price, ok := b.latestPrices[order.Symbol]; ok {
			b.tryFill(order, price)
		}
	}
	return order.ID, nil
}

// CancelOrder cancels an active order.
func (b *Broker) CancelOrder(ctx context.Context, orderID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.connected() {
		return types.NewBrokerNotConnected()
	}
	order, ok := b.orders[orderID]
	if !ok {
		return types.NewBrokerOrderNotFound(orderID)
	}
	if !order.IsActive() {
		return types.NewBrokerOrderRejected("order is not active")
	}
	return order.Cancel()
}

// OrderStatus returns the current status of an order.
func (b *Broker) OrderStatus(orderID string) (types.OrderStatus, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	order, ok := b.orders[orderID]
	if !ok {
		return types.OrderStatusPending, types.NewBrokerOrderNotFound(orderID)
	}
	return order.Status, nil
}

// OpenOrders returns all active orders.
func (b *Broker) OpenOrders() ([]*types.Order, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var open []*types.Order
	for _, o := range b.orders {
		if o.IsActive() {
			open = append(open, o)
		}
	}
	return open, nil
}

// AccountBalance returns a snapshot of cash and equity. Reads with no
// intervening fill or price update return identical snapshots apart
// from the timestamp.
func (b *Broker) AccountBalance() (broker.AccountBalance, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	positionValue := decimal.Zero
	for _, p := range b.positions {
		positionValue = positionValue.Add(p.quantity.Mul(b.markPrice(p)))
	}
	return broker.AccountBalance{
		Cash:        b.cash,
		BuyingPower: b.cash,
		Equity:      b.cash.Add(positionValue),
		Timestamp:   time.Now().UTC(),
	}, nil
}

// markPrice is the latest price for a position's symbol, falling back
// to its average cost before any market data arrives. Caller holds mu.
func (b *Broker) markPrice(p *position) decimal.Decimal {
	if price, ok := b.latestPrices[p.symbol]; ok {
		return price
	}
	return p.averageCost
}

func (b *Broker) snapshot(p *position) broker.Position {
	price := b.markPrice(p)
	return broker.Position{
		Symbol:        p.symbol,
		Quantity:      p.quantity,
		MarketValue:   p.quantity.Mul(price),
		AverageCost:   p.averageCost,
		UnrealizedPnL: p.quantity.Mul(price.Sub(p.averageCost)),
	}
}

// Positions returns all non-flat positions.
func (b *Broker) Positions() ([]broker.Position, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []broker.Position
	for _, p := range b.positions {
		if !p.quantity.IsZero() {
			out = append(out, b.snapshot(p))
		}
	}
	return out, nil
}

// Position returns the position for a symbol, or nil when flat.
func (b *Broker) Position(symbol types.Symbol) (*broker.Position, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	p, ok := b.positions[symbol]
	if !ok || p.quantity.IsZero() {
		return nil, nil
	}
	snap := b.snapshot(p)
	return &snap, nil
}

// SubscribeMarketData records interest in the given symbols.
func (b *Broker) SubscribeMarketData(ctx context.Context, symbols []types.Symbol) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.connected() {
		return types.NewBrokerNotConnected()
	}
	for _, s := range symbols {
		b.subscribed[s] = true
	}
	return nil
}

// UnsubscribeMarketData drops interest in the given symbols.
func (b *Broker) UnsubscribeMarketData(symbols []types.Symbol) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, s := range symbols {
		delete(b.subscribed, s)
	}
	return nil
}

// LatestPrice returns the last observed price for a symbol.
func (b *Broker) LatestPrice(symbol types.Symbol) (decimal.Decimal, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	price, ok := b.latestPrices[symbol]
	return price, ok
}

// AllPrices returns a copy of every last observed price.
func (b *Broker) AllPrices() map[types.Symbol]decimal.Decimal {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make(map[types.Symbol]decimal.Decimal, len(b.latestPrices))
	for s, p := range b.latestPrices {
		out[s] = p
	}
	return out
}

// ProcessMarketEvent updates the latest price for the event's symbol
// and attempts to fill every active order on that symbol.
func (b *Broker) ProcessMarketEvent(event types.MarketEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.latestPrices[event.Symbol] = event.Price

	for _, order := range b.orders {
		if order.Symbol == event.Symbol && order.IsActive() {
			b.tryFill(order, event.Price)
		}
	}
}

// Fills returns a copy of every recorded fill.
func (b *Broker) Fills() []types.Fill {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]types.Fill, len(b.fills))
	copy(out, b.fills)
	return out
}

// Cash returns the current cash balance.
func (b *Broker) Cash() decimal.Decimal {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.cash
}

// tryFill attempts to fill an active order at the latest price. Caller
// holds mu. Returns true when a fill was produced.
func (b *Broker) tryFill(order *types.Order, marketPrice decimal.Decimal) bool {
	fillPrice, ok := b.resolvePrice(order, marketPrice)
	if !ok {
		return false
	}

	qty := order.RemainingQuantity
	commission := qty.Mul(b.cfg.CommissionPerShare)

	if order.Side == types.SideBuy {
		cost := qty.Mul(fillPrice).Add(commission)
		if cost.GreaterThan(b.cash) {
			if err := order.Reject(); err == nil {
				b.recorder.RecordOrder(order.Symbol.Ticker, order.Side.String(), order.Status.String())
				b.logger.Warn("order rejected, insufficient funds",
					"order_id", order.ID,
					"cost", cost,
					"cash", b.cash,
				)
			}
			return false
		}
		b.cash = b.cash.Sub(cost)
	} else {
		b.cash = b.cash.Add(qty.Mul(fillPrice).Sub(commission))
	}

	b.applyToPosition(order, qty, fillPrice)

	fill := types.NewFill(order, qty, fillPrice, commission, time.Now().UTC())
	b.fills = append(b.fills, fill)
	b.recorder.RecordFill(order.Symbol.Ticker, order.Side.String())
	if err := order.ApplyFill(qty, fillPrice); err != nil {
		b.logger.Error("fill bookkeeping failed", "order_id", order.ID, "error", err)
	}

	b.logger.Info("order filled",
		"order_id", order.ID,
		"symbol", order.Symbol,
		"side", order.Side,
		"quantity", qty,
		"price", fillPrice,
		"commission", commission,
	)
	return true
}

// resolvePrice applies the per-type fill rules against the latest
// price. There is no bar range here, so limit and stop conditions are
// checked against the last trade.
func (b *Broker) resolvePrice(order *types.Order, marketPrice decimal.Decimal) (decimal.Decimal, bool) {
	switch order.Type {
	case types.OrderTypeMarket:
		slip := marketPrice.Mul(b.cfg.SlippageBps).Div(tenThousand)
		if order.Side == types.SideBuy {
			return marketPrice.Add(slip), true
		}
		return marketPrice.Sub(slip), true

	case types.OrderTypeLimit:
		if order.Side == types.SideBuy && marketPrice.LessThanOrEqual(order.LimitPrice) {
			return order.LimitPrice, true
		}
		if order.Side == types.SideSell && marketPrice.GreaterThanOrEqual(order.LimitPrice) {
			return order.LimitPrice, true
		}
		return decimal.Zero, false

	case types.OrderTypeStop:
		if order.Side == types.SideBuy && marketPrice.GreaterThanOrEqual(order.StopPrice) {
			return marketPrice, true
		}
		if order.Side == types.SideSell && marketPrice.LessThanOrEqual(order.StopPrice) {
			return marketPrice, true
		}
		return decimal.Zero, false

	case types.OrderTypeStopLimit:
		if order.Side == types.SideBuy &&
			marketPrice.GreaterThanOrEqual(order.StopPrice) &&
			marketPrice.LessThanOrEqual(order.LimitPrice) {
			return order.LimitPrice, true
		}
		if order.Side == types.SideSell &&
			marketPrice.LessThanOrEqual(order.StopPrice) &&
			marketPrice.GreaterThanOrEqual(order.LimitPrice) {
			return order.LimitPrice, true
		}
		return decimal.Zero, false
	}
	return decimal.Zero, false
}

// applyToPosition updates the long position book. Sells reduce the
// position and clamp at flat. Caller holds mu.
func (b *Broker) applyToPosition(order *types.Order, qty, price decimal.Decimal) {
	p, ok := b.positions[order.Symbol]
	if !ok {
		p = &position{symbol: order.Symbol}
		b.positions[order.Symbol] = p
	}

	if order.Side == types.SideBuy {
		totalCost := p.quantity.Mul(p.averageCost).Add(qty.Mul(price))
		p.quantity = p.quantity.Add(qty)
		if p.quantity.GreaterThan(decimal.Zero) {
			p.averageCost = totalCost.Div(p.quantity)
		}
		return
	}

	p.quantity = p.quantity.Sub(qty)
	if p.quantity.LessThanOrEqual(decimal.Zero) {
		p.quantity = decimal.Zero
		p.averageCost = decimal.Zero
	}
}

var _ broker.Broker = (*Broker)(nil)
