package strategy

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/glowback/glowback/internal/types"
)

// DefaultBufferSize bounds the per-symbol look-back window an engine
// exposes to strategies.
const DefaultBufferSize = 100

// MarketDataBuffer is a bounded rolling window of market events for
// one symbol.
type MarketDataBuffer struct {
	Symbol  types.Symbol
	events  []types.MarketEvent
	maxSize int
}

// NewMarketDataBuffer creates a buffer holding at most maxSize events.
func NewMarketDataBuffer(symbol types.Symbol, maxSize int) *MarketDataBuffer {
	if maxSize < 1 {
		maxSize = DefaultBufferSize
	}
	return &MarketDataBuffer{
		Symbol:  symbol,
		events:  make([]types.MarketEvent, 0, maxSize),
		maxSize: maxSize,
	}
}

// Add appends an event, evicting the oldest at capacity.
func (b *MarketDataBuffer) Add(event types.MarketEvent) {
	b.events = append(b.events, event)
	if len(b.events) > b.maxSize {
		b.events = b.events[1:]
	}
}

// Len returns the number of buffered events.
func (b *MarketDataBuffer) Len() int {
	return len(b.events)
}

// CurrentPrice returns the most recent price.
func (b *MarketDataBuffer) CurrentPrice() (decimal.Decimal, bool) {
	if len(b.events) == 0 {
		return decimal.Zero, false
	}
	return b.events[len(b.events)-1].Price, true
}

// LatestBar returns the most recent bar event, if any.
func (b *MarketDataBuffer) LatestBar() (types.Bar, bool) {
	for i := len(b.events) - 1; i >= 0; i-- {
		if b.events[i].Bar != nil {
			return *b.events[i].Bar, true
		}
	}
	return types.Bar{}, false
}

// Closes returns up to count most recent closing prices in
// chronological order.
func (b *MarketDataBuffer) Closes(count int) []decimal.Decimal {
	out := make([]decimal.Decimal, 0, count)
	start := len(b.events) - count
	if start < 0 {
		start = 0
	}
	for _, ev := range b.events[start:] {
		if ev.Bar != nil {
			out = append(out, ev.Bar.Close)
		}
	}
	return out
}

// Context is the read-only view an engine hands to strategy callbacks.
type Context struct {
	CurrentTime   time.Time
	Portfolio     *types.Portfolio
	MarketData    map[types.Symbol]*MarketDataBuffer
	PendingOrders []*types.Order
	StrategyID    string
}

// NewContext creates a context around a portfolio.
func NewContext(strategyID string, portfolio *types.Portfolio) *Context {
	return &Context{
		CurrentTime: time.Now().UTC(),
		Portfolio:   portfolio,
		MarketData:  make(map[types.Symbol]*MarketDataBuffer),
		StrategyID:  strategyID,
	}
}

// Position returns the open position for a symbol, if any.
func (c *Context) Position(symbol types.Symbol) (*types.Position, bool) {
	if c.Portfolio == nil {
		return nil, false
	}
	return c.Portfolio.Position(symbol)
}

// PositionQuantity returns the signed quantity held, zero when flat.
func (c *Context) PositionQuantity(symbol types.Symbol) decimal.Decimal {
	if c.Portfolio == nil {
		return decimal.Zero
	}
	return c.Portfolio.PositionQuantity(symbol)
}

// CurrentPrice returns the latest known price for a symbol.
func (c *Context) CurrentPrice(symbol types.Symbol) (decimal.Decimal, bool) {
	buf, ok := c.MarketData[symbol]
	if !ok {
		return decimal.Zero, false
	}
	return buf.CurrentPrice()
}

// Buffer returns the market-data buffer for a symbol.
func (c *Context) Buffer(symbol types.Symbol) (*MarketDataBuffer, bool) {
	buf, ok := c.MarketData[symbol]
	return buf, ok
}

// AvailableCash returns the portfolio's free cash.
func (c *Context) AvailableCash() decimal.Decimal {
	if c.Portfolio == nil {
		return decimal.Zero
	}
	return c.Portfolio.AvailableCash()
}

// PortfolioValue returns total equity.
func (c *Context) PortfolioValue() decimal.Decimal {
	if c.Portfolio == nil {
		return decimal.Zero
	}
	return c.Portfolio.TotalEquity
}
