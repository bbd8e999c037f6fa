package strategy

import (
	"github.com/shopspring/decimal"

	"github.com/glowback/glowback/internal/types"
)

var defaultPositionSize = decimal.RequireFromString("0.95")

// minTradeSize filters out dust orders from fractional sizing.
var minTradeSize = decimal.RequireFromString("0.0001")

// BuyAndHold enters its first configured symbol with 95% of cash on
// the first market event and never trades again. Useful as a baseline
// and for engine round-trip tests.
type BuyAndHold struct {
	cfg            Config
	initialized    bool
	positionOpened bool
	metrics        Metrics
}

// NewBuyAndHold creates the strategy with default configuration.
func NewBuyAndHold() *BuyAndHold {
	return &BuyAndHold{
		cfg: NewConfig("buy_and_hold", "Buy and Hold"),
	}
}

// Initialize implements Strategy.
func (s *BuyAndHold) Initialize(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.cfg = cfg
	s.metrics = NewMetrics(cfg.ID)
	s.initialized = true
	s.positionOpened = false
	return nil
}

// OnMarketEvent implements Strategy.
func (s *BuyAndHold) OnMarketEvent(event types.MarketEvent, ctx *Context) ([]Action, error) {
	if !s.initialized || s.positionOpened || len(s.cfg.Symbols) == 0 {
		return nil, nil
	}

	target := s.cfg.Symbols[0]
	if event.Symbol != target {
		return nil, nil
	}

	price, ok := ctx.CurrentPrice(target)
	if !ok || price.IsZero() {
		return nil, nil
	}

	size := s.cfg.DecimalParam("position_size", defaultPositionSize)
	qty := ctx.AvailableCash().Mul(size).Div(price)
	if qty.LessThanOrEqual(minTradeSize) {
		return nil, nil
	}

	s.positionOpened = true
	order := types.NewMarketOrder(target, types.SideBuy, qty, s.cfg.ID)
	return []Action{PlaceOrder(order)}, nil
}

// OnOrderEvent implements Strategy.
func (s *BuyAndHold) OnOrderEvent(event types.OrderEvent, ctx *Context) ([]Action, error) {
	if event.Fill != nil {
		s.metrics.TotalTrades++
		s.metrics.TotalCommissions = s.metrics.TotalCommissions.Add(event.Fill.Commission)
	}
	return nil, nil
}

// OnDayEnd implements Strategy.
func (s *BuyAndHold) OnDayEnd(ctx *Context) ([]Action, error) {
	return nil, nil
}

// OnStop implements Strategy.
func (s *BuyAndHold) OnStop(ctx *Context) ([]Action, error) {
	s.metrics.EndTime = ctx.CurrentTime
	return nil, nil
}

// Config implements Strategy.
func (s *BuyAndHold) Config() Config {
	return s.cfg
}

// Metrics implements Strategy.
func (s *BuyAndHold) Metrics() Metrics {
	return s.metrics
}
