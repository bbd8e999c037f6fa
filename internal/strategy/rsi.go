package strategy

import (
	"github.com/shopspring/decimal"

	"github.com/glowback/glowback/internal/types"

	"github.com/glowback/glowback/pkg/indicator"
)

// RSIStrategy buys toward a full position when RSI drops below the
// oversold threshold and fully exits when it rises above the
// overbought threshold.
type RSIStrategy struct {
	cfg          Config
	initialized  bool
	lookback     int
	oversold     decimal.Decimal
	overbought   decimal.Decimal
	positionSize decimal.Decimal
	rsi          map[types.Symbol]*indicator.RSI
	metrics      Metrics
}

// NewRSIStrategy creates the strategy with the given lookback and
// thresholds.
func NewRSIStrategy(lookback int, oversold, overbought decimal.Decimal) *RSIStrategy {
	cfg := NewConfig("rsi", "RSI")
	cfg.SetParam("lookback_period", lookback)
	cfg.SetParam("oversold_threshold", oversold.String())
	cfg.SetParam("overbought_threshold", overbought.String())
	cfg.SetParam("position_size", "0.95")

	return &RSIStrategy{
		cfg:          cfg,
		lookback:     lookback,
		oversold:     oversold,
		overbought:   overbought,
		positionSize: defaultPositionSize,
		rsi:          make(map[types.Symbol]*indicator.RSI),
	}
}

// Initialize implements Strategy.
func (s *RSIStrategy) Initialize(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.cfg = cfg
	s.lookback = cfg.IntParam("lookback_period", 14)
	s.oversold = cfg.DecimalParam("oversold_threshold", decimal.NewFromInt(30))
	s.overbought = cfg.DecimalParam("overbought_threshold", decimal.NewFromInt(70))
	s.positionSize = cfg.DecimalParam("position_size", defaultPositionSize)
	s.rsi = make(map[types.Symbol]*indicator.RSI)
	s.metrics = NewMetrics(cfg.ID)
	s.initialized = true
	return nil
}

func (s *RSIStrategy) rsiFor(symbol types.Symbol) *indicator.RSI {
	r, ok := s.rsi[symbol]
	if !ok {
		r = indicator.NewRSI(s.lookback)
		s.rsi[symbol] = r
	}
	return r
}

// OnMarketEvent implements Strategy.
func (s *RSIStrategy) OnMarketEvent(event types.MarketEvent, ctx *Context) ([]Action, error) {
	if !s.initialized || event.Bar == nil {
		return nil, nil
	}

	rsi := s.rsiFor(event.Symbol)
	value := rsi.Update(event.Bar.Close)
	if !rsi.Ready() {
		return nil, nil
	}

	price, ok := ctx.CurrentPrice(event.Symbol)
	if !ok || price.IsZero() {
		return nil, nil
	}
	held := ctx.PositionQuantity(event.Symbol)

	var actions []Action
	switch {
	case value.LessThan(s.oversold):
		target := ctx.PortfolioValue().Mul(s.positionSize).Div(price)
		diff := target.Sub(held)
		if diff.GreaterThan(minTradeSize) {
			actions = append(actions, PlaceOrder(
				types.NewMarketOrder(event.Symbol, types.SideBuy, diff, s.cfg.ID)))
		}

	case value.GreaterThan(s.overbought):
		if held.GreaterThan(decimal.Zero) {
			actions = append(actions, PlaceOrder(
				types.NewMarketOrder(event.Symbol, types.SideSell, held, s.cfg.ID)))
		}
	}

	return actions, nil
}

// OnOrderEvent implements Strategy.
func (s *RSIStrategy) OnOrderEvent(event types.OrderEvent, ctx *Context) ([]Action, error) {
	if event.Fill != nil {
		s.metrics.TotalTrades++
		s.metrics.TotalCommissions = s.metrics.TotalCommissions.Add(event.Fill.Commission)
	}
	return nil, nil
}

// OnDayEnd implements Strategy.
func (s *RSIStrategy) OnDayEnd(ctx *Context) ([]Action, error) {
	return nil, nil
}

// OnStop implements Strategy.
func (s *RSIStrategy) OnStop(ctx *Context) ([]Action, error) {
	s.metrics.EndTime = ctx.CurrentTime
	return nil, nil
}

// Config implements Strategy.
func (s *RSIStrategy) Config() Config {
	return s.cfg
}

// Metrics implements Strategy.
func (s *RSIStrategy) Metrics() Metrics {
	return s.metrics
}
