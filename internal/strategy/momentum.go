package strategy

import (
	"github.com/shopspring/decimal"

	"github.com/glowback/glowback/internal/types"

	"github.com/glowback/glowback/pkg/indicator"
)

// Momentum targets a full long position when the lookback percent
// change exceeds a threshold and flattens on strong negative momentum.
// Each symbol rebalances on its own cadence of rebalance-frequency
// days.
type Momentum struct {
	cfg            Config
	initialized    bool
	lookback       int
	threshold      decimal.Decimal
	positionSize   decimal.Decimal
	rebalanceEvery int
	daysSince      map[types.Symbol]int
	roc            map[types.Symbol]*indicator.ROC
	metrics        Metrics
}

// NewMomentum creates the strategy with the given lookback and percent
// threshold.
func NewMomentum(lookback int, threshold decimal.Decimal) *Momentum {
	cfg := NewConfig("momentum", "Momentum")
	cfg.SetParam("lookback_period", lookback)
	cfg.SetParam("momentum_threshold", threshold.String())
	cfg.SetParam("position_size", "0.95")
	cfg.SetParam("rebalance_frequency", 5)

	return &Momentum{
		cfg:            cfg,
		lookback:       lookback,
		threshold:      threshold,
		positionSize:   defaultPositionSize,
		rebalanceEvery: 5,
		daysSince:      make(map[types.Symbol]int),
		roc:            make(map[types.Symbol]*indicator.ROC),
	}
}

// Initialize implements Strategy.
func (s *Momentum) Initialize(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.cfg = cfg
	s.lookback = cfg.IntParam("lookback_period", 10)
	s.threshold = cfg.DecimalParam("momentum_threshold", decimal.RequireFromString("5"))
	s.positionSize = cfg.DecimalParam("position_size", defaultPositionSize)
	s.rebalanceEvery = cfg.IntParam("rebalance_frequency", 5)
	s.daysSince = make(map[types.Symbol]int)
	s.roc = make(map[types.Symbol]*indicator.ROC)
	s.metrics = NewMetrics(cfg.ID)
	s.initialized = true
	return nil
}

func (s *Momentum) rocFor(symbol types.Symbol) *indicator.ROC {
	r, ok := s.roc[symbol]
	if !ok {
		r = indicator.NewROC(s.lookback)
		s.roc[symbol] = r
	}
	return r
}

// canRebalance allows a symbol's first ready signal immediately; after
// that the symbol waits out its own rebalance window.
func (s *Momentum) canRebalance(symbol types.Symbol) bool {
	days, ok := s.daysSince[symbol]
	if !ok {
		return true
	}
	return days >= s.rebalanceEvery
}

// OnMarketEvent implements Strategy.
func (s *Momentum) OnMarketEvent(event types.MarketEvent, ctx *Context) ([]Action, error) {
	if !s.initialized || event.Bar == nil {
		return nil, nil
	}

	roc := s.rocFor(event.Symbol)
	momentum := roc.Update(event.Bar.Close)
	if !roc.Ready() || !s.canRebalance(event.Symbol) {
		return nil, nil
	}

	price, ok := ctx.CurrentPrice(event.Symbol)
	if !ok || price.IsZero() {
		return nil, nil
	}

	var actions []Action
	held := ctx.PositionQuantity(event.Symbol)

	switch {
	case momentum.GreaterThan(s.threshold):
		target := ctx.PortfolioValue().Mul(s.positionSize).Div(price)
		diff := target.Sub(held)
		if diff.Abs().GreaterThan(minTradeSize) {
			side := types.SideBuy
			if diff.IsNegative() {
				side = types.SideSell
			}
			actions = append(actions, PlaceOrder(
				types.NewMarketOrder(event.Symbol, side, diff.Abs(), s.cfg.ID)))
		}

	case momentum.LessThan(s.threshold.Neg()):
		if held.GreaterThan(decimal.Zero) {
			actions = append(actions, PlaceOrder(
				types.NewMarketOrder(event.Symbol, types.SideSell, held, s.cfg.ID)))
		}
	}

	s.daysSince[event.Symbol] = 0
	return actions, nil
}

// OnOrderEvent implements Strategy.
func (s *Momentum) OnOrderEvent(event types.OrderEvent, ctx *Context) ([]Action, error) {
	if event.Fill != nil {
		s.metrics.TotalTrades++
		s.metrics.TotalCommissions = s.metrics.TotalCommissions.Add(event.Fill.Commission)
	}
	return nil, nil
}

// OnDayEnd implements Strategy.
func (s *Momentum) OnDayEnd(ctx *Context) ([]Action, error) {
	for symbol := range s.daysSince {
		s.daysSince[symbol]++
	}
	return nil, nil
}

// OnStop implements Strategy.
func (s *Momentum) OnStop(ctx *Context) ([]Action, error) {
	s.metrics.EndTime = ctx.CurrentTime
	return nil, nil
}

// Config implements Strategy.
func (s *Momentum) Config() Config {
	return s.cfg
}

// Metrics implements Strategy.
func (s *Momentum) Metrics() Metrics {
	return s.metrics
}
