package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/glowback/glowback/internal/types"

	"github.com/glowback/glowback/pkg/indicator"
)

type crossSignal int

const (
	signalNone crossSignal = iota
	signalLong
	signalShort
)

type crossState struct {
	short      *indicator.SMA
	long       *indicator.SMA
	lastSignal crossSignal
}

// MACrossover goes long when the short moving average crosses above
// the long one and reverses to short on the opposite cross, closing
// any opposing position first.
type MACrossover struct {
	cfg          Config
	initialized  bool
	shortPeriod  int
	longPeriod   int
	positionSize decimal.Decimal
	state        map[types.Symbol]*crossState
	metrics      Metrics
}

// NewMACrossover creates the strategy with the given SMA periods.
func NewMACrossover(shortPeriod, longPeriod int) *MACrossover {
	cfg := NewConfig("ma_crossover", "Moving Average Crossover")
	cfg.SetParam("short_period", shortPeriod)
	cfg.SetParam("long_period", longPeriod)
	cfg.SetParam("position_size", "0.95")

	return &MACrossover{
		cfg:          cfg,
		shortPeriod:  shortPeriod,
		longPeriod:   longPeriod,
		positionSize: defaultPositionSize,
		state:        make(map[types.Symbol]*crossState),
	}
}

// Initialize implements Strategy.
func (s *MACrossover) Initialize(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.cfg = cfg
	s.shortPeriod = cfg.IntParam("short_period", 10)
	s.longPeriod = cfg.IntParam("long_period", 20)
	s.positionSize = cfg.DecimalParam("position_size", defaultPositionSize)
	if s.shortPeriod >= s.longPeriod {
		return fmt.Errorf("%w: short period %d must be below long period %d",
			types.ErrInvalidConfig, s.shortPeriod, s.longPeriod)
	}
	s.state = make(map[types.Symbol]*crossState)
	s.metrics = NewMetrics(cfg.ID)
	s.initialized = true
	return nil
}

func (s *MACrossover) stateFor(symbol types.Symbol) *crossState {
	st, ok := s.state[symbol]
	if !ok {
		st = &crossState{
			short: indicator.NewSMA(s.shortPeriod),
			long:  indicator.NewSMA(s.longPeriod),
		}
		s.state[symbol] = st
	}
	return st
}

// OnMarketEvent implements Strategy.
func (s *MACrossover) OnMarketEvent(event types.MarketEvent, ctx *Context) ([]Action, error) {
	if !s.initialized || event.Bar == nil {
		return nil, nil
	}

	st := s.stateFor(event.Symbol)
	shortMA := st.short.Update(event.Bar.Close)
	longMA := st.long.Update(event.Bar.Close)
	if !st.short.Ready() || !st.long.Ready() {
		return nil, nil
	}

	signal := signalNone
	switch {
	case shortMA.GreaterThan(longMA):
		signal = signalLong
	case shortMA.LessThan(longMA):
		signal = signalShort
	}
	if signal == st.lastSignal || signal == signalNone {
		return nil, nil
	}
	st.lastSignal = signal

	var actions []Action
	held := ctx.PositionQuantity(event.Symbol)
	price, ok := ctx.CurrentPrice(event.Symbol)
	if !ok || price.IsZero() {
		return nil, nil
	}

	if signal == signalLong {
		if held.LessThan(decimal.Zero) {
			actions = append(actions, PlaceOrder(
				types.NewMarketOrder(event.Symbol, types.SideBuy, held.Abs(), s.cfg.ID)))
		}
		qty := ctx.AvailableCash().Mul(s.positionSize).Div(price)
		if qty.GreaterThan(minTradeSize) {
			actions = append(actions, PlaceOrder(
				types.NewMarketOrder(event.Symbol, types.SideBuy, qty, s.cfg.ID)))
		}
	} else {
		if held.GreaterThan(decimal.Zero) {
			actions = append(actions, PlaceOrder(
				types.NewMarketOrder(event.Symbol, types.SideSell, held, s.cfg.ID)))
		}
		qty := ctx.PortfolioValue().Mul(s.positionSize).Div(price)
		if qty.GreaterThan(minTradeSize) {
			actions = append(actions, PlaceOrder(
				types.NewMarketOrder(event.Symbol, types.SideSell, qty, s.cfg.ID)))
		}
	}

	return actions, nil
}

// OnOrderEvent implements Strategy.
func (s *MACrossover) OnOrderEvent(event types.OrderEvent, ctx *Context) ([]Action, error) {
	if event.Fill != nil {
		s.metrics.TotalTrades++
		s.metrics.TotalCommissions = s.metrics.TotalCommissions.Add(event.Fill.Commission)
	}
	return nil, nil
}

// OnDayEnd implements Strategy.
func (s *MACrossover) OnDayEnd(ctx *Context) ([]Action, error) {
	return nil, nil
}

// OnStop implements Strategy.
func (s *MACrossover) OnStop(ctx *Context) ([]Action, error) {
	s.metrics.EndTime = ctx.CurrentTime
	return nil, nil
}

// Config implements Strategy.
func (s *MACrossover) Config() Config {
	return s.cfg
}

// Metrics implements Strategy.
func (s *MACrossover) Metrics() Metrics {
	return s.metrics
}
