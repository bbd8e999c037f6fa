package strategy

import (
	"github.com/shopspring/decimal"

	"github.com/glowback/glowback/internal/types"

	"github.com/glowback/glowback/pkg/indicator"
)

// MeanReversion trades z-score extremes: it accumulates long below
// -entry threshold, accumulates short above +entry threshold, and
// unwinds in increments as the price recrosses the exit threshold
// toward the mean. Position increments are a small fraction of equity,
// capped at a maximum fraction.
type MeanReversion struct {
	cfg         Config
	initialized bool
	lookback    int
	entryZ      decimal.Decimal
	exitZ       decimal.Decimal
	increment   decimal.Decimal
	maxSize     decimal.Decimal
	stddev      map[types.Symbol]*indicator.StdDev
	metrics     Metrics
}

// NewMeanReversion creates the strategy with the given lookback and
// entry/exit z-score thresholds.
func NewMeanReversion(lookback int, entryZ, exitZ decimal.Decimal) *MeanReversion {
	cfg := NewConfig("mean_reversion", "Mean Reversion")
	cfg.SetParam("lookback_period", lookback)
	cfg.SetParam("entry_threshold", entryZ.String())
	cfg.SetParam("exit_threshold", exitZ.String())
	cfg.SetParam("position_size", "0.25")
	cfg.SetParam("max_position_size", "0.95")

	return &MeanReversion{
		cfg:       cfg,
		lookback:  lookback,
		entryZ:    entryZ,
		exitZ:     exitZ,
		increment: decimal.RequireFromString("0.25"),
		maxSize:   defaultPositionSize,
		stddev:    make(map[types.Symbol]*indicator.StdDev),
	}
}

// Initialize implements Strategy.
func (s *MeanReversion) Initialize(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.cfg = cfg
	s.lookback = cfg.IntParam("lookback_period", 20)
	s.entryZ = cfg.DecimalParam("entry_threshold", decimal.NewFromInt(2))
	s.exitZ = cfg.DecimalParam("exit_threshold", decimal.NewFromInt(1))
	s.increment = cfg.DecimalParam("position_size", decimal.RequireFromString("0.25"))
	s.maxSize = cfg.DecimalParam("max_position_size", defaultPositionSize)
	s.stddev = make(map[types.Symbol]*indicator.StdDev)
	s.metrics = NewMetrics(cfg.ID)
	s.initialized = true
	return nil
}

func (s *MeanReversion) stddevFor(symbol types.Symbol) *indicator.StdDev {
	sd, ok := s.stddev[symbol]
	if !ok {
		sd = indicator.NewStdDev(s.lookback)
		s.stddev[symbol] = sd
	}
	return sd
}

// OnMarketEvent implements Strategy.
func (s *MeanReversion) OnMarketEvent(event types.MarketEvent, ctx *Context) ([]Action, error) {
	if !s.initialized || event.Bar == nil {
		return nil, nil
	}

	sd := s.stddevFor(event.Symbol)
	sd.Update(event.Bar.Close)
	if !sd.Ready() {
		return nil, nil
	}
	z := sd.ZScore(event.Bar.Close)

	price, ok := ctx.CurrentPrice(event.Symbol)
	if !ok || price.IsZero() {
		return nil, nil
	}

	equity := ctx.PortfolioValue()
	held := ctx.PositionQuantity(event.Symbol)
	step := equity.Mul(s.increment).Div(price)
	cap := equity.Mul(s.maxSize).Div(price)

	var actions []Action

	switch {
	case z.LessThan(s.entryZ.Neg()):
		// Far below the mean: accumulate long up to the cap.
		if held.LessThan(cap) {
			qty := decimal.Min(cap.Sub(held), step)
			if qty.GreaterThan(minTradeSize) && ctx.AvailableCash().GreaterThan(qty.Mul(price)) {
				actions = append(actions, PlaceOrder(
					types.NewMarketOrder(event.Symbol, types.SideBuy, qty, s.cfg.ID)))
			}
		}

	case z.GreaterThan(s.entryZ):
		// Far above the mean: accumulate short up to the cap.
		if held.GreaterThan(cap.Neg()) {
			qty := decimal.Min(held.Sub(cap.Neg()), step)
			if qty.GreaterThan(minTradeSize) {
				actions = append(actions, PlaceOrder(
					types.NewMarketOrder(event.Symbol, types.SideSell, qty, s.cfg.ID)))
			}
		}
	}

	// Unwind toward flat once the price recrosses the exit band.
	switch {
	case held.GreaterThan(decimal.Zero) && z.GreaterThan(s.exitZ.Neg()):
		qty := decimal.Min(held, step)
		if qty.GreaterThan(minTradeSize) {
			actions = append(actions, PlaceOrder(
				types.NewMarketOrder(event.Symbol, types.SideSell, qty, s.cfg.ID)))
		}

	case held.LessThan(decimal.Zero) && z.LessThan(s.exitZ):
		qty := decimal.Min(held.Abs(), step)
		if qty.GreaterThan(minTradeSize) {
			actions = append(actions, PlaceOrder(
				types.NewMarketOrder(event.Symbol, types.SideBuy, qty, s.cfg.ID)))
		}
	}

	return actions, nil
}

// OnOrderEvent implements Strategy.
func (s *MeanReversion) OnOrderEvent(event types.OrderEvent, ctx *Context) ([]Action, error) {
	if event.Fill != nil {
		s.metrics.TotalTrades++
		s.metrics.TotalCommissions = s.metrics.TotalCommissions.Add(event.Fill.Commission)
	}
	return nil, nil
}

// OnDayEnd implements Strategy.
func (s *MeanReversion) OnDayEnd(ctx *Context) ([]Action, error) {
	return nil, nil
}

// OnStop implements Strategy.
func (s *MeanReversion) OnStop(ctx *Context) ([]Action, error) {
	s.metrics.EndTime = ctx.CurrentTime
	return nil, nil
}

// Config implements Strategy.
func (s *MeanReversion) Config() Config {
	return s.cfg
}

// Metrics implements Strategy.
func (s *MeanReversion) Metrics() Metrics {
	return s.metrics
}
