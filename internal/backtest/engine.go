package backtest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/glowback/glowback/internal/data"
	"github.com/glowback/glowback/internal/execution"
	"github.com/glowback/glowback/internal/metrics"
	"github.com/glowback/glowback/internal/risk"
	"github.com/glowback/glowback/internal/simulator"
	"github.com/glowback/glowback/internal/strategy"
	"github.com/glowback/glowback/internal/types"
)

// Engine drives one strategy through historical data. For every
// simulated instant it first resolves pending orders against the new
// bars, then marks positions to market, and only then lets the
// strategy see the bars. Orders placed on one bar therefore cannot
// fill before the next.
type Engine struct {
	cfg      Config
	dataMgr  data.Manager
	strat    strategy.Strategy
	logger   *slog.Logger
	progress ProgressCallback

	sim       *simulator.Simulator
	exec      *execution.Engine
	portfolio *types.Portfolio
	highWater *risk.HighWaterMark
	recorder  *metrics.Recorder
	sctx      *strategy.Context

	pending  []*types.Order
	tradeLog []TradeRecord
	curve    []EquityPoint
	metadata map[string]string
}

// New creates a backtest engine. The strategy's symbols and capital
// are overridden from the backtest config at run time.
func New(cfg Config, dataMgr data.Manager, strat strategy.Strategy, logger *slog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if dataMgr == nil || strat == nil {
		return nil, fmt.Errorf("%w: nil data manager or strategy", types.ErrInvalidConfig)
	}
	if logger == nil {
		logger = slog.Default()
	}

	portfolio, err := types.NewPortfolio(cfg.Name, cfg.InitialCapital)
	if err != nil {
		return nil, err
	}

	return &Engine{
		cfg:       cfg,
		dataMgr:   dataMgr,
		strat:     strat,
		logger:    logger.With("backtest_id", cfg.ID.String()),
		sim:       simulator.New(logger),
		exec:      execution.NewEngine(cfg.Execution, logger),
		portfolio: portfolio,
		highWater: risk.NewHighWaterMark(cfg.InitialCapital),
		recorder:  metrics.NewRecorder(),
		metadata:  make(map[string]string),
	}, nil
}

// SetProgressCallback installs a per-instant progress hook. Must be
// called before Run.
func (e *Engine) SetProgressCallback(cb ProgressCallback) {
	e.progress = cb
}

// Run executes the backtest to completion and returns its result. A
// failed run returns the partial result with Status Failed and the
// error set on both the result and the return value.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	result := &Result{
		Config:    e.cfg,
		Status:    StatusRunning,
		StartedAt: time.Now().UTC(),
		Metadata:  e.metadata,
	}

	if err := e.loadData(ctx); err != nil {
		return e.fail(result, err)
	}
	if err := e.initStrategy(); err != nil {
		return e.fail(result, err)
	}

	e.logger.Info("backtest started",
		"name", e.cfg.Name,
		"symbols", len(e.cfg.Symbols),
		"instants", e.sim.EventCount())

	if err := e.loop(ctx); err != nil {
		return e.fail(result, err)
	}

	e.finish(result)
	return result, nil
}

func (e *Engine) fail(result *Result, err error) (*Result, error) {
	result.Status = StatusFailed
	result.Err = err
	result.CompletedAt = time.Now().UTC()
	result.FinalPortfolio = e.portfolio
	result.EquityCurve = e.curve
	result.TradeLog = e.tradeLog
	e.logger.Error("backtest failed", "error", err)
	return result, err
}

// loadData loads bars for every configured symbol. A symbol with no
// usable data falls back to synthetic bars and is flagged in the
// result metadata.
func (e *Engine) loadData(ctx context.Context) error {
	var sampled []string

	for _, symbol := range e.cfg.Symbols {
		bars, err := e.dataMgr.LoadBars(ctx, symbol, e.cfg.StartDate, e.cfg.EndDate, e.cfg.Resolution)
		switch {
		case err == nil:

		case errors.Is(err, types.ErrDataUnavailable) || errors.Is(err, types.ErrInsufficientData):
			e.logger.Warn("no historical data, generating sample bars",
				"symbol", symbol.String(),
				"error", err)
			gen := data.NewSampleGenerator(e.logger)
			bars, err = gen.LoadBars(ctx, symbol, e.cfg.StartDate, e.cfg.EndDate, e.cfg.Resolution)
			if err != nil {
				return fmt.Errorf("generate sample bars for %s: %w", symbol, err)
			}
			sampled = append(sampled, symbol.Ticker)

		default:
			return fmt.Errorf("load bars for %s: %w", symbol, err)
		}

		if err := e.sim.AddDataFeed(symbol, bars); err != nil {
			return err
		}
	}

	if len(sampled) > 0 {
		e.metadata["sample_data"] = strings.Join(sampled, ",")
	}
	return e.sim.Initialize()
}

func (e *Engine) initStrategy() error {
	scfg := e.strat.Config()
	scfg.Symbols = e.cfg.Symbols
	scfg.InitialCapital = e.cfg.InitialCapital
	if err := e.strat.Initialize(scfg); err != nil {
		return fmt.Errorf("initialize strategy %s: %w", scfg.ID, err)
	}

	e.sctx = strategy.NewContext(scfg.ID, e.portfolio)
	for _, symbol := range e.cfg.Symbols {
		e.sctx.MarketData[symbol] = strategy.NewMarketDataBuffer(symbol, strategy.DefaultBufferSize)
	}
	return nil
}

func (e *Engine) loop(ctx context.Context) error {
	var lastDay time.Time

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		events := e.sim.NextEvents()
		if len(events) == 0 {
			break
		}
		now := e.sim.CurrentTime()
		e.sctx.CurrentTime = now

		day := now.UTC().Truncate(24 * time.Hour)
		if !lastDay.IsZero() && day.After(lastDay) {
			e.endOfDay(lastDay)
		}
		lastDay = day

		bars := make(map[types.Symbol]types.Bar, len(events))
		prices := make(map[types.Symbol]decimal.Decimal, len(events))
		for _, event := range events {
			if event.Bar != nil {
				bars[event.Symbol] = *event.Bar
			}
			prices[event.Symbol] = event.Price
		}

		e.executePending(bars, now)
		e.portfolio.UpdateMarketPrices(prices)
		e.sctx.PendingOrders = e.pending

		for _, event := range events {
			if buf, ok := e.sctx.MarketData[event.Symbol]; ok {
				buf.Add(event)
			}
			actions, err := e.strat.OnMarketEvent(event, e.sctx)
			if err != nil {
				e.logger.Warn("strategy market callback failed",
					"symbol", event.Symbol.String(),
					"error", err)
				continue
			}
			e.handleActions(actions)
		}

		if e.progress != nil {
			e.progress(ProgressUpdate{
				Timestamp: now,
				Progress:  e.sim.Progress(),
				Equity:    e.portfolio.TotalEquity,
				Trades:    len(e.tradeLog),
			})
		}
	}

	if !lastDay.IsZero() {
		e.endOfDay(lastDay)
	}
	return nil
}

// executePending tries every active order against this instant's bar
// for its symbol. Orders with no bar at this instant stay pending.
// Fill callbacks may place new orders; those collect in e.pending and
// first see the market on the next instant.
func (e *Engine) executePending(bars map[types.Symbol]types.Bar, now time.Time) {
	book := e.pending
	e.pending = nil

	var remaining []*types.Order
	for _, order := range book {
		if !order.IsActive() {
			continue
		}
		bar, ok := bars[order.Symbol]
		if !ok {
			remaining = append(remaining, order)
			continue
		}

		fill := e.exec.TryFill(order, bar, now)
		if fill == nil {
			remaining = append(remaining, order)
			continue
		}
		e.applyFill(order, *fill)
		if order.IsActive() {
			remaining = append(remaining, order)
		}
	}
	e.pending = append(remaining, e.pending...)
}

// applyFill routes one execution through the order, the portfolio, the
// trade log, and finally the strategy.
func (e *Engine) applyFill(order *types.Order, fill types.Fill) {
	if err := order.ApplyFill(fill.Quantity, fill.Price); err != nil {
		e.logger.Error("fill rejected by order state machine",
			"order_id", order.ID,
			"error", err)
		return
	}

	realizedBefore := e.portfolio.RealizedPnL
	if err := e.portfolio.ApplyFill(fill); err != nil {
		e.logger.Error("fill rejected by portfolio",
			"order_id", order.ID,
			"error", err)
		return
	}

	e.recorder.RecordFill(fill.Symbol.Ticker, fill.Side.String())
	e.tradeLog = append(e.tradeLog, TradeRecord{
		OrderID:     order.ID,
		Symbol:      fill.Symbol,
		Side:        fill.Side,
		Quantity:    fill.Quantity,
		Price:       fill.Price,
		Commission:  fill.Commission,
		RealizedPnL: e.portfolio.RealizedPnL.Sub(realizedBefore),
		Timestamp:   fill.Timestamp,
	})

	f := fill
	actions, err := e.strat.OnOrderEvent(types.OrderEvent{
		OrderID:   order.ID,
		Symbol:    order.Symbol,
		Status:    order.Status,
		Fill:      &f,
		Timestamp: fill.Timestamp,
	}, e.sctx)
	if err != nil {
		e.logger.Warn("strategy order callback failed",
			"order_id", order.ID,
			"error", err)
		return
	}
	e.handleActions(actions)
}

// handleActions routes strategy actions. Placed orders join the
// pending book; cancellations notify the strategy; logs forward to
// the host logger.
func (e *Engine) handleActions(actions []strategy.Action) {
	for _, action := range actions {
		switch action.Type {
		case strategy.ActionPlaceOrder:
			e.placeOrder(action.Order)
		case strategy.ActionCancelOrder:
			e.cancelOrder(action.OrderID)
		case strategy.ActionLog:
			e.forwardLog(action)
		case strategy.ActionSetParameter:
			// Strategy-internal, nothing to route.
		}
	}
}

func (e *Engine) placeOrder(order *types.Order) {
	if order == nil {
		return
	}
	if err := order.Submit(); err != nil {
		e.logger.Warn("order submission refused",
			"order_id", order.ID,
			"error", err)
		return
	}
	e.pending = append(e.pending, order)
	e.recorder.RecordOrder(order.Symbol.Ticker, order.Side.String(), order.Status.String())
	e.logger.Debug("order placed",
		"order_id", order.ID,
		"symbol", order.Symbol.String(),
		"side", order.Side.String(),
		"type", order.Type.String(),
		"quantity", order.Quantity.String())
}

func (e *Engine) cancelOrder(orderID string) {
	for i, order := range e.pending {
		if order.ID != orderID {
			continue
		}
		if err := order.Cancel(); err != nil {
			e.logger.Warn("cancel refused", "order_id", orderID, "error", err)
			return
		}
		e.pending = append(e.pending[:i], e.pending[i+1:]...)

		actions, err := e.strat.OnOrderEvent(types.OrderEvent{
			OrderID:   order.ID,
			Symbol:    order.Symbol,
			Status:    order.Status,
			Timestamp: e.sctx.CurrentTime,
		}, e.sctx)
		if err != nil {
			e.logger.Warn("strategy order callback failed",
				"order_id", order.ID,
				"error", err)
			return
		}
		e.handleActions(actions)
		return
	}
	e.logger.Warn("cancel for unknown order", "order_id", orderID)
}

func (e *Engine) forwardLog(action strategy.Action) {
	switch action.Level {
	case strategy.LogDebug:
		e.logger.Debug(action.Message, "strategy", e.sctx.StrategyID)
	case strategy.LogWarn:
		e.logger.Warn(action.Message, "strategy", e.sctx.StrategyID)
	case strategy.LogError:
		e.logger.Error(action.Message, "strategy", e.sctx.StrategyID)
	default:
		e.logger.Info(action.Message, "strategy", e.sctx.StrategyID)
	}
}

// endOfDay closes out one trading day: the strategy's day-end hook
// runs, a daily return is recorded, and an equity point is appended
// with drawdown measured against the running peak.
func (e *Engine) endOfDay(day time.Time) {
	actions, err := e.strat.OnDayEnd(e.sctx)
	if err != nil {
		e.logger.Warn("strategy day-end callback failed", "error", err)
	} else {
		e.handleActions(actions)
	}

	dr := e.portfolio.RecordDailyReturn(day)
	e.highWater.Update(e.portfolio.TotalEquity)

	e.curve = append(e.curve, EquityPoint{
		Timestamp:      day,
		PortfolioValue: e.portfolio.TotalEquity,
		Cash:           e.portfolio.Cash,
		TotalPnL:       e.portfolio.TotalEquity.Sub(e.cfg.InitialCapital),
		DailyReturn:    dr.Return,
		Drawdown:       e.highWater.Drawdown(),
	})
}

func (e *Engine) finish(result *Result) {
	if actions, err := e.strat.OnStop(e.sctx); err != nil {
		e.logger.Warn("strategy stop callback failed", "error", err)
	} else {
		e.handleActions(actions)
	}

	result.Status = StatusCompleted
	result.CompletedAt = time.Now().UTC()
	result.FinalPortfolio = e.portfolio
	result.EquityCurve = e.curve
	result.TradeLog = e.tradeLog
	result.StrategyMetrics = e.strat.Metrics()
	result.Performance = ComputeMetrics(e.curve, e.tradeLog, e.cfg.RiskFreeRate)

	e.logger.Info("backtest completed",
		"final_equity", e.portfolio.TotalEquity.String(),
		"total_return", result.Performance.TotalReturn.String(),
		"trades", len(e.tradeLog),
		"duration", result.CompletedAt.Sub(result.StartedAt))
}
