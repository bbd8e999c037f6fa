// Package live orchestrates event-driven trading against a broker,
// gating every order through pre-trade risk checks.
package live

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/glowback/glowback/internal/alerting"
	"github.com/glowback/glowback/internal/broker"
	"github.com/glowback/glowback/internal/metrics"
	"github.com/glowback/glowback/internal/risk"
	"github.com/glowback/glowback/internal/strategy"
	"github.com/glowback/glowback/internal/types"
)

// Config fixes the engine's trading universe and capital.
type Config struct {
	Symbols        []types.Symbol
	InitialCapital decimal.Decimal
	BufferSize     int
}

// DefaultConfig returns a config trading nothing with 100k capital.
func DefaultConfig() Config {
	return Config{
		InitialCapital: decimal.NewFromInt(100000),
		BufferSize:     strategy.DefaultBufferSize,
	}
}

// Validate checks the config for usability.
func (c Config) Validate() error {
	if len(c.Symbols) == 0 {
		return fmt.Errorf("%w: no symbols", types.ErrEmptySymbols)
	}
	if c.InitialCapital.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: initial capital %s", types.ErrInvalidConfig, c.InitialCapital)
	}
	return nil
}

// Engine routes market events through a strategy, its actions through
// the risk gate to the broker, and broker fills back into the
// portfolio. Event methods are serialized on one mutex, so callbacks
// never interleave. The engine exclusively owns its portfolio and
// risk manager; sharing either across engines is not supported.
type Engine struct {
	cfg      Config
	broker   broker.Broker
	strat    strategy.Strategy
	riskMgr  *risk.Manager
	alerter  alerting.Alerter
	recorder *metrics.Recorder
	logger   *slog.Logger

	mu        sync.Mutex
	running   bool
	portfolio *types.Portfolio
	highWater *risk.HighWaterMark
	sctx      *strategy.Context
	pending   map[string]*types.Order
	events    []Event
}

// New creates a live engine. alerter may be nil.
func New(cfg Config, brk broker.Broker, strat strategy.Strategy, riskMgr *risk.Manager, alerter alerting.Alerter, logger *slog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if brk == nil || strat == nil || riskMgr == nil {
		return nil, fmt.Errorf("%w: nil broker, strategy, or risk manager", types.ErrInvalidConfig)
	}
	if logger == nil {
		logger = slog.Default()
	}

	portfolio, err := types.NewPortfolio("live", cfg.InitialCapital)
	if err != nil {
		return nil, err
	}

	return &Engine{
		cfg:       cfg,
		broker:    brk,
		strat:     strat,
		riskMgr:   riskMgr,
		alerter:   alerter,
		recorder:  metrics.NewRecorder(),
		logger:    logger,
		portfolio: portfolio,
		highWater: risk.NewHighWaterMark(cfg.InitialCapital),
		pending:   make(map[string]*types.Order),
	}, nil
}

// Start connects the broker, initializes the strategy, subscribes to
// the configured symbols, and emits a Started event.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return types.ErrEngineRunning
	}

	if err := e.broker.Connect(ctx); err != nil {
		return fmt.Errorf("connect broker: %w", err)
	}
	e.recorder.RecordBrokerStatus(true)

	scfg := e.strat.Config()
	scfg.Symbols = e.cfg.Symbols
	scfg.InitialCapital = e.cfg.InitialCapital
	if err := e.strat.Initialize(scfg); err != nil {
		return fmt.Errorf("initialize strategy %s: %w", scfg.ID, err)
	}

	e.sctx = strategy.NewContext(scfg.ID, e.portfolio)
	for _, symbol := range e.cfg.Symbols {
		e.sctx.MarketData[symbol] = strategy.NewMarketDataBuffer(symbol, e.cfg.BufferSize)
	}

	if err := e.broker.SubscribeMarketData(ctx, e.cfg.Symbols); err != nil {
		return fmt.Errorf("subscribe market data: %w", err)
	}

	e.running = true
	e.emit(Event{Type: EventStarted, Timestamp: time.Now().UTC()})
	e.alert(ctx, alerting.SeverityInfo, "Trading engine started",
		"strategy", scfg.ID,
		"symbols", len(e.cfg.Symbols))

	e.logger.Info("live engine started",
		"strategy", scfg.ID,
		"symbols", len(e.cfg.Symbols),
		"capital", e.cfg.InitialCapital.String())
	return nil
}

// Stop runs the strategy's stop callback and disconnects the broker.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running {
		return types.ErrEngineStopped
	}

	if actions, err := e.strat.OnStop(e.sctx); err != nil {
		e.logger.Warn("strategy stop callback failed", "error", err)
	} else {
		e.handleActions(ctx, actions)
	}

	if err := e.broker.Disconnect(); err != nil {
		e.logger.Warn("broker disconnect failed", "error", err)
	}
	e.recorder.RecordBrokerStatus(false)

	e.running = false
	e.emit(Event{Type: EventStopped, Timestamp: time.Now().UTC()})
	e.alert(ctx, alerting.SeverityInfo, "Trading engine stopped")

	e.logger.Info("live engine stopped")
	return nil
}

// OnMarketEvent feeds one market update through the strategy and
// routes the resulting actions.
func (e *Engine) OnMarketEvent(ctx context.Context, event types.MarketEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running {
		return fmt.Errorf("%w: market event dropped", types.ErrEngineStopped)
	}
	e.recorder.RecordHeartbeat()

	if buf, ok := e.sctx.MarketData[event.Symbol]; ok {
		buf.Add(event)
	}
	e.sctx.CurrentTime = event.Timestamp
	e.portfolio.UpdateMarketPrice(event.Symbol, event.Price)

	actions, err := e.strat.OnMarketEvent(event, e.sctx)
	if err != nil {
		e.logger.Warn("strategy market callback failed",
			"symbol", event.Symbol.String(),
			"error", err)
		return nil
	}
	e.handleActions(ctx, actions)

	e.recordPortfolio()
	return nil
}

// OnFill applies one broker execution to the portfolio and risk
// tracking and notifies the strategy.
func (e *Engine) OnFill(ctx context.Context, fill types.Fill) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running {
		return fmt.Errorf("%w: fill dropped", types.ErrEngineStopped)
	}

	if err := e.portfolio.ApplyFill(fill); err != nil {
		e.recorder.RecordError("apply_fill")
		return fmt.Errorf("apply fill %s: %w", fill.ID, err)
	}
	e.riskMgr.RecordFill(fill.Symbol, fill.Side, fill.Quantity)
	e.recorder.RecordFill(fill.Symbol.String(), fill.Side.String())

	status := types.OrderStatusPartiallyFilled
	if order, ok := e.pending[fill.OrderID]; ok {
		status = order.Status
		if !order.IsActive() {
			delete(e.pending, fill.OrderID)
		}
	}

	e.emit(Event{
		Type:      EventOrderFilled,
		Timestamp: fill.Timestamp,
		OrderID:   fill.OrderID,
		Symbol:    fill.Symbol,
	})

	f := fill
	actions, err := e.strat.OnOrderEvent(types.OrderEvent{
		OrderID:   fill.OrderID,
		Symbol:    fill.Symbol,
		Status:    status,
		Fill:      &f,
		Timestamp: fill.Timestamp,
	}, e.sctx)
	if err != nil {
		e.logger.Warn("strategy order callback failed",
			"order_id", fill.OrderID,
			"error", err)
		return nil
	}
	e.handleActions(ctx, actions)

	e.recordPortfolio()
	return nil
}

// OnDayEnd runs the strategy's day-end hook, resets the daily risk
// state, and sends a summary alert.
func (e *Engine) OnDayEnd(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running {
		return fmt.Errorf("%w: day end dropped", types.ErrEngineStopped)
	}

	if actions, err := e.strat.OnDayEnd(e.sctx); err != nil {
		e.logger.Warn("strategy day-end callback failed", "error", err)
	} else {
		e.handleActions(ctx, actions)
	}

	dr := e.portfolio.RecordDailyReturn(e.sctx.CurrentTime)
	e.riskMgr.ResetDaily(e.portfolio.TotalEquity)

	e.alert(ctx, alerting.SeverityInfo, "Daily summary",
		"equity", e.portfolio.TotalEquity.StringFixed(2),
		"cash", e.portfolio.Cash.StringFixed(2),
		"daily_return", dr.Return.StringFixed(4),
		"open_positions", len(e.portfolio.Positions))

	e.logger.Info("trading day closed",
		"equity", e.portfolio.TotalEquity.String(),
		"daily_return", dr.Return.String())
	return nil
}

// DrainEvents returns all buffered engine events and clears the
// buffer. Each event is observed exactly once.
func (e *Engine) DrainEvents() []Event {
	e.mu.Lock()
	defer e.mu.Unlock()

	events := e.events
	e.events = nil
	return events
}

// Portfolio returns the engine's portfolio. Callers must treat it as
// read-only.
func (e *Engine) Portfolio() *types.Portfolio {
	return e.portfolio
}

// IsRunning reports whether Start has succeeded and Stop has not.
func (e *Engine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// handleActions routes strategy actions. Caller holds the lock.
func (e *Engine) handleActions(ctx context.Context, actions []strategy.Action) {
	for _, action := range actions {
		switch action.Type {
		case strategy.ActionPlaceOrder:
			e.submitOrder(ctx, action.Order)
		case strategy.ActionCancelOrder:
			e.cancelOrder(ctx, action.OrderID)
		case strategy.ActionLog:
			e.forwardLog(action)
		case strategy.ActionSetParameter:
			// Strategy-internal, nothing to route.
		}
	}
}

// submitOrder runs price lookup, the risk gate, and broker submission
// for one order, emitting the matching engine event at each exit.
func (e *Engine) submitOrder(ctx context.Context, order *types.Order) {
	if order == nil {
		return
	}
	now := time.Now().UTC()

	price, ok := e.broker.LatestPrice(order.Symbol)
	if !ok {
		e.recorder.RecordRiskRejection("no_price")
		e.emit(Event{
			Type:      EventOrderRejectedByRisk,
			Timestamp: now,
			OrderID:   order.ID,
			Symbol:    order.Symbol,
			Reason:    "no known price",
		})
		e.logger.Warn("order dropped, no known price",
			"order_id", order.ID,
			"symbol", order.Symbol.String())
		return
	}

	trippedBefore := e.riskMgr.CircuitBreakerTripped()
	result := e.riskMgr.CheckOrder(order, price, e.portfolio.TotalEquity)
	if !result.Approved {
		e.recorder.RecordRiskRejection("check_failed")
		e.emit(Event{
			Type:      EventOrderRejectedByRisk,
			Timestamp: now,
			OrderID:   order.ID,
			Symbol:    order.Symbol,
			Reason:    result.Reason,
		})
		if !trippedBefore && e.riskMgr.CircuitBreakerTripped() {
			e.recorder.RecordCircuitBreakerTrip()
			e.emit(Event{Type: EventCircuitBreakerTripped, Timestamp: now, Reason: result.Reason})
			e.alert(ctx, alerting.SeverityCritical, "Circuit breaker tripped",
				"reason", result.Reason)
		}
		e.logger.Warn("order rejected by risk",
			"order_id", order.ID,
			"reason", result.Reason)
		return
	}

	brokerID, err := e.broker.SubmitOrder(ctx, order)
	if err != nil {
		e.recorder.RecordOrder(order.Symbol.String(), order.Side.String(), "rejected")
		e.emit(Event{
			Type:      EventOrderRejectedByBroker,
			Timestamp: now,
			OrderID:   order.ID,
			Symbol:    order.Symbol,
			Reason:    err.Error(),
		})
		e.alert(ctx, alerting.SeverityWarning, "Order rejected by broker",
			"order_id", order.ID,
			"symbol", order.Symbol.String(),
			"error", err.Error())
		e.logger.Warn("order rejected by broker",
			"order_id", order.ID,
			"error", err)
		return
	}

	e.pending[order.ID] = order
	e.recorder.RecordOrder(order.Symbol.String(), order.Side.String(), "submitted")
	e.emit(Event{
		Type:      EventOrderSubmitted,
		Timestamp: now,
		OrderID:   order.ID,
		Symbol:    order.Symbol,
	})
	e.logger.Info("order submitted",
		"order_id", order.ID,
		"broker_order_id", brokerID,
		"symbol", order.Symbol.String(),
		"side", order.Side.String(),
		"type", order.Type.String(),
		"quantity", order.Quantity.String())
}

// cancelOrder is best-effort: a fill racing the cancel is a normal
// outcome, not an error.
func (e *Engine) cancelOrder(ctx context.Context, orderID string) {
	if err := e.broker.CancelOrder(ctx, orderID); err != nil {
		e.logger.Warn("cancel failed", "order_id", orderID, "error", err)
		return
	}
	delete(e.pending, orderID)
	e.logger.Info("order canceled", "order_id", orderID)
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

func (e *Engine) emit(event Event) {
	e.events = append(e.events, event)
}

func (e *Engine) alert(ctx context.Context, severity alerting.Severity, message string, fields ...any) {
	if e.alerter == nil {
		return
	}
	if err := e.alerter.Alert(ctx, severity, message, fields...); err != nil {
		e.logger.Warn("alert delivery failed", "error", err)
	}
}

// HighWaterMark returns the session equity peak.
func (e *Engine) HighWaterMark() decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, peak, _ := e.highWater.Snapshot()
	return peak
}

func (e *Engine) recordPortfolio() {
	e.highWater.Update(e.portfolio.TotalEquity)
	current, peak, drawdown := e.highWater.Snapshot()
	e.recorder.RecordEquity(current, peak, drawdown)
	e.recorder.RecordCash(e.portfolio.Cash)
	e.recorder.RecordOpenPositions(len(e.portfolio.Positions))
}
