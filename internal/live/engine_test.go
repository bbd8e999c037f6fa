package live

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/glowback/glowback/internal/broker"
	"github.com/glowback/glowback/internal/broker/paper"
	"github.com/glowback/glowback/internal/risk"
	"github.com/glowback/glowback/internal/strategy"
	"github.com/glowback/glowback/internal/types"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testSymbol() types.Symbol {
	return types.NewEquity("AAPL", "NASDAQ")
}

func priceEvent(symbol types.Symbol, price string) types.MarketEvent {
	return types.MarketEvent{
		Symbol:    symbol,
		Timestamp: time.Now().UTC(),
		Price:     dec(price),
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Symbols = []types.Symbol{testSymbol()}
	return cfg
}

func newRiskManager(t *testing.T, mutate func(*risk.Config)) *risk.Manager {
	t.Helper()
	cfg := risk.DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	mgr, err := risk.NewManager(cfg, decimal.NewFromInt(100000), nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return mgr
}

// startedEngine builds an engine on a connected paper broker and
// starts it.
func startedEngine(t *testing.T, riskMgr *risk.Manager) (*Engine, *paper.Broker) {
	t.Helper()

	brk, err := paper.New(paper.DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("paper.New: %v", err)
	}
	engine, err := New(testConfig(), brk, strategy.NewBuyAndHold(), riskMgr, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := engine.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return engine, brk
}

func eventTypes(events []Event) map[EventType]int {
	out := make(map[EventType]int)
	for _, ev := range events {
		out[ev.Type]++
	}
	return out
}

func TestStartStop(t *testing.T) {
	engine, brk := startedEngine(t, newRiskManager(t, nil))

	if !engine.IsRunning() {
		t.Fatal("engine not running after Start")
	}
	if brk.ConnectionStatus() != broker.StatusConnected {
		t.Error("broker not connected after Start")
	}
	if err := engine.Start(context.Background()); !errors.Is(err, types.ErrEngineRunning) {
		t.Errorf("second Start err = %v, want ErrEngineRunning", err)
	}

	if err := engine.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if engine.IsRunning() {
		t.Error("engine running after Stop")
	}
	if err := engine.Stop(context.Background()); !errors.Is(err, types.ErrEngineStopped) {
		t.Errorf("second Stop err = %v, want ErrEngineStopped", err)
	}

	counts := eventTypes(engine.DrainEvents())
	if counts[EventStarted] != 1 || counts[EventStopped] != 1 {
		t.Errorf("events = %v, want 1 Started and 1 Stopped", counts)
	}
}

func TestEventMethodsRequireRunning(t *testing.T) {
	brk, err := paper.New(paper.DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("paper.New: %v", err)
	}
	engine, err := New(testConfig(), brk, strategy.NewBuyAndHold(), newRiskManager(t, nil), nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	if err := engine.OnMarketEvent(ctx, priceEvent(testSymbol(), "150")); !errors.Is(err, types.ErrEngineStopped) {
		t.Errorf("OnMarketEvent err = %v, want ErrEngineStopped", err)
	}
	if err := engine.OnFill(ctx, types.Fill{}); !errors.Is(err, types.ErrEngineStopped) {
		t.Errorf("OnFill err = %v, want ErrEngineStopped", err)
	}
	if err := engine.OnDayEnd(ctx); !errors.Is(err, types.ErrEngineStopped) {
		t.Errorf("OnDayEnd err = %v, want ErrEngineStopped", err)
	}
}

func TestMarketEventPlacesAndFillsOrder(t *testing.T) {
	// Raise the notional cap so the 95%-of-cash entry clears risk.
	engine, brk := startedEngine(t, newRiskManager(t, func(c *risk.Config) {
		c.MaxOrderNotional = decimal.NewFromInt(1000000)
		c.MaxTotalExposure = decimal.NewFromInt(1000000)
		c.ConcentrationLimit = decimal.NewFromInt(1)
	}))
	ctx := context.Background()

	event := priceEvent(testSymbol(), "150")
	brk.ProcessMarketEvent(event)
	if err := engine.OnMarketEvent(ctx, event); err != nil {
		t.Fatalf("OnMarketEvent: %v", err)
	}

	fills := brk.Fills()
	if len(fills) != 1 {
		t.Fatalf("broker fills = %d, want 1", len(fills))
	}
	if err := engine.OnFill(ctx, fills[0]); err != nil {
		t.Fatalf("OnFill: %v", err)
	}

	pos, ok := engine.Portfolio().Position(testSymbol())
	if !ok {
		t.Fatal("no position after fill")
	}
	if !pos.Quantity.IsPositive() {
		t.Errorf("position quantity = %s, want positive", pos.Quantity)
	}

	counts := eventTypes(engine.DrainEvents())
	if counts[EventOrderSubmitted] != 1 {
		t.Errorf("OrderSubmitted events = %d, want 1", counts[EventOrderSubmitted])
	}
	if counts[EventOrderFilled] != 1 {
		t.Errorf("OrderFilled events = %d, want 1", counts[EventOrderFilled])
	}
}

func TestRiskRejectionEmitsEvent(t *testing.T) {
	engine, brk := startedEngine(t, newRiskManager(t, func(c *risk.Config) {
		c.MaxOrderNotional = decimal.NewFromInt(10)
	}))
	ctx := context.Background()

	event := priceEvent(testSymbol(), "150")
	brk.ProcessMarketEvent(event)
	if err := engine.OnMarketEvent(ctx, event); err != nil {
		t.Fatalf("OnMarketEvent: %v", err)
	}

	if fills := brk.Fills(); len(fills) != 0 {
		t.Errorf("broker fills = %d, want 0", len(fills))
	}
	counts := eventTypes(engine.DrainEvents())
	if counts[EventOrderRejectedByRisk] != 1 {
		t.Errorf("OrderRejectedByRisk events = %d, want 1", counts[EventOrderRejectedByRisk])
	}
	if counts[EventOrderSubmitted] != 0 {
		t.Errorf("OrderSubmitted events = %d, want 0", counts[EventOrderSubmitted])
	}
}

func TestCircuitBreakerEvent(t *testing.T) {
	// Seed the risk baseline far above the portfolio's equity so the
	// first check observes a breaching daily loss.
	cfg := risk.DefaultConfig()
	cfg.MaxOrderNotional = decimal.NewFromInt(10000000)
	riskMgr, err := risk.NewManager(cfg, decimal.NewFromInt(500000), nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	engine, brk := startedEngine(t, riskMgr)
	ctx := context.Background()

	event := priceEvent(testSymbol(), "150")
	brk.ProcessMarketEvent(event)
	if err := engine.OnMarketEvent(ctx, event); err != nil {
		t.Fatalf("OnMarketEvent: %v", err)
	}

	counts := eventTypes(engine.DrainEvents())
	if counts[EventCircuitBreakerTripped] != 1 {
		t.Errorf("CircuitBreakerTripped events = %d, want 1", counts[EventCircuitBreakerTripped])
	}
	if !riskMgr.CircuitBreakerTripped() {
		t.Error("breaker not tripped")
	}
}

func TestDayEndResetsBreaker(t *testing.T) {
	riskMgr := newRiskManager(t, nil)
	engine, _ := startedEngine(t, riskMgr)
	ctx := context.Background()

	riskMgr.CheckOrder(
		types.NewMarketOrder(testSymbol(), types.SideBuy, decimal.NewFromInt(1), "s"),
		dec("150"),
		decimal.NewFromInt(90000))
	if !riskMgr.CircuitBreakerTripped() {
		t.Fatal("breaker should trip on a 10% daily loss")
	}

	if err := engine.OnDayEnd(ctx); err != nil {
		t.Fatalf("OnDayEnd: %v", err)
	}
	if riskMgr.CircuitBreakerTripped() {
		t.Error("breaker still tripped after day end")
	}
}

func TestDrainEventsConsumeOnce(t *testing.T) {
	engine, _ := startedEngine(t, newRiskManager(t, nil))

	first := engine.DrainEvents()
	if len(first) == 0 {
		t.Fatal("no events after Start")
	}
	if second := engine.DrainEvents(); len(second) != 0 {
		t.Errorf("second drain returned %d events, want 0", len(second))
	}
}

// failingBroker wraps the paper broker but refuses all submissions.
type failingBroker struct {
	*paper.Broker
}

func (b *failingBroker) SubmitOrder(ctx context.Context, order *types.Order) (string, error) {
	return "", types.NewBrokerOrderRejected("venue unavailable")
}

func TestBrokerRejectionEmitsEvent(t *testing.T) {
	inner, err := paper.New(paper.DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("paper.New: %v", err)
	}
	brk := &failingBroker{Broker: inner}

	engine, err := New(testConfig(), brk, strategy.NewBuyAndHold(), newRiskManager(t, func(c *risk.Config) {
		c.MaxOrderNotional = decimal.NewFromInt(1000000)
		c.MaxTotalExposure = decimal.NewFromInt(1000000)
		c.ConcentrationLimit = decimal.NewFromInt(1)
	}), nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	if err := engine.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	event := priceEvent(testSymbol(), "150")
	inner.ProcessMarketEvent(event)
	if err := engine.OnMarketEvent(ctx, event); err != nil {
		t.Fatalf("OnMarketEvent: %v", err)
	}

	counts := eventTypes(engine.DrainEvents())
	if counts[EventOrderRejectedByBroker] != 1 {
		t.Errorf("OrderRejectedByBroker events = %d, want 1", counts[EventOrderRejectedByBroker])
	}
}
