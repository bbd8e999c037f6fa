package risk

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/glowback/glowback/internal/types"
)

// CheckResult is the outcome of a risk check. Rejections are values,
// not errors; the caller decides how to react.
type CheckResult struct {
	Approved bool
	Reason   string
}

// Approve returns an approved result.
func Approve() CheckResult {
	return CheckResult{Approved: true}
}

// Reject returns a rejection with a human-readable reason.
func Reject(format string, args ...any) CheckResult {
	return CheckResult{Reason: fmt.Sprintf(format, args...)}
}

// Config holds the risk manager limits.
type Config struct {
	MaxOrdersPerWindow      int             `yaml:"max_orders_per_window"`
	OrderWindow             time.Duration   `yaml:"order_window"`
	MaxOrderNotional        decimal.Decimal `yaml:"max_order_notional"`
	MaxTotalExposure        decimal.Decimal `yaml:"max_total_exposure"`
	ConcentrationLimit      decimal.Decimal `yaml:"concentration_limit"`
	DailyLossCircuitBreaker decimal.Decimal `yaml:"daily_loss_circuit_breaker"`
	DryRun                  bool            `yaml:"dry_run"`
}

// DefaultConfig returns conservative default limits.
func DefaultConfig() Config {
	return Config{
		MaxOrdersPerWindow:      100,
		OrderWindow:             time.Minute,
		MaxOrderNotional:        decimal.NewFromInt(100000),
		MaxTotalExposure:        decimal.NewFromInt(500000),
		ConcentrationLimit:      decimal.RequireFromString("0.25"),
		DailyLossCircuitBreaker: decimal.RequireFromString("0.05"),
		DryRun:                  false,
	}
}

// Validate checks the limits.
func (c Config) Validate() error {
	if c.MaxOrdersPerWindow <= 0 {
		return fmt.Errorf("%w: max orders per window must be positive", types.ErrInvalidConfig)
	}
	if c.OrderWindow <= 0 {
		return fmt.Errorf("%w: order window must be positive", types.ErrInvalidConfig)
	}
	if c.MaxOrderNotional.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: max order notional must be positive", types.ErrInvalidConfig)
	}
	if c.MaxTotalExposure.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: max total exposure must be positive", types.ErrInvalidConfig)
	}
	if c.ConcentrationLimit.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: concentration limit must be positive", types.ErrInvalidConfig)
	}
	if c.DailyLossCircuitBreaker.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: circuit breaker threshold must be positive", types.ErrInvalidConfig)
	}
	return nil
}

// Manager validates every order before it reaches the broker. Checks
// run in a fixed order and short-circuit on the first rejection:
// circuit breaker, order rate, single-order notional, position
// concentration, total exposure.
type Manager struct {
	cfg    Config
	logger *slog.Logger

	mu               sync.Mutex
	recentOrders     []time.Time
	positions        map[types.Symbol]decimal.Decimal
	startOfDayEquity decimal.Decimal
	breakerTripped   bool
	breakerTrippedAt time.Time
}

// NewManager creates a risk manager. Starting equity seeds the
// daily-loss baseline. A nil logger falls back to slog.Default.
func NewManager(cfg Config, startingEquity decimal.Decimal, logger *slog.Logger) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		cfg:              cfg,
		logger:           logger,
		positions:        make(map[types.Symbol]decimal.Decimal),
		startOfDayEquity: startingEquity,
	}, nil
}

// CheckOrder validates an order against all limits. In dry-run mode a
// would-be rejection is logged and the order approved anyway.
func (m *Manager) CheckOrder(order *types.Order, currentPrice, currentEquity decimal.Decimal) CheckResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := m.runChecks(order, currentPrice, currentEquity)
	if !result.Approved && m.cfg.DryRun {
		m.logger.Warn("risk check would reject (dry run)",
			"order_id", order.ID,
			"symbol", order.Symbol,
			"reason", result.Reason,
		)
		return Approve()
	}
	return result
}

func (m *Manager) runChecks(order *types.Order, currentPrice, currentEquity decimal.Decimal) CheckResult {
	if r := m.checkCircuitBreaker(currentEquity); !r.Approved {
		return r
	}
	if r := m.checkOrderRate(); !r.Approved {
		return r
	}

	notional := order.Quantity.Mul(currentPrice)
	if notional.GreaterThan(m.cfg.MaxOrderNotional) {
		return Reject("order notional %s exceeds limit %s", notional, m.cfg.MaxOrderNotional)
	}

	if r := m.checkConcentration(order, currentPrice, currentEquity); !r.Approved {
		return r
	}
	if r := m.checkTotalExposure(order, currentPrice); !r.Approved {
		return r
	}

	// Approved orders count against the rate limit.
	m.recentOrders = append(m.recentOrders, time.Now())
	return Approve()
}

func (m *Manager) checkCircuitBreaker(currentEquity decimal.Decimal) CheckResult {
	if m.breakerTripped {
		return Reject("circuit breaker tripped, trading halted for the day")
	}
	if m.startOfDayEquity.LessThanOrEqual(decimal.Zero) {
		return Approve()
	}

	lossPct := m.startOfDayEquity.Sub(currentEquity).Div(m.startOfDayEquity)
	if lossPct.GreaterThanOrEqual(m.cfg.DailyLossCircuitBreaker) {
		m.breakerTripped = true
		m.breakerTrippedAt = time.Now().UTC()
		m.logger.Warn("daily loss circuit breaker tripped",
			"loss_pct", lossPct,
			"threshold", m.cfg.DailyLossCircuitBreaker,
		)
		return Reject("daily loss %s exceeds circuit breaker threshold %s",
			lossPct, m.cfg.DailyLossCircuitBreaker)
	}
	return Approve()
}

func (m *Manager) checkOrderRate() CheckResult {
	cutoff := time.Now().Add(-m.cfg.OrderWindow)

	kept := m.recentOrders[:0]
	for _, t := range m.recentOrders {
		if !t.Before(cutoff) {
			kept = append(kept, t)
		}
	}
	m.recentOrders = kept

	if len(m.recentOrders) >= m.cfg.MaxOrdersPerWindow {
		return Reject("order rate limit: %d orders in %s window",
			m.cfg.MaxOrdersPerWindow, m.cfg.OrderWindow)
	}
	return Approve()
}

func (m *Manager) checkConcentration(order *types.Order, currentPrice, currentEquity decimal.Decimal) CheckResult {
	if currentEquity.IsZero() {
		return Approve()
	}

	delta := order.Quantity.Mul(order.Side.Sign())
	newQty := m.positions[order.Symbol].Add(delta)
	concentration := newQty.Abs().Mul(currentPrice).Div(currentEquity)

	if concentration.GreaterThan(m.cfg.ConcentrationLimit) {
		return Reject("position concentration %s exceeds limit %s",
			concentration.Round(4), m.cfg.ConcentrationLimit)
	}
	return Approve()
}

func (m *Manager) checkTotalExposure(order *types.Order, currentPrice decimal.Decimal) CheckResult {
	exposure := order.Quantity.Mul(currentPrice)
	for _, qty := range m.positions {
		exposure = exposure.Add(qty.Abs().Mul(currentPrice))
	}

	if exposure.GreaterThan(m.cfg.MaxTotalExposure) {
		return Reject("total exposure %s would exceed limit %s",
			exposure, m.cfg.MaxTotalExposure)
	}
	return Approve()
}

// RecordFill updates position tracking after a fill.
func (m *Manager) RecordFill(symbol types.Symbol, side types.Side, quantity decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.positions[symbol] = m.positions[symbol].Add(quantity.Mul(side.Sign()))
}

// PositionQuantity returns the tracked signed quantity for a symbol.
func (m *Manager) PositionQuantity(symbol types.Symbol) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.positions[symbol]
}

// ResetDaily clears the circuit breaker and rate-limit history and
// re-seeds the start-of-day equity. The caller invokes this once per
// trading day; the manager never times it itself.
func (m *Manager) ResetDaily(equity decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.startOfDayEquity = equity
	m.breakerTripped = false
	m.breakerTrippedAt = time.Time{}
	m.recentOrders = m.recentOrders[:0]
}

// CircuitBreakerTripped reports whether the breaker is currently
// tripped.
func (m *Manager) CircuitBreakerTripped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.breakerTripped
}

// CircuitBreakerTrippedAt returns when the breaker tripped, zero if it
// has not.
func (m *Manager) CircuitBreakerTrippedAt() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.breakerTrippedAt
}

// Config returns the active limits.
func (m *Manager) Config() Config {
	return m.cfg
}
