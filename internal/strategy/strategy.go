// Package strategy defines the pluggable decision-logic contract and
// the built-in reference strategies.
package strategy

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/glowback/glowback/internal/types"
)

// Strategy is the fixed callback contract between an engine and any
// decision logic. The engines depend on the call ordering and never
// inspect strategy internals; a callback error is logged by the caller
// and treated as "no actions this tick".
type Strategy interface {
	// Initialize prepares the strategy with its configuration.
	Initialize(cfg Config) error

	// OnMarketEvent processes one market event against a read-only
	// context and returns any actions to take.
	OnMarketEvent(event types.MarketEvent, ctx *Context) ([]Action, error)

	// OnOrderEvent notifies the strategy of order fills and
	// cancellations.
	OnOrderEvent(event types.OrderEvent, ctx *Context) ([]Action, error)

	// OnDayEnd runs at the end of each trading day.
	OnDayEnd(ctx *Context) ([]Action, error)

	// OnStop runs once when the strategy is stopped.
	OnStop(ctx *Context) ([]Action, error)

	// Config returns the strategy configuration.
	Config() Config

	// Metrics returns the strategy's own performance summary.
	Metrics() Metrics
}

// Config carries strategy identity, symbols, and free-form parameters.
type Config struct {
	ID             string
	Name           string
	Description    string
	Symbols        []types.Symbol
	InitialCapital decimal.Decimal
	Parameters     map[string]any
	Enabled        bool
}

// NewConfig creates a config with defaults.
func NewConfig(id, name string) Config {
	return Config{
		ID:             id,
		Name:           name,
		InitialCapital: decimal.NewFromInt(100000),
		Parameters:     make(map[string]any),
		Enabled:        true,
	}
}

// Validate checks the config for usability.
func (c Config) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("%w: empty strategy id", types.ErrInvalidConfig)
	}
	if c.InitialCapital.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: initial capital %s", types.ErrInvalidConfig, c.InitialCapital)
	}
	return nil
}

// SetParam stores a parameter value.
func (c *Config) SetParam(key string, value any) {
	if c.Parameters == nil {
		c.Parameters = make(map[string]any)
	}
	c.Parameters[key] = value
}

// IntParam reads an integer parameter, falling back to def when the
// key is absent or not numeric.
func (c Config) IntParam(key string, def int) int {
	v, ok := c.Parameters[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return def
	}
}

// DecimalParam reads a decimal parameter from any numeric or string
// representation, falling back to def otherwise.
func (c Config) DecimalParam(key string, def decimal.Decimal) decimal.Decimal {
	v, ok := c.Parameters[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case decimal.Decimal:
		return n
	case int:
		return decimal.NewFromInt(int64(n))
	case int64:
		return decimal.NewFromInt(n)
	case float64:
		return decimal.NewFromFloat(n)
	case string:
		if d, err := decimal.NewFromString(n); err == nil {
			return d
		}
		return def
	default:
		return def
	}
}

// LogLevel classifies strategy log actions.
type LogLevel int

const (
	LogDebug LogLevel = iota
	LogInfo
	LogWarn
	LogError
)

func (l LogLevel) String() string {
	switch l {
	case LogDebug:
		return "DEBUG"
	case LogWarn:
		return "WARN"
	case LogError:
		return "ERROR"
	default:
		return "INFO"
	}
}

// ActionType discriminates strategy actions.
type ActionType int

const (
	ActionPlaceOrder ActionType = iota
	ActionCancelOrder
	ActionLog
	ActionSetParameter
)

// Action is one instruction returned by a strategy callback. The
// engines route PlaceOrder and CancelOrder, forward Log to the host
// logger, and leave SetParameter to the strategy itself.
type Action struct {
	Type    ActionType
	Order   *types.Order
	OrderID string
	Level   LogLevel
	Message string
	Key     string
	Value   any
}

// PlaceOrder wraps an order submission action.
func PlaceOrder(order *types.Order) Action {
	return Action{Type: ActionPlaceOrder, Order: order}
}

// CancelOrder wraps a cancellation action.
func CancelOrder(orderID string) Action {
	return Action{Type: ActionCancelOrder, OrderID: orderID}
}

// Log wraps a log forwarding action.
func Log(level LogLevel, message string) Action {
	return Action{Type: ActionLog, Level: level, Message: message}
}

// SetParameter wraps a strategy-internal parameter change.
func SetParameter(key string, value any) Action {
	return Action{Type: ActionSetParameter, Key: key, Value: value}
}

// Metrics summarizes a strategy's own view of its performance.
type Metrics struct {
	StrategyID       string
	StartTime        time.Time
	EndTime          time.Time
	TotalTrades      int
	WinningTrades    int
	LosingTrades     int
	TotalCommissions decimal.Decimal
}

// NewMetrics creates an empty metrics record.
func NewMetrics(strategyID string) Metrics {
	return Metrics{
		StrategyID:       strategyID,
		StartTime:        time.Now().UTC(),
		TotalCommissions: decimal.Zero,
	}
}
