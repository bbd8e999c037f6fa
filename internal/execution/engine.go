package execution

import (
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/glowback/glowback/internal/types"
)

var (
	spreadFraction = decimal.RequireFromString("0.005")
	two            = decimal.NewFromInt(2)
	tenThousand    = decimal.NewFromInt(10000)
)

// Engine resolves pending orders against market bars. Each attempt
// yields at most one fill for the order's full remaining quantity; an
// order the bar cannot fill stays pending and simply returns nil.
type Engine struct {
	settings   Settings
	logger     *slog.Logger
	lastFillAt time.Time
}

// NewEngine creates an execution engine with the given settings.
func NewEngine(settings Settings, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		settings: settings,
		logger:   logger,
	}
}

// TryFill attempts to execute an order against one bar at the given
// simulated time. It returns nil when the order cannot fill on this
// bar: out-of-range limit, untouched stop, or the latency gate still
// holding since the previous fill.
func (e *Engine) TryFill(order *types.Order, bar types.Bar, now time.Time) *types.Fill {
	if order == nil || !order.IsActive() {
		return nil
	}

	// Latency gate, measured in simulated time. On daily bars the gap
	// always exceeds the gate; it bites on intraday resolutions.
	if !e.lastFillAt.IsZero() && now.Sub(e.lastFillAt) < e.settings.Latency {
		e.logger.Debug("fill deferred by latency gate",
			"order_id", order.ID,
			"since_last_fill", now.Sub(e.lastFillAt))
		return nil
	}

	price, ok := resolvePrice(order, bar)
	if !ok {
		return nil
	}

	price = e.applySlippage(order.Side, price)
	qty := order.RemainingQuantity
	commission := e.settings.Commission(qty, qty.Mul(price))

	fill := types.NewFill(order, qty, price, commission, bar.Timestamp)
	e.lastFillAt = now

	e.logger.Debug("order filled",
		"order_id", order.ID,
		"symbol", order.Symbol.String(),
		"side", order.Side.String(),
		"quantity", qty.String(),
		"price", price.String(),
		"commission", commission.String())

	return &fill
}

// Reset clears the latency gate, for reuse across runs.
func (e *Engine) Reset() {
	e.lastFillAt = time.Time{}
}

// resolvePrice applies the order-type rules against the bar's range.
// Returns false when the bar cannot fill the order.
func resolvePrice(order *types.Order, bar types.Bar) (decimal.Decimal, bool) {
	switch order.Type {
	case types.OrderTypeMarket:
		// Approximate bid/ask around the close without book data.
		halfSpread := bar.High.Sub(bar.Low).Mul(spreadFraction).Div(two)
		if order.Side == types.SideBuy {
			return bar.Close.Add(halfSpread), true
		}
		return bar.Close.Sub(halfSpread), true

	case types.OrderTypeLimit:
		if limitInRange(order.LimitPrice, bar) {
			return order.LimitPrice, true
		}
		return decimal.Zero, false

	case types.OrderTypeStop:
		if stopTouched(order, bar) {
			return bar.Close, true
		}
		return decimal.Zero, false

	case types.OrderTypeStopLimit:
		if stopTouched(order, bar) && limitInRange(order.LimitPrice, bar) {
			return order.LimitPrice, true
		}
		return decimal.Zero, false

	default:
		return decimal.Zero, false
	}
}

func limitInRange(limit decimal.Decimal, bar types.Bar) bool {
	return limit.GreaterThanOrEqual(bar.Low) && limit.LessThanOrEqual(bar.High)
}

func stopTouched(order *types.Order, bar types.Bar) bool {
	if order.Side == types.SideBuy {
		return bar.High.GreaterThanOrEqual(order.StopPrice)
	}
	return bar.Low.LessThanOrEqual(order.StopPrice)
}

// applySlippage moves the price against the order side by the
// configured basis points.
func (e *Engine) applySlippage(side types.Side, price decimal.Decimal) decimal.Decimal {
	if e.settings.SlippageBps.IsZero() {
		return price
	}
	adj := price.Mul(e.settings.SlippageBps).Div(tenThousand)
	if side == types.SideBuy {
		return price.Add(adj)
	}
	return price.Sub(adj)
}
