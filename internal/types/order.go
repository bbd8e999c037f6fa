package types

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderType determines how an order is priced.
type OrderType int

const (
	OrderTypeMarket OrderType = iota
	OrderTypeLimit
	OrderTypeStop
	OrderTypeStopLimit
)

func (t OrderType) String() string {
	switch t {
	case OrderTypeMarket:
		return "MARKET"
	case OrderTypeLimit:
		return "LIMIT"
	case OrderTypeStop:
		return "STOP"
	case OrderTypeStopLimit:
		return "STOP_LIMIT"
	default:
		return "UNKNOWN"
	}
}

// TimeInForce controls how long an order stays working.
type TimeInForce int

const (
	TimeInForceDay TimeInForce = iota
	TimeInForceGTC
	TimeInForceIOC
	TimeInForceFOK
)

func (t TimeInForce) String() string {
	switch t {
	case TimeInForceGTC:
		return "GTC"
	case TimeInForceIOC:
		return "IOC"
	case TimeInForceFOK:
		return "FOK"
	default:
		return "DAY"
	}
}

// OrderStatus represents the state of an order.
type OrderStatus int

const (
	OrderStatusPending OrderStatus = iota
	OrderStatusSubmitted
	OrderStatusPartiallyFilled
	OrderStatusFilled
	OrderStatusCanceled
	OrderStatusRejected
	OrderStatusExpired
)

func (s OrderStatus) String() string {
	switch s {
	case OrderStatusPending:
		return "PENDING"
	case OrderStatusSubmitted:
		return "SUBMITTED"
	case OrderStatusPartiallyFilled:
		return "PARTIALLY_FILLED"
	case OrderStatusFilled:
		return "FILLED"
	case OrderStatusCanceled:
		return "CANCELED"
	case OrderStatusRejected:
		return "REJECTED"
	case OrderStatusExpired:
		return "EXPIRED"
	default:
		return "UNKNOWN"
	}
}

// IsTerminal returns true when the order can never change state again.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCanceled, OrderStatusRejected, OrderStatusExpired:
		return true
	default:
		return false
	}
}

// Order is a request to trade. Its state machine is
// Pending -> Submitted -> PartiallyFilled (re-enterable) -> Filled,
// with Canceled, Rejected, and Expired as terminal side exits.
// FilledQuantity + RemainingQuantity always equals Quantity.
type Order struct {
	ID                string
	Symbol            Symbol
	Side              Side
	Quantity          decimal.Decimal
	Type              OrderType
	LimitPrice        decimal.Decimal
	StopPrice         decimal.Decimal
	TimeInForce       TimeInForce
	Status            OrderStatus
	FilledQuantity    decimal.Decimal
	RemainingQuantity decimal.Decimal
	AverageFillPrice  decimal.Decimal
	StrategyID        string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func newOrder(symbol Symbol, side Side, qty decimal.Decimal, typ OrderType, strategyID string) *Order {
	now := time.Now().UTC()
	return &Order{
		ID:                uuid.New().String(),
		Symbol:            symbol,
		Side:              side,
		Quantity:          qty,
		Type:              typ,
		TimeInForce:       TimeInForceDay,
		Status:            OrderStatusPending,
		FilledQuantity:    decimal.Zero,
		RemainingQuantity: qty,
		AverageFillPrice:  decimal.Zero,
		StrategyID:        strategyID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// NewMarketOrder creates a market order in the Pending state.
func NewMarketOrder(symbol Symbol, side Side, qty decimal.Decimal, strategyID string) *Order {
	return newOrder(symbol, side, qty, OrderTypeMarket, strategyID)
}

// NewLimitOrder creates a limit order in the Pending state.
func NewLimitOrder(symbol Symbol, side Side, qty, limit decimal.Decimal, strategyID string) *Order {
	o := newOrder(symbol, side, qty, OrderTypeLimit, strategyID)
	o.LimitPrice = limit
	return o
}

// NewStopOrder creates a stop order in the Pending state.
func NewStopOrder(symbol Symbol, side Side, qty, stop decimal.Decimal, strategyID string) *Order {
	o := newOrder(symbol, side, qty, OrderTypeStop, strategyID)
	o.StopPrice = stop
	return o
}

// NewStopLimitOrder creates a stop-limit order in the Pending state.
func NewStopLimitOrder(symbol Symbol, side Side, qty, stop, limit decimal.Decimal, strategyID string) *Order {
	o := newOrder(symbol, side, qty, OrderTypeStopLimit, strategyID)
	o.StopPrice = stop
	o.LimitPrice = limit
	return o
}

// IsActive returns true while the order can still receive fills.
func (o *Order) IsActive() bool {
	return !o.Status.IsTerminal()
}

// Submit moves a pending order to Submitted.
func (o *Order) Submit() error {
	if o.Status != OrderStatusPending {
		return fmt.Errorf("%w: submit from %s", ErrInvalidTransition, o.Status)
	}
	o.Status = OrderStatusSubmitted
	o.UpdatedAt = time.Now().UTC()
	return nil
}

// ApplyFill records an execution against the order, maintaining the
// volume-weighted average fill price and the quantity invariant.
// Overfills are rejected.
func (o *Order) ApplyFill(qty, price decimal.Decimal) error {
	if o.Status.IsTerminal() {
		return fmt.Errorf("%w: fill on %s order", ErrInvalidTransition, o.Status)
	}
	if qty.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: fill quantity %s", ErrInvalidQuantity, qty)
	}
	if qty.GreaterThan(o.RemainingQuantity) {
		return fmt.Errorf("%w: fill %s exceeds remaining %s", ErrInvalidQuantity, qty, o.RemainingQuantity)
	}

	prevNotional := o.AverageFillPrice.Mul(o.FilledQuantity)
	o.FilledQuantity = o.FilledQuantity.Add(qty)
	o.RemainingQuantity = o.RemainingQuantity.Sub(qty)
	o.AverageFillPrice = prevNotional.Add(price.Mul(qty)).Div(o.FilledQuantity)

	if o.RemainingQuantity.IsZero() {
		o.Status = OrderStatusFilled
	} else {
		o.Status = OrderStatusPartiallyFilled
	}
	o.UpdatedAt = time.Now().UTC()
	return nil
}

// Cancel marks the order canceled. Partial fills stay recorded.
func (o *Order) Cancel() error {
	if o.Status.IsTerminal() {
		return fmt.Errorf("%w: cancel from %s", ErrInvalidTransition, o.Status)
	}
	o.Status = OrderStatusCanceled
	o.UpdatedAt = time.Now().UTC()
	return nil
}

// Reject marks the order rejected.
func (o *Order) Reject() error {
	if o.Status.IsTerminal() {
		return fmt.Errorf("%w: reject from %s", ErrInvalidTransition, o.Status)
	}
	o.Status = OrderStatusRejected
	o.UpdatedAt = time.Now().UTC()
	return nil
}

// Expire marks the order expired per its time-in-force.
func (o *Order) Expire() error {
	if o.Status.IsTerminal() {
		return fmt.Errorf("%w: expire from %s", ErrInvalidTransition, o.Status)
	}
	o.Status = OrderStatusExpired
	o.UpdatedAt = time.Now().UTC()
	return nil
}

// Fill is an immutable record of one execution. It is applied exactly
// once to a portfolio.
type Fill struct {
	ID         string
	OrderID    string
	Symbol     Symbol
	Side       Side
	Quantity   decimal.Decimal
	Price      decimal.Decimal
	Commission decimal.Decimal
	Timestamp  time.Time
	StrategyID string
}

// NewFill creates a fill record for an order.
func NewFill(order *Order, qty, price, commission decimal.Decimal, ts time.Time) Fill {
	return Fill{
		ID:         uuid.New().String(),
		OrderID:    order.ID,
		Symbol:     order.Symbol,
		Side:       order.Side,
		Quantity:   qty,
		Price:      price,
		Commission: commission,
		Timestamp:  ts,
		StrategyID: order.StrategyID,
	}
}

// GrossAmount is quantity times price.
func (f Fill) GrossAmount() decimal.Decimal {
	return f.Quantity.Mul(f.Price)
}

// NetAmount is the signed cash impact of the fill: negative for buys
// (gross plus commission paid out), positive for sells (gross minus
// commission received).
func (f Fill) NetAmount() decimal.Decimal {
	gross := f.GrossAmount()
	if f.Side == SideBuy {
		return gross.Add(f.Commission).Neg()
	}
	return gross.Sub(f.Commission)
}
