package types

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Position tracks signed exposure in one symbol. Quantity is positive
// for long and negative for short. MarketValue is always
// |quantity| * last market price.
type Position struct {
	Symbol        Symbol
	Quantity      decimal.Decimal
	AveragePrice  decimal.Decimal
	MarketValue   decimal.Decimal
	UnrealizedPnL decimal.Decimal
	RealizedPnL   decimal.Decimal
	OpenedAt      time.Time
	UpdatedAt     time.Time
}

// NewPosition creates an empty position for a symbol.
func NewPosition(symbol Symbol) *Position {
	now := time.Now().UTC()
	return &Position{
		Symbol:        symbol,
		Quantity:      decimal.Zero,
		AveragePrice:  decimal.Zero,
		MarketValue:   decimal.Zero,
		UnrealizedPnL: decimal.Zero,
		RealizedPnL:   decimal.Zero,
		OpenedAt:      now,
		UpdatedAt:     now,
	}
}

// IsFlat returns true when the position holds no exposure.
func (p *Position) IsFlat() bool {
	return p.Quantity.IsZero()
}

// IsLong returns true for positive quantity.
func (p *Position) IsLong() bool {
	return p.Quantity.GreaterThan(decimal.Zero)
}

// ApplyFill mutates the position for one execution and returns the
// realized P&L produced by any quantity it closed. Opening and adding
// update the weighted average cost; reducing realizes against it. A
// fill that crosses through flat realizes the closed part and reopens
// the remainder at the fill price. Closing to exactly zero resets the
// average price.
func (p *Position) ApplyFill(f Fill) decimal.Decimal {
	delta := f.Quantity.Mul(f.Side.Sign())
	realized := decimal.Zero

	switch {
	case p.Quantity.IsZero():
		p.Quantity = delta
		p.AveragePrice = f.Price
		p.OpenedAt = f.Timestamp

	case p.Quantity.Sign() == delta.Sign():
		oldNotional := p.AveragePrice.Mul(p.Quantity.Abs())
		addNotional := f.Price.Mul(delta.Abs())
		p.Quantity = p.Quantity.Add(delta)
		p.AveragePrice = oldNotional.Add(addNotional).Div(p.Quantity.Abs())

	default:
		closed := decimal.Min(delta.Abs(), p.Quantity.Abs())
		direction := decimal.NewFromInt(int64(p.Quantity.Sign()))
		realized = f.Price.Sub(p.AveragePrice).Mul(closed).Mul(direction)
		p.RealizedPnL = p.RealizedPnL.Add(realized)

		p.Quantity = p.Quantity.Add(delta)
		if p.Quantity.IsZero() {
			p.AveragePrice = decimal.Zero
		} else if p.Quantity.Sign() != int(direction.IntPart()) {
			// Crossed through flat; remainder opens at the fill price.
			p.AveragePrice = f.Price
			p.OpenedAt = f.Timestamp
		}
	}

	p.UpdatedAt = f.Timestamp
	p.markToMarket(f.Price)
	return realized
}

// MarkToMarket recomputes market value and unrealized P&L from the
// latest observed price.
func (p *Position) MarkToMarket(price decimal.Decimal) {
	p.markToMarket(price)
	p.UpdatedAt = time.Now().UTC()
}

func (p *Position) markToMarket(price decimal.Decimal) {
	p.MarketValue = p.Quantity.Abs().Mul(price)
	p.UnrealizedPnL = price.Sub(p.AveragePrice).Mul(p.Quantity)
}

// DailyReturn is one day-end snapshot of portfolio performance.
type DailyReturn struct {
	Timestamp time.Time
	Return    decimal.Decimal
	Equity    decimal.Decimal
}

// Portfolio is the mutable ledger of cash, positions, and P&L. Flat
// positions are removed from the map; total equity is recomputed in
// full after every fill or price update, never incrementally drifted.
type Portfolio struct {
	Name             string
	InitialCapital   decimal.Decimal
	Cash             decimal.Decimal
	Positions        map[Symbol]*Position
	TotalEquity      decimal.Decimal
	RealizedPnL      decimal.Decimal
	UnrealizedPnL    decimal.Decimal
	TotalCommissions decimal.Decimal
	DailyReturns     []DailyReturn
}

// NewPortfolio creates a portfolio holding only cash.
func NewPortfolio(name string, initialCapital decimal.Decimal) (*Portfolio, error) {
	if initialCapital.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: initial capital %s", ErrInvalidConfig, initialCapital)
	}
	return &Portfolio{
		Name:             name,
		InitialCapital:   initialCapital,
		Cash:             initialCapital,
		Positions:        make(map[Symbol]*Position),
		TotalEquity:      initialCapital,
		RealizedPnL:      decimal.Zero,
		UnrealizedPnL:    decimal.Zero,
		TotalCommissions: decimal.Zero,
	}, nil
}

// Position returns the position for a symbol, if one is open.
func (p *Portfolio) Position(symbol Symbol) (*Position, bool) {
	pos, ok := p.Positions[symbol]
	return pos, ok
}

// PositionQuantity returns the signed quantity held in a symbol, zero
// when flat.
func (p *Portfolio) PositionQuantity(symbol Symbol) decimal.Decimal {
	if pos, ok := p.Positions[symbol]; ok {
		return pos.Quantity
	}
	return decimal.Zero
}

// Symbols returns the symbols with open positions, sorted by ticker.
func (p *Portfolio) Symbols() []Symbol {
	out := make([]Symbol, 0, len(p.Positions))
	for sym := range p.Positions {
		out = append(out, sym)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out
}

// ApplyFill applies one execution to cash and positions. The fill's
// net amount moves cash; closed quantity accrues realized P&L; a
// position closed to zero is removed.
func (p *Portfolio) ApplyFill(f Fill) error {
	if f.Quantity.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: fill quantity %s", ErrInvalidQuantity, f.Quantity)
	}

	p.Cash = p.Cash.Add(f.NetAmount())
	p.TotalCommissions = p.TotalCommissions.Add(f.Commission)

	pos, ok := p.Positions[f.Symbol]
	if !ok {
		pos = NewPosition(f.Symbol)
		p.Positions[f.Symbol] = pos
	}
	realized := pos.ApplyFill(f)
	p.RealizedPnL = p.RealizedPnL.Add(realized)

	if pos.IsFlat() {
		delete(p.Positions, f.Symbol)
	}

	p.updateTotals()
	return nil
}

// UpdateMarketPrice marks one position to market.
func (p *Portfolio) UpdateMarketPrice(symbol Symbol, price decimal.Decimal) {
	if pos, ok := p.Positions[symbol]; ok {
		pos.MarkToMarket(price)
	}
	p.updateTotals()
}

// UpdateMarketPrices marks every position with a known price to market.
func (p *Portfolio) UpdateMarketPrices(prices map[Symbol]decimal.Decimal) {
	for sym, pos := range p.Positions {
		if price, ok := prices[sym]; ok {
			pos.MarkToMarket(price)
		}
	}
	p.updateTotals()
}

func (p *Portfolio) updateTotals() {
	equity := p.Cash
	unrealized := decimal.Zero
	for _, pos := range p.Positions {
		equity = equity.Add(pos.MarketValue)
		unrealized = unrealized.Add(pos.UnrealizedPnL)
	}
	p.TotalEquity = equity
	p.UnrealizedPnL = unrealized
}

// GrossExposure is the sum of absolute position market values.
func (p *Portfolio) GrossExposure() decimal.Decimal {
	total := decimal.Zero
	for _, pos := range p.Positions {
		total = total.Add(pos.MarketValue)
	}
	return total
}

// AvailableCash returns the cash available for new purchases.
func (p *Portfolio) AvailableCash() decimal.Decimal {
	return p.Cash
}

// RecordDailyReturn appends a day-end snapshot. The first recorded day
// and any day following non-positive equity report a zero return.
func (p *Portfolio) RecordDailyReturn(ts time.Time) DailyReturn {
	ret := decimal.Zero
	if n := len(p.DailyReturns); n > 0 {
		prev := p.DailyReturns[n-1].Equity
		if prev.GreaterThan(decimal.Zero) {
			ret = p.TotalEquity.Sub(prev).Div(prev)
		}
	}
	dr := DailyReturn{Timestamp: ts, Return: ret, Equity: p.TotalEquity}
	p.DailyReturns = append(p.DailyReturns, dr)
	return dr
}
