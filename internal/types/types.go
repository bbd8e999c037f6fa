// Package types defines shared types used across the trading platform.
package types

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// AssetClass categorizes the kind of instrument a symbol refers to.
type AssetClass int

const (
	AssetEquity AssetClass = iota
	AssetCrypto
	AssetForex
	AssetCommodity
	AssetBond
)

func (a AssetClass) String() string {
	switch a {
	case AssetEquity:
		return "EQUITY"
	case AssetCrypto:
		return "CRYPTO"
	case AssetForex:
		return "FOREX"
	case AssetCommodity:
		return "COMMODITY"
	case AssetBond:
		return "BOND"
	default:
		return "UNKNOWN"
	}
}

// Symbol identifies one tradable instrument. It is a comparable value
// and is used as a map key throughout the platform.
type Symbol struct {
	Ticker     string
	Exchange   string
	AssetClass AssetClass
}

// NewSymbol creates a symbol for the given ticker and exchange.
func NewSymbol(ticker, exchange string, class AssetClass) Symbol {
	return Symbol{Ticker: ticker, Exchange: exchange, AssetClass: class}
}

// NewEquity creates an equity symbol.
func NewEquity(ticker, exchange string) Symbol {
	return NewSymbol(ticker, exchange, AssetEquity)
}

func (s Symbol) String() string {
	if s.Exchange == "" {
		return s.Ticker
	}
	return fmt.Sprintf("%s:%s", s.Exchange, s.Ticker)
}

// Resolution is the period covered by one bar.
type Resolution int

const (
	ResolutionMinute Resolution = iota
	ResolutionFiveMinute
	ResolutionHour
	ResolutionDay
)

func (r Resolution) String() string {
	switch r {
	case ResolutionMinute:
		return "1m"
	case ResolutionFiveMinute:
		return "5m"
	case ResolutionHour:
		return "1h"
	case ResolutionDay:
		return "1d"
	default:
		return "unknown"
	}
}

// Duration returns the wall-clock span of one bar at this resolution.
func (r Resolution) Duration() time.Duration {
	switch r {
	case ResolutionMinute:
		return time.Minute
	case ResolutionFiveMinute:
		return 5 * time.Minute
	case ResolutionHour:
		return time.Hour
	default:
		return 24 * time.Hour
	}
}

// Bar is one OHLCV candle for a symbol. Immutable once produced.
type Bar struct {
	Symbol     Symbol
	Timestamp  time.Time
	Open       decimal.Decimal
	High       decimal.Decimal
	Low        decimal.Decimal
	Close      decimal.Decimal
	Volume     decimal.Decimal
	Resolution Resolution
}

// Validate checks basic OHLC consistency.
func (b Bar) Validate() error {
	if b.High.LessThan(b.Low) {
		return fmt.Errorf("%w: high %s below low %s", ErrInvalidData, b.High, b.Low)
	}
	if b.Open.LessThan(b.Low) || b.Open.GreaterThan(b.High) {
		return fmt.Errorf("%w: open %s outside bar range", ErrInvalidData, b.Open)
	}
	if b.Close.LessThan(b.Low) || b.Close.GreaterThan(b.High) {
		return fmt.Errorf("%w: close %s outside bar range", ErrInvalidData, b.Close)
	}
	return nil
}

// MarketEvent is a market data update for one symbol. Bar is set for
// candle updates; Price always carries the latest trade price (the bar
// close when Bar is present).
type MarketEvent struct {
	Symbol    Symbol
	Timestamp time.Time
	Bar       *Bar
	Price     decimal.Decimal
}

// NewBarEvent wraps a bar as a market event.
func NewBarEvent(bar Bar) MarketEvent {
	b := bar
	return MarketEvent{
		Symbol:    bar.Symbol,
		Timestamp: bar.Timestamp,
		Bar:       &b,
		Price:     bar.Close,
	}
}

// Side represents the direction of an order or fill.
type Side int

const (
	SideBuy Side = iota
	SideSell
)

func (s Side) String() string {
	if s == SideSell {
		return "SELL"
	}
	return "BUY"
}

// Opposite returns the opposite side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// Sign returns +1 for a buy and -1 for a sell, as a decimal multiplier
// for signed position arithmetic.
func (s Side) Sign() decimal.Decimal {
	if s == SideSell {
		return decimal.NewFromInt(-1)
	}
	return decimal.NewFromInt(1)
}

// OrderEvent notifies a strategy about an order lifecycle change.
type OrderEvent struct {
	OrderID   string
	Symbol    Symbol
	Status    OrderStatus
	Fill      *Fill
	Timestamp time.Time
}
