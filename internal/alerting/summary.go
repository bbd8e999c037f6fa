package alerting

import (
	"time"

	"github.com/shopspring/decimal"
)

// DailySummary contains end-of-day portfolio statistics for the
// summary report.
type DailySummary struct {
	Date                  time.Time
	StartingEquity        decimal.Decimal
	EndingEquity          decimal.Decimal
	HighWaterMark         decimal.Decimal
	TotalPnL              decimal.Decimal
	ReturnPct             decimal.Decimal
	DrawdownPct           decimal.Decimal
	TotalFills            int
	OpenPositions         int
	CircuitBreakerTripped bool
}

// NewDailySummary derives the percentage figures from the raw equity
// numbers.
func NewDailySummary(
	date time.Time,
	startEquity, endEquity, highWater decimal.Decimal,
	totalFills, openPositions int,
	breakerTripped bool,
) DailySummary {
	totalPnL := endEquity.Sub(startEquity)

	var returnPct decimal.Decimal
	if !startEquity.IsZero() {
		returnPct = totalPnL.Div(startEquity).Mul(decimal.NewFromInt(100))
	}

	var drawdownPct decimal.Decimal
	if !highWater.IsZero() {
		drawdownPct = highWater.Sub(endEquity).Div(highWater).Mul(decimal.NewFromInt(100))
		if drawdownPct.IsNegative() {
			drawdownPct = decimal.Zero
		}
	}

	return DailySummary{
		Date:                  date,
		StartingEquity:        startEquity,
		EndingEquity:          endEquity,
		HighWaterMark:         highWater,
		TotalPnL:              totalPnL,
		ReturnPct:             returnPct,
		DrawdownPct:           drawdownPct,
		TotalFills:            totalFills,
		OpenPositions:         openPositions,
		CircuitBreakerTripped: breakerTripped,
	}
}
