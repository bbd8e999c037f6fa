package backtest

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"
)

// metricSaturated stands in for ratios whose denominator vanished in
// the trader's favor, such as a profit factor with no losing trades.
var metricSaturated = decimal.NewFromInt(9999)

var tradingDaysPerYear = decimal.NewFromInt(252)

// PerformanceMetrics summarizes a completed run. VaR95 and CVaR95 are
// nil when fewer than 20 return observations exist; Skewness and
// Kurtosis likewise require 3 and 4 observations respectively.
type PerformanceMetrics struct {
	TotalReturn         decimal.Decimal
	AnnualizedReturn    decimal.Decimal
	Volatility          decimal.Decimal
	SharpeRatio         decimal.Decimal
	SortinoRatio        decimal.Decimal
	CalmarRatio         decimal.Decimal
	MaxDrawdown         decimal.Decimal
	MaxDrawdownDuration int
	WinRate             decimal.Decimal
	ProfitFactor        decimal.Decimal
	TotalTrades         int
	WinningTrades       int
	LosingTrades        int
	AverageWin          decimal.Decimal
	AverageLoss         decimal.Decimal
	Expectancy          decimal.Decimal
	VaR95               *decimal.Decimal
	CVaR95              *decimal.Decimal
	Skewness            *decimal.Decimal
	Kurtosis            *decimal.Decimal
}

// ComputeMetrics derives performance metrics from an equity curve and
// trade log. riskFreeRate is annual, e.g. 0.05 for 5%.
func ComputeMetrics(curve []EquityPoint, trades []TradeRecord, riskFreeRate decimal.Decimal) *PerformanceMetrics {
	m := &PerformanceMetrics{}

	returns := dailyReturns(curve)

	m.TotalReturn = totalReturn(curve)
	m.AnnualizedReturn = annualizedReturn(curve, m.TotalReturn)
	m.Volatility = annualizedVolatility(returns)
	m.SharpeRatio = sharpeRatio(returns, riskFreeRate)
	m.SortinoRatio = sortinoRatio(returns, riskFreeRate)
	m.MaxDrawdown, m.MaxDrawdownDuration = maxDrawdown(curve)
	if m.MaxDrawdown.IsPositive() {
		m.CalmarRatio = m.AnnualizedReturn.Div(m.MaxDrawdown)
	}

	m.tradeStats(trades)
	m.tailStats(returns)
	return m
}

// tradeStats fills the per-trade fields. Only fills that realized P&L
// count toward wins and losses; opening fills count only toward the
// total.
func (m *PerformanceMetrics) tradeStats(trades []TradeRecord) {
	m.TotalTrades = len(trades)

	grossProfit := decimal.Zero
	grossLoss := decimal.Zero
	for _, trade := range trades {
		switch {
		case trade.RealizedPnL.IsPositive():
			m.WinningTrades++
			grossProfit = grossProfit.Add(trade.RealizedPnL)
		case trade.RealizedPnL.IsNegative():
			m.LosingTrades++
			grossLoss = grossLoss.Add(trade.RealizedPnL.Abs())
		}
	}

	closed := m.WinningTrades + m.LosingTrades
	if closed > 0 {
		m.WinRate = decimal.NewFromInt(int64(m.WinningTrades)).Div(decimal.NewFromInt(int64(closed)))
	}
	if m.WinningTrades > 0 {
		m.AverageWin = grossProfit.Div(decimal.NewFromInt(int64(m.WinningTrades)))
	}
	if m.LosingTrades > 0 {
		m.AverageLoss = grossLoss.Neg().Div(decimal.NewFromInt(int64(m.LosingTrades)))
	}

	switch {
	case grossLoss.IsPositive():
		m.ProfitFactor = grossProfit.Div(grossLoss)
	case grossProfit.IsPositive():
		m.ProfitFactor = metricSaturated
	}

	one := decimal.NewFromInt(1)
	m.Expectancy = m.WinRate.Mul(m.AverageWin).Add(one.Sub(m.WinRate).Mul(m.AverageLoss))
}

// tailStats fills VaR, CVaR, skewness, and kurtosis when enough
// observations exist.
func (m *PerformanceMetrics) tailStats(returns []decimal.Decimal) {
	if len(returns) >= 20 {
		sorted := append([]decimal.Decimal(nil), returns...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })

		idx := int(float64(len(sorted)) * 0.05)
		v := sorted[idx].Neg()
		m.VaR95 = &v
		cv := mean(sorted[:idx+1]).Neg()
		m.CVaR95 = &cv
	}

	if len(returns) >= 3 {
		if s, ok := skewness(returns); ok {
			m.Skewness = &s
		}
	}
	if len(returns) >= 4 {
		if k, ok := kurtosis(returns); ok {
			m.Kurtosis = &k
		}
	}
}

// dailyReturns yields one observation per curve point. The first
// snapshot has no prior day, so its return is zero.
func dailyReturns(curve []EquityPoint) []decimal.Decimal {
	if len(curve) == 0 {
		return nil
	}
	returns := make([]decimal.Decimal, 0, len(curve))
	returns = append(returns, decimal.Zero)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].PortfolioValue
		if prev.IsZero() {
			continue
		}
		returns = append(returns, curve[i].PortfolioValue.Sub(prev).Div(prev))
	}
	return returns
}

func totalReturn(curve []EquityPoint) decimal.Decimal {
	if len(curve) == 0 || curve[0].PortfolioValue.IsZero() {
		return decimal.Zero
	}
	first := curve[0].PortfolioValue
	last := curve[len(curve)-1].PortfolioValue
	return last.Sub(first).Div(first)
}

func annualizedReturn(curve []EquityPoint, total decimal.Decimal) decimal.Decimal {
	if len(curve) < 2 {
		return decimal.Zero
	}

	days := curve[len(curve)-1].Timestamp.Sub(curve[0].Timestamp).Hours() / 24
	years := days / 365
	if years < 0.01 {
		return total
	}

	annualized := math.Pow(1+total.InexactFloat64(), 1/years) - 1
	return decimal.NewFromFloat(annualized)
}

func annualizedVolatility(returns []decimal.Decimal) decimal.Decimal {
	stdDev := standardDeviation(returns)
	if stdDev.IsZero() {
		return decimal.Zero
	}
	return stdDev.Mul(decimal.NewFromFloat(math.Sqrt(252)))
}

// sharpeRatio annualizes (mean - daily risk free) / std dev by sqrt(252).
func sharpeRatio(returns []decimal.Decimal, riskFreeRate decimal.Decimal) decimal.Decimal {
	if len(returns) < 2 {
		return decimal.Zero
	}
	stdDev := standardDeviation(returns)
	if stdDev.IsZero() {
		return decimal.Zero
	}

	dailyRf := riskFreeRate.Div(tradingDaysPerYear)
	excess := mean(returns).Sub(dailyRf)
	return excess.Div(stdDev).Mul(decimal.NewFromFloat(math.Sqrt(252)))
}

// sortinoRatio divides excess return by downside deviation. With no
// losing days the ratio saturates when excess return is positive.
func sortinoRatio(returns []decimal.Decimal, riskFreeRate decimal.Decimal) decimal.Decimal {
	if len(returns) < 2 {
		return decimal.Zero
	}

	dailyRf := riskFreeRate.Div(tradingDaysPerYear)
	excess := mean(returns).Sub(dailyRf)

	downsideDev := downsideDeviation(returns, decimal.Zero)
	if downsideDev.IsZero() {
		if excess.IsPositive() {
			return metricSaturated
		}
		return decimal.Zero
	}
	return excess.Div(downsideDev).Mul(decimal.NewFromFloat(math.Sqrt(252)))
}

// maxDrawdown returns the deepest peak-to-trough drawdown and the
// longest run of consecutive points spent below a running peak.
func maxDrawdown(curve []EquityPoint) (decimal.Decimal, int) {
	if len(curve) == 0 {
		return decimal.Zero, 0
	}

	peak := curve[0].PortfolioValue
	maxDD := decimal.Zero
	longest := 0
	underwater := 0

	for _, point := range curve {
		if point.PortfolioValue.GreaterThan(peak) {
			peak = point.PortfolioValue
			underwater = 0
			continue
		}
		underwater++
		if underwater > longest {
			longest = underwater
		}
		if peak.IsPositive() {
			dd := peak.Sub(point.PortfolioValue).Div(peak)
			if dd.GreaterThan(maxDD) {
				maxDD = dd
			}
		}
	}
	return maxDD, longest
}

// skewness computes the sample skewness. Returns false when the
// returns have no dispersion.
func skewness(returns []decimal.Decimal) (decimal.Decimal, bool) {
	n := float64(len(returns))
	mu := mean(returns).InexactFloat64()
	sd := standardDeviation(returns).InexactFloat64()
	if sd == 0 {
		return decimal.Zero, false
	}

	sum := 0.0
	for _, r := range returns {
		z := (r.InexactFloat64() - mu) / sd
		sum += z * z * z
	}
	skew := n / ((n - 1) * (n - 2)) * sum
	return decimal.NewFromFloat(skew), true
}

// kurtosis computes the sample excess kurtosis.
func kurtosis(returns []decimal.Decimal) (decimal.Decimal, bool) {
	n := float64(len(returns))
	mu := mean(returns).InexactFloat64()
	sd := standardDeviation(returns).InexactFloat64()
	if sd == 0 {
		return decimal.Zero, false
	}

	sum := 0.0
	for _, r := range returns {
		z := (r.InexactFloat64() - mu) / sd
		sum += z * z * z * z
	}
	k := n * (n + 1) / ((n - 1) * (n - 2) * (n - 3)) * sum
	k -= 3 * (n - 1) * (n - 1) / ((n - 2) * (n - 3))
	return decimal.NewFromFloat(k), true
}

func mean(values []decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(v)
	}
	return sum.Div(decimal.NewFromInt(int64(len(values))))
}

// standardDeviation is the sample standard deviation, with the square
// root taken in float space.
func standardDeviation(values []decimal.Decimal) decimal.Decimal {
	if len(values) < 2 {
		return decimal.Zero
	}

	m := mean(values)
	sumSquares := decimal.Zero
	for _, v := range values {
		diff := v.Sub(m)
		sumSquares = sumSquares.Add(diff.Mul(diff))
	}
	variance := sumSquares.Div(decimal.NewFromInt(int64(len(values) - 1)))
	return decimal.NewFromFloat(math.Sqrt(variance.InexactFloat64()))
}

// downsideDeviation is the standard deviation of the returns below
// target, zero when fewer than two such returns exist.
func downsideDeviation(returns []decimal.Decimal, target decimal.Decimal) decimal.Decimal {
	negative := make([]decimal.Decimal, 0, len(returns))
	for _, r := range returns {
		if r.LessThan(target) {
			negative = append(negative, r)
		}
	}
	if len(negative) < 2 {
		return decimal.Zero
	}
	return standardDeviation(negative)
}
