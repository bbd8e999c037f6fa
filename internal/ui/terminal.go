// Package ui renders backtest progress and results to the terminal.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/term"

	"github.com/glowback/glowback/internal/backtest"
)

// ANSI escape codes
const (
	clearLine   = "\033[2K"
	moveToStart = "\r"
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorCyan   = "\033[36m"
	colorDim    = "\033[2m"
	colorBold   = "\033[1m"
)

// ProgressBar renders a single updating line of backtest progress.
type ProgressBar struct {
	out         io.Writer
	width       int
	color       bool
	startEquity decimal.Decimal
	started     time.Time
}

// NewProgressBar writes to stdout, sizing the bar to the terminal.
// Color is disabled when stdout is not a terminal.
func NewProgressBar(startEquity decimal.Decimal) *ProgressBar {
	fd := int(os.Stdout.Fd())
	isTerm := term.IsTerminal(fd)

	width := 80
	if isTerm {
		if w, _, err := term.GetSize(fd); err == nil && w > 0 {
			width = w
		}
	}

	return &ProgressBar{
		out:         os.Stdout,
		width:       width,
		color:       isTerm,
		startEquity: startEquity,
		started:     time.Now(),
	}
}

// Update redraws the progress line for the given state.
func (p *ProgressBar) Update(update backtest.ProgressUpdate) {
	barWidth := p.width - 55
	if barWidth < 10 {
		barWidth = 10
	}
	filled := int(update.Progress * float64(barWidth))
	if filled > barWidth {
		filled = barWidth
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)

	pnlPct := decimal.Zero
	if !p.startEquity.IsZero() {
		pnlPct = update.Equity.Sub(p.startEquity).Div(p.startEquity).Mul(decimal.NewFromInt(100))
	}
	pnlColor := p.paint(colorGreen)
	if pnlPct.IsNegative() {
		pnlColor = p.paint(colorRed)
	}

	fmt.Fprintf(p.out, "%s%s%s%s%s %5.1f%% %s │ $%.0f (%s%+.2f%%%s) │ %d trades",
		clearLine, moveToStart,
		p.paint(colorCyan), bar, p.paint(colorReset),
		update.Progress*100,
		update.Timestamp.Format("2006-01-02"),
		update.Equity.InexactFloat64(),
		pnlColor, pnlPct.InexactFloat64(), p.paint(colorReset),
		update.Trades,
	)
}

// Finish terminates the progress line.
func (p *ProgressBar) Finish() {
	fmt.Fprintf(p.out, "%s%s", clearLine, moveToStart)
	fmt.Fprintf(p.out, "done in %s\n", time.Since(p.started).Round(time.Millisecond))
}

func (p *ProgressBar) paint(code string) string {
	if !p.color {
		return ""
	}
	return code
}

// RenderSummary writes a human-readable result report.
func RenderSummary(w io.Writer, result *backtest.Result) {
	fmt.Fprintf(w, "\n%s  %s\n", result.Config.Name, result.Status)
	fmt.Fprintf(w, "%s\n", strings.Repeat("─", 46))

	if result.Err != nil {
		fmt.Fprintf(w, "error: %v\n", result.Err)
	}

	if pf := result.FinalPortfolio; pf != nil {
		writeRow(w, "Initial Capital", "$"+result.Config.InitialCapital.StringFixed(2))
		writeRow(w, "Final Equity", "$"+pf.TotalEquity.StringFixed(2))
		writeRow(w, "Cash", "$"+pf.Cash.StringFixed(2))
		writeRow(w, "Realized P&L", "$"+pf.RealizedPnL.StringFixed(2))
		writeRow(w, "Unrealized P&L", "$"+pf.UnrealizedPnL.StringFixed(2))
		writeRow(w, "Commissions", "$"+pf.TotalCommissions.StringFixed(2))
	}

	perf := result.Performance
	if perf == nil {
		return
	}

	fmt.Fprintf(w, "%s\n", strings.Repeat("─", 46))
	writeRow(w, "Total Return", pct(perf.TotalReturn))
	writeRow(w, "Annualized Return", pct(perf.AnnualizedReturn))
	writeRow(w, "Volatility", pct(perf.Volatility))
	writeRow(w, "Sharpe Ratio", perf.SharpeRatio.StringFixed(2))
	writeRow(w, "Sortino Ratio", perf.SortinoRatio.StringFixed(2))
	writeRow(w, "Calmar Ratio", perf.CalmarRatio.StringFixed(2))
	writeRow(w, "Max Drawdown", pct(perf.MaxDrawdown))
	writeRow(w, "Drawdown Duration", fmt.Sprintf("%d days", perf.MaxDrawdownDuration))

	fmt.Fprintf(w, "%s\n", strings.Repeat("─", 46))
	writeRow(w, "Trades", fmt.Sprintf("%d (%dW / %dL)", perf.TotalTrades, perf.WinningTrades, perf.LosingTrades))
	writeRow(w, "Win Rate", pct(perf.WinRate))
	writeRow(w, "Profit Factor", perf.ProfitFactor.StringFixed(2))
	writeRow(w, "Average Win", "$"+perf.AverageWin.StringFixed(2))
	writeRow(w, "Average Loss", "$"+perf.AverageLoss.StringFixed(2))
	writeRow(w, "Expectancy", "$"+perf.Expectancy.StringFixed(2))

	if perf.VaR95 != nil && perf.CVaR95 != nil {
		writeRow(w, "VaR 95%", pct(*perf.VaR95))
		writeRow(w, "CVaR 95%", pct(*perf.CVaR95))
	}
	if perf.Skewness != nil {
		writeRow(w, "Skewness", perf.Skewness.StringFixed(3))
	}
	if perf.Kurtosis != nil {
		writeRow(w, "Excess Kurtosis", perf.Kurtosis.StringFixed(3))
	}

	if sample, ok := result.Metadata["sample_data"]; ok {
		fmt.Fprintf(w, "%s\n", strings.Repeat("─", 46))
		fmt.Fprintf(w, "note: synthetic data used for %s\n", sample)
	}
}

func writeRow(w io.Writer, label, value string) {
	fmt.Fprintf(w, "%-24s %20s\n", label, value)
}

func pct(d decimal.Decimal) string {
	return d.Mul(decimal.NewFromInt(100)).StringFixed(2) + "%"
}
