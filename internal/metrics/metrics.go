// Package metrics exposes Prometheus instrumentation for the trading
// engines and a small HTTP server for scraping and health checks.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OrdersTotal counts orders by symbol, side, and terminal status.
	OrdersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "glowback_orders_total",
		Help: "Orders processed, labeled by symbol, side, and status.",
	}, []string{"symbol", "side", "status"})

	// FillsTotal counts executions by symbol and side.
	FillsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "glowback_fills_total",
		Help: "Fills recorded, labeled by symbol and side.",
	}, []string{"symbol", "side"})

	// RiskRejectionsTotal counts risk-gate rejections by reason.
	RiskRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "glowback_risk_rejections_total",
		Help: "Orders rejected by the pre-trade risk checks, by check.",
	}, []string{"check"})

	// CircuitBreakerTrips counts daily-loss circuit breaker activations.
	CircuitBreakerTrips = promauto.NewCounter(prometheus.CounterOpts{
		Name: "glowback_circuit_breaker_trips_total",
		Help: "Times the daily-loss circuit breaker tripped.",
	})

	// EquityCurrent is the latest total portfolio equity.
	EquityCurrent = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "glowback_equity_current",
		Help: "Current total portfolio equity.",
	})

	// EquityHighWaterMark is the running peak equity.
	EquityHighWaterMark = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "glowback_equity_high_water_mark",
		Help: "Peak portfolio equity observed this run.",
	})

	// DrawdownCurrent is the fractional drawdown from the peak.
	DrawdownCurrent = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "glowback_drawdown_current",
		Help: "Current drawdown from the high-water mark, as a fraction.",
	})

	// CashCurrent is the latest free cash balance.
	CashCurrent = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "glowback_cash_current",
		Help: "Current free cash.",
	})

	// PositionsOpen is the number of open positions.
	PositionsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "glowback_positions_open",
		Help: "Number of currently open positions.",
	})

	// BacktestDuration observes wall-clock backtest run times.
	BacktestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "glowback_backtest_duration_seconds",
		Help:    "Wall-clock duration of completed backtest runs.",
		Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
	})

	// BrokerConnected reports the broker connection state.
	BrokerConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "glowback_broker_connected",
		Help: "1 when the broker connection is up, 0 otherwise.",
	})

	// HeartbeatTimestamp is the unix time of the last engine event.
	HeartbeatTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "glowback_heartbeat_timestamp",
		Help: "Unix timestamp of the last processed engine event.",
	})

	// ErrorsTotal counts internal errors by component.
	ErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "glowback_errors_total",
		Help: "Internal errors, labeled by component.",
	}, []string{"component"})
)
