package metrics

import (
	"time"

	"github.com/shopspring/decimal"
)

// Recorder is the write-side facade over the package collectors. All
// methods are safe on a nil receiver, so components can hold an
// optional *Recorder without guarding every call site.
type Recorder struct{}

// NewRecorder creates a metrics recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// RecordOrder records an order reaching a status.
func (r *Recorder) RecordOrder(symbol, side, status string) {
	if r == nil {
		return
	}
	OrdersTotal.WithLabelValues(symbol, side, status).Inc()
}

// RecordFill records one execution.
func (r *Recorder) RecordFill(symbol, side string) {
	if r == nil {
		return
	}
	FillsTotal.WithLabelValues(symbol, side).Inc()
}

// RecordRiskRejection records a pre-trade check rejection.
func (r *Recorder) RecordRiskRejection(check string) {
	if r == nil {
		return
	}
	RiskRejectionsTotal.WithLabelValues(check).Inc()
}

// RecordCircuitBreakerTrip records a circuit breaker activation.
func (r *Recorder) RecordCircuitBreakerTrip() {
	if r == nil {
		return
	}
	CircuitBreakerTrips.Inc()
}

// RecordEquity records the equity, peak, and drawdown gauges together.
func (r *Recorder) RecordEquity(current, highWaterMark, drawdown decimal.Decimal) {
	if r == nil {
		return
	}
	EquityCurrent.Set(current.InexactFloat64())
	EquityHighWaterMark.Set(highWaterMark.InexactFloat64())
	DrawdownCurrent.Set(drawdown.InexactFloat64())
}

// RecordCash records the free cash gauge.
func (r *Recorder) RecordCash(cash decimal.Decimal) {
	if r == nil {
		return
	}
	CashCurrent.Set(cash.InexactFloat64())
}

// RecordOpenPositions records the open position count.
func (r *Recorder) RecordOpenPositions(count int) {
	if r == nil {
		return
	}
	PositionsOpen.Set(float64(count))
}

// RecordBacktestDuration observes one completed backtest run.
func (r *Recorder) RecordBacktestDuration(d time.Duration) {
	if r == nil {
		return
	}
	BacktestDuration.Observe(d.Seconds())
}

// RecordBrokerStatus records the broker connection state.
func (r *Recorder) RecordBrokerStatus(connected bool) {
	if r == nil {
		return
	}
	if connected {
		BrokerConnected.Set(1)
	} else {
		BrokerConnected.Set(0)
	}
}

// RecordHeartbeat marks the engine as alive.
func (r *Recorder) RecordHeartbeat() {
	if r == nil {
		return
	}
	HeartbeatTimestamp.Set(float64(time.Now().Unix()))
}

// RecordError counts an internal error for a component.
func (r *Recorder) RecordError(component string) {
	if r == nil {
		return
	}
	ErrorsTotal.WithLabelValues(component).Inc()
}
