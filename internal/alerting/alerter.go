// Package alerting delivers trading notifications to one or more
// channels.
package alerting

import (
	"context"
	"errors"
	"fmt"
)

// ErrDelivery is returned when one or more alert channels fail to
// deliver a notification.
var ErrDelivery = errors.New("alert delivery failed")

// Severity represents the alert severity level.
type Severity int

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = iota
	// SeverityWarning is for warning messages.
	SeverityWarning
	// SeverityHigh is for high priority alerts.
	SeverityHigh
	// SeverityCritical is for critical alerts requiring immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// Emoji returns an emoji for the severity level.
func (s Severity) Emoji() string {
	switch s {
	case SeverityInfo:
		return "ℹ️"
	case SeverityWarning:
		return "⚠️"
	case SeverityHigh:
		return "🔴"
	case SeverityCritical:
		return "🚨"
	default:
		return "❓"
	}
}

// Alerter defines the interface for sending alerts.
type Alerter interface {
	// Alert sends an alert with the given severity and message.
	Alert(ctx context.Context, severity Severity, message string, fields ...any) error
	// Name returns the name of the alerter.
	Name() string
}

// FormatFields converts variadic key-value fields to a bullet list.
func FormatFields(fields ...any) string {
	if len(fields) == 0 {
		return ""
	}

	result := ""
	for i := 0; i < len(fields)-1; i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		value := fields[i+1]
		if result != "" {
			result += "\n"
		}
		result += fmt.Sprintf("• %s: %v", key, value)
	}
	return result
}

// AlertEvent represents a pre-defined alert event type.
type AlertEvent string

const (
	// EventCircuitBreakerTripped is sent when the daily loss breaker fires.
	EventCircuitBreakerTripped AlertEvent = "circuit_breaker_tripped"
	// EventOrderFilled is sent when an order is filled.
	EventOrderFilled AlertEvent = "order_filled"
	// EventOrderRejected is sent when an order is rejected by risk or broker.
	EventOrderRejected AlertEvent = "order_rejected"
	// EventDailySummary is sent with the end-of-day portfolio summary.
	EventDailySummary AlertEvent = "daily_summary"
	// EventBrokerDisconnected is sent when the broker connection drops.
	EventBrokerDisconnected AlertEvent = "broker_disconnected"
	// EventBrokerReconnected is sent when the broker connection recovers.
	EventBrokerReconnected AlertEvent = "broker_reconnected"
	// EventEngineStarted is sent when a trading session starts.
	EventEngineStarted AlertEvent = "engine_started"
	// EventEngineStopped is sent when a trading session stops.
	EventEngineStopped AlertEvent = "engine_stopped"
	// EventBacktestCompleted is sent when a backtest run finishes.
	EventBacktestCompleted AlertEvent = "backtest_completed"
)

// EventSeverity returns the default severity for an event.
func EventSeverity(event AlertEvent) Severity {
	switch event {
	case EventCircuitBreakerTripped:
		return SeverityCritical
	case EventBrokerDisconnected:
		return SeverityHigh
	case EventOrderRejected:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}
