package live

import (
	"time"

	"github.com/glowback/glowback/internal/types"
)

// EventType classifies engine-level events.
type EventType int

const (
	EventStarted EventType = iota
	EventStopped
	EventOrderSubmitted
	EventOrderRejectedByRisk
	EventOrderRejectedByBroker
	EventOrderFilled
	EventCircuitBreakerTripped
)

func (t EventType) String() string {
	switch t {
	case EventStarted:
		return "STARTED"
	case EventStopped:
		return "STOPPED"
	case EventOrderSubmitted:
		return "ORDER_SUBMITTED"
	case EventOrderRejectedByRisk:
		return "ORDER_REJECTED_BY_RISK"
	case EventOrderRejectedByBroker:
		return "ORDER_REJECTED_BY_BROKER"
	case EventOrderFilled:
		return "ORDER_FILLED"
	case EventCircuitBreakerTripped:
		return "CIRCUIT_BREAKER_TRIPPED"
	default:
		return "UNKNOWN"
	}
}

// Event is one engine-level occurrence, buffered until drained. The
// buffer decouples the engine from any particular UI or logging sink.
type Event struct {
	Type      EventType
	Timestamp time.Time
	OrderID   string
	Symbol    types.Symbol
	Reason    string
}
