package types

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for the trading platform.
var (
	// Configuration and validation errors, fatal at construction.
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrInvalidSymbol    = errors.New("invalid symbol")
	ErrInvalidDateRange = errors.New("invalid date range")
	ErrEmptySymbols     = errors.New("no symbols configured")

	// Data errors.
	ErrInsufficientData = errors.New("insufficient market data")
	ErrDataUnavailable  = errors.New("market data unavailable")
	ErrInvalidData      = errors.New("invalid market data")

	// Order errors.
	ErrInvalidTransition = errors.New("invalid order state transition")
	ErrInvalidQuantity   = errors.New("invalid quantity")
	ErrOrderNotFound     = errors.New("order not found")

	// Broker and engine errors.
	ErrNotConnected  = errors.New("not connected to broker")
	ErrEngineRunning = errors.New("engine already running")
	ErrEngineStopped = errors.New("engine not running")
)

// BrokerErrorKind enumerates the closed taxonomy of broker failures.
type BrokerErrorKind int

const (
	BrokerErrNotConnected BrokerErrorKind = iota
	BrokerErrOrderRejected
	BrokerErrOrderNotFound
	BrokerErrAuthenticationFailed
	BrokerErrRateLimited
	BrokerErrInternal
)

func (k BrokerErrorKind) String() string {
	switch k {
	case BrokerErrNotConnected:
		return "NOT_CONNECTED"
	case BrokerErrOrderRejected:
		return "ORDER_REJECTED"
	case BrokerErrOrderNotFound:
		return "ORDER_NOT_FOUND"
	case BrokerErrAuthenticationFailed:
		return "AUTHENTICATION_FAILED"
	case BrokerErrRateLimited:
		return "RATE_LIMITED"
	default:
		return "INTERNAL"
	}
}

// BrokerError is a structured broker failure. Use errors.As to inspect
// the kind; NotConnected and OrderNotFound kinds also match their
// sentinel via errors.Is.
type BrokerError struct {
	Kind       BrokerErrorKind
	Reason     string
	OrderID    string
	RetryAfter time.Duration
}

func (e *BrokerError) Error() string {
	switch e.Kind {
	case BrokerErrNotConnected:
		return "not connected to broker"
	case BrokerErrOrderRejected:
		return fmt.Sprintf("order rejected by broker: %s", e.Reason)
	case BrokerErrOrderNotFound:
		return fmt.Sprintf("order not found: %s", e.OrderID)
	case BrokerErrAuthenticationFailed:
		return fmt.Sprintf("authentication failed: %s", e.Reason)
	case BrokerErrRateLimited:
		return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
	default:
		return fmt.Sprintf("broker internal error: %s", e.Reason)
	}
}

// Is maps broker error kinds onto the matching sentinels so callers can
// use errors.Is without unwrapping the struct.
func (e *BrokerError) Is(target error) bool {
	switch target {
	case ErrNotConnected:
		return e.Kind == BrokerErrNotConnected
	case ErrOrderNotFound:
		return e.Kind == BrokerErrOrderNotFound
	default:
		return false
	}
}

// NewBrokerNotConnected reports an operation attempted while
// disconnected.
func NewBrokerNotConnected() *BrokerError {
	return &BrokerError{Kind: BrokerErrNotConnected}
}

// NewBrokerOrderRejected reports a broker-side rejection.
func NewBrokerOrderRejected(reason string) *BrokerError {
	return &BrokerError{Kind: BrokerErrOrderRejected, Reason: reason}
}

// NewBrokerOrderNotFound reports an unknown order id.
func NewBrokerOrderNotFound(orderID string) *BrokerError {
	return &BrokerError{Kind: BrokerErrOrderNotFound, OrderID: orderID}
}

// NewBrokerRateLimited reports throttling with a retry hint.
func NewBrokerRateLimited(retryAfter time.Duration) *BrokerError {
	return &BrokerError{Kind: BrokerErrRateLimited, RetryAfter: retryAfter}
}

// NewBrokerInternal reports an unclassified broker failure.
func NewBrokerInternal(reason string) *BrokerError {
	return &BrokerError{Kind: BrokerErrInternal, Reason: reason}
}
