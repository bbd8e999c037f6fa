package alerting

import (
	"context"
	"strings"
	"sync"
)

// CapturedAlert is one notification recorded by a CaptureAlerter.
type CapturedAlert struct {
	Severity Severity
	Message  string
	Fields   []any
}

// CaptureAlerter records alerts in memory so tests can assert on what
// was sent. It can also be primed to fail, for exercising delivery
// error paths.
type CaptureAlerter struct {
	mu       sync.Mutex
	captured []CapturedAlert
	failErr  error
}

var _ Alerter = (*CaptureAlerter)(nil)

// NewCaptureAlerter returns an empty capture alerter.
func NewCaptureAlerter() *CaptureAlerter {
	return &CaptureAlerter{}
}

// Name identifies the alerter.
func (c *CaptureAlerter) Name() string {
	return "capture"
}

// FailWith makes every subsequent Alert call return err. Pass nil to
// restore normal capture.
func (c *CaptureAlerter) FailWith(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failErr = err
}

// Alert records the notification, or fails if primed via FailWith.
func (c *CaptureAlerter) Alert(_ context.Context, severity Severity, message string, fields ...any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failErr != nil {
		return c.failErr
	}
	c.captured = append(c.captured, CapturedAlert{
		Severity: severity,
		Message:  message,
		Fields:   fields,
	})
	return nil
}

// All returns a copy of every captured alert in send order.
func (c *CaptureAlerter) All() []CapturedAlert {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]CapturedAlert(nil), c.captured...)
}

// Len reports how many alerts were captured.
func (c *CaptureAlerter) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.captured)
}

// Last returns the most recent capture, if any.
func (c *CaptureAlerter) Last() (CapturedAlert, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.captured) == 0 {
		return CapturedAlert{}, false
	}
	return c.captured[len(c.captured)-1], true
}

// SeenSeverity reports whether any capture carried the severity.
func (c *CaptureAlerter) SeenSeverity(severity Severity) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, a := range c.captured {
		if a.Severity == severity {
			return true
		}
	}
	return false
}

// SeenMessage reports whether any captured message contains substr.
func (c *CaptureAlerter) SeenMessage(substr string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, a := range c.captured {
		if strings.Contains(a.Message, substr) {
			return true
		}
	}
	return false
}

// Reset discards all captures and clears any primed failure.
func (c *CaptureAlerter) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.captured = nil
	c.failErr = nil
}
