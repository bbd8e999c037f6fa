package alerting

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestSeverity_String(t *testing.T) {
	tests := []struct {
		severity Severity
		want     string
	}{
		{SeverityInfo, "INFO"},
		{SeverityWarning, "WARNING"},
		{SeverityHigh, "HIGH"},
		{SeverityCritical, "CRITICAL"},
		{Severity(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.severity.String(); got != tt.want {
				t.Errorf("Severity.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSeverity_Emoji(t *testing.T) {
	tests := []struct {
		severity Severity
		want     string
	}{
		{SeverityInfo, "ℹ️"},
		{SeverityWarning, "⚠️"},
		{SeverityHigh, "🔴"},
		{SeverityCritical, "🚨"},
		{Severity(99), "❓"},
	}

	for _, tt := range tests {
		t.Run(tt.severity.String(), func(t *testing.T) {
			if got := tt.severity.Emoji(); got != tt.want {
				t.Errorf("Severity.Emoji() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFormatFields(t *testing.T) {
	tests := []struct {
		name   string
		fields []any
		want   string
	}{
		{
			name:   "empty fields",
			fields: nil,
			want:   "",
		},
		{
			name:   "single field",
			fields: []any{"key", "value"},
			want:   "• key: value",
		},
		{
			name:   "multiple fields",
			fields: []any{"key1", "value1", "key2", 123},
			want:   "• key1: value1\n• key2: 123",
		},
		{
			name:   "odd number of fields",
			fields: []any{"key1", "value1", "orphan"},
			want:   "• key1: value1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatFields(tt.fields...); got != tt.want {
				t.Errorf("FormatFields() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEventSeverity(t *testing.T) {
	tests := []struct {
		event AlertEvent
		want  Severity
	}{
		{EventCircuitBreakerTripped, SeverityCritical},
		{EventBrokerDisconnected, SeverityHigh},
		{EventOrderRejected, SeverityWarning},
		{EventOrderFilled, SeverityInfo},
		{EventDailySummary, SeverityInfo},
		{EventBrokerReconnected, SeverityInfo},
		{EventEngineStarted, SeverityInfo},
		{EventEngineStopped, SeverityInfo},
		{EventBacktestCompleted, SeverityInfo},
		{AlertEvent("unknown"), SeverityInfo},
	}

	for _, tt := range tests {
		t.Run(string(tt.event), func(t *testing.T) {
			if got := EventSeverity(tt.event); got != tt.want {
				t.Errorf("EventSeverity(%s) = %v, want %v", tt.event, got, tt.want)
			}
		})
	}
}

func TestCaptureAlerter(t *testing.T) {
	capture := NewCaptureAlerter()
	ctx := context.Background()

	if capture.Len() != 0 {
		t.Errorf("Len() = %d before any alert, want 0", capture.Len())
	}
	if _, ok := capture.Last(); ok {
		t.Error("Last() reported a capture before any alert")
	}

	if err := capture.Alert(ctx, SeverityInfo, "position opened", "ticker", "AAPL"); err != nil {
		t.Fatalf("Alert() error = %v", err)
	}
	if capture.Len() != 1 {
		t.Errorf("Len() = %d, want 1", capture.Len())
	}

	last, ok := capture.Last()
	if !ok {
		t.Fatal("Last() found nothing after an alert")
	}
	if last.Severity != SeverityInfo {
		t.Errorf("severity = %v, want SeverityInfo", last.Severity)
	}
	if last.Message != "position opened" {
		t.Errorf("message = %q, want %q", last.Message, "position opened")
	}

	if !capture.SeenMessage("position") {
		t.Error("SeenMessage(position) = false, want true")
	}
	if capture.SeenMessage("margin call") {
		t.Error("SeenMessage(margin call) = true, want false")
	}
	if !capture.SeenSeverity(SeverityInfo) {
		t.Error("SeenSeverity(SeverityInfo) = false, want true")
	}
	if capture.SeenSeverity(SeverityCritical) {
		t.Error("SeenSeverity(SeverityCritical) = true, want false")
	}

	capture.Reset()
	if capture.Len() != 0 {
		t.Errorf("Len() = %d after Reset, want 0", capture.Len())
	}
}

func TestCaptureAlerterFailWith(t *testing.T) {
	capture := NewCaptureAlerter()
	primed := errors.New("network down")
	capture.FailWith(primed)

	if err := capture.Alert(context.Background(), SeverityHigh, "anything"); !errors.Is(err, primed) {
		t.Errorf("Alert() error = %v, want %v", err, primed)
	}
	if capture.Len() != 0 {
		t.Errorf("Len() = %d for a failed delivery, want 0", capture.Len())
	}

	capture.FailWith(nil)
	if err := capture.Alert(context.Background(), SeverityHigh, "recovered"); err != nil {
		t.Errorf("Alert() error = %v after clearing failure, want nil", err)
	}
}

func TestConsoleAlerter(t *testing.T) {
	alerter := NewConsoleAlerter(nil)

	if alerter.Name() != "console" {
		t.Errorf("Name() = %q, want console", alerter.Name())
	}
	if err := alerter.Alert(context.Background(), SeverityInfo, "session started"); err != nil {
		t.Errorf("Alert() error = %v", err)
	}
}

func TestFanoutDeliversToAllChannels(t *testing.T) {
	first := NewCaptureAlerter()
	second := NewCaptureAlerter()
	fanout := NewFanout(nil, first, second)

	if fanout.Name() != "fanout" {
		t.Errorf("Name() = %q, want fanout", fanout.Name())
	}

	if err := fanout.Alert(context.Background(), SeverityWarning, "broadcast"); err != nil {
		t.Fatalf("Alert() error = %v", err)
	}
	if first.Len() != 1 {
		t.Errorf("first channel captured %d alerts, want 1", first.Len())
	}
	if second.Len() != 1 {
		t.Errorf("second channel captured %d alerts, want 1", second.Len())
	}

	third := NewCaptureAlerter()
	fanout.Add(third)
	if err := fanout.Alert(context.Background(), SeverityHigh, "another"); err != nil {
		t.Fatalf("Alert() after Add error = %v", err)
	}
	if third.Len() != 1 {
		t.Errorf("added channel captured %d alerts, want 1", third.Len())
	}
}

func TestFanoutReportsChannelFailure(t *testing.T) {
	healthy := NewCaptureAlerter()
	broken := NewCaptureAlerter()
	broken.FailWith(errors.New("chat unreachable"))
	fanout := NewFanout(nil, healthy, broken)

	err := fanout.Alert(context.Background(), SeverityCritical, "breaker tripped")
	if !errors.Is(err, ErrDelivery) {
		t.Fatalf("Alert() error = %v, want ErrDelivery", err)
	}
	if !strings.Contains(err.Error(), "capture") {
		t.Errorf("error %q does not name the failing channel", err)
	}
	if healthy.Len() != 1 {
		t.Errorf("healthy channel captured %d alerts, want delivery despite the failure", healthy.Len())
	}
}

func TestFanoutAlertEvent(t *testing.T) {
	capture := NewCaptureAlerter()
	fanout := NewFanout(nil, capture)

	err := fanout.AlertEvent(context.Background(), EventCircuitBreakerTripped, "Daily loss limit breached")
	if err != nil {
		t.Fatalf("AlertEvent() error = %v", err)
	}

	last, ok := capture.Last()
	if !ok {
		t.Fatal("no alert captured")
	}
	if last.Severity != SeverityCritical {
		t.Errorf("severity = %v, want SeverityCritical", last.Severity)
	}
}
