package alerting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// FanoutAlerter dispatches each alert to every registered channel
// concurrently. A slow or failing channel never blocks the others.
type FanoutAlerter struct {
	mu       sync.RWMutex
	channels []Alerter
	logger   *slog.Logger
}

var _ Alerter = (*FanoutAlerter)(nil)

// NewFanout builds a fanout over the given channels.
func NewFanout(logger *slog.Logger, channels ...Alerter) *FanoutAlerter {
	if logger == nil {
		logger = slog.Default()
	}
	return &FanoutAlerter{
		channels: channels,
		logger:   logger,
	}
}

// Name identifies the alerter.
func (f *FanoutAlerter) Name() string {
	return "fanout"
}

// Add registers another channel. Safe to call while alerts are in
// flight; the new channel receives alerts sent after it was added.
func (f *FanoutAlerter) Add(channel Alerter) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels = append(f.channels, channel)
}

// Alert delivers to all channels and reports partial failure as a
// single ErrDelivery wrapping each channel error.
func (f *FanoutAlerter) Alert(ctx context.Context, severity Severity, message string, fields ...any) error {
	f.mu.RLock()
	channels := append([]Alerter(nil), f.channels...)
	f.mu.RUnlock()

	if len(channels) == 0 {
		return nil
	}

	errs := make([]error, len(channels))
	var wg sync.WaitGroup
	for i, channel := range channels {
		wg.Add(1)
		go func(i int, ch Alerter) {
			defer wg.Done()
			if err := ch.Alert(ctx, severity, message, fields...); err != nil {
				f.logger.Error("alert channel failed",
					"channel", ch.Name(),
					"severity", severity.String(),
					"error", err,
				)
				errs[i] = fmt.Errorf("%s: %w", ch.Name(), err)
			}
		}(i, channel)
	}
	wg.Wait()

	if joined := errors.Join(errs...); joined != nil {
		return fmt.Errorf("%w: %w", ErrDelivery, joined)
	}
	return nil
}

// AlertEvent delivers a predefined event at its default severity.
func (f *FanoutAlerter) AlertEvent(ctx context.Context, event AlertEvent, message string, fields ...any) error {
	return f.Alert(ctx, EventSeverity(event), message, fields...)
}
