package alerting

import (
	"context"
	"log/slog"
)

// ConsoleAlerter writes alerts through the structured logger, mapping
// severities onto slog levels. It is the default channel for paper
// sessions without Telegram configured.
type ConsoleAlerter struct {
	logger *slog.Logger
}

var _ Alerter = (*ConsoleAlerter)(nil)

// NewConsoleAlerter returns a console channel backed by logger.
func NewConsoleAlerter(logger *slog.Logger) *ConsoleAlerter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsoleAlerter{logger: logger}
}

// Name identifies the alerter.
func (c *ConsoleAlerter) Name() string {
	return "console"
}

// Alert logs the notification at the slog level matching its severity.
func (c *ConsoleAlerter) Alert(ctx context.Context, severity Severity, message string, fields ...any) error {
	attrs := make([]any, 0, len(fields)+2)
	attrs = append(attrs, "severity", severity.String())
	attrs = append(attrs, fields...)
	c.logger.Log(ctx, severityLevel(severity), severity.Emoji()+" "+message, attrs...)
	return nil
}

func severityLevel(severity Severity) slog.Level {
	switch severity {
	case SeverityCritical:
		return slog.LevelError
	case SeverityHigh, SeverityWarning:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
