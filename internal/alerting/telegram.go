package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// TelegramConfig holds configuration for the Telegram alerter.
type TelegramConfig struct {
	BotToken string
	ChatID   string
	Timeout  time.Duration
}

// TelegramAlerter sends alerts via the Telegram Bot API. Sends are
// throttled to stay under the per-chat message limit.
type TelegramAlerter struct {
	cfg     TelegramConfig
	client  *http.Client
	limiter *rate.Limiter
}

// NewTelegramAlerter creates a new Telegram alerter.
func NewTelegramAlerter(cfg TelegramConfig) *TelegramAlerter {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &TelegramAlerter{
		cfg: cfg,
		client: &http.Client{
			Timeout: timeout,
		},
		// Telegram allows roughly one message per second per chat.
		limiter: rate.NewLimiter(rate.Limit(1), 3),
	}
}

// Name returns the name of the alerter.
func (t *TelegramAlerter) Name() string {
	return "telegram"
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description,omitempty"`
}

// Alert sends an alert via Telegram.
func (t *TelegramAlerter) Alert(ctx context.Context, severity Severity, message string, fields ...any) error {
	return t.send(ctx, t.formatMessage(severity, message, fields...))
}

// SendDailySummary sends a formatted end-of-day portfolio summary.
func (t *TelegramAlerter) SendDailySummary(ctx context.Context, summary DailySummary) error {
	return t.send(ctx, t.formatDailySummary(summary))
}

func (t *TelegramAlerter) send(ctx context.Context, text string) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	msg := telegramMessage{
		ChatID:    t.cfg.ChatID,
		Text:      text,
		ParseMode: "HTML",
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.cfg.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var telegramResp telegramResponse
	if err := json.Unmarshal(respBody, &telegramResp); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	if !telegramResp.OK {
		return fmt.Errorf("telegram API error: %s", telegramResp.Description)
	}
	return nil
}

func (t *TelegramAlerter) formatMessage(severity Severity, message string, fields ...any) string {
	text := fmt.Sprintf("%s <b>[%s]</b>\n%s", severity.Emoji(), severity.String(), message)

	if len(fields) > 0 {
		fieldsStr := FormatFields(fields...)
		if fieldsStr != "" {
			text += "\n\n<b>Details:</b>\n" + fieldsStr
		}
	}

	text += fmt.Sprintf("\n\n<i>%s</i>", time.Now().Format("2006-01-02 15:04:05 MST"))
	return text
}

func (t *TelegramAlerter) formatDailySummary(s DailySummary) string {
	pnlEmoji := "📈"
	if s.TotalPnL.IsNegative() {
		pnlEmoji = "📉"
	}

	return fmt.Sprintf(`%s <b>Daily Portfolio Summary</b>
<b>Date:</b> %s

<b>Performance:</b>
• Starting Equity: $%s
• Ending Equity: $%s
• Daily P&amp;L: $%s (%s%%)
• High Water Mark: $%s
• Drawdown: %s%%

<b>Activity:</b>
• Fills: %d
• Open Positions: %d

<b>Status:</b>
• Circuit Breaker: %s`,
		pnlEmoji,
		s.Date.Format("2006-01-02"),
		s.StartingEquity.StringFixed(2),
		s.EndingEquity.StringFixed(2),
		s.TotalPnL.StringFixed(2),
		s.ReturnPct.StringFixed(2),
		s.HighWaterMark.StringFixed(2),
		s.DrawdownPct.StringFixed(2),
		s.TotalFills,
		s.OpenPositions,
		breakerStatus(s.CircuitBreakerTripped),
	)
}

func breakerStatus(tripped bool) string {
	if tripped {
		return "🔴 Tripped"
	}
	return "🟢 Clear"
}
