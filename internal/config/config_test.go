package config

import (
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/glowback/glowback/internal/types"
)

const validYAML = `
backtest:
  name: smoke
  symbols:
    - ticker: AAPL
      exchange: NASDAQ
    - ticker: MSFT
      exchange: NASDAQ
  start_date: "2024-01-02"
  end_date: "2024-06-28"
  initial_capital: 250000
  resolution: 1d
  risk_free_rate: 0.02

execution:
  commission_per_share: 0.005
  commission_pct: 0.0
  min_commission: 1.0
  slippage_bps: 5
  latency_ms: 0

paper:
  initial_cash: 100000
  commission_per_share: 0.01
  slippage_bps: 5
  fill_market_orders_immediately: true

risk:
  max_orders_per_window: 10
  order_window_sec: 60
  max_order_notional: 50000
  max_total_exposure: 200000
  concentration_limit: 0.25
  daily_loss_circuit_breaker: 0.05
  dry_run: false

data:
  dir: testdata
  cache_entries: 64

strategy:
  id: buy_and_hold

persistence:
  enabled: true
  path: glowback.db

metrics:
  enabled: true
  port: 9090

alerting:
  console: true
`

func TestLoadFromBytes(t *testing.T) {
	cfg, err := LoadFromBytes([]byte(validYAML))
	if err != nil {
		t.Fatalf("LoadFromBytes: %v", err)
	}

	if cfg.Backtest.Name != "smoke" {
		t.Errorf("name = %q, want smoke", cfg.Backtest.Name)
	}
	if len(cfg.Backtest.Symbols) != 2 {
		t.Fatalf("symbols = %d, want 2", len(cfg.Backtest.Symbols))
	}
	if cfg.Risk.MaxOrdersPerWindow != 10 {
		t.Errorf("max orders = %d, want 10", cfg.Risk.MaxOrdersPerWindow)
	}
	if !cfg.Paper.FillMarketOrdersImmediately {
		t.Error("expected immediate market fills")
	}
	if cfg.Strategy.ID != "buy_and_hold" {
		t.Errorf("strategy id = %q", cfg.Strategy.ID)
	}
}

func TestToBacktestConfig(t *testing.T) {
	cfg, err := LoadFromBytes([]byte(validYAML))
	if err != nil {
		t.Fatalf("LoadFromBytes: %v", err)
	}

	bt, err := cfg.ToBacktestConfig()
	if err != nil {
		t.Fatalf("ToBacktestConfig: %v", err)
	}
	if got := bt.InitialCapital.String(); got != "250000" {
		t.Errorf("initial capital = %s, want 250000", got)
	}
	if bt.Resolution != types.ResolutionDay {
		t.Errorf("resolution = %v, want daily", bt.Resolution)
	}
	wantStart := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	if !bt.StartDate.Equal(wantStart) {
		t.Errorf("start = %v, want %v", bt.StartDate, wantStart)
	}
	if bt.Symbols[0].Ticker != "AAPL" {
		t.Errorf("first symbol = %q", bt.Symbols[0].Ticker)
	}
	if err := bt.Validate(); err != nil {
		t.Errorf("converted config should validate: %v", err)
	}
}

func TestConverters(t *testing.T) {
	cfg, err := LoadFromBytes([]byte(validYAML))
	if err != nil {
		t.Fatalf("LoadFromBytes: %v", err)
	}

	exec := cfg.ToExecutionSettings()
	if got := exec.SlippageBps.String(); got != "5" {
		t.Errorf("slippage = %s, want 5", got)
	}

	rc := cfg.ToRiskConfig()
	if rc.OrderWindow != time.Minute {
		t.Errorf("order window = %v, want 1m", rc.OrderWindow)
	}
	if got := rc.ConcentrationLimit.String(); got != "0.25" {
		t.Errorf("concentration = %s, want 0.25", got)
	}

	pc := cfg.ToPaperConfig()
	if got := pc.InitialCash.String(); got != "100000" {
		t.Errorf("paper cash = %s, want 100000", got)
	}

	mc := cfg.ToMetricsServerConfig()
	if mc.Port != 9090 {
		t.Errorf("metrics port = %d, want 9090", mc.Port)
	}
}

func TestEnvExpansion(t *testing.T) {
	t.Setenv("GLOWBACK_TEST_TOKEN", "tok-123")
	t.Setenv("GLOWBACK_TEST_CHAT", "chat-456")

	yaml := strings.Replace(validYAML, "alerting:\n  console: true\n", `alerting:
  console: true
  telegram:
    enabled: true
    bot_token: ${GLOWBACK_TEST_TOKEN}
    chat_id: ${GLOWBACK_TEST_CHAT}
`, 1)

	cfg, err := LoadFromBytes([]byte(yaml))
	if err != nil {
		t.Fatalf("LoadFromBytes: %v", err)
	}
	if cfg.Alerting.Telegram.BotToken != "tok-123" {
		t.Errorf("bot token = %q, want tok-123", cfg.Alerting.Telegram.BotToken)
	}
	if cfg.Alerting.Telegram.ChatID != "chat-456" {
		t.Errorf("chat id = %q, want chat-456", cfg.Alerting.Telegram.ChatID)
	}
}

func TestValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(string) string
		wantMsg string
	}{
		{
			name:    "no symbols",
			mutate:  func(s string) string { return strings.Replace(s, "    - ticker: AAPL\n      exchange: NASDAQ\n    - ticker: MSFT\n      exchange: NASDAQ\n", "    []\n", 1) },
			wantMsg: "symbols",
		},
		{
			name:    "end before start",
			mutate:  func(s string) string { return strings.Replace(s, `end_date: "2024-06-28"`, `end_date: "2023-06-28"`, 1) },
			wantMsg: "end_date",
		},
		{
			name:    "bad date format",
			mutate:  func(s string) string { return strings.Replace(s, `start_date: "2024-01-02"`, `start_date: "02/01/2024"`, 1) },
			wantMsg: "start_date",
		},
		{
			name:    "zero capital",
			mutate:  func(s string) string { return strings.Replace(s, "initial_capital: 250000", "initial_capital: 0", 1) },
			wantMsg: "initial_capital",
		},
		{
			name:    "unknown resolution",
			mutate:  func(s string) string { return strings.Replace(s, "resolution: 1d", "resolution: 2h", 1) },
			wantMsg: "resolution",
		},
		{
			name:    "breaker over one",
			mutate:  func(s string) string { return strings.Replace(s, "daily_loss_circuit_breaker: 0.05", "daily_loss_circuit_breaker: 1.5", 1) },
			wantMsg: "daily_loss_circuit_breaker",
		},
		{
			name:    "missing strategy",
			mutate:  func(s string) string { return strings.Replace(s, "  id: buy_and_hold", "  id: \"\"", 1) },
			wantMsg: "strategy.id",
		},
		{
			name:    "persistence without path",
			mutate:  func(s string) string { return strings.Replace(s, "path: glowback.db", "path: \"\"", 1) },
			wantMsg: "persistence.path",
		},
		{
			name: "telegram without token",
			mutate: func(s string) string {
				return strings.Replace(s, "alerting:\n  console: true\n", "alerting:\n  telegram:\n    enabled: true\n", 1)
			},
			wantMsg: "bot_token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromBytes([]byte(tt.mutate(validYAML)))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, types.ErrInvalidConfig) {
				t.Errorf("error %v should wrap ErrInvalidConfig", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q should mention %q", err, tt.wantMsg)
			}
		})
	}
}

func TestValidationCollectsAllErrors(t *testing.T) {
	broken := strings.Replace(validYAML, "initial_capital: 250000", "initial_capital: -1", 1)
	broken = strings.Replace(broken, "  id: buy_and_hold", "  id: \"\"", 1)

	_, err := LoadFromBytes([]byte(broken))
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "initial_capital") || !strings.Contains(msg, "strategy.id") {
		t.Errorf("error should report both problems, got %q", msg)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("does-not-exist.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadFromFile(t *testing.T) {
	path := t.TempDir() + "/config.yaml"
	if err := os.WriteFile(path, []byte(validYAML), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Data.Dir != "testdata" {
		t.Errorf("data dir = %q, want testdata", cfg.Data.Dir)
	}
}
