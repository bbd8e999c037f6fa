// Package config loads and validates the application configuration
// from YAML, expanding environment variables before parsing.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/glowback/glowback/internal/backtest"
	"github.com/glowback/glowback/internal/broker/paper"
	"github.com/glowback/glowback/internal/execution"
	"github.com/glowback/glowback/internal/metrics"
	"github.com/glowback/glowback/internal/risk"
	"github.com/glowback/glowback/internal/types"
)

// Config is the full application configuration.
type Config struct {
	Backtest    BacktestConfig    `yaml:"backtest"`
	Execution   ExecutionConfig   `yaml:"execution"`
	Paper       PaperConfig       `yaml:"paper"`
	Risk        RiskConfig        `yaml:"risk"`
	Data        DataConfig        `yaml:"data"`
	Strategy    StrategyConfig    `yaml:"strategy"`
	Persistence PersistenceConfig `yaml:"persistence"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Alerting    AlertingConfig    `yaml:"alerting"`
}

// SymbolConfig names one tradable instrument.
type SymbolConfig struct {
	Ticker   string `yaml:"ticker"`
	Exchange string `yaml:"exchange"`
}

// BacktestConfig holds run identity, universe, and date range.
type BacktestConfig struct {
	Name           string         `yaml:"name"`
	Symbols        []SymbolConfig `yaml:"symbols"`
	StartDate      string         `yaml:"start_date"` // YYYY-MM-DD
	EndDate        string         `yaml:"end_date"`
	InitialCapital float64        `yaml:"initial_capital"`
	Resolution     string         `yaml:"resolution"` // 1m | 5m | 1h | 1d
	RiskFreeRate   float64        `yaml:"risk_free_rate"`
}

// ExecutionConfig holds the simulated cost model.
type ExecutionConfig struct {
	CommissionPerShare float64 `yaml:"commission_per_share"`
	CommissionPct      float64 `yaml:"commission_pct"`
	MinCommission      float64 `yaml:"min_commission"`
	SlippageBps        float64 `yaml:"slippage_bps"`
	LatencyMs          int     `yaml:"latency_ms"`
}

// PaperConfig holds paper-broker settings.
type PaperConfig struct {
	InitialCash                 float64 `yaml:"initial_cash"`
	CommissionPerShare          float64 `yaml:"commission_per_share"`
	SlippageBps                 float64 `yaml:"slippage_bps"`
	FillMarketOrdersImmediately bool    `yaml:"fill_market_orders_immediately"`
}

// RiskConfig holds the pre-trade risk limits.
type RiskConfig struct {
	MaxOrdersPerWindow      int     `yaml:"max_orders_per_window"`
	OrderWindowSec          int     `yaml:"order_window_sec"`
	MaxOrderNotional        float64 `yaml:"max_order_notional"`
	MaxTotalExposure        float64 `yaml:"max_total_exposure"`
	ConcentrationLimit      float64 `yaml:"concentration_limit"`
	DailyLossCircuitBreaker float64 `yaml:"daily_loss_circuit_breaker"`
	DryRun                  bool    `yaml:"dry_run"`
}

// DataConfig holds historical data settings.
type DataConfig struct {
	Dir          string `yaml:"dir"`
	CacheEntries int    `yaml:"cache_entries"`
}

// StrategyConfig selects and parameterizes a strategy.
type StrategyConfig struct {
	ID         string         `yaml:"id"`
	Parameters map[string]any `yaml:"parameters"`
}

// PersistenceConfig holds SQLite repository settings.
type PersistenceConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// MetricsConfig holds the scrape server settings.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// AlertingConfig holds alert channel settings.
type AlertingConfig struct {
	Console  bool           `yaml:"console"`
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig holds Telegram delivery settings. BotToken and
// ChatID typically arrive via ${ENV_VAR} expansion.
type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
}

// Load reads, expands, parses, and validates a YAML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return LoadFromBytes(data)
}

// LoadFromBytes parses and validates YAML config bytes. Environment
// variables referenced as $VAR or ${VAR} are expanded first.
func LoadFromBytes(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// Validate collects every problem in the file rather than stopping at
// the first.
func (c *Config) Validate() error {
	var errs []string

	if len(c.Backtest.Symbols) == 0 {
		errs = append(errs, "backtest.symbols must not be empty")
	}
	for i, s := range c.Backtest.Symbols {
		if s.Ticker == "" {
			errs = append(errs, fmt.Sprintf("backtest.symbols[%d].ticker is required", i))
		}
	}
	if c.Backtest.InitialCapital <= 0 {
		errs = append(errs, "backtest.initial_capital must be positive")
	}
	if _, err := c.resolution(); err != nil {
		errs = append(errs, err.Error())
	}
	if _, _, err := c.dateRange(); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Backtest.RiskFreeRate < 0 {
		errs = append(errs, "backtest.risk_free_rate must not be negative")
	}

	if c.Execution.SlippageBps < 0 || c.Paper.SlippageBps < 0 {
		errs = append(errs, "slippage_bps must not be negative")
	}
	if c.Execution.LatencyMs < 0 {
		errs = append(errs, "execution.latency_ms must not be negative")
	}
	if c.Risk.DailyLossCircuitBreaker < 0 || c.Risk.DailyLossCircuitBreaker > 1 {
		errs = append(errs, "risk.daily_loss_circuit_breaker must be between 0 and 1")
	}
	if c.Risk.ConcentrationLimit < 0 || c.Risk.ConcentrationLimit > 1 {
		errs = append(errs, "risk.concentration_limit must be between 0 and 1")
	}

	if c.Strategy.ID == "" {
		errs = append(errs, "strategy.id is required")
	}
	if c.Persistence.Enabled && c.Persistence.Path == "" {
		errs = append(errs, "persistence.path is required when persistence is enabled")
	}
	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		errs = append(errs, "metrics.port must be a valid port")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			errs = append(errs, "alerting.telegram.bot_token is required when telegram is enabled")
		}
		if c.Alerting.Telegram.ChatID == "" {
			errs = append(errs, "alerting.telegram.chat_id is required when telegram is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", types.ErrInvalidConfig, strings.Join(errs, "; "))
	}
	return nil
}

// Symbols converts the configured symbols to domain values.
func (c *Config) Symbols() []types.Symbol {
	out := make([]types.Symbol, 0, len(c.Backtest.Symbols))
	for _, s := range c.Backtest.Symbols {
		out = append(out, types.NewEquity(s.Ticker, s.Exchange))
	}
	return out
}

// ToBacktestConfig builds the backtest run config.
func (c *Config) ToBacktestConfig() (backtest.Config, error) {
	start, end, err := c.dateRange()
	if err != nil {
		return backtest.Config{}, err
	}
	resolution, err := c.resolution()
	if err != nil {
		return backtest.Config{}, err
	}

	cfg := backtest.NewConfig(c.Backtest.Name, c.Symbols(), start, end)
	cfg.InitialCapital = decimal.NewFromFloat(c.Backtest.InitialCapital)
	cfg.Resolution = resolution
	cfg.Execution = c.ToExecutionSettings()
	cfg.RiskFreeRate = decimal.NewFromFloat(c.Backtest.RiskFreeRate)
	return cfg, nil
}

// ToExecutionSettings builds the simulated cost model.
func (c *Config) ToExecutionSettings() execution.Settings {
	return execution.Settings{
		CommissionPerShare: decimal.NewFromFloat(c.Execution.CommissionPerShare),
		CommissionPct:      decimal.NewFromFloat(c.Execution.CommissionPct),
		MinCommission:      decimal.NewFromFloat(c.Execution.MinCommission),
		SlippageBps:        decimal.NewFromFloat(c.Execution.SlippageBps),
		Latency:            time.Duration(c.Execution.LatencyMs) * time.Millisecond,
	}
}

// ToPaperConfig builds the paper broker config.
func (c *Config) ToPaperConfig() paper.Config {
	return paper.Config{
		InitialCash:                 decimal.NewFromFloat(c.Paper.InitialCash),
		CommissionPerShare:          decimal.NewFromFloat(c.Paper.CommissionPerShare),
		SlippageBps:                 decimal.NewFromFloat(c.Paper.SlippageBps),
		FillMarketOrdersImmediately: c.Paper.FillMarketOrdersImmediately,
	}
}

// ToRiskConfig builds the pre-trade risk limits.
func (c *Config) ToRiskConfig() risk.Config {
	return risk.Config{
		MaxOrdersPerWindow:      c.Risk.MaxOrdersPerWindow,
		OrderWindow:             time.Duration(c.Risk.OrderWindowSec) * time.Second,
		MaxOrderNotional:        decimal.NewFromFloat(c.Risk.MaxOrderNotional),
		MaxTotalExposure:        decimal.NewFromFloat(c.Risk.MaxTotalExposure),
		ConcentrationLimit:      decimal.NewFromFloat(c.Risk.ConcentrationLimit),
		DailyLossCircuitBreaker: decimal.NewFromFloat(c.Risk.DailyLossCircuitBreaker),
		DryRun:                  c.Risk.DryRun,
	}
}

// ToMetricsServerConfig builds the scrape server config.
func (c *Config) ToMetricsServerConfig() metrics.ServerConfig {
	cfg := metrics.DefaultServerConfig()
	if c.Metrics.Port > 0 {
		cfg.Port = c.Metrics.Port
	}
	return cfg
}

func (c *Config) resolution() (types.Resolution, error) {
	switch c.Backtest.Resolution {
	case "", "1d":
		return types.ResolutionDay, nil
	case "1h":
		return types.ResolutionHour, nil
	case "5m":
		return types.ResolutionFiveMinute, nil
	case "1m":
		return types.ResolutionMinute, nil
	default:
		return 0, fmt.Errorf("backtest.resolution %q is not one of 1m, 5m, 1h, 1d", c.Backtest.Resolution)
	}
}

func (c *Config) dateRange() (time.Time, time.Time, error) {
	start, err := time.Parse(time.DateOnly, c.Backtest.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("backtest.start_date %q is not YYYY-MM-DD", c.Backtest.StartDate)
	}
	end, err := time.Parse(time.DateOnly, c.Backtest.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("backtest.end_date %q is not YYYY-MM-DD", c.Backtest.EndDate)
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("backtest.end_date must be after start_date")
	}
	return start.UTC(), end.UTC(), nil
}
