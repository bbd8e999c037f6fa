package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/glowback/glowback/internal/alerting"
	"github.com/glowback/glowback/internal/backtest"
	"github.com/glowback/glowback/internal/config"
	"github.com/glowback/glowback/internal/data"
	"github.com/glowback/glowback/internal/metrics"
	"github.com/glowback/glowback/internal/persistence"
	"github.com/glowback/glowback/internal/ui"
)

var hundred = decimal.NewFromInt(100)

func cmdBacktest(args []string) {
	fs := flag.NewFlagSet("backtest", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to configuration file")
	verbose := fs.Bool("verbose", false, "Verbose output")
	quiet := fs.Bool("quiet", false, "Disable the progress bar")
	_ = fs.Parse(args)

	logger := newLogger(*verbose, false)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	btCfg, err := cfg.ToBacktestConfig()
	if err != nil {
		logger.Error("invalid backtest config", "error", err)
		os.Exit(1)
	}

	strat, err := buildStrategy(cfg.Strategy)
	if err != nil {
		logger.Error("failed to build strategy", "error", err)
		os.Exit(1)
	}

	store := data.NewCSVStore(cfg.Data.Dir, logger)
	cached := data.NewCache(store, cfg.Data.CacheEntries, logger)

	engine, err := backtest.New(btCfg, cached, strat, logger)
	if err != nil {
		logger.Error("failed to build engine", "error", err)
		os.Exit(1)
	}

	var bar *ui.ProgressBar
	if !*quiet {
		bar = ui.NewProgressBar(btCfg.InitialCapital)
		engine.SetProgressCallback(func(update backtest.ProgressUpdate) {
			bar.Update(update)
		})
	}

	ctx, stop := signalContext()
	defer stop()

	logger.Info("starting backtest",
		"name", btCfg.Name,
		"symbols", len(btCfg.Symbols),
		"strategy", cfg.Strategy.ID,
		"start", btCfg.StartDate.Format("2006-01-02"),
		"end", btCfg.EndDate.Format("2006-01-02"),
	)

	started := time.Now()
	result, err := engine.Run(ctx)
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		logger.Error("backtest failed", "error", err)
		if result != nil {
			ui.RenderSummary(os.Stdout, result)
		}
		os.Exit(1)
	}
	metrics.NewRecorder().RecordBacktestDuration(time.Since(started))

	hits, misses := cached.Stats()
	logger.Info("backtest complete",
		"duration", time.Since(started).Round(time.Millisecond),
		"trades", len(result.TradeLog),
		"cache_hits", hits,
		"cache_misses", misses,
	)

	ui.RenderSummary(os.Stdout, result)

	if cfg.Persistence.Enabled {
		if err := persistResult(ctx, cfg.Persistence.Path, result, logger); err != nil {
			logger.Error("failed to persist result", "error", err)
		}
	}

	if cfg.Alerting.Telegram.Enabled {
		notifyBacktestDone(ctx, cfg, result, logger)
	}
}

// persistResult stores the run summary and equity curve.
func persistResult(ctx context.Context, path string, result *backtest.Result, logger *slog.Logger) error {
	repo, err := persistence.NewSQLiteRepository(path)
	if err != nil {
		return err
	}
	defer func() { _ = repo.Close() }()

	run := persistence.RunRecord{
		ID:             result.Config.ID.String(),
		Name:           result.Config.Name,
		Status:         result.Status.String(),
		StartedAt:      result.StartedAt,
		CompletedAt:    result.CompletedAt,
		InitialCapital: result.Config.InitialCapital,
		TotalTrades:    len(result.TradeLog),
	}
	if result.FinalPortfolio != nil {
		run.FinalEquity = result.FinalPortfolio.TotalEquity
	}
	if result.Performance != nil {
		run.TotalReturn = result.Performance.TotalReturn
		run.SharpeRatio = result.Performance.SharpeRatio
		run.MaxDrawdown = result.Performance.MaxDrawdown
	}
	if result.Err != nil {
		run.Err = result.Err.Error()
	}
	if err := repo.SaveRun(ctx, run); err != nil {
		return err
	}

	for _, point := range result.EquityCurve {
		record := persistence.EquityRecord{
			RunID:       run.ID,
			Timestamp:   point.Timestamp,
			Equity:      point.PortfolioValue,
			Cash:        point.Cash,
			TotalPnL:    point.TotalPnL,
			DailyReturn: point.DailyReturn,
			Drawdown:    point.Drawdown,
		}
		if err := repo.SaveEquityPoint(ctx, record); err != nil {
			return err
		}
	}

	logger.Info("result persisted", "path", path, "run_id", run.ID, "equity_points", len(result.EquityCurve))
	return nil
}

func notifyBacktestDone(ctx context.Context, cfg *config.Config, result *backtest.Result, logger *slog.Logger) {
	alerter := alerting.NewTelegramAlerter(alerting.TelegramConfig{
		BotToken: cfg.Alerting.Telegram.BotToken,
		ChatID:   cfg.Alerting.Telegram.ChatID,
	})

	message := fmt.Sprintf("Backtest %q finished: %s", result.Config.Name, result.Status)
	fields := []any{"trades", len(result.TradeLog)}
	if result.Performance != nil {
		fields = append(fields,
			"total_return", result.Performance.TotalReturn.Mul(hundred).StringFixed(2)+"%",
			"sharpe", result.Performance.SharpeRatio.StringFixed(2),
			"max_drawdown", result.Performance.MaxDrawdown.Mul(hundred).StringFixed(2)+"%",
		)
	}

	severity := alerting.EventSeverity(alerting.EventBacktestCompleted)
	if err := alerter.Alert(ctx, severity, message, fields...); err != nil {
		logger.Warn("alert delivery failed", "error", err)
	}
}
