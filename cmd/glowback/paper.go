package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/glowback/glowback/internal/alerting"
	"github.com/glowback/glowback/internal/broker"
	"github.com/glowback/glowback/internal/broker/paper"
	"github.com/glowback/glowback/internal/config"
	"github.com/glowback/glowback/internal/data"
	"github.com/glowback/glowback/internal/live"
	"github.com/glowback/glowback/internal/metrics"
	"github.com/glowback/glowback/internal/persistence"
	"github.com/glowback/glowback/internal/risk"
	"github.com/glowback/glowback/internal/types"
)

func cmdPaper(args []string) {
	fs := flag.NewFlagSet("paper", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to configuration file")
	verbose := fs.Bool("verbose", false, "Verbose output")
	interval := fs.Duration("interval", time.Second, "Replay delay between market events")
	_ = fs.Parse(args)

	logger := newLogger(*verbose, true)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	session, err := newPaperSession(cfg, logger)
	if err != nil {
		logger.Error("failed to build paper session", "error", err)
		os.Exit(1)
	}
	defer session.close()

	ctx, stop := signalContext()
	defer stop()

	if err := session.run(ctx, *interval); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("paper session failed", "error", err)
		os.Exit(1)
	}
	logger.Info("paper session complete")
}

// paperSession wires the live engine, paper broker, and supporting
// services for one replayed trading session.
type paperSession struct {
	cfg     *config.Config
	logger  *slog.Logger
	broker  *paper.Broker
	engine  *live.Engine
	riskMgr *risk.Manager
	repo    persistence.Repository
	metrics *metrics.Server

	seenFills int
}

func newPaperSession(cfg *config.Config, logger *slog.Logger) (*paperSession, error) {
	initialCash := decimal.NewFromFloat(cfg.Paper.InitialCash)

	brk, err := paper.New(cfg.ToPaperConfig(), logger)
	if err != nil {
		return nil, err
	}

	riskMgr, err := risk.NewManager(cfg.ToRiskConfig(), initialCash, logger)
	if err != nil {
		return nil, err
	}

	strat, err := buildStrategy(cfg.Strategy)
	if err != nil {
		return nil, err
	}

	liveCfg := live.DefaultConfig()
	liveCfg.Symbols = cfg.Symbols()
	liveCfg.InitialCapital = initialCash

	engine, err := live.New(liveCfg, brk, strat, riskMgr, buildAlerter(cfg, logger), logger)
	if err != nil {
		return nil, err
	}

	s := &paperSession{
		cfg:     cfg,
		logger:  logger,
		broker:  brk,
		engine:  engine,
		riskMgr: riskMgr,
	}

	if cfg.Persistence.Enabled {
		repo, err := persistence.NewSQLiteRepository(cfg.Persistence.Path)
		if err != nil {
			return nil, err
		}
		s.repo = repo

		if prev, err := repo.GetSessionState(context.Background()); err == nil && prev != nil {
			logger.Info("previous session state found",
				"last_updated", prev.LastUpdated,
				"equity", prev.Equity,
				"breaker_tripped", prev.CircuitBreakerTripped,
			)
		}
	}

	if cfg.Metrics.Enabled {
		srv := metrics.NewServer(cfg.ToMetricsServerConfig(), logger)
		srv.RegisterHealthCheck("broker", func() metrics.Check {
			if brk.ConnectionStatus() == broker.StatusConnected {
				return metrics.Check{Status: "healthy"}
			}
			return metrics.Check{Status: "unhealthy", Message: "broker disconnected"}
		})
		srv.RegisterHealthCheck("engine", func() metrics.Check {
			if engine.IsRunning() {
				return metrics.Check{Status: "healthy"}
			}
			return metrics.Check{Status: "unhealthy", Message: "engine stopped"}
		})
		if err := srv.Start(); err != nil {
			return nil, err
		}
		s.metrics = srv
	}

	return s, nil
}

func (s *paperSession) run(ctx context.Context, interval time.Duration) error {
	events, err := s.loadReplayEvents(ctx)
	if err != nil {
		return err
	}
	s.logger.Info("replay feed ready", "events", len(events))

	if err := s.engine.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.engine.Stop(stopCtx); err != nil {
			s.logger.Warn("engine stop failed", "error", err)
		}
		s.saveState(stopCtx)
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastDay time.Time
	for _, event := range events {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		day := event.Timestamp.UTC().Truncate(24 * time.Hour)
		if !lastDay.IsZero() && day.After(lastDay) {
			if err := s.engine.OnDayEnd(ctx); err != nil {
				return err
			}
			s.saveState(ctx)
		}
		lastDay = day

		s.broker.ProcessMarketEvent(event)
		if err := s.dispatchFills(ctx); err != nil {
			return err
		}
		if err := s.engine.OnMarketEvent(ctx, event); err != nil {
			return err
		}
		if err := s.dispatchFills(ctx); err != nil {
			return err
		}
		s.logEvents(ctx)
	}

	if !lastDay.IsZero() {
		if err := s.engine.OnDayEnd(ctx); err != nil {
			return err
		}
	}
	return nil
}

// loadReplayEvents builds a time-ordered event stream covering the
// configured date range, falling back to synthetic bars when historical
// data is missing.
func (s *paperSession) loadReplayEvents(ctx context.Context) ([]types.MarketEvent, error) {
	btCfg, err := s.cfg.ToBacktestConfig()
	if err != nil {
		return nil, err
	}

	store := data.NewCSVStore(s.cfg.Data.Dir, s.logger)
	cached := data.NewCache(store, s.cfg.Data.CacheEntries, s.logger)
	sample := data.NewSampleGenerator(s.logger)

	var events []types.MarketEvent
	for _, symbol := range btCfg.Symbols {
		bars, err := cached.LoadBars(ctx, symbol, btCfg.StartDate, btCfg.EndDate, btCfg.Resolution)
		if errors.Is(err, types.ErrDataUnavailable) || errors.Is(err, types.ErrInsufficientData) {
			s.logger.Warn("no historical data, generating synthetic bars", "symbol", symbol.Ticker)
			bars, err = sample.LoadBars(ctx, symbol, btCfg.StartDate, btCfg.EndDate, btCfg.Resolution)
		}
		if err != nil {
			return nil, err
		}
		for _, bar := range bars {
			events = append(events, types.NewBarEvent(bar))
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
	return events, nil
}

// dispatchFills routes fills the broker produced since the last call
// into the engine and the repository.
func (s *paperSession) dispatchFills(ctx context.Context) error {
	fills := s.broker.Fills()
	for _, fill := range fills[s.seenFills:] {
		if err := s.engine.OnFill(ctx, fill); err != nil {
			return err
		}
		if s.repo != nil {
			if err := s.repo.SaveFill(ctx, fill); err != nil {
				s.logger.Warn("failed to persist fill", "error", err)
			}
		}
	}
	s.seenFills = len(fills)
	return nil
}

func (s *paperSession) logEvents(ctx context.Context) {
	for _, event := range s.engine.DrainEvents() {
		s.logger.Info("engine event",
			"type", event.Type.String(),
			"order_id", event.OrderID,
			"symbol", event.Symbol.Ticker,
			"reason", event.Reason,
		)
		if s.repo != nil && event.Type == live.EventOrderSubmitted {
			s.persistOpenOrders(ctx)
		}
	}
}

func (s *paperSession) persistOpenOrders(ctx context.Context) {
	orders, err := s.broker.OpenOrders()
	if err != nil {
		return
	}
	for _, order := range orders {
		if err := s.repo.SaveOrder(ctx, order); err != nil {
			s.logger.Warn("failed to persist order", "error", err)
		}
	}
}

func (s *paperSession) saveState(ctx context.Context) {
	if s.repo == nil {
		return
	}
	pf := s.engine.Portfolio()
	state := persistence.SessionState{
		LastUpdated:           time.Now().UTC(),
		Equity:                pf.TotalEquity,
		HighWaterMark:         s.engine.HighWaterMark(),
		CircuitBreakerTripped: s.riskMgr.CircuitBreakerTripped(),
		TotalFills:            s.seenFills,
		RealizedPnL:           pf.RealizedPnL,
	}
	if err := s.repo.SaveSessionState(ctx, state); err != nil {
		s.logger.Warn("failed to persist session state", "error", err)
	}
}

func (s *paperSession) close() {
	if s.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.metrics.Shutdown(ctx); err != nil {
			s.logger.Warn("metrics server shutdown failed", "error", err)
		}
	}
	if s.repo != nil {
		if err := s.repo.Close(); err != nil {
			s.logger.Warn("repository close failed", "error", err)
		}
	}
}

func buildAlerter(cfg *config.Config, logger *slog.Logger) alerting.Alerter {
	var channels []alerting.Alerter
	if cfg.Alerting.Console {
		channels = append(channels, alerting.NewConsoleAlerter(logger))
	}
	if cfg.Alerting.Telegram.Enabled {
		channels = append(channels, alerting.NewTelegramAlerter(alerting.TelegramConfig{
			BotToken: cfg.Alerting.Telegram.BotToken,
			ChatID:   cfg.Alerting.Telegram.ChatID,
		}))
	}

	switch len(channels) {
	case 0:
		return nil
	case 1:
		return channels[0]
	default:
		return alerting.NewFanout(logger, channels...)
	}
}
