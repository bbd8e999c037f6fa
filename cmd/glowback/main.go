// Package main is the entry point for the glowback research platform.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/glowback/glowback/internal/config"
)

// Version information (set by build flags).
var (
	Version   = "0.3.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "version", "-v", "--version":
		cmdVersion()
	case "help", "-h", "--help":
		printUsage()
	case "backtest":
		cmdBacktest(os.Args[2:])
	case "paper":
		cmdPaper(os.Args[2:])
	case "validate":
		cmdValidate(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`GlowBack - Quantitative Trading Research Platform

Usage:
  glowback <command> [options]

Commands:
  backtest   Run a historical simulation
  paper      Run a paper trading session against replayed data
  validate   Validate a configuration file
  version    Show version information
  help       Show this help message

Examples:
  glowback backtest --config config.yaml
  glowback paper --config config.yaml
  glowback validate --config config.yaml

Use "glowback <command> --help" for more information about a command.`)
}

func cmdVersion() {
	fmt.Printf("glowback version %s\n", Version)
	fmt.Printf("  Build time: %s\n", BuildTime)
	fmt.Printf("  Git commit: %s\n", GitCommit)
}

func cmdValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to configuration file")
	_ = fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Configuration is valid!")
	fmt.Printf("  Run name: %s\n", cfg.Backtest.Name)
	fmt.Printf("  Symbols: %d\n", len(cfg.Backtest.Symbols))
	fmt.Printf("  Date range: %s to %s\n", cfg.Backtest.StartDate, cfg.Backtest.EndDate)
	fmt.Printf("  Initial capital: $%.2f\n", cfg.Backtest.InitialCapital)
	fmt.Printf("  Strategy: %s\n", cfg.Strategy.ID)
}

func newLogger(verbose, jsonOutput bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if jsonOutput {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
