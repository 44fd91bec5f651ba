package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/bondswap/internal/config"
	"github.com/rovshanmuradov/bondswap/internal/logger"
	"github.com/rovshanmuradov/bondswap/internal/market"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Logs go to the ring and the log file; stdout belongs to the console.
	ring := logger.NewRing(500)
	lcfg := logger.DefaultConfig()
	lcfg.LogFile = cfg.LogFile
	lcfg.Development = cfg.DebugLogging
	lcfg.Console = ring
	appLogger, err := logger.New(lcfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = appLogger.Sync() }()

	m, err := market.Open(ctx, cfg, appLogger.Named("console"))
	if err != nil {
		appLogger.Fatal("Failed to open market", zap.Error(err))
	}
	defer func() {
		if err := m.Close(context.Background()); err != nil {
			appLogger.Warn("Event bus did not drain", zap.Error(err))
		}
	}()

	c, err := newConsole(ctx, m, ring)
	if err != nil {
		appLogger.Fatal("Failed to start console", zap.Error(err))
	}

	p := tea.NewProgram(c, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		appLogger.Error("Console exited with error", zap.Error(err))
	}
}
