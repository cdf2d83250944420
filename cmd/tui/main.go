package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/pumpwatch/internal/app"
	"github.com/rovshanmuradov/pumpwatch/internal/config"
	"github.com/rovshanmuradov/pumpwatch/internal/logger"
	"github.com/rovshanmuradov/pumpwatch/internal/monitor"
	"github.com/rovshanmuradov/pumpwatch/internal/ui"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (JSON or YAML)")
	noChain := flag.Bool("no-chain", false, "Do not start the chain monitor")
	flag.Parse()

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// экран принадлежит TUI, логи идут в кольцевой буфер и файл
	logBuffer := logger.NewLogBuffer(500)
	logCfg := logger.DefaultConfig()
	logCfg.LogFile = cfg.LogFile
	logCfg.Development = cfg.DebugLogging
	logCfg.Buffer = logBuffer
	appLogger, err := logger.New(logCfg)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer func() {
		_ = appLogger.Sync()
	}()

	appLogger.Info("🚀 Starting pumpwatch TUI")

	application, err := app.New(cfg, appLogger.WithComponent("tui"))
	if err != nil {
		appLogger.Fatal("💥 Failed to build application", zap.Error(err))
	}
	defer func() {
		if err := application.Shutdown(context.Background()); err != nil {
			appLogger.Error("Shutdown completed with errors", zap.Error(err))
		}
	}()

	sender := ui.NewUpdateSender(64, appLogger.Logger)
	sender.Attach(application.Bus)
	defer sender.Close()

	if !*noChain {
		if err := application.StartMonitors(rootCtx, monitor.StablePumpName); err != nil {
			// таблица работает и без цепочки
			appLogger.Warn("⚠️ Chain monitor unavailable", zap.Error(err))
		}
	}

	logs := ui.NewLogPane(logBuffer)
	recovery := ui.NewRecoveryHandler(appLogger.Logger, func() tea.Model {
		return ui.NewDashboard(application.Orchestrator, sender, logs, ui.Config{
			RefreshInterval: cfg.CacheTTL,
		}, appLogger.Logger)
	}, tea.WithAltScreen())

	if err := recovery.Run(rootCtx); err != nil {
		if errors.Is(err, ui.ErrTooManyRestarts) {
			appLogger.Error("💥 TUI gave up after repeated crashes", zap.Error(err))
			return
		}
		appLogger.Error("💥 TUI application failed", zap.Error(err))
	}
	appLogger.Info("🛑 TUI stopped")
}
