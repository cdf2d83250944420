package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/pumpwatch/internal/app"
	"github.com/rovshanmuradov/pumpwatch/internal/config"
	"github.com/rovshanmuradov/pumpwatch/internal/logger"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (JSON or YAML)")
	flag.Parse()

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logCfg := logger.DefaultConfig()
	logCfg.LogFile = cfg.LogFile
	logCfg.Development = cfg.DebugLogging
	appLogger, err := logger.New(logCfg)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer func() {
		_ = appLogger.Sync()
	}()

	application, err := app.New(cfg, appLogger.WithOperation("serve"))
	if err != nil {
		appLogger.Fatal("💥 Failed to build application", zap.Error(err))
	}

	if err := application.Run(rootCtx); err != nil {
		appLogger.Error("❌ Application stopped with error", zap.Error(err))
		return
	}
	appLogger.Info("👋 pumpwatch stopped")
}
