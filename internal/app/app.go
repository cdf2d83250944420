// internal/app/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/pumpwatch/internal/aggregator"
	"github.com/rovshanmuradov/pumpwatch/internal/analysis"
	"github.com/rovshanmuradov/pumpwatch/internal/api"
	"github.com/rovshanmuradov/pumpwatch/internal/blockchain"
	"github.com/rovshanmuradov/pumpwatch/internal/blockchain/solbc"
	"github.com/rovshanmuradov/pumpwatch/internal/config"
	"github.com/rovshanmuradov/pumpwatch/internal/domain"
	"github.com/rovshanmuradov/pumpwatch/internal/events"
	"github.com/rovshanmuradov/pumpwatch/internal/export"
	"github.com/rovshanmuradov/pumpwatch/internal/metrics"
	"github.com/rovshanmuradov/pumpwatch/internal/monitor"
	"github.com/rovshanmuradov/pumpwatch/internal/poller"
	"github.com/rovshanmuradov/pumpwatch/internal/sources"
)

// App owns every long-lived component of the process.
type App struct {
	Config       *config.Config
	Metrics      *metrics.Collector
	Bus          *events.Bus
	Orchestrator *aggregator.Orchestrator
	Registry     *monitor.Registry
	Analyzer     *analysis.Analyzer
	Server       *api.Server

	chain    blockchain.Client
	logger   *zap.Logger
	shutdown *ShutdownHandler
}

// Option overrides a component, mostly for tests.
type Option func(*options)

type options struct {
	chain blockchain.Client
}

// WithChainClient replaces the Solana RPC client.
func WithChainClient(c blockchain.Client) Option {
	return func(o *options) { o.chain = c }
}

// New wires config → metrics → adapters → orchestrator → chain client →
// event bus → monitor registry → analyzer → API server.
func New(cfg *config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if _, err := solana.PublicKeyFromBase58(cfg.ProgramAddress); err != nil {
		return nil, fmt.Errorf("invalid program_address: %w", err)
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{
		Config:   cfg,
		Metrics:  metrics.NewCollector(),
		logger:   logger.Named("app"),
		shutdown: NewShutdownHandler(logger, DefaultShutdownTimeout),
	}

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	sourceOpts := func(base string) sources.Options {
		return sources.Options{
			BaseURL:  base,
			Client:   httpClient,
			Logger:   logger,
			SOLPrice: cfg.SOLPriceUSD,
		}
	}
	dex := sources.NewDexScreener(sourceOpts(cfg.DexScreenerAPIURL))
	adapters := []sources.Adapter{
		sources.NewPumpFun(sourceOpts(cfg.PumpFunAPIURL)),
		dex,
		sources.NewGeckoTerminal(sourceOpts(cfg.GeckoTerminalAPIURL)),
	}

	a.Orchestrator = aggregator.NewOrchestrator(adapters, aggregator.Config{
		MinRequestDelay:    cfg.MinRequestDelay,
		EarlyStopThreshold: cfg.EarlyStopThreshold,
		CacheTTL:           cfg.CacheTTL,
		Filter: aggregator.FilterOptions{
			MinMarketCap: cfg.MinMarketCap,
			MaxMarketCap: cfg.MaxMarketCap,
		},
	}, logger, a.Metrics)

	a.chain = o.chain
	if a.chain == nil {
		client := solbc.NewClient(cfg.RPCURL, logger, a.Metrics)
		a.shutdown.AddFunc("solana-rpc", client.Close)
		a.chain = client
	}

	a.Bus = events.NewBus(logger, events.DefaultBuffer)
	a.shutdown.Add("event-bus", a.Bus.Shutdown)

	a.Registry = monitor.NewRegistry(logger)
	if err := a.registerMonitors(logger); err != nil {
		return nil, err
	}
	a.shutdown.Add("monitors", a.Registry.Shutdown)

	if cfg.ExportDir != "" {
		format, err := export.ParseFormat(cfg.ExportFormat)
		if err != nil {
			return nil, err
		}
		exporter := export.NewDetectionExporter(logger)
		// закрывается раньше мониторов, пока их списки ещё доступны
		a.shutdown.AddFunc("detection-export", func() error {
			return a.exportDetections(exporter, format)
		})
	}

	a.Analyzer = analysis.NewAnalyzer(analysis.NewDexScreenerEnricher(dex), cfg.AnalysisConcurrency, logger)

	a.Server = api.NewServer(a.Orchestrator, a.Registry, logger,
		api.WithAnalyzer(a.Analyzer),
		api.WithEventBus(a.Bus),
		api.WithMetrics(a.Metrics),
		api.WithInfo(api.Info{Version: cfg.Version, Environment: cfg.Environment}),
	)
	a.shutdown.Add("http-server", a.Server.Shutdown)

	return a, nil
}

func (a *App) registerMonitors(logger *zap.Logger) error {
	cfg := a.Config
	extractor := poller.Extractor{
		SOLPrice:        cfg.SOLPriceUSD,
		MarketCapFactor: poller.DefaultExtractor().MarketCapFactor,
		MinMarketCap:    cfg.MinMarketCap,
		MaxMarketCap:    cfg.MaxMarketCap,
	}

	err := a.Registry.Register(monitor.StablePumpName, func() (monitor.Monitor, error) {
		return monitor.NewChainMonitor(monitor.StablePumpName, a.chain, poller.Config{
			ProgramAddress: cfg.ProgramAddress,
			PollInterval:   cfg.PollInterval,
			SignatureLimit: cfg.SignatureLimit,
			MaxProcessed:   cfg.MaxProcessedSignatures,
			Extractor:      extractor,
		}, a.Bus, logger, a.Metrics), nil
	})
	if err != nil {
		return err
	}

	return a.Registry.Register(monitor.PumpFunDirectName, func() (monitor.Monitor, error) {
		return monitor.NewDirectMonitor(monitor.PumpFunDirectName, a.Orchestrator, monitor.DirectConfig{
			Interval: cfg.DirectMonitorInterval,
		}, a.Bus, logger, a.Metrics), nil
	})
}

// exportDetections writes what the active monitors found during this run.
func (a *App) exportDetections(exporter *export.DetectionExporter, format export.Format) error {
	var tokens []domain.TokenRecord
	for _, m := range a.Registry.Active() {
		tokens = append(tokens, m.Tokens()...)
	}
	if len(tokens) == 0 {
		a.logger.Info("No detections to export")
		return nil
	}
	_, err := exporter.Export(tokens, export.Options{
		Format:    format,
		OnlyReal:  true,
		OutputDir: a.Config.ExportDir,
	})
	return err
}

// StartMonitors creates and starts the named monitors.
func (a *App) StartMonitors(ctx context.Context, names ...string) error {
	for _, name := range names {
		m, err := a.Registry.Create(name)
		if err != nil {
			return err
		}
		if err := m.Start(ctx); err != nil && !errors.Is(err, poller.ErrAlreadyRunning) {
			return fmt.Errorf("start %s: %w", name, err)
		}
		a.logger.Info("📡 Monitor started", zap.String("monitor", name))
	}
	return nil
}

// Run serves the API on cfg.HTTPAddr until ctx is cancelled or the
// listener fails, then shuts everything down.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.Config.HTTPAddr)
	if err != nil {
		_ = a.Shutdown(context.Background())
		return fmt.Errorf("listen %s: %w", a.Config.HTTPAddr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	a.logger.Info("🚀 pumpwatch started",
		zap.String("version", a.Config.Version),
		zap.String("environment", a.Config.Environment),
		zap.Strings("monitors", a.Registry.Names()))

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- a.Server.Serve(ln)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("📡 Shutdown requested")
	case err := <-serveErr:
		if err != nil {
			a.logger.Error("❌ HTTP server failed", zap.Error(err))
			runErr = err
		}
	}

	return errors.Join(runErr, a.Shutdown(context.Background()))
}

// Shutdown stops the server, the monitors, the bus and the RPC client in
// that order. Calling it again is a no-op.
func (a *App) Shutdown(ctx context.Context) error {
	return a.shutdown.Shutdown(ctx)
}
