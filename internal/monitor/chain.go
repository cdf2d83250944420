// internal/monitor/chain.go
package monitor

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/pumpwatch/internal/blockchain"
	"github.com/rovshanmuradov/pumpwatch/internal/domain"
	"github.com/rovshanmuradov/pumpwatch/internal/events"
	"github.com/rovshanmuradov/pumpwatch/internal/metrics"
	"github.com/rovshanmuradov/pumpwatch/internal/poller"
)

const StablePumpName = "stable-pump"

// ChainMonitor exposes the chain poller as a Monitor and forwards its
// detections to the event bus.
type ChainMonitor struct {
	name   string
	poller *poller.Poller
	bus    *events.Bus
	logger *zap.Logger
}

func NewChainMonitor(name string, client blockchain.Client, cfg poller.Config, bus *events.Bus,
	logger *zap.Logger, collector *metrics.Collector) *ChainMonitor {
	m := &ChainMonitor{
		name:   name,
		bus:    bus,
		logger: logger.Named(name),
	}
	cfg.Name = name
	m.poller = poller.New(client, cfg, poller.Callbacks{
		OnNewToken: m.onNewToken,
		OnError:    m.onError,
	}, logger, collector)
	return m
}

func (m *ChainMonitor) onNewToken(token domain.TokenRecord) {
	m.logger.Info("🆕 Token created on chain",
		zap.String("mint", token.Mint),
		zap.String("symbol", token.Symbol))
	_ = m.bus.Publish(events.NewTokenDetected(m.name, token))
}

func (m *ChainMonitor) onError(err error) {
	var connErr *poller.ConnectionError
	if errors.As(err, &connErr) {
		_ = m.bus.Publish(events.NewMonitorFailed(m.name, err))
	}
}

func (m *ChainMonitor) Name() string { return m.name }

func (m *ChainMonitor) Start(ctx context.Context) error {
	if err := m.poller.Start(ctx); err != nil {
		return err
	}
	_ = m.bus.Publish(events.NewMonitorStarted(m.name))
	return nil
}

func (m *ChainMonitor) Stop() error {
	if !m.poller.IsRunning() {
		return nil
	}
	m.poller.Stop()
	_ = m.bus.Publish(events.NewMonitorStopped(m.name, "requested"))
	return nil
}

func (m *ChainMonitor) Status() domain.MonitorStatus { return m.poller.Status() }

func (m *ChainMonitor) Tokens() []domain.TokenRecord { return m.poller.Detected() }

func (m *ChainMonitor) Clear() { m.poller.ClearDetected() }
