// internal/monitor/direct.go
package monitor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/pumpwatch/internal/domain"
	"github.com/rovshanmuradov/pumpwatch/internal/events"
	"github.com/rovshanmuradov/pumpwatch/internal/metrics"
	"github.com/rovshanmuradov/pumpwatch/internal/poller"
)

const (
	PumpFunDirectName     = "pump-fun-direct"
	DefaultDirectInterval = 30 * time.Second
	defaultDirectLimit    = 50
	defaultKeepTokens     = 100
)

// TokenFetcher is the part of the orchestrator the direct monitor needs.
type TokenFetcher interface {
	FetchAggregatedTokens(ctx context.Context, limit int) (*domain.AggregatedResult, error)
}

type DirectConfig struct {
	Interval   time.Duration
	FetchLimit int
	KeepTokens int
}

// DirectMonitor polls the orchestrator and reports real tokens it has not
// seen before. Synthetic results are ignored.
type DirectMonitor struct {
	name    string
	fetcher TokenFetcher
	config  DirectConfig
	bus     *events.Bus
	metrics *metrics.Collector
	logger  *zap.Logger
	seen    *poller.SignatureSet

	lifecycle sync.Mutex
	mu        sync.RWMutex
	state     poller.State
	cancel    context.CancelFunc
	done      chan struct{}
	tokens    []domain.TokenRecord
	startedAt time.Time
	lastPoll  time.Time
	lastError string
	polls     uint64
	detected  uint64
	errCount  uint64
}

func NewDirectMonitor(name string, fetcher TokenFetcher, cfg DirectConfig, bus *events.Bus,
	logger *zap.Logger, collector *metrics.Collector) *DirectMonitor {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultDirectInterval
	}
	if cfg.FetchLimit <= 0 {
		cfg.FetchLimit = defaultDirectLimit
	}
	if cfg.KeepTokens <= 0 {
		cfg.KeepTokens = defaultKeepTokens
	}
	return &DirectMonitor{
		name:    name,
		fetcher: fetcher,
		config:  cfg,
		bus:     bus,
		metrics: collector,
		logger:  logger.Named(name),
		seen:    poller.NewSignatureSet(cfg.KeepTokens * 10),
	}
}

func (m *DirectMonitor) Name() string { return m.name }

func (m *DirectMonitor) Start(_ context.Context) error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	m.mu.Lock()
	if m.state != poller.StateStopped {
		m.mu.Unlock()
		return poller.ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.state = poller.StateRunning
	m.cancel = cancel
	m.done = make(chan struct{})
	m.startedAt = time.Now()
	done := m.done
	m.mu.Unlock()

	m.logger.Info("🚀 Direct monitor started", zap.Duration("interval", m.config.Interval))
	_ = m.bus.Publish(events.NewMonitorStarted(m.name))

	go m.run(ctx, done)
	return nil
}

func (m *DirectMonitor) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	m.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.poll(ctx)
		}
	}
}

func (m *DirectMonitor) poll(ctx context.Context) {
	res, err := m.fetcher.FetchAggregatedTokens(ctx, m.config.FetchLimit)

	m.mu.Lock()
	m.polls++
	m.lastPoll = time.Now()
	if err != nil {
		m.errCount++
		m.lastError = err.Error()
	}
	m.mu.Unlock()

	if err != nil {
		if ctx.Err() == nil {
			m.metrics.RecordTick(m.name, "error")
			m.logger.Warn("⚠️ Aggregated fetch failed", zap.Error(err))
		}
		return
	}
	m.metrics.RecordTick(m.name, "ok")
	_ = m.bus.Publish(events.NewAggregationCompleted(res))

	if !res.IsReal {
		m.logger.Debug("Skipping synthetic result", zap.Strings("sources", res.Sources))
		return
	}

	for _, tok := range res.Tokens {
		if tok.IsSynthetic() || !m.seen.Add(tok.Mint) {
			continue
		}
		if ctx.Err() != nil || !m.isRunning() {
			return
		}
		m.remember(tok)
		m.metrics.RecordDetection(m.name)
		_ = m.bus.Publish(events.NewTokenDetected(m.name, tok))
	}
}

func (m *DirectMonitor) remember(tok domain.TokenRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detected++
	m.tokens = append(m.tokens, tok)
	if over := len(m.tokens) - m.config.KeepTokens; over > 0 {
		m.tokens = append([]domain.TokenRecord(nil), m.tokens[over:]...)
	}
}

func (m *DirectMonitor) isRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state == poller.StateRunning
}

func (m *DirectMonitor) Stop() error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	m.mu.Lock()
	if m.state != poller.StateRunning {
		m.mu.Unlock()
		return nil
	}
	m.state = poller.StateStopped
	cancel, done := m.cancel, m.done
	m.mu.Unlock()

	cancel()
	<-done
	m.seen.Clear()
	m.logger.Info("🛑 Direct monitor stopped")
	_ = m.bus.Publish(events.NewMonitorStopped(m.name, "requested"))
	return nil
}

func (m *DirectMonitor) Status() domain.MonitorStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return domain.MonitorStatus{
		Name:                    m.name,
		IsRunning:               m.state == poller.StateRunning,
		State:                   m.state.String(),
		ProcessedSignatureCount: m.polls,
		DetectedCount:           m.detected,
		ErrorCount:              m.errCount,
		PollIntervalMs:          m.config.Interval.Milliseconds(),
		StartedAt:               m.startedAt,
		LastPollAt:              m.lastPoll,
		LastError:               m.lastError,
	}
}

// Tokens returns kept tokens, newest first.
func (m *DirectMonitor) Tokens() []domain.TokenRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.TokenRecord, len(m.tokens))
	for i, t := range m.tokens {
		out[len(m.tokens)-1-i] = t
	}
	return out
}

func (m *DirectMonitor) Clear() {
	m.mu.Lock()
	m.tokens = nil
	m.mu.Unlock()
}
