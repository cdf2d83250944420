// internal/poller/poller.go
package poller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/pumpwatch/internal/blockchain"
	"github.com/rovshanmuradov/pumpwatch/internal/domain"
	"github.com/rovshanmuradov/pumpwatch/internal/metrics"
)

// State – состояние жизненного цикла поллера.
type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	default:
		return "unknown"
	}
}

const (
	DefaultPollInterval     = 4 * time.Second
	DefaultSignatureLimit   = 20
	DefaultDetectedCapacity = 100
	defaultTxMaxTries       = 3
	defaultTxRetryInterval  = 250 * time.Millisecond
)

// Config задаёт параметры опроса программы.
type Config struct {
	Name             string
	ProgramAddress   string
	PollInterval     time.Duration
	SignatureLimit   int
	MaxProcessed     int
	DetectedCapacity int
	TxMaxTries       uint
	TxRetryInterval  time.Duration
	Extractor        Extractor
}

func (c *Config) applyDefaults() {
	if c.Name == "" {
		c.Name = "poller"
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.SignatureLimit <= 0 {
		c.SignatureLimit = DefaultSignatureLimit
	}
	if c.MaxProcessed <= 0 {
		c.MaxProcessed = DefaultMaxProcessed
	}
	if c.DetectedCapacity <= 0 {
		c.DetectedCapacity = DefaultDetectedCapacity
	}
	if c.TxMaxTries == 0 {
		c.TxMaxTries = defaultTxMaxTries
	}
	if c.TxRetryInterval <= 0 {
		c.TxRetryInterval = defaultTxRetryInterval
	}
	if c.Extractor.SOLPrice <= 0 {
		c.Extractor = DefaultExtractor()
	}
}

// Callbacks are invoked from the polling goroutine. They must not call Stop.
type Callbacks struct {
	OnNewToken func(domain.TokenRecord)
	OnError    func(error)
}

// Poller periodically lists program signatures, fetches unseen
// transactions and reports newly created tokens.
type Poller struct {
	client    blockchain.Client
	config    Config
	callbacks Callbacks
	logger    *zap.Logger
	metrics   *metrics.Collector
	processed *SignatureSet

	// lifecycle сериализует Start/Stop
	lifecycle sync.Mutex
	ticking   atomic.Bool
	ticks     sync.WaitGroup

	mu         sync.RWMutex
	state      State
	cancel     context.CancelFunc
	done       chan struct{}
	detected   []domain.TokenRecord
	startedAt  time.Time
	lastPollAt time.Time
	lastError  string

	processedCount atomic.Uint64
	detectedCount  atomic.Uint64
	errorCount     atomic.Uint64
}

// New создает поллер в состоянии Stopped.
func New(client blockchain.Client, cfg Config, cb Callbacks, logger *zap.Logger, collector *metrics.Collector) *Poller {
	cfg.applyDefaults()
	return &Poller{
		client:    client,
		config:    cfg,
		callbacks: cb,
		logger:    logger.Named(cfg.Name),
		metrics:   collector,
		processed: NewSignatureSet(cfg.MaxProcessed),
	}
}

// Start checks connectivity and launches the polling loop. The loop
// outlives ctx; use Stop to end it.
func (p *Poller) Start(ctx context.Context) error {
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()

	if p.State() != StateStopped {
		return ErrAlreadyRunning
	}
	p.setState(StateStarting)

	version, err := p.client.Ping(ctx)
	if err != nil {
		cerr := &ConnectionError{Err: err}
		p.setState(StateStopped)
		p.recordError(cerr)
		p.logger.Error("❌ Chain connectivity check failed", zap.Error(err))
		return cerr
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})

	p.mu.Lock()
	p.state = StateRunning
	p.cancel = cancel
	p.done = done
	p.startedAt = time.Now()
	p.mu.Unlock()

	p.logger.Info("🚀 Poller started",
		zap.String("program", p.config.ProgramAddress),
		zap.String("node_version", version),
		zap.Duration("interval", p.config.PollInterval))

	go p.loop(loopCtx, done)
	return nil
}

// Stop cancels the loop, waits for the in-flight cycle and clears the
// signature set. Stopping a stopped poller is a no-op.
func (p *Poller) Stop() {
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()

	p.mu.Lock()
	if p.state != StateRunning {
		p.mu.Unlock()
		return
	}
	p.state = StateStopped
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	cancel()
	<-done
	p.processed.Clear()
	p.metrics.SetProcessedSignatures(p.config.Name, 0)
	p.logger.Info("🛑 Poller stopped",
		zap.Uint64("processed", p.processedCount.Load()),
		zap.Uint64("detected", p.detectedCount.Load()))
}

func (p *Poller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer p.ticks.Wait()

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.dispatch(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.dispatch(ctx)
		}
	}
}

// dispatch runs a cycle in its own goroutine unless one is still in flight.
func (p *Poller) dispatch(ctx context.Context) {
	if !p.ticking.CompareAndSwap(false, true) {
		p.metrics.RecordTick(p.config.Name, "skipped")
		p.logger.Debug("Previous cycle still running, skipping tick")
		return
	}
	p.ticks.Add(1)
	go func() {
		defer p.ticks.Done()
		defer p.ticking.Store(false)
		_ = p.poll(ctx)
	}()
}

// Poll runs one cycle synchronously. It returns ErrTickInProgress when a
// cycle is already running.
func (p *Poller) Poll(ctx context.Context) error {
	if !p.ticking.CompareAndSwap(false, true) {
		p.metrics.RecordTick(p.config.Name, "skipped")
		return ErrTickInProgress
	}
	defer p.ticking.Store(false)
	return p.poll(ctx)
}

func (p *Poller) poll(ctx context.Context) error {
	sigs, err := p.client.GetSignaturesForAddress(ctx, p.config.ProgramAddress, p.config.SignatureLimit)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.metrics.RecordTick(p.config.Name, "error")
		p.recordError(err)
		p.logger.Warn("⚠️ Failed to list signatures", zap.Error(err))
		return err
	}

	p.mu.Lock()
	p.lastPollAt = time.Now()
	p.mu.Unlock()

	found := 0
	for _, sig := range sigs {
		if ctx.Err() != nil || !p.IsRunning() {
			break
		}
		if !p.processed.Add(sig.Signature) {
			continue
		}
		p.processedCount.Add(1)
		if sig.Failed {
			continue
		}

		token, ok := p.inspect(ctx, sig.Signature)
		if !ok {
			continue
		}
		// Stop может прийти, пока транзакция загружалась
		if !p.IsRunning() {
			break
		}
		found++
		p.remember(token)
		if p.callbacks.OnNewToken != nil {
			p.callbacks.OnNewToken(token)
		}
	}

	p.metrics.SetProcessedSignatures(p.config.Name, p.processed.Len())
	p.metrics.RecordTick(p.config.Name, "ok")
	if found > 0 {
		p.logger.Info("✅ New tokens detected", zap.Int("count", found))
	}
	return nil
}

// inspect fetches and classifies one transaction.
func (p *Poller) inspect(ctx context.Context, signature string) (domain.TokenRecord, bool) {
	tx, err := p.fetchTransaction(ctx, signature)
	if err != nil {
		if ctx.Err() == nil {
			p.recordError(&ParseError{Signature: signature, Err: err})
			p.logger.Debug("Failed to fetch transaction",
				zap.String("signature", signature), zap.Error(err))
		}
		return domain.TokenRecord{}, false
	}
	if tx.Failed || !IsCreationTransaction(tx) {
		return domain.TokenRecord{}, false
	}

	token, err := p.config.Extractor.Extract(tx, time.Now())
	if err != nil {
		p.recordError(err)
		p.logger.Warn("⚠️ Failed to extract token",
			zap.String("signature", signature), zap.Error(err))
		return domain.TokenRecord{}, false
	}
	return token, true
}

func (p *Poller) fetchTransaction(ctx context.Context, signature string) (*blockchain.Transaction, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = p.config.TxRetryInterval

	return backoff.Retry(ctx, func() (*blockchain.Transaction, error) {
		return p.client.GetTransaction(ctx, signature)
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(p.config.TxMaxTries),
	)
}

func (p *Poller) remember(token domain.TokenRecord) {
	p.detectedCount.Add(1)
	p.metrics.RecordDetection(p.config.Name)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.detected = append(p.detected, token)
	if over := len(p.detected) - p.config.DetectedCapacity; over > 0 {
		p.detected = append([]domain.TokenRecord(nil), p.detected[over:]...)
	}
}

func (p *Poller) recordError(err error) {
	p.errorCount.Add(1)
	p.mu.Lock()
	p.lastError = err.Error()
	p.mu.Unlock()
	if p.callbacks.OnError != nil {
		p.callbacks.OnError(err)
	}
}

func (p *Poller) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

func (p *Poller) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

func (p *Poller) IsRunning() bool {
	return p.State() == StateRunning
}

// Detected returns recently detected tokens, newest first.
func (p *Poller) Detected() []domain.TokenRecord {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]domain.TokenRecord, len(p.detected))
	for i, t := range p.detected {
		out[len(p.detected)-1-i] = t
	}
	return out
}

func (p *Poller) ClearDetected() {
	p.mu.Lock()
	p.detected = nil
	p.mu.Unlock()
}

func (p *Poller) Status() domain.MonitorStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return domain.MonitorStatus{
		Name:                    p.config.Name,
		IsRunning:               p.state == StateRunning,
		State:                   p.state.String(),
		ProcessedSignatureCount: p.processedCount.Load(),
		DetectedCount:           p.detectedCount.Load(),
		ErrorCount:              p.errorCount.Load(),
		PollIntervalMs:          p.config.PollInterval.Milliseconds(),
		StartedAt:               p.startedAt,
		LastPollAt:              p.lastPollAt,
		LastError:               p.lastError,
	}
}

// ProcessedSet exposes the signature set size bound for diagnostics.
func (p *Poller) ProcessedSet() *SignatureSet {
	return p.processed
}
