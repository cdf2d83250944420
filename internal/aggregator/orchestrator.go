// internal/aggregator/orchestrator.go
package aggregator

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/rovshanmuradov/pumpwatch/internal/domain"
	"github.com/rovshanmuradov/pumpwatch/internal/metrics"
	"github.com/rovshanmuradov/pumpwatch/internal/sources"
)

const (
	DefaultMinRequestDelay    = 2 * time.Second
	DefaultEarlyStopThreshold = 10
	DefaultHighPriorityCutoff = 2
	DefaultCacheTTL           = 45 * time.Second
	DefaultFallbackCount      = 20

	// MaxFetchLimit caps the limit accepted by FetchAggregatedTokens.
	MaxFetchLimit = 500
	// MaxFallbackCount caps how many synthetic tokens one fetch may generate.
	MaxFallbackCount = 100
)

// Config управляет порядком и темпом опроса источников
type Config struct {
	// MinRequestDelay is the spacing enforced between any two adapter calls.
	MinRequestDelay    time.Duration
	EarlyStopThreshold int
	HighPriorityCutoff int
	CacheTTL           time.Duration
	Filter             FilterOptions
}

type Option func(*Orchestrator)

// WithClock overrides time.Now for the cache and filter stage.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithRand fixes the RNG used by the fallback generator.
func WithRand(rng *rand.Rand) Option {
	return func(o *Orchestrator) { o.rng = rng }
}

// Orchestrator consults adapters in priority order through one shared rate gate.
type Orchestrator struct {
	adapters []sources.Adapter
	cfg      Config
	limiter  *rate.Limiter
	cache    *TTLCache[int, *domain.AggregatedResult]
	logger   *zap.Logger
	metrics  *metrics.Collector
	now      func() time.Time

	rngMu sync.Mutex
	rng   *rand.Rand

	latestMu sync.RWMutex
	latest   *domain.AggregatedResult
}

func NewOrchestrator(adapters []sources.Adapter, cfg Config, logger *zap.Logger, collector *metrics.Collector, opts ...Option) *Orchestrator {
	if cfg.EarlyStopThreshold <= 0 {
		cfg.EarlyStopThreshold = DefaultEarlyStopThreshold
	}
	if cfg.HighPriorityCutoff <= 0 {
		cfg.HighPriorityCutoff = DefaultHighPriorityCutoff
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	sorted := make([]sources.Adapter, len(adapters))
	copy(sorted, adapters)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority() < sorted[j].Priority() })

	limit := rate.Inf
	if cfg.MinRequestDelay > 0 {
		limit = rate.Every(cfg.MinRequestDelay)
	}

	o := &Orchestrator{
		adapters: sorted,
		cfg:      cfg,
		limiter:  rate.NewLimiter(limit, 1),
		logger:   logger.Named("aggregator"),
		metrics:  collector,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.rng == nil {
		o.rng = rand.New(rand.NewSource(o.now().UnixNano()))
	}
	o.cache = NewTTLCache[int, *domain.AggregatedResult](cfg.CacheTTL, o.now)
	return o
}

// Adapters returns the adapters in consultation order.
func (o *Orchestrator) Adapters() []sources.Adapter {
	out := make([]sources.Adapter, len(o.adapters))
	copy(out, o.adapters)
	return out
}

// FetchAggregatedTokens collects up to limit tokens. Adapter failures never
// fail the call; the only error is ctx cancellation. When no adapter produced
// anything the result is synthetic with IsReal=false.
func (o *Orchestrator) FetchAggregatedTokens(ctx context.Context, limit int) (*domain.AggregatedResult, error) {
	limit = min(limit, MaxFetchLimit)
	if cached, ok := o.cache.Get(limit); ok {
		o.metrics.RecordAggregation("cache")
		return cached, nil
	}

	var (
		collected []domain.TokenRecord
		used      []string
	)

	// адаптеры отдают не меньше порога, иначе ранняя остановка не сработает
	query := sources.Query{Limit: limit}
	if limit > 0 {
		query.Limit = max(limit, o.cfg.EarlyStopThreshold)
	}

	for _, adapter := range o.adapters {
		if err := o.wait(ctx); err != nil {
			return nil, err
		}

		start := time.Now()
		records, err := adapter.Fetch(ctx, query)
		o.metrics.RecordSourceFetch(adapter.Name(), time.Since(start), err)

		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			o.logger.Warn("⚠️ Source failed, trying next",
				zap.String("source", adapter.Name()),
				zap.Int("priority", adapter.Priority()),
				zap.Error(err))
			continue
		}
		if len(records) == 0 {
			o.logger.Debug("Source returned no tokens", zap.String("source", adapter.Name()))
			continue
		}

		collected = append(collected, records...)
		used = append(used, adapter.Name())
		o.logger.Debug("Source produced tokens", zap.String("source", adapter.Name()), zap.Int("count", len(records)))

		if adapter.Priority() <= o.cfg.HighPriorityCutoff && len(records) >= o.cfg.EarlyStopThreshold {
			o.logger.Debug("Early stop on high-priority source", zap.String("source", adapter.Name()))
			break
		}
	}

	now := o.now()
	var result *domain.AggregatedResult
	if len(used) > 0 {
		filterOpts := o.cfg.Filter
		filterOpts.Now = now
		result = &domain.AggregatedResult{
			Tokens:    FilterAndClean(collected, limit, filterOpts),
			Sources:   used,
			IsReal:    true,
			FetchedAt: now,
		}
		o.metrics.RecordAggregation("real")
	} else {
		count := limit
		if count <= 0 {
			count = DefaultFallbackCount
		}
		count = min(count, MaxFallbackCount)
		o.rngMu.Lock()
		synthetic := GenerateSyntheticTokens(count, now, o.rng)
		o.rngMu.Unlock()

		result = &domain.AggregatedResult{
			Tokens:    synthetic,
			Sources:   []string{domain.SourceFallback},
			IsReal:    false,
			FetchedAt: now,
		}
		o.metrics.RecordAggregation("fallback")
		o.logger.Warn("⚠️ All sources exhausted, serving synthetic tokens", zap.Int("count", count))
	}

	o.cache.Set(limit, result)
	o.latestMu.Lock()
	o.latest = result
	o.latestMu.Unlock()
	return result, nil
}

// Latest returns the most recent aggregated result, or nil before the first fetch.
func (o *Orchestrator) Latest() *domain.AggregatedResult {
	o.latestMu.RLock()
	defer o.latestMu.RUnlock()
	return o.latest
}

// InvalidateCache forces the next fetch to hit the adapters.
func (o *Orchestrator) InvalidateCache() {
	o.cache.Purge()
}

// wait блокирует до освобождения общего лимита запросов
func (o *Orchestrator) wait(ctx context.Context) error {
	r := o.limiter.Reserve()
	if !r.OK() {
		return fmt.Errorf("rate: cannot reserve token")
	}
	delay := r.Delay()
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	}
}
