package aggregator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/pumpwatch/internal/domain"
	"github.com/rovshanmuradov/pumpwatch/internal/metrics"
	"github.com/rovshanmuradov/pumpwatch/internal/sources"
)

var fixedNow = time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)

type stubAdapter struct {
	name     string
	priority int
	records  []domain.TokenRecord
	err      error

	mu        sync.Mutex
	calls     int
	lastLimit int
	log       *[]string
}

func (s *stubAdapter) Name() string  { return s.name }
func (s *stubAdapter) Priority() int { return s.priority }

func (s *stubAdapter) Fetch(ctx context.Context, q sources.Query) ([]domain.TokenRecord, error) {
	s.mu.Lock()
	s.calls++
	s.lastLimit = q.Limit
	if s.log != nil {
		*s.log = append(*s.log, s.name)
	}
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if q.Limit > 0 && len(s.records) > q.Limit {
		return s.records[:q.Limit], nil
	}
	return s.records, nil
}

func (s *stubAdapter) LastLimit() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastLimit
}

func (s *stubAdapter) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func realToken(i int, age time.Duration) domain.TokenRecord {
	return domain.TokenRecord{
		Mint:         fmt.Sprintf("mint-%d", i),
		Name:         fmt.Sprintf("Token %d", i),
		Symbol:       fmt.Sprintf("TK%d", i),
		CreatedAt:    fixedNow.Add(-age),
		MarketCapUSD: 5000,
		Liquidity:    1000,
		SourceTag:    domain.SourceDexScreener,
		Verified:     true,
	}
}

func newTestOrchestrator(t *testing.T, cfg Config, adapters ...sources.Adapter) *Orchestrator {
	t.Helper()
	return NewOrchestrator(adapters, cfg, zaptest.NewLogger(t), metrics.NewCollector(),
		WithClock(func() time.Time { return fixedNow }),
		WithRand(rand.New(rand.NewSource(1))))
}

func TestFetchSkipsFailingAdapterAndFiltersStale(t *testing.T) {
	var records []domain.TokenRecord
	for i := 0; i < 5; i++ {
		records = append(records, realToken(i, time.Duration(i+1)*time.Hour))
	}
	records = append(records, realToken(100, 30*time.Hour), realToken(101, 48*time.Hour))

	a := &stubAdapter{name: "A", priority: 1, err: errors.New("upstream down")}
	b := &stubAdapter{name: "B", priority: 2, records: records}

	o := newTestOrchestrator(t, Config{}, a, b)
	res, err := o.FetchAggregatedTokens(context.Background(), 10)
	require.NoError(t, err)

	assert.True(t, res.IsReal)
	assert.Equal(t, []string{"B"}, res.Sources)
	require.Len(t, res.Tokens, 5)
	for i, tok := range res.Tokens {
		assert.Equal(t, fmt.Sprintf("mint-%d", i), tok.Mint)
	}
	assert.Equal(t, 1, a.Calls())
	assert.Same(t, res, o.Latest())
}

func TestFetchAllAdaptersFailReturnsFallback(t *testing.T) {
	a := &stubAdapter{name: "A", priority: 1, err: errors.New("boom")}
	b := &stubAdapter{name: "B", priority: 2, err: &sources.FetchError{Source: "B", StatusCode: 503, Err: sources.ErrUpstreamStatus}}
	c := &stubAdapter{name: "C", priority: 3}

	o := newTestOrchestrator(t, Config{}, a, b, c)
	res, err := o.FetchAggregatedTokens(context.Background(), 7)
	require.NoError(t, err)

	assert.False(t, res.IsReal)
	assert.Equal(t, []string{domain.SourceFallback}, res.Sources)
	require.Len(t, res.Tokens, 7)
	for _, tok := range res.Tokens {
		assert.False(t, tok.Verified)
		assert.Equal(t, domain.SourceFallback, tok.SourceTag)
		assert.NoError(t, tok.Validate())
	}
}

func TestFetchAnySuccessIsReal(t *testing.T) {
	a := &stubAdapter{name: "A", priority: 1, err: errors.New("boom")}
	b := &stubAdapter{name: "B", priority: 2, err: errors.New("boom")}
	c := &stubAdapter{name: "C", priority: 3, records: []domain.TokenRecord{realToken(1, time.Minute)}}

	res, err := newTestOrchestrator(t, Config{}, a, b, c).FetchAggregatedTokens(context.Background(), 10)
	require.NoError(t, err)
	assert.True(t, res.IsReal)
	assert.Equal(t, []string{"C"}, res.Sources)
	assert.Len(t, res.Tokens, 1)
}

func TestFetchAllFilteredOutStaysReal(t *testing.T) {
	a := &stubAdapter{name: "A", priority: 1, records: []domain.TokenRecord{realToken(1, 72*time.Hour)}}

	res, err := newTestOrchestrator(t, Config{}, a).FetchAggregatedTokens(context.Background(), 10)
	require.NoError(t, err)
	assert.True(t, res.IsReal)
	assert.Empty(t, res.Tokens)
}

func TestFetchEarlyStop(t *testing.T) {
	var many []domain.TokenRecord
	for i := 0; i < 12; i++ {
		many = append(many, realToken(i, time.Minute))
	}

	tests := []struct {
		name          string
		firstPriority int
		wantNextCalls int
	}{
		{"high priority source stops iteration", 1, 0},
		{"cutoff priority still stops", 2, 0},
		{"low priority source does not stop", 3, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first := &stubAdapter{name: "first", priority: tt.firstPriority, records: many}
			next := &stubAdapter{name: "next", priority: tt.firstPriority + 1, records: []domain.TokenRecord{realToken(50, time.Minute)}}

			res, err := newTestOrchestrator(t, Config{}, first, next).FetchAggregatedTokens(context.Background(), 20)
			require.NoError(t, err)
			assert.Equal(t, tt.wantNextCalls, next.Calls())
			assert.True(t, res.IsReal)
		})
	}
}

func TestFetchSmallLimitStillStopsEarly(t *testing.T) {
	var many []domain.TokenRecord
	for i := 0; i < 12; i++ {
		many = append(many, realToken(i, time.Minute))
	}
	first := &stubAdapter{name: "first", priority: 1, records: many}
	next := &stubAdapter{name: "next", priority: 2, records: []domain.TokenRecord{realToken(50, time.Minute)}}

	res, err := newTestOrchestrator(t, Config{}, first, next).FetchAggregatedTokens(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, DefaultEarlyStopThreshold, first.LastLimit())
	assert.Equal(t, 0, next.Calls())
	assert.Equal(t, []string{"first"}, res.Sources)
	assert.Len(t, res.Tokens, 5)
}

func TestFetchClampsHugeLimit(t *testing.T) {
	tests := []struct {
		name    string
		adapter *stubAdapter
		maxLen  int
	}{
		{"fallback is capped", &stubAdapter{name: "A", priority: 1, err: errors.New("down")}, MaxFallbackCount},
		{"adapter query is capped", &stubAdapter{name: "A", priority: 1, records: []domain.TokenRecord{realToken(1, time.Minute)}}, MaxFetchLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newTestOrchestrator(t, Config{}, tt.adapter)
			res, err := o.FetchAggregatedTokens(context.Background(), 100_000_000)
			require.NoError(t, err)
			assert.LessOrEqual(t, len(res.Tokens), tt.maxLen)
			assert.LessOrEqual(t, tt.adapter.LastLimit(), MaxFetchLimit)
		})
	}

	o := newTestOrchestrator(t, Config{}, &stubAdapter{name: "A", priority: 1, err: errors.New("down")})
	res, err := o.FetchAggregatedTokens(context.Background(), 100_000_000)
	require.NoError(t, err)
	assert.Len(t, res.Tokens, MaxFallbackCount)
}

func TestFetchBelowThresholdContinues(t *testing.T) {
	first := &stubAdapter{name: "first", priority: 1, records: []domain.TokenRecord{realToken(1, time.Minute)}}
	second := &stubAdapter{name: "second", priority: 2, records: []domain.TokenRecord{realToken(2, time.Minute)}}

	res, err := newTestOrchestrator(t, Config{}, first, second).FetchAggregatedTokens(context.Background(), 20)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, res.Sources)
	assert.Len(t, res.Tokens, 2)
}

func TestAdaptersConsultedInPriorityOrder(t *testing.T) {
	var order []string
	c := &stubAdapter{name: "C", priority: 3, err: errors.New("x"), log: &order}
	a := &stubAdapter{name: "A", priority: 1, err: errors.New("x"), log: &order}
	b := &stubAdapter{name: "B", priority: 2, err: errors.New("x"), log: &order}

	o := newTestOrchestrator(t, Config{}, c, a, b)
	_, err := o.FetchAggregatedTokens(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, order)
}

func TestSharedRateGateSpacesCalls(t *testing.T) {
	a := &stubAdapter{name: "A", priority: 1, err: errors.New("x")}
	b := &stubAdapter{name: "B", priority: 2, err: errors.New("x")}
	c := &stubAdapter{name: "C", priority: 3, err: errors.New("x")}

	o := newTestOrchestrator(t, Config{MinRequestDelay: 40 * time.Millisecond}, a, b, c)
	start := time.Now()
	_, err := o.FetchAggregatedTokens(context.Background(), 5)
	require.NoError(t, err)

	// first call is free, the next two each wait for a token
	assert.GreaterOrEqual(t, time.Since(start), 70*time.Millisecond)
}

func TestFetchHonoursCancellation(t *testing.T) {
	a := &stubAdapter{name: "A", priority: 1, err: errors.New("x")}
	b := &stubAdapter{name: "B", priority: 2}

	o := newTestOrchestrator(t, Config{MinRequestDelay: time.Hour}, a, b)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := o.FetchAggregatedTokens(ctx, 5)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, b.Calls())
}

func TestFetchUsesCache(t *testing.T) {
	now := fixedNow
	a := &stubAdapter{name: "A", priority: 1, records: []domain.TokenRecord{realToken(1, time.Minute)}}
	o := NewOrchestrator([]sources.Adapter{a}, Config{CacheTTL: 45 * time.Second}, zaptest.NewLogger(t), nil,
		WithClock(func() time.Time { return now }))

	first, err := o.FetchAggregatedTokens(context.Background(), 10)
	require.NoError(t, err)
	second, err := o.FetchAggregatedTokens(context.Background(), 10)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, a.Calls())

	// different limit is a different key
	_, err = o.FetchAggregatedTokens(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, 2, a.Calls())

	now = now.Add(46 * time.Second)
	_, err = o.FetchAggregatedTokens(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 3, a.Calls())

	o.InvalidateCache()
	_, err = o.FetchAggregatedTokens(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 4, a.Calls())
}
