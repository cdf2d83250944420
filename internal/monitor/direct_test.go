package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/pumpwatch/internal/domain"
	"github.com/rovshanmuradov/pumpwatch/internal/events"
	"github.com/rovshanmuradov/pumpwatch/internal/poller"
)

// scriptedFetcher returns queued results in order, repeating the last one.
type scriptedFetcher struct {
	mu      sync.Mutex
	results []*domain.AggregatedResult
	err     error
	calls   int
}

func (f *scriptedFetcher) FetchAggregatedTokens(context.Context, int) (*domain.AggregatedResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	i := f.calls - 1
	if i >= len(f.results) {
		i = len(f.results) - 1
	}
	return f.results[i], nil
}

func realToken(mint string) domain.TokenRecord {
	return domain.TokenRecord{Mint: mint, Name: "n" + mint, Symbol: "S", SourceTag: domain.SourcePumpFun, Verified: true}
}

func collectDetections(t *testing.T, bus *events.Bus) func() []string {
	var mu sync.Mutex
	var mints []string
	bus.SubscribeFunc(events.TokenDetected, func(_ context.Context, e events.Event) error {
		mu.Lock()
		mints = append(mints, e.(events.TokenDetectedEvent).Token.Mint)
		mu.Unlock()
		return nil
	})
	return func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), mints...)
	}
}

func TestDirectMonitorPublishesOnlyNewRealTokens(t *testing.T) {
	bus := events.NewBus(zaptest.NewLogger(t), 64)
	defer bus.Shutdown(context.Background())
	detections := collectDetections(t, bus)

	fetcher := &scriptedFetcher{results: []*domain.AggregatedResult{
		{IsReal: true, Tokens: []domain.TokenRecord{realToken("a"), realToken("b")}},
		{IsReal: true, Tokens: []domain.TokenRecord{realToken("b"), realToken("c")}},
	}}
	m := NewDirectMonitor(PumpFunDirectName, fetcher, DirectConfig{Interval: 20 * time.Millisecond}, bus, zaptest.NewLogger(t), nil)

	require.NoError(t, m.Start(context.Background()))
	require.Eventually(t, func() bool { return len(detections()) == 3 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, m.Stop())

	assert.ElementsMatch(t, []string{"a", "b", "c"}, detections())

	tokens := m.Tokens()
	require.Len(t, tokens, 3)
	assert.Equal(t, "c", tokens[0].Mint)

	status := m.Status()
	assert.False(t, status.IsRunning)
	assert.Equal(t, uint64(3), status.DetectedCount)
	assert.Equal(t, int64(20), status.PollIntervalMs)
}

func TestDirectMonitorIgnoresSyntheticResults(t *testing.T) {
	fetcher := &scriptedFetcher{results: []*domain.AggregatedResult{{
		IsReal:  false,
		Sources: []string{domain.SourceFallback},
		Tokens:  []domain.TokenRecord{{Mint: "fallback-1", SourceTag: domain.SourceFallback}},
	}}}
	m := NewDirectMonitor(PumpFunDirectName, fetcher, DirectConfig{Interval: time.Hour}, nil, zaptest.NewLogger(t), nil)

	require.NoError(t, m.Start(context.Background()))
	require.Eventually(t, func() bool { return m.Status().ProcessedSignatureCount == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, m.Stop())

	assert.Empty(t, m.Tokens())
}

func TestDirectMonitorRecordsErrors(t *testing.T) {
	fetcher := &scriptedFetcher{err: errors.New("upstream down")}
	m := NewDirectMonitor(PumpFunDirectName, fetcher, DirectConfig{Interval: time.Hour}, nil, zaptest.NewLogger(t), nil)

	require.NoError(t, m.Start(context.Background()))
	assert.ErrorIs(t, m.Start(context.Background()), poller.ErrAlreadyRunning)
	require.Eventually(t, func() bool { return m.Status().ErrorCount == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, m.Stop())
	require.NoError(t, m.Stop())

	assert.Equal(t, "upstream down", m.Status().LastError)
	assert.Equal(t, "stopped", m.Status().State)
}

func TestDirectMonitorKeepsBoundedList(t *testing.T) {
	toks := make([]domain.TokenRecord, 0, 5)
	for _, mint := range []string{"1", "2", "3", "4", "5"} {
		toks = append(toks, realToken(mint))
	}
	fetcher := &scriptedFetcher{results: []*domain.AggregatedResult{{IsReal: true, Tokens: toks}}}
	m := NewDirectMonitor(PumpFunDirectName, fetcher, DirectConfig{Interval: time.Hour, KeepTokens: 2}, nil, zaptest.NewLogger(t), nil)

	require.NoError(t, m.Start(context.Background()))
	require.Eventually(t, func() bool { return m.Status().DetectedCount == 5 }, time.Second, 5*time.Millisecond)
	require.NoError(t, m.Stop())

	tokens := m.Tokens()
	require.Len(t, tokens, 2)
	assert.Equal(t, "5", tokens[0].Mint)
	assert.Equal(t, "4", tokens[1].Mint)

	m.Clear()
	assert.Empty(t, m.Tokens())
}
