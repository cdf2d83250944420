package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/pumpwatch/internal/analysis"
	"github.com/rovshanmuradov/pumpwatch/internal/domain"
	"github.com/rovshanmuradov/pumpwatch/internal/events"
	"github.com/rovshanmuradov/pumpwatch/internal/metrics"
	"github.com/rovshanmuradov/pumpwatch/internal/monitor"
)

type stubAggregator struct {
	mu     sync.Mutex
	result *domain.AggregatedResult
	err    error
	limits []int
}

func (s *stubAggregator) FetchAggregatedTokens(_ context.Context, limit int) (*domain.AggregatedResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limits = append(s.limits, limit)
	return s.result, s.err
}

func (s *stubAggregator) Latest() *domain.AggregatedResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

type stubMonitor struct {
	mu       sync.Mutex
	running  bool
	startErr error
	tokens   []domain.TokenRecord
}

func (m *stubMonitor) Name() string { return "stable-pump" }

func (m *stubMonitor) Start(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.startErr != nil {
		return m.startErr
	}
	m.running = true
	return nil
}

func (m *stubMonitor) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = false
	return nil
}

func (m *stubMonitor) Status() domain.MonitorStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return domain.MonitorStatus{Name: "stable-pump", IsRunning: m.running}
}

func (m *stubMonitor) Tokens() []domain.TokenRecord { return m.tokens }

func (m *stubMonitor) Clear() { m.tokens = nil }

func realTokens(n int) []domain.TokenRecord {
	out := make([]domain.TokenRecord, n)
	for i := range out {
		out[i] = domain.TokenRecord{
			Mint:         solana.NewWallet().PublicKey().String(),
			Name:         "Token",
			Symbol:       "TKN",
			CreatedAt:    time.Now().Add(-time.Hour),
			MarketCapUSD: 5000,
			SourceTag:    domain.SourcePumpFun,
			Verified:     true,
		}
	}
	return out
}

type fixture struct {
	server  *Server
	handler http.Handler
	agg     *stubAggregator
	mon     *stubMonitor
	bus     *events.Bus
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)

	agg := &stubAggregator{result: &domain.AggregatedResult{
		Tokens:  realTokens(5),
		Sources: []string{domain.SourcePumpFun},
		IsReal:  true,
	}}
	mon := &stubMonitor{}
	registry := monitor.NewRegistry(logger)
	require.NoError(t, registry.Register("stable-pump", func() (monitor.Monitor, error) { return mon, nil }))

	bus := events.NewBus(logger, 16)
	t.Cleanup(func() { _ = bus.Shutdown(context.Background()) })

	srv := NewServer(agg, registry, logger,
		WithAnalyzer(analysis.NewAnalyzer(nil, 2, logger)),
		WithEventBus(bus),
		WithMetrics(metrics.NewCollector()),
		WithInfo(Info{Version: "1.2.3", Environment: "test"}),
	)
	return &fixture{server: srv, handler: srv.Handler(), agg: agg, mon: mon, bus: bus}
}

func (f *fixture) do(t *testing.T, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded), rec.Body.String())
	return rec, decoded
}

func TestHandleTokens(t *testing.T) {
	f := newFixture(t)

	rec, body := f.do(t, http.MethodGet, "/api/tokens?limit=2&offset=1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "real", body["source"])
	assert.Equal(t, float64(5), body["total"])
	assert.Len(t, body["data"], 2)
	assert.NotEmpty(t, body["timestamp"])

	// offset применяется после агрегации
	assert.Equal(t, []int{3}, f.agg.limits)
}

func TestHandleTokensLimits(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", 20},
		{"?limit=abc", 20},
		{"?limit=-4", 20},
		{"?limit=500", 100},
		{"?limit=7&offset=-3", 7},
		{"?limit=100&offset=100000000", 100 + maxOffset},
		{"?offset=9999999999999999999999", 20},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			f := newFixture(t)
			f.do(t, http.MethodGet, "/api/tokens"+tt.query, "")
			assert.Equal(t, []int{tt.want}, f.agg.limits)
		})
	}
}

func TestHandleTokensFallbackAndOffsetPastEnd(t *testing.T) {
	f := newFixture(t)
	f.agg.result = &domain.AggregatedResult{
		Tokens:  []domain.TokenRecord{{Mint: "fallback-1", SourceTag: domain.SourceFallback}},
		Sources: []string{domain.SourceFallback},
	}

	_, body := f.do(t, http.MethodGet, "/api/tokens?offset=10", "")
	assert.Equal(t, "fallback", body["source"])
	assert.Equal(t, false, body["isReal"])
	assert.Equal(t, []any{}, body["data"])
}

func TestHandleTokensAggregatorError(t *testing.T) {
	f := newFixture(t)
	f.agg.err = context.DeadlineExceeded

	rec, body := f.do(t, http.MethodGet, "/api/tokens", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.NotEmpty(t, body["message"])
}

func TestHandleToken(t *testing.T) {
	f := newFixture(t)
	known := f.agg.result.Tokens[2].Mint
	detected := solana.NewWallet().PublicKey().String()
	f.mon.tokens = []domain.TokenRecord{{Mint: detected, SourceTag: domain.SourceChain, Verified: true}}
	_, err := f.server.registry.Create("stable-pump")
	require.NoError(t, err)

	rec, body := f.do(t, http.MethodGet, "/api/token/"+known, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, known, body["data"].(map[string]any)["mint"])

	rec, body = f.do(t, http.MethodGet, "/api/token/"+detected, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "chain", body["data"].(map[string]any)["sourceTag"])

	rec, body = f.do(t, http.MethodGet, "/api/token/"+solana.NewWallet().PublicKey().String(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Token not found", body["error"])

	rec, body = f.do(t, http.MethodGet, "/api/token/not-base58!", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Token not found", body["error"])
}

func TestHandleMonitorActions(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name       string
		method     string
		target     string
		body       string
		wantCode   int
		wantOK     bool
		wantError  string
		wantActive bool
	}{
		{"default status", http.MethodGet, "/api/stable-pump-monitor", "", 200, true, "", false},
		{"start", http.MethodGet, "/api/stable-pump-monitor?action=start", "", 200, true, "", true},
		{"start again", http.MethodPost, "/api/stable-pump-monitor?action=start", "", 200, true, "", true},
		{"tokens", http.MethodGet, "/api/stable-pump-monitor?action=tokens", "", 200, true, "", true},
		{"stop via body", http.MethodPost, "/api/stable-pump-monitor", `{"action":"stop"}`, 200, true, "", false},
		{"clear", http.MethodPost, "/api/stable-pump-monitor?action=clear", "", 200, true, "", false},
		{"invalid action", http.MethodGet, "/api/stable-pump-monitor?action=explode", "", 400, false, "Invalid action", false},
		{"unknown monitor", http.MethodGet, "/api/ghost-monitor?action=status", "", 404, false, "Monitor not found", false},
		{"missing suffix", http.MethodGet, "/api/stable-pump", "", 404, false, "Monitor not found", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := f.do(t, tt.method, tt.target, tt.body)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantOK, body["success"])
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, body["error"])
			}
			assert.Equal(t, tt.wantActive, f.mon.Status().IsRunning)
		})
	}
}

func TestHandleMonitorStartFailure(t *testing.T) {
	f := newFixture(t)
	f.mon.startErr = errors.New("chain connection failed: refused")

	rec, body := f.do(t, http.MethodPost, "/api/stable-pump-monitor?action=start", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Failed to start monitor", body["error"])
	assert.Contains(t, body["message"], "refused")
}

func TestHandleAnalyze(t *testing.T) {
	f := newFixture(t)

	rec, body := f.do(t, http.MethodGet, "/api/tokens/analyze?limit=3", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].([]any)
	require.Len(t, data, 5)

	first := data[0].(map[string]any)
	breakdown := first["breakdown"].(map[string]any)
	assert.Contains(t, breakdown, "total")
	assert.Equal(t, []int{3}, f.agg.limits)
}

func TestHandleHealth(t *testing.T) {
	f := newFixture(t)

	rec, body := f.do(t, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "1.2.3", body["version"])
	assert.Equal(t, "test", body["environment"])
}

func TestUnknownRoute(t *testing.T) {
	f := newFixture(t)
	rec, body := f.do(t, http.MethodGet, "/nowhere", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, false, body["success"])
}

func TestRecoverPanics(t *testing.T) {
	f := newFixture(t)
	h := f.server.recoverPanics(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tokens", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "boom", body["message"])
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodGet, "/api/health", "")

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pumpwatch_http_requests_total")
}

func TestStreamPushesDetections(t *testing.T) {
	f := newFixture(t)
	ts := httptest.NewServer(f.handler)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	tok := domain.TokenRecord{Mint: "stream-mint", SourceTag: domain.SourceChain, Verified: true}
	// подписка создаётся после апгрейда, публикуем до первого кадра
	require.Eventually(t, func() bool {
		return f.bus.Stats().HandlersPerType[string(events.TokenDetected)] == 1
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, f.bus.Publish(events.NewTokenDetected("stable-pump", tok)))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame map[string]any
	require.NoError(t, conn.ReadJSON(&frame))

	assert.Equal(t, "token.detected", frame["type"])
	assert.Equal(t, "stable-pump", frame["monitor"])
	assert.Equal(t, "stream-mint", frame["token"].(map[string]any)["mint"])
}
