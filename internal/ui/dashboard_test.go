package ui

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/pumpwatch/internal/domain"
	"github.com/rovshanmuradov/pumpwatch/internal/events"
	"github.com/rovshanmuradov/pumpwatch/internal/logger"
)

type stubFetcher struct {
	result *domain.AggregatedResult
	err    error
	calls  int
	limit  int
}

func (s *stubFetcher) FetchAggregatedTokens(_ context.Context, limit int) (*domain.AggregatedResult, error) {
	s.calls++
	s.limit = limit
	return s.result, s.err
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestDashboard(t *testing.T, f *stubFetcher) *Dashboard {
	t.Helper()
	d := NewDashboard(f, nil, nil, Config{Limit: 5}, zaptest.NewLogger(t))
	d.now = func() time.Time { return fixedNow }
	return d
}

func sampleResult(isReal bool) *domain.AggregatedResult {
	tag := domain.SourcePumpFun
	if !isReal {
		tag = domain.SourceFallback
	}
	return &domain.AggregatedResult{
		Tokens: []domain.TokenRecord{{
			Mint:         "m1",
			Name:         "Moon Frog",
			Symbol:       "MFROG",
			CreatedAt:    fixedNow.Add(-2 * time.Hour),
			MarketCapUSD: 12_300,
			Liquidity:    850,
			SourceTag:    tag,
			Verified:     isReal,
		}},
		Sources: []string{tag},
		IsReal:  isReal,
	}
}

func keyMsg(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestDashboardLoadsTokens(t *testing.T) {
	f := &stubFetcher{result: sampleResult(true)}
	d := newTestDashboard(t, f)

	msg := d.fetchCmd()()
	loaded, ok := msg.(TokensLoadedMsg)
	require.True(t, ok)
	assert.Equal(t, 5, f.limit)

	_, cmd := d.Update(loaded)
	assert.NotNil(t, cmd, "next refresh is scheduled")
	assert.False(t, d.loading)

	rows := d.table.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, "MFROG", rows[0][0])
	assert.Equal(t, "$12.3k", rows[0][2])
	assert.Equal(t, "$850", rows[0][3])
	assert.Equal(t, "2h", rows[0][4])

	view := d.View()
	assert.Contains(t, view, "REAL")
	assert.Contains(t, view, "1 tokens from pumpfun")
}

func TestDashboardSyntheticBadge(t *testing.T) {
	d := newTestDashboard(t, &stubFetcher{})
	d.Update(TokensLoadedMsg{Result: sampleResult(false)})

	assert.Contains(t, d.View(), "SYNTHETIC")
}

func TestDashboardKeepsDataOnError(t *testing.T) {
	d := newTestDashboard(t, &stubFetcher{})
	d.Update(TokensLoadedMsg{Result: sampleResult(true)})
	d.Update(TokensLoadedMsg{Err: errors.New("upstream timeout")})

	assert.Len(t, d.table.Rows(), 1)
	assert.Contains(t, d.View(), "upstream timeout")
}

func TestDashboardRefreshKey(t *testing.T) {
	d := newTestDashboard(t, &stubFetcher{})

	// начальная загрузка ещё идёт, повторный запрос не нужен
	_, cmd := d.Update(keyMsg('r'))
	assert.Nil(t, cmd)

	d.Update(TokensLoadedMsg{Result: sampleResult(true)})
	_, cmd = d.Update(keyMsg('r'))
	assert.NotNil(t, cmd)
	assert.True(t, d.loading)
}

func TestDashboardIgnoresStaleTicks(t *testing.T) {
	d := newTestDashboard(t, &stubFetcher{})
	d.Update(TokensLoadedMsg{Result: sampleResult(true)})
	current := d.tickGen

	_, cmd := d.Update(RefreshTickMsg{gen: current - 1})
	assert.Nil(t, cmd)
	assert.False(t, d.loading)

	_, cmd = d.Update(RefreshTickMsg{gen: current})
	assert.NotNil(t, cmd)
	assert.True(t, d.loading)
}

func TestDashboardQuit(t *testing.T) {
	d := newTestDashboard(t, &stubFetcher{})
	_, cmd := d.Update(keyMsg('q'))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestDashboardDetections(t *testing.T) {
	sender := NewUpdateSender(4, zap.NewNop())
	defer sender.Close()

	d := NewDashboard(&stubFetcher{}, sender, nil, Config{MaxDetections: 2}, zaptest.NewLogger(t))
	for _, mint := range []string{"a", "b", "c"} {
		_, cmd := d.Update(DetectionMsg{Event: events.NewTokenDetected("stable-pump",
			domain.TokenRecord{Mint: mint, Symbol: "SYM" + mint, Name: "Token " + mint})})
		assert.NotNil(t, cmd, "keeps listening")
	}

	require.Len(t, d.detections, 2)
	assert.Equal(t, "c", d.detections[0].Token.Mint)
	assert.Contains(t, d.View(), "SYMc")

	d.Update(MonitorEventMsg{Event: events.NewMonitorFailed("stable-pump", errors.New("rpc down"))})
	assert.Contains(t, d.View(), "stable-pump failed: rpc down")
}

func TestDashboardLogPane(t *testing.T) {
	buf := logger.NewLogBuffer(10)
	buf.Add(logger.LogEntry{Timestamp: fixedNow, Level: "WARN", Logger: "poller", Message: "slow rpc"})
	buf.Add(logger.LogEntry{Timestamp: fixedNow, Level: "DEBUG", Message: "hidden"})

	pane := NewLogPane(buf)
	d := NewDashboard(&stubFetcher{}, nil, pane, Config{}, zaptest.NewLogger(t))
	d.Update(tea.WindowSizeMsg{Width: 120, Height: 40})

	_, cmd := d.Update(LogTickMsg{})
	assert.NotNil(t, cmd)

	view := d.View()
	assert.Contains(t, view, "slow rpc")
	assert.Contains(t, view, "(poller)")
	assert.NotContains(t, view, "hidden")

	d.Update(keyMsg('l'))
	assert.False(t, pane.Visible())
	assert.NotContains(t, d.View(), "slow rpc")
}
