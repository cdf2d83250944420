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
)

type fakeMonitor struct {
	mu      sync.Mutex
	name    string
	running bool
	stops   int
	stopErr error
	tokens  []domain.TokenRecord
}

func (f *fakeMonitor) Name() string { return f.name }

func (f *fakeMonitor) Start(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = true
	return nil
}

func (f *fakeMonitor) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = false
	f.stops++
	return f.stopErr
}

func (f *fakeMonitor) Status() domain.MonitorStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return domain.MonitorStatus{Name: f.name, IsRunning: f.running}
}

func (f *fakeMonitor) Tokens() []domain.TokenRecord { return f.tokens }

func (f *fakeMonitor) Clear() { f.tokens = nil }

func TestRegistryCreateIsIdempotent(t *testing.T) {
	reg := NewRegistry(zaptest.NewLogger(t))
	built := 0
	require.NoError(t, reg.Register("alpha", func() (Monitor, error) {
		built++
		return &fakeMonitor{name: "alpha"}, nil
	}))

	first, err := reg.Create("alpha")
	require.NoError(t, err)
	second, err := reg.Create("alpha")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, built)

	got, ok := reg.Get("alpha")
	require.True(t, ok)
	assert.Same(t, first, got)
}

func TestRegistryUnknownAndDuplicate(t *testing.T) {
	reg := NewRegistry(zaptest.NewLogger(t))
	factory := func() (Monitor, error) { return &fakeMonitor{name: "a"}, nil }

	require.NoError(t, reg.Register("a", factory))
	assert.ErrorIs(t, reg.Register("a", factory), ErrDuplicateRegister)

	_, err := reg.Create("nope")
	assert.ErrorIs(t, err, ErrUnknownMonitor)
	assert.ErrorIs(t, reg.Destroy("a"), ErrUnknownMonitor, "never created")

	assert.True(t, reg.Known("a"))
	assert.False(t, reg.Known("nope"))
}

func TestRegistryFactoryError(t *testing.T) {
	reg := NewRegistry(zaptest.NewLogger(t))
	boom := errors.New("no rpc")
	require.NoError(t, reg.Register("broken", func() (Monitor, error) { return nil, boom }))

	_, err := reg.Create("broken")
	assert.ErrorIs(t, err, boom)
	_, ok := reg.Get("broken")
	assert.False(t, ok)
}

func TestRegistryDestroyStopsAndForgets(t *testing.T) {
	reg := NewRegistry(zaptest.NewLogger(t))
	fm := &fakeMonitor{name: "a"}
	require.NoError(t, reg.Register("a", func() (Monitor, error) { return fm, nil }))

	m, err := reg.Create("a")
	require.NoError(t, err)
	require.NoError(t, m.Start(context.Background()))

	require.NoError(t, reg.Destroy("a"))
	assert.False(t, fm.Status().IsRunning)
	_, ok := reg.Get("a")
	assert.False(t, ok)

	// фабрика остаётся, монитор можно создать снова
	_, err = reg.Create("a")
	assert.NoError(t, err)
}

func TestRegistryNamesAndFindToken(t *testing.T) {
	reg := NewRegistry(zaptest.NewLogger(t))
	fm := &fakeMonitor{name: "b", tokens: []domain.TokenRecord{{Mint: "mint-1"}}}
	require.NoError(t, reg.Register("b", func() (Monitor, error) { return fm, nil }))
	require.NoError(t, reg.Register("a", func() (Monitor, error) { return &fakeMonitor{name: "a"}, nil }))

	assert.Equal(t, []string{"a", "b"}, reg.Names())

	_, ok := reg.FindToken("mint-1")
	assert.False(t, ok, "monitor not created yet")

	_, err := reg.Create("b")
	require.NoError(t, err)
	tok, ok := reg.FindToken("mint-1")
	require.True(t, ok)
	assert.Equal(t, "mint-1", tok.Mint)
}

func TestRegistryShutdown(t *testing.T) {
	reg := NewRegistry(zaptest.NewLogger(t))
	a := &fakeMonitor{name: "a"}
	b := &fakeMonitor{name: "b", stopErr: errors.New("stuck")}
	require.NoError(t, reg.Register("a", func() (Monitor, error) { return a, nil }))
	require.NoError(t, reg.Register("b", func() (Monitor, error) { return b, nil }))
	_, _ = reg.Create("a")
	_, _ = reg.Create("b")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := reg.Shutdown(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stop b")
	assert.Equal(t, 1, a.stops)
	assert.Empty(t, reg.Active())
}
