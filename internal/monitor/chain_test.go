package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/pumpwatch/internal/blockchain"
	"github.com/rovshanmuradov/pumpwatch/internal/events"
	"github.com/rovshanmuradov/pumpwatch/internal/poller"
)

type MockChainClient struct {
	mock.Mock
}

func (m *MockChainClient) Ping(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockChainClient) GetSignaturesForAddress(ctx context.Context, address string, limit int) ([]blockchain.SignatureInfo, error) {
	args := m.Called(ctx, address, limit)
	sigs, _ := args.Get(0).([]blockchain.SignatureInfo)
	return sigs, args.Error(1)
}

func (m *MockChainClient) GetTransaction(ctx context.Context, signature string) (*blockchain.Transaction, error) {
	args := m.Called(ctx, signature)
	tx, _ := args.Get(0).(*blockchain.Transaction)
	return tx, args.Error(1)
}

func TestChainMonitorForwardsDetections(t *testing.T) {
	client := new(MockChainClient)
	client.On("Ping", mock.Anything).Return("1.18.0", nil)
	client.On("GetSignaturesForAddress", mock.Anything, mock.Anything, mock.Anything).
		Return([]blockchain.SignatureInfo{{Signature: "s1"}}, nil)
	client.On("GetTransaction", mock.Anything, "s1").Return(&blockchain.Transaction{
		Signature:         "s1",
		AccountKeys:       []string{"Creator1111"},
		PostTokenBalances: []blockchain.TokenBalance{{Mint: "NewMint111"}},
	}, nil)

	bus := events.NewBus(zaptest.NewLogger(t), 16)
	defer bus.Shutdown(context.Background())
	detections := collectDetections(t, bus)

	m := NewChainMonitor(StablePumpName, client, poller.Config{PollInterval: time.Hour}, bus, zaptest.NewLogger(t), nil)
	assert.Equal(t, StablePumpName, m.Name())

	require.NoError(t, m.Start(context.Background()))
	require.Eventually(t, func() bool { return len(detections()) == 1 }, 2*time.Second, 5*time.Millisecond)

	status := m.Status()
	assert.Equal(t, StablePumpName, status.Name)
	assert.True(t, status.IsRunning)

	require.Len(t, m.Tokens(), 1)
	assert.Equal(t, "NewMint111", m.Tokens()[0].Mint)

	require.NoError(t, m.Stop())
	assert.False(t, m.Status().IsRunning)
	m.Clear()
	assert.Empty(t, m.Tokens())
}

func TestChainMonitorStartFailurePublishesEvent(t *testing.T) {
	client := new(MockChainClient)
	client.On("Ping", mock.Anything).Return("", errors.New("timeout"))

	bus := events.NewBus(zaptest.NewLogger(t), 16)
	defer bus.Shutdown(context.Background())

	failed := make(chan events.MonitorFailedEvent, 1)
	bus.SubscribeFunc(events.MonitorFailed, func(_ context.Context, e events.Event) error {
		failed <- e.(events.MonitorFailedEvent)
		return nil
	})

	m := NewChainMonitor(StablePumpName, client, poller.Config{}, bus, zaptest.NewLogger(t), nil)
	err := m.Start(context.Background())

	var connErr *poller.ConnectionError
	require.True(t, errors.As(err, &connErr))

	select {
	case ev := <-failed:
		assert.Equal(t, StablePumpName, ev.Monitor)
		assert.Contains(t, ev.Error, "timeout")
	case <-time.After(time.Second):
		t.Fatal("monitor.failed event not published")
	}
	assert.NoError(t, m.Stop(), "stop on a stopped monitor is a no-op")
}
