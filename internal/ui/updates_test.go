package ui

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/pumpwatch/internal/domain"
	"github.com/rovshanmuradov/pumpwatch/internal/events"
)

func TestUpdateSenderNonBlocking(t *testing.T) {
	sender := NewUpdateSender(10, zap.NewNop())
	defer sender.Close()

	for i := 0; i < 10; i++ {
		sender.SendUpdate(LogTickMsg{})
	}

	start := time.Now()
	for i := 0; i < 100; i++ {
		sender.SendUpdate(LogTickMsg{})
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond, "SendUpdate must not block")

	sent, dropped := sender.GetStats()
	assert.Equal(t, uint64(10), sent)
	assert.Equal(t, uint64(100), dropped)
}

func TestUpdateSenderConcurrent(t *testing.T) {
	sender := NewUpdateSender(100, zap.NewNop())
	defer sender.Close()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				sender.SendUpdate(LogTickMsg{})
			}
		}()
	}
	wg.Wait()

	sent, dropped := sender.GetStats()
	assert.Equal(t, uint64(1000), sent+dropped)
}

func TestUpdateSenderForwardsBusEvents(t *testing.T) {
	bus := events.NewBus(zaptest.NewLogger(t), 8)
	defer bus.Shutdown(context.Background())

	sender := NewUpdateSender(8, zap.NewNop())
	sender.Attach(bus)

	require.NoError(t, bus.Publish(events.NewTokenDetected("stable-pump", domain.TokenRecord{Mint: "m1"})))

	msg := sender.Listen()()
	detection, ok := msg.(DetectionMsg)
	require.True(t, ok, "got %T", msg)
	assert.Equal(t, "m1", detection.Event.Token.Mint)

	require.NoError(t, bus.Publish(events.NewMonitorStopped("stable-pump", "requested")))
	_, ok = sender.Listen()().(MonitorEventMsg)
	assert.True(t, ok)

	sender.Close()
	assert.Empty(t, bus.Stats().HandlersPerType)
	assert.Nil(t, sender.Listen()(), "closed sender returns nil")
}
