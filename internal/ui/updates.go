package ui

import (
	"context"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/pumpwatch/internal/events"
)

// UpdateSender forwards messages to the UI without ever blocking the
// sender. Messages that do not fit into the channel are dropped.
type UpdateSender struct {
	msgChan        chan tea.Msg
	droppedUpdates uint64
	sentUpdates    uint64
	logger         *zap.Logger
	statsInterval  time.Duration
	stopStats      chan struct{}
	subs           []events.Subscription
}

func NewUpdateSender(buffer int, logger *zap.Logger) *UpdateSender {
	us := &UpdateSender{
		msgChan:       make(chan tea.Msg, buffer),
		logger:        logger,
		statsInterval: 30 * time.Second,
		stopStats:     make(chan struct{}),
	}

	go us.logStats()

	return us
}

// SendUpdate sends a message to UI without blocking
func (us *UpdateSender) SendUpdate(msg tea.Msg) {
	select {
	case us.msgChan <- msg:
		atomic.AddUint64(&us.sentUpdates, 1)
	default:
		atomic.AddUint64(&us.droppedUpdates, 1)
	}
}

// Attach forwards detection and monitor events from bus into the UI.
func (us *UpdateSender) Attach(bus *events.Bus) {
	if bus == nil {
		return
	}
	us.subs = append(us.subs,
		bus.SubscribeFunc(events.TokenDetected, func(_ context.Context, e events.Event) error {
			if ev, ok := e.(events.TokenDetectedEvent); ok {
				us.SendUpdate(DetectionMsg{Event: ev})
			}
			return nil
		}),
		bus.SubscribeFunc(events.MonitorFailed, us.forwardMonitorEvent),
		bus.SubscribeFunc(events.MonitorStarted, us.forwardMonitorEvent),
		bus.SubscribeFunc(events.MonitorStopped, us.forwardMonitorEvent),
	)
}

func (us *UpdateSender) forwardMonitorEvent(_ context.Context, e events.Event) error {
	us.SendUpdate(MonitorEventMsg{Event: e})
	return nil
}

// Listen returns a command that waits for the next forwarded message.
func (us *UpdateSender) Listen() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-us.msgChan:
			return msg
		case <-us.stopStats:
			return nil
		}
	}
}

func (us *UpdateSender) GetStats() (sent, dropped uint64) {
	sent = atomic.LoadUint64(&us.sentUpdates)
	dropped = atomic.LoadUint64(&us.droppedUpdates)
	return sent, dropped
}

func (us *UpdateSender) logStats() {
	ticker := time.NewTicker(us.statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			sent, dropped := us.GetStats()
			if dropped > 0 {
				us.logger.Warn("UI update statistics",
					zap.Uint64("sent", sent),
					zap.Uint64("dropped", dropped),
					zap.Float64("drop_rate", float64(dropped)/float64(sent+dropped)*100))
			}
		case <-us.stopStats:
			return
		}
	}
}

// Close unsubscribes from the bus and stops the stats loop.
func (us *UpdateSender) Close() {
	for _, sub := range us.subs {
		sub.Unsubscribe()
	}
	us.subs = nil
	close(us.stopStats)
}
