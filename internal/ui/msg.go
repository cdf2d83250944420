package ui

import (
	"time"

	"github.com/rovshanmuradov/pumpwatch/internal/domain"
	"github.com/rovshanmuradov/pumpwatch/internal/events"
)

// Tea message types for UI communication

// TokensLoadedMsg carries the outcome of one orchestrator fetch.
type TokensLoadedMsg struct {
	Result *domain.AggregatedResult
	Err    error
}

// RefreshTickMsg triggers a periodic refresh.
type RefreshTickMsg struct {
	At  time.Time
	gen int
}

// DetectionMsg wraps a token.detected event from the bus.
type DetectionMsg struct {
	Event events.TokenDetectedEvent
}

// MonitorEventMsg wraps monitor lifecycle and failure events.
type MonitorEventMsg struct {
	Event events.Event
}

// LogTickMsg refreshes the log pane.
type LogTickMsg struct{}
