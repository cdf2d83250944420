// internal/events/types.go
package events

import (
	"time"

	"github.com/rovshanmuradov/pumpwatch/internal/domain"
)

// EventType represents the type of event.
type EventType string

const (
	// AllEvents subscribes a handler to every event type.
	AllEvents EventType = "*"

	// Detection events
	TokenDetected EventType = "token.detected"

	// Monitor lifecycle events
	MonitorStarted EventType = "monitor.started"
	MonitorStopped EventType = "monitor.stopped"
	MonitorFailed  EventType = "monitor.failed"

	// Aggregation events
	AggregationCompleted EventType = "aggregation.completed"
)

// Event is the base interface for all events.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	EventType EventType `json:"type"`
	EventTime time.Time `json:"timestamp"`
}

func (e BaseEvent) Type() EventType {
	return e.EventType
}

func (e BaseEvent) Timestamp() time.Time {
	return e.EventTime
}

func newBase(t EventType) BaseEvent {
	return BaseEvent{EventType: t, EventTime: time.Now()}
}

// TokenDetectedEvent is emitted when a monitor sees a token for the first time.
type TokenDetectedEvent struct {
	BaseEvent
	Monitor string             `json:"monitor"`
	Token   domain.TokenRecord `json:"token"`
}

func NewTokenDetected(monitor string, token domain.TokenRecord) TokenDetectedEvent {
	return TokenDetectedEvent{BaseEvent: newBase(TokenDetected), Monitor: monitor, Token: token}
}

// MonitorStateEvent is emitted when a monitor starts or stops.
type MonitorStateEvent struct {
	BaseEvent
	Monitor string `json:"monitor"`
	Reason  string `json:"reason,omitempty"` // "requested", "shutdown"
}

func NewMonitorStarted(monitor string) MonitorStateEvent {
	return MonitorStateEvent{BaseEvent: newBase(MonitorStarted), Monitor: monitor}
}

func NewMonitorStopped(monitor, reason string) MonitorStateEvent {
	return MonitorStateEvent{BaseEvent: newBase(MonitorStopped), Monitor: monitor, Reason: reason}
}

// MonitorFailedEvent carries an error reported by a monitor.
type MonitorFailedEvent struct {
	BaseEvent
	Monitor string `json:"monitor"`
	Error   string `json:"error"`
}

func NewMonitorFailed(monitor string, err error) MonitorFailedEvent {
	return MonitorFailedEvent{BaseEvent: newBase(MonitorFailed), Monitor: monitor, Error: err.Error()}
}

// AggregationCompletedEvent summarizes one orchestrator fetch.
type AggregationCompletedEvent struct {
	BaseEvent
	Count   int      `json:"count"`
	Sources []string `json:"sources"`
	IsReal  bool     `json:"isReal"`
}

func NewAggregationCompleted(res *domain.AggregatedResult) AggregationCompletedEvent {
	return AggregationCompletedEvent{
		BaseEvent: newBase(AggregationCompleted),
		Count:     len(res.Tokens),
		Sources:   res.Sources,
		IsReal:    res.IsReal,
	}
}
