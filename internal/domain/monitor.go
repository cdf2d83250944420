// internal/domain/monitor.go
package domain

import "time"

// MonitorStatus describes the run state of a monitor. It lives only as
// long as the process does.
type MonitorStatus struct {
	Name                    string    `json:"name"`
	IsRunning               bool      `json:"isRunning"`
	State                   string    `json:"state"`
	ProcessedSignatureCount uint64    `json:"processedSignatureCount"`
	DetectedCount           uint64    `json:"detectedCount"`
	ErrorCount              uint64    `json:"errorCount"`
	PollIntervalMs          int64     `json:"pollIntervalMs"`
	StartedAt               time.Time `json:"startedAt,omitempty"`
	LastPollAt              time.Time `json:"lastPollAt,omitempty"`
	LastError               string    `json:"lastError,omitempty"`
}
