package logger

import (
	"encoding/json"
	"strings"
	"sync"
	"time"
)

// LogEntry is one decoded line kept in the ring.
type LogEntry struct {
	Timestamp time.Time              `json:"timestamp"`
	Level     string                 `json:"level"`
	Logger    string                 `json:"logger,omitempty"`
	Message   string                 `json:"msg"`
	Fields    map[string]interface{} `json:"-"`
}

// LogBuffer is a fixed-size ring of recent log entries. It implements
// io.Writer so a JSON zap core can write straight into it.
type LogBuffer struct {
	mu      sync.Mutex
	ring    []LogEntry
	next    int
	wrapped bool

	total   uint64
	dropped uint64
}

// NewLogBuffer creates a ring that holds up to maxSize entries.
func NewLogBuffer(maxSize int) *LogBuffer {
	if maxSize <= 0 {
		maxSize = 200
	}
	return &LogBuffer{ring: make([]LogEntry, maxSize)}
}

// Write accepts one or more newline-delimited JSON log lines.
func (lb *LogBuffer) Write(p []byte) (int, error) {
	for _, line := range strings.Split(strings.TrimSpace(string(p)), "\n") {
		if line == "" {
			continue
		}
		lb.Add(decodeEntry(line))
	}
	return len(p), nil
}

// Sync satisfies zapcore.WriteSyncer.
func (lb *LogBuffer) Sync() error { return nil }

// Add appends an entry, overwriting the oldest one when full.
func (lb *LogBuffer) Add(entry LogEntry) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	if lb.wrapped {
		lb.dropped++
	}
	lb.ring[lb.next] = entry
	lb.next = (lb.next + 1) % len(lb.ring)
	if lb.next == 0 {
		lb.wrapped = true
	}
	lb.total++
}

// Recent returns up to limit most recent entries, oldest first.
func (lb *LogBuffer) Recent(limit int) []LogEntry {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	count := lb.next
	start := 0
	if lb.wrapped {
		count = len(lb.ring)
		start = lb.next
	}
	if limit > 0 && limit < count {
		start += count - limit
		count = limit
	}

	out := make([]LogEntry, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, lb.ring[(start+i)%len(lb.ring)])
	}
	return out
}

// Stats returns the number of entries written and overwritten.
func (lb *LogBuffer) Stats() (total, dropped uint64) {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.total, lb.dropped
}

func decodeEntry(line string) LogEntry {
	raw := map[string]interface{}{}
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return LogEntry{Timestamp: time.Now(), Level: "INFO", Message: line}
	}

	entry := LogEntry{Fields: map[string]interface{}{}}
	for k, v := range raw {
		s, _ := v.(string)
		switch k {
		case "timestamp":
			if ts, err := time.Parse("2006-01-02T15:04:05.000Z0700", s); err == nil {
				entry.Timestamp = ts
			}
		case "level":
			entry.Level = s
		case "logger":
			entry.Logger = s
		case "msg":
			entry.Message = s
		case "caller", "stacktrace":
		default:
			entry.Fields[k] = v
		}
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	return entry
}
