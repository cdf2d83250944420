package logger

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLogBufferRingBufferBehavior(t *testing.T) {
	buffer := NewLogBuffer(5)

	for i := 0; i < 10; i++ {
		buffer.Add(LogEntry{Level: "INFO", Message: fmt.Sprintf("Log %d", i)})
	}

	logs := buffer.Recent(10)
	require.Len(t, logs, 5)
	assert.Equal(t, "Log 5", logs[0].Message)
	assert.Equal(t, "Log 9", logs[4].Message)

	last := buffer.Recent(2)
	require.Len(t, last, 2)
	assert.Equal(t, "Log 8", last[0].Message)
	assert.Equal(t, "Log 9", last[1].Message)

	total, dropped := buffer.Stats()
	assert.Equal(t, uint64(10), total)
	assert.Equal(t, uint64(5), dropped)
}

func TestLogBufferBeforeWrap(t *testing.T) {
	buffer := NewLogBuffer(10)
	buffer.Add(LogEntry{Message: "a"})
	buffer.Add(LogEntry{Message: "b"})

	logs := buffer.Recent(0)
	require.Len(t, logs, 2)
	assert.Equal(t, "a", logs[0].Message)
	assert.Equal(t, "b", logs[1].Message)
}

func TestLogBufferConcurrentAccess(t *testing.T) {
	buffer := NewLogBuffer(100)

	var wg sync.WaitGroup
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				buffer.Add(LogEntry{Message: fmt.Sprintf("goroutine %d iteration %d", id, j)})
				_ = buffer.Recent(5)
			}
		}(g)
	}
	wg.Wait()

	total, dropped := buffer.Stats()
	assert.Equal(t, uint64(1000), total)
	assert.Equal(t, uint64(900), dropped)
	assert.Len(t, buffer.Recent(0), 100)
}

func TestLoggerWritesIntoBuffer(t *testing.T) {
	buffer := NewLogBuffer(10)
	log, err := New(&Config{Buffer: buffer})
	require.NoError(t, err)

	log.WithComponent("poller").Info("tick done", zap.Int("processed", 3))

	logs := buffer.Recent(0)
	require.Len(t, logs, 1)
	assert.Equal(t, "tick done", logs[0].Message)
	assert.Equal(t, "INFO", logs[0].Level)
	assert.Equal(t, "poller", logs[0].Logger)
	assert.Equal(t, "poller", logs[0].Fields["component"])
	assert.EqualValues(t, 3, logs[0].Fields["processed"])
}

func TestLoggerWithOperationAddsCorrelationID(t *testing.T) {
	buffer := NewLogBuffer(10)
	log, err := New(&Config{Buffer: buffer})
	require.NoError(t, err)

	log.WithOperation("serve").Info("first")
	log.WithOperation("serve").Info("second")

	logs := buffer.Recent(0)
	require.Len(t, logs, 2)
	assert.Equal(t, "serve", logs[0].Fields["operation"])
	first, _ := logs[0].Fields["correlation_id"].(string)
	second, _ := logs[1].Fields["correlation_id"].(string)
	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
}
