package testutil

import (
	"context"
	"sync"

	"github.com/nimburion/cosmoskit/pkg/observability/logger"
)

// MockLogger captures log entries for assertions. It is safe for concurrent use.
type MockLogger struct {
	mu   sync.Mutex
	Logs []LogEntry
}

// LogEntry is a single captured log call.
type LogEntry struct {
	Level  string
	Msg    string
	Fields map[string]interface{}
}

func (m *MockLogger) Debug(msg string, args ...any) { m.record("debug", msg, args) }
func (m *MockLogger) Info(msg string, args ...any)  { m.record("info", msg, args) }
func (m *MockLogger) Warn(msg string, args ...any)  { m.record("warn", msg, args) }
func (m *MockLogger) Error(msg string, args ...any) { m.record("error", msg, args) }

// With returns the same logger.
func (m *MockLogger) With(args ...any) logger.Logger {
	return m
}

// WithContext returns the same logger.
func (m *MockLogger) WithContext(ctx context.Context) logger.Logger {
	return m
}

// Entries returns a copy of the entries logged at level, or all entries when level is empty.
func (m *MockLogger) Entries(level string) []LogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []LogEntry
	for _, e := range m.Logs {
		if level == "" || e.Level == level {
			out = append(out, e)
		}
	}
	return out
}

func (m *MockLogger) record(level, msg string, args []any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Logs = append(m.Logs, LogEntry{Level: level, Msg: msg, Fields: argsToMap(args)})
}

func argsToMap(args []any) map[string]interface{} {
	fields := make(map[string]interface{})
	for i := 0; i < len(args)-1; i += 2 {
		if key, ok := args[i].(string); ok {
			fields[key] = args[i+1]
		}
	}
	return fields
}
