package log

import "sync"

// Level identifies the severity of a recorded entry.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the lower-case level name.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// Entry is one message captured by MemoryLogger.
type Entry struct {
	Level   Level
	Message string
	Fields  []Field
}

// Field returns the value of the named field and whether it was present.
func (e Entry) Field(key string) (interface{}, bool) {
	for _, f := range e.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// MemoryLogger records every message in memory.
// It is safe for concurrent use.
type MemoryLogger struct {
	mu      sync.Mutex
	entries []Entry
}

// NewMemoryLogger creates an empty MemoryLogger.
func NewMemoryLogger() *MemoryLogger {
	return &MemoryLogger{}
}

func (m *MemoryLogger) record(level Level, msg string, fields []Field) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, Entry{Level: level, Message: msg, Fields: append([]Field(nil), fields...)})
}

func (m *MemoryLogger) Debug(msg string, fields ...Field) { m.record(LevelDebug, msg, fields) }
func (m *MemoryLogger) Info(msg string, fields ...Field)  { m.record(LevelInfo, msg, fields) }
func (m *MemoryLogger) Warn(msg string, fields ...Field)  { m.record(LevelWarn, msg, fields) }
func (m *MemoryLogger) Error(msg string, fields ...Field) { m.record(LevelError, msg, fields) }

// Entries returns a copy of the recorded entries in order.
func (m *MemoryLogger) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry{}, m.entries...)
}

// Count returns how many entries were recorded at level.
func (m *MemoryLogger) Count(level Level) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.entries {
		if e.Level == level {
			n++
		}
	}
	return n
}

// Messages returns the messages recorded at level, in order.
func (m *MemoryLogger) Messages(level Level) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, e := range m.entries {
		if e.Level == level {
			out = append(out, e.Message)
		}
	}
	return out
}
