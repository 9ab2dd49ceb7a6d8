package helper

import (
	"context"
	"log/slog"
	"os"
	"sync"
)

// LogHandlerSpy is a slog.Handler implementation that captures log records for testing.
type LogHandlerSpy struct {
	records     []slog.Record
	mu          sync.Mutex
	logToStdout bool
}

// NewLogHandlerSpy creates a new LogHandlerSpy.
// Switchable to log to stdout, which can be useful for debugging tests by seeing the actual log output.
func NewLogHandlerSpy(logToStdOut bool) *LogHandlerSpy {
	return &LogHandlerSpy{
		records:     make([]slog.Record, 0),
		logToStdout: logToStdOut,
	}
}

// Handle implements slog.Handler interface.
func (s *LogHandlerSpy) Handle(ctx context.Context, record slog.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record.Clone())

	if s.logToStdout {
		_ = slog.NewJSONHandler(os.Stdout, nil).Handle(ctx, record)
	}

	return nil
}

// Enabled implements slog.Handler interface.
func (s *LogHandlerSpy) Enabled(_ context.Context, _ slog.Level) bool {
	return true
}

// WithAttrs implements slog.Handler interface.
func (s *LogHandlerSpy) WithAttrs(_ []slog.Attr) slog.Handler {
	return s
}

// WithGroup implements slog.Handler interface.
func (s *LogHandlerSpy) WithGroup(_ string) slog.Handler {
	return s
}

// GetRecords returns a copy of all captured log records.
func (s *LogHandlerSpy) GetRecords() []slog.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := make([]slog.Record, len(s.records))
	copy(records, s.records)

	return records
}

// CountLogsWithMessage returns how many records at the given level carry the message.
func (s *LogHandlerSpy) CountLogsWithMessage(level slog.Level, message string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, record := range s.records {
		if record.Level == level && record.Message == message {
			count++
		}
	}

	return count
}

// Reset clears all captured log records.
func (s *LogHandlerSpy) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = s.records[:0]
}

// SpyLogRecordMatcher provides a fluent interface for checking log record attributes.
// It keeps every record with the requested level and message, and each condition narrows them down,
// so the chain holds when at least one record satisfies all conditions.
type SpyLogRecordMatcher struct {
	candidates []slog.Record
}

// HasDebugLogWithMessage starts a fluent chain to check a debug-level log record.
func (s *LogHandlerSpy) HasDebugLogWithMessage(message string) *SpyLogRecordMatcher {
	return s.findRecord(slog.LevelDebug, message)
}

// HasInfoLogWithMessage starts a fluent chain to check an info-level log record.
func (s *LogHandlerSpy) HasInfoLogWithMessage(message string) *SpyLogRecordMatcher {
	return s.findRecord(slog.LevelInfo, message)
}

// HasWarnLogWithMessage starts a fluent chain to check a warn-level log record.
func (s *LogHandlerSpy) HasWarnLogWithMessage(message string) *SpyLogRecordMatcher {
	return s.findRecord(slog.LevelWarn, message)
}

// HasErrorLogWithMessage starts a fluent chain to check an error-level log record.
func (s *LogHandlerSpy) HasErrorLogWithMessage(message string) *SpyLogRecordMatcher {
	return s.findRecord(slog.LevelError, message)
}

func (s *LogHandlerSpy) findRecord(level slog.Level, message string) *SpyLogRecordMatcher {
	s.mu.Lock()
	defer s.mu.Unlock()

	matcher := &SpyLogRecordMatcher{}
	for _, record := range s.records {
		if record.Level == level && record.Message == message {
			matcher.candidates = append(matcher.candidates, record)
		}
	}

	return matcher
}

// WithDurationMS checks if the log record has a duration_ms attribute with a non-negative value.
func (m *SpyLogRecordMatcher) WithDurationMS() *SpyLogRecordMatcher {
	return m.withAttr("duration_ms", func(value slog.Value) bool {
		switch value.Kind() {
		case slog.KindInt64:
			return value.Int64() >= 0
		case slog.KindFloat64:
			return value.Float64() >= 0
		default:
			return false
		}
	})
}

// WithAttribute checks if the log record has an attribute whose rendered value equals expected.
func (m *SpyLogRecordMatcher) WithAttribute(key, expected string) *SpyLogRecordMatcher {
	return m.withAttr(key, func(value slog.Value) bool {
		return value.String() == expected
	})
}

// WithAttributeKey checks if the log record has an attribute with the given key.
func (m *SpyLogRecordMatcher) WithAttributeKey(key string) *SpyLogRecordMatcher {
	return m.withAttr(key, func(slog.Value) bool { return true })
}

func (m *SpyLogRecordMatcher) withAttr(key string, accept func(slog.Value) bool) *SpyLogRecordMatcher {
	remaining := m.candidates[:0]

	for _, record := range m.candidates {
		matched := false
		record.Attrs(func(attr slog.Attr) bool {
			if attr.Key == key && accept(attr.Value) {
				matched = true
				return false
			}

			return true
		})

		if matched {
			remaining = append(remaining, record)
		}
	}

	m.candidates = remaining

	return m
}

// Assert returns true if at least one record met all conditions in the fluent chain.
func (m *SpyLogRecordMatcher) Assert() bool {
	return len(m.candidates) > 0
}
