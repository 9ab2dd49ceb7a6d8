package helper

import (
	"context"
	"sync"
)

// ContextualLoggerSpy implements graphstore.ContextualLogger and records every call with its context.
type ContextualLoggerSpy struct {
	mu          sync.Mutex
	records     []SpyContextualLogRecord
	recordCalls bool
}

// SpyContextualLogRecord is one recorded contextual log call.
type SpyContextualLogRecord struct {
	Level   string
	Message string
	Args    []any
	Context context.Context
}

// NewContextualLoggerSpy creates a ContextualLoggerSpy. Calls are only kept when recordCalls is true.
func NewContextualLoggerSpy(recordCalls bool) *ContextualLoggerSpy {
	return &ContextualLoggerSpy{recordCalls: recordCalls}
}

// DebugContext implements graphstore.ContextualLogger.
func (s *ContextualLoggerSpy) DebugContext(ctx context.Context, msg string, args ...any) {
	s.record(ctx, "debug", msg, args)
}

// InfoContext implements graphstore.ContextualLogger.
func (s *ContextualLoggerSpy) InfoContext(ctx context.Context, msg string, args ...any) {
	s.record(ctx, "info", msg, args)
}

// WarnContext implements graphstore.ContextualLogger.
func (s *ContextualLoggerSpy) WarnContext(ctx context.Context, msg string, args ...any) {
	s.record(ctx, "warn", msg, args)
}

// ErrorContext implements graphstore.ContextualLogger.
func (s *ContextualLoggerSpy) ErrorContext(ctx context.Context, msg string, args ...any) {
	s.record(ctx, "error", msg, args)
}

func (s *ContextualLoggerSpy) record(ctx context.Context, level, msg string, args []any) {
	if !s.recordCalls {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, SpyContextualLogRecord{Level: level, Message: msg, Args: args, Context: ctx})
}

// GetRecords returns a copy of all recorded calls.
func (s *ContextualLoggerSpy) GetRecords() []SpyContextualLogRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]SpyContextualLogRecord(nil), s.records...)
}

// RecordsWithMessage returns the recorded calls of level with message.
func (s *ContextualLoggerSpy) RecordsWithMessage(level, message string) []SpyContextualLogRecord {
	var out []SpyContextualLogRecord
	for _, r := range s.GetRecords() {
		if r.Level == level && r.Message == message {
			out = append(out, r)
		}
	}

	return out
}

// Arg returns the value following key in the record's key/value args.
func (r SpyContextualLogRecord) Arg(key string) (any, bool) {
	for i := 0; i+1 < len(r.Args); i += 2 {
		if k, ok := r.Args[i].(string); ok && k == key {
			return r.Args[i+1], true
		}
	}

	return nil, false
}

// Reset clears all recorded calls.
func (s *ContextualLoggerSpy) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = nil
}
