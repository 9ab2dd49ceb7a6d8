package helper

import (
	"context"
	"maps"
	"sync"

	"github.com/AntonStoeckl/dynamic-graph-loadgen-go/graphstore"
)

// SpySpanContext implements graphstore.SpanContext for testing.
type SpySpanContext struct {
	status     string
	attributes map[string]string
	mu         sync.Mutex
}

// SetStatus implements graphstore.SpanContext.
func (c *SpySpanContext) SetStatus(status string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = status
}

// AddAttribute implements graphstore.SpanContext.
func (c *SpySpanContext) AddAttribute(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.attributes == nil {
		c.attributes = make(map[string]string)
	}
	c.attributes[key] = value
}

// GetAttributes returns a copy of the attributes added while the span was open.
func (c *SpySpanContext) GetAttributes() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return maps.Clone(c.attributes)
}

// TracingCollectorSpy is a graphstore.TracingCollector that captures spans for testing.
type TracingCollectorSpy struct {
	spanRecords []SpySpanRecord
	mu          sync.Mutex
	recordCalls bool
}

// SpySpanRecord represents a recorded span.
type SpySpanRecord struct {
	Name            string
	StartAttributes map[string]string
	Status          string
	EndAttributes   map[string]string
	Finished        bool
	SpanContext     *SpySpanContext
}

// NewTracingCollectorSpy creates a new TracingCollectorSpy.
// Set recordCalls to true to capture all tracing calls for inspection in tests.
func NewTracingCollectorSpy(recordCalls bool) *TracingCollectorSpy {
	return &TracingCollectorSpy{recordCalls: recordCalls}
}

// StartSpan implements graphstore.TracingCollector.
func (s *TracingCollectorSpy) StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, graphstore.SpanContext) {
	spanCtx := &SpySpanContext{}
	ctx = context.WithValue(ctx, spySpanKey{}, spanCtx)

	if !s.recordCalls {
		return ctx, spanCtx
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.spanRecords = append(s.spanRecords, SpySpanRecord{
		Name:            name,
		StartAttributes: maps.Clone(attrs),
		SpanContext:     spanCtx,
	})

	return ctx, spanCtx
}

type spySpanKey struct{}

// SpySpanFromContext returns the span that StartSpan stored in ctx.
func SpySpanFromContext(ctx context.Context) (*SpySpanContext, bool) {
	span, ok := ctx.Value(spySpanKey{}).(*SpySpanContext)

	return span, ok
}

// FinishSpan implements graphstore.TracingCollector.
func (s *TracingCollectorSpy) FinishSpan(spanCtx graphstore.SpanContext, status string, attrs map[string]string) {
	spySpanCtx, ok := spanCtx.(*SpySpanContext)
	if !s.recordCalls || !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.spanRecords {
		if s.spanRecords[i].SpanContext == spySpanCtx {
			s.spanRecords[i].Status = status
			s.spanRecords[i].EndAttributes = maps.Clone(attrs)
			s.spanRecords[i].Finished = true
			break
		}
	}
}

// GetSpanRecords returns a copy of all captured span records.
func (s *TracingCollectorSpy) GetSpanRecords() []SpySpanRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]SpySpanRecord(nil), s.spanRecords...)
}

// HasSpanRecord checks if a span with the given name was started.
func (s *TracingCollectorSpy) HasSpanRecord(name string) bool {
	return s.CountSpanRecordsForName(name) > 0
}

// CountSpanRecordsForName returns how many spans with the given name were started.
func (s *TracingCollectorSpy) CountSpanRecordsForName(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, record := range s.spanRecords {
		if record.Name == name {
			count++
		}
	}

	return count
}

// CountUnfinishedSpans returns how many started spans were never finished.
func (s *TracingCollectorSpy) CountUnfinishedSpans() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, record := range s.spanRecords {
		if !record.Finished {
			count++
		}
	}

	return count
}

// SpanRecordMatcher provides a fluent interface for checking span records.
type SpanRecordMatcher struct {
	candidates []SpySpanRecord
}

// HasSpanRecordForName starts a fluent chain to check a span record.
func (s *TracingCollectorSpy) HasSpanRecordForName(name string) *SpanRecordMatcher {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := &SpanRecordMatcher{}
	for _, record := range s.spanRecords {
		if record.Name == name {
			m.candidates = append(m.candidates, record)
		}
	}

	return m
}

// WithStatus narrows the chain to spans finished with status.
func (m *SpanRecordMatcher) WithStatus(status string) *SpanRecordMatcher {
	return m.filter(func(r SpySpanRecord) bool { return r.Status == status })
}

// WithStartAttribute narrows the chain to spans started with key=value.
func (m *SpanRecordMatcher) WithStartAttribute(key, value string) *SpanRecordMatcher {
	return m.filter(func(r SpySpanRecord) bool { return r.StartAttributes[key] == value })
}

// WithEndAttribute narrows the chain to spans finished with key=value.
func (m *SpanRecordMatcher) WithEndAttribute(key, value string) *SpanRecordMatcher {
	return m.filter(func(r SpySpanRecord) bool { return r.EndAttributes[key] == value })
}

func (m *SpanRecordMatcher) filter(keep func(SpySpanRecord) bool) *SpanRecordMatcher {
	kept := m.candidates[:0:0]
	for _, record := range m.candidates {
		if keep(record) {
			kept = append(kept, record)
		}
	}
	m.candidates = kept

	return m
}

// Assert returns true if at least one span satisfied the chain.
func (m *SpanRecordMatcher) Assert() bool {
	return len(m.candidates) > 0
}

var _ graphstore.TracingCollector = (*TracingCollectorSpy)(nil)
