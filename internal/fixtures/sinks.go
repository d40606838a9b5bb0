package fixtures

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	metricsipc "github.com/butlerx/metrics-ipc-collector"
)

// CapturingSink implements metricsipc.Sink by remembering every event it is
// handed, in arrival order. Safe for concurrent use.
type CapturingSink struct {
	mu     sync.Mutex
	events []metricsipc.Event
}

func (s *CapturingSink) RecordCounter(key metricsipc.Key, delta uint64) {
	s.append(metricsipc.NewCounterEvent(key, delta))
}

func (s *CapturingSink) RecordGauge(key metricsipc.Key, op metricsipc.GaugeOp, value float64) {
	s.append(metricsipc.NewGaugeEvent(key, op, value))
}

func (s *CapturingSink) RecordHistogram(key metricsipc.Key, value float64) {
	s.append(metricsipc.NewHistogramEvent(key, value))
}

func (s *CapturingSink) Describe(key metricsipc.Key, unit, description string) {
	s.append(metricsipc.NewDescribeEvent(key, unit, description))
}

func (s *CapturingSink) append(ev metricsipc.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

// Events returns a copy of the captured events in arrival order.
func (s *CapturingSink) Events() []metricsipc.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]metricsipc.Event, len(s.events))
	copy(out, s.events)
	return out
}

// Len returns the number of captured events.
func (s *CapturingSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

// MockSink implements metricsipc.Sink from callbacks; a method invoked
// without its callback set fails the test.
type MockSink struct {
	TB testing.TB

	FnRecordCounter   func(key metricsipc.Key, delta uint64)
	FnRecordGauge     func(key metricsipc.Key, op metricsipc.GaugeOp, value float64)
	FnRecordHistogram func(key metricsipc.Key, value float64)
	FnDescribe        func(key metricsipc.Key, unit, description string)
}

func (m *MockSink) RecordCounter(key metricsipc.Key, delta uint64) {
	if m.FnRecordCounter != nil {
		m.FnRecordCounter(key, delta)
	} else {
		assert.Fail(m.TB, "Sink.RecordCounter must not be called")
	}
}

func (m *MockSink) RecordGauge(key metricsipc.Key, op metricsipc.GaugeOp, value float64) {
	if m.FnRecordGauge != nil {
		m.FnRecordGauge(key, op, value)
	} else {
		assert.Fail(m.TB, "Sink.RecordGauge must not be called")
	}
}

func (m *MockSink) RecordHistogram(key metricsipc.Key, value float64) {
	if m.FnRecordHistogram != nil {
		m.FnRecordHistogram(key, value)
	} else {
		assert.Fail(m.TB, "Sink.RecordHistogram must not be called")
	}
}

func (m *MockSink) Describe(key metricsipc.Key, unit, description string) {
	if m.FnDescribe != nil {
		m.FnDescribe(key, unit, description)
	} else {
		assert.Fail(m.TB, "Sink.Describe must not be called")
	}
}
