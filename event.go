package metricsipc

import (
	"fmt"
)

// EventType is an enumeration of all the possible types of Event. The
// numeric values are fixed: they are the type byte of the wire frame.
type EventType byte

const (
	// CounterType is a monotonic counter increment.
	CounterType EventType = iota
	// GaugeType is a point-in-time gauge operation.
	GaugeType
	// HistogramType is a single histogram observation.
	HistogramType
	// DescribeType attaches a unit and help text to a metric name.
	DescribeType
)

func (e EventType) String() string {
	switch e {
	case CounterType:
		return "counter"
	case GaugeType:
		return "gauge"
	case HistogramType:
		return "histogram"
	case DescribeType:
		return "describe"
	}
	return "unknown"
}

// GaugeOp says how a gauge event combines with the current gauge value. The
// numeric values are fixed: they are the operation byte of the wire frame.
type GaugeOp byte

const (
	// GaugeSet replaces the gauge value.
	GaugeSet GaugeOp = iota
	// GaugeInc adds the value to the gauge.
	GaugeInc
	// GaugeDec subtracts the value from the gauge.
	GaugeDec
)

func (op GaugeOp) String() string {
	switch op {
	case GaugeSet:
		return "set"
	case GaugeInc:
		return "inc"
	case GaugeDec:
		return "dec"
	}
	return "unknown"
}

// Event represents a single metric event flowing from a recorder to a
// collector. Only the fields for its Type are meaningful. Events are passed
// by value and are never shared once handed off.
type Event struct {
	Key  Key       // The series the event belongs to
	Type EventType // The type of event

	Delta uint64  // The increment, for CounterType
	Op    GaugeOp // The gauge operation, for GaugeType
	Value float64 // The numeric value, for GaugeType and HistogramType

	Unit        string // The unit of measure, for DescribeType. Empty means not provided.
	Description string // The help text, for DescribeType. Empty means not provided.
}

// NewCounterEvent creates an event adding delta to the counter key.
func NewCounterEvent(key Key, delta uint64) Event {
	return Event{Key: key, Type: CounterType, Delta: delta}
}

// NewGaugeEvent creates an event applying op with value to the gauge key.
func NewGaugeEvent(key Key, op GaugeOp, value float64) Event {
	return Event{Key: key, Type: GaugeType, Op: op, Value: value}
}

// NewHistogramEvent creates an event recording value on the histogram key.
func NewHistogramEvent(key Key, value float64) Event {
	return Event{Key: key, Type: HistogramType, Value: value}
}

// NewDescribeEvent creates an event attaching unit and description to key.
// Empty strings mean the field is not provided.
func NewDescribeEvent(key Key, unit, description string) Event {
	return Event{Key: key, Type: DescribeType, Unit: unit, Description: description}
}

// Dispatch routes the event to the sink method matching its type. Events
// with an unknown type are ignored.
func (e Event) Dispatch(s Sink) {
	switch e.Type {
	case CounterType:
		s.RecordCounter(e.Key, e.Delta)
	case GaugeType:
		s.RecordGauge(e.Key, e.Op, e.Value)
	case HistogramType:
		s.RecordHistogram(e.Key, e.Value)
	case DescribeType:
		s.Describe(e.Key, e.Unit, e.Description)
	}
}

func (e Event) String() string {
	switch e.Type {
	case CounterType:
		return fmt.Sprintf("{%s, %s, +%d}", e.Type, e.Key, e.Delta)
	case GaugeType:
		return fmt.Sprintf("{%s, %s, %s %f}", e.Type, e.Key, e.Op, e.Value)
	case HistogramType:
		return fmt.Sprintf("{%s, %s, %f}", e.Type, e.Key, e.Value)
	case DescribeType:
		return fmt.Sprintf("{%s, %s, unit=%q, description=%q}", e.Type, e.Key, e.Unit, e.Description)
	}
	return fmt.Sprintf("{%s, %s}", e.Type, e.Key)
}
