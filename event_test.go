package metricsipc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventTypeString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "counter", CounterType.String())
	assert.Equal(t, "gauge", GaugeType.String())
	assert.Equal(t, "histogram", HistogramType.String())
	assert.Equal(t, "describe", DescribeType.String())
	assert.Equal(t, "unknown", EventType(42).String())
}

func TestGaugeOpString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "set", GaugeSet.String())
	assert.Equal(t, "inc", GaugeInc.String())
	assert.Equal(t, "dec", GaugeDec.String())
	assert.Equal(t, "unknown", GaugeOp(42).String())
}

func TestEventConstructors(t *testing.T) {
	t.Parallel()
	key := NewKey("m", Label{"a", "1"})

	ev := NewCounterEvent(key, 3)
	assert.Equal(t, Event{Key: key, Type: CounterType, Delta: 3}, ev)

	ev = NewGaugeEvent(key, GaugeDec, 1.5)
	assert.Equal(t, Event{Key: key, Type: GaugeType, Op: GaugeDec, Value: 1.5}, ev)

	ev = NewHistogramEvent(key, 0.25)
	assert.Equal(t, Event{Key: key, Type: HistogramType, Value: 0.25}, ev)

	ev = NewDescribeEvent(key, "seconds", "request duration")
	assert.Equal(t, Event{Key: key, Type: DescribeType, Unit: "seconds", Description: "request duration"}, ev)
}

func TestEventString(t *testing.T) {
	t.Parallel()
	key := NewKey("m", Label{"a", "1"})
	assert.Equal(t, "{counter, m{a=1}, +2}", NewCounterEvent(key, 2).String())
	assert.Contains(t, NewGaugeEvent(key, GaugeSet, 1).String(), "set")
	assert.Contains(t, NewDescribeEvent(key, "bytes", "").String(), `unit="bytes"`)
}

func TestEventDispatch(t *testing.T) {
	t.Parallel()
	key := NewKey("m")
	s := &countingSink{}

	NewCounterEvent(key, 3).Dispatch(s)
	NewCounterEvent(key, 4).Dispatch(s)
	NewGaugeEvent(key, GaugeInc, 1).Dispatch(s)
	NewHistogramEvent(key, 0.5).Dispatch(s)
	NewDescribeEvent(key, "", "things").Dispatch(s)
	Event{Key: key, Type: EventType(42)}.Dispatch(s) // ignored

	assert.Equal(t, uint64(7), s.counters)
	assert.Equal(t, 1, s.gauges)
	assert.Equal(t, 1, s.histograms)
	assert.Equal(t, 1, s.describes)
}
