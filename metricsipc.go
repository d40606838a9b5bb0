// Package metricsipc carries metric events from many producer processes to a
// single collector over a local stream transport. Producers record counters,
// gauges and histograms through an infallible, non-blocking facade; a
// background writer frames the events and sends them to the collector's unix
// socket, reconnecting with exponential backoff when the collector is away.
// The collector accepts any number of producers and multiplexes their events,
// in per-connection order, into a downstream Sink.
package metricsipc

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Sink consumes metric events. The collector feeds a Sink from many
// connections concurrently, so implementations must be safe for concurrent
// use. Calls must not block for long; the collector dispatches events on its
// decode loops.
type Sink interface {
	// RecordCounter adds delta to the counter identified by key.
	RecordCounter(key Key, delta uint64)
	// RecordGauge applies op with value to the gauge identified by key.
	RecordGauge(key Key, op GaugeOp, value float64)
	// RecordHistogram records a single observation of the histogram
	// identified by key.
	RecordHistogram(key Key, value float64)
	// Describe attaches a unit and a help text to a metric name. Empty
	// strings mean the field is not provided.
	Describe(key Key, unit, description string)
}

// SinkFactory is a function that returns a Sink.
type SinkFactory func(v *viper.Viper, logger logrus.FieldLogger) (Sink, error)

// NopSink is a Sink that discards everything.
type NopSink struct{}

func (NopSink) RecordCounter(key Key, delta uint64)            {}
func (NopSink) RecordGauge(key Key, op GaugeOp, value float64) {}
func (NopSink) RecordHistogram(key Key, value float64)         {}
func (NopSink) Describe(key Key, unit, description string)     {}
