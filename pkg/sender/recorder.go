package sender

import (
	"context"
	"sync"

	metricsipc "github.com/butlerx/metrics-ipc-collector"
)

// Recorder is the producer-facing half of the transport: it turns recording
// calls into events and pushes them onto its Channel. Every method is
// non-blocking and infallible, so instrumented code never stalls and never
// handles transport errors. Recorder implements metricsipc.Sink.
type Recorder struct {
	channel   *Channel
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewRecorder initialises a new Recorder over channel. cancel must stop the
// channel's Run; Close invokes it and waits for Run to return.
func NewRecorder(channel *Channel, cancel context.CancelFunc) *Recorder {
	return &Recorder{
		channel: channel,
		cancel:  cancel,
	}
}

// RecordCounter queues an increment of the counter identified by key.
func (r *Recorder) RecordCounter(key metricsipc.Key, delta uint64) {
	r.channel.Push(metricsipc.NewCounterEvent(key, delta))
}

// RecordGauge queues an update of the gauge identified by key.
func (r *Recorder) RecordGauge(key metricsipc.Key, op metricsipc.GaugeOp, value float64) {
	r.channel.Push(metricsipc.NewGaugeEvent(key, op, value))
}

// RecordHistogram queues an observation of the histogram identified by key.
func (r *Recorder) RecordHistogram(key metricsipc.Key, value float64) {
	r.channel.Push(metricsipc.NewHistogramEvent(key, value))
}

// Describe queues unit and description metadata for key.
func (r *Recorder) Describe(key metricsipc.Key, unit, description string) {
	r.channel.Push(metricsipc.NewDescribeEvent(key, unit, description))
}

// Stats returns the statistics of the underlying Channel.
func (r *Recorder) Stats() ChannelStats {
	return r.channel.Stats()
}

// Close stops the background writer and waits for it to write out or drop
// whatever is queued. Recording calls made after Close are silently
// dropped. Close is idempotent.
func (r *Recorder) Close() {
	r.closeOnce.Do(func() {
		r.cancel()
		<-r.channel.Done()
	})
}
