package main

import (
	"fmt"
	"math/rand"
	"strconv"
	"sync/atomic"

	metricsipc "github.com/butlerx/metrics-ipc-collector"
)

type eventData struct {
	count            uint64 // atomic
	nameFormat       string
	nameCardinality  uint
	labelCardinality []uint
	valueLimit       uint
}

type eventGenerator struct {
	rnd *rand.Rand

	counters   eventData
	gauges     eventData
	histograms eventData
}

func newEventGenerator(opts commandOptions, rnd *rand.Rand) *eventGenerator {
	return &eventGenerator{
		rnd: rnd,
		counters: eventData{
			nameFormat:       fmt.Sprintf("%scounter%s", opts.MetricPrefix, opts.MetricSuffix),
			count:            opts.Counts.Counter / uint64(opts.Workers),
			nameCardinality:  opts.NameCard.Counter,
			labelCardinality: opts.LabelCard.Counter,
			valueLimit:       opts.ValueRange.Counter,
		},
		gauges: eventData{
			nameFormat:       fmt.Sprintf("%sgauge%s", opts.MetricPrefix, opts.MetricSuffix),
			count:            opts.Counts.Gauge / uint64(opts.Workers),
			nameCardinality:  opts.NameCard.Gauge,
			labelCardinality: opts.LabelCard.Gauge,
			valueLimit:       opts.ValueRange.Gauge,
		},
		histograms: eventData{
			nameFormat:       fmt.Sprintf("%shistogram%s", opts.MetricPrefix, opts.MetricSuffix),
			count:            opts.Counts.Histogram / uint64(opts.Workers),
			nameCardinality:  opts.NameCard.Histogram,
			labelCardinality: opts.LabelCard.Histogram,
			valueLimit:       opts.ValueRange.Histogram,
		},
	}
}

func (ed *eventData) genKey(r *rand.Rand) metricsipc.Key {
	name := fmt.Sprintf(ed.nameFormat, r.Intn(int(ed.nameCardinality)))
	if len(ed.labelCardinality) == 0 {
		return metricsipc.NewKey(name)
	}
	labels := make([]metricsipc.Label, 0, len(ed.labelCardinality))
	for idx, c := range ed.labelCardinality {
		labels = append(labels, metricsipc.Label{
			Name:  fmt.Sprintf("label%d", idx),
			Value: strconv.Itoa(r.Intn(int(c))),
		})
	}
	return metricsipc.NewKey(name, labels...)
}

func (eg *eventGenerator) nextCounter(s metricsipc.Sink) {
	atomic.AddUint64(&eg.counters.count, ^uint64(0))
	s.RecordCounter(eg.counters.genKey(eg.rnd), uint64(1+eg.rnd.Intn(int(eg.counters.valueLimit+1))))
}

func (eg *eventGenerator) nextGauge(s metricsipc.Sink) {
	atomic.AddUint64(&eg.gauges.count, ^uint64(0))
	op := metricsipc.GaugeSet
	switch eg.rnd.Intn(4) {
	case 2:
		op = metricsipc.GaugeInc
	case 3:
		op = metricsipc.GaugeDec
	}
	s.RecordGauge(eg.gauges.genKey(eg.rnd), op, eg.rnd.Float64()*float64(eg.gauges.valueLimit))
}

func (eg *eventGenerator) nextHistogram(s metricsipc.Sink) {
	atomic.AddUint64(&eg.histograms.count, ^uint64(0))
	s.RecordHistogram(eg.histograms.genKey(eg.rnd), eg.rnd.Float64()*float64(eg.histograms.valueLimit))
}

// next records one randomly chosen event into s, and reports whether there
// is anything left to send.
func (eg *eventGenerator) next(s metricsipc.Sink) bool {
	// We can safely read these non-atomically, because this goroutine is the only one that writes to them.
	total := eg.counters.count + eg.gauges.count + eg.histograms.count
	if total == 0 {
		return false
	}

	n := uint64(eg.rnd.Int63n(int64(total)))
	if n < eg.counters.count {
		eg.nextCounter(s)
	} else if n < eg.counters.count+eg.gauges.count {
		eg.nextGauge(s)
	} else {
		eg.nextHistogram(s)
	}
	return true
}
