package metricsipc

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetInstalled clears the process-wide sink. Tests touching the global
// slot must not run in parallel.
func resetInstalled() {
	installedMu.Lock()
	defer installedMu.Unlock()
	installed = nil
}

type countingSink struct {
	mu         sync.Mutex
	counters   uint64
	gauges     int
	histograms int
	describes  int
}

func (cs *countingSink) RecordCounter(key Key, delta uint64) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.counters += delta
}

func (cs *countingSink) RecordGauge(key Key, op GaugeOp, value float64) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.gauges++
}

func (cs *countingSink) RecordHistogram(key Key, value float64) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.histograms++
}

func (cs *countingSink) Describe(key Key, unit, description string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.describes++
}

func TestInstallOnce(t *testing.T) {
	defer resetInstalled()

	s := &countingSink{}
	require.NoError(t, Install(s))
	assert.Same(t, Sink(s), Installed())

	err := Install(&countingSink{})
	require.ErrorIs(t, err, ErrAlreadyInstalled)
	assert.Same(t, Sink(s), Installed(), "failed install must not replace the sink")
}

func TestInstallNil(t *testing.T) {
	defer resetInstalled()

	assert.Nil(t, Installed())
	require.NoError(t, Install(NopSink{}))
	assert.NotNil(t, Installed())
}

func TestRecordForwardsToInstalled(t *testing.T) {
	defer resetInstalled()

	s := &countingSink{}
	require.NoError(t, Install(s))

	key := NewKey("m")
	RecordCounter(key, 2)
	RecordCounter(key, 3)
	RecordGauge(key, GaugeSet, 1)
	RecordHistogram(key, 0.5)
	Describe(key, "bytes", "payload size")

	s.mu.Lock()
	defer s.mu.Unlock()
	assert.Equal(t, uint64(5), s.counters)
	assert.Equal(t, 1, s.gauges)
	assert.Equal(t, 1, s.histograms)
	assert.Equal(t, 1, s.describes)
}

func TestRecordWithoutInstalledSink(t *testing.T) {
	defer resetInstalled()

	require.NotPanics(t, func() {
		key := NewKey("m")
		RecordCounter(key, 1)
		RecordGauge(key, GaugeInc, 1)
		RecordHistogram(key, 1)
		Describe(key, "", "")
	})
}
