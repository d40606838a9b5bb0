package metricsipc

import (
	"errors"
	"sync"
)

// ErrAlreadyInstalled is returned by Install when a process-wide Sink is
// already in place.
var ErrAlreadyInstalled = errors.New("a process-wide sink is already installed")

var (
	installedMu sync.RWMutex
	installed   Sink
)

// Install makes s the process-wide Sink used by the package-level Record
// functions. It succeeds at most once per process; later calls return
// ErrAlreadyInstalled and leave the current Sink in place.
func Install(s Sink) error {
	installedMu.Lock()
	defer installedMu.Unlock()
	if installed != nil {
		return ErrAlreadyInstalled
	}
	installed = s
	return nil
}

// Installed returns the process-wide Sink, or nil when none is installed.
func Installed() Sink {
	installedMu.RLock()
	defer installedMu.RUnlock()
	return installed
}

// RecordCounter adds delta to the counter identified by key through the
// process-wide Sink. It does nothing when no Sink is installed.
func RecordCounter(key Key, delta uint64) {
	if s := Installed(); s != nil {
		s.RecordCounter(key, delta)
	}
}

// RecordGauge applies op with value to the gauge identified by key through
// the process-wide Sink. It does nothing when no Sink is installed.
func RecordGauge(key Key, op GaugeOp, value float64) {
	if s := Installed(); s != nil {
		s.RecordGauge(key, op, value)
	}
}

// RecordHistogram records an observation of the histogram identified by key
// through the process-wide Sink. It does nothing when no Sink is installed.
func RecordHistogram(key Key, value float64) {
	if s := Installed(); s != nil {
		s.RecordHistogram(key, value)
	}
}

// Describe attaches a unit and a help text to a metric name through the
// process-wide Sink. It does nothing when no Sink is installed.
func Describe(key Key, unit, description string) {
	if s := Installed(); s != nil {
		s.Describe(key, unit, description)
	}
}
