package metricsipc

import (
	"fmt"
)

// ExecutionMode selects how the library runs its long-lived loops: the
// sender's writer, and the collector's accept and decode loops.
type ExecutionMode int

const (
	// ExecutionThreaded runs every loop on a dedicated goroutine. This is
	// the default.
	ExecutionThreaded ExecutionMode = iota
	// ExecutionCooperative hands every loop to a caller-supplied Scheduler.
	// The scheduler must already be running when components start; the
	// library never creates one of its own in this mode.
	ExecutionCooperative
)

func (m ExecutionMode) String() string {
	switch m {
	case ExecutionThreaded:
		return "threaded"
	case ExecutionCooperative:
		return "cooperative"
	}
	return "unknown"
}

// ParseExecutionMode converts a configuration value into an ExecutionMode.
func ParseExecutionMode(s string) (ExecutionMode, error) {
	switch s {
	case "threaded":
		return ExecutionThreaded, nil
	case "cooperative":
		return ExecutionCooperative, nil
	default:
		return ExecutionThreaded, fmt.Errorf("execution mode %q not one of threaded or cooperative", s)
	}
}

// Scheduler is an indirection layer over the go statement, so that loops can
// run on a host-supplied task system instead of dedicated goroutines. Start
// must arrange for loop to run until it returns, and must not run it
// synchronously. Loop bodies are identical in every mode; ordering and
// delivery behavior do not depend on where they run.
type Scheduler interface {
	Start(loop func())
}

// SchedulerFunc is an adapter to allow the use of ordinary functions as
// Schedulers.
type SchedulerFunc func(loop func())

func (f SchedulerFunc) Start(loop func()) { f(loop) }

// GoScheduler returns the Scheduler used by ExecutionThreaded: every loop
// gets its own goroutine.
func GoScheduler() Scheduler {
	return SchedulerFunc(func(loop func()) {
		go loop()
	})
}
