// Package collector accepts metric event streams over a unix domain socket
// and fans every decoded event into a Sink.
package collector

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	metricsipc "github.com/butlerx/metrics-ipc-collector"
	"github.com/butlerx/metrics-ipc-collector/pkg/healthcheck"
)

// ErrAlreadyStarted is returned by Start while the Collector is running.
var ErrAlreadyStarted = errors.New("collector already started")

// Options configures a Collector.
type Options struct {
	// SocketPath is the unix socket to accept on. Required.
	SocketPath string
	// Sink receives every decoded event. Required.
	Sink metricsipc.Sink
	// Logger defaults to the logrus standard logger.
	Logger logrus.FieldLogger
	// Scheduler runs the accept and per-connection loops. Defaults to one
	// goroutine per loop.
	Scheduler metricsipc.Scheduler
	// DrainTimeout bounds how long Stop waits for connection loops to
	// finish. Defaults to metricsipc.DefaultDrainTimeout.
	DrainTimeout time.Duration
	// BadFramesPerMinute bounds logging about undecodable connections.
	// Defaults to metricsipc.DefaultBadFramesPerMinute.
	BadFramesPerMinute float64
}

// CollectorStats holds statistics for a Collector. Counters are cumulative
// since the last Start.
type CollectorStats struct {
	EventsReceived      uint64
	ConnectionsAccepted uint64
	FramesCorrupt       uint64
	ActiveConnections   int
	Running             bool
}

// Collector owns the accept socket and routes every event received on it
// into the configured Sink. It adds no buffering and no transformation of
// its own; ordering within each connection is the arrival order.
type Collector struct {
	logger             logrus.FieldLogger
	socketPath         string
	sink               metricsipc.Sink
	scheduler          metricsipc.Scheduler
	drainTimeout       time.Duration
	badFramesPerMinute float64

	mu sync.Mutex
	ln *listener // non-nil while running
}

// NewCollector validates opts and initialises a new Collector. The
// Collector does not accept until Start.
func NewCollector(opts Options) (*Collector, error) {
	if opts.SocketPath == "" {
		return nil, fmt.Errorf("socket path is required")
	}
	if opts.Sink == nil {
		return nil, fmt.Errorf("sink is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	scheduler := opts.Scheduler
	if scheduler == nil {
		scheduler = metricsipc.GoScheduler()
	}
	drainTimeout := opts.DrainTimeout
	if drainTimeout <= 0 {
		drainTimeout = metricsipc.DefaultDrainTimeout
	}
	badFramesPerMinute := opts.BadFramesPerMinute
	if badFramesPerMinute <= 0 {
		badFramesPerMinute = metricsipc.DefaultBadFramesPerMinute
	}
	return &Collector{
		logger:             logger.WithField("component", "collector"),
		socketPath:         opts.SocketPath,
		sink:               opts.Sink,
		scheduler:          scheduler,
		drainTimeout:       drainTimeout,
		badFramesPerMinute: badFramesPerMinute,
	}, nil
}

// NewCollectorFromViper initialises a new Collector from the given viper
// instance, routing events into sink.
func NewCollectorFromViper(v *viper.Viper, logger logrus.FieldLogger, sink metricsipc.Sink) (*Collector, error) {
	v.SetDefault(metricsipc.ParamSocketPath, metricsipc.DefaultSocketPath)
	v.SetDefault(metricsipc.ParamDrainTimeout, metricsipc.DefaultDrainTimeout)
	v.SetDefault(metricsipc.ParamBadFramesPerMinute, metricsipc.DefaultBadFramesPerMinute)

	return NewCollector(Options{
		SocketPath:         v.GetString(metricsipc.ParamSocketPath),
		Sink:               sink,
		Logger:             logger,
		DrainTimeout:       v.GetDuration(metricsipc.ParamDrainTimeout),
		BadFramesPerMinute: v.GetFloat64(metricsipc.ParamBadFramesPerMinute),
	})
}

// Start binds the socket and begins accepting connections. It returns
// ErrAlreadyStarted while running and an error wrapping ErrBind when the
// socket cannot be bound. A stopped Collector may be started again.
func (c *Collector) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ln != nil {
		return ErrAlreadyStarted
	}
	ln := newListener(c.logger, c.socketPath, c.dispatch, c.scheduler, c.badFramesPerMinute)
	if err := ln.start(); err != nil {
		return err
	}
	c.ln = ln
	c.logger.WithField("socket", c.socketPath).Info("Accepting metric events")
	return nil
}

// Stop closes the accept socket and every connection, waiting up to the
// drain timeout for in-flight frames to finish decoding. Stopping a stopped
// Collector is a no-op.
func (c *Collector) Stop() {
	c.mu.Lock()
	ln := c.ln
	c.ln = nil
	c.mu.Unlock()
	if ln == nil {
		return
	}
	ln.stop(c.drainTimeout)
	c.logger.Info("Stopped accepting metric events")
}

// Stats returns current Collector statistics. Safe for concurrent use.
func (c *Collector) Stats() CollectorStats {
	c.mu.Lock()
	ln := c.ln
	c.mu.Unlock()
	if ln == nil {
		return CollectorStats{}
	}
	return CollectorStats{
		EventsReceived:      atomic.LoadUint64(&ln.eventsReceived),
		ConnectionsAccepted: atomic.LoadUint64(&ln.connsAccepted),
		FramesCorrupt:       atomic.LoadUint64(&ln.framesCorrupt),
		ActiveConnections:   ln.activeConns(),
		Running:             true,
	}
}

// HealthChecks returns a check reporting whether the Collector is accepting.
func (c *Collector) HealthChecks() []healthcheck.HealthcheckFunc {
	return []healthcheck.HealthcheckFunc{c.healthcheck}
}

func (c *Collector) healthcheck() (string, healthcheck.HealthyStatus) {
	c.mu.Lock()
	running := c.ln != nil
	c.mu.Unlock()
	if !running {
		return "not accepting metric events", healthcheck.Unhealthy
	}
	return "accepting metric events", healthcheck.Healthy
}

// dispatch routes one decoded event into the sink.
func (c *Collector) dispatch(ev metricsipc.Event) {
	ev.Dispatch(c.sink)
}
