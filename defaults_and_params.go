package metricsipc

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"
)

// DefaultSocketPath is the default path of the unix socket recorders send to
// and the collector accepts on.
var DefaultSocketPath = filepath.Join(os.TempDir(), "metrics_collector.sock")

const (
	// DefaultQueueCapacity is the default bound of the outbound event queue.
	DefaultQueueCapacity = 1024 // arbitrary
	// DefaultReconnectBackoffMin is the default initial redial interval.
	DefaultReconnectBackoffMin = 50 * time.Millisecond
	// DefaultReconnectBackoffMax is the default ceiling of the redial interval.
	DefaultReconnectBackoffMax = 5 * time.Second
	// DefaultExecutionMode is the default execution mode.
	DefaultExecutionMode = ExecutionThreaded
	// DefaultDrainTimeout is how long collector shutdown waits for connection
	// loops to finish before giving up on them.
	DefaultDrainTimeout = 5 * time.Second
	// DefaultBadFramesPerMinute is the default rate limit on logging about
	// undecodable connections.
	DefaultBadFramesPerMinute = 6.0
	// DefaultSink is the default downstream sink of the collector daemon.
	DefaultSink = "prometheus"
	// DefaultWebAddr is the default address of the collector daemon's web
	// server.
	DefaultWebAddr = "127.0.0.1:9102"
	// DefaultWebEnableExpvar is the default for serving /expvar.
	DefaultWebEnableExpvar = false
)

const (
	// ParamSocketPath is the name of parameter with the unix socket path.
	ParamSocketPath = "socket-path"
	// ParamQueueCapacity is the name of parameter with the outbound event queue bound.
	ParamQueueCapacity = "queue-capacity"
	// ParamReconnectBackoffMin is the name of parameter with the initial redial interval.
	ParamReconnectBackoffMin = "reconnect-backoff-min"
	// ParamReconnectBackoffMax is the name of parameter with the ceiling of the redial interval.
	ParamReconnectBackoffMax = "reconnect-backoff-max"
	// ParamExecutionMode is the name of parameter with the execution mode.
	ParamExecutionMode = "execution-mode"
	// ParamDrainTimeout is the name of parameter with the shutdown drain timeout.
	ParamDrainTimeout = "drain-timeout"
	// ParamBadFramesPerMinute is the name of parameter with the rate limit on logging about undecodable connections.
	ParamBadFramesPerMinute = "bad-frames-per-minute"
	// ParamSink is the name of parameter with the downstream sink of the collector daemon.
	ParamSink = "sink"
	// ParamWebAddr is the name of parameter with the address of the collector daemon's web server.
	ParamWebAddr = "web-addr"
	// ParamWebEnableExpvar is the name of parameter enabling the /expvar route.
	ParamWebEnableExpvar = "web-enable-expvar"
)

// AddFlags adds flags to the specified FlagSet.
func AddFlags(fs *pflag.FlagSet) {
	fs.String(ParamSocketPath, DefaultSocketPath, "Path of the unix socket metric events are sent over")
	fs.Int(ParamQueueCapacity, DefaultQueueCapacity, "Bound of the outbound event queue, oldest events are dropped beyond it")
	fs.Duration(ParamReconnectBackoffMin, DefaultReconnectBackoffMin, "Initial wait between redial attempts")
	fs.Duration(ParamReconnectBackoffMax, DefaultReconnectBackoffMax, "Maximum wait between redial attempts")
	fs.String(ParamExecutionMode, DefaultExecutionMode.String(), "How to run the library loops: threaded or cooperative")
	fs.Duration(ParamDrainTimeout, DefaultDrainTimeout, "How long to wait for connections to drain on shutdown")
	fs.Float64(ParamBadFramesPerMinute, DefaultBadFramesPerMinute, "Rate limit on logging about undecodable connections")
	fs.String(ParamSink, DefaultSink, "Downstream sink for collected events")
	fs.String(ParamWebAddr, DefaultWebAddr, "Address of the web server: prometheus exposition, healthcheck and status")
	fs.Bool(ParamWebEnableExpvar, DefaultWebEnableExpvar, "Serve go runtime internals on /expvar")
}
