package sender

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	metricsipc "github.com/butlerx/metrics-ipc-collector"
	"github.com/butlerx/metrics-ipc-collector/pkg/util"
)

// ErrConfig is wrapped by every configuration error returned from Build.
var ErrConfig = errors.New("invalid recorder configuration")

// Builder assembles a Recorder and installs it as the process-wide sink.
// The zero value is not usable; start from NewBuilder.
type Builder struct {
	socketPath    string
	queueCapacity int
	backoffMin    time.Duration
	backoffMax    time.Duration
	mode          metricsipc.ExecutionMode
	scheduler     metricsipc.Scheduler
	logger        logrus.FieldLogger

	// Overridable for tests.
	dial    DialFunc
	install func(metricsipc.Sink) error
}

// NewBuilder initialises a new Builder with default queue and reconnect
// settings. The socket path has no default and must be set.
func NewBuilder() *Builder {
	return &Builder{
		queueCapacity: metricsipc.DefaultQueueCapacity,
		backoffMin:    metricsipc.DefaultReconnectBackoffMin,
		backoffMax:    metricsipc.DefaultReconnectBackoffMax,
		mode:          metricsipc.DefaultExecutionMode,
		logger:        logrus.StandardLogger(),
		install:       metricsipc.Install,
	}
}

// NewBuilderFromViper initialises a new Builder from the given viper
// instance.
func NewBuilderFromViper(v *viper.Viper, logger logrus.FieldLogger) (*Builder, error) {
	v.SetDefault(metricsipc.ParamSocketPath, metricsipc.DefaultSocketPath)
	v.SetDefault(metricsipc.ParamQueueCapacity, metricsipc.DefaultQueueCapacity)
	v.SetDefault(metricsipc.ParamReconnectBackoffMin, metricsipc.DefaultReconnectBackoffMin)
	v.SetDefault(metricsipc.ParamReconnectBackoffMax, metricsipc.DefaultReconnectBackoffMax)
	v.SetDefault(metricsipc.ParamExecutionMode, metricsipc.DefaultExecutionMode.String())

	mode, err := metricsipc.ParseExecutionMode(v.GetString(metricsipc.ParamExecutionMode))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	return NewBuilder().
		Socket(v.GetString(metricsipc.ParamSocketPath)).
		QueueCapacity(v.GetInt(metricsipc.ParamQueueCapacity)).
		ReconnectBackoff(v.GetDuration(metricsipc.ParamReconnectBackoffMin), v.GetDuration(metricsipc.ParamReconnectBackoffMax)).
		ExecutionMode(mode).
		Logger(logger), nil
}

// Socket sets the path of the unix socket the collector accepts on.
func (b *Builder) Socket(path string) *Builder {
	b.socketPath = path
	return b
}

// QueueCapacity sets the bound of the outbound event queue. Events pushed
// beyond it evict the oldest queued event.
func (b *Builder) QueueCapacity(n int) *Builder {
	b.queueCapacity = n
	return b
}

// ReconnectBackoff sets the initial and maximum wait between redial
// attempts after a lost connection.
func (b *Builder) ReconnectBackoff(min, max time.Duration) *Builder {
	b.backoffMin = min
	b.backoffMax = max
	return b
}

// ExecutionMode selects how the background writer is run. In threaded mode
// the writer gets its own goroutine; in cooperative mode it is handed to
// the scheduler set via Scheduler.
func (b *Builder) ExecutionMode(mode metricsipc.ExecutionMode) *Builder {
	b.mode = mode
	return b
}

// Scheduler sets the scheduler the writer loop is handed to in cooperative
// mode. It is not consulted in threaded mode.
func (b *Builder) Scheduler(s metricsipc.Scheduler) *Builder {
	b.scheduler = s
	return b
}

// Logger sets the logger. Defaults to the logrus standard logger.
func (b *Builder) Logger(logger logrus.FieldLogger) *Builder {
	b.logger = logger
	return b
}

// Build validates the configuration, installs the Recorder as the
// process-wide sink and starts the background writer. Nothing is dialled
// here; the first connection attempt happens when the first event is
// delivered. Build fails with metricsipc.ErrAlreadyInstalled if a sink is
// already installed, leaving nothing running.
func (b *Builder) Build() (*Recorder, error) {
	if b.socketPath == "" && b.dial == nil {
		return nil, fmt.Errorf("%w: socket path is required", ErrConfig)
	}
	if b.queueCapacity <= 0 {
		return nil, fmt.Errorf("%w: queue capacity must be positive, got %d", ErrConfig, b.queueCapacity)
	}
	if b.backoffMin <= 0 {
		return nil, fmt.Errorf("%w: reconnect backoff min must be positive, got %s", ErrConfig, b.backoffMin)
	}
	if b.backoffMax < b.backoffMin {
		return nil, fmt.Errorf("%w: reconnect backoff max %s is below min %s", ErrConfig, b.backoffMax, b.backoffMin)
	}

	var scheduler metricsipc.Scheduler
	switch b.mode {
	case metricsipc.ExecutionThreaded:
		scheduler = metricsipc.GoScheduler()
	case metricsipc.ExecutionCooperative:
		if b.scheduler == nil {
			return nil, fmt.Errorf("%w: cooperative execution requires a scheduler", ErrConfig)
		}
		scheduler = b.scheduler
	default:
		return nil, fmt.Errorf("%w: unknown execution mode %d", ErrConfig, b.mode)
	}

	dial := b.dial
	if dial == nil {
		dial = UnixDialFunc(b.socketPath)
	}
	logger := b.logger.WithField("component", "metrics-recorder")

	ch := NewChannel(logger, dial, util.NewReconnectBackoffFactory(b.backoffMin, b.backoffMax), b.queueCapacity)
	ctx, cancel := context.WithCancel(context.Background())
	recorder := NewRecorder(ch, cancel)

	// Install before starting the writer so a failed install leaves nothing
	// running to tear down.
	if err := b.install(recorder); err != nil {
		cancel()
		return nil, err
	}
	scheduler.Start(func() {
		ch.Run(ctx)
	})

	logger.WithFields(logrus.Fields{
		"socket":         b.socketPath,
		"queue-capacity": b.queueCapacity,
		"backoff-min":    b.backoffMin,
		"backoff-max":    b.backoffMax,
		"execution-mode": b.mode,
	}).Info("Installed metrics recorder")

	return recorder, nil
}
