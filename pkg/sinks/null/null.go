package null

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	metricsipc "github.com/butlerx/metrics-ipc-collector"
)

// SinkName is the name of this sink.
const SinkName = "null"

// NewSinkFromViper constructs a discarding sink.
func NewSinkFromViper(v *viper.Viper, logger logrus.FieldLogger) (metricsipc.Sink, error) {
	return NewSink()
}

// NewSink constructs a sink that discards every event.
func NewSink() (metricsipc.Sink, error) {
	return metricsipc.NopSink{}, nil
}
