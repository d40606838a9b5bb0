package sinks

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	metricsipc "github.com/butlerx/metrics-ipc-collector"
	"github.com/butlerx/metrics-ipc-collector/pkg/sinks/logging"
	"github.com/butlerx/metrics-ipc-collector/pkg/sinks/null"
	"github.com/butlerx/metrics-ipc-collector/pkg/sinks/promexporter"
)

// All known sinks.
var sinks = map[string]metricsipc.SinkFactory{
	logging.SinkName:      logging.NewSinkFromViper,
	null.SinkName:         null.NewSinkFromViper,
	promexporter.SinkName: promexporter.NewSinkFromViper,
}

// GetSink creates an instance of the named sink, or nil if the name is not
// known. The error return is only used if the named sink was known but failed
// to initialize.
func GetSink(name string, v *viper.Viper, logger logrus.FieldLogger) (metricsipc.Sink, error) {
	f, found := sinks[name]
	if !found {
		return nil, nil
	}
	return f(v, logger)
}

// InitSink creates an instance of the named sink.
func InitSink(name string, v *viper.Viper, logger logrus.FieldLogger) (metricsipc.Sink, error) {
	if name == "" {
		logger.Info("No sink specified")
		return nil, nil
	}

	sink, err := GetSink(name, v, logger)
	if err != nil {
		return nil, fmt.Errorf("could not init sink %q: %v", name, err)
	}
	if sink == nil {
		return nil, fmt.Errorf("unknown sink %q", name)
	}
	logger.Infof("Initialised sink %q", name)

	return sink, nil
}
