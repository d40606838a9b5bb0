package logging

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	metricsipc "github.com/butlerx/metrics-ipc-collector"
)

// SinkName is the name of this sink.
const SinkName = "logging"

// Sink is a Sink which emits a log line per event. It is meant for
// development and troubleshooting, not for production volumes.
type Sink struct {
	logger logrus.FieldLogger
}

// NewSinkFromViper constructs a Sink that logs every event.
func NewSinkFromViper(v *viper.Viper, logger logrus.FieldLogger) (metricsipc.Sink, error) {
	return NewSink(logger), nil
}

// NewSink constructs a Sink which sends events to the supplied logger.
func NewSink(logger logrus.FieldLogger) *Sink {
	return &Sink{
		logger: logger,
	}
}

// RecordCounter logs a counter event.
func (s *Sink) RecordCounter(key metricsipc.Key, delta uint64) {
	s.logger.WithFields(logrus.Fields{
		"name":   key.Name,
		"labels": key.Labels.String(),
		"delta":  delta,
	}).Info("counter")
}

// RecordGauge logs a gauge event.
func (s *Sink) RecordGauge(key metricsipc.Key, op metricsipc.GaugeOp, value float64) {
	s.logger.WithFields(logrus.Fields{
		"name":   key.Name,
		"labels": key.Labels.String(),
		"op":     op.String(),
		"value":  value,
	}).Info("gauge")
}

// RecordHistogram logs a histogram observation.
func (s *Sink) RecordHistogram(key metricsipc.Key, value float64) {
	s.logger.WithFields(logrus.Fields{
		"name":   key.Name,
		"labels": key.Labels.String(),
		"value":  value,
	}).Info("histogram")
}

// Describe logs a metric description.
func (s *Sink) Describe(key metricsipc.Key, unit, description string) {
	s.logger.WithFields(logrus.Fields{
		"name":        key.Name,
		"unit":        unit,
		"description": description,
	}).Info("describe")
}
