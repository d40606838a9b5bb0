package promexporter

import (
	"fmt"
	"net/http"
	"regexp"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	metricsipc "github.com/butlerx/metrics-ipc-collector"
	"github.com/butlerx/metrics-ipc-collector/pkg/util"
)

const (
	// SinkName is the name of this sink.
	SinkName = "prometheus"
	// DefaultNamespace is the default prefix of exported metric names.
	DefaultNamespace = ""

	// defaultHelp is used for metrics recorded before any description
	// arrives.
	defaultHelp = "(no description provided)"
)

var (
	regInvalidMetricChars = regexp.MustCompile(`[^a-zA-Z0-9_:]`)
	regInvalidLabelChars  = regexp.MustCompile(`[^a-zA-Z0-9_]`)
)

// family is one exported metric name. The first event seen for a name fixes
// its label schema and registers the vector; a nil collector marks a name
// that failed to register, so later events for it are dropped without
// hammering the registry.
type family struct {
	collector  prometheus.Collector
	labelNames []string
}

// Sink exports recorded events as prometheus metrics on a dedicated
// Registry. Counters add their delta, gauges map Set/Inc/Dec onto
// Set/Add/Sub, histograms observe raw values into prometheus.DefBuckets.
// Vectors are created lazily when a name is first recorded; Describe supplies
// the help text used at that point. Conflicts (one name recorded as two
// types, or with two label schemas) are logged and the events dropped.
type Sink struct {
	logger    logrus.FieldLogger
	namespace string
	registry  *prometheus.Registry

	mu         sync.Mutex
	help       map[string]string
	counters   map[string]*family
	gauges     map[string]*family
	histograms map[string]*family
}

// NewSinkFromViper constructs a Sink using configuration provided by viper.
func NewSinkFromViper(v *viper.Viper, logger logrus.FieldLogger) (metricsipc.Sink, error) {
	p := util.GetSubViper(v, SinkName)
	p.SetDefault("namespace", DefaultNamespace)
	return NewSink(
		p.GetString("namespace"),
		logger,
	)
}

// NewSink constructs a Sink on a fresh registry. namespace, when not empty,
// prefixes every exported metric name.
func NewSink(namespace string, logger logrus.FieldLogger) (*Sink, error) {
	if namespace != "" && sanitizeMetricName(namespace) != namespace {
		return nil, fmt.Errorf("[%s] namespace %q is not a valid metric name prefix", SinkName, namespace)
	}
	return &Sink{
		logger:     logger,
		namespace:  namespace,
		registry:   prometheus.NewRegistry(),
		help:       make(map[string]string),
		counters:   make(map[string]*family),
		gauges:     make(map[string]*family),
		histograms: make(map[string]*family),
	}, nil
}

// Registry returns the registry holding every metric this sink exports.
func (s *Sink) Registry() *prometheus.Registry {
	return s.registry
}

// Handler returns an http.Handler serving this sink's metrics in the
// prometheus text exposition format.
func (s *Sink) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		ErrorLog: s.logger,
	})
}

// RecordCounter adds delta to the exported counter.
func (s *Sink) RecordCounter(key metricsipc.Key, delta uint64) {
	fam := s.family(s.counters, key, s.newCounterVec)
	values, ok := s.labelValues(fam, key)
	if !ok {
		return
	}
	c, err := fam.collector.(*prometheus.CounterVec).GetMetricWithLabelValues(values...)
	if err != nil {
		s.dropEvent("counter", key, err)
		return
	}
	c.Add(float64(delta))
}

// RecordGauge applies op to the exported gauge.
func (s *Sink) RecordGauge(key metricsipc.Key, op metricsipc.GaugeOp, value float64) {
	fam := s.family(s.gauges, key, s.newGaugeVec)
	values, ok := s.labelValues(fam, key)
	if !ok {
		return
	}
	g, err := fam.collector.(*prometheus.GaugeVec).GetMetricWithLabelValues(values...)
	if err != nil {
		s.dropEvent("gauge", key, err)
		return
	}
	switch op {
	case metricsipc.GaugeSet:
		g.Set(value)
	case metricsipc.GaugeInc:
		g.Add(value)
	case metricsipc.GaugeDec:
		g.Sub(value)
	}
}

// RecordHistogram observes value on the exported histogram.
func (s *Sink) RecordHistogram(key metricsipc.Key, value float64) {
	fam := s.family(s.histograms, key, s.newHistogramVec)
	values, ok := s.labelValues(fam, key)
	if !ok {
		return
	}
	h, err := fam.collector.(*prometheus.HistogramVec).GetMetricWithLabelValues(values...)
	if err != nil {
		s.dropEvent("histogram", key, err)
		return
	}
	h.Observe(value)
}

// Describe records the help text used when the metric's vector is created.
// Descriptions arriving after the first sample cannot be applied; prometheus
// fixes the help text at registration.
func (s *Sink) Describe(key metricsipc.Key, unit, description string) {
	help := description
	if unit != "" {
		if help == "" {
			help = "Unit: " + unit
		} else {
			help += " (unit: " + unit + ")"
		}
	}
	if help == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.help[key.Name] = help
	if s.registered(key.Name) {
		s.logger.WithField("metric", key.Name).Debug("Description arrived after the first sample, keeping the registered help text")
	}
}

// family returns the family for key's name, creating and registering the
// vector on first sight. A family with a nil collector means registration
// failed for this name.
func (s *Sink) family(m map[string]*family, key metricsipc.Key, build func(name, help string, labelNames []string) prometheus.Collector) *family {
	s.mu.Lock()
	defer s.mu.Unlock()
	fam, ok := m[key.Name]
	if ok {
		return fam
	}
	labelNames := sanitizeLabelNames(key.Labels.Names())
	coll := build(sanitizeMetricName(key.Name), s.helpFor(key.Name), labelNames)
	if err := s.registry.Register(coll); err != nil {
		s.logger.WithError(err).WithField("metric", key.Name).Warn("Cannot register metric, dropping its events")
		coll = nil
	}
	fam = &family{
		collector:  coll,
		labelNames: labelNames,
	}
	m[key.Name] = fam
	return fam
}

func (s *Sink) newCounterVec(name, help string, labelNames []string) prometheus.Collector {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: s.namespace,
		Name:      name,
		Help:      help,
	}, labelNames)
}

func (s *Sink) newGaugeVec(name, help string, labelNames []string) prometheus.Collector {
	return prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: s.namespace,
		Name:      name,
		Help:      help,
	}, labelNames)
}

func (s *Sink) newHistogramVec(name, help string, labelNames []string) prometheus.Collector {
	return prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: s.namespace,
		Name:      name,
		Help:      help,
		Buckets:   prometheus.DefBuckets,
	}, labelNames)
}

// labelValues extracts the label values of key in the family's schema order.
// It returns false when the family is broken or the key does not match the
// schema the name was first recorded with.
func (s *Sink) labelValues(fam *family, key metricsipc.Key) ([]string, bool) {
	if fam.collector == nil {
		return nil, false
	}
	if len(key.Labels) != len(fam.labelNames) {
		s.dropEvent("event", key, fmt.Errorf("expected labels %v", fam.labelNames))
		return nil, false
	}
	values := make([]string, len(key.Labels))
	for i, l := range key.Labels {
		if sanitizeLabelName(l.Name) != fam.labelNames[i] {
			s.dropEvent("event", key, fmt.Errorf("expected labels %v", fam.labelNames))
			return nil, false
		}
		values[i] = l.Value
	}
	return values, true
}

func (s *Sink) dropEvent(kind string, key metricsipc.Key, err error) {
	s.logger.WithError(err).WithFields(logrus.Fields{
		"type":   kind,
		"metric": key.String(),
	}).Warn("Dropping event with mismatched labels")
}

// helpFor returns the described help text for name, or a placeholder.
// Callers must hold s.mu.
func (s *Sink) helpFor(name string) string {
	if help, ok := s.help[name]; ok {
		return help
	}
	return defaultHelp
}

// registered reports whether name already has a vector of any type.
// Callers must hold s.mu.
func (s *Sink) registered(name string) bool {
	if _, ok := s.counters[name]; ok {
		return true
	}
	if _, ok := s.gauges[name]; ok {
		return true
	}
	_, ok := s.histograms[name]
	return ok
}

// sanitizeMetricName maps an arbitrary series name onto the prometheus
// metric name alphabet: invalid characters become underscores and a leading
// digit gets an underscore prefix.
func sanitizeMetricName(s string) string {
	s = regInvalidMetricChars.ReplaceAllLiteralString(s, "_")
	if s == "" || (s[0] >= '0' && s[0] <= '9') {
		s = "_" + s
	}
	return s
}

func sanitizeLabelName(s string) string {
	s = regInvalidLabelChars.ReplaceAllLiteralString(s, "_")
	if s == "" || (s[0] >= '0' && s[0] <= '9') {
		s = "_" + s
	}
	return s
}

func sanitizeLabelNames(names []string) []string {
	if len(names) == 0 {
		return nil
	}
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = sanitizeLabelName(n)
	}
	return out
}
