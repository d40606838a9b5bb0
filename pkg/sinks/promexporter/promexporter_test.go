package promexporter

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	metricsipc "github.com/butlerx/metrics-ipc-collector"
	"github.com/butlerx/metrics-ipc-collector/internal/fixtures"
)

func newTestSink(t *testing.T) *Sink {
	t.Helper()
	s, err := NewSink("", fixtures.NewTestLogger(t))
	require.NoError(t, err)
	return s
}

func compare(t *testing.T, s *Sink, expected string, metricNames ...string) {
	t.Helper()
	require.NoError(t, testutil.GatherAndCompare(s.Registry(), strings.NewReader(expected), metricNames...))
}

func TestSinkCounterAdds(t *testing.T) {
	t.Parallel()
	s := newTestSink(t)
	key := metricsipc.NewKey("requests_total", metricsipc.Label{Name: "code", Value: "200"})
	s.Describe(key, "", "Total requests served.")
	s.RecordCounter(key, 3)
	s.RecordCounter(key, 4)

	compare(t, s, `# HELP requests_total Total requests served.
# TYPE requests_total counter
requests_total{code="200"} 7
`, "requests_total")
}

func TestSinkGaugeOps(t *testing.T) {
	t.Parallel()
	s := newTestSink(t)
	key := metricsipc.NewKey("queue_depth")
	s.Describe(key, "", "Items waiting.")
	s.RecordGauge(key, metricsipc.GaugeSet, 10)
	s.RecordGauge(key, metricsipc.GaugeInc, 2.5)
	s.RecordGauge(key, metricsipc.GaugeDec, 3)

	compare(t, s, `# HELP queue_depth Items waiting.
# TYPE queue_depth gauge
queue_depth 9.5
`, "queue_depth")
}

func TestSinkHistogramObserves(t *testing.T) {
	t.Parallel()
	s := newTestSink(t)
	key := metricsipc.NewKey("io_wait_seconds")
	s.Describe(key, "", "Time spent waiting.")
	s.RecordHistogram(key, 0.25)
	s.RecordHistogram(key, 0.5)

	compare(t, s, `# HELP io_wait_seconds Time spent waiting.
# TYPE io_wait_seconds histogram
io_wait_seconds_bucket{le="0.005"} 0
io_wait_seconds_bucket{le="0.01"} 0
io_wait_seconds_bucket{le="0.025"} 0
io_wait_seconds_bucket{le="0.05"} 0
io_wait_seconds_bucket{le="0.1"} 0
io_wait_seconds_bucket{le="0.25"} 1
io_wait_seconds_bucket{le="0.5"} 2
io_wait_seconds_bucket{le="1"} 2
io_wait_seconds_bucket{le="2.5"} 2
io_wait_seconds_bucket{le="5"} 2
io_wait_seconds_bucket{le="10"} 2
io_wait_seconds_bucket{le="+Inf"} 2
io_wait_seconds_sum 0.75
io_wait_seconds_count 2
`, "io_wait_seconds")
}

func TestSinkSanitizesNames(t *testing.T) {
	t.Parallel()
	s := newTestSink(t)
	key := metricsipc.NewKey("api.requests-total", metricsipc.Label{Name: "status.code", Value: "200 OK"})
	s.RecordCounter(key, 1)

	compare(t, s, `# HELP api_requests_total (no description provided)
# TYPE api_requests_total counter
api_requests_total{status_code="200 OK"} 1
`, "api_requests_total")
}

func TestSinkTypeConflictDropped(t *testing.T) {
	t.Parallel()
	s := newTestSink(t)
	key := metricsipc.NewKey("ambiguous")
	s.Describe(key, "", "First type wins.")
	s.RecordCounter(key, 1)
	s.RecordGauge(key, metricsipc.GaugeSet, 5)
	s.RecordGauge(key, metricsipc.GaugeSet, 6) // broken family, still no panic

	compare(t, s, `# HELP ambiguous First type wins.
# TYPE ambiguous counter
ambiguous 1
`, "ambiguous")
}

func TestSinkLabelSchemaFixedAtFirstSample(t *testing.T) {
	t.Parallel()
	s := newTestSink(t)
	s.Describe(metricsipc.NewKey("jobs"), "", "Jobs processed.")
	s.RecordCounter(metricsipc.NewKey("jobs", metricsipc.Label{Name: "shard", Value: "1"}), 1)
	s.RecordCounter(metricsipc.NewKey("jobs"), 1)                                             // missing label
	s.RecordCounter(metricsipc.NewKey("jobs", metricsipc.Label{Name: "zone", Value: "a"}), 1) // wrong label

	compare(t, s, `# HELP jobs Jobs processed.
# TYPE jobs counter
jobs{shard="1"} 1
`, "jobs")
}

func TestSinkDescribeAfterFirstSampleKeepsHelp(t *testing.T) {
	t.Parallel()
	s := newTestSink(t)
	key := metricsipc.NewKey("late")
	s.RecordCounter(key, 1)
	s.Describe(key, "", "Arrived too late.")

	compare(t, s, `# HELP late (no description provided)
# TYPE late counter
late 1
`, "late")
}

func TestSinkDescribeUnitOnly(t *testing.T) {
	t.Parallel()
	s := newTestSink(t)
	key := metricsipc.NewKey("payload_size")
	s.Describe(key, "bytes", "")
	s.RecordHistogram(key, 0.25)

	compare(t, s, `# HELP payload_size Unit: bytes
# TYPE payload_size histogram
payload_size_bucket{le="0.005"} 0
payload_size_bucket{le="0.01"} 0
payload_size_bucket{le="0.025"} 0
payload_size_bucket{le="0.05"} 0
payload_size_bucket{le="0.1"} 0
payload_size_bucket{le="0.25"} 1
payload_size_bucket{le="0.5"} 1
payload_size_bucket{le="1"} 1
payload_size_bucket{le="2.5"} 1
payload_size_bucket{le="5"} 1
payload_size_bucket{le="10"} 1
payload_size_bucket{le="+Inf"} 1
payload_size_sum 0.25
payload_size_count 1
`, "payload_size")
}

func TestSinkNamespacePrefixesNames(t *testing.T) {
	t.Parallel()
	s, err := NewSink("myapp", fixtures.NewTestLogger(t))
	require.NoError(t, err)
	s.Describe(metricsipc.NewKey("ops"), "", "Operations.")
	s.RecordCounter(metricsipc.NewKey("ops"), 2)

	compare(t, s, `# HELP myapp_ops Operations.
# TYPE myapp_ops counter
myapp_ops 2
`, "myapp_ops")
}

func TestNewSinkRejectsBadNamespace(t *testing.T) {
	t.Parallel()
	_, err := NewSink("my app", fixtures.NewTestLogger(t))
	require.Error(t, err)
}

func TestNewSinkFromViper(t *testing.T) {
	t.Parallel()
	v := viper.New()
	v.Set("prometheus.namespace", "collector")
	sink, err := NewSinkFromViper(v, fixtures.NewTestLogger(t))
	require.NoError(t, err)
	s := sink.(*Sink)
	assert.Equal(t, "collector", s.namespace)
}

func TestSinkHandlerServesText(t *testing.T) {
	t.Parallel()
	s := newTestSink(t)
	s.RecordCounter(metricsipc.NewKey("served_total"), 1)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "served_total 1")
}
