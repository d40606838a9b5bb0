package main

import (
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	metricsipc "github.com/butlerx/metrics-ipc-collector"
	"github.com/butlerx/metrics-ipc-collector/pkg/collector"
	"github.com/butlerx/metrics-ipc-collector/pkg/sender"
	"github.com/butlerx/metrics-ipc-collector/pkg/sinks/logging"
)

// Runs a collector and a recorder in a single process. Every event recorded
// through the package level helpers comes back as a log line.
func main() {
	logger := logrus.StandardLogger()
	socket := filepath.Join(os.TempDir(), "metrics_example.sock")

	col, err := collector.NewCollector(collector.Options{
		SocketPath: socket,
		Sink:       logging.NewSink(logger),
		Logger:     logger,
	})
	if err != nil {
		logger.Fatalf("Failed to create collector: %v", err)
	}
	if err := col.Start(); err != nil {
		logger.Fatalf("Failed to start collector: %v", err)
	}
	defer col.Stop()

	// Build installs the recorder as the process-wide sink, so the
	// package-level helpers below reach it.
	rec, err := sender.NewBuilder().
		Socket(socket).
		Logger(logger).
		Build()
	if err != nil {
		logger.Fatalf("Failed to build recorder: %v", err)
	}

	metricsipc.Describe(metricsipc.NewKey("requests"), "requests", "Requests handled by the example")
	for i := 0; i < 10; i++ {
		metricsipc.RecordCounter(metricsipc.NewKey("requests", metricsipc.Label{Name: "path", Value: "/"}), 1)
		metricsipc.RecordHistogram(metricsipc.NewKey("request_seconds"), float64(i)*0.01)
	}
	metricsipc.RecordGauge(metricsipc.NewKey("queue_depth"), metricsipc.GaugeSet, 3)

	// Closing flushes the queue; the sleep lets the collector log the events
	// before Stop tears the socket down.
	rec.Close()
	time.Sleep(100 * time.Millisecond)
}
