package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	metricsipc "github.com/butlerx/metrics-ipc-collector"
	"github.com/butlerx/metrics-ipc-collector/pkg/sender"
)

var (
	// BuildDate is the date when the binary was built.
	BuildDate string
	// GitCommit is the commit hash when the binary was built.
	GitCommit string
	// Version is the version of the binary.
	Version string
)

func main() {
	opts := parseArgs(os.Args[1:])

	logger := logrus.StandardLogger()
	if opts.Verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	rec, err := sender.NewBuilder().
		Socket(opts.Target).
		QueueCapacity(opts.QueueCapacity).
		Logger(logger).
		Build()
	if err != nil {
		logger.Fatalf("Failed to build recorder: %v", err)
	}

	ctx, cancelFunc := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancelFunc()

	if opts.Describe {
		describeSeries(rec, opts)
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.Rate), int(opts.Workers))
	}

	pendingWorkers := make(chan struct{}, opts.Workers)
	eventGenerators := make([]*eventGenerator, 0, opts.Workers)
	for i := uint(0); i < opts.Workers; i++ {
		generator := newEventGenerator(opts, rand.New(rand.NewSource(rand.Int63())))
		eventGenerators = append(eventGenerators, generator)
		go sendEventsWorker(ctx, rec, limiter, generator, pendingWorkers)
	}

	runningWorkers := opts.Workers
	statusTicker := time.NewTicker(1 * time.Second)
	defer statusTicker.Stop()
	for runningWorkers > 0 {
		select {
		case <-pendingWorkers:
			runningWorkers--
		case <-statusTicker.C:
			printStatus(eventGenerators, rec)
		}
	}

	// Close drains or drops whatever is still queued before returning.
	rec.Close()
	stats := rec.Stats()
	fmt.Printf("done: sent %d, dropped %d, reconnects %d\n", stats.Sent, stats.Dropped, stats.Reconnects)
}

func sendEventsWorker(
	ctx context.Context,
	rec *sender.Recorder,
	limiter *rate.Limiter,
	generator *eventGenerator,
	chDone chan<- struct{},
) {
	for {
		if err := limiter.Wait(ctx); err != nil {
			break
		}
		if !generator.next(rec) {
			break
		}
	}
	chDone <- struct{}{}
}

// describeSeries sends unit and help metadata for every series the
// generators may emit, so sinks can register descriptions before the first
// sample arrives.
func describeSeries(s metricsipc.Sink, opts commandOptions) {
	describe := func(kind string, count uint64, card uint, unit, description string) {
		if count == 0 {
			return
		}
		nameFormat := fmt.Sprintf("%s%s%s", opts.MetricPrefix, kind, opts.MetricSuffix)
		for n := uint(0); n < card; n++ {
			s.Describe(metricsipc.NewKey(fmt.Sprintf(nameFormat, n)), unit, description)
		}
	}
	describe("counter", opts.Counts.Counter, opts.NameCard.Counter, "events", "Synthetic counter emitted by the load generator")
	describe("gauge", opts.Counts.Gauge, opts.NameCard.Gauge, "", "Synthetic gauge emitted by the load generator")
	describe("histogram", opts.Counts.Histogram, opts.NameCard.Histogram, "seconds", "Synthetic histogram emitted by the load generator")
}

func printStatus(generators []*eventGenerator, rec *sender.Recorder) {
	counters := uint64(0)
	gauges := uint64(0)
	histograms := uint64(0)
	for _, eg := range generators {
		counters += atomic.LoadUint64(&eg.counters.count)
		gauges += atomic.LoadUint64(&eg.gauges.count)
		histograms += atomic.LoadUint64(&eg.histograms.count)
	}
	stats := rec.Stats()
	fmt.Printf(
		"%d counters, %d gauges, %d histograms left; sent %d, dropped %d, queued %d, reconnects %d\n",
		counters, gauges, histograms, stats.Sent, stats.Dropped, stats.Queued, stats.Reconnects,
	)
}
