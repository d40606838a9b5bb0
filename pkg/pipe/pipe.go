// Package pipe moves metric events over an anonymous pipe. It suits
// parent/child process pairs that want metrics without a socket on disk:
// the collecting side keeps the read end, the recording side writes frames
// into the write end it inherited.
package pipe

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	metricsipc "github.com/butlerx/metrics-ipc-collector"
	"github.com/butlerx/metrics-ipc-collector/pkg/sender"
	"github.com/butlerx/metrics-ipc-collector/pkg/util"
	"github.com/butlerx/metrics-ipc-collector/pkg/wire"
)

// Pair returns the two ends of an anonymous pipe: r for the collecting
// side, w for the recording side. Either end may be handed to a child
// process (see the ExtraFiles field of os/exec.Cmd) to split the pair
// across processes.
func Pair() (r, w *os.File, err error) {
	return os.Pipe()
}

type pipeAddr struct{}

func (pipeAddr) Network() string { return "pipe" }
func (pipeAddr) String() string  { return "pipe" }

// fileConn adapts a pipe end to net.Conn. Pipes are pollable, so the
// deadline methods behave as they do on sockets.
type fileConn struct {
	*os.File
}

func (fileConn) LocalAddr() net.Addr  { return pipeAddr{} }
func (fileConn) RemoteAddr() net.Addr { return pipeAddr{} }

// NewRecorder initialises a Recorder framing events into the write end of a
// pipe. A pipe cannot be reopened, so after a failed write the recorder
// drops further events instead of redialling. The writer runs on its own
// goroutine; closing the Recorder flushes queued events and closes w.
func NewRecorder(logger logrus.FieldLogger, w *os.File, queueCapacity int) *sender.Recorder {
	opened := false
	dial := func() (net.Conn, error) {
		if opened {
			return nil, fmt.Errorf("pipe cannot be reopened")
		}
		opened = true
		return fileConn{w}, nil
	}
	ch := sender.NewChannel(logger.WithField("component", "pipe-recorder"), dial, util.NewNoRetryBackoffFactory(), queueCapacity)
	ctx, cancel := context.WithCancel(context.Background())
	go ch.Run(ctx)
	return sender.NewRecorder(ch, cancel)
}

// CollectorStats holds statistics for a pipe Collector.
type CollectorStats struct {
	EventsReceived uint64
}

// Collector decodes one pipe's frames and fans the events into a sink.
type Collector struct {
	// Counter fields below must be read/written only using atomic instructions.
	// 64-bit fields must be the first fields in the struct to guarantee proper memory alignment.
	// See https://golang.org/pkg/sync/atomic/#pkg-note-BUG
	eventsReceived uint64

	logger logrus.FieldLogger
	r      *os.File
	sink   metricsipc.Sink
}

// NewCollector initialises a new Collector reading from r into sink.
func NewCollector(logger logrus.FieldLogger, r *os.File, sink metricsipc.Sink) *Collector {
	return &Collector{
		logger: logger.WithField("component", "pipe-collector"),
		r:      r,
		sink:   sink,
	}
}

// Run decodes frames until the write end closes or ctx is cancelled. A
// clean close of the write end returns nil. An undecodable frame kills the
// whole transport, since a pipe has exactly one peer; the decode error is
// returned.
func (c *Collector) Run(ctx context.Context) error {
	finished := make(chan struct{})
	defer close(finished)
	go func() {
		select {
		case <-ctx.Done():
			_ = c.r.Close() // unblocks the decode loop
		case <-finished:
		}
	}()

	rd := wire.NewReader(c.r)
	for {
		ev, err := rd.Next()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.WithError(err).Warn("Pipe stream failed")
			return err
		}
		atomic.AddUint64(&c.eventsReceived, 1)
		ev.Dispatch(c.sink)
	}
}

// Stats returns current Collector counters. Safe for concurrent use.
func (c *Collector) Stats() CollectorStats {
	return CollectorStats{
		EventsReceived: atomic.LoadUint64(&c.eventsReceived),
	}
}
