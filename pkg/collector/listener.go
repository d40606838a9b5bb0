package collector

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	metricsipc "github.com/butlerx/metrics-ipc-collector"
	"github.com/butlerx/metrics-ipc-collector/pkg/wire"
)

// ErrBind is wrapped by errors binding the accept socket.
var ErrBind = errors.New("cannot bind collector socket")

// probeTimeout bounds the dial used to tell a live collector's socket file
// from a stale one left behind by a crash.
const probeTimeout = 1 * time.Second

// listener owns the accept socket and one decode loop per accepted
// connection. Decoded events are handed to handle, in arrival order within
// each connection. A frame that cannot decode closes only its own
// connection; every other connection keeps streaming.
type listener struct {
	// Counter fields below must be read/written only using atomic instructions.
	// 64-bit fields must be the first fields in the struct to guarantee proper memory alignment.
	// See https://golang.org/pkg/sync/atomic/#pkg-note-BUG
	eventsReceived uint64
	connsAccepted  uint64
	framesCorrupt  uint64

	logger    logrus.FieldLogger
	path      string
	handle    func(metricsipc.Event)
	scheduler metricsipc.Scheduler
	badFrames *rate.Limiter // gates logging about undecodable frames

	ln net.Listener
	wg sync.WaitGroup

	mu       sync.Mutex
	conns    map[net.Conn]struct{}
	draining bool
}

func newListener(logger logrus.FieldLogger, path string, handle func(metricsipc.Event), scheduler metricsipc.Scheduler, badFramesPerMinute float64) *listener {
	return &listener{
		logger:    logger,
		path:      path,
		handle:    handle,
		scheduler: scheduler,
		badFrames: rate.NewLimiter(rate.Limit(badFramesPerMinute/60.0), 1),
		conns:     make(map[net.Conn]struct{}),
	}
}

// start binds the unix socket and begins accepting connections. A socket
// file nobody answers on is removed and the bind retried once.
func (l *listener) start() error {
	ln, err := net.Listen("unix", l.path)
	if err != nil {
		if !l.removeStaleSocket() {
			return fmt.Errorf("%w: %v", ErrBind, err)
		}
		if ln, err = net.Listen("unix", l.path); err != nil {
			return fmt.Errorf("%w: %v", ErrBind, err)
		}
	}
	l.ln = ln
	l.wg.Add(1)
	l.scheduler.Start(func() {
		defer l.wg.Done()
		l.acceptLoop()
	})
	return nil
}

// removeStaleSocket probes the socket file and removes it when no collector
// answers, reporting whether a bind retry is worthwhile. The probe keeps a
// restarting collector from stealing the path out from under a live one.
func (l *listener) removeStaleSocket() bool {
	conn, err := net.DialTimeout("unix", l.path, probeTimeout)
	if err == nil {
		_ = conn.Close()
		return false
	}
	if _, err := os.Stat(l.path); err != nil {
		return false
	}
	l.logger.WithField("path", l.path).Info("Removing stale socket file")
	return os.Remove(l.path) == nil
}

// stop closes the accept socket and every connection, then waits up to
// drainTimeout for the decode loops to finish.
func (l *listener) stop(drainTimeout time.Duration) {
	_ = l.ln.Close()
	l.mu.Lock()
	l.draining = true
	for conn := range l.conns {
		_ = conn.Close()
	}
	l.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		l.wg.Wait()
	}()
	select {
	case <-done:
	case <-time.After(drainTimeout):
		l.logger.Warn("Timed out waiting for connection loops to finish")
	}
}

func (l *listener) acceptLoop() {
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			// Accept fails permanently once the socket is closed.
			return
		}
		atomic.AddUint64(&l.connsAccepted, 1)
		if !l.track(conn) {
			continue
		}
		l.wg.Add(1)
		l.scheduler.Start(func() {
			defer l.wg.Done()
			l.readLoop(conn)
		})
	}
}

// track registers an accepted connection for shutdown. Connections accepted
// after draining began are closed instead.
func (l *listener) track(conn net.Conn) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.draining {
		_ = conn.Close()
		return false
	}
	l.conns[conn] = struct{}{}
	return true
}

func (l *listener) untrack(conn net.Conn) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.conns, conn)
}

func (l *listener) activeConns() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.conns)
}

func (l *listener) readLoop(conn net.Conn) {
	defer l.untrack(conn)
	defer func() {
		_ = conn.Close()
	}()
	rd := wire.NewReader(conn)
	for {
		ev, err := rd.Next()
		if err != nil {
			if errors.Is(err, wire.ErrCorrupt) {
				atomic.AddUint64(&l.framesCorrupt, 1)
				if l.badFrames.Allow() {
					l.logger.WithError(err).Warn("Closing connection on undecodable frame")
				}
			} else if err != io.EOF && l.badFrames.Allow() {
				// Mid-frame disconnects and socket errors; the peer is gone
				// either way.
				l.logger.WithError(err).Debug("Connection read failed")
			}
			return
		}
		atomic.AddUint64(&l.eventsReceived, 1)
		l.handle(ev)
	}
}
