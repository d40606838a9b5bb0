package sender

import (
	"context"
	"net"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/sirupsen/logrus"
	"github.com/tilinna/clock"

	metricsipc "github.com/butlerx/metrics-ipc-collector"
	"github.com/butlerx/metrics-ipc-collector/pkg/util"
	"github.com/butlerx/metrics-ipc-collector/pkg/wire"
)

// writeTimeout bounds a single write so a wedged collector cannot stall the
// writer, and with it shutdown, forever.
const writeTimeout = 5 * time.Second

// DialFunc opens a connection to the collector. It is called for the
// initial connection and again after every connection loss.
type DialFunc func() (net.Conn, error)

// UnixDialFunc returns a DialFunc connecting to the unix domain socket at
// path.
func UnixDialFunc(path string) DialFunc {
	return func() (net.Conn, error) {
		return net.Dial("unix", path)
	}
}

// ChannelStats holds statistics for a Channel.
type ChannelStats struct {
	Sent       uint64
	Dropped    uint64
	Reconnects uint64
	Queued     int
}

// Channel moves events from producers to the collector. Push hands an event
// to a bounded queue and never blocks; Run drains the queue onto the
// connection, dialling and re-dialling as needed. An event is written at
// most once: a failed write drops the event rather than retrying it, since
// the collector may have already received part or all of the frame.
type Channel struct {
	// Counter fields below must be read/written only using atomic instructions.
	// 64-bit fields must be the first fields in the struct to guarantee proper memory alignment.
	// See https://golang.org/pkg/sync/atomic/#pkg-note-BUG
	sent       uint64 // events written to the connection
	dropped    uint64 // events evicted, discarded or lost to failed writes
	reconnects uint64 // successful dials after the first

	logger         logrus.FieldLogger
	dial           DialFunc
	backoffFactory util.BackoffFactory
	queue          *eventQueue
	wake           chan struct{}
	done           chan struct{}

	// State below is owned by Run.
	conn         net.Conn
	encodeBuf    []byte
	connectedYet bool
	discarding   bool
}

// NewChannel initialises a new Channel. Events pushed while queueCapacity
// events are already queued evict the oldest queued event.
func NewChannel(logger logrus.FieldLogger, dial DialFunc, backoffFactory util.BackoffFactory, queueCapacity int) *Channel {
	return &Channel{
		logger:         logger,
		dial:           dial,
		backoffFactory: backoffFactory,
		queue:          newEventQueue(queueCapacity),
		wake:           make(chan struct{}, 1),
		done:           make(chan struct{}),
	}
}

// Push queues ev for delivery. It never blocks and never fails; when the
// queue is full the oldest queued event is dropped to make room.
func (ch *Channel) Push(ev metricsipc.Event) {
	select {
	case <-ch.done:
		// The writer has exited; nothing will drain the queue.
		atomic.AddUint64(&ch.dropped, 1)
		return
	default:
	}
	if ch.queue.push(ev) {
		atomic.AddUint64(&ch.dropped, 1)
	}
	select {
	case ch.wake <- struct{}{}:
	default:
	}
}

// Run writes queued events to the collector until ctx is cancelled. On
// cancellation it writes whatever is still queued if a connection is up,
// drops it otherwise, and closes the connection. Run must be called at most
// once.
func (ch *Channel) Run(ctx context.Context) {
	defer close(ch.done)
	defer ch.closeConn()
	for {
		ev, ok := ch.queue.pop()
		if !ok {
			select {
			case <-ctx.Done():
				ch.flushOrDrop()
				return
			case <-ch.wake:
				continue
			}
		}
		if ctx.Err() != nil {
			ch.flushEvent(ev)
			ch.flushOrDrop()
			return
		}
		ch.deliver(ctx, ev)
	}
}

// Done returns a channel closed once Run has returned and the connection is
// closed.
func (ch *Channel) Done() <-chan struct{} {
	return ch.done
}

// Stats returns current Channel counters. Safe for concurrent use.
func (ch *Channel) Stats() ChannelStats {
	return ChannelStats{
		Sent:       atomic.LoadUint64(&ch.sent),
		Dropped:    atomic.LoadUint64(&ch.dropped),
		Reconnects: atomic.LoadUint64(&ch.reconnects),
		Queued:     ch.queue.len(),
	}
}

// deliver writes ev to the collector, dialling first when no connection is
// up.
func (ch *Channel) deliver(ctx context.Context, ev metricsipc.Event) {
	if ch.conn == nil && !ch.connect(ctx) {
		atomic.AddUint64(&ch.dropped, 1)
		return
	}
	ch.writeEvent(ev)
}

// connect dials until a connection is up, waiting between attempts per the
// backoff policy. It returns false when ctx is cancelled before a dial
// succeeds, or when the policy stops retrying; in the latter case the
// channel discards all further events.
func (ch *Channel) connect(ctx context.Context) bool {
	if ch.discarding {
		return false
	}
	bo := ch.backoffFactory()
	for {
		conn, err := ch.dial()
		if err == nil {
			ch.conn = conn
			if ch.connectedYet {
				atomic.AddUint64(&ch.reconnects, 1)
			}
			ch.connectedYet = true
			return true
		}

		next := bo.NextBackOff()
		if next == backoff.Stop {
			ch.discarding = true
			ch.logger.WithError(err).Error("Not retrying to connect, discarding all further events")
			return false
		}

		ch.logger.WithError(err).WithField("wait", next).Info("Failed to connect, retrying")
		timer := clock.NewTimer(ctx, next)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}
	}
}

// writeEvent frames ev onto the current connection. A failed write drops
// the event and closes the connection; the next deliver re-dials.
func (ch *Channel) writeEvent(ev metricsipc.Event) {
	buf, err := wire.Append(ch.encodeBuf[:0], ev)
	if err != nil {
		atomic.AddUint64(&ch.dropped, 1)
		ch.logger.WithError(err).WithField("event", ev.String()).Warn("Dropping unencodable event")
		return
	}
	ch.encodeBuf = buf
	_ = ch.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if _, err := ch.conn.Write(buf); err != nil {
		atomic.AddUint64(&ch.dropped, 1)
		ch.logger.WithError(err).Warn("Write failed, dropping event")
		ch.closeConn()
		return
	}
	atomic.AddUint64(&ch.sent, 1)
}

// flushEvent is the shutdown path for a single event: it is written only if
// a connection is already up, and dropped otherwise. It never dials.
func (ch *Channel) flushEvent(ev metricsipc.Event) {
	if ch.conn == nil {
		atomic.AddUint64(&ch.dropped, 1)
		return
	}
	ch.writeEvent(ev)
}

func (ch *Channel) flushOrDrop() {
	for {
		ev, ok := ch.queue.pop()
		if !ok {
			return
		}
		ch.flushEvent(ev)
	}
}

func (ch *Channel) closeConn() {
	if ch.conn == nil {
		return
	}
	if err := ch.conn.Close(); err != nil {
		ch.logger.WithError(err).Warn("Error closing connection")
	}
	ch.conn = nil
}
