package sender

import (
	"sync"

	metricsipc "github.com/butlerx/metrics-ipc-collector"
)

// eventQueue is a bounded FIFO of events backed by a ring buffer. When the
// queue is full, pushing evicts the oldest event so producers never block
// and never fail. Safe for concurrent use.
type eventQueue struct {
	mu    sync.Mutex
	buf   []metricsipc.Event
	head  int // index of the oldest event
	count int
}

func newEventQueue(capacity int) *eventQueue {
	return &eventQueue{
		buf: make([]metricsipc.Event, capacity),
	}
}

// push appends ev to the queue. It reports whether the queue was full and
// the oldest event was evicted to make room.
func (q *eventQueue) push(ev metricsipc.Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.count == len(q.buf) {
		// Full: the slot holding the oldest event is overwritten and the
		// queue advances past it.
		q.buf[q.head] = ev
		q.head = (q.head + 1) % len(q.buf)
		return true
	}
	q.buf[(q.head+q.count)%len(q.buf)] = ev
	q.count++
	return false
}

// pop removes and returns the oldest event. It reports false when the
// queue is empty.
func (q *eventQueue) pop() (metricsipc.Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.count == 0 {
		return metricsipc.Event{}, false
	}
	ev := q.buf[q.head]
	q.buf[q.head] = metricsipc.Event{} // release references held by the slot
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	return ev, true
}

// len returns the number of queued events.
func (q *eventQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}
