// Package fakesocket provides a fake collector connection for tests and
// benchmarks: writes succeed instantly and go nowhere.
package fakesocket

import (
	"errors"
	"net"
	"time"
)

// FakeAddr is a fake net.Addr.
var FakeAddr = &net.UnixAddr{
	Name: "/tmp/fake_metrics_collector.sock",
	Net:  "unix",
}

var ErrClosedConnection = errors.New("connection is closed")
var ErrAlreadyClosedConnection = errors.New("connection is already closed")

// FakeConn is a fake net.Conn discarding everything written to it.
type FakeConn struct {
	closed chan int
}

func (fc *FakeConn) isClosed() bool {
	select {
	case <-fc.closed:
		return true
	default:
		return false
	}
}

// Read blocks until the connection is closed; a fake collector never talks
// back.
func (fc *FakeConn) Read(b []byte) (int, error) {
	<-fc.closed
	return 0, ErrClosedConnection
}

// Write discards b.
func (fc *FakeConn) Write(b []byte) (int, error) {
	if fc.isClosed() {
		return 0, ErrClosedConnection
	}
	return len(b), nil
}

// Close dummy impl.
func (fc *FakeConn) Close() error {
	if fc.isClosed() {
		return ErrAlreadyClosedConnection
	}
	// Potential race, but it's a test fixture anyway
	close(fc.closed)
	return nil
}

// LocalAddr dummy impl.
func (fc *FakeConn) LocalAddr() net.Addr { return FakeAddr }

// RemoteAddr dummy impl.
func (fc *FakeConn) RemoteAddr() net.Addr { return FakeAddr }

// SetDeadline dummy impl.
func (fc *FakeConn) SetDeadline(t time.Time) error { return nil }

// SetReadDeadline dummy impl.
func (fc *FakeConn) SetReadDeadline(t time.Time) error { return nil }

// SetWriteDeadline dummy impl.
func (fc *FakeConn) SetWriteDeadline(t time.Time) error { return nil }

// Factory is a replacement for dialing the collector that produces instances
// of FakeConn.
func Factory() (net.Conn, error) {
	return NewFakeConn(), nil
}

// NewFakeConn returns an open FakeConn.
func NewFakeConn() net.Conn {
	return &FakeConn{
		closed: make(chan int),
	}
}
