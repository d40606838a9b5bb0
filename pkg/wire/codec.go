// Package wire implements the framed binary encoding of metric events.
//
// Every event travels as one self-contained frame:
//
//	[1 byte version][1 byte event type][4 byte payload length][payload]
//
// The payload starts with the series for every event type:
//
//	[2 byte name length][name][2 byte label count]
//	then per label: [2 byte key length][key][2 byte value length][value]
//
// followed by the type specific fields: an 8 byte delta for counters, an
// operation byte and an 8 byte value for gauges, an 8 byte value for
// histograms, and two optional length-prefixed strings for describe frames.
// All integers are little-endian; floats travel as their IEEE-754 bits.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	metricsipc "github.com/butlerx/metrics-ipc-collector"
)

const (
	// ProtocolVersion is the frame version emitted by Append and accepted
	// by Decode.
	ProtocolVersion = 1

	// HeaderLength is the fixed size of a frame header.
	HeaderLength = 6

	// MaxPayloadLength bounds the payload of a single frame. Decode treats
	// anything above it as corruption, so a stray length field cannot make
	// a reader buffer gigabytes.
	MaxPayloadLength = 64 * 1024
)

var (
	// ErrCorrupt reports data that can never decode into a frame. There is
	// no way to find the start of the next frame after it, so the
	// connection it arrived on must be closed.
	ErrCorrupt = errors.New("corrupt frame")

	// ErrTooLong reports an event whose encoded form does not fit in a
	// frame.
	ErrTooLong = errors.New("event does not fit in a frame")
)

// Encode returns the encoded frame for ev.
func Encode(ev metricsipc.Event) ([]byte, error) {
	return Append(nil, ev)
}

// Append appends the encoded frame for ev to dst and returns the extended
// slice. On error dst is returned unchanged.
func Append(dst []byte, ev metricsipc.Event) ([]byte, error) {
	start := len(dst)
	dst = append(dst, ProtocolVersion, byte(ev.Type), 0, 0, 0, 0)

	out, err := appendPayload(dst, ev)
	if err != nil {
		return dst[:start], err
	}

	size := len(out) - start - HeaderLength
	if size > MaxPayloadLength {
		return dst[:start], fmt.Errorf("%w: payload is %d bytes, limit is %d", ErrTooLong, size, MaxPayloadLength)
	}
	binary.LittleEndian.PutUint32(out[start+2:], uint32(size))
	return out, nil
}

func appendPayload(dst []byte, ev metricsipc.Event) ([]byte, error) {
	dst, err := appendString(dst, "name", ev.Key.Name)
	if err != nil {
		return nil, err
	}
	if len(ev.Key.Labels) > math.MaxUint16 {
		return nil, fmt.Errorf("%w: %d labels", ErrTooLong, len(ev.Key.Labels))
	}
	dst = binary.LittleEndian.AppendUint16(dst, uint16(len(ev.Key.Labels)))
	for _, l := range ev.Key.Labels {
		if dst, err = appendString(dst, "label key", l.Name); err != nil {
			return nil, err
		}
		if dst, err = appendString(dst, "label value", l.Value); err != nil {
			return nil, err
		}
	}

	switch ev.Type {
	case metricsipc.CounterType:
		dst = binary.LittleEndian.AppendUint64(dst, ev.Delta)
	case metricsipc.GaugeType:
		if ev.Op > metricsipc.GaugeDec {
			return nil, fmt.Errorf("unknown gauge operation %d", ev.Op)
		}
		dst = append(dst, byte(ev.Op))
		dst = binary.LittleEndian.AppendUint64(dst, math.Float64bits(ev.Value))
	case metricsipc.HistogramType:
		dst = binary.LittleEndian.AppendUint64(dst, math.Float64bits(ev.Value))
	case metricsipc.DescribeType:
		if dst, err = appendOptionalString(dst, "unit", ev.Unit); err != nil {
			return nil, err
		}
		if dst, err = appendOptionalString(dst, "description", ev.Description); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown event type %d", ev.Type)
	}
	return dst, nil
}

func appendString(dst []byte, what, s string) ([]byte, error) {
	if len(s) > math.MaxUint16 {
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrTooLong, what, len(s))
	}
	dst = binary.LittleEndian.AppendUint16(dst, uint16(len(s)))
	return append(dst, s...), nil
}

// appendOptionalString writes a presence byte, then the string if present.
// An empty string is encoded as absent so that decoding gives back the same
// event.
func appendOptionalString(dst []byte, what, s string) ([]byte, error) {
	if s == "" {
		return append(dst, 0), nil
	}
	return appendString(append(dst, 1), what, s)
}

// Decode decodes the first complete frame in buf.
//
// A complete frame yields the decoded event and the number of bytes it
// occupied. When buf holds only part of a frame, Decode returns (Event{}, 0,
// nil): read more bytes and call it again. Data that can never become a
// valid frame yields an error wrapping ErrCorrupt.
func Decode(buf []byte) (metricsipc.Event, int, error) {
	var ev metricsipc.Event
	if len(buf) < HeaderLength {
		return ev, 0, nil
	}
	if buf[0] != ProtocolVersion {
		return ev, 0, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, buf[0])
	}
	typ := metricsipc.EventType(buf[1])
	if typ > metricsipc.DescribeType {
		return ev, 0, fmt.Errorf("%w: unknown event type %d", ErrCorrupt, buf[1])
	}
	size := binary.LittleEndian.Uint32(buf[2:])
	if size > MaxPayloadLength {
		return ev, 0, fmt.Errorf("%w: payload length %d, limit is %d", ErrCorrupt, size, MaxPayloadLength)
	}
	if len(buf)-HeaderLength < int(size) {
		return ev, 0, nil
	}

	p := payload{buf: buf[HeaderLength : HeaderLength+int(size)]}

	name := p.string("name")
	labelCount := int(p.uint16("label count"))
	// Each label needs at least two length prefixes, so a count beyond
	// the remaining bytes is corruption. Checking now keeps a forged count
	// from forcing a huge allocation below.
	if p.err == nil && labelCount*4 > len(p.buf)-p.off {
		return ev, 0, fmt.Errorf("%w: label count %d exceeds payload", ErrCorrupt, labelCount)
	}
	labels := make([]metricsipc.Label, 0, labelCount)
	for i := 0; i < labelCount; i++ {
		k := p.string("label key")
		v := p.string("label value")
		labels = append(labels, metricsipc.Label{Name: k, Value: v})
	}
	ev.Key = metricsipc.NewKey(name, labels...)
	ev.Type = typ

	switch typ {
	case metricsipc.CounterType:
		ev.Delta = p.uint64("delta")
	case metricsipc.GaugeType:
		op := p.byte("gauge operation")
		if p.err == nil && op > byte(metricsipc.GaugeDec) {
			p.err = fmt.Errorf("%w: unknown gauge operation %d", ErrCorrupt, op)
		}
		ev.Op = metricsipc.GaugeOp(op)
		ev.Value = math.Float64frombits(p.uint64("gauge value"))
	case metricsipc.HistogramType:
		ev.Value = math.Float64frombits(p.uint64("histogram value"))
	case metricsipc.DescribeType:
		ev.Unit = p.optionalString("unit")
		ev.Description = p.optionalString("description")
	}

	if p.err != nil {
		return metricsipc.Event{}, 0, p.err
	}
	if p.off != len(p.buf) {
		return metricsipc.Event{}, 0, fmt.Errorf("%w: %d trailing bytes in payload", ErrCorrupt, len(p.buf)-p.off)
	}
	return ev, HeaderLength + int(size), nil
}

// payload reads fields out of a complete frame payload. The declared payload
// is fully buffered, so running out of bytes here is corruption, not a short
// read. The first error sticks and further reads return zero values.
type payload struct {
	buf []byte
	off int
	err error
}

func (p *payload) fail(what string) {
	if p.err == nil {
		p.err = fmt.Errorf("%w: truncated %s", ErrCorrupt, what)
	}
}

func (p *payload) byte(what string) byte {
	if p.err != nil {
		return 0
	}
	if p.off+1 > len(p.buf) {
		p.fail(what)
		return 0
	}
	b := p.buf[p.off]
	p.off++
	return b
}

func (p *payload) uint16(what string) uint16 {
	if p.err != nil {
		return 0
	}
	if p.off+2 > len(p.buf) {
		p.fail(what)
		return 0
	}
	v := binary.LittleEndian.Uint16(p.buf[p.off:])
	p.off += 2
	return v
}

func (p *payload) uint64(what string) uint64 {
	if p.err != nil {
		return 0
	}
	if p.off+8 > len(p.buf) {
		p.fail(what)
		return 0
	}
	v := binary.LittleEndian.Uint64(p.buf[p.off:])
	p.off += 8
	return v
}

func (p *payload) string(what string) string {
	n := int(p.uint16(what))
	if p.err != nil {
		return ""
	}
	if p.off+n > len(p.buf) {
		p.fail(what)
		return ""
	}
	s := string(p.buf[p.off : p.off+n])
	p.off += n
	return s
}

func (p *payload) optionalString(what string) string {
	present := p.byte(what)
	if p.err != nil || present == 0 {
		return ""
	}
	if present != 1 {
		p.err = fmt.Errorf("%w: invalid %s presence byte %d", ErrCorrupt, what, present)
		return ""
	}
	return p.string(what)
}
