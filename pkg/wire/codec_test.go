package wire

import (
	"encoding/binary"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	metricsipc "github.com/butlerx/metrics-ipc-collector"
)

func validEvents() map[string]metricsipc.Event {
	return map[string]metricsipc.Event{
		"counter": metricsipc.NewCounterEvent(
			metricsipc.NewKey("requests_total"), 1),
		"counter with labels": metricsipc.NewCounterEvent(
			metricsipc.NewKey("requests_total", metricsipc.Label{Name: "method", Value: "GET"}, metricsipc.Label{Name: "code", Value: "200"}), 42),
		"counter max delta": metricsipc.NewCounterEvent(
			metricsipc.NewKey("big"), math.MaxUint64),
		"gauge set": metricsipc.NewGaugeEvent(
			metricsipc.NewKey("queue_depth"), metricsipc.GaugeSet, 17),
		"gauge inc": metricsipc.NewGaugeEvent(
			metricsipc.NewKey("connections", metricsipc.Label{Name: "state", Value: "open"}), metricsipc.GaugeInc, 1),
		"gauge dec negative": metricsipc.NewGaugeEvent(
			metricsipc.NewKey("temperature"), metricsipc.GaugeDec, -40.5),
		"gauge infinity": metricsipc.NewGaugeEvent(
			metricsipc.NewKey("weird"), metricsipc.GaugeSet, math.Inf(1)),
		"histogram": metricsipc.NewHistogramEvent(
			metricsipc.NewKey("request_seconds", metricsipc.Label{Name: "route", Value: "/api"}), 0.0042),
		"histogram zero": metricsipc.NewHistogramEvent(
			metricsipc.NewKey("zeroes"), 0),
		"describe full": metricsipc.NewDescribeEvent(
			metricsipc.NewKey("request_seconds"), "seconds", "Time taken to serve a request"),
		"describe unit only": metricsipc.NewDescribeEvent(
			metricsipc.NewKey("payload_bytes"), "bytes", ""),
		"describe description only": metricsipc.NewDescribeEvent(
			metricsipc.NewKey("requests_total"), "", "Requests served"),
		"describe empty": metricsipc.NewDescribeEvent(
			metricsipc.NewKey("bare"), "", ""),
		"describe with labels": metricsipc.NewDescribeEvent(
			metricsipc.NewKey("queue_depth", metricsipc.Label{Name: "shard", Value: "7"}), "events", "Events waiting"),
		"unicode": metricsipc.NewCounterEvent(
			metricsipc.NewKey("compteur_événements", metricsipc.Label{Name: "région", Value: "日本"}), 7),
		"empty name": metricsipc.NewCounterEvent(
			metricsipc.NewKey(""), 1),
	}
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()
	for name, ev := range validEvents() {
		ev := ev
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			buf, err := Encode(ev)
			require.NoError(t, err)
			require.GreaterOrEqual(t, len(buf), HeaderLength)

			decoded, consumed, err := Decode(buf)
			require.NoError(t, err)
			assert.Equal(t, len(buf), consumed)
			assert.Equal(t, ev, decoded)
		})
	}
}

func TestEncodeDeterministic(t *testing.T) {
	t.Parallel()
	ev := metricsipc.NewCounterEvent(
		metricsipc.NewKey("m", metricsipc.Label{Name: "b", Value: "2"}, metricsipc.Label{Name: "a", Value: "1"}), 5)
	first, err := Encode(ev)
	require.NoError(t, err)
	second, err := Encode(ev)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// The same series with labels supplied in a different order encodes to
	// the same bytes, because keys are canonical.
	swapped := metricsipc.NewCounterEvent(
		metricsipc.NewKey("m", metricsipc.Label{Name: "a", Value: "1"}, metricsipc.Label{Name: "b", Value: "2"}), 5)
	third, err := Encode(swapped)
	require.NoError(t, err)
	assert.Equal(t, first, third)
}

func TestAppendPreservesPrefix(t *testing.T) {
	t.Parallel()
	prefix := []byte{0xde, 0xad}
	buf, err := Append(prefix, metricsipc.NewCounterEvent(metricsipc.NewKey("m"), 1))
	require.NoError(t, err)
	assert.Equal(t, []byte{0xde, 0xad}, buf[:2])

	ev, consumed, err := Decode(buf[2:])
	require.NoError(t, err)
	assert.Equal(t, len(buf)-2, consumed)
	assert.Equal(t, "m", ev.Key.Name)
}

func TestDecodePartialFrame(t *testing.T) {
	t.Parallel()
	buf, err := Encode(metricsipc.NewGaugeEvent(
		metricsipc.NewKey("queue_depth", metricsipc.Label{Name: "shard", Value: "3"}), metricsipc.GaugeSet, 12))
	require.NoError(t, err)

	// Every strict prefix must ask for more data without erroring.
	for i := 0; i < len(buf); i++ {
		ev, consumed, err := Decode(buf[:i])
		require.NoError(t, err, "prefix of %d bytes", i)
		assert.Zero(t, consumed, "prefix of %d bytes", i)
		assert.Equal(t, metricsipc.Event{}, ev)
	}

	_, consumed, err := Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, len(buf), consumed)
}

func TestDecodeConsumesOneFrame(t *testing.T) {
	t.Parallel()
	first := metricsipc.NewCounterEvent(metricsipc.NewKey("a"), 1)
	second := metricsipc.NewHistogramEvent(metricsipc.NewKey("b"), 2)

	buf, err := Encode(first)
	require.NoError(t, err)
	firstLen := len(buf)
	buf, err = Append(buf, second)
	require.NoError(t, err)

	ev, consumed, err := Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, firstLen, consumed)
	assert.Equal(t, first, ev)

	ev, consumed, err = Decode(buf[consumed:])
	require.NoError(t, err)
	assert.Equal(t, len(buf)-firstLen, consumed)
	assert.Equal(t, second, ev)
}

func TestDecodeCorrupt(t *testing.T) {
	t.Parallel()

	valid, err := Encode(metricsipc.NewGaugeEvent(
		metricsipc.NewKey("m", metricsipc.Label{Name: "a", Value: "1"}), metricsipc.GaugeInc, 1))
	require.NoError(t, err)

	mutate := func(f func(b []byte)) []byte {
		b := make([]byte, len(valid))
		copy(b, valid)
		f(b)
		return b
	}

	input := map[string][]byte{
		"bad version": mutate(func(b []byte) {
			b[0] = 0
		}),
		"future version": mutate(func(b []byte) {
			b[0] = ProtocolVersion + 1
		}),
		"unknown type": mutate(func(b []byte) {
			b[1] = 4
		}),
		"oversized payload length": mutate(func(b []byte) {
			binary.LittleEndian.PutUint32(b[2:], MaxPayloadLength+1)
		}),
		"name overruns payload": mutate(func(b []byte) {
			binary.LittleEndian.PutUint16(b[HeaderLength:], math.MaxUint16)
		}),
		"label count overruns payload": mutate(func(b []byte) {
			// name is "m", label count sits right after it.
			binary.LittleEndian.PutUint16(b[HeaderLength+2+1:], math.MaxUint16)
		}),
		"bad gauge operation": mutate(func(b []byte) {
			// The operation byte is 9 bytes from the end: op + 8 byte value.
			b[len(b)-9] = 3
		}),
		"trailing bytes in payload": func() []byte {
			b, err := Encode(metricsipc.NewCounterEvent(metricsipc.NewKey("m"), 1))
			require.NoError(t, err)
			b = append(b, 0xff)
			binary.LittleEndian.PutUint32(b[2:], uint32(len(b)-HeaderLength))
			return b
		}(),
		"payload shorter than fields": func() []byte {
			b, err := Encode(metricsipc.NewCounterEvent(metricsipc.NewKey("m"), 1))
			require.NoError(t, err)
			// Claim the payload ends before the counter delta does.
			binary.LittleEndian.PutUint32(b[2:], uint32(len(b)-HeaderLength-8))
			return b[:len(b)-8]
		}(),
		"bad describe presence byte": func() []byte {
			b, err := Encode(metricsipc.NewDescribeEvent(metricsipc.NewKey("m"), "", ""))
			require.NoError(t, err)
			b[len(b)-2] = 7
			return b
		}(),
	}
	for name, buf := range input {
		buf := buf
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, consumed, err := Decode(buf)
			require.ErrorIs(t, err, ErrCorrupt)
			assert.Zero(t, consumed)
		})
	}
}

func TestDecodeEmpty(t *testing.T) {
	t.Parallel()
	ev, consumed, err := Decode(nil)
	require.NoError(t, err)
	assert.Zero(t, consumed)
	assert.Equal(t, metricsipc.Event{}, ev)
}

func TestEncodeTooLong(t *testing.T) {
	t.Parallel()
	input := map[string]metricsipc.Event{
		"name too long": metricsipc.NewCounterEvent(
			metricsipc.NewKey(strings.Repeat("x", math.MaxUint16+1)), 1),
		"label value too long": metricsipc.NewCounterEvent(
			metricsipc.NewKey("m", metricsipc.Label{Name: "a", Value: strings.Repeat("v", math.MaxUint16+1)}), 1),
		"payload too long": metricsipc.NewDescribeEvent(
			metricsipc.NewKey(strings.Repeat("n", math.MaxUint16)),
			strings.Repeat("u", math.MaxUint16),
			strings.Repeat("d", math.MaxUint16)),
	}
	for name, ev := range input {
		ev := ev
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := Encode(ev)
			require.ErrorIs(t, err, ErrTooLong)
		})
	}
}

func TestEncodeTooLongLeavesDstUntouched(t *testing.T) {
	t.Parallel()
	dst := []byte{1, 2, 3}
	out, err := Append(dst, metricsipc.NewCounterEvent(
		metricsipc.NewKey(strings.Repeat("x", math.MaxUint16+1)), 1))
	require.ErrorIs(t, err, ErrTooLong)
	assert.Equal(t, []byte{1, 2, 3}, out)
}

func TestEncodeUnknownType(t *testing.T) {
	t.Parallel()
	_, err := Encode(metricsipc.Event{Key: metricsipc.NewKey("m"), Type: metricsipc.EventType(9)})
	require.Error(t, err)

	_, err = Encode(metricsipc.Event{Key: metricsipc.NewKey("m"), Type: metricsipc.GaugeType, Op: metricsipc.GaugeOp(9)})
	require.Error(t, err)
}

func BenchmarkEncode(b *testing.B) {
	ev := metricsipc.NewCounterEvent(
		metricsipc.NewKey("requests_total", metricsipc.Label{Name: "method", Value: "GET"}), 1)
	var buf []byte
	var err error
	b.ReportAllocs()
	b.ResetTimer()
	for n := 0; n < b.N; n++ {
		buf, err = Append(buf[:0], ev)
		if err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDecode(b *testing.B) {
	buf, err := Encode(metricsipc.NewCounterEvent(
		metricsipc.NewKey("requests_total", metricsipc.Label{Name: "method", Value: "GET"}), 1))
	if err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for n := 0; n < b.N; n++ {
		if _, _, err := Decode(buf); err != nil {
			b.Fatal(err)
		}
	}
}
