package wire

import (
	"io"

	metricsipc "github.com/butlerx/metrics-ipc-collector"
)

const readChunkSize = 4096

// Reader decodes a stream of frames from an io.Reader. It is not safe for
// concurrent use.
type Reader struct {
	r       io.Reader
	buf     []byte
	scratch []byte
}

// NewReader returns a Reader decoding frames from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{
		r:       r,
		scratch: make([]byte, readChunkSize),
	}
}

// Next returns the next event in the stream. It returns io.EOF at a clean
// end of the stream, io.ErrUnexpectedEOF when the stream ends in the middle
// of a frame, and an error wrapping ErrCorrupt on data that can never
// decode. After a non-nil error the Reader is spent.
func (r *Reader) Next() (metricsipc.Event, error) {
	for {
		ev, consumed, err := Decode(r.buf)
		if err != nil {
			return metricsipc.Event{}, err
		}
		if consumed > 0 {
			n := copy(r.buf, r.buf[consumed:])
			r.buf = r.buf[:n]
			return ev, nil
		}

		n, err := r.r.Read(r.scratch)
		if n > 0 {
			r.buf = append(r.buf, r.scratch[:n]...)
			continue
		}
		if err == nil {
			// A read of zero bytes with no error is allowed; try again.
			continue
		}
		if err == io.EOF {
			if len(r.buf) == 0 {
				return metricsipc.Event{}, io.EOF
			}
			return metricsipc.Event{}, io.ErrUnexpectedEOF
		}
		return metricsipc.Event{}, err
	}
}
