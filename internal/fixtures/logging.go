package fixtures

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
)

type writer struct {
	tb testing.TB
}

var _ io.Writer = (*writer)(nil)

func (w writer) Write(p []byte) (int, error) {
	w.tb.Log(string(p))
	return len(p), nil
}

// NewTestLogger returns a logger routing everything through tb.Log, so log
// lines end up attached to the test that emitted them.
func NewTestLogger(tb testing.TB) logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(writer{tb: tb})
	return l
}
