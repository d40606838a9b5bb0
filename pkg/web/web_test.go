package web_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	metricsipc "github.com/butlerx/metrics-ipc-collector"
	"github.com/butlerx/metrics-ipc-collector/internal/fixtures"
	"github.com/butlerx/metrics-ipc-collector/pkg/healthcheck"
	"github.com/butlerx/metrics-ipc-collector/pkg/sinks/promexporter"
	"github.com/butlerx/metrics-ipc-collector/pkg/web"
)

const waitFor = 5 * time.Second

type statusSnapshot struct {
	EventsReceived uint64
}

func get(t *testing.T, server *httptest.Server, path string) (*http.Response, string) {
	t.Helper()
	resp, err := server.Client().Get(server.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestServerRoutes(t *testing.T) {
	t.Parallel()
	sink, err := promexporter.NewSink("", fixtures.NewTestLogger(t))
	require.NoError(t, err)
	sink.RecordCounter(metricsipc.NewKey("frames_total"), 3)

	healthy := func() (string, healthcheck.HealthyStatus) {
		return "accepting", healthcheck.Healthy
	}
	s, err := web.NewServer(
		fixtures.NewTestLogger(t),
		sink.Registry(),
		func() interface{} { return statusSnapshot{EventsReceived: 42} },
		[]healthcheck.HealthcheckFunc{healthy},
		"127.0.0.1:0",
		true,
	)
	require.NoError(t, err)

	srv := httptest.NewServer(s.Router)
	defer srv.Close()

	resp, body := get(t, srv, "/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "frames_total 3")

	resp, body = get(t, srv, "/status")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("content-type"))
	var st statusSnapshot
	require.NoError(t, jsoniter.UnmarshalFromString(body, &st))
	assert.EqualValues(t, 42, st.EventsReceived)

	resp, body = get(t, srv, "/healthcheck")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"ok":["accepting"],"failed":[]}`, body)

	resp, _ = get(t, srv, "/expvar")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = get(t, srv, "/nope")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not found", body)
}

func TestServerDropsDisabledRoutes(t *testing.T) {
	t.Parallel()
	s, err := web.NewServer(fixtures.NewTestLogger(t), nil, nil, nil, "127.0.0.1:0", false)
	require.NoError(t, err)

	srv := httptest.NewServer(s.Router)
	defer srv.Close()

	for _, path := range []string{"/metrics", "/status", "/expvar"} {
		resp, _ := get(t, srv, path)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
	}
	resp, body := get(t, srv, "/healthcheck")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"ok":[],"failed":[]}`, body)
}

func TestServerHealthcheckFailure(t *testing.T) {
	t.Parallel()
	bad := func() (string, healthcheck.HealthyStatus) {
		return "socket gone", healthcheck.Unhealthy
	}
	s, err := web.NewServer(fixtures.NewTestLogger(t), nil, nil, []healthcheck.HealthcheckFunc{bad}, "127.0.0.1:0", false)
	require.NoError(t, err)

	srv := httptest.NewServer(s.Router)
	defer srv.Close()

	resp, body := get(t, srv, "/healthcheck")
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.JSONEq(t, `{"ok":[],"failed":["socket gone"]}`, body)
}

func TestServerMethodNotAllowed(t *testing.T) {
	t.Parallel()
	s, err := web.NewServer(fixtures.NewTestLogger(t), nil, nil, nil, "127.0.0.1:0", false)
	require.NoError(t, err)

	srv := httptest.NewServer(s.Router)
	defer srv.Close()

	resp, err := srv.Client().Post(srv.URL+"/healthcheck", "text/plain", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestServerShutsdown(t *testing.T) {
	t.Parallel()
	s, err := web.NewServer(
		fixtures.NewTestLogger(t),
		nil,
		nil,
		nil,
		"127.0.0.1:0", // should pick a random port to bind to
		false,
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	chDone := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(chDone)
	}()

	cancel()
	select {
	case <-chDone:
	case <-time.After(waitFor):
		t.Fatal("web server did not stop")
	}
}
