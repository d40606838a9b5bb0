// Package web serves the collector's debug and exposition endpoints:
// prometheus text format on /metrics, liveness on /healthcheck and a JSON
// snapshot of collector statistics on /status.
package web

import (
	"context"
	"expvar"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	metricsipc "github.com/butlerx/metrics-ipc-collector"
	"github.com/butlerx/metrics-ipc-collector/pkg/healthcheck"
)

// StatusFunc returns the snapshot rendered by /status.
type StatusFunc func() interface{}

type Server struct {
	logger  logrus.FieldLogger
	address string
	Router  *mux.Router // exported so tests can serve it without binding a port
}

type route struct {
	path    string
	handler http.HandlerFunc
	method  string
	name    string
}

var done = struct{}{}

// NewServerFromViper constructs a Server using configuration provided by
// viper.
func NewServerFromViper(
	v *viper.Viper,
	logger logrus.FieldLogger,
	gatherer prometheus.Gatherer,
	status StatusFunc,
	healthChecks []healthcheck.HealthcheckFunc,
) (*Server, error) {
	v.SetDefault(metricsipc.ParamWebAddr, metricsipc.DefaultWebAddr)
	v.SetDefault(metricsipc.ParamWebEnableExpvar, metricsipc.DefaultWebEnableExpvar)
	return NewServer(
		logger,
		gatherer,
		status,
		healthChecks,
		v.GetString(metricsipc.ParamWebAddr),
		v.GetBool(metricsipc.ParamWebEnableExpvar),
	)
}

// NewServer constructs a Server. gatherer and status may be nil, dropping
// their routes; /healthcheck is always served.
func NewServer(
	logger logrus.FieldLogger,
	gatherer prometheus.Gatherer,
	status StatusFunc,
	healthChecks []healthcheck.HealthcheckFunc,
	address string,
	enableExpvar bool,
) (*Server, error) {
	var routes []route

	server := &Server{
		logger:  logger,
		address: address,
	}

	if gatherer != nil {
		metrics := promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
			ErrorLog: logger,
		})
		routes = append(routes,
			route{path: "/metrics", handler: metrics.ServeHTTP, method: "GET", name: "metrics_get"},
		)
	}

	if status != nil {
		sh := &statusHandler{status: status}
		routes = append(routes,
			route{path: "/status", handler: sh.serveStatus, method: "GET", name: "status_get"},
		)
	}

	if enableExpvar {
		routes = append(routes,
			route{path: "/expvar", handler: expvar.Handler().ServeHTTP, method: "GET", name: "expvar_get"},
		)
	}

	hc := &healthChecker{logger: logger, healthChecks: healthChecks}
	routes = append(routes,
		route{path: "/healthcheck", handler: hc.healthCheck, method: "GET", name: "healthcheck_get"},
	)

	router, err := createRoutes(routes)
	if err != nil {
		return nil, err
	}
	router.NotFoundHandler = server.logRequest(http.HandlerFunc(server.notFound))
	router.Use(server.logRequest)
	server.Router = router

	logger.WithFields(logrus.Fields{
		"address":        address,
		"enable-metrics": gatherer != nil,
		"enable-status":  status != nil,
		"enable-expvar":  enableExpvar,
	}).Info("Created server")

	return server, nil
}

func (s *Server) notFound(w http.ResponseWriter, req *http.Request) {
	w.WriteHeader(404)
	_, _ = w.Write([]byte("not found"))
}

func createRoutes(routes []route) (*mux.Router, error) {
	router := mux.NewRouter()

	for _, route := range routes {
		r := router.HandleFunc(route.path, route.handler).Methods(route.method).Name(route.name)
		if err := r.GetError(); err != nil {
			return nil, fmt.Errorf("error creating route %s: %v", route.name, err)
		}
	}

	return router, nil
}

func (s *Server) logRequest(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		logFields := logrus.Fields{
			"srcip": strings.Split(req.RemoteAddr, ":")[0],
			"path":  req.URL.Path,
		}
		if route := mux.CurrentRoute(req); route != nil {
			logFields["route"] = route.GetName()
		} else {
			logFields["method"] = req.Method
		}
		if source := req.Header.Get("X-Forwarded-For"); source != "" {
			logFields["forwarded_for"] = source
		}

		start := time.Now()
		handler.ServeHTTP(w, req)
		dur := time.Since(start)

		logFields["duration"] = float64(dur) / float64(time.Millisecond)
		s.logger.WithFields(logFields).Debug("request")
	})
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) {
	server := &http.Server{
		Addr:    s.address,
		Handler: s.Router,
	}

	chStopped := make(chan struct{}, 1)
	go s.waitAndStop(ctx, server, chStopped)

	s.logger.WithField("address", server.Addr).Info("listening")

	err := server.ListenAndServe()
	if err != http.ErrServerClosed {
		s.logger.WithError(err).Error("web server failed")
		return
	}

	// Wait for graceful shutdown of existing connections

	select {
	case <-chStopped:
		// happy
	case <-time.After(6 * time.Second):
		s.logger.Info("timeout waiting for webserver to stop")
	}
}

// waitAndStop gracefully shuts down the Server when the Context passed is
// cancelled. It signals on chStopped when it is done. There is no guarantee
// that it will actually signal, if the server does not shut down.
func (s *Server) waitAndStop(ctx context.Context, server *http.Server, chStopped chan<- struct{}) {
	<-ctx.Done()

	s.logger.Info("shutting down web server")
	timeoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(timeoutCtx); err != nil {
		s.logger.WithError(err).Warn("failed to stop web server")
	}
	chStopped <- done
}
