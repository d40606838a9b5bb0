package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"github.com/ash2k/stager/wait"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	metricsipc "github.com/butlerx/metrics-ipc-collector"
	"github.com/butlerx/metrics-ipc-collector/pkg/collector"
	"github.com/butlerx/metrics-ipc-collector/pkg/healthcheck"
	"github.com/butlerx/metrics-ipc-collector/pkg/sinks"
	"github.com/butlerx/metrics-ipc-collector/pkg/sinks/promexporter"
	"github.com/butlerx/metrics-ipc-collector/pkg/util"
	"github.com/butlerx/metrics-ipc-collector/pkg/web"
)

var (
	// BuildDate is the date when the binary was built.
	BuildDate string
	// GitCommit is the commit hash when the binary was built.
	GitCommit string
	// Version is the version of the binary.
	Version string
)

const (
	// ParamVerbose enables verbose logging.
	ParamVerbose = "verbose"
	// ParamProfile enables profiler endpoint on the specified address and port.
	ParamProfile = "profile"
	// ParamJSON makes logger log in JSON format.
	ParamJSON = "json"
	// ParamConfigPath provides file with configuration.
	ParamConfigPath = "config-path"
	// ParamVersion makes program output its version.
	ParamVersion = "version"
)

func main() {
	v, version, err := setupConfiguration()
	if err != nil {
		if err == pflag.ErrHelp {
			return
		}
		logrus.Fatalf("Error while parsing configuration: %v", err)
	}
	if version {
		fmt.Printf("Version: %s - Commit: %s - Date: %s\n", Version, GitCommit, BuildDate)
		return
	}
	if err := run(v); err != nil {
		logrus.Fatalf("%v", err)
	}
}

func run(v *viper.Viper) error {
	logrus.Info("Starting collector")
	col, srv, err := constructDaemon(v)
	if err != nil {
		return err
	}

	profileAddr := v.GetString(ParamProfile)
	if profileAddr != "" {
		go func() {
			logrus.Errorf("Profiler server failed: %v", http.ListenAndServe(profileAddr, nil))
		}()
	}

	ctx, cancelFunc := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancelFunc()

	if err := col.Start(); err != nil {
		return fmt.Errorf("collector error: %v", err)
	}

	var wg wait.Group
	wg.StartWithContext(ctx, srv.Run)
	<-ctx.Done()

	logrus.Info("Shutting down")
	col.Stop()
	wg.Wait()
	return nil
}

func constructDaemon(v *viper.Viper) (*collector.Collector, *web.Server, error) {
	logger := logrus.StandardLogger()

	sink, err := sinks.InitSink(v.GetString(metricsipc.ParamSink), v, logger)
	if err != nil {
		return nil, nil, err
	}
	// /metrics is only served when the sink actually gathers something.
	var gatherer prometheus.Gatherer
	if promSink, ok := sink.(*promexporter.Sink); ok {
		gatherer = promSink.Registry()
	}
	if sink == nil {
		sink = metricsipc.NopSink{}
	}

	col, err := collector.NewCollectorFromViper(v, logger, sink)
	if err != nil {
		return nil, nil, err
	}

	healthChecks := healthcheck.MaybeAppendHealthChecks(nil, col)

	srv, err := web.NewServerFromViper(
		v,
		logger,
		gatherer,
		func() interface{} { return col.Stats() },
		healthChecks,
	)
	if err != nil {
		return nil, nil, err
	}

	return col, srv, nil
}

func setupConfiguration() (*viper.Viper, bool, error) {
	v := viper.New()
	defer setupLogger(v) // Apply logging configuration in case of early exit
	util.InitViper(v, "")

	var version bool

	cmd := pflag.NewFlagSet(os.Args[0], pflag.ContinueOnError)

	cmd.BoolVar(&version, ParamVersion, false, "Print the version and exit")
	cmd.Bool(ParamVerbose, false, "Verbose")
	cmd.Bool(ParamJSON, false, "Log in JSON format")
	cmd.String(ParamProfile, "", "Enable profiler endpoint on the specified address and port")
	cmd.String(ParamConfigPath, "", "Path to the configuration file")

	metricsipc.AddFlags(cmd)

	cmd.VisitAll(func(flag *pflag.Flag) {
		if err := v.BindPFlag(flag.Name, flag); err != nil {
			panic(err) // Should never happen
		}
	})

	if err := cmd.Parse(os.Args[1:]); err != nil {
		return nil, false, err
	}

	configPath := v.GetString(ParamConfigPath)
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, false, err
		}
	}

	return v, version, nil
}

func setupLogger(v *viper.Viper) {
	if v.GetBool(ParamVerbose) {
		logrus.SetLevel(logrus.DebugLevel)
	}
	if v.GetBool(ParamJSON) {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
}
