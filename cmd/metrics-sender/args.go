package main

import (
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"

	metricsipc "github.com/butlerx/metrics-ipc-collector"
)

type commandOptions struct {
	Target        string `short:"a" long:"socket-path"             description:"Unix socket the collector listens on"    `
	MetricPrefix  string `short:"p" long:"metric-prefix"           default:"loadtest."      description:"Metric name prefix"                      `
	MetricSuffix  string `          long:"metric-suffix"           default:".%d"            description:"Metric suffix with cardinality marker"   `
	Rate          uint   `short:"r" long:"rate"                    default:"1000"           description:"Target events per second, 0 is unthrottled"`
	QueueCapacity int    `          long:"queue-capacity"          default:"1024"           description:"Bound of the outbound event queue"       `
	Workers       uint   `short:"w" long:"workers"                 default:"1"              description:"Number of parallel workers to use"       `
	Describe      bool   `short:"d" long:"describe"                                         description:"Send metadata for every series up front" `
	Verbose       bool   `short:"v" long:"verbose"                                          description:"Verbose logging"                         `
	Version       bool   `          long:"version"                                          description:"Print the version and exit"              `
	Counts        struct {
		Counter   uint64 ` short:"c" long:"counter-count"                                   description:"Number of counter events to send"        `
		Gauge     uint64 ` short:"g" long:"gauge-count"                                     description:"Number of gauge events to send"          `
		Histogram uint64 ` short:"t" long:"histogram-count"                                 description:"Number of histogram events to send"      `
	} `group:"Event count"`
	NameCard struct {
		Counter   uint `             long:"counter-cardinality"    default:"1"              description:"Cardinality of counter names"            `
		Gauge     uint `             long:"gauge-cardinality"      default:"1"              description:"Cardinality of gauge names"              `
		Histogram uint `             long:"histogram-cardinality"  default:"1"              description:"Cardinality of histogram names"          `
	} `group:"Name cardinality"`
	LabelCard struct {
		Counter   []uint `           long:"counter-label-cardinality"                       description:"Cardinality of counter labels"           `
		Gauge     []uint `           long:"gauge-label-cardinality"                         description:"Cardinality of gauge labels"             `
		Histogram []uint `           long:"histogram-label-cardinality"                     description:"Cardinality of histogram labels"         `
	} `group:"Label cardinality"`
	ValueRange struct {
		Counter   uint `             long:"counter-value-limit"    default:"0"              description:"Maximum counter delta minus one"         `
		Gauge     uint `             long:"gauge-value-limit"      default:"1"              description:"Maximum value of gauges"                 `
		Histogram uint `             long:"histogram-value-limit"  default:"1"              description:"Maximum value of histogram observations" `
	} `group:"Value range"`
}

func parseArgs(args []string) commandOptions {
	var opts commandOptions
	parser := flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash)
	parser.LongDescription = "" + // because gofmt
		"When specifying cardinality, the label cardinality can be specified multiple times,\n" +
		"and each label will be named labelN with values 0..M-1.  The maximum total cardinality\n" +
		"will be:\n\n" +
		"|name| * |label1| * |label2| * ... * |labelN|\n\n" +
		"Care should be taken to not cause a combinatorial explosion."

	positional, err := parser.ParseArgs(args)
	if err != nil {
		if !isHelp(err) {
			parser.WriteHelp(os.Stderr)
			_, _ = fmt.Fprintf(os.Stderr, "\n\nerror parsing command line: %v\n", err)
			os.Exit(1)
		}
		parser.WriteHelp(os.Stdout)
		os.Exit(0)
	}

	if len(positional) != 0 {
		// Near as I can tell there's no way to say no positional arguments allowed.
		parser.WriteHelp(os.Stderr)
		_, _ = fmt.Fprintf(os.Stderr, "\n\nno positional arguments allowed\n")
		os.Exit(1)
	}

	if opts.Version {
		fmt.Printf("Version: %s - Commit: %s - Date: %s\n", Version, GitCommit, BuildDate)
		os.Exit(0)
	}

	if opts.Target == "" {
		opts.Target = metricsipc.DefaultSocketPath
	}

	if opts.Workers == 0 {
		parser.WriteHelp(os.Stderr)
		_, _ = fmt.Fprintf(os.Stderr, "\n\nworkers must be non-zero\n")
		os.Exit(1)
	}

	if opts.Counts.Counter+opts.Counts.Gauge+opts.Counts.Histogram == 0 {
		parser.WriteHelp(os.Stderr)
		_, _ = fmt.Fprintf(os.Stderr, "\n\nAt least one of counter-count, gauge-count, or histogram-count must be non-zero\n")
		os.Exit(1)
	}
	return opts
}

// isHelp is a helper to test the error from ParseArgs() to
// determine if the help message was written. It is safe to
// call without first checking that error is nil.
func isHelp(err error) bool {
	// This was copied from https://github.com/jessevdk/go-flags/blame/master/help.go#L499, as there has not been an
	// official release yet with this code. Renamed from WriteHelp to isHelp, as flags.ErrHelp is still returned when
	// flags.HelpFlag is set, flags.PrintError is clear, and -h/--help is passed on the command line, even though the
	// help is not displayed in such a situation.
	if err == nil { // No error
		return false
	}

	flagError, ok := err.(*flags.Error)
	if !ok { // Not a go-flag error
		return false
	}

	if flagError.Type != flags.ErrHelp { // Did not print the help message
		return false
	}

	return true
}
