// cmd/vdcsim/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opd-ai/go-vdc/pkg/config"
	"github.com/opd-ai/go-vdc/pkg/event"
	"github.com/opd-ai/go-vdc/pkg/logging"
	"github.com/opd-ai/go-vdc/pkg/scenario"
)

type options struct {
	scenario string
	out      string
	store    bool
	influx   bool
	live     time.Duration
	port     string
}

func main() {
	logger := logging.NewLogger()
	ctx := context.Background()

	configPath := flag.String("config", "", "Path to configuration file")
	createDefault := flag.Bool("default", false, "Write the default configuration to -config and exit")
	list := flag.Bool("list", false, "List the built-in scenarios and exit")

	var opts options
	flag.StringVar(&opts.scenario, "scenario", "acceleration", "Scenario to run")
	flag.StringVar(&opts.out, "out", "", "Directory for the CSV log and charts")
	flag.BoolVar(&opts.store, "store", false, "Save the run and its final snapshot to storage.dsn")
	flag.BoolVar(&opts.influx, "influx", false, "Write the run to storage.influxURL (token from VDC_INFLUX_TOKEN)")
	flag.DurationVar(&opts.live, "live", 0, "Run in real time for this long, serving health and telemetry")
	flag.StringVar(&opts.port, "port", "8080", "Port of the live-mode HTTP server")
	flag.Parse()

	if *list {
		for _, name := range scenario.Names() {
			s, _ := scenario.Lookup(name)
			fmt.Printf("%-14s %s\n", name, s.Description)
		}
		return
	}

	if *createDefault {
		path := *configPath
		if path == "" {
			path = "vdc.json"
		}
		if err := config.Save(config.DefaultConfig(), path); err != nil {
			logger.Error(ctx, "Failed to create default configuration", err, "config_path", path)
			os.Exit(1)
		}
		logger.Info(ctx, "Created default configuration file", "config_path", path)
		return
	}

	path := *configPath
	if path != "" {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			logger.Info(ctx, "Configuration file not found, using default configuration", "config_path", path)
			path = ""
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		logger.Error(ctx, "Failed to load configuration", err, "config_path", path)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logging.WithRunID(ctx, "")

	if err := run(ctx, cfg, opts, logger); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info(ctx, "Interrupted")
			return
		}
		logger.Error(ctx, "Run failed", err, "scenario", opts.scenario)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, opts options, logger *logging.Logger) error {
	s, err := scenario.Lookup(opts.scenario)
	if err != nil {
		return err
	}
	runner := &scenario.Runner{Config: *cfg, Logger: logger}

	var out *output
	if opts.live > 0 {
		out, err = runLive(ctx, runner, s, opts, logger)
	} else {
		var res *scenario.Result
		res, err = runner.Run(ctx, s)
		if err == nil {
			out = &output{name: s.Name, frames: res.Frames, vehicle: res.Vehicle}
			logger.Info(ctx, "Run complete",
				"frames", len(res.Frames),
				"distance", res.Distance(),
				"gear_changes", res.Events[event.GearChanged],
			)
		}
	}
	if err != nil {
		return err
	}
	// An interrupted live run is still written out.
	return out.export(context.WithoutCancel(ctx), cfg, opts, logger)
}
