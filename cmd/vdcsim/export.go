// cmd/vdcsim/export.go
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/opd-ai/go-vdc/pkg/config"
	"github.com/opd-ai/go-vdc/pkg/logging"
	"github.com/opd-ai/go-vdc/pkg/store"
	"github.com/opd-ai/go-vdc/pkg/telemetry"
	"github.com/opd-ai/go-vdc/pkg/vehicle"
)

// output is one finished run waiting to be written out.
type output struct {
	name    string
	frames  []telemetry.Frame
	vehicle *vehicle.Vehicle
}

func (o *output) export(ctx context.Context, cfg *config.Config, opts options, logger *logging.Logger) error {
	var errs []error
	if opts.out != "" {
		err := o.writeFiles(opts.out)
		if err == nil {
			logger.Info(ctx, "Wrote telemetry files", "dir", opts.out, "charts", len(telemetry.DefaultCharts))
		}
		errs = append(errs, err)
	}
	if opts.store {
		errs = append(errs, o.save(ctx, cfg.Storage.DSN, cfg.Vehicle.Name, logger))
	}
	if opts.influx {
		errs = append(errs, o.sendInflux(ctx, cfg.Storage))
	}
	return errors.Join(errs...)
}

func (o *output) writeFiles(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create directory: %w", err)
	}
	f, err := os.Create(filepath.Join(dir, o.name+".csv"))
	if err != nil {
		return fmt.Errorf("cannot create csv: %w", err)
	}
	w := bufio.NewWriter(f)
	if err := telemetry.WriteCSV(w, o.frames); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	for file, chart := range telemetry.DefaultCharts {
		if err := telemetry.RenderChart(filepath.Join(dir, o.name, file), chart, o.frames); err != nil {
			return logging.WrapError(err, "chart %s", file)
		}
	}
	return nil
}

func (o *output) save(ctx context.Context, dsn, vehicleName string, logger *logging.Logger) error {
	st, err := store.Open(dsn)
	if err != nil {
		return err
	}
	defer st.Close()

	runID := logging.GetRunID(ctx)
	if _, err := st.SaveRun(ctx, runID, o.name, vehicleName, o.frames); err != nil {
		return err
	}
	snapID, err := st.SaveSnapshot(ctx, runID, vehicleName, "final", o.vehicle.Snapshot())
	if err != nil {
		return err
	}
	logger.Info(ctx, "Saved run", "dsn", dsn, "snapshot", snapID, "frames", len(o.frames))
	return nil
}

func (o *output) sendInflux(ctx context.Context, cfg config.StorageConfig) error {
	if cfg.InfluxURL == "" {
		return errors.New("storage.influxURL is not set")
	}
	exporter := telemetry.NewInfluxExporter(cfg.InfluxURL, os.Getenv("VDC_INFLUX_TOKEN"),
		cfg.InfluxOrg, cfg.InfluxBucket, logging.GetRunID(ctx), time.Now())
	defer exporter.Close()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return exporter.Write(ctx, o.frames)
}
