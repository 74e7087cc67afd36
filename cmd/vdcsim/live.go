// cmd/vdcsim/live.go
package main

import (
	"context"
	"errors"
	"math"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/EngoEngine/ecs"

	"github.com/opd-ai/go-vdc/pkg/config"
	"github.com/opd-ai/go-vdc/pkg/health"
	"github.com/opd-ai/go-vdc/pkg/logging"
	"github.com/opd-ai/go-vdc/pkg/scenario"
	"github.com/opd-ai/go-vdc/pkg/sim"
	"github.com/opd-ai/go-vdc/pkg/telemetry"
	"github.com/opd-ai/go-vdc/pkg/vehicle"
)

const (
	frameRate    = 60
	memoryLimit  = 500
	staleStepper = 2 * time.Second
)

// runLive steps the scenario against the wall clock through an ECS world
// and serves probes and the latest frame while it runs.
func runLive(ctx context.Context, runner *scenario.Runner, s scenario.Scenario, opts options, logger *logging.Logger) (*output, error) {
	ctx = logging.WithScenario(ctx, s.Name)
	v, src, err := runner.Prepare(ctx, s, vehicle.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	h := runner.Config.Sim.Timestep
	if h <= 0 {
		h = config.DefaultSimConfig().Timestep
	}
	rec := telemetry.NewRecorder(int(math.Ceil(opts.live.Seconds()/h)) + 1)
	rec.Record(v.Frame())
	stepper, err := sim.NewStepper(v, src, runner.Config.Sim, sim.WithSink(rec), sim.WithLogger(ctx, logger))
	if err != nil {
		return nil, err
	}

	world := ecs.World{}
	system := &sim.VehicleSystem{}
	world.AddSystem(system)
	basic := ecs.NewBasic()
	system.Add(&basic, stepper)

	var steps atomic.Uint64
	checker := health.NewHealthChecker()
	checker.AddCheck(health.NewVehicleHealthCheck(rec.Last))
	checker.AddCheck(health.NewStepperHealthCheck(staleStepper, steps.Load))
	checker.AddCheck(health.NewMemoryHealthCheck(memoryLimit, func() int64 {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		return int64(m.Alloc / 1024 / 1024)
	}))

	mux := http.NewServeMux()
	mux.HandleFunc("/health", checker.LivenessHandler)
	mux.HandleFunc("/ready", checker.ReadinessHandler)
	mux.HandleFunc("/frame", health.FrameHandler(rec.Last))
	server := &http.Server{
		Addr:         ":" + opts.port,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info(ctx, "Starting health check server", "port", opts.port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "Health check server failed", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error(ctx, "Health check server shutdown failed", err)
		}
	}()

	ticker := time.NewTicker(time.Second / frameRate)
	defer ticker.Stop()
	deadline := time.NewTimer(opts.live)
	defer deadline.Stop()

	logger.Info(ctx, "Live run started", "duration", opts.live)
	last := time.Now()
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-deadline.C:
			break loop
		case now := <-ticker.C:
			world.Update(float32(now.Sub(last).Seconds()))
			last = now
			steps.Store(stepper.Stats().Steps)

			if err := system.Err(basic); err != nil {
				logger.Error(ctx, "Vehicle stopped", err)
				break loop
			}
			if f, ok := rec.Last(); ok && s.Until != nil && s.Until(f) {
				break loop
			}
		}
	}

	stats := stepper.Stats()
	logger.Info(ctx, "Live run finished",
		"steps", stats.Steps,
		"dropped", stats.Dropped,
		"degraded", stats.Degraded,
	)
	return &output{name: s.Name, frames: rec.Frames(), vehicle: v}, nil
}
