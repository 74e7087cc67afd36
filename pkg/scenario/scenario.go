// pkg/scenario/scenario.go

// Package scenario scripts reproducible driving runs: a starting trim, a
// driver and a surface, run for a fixed time on flat ground.
package scenario

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/opd-ai/go-vdc/pkg/config"
	"github.com/opd-ai/go-vdc/pkg/event"
	"github.com/opd-ai/go-vdc/pkg/input"
	"github.com/opd-ai/go-vdc/pkg/logging"
	"github.com/opd-ai/go-vdc/pkg/sim"
	"github.com/opd-ai/go-vdc/pkg/telemetry"
	"github.com/opd-ai/go-vdc/pkg/vehicle"
	"github.com/opd-ai/go-vdc/pkg/world"
)

// Scenario describes one scripted run.
type Scenario struct {
	Name        string
	Description string
	Surface     world.Surface
	Duration    float64

	// Setup trims the vehicle before the first step.
	Setup func(v *vehicle.Vehicle)
	// Driver builds the input source. It may read the vehicle each step.
	Driver func(v *vehicle.Vehicle, dt float64) input.Source
	// Until ends the run early once it returns true.
	Until func(f telemetry.Frame) bool
}

// Result is the outcome of a run.
type Result struct {
	Scenario string
	RunID    string
	Frames   []telemetry.Frame
	Vehicle  *vehicle.Vehicle
	Stats    sim.Stats
	Events   map[event.Type]int
}

// Final returns the last frame.
func (r *Result) Final() telemetry.Frame {
	if len(r.Frames) == 0 {
		return telemetry.Frame{}
	}
	return r.Frames[len(r.Frames)-1]
}

// At returns the first frame at or after time t, or the last frame.
func (r *Result) At(t float64) telemetry.Frame {
	i := sort.Search(len(r.Frames), func(i int) bool { return r.Frames[i].Time >= t-1e-9 })
	if i == len(r.Frames) {
		return r.Final()
	}
	return r.Frames[i]
}

// Distance returns the ground path length travelled.
func (r *Result) Distance() float64 {
	var d float64
	for i := 1; i < len(r.Frames); i++ {
		a, b := r.Frames[i-1].Position, r.Frames[i].Position
		d += math.Hypot(b[0]-a[0], b[2]-a[2])
	}
	return d
}

// Series returns one channel over the run.
func (r *Result) Series(name string) ([]float64, error) {
	out := make([]float64, len(r.Frames))
	for i := range r.Frames {
		v, ok := r.Frames[i].Value(name)
		if !ok {
			return nil, fmt.Errorf("unknown channel %q", name)
		}
		out[i] = v
	}
	return out, nil
}

// Runner runs scenarios with a shared configuration.
type Runner struct {
	Config config.Config
	Logger *logging.Logger
}

// Prepare builds the trimmed vehicle and its driver for s without running
// it.
func (r *Runner) Prepare(ctx context.Context, s Scenario, opts ...vehicle.Option) (*vehicle.Vehicle, input.Source, error) {
	opts = append([]vehicle.Option{vehicle.WithSim(r.Config.Sim), vehicle.WithContext(ctx)}, opts...)
	v, err := vehicle.New(r.Config.Vehicle, world.NewFlatGround(s.Surface), opts...)
	if err != nil {
		return nil, nil, logging.WrapError(err, "scenario %s", s.Name)
	}
	if s.Setup != nil {
		s.Setup(v)
	}
	src := Constant(input.RawInput{})
	if s.Driver != nil {
		src = s.Driver(v, r.timestep())
	}
	return v, src, nil
}

func (r *Runner) timestep() float64 {
	if r.Config.Sim.Timestep > 0 {
		return r.Config.Sim.Timestep
	}
	return config.DefaultSimConfig().Timestep
}

// Run executes s from the origin and records every step.
func (r *Runner) Run(ctx context.Context, s Scenario) (*Result, error) {
	logger := r.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	runID := logging.GetRunID(ctx)
	if runID == "" {
		ctx = logging.WithRunID(ctx, "")
		runID = logging.GetRunID(ctx)
	}
	ctx = logging.WithScenario(ctx, s.Name)

	bus := event.NewEventBus()
	counts := map[event.Type]int{}
	for _, t := range event.VehicleTypes {
		t := t
		bus.Subscribe(t, func(event.Event) { counts[t]++ })
	}

	v, src, err := r.Prepare(ctx, s, vehicle.WithEventBus(bus), vehicle.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	dt := r.timestep()
	steps := int(math.Round(s.Duration / dt))
	rec := telemetry.NewRecorder(steps + 1)
	rec.Record(v.Frame())
	stepper, err := sim.NewStepper(v, src, r.Config.Sim, sim.WithSink(rec), sim.WithLogger(ctx, logger))
	if err != nil {
		return nil, logging.WrapError(err, "scenario %s", s.Name)
	}

	logger.Info(ctx, "Scenario started", "steps", steps, "surface", s.Surface.String())
	for i := 0; i < steps; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := stepper.Run(1); err != nil {
			return nil, logging.WrapError(err, "scenario %s", s.Name)
		}
		if s.Until != nil && s.Until(v.Frame()) {
			break
		}
	}
	final := v.Frame()
	logger.Info(ctx, "Scenario finished", "time", final.Time, "speed", final.Speed, "gear", final.Gear)

	return &Result{
		Scenario: s.Name,
		RunID:    runID,
		Frames:   rec.Frames(),
		Vehicle:  v,
		Stats:    stepper.Stats(),
		Events:   counts,
	}, nil
}
