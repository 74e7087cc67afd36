// pkg/sim/stepper.go

// Package sim drives vehicles in fixed steps from a variable wall clock.
package sim

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/opd-ai/go-vdc/pkg/config"
	"github.com/opd-ai/go-vdc/pkg/input"
	"github.com/opd-ai/go-vdc/pkg/logging"
	"github.com/opd-ai/go-vdc/pkg/telemetry"
	"github.com/opd-ai/go-vdc/pkg/vehicle"
)

// ErrNoSource is returned by NewStepper when no input source is given.
var ErrNoSource = errors.New("no input source")

// Stats counts the work a stepper has done.
type Stats struct {
	Frames   uint64
	Steps    uint64
	Dropped  uint64
	Degraded uint64
}

// Stepper owns the wall-clock accumulator of one vehicle.
type Stepper struct {
	Vehicle *vehicle.Vehicle
	Source  input.Source
	Sink    telemetry.Sink

	cfg         config.SimConfig
	accumulator float64
	stats       Stats
	ctx         context.Context
	logger      *logging.Logger
	metrics     *instruments
	attrs       metric.MeasurementOption
}

// Option configures a Stepper.
type Option func(*Stepper)

// WithSink records every completed step in sink.
func WithSink(sink telemetry.Sink) Option {
	return func(s *Stepper) {
		s.Sink = sink
	}
}

// WithLogger sets the logger and the context its records carry.
func WithLogger(ctx context.Context, logger *logging.Logger) Option {
	return func(s *Stepper) {
		if ctx != nil {
			s.ctx = ctx
		}
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStepper binds a vehicle to its input source. Zero timing fields of cfg
// take the defaults.
func NewStepper(v *vehicle.Vehicle, src input.Source, cfg config.SimConfig, opts ...Option) (*Stepper, error) {
	if src == nil {
		return nil, ErrNoSource
	}
	def := config.DefaultSimConfig()
	if cfg.Timestep <= 0 {
		cfg.Timestep = def.Timestep
	}
	if cfg.MaxSubsteps <= 0 {
		cfg.MaxSubsteps = def.MaxSubsteps
	}
	if cfg.AccumulatorCap <= 0 {
		cfg.AccumulatorCap = def.AccumulatorCap
	}

	in, err := newInstruments()
	if err != nil {
		return nil, fmt.Errorf("sim metrics: %w", err)
	}
	s := &Stepper{
		Vehicle: v,
		Source:  src,
		cfg:     cfg,
		ctx:     context.Background(),
		logger:  logging.Discard(),
		metrics: in,
		attrs:   metric.WithAttributes(attribute.String("vehicle", v.Config().Name)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Advance adds wallDelta seconds to the accumulator and runs as many fixed
// steps as it holds, up to the substep cap. It returns the number of steps
// run. Backlog beyond the cap stays in the accumulator, which never exceeds
// its configured bound. Non-finite or negative deltas add nothing.
func (s *Stepper) Advance(wallDelta float64) (int, error) {
	if wallDelta > 0 && !math.IsInf(wallDelta, 1) {
		s.accumulator = math.Min(s.accumulator+wallDelta, s.cfg.AccumulatorCap)
	}
	s.stats.Frames++

	h := s.cfg.Timestep
	n := 0
	for s.accumulator >= h && n < s.cfg.MaxSubsteps {
		if err := s.step(); err != nil {
			s.metrics.substeps.Record(s.ctx, int64(n), s.attrs)
			return n, err
		}
		s.accumulator -= h
		n++
	}
	if n == s.cfg.MaxSubsteps && s.accumulator >= h {
		dropped := uint64(s.accumulator / h)
		s.stats.Dropped += dropped
		s.metrics.dropped.Add(s.ctx, int64(dropped), s.attrs)
	}
	s.metrics.substeps.Record(s.ctx, int64(n), s.attrs)
	return n, nil
}

// Run executes n fixed steps without the wall clock.
func (s *Stepper) Run(n int) error {
	for i := 0; i < n; i++ {
		if err := s.step(); err != nil {
			return err
		}
	}
	return nil
}

func (s *Stepper) step() error {
	if err := s.Vehicle.Step(s.Source.Next(), s.cfg.Timestep); err != nil {
		if errors.Is(err, vehicle.ErrHalted) {
			s.logger.Error(s.ctx, "Vehicle halted", err, "tick", s.Vehicle.Tick)
		}
		return err
	}
	s.stats.Steps++
	s.metrics.steps.Add(s.ctx, 1, s.attrs)

	f := s.Vehicle.Frame()
	if f.Degraded {
		s.stats.Degraded++
		s.metrics.degraded.Add(s.ctx, 1, s.attrs)
	}
	if s.Sink != nil {
		s.Sink.Record(f)
	}
	return nil
}

// Alpha is the fraction of a step left in the accumulator, for
// interpolating between the last two states.
func (s *Stepper) Alpha() float64 {
	return s.accumulator / s.cfg.Timestep
}

// Accumulator returns the unsimulated wall time.
func (s *Stepper) Accumulator() float64 {
	return s.accumulator
}

// Frame returns the latest telemetry frame with the interpolation factor set.
func (s *Stepper) Frame() telemetry.Frame {
	f := s.Vehicle.Frame()
	f.Alpha = s.Alpha()
	return f
}

// Stats returns the work counters.
func (s *Stepper) Stats() Stats {
	return s.stats
}

// Config returns the effective timing configuration.
func (s *Stepper) Config() config.SimConfig {
	return s.cfg
}
