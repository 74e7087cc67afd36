// pkg/vehicle/vehicle.go

// Package vehicle assembles the subsystems of one car into a single
// aggregate that advances in fixed steps. Every per-corner array is in
// FL, FR, RL, RR order.
package vehicle

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/opd-ai/go-vdc/pkg/aero"
	"github.com/opd-ai/go-vdc/pkg/brakes"
	"github.com/opd-ai/go-vdc/pkg/config"
	"github.com/opd-ai/go-vdc/pkg/event"
	"github.com/opd-ai/go-vdc/pkg/input"
	"github.com/opd-ai/go-vdc/pkg/logging"
	"github.com/opd-ai/go-vdc/pkg/physics"
	"github.com/opd-ai/go-vdc/pkg/powertrain"
	"github.com/opd-ai/go-vdc/pkg/steering"
	"github.com/opd-ai/go-vdc/pkg/suspension"
	"github.com/opd-ai/go-vdc/pkg/telemetry"
	"github.com/opd-ai/go-vdc/pkg/tire"
	"github.com/opd-ai/go-vdc/pkg/world"
)

// ErrHalted is returned by Step once repeated numerical failures have
// stopped the vehicle. Only Reset or Restore clear it.
var ErrHalted = errors.New("vehicle halted after repeated numerical failures")

const (
	defaultHaltAfter = 8
	pcgStream        = 0x9e3779b97f4a7c15
)

// Status is the bookkeeping part of the vehicle state.
type Status struct {
	Tick     uint64  `json:"tick"`
	Time     float64 `json:"time"`
	Degraded bool    `json:"degraded"`
	Halted   bool    `json:"halted"`
	Failures int     `json:"failures"`
}

// Spawn is where Reset puts the vehicle. Heading is in radians about the
// world vertical, zero facing +X.
type Spawn struct {
	X       float64 `json:"x"`
	Z       float64 `json:"z"`
	Heading float64 `json:"heading"`
}

// Feedback holds the values one step leaves for the next.
type Feedback struct {
	Slip         [4]float64 `json:"slip"`
	Align        float64    `json:"align"`
	ABS          bool       `json:"abs"`
	Acceleration mgl64.Vec3 `json:"acceleration"`
}

// Option configures a Vehicle at construction.
type Option func(*Vehicle)

// WithEventBus publishes one-shot diagnostics on bus.
func WithEventBus(bus *event.Bus) Option {
	return func(v *Vehicle) {
		v.bus = bus
	}
}

// WithLogger logs one-shot diagnostics through logger.
func WithLogger(logger *logging.Logger) Option {
	return func(v *Vehicle) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// WithContext sets the context carried into log records, usually one
// holding a run ID.
func WithContext(ctx context.Context) Option {
	return func(v *Vehicle) {
		if ctx != nil {
			v.ctx = ctx
		}
	}
}

// WithSim applies the RNG seed and halt threshold of a scheduler
// configuration.
func WithSim(cfg config.SimConfig) Option {
	return func(v *Vehicle) {
		v.seed = cfg.Seed
		if cfg.HaltAfter > 0 {
			v.haltAfter = cfg.HaltAfter
		}
	}
}

// Vehicle is the simulated car. It is not safe for concurrent use.
type Vehicle struct {
	cfg       config.VehicleConfig
	probe     world.Probe
	bus       *event.Bus
	logger    *logging.Logger
	ctx       context.Context
	seed      uint64
	haltAfter int

	pcg   *rand.PCG
	rng   *rand.Rand
	guard *guard
	good  Snapshot
	frame telemetry.Frame

	mounts  [4]mgl64.Vec3
	proxies []mgl64.Vec3
	axleX   [2]float64

	Body       *physics.RigidBody
	Input      *input.Conditioner
	Steering   *steering.Steering
	Engine     *powertrain.Engine
	Drivetrain *powertrain.Drivetrain
	Brakes     *brakes.Brakes
	Suspension *suspension.Suspension
	Tires      [4]*tire.Tire
	Aero       *aero.Aero

	Status
	spawn    Spawn
	feedback Feedback
}

// New builds a vehicle from a configuration and places it at the origin.
// A nil probe means flat dry asphalt.
func New(cfg config.VehicleConfig, probe world.Probe, opts ...Option) (*Vehicle, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("vehicle %q: %w", cfg.Name, err)
	}
	if probe == nil {
		probe = world.NewFlatGround(world.Asphalt)
	}

	v := &Vehicle{
		cfg:       cfg,
		probe:     probe,
		logger:    logging.Discard(),
		ctx:       context.Background(),
		seed:      1,
		haltAfter: defaultHaltAfter,
	}
	for _, opt := range opts {
		opt(v)
	}

	v.pcg = rand.NewPCG(v.seed, pcgStream)
	v.rng = rand.New(v.pcg)
	v.guard = newGuard(v.ctx, v.haltAfter, v.logger)

	env := cfg.Environment
	v.Body = physics.NewRigidBody(cfg.Mass, mgl64.Vec3{cfg.Inertia.Ixx, cfg.Inertia.Iyy, cfg.Inertia.Izz})
	v.Body.LinearDamping = cfg.Damping.Linear
	v.Body.AngularDamping = cfg.Damping.Angular
	v.Body.SleepEnergy = 0.5 * cfg.Mass * cfg.Sleep.Velocity * cfg.Sleep.Velocity
	v.Body.SleepTime = cfg.Sleep.Time

	v.Input = input.NewConditioner(cfg.Steering.Smoothing)
	v.Steering = steering.New(cfg.Steering, cfg.Wheelbase, cfg.TrackWidth)
	v.Engine = powertrain.NewEngine(cfg.Engine, env.AmbientTemperature)
	v.Drivetrain = powertrain.NewDrivetrain(cfg.Drivetrain, v.Engine)
	v.Brakes = brakes.New(cfg.Brakes, env.AmbientTemperature)
	v.Suspension = suspension.New(cfg, v.rng.NormFloat64)
	v.Aero = aero.New(cfg)

	static := v.Suspension.Loads()
	for i := range v.Tires {
		v.Tires[i] = tire.New(cfg.Tire, static[i], suspension.Side(i), env.AmbientTemperature, env.Gravity, v.rng.Float64)
	}

	v.mounts = v.Suspension.Mounts()
	v.axleX = [2]float64{v.mounts[suspension.FL].X(), v.mounts[suspension.RL].X()}
	r := cfg.Collision.ProxyRadius
	z := math.Max(0, cfg.TrackWidth/2-r)
	front := v.axleX[0] + cfg.Collision.Overhang - r
	rear := v.axleX[1] - cfg.Collision.Overhang + r
	v.proxies = []mgl64.Vec3{{front, 0, -z}, {front, 0, z}, {rear, 0, -z}, {rear, 0, z}}

	v.Reset()
	return v, nil
}

// Config returns the configuration the vehicle was built from.
func (v *Vehicle) Config() config.VehicleConfig {
	return v.cfg
}

// Probe returns the world the vehicle drives on.
func (v *Vehicle) Probe() world.Probe {
	return v.probe
}

// Reset returns every subsystem to its initial state and puts the body at
// the spawn point at rest in neutral. The random stream restarts from the
// seed and any degradation is cleared.
func (v *Vehicle) Reset() {
	v.pcg.Seed(v.seed, pcgStream)
	v.Input.Reset()
	v.Steering.Reset()
	v.Engine.Reset()
	v.Drivetrain.Reset()
	v.Brakes.Reset()
	v.Suspension.Reset()
	v.Aero.Reset()
	for _, t := range v.Tires {
		t.Reset()
	}
	v.feedback = Feedback{}
	v.Degraded, v.Halted, v.Failures = false, false, 0
	v.guard.replay(0)
	v.placeBody()
	v.commit()
}

// Place moves the spawn point and puts the body there at rest.
func (v *Vehicle) Place(x, z, heading float64) {
	v.spawn = Spawn{X: x, Z: z, Heading: heading}
	v.placeBody()
	for _, t := range v.Tires {
		t.AngularVelocity = 0
	}
	v.commit()
}

func (v *Vehicle) placeBody() {
	b := v.Body
	ground := 0.0
	if g, ok := v.probe.GroundAt(v.spawn.X, v.spawn.Z); ok {
		ground = g.Height
	}
	b.Position = mgl64.Vec3{v.spawn.X, ground + v.cfg.CGHeight, v.spawn.Z}
	b.Orientation = mgl64.QuatRotate(v.spawn.Heading, physics.WorldUp)
	b.Velocity = mgl64.Vec3{}
	b.AngularVelocity = mgl64.Vec3{}
	b.ClearAccumulators()
	b.Wake()
}

// Cruise sets the vehicle rolling straight ahead at speed with gear
// engaged and the clutch locked, as if it had been driving for a while.
// Gear 0 leaves the wheels free.
func (v *Vehicle) Cruise(speed float64, gear int) {
	b := v.Body
	b.Velocity = b.RotateToWorld(physics.BodyForward).Mul(speed)
	b.AngularVelocity = mgl64.Vec3{}
	b.Wake()

	w := speed / v.cfg.Tire.Radius
	for _, t := range v.Tires {
		t.AngularVelocity = w
	}

	gb := v.Drivetrain.Gearbox
	gb.Set(gear)
	ratio := v.Drivetrain.TotalRatio()
	v.Drivetrain.ClutchLocked = ratio != 0
	v.Drivetrain.Clutch = 1
	v.Engine.Running = true
	if ratio != 0 {
		v.Engine.RPM = math.Max(v.cfg.Engine.IdleRPM, w*ratio*powertrain.RadPerSecToRPM)
	}
	v.commit()
}

// SetABS switches ABS on or off.
func (v *Vehicle) SetABS(on bool) {
	v.Brakes.SetABS(on)
	v.good.Brakes = v.Brakes.State
}

// Speed returns the signed speed along the body's forward axis.
func (v *Vehicle) Speed() float64 {
	return v.Body.Velocity.Dot(v.Body.RotateToWorld(physics.BodyForward))
}

// TopSpeed estimates the flat-road top speed in still air as the lower of
// the power-limited and gearing-limited speeds.
func (v *Vehicle) TopSpeed() float64 {
	power, _ := v.Engine.PeakPower()
	power *= v.cfg.Drivetrain.Efficiency
	crr := world.Asphalt.RollingResistance()
	drag := v.Aero.TopSpeed(power, v.cfg.Mass, v.cfg.Environment.Gravity, crr)
	return math.Min(drag, v.Drivetrain.GearTopSpeed(v.cfg.Tire.Radius))
}

// commit records the current state as the last good one and refreshes the
// telemetry frame.
func (v *Vehicle) commit() {
	v.good = v.Snapshot()
	v.frame = v.buildFrame()
}
