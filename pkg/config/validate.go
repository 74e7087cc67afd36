// pkg/config/validate.go
package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrConfigInvalid is returned (wrapped) whenever a configuration is
// rejected. No vehicle is ever constructed from an invalid configuration.
var ErrConfigInvalid = errors.New("config invalid")

// Layouts are the accepted drivetrain layouts.
var Layouts = []string{"rwd", "fwd", "awd"}

// DifferentialKinds are the accepted axle differential kinds.
var DifferentialKinds = []string{"open", "lsd", "locked"}

// FieldError describes one rejected field.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

type validator struct {
	errs []error
}

func (v *validator) fail(field, format string, args ...any) {
	v.errs = append(v.errs, &FieldError{Field: field, Reason: fmt.Sprintf(format, args...)})
}

func (v *validator) positive(field string, x float64) {
	if !(x > 0) || math.IsInf(x, 0) {
		v.fail(field, "must be positive, got %v", x)
	}
}

func (v *validator) nonNegative(field string, x float64) {
	if !(x >= 0) || math.IsInf(x, 0) {
		v.fail(field, "must not be negative, got %v", x)
	}
}

func (v *validator) within(field string, x, lo, hi float64) {
	if !(x >= lo && x <= hi) {
		v.fail(field, "must be within [%v, %v], got %v", lo, hi, x)
	}
}

func (v *validator) oneOf(field, value string, allowed []string) {
	value = strings.ToLower(strings.TrimSpace(value))
	for _, a := range allowed {
		if a == value {
			return
		}
	}
	v.fail(field, "must be one of %v, got %q", allowed, value)
}

func (v *validator) err() error {
	if len(v.errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrConfigInvalid, errors.Join(v.errs...))
}

// Validate checks the whole configuration.
func (c *Config) Validate() error {
	v := &validator{}
	c.Vehicle.validate(v)
	c.Sim.validate(v)
	return v.err()
}

// Validate checks the scheduler settings.
func (s SimConfig) Validate() error {
	v := &validator{}
	s.validate(v)
	return v.err()
}

func (s SimConfig) validate(v *validator) {
	v.positive("sim.timestep", s.Timestep)
	if s.MaxSubsteps < 1 {
		v.fail("sim.maxSubsteps", "must be at least 1, got %d", s.MaxSubsteps)
	}
	v.positive("sim.accumulatorCap", s.AccumulatorCap)
	if s.HaltAfter < 1 {
		v.fail("sim.haltAfter", "must be at least 1, got %d", s.HaltAfter)
	}
}

// Validate checks the vehicle parameters.
func (c VehicleConfig) Validate() error {
	v := &validator{}
	c.validate(v)
	return v.err()
}

func (c VehicleConfig) validate(v *validator) {
	v.positive("vehicle.mass", c.Mass)
	v.positive("vehicle.inertia.ixx", c.Inertia.Ixx)
	v.positive("vehicle.inertia.iyy", c.Inertia.Iyy)
	v.positive("vehicle.inertia.izz", c.Inertia.Izz)
	v.positive("vehicle.wheelbase", c.Wheelbase)
	v.positive("vehicle.trackWidth", c.TrackWidth)
	v.positive("vehicle.cgHeight", c.CGHeight)
	v.within("vehicle.weightDistribution", c.WeightDistribution, 0.05, 0.95)
	v.nonNegative("vehicle.frontalArea", c.FrontalArea)
	v.nonNegative("vehicle.dragCoefficient", c.DragCoefficient)
	v.within("vehicle.downforceDistribution", c.DownforceDistribution, 0, 1)
	v.within("vehicle.damping.linear", c.Damping.Linear, 0, 0.99)
	v.within("vehicle.damping.angular", c.Damping.Angular, 0, 0.99)
	v.nonNegative("vehicle.sleep.velocity", c.Sleep.Velocity)
	v.nonNegative("vehicle.sleep.time", c.Sleep.Time)
	v.positive("vehicle.environment.gravity", c.Environment.Gravity)

	c.Aero.validate(v)
	c.Engine.validate(v)
	c.Drivetrain.validate(v)
	c.Brakes.validate(v)
	c.Steering.validate(v)
	for i, corner := range c.Suspension.Corners() {
		corner.validate(v, fmt.Sprintf("vehicle.suspension.%s", cornerKeys[i]))
	}
	c.Tire.validate(v)
	c.Collision.validate(v)
}

var cornerKeys = [4]string{"fl", "fr", "rl", "rr"}

func (a AeroConfig) validate(v *validator) {
	v.positive("vehicle.aero.airDensity", a.AirDensity)
	v.nonNegative("vehicle.aero.sideArea", a.SideArea)
	v.positive("vehicle.aero.groundEffectHeight", a.GroundEffectHeight)
	v.positive("vehicle.aero.groundEffectMultiplier", a.GroundEffectMultiplier)
	v.nonNegative("vehicle.aero.groundEffectMinHeight", a.GroundEffectMinHeight)
	if a.GroundEffectMinHeight >= 2*a.GroundEffectHeight {
		v.fail("vehicle.aero.groundEffectMinHeight", "must be below twice groundEffectHeight")
	}
	v.nonNegative("vehicle.aero.wind.speed", a.Wind.Speed)
	v.within("vehicle.aero.temperature", a.Temperature, -60, 60)
}

func (e EngineConfig) validate(v *validator) {
	v.positive("vehicle.engine.maxTorque", e.MaxTorque)
	v.positive("vehicle.engine.inertia", e.Inertia)
	v.nonNegative("vehicle.engine.friction", e.Friction)
	v.positive("vehicle.engine.idleRPM", e.IdleRPM)
	if !(e.Redline > e.IdleRPM) {
		v.fail("vehicle.engine.redline", "must exceed idleRPM")
	}
	if !(e.RevLimiter >= e.Redline) {
		v.fail("vehicle.engine.revLimiter", "must not be below redline")
	}
	if !(e.StallRPM >= 0 && e.StallRPM < e.IdleRPM) {
		v.fail("vehicle.engine.stallRPM", "must be within [0, idleRPM)")
	}
	if e.OverheatTemperature <= e.ThermostatTemperature {
		v.fail("vehicle.engine.overheatTemperature", "must exceed thermostatTemperature")
	}
	v.positive("vehicle.engine.coolingRate", e.CoolingRate)
	v.nonNegative("vehicle.engine.turbo.boost", e.Turbo.Boost)
	if e.Turbo.Boost > 0 {
		v.positive("vehicle.engine.turbo.spoolRate", e.Turbo.SpoolRate)
		v.nonNegative("vehicle.engine.turbo.lag", e.Turbo.Lag)
	}

	if len(e.TorqueCurve) == 0 {
		if !(e.MaxTorqueRPM > e.IdleRPM && e.MaxTorqueRPM < e.RevLimiter) {
			v.fail("vehicle.engine.maxTorqueRPM", "must be within (idleRPM, revLimiter) without a torqueCurve")
		}
		return
	}
	if len(e.TorqueCurve) < 2 {
		v.fail("vehicle.engine.torqueCurve", "needs at least two points")
		return
	}
	var peakRPM, peak float64
	for i, p := range e.TorqueCurve {
		field := fmt.Sprintf("vehicle.engine.torqueCurve[%d]", i)
		v.within(field+".multiplier", p.Multiplier, 0, 1)
		if i > 0 && !(p.RPM > e.TorqueCurve[i-1].RPM) {
			v.fail(field+".rpm", "must be strictly increasing")
		}
		if p.Multiplier > peak {
			peakRPM, peak = p.RPM, p.Multiplier
		}
	}
	if e.MaxTorqueRPM > 0 && e.MaxTorqueRPM != peakRPM {
		v.fail("vehicle.engine.maxTorqueRPM", "must match the torque curve peak at %v", peakRPM)
	}
}

func (t DrivetrainConfig) validate(v *validator) {
	if len(t.Ratios) < 3 {
		v.fail("vehicle.drivetrain.ratios", "needs reverse, neutral, and at least one forward ratio")
	} else {
		if t.Ratios[1] != 0 {
			v.fail("vehicle.drivetrain.ratios[1]", "neutral slot must be zero")
		}
		if t.Ratios[0] == 0 {
			v.fail("vehicle.drivetrain.ratios[0]", "reverse ratio must not be zero")
		}
		for i := 2; i < len(t.Ratios); i++ {
			if !(t.Ratios[i] > 0) {
				v.fail(fmt.Sprintf("vehicle.drivetrain.ratios[%d]", i), "forward ratio must be positive")
			}
		}
	}
	v.positive("vehicle.drivetrain.finalDrive", t.FinalDrive)
	v.within("vehicle.drivetrain.efficiency", t.Efficiency, 0.01, 1)
	v.positive("vehicle.drivetrain.shiftTimeSeconds", t.ShiftTimeSeconds)
	t.Differential.validate(v)
	v.positive("vehicle.drivetrain.clutchMaxTorque", t.ClutchMaxTorque)
	v.positive("vehicle.drivetrain.clutchSlipSpeed", t.ClutchSlipSpeed)
	v.positive("vehicle.drivetrain.launchRPM", t.LaunchRPM)
	v.oneOf("vehicle.drivetrain.layout", t.Layout, Layouts)
	if strings.EqualFold(strings.TrimSpace(t.Layout), "awd") {
		v.within("vehicle.drivetrain.frontBias", t.FrontBias, 0.01, 0.99)
	}
	if t.Automatic && !(t.UpshiftRPM > t.DownshiftRPM) {
		v.fail("vehicle.drivetrain.upshiftRPM", "must exceed downshiftRPM")
	}
}

func (d DifferentialConfig) validate(v *validator) {
	v.oneOf("vehicle.drivetrain.differential.kind", d.Kind, DifferentialKinds)
	v.nonNegative("vehicle.drivetrain.differential.preload", d.Preload)
	v.within("vehicle.drivetrain.differential.accelLock", d.AccelLock, 0, 1)
	v.within("vehicle.drivetrain.differential.decelLock", d.DecelLock, 0, 1)
	v.nonNegative("vehicle.drivetrain.differential.lockStiffness", d.LockStiffness)
}

func (b BrakeConfig) validate(v *validator) {
	v.positive("vehicle.brakes.maxForce", b.MaxForce)
	v.within("vehicle.brakes.bias", b.Bias, 0.3, 0.8)
	v.positive("vehicle.brakes.padFriction", b.PadFriction)
	v.positive("vehicle.brakes.discRadius", b.DiscRadius)
	v.nonNegative("vehicle.brakes.handbrakeFactor", b.HandbrakeFactor)
	if b.ABSEnabled {
		v.positive("vehicle.brakes.absFrequencyHz", b.ABSFrequencyHz)
		if !(b.ABSRelease > 0 && b.ABSRelease < b.ABSThreshold) {
			v.fail("vehicle.brakes.absRelease", "must be positive and below absThreshold")
		}
	}
	if !(b.FadeFull > b.FadeStart) {
		v.fail("vehicle.brakes.fadeFull", "must exceed fadeStart")
	}
	v.nonNegative("vehicle.brakes.heatGeneration", b.HeatGeneration)
	v.nonNegative("vehicle.brakes.heatDissipation", b.HeatDissipation)
	v.nonNegative("vehicle.brakes.wearRate", b.WearRate)
}

func (s SteeringConfig) validate(v *validator) {
	if !(s.MaxAngle > 0 && s.MaxAngle < math.Pi/2) {
		v.fail("vehicle.steering.maxAngle", "must be within (0, pi/2), got %v", s.MaxAngle)
	}
	v.positive("vehicle.steering.ratio", s.Ratio)
	v.nonNegative("vehicle.steering.speedSensitiveFactor", s.SpeedSensitiveFactor)
	v.within("vehicle.steering.minFactor", s.MinFactor, 0.05, 1)
	v.within("vehicle.steering.ackermann", s.Ackermann, 0, 1)
	v.nonNegative("vehicle.steering.returnRate", s.ReturnRate)
	v.nonNegative("vehicle.steering.alignGain", s.AlignGain)
	v.nonNegative("vehicle.steering.smoothing", s.Smoothing)
	v.positive("vehicle.steering.rateLimit", s.RateLimit)
}

func (s SuspensionCorner) validate(v *validator, prefix string) {
	v.positive(prefix+".springRate", s.SpringRate)
	v.nonNegative(prefix+".compressionDamping", s.CompressionDamping)
	v.nonNegative(prefix+".reboundDamping", s.ReboundDamping)
	if !(s.MaxTravel > s.MinTravel) {
		v.fail(prefix+".maxTravel", "must exceed minTravel")
	}
	if !(s.RestPosition > 0 && s.RestPosition < 1) {
		v.fail(prefix+".restPosition", "must be within (0, 1), got %v", s.RestPosition)
	}
	v.nonNegative(prefix+".antiRollStiffness", s.AntiRollStiffness)
	v.within(prefix+".staticCamber", s.StaticCamber, -0.2, 0.2)
	v.within(prefix+".staticToe", s.StaticToe, -0.1, 0.1)
	v.within(prefix+".caster", s.Caster, -0.2, 0.35)
}

func (t TireConfig) validate(v *validator) {
	v.positive("vehicle.tire.radius", t.Radius)
	v.positive("vehicle.tire.width", t.Width)
	v.nonNegative("vehicle.tire.inertia", t.Inertia)
	v.nonNegative("vehicle.tire.mass", t.Mass)
	if !(t.WheelInertia() > 0) {
		v.fail("vehicle.tire.inertia", "must be positive, or derived from a positive mass")
	}
	for name, p := range map[string]Pacejka{"pacejkaLateral": t.PacejkaLateral, "pacejkaLongitudinal": t.PacejkaLongitudinal} {
		v.positive("vehicle.tire."+name+".b", p.B)
		v.positive("vehicle.tire."+name+".c", p.C)
		v.positive("vehicle.tire."+name+".d", p.D)
		v.within("vehicle.tire."+name+".e", p.E, -10, 1)
	}
	v.positive("vehicle.tire.slipAngleReference", t.SlipAngleReference)
	v.within("vehicle.tire.loadSensitivity", t.LoadSensitivity, -1, 1)
	v.positive("vehicle.tire.relaxationLong", t.RelaxationLong)
	v.positive("vehicle.tire.relaxationLat", t.RelaxationLat)
	v.positive("vehicle.tire.relaxationMinSpeed", t.RelaxationMinSpeed)
	v.positive("vehicle.tire.pressure", t.Pressure)
	v.positive("vehicle.tire.optimalPressure", t.OptimalPressure)
	v.positive("vehicle.tire.temperatureRange", t.TemperatureRange)
	v.positive("vehicle.tire.surfaceHeatCapacity", t.SurfaceHeatCapacity)
	v.positive("vehicle.tire.coreHeatCapacity", t.CoreHeatCapacity)
	v.nonNegative("vehicle.tire.wearRate", t.WearRate)
	v.nonNegative("vehicle.tire.punctureRate", t.PunctureRate)
}

func (c CollisionConfig) validate(v *validator) {
	v.within("vehicle.collision.restitution", c.Restitution, 0, 1)
	v.nonNegative("vehicle.collision.friction", c.Friction)
	v.within("vehicle.collision.positionCorrection", c.PositionCorrection, 0, 1)
	v.positive("vehicle.collision.proxyRadius", c.ProxyRadius)
	v.nonNegative("vehicle.collision.overhang", c.Overhang)
}
