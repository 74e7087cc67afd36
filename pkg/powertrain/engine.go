// pkg/powertrain/engine.go
package powertrain

import (
	"math"

	"github.com/opd-ai/go-vdc/pkg/config"
	"github.com/samber/lo"
)

const (
	// RadPerSecToRPM converts crank angular velocity to RPM.
	RadPerSecToRPM = 60 / (2 * math.Pi)

	limiterCut      = 0.05
	limiterFactor   = 0.1
	governorGain    = 5
	idleThrottleMax = 0.3
	restartClutch   = 0.2
	restartThrottle = 0.05
	stallClutch     = 0.5
	thermostatBand  = 8.0
	minThermostat   = 0.02
	overheatBand    = 50.0
	rpmHeadroom     = 200
)

// EngineState is the mutable state of the engine.
type EngineState struct {
	RPM           float64 `json:"rpm"`
	Running       bool    `json:"running"`
	Temperature   float64 `json:"temperature"`
	Damage        float64 `json:"damage"`
	Boost         float64 `json:"boost"`
	LimiterActive bool    `json:"limiterActive"`
	LimiterTimer  float64 `json:"limiterTimer"`

	// Outputs of the last Produce call.
	Throttle       float64 `json:"throttle"`
	DriverThrottle float64 `json:"driverThrottle"`
	Torque         float64 `json:"torque"`
	Friction       float64 `json:"friction"`
}

// Engine is a torque-curve engine with thermal, turbo and rev limiter state.
type Engine struct {
	cfg     config.EngineConfig
	curve   TorqueCurve
	ambient float64

	EngineState
}

// NewEngine creates a running engine at idle.
func NewEngine(cfg config.EngineConfig, ambient float64) *Engine {
	e := &Engine{cfg: cfg, curve: TorqueCurve(cfg.Curve()), ambient: ambient}
	e.Reset()
	return e
}

// Reset returns the engine to a running idle at its start temperature.
func (e *Engine) Reset() {
	e.EngineState = EngineState{
		RPM:         e.cfg.IdleRPM,
		Running:     true,
		Temperature: e.cfg.StartTemperature,
	}
}

// Config returns the engine parameters.
func (e *Engine) Config() config.EngineConfig {
	return e.cfg
}

// AngularVelocity returns the crank speed in rad/s.
func (e *Engine) AngularVelocity() float64 {
	return e.RPM / RadPerSecToRPM
}

// Net returns output torque minus friction from the last Produce call.
func (e *Engine) Net() float64 {
	return e.Torque - e.Friction
}

// Power returns the output power in watts.
func (e *Engine) Power() float64 {
	return e.Torque * e.AngularVelocity()
}

// multiplier returns the product of boost, temperature and damage factors.
func (e *Engine) multiplier() float64 {
	m := 1 + e.Boost*e.cfg.Turbo.Boost*0.3
	if e.Temperature > e.cfg.OverheatTemperature {
		m *= 1 - lo.Clamp((e.Temperature-e.cfg.OverheatTemperature)/overheatBand, 0, 0.5)
	}
	return m * (1 - 0.4*e.Damage)
}

// Produce computes output and friction torque for this step from the
// throttle and the clutch engagement, and advances the rev limiter, turbo
// and temperature. RPM is not changed; see Integrate and Sync.
func (e *Engine) Produce(throttle, clutch, dt float64) {
	throttle = lo.Clamp(throttle, 0, 1)
	e.DriverThrottle = throttle

	if !e.Running && clutch < restartClutch && throttle > restartThrottle {
		e.Running = true
		e.RPM = e.cfg.IdleRPM
	}

	e.Friction = e.cfg.Friction * e.cfg.MaxTorque * (1 + e.RPM/e.cfg.Redline)
	if e.RPM <= 0 {
		e.Friction = 0
	}

	if !e.Running {
		e.Throttle = 0
		e.Torque = 0
		e.spool(0, dt)
		e.heat(0, dt)
		return
	}

	base := e.curve.Sample(e.RPM)
	mult := e.multiplier()

	u := throttle
	if throttle < 0.1 && base > 0 && mult > 0 {
		idle := e.Friction/(base*e.cfg.MaxTorque*mult) + 2*(e.cfg.IdleRPM-e.RPM)/e.cfg.IdleRPM
		u = math.Max(u, lo.Clamp(idle, 0, idleThrottleMax))
	}
	e.Throttle = u

	torque := u * base * e.cfg.MaxTorque * mult

	if e.RPM >= e.cfg.RevLimiter && !e.LimiterActive {
		e.LimiterActive = true
		e.LimiterTimer = limiterCut
	}
	if e.LimiterActive {
		torque *= limiterFactor
		e.LimiterTimer -= dt
		if e.LimiterTimer <= 0 {
			e.LimiterActive = false
			e.LimiterTimer = 0
		}
	}
	e.Torque = torque

	e.spool(u, dt)
	e.heat(u, dt)
}

func (e *Engine) spool(u, dt float64) {
	if e.cfg.Turbo.Boost <= 0 {
		e.Boost = 0
		return
	}
	target := u * lo.Clamp((e.RPM-2000)/4000, 0, 1)
	rate := e.cfg.Turbo.SpoolRate / (1 + e.cfg.Turbo.Lag)
	if target < e.Boost {
		rate *= 2
	}
	e.Boost += (target - e.Boost) * math.Min(1, rate*dt)
}

func (e *Engine) heat(u, dt float64) {
	var gen float64
	if e.Running {
		load := e.RPM / e.cfg.Redline
		gen = e.cfg.HeatRate*u*load + e.cfg.IdleHeatRate*load
	}
	opening := lo.Clamp((e.Temperature-e.cfg.ThermostatTemperature)/thermostatBand, minThermostat, 1)
	cooling := e.cfg.CoolingRate * (e.Temperature - e.ambient) * (1 - 0.5*e.Damage) * opening

	e.Temperature += (gen - cooling) * dt
	if e.Temperature > e.cfg.OverheatTemperature {
		e.Damage = math.Min(1, e.Damage+e.cfg.DamageRate*(e.Temperature-e.cfg.OverheatTemperature)*dt)
	}
}

// Integrate advances a decoupled or slipping crank by dt against a load
// torque. It reports whether the engine stalled.
func (e *Engine) Integrate(load, clutch, dt float64) bool {
	net := e.Net() - load
	rpm := e.RPM + net/e.cfg.Inertia*dt*RadPerSecToRPM
	if e.Running && rpm < e.cfg.IdleRPM && e.DriverThrottle < 0.1 {
		rpm += governorGain * (e.cfg.IdleRPM - rpm) * dt
	}
	return e.settle(rpm, clutch)
}

// Sync sets the crank speed from the driven wheels while the clutch is
// locked. It reports whether the engine stalled.
func (e *Engine) Sync(rpm, clutch float64) bool {
	return e.settle(rpm, clutch)
}

func (e *Engine) settle(rpm, clutch float64) bool {
	e.RPM = lo.Clamp(rpm, 0, e.cfg.RevLimiter+rpmHeadroom)
	if !e.Running {
		return false
	}
	if e.RPM < e.cfg.StallRPM && clutch > stallClutch {
		e.Running = false
		e.RPM = 0
		return true
	}
	return false
}

// PeakPower returns the highest full-throttle power in watts and the RPM
// at which it occurs, assuming full boost and a healthy engine.
func (e *Engine) PeakPower() (power, rpm float64) {
	for r := e.cfg.IdleRPM; r <= e.cfg.Redline; r += 10 {
		boost := lo.Clamp((r-2000)/4000, 0, 1)
		torque := e.curve.Sample(r) * e.cfg.MaxTorque * (1 + boost*e.cfg.Turbo.Boost*0.3)
		friction := e.cfg.Friction * e.cfg.MaxTorque * (1 + r/e.cfg.Redline)
		if p := (torque - friction) * r / RadPerSecToRPM; p > power {
			power, rpm = p, r
		}
	}
	return power, rpm
}
