// pkg/tire/tire.go
package tire

import (
	"math"

	"github.com/opd-ai/go-vdc/pkg/config"
	"github.com/opd-ai/go-vdc/pkg/physics"
	"github.com/opd-ai/go-vdc/pkg/world"
	"github.com/samber/lo"
)

const (
	minLoad         = 10
	lowSpeed        = 3
	rollingRamp     = 0.5
	driftTorque     = 1
	spinDrag        = 0.999
	convectionGain  = 0.05
	maxSurfaceTemp  = 200
	maxCoreTemp     = 180
	wearSlip        = 1e-4
	wearHeat        = 1e-5
	wearLoad        = 1e-6
	wearHeatMargin  = 20
	punctureWear    = 0.95
	flatGrip        = 0.5
	flatRolling     = 5
	barToPascal     = 1e5
	minContactPress = 0.2
)

// Wheel is the mutable state of one tire and its wheel.
type Wheel struct {
	AngularVelocity    float64       `json:"angularVelocity"`
	SlipRatio          float64       `json:"slipRatio"`
	SlipAngle          float64       `json:"slipAngle"`
	FilteredSlipRatio  float64       `json:"filteredSlipRatio"`
	FilteredSlipAngle  float64       `json:"filteredSlipAngle"`
	Fx                 float64       `json:"fx"`
	Fy                 float64       `json:"fy"`
	Mz                 float64       `json:"mz"`
	RollingForce       float64       `json:"rollingForce"`
	Load               float64       `json:"load"`
	SurfaceTemperature float64       `json:"surfaceTemperature"`
	CoreTemperature    float64       `json:"coreTemperature"`
	Wear               float64       `json:"wear"`
	Pressure           float64       `json:"pressure"`
	Grip               float64       `json:"grip"`
	ContactArea        float64       `json:"contactArea"`
	ContactLength      float64       `json:"contactLength"`
	Punctured          bool          `json:"punctured"`
	OnGround           bool          `json:"onGround"`
	Surface            world.Surface `json:"surface"`
}

// Contact is what a tire reads each step. Forward and Lateral are the
// contact patch velocity along the wheel heading and to its right.
type Contact struct {
	Load         float64
	Forward      float64
	Lateral      float64
	Surface      world.Surface
	Wetness      float64
	Camber       float64
	DriveTorque  float64
	BrakeTorque  float64
	ExtraInertia float64
	Grounded     bool
}

// Forces are the tire outputs in the wheel frame. RollingForce acts on the
// body only.
type Forces struct {
	Fx           float64
	Fy           float64
	Mz           float64
	RollingForce float64
}

// Tire is one corner's tire and wheel.
type Tire struct {
	cfg     config.TireConfig
	nominal float64
	side    float64
	ambient float64
	gravity float64
	uniform func() float64

	Wheel
}

// New builds a tire. nominal is the static corner load, side is -1 on the
// left and +1 on the right, and uniform draws from [0, 1) for punctures.
func New(cfg config.TireConfig, nominal, side, ambient, gravity float64, uniform func() float64) *Tire {
	t := &Tire{
		cfg:     cfg,
		nominal: nominal,
		side:    side,
		ambient: ambient,
		gravity: gravity,
		uniform: uniform,
	}
	t.Reset()
	return t
}

// Reset fits a fresh tire at its start temperature.
func (t *Tire) Reset() {
	temp := math.Max(t.cfg.StartTemperature, t.ambient)
	t.Wheel = Wheel{
		SurfaceTemperature: temp,
		CoreTemperature:    temp,
		Pressure:           Pressure(t.cfg.Pressure, temp),
		Grip:               1,
	}
}

// Radius returns the rolling radius.
func (t *Tire) Radius() float64 {
	return t.cfg.Radius
}

// Inertia returns the wheel spin inertia.
func (t *Tire) Inertia() float64 {
	return t.cfg.WheelInertia()
}

// GripMultiplier combines surface, temperature, pressure and wear.
func (t *Tire) GripMultiplier(surface world.Surface, wetness float64) float64 {
	g := surface.Grip(wetness) *
		TemperatureMultiplier(t.SurfaceTemperature, t.cfg.OptimalTemperature, t.cfg.TemperatureRange) *
		PressureMultiplier(t.Pressure, t.cfg.OptimalPressure) *
		WearMultiplier(t.Wear)
	if t.Punctured {
		g *= flatGrip
	}
	return g
}

// Update computes the contact forces, spins the wheel, and advances the
// thermal and wear state by dt.
func (t *Tire) Update(c Contact, dt float64) Forces {
	r := t.cfg.Radius
	vx, vy := c.Forward, c.Lateral
	speed := math.Hypot(vx, vy)
	inertia := t.cfg.WheelInertia() + c.ExtraInertia

	t.Surface = c.Surface
	t.Load = math.Max(0, c.Load)
	t.OnGround = c.Grounded && t.Load > minLoad

	t.SlipRatio = SlipRatio(t.AngularVelocity*r, vx)
	t.SlipAngle = physics.WrapAngle(-math.Atan2(vy, vx))
	alpha := -math.Atan2(vy, math.Abs(vx))
	t.FilteredSlipRatio = relax(t.FilteredSlipRatio, t.SlipRatio, speed, t.cfg.RelaxationLong, t.cfg.RelaxationMinSpeed, dt)
	t.FilteredSlipAngle = relax(t.FilteredSlipAngle, alpha, speed, t.cfg.RelaxationLat, t.cfg.RelaxationMinSpeed, dt)
	t.Grip = t.GripMultiplier(c.Surface, c.Wetness)

	var f Forces
	if t.OnGround {
		f = t.forces(c, vx, vy, speed, inertia, dt)
	}
	t.Fx, t.Fy, t.Mz, t.RollingForce = f.Fx, f.Fy, f.Mz, f.RollingForce
	t.ContactArea, t.ContactLength = 0, 0
	if t.OnGround {
		t.ContactArea = t.Load / (math.Max(t.Pressure, minContactPress) * barToPascal)
		if t.cfg.Width > 0 {
			t.ContactLength = t.ContactArea / t.cfg.Width
		}
	}

	t.spin(c.DriveTorque, c.BrakeTorque, f.Fx, inertia, dt)
	t.thermal(f, speed, dt)
	return f
}

func (t *Tire) forces(c Contact, vx, vy, speed, inertia, dt float64) Forces {
	cfg := t.cfg
	n := t.Load
	g := t.Grip
	ls := LoadSensitivity(n, t.nominal, cfg.LoadSensitivity)
	kappa := t.FilteredSlipRatio
	alpha := t.FilteredSlipAngle

	fx, fy := CombinedSlip(kappa, alpha, cfg.SlipAngleReference, cfg.PacejkaLongitudinal, cfg.PacejkaLateral, g)
	fx *= n * ls
	fy *= n * ls
	fy += c.Camber * t.side * cfg.CamberStiffness * n * ls * g

	// A tire cannot push harder than it takes to stop its own slip in one step.
	if t.gravity > 0 {
		capY := n / t.gravity * math.Abs(vy) / dt
		fy = lo.Clamp(fy, -capY, capY)
	}
	slipSpeed := t.AngularVelocity*t.cfg.Radius - vx
	if t.gravity > 0 && n > 0 && inertia > 0 {
		mEff := 1 / (t.gravity/n + cfg.Radius*cfg.Radius/inertia)
		capX := mEff * math.Abs(slipSpeed) / dt
		fx = lo.Clamp(fx, -capX, capX)
	}
	if speed < lowSpeed {
		if fx*slipSpeed < 0 {
			fx = 0
		}
		if fy*vy > 0 {
			fy = 0
		}
	}

	rolling := -physics.Sign(vx) * c.Surface.RollingResistance() * n * lo.Clamp(math.Abs(vx)/rollingRamp, 0, 1)
	if t.Punctured {
		rolling *= flatRolling
	}

	mz := -fy * cfg.PneumaticTrail * math.Max(0, math.Cos(2*alpha))
	return Forces{Fx: fx, Fy: fy, Mz: mz, RollingForce: rolling}
}

// spin integrates wheel speed. Brake torque only ever slows the wheel
// toward rest.
func (t *Tire) spin(drive, brake, fx, inertia, dt float64) {
	if inertia <= 0 {
		return
	}
	w := t.AngularVelocity + (drive-fx*t.cfg.Radius)/inertia*dt
	if brake > 0 {
		dw := brake / inertia * dt
		if math.Abs(w) <= dw {
			w = 0
		} else {
			w -= physics.Sign(w) * dw
		}
	}
	if math.Abs(drive) < driftTorque && brake < driftTorque {
		w *= spinDrag
	}
	t.AngularVelocity = w
}

func (t *Tire) thermal(f Forces, speed, dt float64) {
	cfg := t.cfg
	heat := (math.Abs(f.Fx*t.FilteredSlipRatio) + math.Abs(f.Fy*t.FilteredSlipAngle)) * cfg.HeatEfficiency
	conduction := cfg.Conduction * (t.SurfaceTemperature - t.CoreTemperature)
	convection := cfg.Convection * (1 + convectionGain*speed) * (t.SurfaceTemperature - t.ambient)

	if cfg.SurfaceHeatCapacity > 0 {
		t.SurfaceTemperature += (heat - conduction - convection) / cfg.SurfaceHeatCapacity * dt
	}
	if cfg.CoreHeatCapacity > 0 {
		t.CoreTemperature += conduction / cfg.CoreHeatCapacity * dt
	}
	t.SurfaceTemperature = lo.Clamp(t.SurfaceTemperature, t.ambient, maxSurfaceTemp)
	t.CoreTemperature = lo.Clamp(t.CoreTemperature, t.ambient, maxCoreTemp)
	t.Pressure = Pressure(cfg.Pressure, t.CoreTemperature)

	sigma := math.Hypot(t.FilteredSlipRatio, t.FilteredSlipAngle/math.Max(cfg.SlipAngleReference, 1e-6))
	load := 0.0
	if t.nominal > 0 && t.OnGround {
		load = t.Load / t.nominal
	}
	if !t.OnGround {
		sigma = 0
	}
	overheat := math.Max(0, t.SurfaceTemperature-cfg.OptimalTemperature-wearHeatMargin)
	t.Wear = math.Min(1, t.Wear+dt*cfg.WearRate*(wearSlip*sigma+wearHeat*overheat+wearLoad*load))

	if !t.Punctured && t.Wear > punctureWear && t.uniform != nil && t.uniform() < cfg.PunctureRate*dt {
		t.Punctured = true
	}
}
