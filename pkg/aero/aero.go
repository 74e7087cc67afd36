// pkg/aero/aero.go
package aero

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/opd-ai/go-vdc/pkg/config"
	"github.com/opd-ai/go-vdc/pkg/physics"
	"github.com/samber/lo"
)

const (
	scaleHeight   = 8500
	seaLevelTemp  = 288.15
	kelvin        = 273.15
	sideslipDrag  = 0.3
	bisectSteps   = 100
	maxTopSpeed   = 200
	minSolveSpeed = 1e-6
)

// Frame is the body orientation in world coordinates.
type Frame struct {
	Forward mgl64.Vec3
	Right   mgl64.Vec3
}

// State is the last computed set of aerodynamic loads.
type State struct {
	Density        float64    `json:"density"`
	Sideslip       float64    `json:"sideslip"`
	GroundEffect   float64    `json:"groundEffect"`
	Drag           mgl64.Vec3 `json:"drag"`
	DragMagnitude  float64    `json:"dragMagnitude"`
	DownforceFront float64    `json:"downforceFront"`
	DownforceRear  float64    `json:"downforceRear"`
	SideForce      float64    `json:"sideForce"`
	YawMoment      float64    `json:"yawMoment"`
}

// Aero computes drag, downforce, side force and yaw moment.
type Aero struct {
	cfg       config.AeroConfig
	drag      float64
	lift      float64
	area      float64
	split     float64
	wheelbase float64
	wind      mgl64.Vec3

	State
}

// New builds the aero model of a vehicle.
func New(v config.VehicleConfig) *Aero {
	a := &Aero{
		cfg:       v.Aero,
		drag:      v.DragCoefficient,
		lift:      v.LiftCoefficient,
		area:      v.FrontalArea,
		split:     v.DownforceDistribution,
		wheelbase: v.Wheelbase,
		wind: mgl64.Vec3{
			v.Aero.Wind.Speed * math.Cos(v.Aero.Wind.Direction),
			0,
			v.Aero.Wind.Speed * math.Sin(v.Aero.Wind.Direction),
		},
	}
	a.Reset()
	return a
}

// Reset clears the computed loads.
func (a *Aero) Reset() {
	a.State = State{Density: a.Density(), GroundEffect: 1}
}

// Density returns the air density corrected for altitude and temperature.
func (a *Aero) Density() float64 {
	return a.cfg.AirDensity * math.Exp(-a.cfg.Altitude/scaleHeight) * seaLevelTemp / (kelvin + a.cfg.Temperature)
}

// Wind returns the world-frame wind velocity.
func (a *Aero) Wind() mgl64.Vec3 {
	return a.wind
}

// GroundEffect returns the downforce multiplier at ride height h. It equals
// the configured multiplier at the minimum height and 1 from twice the
// reference height up.
func (a *Aero) GroundEffect(h float64) float64 {
	span := 2*a.cfg.GroundEffectHeight - a.cfg.GroundEffectMinHeight
	if span <= 0 {
		return 1
	}
	t := lo.Clamp((h-a.cfg.GroundEffectMinHeight)/span, 0, 1)
	return a.cfg.GroundEffectMultiplier + (1-a.cfg.GroundEffectMultiplier)*t
}

// Update computes the loads for a body moving at velocity with the given
// orientation and ride height.
func (a *Aero) Update(velocity mgl64.Vec3, f Frame, rideHeight float64) State {
	rho := a.Density()
	rel := velocity.Sub(a.wind)
	speed := rel.Len()
	q := 0.5 * rho * speed * speed

	beta := 0.0
	if speed > minSolveSpeed {
		beta = math.Atan2(rel.Dot(f.Right), rel.Dot(f.Forward))
	}
	sinBeta := math.Sin(beta)

	dragMag := q * a.drag * a.area * (1 + sideslipDrag*math.Abs(sinBeta))
	var drag mgl64.Vec3
	if speed > minSolveSpeed {
		drag = rel.Mul(-dragMag / speed)
	}

	ge := a.GroundEffect(rideHeight)
	down := -q * a.lift * ge * a.area

	a.State = State{
		Density:        rho,
		Sideslip:       beta,
		GroundEffect:   ge,
		Drag:           drag,
		DragMagnitude:  dragMag,
		DownforceFront: down * a.split,
		DownforceRear:  down * (1 - a.split),
		SideForce:      -q * a.cfg.SideForceCoefficient * a.cfg.SideArea * sinBeta,
		YawMoment:      -q * a.cfg.YawMomentCoefficient * a.cfg.SideArea * a.wheelbase * sinBeta,
	}
	return a.State
}

// ResistancePower returns the power needed to hold speed v in still air on
// a surface with rolling coefficient crr.
func (a *Aero) ResistancePower(v, mass, gravity, crr float64) float64 {
	q := 0.5 * a.Density() * v * v
	load := mass*gravity - q*a.lift*a.area
	return q*a.drag*a.area*v + crr*math.Max(0, load)*v
}

// TopSpeed finds by bisection the speed at which the resistance power
// equals power.
func (a *Aero) TopSpeed(power, mass, gravity, crr float64) float64 {
	if power <= 0 {
		return 0
	}
	low, high := 0.0, float64(maxTopSpeed)
	if a.ResistancePower(high, mass, gravity, crr) < power {
		return high
	}
	for i := 0; i < bisectSteps && high-low > minSolveSpeed; i++ {
		mid := (low + high) / 2
		if a.ResistancePower(mid, mass, gravity, crr) < power {
			low = mid
		} else {
			high = mid
		}
	}
	return physics.Lerp(low, high, 0.5)
}
