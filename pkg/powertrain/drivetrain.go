// pkg/powertrain/drivetrain.go
package powertrain

import (
	"fmt"
	"math"
	"strings"

	"github.com/opd-ai/go-vdc/pkg/config"
	"github.com/opd-ai/go-vdc/pkg/physics"
	"github.com/samber/lo"
)

// Layout names the driven axles.
type Layout uint8

const (
	RWD Layout = iota
	FWD
	AWD
)

func (l Layout) String() string {
	switch l {
	case RWD:
		return "rwd"
	case FWD:
		return "fwd"
	case AWD:
		return "awd"
	default:
		return fmt.Sprintf("layout(%d)", uint8(l))
	}
}

// ParseLayout accepts "rwd", "fwd" and "awd" in any case.
func ParseLayout(s string) (Layout, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rwd":
		return RWD, nil
	case "fwd":
		return FWD, nil
	case "awd", "4wd":
		return AWD, nil
	}
	return RWD, fmt.Errorf("unknown drivetrain layout %q", s)
}

const (
	minEngagement = 0.05
	launchMargin  = 1.05
	onThrottle    = 0.05
)

// DrivetrainState is the mutable clutch state and the differential mode
// in force. Gearbox state is kept on the gearbox.
type DrivetrainState struct {
	Clutch       float64  `json:"clutch"`
	ClutchLocked bool     `json:"clutchLocked"`
	ClutchTorque float64  `json:"clutchTorque"`
	Slip         float64  `json:"slip"`
	ShaftSpeed   float64  `json:"shaftSpeed"`
	Diff         DiffKind `json:"diff"`
}

// DriveInput is what the drivetrain reads each step. Wheel arrays are in
// FL, FR, RL, RR order. WheelInertia is the spin inertia of one wheel;
// LoadInertia adds the share of vehicle mass a gripping tire carries and
// bounds the clutch torque. Zero LoadInertia means WheelInertia.
type DriveInput struct {
	Throttle     float64
	ClutchPedal  float64
	ShiftUp      bool
	ShiftDown    bool
	WheelSpeed   [4]float64
	WheelInertia float64
	LoadInertia  float64
}

// DriveOutput carries per-wheel drive torque and the engine inertia
// reflected onto each wheel while the clutch is locked.
type DriveOutput struct {
	Torque   [4]float64
	Inertia  [4]float64
	Shifted  bool
	FromGear int
	ToGear   int
	Stalled  bool
}

// Drivetrain couples the engine to the driven wheels through the clutch,
// gearbox, final drive and axle differentials.
type Drivetrain struct {
	cfg    config.DrivetrainConfig
	layout Layout
	diff   DiffKind
	front  *Differential
	rear   *Differential
	engine *Engine

	Gearbox *Gearbox
	DrivetrainState
}

// NewDrivetrain builds a drivetrain around an engine. The configuration
// must already be valid.
func NewDrivetrain(cfg config.DrivetrainConfig, engine *Engine) *Drivetrain {
	layout, _ := ParseLayout(cfg.Layout)
	d := &Drivetrain{
		cfg:     cfg,
		layout:  layout,
		front:   NewDifferential(cfg.Differential),
		rear:    NewDifferential(cfg.Differential),
		engine:  engine,
		Gearbox: NewGearbox(cfg.Ratios, cfg.ShiftTimeSeconds),
	}
	d.diff = d.rear.Kind
	d.Diff = d.diff
	return d
}

// Reset returns the drivetrain to neutral with the clutch open and the
// configured differential mode.
func (d *Drivetrain) Reset() {
	d.Gearbox.Reset()
	d.SetState(DrivetrainState{Diff: d.diff})
}

// SetState replaces the mutable state, including the differential mode of
// both axles.
func (d *Drivetrain) SetState(s DrivetrainState) {
	d.DrivetrainState = s
	d.front.Kind = s.Diff
	d.rear.Kind = s.Diff
}

// Layout returns the driven-axle layout.
func (d *Drivetrain) Layout() Layout {
	return d.layout
}

// DiffKind returns the axle differential kind.
func (d *Drivetrain) DiffKind() DiffKind {
	return d.rear.Kind
}

// SetDiffKind swaps the differential mode of both axles until the next
// Reset.
func (d *Drivetrain) SetDiffKind(k DiffKind) {
	d.Diff = k
	d.front.Kind = k
	d.rear.Kind = k
}

// AxleShare returns the fraction of drive torque sent to each axle.
func (d *Drivetrain) AxleShare() (front, rear float64) {
	switch d.layout {
	case FWD:
		return 1, 0
	case AWD:
		return d.cfg.FrontBias, 1 - d.cfg.FrontBias
	default:
		return 0, 1
	}
}

// Driven reports whether the wheel at index i receives drive torque.
func (d *Drivetrain) Driven(i int) bool {
	front, rear := d.AxleShare()
	if i < 2 {
		return front > 0
	}
	return rear > 0
}

// TotalRatio returns gear ratio times final drive, zero in neutral or
// while shifting.
func (d *Drivetrain) TotalRatio() float64 {
	return d.Gearbox.Ratio() * d.cfg.FinalDrive
}

func (d *Drivetrain) shaftSpeed(w [4]float64) float64 {
	front, rear := d.AxleShare()
	return front*(w[0]+w[1])/2 + rear*(w[2]+w[3])/2
}

func (d *Drivetrain) drivenWheels() float64 {
	front, rear := d.AxleShare()
	var n float64
	if front > 0 {
		n += 2
	}
	if rear > 0 {
		n += 2
	}
	return n
}

func (d *Drivetrain) engagement(pedal float64) float64 {
	c := math.Min(1-lo.Clamp(pedal, 0, 1), d.Gearbox.ClutchCommand())
	if d.cfg.AutoClutch {
		ecfg := d.engine.Config()
		start := launchMargin * ecfg.IdleRPM
		if d.cfg.LaunchRPM > start {
			c = math.Min(c, lo.Clamp((d.engine.RPM-start)/(d.cfg.LaunchRPM-start), 0, 1))
		}
	}
	return c
}

// Update runs the shift state machine and the clutch, and splits the
// transmitted torque over the driven wheels. The engine must already have
// produced its torque for this step.
func (d *Drivetrain) Update(in DriveInput, dt float64) DriveOutput {
	var out DriveOutput
	eng := d.engine
	gb := d.Gearbox

	if in.ShiftUp {
		gb.Request(1)
	} else if in.ShiftDown {
		gb.Request(-1)
	} else if d.cfg.Automatic && gb.Phase == ShiftIdle && gb.Gear >= 1 {
		switch {
		case eng.RPM > d.cfg.UpshiftRPM && gb.Gear < gb.Forward():
			gb.Request(1)
		case eng.RPM < d.cfg.DownshiftRPM && gb.Gear > 1:
			gb.Request(-1)
		}
	}

	from := gb.Gear
	if gb.Update(dt) {
		out.Shifted, out.FromGear, out.ToGear = true, from, gb.Gear
	}

	ratio := d.TotalRatio()
	c := d.engagement(in.ClutchPedal)
	d.Clutch = c
	d.ShaftSpeed = d.shaftSpeed(in.WheelSpeed)

	if ratio == 0 || c < minEngagement || !eng.Running {
		d.ClutchLocked = false
		d.ClutchTorque = 0
		d.Slip = 0
		out.Stalled = eng.Integrate(0, c, dt)
		return out
	}

	capacity := c * d.cfg.ClutchMaxTorque
	net := eng.Net()
	d.Slip = eng.AngularVelocity() - d.ShaftSpeed*ratio

	if d.ClutchLocked && math.Abs(net) > capacity {
		d.ClutchLocked = false
	}

	front, rear := d.AxleShare()
	var transmitted float64
	if d.ClutchLocked {
		d.ClutchTorque = net
		transmitted = net * ratio * d.cfg.Efficiency
		reflected := eng.Config().Inertia * ratio * ratio
		out.Inertia[0] = reflected * front / 2
		out.Inertia[1] = out.Inertia[0]
		out.Inertia[2] = reflected * rear / 2
		out.Inertia[3] = out.Inertia[2]
	} else {
		load := in.LoadInertia
		if load <= 0 {
			load = in.WheelInertia
		}
		wheelSide := d.drivenWheels() * load / (ratio * ratio)
		ie := eng.Config().Inertia
		limit := ie * wheelSide / (ie + wheelSide) * math.Abs(d.Slip) / dt

		tc := capacity * lo.Clamp(d.Slip/d.cfg.ClutchSlipSpeed, -1, 1)
		if math.Abs(tc) > limit {
			tc = physics.Sign(tc) * limit
		}
		d.ClutchTorque = tc
		out.Stalled = eng.Integrate(tc, c, dt)
		transmitted = tc * ratio * d.cfg.Efficiency
	}

	throttle := in.Throttle > onThrottle
	if front > 0 {
		inertia := in.WheelInertia + out.Inertia[0]
		out.Torque[0], out.Torque[1] = d.front.Split(transmitted*front, in.WheelSpeed[0], in.WheelSpeed[1], throttle, inertia, dt)
	}
	if rear > 0 {
		inertia := in.WheelInertia + out.Inertia[2]
		out.Torque[2], out.Torque[3] = d.rear.Split(transmitted*rear, in.WheelSpeed[2], in.WheelSpeed[3], throttle, inertia, dt)
	}
	return out
}

// PostStep runs after the wheels have integrated. A locked clutch slaves
// the crank to the driven wheels; a slipping clutch locks once the speeds
// come within the clutch slip speed and the engine torque fits within the
// clutch capacity. It reports whether the engine stalled.
func (d *Drivetrain) PostStep(wheelSpeed [4]float64) bool {
	eng := d.engine
	ratio := d.TotalRatio()
	if ratio == 0 || d.Clutch < minEngagement || !eng.Running {
		return false
	}

	input := d.shaftSpeed(wheelSpeed) * ratio
	if !d.ClutchLocked {
		slip := eng.AngularVelocity() - input
		crossed := physics.Sign(slip) != physics.Sign(d.Slip)
		fits := math.Abs(eng.Net()) <= d.Clutch*d.cfg.ClutchMaxTorque
		if !fits || (math.Abs(slip) >= d.cfg.ClutchSlipSpeed && !crossed) {
			return false
		}
		d.ClutchLocked = true
	}
	return eng.Sync(input*RadPerSecToRPM, d.Clutch)
}

// GearTopSpeed returns the road speed at the rev limiter in the top gear
// for a wheel of the given radius.
func (d *Drivetrain) GearTopSpeed(radius float64) float64 {
	top := d.Gearbox.RatioOf(d.Gearbox.Forward()) * d.cfg.FinalDrive
	if top == 0 {
		return math.Inf(1)
	}
	return d.engine.Config().RevLimiter / RadPerSecToRPM / top * radius
}
