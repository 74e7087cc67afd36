// pkg/suspension/suspension.go
package suspension

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/opd-ai/go-vdc/pkg/config"
	"github.com/samber/lo"
)

// Corner indices shared by every per-wheel array.
const (
	FL = iota
	FR
	RL
	RR
)

// CornerNames are the short labels of the four corners in index order.
var CornerNames = [4]string{"fl", "fr", "rl", "rr"}

const (
	bumpStart     = 0.98
	droopStart    = 0.02
	bumpGain      = 5
	hardBumpGain  = 20
	droopGain     = 2
	damageFactor  = 0.3
	noiseDamage   = 0.3
	noiseFraction = 0.05
)

// Opposite returns the other corner on the same axle.
func Opposite(i int) int {
	return i ^ 1
}

// Side returns -1 for left corners and +1 for right corners.
func Side(i int) float64 {
	if i%2 == 0 {
		return -1
	}
	return 1
}

// Camber returns the running camber of corner i steered by angle. Caster
// leans the outside wheel into the turn.
func Camber(cfg config.SuspensionCorner, i int, angle float64) float64 {
	return cfg.StaticCamber + Side(i)*math.Sin(cfg.Caster)*math.Sin(angle)
}

// Corner is the state of one strut.
type Corner struct {
	Compression   float64 `json:"compression"`
	Velocity      float64 `json:"velocity"`
	SpringForce   float64 `json:"springForce"`
	DamperForce   float64 `json:"damperForce"`
	AntiRollForce float64 `json:"antiRollForce"`
	Load          float64 `json:"load"`
	OnGround      bool    `json:"onGround"`
	Damage        float64 `json:"damage"`
}

// State is the suspension state plus the body attitude it implies.
type State struct {
	Corners [4]Corner `json:"corners"`
	Pitch   float64   `json:"pitch"`
	Roll    float64   `json:"roll"`
	Heave   float64   `json:"heave"`
}

// Input carries, per corner, the distance from the strut mount down to the
// ground measured along the world vertical and corrected for body tilt.
// Grounded is false where the probe found no ground.
type Input struct {
	Distance [4]float64
	Grounded [4]bool
}

// Suspension turns strut geometry into tire normal loads.
type Suspension struct {
	cfg       [4]config.SuspensionCorner
	preload   [4]float64
	mounts    [4]mgl64.Vec3
	radius    float64
	track     float64
	wheelbase float64
	noise     func() float64

	State
}

// New builds the four struts. noise draws standard normal samples for
// damaged struts and may be nil.
func New(v config.VehicleConfig, noise func() float64) *Suspension {
	s := &Suspension{
		cfg:       v.Suspension.Corners(),
		radius:    v.Tire.Radius,
		track:     v.TrackWidth,
		wheelbase: v.Wheelbase,
		noise:     noise,
	}
	weight := v.Mass * v.Environment.Gravity
	for i := range s.cfg {
		share := v.WeightDistribution
		if i >= RL {
			share = 1 - share
		}
		s.preload[i] = weight * share / 2
		s.mounts[i] = Mount(v, i)
	}
	s.Reset()
	return s
}

// Mount returns the body-frame strut mount of corner i. A body resting with
// its center of mass at CGHeight over flat ground holds every strut at its
// rest position.
func Mount(v config.VehicleConfig, i int) mgl64.Vec3 {
	c := v.Suspension.Corners()[i]
	x := v.Wheelbase * (1 - v.WeightDistribution)
	if i >= RL {
		x = -v.Wheelbase * v.WeightDistribution
	}
	y := v.Tire.Radius - v.CGHeight + (1-c.RestPosition)*c.Travel()
	return mgl64.Vec3{x, y, Side(i) * v.TrackWidth / 2}
}

// Reset puts every strut at rest with its static load.
func (s *Suspension) Reset() {
	s.State = State{}
	for i := range s.Corners {
		s.Corners[i] = Corner{
			Compression: s.cfg[i].RestPosition,
			SpringForce: s.preload[i],
			Load:        s.preload[i],
			OnGround:    true,
		}
	}
}

// Mounts returns the body-frame mount points in corner order.
func (s *Suspension) Mounts() [4]mgl64.Vec3 {
	return s.mounts
}

// Loads returns the current normal loads in corner order.
func (s *Suspension) Loads() [4]float64 {
	var n [4]float64
	for i := range s.Corners {
		n[i] = s.Corners[i].Load
	}
	return n
}

// Update advances every strut by dt and returns the tire normal loads.
func (s *Suspension) Update(in Input, dt float64) [4]float64 {
	var raw [4]float64
	var airborne [4]bool
	for i := range s.Corners {
		travel := s.cfg[i].Travel()
		raw[i] = 1 - (in.Distance[i]-s.radius)/travel
		airborne[i] = !in.Grounded[i] || raw[i] < 0
	}

	var next [4]float64
	for i := range s.Corners {
		if !airborne[i] {
			next[i] = lo.Clamp(raw[i], 0, 1)
		}
	}

	for i := range s.Corners {
		c := &s.Corners[i]
		cfg := s.cfg[i]
		travel := cfg.Travel()

		velocity := 0.0
		if dt > 0 {
			velocity = (next[i] - c.Compression) * travel / dt
		}
		c.Compression = next[i]
		c.Velocity = velocity

		if airborne[i] {
			c.OnGround = false
			c.SpringForce, c.DamperForce, c.AntiRollForce, c.Load = 0, 0, 0, 0
			continue
		}
		c.OnGround = true

		spring := cfg.SpringRate*(c.Compression-cfg.RestPosition)*travel + s.preload[i]
		if raw[i] >= bumpStart {
			spring += bumpGain * cfg.SpringRate * (raw[i] - bumpStart) * travel
			if raw[i] > 1 {
				spring += hardBumpGain * cfg.SpringRate * (raw[i] - 1) * travel
			}
		}
		if c.Compression <= droopStart {
			spring -= droopGain * cfg.SpringRate * (droopStart - c.Compression) * travel
		}

		rate := cfg.ReboundDamping
		if velocity > 0 {
			rate = cfg.CompressionDamping
		}
		damper := rate * velocity

		antiRoll := 0.0
		if s.track > 0 {
			antiRoll = cfg.AntiRollStiffness * (c.Compression - next[Opposite(i)]) * travel / s.track
		}

		load := math.Max(0, spring+damper+antiRoll) * (1 - damageFactor*c.Damage)
		if c.Damage > noiseDamage && s.noise != nil {
			load += load * noiseFraction * (c.Damage - noiseDamage) * s.noise()
		}

		c.SpringForce = spring
		c.DamperForce = damper
		c.AntiRollForce = antiRoll
		c.Load = math.Max(0, load)
	}

	s.attitude()
	return s.Loads()
}

func (s *Suspension) attitude() {
	var disp [4]float64
	for i, c := range s.Corners {
		disp[i] = c.Compression * s.cfg[i].Travel()
	}
	front := (disp[FL] + disp[FR]) / 2
	rear := (disp[RL] + disp[RR]) / 2
	left := (disp[FL] + disp[RL]) / 2
	right := (disp[FR] + disp[RR]) / 2

	if s.wheelbase > 0 {
		s.Pitch = math.Atan((front - rear) / s.wheelbase)
	}
	if s.track > 0 {
		s.Roll = math.Atan((left - right) / s.track)
	}
	s.Heave = (disp[FL] + disp[FR] + disp[RL] + disp[RR]) / 4
}
