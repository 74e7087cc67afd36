// pkg/steering/steering.go
package steering

import (
	"math"

	"github.com/opd-ai/go-vdc/pkg/config"
	"github.com/opd-ai/go-vdc/pkg/physics"
	"github.com/samber/lo"
)

// selfReturnInput and selfReturnSpeed gate the self-centering term.
const (
	selfReturnInput = 0.05
	selfReturnSpeed = 1.0
)

// State is the mutable steering state. Angles are road-wheel angles in
// radians, positive to the right.
type State struct {
	Center float64 `json:"center"`
	Left   float64 `json:"left"`
	Right  float64 `json:"right"`
}

// Steering converts driver steering into front road-wheel angles.
type Steering struct {
	cfg       config.SteeringConfig
	wheelbase float64
	track     float64

	State
}

// New creates a steering rack for the given geometry.
func New(cfg config.SteeringConfig, wheelbase, track float64) *Steering {
	return &Steering{cfg: cfg, wheelbase: wheelbase, track: track}
}

// Reset centers the wheels.
func (s *Steering) Reset() {
	s.State = State{}
}

// SpeedFactor returns the speed-sensitive reduction for a speed in m/s.
func (s *Steering) SpeedFactor(speed float64) float64 {
	return lo.Clamp(1-s.cfg.SpeedSensitiveFactor*math.Abs(speed)*3.6, s.cfg.MinFactor, 1)
}

// WheelAngle returns the steering wheel angle implied by the center
// road-wheel angle.
func (s *Steering) WheelAngle() float64 {
	return s.Center * s.cfg.Ratio
}

// Update advances the rack by dt. input is the smoothed steering command
// in [-1, 1], speed the body speed and alignTorque the summed front tire
// aligning torque of the previous step.
func (s *Steering) Update(input, speed, alignTorque, dt float64) State {
	factor := s.SpeedFactor(speed)
	target := input * s.cfg.MaxAngle * factor

	step := s.cfg.RateLimit * dt
	center := s.Center + lo.Clamp(target-s.Center, -step, step)

	if math.Abs(input) < selfReturnInput && math.Abs(speed) > selfReturnSpeed && center != target {
		before := center - target
		center += dt * (-s.cfg.ReturnRate*center*factor - physics.Sign(center)*math.Abs(alignTorque)*s.cfg.AlignGain)
		if physics.Sign(center-target) != physics.Sign(before) {
			center = target
		}
	}

	s.Center = lo.Clamp(center, -s.cfg.MaxAngle, s.cfg.MaxAngle)
	s.Left, s.Right = s.ackermann(s.Center)
	return s.State
}

// ackermann splits the center angle into left and right wheel angles.
func (s *Steering) ackermann(center float64) (left, right float64) {
	mag := math.Abs(center)
	if mag < 1e-9 {
		return center, center
	}

	radius := s.wheelbase / math.Tan(mag)
	inner := math.Atan2(s.wheelbase, radius-s.track/2)
	outer := math.Atan2(s.wheelbase, radius+s.track/2)

	p := lo.Clamp(s.cfg.Ackermann, 0, 1)
	inner = lo.Clamp((1-p)*mag+p*inner, 0, s.cfg.MaxAngle)
	outer = lo.Clamp((1-p)*mag+p*outer, 0, s.cfg.MaxAngle)

	if center > 0 {
		return outer, inner
	}
	return -inner, -outer
}
