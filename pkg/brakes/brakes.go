// pkg/brakes/brakes.go
package brakes

import (
	"fmt"
	"math"

	"github.com/opd-ai/go-vdc/pkg/config"
	"github.com/samber/lo"
)

const (
	maxTemperature = 800
	minFade        = 0.3
	absMinPedal    = 0.1
	releaseFactor  = 0.3
	applyFactor    = 0.8
)

// ABSPhase is the modulation phase of one wheel.
type ABSPhase uint8

const (
	ABSOff ABSPhase = iota
	ABSRelease
	ABSApply
)

func (p ABSPhase) String() string {
	switch p {
	case ABSOff:
		return "off"
	case ABSRelease:
		return "release"
	case ABSApply:
		return "apply"
	default:
		return fmt.Sprintf("abs(%d)", uint8(p))
	}
}

// Wheel is the brake state of one corner.
type Wheel struct {
	Temperature float64  `json:"temperature"`
	Wear        float64  `json:"wear"`
	Damage      float64  `json:"damage"`
	ABSActive   bool     `json:"absActive"`
	ABSPhase    ABSPhase `json:"absPhase"`
	ABSTimer    float64  `json:"absTimer"`
	Force       float64  `json:"force"`
	Torque      float64  `json:"torque"`
}

// State is the mutable state of the brake system.
type State struct {
	Wheels       [4]Wheel `json:"wheels"`
	SystemDamage float64  `json:"systemDamage"`
	ABSEnabled   bool     `json:"absEnabled"`
	Handbrake    bool     `json:"handbrake"`
}

// Input is what the brakes read each step. Slip holds the previous step's
// slip ratios in FL, FR, RL, RR order.
type Input struct {
	Pedal     float64
	Handbrake bool
	Slip      [4]float64
	Speed     float64
}

// Brakes turns pedal and handbrake into per-wheel brake torque.
type Brakes struct {
	cfg     config.BrakeConfig
	ambient float64

	State
}

// New creates a cold brake system.
func New(cfg config.BrakeConfig, ambient float64) *Brakes {
	b := &Brakes{cfg: cfg, ambient: ambient}
	b.Reset()
	return b
}

// Reset cools and renews every wheel and restores the configured ABS mode.
func (b *Brakes) Reset() {
	b.State = State{ABSEnabled: b.cfg.ABSEnabled}
	for i := range b.Wheels {
		b.Wheels[i].Temperature = b.ambient
	}
}

// SetABS switches ABS on or off.
func (b *Brakes) SetABS(on bool) {
	b.ABSEnabled = on
	if !on {
		for i := range b.Wheels {
			b.Wheels[i].ABSActive = false
			b.Wheels[i].ABSPhase = ABSOff
			b.Wheels[i].ABSTimer = 0
		}
	}
}

// Fade returns the friction multiplier for a disc temperature.
func (b *Brakes) Fade(temperature float64) float64 {
	if temperature <= b.cfg.FadeStart {
		return 1
	}
	t := lo.Clamp((temperature-b.cfg.FadeStart)/(b.cfg.FadeFull-b.cfg.FadeStart), 0, 1)
	return 1 + (minFade-1)*t
}

// Update advances every wheel by dt and returns the brake torques.
func (b *Brakes) Update(in Input, dt float64) [4]float64 {
	pedal := lo.Clamp(in.Pedal, 0, 1)
	speed := math.Abs(in.Speed)
	b.Handbrake = in.Handbrake

	base := pedal * b.cfg.MaxForce
	front := base * b.cfg.Bias / 2
	rear := base * (1 - b.cfg.Bias) / 2
	if in.Handbrake {
		rear += b.cfg.MaxForce * b.cfg.HandbrakeFactor * 0.25
	}

	absArmed := b.ABSEnabled && pedal > absMinPedal && speed > b.cfg.ABSMinSpeed
	period := 0.0
	if b.cfg.ABSFrequencyHz > 0 {
		period = 1 / b.cfg.ABSFrequencyHz
	}

	var torques [4]float64
	for i := range b.Wheels {
		w := &b.Wheels[i]
		force := front
		if i >= 2 {
			force = rear
		}

		w.Temperature += (force*speed*b.cfg.HeatGeneration - (w.Temperature-b.ambient)*b.cfg.HeatDissipation*(1+0.05*speed)) * dt
		w.Temperature = lo.Clamp(w.Temperature, b.ambient, maxTemperature)
		w.Wear = math.Min(1, w.Wear+b.cfg.WearRate*force*speed*dt)

		modulation := 1.0
		slip := math.Abs(in.Slip[i])
		switch {
		case !absArmed:
			w.ABSActive = false
		case !w.ABSActive && slip > b.cfg.ABSThreshold:
			w.ABSActive = true
			w.ABSTimer = 0
		case w.ABSActive && slip < b.cfg.ABSRelease:
			w.ABSActive = false
		}

		w.ABSPhase = ABSOff
		if w.ABSActive && period > 0 {
			if math.Mod(w.ABSTimer, period) < period/2 {
				w.ABSPhase = ABSRelease
				modulation = releaseFactor
			} else {
				w.ABSPhase = ABSApply
				modulation = applyFactor
			}
			w.ABSTimer += dt
		}

		damage := math.Max(0, 1-0.5*(w.Damage+b.SystemDamage))
		w.Force = force * modulation * b.Fade(w.Temperature) * (1 - 0.3*w.Wear) * damage
		w.Torque = w.Force * b.cfg.DiscRadius * b.cfg.PadFriction
		torques[i] = w.Torque
	}
	return torques
}
