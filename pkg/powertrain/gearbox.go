// pkg/powertrain/gearbox.go
package powertrain

import (
	"fmt"
	"math"
)

// ShiftPhase is the state of the shift state machine.
type ShiftPhase uint8

const (
	ShiftIdle ShiftPhase = iota
	Shifting
)

func (p ShiftPhase) String() string {
	switch p {
	case ShiftIdle:
		return "idle"
	case Shifting:
		return "shifting"
	default:
		return fmt.Sprintf("phase(%d)", uint8(p))
	}
}

// Gear indices: -1 reverse, 0 neutral, 1..N forward.
const (
	Reverse = -1
	Neutral = 0
)

// GearboxState is the mutable gearbox state.
type GearboxState struct {
	Gear   int        `json:"gear"`
	Target int        `json:"target"`
	Phase  ShiftPhase `json:"phase"`
	Timer  float64    `json:"timer"`
}

// Gearbox is a sequential gearbox with a timed shift. Ratios are laid out
// [reverse, neutral, first, second, ...].
type Gearbox struct {
	ratios    []float64
	shiftTime float64

	GearboxState
}

// NewGearbox creates a gearbox in neutral.
func NewGearbox(ratios []float64, shiftTime float64) *Gearbox {
	return &Gearbox{ratios: ratios, shiftTime: shiftTime}
}

// Reset returns to neutral with no shift in progress.
func (g *Gearbox) Reset() {
	g.GearboxState = GearboxState{}
}

// Forward returns the number of forward gears.
func (g *Gearbox) Forward() int {
	return len(g.ratios) - 2
}

// Clamp limits a gear index to the valid range.
func (g *Gearbox) Clamp(gear int) int {
	if gear < Reverse {
		return Reverse
	}
	if top := g.Forward(); gear > top {
		return top
	}
	return gear
}

// RatioOf returns the signed ratio of a gear. Reverse is always negative.
func (g *Gearbox) RatioOf(gear int) float64 {
	switch gear = g.Clamp(gear); gear {
	case Reverse:
		return -math.Abs(g.ratios[0])
	case Neutral:
		return 0
	default:
		return g.ratios[gear+1]
	}
}

// Ratio returns the ratio currently transmitting torque: zero while a
// shift is in progress.
func (g *Gearbox) Ratio() float64 {
	if g.Phase == Shifting {
		return 0
	}
	return g.RatioOf(g.Gear)
}

// Request starts a shift by delta gears. It is ignored while shifting or
// when the target equals the current gear.
func (g *Gearbox) Request(delta int) bool {
	if g.Phase == Shifting {
		return false
	}
	target := g.Clamp(g.Gear + delta)
	if target == g.Gear {
		return false
	}
	g.Target = target
	g.Phase = Shifting
	g.Timer = g.shiftTime
	return true
}

// Set engages a gear immediately, cancelling any shift.
func (g *Gearbox) Set(gear int) {
	g.Gear = g.Clamp(gear)
	g.Target = g.Gear
	g.Phase = ShiftIdle
	g.Timer = 0
}

// Update advances a shift in progress. It returns true on the step the
// new gear engages.
func (g *Gearbox) Update(dt float64) bool {
	if g.Phase != Shifting {
		return false
	}
	g.Timer -= dt
	if g.Timer > 0 {
		return false
	}
	g.Gear = g.Target
	g.Phase = ShiftIdle
	g.Timer = 0
	return true
}

// ClutchCommand is the engagement the shift asks for: ramping 1 to 0 over
// the first half of the shift and 0 to 1 over the second.
func (g *Gearbox) ClutchCommand() float64 {
	if g.Phase != Shifting || g.shiftTime <= 0 {
		return 1
	}
	f := 1 - g.Timer/g.shiftTime
	if f < 0.5 {
		return 1 - 2*f
	}
	return math.Min(1, 2*f-1)
}
