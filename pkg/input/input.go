// pkg/input/input.go
package input

import (
	"math"

	"github.com/samber/lo"
)

// RawInput is one frame of driver controls as delivered by a Source.
// Clutch is the pedal position: 0 released (engaged), 1 fully pressed.
type RawInput struct {
	Throttle  float64 `json:"throttle"`
	Brake     float64 `json:"brake"`
	Steer     float64 `json:"steer"`
	Clutch    float64 `json:"clutch"`
	Handbrake bool    `json:"handbrake"`
	ShiftUp   bool    `json:"shiftUp"`
	ShiftDown bool    `json:"shiftDown"`
	Reset     bool    `json:"reset"`
}

// Neutral reports whether the input asks for nothing at all.
func (r RawInput) Neutral() bool {
	return r == RawInput{}
}

func (r RawInput) finite() bool {
	for _, x := range [...]float64{r.Throttle, r.Brake, r.Steer, r.Clutch} {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// Source delivers one RawInput per simulation step.
type Source interface {
	Next() RawInput
}

// SourceFunc adapts a function to Source.
type SourceFunc func() RawInput

// Next implements Source.
func (f SourceFunc) Next() RawInput {
	return f()
}

// Constant is a Source that always returns the same input.
type Constant RawInput

// Next implements Source.
func (c Constant) Next() RawInput {
	return RawInput(c)
}

// Controls are the conditioned per-step targets.
type Controls struct {
	Throttle    float64
	Brake       float64
	Steer       float64
	SteerTarget float64
	ClutchPedal float64
	Handbrake   bool
	ShiftUp     bool
	ShiftDown   bool
	Reset       bool
}

// Active reports whether the driver is asking for anything.
func (c Controls) Active() bool {
	return c.Throttle > 0 || c.Brake > 0 || c.SteerTarget != 0 || c.ClutchPedal > 0 ||
		c.Handbrake || c.ShiftUp || c.ShiftDown
}

// State is the mutable part of the conditioner.
type State struct {
	Steer     float64 `json:"steer"`
	ShiftUp   bool    `json:"shiftUp"`
	ShiftDown bool    `json:"shiftDown"`
	Reset     bool    `json:"reset"`
	Rejected  uint64  `json:"rejected"`
}

// Conditioner smooths steering, clamps analog inputs and turns shift and
// reset levels into one-shot edges.
type Conditioner struct {
	// SteerTime is the exponential smoothing time constant in seconds.
	SteerTime float64
	State
}

// NewConditioner returns a conditioner with the given steering time constant.
func NewConditioner(steerTime float64) *Conditioner {
	return &Conditioner{SteerTime: steerTime}
}

// Reset clears all state.
func (c *Conditioner) Reset() {
	c.State = State{}
}

// Update conditions raw for a step of length dt. Non-finite analog values
// make the whole frame neutral.
func (c *Conditioner) Update(raw RawInput, dt float64) Controls {
	if !raw.finite() {
		c.Rejected++
		raw = RawInput{}
	}

	out := Controls{
		Throttle:    lo.Clamp(raw.Throttle, 0, 1),
		Brake:       lo.Clamp(raw.Brake, 0, 1),
		SteerTarget: lo.Clamp(raw.Steer, -1, 1),
		ClutchPedal: lo.Clamp(raw.Clutch, 0, 1),
		Handbrake:   raw.Handbrake,
		ShiftUp:     raw.ShiftUp && !c.State.ShiftUp,
		ShiftDown:   raw.ShiftDown && !c.State.ShiftDown,
		Reset:       raw.Reset && !c.State.Reset,
	}
	c.State.ShiftUp = raw.ShiftUp
	c.State.ShiftDown = raw.ShiftDown
	c.State.Reset = raw.Reset

	if c.SteerTime > 0 {
		c.Steer += (out.SteerTarget - c.Steer) * (1 - math.Exp(-dt/c.SteerTime))
	} else {
		c.Steer = out.SteerTarget
	}
	out.Steer = c.Steer
	return out
}
