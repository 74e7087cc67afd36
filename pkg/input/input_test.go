// pkg/input/input_test.go
package input

import (
	"math"
	"testing"
)

func TestConditioner_ClampsAnalogInputs(t *testing.T) {
	c := NewConditioner(0)
	out := c.Update(RawInput{Throttle: 1.7, Brake: -0.2, Steer: -3, Clutch: 2}, 1.0/120)

	if out.Throttle != 1 {
		t.Errorf("Expected throttle 1, got %f", out.Throttle)
	}
	if out.Brake != 0 {
		t.Errorf("Expected brake 0, got %f", out.Brake)
	}
	if out.Steer != -1 {
		t.Errorf("Expected steer -1, got %f", out.Steer)
	}
	if out.ClutchPedal != 1 {
		t.Errorf("Expected clutch 1, got %f", out.ClutchPedal)
	}
}

func TestConditioner_SteeringSmoothing(t *testing.T) {
	c := NewConditioner(0.15)
	dt := 1.0 / 120

	var out Controls
	for i := 0; i < 18; i++ { // 0.15 s, one time constant
		out = c.Update(RawInput{Steer: 1}, dt)
	}

	want := 1 - math.Exp(-0.15/0.15)
	if math.Abs(out.Steer-want) > 1e-9 {
		t.Errorf("Expected steer %f after one time constant, got %f", want, out.Steer)
	}
	if out.SteerTarget != 1 {
		t.Errorf("Expected target 1, got %f", out.SteerTarget)
	}
}

func TestConditioner_EdgesAreOneShot(t *testing.T) {
	c := NewConditioner(0.15)
	dt := 1.0 / 120

	first := c.Update(RawInput{ShiftUp: true, Reset: true}, dt)
	held := c.Update(RawInput{ShiftUp: true, Reset: true}, dt)
	c.Update(RawInput{}, dt)
	again := c.Update(RawInput{ShiftUp: true}, dt)

	if !first.ShiftUp || !first.Reset {
		t.Error("Expected first press to fire")
	}
	if held.ShiftUp || held.Reset {
		t.Error("Expected held press to be consumed")
	}
	if !again.ShiftUp {
		t.Error("Expected a new press to fire after release")
	}
}

func TestConditioner_NaNIsNeutral(t *testing.T) {
	c := NewConditioner(0)
	c.Update(RawInput{Steer: 0.5}, 1.0/120)

	out := c.Update(RawInput{Throttle: math.NaN(), Steer: 1, ShiftUp: true}, 1.0/120)

	if out.Active() {
		t.Errorf("Expected neutral controls, got %+v", out)
	}
	if out.Steer != 0 {
		t.Errorf("Expected steer to return to center, got %f", out.Steer)
	}
	if c.Rejected != 1 {
		t.Errorf("Expected 1 rejected frame, got %d", c.Rejected)
	}

	out = c.Update(RawInput{Brake: math.Inf(1)}, 1.0/120)
	if out.Brake != 0 {
		t.Errorf("Expected infinite brake to be rejected, got %f", out.Brake)
	}
}

func TestConditioner_Reset(t *testing.T) {
	c := NewConditioner(0.1)
	c.Update(RawInput{Steer: 1, ShiftDown: true}, 0.05)
	c.Reset()

	if c.State != (State{}) {
		t.Errorf("Expected zero state after reset, got %+v", c.State)
	}
}

func TestSources(t *testing.T) {
	k := Constant{Throttle: 0.4}
	if got := k.Next().Throttle; got != 0.4 {
		t.Errorf("Expected 0.4, got %f", got)
	}

	n := 0
	f := SourceFunc(func() RawInput {
		n++
		return RawInput{Steer: float64(n)}
	})
	f.Next()
	if got := f.Next().Steer; got != 2 {
		t.Errorf("Expected 2, got %f", got)
	}

	if !(RawInput{}).Neutral() || (RawInput{Handbrake: true}).Neutral() {
		t.Error("Neutral misreported")
	}
}
