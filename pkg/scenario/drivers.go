// pkg/scenario/drivers.go
package scenario

import (
	"github.com/samber/lo"

	"github.com/opd-ai/go-vdc/pkg/input"
	"github.com/opd-ai/go-vdc/pkg/powertrain"
	"github.com/opd-ai/go-vdc/pkg/vehicle"
)

// Constant repeats the same controls every step.
func Constant(raw input.RawInput) input.Source {
	return input.SourceFunc(func() input.RawInput { return raw })
}

// ShiftDriver holds a fixed throttle and steer and shifts up manually
// whenever the engine reaches UpshiftRPM.
type ShiftDriver struct {
	Vehicle    *vehicle.Vehicle
	Throttle   float64
	Steer      float64
	UpshiftRPM float64

	pressed bool
}

// Next implements input.Source.
func (d *ShiftDriver) Next() input.RawInput {
	raw := input.RawInput{Throttle: d.Throttle, Steer: d.Steer}

	gb := d.Vehicle.Drivetrain.Gearbox
	ready := gb.Phase == powertrain.ShiftIdle && gb.Gear > 0 && gb.Gear < gb.Forward()
	if !d.pressed && ready && d.Vehicle.Engine.RPM >= d.UpshiftRPM {
		raw.ShiftUp = true
		d.pressed = true
	} else {
		d.pressed = false
	}
	return raw
}

// SpeedHold trims the throttle with a PI loop around Bias to hold Target
// speed while steering a fixed amount.
type SpeedHold struct {
	Vehicle *vehicle.Vehicle
	Target  float64
	Steer   float64
	Bias    float64
	Kp, Ki  float64
	Dt      float64

	integral float64
}

// Next implements input.Source.
func (d *SpeedHold) Next() input.RawInput {
	e := d.Target - d.Vehicle.Speed()
	u := d.Bias + d.Kp*e + d.Ki*d.integral
	// No windup against either throttle stop.
	if (u < 1 || e < 0) && (u > 0 || e > 0) {
		d.integral += e * d.Dt
	}
	return input.RawInput{Throttle: lo.Clamp(u, 0, 1), Steer: d.Steer}
}
