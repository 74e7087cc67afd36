// pkg/vehicle/frame.go
package vehicle

import (
	"math"

	"github.com/opd-ai/go-vdc/pkg/physics"
	"github.com/opd-ai/go-vdc/pkg/suspension"
	"github.com/opd-ai/go-vdc/pkg/telemetry"
)

// Frame returns the telemetry frame of the last completed step.
func (v *Vehicle) Frame() telemetry.Frame {
	return v.frame
}

func (v *Vehicle) buildFrame() telemetry.Frame {
	b := v.Body
	fwd := b.RotateToWorld(physics.BodyForward)
	right := b.RotateToWorld(physics.BodyRight)
	g := v.cfg.Environment.Gravity
	acc := v.feedback.Acceleration
	eng := v.Engine
	dt := v.Drivetrain
	q := b.Orientation

	f := telemetry.Frame{
		Tick:            v.Tick,
		Time:            v.Time,
		Position:        b.Position,
		Orientation:     [4]float64{q.W, q.V.X(), q.V.Y(), q.V.Z()},
		Velocity:        b.Velocity,
		AngularVelocity: b.AngularVelocity,
		Speed:           b.Velocity.Dot(fwd),
		Heading:         math.Atan2(-fwd.Z(), fwd.X()),
		YawRate:         b.AngularVelocity.Dot(physics.WorldUp),
		Pitch:           v.Suspension.Pitch,
		Roll:            v.Suspension.Roll,
		Heave:           v.Suspension.Heave,
		Steer:           v.Steering.Center,

		RPM:               eng.RPM,
		EngineTorque:      eng.Torque,
		EnginePower:       eng.Power(),
		EngineTemperature: eng.Temperature,
		EngineRunning:     eng.Running,
		Boost:             eng.Boost,
		Throttle:          eng.Throttle,

		Gear:         dt.Gearbox.Gear,
		Clutch:       dt.Clutch,
		ClutchLocked: dt.ClutchLocked,
		ShiftState:   dt.Gearbox.Phase.String(),

		Drag:           v.Aero.DragMagnitude,
		DownforceFront: v.Aero.DownforceFront,
		DownforceRear:  v.Aero.DownforceRear,

		Asleep:   b.Asleep,
		Degraded: v.Degraded,
		Halted:   v.Halted,
	}
	if g > 0 {
		f.LongitudinalG = acc.Dot(fwd) / g
		f.LateralG = acc.Dot(right) / g
	}

	for i, t := range v.Tires {
		br := v.Brakes.Wheels[i]
		f.Wheels[i] = telemetry.Wheel{
			Corner:             suspension.CornerNames[i],
			SlipRatio:          t.SlipRatio,
			SlipAngle:          t.SlipAngle,
			Fx:                 t.Fx,
			Fy:                 t.Fy,
			Load:               t.Load,
			AngularVelocity:    t.AngularVelocity,
			SurfaceTemperature: t.SurfaceTemperature,
			CoreTemperature:    t.CoreTemperature,
			Wear:               t.Wear,
			Grip:               t.Grip,
			OnGround:           t.OnGround,
			Punctured:          t.Punctured,
			Surface:            t.Surface.String(),
			Compression:        v.Suspension.Corners[i].Compression,
			BrakeTemperature:   br.Temperature,
			BrakeTorque:        br.Torque,
			ABSPhase:           br.ABSPhase.String(),
		}
	}
	return f
}
