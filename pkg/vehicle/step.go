// pkg/vehicle/step.go
package vehicle

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/opd-ai/go-vdc/pkg/aero"
	"github.com/opd-ai/go-vdc/pkg/brakes"
	"github.com/opd-ai/go-vdc/pkg/event"
	"github.com/opd-ai/go-vdc/pkg/input"
	"github.com/opd-ai/go-vdc/pkg/physics"
	"github.com/opd-ai/go-vdc/pkg/powertrain"
	"github.com/opd-ai/go-vdc/pkg/suspension"
	"github.com/opd-ai/go-vdc/pkg/tire"
	"github.com/opd-ai/go-vdc/pkg/world"
)

const (
	// minUp is the body up component below which no wheel can touch.
	minUp = 0.1
	// absPedal is the pedal travel that ends a braking episode.
	absPedal = 0.1
	// noGround is the ride height used when nothing is under the body.
	noGround = 1e3
)

// frameOf is the orientation of the body for one step.
type frameOf struct {
	forward, up, right mgl64.Vec3
}

// corner collects what the ground and suspension phases found at one
// wheel for the tire phase.
type corner struct {
	mount    mgl64.Vec3
	distance float64
	grounded bool
	ground   world.GroundSample
}

// Step advances the vehicle by dt with one frame of driver input. It
// returns ErrHalted once the vehicle has been halted; all other faults
// are handled internally and show up as the Degraded flag.
func (v *Vehicle) Step(raw input.RawInput, dt float64) error {
	if v.Halted {
		return ErrHalted
	}
	c := v.Input.Update(raw, dt)
	if c.Reset {
		tick, t := v.Tick, v.Time
		held := v.Input.State
		v.Reset()
		v.Tick, v.Time = tick, t
		v.Input.State.ShiftUp = held.ShiftUp
		v.Input.State.ShiftDown = held.ShiftDown
		v.Input.State.Reset = held.Reset
		v.commit()
		v.logger.Info(v.ctx, "vehicle reset", "tick", tick)
		v.bus.Publish(event.NewVehicleEvent(event.VehicleReset, v, tick, "driver reset", 0))
		return nil
	}

	v.advance(c, dt)
	v.Tick++
	v.Time += dt
	return v.check()
}

func (v *Vehicle) advance(c input.Controls, dt float64) {
	b := v.Body
	f := frameOf{
		forward: b.RotateToWorld(physics.BodyForward),
		up:      b.RotateToWorld(physics.BodyUp),
		right:   b.RotateToWorld(physics.BodyRight),
	}
	speed := b.Velocity.Dot(f.forward)

	steer := v.Steering.Update(c.Steer, speed, v.feedback.Align, dt)
	drive := v.drive(c, dt)
	brake := v.brake(c, dt)

	corners := v.probeGround(f)
	var in suspension.Input
	for i, k := range corners {
		in.Distance[i] = k.distance
		in.Grounded[i] = k.grounded
	}
	loads := v.Suspension.Update(in, dt)

	b.AddForce(mgl64.Vec3{0, -v.cfg.Mass * v.cfg.Environment.Gravity, 0})
	var force, torque [4]mgl64.Vec3
	for i, k := range corners {
		if k.grounded {
			force[i], torque[i] = b.ForceTorqueAt(f.up.Mul(loads[i]), k.mount)
		}
	}
	v.addPairs(force, torque)

	v.airflow(f)

	angles := [4]float64{steer.Left, steer.Right, 0, 0}
	force, torque = [4]mgl64.Vec3{}, [4]mgl64.Vec3{}
	for i, k := range corners {
		toe := -suspension.Side(i) * v.cfg.Suspension.Corners()[i].StaticToe
		force[i], torque[i] = v.wheel(i, k, f, angles[i]+toe, loads[i], drive, brake[i], dt)
	}
	v.addPairs(force, torque)

	if b.Asleep && (c.Active() || b.Force.Len() > v.cfg.Sleep.WakeForce) {
		b.Wake()
	}
	before := b.Velocity
	b.Integrate(dt)
	v.collide()
	if dt > 0 {
		v.feedback.Acceleration = b.Velocity.Sub(before).Mul(1 / dt)
	}

	var spin [4]float64
	for i, t := range v.Tires {
		spin[i] = t.AngularVelocity
		v.feedback.Slip[i] = t.SlipRatio
	}
	if v.Drivetrain.PostStep(spin) {
		v.stalled()
	}
	v.feedback.Align = v.Tires[suspension.FL].Mz + v.Tires[suspension.FR].Mz
}

// addPairs accumulates per-corner forces axle by axle. Summing each
// left/right pair before accumulating keeps mirrored runs bit-identical.
func (v *Vehicle) addPairs(force, torque [4]mgl64.Vec3) {
	b := v.Body
	for axle := 0; axle < 4; axle += 2 {
		b.AddForce(force[axle].Add(force[axle+1]))
		b.AddTorque(torque[axle].Add(torque[axle+1]))
	}
}

func (v *Vehicle) drive(c input.Controls, dt float64) powertrain.DriveOutput {
	v.Engine.Produce(c.Throttle, v.Drivetrain.Clutch, dt)

	var spin [4]float64
	for i, t := range v.Tires {
		spin[i] = t.AngularVelocity
	}
	r := v.cfg.Tire.Radius
	out := v.Drivetrain.Update(powertrain.DriveInput{
		Throttle:     c.Throttle,
		ClutchPedal:  c.ClutchPedal,
		ShiftUp:      c.ShiftUp,
		ShiftDown:    c.ShiftDown,
		WheelSpeed:   spin,
		WheelInertia: v.cfg.Tire.WheelInertia(),
		LoadInertia:  v.cfg.Tire.WheelInertia() + v.cfg.Mass*r*r/4,
	}, dt)

	if out.Shifted {
		v.logger.Debug(v.ctx, "gear changed", "from", out.FromGear, "to", out.ToGear, "rpm", v.Engine.RPM)
		v.bus.Publish(event.NewGearEvent(v, v.Tick, v.Engine.RPM, out.FromGear, out.ToGear))
	}
	if out.Stalled {
		v.stalled()
	}
	return out
}

func (v *Vehicle) stalled() {
	gear := v.Drivetrain.Gearbox.Gear
	v.logger.Info(v.ctx, "engine stalled", "tick", v.Tick, "gear", gear)
	v.bus.Publish(event.NewStallEvent(v, v.Tick, v.Engine.RPM, gear))
}

func (v *Vehicle) brake(c input.Controls, dt float64) [4]float64 {
	torque := v.Brakes.Update(brakes.Input{
		Pedal:     c.Brake,
		Handbrake: c.Handbrake,
		Slip:      v.feedback.Slip,
		Speed:     v.Body.Velocity.Len(),
	}, dt)

	// One ABS event per braking episode.
	if c.Brake < absPedal {
		v.feedback.ABS = false
	}
	if !v.feedback.ABS {
		for i, w := range v.Brakes.Wheels {
			if w.ABSActive {
				v.feedback.ABS = true
				v.bus.Publish(event.NewWheelEvent(event.ABSEngaged, v, v.Tick, suspension.CornerNames[i], v.feedback.Slip[i]))
				break
			}
		}
	}
	return torque
}

// probeGround finds the strut length to the ground under each mount,
// measured along the body's up axis.
func (v *Vehicle) probeGround(f frameOf) [4]corner {
	var out [4]corner
	for i := range out {
		k := &out[i]
		k.mount = v.Body.LocalToWorld(v.mounts[i])
		g, ok := v.probe.GroundAt(k.mount.X(), k.mount.Z())
		if !ok || f.up.Y() < minUp {
			continue
		}
		k.ground = g
		k.grounded = true
		k.distance = (k.mount.Y() - g.Height) / f.up.Y()
	}
	return out
}

func (v *Vehicle) airflow(f frameOf) {
	b := v.Body
	height := noGround
	if g, ok := v.probe.GroundAt(b.Position.X(), b.Position.Z()); ok {
		height = b.Position.Y() - g.Height - v.cfg.Aero.FloorHeight
	}
	s := v.Aero.Update(b.Velocity, aero.Frame{Forward: f.forward, Right: f.right}, height)

	b.AddForce(s.Drag)
	b.AddForce(f.right.Mul(s.SideForce))
	b.AddTorque(f.up.Mul(s.YawMoment))
	b.AddForceAtPoint(f.up.Mul(-s.DownforceFront), b.LocalToWorld(mgl64.Vec3{v.axleX[0], 0, 0}))
	b.AddForceAtPoint(f.up.Mul(-s.DownforceRear), b.LocalToWorld(mgl64.Vec3{v.axleX[1], 0, 0}))
}

// wheel runs one corner's tire and returns the force and torque it puts on
// the body. The contact point sits a strut length below the mount.
func (v *Vehicle) wheel(i int, k corner, f frameOf, angle, load float64, drive powertrain.DriveOutput, brake, dt float64) (mgl64.Vec3, mgl64.Vec3) {
	t := v.Tires[i]
	punctured := t.Punctured
	c := tire.Contact{
		Surface:      t.Surface,
		Camber:       suspension.Camber(v.cfg.Suspension.Corners()[i], i, angle),
		DriveTorque:  drive.Torque[i],
		BrakeTorque:  brake,
		ExtraInertia: drive.Inertia[i],
	}

	var force, torque mgl64.Vec3
	var heading, lateral, normal, point mgl64.Vec3
	if k.grounded {
		normal = physics.SafeNormalize(k.ground.Normal, physics.WorldUp)
		steered := f.forward.Mul(math.Cos(angle)).Add(f.right.Mul(math.Sin(angle)))
		heading = physics.SafeNormalize(physics.ProjectOnPlane(steered, normal), f.forward)
		lateral = heading.Cross(normal)
		point = k.mount.Sub(f.up.Mul(k.distance))
		vc := v.Body.VelocityAtPoint(point)

		c.Load = load
		c.Forward = vc.Dot(heading)
		c.Lateral = vc.Dot(lateral)
		c.Surface = k.ground.Surface
		c.Wetness = k.ground.Wetness
		c.Grounded = true
	}

	out := t.Update(c, dt)
	if t.OnGround {
		applied := heading.Mul(out.Fx + out.RollingForce).Add(lateral.Mul(out.Fy))
		force, torque = v.Body.ForceTorqueAt(applied, point)
		torque = torque.Add(normal.Mul(-out.Mz))
	}

	if t.Punctured && !punctured {
		v.logger.Warn(v.ctx, "tire punctured", "corner", suspension.CornerNames[i], "wear", t.Wear)
		v.bus.Publish(event.NewWheelEvent(event.TirePunctured, v, v.Tick, suspension.CornerNames[i], t.SlipRatio))
	}
	return force, torque
}

// collide resolves the body's proxy spheres against nearby obstacles.
func (v *Vehicle) collide() {
	cc := v.cfg.Collision
	mat := physics.ContactMaterial{
		Restitution:        cc.Restitution,
		Friction:           cc.Friction,
		PositionCorrection: cc.PositionCorrection,
	}
	for _, local := range v.proxies {
		center := v.Body.LocalToWorld(local)
		for _, o := range v.probe.ObstaclesNear(center.X(), center.Z(), cc.ProxyRadius) {
			sphere := physics.Sphere{Center: center, Radius: cc.ProxyRadius}
			var contact physics.Contact
			var hit bool
			if o.IsBox() {
				contact, hit = physics.CheckSphereBox(sphere, physics.Box{Center: o.Position, HalfExtents: o.HalfExtents})
			} else {
				contact, hit = physics.CheckSphere(sphere, physics.Sphere{Center: o.Position, Radius: o.Radius})
			}
			if !hit {
				continue
			}
			v.Body.Wake()
			if j := physics.ResolveContact(v.Body, contact, mat); j > 0 {
				v.bus.Publish(event.NewCollisionEvent(v, v.Tick, j, contact.Point, contact.Normal))
			}
			center = v.Body.LocalToWorld(local)
		}
	}
}

// check runs the end-of-step degeneracy test. A bad step is rolled back to
// the last good state; enough bad steps in a row halt the vehicle.
func (v *Vehicle) check() error {
	if reason := v.degenerate(); reason != "" {
		return v.recover(reason)
	}
	v.guard.record(true)
	v.Failures = 0
	v.commit()
	return nil
}

func (v *Vehicle) recover(reason string) error {
	status := v.Status
	if err := v.apply(v.good); err != nil {
		return err
	}
	v.Status = status
	first := !v.Degraded
	v.Degraded = true
	open := v.guard.record(false)
	v.Failures = v.guard.consecutive()
	if first {
		v.logger.Warn(v.ctx, "vehicle degraded", "tick", v.Tick, "reason", reason)
		v.bus.Publish(event.NewVehicleEvent(event.VehicleDegraded, v, v.Tick, reason, v.Failures))
	}
	if open {
		v.Halted = true
		v.Failures = v.haltAfter
		err := fmt.Errorf("tick %d: %s: %w", v.Tick, reason, ErrHalted)
		v.logger.Error(v.ctx, "vehicle halted", err, "failures", v.Failures)
		v.bus.Publish(event.NewVehicleEvent(event.VehicleHalted, v, v.Tick, reason, v.Failures))
		v.frame = v.buildFrame()
		return err
	}
	v.frame = v.buildFrame()
	return nil
}

// degenerate names the first non-finite quantity it finds, or returns "".
func (v *Vehicle) degenerate() string {
	b := v.Body
	switch {
	case !physics.Finite(b.Position):
		return "body position"
	case !physics.FiniteQuat(b.Orientation):
		return "body orientation"
	case !physics.Finite(b.Velocity):
		return "body velocity"
	case !physics.Finite(b.AngularVelocity):
		return "body angular velocity"
	case !physics.IsFinite(v.Engine.RPM):
		return "engine rpm"
	}
	for i, t := range v.Tires {
		for _, x := range [...]float64{t.AngularVelocity, t.Fx, t.Fy, t.SurfaceTemperature, t.CoreTemperature, t.Wear} {
			if !physics.IsFinite(x) {
				return "tire " + suspension.CornerNames[i]
			}
		}
		if !physics.IsFinite(v.Suspension.Corners[i].Compression) {
			return "suspension " + suspension.CornerNames[i]
		}
	}
	return ""
}
