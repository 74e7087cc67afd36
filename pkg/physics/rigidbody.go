// pkg/physics/rigidbody.go
package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// RigidBody is a 6-DOF body with a diagonal body-frame inertia tensor.
// Position is the center of mass in world space. AngularVelocity is
// stored in world space.
type RigidBody struct {
	Mass       float64
	InvMass    float64
	Inertia    mgl64.Vec3
	InvInertia mgl64.Vec3

	Position        mgl64.Vec3
	Orientation     mgl64.Quat
	Velocity        mgl64.Vec3
	AngularVelocity mgl64.Vec3

	Force  mgl64.Vec3
	Torque mgl64.Vec3

	// Damping is the fraction of velocity lost per second, in [0, 1).
	LinearDamping  float64
	AngularDamping float64

	Static bool
	Asleep bool

	// SleepEnergy is the kinetic energy below which the body counts as
	// idle; SleepTime is how long it must stay idle before sleeping.
	SleepEnergy float64
	SleepTime   float64
	IdleTime    float64
}

// NewRigidBody creates a dynamic body at the origin with identity
// orientation.
func NewRigidBody(mass float64, inertia mgl64.Vec3) *RigidBody {
	b := &RigidBody{
		Mass:        mass,
		Inertia:     inertia,
		Orientation: mgl64.QuatIdent(),
	}
	if mass > 0 {
		b.InvMass = 1 / mass
	}
	for i := 0; i < 3; i++ {
		if inertia[i] > 0 {
			b.InvInertia[i] = 1 / inertia[i]
		}
	}
	return b
}

// AddForce accumulates a force through the center of mass.
func (b *RigidBody) AddForce(f mgl64.Vec3) {
	b.Force = b.Force.Add(f)
}

// AddTorque accumulates a world-space torque.
func (b *RigidBody) AddTorque(t mgl64.Vec3) {
	b.Torque = b.Torque.Add(t)
}

// AddForceAtPoint accumulates a force applied at a world-space point.
func (b *RigidBody) AddForceAtPoint(f, p mgl64.Vec3) {
	b.Force = b.Force.Add(f)
	b.Torque = b.Torque.Add(p.Sub(b.Position).Cross(f))
}

// ForceTorqueAt returns the force and torque a force f applied at p
// contributes, without accumulating it.
func (b *RigidBody) ForceTorqueAt(f, p mgl64.Vec3) (mgl64.Vec3, mgl64.Vec3) {
	return f, p.Sub(b.Position).Cross(f)
}

// ClearAccumulators zeroes the force and torque accumulators.
func (b *RigidBody) ClearAccumulators() {
	b.Force = zeroVec3
	b.Torque = zeroVec3
}

// RotateToWorld rotates a body-frame direction into world space.
func (b *RigidBody) RotateToWorld(v mgl64.Vec3) mgl64.Vec3 {
	return b.Orientation.Rotate(v)
}

// RotateToBody rotates a world-space direction into the body frame.
func (b *RigidBody) RotateToBody(v mgl64.Vec3) mgl64.Vec3 {
	return b.Orientation.Conjugate().Rotate(v)
}

// LocalToWorld transforms a body-frame point into world space.
func (b *RigidBody) LocalToWorld(p mgl64.Vec3) mgl64.Vec3 {
	return b.Position.Add(b.Orientation.Rotate(p))
}

// WorldToLocal transforms a world-space point into the body frame.
func (b *RigidBody) WorldToLocal(p mgl64.Vec3) mgl64.Vec3 {
	return b.RotateToBody(p.Sub(b.Position))
}

// VelocityAtPoint returns the world velocity of a world-space point
// attached to the body.
func (b *RigidBody) VelocityAtPoint(p mgl64.Vec3) mgl64.Vec3 {
	return b.Velocity.Add(b.AngularVelocity.Cross(p.Sub(b.Position)))
}

// ApplyInvInertia applies the world-space inverse inertia R I^-1 R^T to v.
func (b *RigidBody) ApplyInvInertia(v mgl64.Vec3) mgl64.Vec3 {
	local := b.RotateToBody(v)
	local = mgl64.Vec3{
		local[0] * b.InvInertia[0],
		local[1] * b.InvInertia[1],
		local[2] * b.InvInertia[2],
	}
	return b.RotateToWorld(local)
}

// ApplyImpulseAtPoint changes linear and angular velocity by an impulse
// j applied at world point p.
func (b *RigidBody) ApplyImpulseAtPoint(j, p mgl64.Vec3) {
	if b.Static {
		return
	}
	b.Velocity = b.Velocity.Add(j.Mul(b.InvMass))
	b.AngularVelocity = b.AngularVelocity.Add(b.ApplyInvInertia(p.Sub(b.Position).Cross(j)))
}

// KineticEnergy returns translational plus rotational kinetic energy.
func (b *RigidBody) KineticEnergy() float64 {
	local := b.RotateToBody(b.AngularVelocity)
	rot := local[0]*local[0]*b.Inertia[0] + local[1]*local[1]*b.Inertia[1] + local[2]*local[2]*b.Inertia[2]
	return 0.5*b.Mass*b.Velocity.Dot(b.Velocity) + 0.5*rot
}

// Wake resumes integration of a sleeping body.
func (b *RigidBody) Wake() {
	b.Asleep = false
	b.IdleTime = 0
}

// Integrate advances the body by h with semi-implicit Euler: velocities
// first from the accumulated force and torque, then position and
// orientation from the new velocities. Accumulators are cleared.
func (b *RigidBody) Integrate(h float64) {
	if b.Static || b.Asleep {
		b.ClearAccumulators()
		return
	}

	b.Velocity = b.Velocity.Add(b.Force.Mul(b.InvMass * h))
	b.AngularVelocity = b.AngularVelocity.Add(b.ApplyInvInertia(b.Torque).Mul(h))

	if b.LinearDamping > 0 {
		b.Velocity = b.Velocity.Mul(math.Pow(1-b.LinearDamping, h))
	}
	if b.AngularDamping > 0 {
		b.AngularVelocity = b.AngularVelocity.Mul(math.Pow(1-b.AngularDamping, h))
	}

	b.Position = b.Position.Add(b.Velocity.Mul(h))

	spin := mgl64.Quat{W: 0, V: b.AngularVelocity.Mul(0.5 * h)}
	b.Orientation = b.Orientation.Add(spin.Mul(b.Orientation))
	if l := b.Orientation.Len(); l > 0 && !math.IsInf(l, 0) {
		b.Orientation = b.Orientation.Scale(1 / l)
	}

	b.ClearAccumulators()
	b.updateSleep(h)
}

func (b *RigidBody) updateSleep(h float64) {
	if b.SleepTime <= 0 {
		return
	}
	if b.KineticEnergy() < b.SleepEnergy {
		b.IdleTime += h
		if b.IdleTime > b.SleepTime {
			b.Velocity = zeroVec3
			b.AngularVelocity = zeroVec3
			b.Asleep = true
		}
		return
	}
	b.IdleTime = 0
}
