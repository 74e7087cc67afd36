// pkg/physics/collision.go
package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Sphere represents a spherical collision shape
type Sphere struct {
	Center mgl64.Vec3
	Radius float64
}

// Box is an axis-aligned box given by its center and half extents.
type Box struct {
	Center      mgl64.Vec3
	HalfExtents mgl64.Vec3
}

// Contact describes one penetrating contact. Normal is a unit vector
// pointing from the obstacle toward the body.
type Contact struct {
	Point       mgl64.Vec3
	Normal      mgl64.Vec3
	Penetration float64
}

// Collides checks if two spheres are overlapping
func (s Sphere) Collides(other Sphere) bool {
	return s.Center.Sub(other.Center).Len() < s.Radius+other.Radius
}

// CheckSphere tests a body sphere against an obstacle sphere.
func CheckSphere(body, obstacle Sphere) (Contact, bool) {
	normal := body.Center.Sub(obstacle.Center)
	distance := normal.Len()

	if distance >= body.Radius+obstacle.Radius {
		return Contact{}, false
	}

	normal = SafeNormalize(normal, WorldUp)
	return Contact{
		Point:       obstacle.Center.Add(normal.Mul(obstacle.Radius)),
		Normal:      normal,
		Penetration: body.Radius + obstacle.Radius - distance,
	}, true
}

// CheckSphereBox tests a body sphere against an axis-aligned obstacle box.
func CheckSphereBox(body Sphere, obstacle Box) (Contact, bool) {
	lo := obstacle.Center.Sub(obstacle.HalfExtents)
	hi := obstacle.Center.Add(obstacle.HalfExtents)

	var closest mgl64.Vec3
	for i := 0; i < 3; i++ {
		closest[i] = math.Max(lo[i], math.Min(body.Center[i], hi[i]))
	}

	delta := body.Center.Sub(closest)
	distance := delta.Len()
	if distance >= body.Radius {
		return Contact{}, false
	}

	if distance > minNormalize {
		return Contact{
			Point:       closest,
			Normal:      delta.Mul(1 / distance),
			Penetration: body.Radius - distance,
		}, true
	}

	// Center inside the box: push out through the nearest face.
	best, axis, sign := math.Inf(1), 0, 1.0
	for i := 0; i < 3; i++ {
		if d := hi[i] - body.Center[i]; d < best {
			best, axis, sign = d, i, 1
		}
		if d := body.Center[i] - lo[i]; d < best {
			best, axis, sign = d, i, -1
		}
	}
	var normal mgl64.Vec3
	normal[axis] = sign
	point := body.Center
	if sign > 0 {
		point[axis] = hi[axis]
	} else {
		point[axis] = lo[axis]
	}
	return Contact{
		Point:       point,
		Normal:      normal,
		Penetration: best + body.Radius,
	}, true
}

// ContactMaterial carries the per-contact resolution parameters.
type ContactMaterial struct {
	Restitution        float64
	Friction           float64
	PositionCorrection float64
}

// ResolveContact applies a normal impulse with restitution and a Coulomb
// friction impulse at the contact, then pushes the body out along the
// normal by a fraction of the penetration. The obstacle is static.
// It returns the normal impulse magnitude.
func ResolveContact(b *RigidBody, c Contact, m ContactMaterial) float64 {
	if b.Static {
		return 0
	}

	r := c.Point.Sub(b.Position)
	vrel := b.VelocityAtPoint(c.Point)
	vn := vrel.Dot(c.Normal)

	var jn float64
	if vn < 0 {
		rn := r.Cross(c.Normal)
		denom := b.InvMass + c.Normal.Dot(b.ApplyInvInertia(rn).Cross(r))
		if denom > 0 {
			jn = -(1 + m.Restitution) * vn / denom
			b.ApplyImpulseAtPoint(c.Normal.Mul(jn), c.Point)
		}

		vrel = b.VelocityAtPoint(c.Point)
		vt := vrel.Sub(c.Normal.Mul(vrel.Dot(c.Normal)))
		if speed := vt.Len(); speed > minNormalize && m.Friction > 0 {
			tangent := vt.Mul(1 / speed)
			rt := r.Cross(tangent)
			denomT := b.InvMass + tangent.Dot(b.ApplyInvInertia(rt).Cross(r))
			if denomT > 0 {
				jt := math.Min(speed/denomT, m.Friction*jn)
				b.ApplyImpulseAtPoint(tangent.Mul(-jt), c.Point)
			}
		}
	}

	if c.Penetration > 0 {
		b.Position = b.Position.Add(c.Normal.Mul(c.Penetration * m.PositionCorrection))
	}

	return jn
}
