// pkg/physics/vector.go
package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// World axes. +Y is up; the ground plane is X/Z.
var (
	WorldUp      = mgl64.Vec3{0, 1, 0}
	BodyForward  = mgl64.Vec3{1, 0, 0}
	BodyUp       = mgl64.Vec3{0, 1, 0}
	BodyRight    = mgl64.Vec3{0, 0, 1}
	zeroVec3     = mgl64.Vec3{}
	minNormalize = 1e-12
)

// PlanarVec is a point or direction in the ground plane (world X and Z).
type PlanarVec struct {
	X float64
	Z float64
}

// Planar drops the vertical component of v.
func Planar(v mgl64.Vec3) PlanarVec {
	return PlanarVec{X: v.X(), Z: v.Z()}
}

// Add returns the sum of two vectors
func (v PlanarVec) Add(other PlanarVec) PlanarVec {
	return PlanarVec{X: v.X + other.X, Z: v.Z + other.Z}
}

// Sub returns the difference between two vectors
func (v PlanarVec) Sub(other PlanarVec) PlanarVec {
	return PlanarVec{X: v.X - other.X, Z: v.Z - other.Z}
}

// Scale multiplies the vector by a scalar value
func (v PlanarVec) Scale(factor float64) PlanarVec {
	return PlanarVec{X: v.X * factor, Z: v.Z * factor}
}

// Length returns the magnitude of the vector
func (v PlanarVec) Length() float64 {
	return math.Hypot(v.X, v.Z)
}

// Distance returns the distance between two points
func (v PlanarVec) Distance(other PlanarVec) float64 {
	return v.Sub(other).Length()
}

// Dot returns the dot product of two vectors
func (v PlanarVec) Dot(other PlanarVec) float64 {
	return v.X*other.X + v.Z*other.Z
}

// Finite reports whether every component of v is a finite number.
func Finite(v mgl64.Vec3) bool {
	return IsFinite(v[0]) && IsFinite(v[1]) && IsFinite(v[2])
}

// FiniteQuat reports whether every component of q is a finite number.
func FiniteQuat(q mgl64.Quat) bool {
	return IsFinite(q.W) && Finite(q.V)
}

// IsFinite reports whether x is neither NaN nor infinite.
func IsFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// SafeNormalize returns v scaled to unit length, or fallback when v is too
// short to carry a direction. mgl64's Normalize divides by zero instead.
func SafeNormalize(v, fallback mgl64.Vec3) mgl64.Vec3 {
	l := v.Len()
	if l < minNormalize {
		return fallback
	}
	return v.Mul(1 / l)
}

// ProjectOnPlane removes the component of v along the unit normal n.
func ProjectOnPlane(v, n mgl64.Vec3) mgl64.Vec3 {
	return v.Sub(n.Mul(v.Dot(n)))
}

// WrapAngle maps a to (-pi, pi].
func WrapAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a > math.Pi {
		a -= 2 * math.Pi
	} else if a <= -math.Pi {
		a += 2 * math.Pi
	}
	return a
}

// Sign returns -1, 0, or 1.
func Sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}

// Lerp interpolates linearly between a and b.
func Lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}
