// pkg/physics/quadtree.go
package physics

import "math"

// Bounds is an axis-aligned box on the ground plane.
type Bounds struct {
	Min PlanarVec
	Max PlanarVec
}

// BoundsAround returns the square of half size r centered on c.
func BoundsAround(c PlanarVec, r float64) Bounds {
	return Bounds{
		Min: PlanarVec{X: c.X - r, Z: c.Z - r},
		Max: PlanarVec{X: c.X + r, Z: c.Z + r},
	}
}

// Center returns the midpoint of the box.
func (b Bounds) Center() PlanarVec {
	return PlanarVec{X: (b.Min.X + b.Max.X) / 2, Z: (b.Min.Z + b.Max.Z) / 2}
}

// Encloses reports whether o lies entirely inside b. Shared edges count.
func (b Bounds) Encloses(o Bounds) bool {
	return o.Min.X >= b.Min.X && o.Max.X <= b.Max.X &&
		o.Min.Z >= b.Min.Z && o.Max.Z <= b.Max.Z
}

// DistanceSq returns the squared distance from p to the nearest point of
// the box, zero when p is inside.
func (b Bounds) DistanceSq(p PlanarVec) float64 {
	dx := math.Max(0, math.Max(b.Min.X-p.X, p.X-b.Max.X))
	dz := math.Max(0, math.Max(b.Min.Z-p.Z, p.Z-b.Max.Z))
	return dx*dx + dz*dz
}

// quadrant returns the child index that encloses o, or -1 when o straddles
// a split line. Bit 0 is east (+X), bit 1 is north (+Z).
func (b Bounds) quadrant(o Bounds) int {
	c := b.Center()
	q := 0
	switch {
	case o.Max.X <= c.X:
	case o.Min.X >= c.X:
		q |= 1
	default:
		return -1
	}
	switch {
	case o.Max.Z <= c.Z:
	case o.Min.Z >= c.Z:
		q |= 2
	default:
		return -1
	}
	return q
}

func (b Bounds) child(q int) Bounds {
	c := b.Center()
	out := b
	if q&1 == 0 {
		out.Max.X = c.X
	} else {
		out.Min.X = c.X
	}
	if q&2 == 0 {
		out.Max.Z = c.Z
	} else {
		out.Min.Z = c.Z
	}
	return out
}

// QuadTree indexes values by their ground-plane bounds. A value lives in
// the deepest node whose quadrant fully encloses it, so a large footprint
// stays near the root and a small one sinks toward the leaves.
type QuadTree[T any] struct {
	root     quadNode[T]
	maxDepth int
	size     int
}

type quadNode[T any] struct {
	bounds Bounds
	items  []quadItem[T]
	kids   *[4]quadNode[T]
}

type quadItem[T any] struct {
	bounds Bounds
	value  T
}

// NewQuadTree covers area and splits at most maxDepth times.
func NewQuadTree[T any](area Bounds, maxDepth int) *QuadTree[T] {
	return &QuadTree[T]{
		root:     quadNode[T]{bounds: area},
		maxDepth: max(0, maxDepth),
	}
}

// Area returns the indexed region.
func (t *QuadTree[T]) Area() Bounds {
	return t.root.bounds
}

// Len returns the number of stored values.
func (t *QuadTree[T]) Len() int {
	return t.size
}

// Insert stores value under bounds. It returns false when bounds reach
// outside the indexed area.
func (t *QuadTree[T]) Insert(bounds Bounds, value T) bool {
	if !t.root.bounds.Encloses(bounds) {
		return false
	}
	n := &t.root
	for depth := 0; depth < t.maxDepth; depth++ {
		q := n.bounds.quadrant(bounds)
		if q < 0 {
			break
		}
		if n.kids == nil {
			n.kids = new([4]quadNode[T])
			for i := range n.kids {
				n.kids[i].bounds = n.bounds.child(i)
			}
		}
		n = &n.kids[q]
	}
	n.items = append(n.items, quadItem[T]{bounds: bounds, value: value})
	t.size++
	return true
}

// Within returns every value whose bounds come within r of p, parents
// before children.
func (t *QuadTree[T]) Within(p PlanarVec, r float64) []T {
	if t.size == 0 || r < 0 {
		return nil
	}
	return t.root.within(p, r*r, nil)
}

func (n *quadNode[T]) within(p PlanarVec, r2 float64, out []T) []T {
	if n.bounds.DistanceSq(p) > r2 {
		return out
	}
	for _, it := range n.items {
		if it.bounds.DistanceSq(p) <= r2 {
			out = append(out, it.value)
		}
	}
	if n.kids != nil {
		for i := range n.kids {
			out = n.kids[i].within(p, r2, out)
		}
	}
	return out
}

// Clear drops every value and collapses the subdivisions.
func (t *QuadTree[T]) Clear() {
	t.root = quadNode[T]{bounds: t.root.bounds}
	t.size = 0
}
