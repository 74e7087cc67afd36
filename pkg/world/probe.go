// pkg/world/probe.go
package world

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/opd-ai/go-vdc/pkg/physics"
)

// GroundSample is the answer to a ground query at one point of the plane.
type GroundSample struct {
	Height  float64
	Normal  mgl64.Vec3
	Surface Surface
	Wetness float64
}

// Obstacle is a static collider. A zero HalfExtents means a sphere of
// Radius; otherwise an axis-aligned box.
type Obstacle struct {
	Position    mgl64.Vec3
	Radius      float64
	HalfExtents mgl64.Vec3
	Kind        string
}

// IsBox reports whether the obstacle is a box.
func (o Obstacle) IsBox() bool {
	return o.HalfExtents != (mgl64.Vec3{})
}

// Footprint returns the ground-plane box that holds the obstacle's shape.
func (o Obstacle) Footprint() physics.Bounds {
	c := physics.Planar(o.Position)
	if !o.IsBox() {
		return physics.BoundsAround(c, o.Radius)
	}
	h := physics.PlanarVec{X: math.Abs(o.HalfExtents.X()), Z: math.Abs(o.HalfExtents.Z())}
	return physics.Bounds{Min: c.Sub(h), Max: c.Add(h)}
}

// Probe answers the two world queries the vehicle needs. A false second
// result from GroundAt means there is no ground under the point.
type Probe interface {
	GroundAt(x, z float64) (GroundSample, bool)
	ObstaclesNear(x, z, r float64) []Obstacle
}

// FlatGround is an infinite horizontal plane with one surface.
type FlatGround struct {
	Height    float64
	Surface   Surface
	Wetness   float64
	Obstacles *ObstacleSet
}

// NewFlatGround returns dry ground at height zero.
func NewFlatGround(surface Surface) *FlatGround {
	return &FlatGround{Surface: surface}
}

// GroundAt implements Probe.
func (g *FlatGround) GroundAt(x, z float64) (GroundSample, bool) {
	return GroundSample{
		Height:  g.Height,
		Normal:  physics.WorldUp,
		Surface: g.Surface,
		Wetness: g.Wetness,
	}, true
}

// ObstaclesNear implements Probe.
func (g *FlatGround) ObstaclesNear(x, z, r float64) []Obstacle {
	return g.Obstacles.Near(x, z, r)
}

// Patch overrides the surface inside an axis-aligned rectangle.
type Patch struct {
	MinX, MinZ float64
	MaxX, MaxZ float64
	Surface    Surface
	Wetness    float64
}

// Contains reports whether (x, z) lies inside the patch.
func (p Patch) Contains(x, z float64) bool {
	return x >= p.MinX && x <= p.MaxX && z >= p.MinZ && z <= p.MaxZ
}

// PatchGround lays surface patches over a base probe. Later patches win.
type PatchGround struct {
	Base    Probe
	Patches []Patch
}

// GroundAt implements Probe.
func (g *PatchGround) GroundAt(x, z float64) (GroundSample, bool) {
	sample, ok := g.Base.GroundAt(x, z)
	if !ok {
		return sample, false
	}
	for i := len(g.Patches) - 1; i >= 0; i-- {
		if p := g.Patches[i]; p.Contains(x, z) {
			sample.Surface = p.Surface
			sample.Wetness = p.Wetness
			break
		}
	}
	return sample, true
}

// ObstaclesNear implements Probe.
func (g *PatchGround) ObstaclesNear(x, z, r float64) []Obstacle {
	return g.Base.ObstaclesNear(x, z, r)
}

// HeightField is a regular grid of heights sampled bilinearly. Points
// outside the grid have no ground.
type HeightField struct {
	OriginX   float64
	OriginZ   float64
	Spacing   float64
	Cols      int
	Rows      int
	Heights   []float64
	Surface   Surface
	Wetness   float64
	Obstacles *ObstacleSet
}

// NewHeightField builds a field of cols x rows samples. heights is row
// major with X varying fastest.
func NewHeightField(originX, originZ, spacing float64, cols, rows int, heights []float64) (*HeightField, error) {
	if cols < 2 || rows < 2 {
		return nil, fmt.Errorf("height field needs at least 2x2 samples, got %dx%d", cols, rows)
	}
	if !(spacing > 0) {
		return nil, fmt.Errorf("height field spacing must be positive, got %v", spacing)
	}
	if len(heights) != cols*rows {
		return nil, fmt.Errorf("height field expects %d samples, got %d", cols*rows, len(heights))
	}
	return &HeightField{
		OriginX: originX,
		OriginZ: originZ,
		Spacing: spacing,
		Cols:    cols,
		Rows:    rows,
		Heights: heights,
	}, nil
}

func (h *HeightField) at(i, j int) float64 {
	return h.Heights[j*h.Cols+i]
}

// GroundAt implements Probe.
func (h *HeightField) GroundAt(x, z float64) (GroundSample, bool) {
	fx := (x - h.OriginX) / h.Spacing
	fz := (z - h.OriginZ) / h.Spacing
	if fx < 0 || fz < 0 || fx > float64(h.Cols-1) || fz > float64(h.Rows-1) {
		return GroundSample{}, false
	}

	i := int(math.Min(math.Floor(fx), float64(h.Cols-2)))
	j := int(math.Min(math.Floor(fz), float64(h.Rows-2)))
	tx := fx - float64(i)
	tz := fz - float64(j)

	h00 := h.at(i, j)
	h10 := h.at(i+1, j)
	h01 := h.at(i, j+1)
	h11 := h.at(i+1, j+1)

	height := physics.Lerp(physics.Lerp(h00, h10, tx), physics.Lerp(h01, h11, tx), tz)
	dhdx := physics.Lerp(h10-h00, h11-h01, tz) / h.Spacing
	dhdz := physics.Lerp(h01-h00, h11-h10, tx) / h.Spacing

	return GroundSample{
		Height:  height,
		Normal:  physics.SafeNormalize(mgl64.Vec3{-dhdx, 1, -dhdz}, physics.WorldUp),
		Surface: h.Surface,
		Wetness: h.Wetness,
	}, true
}

// ObstaclesNear implements Probe.
func (h *HeightField) ObstaclesNear(x, z, r float64) []Obstacle {
	return h.Obstacles.Near(x, z, r)
}

// Void has no ground and no obstacles anywhere.
type Void struct{}

// GroundAt implements Probe.
func (Void) GroundAt(x, z float64) (GroundSample, bool) {
	return GroundSample{}, false
}

// ObstaclesNear implements Probe.
func (Void) ObstaclesNear(x, z, r float64) []Obstacle {
	return nil
}

// obstacleDepth bounds the subdivision of an obstacle set. At 500 m half
// size the smallest cell is under 8 m across.
const obstacleDepth = 7

// ObstacleSet indexes static obstacles by their footprint.
type ObstacleSet struct {
	tree *physics.QuadTree[Obstacle]
}

// NewObstacleSet creates an empty set covering a square of the given
// half size centered on the origin.
func NewObstacleSet(halfSize float64) *ObstacleSet {
	area := physics.BoundsAround(physics.PlanarVec{}, halfSize)
	return &ObstacleSet{tree: physics.NewQuadTree[Obstacle](area, obstacleDepth)}
}

// Add inserts an obstacle. It fails when any part of the obstacle lies
// outside the indexed area.
func (s *ObstacleSet) Add(o Obstacle) error {
	if !s.tree.Insert(o.Footprint(), o) {
		return fmt.Errorf("obstacle %q at (%.1f, %.1f) is outside the indexed area",
			o.Kind, o.Position.X(), o.Position.Z())
	}
	return nil
}

// Len returns the number of obstacles in the set.
func (s *ObstacleSet) Len() int {
	if s == nil {
		return 0
	}
	return s.tree.Len()
}

// Near returns every obstacle whose footprint comes within r of (x, z).
// A nil set has no obstacles.
func (s *ObstacleSet) Near(x, z, r float64) []Obstacle {
	if s == nil {
		return nil
	}
	return s.tree.Within(physics.PlanarVec{X: x, Z: z}, r)
}
