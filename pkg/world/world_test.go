// pkg/world/world_test.go
package world

import (
	"encoding/json"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/go-vdc/pkg/physics"
)

func TestSurface_Grip(t *testing.T) {
	tests := []struct {
		surface Surface
		wetness float64
		want    float64
	}{
		{Asphalt, 0, 1.0},
		{Asphalt, 1, 0.7},
		{Asphalt, 0.5, 0.85},
		{WetAsphalt, 0, 0.7},
		{Gravel, 0, 0.6},
		{Dirt, 0, 0.5},
		{Grass, 0, 0.4},
		{Snow, 0, 0.25},
		{Ice, 0, 0.1},
		{Asphalt, 3, 0.7},
		{Asphalt, -1, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.surface.String(), func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.surface.Grip(tt.wetness), 1e-12)
		})
	}
}

func TestParseSurface_Normalizes(t *testing.T) {
	for _, name := range []string{"wet_asphalt", "WetAsphalt", "WET-ASPHALT", " wet asphalt "} {
		s, err := ParseSurface(name)
		require.NoError(t, err, name)
		assert.Equal(t, WetAsphalt, s, name)
	}

	s, err := ParseSurface("ICE")
	require.NoError(t, err)
	assert.Equal(t, Ice, s)

	_, err = ParseSurface("lava")
	assert.Error(t, err)
}

func TestSurface_TextRoundTrip(t *testing.T) {
	type doc struct {
		Surface Surface `json:"surface"`
	}

	data, err := json.Marshal(doc{Surface: Gravel})
	require.NoError(t, err)
	assert.JSONEq(t, `{"surface":"gravel"}`, string(data))

	var back doc
	require.NoError(t, json.Unmarshal([]byte(`{"surface":"SNOW"}`), &back))
	assert.Equal(t, Snow, back.Surface)
}

func TestFlatGround(t *testing.T) {
	g := &FlatGround{Height: 1.5, Surface: Grass, Wetness: 0.2}
	s, ok := g.GroundAt(100, -40)
	require.True(t, ok)
	assert.Equal(t, 1.5, s.Height)
	assert.Equal(t, mgl64.Vec3{0, 1, 0}, s.Normal)
	assert.Equal(t, Grass, s.Surface)
	assert.Empty(t, g.ObstaclesNear(0, 0, 10))
}

func TestPatchGround_OverridesSurface(t *testing.T) {
	g := &PatchGround{
		Base: NewFlatGround(Asphalt),
		Patches: []Patch{
			{MinX: 0, MinZ: -10, MaxX: 50, MaxZ: 10, Surface: Ice},
			{MinX: 40, MinZ: -10, MaxX: 60, MaxZ: 10, Surface: Snow, Wetness: 0.5},
		},
	}

	s, _ := g.GroundAt(-5, 0)
	assert.Equal(t, Asphalt, s.Surface)
	s, _ = g.GroundAt(20, 0)
	assert.Equal(t, Ice, s.Surface)
	s, _ = g.GroundAt(45, 0)
	assert.Equal(t, Snow, s.Surface, "later patch wins")
	assert.Equal(t, 0.5, s.Wetness)

	_, ok := (&PatchGround{Base: Void{}}).GroundAt(0, 0)
	assert.False(t, ok)
}

func TestHeightField_Bilinear(t *testing.T) {
	// A ramp rising 1 m per metre along X.
	heights := []float64{
		0, 1, 2,
		0, 1, 2,
		0, 1, 2,
	}
	h, err := NewHeightField(0, 0, 1, 3, 3, heights)
	require.NoError(t, err)

	s, ok := h.GroundAt(0.5, 1.2)
	require.True(t, ok)
	assert.InDelta(t, 0.5, s.Height, 1e-12)

	want := mgl64.Vec3{-1, 1, 0}.Normalize()
	assert.InDelta(t, want.X(), s.Normal.X(), 1e-12)
	assert.InDelta(t, want.Y(), s.Normal.Y(), 1e-12)
	assert.InDelta(t, 0, s.Normal.Z(), 1e-12)

	s, ok = h.GroundAt(2, 2)
	require.True(t, ok, "far edge is inside")
	assert.InDelta(t, 2, s.Height, 1e-12)

	_, ok = h.GroundAt(-0.1, 1)
	assert.False(t, ok)
	_, ok = h.GroundAt(1, 2.5)
	assert.False(t, ok)
}

func TestNewHeightField_Rejects(t *testing.T) {
	_, err := NewHeightField(0, 0, 1, 1, 3, []float64{0, 0, 0})
	assert.Error(t, err)
	_, err = NewHeightField(0, 0, 0, 2, 2, []float64{0, 0, 0, 0})
	assert.Error(t, err)
	_, err = NewHeightField(0, 0, 1, 2, 2, []float64{0, 0, 0})
	assert.Error(t, err)
}

func TestVoid(t *testing.T) {
	_, ok := Void{}.GroundAt(0, 0)
	assert.False(t, ok)
	assert.Nil(t, Void{}.ObstaclesNear(0, 0, 100))
}

func TestObstacle_Footprint(t *testing.T) {
	cone := Obstacle{Position: mgl64.Vec3{10, 0, -4}, Radius: 1}
	assert.Equal(t, physics.Bounds{Min: physics.PlanarVec{X: 9, Z: -5}, Max: physics.PlanarVec{X: 11, Z: -3}}, cone.Footprint())

	wall := Obstacle{Position: mgl64.Vec3{50, 1, 5}, HalfExtents: mgl64.Vec3{2, 1, 4}}
	assert.Equal(t, physics.Bounds{Min: physics.PlanarVec{X: 48, Z: 1}, Max: physics.PlanarVec{X: 52, Z: 9}}, wall.Footprint())

	set := NewObstacleSet(50)
	assert.Error(t, set.Add(wall), "the wall pokes past x = 50")
	assert.Zero(t, set.Len())
}

func TestObstacleSet_Near(t *testing.T) {
	set := NewObstacleSet(500)
	require.NoError(t, set.Add(Obstacle{Position: mgl64.Vec3{10, 0, 0}, Radius: 1, Kind: "cone"}))
	require.NoError(t, set.Add(Obstacle{Position: mgl64.Vec3{50, 1, 5}, HalfExtents: mgl64.Vec3{2, 1, 4}, Kind: "wall"}))
	require.NoError(t, set.Add(Obstacle{Position: mgl64.Vec3{-200, 0, 300}, Radius: 0.5, Kind: "post"}))
	assert.Equal(t, 3, set.Len())

	near := set.Near(8, 0, 2)
	require.Len(t, near, 1)
	assert.Equal(t, "cone", near[0].Kind)

	// The wall's box reaches toward the query even though its center is far.
	near = set.Near(46, 5, 2)
	require.Len(t, near, 1)
	assert.Equal(t, "wall", near[0].Kind)
	assert.True(t, near[0].IsBox())

	assert.Empty(t, set.Near(0, -100, 5))

	err := set.Add(Obstacle{Position: mgl64.Vec3{900, 0, 0}, Radius: 1})
	assert.Error(t, err)

	var none *ObstacleSet
	assert.Nil(t, none.Near(0, 0, 10))
	assert.Equal(t, 0, none.Len())
}
