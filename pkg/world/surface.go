// pkg/world/surface.go
package world

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// Surface is the canonical ground kind under a wheel.
type Surface uint8

const (
	Asphalt Surface = iota
	WetAsphalt
	Concrete
	Gravel
	Dirt
	Grass
	Ice
	Snow
)

var surfaceNames = [...]string{
	Asphalt:    "asphalt",
	WetAsphalt: "wet_asphalt",
	Concrete:   "concrete",
	Gravel:     "gravel",
	Dirt:       "dirt",
	Grass:      "grass",
	Ice:        "ice",
	Snow:       "snow",
}

// surfaceProperties holds dry grip, fully wet grip and rolling resistance.
type surfaceProperties struct {
	dry     float64
	wet     float64
	rolling float64
}

var surfaceTable = [...]surfaceProperties{
	Asphalt:    {dry: 1.0, wet: 0.7, rolling: 0.012},
	WetAsphalt: {dry: 0.7, wet: 0.7, rolling: 0.014},
	Concrete:   {dry: 0.95, wet: 0.65, rolling: 0.011},
	Gravel:     {dry: 0.6, wet: 0.55, rolling: 0.03},
	Dirt:       {dry: 0.5, wet: 0.35, rolling: 0.04},
	Grass:      {dry: 0.4, wet: 0.3, rolling: 0.05},
	Ice:        {dry: 0.1, wet: 0.08, rolling: 0.01},
	Snow:       {dry: 0.25, wet: 0.2, rolling: 0.035},
}

func (s Surface) String() string {
	if int(s) < len(surfaceNames) {
		return surfaceNames[s]
	}
	return fmt.Sprintf("surface(%d)", uint8(s))
}

// Valid reports whether s is one of the known kinds.
func (s Surface) Valid() bool {
	return int(s) < len(surfaceNames)
}

// ParseSurface accepts any capitalization and separator style:
// "asphalt", "ASPHALT", "wet_asphalt", "WetAsphalt", "wet-asphalt".
func ParseSurface(name string) (Surface, error) {
	key := strings.NewReplacer("_", "", "-", "", " ", "").Replace(strings.ToLower(strings.TrimSpace(name)))
	for i, n := range surfaceNames {
		if strings.ReplaceAll(n, "_", "") == key {
			return Surface(i), nil
		}
	}
	return Asphalt, fmt.Errorf("unknown surface %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (s Surface) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid surface %d", uint8(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Surface) UnmarshalText(text []byte) error {
	parsed, err := ParseSurface(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Grip returns the surface friction multiplier, interpolated between the
// dry and wet value by wetness in [0, 1].
func (s Surface) Grip(wetness float64) float64 {
	if !s.Valid() {
		s = Asphalt
	}
	p := surfaceTable[s]
	w := lo.Clamp(wetness, 0, 1)
	return p.dry + (p.wet-p.dry)*w
}

// RollingResistance returns the rolling resistance coefficient.
func (s Surface) RollingResistance() float64 {
	if !s.Valid() {
		s = Asphalt
	}
	return surfaceTable[s].rolling
}
