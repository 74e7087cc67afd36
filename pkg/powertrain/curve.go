// pkg/powertrain/curve.go
package powertrain

import (
	"sort"

	"github.com/opd-ai/go-vdc/pkg/config"
)

// TorqueCurve is a normalized full-load torque table sorted by RPM.
type TorqueCurve []config.CurvePoint

// Sample interpolates the multiplier at rpm. Values outside the table
// clamp to the nearest endpoint.
func (c TorqueCurve) Sample(rpm float64) float64 {
	n := len(c)
	switch {
	case n == 0:
		return 0
	case rpm <= c[0].RPM:
		return c[0].Multiplier
	case rpm >= c[n-1].RPM:
		return c[n-1].Multiplier
	}

	i := sort.Search(n, func(i int) bool { return c[i].RPM > rpm })
	lo, hi := c[i-1], c[i]
	t := (rpm - lo.RPM) / (hi.RPM - lo.RPM)
	return lo.Multiplier + (hi.Multiplier-lo.Multiplier)*t
}

// Peak returns the RPM and multiplier of the highest table entry.
func (c TorqueCurve) Peak() (rpm, multiplier float64) {
	for _, p := range c {
		if p.Multiplier > multiplier {
			rpm, multiplier = p.RPM, p.Multiplier
		}
	}
	return rpm, multiplier
}
