// pkg/tire/model.go
package tire

import (
	"math"

	"github.com/samber/lo"

	"github.com/opd-ai/go-vdc/pkg/config"
)

// Pacejka evaluates the Magic Formula D·sin(C·atan(Bx − E·(Bx − atan(Bx)))).
// It is odd in x.
func Pacejka(x, b, c, d, e float64) float64 {
	bx := b * x
	return d * math.Sin(c*math.Atan(bx-e*(bx-math.Atan(bx))))
}

// CombinedSlip returns the longitudinal and lateral force per newton of
// load for slip ratio kappa and slip angle alpha. Each curve is evaluated
// at its own slip and the pair is split by θ = atan2(|α|, |κ|); when the
// normalized slip σ = hypot(α/αref, κ) leaves the unit ellipse both are
// scaled by 1/σ. grip multiplies the peak coefficients.
func CombinedSlip(kappa, alpha, alphaRef float64, long, lat config.Pacejka, grip float64) (fx, fy float64) {
	if kappa == 0 && alpha == 0 {
		return 0, 0
	}
	fx0 := Pacejka(kappa, long.B, long.C, long.D*grip, long.E)
	fy0 := Pacejka(alpha, lat.B, lat.C, lat.D*grip, lat.E)
	theta := math.Atan2(math.Abs(alpha), math.Abs(kappa))
	fx, fy = fx0*math.Cos(theta), fy0*math.Sin(theta)

	an := alpha
	if alphaRef > 0 {
		an = alpha / alphaRef
	}
	if sigma := math.Hypot(an, kappa); sigma > 1 {
		fx /= sigma
		fy /= sigma
	}
	return fx, fy
}

// SlipRatio returns the longitudinal slip of a wheel with peripheral speed
// wheel and ground speed ground, in [-1, 1].
func SlipRatio(wheel, ground float64) float64 {
	den := math.Max(math.Max(math.Abs(wheel), math.Abs(ground)), 0.1)
	return lo.Clamp((wheel-ground)/den, -1, 1)
}

// LoadSensitivity returns the grip scale at load n for nominal load n0.
// Heavier loaded tires grip less per newton when c1 is negative.
func LoadSensitivity(n, n0, c1 float64) float64 {
	if n0 <= 0 {
		return 1
	}
	return lo.Clamp(1+c1*(n-n0)/n0, 0.5, 1.5)
}

// TemperatureMultiplier is a bell around the optimum with half-width
// spread. A cold tire never drops below half grip; an overheated one falls
// toward 0.4.
func TemperatureMultiplier(t, optimum, spread float64) float64 {
	if spread <= 0 {
		return 1
	}
	x := (t - optimum) / spread
	bell := math.Exp(-x * x * math.Ln2)
	if t <= optimum {
		return lo.Clamp(bell, 0.5, 1)
	}
	return 0.4 + 0.6*bell
}

// PressureMultiplier penalizes running away from the optimal pressure.
func PressureMultiplier(p, optimal float64) float64 {
	if optimal <= 0 {
		return 1
	}
	return math.Max(0, 1-0.3*math.Abs(1-p/optimal))
}

// WearMultiplier is the grip left on a tire with wear w in [0, 1].
func WearMultiplier(w float64) float64 {
	return 1 - 0.4*lo.Clamp(w, 0, 1)
}

// Pressure returns the hot pressure for cold pressure p0 at core
// temperature core in °C.
func Pressure(p0, core float64) float64 {
	return p0 * (1 + (core-20)/273)
}

// relax moves filtered toward target by the fraction of a relaxation
// length covered in dt.
func relax(filtered, target, speed, length, minSpeed, dt float64) float64 {
	if length <= 0 {
		return target
	}
	k := lo.Clamp(dt*math.Max(speed, minSpeed)/length, 0, 1)
	return filtered + (target-filtered)*k
}
