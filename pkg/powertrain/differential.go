// pkg/powertrain/differential.go
package powertrain

import (
	"fmt"
	"math"
	"strings"

	"github.com/opd-ai/go-vdc/pkg/config"
	"github.com/opd-ai/go-vdc/pkg/physics"
)

// DiffKind selects how an axle differential shares torque.
type DiffKind uint8

const (
	Open DiffKind = iota
	LimitedSlip
	Locked
)

func (k DiffKind) String() string {
	switch k {
	case Open:
		return "open"
	case LimitedSlip:
		return "lsd"
	case Locked:
		return "locked"
	default:
		return fmt.Sprintf("diff(%d)", uint8(k))
	}
}

// MarshalText writes the kind by name.
func (k DiffKind) MarshalText() ([]byte, error) {
	if k > Locked {
		return nil, fmt.Errorf("unknown differential kind %d", uint8(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText reads a kind written by MarshalText.
func (k *DiffKind) UnmarshalText(b []byte) error {
	kind, err := ParseDiffKind(string(b))
	if err != nil {
		return err
	}
	*k = kind
	return nil
}

// ParseDiffKind accepts "open", "lsd" (or "limited_slip") and "locked" in
// any case.
func ParseDiffKind(s string) (DiffKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "open":
		return Open, nil
	case "lsd", "limited_slip", "limitedslip":
		return LimitedSlip, nil
	case "locked", "spool":
		return Locked, nil
	}
	return Open, fmt.Errorf("unknown differential kind %q", s)
}

// Differential splits an axle's drive torque between its two wheels.
type Differential struct {
	Kind      DiffKind
	preload   float64
	accelLock float64
	decelLock float64
	stiffness float64
}

// NewDifferential builds a differential from its configuration. The kind
// must already be valid.
func NewDifferential(cfg config.DifferentialConfig) *Differential {
	kind, _ := ParseDiffKind(cfg.Kind)
	return &Differential{
		Kind:      kind,
		preload:   cfg.Preload,
		accelLock: cfg.AccelLock,
		decelLock: cfg.DecelLock,
		stiffness: cfg.LockStiffness,
	}
}

// Split divides torque between the left and right wheel. inertia is the
// effective rotational inertia of each wheel; the locking torque never
// exceeds what would equalize the wheel speeds within one step.
func (d *Differential) Split(torque, left, right float64, onThrottle bool, inertia, dt float64) (float64, float64) {
	half := torque / 2
	dw := left - right
	if dw == 0 || dt <= 0 {
		return half, half
	}

	limit := inertia * math.Abs(dw) / (2 * dt)
	var lock float64
	switch d.Kind {
	case LimitedSlip:
		ratio := d.decelLock
		if onThrottle {
			ratio = d.accelLock
		}
		lock = math.Max(d.preload, math.Min(math.Abs(dw)*d.stiffness, ratio*math.Abs(torque)))
		lock = math.Min(lock, limit)
	case Locked:
		lock = limit
	}

	lock *= physics.Sign(dw)
	return half - lock, half + lock
}
