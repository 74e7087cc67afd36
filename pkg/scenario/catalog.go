// pkg/scenario/catalog.go
package scenario

import (
	"fmt"
	"sort"

	"github.com/opd-ai/go-vdc/pkg/input"
	"github.com/opd-ai/go-vdc/pkg/telemetry"
	"github.com/opd-ai/go-vdc/pkg/vehicle"
	"github.com/opd-ai/go-vdc/pkg/world"
)

// Trim values shared by the built-in scenarios.
const (
	BrakeSpeed   = 30.0
	SkidPadSpeed = 20.0
	SkidPadSteer = 0.3
	UpshiftRPM   = 6800.0
	stoppedSpeed = 0.5
)

func stopped(f telemetry.Frame) bool {
	return f.Speed < stoppedSpeed
}

func braking(abs bool) Scenario {
	name, desc := "brake", "Full braking from 30 m/s with ABS off until stopped"
	if abs {
		name, desc = "brake-abs", "Full braking from 30 m/s with ABS on until stopped"
	}
	return Scenario{
		Name:        name,
		Description: desc,
		Surface:     world.Asphalt,
		Duration:    8,
		Setup: func(v *vehicle.Vehicle) {
			v.SetABS(abs)
			v.Cruise(BrakeSpeed, 0)
		},
		Driver: func(*vehicle.Vehicle, float64) input.Source {
			return Constant(input.RawInput{Brake: 1})
		},
		Until: stopped,
	}
}

func skidPad(surface world.Surface) Scenario {
	name := "skidpad"
	if surface != world.Asphalt {
		name = "skidpad-" + surface.String()
	}
	return Scenario{
		Name:        name,
		Description: fmt.Sprintf("Constant steer %.1f holding %.0f m/s on %s", SkidPadSteer, SkidPadSpeed, surface),
		Surface:     surface,
		Duration:    6,
		Setup: func(v *vehicle.Vehicle) {
			v.Cruise(SkidPadSpeed, 3)
		},
		Driver: func(v *vehicle.Vehicle, dt float64) input.Source {
			return &SpeedHold{Vehicle: v, Target: SkidPadSpeed, Steer: SkidPadSteer, Bias: 0.3, Kp: 0.4, Ki: 0.4, Dt: dt}
		},
	}
}

// Builtin returns the built-in scenarios by name.
func Builtin() map[string]Scenario {
	all := []Scenario{
		{
			Name:        "idle",
			Description: "No input at rest for 5 s",
			Surface:     world.Asphalt,
			Duration:    5,
		},
		{
			Name:        "acceleration",
			Description: "Full throttle from rest in first gear, shifting up at 6800 rpm, for 10 s",
			Surface:     world.Asphalt,
			Duration:    10,
			Setup: func(v *vehicle.Vehicle) {
				v.Drivetrain.Gearbox.Set(1)
			},
			Driver: func(v *vehicle.Vehicle, _ float64) input.Source {
				return &ShiftDriver{Vehicle: v, Throttle: 1, UpshiftRPM: UpshiftRPM}
			},
		},
		{
			Name:        "coastdown",
			Description: "Rolling in neutral from 25 m/s with no input for 20 s",
			Surface:     world.Asphalt,
			Duration:    20,
			Setup: func(v *vehicle.Vehicle) {
				v.Cruise(25, 0)
			},
		},
		braking(false),
		braking(true),
		skidPad(world.Asphalt),
		skidPad(world.Ice),
	}
	out := make(map[string]Scenario, len(all))
	for _, s := range all {
		out[s.Name] = s
	}
	return out
}

// Names returns the built-in scenario names in order.
func Names() []string {
	b := Builtin()
	names := make([]string, 0, len(b))
	for n := range b {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the built-in scenario called name.
func Lookup(name string) (Scenario, error) {
	s, ok := Builtin()[name]
	if !ok {
		return Scenario{}, fmt.Errorf("unknown scenario %q (have %v)", name, Names())
	}
	return s, nil
}
