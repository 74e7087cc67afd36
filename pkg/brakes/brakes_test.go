// pkg/brakes/brakes_test.go
package brakes

import (
	"testing"

	"github.com/opd-ai/go-vdc/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dt = 1.0 / 120

func newBrakes(mutate func(*config.BrakeConfig)) *Brakes {
	cfg := config.DefaultVehicleConfig().Brakes
	if mutate != nil {
		mutate(&cfg)
	}
	return New(cfg, 20)
}

func TestBrakes_BiasAndTorque(t *testing.T) {
	b := newBrakes(func(c *config.BrakeConfig) { c.ABSEnabled = false })
	tq := b.Update(Input{Pedal: 1, Speed: 0}, dt)

	assert.InDelta(t, 80000*0.65/2, b.Wheels[0].Force, 1e-9)
	assert.InDelta(t, 80000*0.35/2, b.Wheels[2].Force, 1e-9)
	assert.InDelta(t, b.Wheels[0].Force*0.16*0.45, tq[0], 1e-9)
	assert.Equal(t, tq[0], tq[1])
	assert.Equal(t, tq[2], tq[3])
}

func TestBrakes_PedalClamped(t *testing.T) {
	b := newBrakes(nil)
	tq := b.Update(Input{Pedal: -3}, dt)
	assert.Equal(t, [4]float64{}, tq)

	full := newBrakes(nil).Update(Input{Pedal: 1}, dt)
	over := b.Update(Input{Pedal: 7}, dt)
	assert.Equal(t, full, over)
}

func TestBrakes_HandbrakeRearOnly(t *testing.T) {
	b := newBrakes(nil)
	tq := b.Update(Input{Handbrake: true, Speed: 10}, dt)

	assert.Zero(t, tq[0])
	assert.Zero(t, tq[1])
	assert.InDelta(t, 80000*0.5*0.25, b.Wheels[2].Force, 1e-9)
	assert.True(t, b.Handbrake)
}

func TestBrakes_Fade(t *testing.T) {
	b := newBrakes(nil)
	tests := []struct {
		temp float64
		want float64
	}{
		{20, 1},
		{400, 1},
		{550, 0.65},
		{700, 0.3},
		{800, 0.3},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, b.Fade(tt.temp), 1e-12, "temperature %v", tt.temp)
	}
}

func TestBrakes_HeatAndWear(t *testing.T) {
	b := newBrakes(func(c *config.BrakeConfig) { c.ABSEnabled = false })
	for i := 0; i < 240; i++ {
		b.Update(Input{Pedal: 1, Speed: 30}, dt)
	}
	front, rear := b.Wheels[0], b.Wheels[2]
	assert.Greater(t, front.Temperature, rear.Temperature)
	assert.Greater(t, rear.Temperature, 20.0)
	assert.LessOrEqual(t, front.Temperature, 800.0)
	assert.Greater(t, front.Wear, 0.0)

	// Standing still the discs only cool.
	hot := front.Temperature
	for i := 0; i < 120; i++ {
		b.Update(Input{}, dt)
	}
	assert.Less(t, b.Wheels[0].Temperature, hot)
	assert.GreaterOrEqual(t, b.Wheels[0].Temperature, 20.0)
}

func TestBrakes_DamageReducesForce(t *testing.T) {
	b := newBrakes(nil)
	b.Wheels[0].Damage = 0.5
	b.SystemDamage = 0.5
	b.Update(Input{Pedal: 1}, dt)
	assert.InDelta(t, 80000*0.65/2*0.5, b.Wheels[0].Force, 1e-9)

	b.Wheels[1].Damage = 3
	b.Update(Input{Pedal: 1}, dt)
	assert.Zero(t, b.Wheels[1].Force, "force never negative")
}

func TestBrakes_ABSHysteresis(t *testing.T) {
	b := newBrakes(nil)
	in := Input{Pedal: 1, Speed: 20}

	in.Slip = [4]float64{-0.15, 0, 0, 0}
	b.Update(in, dt)
	assert.False(t, b.Wheels[0].ABSActive, "below threshold")

	in.Slip[0] = -0.3
	b.Update(in, dt)
	require.True(t, b.Wheels[0].ABSActive)
	assert.Equal(t, ABSRelease, b.Wheels[0].ABSPhase)
	assert.InEpsilon(t, 80000*0.65/2*0.3, b.Wheels[0].Force, 1e-3)

	in.Slip[0] = -0.15
	b.Update(in, dt)
	assert.True(t, b.Wheels[0].ABSActive, "still above release")

	in.Slip[0] = -0.05
	b.Update(in, dt)
	assert.False(t, b.Wheels[0].ABSActive)
	assert.Equal(t, ABSOff, b.Wheels[0].ABSPhase)
}

func TestBrakes_ABSCycle(t *testing.T) {
	b := newBrakes(nil)
	in := Input{Pedal: 1, Speed: 20, Slip: [4]float64{-0.5, -0.5, -0.5, -0.5}}

	var release, apply int
	for i := 0; i < 16; i++ {
		b.Update(in, dt)
		switch b.Wheels[0].ABSPhase {
		case ABSRelease:
			release++
		case ABSApply:
			apply++
		}
		if i == 0 {
			assert.Equal(t, ABSRelease, b.Wheels[0].ABSPhase, "a cycle opens with release")
		}
	}
	// 15 Hz at 120 Hz is 8 steps per cycle, half of them releasing.
	assert.Equal(t, 16, release+apply)
	assert.InDelta(t, 8, release, 1)
}

func TestBrakes_ABSGates(t *testing.T) {
	tests := []struct {
		name string
		mut  func(*config.BrakeConfig)
		in   Input
	}{
		{"disabled", func(c *config.BrakeConfig) { c.ABSEnabled = false }, Input{Pedal: 1, Speed: 20}},
		{"light pedal", nil, Input{Pedal: 0.05, Speed: 20}},
		{"standstill", nil, Input{Pedal: 1, Speed: 0.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBrakes(tt.mut)
			tt.in.Slip = [4]float64{1, 1, 1, 1}
			b.Update(tt.in, dt)
			assert.False(t, b.Wheels[0].ABSActive)
		})
	}
}

func TestBrakes_ABSReleasesBelowMinSpeed(t *testing.T) {
	b := newBrakes(nil)
	full := 80000 * 0.65 / 2
	in := Input{Pedal: 1, Slip: [4]float64{1, 1, 1, 1}}

	for _, speed := range []float64{20, 10, 2.1} {
		in.Speed = speed
		b.Update(in, dt)
		require.True(t, b.Wheels[0].ABSActive, "speed %v", speed)
		require.NotEqual(t, ABSOff, b.Wheels[0].ABSPhase)
		require.Less(t, b.Wheels[0].Force, full)
	}

	in.Speed = 1.9
	b.Update(in, dt)
	for i, w := range b.Wheels {
		assert.False(t, w.ABSActive, "wheel %d", i)
		assert.Equal(t, ABSOff, w.ABSPhase, "wheel %d", i)
	}
	assert.InEpsilon(t, full, b.Wheels[0].Force, 1e-3, "full pressure below the gate")
	assert.InEpsilon(t, b.Wheels[0].Force, b.Wheels[1].Force, 1e-9)

	in.Speed = 2.5
	b.Update(in, dt)
	require.True(t, b.Wheels[0].ABSActive)
	assert.Equal(t, ABSRelease, b.Wheels[0].ABSPhase, "re-arming starts a fresh cycle")
}

func TestBrakes_SetABSClearsState(t *testing.T) {
	b := newBrakes(nil)
	b.Update(Input{Pedal: 1, Speed: 20, Slip: [4]float64{1, 1, 1, 1}}, dt)
	require.True(t, b.Wheels[3].ABSActive)

	b.SetABS(false)
	assert.False(t, b.Wheels[3].ABSActive)
	assert.Equal(t, "off", b.Wheels[3].ABSPhase.String())

	b.Reset()
	assert.True(t, b.ABSEnabled, "reset restores the configured mode")
	assert.Equal(t, 20.0, b.Wheels[3].Temperature)
}
