// pkg/powertrain/drivetrain_test.go
package powertrain

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/opd-ai/go-vdc/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDrivetrain(mutate func(*config.VehicleConfig)) (*Drivetrain, *Engine) {
	cfg := config.DefaultVehicleConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	eng := NewEngine(cfg.Engine, cfg.Environment.AmbientTemperature)
	return NewDrivetrain(cfg.Drivetrain, eng), eng
}

func TestGearbox_Ratios(t *testing.T) {
	g := NewGearbox([]float64{3.2, 0, 3.3, 2.1}, 0.25)

	assert.Equal(t, 2, g.Forward())
	assert.Equal(t, -3.2, g.RatioOf(Reverse), "reverse is negative even when configured positive")
	assert.Zero(t, g.RatioOf(Neutral))
	assert.Equal(t, 3.3, g.RatioOf(1))
	assert.Equal(t, 2.1, g.RatioOf(9), "out of range clamps to top gear")
	assert.Equal(t, -3.2, g.RatioOf(-5))
}

func TestGearbox_ShiftStateMachine(t *testing.T) {
	g := NewGearbox(config.DefaultVehicleConfig().Drivetrain.Ratios, 0.25)
	g.Set(1)

	require.True(t, g.Request(1))
	assert.Equal(t, Shifting, g.Phase)
	assert.Zero(t, g.Ratio(), "no torque while shifting")
	assert.False(t, g.Request(1), "requests are ignored mid-shift")

	var engaged int
	var minCmd = 1.0
	for i := 0; i < 40; i++ {
		minCmd = math.Min(minCmd, g.ClutchCommand())
		if g.Update(dt) {
			engaged = i + 1
			break
		}
	}
	assert.InDelta(t, 30, engaged, 1, "0.25 s at 120 Hz")
	assert.Equal(t, 2, g.Gear)
	assert.Equal(t, ShiftIdle, g.Phase)
	assert.Less(t, minCmd, 0.05)
	assert.Equal(t, 1.0, g.ClutchCommand())
	assert.Equal(t, 2.1, g.Ratio())
}

func TestGearbox_ReverseAndNeutralAreTargets(t *testing.T) {
	g := NewGearbox(config.DefaultVehicleConfig().Drivetrain.Ratios, 0.1)
	require.True(t, g.Request(-1))
	for !g.Update(dt) {
	}
	assert.Equal(t, Reverse, g.Gear)
	assert.False(t, g.Request(-1), "nothing below reverse")

	require.True(t, g.Request(1))
	for !g.Update(dt) {
	}
	assert.Equal(t, Neutral, g.Gear)
}

func TestGearbox_ClutchRamp(t *testing.T) {
	g := NewGearbox([]float64{-3, 0, 3, 2}, 1)
	g.Set(1)
	g.Request(1)

	g.Timer = 0.75
	assert.InDelta(t, 0.5, g.ClutchCommand(), 1e-12)
	g.Timer = 0.5
	assert.InDelta(t, 0, g.ClutchCommand(), 1e-12)
	g.Timer = 0.25
	assert.InDelta(t, 0.5, g.ClutchCommand(), 1e-12)
}

func TestDifferential_Split(t *testing.T) {
	base := config.DefaultVehicleConfig().Drivetrain.Differential

	open := base
	open.Kind = "open"
	l, r := NewDifferential(open).Split(400, 10, 30, true, 1.2, dt)
	assert.Equal(t, 200.0, l)
	assert.Equal(t, 200.0, r)

	lsd := NewDifferential(base)
	l, r = lsd.Split(400, 10, 30, true, 1.2, dt)
	assert.InDelta(t, 400, l+r, 1e-9, "locking torque is internal")
	assert.Greater(t, l, r, "torque moves to the slower wheel")
	assert.InDelta(t, 0.4*400, l-200, 1e-9, "capped by accel lock ratio")

	l, r = lsd.Split(400, 20, 20, true, 1.2, dt)
	assert.Equal(t, l, r, "no lock without speed difference")

	// Preload is a floor below the ratio-based lock.
	l, _ = lsd.Split(0, 10, 12, false, 1.2, dt)
	assert.InDelta(t, 40, l, 1e-9)

	locked := base
	locked.Kind = "locked"
	ld := NewDifferential(locked)
	l, r = ld.Split(0, 10, 30, true, 1.2, dt)
	wl := 10 + l/1.2*dt
	wr := 30 + r/1.2*dt
	assert.InDelta(t, wl, wr, 1e-9, "locked differential equalizes wheel speeds")
}

func TestDifferential_Mirror(t *testing.T) {
	for _, kind := range []string{"open", "lsd", "locked"} {
		cfg := config.DefaultVehicleConfig().Drivetrain.Differential
		cfg.Kind = kind
		d := NewDifferential(cfg)
		l1, r1 := d.Split(321, 11.5, 13.25, true, 1.2, dt)
		l2, r2 := d.Split(321, 13.25, 11.5, true, 1.2, dt)
		assert.Equal(t, l1, r2, kind)
		assert.Equal(t, r1, l2, kind)
	}
}

func TestDrivetrain_DiffKindFollowsState(t *testing.T) {
	d, _ := newDrivetrain(nil)
	require.Equal(t, LimitedSlip, d.DiffKind())
	require.Equal(t, LimitedSlip, d.Diff)

	d.SetDiffKind(Locked)
	assert.Equal(t, Locked, d.DiffKind())
	assert.Equal(t, Locked, d.Diff)

	data, err := json.Marshal(d.DrivetrainState)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"diff":"locked"`)

	var s DrivetrainState
	require.NoError(t, json.Unmarshal(data, &s))
	other, _ := newDrivetrain(nil)
	other.SetState(s)
	assert.Equal(t, Locked, other.DiffKind())
	assert.Equal(t, d.DrivetrainState, other.DrivetrainState)

	d.Reset()
	assert.Equal(t, LimitedSlip, d.DiffKind(), "reset restores the configured kind")
	assert.Equal(t, LimitedSlip, d.Diff)

	var k DiffKind
	assert.Error(t, k.UnmarshalText([]byte("viscous")))
	_, err = DiffKind(9).MarshalText()
	assert.Error(t, err)
}

func TestParse(t *testing.T) {
	k, err := ParseDiffKind("LSD")
	require.NoError(t, err)
	assert.Equal(t, LimitedSlip, k)
	_, err = ParseDiffKind("viscous")
	assert.Error(t, err)

	l, err := ParseLayout(" AWD ")
	require.NoError(t, err)
	assert.Equal(t, AWD, l)
	_, err = ParseLayout("mid")
	assert.Error(t, err)
}

func TestDrivetrain_NeutralDecouples(t *testing.T) {
	d, eng := newDrivetrain(nil)
	eng.Produce(1, 0, dt)
	out := d.Update(DriveInput{Throttle: 1, WheelInertia: 1.2}, dt)

	assert.Equal(t, [4]float64{}, out.Torque)
	assert.Greater(t, eng.RPM, 800.0, "engine revs freely")
	assert.False(t, d.ClutchLocked)
}

func TestDrivetrain_LaunchSlipsThenLocks(t *testing.T) {
	d, eng := newDrivetrain(nil)
	d.Gearbox.Set(1)

	var wheels [4]float64
	locked := false
	for i := 0; i < 600 && !locked; i++ {
		eng.Produce(0.6, d.Clutch, dt)
		out := d.Update(DriveInput{Throttle: 0.6, WheelSpeed: wheels, WheelInertia: 1.2, LoadInertia: 41.2}, dt)
		require.False(t, out.Stalled)
		assert.Zero(t, out.Torque[0])
		assert.Zero(t, out.Torque[1])
		assert.GreaterOrEqual(t, out.Torque[2], 0.0)

		// Wheels spin up against a road load.
		for w := 2; w < 4; w++ {
			wheels[w] += (out.Torque[w] - 150) / (1.2 + out.Inertia[w] + 40) * dt
			wheels[w] = math.Max(0, wheels[w])
		}
		d.PostStep(wheels)
		locked = d.ClutchLocked
	}
	require.True(t, locked, "clutch should lock after launch")
	assert.InDelta(t, wheels[2]*d.TotalRatio()*RadPerSecToRPM, eng.RPM, 1e-6, "locked crank follows the wheels")
}

func TestDrivetrain_LockedReflectsInertia(t *testing.T) {
	d, eng := newDrivetrain(nil)
	d.Gearbox.Set(2)
	eng.RPM = 3000
	wheel := eng.AngularVelocity() / (2.1 * 3.7)
	d.ClutchLocked = true

	eng.Produce(1, 1, dt)
	out := d.Update(DriveInput{Throttle: 1, WheelSpeed: [4]float64{wheel, wheel, wheel, wheel}, WheelInertia: 1.2}, dt)

	require.True(t, d.ClutchLocked)
	ratio := 2.1 * 3.7
	assert.InDelta(t, 0.22*ratio*ratio/2, out.Inertia[2], 1e-9)
	assert.InDelta(t, eng.Net()*ratio*0.9, out.Torque[2]+out.Torque[3], 1e-9)
	assert.Equal(t, out.Torque[2], out.Torque[3])
}

func TestDrivetrain_AWDSplitsByBias(t *testing.T) {
	d, eng := newDrivetrain(func(c *config.VehicleConfig) {
		c.Drivetrain.Layout = "awd"
		c.Drivetrain.Differential.Kind = "open"
	})
	d.Gearbox.Set(3)
	eng.RPM = 4000
	wheel := eng.AngularVelocity() / (1.55 * 3.7)
	d.ClutchLocked = true

	eng.Produce(1, 1, dt)
	out := d.Update(DriveInput{Throttle: 1, WheelSpeed: [4]float64{wheel, wheel, wheel, wheel}, WheelInertia: 1.2}, dt)

	front := out.Torque[0] + out.Torque[1]
	rear := out.Torque[2] + out.Torque[3]
	assert.InDelta(t, 0.4, front/(front+rear), 1e-9)
	assert.True(t, d.Driven(0) && d.Driven(3))
}

func TestDrivetrain_FWDLeavesRearUnpowered(t *testing.T) {
	d, eng := newDrivetrain(func(c *config.VehicleConfig) { c.Drivetrain.Layout = "fwd" })
	d.Gearbox.Set(2)
	eng.RPM = 3000
	d.ClutchLocked = true
	wheel := eng.AngularVelocity() / (2.1 * 3.7)

	eng.Produce(1, 1, dt)
	out := d.Update(DriveInput{Throttle: 1, WheelSpeed: [4]float64{wheel, wheel, wheel, wheel}, WheelInertia: 1.2}, dt)
	assert.Zero(t, out.Torque[2])
	assert.Zero(t, out.Torque[3])
	assert.Greater(t, out.Torque[0], 0.0)
	assert.False(t, d.Driven(2))
}

func TestDrivetrain_ShiftReportsGearChange(t *testing.T) {
	d, eng := newDrivetrain(nil)
	d.Gearbox.Set(1)

	var shifted DriveOutput
	for i := 0; i < 60; i++ {
		eng.Produce(0, d.Clutch, dt)
		out := d.Update(DriveInput{ShiftUp: i == 0, WheelInertia: 1.2}, dt)
		if out.Shifted {
			shifted = out
		}
	}
	assert.True(t, shifted.Shifted)
	assert.Equal(t, 1, shifted.FromGear)
	assert.Equal(t, 2, shifted.ToGear)
}

func TestDrivetrain_AutomaticUpshift(t *testing.T) {
	d, eng := newDrivetrain(func(c *config.VehicleConfig) { c.Drivetrain.Automatic = true })
	d.Gearbox.Set(2)
	eng.RPM = 6600

	eng.Produce(1, 1, dt)
	d.Update(DriveInput{Throttle: 1, WheelInertia: 1.2}, dt)
	assert.Equal(t, Shifting, d.Gearbox.Phase)
	assert.Equal(t, 3, d.Gearbox.Target)
}

func TestDrivetrain_GearTopSpeed(t *testing.T) {
	d, _ := newDrivetrain(nil)
	want := 7200 / RadPerSecToRPM / (0.82 * 3.7) * 0.33
	assert.InDelta(t, want, d.GearTopSpeed(0.33), 1e-9)
}
