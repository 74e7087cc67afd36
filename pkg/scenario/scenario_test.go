// pkg/scenario/scenario_test.go
package scenario

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/go-vdc/pkg/config"
	"github.com/opd-ai/go-vdc/pkg/event"
	"github.com/opd-ai/go-vdc/pkg/logging"
	"github.com/opd-ai/go-vdc/pkg/suspension"
	"github.com/opd-ai/go-vdc/pkg/telemetry"
)

func run(t *testing.T, name string) *Result {
	t.Helper()
	s, err := Lookup(name)
	require.NoError(t, err)
	r := &Runner{Config: *config.DefaultConfig()}
	res, err := r.Run(context.Background(), s)
	require.NoError(t, err)
	require.NotEmpty(t, res.Frames)
	for _, f := range res.Frames {
		require.False(t, f.Degraded, "%s degraded at tick %d", name, f.Tick)
	}
	return res
}

func long(t *testing.T) {
	if testing.Short() {
		t.Skip("long scenario")
	}
}

func span(frames []telemetry.Frame, from, to float64, channel string) (lo, hi, mean float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	n := 0
	for i := range frames {
		if frames[i].Time < from || frames[i].Time > to {
			continue
		}
		v, _ := frames[i].Value(channel)
		lo, hi = math.Min(lo, v), math.Max(hi, v)
		mean += v
		n++
	}
	if n > 0 {
		mean /= float64(n)
	}
	return lo, hi, mean
}

func TestLookup(t *testing.T) {
	for _, name := range Names() {
		s, err := Lookup(name)
		require.NoError(t, err)
		assert.Equal(t, name, s.Name)
		assert.Positive(t, s.Duration)
	}
	_, err := Lookup("moon-landing")
	assert.Error(t, err)
	assert.Contains(t, Names(), "skidpad-ice")
}

func TestRunner_CarriesRunID(t *testing.T) {
	t.Setenv(logging.LevelEnv, "INFO")
	var buf bytes.Buffer
	ctx := logging.WithRunID(context.Background(), "run-42")
	r := &Runner{Config: *config.DefaultConfig(), Logger: logging.NewLoggerTo(&buf)}
	res, err := r.Run(ctx, Scenario{Name: "short", Duration: 0.1})
	require.NoError(t, err)
	assert.Equal(t, "run-42", res.RunID)
	assert.Len(t, res.Frames, 13)
	assert.Equal(t, uint64(12), res.Stats.Steps)

	var msgs []string
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec), line)
		assert.Equal(t, "run-42", rec["run_id"], line)
		assert.Equal(t, "short", rec["scenario"], line)
		msgs = append(msgs, rec["msg"].(string))
	}
	assert.Contains(t, msgs, "Scenario started")
	assert.Contains(t, msgs, "Scenario finished")
}

func TestRunner_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := &Runner{Config: *config.DefaultConfig()}
	_, err := r.Run(ctx, Scenario{Name: "cancelled", Duration: 1})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScenario_Idle(t *testing.T) {
	res := run(t, "idle")
	start, end := res.Frames[0], res.Final()
	assert.InDelta(t, 5.0, end.Time, 1e-9)

	var d float64
	for i := range start.Position {
		d += (end.Position[i] - start.Position[i]) * (end.Position[i] - start.Position[i])
	}
	assert.LessOrEqual(t, math.Sqrt(d), 1e-3)

	idle := config.DefaultVehicleConfig().Engine.IdleRPM
	for _, f := range res.Frames {
		require.InDelta(t, idle, f.RPM, 5, "tick %d", f.Tick)
	}
}

func TestScenario_StraightLineAcceleration(t *testing.T) {
	long(t)
	res := run(t, "acceleration")
	end := res.Final()

	assert.InDelta(t, 10.0, end.Time, 1e-9)
	assert.GreaterOrEqual(t, end.Speed, 35.0)
	assert.LessOrEqual(t, end.Speed, 45.0)
	assert.GreaterOrEqual(t, end.Gear, 3)
	assert.GreaterOrEqual(t, end.EngineTemperature, 85.0)
	assert.GreaterOrEqual(t, res.Events[event.GearChanged], 2)
	assert.Zero(t, res.Events[event.EngineStalled])

	// Gears only ever go up.
	for i := 1; i < len(res.Frames); i++ {
		require.GreaterOrEqual(t, res.Frames[i].Gear, res.Frames[i-1].Gear)
	}
}

func TestScenario_HardBraking(t *testing.T) {
	long(t)
	off := run(t, "brake")
	on := run(t, "brake-abs")

	t.Run("abs off", func(t *testing.T) {
		peak := 0.0
		for _, f := range off.Frames {
			if f.Time > 2 {
				break
			}
			for _, w := range f.Wheels {
				peak = math.Max(peak, math.Abs(w.SlipRatio))
			}
		}
		assert.Greater(t, peak, 0.5)

		at := off.At(2)
		assert.Less(t, at.Speed, 15.0)
		w := at.Wheels
		assert.Greater(t, w[suspension.FL].BrakeTemperature, w[suspension.RL].BrakeTemperature)
		assert.Greater(t, w[suspension.FR].BrakeTemperature, w[suspension.RR].BrakeTemperature)
		assert.Zero(t, off.Events[event.ABSEngaged])
	})

	t.Run("abs on", func(t *testing.T) {
		// A wheel may exceed the threshold for at most one modulation
		// period at a time while ABS is armed.
		cfg := config.DefaultVehicleConfig().Brakes
		limit := int(math.Ceil(120 / cfg.ABSFrequencyHz))
		for i := range on.Frames[0].Wheels {
			streak, worst := 0, 0
			for _, f := range on.Frames {
				if f.Speed < 5 {
					break
				}
				if math.Abs(f.Wheels[i].SlipRatio) > cfg.ABSThreshold {
					streak++
				} else {
					streak = 0
				}
				worst = max(worst, streak)
			}
			assert.LessOrEqual(t, worst, limit, suspension.CornerNames[i])
		}
		assert.Equal(t, 1, on.Events[event.ABSEngaged])
	})

	t.Run("stopping distance", func(t *testing.T) {
		require.Less(t, off.Final().Speed, stoppedSpeed)
		require.Less(t, on.Final().Speed, stoppedSpeed)
		base := off.Distance()
		assert.InDelta(t, base, on.Distance(), 0.1*base)
	})
}

func TestScenario_SkidPadSteadyState(t *testing.T) {
	long(t)
	res := run(t, "skidpad")

	for _, ch := range []string{"yawRate", "lateralG", "speed"} {
		lo, hi, mean := span(res.Frames, 3, 6, ch)
		assert.LessOrEqual(t, hi-lo, 0.1*math.Abs(mean)+0.01, ch)
	}
	_, _, speed := span(res.Frames, 3, 6, "speed")
	assert.InDelta(t, SkidPadSpeed, speed, 1)
	_, _, lat := span(res.Frames, 3, 6, "lateralG")
	assert.Greater(t, math.Abs(lat), 0.3)

	// Positive steer turns right, so the left wheels are outside.
	end := res.Final()
	w := end.Wheels
	outer := w[suspension.FL].Load + w[suspension.RL].Load
	inner := w[suspension.FR].Load + w[suspension.RR].Load
	assert.Greater(t, outer, 1.3*inner)
	assert.Greater(t, end.Position[2], 0.0)
}

func TestScenario_IcePatch(t *testing.T) {
	long(t)
	ice := run(t, "skidpad-ice")
	dry := run(t, "skidpad")

	for _, f := range ice.Frames[1:] {
		for _, w := range f.Wheels {
			require.LessOrEqual(t, w.Grip, 0.15, "tick %d %s", f.Tick, w.Corner)
			require.Equal(t, "ice", w.Surface)
		}
	}

	a, b := ice.At(3).Position, dry.At(3).Position
	assert.Greater(t, math.Hypot(a[0]-b[0], a[2]-b[2]), 5.0, "ice run should leave the dry line")

	rearFirst := false
	for _, f := range ice.Frames {
		if f.Time > 1 {
			break
		}
		w := f.Wheels
		front := math.Abs(w[suspension.FL].SlipAngle) + math.Abs(w[suspension.FR].SlipAngle)
		rear := math.Abs(w[suspension.RL].SlipAngle) + math.Abs(w[suspension.RR].SlipAngle)
		if rear > front && rear > 0.02 {
			rearFirst = true
			break
		}
	}
	assert.True(t, rearFirst, "rear slip angle should overtake the front within 1 s")
}

func TestScenario_CoastDown(t *testing.T) {
	long(t)
	res := run(t, "coastdown")
	mass := config.DefaultVehicleConfig().Mass
	energy := func(f telemetry.Frame) float64 {
		v := f.Velocity
		return 0.5 * mass * (v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
	}
	prev := energy(res.Frames[0])
	for _, f := range res.Frames[1:] {
		e := energy(f)
		require.Less(t, e, prev, "tick %d", f.Tick)
		prev = e
	}
	assert.Less(t, res.Final().Speed, 25.0)
}
