// pkg/powertrain/engine_test.go
package powertrain

import (
	"testing"

	"github.com/opd-ai/go-vdc/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dt = 1.0 / 120

func newEngine() *Engine {
	cfg := config.DefaultVehicleConfig()
	return NewEngine(cfg.Engine, cfg.Environment.AmbientTemperature)
}

func TestTorqueCurve_Sample(t *testing.T) {
	c := TorqueCurve{{RPM: 1000, Multiplier: 0.5}, {RPM: 3000, Multiplier: 1}, {RPM: 5000, Multiplier: 0.8}}

	tests := []struct {
		rpm  float64
		want float64
	}{
		{0, 0.5},
		{1000, 0.5},
		{2000, 0.75},
		{3000, 1},
		{4000, 0.9},
		{5000, 0.8},
		{9000, 0.8},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, c.Sample(tt.rpm), 1e-12, "rpm %v", tt.rpm)
	}

	rpm, m := c.Peak()
	assert.Equal(t, 3000.0, rpm)
	assert.Equal(t, 1.0, m)
	assert.Zero(t, TorqueCurve(nil).Sample(2000))
}

func TestEngine_IdleIsEquilibrium(t *testing.T) {
	e := newEngine()
	for i := 0; i < 1200; i++ {
		e.Produce(0, 0, dt)
		e.Integrate(0, 0, dt)
	}
	assert.InDelta(t, 800, e.RPM, 5)
	assert.True(t, e.Running)
}

func TestEngine_GovernorRecoversIdle(t *testing.T) {
	e := newEngine()
	e.RPM = 500
	for i := 0; i < 600; i++ {
		e.Produce(0, 0, dt)
		e.Integrate(0, 0, dt)
	}
	assert.InDelta(t, 800, e.RPM, 5)
}

func TestEngine_TorqueMonotoneInThrottle(t *testing.T) {
	prev := -1.0
	for u := 0.1; u <= 1.0; u += 0.1 {
		e := newEngine()
		e.RPM = 4000
		e.Produce(u, 1, dt)
		assert.Greater(t, e.Torque, prev, "throttle %v", u)
		prev = e.Torque
	}
}

func TestEngine_RevLimiterCut(t *testing.T) {
	e := newEngine()
	e.RPM = 7100
	e.Produce(1, 1, dt)
	full := e.Torque
	require.False(t, e.LimiterActive)

	e.RPM = 7200
	e.Produce(1, 1, dt)
	assert.True(t, e.LimiterActive)
	assert.LessOrEqual(t, e.Torque, 0.3*full, "cut must drop torque by at least 70%")

	// The cut lasts 50 ms, then torque returns.
	e.RPM = 7000
	for i := 0; i < 6; i++ {
		e.Produce(1, 1, dt)
	}
	assert.False(t, e.LimiterActive)
	e.Produce(1, 1, dt)
	assert.Greater(t, e.Torque, 0.5*full)
}

func TestEngine_StallAndRestart(t *testing.T) {
	e := newEngine()
	e.Produce(0, 1, dt)
	stalled := e.Sync(200, 1)
	assert.True(t, stalled)
	assert.False(t, e.Running)
	assert.Zero(t, e.RPM)

	e.Produce(1, 1, dt)
	assert.False(t, e.Running, "no restart with the clutch engaged")
	assert.Zero(t, e.Torque)

	e.Produce(0.5, 0, dt)
	assert.True(t, e.Running)
	assert.Equal(t, 800.0, e.RPM)
}

func TestEngine_NoStallWithClutchOpen(t *testing.T) {
	e := newEngine()
	e.Produce(0, 0, dt)
	assert.False(t, e.Sync(200, 0.2))
	assert.True(t, e.Running)
}

func TestEngine_TurboSpool(t *testing.T) {
	e := newEngine()
	e.RPM = 6000
	for i := 0; i < 120; i++ {
		e.Produce(1, 1, dt)
	}
	spooled := e.Boost
	assert.Greater(t, spooled, 0.8)

	e.Produce(0, 1, dt)
	assert.Less(t, e.Boost, spooled)
}

func TestEngine_Thermal(t *testing.T) {
	e := newEngine()
	e.RPM = 6000
	for i := 0; i < 1200; i++ {
		e.Produce(1, 1, dt)
	}
	assert.Greater(t, e.Temperature, 90.0)
	assert.Less(t, e.Temperature, 115.0, "thermostat holds the operating range")
	assert.Zero(t, e.Damage)

	hot := newEngine()
	hot.Temperature = 140
	hot.Produce(0, 0, dt)
	assert.Greater(t, hot.Damage, 0.0)
}

func TestEngine_RPMNeverNegative(t *testing.T) {
	e := newEngine()
	e.Running = false
	for i := 0; i < 600; i++ {
		e.Produce(0, 1, dt)
		e.Integrate(0, 1, dt)
		require.GreaterOrEqual(t, e.RPM, 0.0)
	}
	assert.Zero(t, e.RPM)
}

func TestEngine_PeakPower(t *testing.T) {
	e := newEngine()
	p, rpm := e.PeakPower()
	assert.Greater(t, p, 150e3)
	assert.Less(t, p, 400e3)
	assert.Greater(t, rpm, 4000.0)
}
