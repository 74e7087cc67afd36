// pkg/steering/steering_test.go
package steering

import (
	"math"
	"testing"

	"github.com/opd-ai/go-vdc/pkg/config"
)

func newRack() *Steering {
	cfg := config.DefaultVehicleConfig()
	return New(cfg.Steering, cfg.Wheelbase, cfg.TrackWidth)
}

func settle(s *Steering, input, speed float64) State {
	var st State
	for i := 0; i < 240; i++ {
		st = s.Update(input, speed, 0, 1.0/120)
	}
	return st
}

func TestSteering_SpeedFactor(t *testing.T) {
	s := newRack()

	tests := []struct {
		speed float64
		want  float64
	}{
		{0, 1},
		{10, 1 - 0.004*36},
		{20, 1 - 0.004*72},
		{200, 0.35},
		{-20, 1 - 0.004*72},
	}

	for _, tt := range tests {
		if got := s.SpeedFactor(tt.speed); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("SpeedFactor(%v): expected %f, got %f", tt.speed, tt.want, got)
		}
	}
}

func TestSteering_RateLimit(t *testing.T) {
	s := newRack()
	dt := 1.0 / 120
	st := s.Update(1, 0, 0, dt)

	if want := 2 * dt; math.Abs(st.Center-want) > 1e-12 {
		t.Errorf("Expected center %f after one step, got %f", want, st.Center)
	}
}

func TestSteering_AckermannInnerWheelTurnsMore(t *testing.T) {
	s := newRack()
	st := settle(s, 0.5, 0)

	if math.Abs(st.Center-0.3) > 1e-9 {
		t.Fatalf("Expected center 0.3, got %f", st.Center)
	}
	if !(st.Right > st.Center && st.Left < st.Center) {
		t.Errorf("Expected right (inner) > center > left, got left=%f right=%f", st.Left, st.Right)
	}

	// Full Ackermann wheels share a turn center.
	cfg := config.DefaultVehicleConfig()
	cfg.Steering.Ackermann = 1
	full := New(cfg.Steering, cfg.Wheelbase, cfg.TrackWidth)
	fs := settle(full, 0.5, 0)
	rInner := cfg.Wheelbase / math.Tan(fs.Right)
	rOuter := cfg.Wheelbase / math.Tan(fs.Left)
	if math.Abs((rOuter-rInner)-cfg.TrackWidth) > 1e-9 {
		t.Errorf("Expected turn radii to differ by the track width, got %f", rOuter-rInner)
	}
}

func TestSteering_Mirror(t *testing.T) {
	a, b := newRack(), newRack()
	for i := 0; i < 300; i++ {
		in := 0.8 * math.Sin(float64(i)*0.03)
		sa := a.Update(in, 15, 40, 1.0/120)
		sb := b.Update(-in, 15, -40, 1.0/120)
		if sa.Left != -sb.Right || sa.Right != -sb.Left || sa.Center != -sb.Center {
			t.Fatalf("Step %d: mirrored angles differ: %+v vs %+v", i, sa, sb)
		}
	}
}

func TestSteering_SelfReturn(t *testing.T) {
	s := newRack()
	settle(s, 1, 20)
	held := s.Center

	s.Update(0, 20, 50, 1.0/120)
	if !(s.Center < held) {
		t.Errorf("Expected the wheel to return toward center, got %f from %f", s.Center, held)
	}

	st := settle(s, 0, 20)
	if st.Center != 0 || st.Left != 0 || st.Right != 0 {
		t.Errorf("Expected centered wheels, got %+v", st)
	}
}

func TestSteering_ClampedToMaxAngle(t *testing.T) {
	s := newRack()
	st := settle(s, 1, 0)
	if st.Right > 0.6+1e-12 || st.Left < -0.6-1e-12 || st.Center > 0.6+1e-12 {
		t.Errorf("Expected angles within max, got %+v", st)
	}
	if math.Abs(s.WheelAngle()-0.6*14) > 1e-9 {
		t.Errorf("Expected steering wheel angle %f, got %f", 0.6*14, s.WheelAngle())
	}

	s.Reset()
	if s.State != (State{}) {
		t.Errorf("Expected reset state, got %+v", s.State)
	}
}
