// pkg/vehicle/snapshot.go
package vehicle

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/opd-ai/go-vdc/pkg/aero"
	"github.com/opd-ai/go-vdc/pkg/brakes"
	"github.com/opd-ai/go-vdc/pkg/input"
	"github.com/opd-ai/go-vdc/pkg/powertrain"
	"github.com/opd-ai/go-vdc/pkg/steering"
	"github.com/opd-ai/go-vdc/pkg/suspension"
	"github.com/opd-ai/go-vdc/pkg/tire"
)

// SnapshotVersion is the layout version written by Snapshot.
const SnapshotVersion = 2

// ErrSnapshotVersion is returned when restoring a snapshot of another
// layout version.
var ErrSnapshotVersion = errors.New("unsupported snapshot version")

// BodyState is the rigid body part of a snapshot. Accumulators are always
// empty between steps and are not stored.
type BodyState struct {
	Position        mgl64.Vec3 `json:"position"`
	Orientation     mgl64.Quat `json:"orientation"`
	Velocity        mgl64.Vec3 `json:"velocity"`
	AngularVelocity mgl64.Vec3 `json:"angularVelocity"`
	Asleep          bool       `json:"asleep"`
	IdleTime        float64    `json:"idleTime"`
}

// Snapshot is the complete mutable state of a vehicle. Restoring it into a
// vehicle built from the same configuration continues the simulation
// exactly where it was taken.
type Snapshot struct {
	Version    int                        `json:"version"`
	Status     Status                     `json:"status"`
	Spawn      Spawn                      `json:"spawn"`
	Body       BodyState                  `json:"body"`
	Input      input.State                `json:"input"`
	Steering   steering.State             `json:"steering"`
	Engine     powertrain.EngineState     `json:"engine"`
	Gearbox    powertrain.GearboxState    `json:"gearbox"`
	Drivetrain powertrain.DrivetrainState `json:"drivetrain"`
	Brakes     brakes.State               `json:"brakes"`
	Suspension suspension.State           `json:"suspension"`
	Tires      [4]tire.Wheel              `json:"tires"`
	Aero       aero.State                 `json:"aero"`
	Feedback   Feedback                   `json:"feedback"`
	RNG        []byte                     `json:"rng"`
}

// Snapshot captures the current state.
func (v *Vehicle) Snapshot() Snapshot {
	b := v.Body
	s := Snapshot{
		Version: SnapshotVersion,
		Status:  v.Status,
		Spawn:   v.spawn,
		Body: BodyState{
			Position:        b.Position,
			Orientation:     b.Orientation,
			Velocity:        b.Velocity,
			AngularVelocity: b.AngularVelocity,
			Asleep:          b.Asleep,
			IdleTime:        b.IdleTime,
		},
		Input:      v.Input.State,
		Steering:   v.Steering.State,
		Engine:     v.Engine.EngineState,
		Gearbox:    v.Drivetrain.Gearbox.GearboxState,
		Drivetrain: v.Drivetrain.DrivetrainState,
		Brakes:     v.Brakes.State,
		Suspension: v.Suspension.State,
		Aero:       v.Aero.State,
		Feedback:   v.feedback,
	}
	for i, t := range v.Tires {
		s.Tires[i] = t.Wheel
	}
	// PCG.MarshalBinary cannot fail.
	s.RNG, _ = v.pcg.MarshalBinary()
	return s
}

// Restore replaces the vehicle state with s. The degeneracy guard is
// rebuilt from the stored failure count.
func (v *Vehicle) Restore(s Snapshot) error {
	if s.Version != SnapshotVersion {
		return fmt.Errorf("snapshot version %d: %w", s.Version, ErrSnapshotVersion)
	}
	if err := v.apply(s); err != nil {
		return err
	}
	v.guard.replay(s.Status.Failures)
	v.good = s
	v.frame = v.buildFrame()
	return nil
}

func (v *Vehicle) apply(s Snapshot) error {
	if len(s.RNG) > 0 {
		if err := v.pcg.UnmarshalBinary(s.RNG); err != nil {
			return fmt.Errorf("restoring random state: %w", err)
		}
	}
	b := v.Body
	b.Position = s.Body.Position
	b.Orientation = s.Body.Orientation
	b.Velocity = s.Body.Velocity
	b.AngularVelocity = s.Body.AngularVelocity
	b.Asleep = s.Body.Asleep
	b.IdleTime = s.Body.IdleTime
	b.ClearAccumulators()

	v.Status = s.Status
	v.spawn = s.Spawn
	v.Input.State = s.Input
	v.Steering.State = s.Steering
	v.Engine.EngineState = s.Engine
	v.Drivetrain.Gearbox.GearboxState = s.Gearbox
	v.Drivetrain.SetState(s.Drivetrain)
	v.Brakes.State = s.Brakes
	v.Suspension.State = s.Suspension
	v.Aero.State = s.Aero
	v.feedback = s.Feedback
	for i, t := range v.Tires {
		t.Wheel = s.Tires[i]
	}
	return nil
}
