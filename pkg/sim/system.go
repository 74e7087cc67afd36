// pkg/sim/system.go
package sim

import (
	"github.com/EngoEngine/ecs"
)

type vehicleEntity struct {
	basic   *ecs.BasicEntity
	stepper *Stepper
	err     error
}

// VehicleSystem advances every added stepper once per world update, in the
// order they were added. A stepper that returns an error is skipped until
// it is removed.
type VehicleSystem struct {
	entities []vehicleEntity
}

// Add registers a stepper under an entity.
func (vs *VehicleSystem) Add(basic *ecs.BasicEntity, s *Stepper) {
	vs.entities = append(vs.entities, vehicleEntity{basic: basic, stepper: s})
}

// Remove satisfies the ecs.System interface
func (vs *VehicleSystem) Remove(basic ecs.BasicEntity) {
	for i, e := range vs.entities {
		if e.basic.ID() == basic.ID() {
			vs.entities = append(vs.entities[:i], vs.entities[i+1:]...)
			return
		}
	}
}

// Update satisfies the ecs.System interface. dt is wall time in seconds.
func (vs *VehicleSystem) Update(dt float32) {
	for i := range vs.entities {
		e := &vs.entities[i]
		if e.err != nil {
			continue
		}
		_, e.err = e.stepper.Advance(float64(dt))
	}
}

// Err returns the error that stopped the entity's stepper, if any.
func (vs *VehicleSystem) Err(basic ecs.BasicEntity) error {
	for _, e := range vs.entities {
		if e.basic.ID() == basic.ID() {
			return e.err
		}
	}
	return nil
}

// Len returns the number of registered steppers.
func (vs *VehicleSystem) Len() int {
	return len(vs.entities)
}
