// pkg/event/event.go
package event

import (
	"sync"
)

// Type represents the type of event
type Type string

// Vehicle event types
const (
	VehicleDegraded Type = "vehicle_degraded"
	VehicleHalted   Type = "vehicle_halted"
	VehicleReset    Type = "vehicle_reset"
	EngineStalled   Type = "engine_stalled"
	GearChanged     Type = "gear_changed"
	ABSEngaged      Type = "abs_engaged"
	TirePunctured   Type = "tire_punctured"
	Collision       Type = "collision"
)

// VehicleTypes lists every event type a vehicle publishes.
var VehicleTypes = []Type{
	VehicleDegraded, VehicleHalted, VehicleReset, EngineStalled,
	GearChanged, ABSEngaged, TirePunctured, Collision,
}

// Event is the base interface for all events
type Event interface {
	GetType() Type
	GetSource() interface{}
}

// BaseEvent provides common functionality for all events
type BaseEvent struct {
	EventType Type
	Source    interface{}
	Tick      uint64
}

// GetType returns the event type
func (e *BaseEvent) GetType() Type {
	return e.EventType
}

// GetSource returns the event source
func (e *BaseEvent) GetSource() interface{} {
	return e.Source
}

// Handler is a function that handles events
type Handler func(Event)

type subscriber struct {
	id      uint64
	handler Handler
}

// Subscription identifies a registered handler so it can be cancelled.
type Subscription struct {
	ID        uint64
	bus       *Bus
	eventType Type
}

// Cancel removes the handler from the bus. Cancelling twice is a no-op.
func (s *Subscription) Cancel() {
	if s == nil || s.bus == nil {
		return
	}
	s.bus.unsubscribe(s.eventType, s.ID)
	s.bus = nil
}

// Bus manages event subscriptions and dispatching. Handlers run
// synchronously on the publishing goroutine, in subscription order.
type Bus struct {
	handlers map[Type][]subscriber
	nextID   uint64
	mu       sync.RWMutex
}

// NewEventBus creates a new event bus
func NewEventBus() *Bus {
	return &Bus{
		handlers: make(map[Type][]subscriber),
		nextID:   1,
	}
}

// Subscribe registers a handler for a specific event type
func (b *Bus) Subscribe(eventType Type, handler Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.handlers[eventType] = append(b.handlers[eventType], subscriber{id: id, handler: handler})
	return &Subscription{ID: id, bus: b, eventType: eventType}
}

func (b *Bus) unsubscribe(eventType Type, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.handlers[eventType]
	for i, s := range subs {
		if s.id == id {
			b.handlers[eventType] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(b.handlers[eventType]) == 0 {
		delete(b.handlers, eventType)
	}
}

// Publish sends an event to all subscribed handlers. A nil bus drops
// the event.
func (b *Bus) Publish(event Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	subs := b.handlers[event.GetType()]
	b.mu.RUnlock()

	for _, s := range subs {
		s.handler(event)
	}
}

// Specific event implementations

// VehicleEvent is emitted for whole-vehicle state changes
// (degraded, halted, reset).
type VehicleEvent struct {
	BaseEvent
	Reason   string
	Failures int
}

// NewVehicleEvent creates a new vehicle event
func NewVehicleEvent(eventType Type, source interface{}, tick uint64, reason string, failures int) *VehicleEvent {
	return &VehicleEvent{
		BaseEvent: BaseEvent{
			EventType: eventType,
			Source:    source,
			Tick:      tick,
		},
		Reason:   reason,
		Failures: failures,
	}
}

// PowertrainEvent reports stalls and completed gear changes.
type PowertrainEvent struct {
	BaseEvent
	RPM      float64
	FromGear int
	ToGear   int
}

// NewStallEvent creates an engine stall event
func NewStallEvent(source interface{}, tick uint64, rpm float64, gear int) *PowertrainEvent {
	return &PowertrainEvent{
		BaseEvent: BaseEvent{
			EventType: EngineStalled,
			Source:    source,
			Tick:      tick,
		},
		RPM:      rpm,
		FromGear: gear,
		ToGear:   gear,
	}
}

// NewGearEvent creates a gear change event
func NewGearEvent(source interface{}, tick uint64, rpm float64, from, to int) *PowertrainEvent {
	return &PowertrainEvent{
		BaseEvent: BaseEvent{
			EventType: GearChanged,
			Source:    source,
			Tick:      tick,
		},
		RPM:      rpm,
		FromGear: from,
		ToGear:   to,
	}
}

// WheelEvent reports something that happened at one corner.
type WheelEvent struct {
	BaseEvent
	Corner string
	Slip   float64
}

// NewWheelEvent creates a new wheel event
func NewWheelEvent(eventType Type, source interface{}, tick uint64, corner string, slip float64) *WheelEvent {
	return &WheelEvent{
		BaseEvent: BaseEvent{
			EventType: eventType,
			Source:    source,
			Tick:      tick,
		},
		Corner: corner,
		Slip:   slip,
	}
}

// CollisionEvent contains information about an obstacle contact
type CollisionEvent struct {
	BaseEvent
	Impulse float64
	Point   [3]float64
	Normal  [3]float64
}

// NewCollisionEvent creates a new collision event
func NewCollisionEvent(source interface{}, tick uint64, impulse float64, point, normal [3]float64) *CollisionEvent {
	return &CollisionEvent{
		BaseEvent: BaseEvent{
			EventType: Collision,
			Source:    source,
			Tick:      tick,
		},
		Impulse: impulse,
		Point:   point,
		Normal:  normal,
	}
}
