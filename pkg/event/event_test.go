// pkg/event/event_test.go
package event

import (
	"sync"
	"testing"
)

// TestNewEventBus tests the creation of a new event bus
func TestNewEventBus_Creation_ReturnsInitializedBus(t *testing.T) {
	bus := NewEventBus()

	if bus == nil {
		t.Fatal("NewEventBus() returned nil")
	}

	if bus.handlers == nil {
		t.Error("handlers map not initialized")
	}

	if bus.nextID != 1 {
		t.Errorf("expected nextID to be 1, got %d", bus.nextID)
	}
}

func TestBaseEvent_GetType_ReturnsCorrectType(t *testing.T) {
	tests := []struct {
		name      string
		eventType Type
		source    interface{}
	}{
		{
			name:      "Degraded event",
			eventType: VehicleDegraded,
			source:    "sedan",
		},
		{
			name:      "Collision event",
			eventType: Collision,
			source:    123,
		},
		{
			name:      "Empty source",
			eventType: VehicleReset,
			source:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := &BaseEvent{
				EventType: tt.eventType,
				Source:    tt.source,
			}

			if event.GetType() != tt.eventType {
				t.Errorf("GetType() = %v, want %v", event.GetType(), tt.eventType)
			}

			if event.GetSource() != tt.source {
				t.Errorf("GetSource() = %v, want %v", event.GetSource(), tt.source)
			}
		})
	}
}

func TestBusSubscribe_MultipleHandlers_AllRegistered(t *testing.T) {
	bus := NewEventBus()

	sub1 := bus.Subscribe(GearChanged, func(e Event) {})
	sub2 := bus.Subscribe(GearChanged, func(e Event) {})
	_ = bus.Subscribe(ABSEngaged, func(e Event) {})

	if sub1.ID == 0 {
		t.Error("subscription ID should not be 0")
	}
	if sub1.ID == sub2.ID {
		t.Error("subscriptions should have unique IDs")
	}

	bus.mu.RLock()
	gearHandlers := bus.handlers[GearChanged]
	absHandlers := bus.handlers[ABSEngaged]
	bus.mu.RUnlock()

	if len(gearHandlers) != 2 {
		t.Errorf("expected 2 handlers for GearChanged, got %d", len(gearHandlers))
	}
	if len(absHandlers) != 1 {
		t.Errorf("expected 1 handler for ABSEngaged, got %d", len(absHandlers))
	}
}

func TestBusPublish_WithSubscribers_CallsHandlersInOrder(t *testing.T) {
	bus := NewEventBus()
	var order []int

	bus.Subscribe(EngineStalled, func(e Event) { order = append(order, 1) })
	bus.Subscribe(EngineStalled, func(e Event) { order = append(order, 2) })

	bus.Publish(NewStallEvent("sedan", 10, 250, 1))

	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Errorf("expected handlers called in order [1 2], got %v", order)
	}
}

func TestBusPublish_NoSubscribers_NoError(t *testing.T) {
	bus := NewEventBus()
	bus.Publish(&BaseEvent{EventType: VehicleReset, Source: "test"})

	var nilBus *Bus
	nilBus.Publish(&BaseEvent{EventType: VehicleReset, Source: "test"})
}

func TestBusPublish_WrongEventType_HandlersNotCalled(t *testing.T) {
	bus := NewEventBus()
	handlerCalled := false

	bus.Subscribe(TirePunctured, func(e Event) { handlerCalled = true })
	bus.Publish(&BaseEvent{EventType: Collision, Source: "test"})

	if handlerCalled {
		t.Error("handler should not have been called for different event type")
	}
}

func TestSubscriptionCancel_ValidSubscription_RemovesHandler(t *testing.T) {
	bus := NewEventBus()
	var calls []string

	keep := bus.Subscribe(VehicleHalted, func(e Event) { calls = append(calls, "keep") })
	drop := bus.Subscribe(VehicleHalted, func(e Event) { calls = append(calls, "drop") })

	drop.Cancel()
	drop.Cancel()

	bus.Publish(NewVehicleEvent(VehicleHalted, "sedan", 99, "non-finite state", 8))

	if len(calls) != 1 || calls[0] != "keep" {
		t.Errorf("expected only the kept handler to run, got %v", calls)
	}

	keep.Cancel()
	bus.mu.RLock()
	_, ok := bus.handlers[VehicleHalted]
	bus.mu.RUnlock()
	if ok {
		t.Error("expected empty handler list to be removed")
	}
}

func TestBusSubscribe_ConcurrentAccess_ThreadSafe(t *testing.T) {
	bus := NewEventBus()
	var wg sync.WaitGroup
	handlerCount := 0
	var mu sync.Mutex

	handler := func(e Event) {
		mu.Lock()
		handlerCount++
		mu.Unlock()
	}

	numGoroutines := 10
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			bus.Subscribe(Collision, handler)
		}()
	}
	wg.Wait()

	event := NewCollisionEvent("sedan", 1, 500, [3]float64{1, 0, 0}, [3]float64{-1, 0, 0})

	wg.Add(3)
	for i := 0; i < 3; i++ {
		go func() {
			defer wg.Done()
			bus.Publish(event)
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if handlerCount != numGoroutines*3 {
		t.Errorf("expected %d handler calls, got %d", numGoroutines*3, handlerCount)
	}
}

func TestEventConstructors(t *testing.T) {
	gear := NewGearEvent("sedan", 42, 6800, 2, 3)
	if gear.GetType() != GearChanged {
		t.Errorf("expected GearChanged, got %v", gear.GetType())
	}
	if gear.FromGear != 2 || gear.ToGear != 3 {
		t.Errorf("expected 2->3, got %d->%d", gear.FromGear, gear.ToGear)
	}
	if gear.Tick != 42 {
		t.Errorf("expected tick 42, got %d", gear.Tick)
	}

	wheel := NewWheelEvent(ABSEngaged, "sedan", 7, "FL", 0.25)
	if wheel.Corner != "FL" || wheel.Slip != 0.25 {
		t.Errorf("unexpected wheel event %+v", wheel)
	}

	degraded := NewVehicleEvent(VehicleDegraded, "sedan", 3, "NaN body velocity", 1)
	if degraded.Reason != "NaN body velocity" || degraded.Failures != 1 {
		t.Errorf("unexpected vehicle event %+v", degraded)
	}

	hit := NewCollisionEvent("sedan", 5, 1200, [3]float64{1, 2, 3}, [3]float64{0, 0, 1})
	if hit.Impulse != 1200 || hit.Point[2] != 3 || hit.Normal[2] != 1 {
		t.Errorf("unexpected collision event %+v", hit)
	}
}
