// pkg/health/health.go

// Package health serves liveness and readiness probes for a running
// simulation.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/opd-ai/go-vdc/pkg/telemetry"
)

// HealthCheck is one component probe.
type HealthCheck interface {
	Name() string
	// Check returns an error when the component is unhealthy.
	Check(ctx context.Context) error
}

// HealthStatus is the aggregated result of every registered check.
type HealthStatus struct {
	Status string                     `json:"status"`
	Checks map[string]ComponentHealth `json:"checks"`
}

// ComponentHealth is the result of one check.
type ComponentHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthChecker holds the registered checks.
type HealthChecker struct {
	checks map[string]HealthCheck
	mu     sync.RWMutex
}

// NewHealthChecker creates an empty checker.
func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		checks: make(map[string]HealthCheck),
	}
}

// AddCheck registers check, replacing any check with the same name.
func (hc *HealthChecker) AddCheck(check HealthCheck) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.checks[check.Name()] = check
}

// RemoveCheck removes a check by name.
func (hc *HealthChecker) RemoveCheck(name string) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	delete(hc.checks, name)
}

// Names returns the registered check names in order.
func (hc *HealthChecker) Names() []string {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	names := make([]string, 0, len(hc.checks))
	for name := range hc.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CheckHealth runs every check. The overall status is "healthy" only if
// all of them pass.
func (hc *HealthChecker) CheckHealth(ctx context.Context) HealthStatus {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	status := HealthStatus{
		Status: "healthy",
		Checks: make(map[string]ComponentHealth, len(hc.checks)),
	}
	for name, check := range hc.checks {
		if err := check.Check(ctx); err != nil {
			status.Status = "unhealthy"
			status.Checks[name] = ComponentHealth{Status: "unhealthy", Message: err.Error()}
			continue
		}
		status.Checks[name] = ComponentHealth{Status: "healthy"}
	}
	return status
}

// LivenessHandler answers 200 while the process can serve requests.
func (hc *HealthChecker) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ReadinessHandler runs every check with a 5 s budget and answers 503 if
// any fails.
func (hc *HealthChecker) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	health := hc.CheckHealth(ctx)
	code := http.StatusOK
	if health.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, health)
}

// FrameHandler serves the latest telemetry frame, or 404 before the first.
func FrameHandler(latest func() (telemetry.Frame, bool)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, ok := latest()
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"status": "no frame yet"})
			return
		}
		writeJSON(w, http.StatusOK, f)
	}
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

// VehicleHealthCheck fails once the vehicle has halted.
type VehicleHealthCheck struct {
	latest func() (telemetry.Frame, bool)
}

// NewVehicleHealthCheck reads the vehicle through its latest frame.
func NewVehicleHealthCheck(latest func() (telemetry.Frame, bool)) *VehicleHealthCheck {
	return &VehicleHealthCheck{latest: latest}
}

func (c *VehicleHealthCheck) Name() string {
	return "vehicle"
}

func (c *VehicleHealthCheck) Check(ctx context.Context) error {
	f, ok := c.latest()
	switch {
	case !ok:
		return errors.New("no frame recorded yet")
	case f.Halted:
		return fmt.Errorf("vehicle halted at tick %d", f.Tick)
	}
	return nil
}

// StepperHealthCheck fails when the step counter has not moved for longer
// than Stale.
type StepperHealthCheck struct {
	steps func() uint64
	stale time.Duration
	now   func() time.Time

	mu    sync.Mutex
	last  uint64
	moved time.Time
}

// NewStepperHealthCheck watches a step counter.
func NewStepperHealthCheck(stale time.Duration, steps func() uint64) *StepperHealthCheck {
	return &StepperHealthCheck{
		steps: steps,
		stale: stale,
		now:   time.Now,
		moved: time.Now(),
	}
}

func (c *StepperHealthCheck) Name() string {
	return "stepper"
}

func (c *StepperHealthCheck) Check(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if n := c.steps(); n != c.last {
		c.last, c.moved = n, now
		return nil
	}
	if idle := now.Sub(c.moved); idle > c.stale {
		return fmt.Errorf("no step for %s at step %d", idle.Round(time.Millisecond), c.last)
	}
	return nil
}

// MemoryHealthCheck fails when heap usage exceeds a limit.
type MemoryHealthCheck struct {
	maxMemoryMB    int64
	getMemoryUsage func() int64
}

// NewMemoryHealthCheck creates a memory check with a limit in MB.
func NewMemoryHealthCheck(maxMemoryMB int64, getMemoryUsage func() int64) *MemoryHealthCheck {
	return &MemoryHealthCheck{
		maxMemoryMB:    maxMemoryMB,
		getMemoryUsage: getMemoryUsage,
	}
}

func (m *MemoryHealthCheck) Name() string {
	return "memory"
}

func (m *MemoryHealthCheck) Check(ctx context.Context) error {
	if currentMB := m.getMemoryUsage(); currentMB > m.maxMemoryMB {
		return fmt.Errorf("memory usage %dMB exceeds limit %dMB", currentMB, m.maxMemoryMB)
	}
	return nil
}
