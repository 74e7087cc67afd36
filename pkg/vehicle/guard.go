// pkg/vehicle/guard.go
package vehicle

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"github.com/opd-ai/go-vdc/pkg/logging"
)

// errDegenerate is the failure fed to the breaker for a non-finite step.
var errDegenerate = errors.New("non-finite vehicle state")

// guard counts consecutive degenerate steps through a circuit breaker.
// Once the breaker opens the vehicle is halted for good; the breaker
// timeout is never reached because nothing executes through it again.
type guard struct {
	breaker  *gobreaker.CircuitBreaker
	settings gobreaker.Settings
}

func newGuard(ctx context.Context, limit int, logger *logging.Logger) *guard {
	settings := gobreaker.Settings{
		Name:        "vdc-degeneracy",
		MaxRequests: 1,
		Timeout:     24 * time.Hour,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// Trip after limit degenerate steps in a row
			return counts.ConsecutiveFailures >= uint32(limit)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn(ctx, "degeneracy guard state changed",
				"name", name,
				"from", from,
				"to", to,
			)
		},
	}
	return &guard{
		breaker:  gobreaker.NewCircuitBreaker(settings),
		settings: settings,
	}
}

// record feeds one step outcome to the breaker and reports whether it is
// now open.
func (g *guard) record(ok bool) bool {
	_, _ = g.breaker.Execute(func() (interface{}, error) {
		if !ok {
			return nil, errDegenerate
		}
		return nil, nil
	})
	return g.open()
}

func (g *guard) open() bool {
	return g.breaker.State() == gobreaker.StateOpen
}

// consecutive returns the current run of degenerate steps.
func (g *guard) consecutive() int {
	return int(g.breaker.Counts().ConsecutiveFailures)
}

// replay rebuilds the breaker with n degenerate steps already counted.
func (g *guard) replay(n int) {
	g.breaker = gobreaker.NewCircuitBreaker(g.settings)
	for i := 0; i < n && !g.open(); i++ {
		g.record(false)
	}
}
