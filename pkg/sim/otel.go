// pkg/sim/otel.go
package sim

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/opd-ai/go-vdc/pkg/sim"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

type instruments struct {
	steps    metric.Int64Counter
	dropped  metric.Int64Counter
	degraded metric.Int64Counter
	substeps metric.Int64Histogram
}

func newInstruments() (*instruments, error) {
	m := meter()
	var (
		in  instruments
		err error
	)
	in.steps, err = m.Int64Counter(
		"vdc.steps",
		metric.WithDescription("Simulation steps executed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating steps counter: %w", err)
	}
	in.dropped, err = m.Int64Counter(
		"vdc.steps.dropped",
		metric.WithDescription("Whole steps of backlog left in the accumulator by the substep cap"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}
	in.degraded, err = m.Int64Counter(
		"vdc.steps.degraded",
		metric.WithDescription("Steps that ended with the vehicle degraded"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating degraded counter: %w", err)
	}
	in.substeps, err = m.Int64Histogram(
		"vdc.frame.substeps",
		metric.WithDescription("Substeps run per frame"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating substeps histogram: %w", err)
	}
	return &in, nil
}
