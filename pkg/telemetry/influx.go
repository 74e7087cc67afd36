// pkg/telemetry/influx.go
package telemetry

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by InfluxExporter.
const (
	VehicleMeasurement = "vehicle"
	WheelMeasurement   = "wheel"
)

// InfluxExporter writes frames to an InfluxDB v2 bucket. Each frame becomes
// one vehicle point and one wheel point per corner, tagged with the run ID.
type InfluxExporter struct {
	Client influxdb2.Client
	Writer influxdb2_api.WriteAPIBlocking
	RunID  string
	Start  time.Time
}

// NewInfluxExporter connects to the server at url. Frame times are offset
// from start to give point timestamps.
func NewInfluxExporter(url, token, org, bucket, runID string, start time.Time) *InfluxExporter {
	client := influxdb2.NewClientWithOptions(url, token,
		influxdb2.DefaultOptions().
			SetBatchSize(2500).
			SetPrecision(time.Microsecond))
	return &InfluxExporter{
		Client: client,
		Writer: client.WriteAPIBlocking(org, bucket),
		RunID:  runID,
		Start:  start,
	}
}

// Write sends frames in one blocking request.
func (e *InfluxExporter) Write(ctx context.Context, frames []Frame) error {
	if len(frames) == 0 {
		return nil
	}
	points := make([]*influxdb2_write.Point, 0, len(frames)*5)
	for i := range frames {
		points = append(points, Points(e.RunID, e.Start, &frames[i])...)
	}
	if err := e.Writer.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("writing %d frames to influxdb: %w", len(frames), err)
	}
	return nil
}

// Close releases the client.
func (e *InfluxExporter) Close() {
	e.Client.Close()
}

// Points converts one frame into line-protocol points.
func Points(runID string, start time.Time, f *Frame) []*influxdb2_write.Point {
	ts := start.Add(time.Duration(f.Time * float64(time.Second)))
	points := make([]*influxdb2_write.Point, 0, 1+len(f.Wheels))

	p := influxdb2_write.NewPointWithMeasurement(VehicleMeasurement).
		AddTag("run", runID).
		AddField("tick", int64(f.Tick)).
		AddField("gear", int64(f.Gear)).
		AddField("clutchLocked", f.ClutchLocked).
		AddField("degraded", f.Degraded).
		AddField("shift", f.ShiftState).
		SetTime(ts)
	for _, name := range Channels {
		if name == "time" || name == "gear" {
			continue
		}
		v, _ := f.Value(name)
		p.AddField(name, v)
	}
	points = append(points, p)

	for i := range f.Wheels {
		w := &f.Wheels[i]
		wp := influxdb2_write.NewPointWithMeasurement(WheelMeasurement).
			AddTag("run", runID).
			AddTag("corner", w.Corner).
			AddTag("surface", w.Surface).
			AddField("onGround", w.OnGround).
			AddField("punctured", w.Punctured).
			AddField("abs", w.ABSPhase).
			SetTime(ts)
		for _, name := range wheelChannels {
			v, _ := w.value(name)
			wp.AddField(name, v)
		}
		points = append(points, wp)
	}
	return points
}
