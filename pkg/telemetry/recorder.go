// pkg/telemetry/recorder.go
package telemetry

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"sync"
)

// Sink receives one frame per completed tick.
type Sink interface {
	Record(f Frame)
}

// Recorder keeps the most recent frames in a bounded ring buffer.
// It is safe for concurrent use.
type Recorder struct {
	mu     sync.RWMutex
	frames []Frame
	next   int
	full   bool
}

// NewRecorder creates a recorder holding at most capacity frames.
func NewRecorder(capacity int) *Recorder {
	if capacity < 1 {
		capacity = 1
	}
	return &Recorder{frames: make([]Frame, capacity)}
}

// Record appends a frame, overwriting the oldest once the buffer is full.
func (r *Recorder) Record(f Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.frames[r.next] = f
	r.next++
	if r.next == len(r.frames) {
		r.next = 0
		r.full = true
	}
}

// Len returns the number of frames held.
func (r *Recorder) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.full {
		return len(r.frames)
	}
	return r.next
}

// Frames returns the held frames, oldest first.
func (r *Recorder) Frames() []Frame {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.full {
		return append([]Frame(nil), r.frames[:r.next]...)
	}
	out := make([]Frame, 0, len(r.frames))
	out = append(out, r.frames[r.next:]...)
	return append(out, r.frames[:r.next]...)
}

// Last returns the newest frame.
func (r *Recorder) Last() (Frame, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.full && r.next == 0 {
		return Frame{}, false
	}
	i := r.next - 1
	if i < 0 {
		i = len(r.frames) - 1
	}
	return r.frames[i], true
}

// Series returns one channel over the held frames.
func (r *Recorder) Series(name string) ([]float64, error) {
	frames := r.Frames()
	out := make([]float64, len(frames))
	for i := range frames {
		v, ok := frames[i].Value(name)
		if !ok {
			return nil, fmt.Errorf("unknown channel %q", name)
		}
		out[i] = v
	}
	return out, nil
}

// Reset drops every frame.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next, r.full = 0, false
}

// Columns returns the CSV header: tick, the scalar channels, then the
// per-wheel channels for each corner.
func Columns(corners []string) []string {
	cols := append([]string{"tick"}, Channels...)
	for _, c := range corners {
		for _, ch := range wheelChannels {
			cols = append(cols, c+"."+ch)
		}
	}
	return append(cols, "degraded")
}

// WriteCSV writes frames as CSV with a header row.
func WriteCSV(w io.Writer, frames []Frame) error {
	var corners []string
	if len(frames) > 0 {
		for _, wh := range frames[0].Wheels {
			corners = append(corners, wh.Corner)
		}
	}
	cols := Columns(corners)

	cw := csv.NewWriter(w)
	if err := cw.Write(cols); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	row := make([]string, len(cols))
	for i := range frames {
		f := &frames[i]
		row[0] = strconv.FormatUint(f.Tick, 10)
		for j, name := range cols[1 : len(cols)-1] {
			v, _ := f.Value(name)
			row[j+1] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		row[len(cols)-1] = strconv.FormatBool(f.Degraded)
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing csv row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSV writes the held frames as CSV.
func (r *Recorder) WriteCSV(w io.Writer) error {
	return WriteCSV(w, r.Frames())
}
