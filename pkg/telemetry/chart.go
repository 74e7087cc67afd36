// pkg/telemetry/chart.go
package telemetry

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// Chart describes one PNG line chart of frame channels against time.
type Chart struct {
	Title    string
	YLabel   string
	Channels []string
	Width    vg.Length
	Height   vg.Length
}

// DefaultCharts are the charts written by the headless runner.
var DefaultCharts = map[string]Chart{
	"speed.png":  {Title: "Speed", YLabel: "m/s", Channels: []string{"speed"}},
	"rpm.png":    {Title: "Engine speed", YLabel: "rpm", Channels: []string{"rpm"}},
	"gear.png":   {Title: "Gear", YLabel: "gear", Channels: []string{"gear"}},
	"slip.png":   {Title: "Slip ratio", YLabel: "κ", Channels: []string{"fl.slipRatio", "fr.slipRatio", "rl.slipRatio", "rr.slipRatio"}},
	"angle.png":  {Title: "Slip angle", YLabel: "rad", Channels: []string{"fl.slipAngle", "fr.slipAngle", "rl.slipAngle", "rr.slipAngle"}},
	"load.png":   {Title: "Wheel load", YLabel: "N", Channels: []string{"fl.load", "fr.load", "rl.load", "rr.load"}},
	"accel.png":  {Title: "Acceleration", YLabel: "g", Channels: []string{"longitudinalG", "lateralG"}},
	"brakes.png": {Title: "Brake temperature", YLabel: "°C", Channels: []string{"fl.brakeTemperature", "rl.brakeTemperature"}},
}

func (c Chart) plot(frames []Frame) (*plot.Plot, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("chart %q: no frames", c.Title)
	}
	if len(c.Channels) == 0 {
		return nil, fmt.Errorf("chart %q: no channels", c.Title)
	}

	p := plot.New()
	p.Title.Text = c.Title
	p.X.Label.Text = "time (s)"
	p.Y.Label.Text = c.YLabel
	p.Add(plotter.NewGrid())

	for i, name := range c.Channels {
		pts := make(plotter.XYs, len(frames))
		for j := range frames {
			v, ok := frames[j].Value(name)
			if !ok {
				return nil, fmt.Errorf("chart %q: unknown channel %q", c.Title, name)
			}
			pts[j].X = frames[j].Time
			pts[j].Y = v
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("chart %q: %w", c.Title, err)
		}
		line.LineStyle.Width = vg.Points(1.5)
		line.LineStyle.Color = plotutil.Color(i)
		p.Add(line)
		if len(c.Channels) > 1 {
			p.Legend.Add(name, line)
		}
	}
	p.Legend.Top = true
	return p, nil
}

// Render draws the chart as PNG to w.
func (c Chart) Render(w io.Writer, frames []Frame) error {
	p, err := c.plot(frames)
	if err != nil {
		return err
	}
	width, height := c.Width, c.Height
	if width == 0 {
		width = 8 * vg.Inch
	}
	if height == 0 {
		height = 4 * vg.Inch
	}

	canvas := vgimg.NewWith(vgimg.UseWH(width, height), vgimg.UseDPI(96))
	p.Draw(draw.New(canvas))
	png := vgimg.PngCanvas{Canvas: canvas}
	if _, err := png.WriteTo(w); err != nil {
		return fmt.Errorf("chart %q: writing png: %w", c.Title, err)
	}
	return nil
}

// RenderChart writes the chart to a PNG file, creating its directory.
func RenderChart(path string, c Chart, frames []Frame) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cannot create directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cannot create png: %w", err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	if err := c.Render(bw, frames); err != nil {
		return err
	}
	return bw.Flush()
}
