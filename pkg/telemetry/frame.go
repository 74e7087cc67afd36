// pkg/telemetry/frame.go

// Package telemetry carries the end-of-tick vehicle frame to its sinks:
// an in-memory recorder, CSV, InfluxDB and PNG charts.
package telemetry

// Wheel is the per-corner part of a frame.
type Wheel struct {
	Corner             string  `json:"corner"`
	SlipRatio          float64 `json:"slipRatio"`
	SlipAngle          float64 `json:"slipAngle"`
	Fx                 float64 `json:"fx"`
	Fy                 float64 `json:"fy"`
	Load               float64 `json:"load"`
	AngularVelocity    float64 `json:"angularVelocity"`
	SurfaceTemperature float64 `json:"surfaceTemperature"`
	CoreTemperature    float64 `json:"coreTemperature"`
	Wear               float64 `json:"wear"`
	Grip               float64 `json:"grip"`
	OnGround           bool    `json:"onGround"`
	Punctured          bool    `json:"punctured"`
	Surface            string  `json:"surface"`
	Compression        float64 `json:"compression"`
	BrakeTemperature   float64 `json:"brakeTemperature"`
	BrakeTorque        float64 `json:"brakeTorque"`
	ABSPhase           string  `json:"absPhase"`
}

// Frame is an immutable copy of the vehicle state at the end of one tick.
// Vectors are world-frame; Orientation is (w, x, y, z).
type Frame struct {
	Tick  uint64  `json:"tick"`
	Time  float64 `json:"time"`
	Alpha float64 `json:"alpha"`

	Position        [3]float64 `json:"position"`
	Orientation     [4]float64 `json:"orientation"`
	Velocity        [3]float64 `json:"velocity"`
	AngularVelocity [3]float64 `json:"angularVelocity"`
	Speed           float64    `json:"speed"`
	Heading         float64    `json:"heading"`
	YawRate         float64    `json:"yawRate"`
	LongitudinalG   float64    `json:"longitudinalG"`
	LateralG        float64    `json:"lateralG"`
	Pitch           float64    `json:"pitch"`
	Roll            float64    `json:"roll"`
	Heave           float64    `json:"heave"`
	Steer           float64    `json:"steer"`

	RPM               float64 `json:"rpm"`
	EngineTorque      float64 `json:"engineTorque"`
	EnginePower       float64 `json:"enginePower"`
	EngineTemperature float64 `json:"engineTemperature"`
	EngineRunning     bool    `json:"engineRunning"`
	Boost             float64 `json:"boost"`
	Throttle          float64 `json:"throttle"`

	Gear         int     `json:"gear"`
	Clutch       float64 `json:"clutch"`
	ClutchLocked bool    `json:"clutchLocked"`
	ShiftState   string  `json:"shiftState"`

	Drag           float64 `json:"drag"`
	DownforceFront float64 `json:"downforceFront"`
	DownforceRear  float64 `json:"downforceRear"`

	Wheels [4]Wheel `json:"wheels"`

	Asleep   bool `json:"asleep"`
	Degraded bool `json:"degraded"`
	Halted   bool `json:"halted"`
}

// Channels lists the scalar series a frame exposes by name, in the column
// order used by CSV export.
var Channels = []string{
	"time", "speed", "heading", "yawRate", "longitudinalG", "lateralG",
	"pitch", "roll", "heave", "steer",
	"rpm", "engineTorque", "enginePower", "engineTemperature", "boost", "throttle",
	"gear", "clutch", "drag", "downforceFront", "downforceRear",
	"x", "y", "z",
}

// wheelChannels are repeated per corner with the corner as prefix.
var wheelChannels = []string{
	"slipRatio", "slipAngle", "fx", "fy", "load", "angularVelocity",
	"surfaceTemperature", "coreTemperature", "wear", "grip", "brakeTemperature",
}

// Value returns the named scalar channel. Per-wheel channels are addressed
// as "<corner>.<channel>", for example "rl.slipRatio".
func (f *Frame) Value(name string) (float64, bool) {
	for i := range f.Wheels {
		w := &f.Wheels[i]
		if len(name) > len(w.Corner)+1 && name[:len(w.Corner)] == w.Corner && name[len(w.Corner)] == '.' {
			return w.value(name[len(w.Corner)+1:])
		}
	}
	switch name {
	case "time":
		return f.Time, true
	case "speed":
		return f.Speed, true
	case "heading":
		return f.Heading, true
	case "yawRate":
		return f.YawRate, true
	case "longitudinalG":
		return f.LongitudinalG, true
	case "lateralG":
		return f.LateralG, true
	case "pitch":
		return f.Pitch, true
	case "roll":
		return f.Roll, true
	case "heave":
		return f.Heave, true
	case "steer":
		return f.Steer, true
	case "rpm":
		return f.RPM, true
	case "engineTorque":
		return f.EngineTorque, true
	case "enginePower":
		return f.EnginePower, true
	case "engineTemperature":
		return f.EngineTemperature, true
	case "boost":
		return f.Boost, true
	case "throttle":
		return f.Throttle, true
	case "gear":
		return float64(f.Gear), true
	case "clutch":
		return f.Clutch, true
	case "drag":
		return f.Drag, true
	case "downforceFront":
		return f.DownforceFront, true
	case "downforceRear":
		return f.DownforceRear, true
	case "x":
		return f.Position[0], true
	case "y":
		return f.Position[1], true
	case "z":
		return f.Position[2], true
	}
	return 0, false
}

func (w *Wheel) value(name string) (float64, bool) {
	switch name {
	case "slipRatio":
		return w.SlipRatio, true
	case "slipAngle":
		return w.SlipAngle, true
	case "fx":
		return w.Fx, true
	case "fy":
		return w.Fy, true
	case "load":
		return w.Load, true
	case "angularVelocity":
		return w.AngularVelocity, true
	case "surfaceTemperature":
		return w.SurfaceTemperature, true
	case "coreTemperature":
		return w.CoreTemperature, true
	case "wear":
		return w.Wear, true
	case "grip":
		return w.Grip, true
	case "brakeTemperature":
		return w.BrakeTemperature, true
	}
	return 0, false
}
