// pkg/config/config.go
package config

// Config is the root document loaded from file and environment.
type Config struct {
	Vehicle VehicleConfig `json:"vehicle" mapstructure:"vehicle"`
	Sim     SimConfig     `json:"sim" mapstructure:"sim"`
	Storage StorageConfig `json:"storage" mapstructure:"storage"`
}

// SimConfig contains the fixed-step scheduler settings.
type SimConfig struct {
	Timestep       float64 `json:"timestep" mapstructure:"timestep"`
	MaxSubsteps    int     `json:"maxSubsteps" mapstructure:"maxSubsteps"`
	AccumulatorCap float64 `json:"accumulatorCap" mapstructure:"accumulatorCap"`
	HaltAfter      int     `json:"haltAfter" mapstructure:"haltAfter"`
	Seed           uint64  `json:"seed" mapstructure:"seed"`
}

// StorageConfig points the snapshot and run store at a database.
type StorageConfig struct {
	DSN          string `json:"dsn" mapstructure:"dsn"`
	InfluxURL    string `json:"influxURL" mapstructure:"influxURL"`
	InfluxOrg    string `json:"influxOrg" mapstructure:"influxOrg"`
	InfluxBucket string `json:"influxBucket" mapstructure:"influxBucket"`
}

// VehicleConfig is the immutable parameter record of one vehicle.
type VehicleConfig struct {
	Name                  string             `json:"name" mapstructure:"name"`
	Mass                  float64            `json:"mass" mapstructure:"mass"`
	Inertia               Inertia            `json:"inertia" mapstructure:"inertia"`
	Wheelbase             float64            `json:"wheelbase" mapstructure:"wheelbase"`
	TrackWidth            float64            `json:"trackWidth" mapstructure:"trackWidth"`
	CGHeight              float64            `json:"cgHeight" mapstructure:"cgHeight"`
	WeightDistribution    float64            `json:"weightDistribution" mapstructure:"weightDistribution"`
	FrontalArea           float64            `json:"frontalArea" mapstructure:"frontalArea"`
	DragCoefficient       float64            `json:"dragCoefficient" mapstructure:"dragCoefficient"`
	LiftCoefficient       float64            `json:"liftCoefficient" mapstructure:"liftCoefficient"`
	DownforceDistribution float64            `json:"downforceDistribution" mapstructure:"downforceDistribution"`
	Damping               DampingConfig      `json:"damping" mapstructure:"damping"`
	Sleep                 SleepConfig        `json:"sleep" mapstructure:"sleep"`
	Environment           EnvironmentConfig  `json:"environment" mapstructure:"environment"`
	Aero                  AeroConfig         `json:"aero" mapstructure:"aero"`
	Engine                EngineConfig       `json:"engine" mapstructure:"engine"`
	Drivetrain            DrivetrainConfig   `json:"drivetrain" mapstructure:"drivetrain"`
	Brakes                BrakeConfig        `json:"brakes" mapstructure:"brakes"`
	Steering              SteeringConfig     `json:"steering" mapstructure:"steering"`
	Suspension            SuspensionConfig   `json:"suspension" mapstructure:"suspension"`
	Tire                  TireConfig         `json:"tire" mapstructure:"tire"`
	Collision             CollisionConfig    `json:"collision" mapstructure:"collision"`
}

// Inertia holds the principal moments about the body axes:
// X forward (roll), Y up (yaw), Z right (pitch).
type Inertia struct {
	Ixx float64 `json:"ixx" mapstructure:"ixx"`
	Iyy float64 `json:"iyy" mapstructure:"iyy"`
	Izz float64 `json:"izz" mapstructure:"izz"`
}

// DampingConfig contains the rigid body velocity damping per second.
type DampingConfig struct {
	Linear  float64 `json:"linear" mapstructure:"linear"`
	Angular float64 `json:"angular" mapstructure:"angular"`
}

// SleepConfig controls when a resting body stops integrating.
type SleepConfig struct {
	Velocity  float64 `json:"velocity" mapstructure:"velocity"`
	Time      float64 `json:"time" mapstructure:"time"`
	WakeForce float64 `json:"wakeForce" mapstructure:"wakeForce"`
}

// EnvironmentConfig describes the world the vehicle lives in.
type EnvironmentConfig struct {
	Gravity            float64 `json:"gravity" mapstructure:"gravity"`
	AmbientTemperature float64 `json:"ambientTemperature" mapstructure:"ambientTemperature"`
}

// AeroConfig contains the aerodynamic parameters beyond the body coefficients.
type AeroConfig struct {
	AirDensity             float64    `json:"airDensity" mapstructure:"airDensity"`
	SideArea               float64    `json:"sideArea" mapstructure:"sideArea"`
	SideForceCoefficient   float64    `json:"sideForceCoefficient" mapstructure:"sideForceCoefficient"`
	YawMomentCoefficient   float64    `json:"yawMomentCoefficient" mapstructure:"yawMomentCoefficient"`
	GroundEffectHeight     float64    `json:"groundEffectHeight" mapstructure:"groundEffectHeight"`
	GroundEffectMultiplier float64    `json:"groundEffectMultiplier" mapstructure:"groundEffectMultiplier"`
	GroundEffectMinHeight  float64    `json:"groundEffectMinHeight" mapstructure:"groundEffectMinHeight"`
	FloorHeight            float64    `json:"floorHeight" mapstructure:"floorHeight"`
	Altitude               float64    `json:"altitude" mapstructure:"altitude"`
	Temperature            float64    `json:"temperature" mapstructure:"temperature"`
	Wind                   WindConfig `json:"wind" mapstructure:"wind"`
}

// WindConfig is a constant wind in the ground plane. Direction is the
// heading the air moves toward, radians from world +X toward +Z.
type WindConfig struct {
	Speed     float64 `json:"speed" mapstructure:"speed"`
	Direction float64 `json:"direction" mapstructure:"direction"`
}

// CurvePoint is one sample of the normalized torque curve.
type CurvePoint struct {
	RPM        float64 `json:"rpm" mapstructure:"rpm"`
	Multiplier float64 `json:"multiplier" mapstructure:"multiplier"`
}

// EngineConfig contains engine parameters. An empty TorqueCurve is built
// from IdleRPM, MaxTorqueRPM and RevLimiter; a given curve must peak at
// MaxTorqueRPM.
type EngineConfig struct {
	MaxTorque             float64      `json:"maxTorque" mapstructure:"maxTorque"`
	MaxTorqueRPM          float64      `json:"maxTorqueRPM" mapstructure:"maxTorqueRPM"`
	TorqueCurve           []CurvePoint `json:"torqueCurve" mapstructure:"torqueCurve"`
	IdleRPM               float64      `json:"idleRPM" mapstructure:"idleRPM"`
	Redline               float64      `json:"redline" mapstructure:"redline"`
	RevLimiter            float64      `json:"revLimiter" mapstructure:"revLimiter"`
	Inertia               float64      `json:"inertia" mapstructure:"inertia"`
	Friction              float64      `json:"friction" mapstructure:"friction"`
	StallRPM              float64      `json:"stallRPM" mapstructure:"stallRPM"`
	StartTemperature      float64      `json:"startTemperature" mapstructure:"startTemperature"`
	ThermostatTemperature float64      `json:"thermostatTemperature" mapstructure:"thermostatTemperature"`
	OverheatTemperature   float64      `json:"overheatTemperature" mapstructure:"overheatTemperature"`
	HeatRate              float64      `json:"heatRate" mapstructure:"heatRate"`
	IdleHeatRate          float64      `json:"idleHeatRate" mapstructure:"idleHeatRate"`
	CoolingRate           float64      `json:"coolingRate" mapstructure:"coolingRate"`
	DamageRate            float64      `json:"damageRate" mapstructure:"damageRate"`
	Turbo                 TurboConfig  `json:"turbo" mapstructure:"turbo"`
}

// Curve returns the torque table, or a three-point curve through idle,
// MaxTorqueRPM and the limiter when none is configured.
func (e EngineConfig) Curve() []CurvePoint {
	if len(e.TorqueCurve) > 0 {
		return e.TorqueCurve
	}
	return []CurvePoint{
		{RPM: e.IdleRPM, Multiplier: 0.55},
		{RPM: e.MaxTorqueRPM, Multiplier: 1},
		{RPM: e.RevLimiter, Multiplier: 0.75},
	}
}

// TurboConfig describes forced induction. Boost of zero disables it.
type TurboConfig struct {
	Boost     float64 `json:"boost" mapstructure:"boost"`
	Lag       float64 `json:"lag" mapstructure:"lag"`
	SpoolRate float64 `json:"spoolRate" mapstructure:"spoolRate"`
}

// DrivetrainConfig contains clutch, gearbox and differential parameters.
// Ratios are indexed [reverse, neutral, first, second, ...].
type DrivetrainConfig struct {
	Ratios           []float64          `json:"ratios" mapstructure:"ratios"`
	FinalDrive       float64            `json:"finalDrive" mapstructure:"finalDrive"`
	Efficiency       float64            `json:"efficiency" mapstructure:"efficiency"`
	ShiftTimeSeconds float64            `json:"shiftTimeSeconds" mapstructure:"shiftTimeSeconds"`
	Differential     DifferentialConfig `json:"differential" mapstructure:"differential"`
	Layout           string             `json:"layout" mapstructure:"layout"`
	FrontBias        float64            `json:"frontBias" mapstructure:"frontBias"`
	ClutchMaxTorque  float64            `json:"clutchMaxTorque" mapstructure:"clutchMaxTorque"`
	ClutchSlipSpeed  float64            `json:"clutchSlipSpeed" mapstructure:"clutchSlipSpeed"`
	LaunchRPM        float64            `json:"launchRPM" mapstructure:"launchRPM"`
	AutoClutch       bool               `json:"autoClutch" mapstructure:"autoClutch"`
	Automatic        bool               `json:"automatic" mapstructure:"automatic"`
	UpshiftRPM       float64            `json:"upshiftRPM" mapstructure:"upshiftRPM"`
	DownshiftRPM     float64            `json:"downshiftRPM" mapstructure:"downshiftRPM"`
}

// DifferentialConfig selects the axle differential and its locking behavior.
type DifferentialConfig struct {
	Kind          string  `json:"kind" mapstructure:"kind"`
	Preload       float64 `json:"preload" mapstructure:"preload"`
	AccelLock     float64 `json:"accelLock" mapstructure:"accelLock"`
	DecelLock     float64 `json:"decelLock" mapstructure:"decelLock"`
	LockStiffness float64 `json:"lockStiffness" mapstructure:"lockStiffness"`
}

// BrakeConfig contains brake, ABS, and thermal parameters.
type BrakeConfig struct {
	MaxForce        float64 `json:"maxForce" mapstructure:"maxForce"`
	Bias            float64 `json:"bias" mapstructure:"bias"`
	PadFriction     float64 `json:"padFriction" mapstructure:"padFriction"`
	DiscRadius      float64 `json:"discRadius" mapstructure:"discRadius"`
	HandbrakeFactor float64 `json:"handbrakeFactor" mapstructure:"handbrakeFactor"`
	ABSEnabled      bool    `json:"absEnabled" mapstructure:"absEnabled"`
	ABSThreshold    float64 `json:"absThreshold" mapstructure:"absThreshold"`
	ABSRelease      float64 `json:"absRelease" mapstructure:"absRelease"`
	ABSFrequencyHz  float64 `json:"absFrequencyHz" mapstructure:"absFrequencyHz"`
	ABSMinSpeed     float64 `json:"absMinSpeed" mapstructure:"absMinSpeed"`
	FadeStart       float64 `json:"fadeStart" mapstructure:"fadeStart"`
	FadeFull        float64 `json:"fadeFull" mapstructure:"fadeFull"`
	HeatGeneration  float64 `json:"heatGeneration" mapstructure:"heatGeneration"`
	HeatDissipation float64 `json:"heatDissipation" mapstructure:"heatDissipation"`
	WearRate        float64 `json:"wearRate" mapstructure:"wearRate"`
}

// SteeringConfig contains steering geometry and feel.
type SteeringConfig struct {
	MaxAngle             float64 `json:"maxAngle" mapstructure:"maxAngle"`
	Ratio                float64 `json:"ratio" mapstructure:"ratio"`
	SpeedSensitiveFactor float64 `json:"speedSensitiveFactor" mapstructure:"speedSensitiveFactor"`
	MinFactor            float64 `json:"minFactor" mapstructure:"minFactor"`
	Ackermann            float64 `json:"ackermann" mapstructure:"ackermann"`
	ReturnRate           float64 `json:"returnRate" mapstructure:"returnRate"`
	AlignGain            float64 `json:"alignGain" mapstructure:"alignGain"`
	Smoothing            float64 `json:"smoothing" mapstructure:"smoothing"`
	RateLimit            float64 `json:"rateLimit" mapstructure:"rateLimit"`
}

// SuspensionCorner is the suspension setup of one corner. Travel limits are
// relative to the rest position, so MaxTravel-MinTravel is the total stroke.
// Caster tilts the steering axis; a steered wheel gains camber from it.
type SuspensionCorner struct {
	SpringRate         float64 `json:"springRate" mapstructure:"springRate"`
	CompressionDamping float64 `json:"compressionDamping" mapstructure:"compressionDamping"`
	ReboundDamping     float64 `json:"reboundDamping" mapstructure:"reboundDamping"`
	MaxTravel          float64 `json:"maxTravel" mapstructure:"maxTravel"`
	MinTravel          float64 `json:"minTravel" mapstructure:"minTravel"`
	RestPosition       float64 `json:"restPosition" mapstructure:"restPosition"`
	AntiRollStiffness  float64 `json:"antiRollStiffness" mapstructure:"antiRollStiffness"`
	StaticCamber       float64 `json:"staticCamber" mapstructure:"staticCamber"`
	StaticToe          float64 `json:"staticToe" mapstructure:"staticToe"`
	Caster             float64 `json:"caster" mapstructure:"caster"`
}

// Travel returns the total stroke of the corner.
func (c SuspensionCorner) Travel() float64 {
	return c.MaxTravel - c.MinTravel
}

// SuspensionConfig holds one setup per corner.
type SuspensionConfig struct {
	FL SuspensionCorner `json:"fl" mapstructure:"fl"`
	FR SuspensionCorner `json:"fr" mapstructure:"fr"`
	RL SuspensionCorner `json:"rl" mapstructure:"rl"`
	RR SuspensionCorner `json:"rr" mapstructure:"rr"`
}

// Corners returns the setups in FL, FR, RL, RR order.
func (s SuspensionConfig) Corners() [4]SuspensionCorner {
	return [4]SuspensionCorner{s.FL, s.FR, s.RL, s.RR}
}

// Pacejka holds Magic Formula coefficients.
type Pacejka struct {
	B float64 `json:"b" mapstructure:"b"`
	C float64 `json:"c" mapstructure:"c"`
	D float64 `json:"d" mapstructure:"d"`
	E float64 `json:"e" mapstructure:"e"`
}

// TireConfig contains the tire and wheel parameters shared by all corners.
// Zero Inertia means a disc of Mass at Radius. Width sets the contact
// patch width.
type TireConfig struct {
	Radius              float64 `json:"radius" mapstructure:"radius"`
	Width               float64 `json:"width" mapstructure:"width"`
	Mass                float64 `json:"mass" mapstructure:"mass"`
	Inertia             float64 `json:"inertia" mapstructure:"inertia"`
	PacejkaLateral      Pacejka `json:"pacejkaLateral" mapstructure:"pacejkaLateral"`
	PacejkaLongitudinal Pacejka `json:"pacejkaLongitudinal" mapstructure:"pacejkaLongitudinal"`
	SlipAngleReference  float64 `json:"slipAngleReference" mapstructure:"slipAngleReference"`
	LoadSensitivity     float64 `json:"loadSensitivity" mapstructure:"loadSensitivity"`
	RelaxationLong      float64 `json:"relaxationLong" mapstructure:"relaxationLong"`
	RelaxationLat       float64 `json:"relaxationLat" mapstructure:"relaxationLat"`
	RelaxationMinSpeed  float64 `json:"relaxationMinSpeed" mapstructure:"relaxationMinSpeed"`
	PneumaticTrail      float64 `json:"pneumaticTrail" mapstructure:"pneumaticTrail"`
	CamberStiffness     float64 `json:"camberStiffness" mapstructure:"camberStiffness"`
	Pressure            float64 `json:"pressure" mapstructure:"pressure"`
	OptimalPressure     float64 `json:"optimalPressure" mapstructure:"optimalPressure"`
	StartTemperature    float64 `json:"startTemperature" mapstructure:"startTemperature"`
	OptimalTemperature  float64 `json:"optimalTemperature" mapstructure:"optimalTemperature"`
	TemperatureRange    float64 `json:"temperatureRange" mapstructure:"temperatureRange"`
	HeatEfficiency      float64 `json:"heatEfficiency" mapstructure:"heatEfficiency"`
	SurfaceHeatCapacity float64 `json:"surfaceHeatCapacity" mapstructure:"surfaceHeatCapacity"`
	CoreHeatCapacity    float64 `json:"coreHeatCapacity" mapstructure:"coreHeatCapacity"`
	Conduction          float64 `json:"conduction" mapstructure:"conduction"`
	Convection          float64 `json:"convection" mapstructure:"convection"`
	WearRate            float64 `json:"wearRate" mapstructure:"wearRate"`
	PunctureRate        float64 `json:"punctureRate" mapstructure:"punctureRate"`
}

// WheelInertia returns the spin inertia of one wheel.
func (t TireConfig) WheelInertia() float64 {
	if t.Inertia > 0 {
		return t.Inertia
	}
	return 0.5 * t.Mass * t.Radius * t.Radius
}

// CollisionConfig contains the impulse resolver parameters.
type CollisionConfig struct {
	Restitution        float64 `json:"restitution" mapstructure:"restitution"`
	Friction           float64 `json:"friction" mapstructure:"friction"`
	PositionCorrection float64 `json:"positionCorrection" mapstructure:"positionCorrection"`
	ProxyRadius        float64 `json:"proxyRadius" mapstructure:"proxyRadius"`
	Overhang           float64 `json:"overhang" mapstructure:"overhang"`
}

// DefaultConfig returns a mid-size rear-drive sedan on a 120 Hz step.
func DefaultConfig() *Config {
	return &Config{
		Vehicle: DefaultVehicleConfig(),
		Sim:     DefaultSimConfig(),
		Storage: StorageConfig{
			DSN:          "file::memory:?cache=shared",
			InfluxOrg:    "vdc",
			InfluxBucket: "telemetry",
		},
	}
}

// DefaultSimConfig returns the scheduler defaults.
func DefaultSimConfig() SimConfig {
	return SimConfig{
		Timestep:       1.0 / 120.0,
		MaxSubsteps:    4,
		AccumulatorCap: 0.1,
		HaltAfter:      8,
		Seed:           1,
	}
}

// DefaultVehicleConfig returns the default vehicle parameters.
func DefaultVehicleConfig() VehicleConfig {
	front := SuspensionCorner{
		SpringRate:         42000,
		CompressionDamping: 3500,
		ReboundDamping:     4500,
		MaxTravel:          0.1,
		MinTravel:          -0.1,
		RestPosition:       0.5,
		AntiRollStiffness:  40000,
		StaticCamber:       -0.017,
		StaticToe:          0,
		Caster:             0.1,
	}
	rear := front
	rear.SpringRate = 38000
	rear.AntiRollStiffness = 20000
	rear.StaticCamber = -0.012
	rear.Caster = 0

	return VehicleConfig{
		Name:                  "sedan",
		Mass:                  1350,
		Inertia:               Inertia{Ixx: 500, Iyy: 2200, Izz: 2000},
		Wheelbase:             2.6,
		TrackWidth:            1.6,
		CGHeight:              0.5,
		WeightDistribution:    0.5,
		FrontalArea:           2.1,
		DragCoefficient:       0.32,
		LiftCoefficient:       -0.1,
		DownforceDistribution: 0.45,
		Damping:               DampingConfig{Linear: 0, Angular: 0.05},
		Sleep:                 SleepConfig{Velocity: 0.03, Time: 1.0, WakeForce: 200},
		Environment:           EnvironmentConfig{Gravity: 9.81, AmbientTemperature: 20},
		Aero: AeroConfig{
			AirDensity:             1.225,
			SideArea:               4.5,
			SideForceCoefficient:   0.8,
			YawMomentCoefficient:   0.05,
			GroundEffectHeight:     0.1,
			GroundEffectMultiplier: 1.5,
			GroundEffectMinHeight:  0.02,
			FloorHeight:            0.38,
			Altitude:               0,
			Temperature:            15,
		},
		Engine: EngineConfig{
			MaxTorque:    360,
			MaxTorqueRPM: 4500,
			TorqueCurve: []CurvePoint{
				{RPM: 800, Multiplier: 0.45},
				{RPM: 1500, Multiplier: 0.62},
				{RPM: 2500, Multiplier: 0.8},
				{RPM: 3500, Multiplier: 0.93},
				{RPM: 4500, Multiplier: 1.0},
				{RPM: 5500, Multiplier: 0.98},
				{RPM: 6500, Multiplier: 0.9},
				{RPM: 7200, Multiplier: 0.78},
				{RPM: 7600, Multiplier: 0.6},
			},
			IdleRPM:               800,
			Redline:               7000,
			RevLimiter:            7200,
			Inertia:               0.22,
			Friction:              0.02,
			StallRPM:              300,
			StartTemperature:      90,
			ThermostatTemperature: 90,
			OverheatTemperature:   115,
			HeatRate:              6,
			IdleHeatRate:          1.5,
			CoolingRate:           0.08,
			DamageRate:            0.002,
			Turbo:                 TurboConfig{Boost: 0.6, Lag: 0.4, SpoolRate: 2.5},
		},
		Drivetrain: DrivetrainConfig{
			Ratios:           []float64{-3.2, 0, 3.3, 2.1, 1.55, 1.2, 1.0, 0.82},
			FinalDrive:       3.7,
			Efficiency:       0.9,
			ShiftTimeSeconds: 0.25,
			Differential: DifferentialConfig{
				Kind:          "lsd",
				Preload:       40,
				AccelLock:     0.4,
				DecelLock:     0.2,
				LockStiffness: 200,
			},
			Layout:          "rwd",
			FrontBias:       0.4,
			ClutchMaxTorque: 650,
			ClutchSlipSpeed: 8,
			LaunchRPM:       2200,
			AutoClutch:      true,
			Automatic:       false,
			UpshiftRPM:      6500,
			DownshiftRPM:    2500,
		},
		Brakes: BrakeConfig{
			MaxForce:        80000,
			Bias:            0.65,
			PadFriction:     0.45,
			DiscRadius:      0.16,
			HandbrakeFactor: 0.5,
			ABSEnabled:      true,
			ABSThreshold:    0.2,
			ABSRelease:      0.1,
			ABSFrequencyHz:  15,
			ABSMinSpeed:     2,
			FadeStart:       400,
			FadeFull:        700,
			HeatGeneration:  1e-4,
			HeatDissipation: 0.02,
			WearRate:        1e-9,
		},
		Steering: SteeringConfig{
			MaxAngle:             0.6,
			Ratio:                14,
			SpeedSensitiveFactor: 0.004,
			MinFactor:            0.35,
			Ackermann:            0.6,
			ReturnRate:           3,
			AlignGain:            1e-4,
			Smoothing:            0.15,
			RateLimit:            2,
		},
		Suspension: SuspensionConfig{FL: front, FR: front, RL: rear, RR: rear},
		Tire: TireConfig{
			Radius:              0.33,
			Width:               0.245,
			Mass:                20,
			Inertia:             1.2,
			PacejkaLateral:      Pacejka{B: 10, C: 1.9, D: 1.0, E: 0.97},
			PacejkaLongitudinal: Pacejka{B: 12, C: 1.65, D: 1.0, E: 0.97},
			SlipAngleReference:  0.25,
			LoadSensitivity:     -0.1,
			RelaxationLong:      0.15,
			RelaxationLat:       0.4,
			RelaxationMinSpeed:  1,
			PneumaticTrail:      0.03,
			CamberStiffness:     0.5,
			Pressure:            1.9,
			OptimalPressure:     2.2,
			StartTemperature:    70,
			OptimalTemperature:  80,
			TemperatureRange:    50,
			HeatEfficiency:      0.005,
			SurfaceHeatCapacity: 1,
			CoreHeatCapacity:    4,
			Conduction:          0.5,
			Convection:          0.02,
			WearRate:            1,
			PunctureRate:        0.05,
		},
		Collision: CollisionConfig{
			Restitution:        0.2,
			Friction:           0.5,
			PositionCorrection: 0.8,
			ProxyRadius:        0.6,
			Overhang:           0.9,
		},
	}
}
