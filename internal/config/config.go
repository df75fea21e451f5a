package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/spf13/viper"

	"github.com/kkonteh97/AmmoCarExample/internal/physics"
	"github.com/kkonteh97/AmmoCarExample/internal/scene"
	"github.com/kkonteh97/AmmoCarExample/internal/simulation"
	"github.com/kkonteh97/AmmoCarExample/internal/telemetry"
	"github.com/kkonteh97/AmmoCarExample/internal/vehicle"
)

// FileName is looked up in the config dir passed to Load.
const FileName = "carsim.cfg.json"

// EnvPrefix prefixes environment overrides, e.g. CARSIM_SERVER_ADDR.
const EnvPrefix = "CARSIM"

type ServerConfig struct {
	Addr          string  `mapstructure:"addr"`
	ReplicationHz float64 `mapstructure:"replicationHz"`
	AllowOrigin   string  `mapstructure:"allowOrigin"`
}

// PhysicsConfig mirrors physics.Config in config-friendly types.
type PhysicsConfig struct {
	Gravity          scene.Vec `mapstructure:"gravity"`
	FixedStep        float64   `mapstructure:"fixedStep"`
	SolverIterations int       `mapstructure:"solverIterations"`
	LinearDamping    float64   `mapstructure:"linearDamping"`
	AngularDamping   float64   `mapstructure:"angularDamping"`
}

func (p PhysicsConfig) World() physics.Config {
	return physics.Config{
		Gravity:          mgl64.Vec3{p.Gravity.X, p.Gravity.Y, p.Gravity.Z},
		FixedStep:        p.FixedStep,
		SolverIterations: p.SolverIterations,
		LinearDamping:    p.LinearDamping,
		AngularDamping:   p.AngularDamping,
	}
}

type TelemetryConfig struct {
	Capacity int                    `mapstructure:"capacity"`
	Vehicle  string                 `mapstructure:"vehicle"`
	Influx   telemetry.InfluxConfig `mapstructure:"influx"`
}

type Config struct {
	LogLevel   string            `mapstructure:"logLevel"`
	LogFormat  string            `mapstructure:"logFormat"`
	Server     ServerConfig      `mapstructure:"server"`
	Simulation simulation.Config `mapstructure:"simulation"`
	Physics    PhysicsConfig     `mapstructure:"physics"`
	Vehicle    vehicle.Config    `mapstructure:"vehicle"`
	Scene      scene.Config      `mapstructure:"scene"`
	Telemetry  TelemetryConfig   `mapstructure:"telemetry"`
}

// Load reads configuration from the optional JSON file in configDir, then
// environment overrides, on top of the defaults. A missing file is fine; a
// file that cannot be parsed is not.
func Load(configDir string) (Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetConfigName(FileName)
	v.SetConfigType("json")
	if configDir != "" {
		v.AddConfigPath(configDir)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("error decoding config: %w", err)
	}
	return cfg, nil
}

// SetDefaults registers a default for every key so that environment
// overrides reach Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logLevel", "info")
	v.SetDefault("logFormat", "json")

	v.SetDefault("server.addr", ":8090")
	v.SetDefault("server.replicationHz", 30.0)
	v.SetDefault("server.allowOrigin", "*")

	sim := simulation.DefaultConfig()
	v.SetDefault("simulation.tickHz", sim.TickHz)
	v.SetDefault("simulation.timeScale", sim.TimeScale)
	v.SetDefault("simulation.maxSubSteps", sim.MaxSubSteps)
	v.SetDefault("simulation.maxSimDelta", sim.MaxSimDelta)
	v.SetDefault("simulation.maxConsecutiveFailures", sim.MaxConsecutiveFailures)

	phys := physics.DefaultConfig()
	setVec(v, "physics.gravity", scene.Vec{X: phys.Gravity.X(), Y: phys.Gravity.Y(), Z: phys.Gravity.Z()})
	v.SetDefault("physics.fixedStep", phys.FixedStep)
	v.SetDefault("physics.solverIterations", phys.SolverIterations)
	v.SetDefault("physics.linearDamping", phys.LinearDamping)
	v.SetDefault("physics.angularDamping", phys.AngularDamping)

	veh := vehicle.DefaultConfig()
	v.SetDefault("vehicle.steeringIncrement", veh.SteeringIncrement)
	v.SetDefault("vehicle.steeringClamp", veh.SteeringClamp)
	v.SetDefault("vehicle.maxEngineForce", veh.MaxEngineForce)
	v.SetDefault("vehicle.maxBrakingForce", veh.MaxBrakingForce)
	v.SetDefault("vehicle.speedThreshold", veh.SpeedThreshold)

	sc := scene.DefaultConfig()
	setVec(v, "scene.ground.size", sc.Ground.Size)
	setVec(v, "scene.ground.position", sc.Ground.Position)
	v.SetDefault("scene.ground.friction", sc.Ground.Friction)

	v.SetDefault("scene.chassis.width", sc.Chassis.Width)
	v.SetDefault("scene.chassis.height", sc.Chassis.Height)
	v.SetDefault("scene.chassis.length", sc.Chassis.Length)
	v.SetDefault("scene.chassis.mass", sc.Chassis.Mass)
	setVec(v, "scene.chassis.spawn", sc.Chassis.Spawn)

	v.SetDefault("scene.wheels.frontAxle", sc.Wheels.FrontAxle)
	v.SetDefault("scene.wheels.rearAxle", sc.Wheels.RearAxle)
	v.SetDefault("scene.wheels.halfTrack", sc.Wheels.HalfTrack)
	v.SetDefault("scene.wheels.height", sc.Wheels.Height)
	v.SetDefault("scene.wheels.frontRadius", sc.Wheels.FrontRadius)
	v.SetDefault("scene.wheels.rearRadius", sc.Wheels.RearRadius)
	v.SetDefault("scene.wheels.frontWidth", sc.Wheels.FrontWidth)
	v.SetDefault("scene.wheels.rearWidth", sc.Wheels.RearWidth)

	v.SetDefault("scene.tuning.suspensionStiffness", sc.Tuning.SuspensionStiffness)
	v.SetDefault("scene.tuning.dampingCompression", sc.Tuning.DampingCompression)
	v.SetDefault("scene.tuning.dampingRelaxation", sc.Tuning.DampingRelaxation)
	v.SetDefault("scene.tuning.frictionSlip", sc.Tuning.FrictionSlip)
	v.SetDefault("scene.tuning.rollInfluence", sc.Tuning.RollInfluence)
	v.SetDefault("scene.tuning.suspensionRestLength", sc.Tuning.SuspensionRestLength)
	v.SetDefault("scene.tuning.maxSuspensionTravel", sc.Tuning.MaxSuspensionTravel)
	v.SetDefault("scene.tuning.maxSuspensionForce", sc.Tuning.MaxSuspensionForce)

	v.SetDefault("scene.props.enabled", sc.Props.Enabled)
	v.SetDefault("scene.props.rows", sc.Props.Rows)
	v.SetDefault("scene.props.cols", sc.Props.Cols)
	v.SetDefault("scene.props.spacing", sc.Props.Spacing)
	v.SetDefault("scene.props.radius", sc.Props.Radius)
	v.SetDefault("scene.props.mass", sc.Props.Mass)
	v.SetDefault("scene.props.friction", sc.Props.Friction)
	v.SetDefault("scene.props.restitution", sc.Props.Restitution)
	v.SetDefault("scene.props.dropHeight", sc.Props.DropHeight)
	setVec(v, "scene.props.center", sc.Props.Center)
	v.SetDefault("scene.props.loadDelay", sc.Props.LoadDelay)

	v.SetDefault("telemetry.capacity", telemetry.DefaultCapacity)
	v.SetDefault("telemetry.vehicle", "car-1")
	v.SetDefault("telemetry.influx.enabled", false)
	v.SetDefault("telemetry.influx.url", "http://localhost:8086")
	v.SetDefault("telemetry.influx.token", "")
	v.SetDefault("telemetry.influx.org", "carsim")
	v.SetDefault("telemetry.influx.bucket", "vehicle")
	v.SetDefault("telemetry.influx.batchSize", uint(500))
	v.SetDefault("telemetry.influx.flushInterval", time.Second)
}

func setVec(v *viper.Viper, key string, vec scene.Vec) {
	v.SetDefault(key+".x", vec.X)
	v.SetDefault(key+".y", vec.Y)
	v.SetDefault(key+".z", vec.Z)
}
