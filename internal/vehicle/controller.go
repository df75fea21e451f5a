package vehicle

import (
	"github.com/kkonteh97/AmmoCarExample/internal/input"
	"github.com/kkonteh97/AmmoCarExample/internal/physics"
)

const (
	DefaultSteeringIncrement = 0.04
	DefaultSteeringClamp     = 0.5
	DefaultMaxEngineForce    = 2000.0
	DefaultMaxBrakingForce   = 100.0
	DefaultSpeedThreshold    = 1.0 // km/h
)

// Actuator is the part of a raycast vehicle the controller drives.
type Actuator interface {
	ApplyEngineForce(force float64, wheel int)
	SetBrake(force float64, wheel int)
	SetSteering(angle float64, wheel int)
	Speed() float64
}

// Config tunes the controller.
type Config struct {
	SteeringIncrement float64 `mapstructure:"steeringIncrement"`
	SteeringClamp     float64 `mapstructure:"steeringClamp"`
	MaxEngineForce    float64 `mapstructure:"maxEngineForce"`
	MaxBrakingForce   float64 `mapstructure:"maxBrakingForce"`
	SpeedThreshold    float64 `mapstructure:"speedThreshold"`
}

// DefaultConfig returns the stock driving feel.
func DefaultConfig() Config {
	return Config{
		SteeringIncrement: DefaultSteeringIncrement,
		SteeringClamp:     DefaultSteeringClamp,
		MaxEngineForce:    DefaultMaxEngineForce,
		MaxBrakingForce:   DefaultMaxBrakingForce,
		SpeedThreshold:    DefaultSpeedThreshold,
	}
}

// State is what the controller applied on its last tick.
type State struct {
	Speed       float64 `json:"speed_kmh"`
	Steering    float64 `json:"steering"`
	EngineForce float64 `json:"engine_force"`
	BrakeForce  float64 `json:"brake_force"`
}

// Controller turns held actions into engine, brake and steering commands.
// It keeps the steering angle between ticks and is not safe for concurrent
// use; the frame driver owns it.
type Controller struct {
	cfg      Config
	steering float64
	last     State
}

// NewController builds a controller. Non-positive fields fall back to the
// defaults.
func NewController(cfg Config) *Controller {
	def := DefaultConfig()
	if cfg.SteeringIncrement <= 0 {
		cfg.SteeringIncrement = def.SteeringIncrement
	}
	if cfg.SteeringClamp <= 0 {
		cfg.SteeringClamp = def.SteeringClamp
	}
	if cfg.MaxEngineForce <= 0 {
		cfg.MaxEngineForce = def.MaxEngineForce
	}
	if cfg.MaxBrakingForce <= 0 {
		cfg.MaxBrakingForce = def.MaxBrakingForce
	}
	if cfg.SpeedThreshold <= 0 {
		cfg.SpeedThreshold = def.SpeedThreshold
	}
	return &Controller{cfg: cfg}
}

// Config returns the effective configuration.
func (c *Controller) Config() Config {
	return c.cfg
}

// State returns the commands applied on the last tick.
func (c *Controller) State() State {
	return c.last
}

// Tick reads the vehicle speed once, derives this tick's commands from a
// and pushes them to v. Engine force goes to the front wheels, brakes are
// split half front and full rear, and only the front wheels steer.
func (c *Controller) Tick(a input.Actions, v Actuator) State {
	speed := v.Speed()
	engine, brake := c.drive(a, speed)
	c.steer(a)

	v.ApplyEngineForce(engine, physics.FrontLeft)
	v.ApplyEngineForce(engine, physics.FrontRight)
	v.ApplyEngineForce(0, physics.RearLeft)
	v.ApplyEngineForce(0, physics.RearRight)

	v.SetBrake(brake/2, physics.FrontLeft)
	v.SetBrake(brake/2, physics.FrontRight)
	v.SetBrake(brake, physics.RearLeft)
	v.SetBrake(brake, physics.RearRight)

	v.SetSteering(c.steering, physics.FrontLeft)
	v.SetSteering(c.steering, physics.FrontRight)
	v.SetSteering(0, physics.RearLeft)
	v.SetSteering(0, physics.RearRight)

	c.last = State{Speed: speed, Steering: c.steering, EngineForce: engine, BrakeForce: brake}
	return c.last
}

// drive resolves engine and brake force. Braking while rolling forward and
// accelerating alone while rolling backward both stop the car before it may
// drive the other way. Brake held without forward motion reverses. Engine
// and brake are never applied together.
func (c *Controller) drive(a input.Actions, speed float64) (engine, brake float64) {
	forward := speed > c.cfg.SpeedThreshold
	backward := speed < -c.cfg.SpeedThreshold

	switch {
	case a.Brake && forward:
		return 0, c.cfg.MaxBrakingForce
	case a.Accelerate && backward && !a.Brake:
		return 0, c.cfg.MaxBrakingForce
	case a.Accelerate:
		return c.cfg.MaxEngineForce, 0
	case a.Brake:
		return -c.cfg.MaxEngineForce / 2, 0
	default:
		return 0, 0
	}
}

func (c *Controller) steer(a input.Actions) {
	inc, limit := c.cfg.SteeringIncrement, c.cfg.SteeringClamp

	switch {
	case a.SteerLeft:
		c.steering = min(c.steering+inc, limit)
	case a.SteerRight:
		c.steering = max(c.steering-inc, -limit)
	case c.steering < -inc:
		c.steering += inc
	case c.steering > inc:
		c.steering -= inc
	default:
		c.steering = 0
	}
}
