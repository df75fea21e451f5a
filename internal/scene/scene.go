// Package scene builds the driving scene: a static ground slab, the car
// chassis with its four raycast wheels and, once "loaded", a batch of
// instanced props.
package scene

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/kkonteh97/AmmoCarExample/internal/physics"
	"github.com/kkonteh97/AmmoCarExample/internal/registry"
)

// Renderable names bound by Build and LoadProps.
const (
	RenderableGround  = "ground"
	RenderableChassis = "chassis"
	PropsBatch        = "props"
)

var ErrPropsDisabled = errors.New("scene: props disabled")

// Vec is a config-friendly vector.
type Vec struct {
	X float64 `mapstructure:"x"`
	Y float64 `mapstructure:"y"`
	Z float64 `mapstructure:"z"`
}

func (v Vec) mgl() mgl64.Vec3 { return mgl64.Vec3{v.X, v.Y, v.Z} }

type GroundConfig struct {
	Size     Vec     `mapstructure:"size"`
	Position Vec     `mapstructure:"position"`
	Friction float64 `mapstructure:"friction"`
}

type ChassisConfig struct {
	Width  float64 `mapstructure:"width"`
	Height float64 `mapstructure:"height"`
	Length float64 `mapstructure:"length"`
	Mass   float64 `mapstructure:"mass"`
	Spawn  Vec     `mapstructure:"spawn"`
}

// WheelsConfig places the wheels symmetrically around the chassis origin.
type WheelsConfig struct {
	FrontAxle   float64 `mapstructure:"frontAxle"`
	RearAxle    float64 `mapstructure:"rearAxle"`
	HalfTrack   float64 `mapstructure:"halfTrack"`
	Height      float64 `mapstructure:"height"`
	FrontRadius float64 `mapstructure:"frontRadius"`
	RearRadius  float64 `mapstructure:"rearRadius"`
	FrontWidth  float64 `mapstructure:"frontWidth"`
	RearWidth   float64 `mapstructure:"rearWidth"`
}

// PropsConfig describes the grid of spheres dropped onto the ground after
// LoadDelay.
type PropsConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Rows        int           `mapstructure:"rows"`
	Cols        int           `mapstructure:"cols"`
	Spacing     float64       `mapstructure:"spacing"`
	Radius      float64       `mapstructure:"radius"`
	Mass        float64       `mapstructure:"mass"`
	Friction    float64       `mapstructure:"friction"`
	Restitution float64       `mapstructure:"restitution"`
	DropHeight  float64       `mapstructure:"dropHeight"`
	Center      Vec           `mapstructure:"center"`
	LoadDelay   time.Duration `mapstructure:"loadDelay"`
}

type Config struct {
	Ground  GroundConfig   `mapstructure:"ground"`
	Chassis ChassisConfig  `mapstructure:"chassis"`
	Wheels  WheelsConfig   `mapstructure:"wheels"`
	Tuning  physics.Tuning `mapstructure:"tuning"`
	Props   PropsConfig    `mapstructure:"props"`
}

func DefaultConfig() Config {
	return Config{
		Ground: GroundConfig{
			Size:     Vec{X: 50, Y: 1, Z: 50},
			Friction: 0.5,
		},
		Chassis: ChassisConfig{
			Width:  1.8,
			Height: 0.6,
			Length: 4,
			Mass:   800,
			Spawn:  Vec{X: 0, Y: 4, Z: 1},
		},
		Wheels: WheelsConfig{
			FrontAxle:   1.3,
			RearAxle:    -1.3,
			HalfTrack:   1.1,
			Height:      0.3,
			FrontRadius: 0.35,
			RearRadius:  0.4,
			FrontWidth:  0.2,
			RearWidth:   0.3,
		},
		Tuning: physics.DefaultTuning(),
		Props: PropsConfig{
			Enabled:     true,
			Rows:        4,
			Cols:        4,
			Spacing:     2.5,
			Radius:      0.5,
			Mass:        1,
			Friction:    0.5,
			Restitution: 0.3,
			DropHeight:  6,
			Center:      Vec{X: 0, Y: 0, Z: 14},
			LoadDelay:   500 * time.Millisecond,
		},
	}
}

// Descriptors returns the wheels in FrontLeft, FrontRight, RearLeft,
// RearRight order. Left is +x.
func (w WheelsConfig) Descriptors() []physics.WheelDescriptor {
	out := make([]physics.WheelDescriptor, physics.NumWheels)
	out[physics.FrontLeft] = physics.WheelDescriptor{Lateral: w.HalfTrack, Height: w.Height, Axial: w.FrontAxle, Radius: w.FrontRadius, Width: w.FrontWidth, Front: true}
	out[physics.FrontRight] = physics.WheelDescriptor{Lateral: -w.HalfTrack, Height: w.Height, Axial: w.FrontAxle, Radius: w.FrontRadius, Width: w.FrontWidth, Front: true}
	out[physics.RearLeft] = physics.WheelDescriptor{Lateral: -w.HalfTrack, Height: w.Height, Axial: w.RearAxle, Radius: w.RearRadius, Width: w.RearWidth}
	out[physics.RearRight] = physics.WheelDescriptor{Lateral: w.HalfTrack, Height: w.Height, Axial: w.RearAxle, Radius: w.RearRadius, Width: w.RearWidth}
	return out
}

// Scene is what Build produced.
type Scene struct {
	Ground  physics.BodyID
	Chassis physics.BodyID
	Vehicle *physics.Vehicle
}

// Build creates the ground and the car and binds both to renderables.
func Build(world *physics.World, reg *registry.Registry, cfg Config) (*Scene, error) {
	ground, err := world.CreateStaticBody(
		physics.BoxFromSize(cfg.Ground.Size.X, cfg.Ground.Size.Y, cfg.Ground.Size.Z),
		cfg.Ground.Position.mgl(),
		mgl64.QuatIdent(),
		cfg.Ground.Friction,
	)
	if err != nil {
		return nil, fmt.Errorf("build ground: %w", err)
	}

	chassis, err := world.CreateDynamicBody(
		physics.BoxFromSize(cfg.Chassis.Width, cfg.Chassis.Height, cfg.Chassis.Length),
		cfg.Chassis.Spawn.mgl(),
		mgl64.QuatIdent(),
		cfg.Chassis.Mass,
	)
	if err != nil {
		return nil, fmt.Errorf("build chassis: %w", err)
	}

	vehicle, err := world.CreateVehicle(chassis, cfg.Wheels.Descriptors(), cfg.Tuning)
	if err != nil {
		return nil, fmt.Errorf("build vehicle: %w", err)
	}

	if err := reg.RegisterSingle(RenderableGround, ground); err != nil {
		return nil, fmt.Errorf("bind ground: %w", err)
	}
	if err := reg.RegisterSingle(RenderableChassis, chassis); err != nil {
		return nil, fmt.Errorf("bind chassis: %w", err)
	}

	return &Scene{Ground: ground, Chassis: chassis, Vehicle: vehicle}, nil
}

// PropPositions lays out the props grid, row-major, centred on Center and
// DropHeight above it.
func (p PropsConfig) PropPositions() []mgl64.Vec3 {
	if p.Rows <= 0 || p.Cols <= 0 {
		return nil
	}
	out := make([]mgl64.Vec3, 0, p.Rows*p.Cols)
	x0 := p.Center.X - float64(p.Cols-1)*p.Spacing/2
	z0 := p.Center.Z - float64(p.Rows-1)*p.Spacing/2
	for r := 0; r < p.Rows; r++ {
		for c := 0; c < p.Cols; c++ {
			out = append(out, mgl64.Vec3{
				x0 + float64(c)*p.Spacing,
				p.Center.Y + p.DropHeight,
				z0 + float64(r)*p.Spacing,
			})
		}
	}
	return out
}

// LoadProps waits for the configured load delay, creates every prop body and
// only then publishes them as one instanced batch. It returns ctx.Err() if
// cancelled before the props land in the world.
func LoadProps(ctx context.Context, world *physics.World, reg *registry.Registry, cfg PropsConfig) (*registry.InstancedBatch, error) {
	if !cfg.Enabled {
		return nil, ErrPropsDisabled
	}
	if cfg.LoadDelay > 0 {
		timer := time.NewTimer(cfg.LoadDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return nil, err
	}

	positions := cfg.PropPositions()
	if len(positions) == 0 {
		return nil, fmt.Errorf("load props: %w", registry.ErrEmptyBatch)
	}
	bodies := make([]physics.BodyID, 0, len(positions))
	for i, pos := range positions {
		id, err := world.CreateDynamicBody(physics.Sphere{Radius: cfg.Radius}, pos, mgl64.QuatIdent(), cfg.Mass)
		if err != nil {
			return nil, fmt.Errorf("load props: prop %d: %w", i, err)
		}
		if err := world.SetMaterial(id, cfg.Friction, cfg.Restitution); err != nil {
			return nil, fmt.Errorf("load props: prop %d: %w", i, err)
		}
		bodies = append(bodies, id)
	}

	batch, err := reg.RegisterBatch(PropsBatch, bodies)
	if err != nil {
		return nil, fmt.Errorf("load props: %w", err)
	}
	return batch, nil
}
