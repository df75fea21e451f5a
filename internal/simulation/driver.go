// Package simulation drives the fixed sequence of one frame: step physics,
// apply the held controls to the vehicle, mirror bodies to renderables and
// hand the finished frame to telemetry and the presenter.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/kkonteh97/AmmoCarExample/internal/input"
	"github.com/kkonteh97/AmmoCarExample/internal/physics"
	"github.com/kkonteh97/AmmoCarExample/internal/registry"
	"github.com/kkonteh97/AmmoCarExample/internal/shared/types"
	"github.com/kkonteh97/AmmoCarExample/internal/telemetry"
	"github.com/kkonteh97/AmmoCarExample/internal/transform"
	"github.com/kkonteh97/AmmoCarExample/internal/vehicle"
)

var (
	ErrTickInProgress = errors.New("simulation: tick already in progress")
	ErrMissingWorld   = errors.New("simulation: world, vehicle and registry are required")
)

type Config struct {
	TickHz                 float64 `mapstructure:"tickHz"`
	TimeScale              float64 `mapstructure:"timeScale"`
	MaxSubSteps            int     `mapstructure:"maxSubSteps"`
	MaxSimDelta            float64 `mapstructure:"maxSimDelta"`
	MaxConsecutiveFailures int     `mapstructure:"maxConsecutiveFailures"`
}

// DefaultConfig runs the world at twice wall speed, matching the feel the
// car was tuned for.
func DefaultConfig() Config {
	return Config{
		TickHz:                 60,
		TimeScale:              2,
		MaxSubSteps:            physics.DefaultMaxSubSteps,
		MaxSimDelta:            physics.DefaultMaxSubSteps * physics.DefaultFixedStep,
		MaxConsecutiveFailures: 5,
	}
}

// Clock is the wall time source of Run.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Presenter receives every completed frame. It runs on the tick goroutine
// and must not block.
type Presenter interface {
	Present(f types.Frame)
}

type PresenterFunc func(types.Frame)

func (f PresenterFunc) Present(frame types.Frame) { f(frame) }

type Options struct {
	Config     Config
	World      *physics.World
	Vehicle    *physics.Vehicle
	Registry   *registry.Registry
	Controller *vehicle.Controller
	Actions    *input.ActionState
	Sink       telemetry.Sink
	Presenter  Presenter
	Clock      Clock
	Log        zerolog.Logger
}

// Driver owns the per-frame sequence. Only one Tick runs at a time.
type Driver struct {
	cfg        Config
	world      *physics.World
	vehicle    *physics.Vehicle
	registry   *registry.Registry
	controller *vehicle.Controller
	actions    *input.ActionState
	sink       telemetry.Sink
	presenter  Presenter
	clock      Clock
	log        zerolog.Logger

	running atomic.Bool
	tick    uint64
	simTime float64

	mu   sync.RWMutex
	last types.Frame
	have bool

	ticks    metric.Int64Counter
	skipped  metric.Int64Counter
	capped   metric.Int64Counter
	failed   metric.Int64Counter
	duration metric.Float64Histogram
	bodies   metric.Int64ObservableGauge
}

// NewDriver wires a driver. Zero config fields fall back to DefaultConfig.
// Uses the global OTel meter for metrics (no-op if not configured).
func NewDriver(opts Options) (*Driver, error) {
	if opts.World == nil || opts.Vehicle == nil || opts.Registry == nil {
		return nil, ErrMissingWorld
	}
	cfg := opts.Config
	def := DefaultConfig()
	if cfg.TickHz <= 0 {
		cfg.TickHz = def.TickHz
	}
	if cfg.TimeScale <= 0 {
		cfg.TimeScale = def.TimeScale
	}
	if cfg.MaxSubSteps <= 0 {
		cfg.MaxSubSteps = def.MaxSubSteps
	}
	if cfg.MaxSimDelta <= 0 {
		cfg.MaxSimDelta = float64(cfg.MaxSubSteps) * opts.World.Config().FixedStep
	}
	if cfg.MaxConsecutiveFailures <= 0 {
		cfg.MaxConsecutiveFailures = def.MaxConsecutiveFailures
	}

	d := &Driver{
		cfg:        cfg,
		world:      opts.World,
		vehicle:    opts.Vehicle,
		registry:   opts.Registry,
		controller: opts.Controller,
		actions:    opts.Actions,
		sink:       opts.Sink,
		presenter:  opts.Presenter,
		clock:      opts.Clock,
		log:        opts.Log,
	}
	if d.controller == nil {
		d.controller = vehicle.NewController(vehicle.DefaultConfig())
	}
	if d.actions == nil {
		d.actions = input.NewActionState()
	}
	if d.clock == nil {
		d.clock = systemClock{}
	}
	if err := d.initMetrics(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Driver) initMetrics() error {
	m := meter()

	var err error
	d.ticks, err = m.Int64Counter(
		"carsim.ticks",
		metric.WithDescription("Completed simulation ticks"),
	)
	if err != nil {
		return fmt.Errorf("creating ticks counter: %w", err)
	}

	d.skipped, err = m.Int64Counter(
		"carsim.ticks.skipped",
		metric.WithDescription("Ticks that did not step physics"),
	)
	if err != nil {
		return fmt.Errorf("creating skipped counter: %w", err)
	}

	d.capped, err = m.Int64Counter(
		"carsim.delta.capped",
		metric.WithDescription("Ticks whose simulated delta was capped"),
	)
	if err != nil {
		return fmt.Errorf("creating capped counter: %w", err)
	}

	d.failed, err = m.Int64Counter(
		"carsim.ticks.failed",
		metric.WithDescription("Ticks that failed to mirror bodies to renderables"),
	)
	if err != nil {
		return fmt.Errorf("creating failed counter: %w", err)
	}

	d.duration, err = m.Float64Histogram(
		"carsim.tick.duration",
		metric.WithDescription("Wall time spent in one tick"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return fmt.Errorf("creating tick duration histogram: %w", err)
	}

	d.bodies, err = m.Int64ObservableGauge(
		"carsim.bodies",
		metric.WithDescription("Bodies in the physics world"),
	)
	if err != nil {
		return fmt.Errorf("creating bodies gauge: %w", err)
	}
	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			o.ObserveInt64(d.bodies, int64(d.world.BodyCount()))
			return nil
		},
		d.bodies,
	)
	if err != nil {
		return fmt.Errorf("registering bodies callback: %w", err)
	}
	return nil
}

func (d *Driver) Config() Config {
	return d.cfg
}

// Actions is the input state key events are written to.
func (d *Driver) Actions() *input.ActionState {
	return d.actions
}

// Latest returns the last completed frame.
func (d *Driver) Latest() (types.Frame, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.last, d.have
}

// Tick advances one rendered frame given the wall time since the previous
// one. A non-finite or non-positive delta runs the frame without stepping
// physics; a delta above MaxSimDelta after scaling is capped.
func (d *Driver) Tick(wallDelta float64) (types.Frame, error) {
	ctx := context.Background()
	if !d.running.CompareAndSwap(false, true) {
		d.skipped.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "in_progress")))
		return types.Frame{}, ErrTickInProgress
	}
	defer d.running.Store(false)

	start := time.Now()

	if !(wallDelta > 0) || math.IsInf(wallDelta, 0) {
		wallDelta = 0
	}
	simDelta := wallDelta * d.cfg.TimeScale
	subSteps := 0
	switch {
	case simDelta <= 0:
		d.skipped.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "no_delta")))
	case simDelta > d.cfg.MaxSimDelta:
		d.capped.Add(ctx, 1)
		d.log.Debug().Float64("simDelta", simDelta).Float64("max", d.cfg.MaxSimDelta).Msg("Capping simulated delta")
		simDelta = d.cfg.MaxSimDelta
		fallthrough
	default:
		subSteps = d.world.Step(simDelta, d.cfg.MaxSubSteps)
		d.simTime += simDelta
	}

	held := d.actions.Snapshot()
	state := d.controller.Tick(held, d.vehicle)

	snap, err := d.registry.Sync()
	if err != nil {
		d.failed.Add(ctx, 1)
		return types.Frame{}, fmt.Errorf("tick %d: %w", d.tick+1, err)
	}

	wheels := make([]types.Pose, physics.NumWheels)
	for i := range wheels {
		tr, err := d.vehicle.WheelTransform(i)
		if err != nil {
			d.failed.Add(ctx, 1)
			return types.Frame{}, fmt.Errorf("tick %d: %w", d.tick+1, err)
		}
		wheels[i] = transform.Pose(tr)
	}

	d.tick++
	frame := types.Frame{
		Tick:        d.tick,
		SimTime:     d.simTime,
		WallDelta:   wallDelta,
		SubSteps:    subSteps,
		SpeedKmh:    state.Speed,
		Speedometer: telemetry.FormatSpeed(state.Speed),
		Controls: types.ControlState{
			Accelerate:  held.Accelerate,
			Brake:       held.Brake,
			Left:        held.SteerLeft,
			Right:       held.SteerRight,
			Steering:    state.Steering,
			EngineForce: state.EngineForce,
			BrakeForce:  state.BrakeForce,
		},
		Bodies: make(map[string]types.Pose, len(snap.Singles)),
		Wheels: wheels,
	}
	for name, tr := range snap.Singles {
		frame.Bodies[name] = transform.Pose(tr)
	}
	if len(snap.Batches) > 0 {
		frame.Batches = make(map[string]types.BatchFrame, len(snap.Batches))
		for name, b := range snap.Batches {
			bf := types.BatchFrame{Count: b.Count, Version: b.Version, Dirty: b.Dirty}
			if b.Dirty {
				bf.Matrices = b.Matrices
			}
			frame.Batches[name] = bf
		}
	}

	elapsed := time.Since(start)
	tickMS := float64(elapsed.Microseconds()) / 1000
	d.ticks.Add(ctx, 1)
	d.duration.Record(ctx, tickMS)

	if d.sink != nil {
		chassis := d.vehicle.ChassisTransform().Position
		d.sink.Record(types.TelemetrySample{
			Tick:        frame.Tick,
			AtUnixMS:    d.clock.Now().UnixMilli(),
			SpeedKmh:    state.Speed,
			Steering:    state.Steering,
			EngineForce: state.EngineForce,
			BrakeForce:  state.BrakeForce,
			Position:    types.Vec3{X: chassis.X(), Y: chassis.Y(), Z: chassis.Z()},
			SubSteps:    subSteps,
			TickMS:      tickMS,
		})
	}

	d.mu.Lock()
	d.last = frame
	d.have = true
	d.mu.Unlock()

	if d.presenter != nil {
		d.presenter.Present(frame)
	}
	return frame, nil
}

// Run ticks at rate Hz until ctx is cancelled. A failed tick is logged and
// its frame is dropped; after MaxConsecutiveFailures failures in a row Run
// gives up and returns the last error.
func (d *Driver) Run(ctx context.Context, rate float64) error {
	if rate <= 0 {
		rate = d.cfg.TickHz
	}
	ticker := time.NewTicker(time.Duration(float64(time.Second) / rate))
	defer ticker.Stop()

	d.log.Info().Float64("rate", rate).Float64("timeScale", d.cfg.TimeScale).Msg("Simulation loop started")

	last := d.clock.Now()
	failures := 0
	for {
		select {
		case <-ctx.Done():
			d.log.Info().Uint64("tick", d.tick).Msg("Simulation loop stopped")
			return nil
		case <-ticker.C:
		}

		now := d.clock.Now()
		wall := now.Sub(last).Seconds()
		last = now

		if _, err := d.Tick(wall); err != nil {
			if errors.Is(err, ErrTickInProgress) {
				continue
			}
			failures++
			d.log.Error().Err(err).Int("failures", failures).Msg("Tick failed")
			if failures >= d.cfg.MaxConsecutiveFailures {
				return fmt.Errorf("simulation stopped after %d failed ticks: %w", failures, err)
			}
			continue
		}
		failures = 0
	}
}
