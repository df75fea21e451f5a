package physics

import (
	"fmt"
	"math"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
)

const (
	// DefaultFixedStep is the engine's internal sub-step. Callers scale wall
	// time so that one rendered frame maps onto whole sub-steps of this size.
	DefaultFixedStep = 1.0 / 60.0
	// DefaultMaxSubSteps bounds the work done by a single Step call.
	DefaultMaxSubSteps = 10

	restitutionThreshold = 1.0
	baumgarte            = 0.2
	penetrationSlop      = 0.005
)

// Config holds world-wide simulation parameters.
type Config struct {
	Gravity          mgl64.Vec3
	FixedStep        float64
	SolverIterations int
	LinearDamping    float64
	AngularDamping   float64
}

// DefaultConfig matches the dynamics defaults the car scene was tuned against.
func DefaultConfig() Config {
	return Config{
		Gravity:          mgl64.Vec3{0, -10, 0},
		FixedStep:        DefaultFixedStep,
		SolverIterations: 8,
		LinearDamping:    0,
		AngularDamping:   0.1,
	}
}

// World owns every body and vehicle. All methods are safe for concurrent use;
// a Step holds the world lock for its whole duration so body creation from
// another goroutine lands strictly between steps.
type World struct {
	mu sync.Mutex

	cfg         Config
	bodies      map[BodyID]*body
	order       []*body
	vehicles    []*Vehicle
	nextID      BodyID
	accumulator float64
	steps       uint64
}

// NewWorld creates an empty world. Zero fields of cfg fall back to DefaultConfig.
func NewWorld(cfg Config) *World {
	def := DefaultConfig()
	if cfg.FixedStep <= 0 {
		cfg.FixedStep = def.FixedStep
	}
	if cfg.SolverIterations <= 0 {
		cfg.SolverIterations = def.SolverIterations
	}
	return &World{
		cfg:    cfg,
		bodies: make(map[BodyID]*body),
	}
}

// Config returns the world configuration.
func (w *World) Config() Config {
	return w.cfg
}

// CreateStaticBody registers an immovable collider.
func (w *World) CreateStaticBody(shape Shape, position mgl64.Vec3, orientation mgl64.Quat, friction float64) (BodyID, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	b, err := newBody(w.nextID+1, shape, Transform{Position: position, Orientation: orientation}, 0)
	if err != nil {
		return 0, fmt.Errorf("create static body: %w", err)
	}
	b.friction = math.Max(friction, 0)
	w.add(b)
	return b.id, nil
}

// CreateDynamicBody registers a body with positive mass. Local inertia is
// derived from mass and shape.
func (w *World) CreateDynamicBody(shape Shape, position mgl64.Vec3, orientation mgl64.Quat, mass float64) (BodyID, error) {
	if !positiveFinite(mass) {
		return 0, fmt.Errorf("create dynamic body: %w: %v", ErrInvalidMass, mass)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	b, err := newBody(w.nextID+1, shape, Transform{Position: position, Orientation: orientation}, mass)
	if err != nil {
		return 0, fmt.Errorf("create dynamic body: %w", err)
	}
	b.friction = 0.5
	w.add(b)
	return b.id, nil
}

// SetMaterial changes friction and restitution of an existing body.
func (w *World) SetMaterial(id BodyID, friction, restitution float64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	b, err := w.lookup(id)
	if err != nil {
		return err
	}
	b.friction = math.Max(friction, 0)
	b.restitution = mgl64.Clamp(restitution, 0, 1)
	return nil
}

// SetLinearVelocity overrides the linear velocity of a dynamic body.
func (w *World) SetLinearVelocity(id BodyID, v mgl64.Vec3) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	b, err := w.lookup(id)
	if err != nil {
		return err
	}
	if !b.static() {
		b.linVel = v
	}
	return nil
}

// LinearVelocity returns the linear velocity of a body.
func (w *World) LinearVelocity(id BodyID) (mgl64.Vec3, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	b, err := w.lookup(id)
	if err != nil {
		return mgl64.Vec3{}, err
	}
	return b.linVel, nil
}

// Transform returns the current world transform of a body.
func (w *World) Transform(id BodyID) (Transform, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	b, err := w.lookup(id)
	if err != nil {
		return Transform{}, err
	}
	return b.transform(), nil
}

// Has reports whether id refers to a body of this world.
func (w *World) Has(id BodyID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.bodies[id]
	return ok
}

// BodyCount returns the number of registered bodies.
func (w *World) BodyCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.order)
}

// Steps returns the number of fixed sub-steps run since creation.
func (w *World) Steps() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.steps
}

// Step advances the simulation by delta seconds using fixed sub-steps of
// Config.FixedStep. At most maxSubSteps sub-steps run; time beyond that is
// dropped rather than carried, so one pathological frame cannot snowball.
// A non-positive or non-finite delta is a no-op. Step returns the number of
// sub-steps run.
func (w *World) Step(delta float64, maxSubSteps int) int {
	if !(delta > 0) || math.IsInf(delta, 0) {
		return 0
	}
	if maxSubSteps < 1 {
		maxSubSteps = 1
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	h := w.cfg.FixedStep
	if limit := float64(maxSubSteps) * h; delta > limit {
		delta = limit
	}
	w.accumulator += delta
	n := int((w.accumulator + 1e-9) / h)
	if n > maxSubSteps {
		n = maxSubSteps
	}
	w.accumulator -= float64(n) * h
	if w.accumulator < 0 {
		w.accumulator = 0
	}

	for i := 0; i < n; i++ {
		w.substep(h)
	}
	return n
}

func (w *World) substep(h float64) {
	for _, v := range w.vehicles {
		v.update(h)
	}

	linDamp := math.Pow(1-mgl64.Clamp(w.cfg.LinearDamping, 0, 1), h)
	angDamp := math.Pow(1-mgl64.Clamp(w.cfg.AngularDamping, 0, 1), h)
	for _, b := range w.order {
		if b.static() {
			continue
		}
		b.linVel = b.linVel.Add(w.cfg.Gravity.Mul(h)).Mul(linDamp)
		b.angVel = b.angVel.Mul(angDamp)
		b.updateInertia()
	}

	contacts := w.collide()
	for i := range contacts {
		contacts[i].prepare(h)
	}
	for iter := 0; iter < w.cfg.SolverIterations; iter++ {
		for i := range contacts {
			contacts[i].solve()
		}
	}

	for _, b := range w.order {
		b.integrate(h)
	}
	w.steps++
}

func (w *World) add(b *body) {
	w.nextID = b.id
	w.bodies[b.id] = b
	w.order = append(w.order, b)
}

func (w *World) lookup(id BodyID) (*body, error) {
	b, ok := w.bodies[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownBody, id)
	}
	return b, nil
}
