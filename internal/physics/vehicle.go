package physics

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// NumWheels is the number of wheels every vehicle carries.
const NumWheels = 4

// Wheel indices.
const (
	FrontLeft = iota
	FrontRight
	RearLeft
	RearRight
)

const (
	sideFrictionStiffness = 1.0
	fwdFrictionFactor     = 0.5
	sideFrictionFactor    = 1.0
	bilateralDamping      = 0.2
	insufficientContact   = -0.1
)

// Chassis-space axes: x left, y up, z forward.
var (
	wheelDirectionCS = mgl64.Vec3{0, -1, 0}
	wheelAxleCS      = mgl64.Vec3{-1, 0, 0}
	chassisForwardCS = mgl64.Vec3{0, 0, 1}
	chassisUpCS      = mgl64.Vec3{0, 1, 0}
)

// Tuning holds the suspension and tyre parameters shared by all wheels.
type Tuning struct {
	SuspensionStiffness  float64 `mapstructure:"suspensionStiffness"`
	DampingCompression   float64 `mapstructure:"dampingCompression"`
	DampingRelaxation    float64 `mapstructure:"dampingRelaxation"`
	FrictionSlip         float64 `mapstructure:"frictionSlip"`
	RollInfluence        float64 `mapstructure:"rollInfluence"`
	SuspensionRestLength float64 `mapstructure:"suspensionRestLength"`
	MaxSuspensionTravel  float64 `mapstructure:"maxSuspensionTravel"`
	MaxSuspensionForce   float64 `mapstructure:"maxSuspensionForce"`
}

// DefaultTuning returns the tuning the car scene ships with.
func DefaultTuning() Tuning {
	return Tuning{
		SuspensionStiffness:  20,
		DampingCompression:   4.4,
		DampingRelaxation:    2.3,
		FrictionSlip:         1000,
		RollInfluence:        0.2,
		SuspensionRestLength: 0.6,
		MaxSuspensionTravel:  5,
		MaxSuspensionForce:   6000,
	}
}

// WheelDescriptor places a wheel relative to the chassis origin.
type WheelDescriptor struct {
	Lateral float64
	Height  float64
	Axial   float64
	Radius  float64
	Width   float64
	Front   bool
}

func (d WheelDescriptor) connection() mgl64.Vec3 {
	return mgl64.Vec3{d.Lateral, d.Height, d.Axial}
}

type wheel struct {
	desc   WheelDescriptor
	tuning Tuning

	steering    float64
	engineForce float64
	brake       float64

	inContact        bool
	suspensionLength float64
	suspensionForce  float64
	relativeVelocity float64
	clippedInvDot    float64
	hardPoint        mgl64.Vec3
	direction        mgl64.Vec3
	axle             mgl64.Vec3
	contactPoint     mgl64.Vec3
	contactNormal    mgl64.Vec3

	rotation      float64
	deltaRotation float64
}

// Vehicle is a raycast vehicle: a dynamic chassis held up by four spring
// rays. Actuation set through the exported methods takes effect on the next
// world step.
type Vehicle struct {
	world   *World
	chassis *body
	wheels  [NumWheels]*wheel
}

// CreateVehicle wraps a dynamic chassis body with four raycast wheels.
func (w *World) CreateVehicle(chassis BodyID, wheels []WheelDescriptor, tuning Tuning) (*Vehicle, error) {
	if len(wheels) != NumWheels {
		return nil, fmt.Errorf("create vehicle: %w: got %d, want %d", ErrWheelCount, len(wheels), NumWheels)
	}
	for i, d := range wheels {
		if !positiveFinite(d.Radius) {
			return nil, fmt.Errorf("create vehicle: wheel %d: %w: radius %v", i, ErrInvalidShape, d.Radius)
		}
		if !finiteVec(d.connection()) {
			return nil, fmt.Errorf("create vehicle: wheel %d: %w: placement %v", i, ErrInvalidTransform, d.connection())
		}
	}
	if !positiveFinite(tuning.SuspensionRestLength) {
		return nil, fmt.Errorf("create vehicle: %w: rest length %v", ErrInvalidShape, tuning.SuspensionRestLength)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	b, err := w.lookup(chassis)
	if err != nil {
		return nil, fmt.Errorf("create vehicle: %w", err)
	}
	if b.static() {
		return nil, fmt.Errorf("create vehicle: %w", ErrStaticChassis)
	}

	v := &Vehicle{world: w, chassis: b}
	for i, d := range wheels {
		v.wheels[i] = &wheel{
			desc:             d,
			tuning:           tuning,
			suspensionLength: tuning.SuspensionRestLength,
		}
		v.updateWheelGeometry(v.wheels[i])
	}
	w.vehicles = append(w.vehicles, v)
	return v, nil
}

// Chassis returns the chassis body handle.
func (v *Vehicle) Chassis() BodyID {
	return v.chassis.id
}

// ApplyEngineForce sets the drive force of one wheel in newtons.
func (v *Vehicle) ApplyEngineForce(force float64, index int) {
	v.world.mu.Lock()
	defer v.world.mu.Unlock()
	if w := v.wheel(index); w != nil {
		w.engineForce = force
	}
}

// SetBrake sets the braking impulse limit of one wheel. Brakes only act on
// wheels with no engine force.
func (v *Vehicle) SetBrake(force float64, index int) {
	v.world.mu.Lock()
	defer v.world.mu.Unlock()
	if w := v.wheel(index); w != nil {
		w.brake = math.Abs(force)
	}
}

// SetSteering sets the steering angle of one wheel in radians. Positive
// angles turn toward the chassis' left (+x).
func (v *Vehicle) SetSteering(angle float64, index int) {
	v.world.mu.Lock()
	defer v.world.mu.Unlock()
	if w := v.wheel(index); w != nil {
		w.steering = angle
	}
}

// Speed returns the chassis speed in km/h, negative when moving backwards.
func (v *Vehicle) Speed() float64 {
	v.world.mu.Lock()
	defer v.world.mu.Unlock()
	return v.speed()
}

// ChassisTransform returns the chassis world transform.
func (v *Vehicle) ChassisTransform() Transform {
	v.world.mu.Lock()
	defer v.world.mu.Unlock()
	return v.chassis.transform()
}

// WheelTransform returns the world transform of a wheel's center, including
// steering and spin.
func (v *Vehicle) WheelTransform(index int) (Transform, error) {
	v.world.mu.Lock()
	defer v.world.mu.Unlock()

	w := v.wheel(index)
	if w == nil {
		return Transform{}, fmt.Errorf("%w: %d", ErrWheelIndex, index)
	}
	v.updateWheelGeometry(w)
	steer := mgl64.QuatRotate(w.steering, chassisUpCS)
	spin := mgl64.QuatRotate(w.rotation, wheelAxleCS.Mul(-1))
	return Transform{
		Position:    w.hardPoint.Add(w.direction.Mul(w.suspensionLength)),
		Orientation: v.chassis.orientation.Mul(steer).Mul(spin).Normalize(),
	}, nil
}

// WheelState is a read-only view of a wheel for instrumentation.
type WheelState struct {
	Steering         float64
	EngineForce      float64
	Brake            float64
	InContact        bool
	SuspensionLength float64
	SuspensionForce  float64
}

// Wheel returns the current state of one wheel.
func (v *Vehicle) Wheel(index int) (WheelState, error) {
	v.world.mu.Lock()
	defer v.world.mu.Unlock()

	w := v.wheel(index)
	if w == nil {
		return WheelState{}, fmt.Errorf("%w: %d", ErrWheelIndex, index)
	}
	return WheelState{
		Steering:         w.steering,
		EngineForce:      w.engineForce,
		Brake:            w.brake,
		InContact:        w.inContact,
		SuspensionLength: w.suspensionLength,
		SuspensionForce:  w.suspensionForce,
	}, nil
}

func (v *Vehicle) wheel(index int) *wheel {
	if index < 0 || index >= NumWheels {
		return nil
	}
	return v.wheels[index]
}

func (v *Vehicle) speed() float64 {
	c := v.chassis
	kmh := 3.6 * c.linVel.Len()
	if c.orientation.Rotate(chassisForwardCS).Dot(c.linVel) < 0 {
		kmh = -kmh
	}
	return kmh
}

func (v *Vehicle) updateWheelGeometry(w *wheel) {
	c := v.chassis
	w.hardPoint = c.transform().Apply(w.desc.connection())
	w.direction = c.orientation.Rotate(wheelDirectionCS)
	up := w.direction.Mul(-1)
	w.axle = mgl64.QuatRotate(w.steering, up).Rotate(c.orientation.Rotate(wheelAxleCS))
}

// update runs once per sub-step with the world lock held.
func (v *Vehicle) update(h float64) {
	for _, w := range v.wheels {
		v.updateWheelGeometry(w)
		v.castRay(w)
	}
	v.updateSuspension()
	for _, w := range v.wheels {
		if !w.inContact {
			continue
		}
		force := math.Min(w.suspensionForce, w.tuning.MaxSuspensionForce)
		v.chassis.applyImpulse(w.contactNormal.Mul(force*h), w.contactPoint)
	}
	v.updateFriction(h)

	fwd := v.chassis.orientation.Rotate(chassisForwardCS)
	for _, w := range v.wheels {
		if w.inContact {
			vel := v.chassis.velocityAt(w.hardPoint)
			proj := fwd.Sub(w.contactNormal.Mul(fwd.Dot(w.contactNormal)))
			w.deltaRotation = proj.Dot(vel) * h / w.desc.Radius
		}
		w.rotation += w.deltaRotation
		w.deltaRotation *= 0.99
	}
}

func (v *Vehicle) castRay(w *wheel) {
	t := w.tuning
	reach := t.SuspensionRestLength + w.desc.Radius
	hit, ok := v.world.raycastStatic(w.hardPoint, w.direction, reach)
	if !ok {
		w.inContact = false
		w.suspensionLength = t.SuspensionRestLength
		w.relativeVelocity = 0
		w.contactNormal = w.direction.Mul(-1)
		w.clippedInvDot = 1
		return
	}

	w.inContact = true
	w.contactPoint = hit.point
	w.contactNormal = hit.normal
	length := hit.distance - w.desc.Radius
	w.suspensionLength = mgl64.Clamp(length,
		t.SuspensionRestLength-t.MaxSuspensionTravel,
		t.SuspensionRestLength+t.MaxSuspensionTravel)

	denom := hit.normal.Dot(w.direction)
	vel := v.chassis.velocityAt(hit.point)
	projVel := hit.normal.Dot(vel)
	if denom >= insufficientContact {
		w.relativeVelocity = 0
		w.clippedInvDot = 1 / -insufficientContact
	} else {
		inv := -1 / denom
		w.relativeVelocity = projVel * inv
		w.clippedInvDot = inv
	}
}

func (v *Vehicle) updateSuspension() {
	mass := v.chassis.mass
	for _, w := range v.wheels {
		if !w.inContact {
			w.suspensionForce = 0
			continue
		}
		t := w.tuning
		force := t.SuspensionStiffness * (t.SuspensionRestLength - w.suspensionLength) * w.clippedInvDot
		damping := t.DampingRelaxation
		if w.relativeVelocity < 0 {
			damping = t.DampingCompression
		}
		force -= damping * w.relativeVelocity
		w.suspensionForce = math.Max(force*mass, 0)
	}
}

func (v *Vehicle) updateFriction(h float64) {
	var (
		forward  [NumWheels]mgl64.Vec3
		side     [NumWheels]float64
		drive    [NumWheels]float64
		onGround int
	)
	for _, w := range v.wheels {
		if w.inContact {
			onGround++
		}
	}
	if onGround == 0 {
		return
	}

	for i, w := range v.wheels {
		if !w.inContact {
			continue
		}
		n := w.contactNormal
		axle := w.axle.Sub(n.Mul(w.axle.Dot(n)))
		if axle.Len() < 1e-9 {
			continue
		}
		axle = axle.Normalize()
		w.axle = axle
		forward[i] = n.Cross(axle).Normalize()
		side[i] = v.bilateralImpulse(w.contactPoint, axle) * sideFrictionStiffness

		if w.engineForce != 0 {
			drive[i] = w.engineForce * h
		} else if w.brake > 0 {
			drive[i] = v.rollingFriction(w.contactPoint, forward[i], w.brake, onGround)
		}
	}

	sliding := false
	var skid [NumWheels]float64
	for i, w := range v.wheels {
		skid[i] = 1
		if !w.inContact {
			continue
		}
		maxImpulse := w.suspensionForce * h * w.tuning.FrictionSlip
		x := drive[i] * fwdFrictionFactor
		y := side[i] * sideFrictionFactor
		if sq := x*x + y*y; sq > maxImpulse*maxImpulse {
			sliding = true
			skid[i] = maxImpulse / math.Sqrt(sq)
		}
	}
	if sliding {
		for i := range v.wheels {
			if side[i] != 0 && skid[i] < 1 {
				drive[i] *= skid[i]
				side[i] *= skid[i]
			}
		}
	}

	up := v.chassis.orientation.Rotate(chassisUpCS)
	for i, w := range v.wheels {
		if !w.inContact {
			continue
		}
		rel := w.contactPoint.Sub(v.chassis.position)
		if drive[i] != 0 {
			v.chassis.applyImpulse(forward[i].Mul(drive[i]), w.contactPoint)
		}
		if side[i] != 0 {
			// lift the side impulse toward the chassis center to limit body roll
			rel = rel.Sub(up.Mul(up.Dot(rel) * (1 - w.tuning.RollInfluence)))
			v.chassis.applyImpulse(w.axle.Mul(side[i]), v.chassis.position.Add(rel))
		}
	}
}

// bilateralImpulse is the impulse along n that damps the chassis velocity at p.
func (v *Vehicle) bilateralImpulse(p, n mgl64.Vec3) float64 {
	denom := v.chassis.impulseDenominator(p, n)
	if denom <= 1e-12 {
		return 0
	}
	rel := n.Dot(v.chassis.velocityAt(p))
	return -bilateralDamping * rel / denom
}

func (v *Vehicle) rollingFriction(p, fwd mgl64.Vec3, maxImpulse float64, onGround int) float64 {
	denom := v.chassis.impulseDenominator(p, fwd)
	if denom <= 1e-12 {
		return 0
	}
	rel := fwd.Dot(v.chassis.velocityAt(p))
	j := -rel / denom / float64(onGround)
	return mgl64.Clamp(j, -maxImpulse, maxImpulse)
}
