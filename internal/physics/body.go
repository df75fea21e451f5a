package physics

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// BodyID is an opaque handle to a body owned by a World. The zero value never
// refers to a body.
type BodyID uint32

// Transform is a world-space pose.
type Transform struct {
	Position    mgl64.Vec3
	Orientation mgl64.Quat
}

// Apply maps a point from body space to world space.
func (t Transform) Apply(p mgl64.Vec3) mgl64.Vec3 {
	return t.Position.Add(t.Orientation.Rotate(p))
}

type body struct {
	id    BodyID
	shape Shape

	position    mgl64.Vec3
	orientation mgl64.Quat
	linVel      mgl64.Vec3
	angVel      mgl64.Vec3

	mass            float64
	invMass         float64
	invInertiaLocal mgl64.Vec3
	invInertiaWorld mgl64.Mat3

	friction    float64
	restitution float64
}

func (b *body) static() bool {
	return b.invMass == 0
}

func (b *body) transform() Transform {
	return Transform{Position: b.position, Orientation: b.orientation}
}

// velocityAt returns the velocity of the body material at world point p.
func (b *body) velocityAt(p mgl64.Vec3) mgl64.Vec3 {
	return b.linVel.Add(b.angVel.Cross(p.Sub(b.position)))
}

// applyImpulse changes linear and angular velocity by an impulse applied at
// world point p.
func (b *body) applyImpulse(impulse, p mgl64.Vec3) {
	if b.static() {
		return
	}
	b.linVel = b.linVel.Add(impulse.Mul(b.invMass))
	r := p.Sub(b.position)
	b.angVel = b.angVel.Add(b.invInertiaWorld.Mul3x1(r.Cross(impulse)))
}

// impulseDenominator is the effective inverse mass of the body at world point
// p along direction n.
func (b *body) impulseDenominator(p, n mgl64.Vec3) float64 {
	if b.static() {
		return 0
	}
	r := p.Sub(b.position)
	return b.invMass + b.invInertiaWorld.Mul3x1(r.Cross(n)).Cross(r).Dot(n)
}

func (b *body) updateInertia() {
	if b.static() {
		return
	}
	// I_world^-1 = R * I_local^-1 * R^T
	r := quatToMat3(b.orientation)
	local := mgl64.Mat3{
		b.invInertiaLocal.X(), 0, 0,
		0, b.invInertiaLocal.Y(), 0,
		0, 0, b.invInertiaLocal.Z(),
	}
	b.invInertiaWorld = r.Mul3(local).Mul3(r.Transpose())
}

func (b *body) integrate(h float64) {
	if b.static() {
		return
	}
	b.position = b.position.Add(b.linVel.Mul(h))
	w := b.angVel.Len()
	if w*h > 1e-12 {
		spin := mgl64.QuatRotate(w*h, b.angVel.Mul(1/w))
		b.orientation = spin.Mul(b.orientation).Normalize()
	}
}

func newBody(id BodyID, shape Shape, tr Transform, mass float64) (*body, error) {
	if shape == nil {
		return nil, fmt.Errorf("%w: nil shape", ErrInvalidShape)
	}
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if !finiteVec(tr.Position) {
		return nil, fmt.Errorf("%w: position %v", ErrInvalidTransform, tr.Position)
	}
	q := tr.Orientation
	if l := q.Len(); l < 1e-9 || math.IsNaN(l) || math.IsInf(l, 0) {
		return nil, fmt.Errorf("%w: orientation %v", ErrInvalidTransform, q)
	}
	b := &body{
		id:          id,
		shape:       shape,
		position:    tr.Position,
		orientation: q.Normalize(),
		mass:        mass,
	}
	if mass > 0 {
		b.invMass = 1 / mass
		inertia := shape.LocalInertia(mass)
		for i, v := range inertia {
			if v > 0 {
				b.invInertiaLocal[i] = 1 / v
			}
		}
		b.updateInertia()
	}
	return b, nil
}

func quatToMat3(q mgl64.Quat) mgl64.Mat3 {
	m4 := q.Mat4()
	return mgl64.Mat3{
		m4[0], m4[1], m4[2],
		m4[4], m4[5], m4[6],
		m4[8], m4[9], m4[10],
	}
}
