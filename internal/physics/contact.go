package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// contact pushes body a away from body b along normal.
type contact struct {
	a, b   *body
	point  mgl64.Vec3
	normal mgl64.Vec3
	depth  float64

	t1, t2   mgl64.Vec3
	massN    float64
	massT1   float64
	massT2   float64
	bias     float64
	friction float64
	accN     float64
	accT1    float64
	accT2    float64
}

// collide generates contacts for every dynamic body against static boxes
// and spheres and against every other dynamic body. Boxes test their corners
// against each other, so box pairs only catch corner penetration.
func (w *World) collide() []contact {
	var out []contact
	for i, a := range w.order {
		if a.static() {
			continue
		}
		for j, b := range w.order {
			if i == j {
				continue
			}
			// dynamic pairs are visited once
			if !b.static() && j < i {
				continue
			}
			out = appendPairContacts(out, a, b)
		}
	}
	return out
}

// appendPairContacts pushes a away from b. Sphere and box pairs are always
// solved with the sphere as the first body, whichever order they came in.
func appendPairContacts(out []contact, a, b *body) []contact {
	switch sb := b.shape.(type) {
	case Box:
		switch sa := a.shape.(type) {
		case Sphere:
			return appendSphereBox(out, a, sa.Radius, b, sb)
		case Box:
			for _, c := range sa.corners() {
				out = appendPointBox(out, a, a.transform().Apply(c), b, sb)
			}
			for _, c := range sb.corners() {
				out = appendPointBox(out, b, b.transform().Apply(c), a, sa)
			}
		}
	case Sphere:
		switch sa := a.shape.(type) {
		case Sphere:
			return appendSphereSphere(out, a, sa.Radius, b, sb.Radius)
		case Box:
			return appendSphereBox(out, b, sb.Radius, a, sa)
		}
	}
	return out
}

func appendSphereBox(out []contact, a *body, radius float64, s *body, box Box) []contact {
	inv := s.orientation.Conjugate()
	c := inv.Rotate(a.position.Sub(s.position))
	he := box.HalfExtents
	closest := mgl64.Vec3{
		mgl64.Clamp(c.X(), -he.X(), he.X()),
		mgl64.Clamp(c.Y(), -he.Y(), he.Y()),
		mgl64.Clamp(c.Z(), -he.Z(), he.Z()),
	}
	d := c.Sub(closest)
	dist := d.Len()
	if dist > radius {
		return out
	}

	var nLocal mgl64.Vec3
	var depth float64
	if dist > 1e-9 {
		nLocal = d.Mul(1 / dist)
		depth = radius - dist
	} else {
		axis, sign, pen := minPenetration(c, he)
		nLocal[axis] = sign
		closest[axis] = sign * he[axis]
		depth = pen + radius
	}
	return append(out, contact{
		a:      a,
		b:      s,
		point:  s.transform().Apply(closest),
		normal: s.orientation.Rotate(nLocal),
		depth:  depth,
	})
}

func appendPointBox(out []contact, a *body, p mgl64.Vec3, s *body, box Box) []contact {
	c := s.orientation.Conjugate().Rotate(p.Sub(s.position))
	he := box.HalfExtents
	for i := 0; i < 3; i++ {
		if math.Abs(c[i]) > he[i] {
			return out
		}
	}
	axis, sign, pen := minPenetration(c, he)
	var nLocal mgl64.Vec3
	nLocal[axis] = sign
	return append(out, contact{
		a:      a,
		b:      s,
		point:  p,
		normal: s.orientation.Rotate(nLocal),
		depth:  pen,
	})
}

func appendSphereSphere(out []contact, a *body, ra float64, b *body, rb float64) []contact {
	d := a.position.Sub(b.position)
	dist := d.Len()
	if dist >= ra+rb {
		return out
	}
	n := mgl64.Vec3{0, 1, 0}
	if dist > 1e-9 {
		n = d.Mul(1 / dist)
	}
	return append(out, contact{
		a:      a,
		b:      b,
		point:  b.position.Add(n.Mul(rb)),
		normal: n,
		depth:  ra + rb - dist,
	})
}

// minPenetration picks the box face closest to local point c.
func minPenetration(c, he mgl64.Vec3) (axis int, sign, pen float64) {
	pen = math.Inf(1)
	for i := 0; i < 3; i++ {
		if p := he[i] - math.Abs(c[i]); p < pen {
			pen = p
			axis = i
		}
	}
	sign = 1
	if c[axis] < 0 {
		sign = -1
	}
	return axis, sign, pen
}

func (c *contact) prepare(h float64) {
	c.t1, c.t2 = tangentBasis(c.normal)
	c.massN = inverseOrZero(c.a.impulseDenominator(c.point, c.normal) + c.b.impulseDenominator(c.point, c.normal))
	c.massT1 = inverseOrZero(c.a.impulseDenominator(c.point, c.t1) + c.b.impulseDenominator(c.point, c.t1))
	c.massT2 = inverseOrZero(c.a.impulseDenominator(c.point, c.t2) + c.b.impulseDenominator(c.point, c.t2))
	c.friction = math.Sqrt(c.a.friction * c.b.friction)

	vn := c.relativeVelocity().Dot(c.normal)
	restitution := math.Max(c.a.restitution, c.b.restitution)
	if vn < -restitutionThreshold {
		c.bias = -restitution * vn
	}
	if push := baumgarte / h * math.Max(c.depth-penetrationSlop, 0); push > c.bias {
		c.bias = push
	}
}

func (c *contact) solve() {
	vn := c.relativeVelocity().Dot(c.normal)
	lambda := (c.bias - vn) * c.massN
	acc := math.Max(c.accN+lambda, 0)
	lambda = acc - c.accN
	c.accN = acc
	c.apply(c.normal.Mul(lambda))

	limit := c.friction * c.accN
	c.accT1 = c.solveTangent(c.t1, c.massT1, c.accT1, limit)
	c.accT2 = c.solveTangent(c.t2, c.massT2, c.accT2, limit)
}

func (c *contact) solveTangent(t mgl64.Vec3, mass, acc, limit float64) float64 {
	vt := c.relativeVelocity().Dot(t)
	next := mgl64.Clamp(acc-vt*mass, -limit, limit)
	c.apply(t.Mul(next - acc))
	return next
}

func (c *contact) relativeVelocity() mgl64.Vec3 {
	return c.a.velocityAt(c.point).Sub(c.b.velocityAt(c.point))
}

func (c *contact) apply(impulse mgl64.Vec3) {
	c.a.applyImpulse(impulse, c.point)
	c.b.applyImpulse(impulse.Mul(-1), c.point)
}

func tangentBasis(n mgl64.Vec3) (mgl64.Vec3, mgl64.Vec3) {
	ref := mgl64.Vec3{1, 0, 0}
	if math.Abs(n.X()) > 0.9 {
		ref = mgl64.Vec3{0, 0, 1}
	}
	t1 := n.Cross(ref).Normalize()
	return t1, n.Cross(t1)
}

func inverseOrZero(v float64) float64 {
	if v <= 1e-12 {
		return 0
	}
	return 1 / v
}
