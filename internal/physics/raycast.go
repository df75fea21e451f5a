package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

type rayHit struct {
	distance float64
	point    mgl64.Vec3
	normal   mgl64.Vec3
}

// raycastStatic casts a ray against static geometry and returns the closest
// hit within maxDist. Rays starting inside a shape do not hit it.
func (w *World) raycastStatic(from, dir mgl64.Vec3, maxDist float64) (rayHit, bool) {
	best := rayHit{distance: math.Inf(1)}
	found := false
	for _, b := range w.order {
		if !b.static() {
			continue
		}
		var (
			hit rayHit
			ok  bool
		)
		switch s := b.shape.(type) {
		case Box:
			hit, ok = rayBox(from, dir, maxDist, b, s)
		case Sphere:
			hit, ok = raySphere(from, dir, maxDist, b.position, s.Radius)
		}
		if ok && hit.distance < best.distance {
			best = hit
			found = true
		}
	}
	return best, found
}

func rayBox(from, dir mgl64.Vec3, maxDist float64, b *body, box Box) (rayHit, bool) {
	inv := b.orientation.Conjugate()
	o := inv.Rotate(from.Sub(b.position))
	d := inv.Rotate(dir)
	he := box.HalfExtents

	tmin, tmax := math.Inf(-1), math.Inf(1)
	axis, sign := -1, 0.0
	for i := 0; i < 3; i++ {
		if math.Abs(d[i]) < 1e-12 {
			if o[i] < -he[i] || o[i] > he[i] {
				return rayHit{}, false
			}
			continue
		}
		t1 := (-he[i] - o[i]) / d[i]
		t2 := (he[i] - o[i]) / d[i]
		s := -1.0
		if t1 > t2 {
			t1, t2 = t2, t1
			s = 1
		}
		if t1 > tmin {
			tmin = t1
			axis = i
			sign = s
		}
		tmax = math.Min(tmax, t2)
		if tmin > tmax {
			return rayHit{}, false
		}
	}
	if axis < 0 || tmin < 0 || tmin > maxDist {
		return rayHit{}, false
	}
	var n mgl64.Vec3
	n[axis] = sign
	return rayHit{
		distance: tmin,
		point:    from.Add(dir.Mul(tmin)),
		normal:   b.orientation.Rotate(n),
	}, true
}

func raySphere(from, dir mgl64.Vec3, maxDist float64, center mgl64.Vec3, radius float64) (rayHit, bool) {
	m := from.Sub(center)
	bq := m.Dot(dir)
	c := m.Dot(m) - radius*radius
	if c < 0 {
		return rayHit{}, false
	}
	disc := bq*bq - c
	if bq > 0 || disc < 0 {
		return rayHit{}, false
	}
	t := -bq - math.Sqrt(disc)
	if t > maxDist {
		return rayHit{}, false
	}
	p := from.Add(dir.Mul(t))
	return rayHit{distance: t, point: p, normal: p.Sub(center).Normalize()}, true
}
