package physics

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Shape is a collision shape attached to a body.
type Shape interface {
	// Validate reports ErrInvalidShape for malformed dimensions.
	Validate() error
	// LocalInertia returns the diagonal of the inertia tensor for the given mass.
	LocalInertia(mass float64) mgl64.Vec3
	// BoundingRadius is the radius of a sphere enclosing the shape.
	BoundingRadius() float64
}

// Box is an oriented box described by its half extents.
type Box struct {
	HalfExtents mgl64.Vec3
}

// Sphere is a sphere centered on the body origin.
type Sphere struct {
	Radius float64
}

// BoxFromSize builds a Box from full width, height and length, the way
// scene descriptors usually state dimensions.
func BoxFromSize(width, height, length float64) Box {
	return Box{HalfExtents: mgl64.Vec3{width * 0.5, height * 0.5, length * 0.5}}
}

func (b Box) Validate() error {
	for i, e := range b.HalfExtents {
		if !positiveFinite(e) {
			return fmt.Errorf("%w: box half extent %d is %v", ErrInvalidShape, i, e)
		}
	}
	return nil
}

func (b Box) LocalInertia(mass float64) mgl64.Vec3 {
	w := b.HalfExtents.X() * 2
	h := b.HalfExtents.Y() * 2
	d := b.HalfExtents.Z() * 2
	return mgl64.Vec3{
		mass / 12 * (h*h + d*d),
		mass / 12 * (w*w + d*d),
		mass / 12 * (w*w + h*h),
	}
}

func (b Box) BoundingRadius() float64 {
	return b.HalfExtents.Len()
}

// corners returns the eight box corners in body space.
func (b Box) corners() [8]mgl64.Vec3 {
	var out [8]mgl64.Vec3
	he := b.HalfExtents
	for i := range out {
		x, y, z := he.X(), he.Y(), he.Z()
		if i&1 != 0 {
			x = -x
		}
		if i&2 != 0 {
			y = -y
		}
		if i&4 != 0 {
			z = -z
		}
		out[i] = mgl64.Vec3{x, y, z}
	}
	return out
}

func (s Sphere) Validate() error {
	if !positiveFinite(s.Radius) {
		return fmt.Errorf("%w: sphere radius is %v", ErrInvalidShape, s.Radius)
	}
	return nil
}

func (s Sphere) LocalInertia(mass float64) mgl64.Vec3 {
	i := 0.4 * mass * s.Radius * s.Radius
	return mgl64.Vec3{i, i, i}
}

func (s Sphere) BoundingRadius() float64 {
	return s.Radius
}

func positiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

func finiteVec(v mgl64.Vec3) bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}
