// Package transform turns simulation poses into renderer data: 4x4
// column-major instance matrices and wire poses.
package transform

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/kkonteh97/AmmoCarExample/internal/physics"
	"github.com/kkonteh97/AmmoCarExample/internal/shared/types"
)

// MatrixSize is the number of floats in one instance matrix.
const MatrixSize = 16

var ErrSlotOutOfRange = errors.New("matrix slot out of range")

// Slot returns the buffer offset of instance i.
func Slot(i int) int {
	return MatrixSize * i
}

// Compose writes the affine matrix for position and unit orientation into
// out[offset:offset+16] in column-major order: rotation columns at 0..2,
// 4..6 and 8..10, translation at 12..14, and [15] = 1. Nothing outside that
// range is touched.
func Compose(position mgl64.Vec3, orientation mgl64.Quat, out []float32, offset int) error {
	if offset < 0 || offset+MatrixSize > len(out) {
		return fmt.Errorf("%w: offset %d, buffer length %d", ErrSlotOutOfRange, offset, len(out))
	}

	x, y, z, w := orientation.V.X(), orientation.V.Y(), orientation.V.Z(), orientation.W
	x2, y2, z2 := x+x, y+y, z+z
	xx, xy, xz := x*x2, x*y2, x*z2
	yy, yz, zz := y*y2, y*z2, z*z2
	wx, wy, wz := w*x2, w*y2, w*z2

	m := out[offset : offset+MatrixSize : offset+MatrixSize]
	m[0] = float32(1 - (yy + zz))
	m[1] = float32(xy + wz)
	m[2] = float32(xz - wy)
	m[3] = 0

	m[4] = float32(xy - wz)
	m[5] = float32(1 - (xx + zz))
	m[6] = float32(yz + wx)
	m[7] = 0

	m[8] = float32(xz + wy)
	m[9] = float32(yz - wx)
	m[10] = float32(1 - (xx + yy))
	m[11] = 0

	m[12] = float32(position.X())
	m[13] = float32(position.Y())
	m[14] = float32(position.Z())
	m[15] = 1
	return nil
}

// Pose converts a physics transform to its wire form.
func Pose(t physics.Transform) types.Pose {
	return types.Pose{
		Position: types.Vec3{X: t.Position.X(), Y: t.Position.Y(), Z: t.Position.Z()},
		Orientation: types.Quat{
			X: t.Orientation.V.X(),
			Y: t.Orientation.V.Y(),
			Z: t.Orientation.V.Z(),
			W: t.Orientation.W,
		},
	}
}

// FromPose converts a wire pose back into a physics transform.
func FromPose(p types.Pose) physics.Transform {
	return physics.Transform{
		Position: mgl64.Vec3{p.Position.X, p.Position.Y, p.Position.Z},
		Orientation: mgl64.Quat{
			W: p.Orientation.W,
			V: mgl64.Vec3{p.Orientation.X, p.Orientation.Y, p.Orientation.Z},
		},
	}
}
