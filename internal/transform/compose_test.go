package transform

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kkonteh97/AmmoCarExample/internal/physics"
)

func matrixOf(t *testing.T, p mgl64.Vec3, q mgl64.Quat) []float32 {
	t.Helper()
	out := make([]float32, MatrixSize)
	require.NoError(t, Compose(p, q, out, 0))
	return out
}

func TestComposeIdentity(t *testing.T) {
	out := make([]float32, MatrixSize)
	require.NoError(t, Compose(mgl64.Vec3{1, 2, 3}, mgl64.QuatIdent(), out, 0))

	want := []float32{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		1, 2, 3, 1,
	}
	assert.Equal(t, want, out)
}

func TestComposeQuarterTurnAboutY(t *testing.T) {
	q := mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 1, 0})
	got := matrixOf(t, mgl64.Vec3{}, q)

	want := mgl64.HomogRotate3DY(math.Pi / 2)
	for i := 0; i < MatrixSize; i++ {
		assert.InDelta(t, want[i], float64(got[i]), 1e-5, "element %d", i)
	}
	// +x maps to -z for a positive turn about +y
	assert.InDelta(t, -1, float64(got[2]), 1e-5)
	assert.InDelta(t, 1, float64(got[8]), 1e-5)
}

func TestComposeMatchesMatrixProduct(t *testing.T) {
	q := mgl64.AnglesToQuat(0.3, -1.1, 2.4, mgl64.XYZ)
	p := mgl64.Vec3{-4, 0.5, 12}
	want := mgl64.Translate3D(p.X(), p.Y(), p.Z()).Mul4(q.Mat4())

	got := matrixOf(t, p, q)
	for i := 0; i < MatrixSize; i++ {
		assert.InDelta(t, want[i], float64(got[i]), 1e-5, "element %d", i)
	}
}

func TestComposeSlotIsolation(t *testing.T) {
	const count = 4
	buf := make([]float32, Slot(count))
	for i := range buf {
		buf[i] = -7
	}

	k := 2
	require.NoError(t, Compose(mgl64.Vec3{9, 9, 9}, mgl64.QuatIdent(), buf, Slot(k)))

	for i, v := range buf {
		if i >= Slot(k) && i < Slot(k+1) {
			continue
		}
		if v != -7 {
			t.Fatalf("expected untouched value at %d, got=%v", i, v)
		}
	}
	assert.Equal(t, float32(9), buf[Slot(k)+12])
	assert.Equal(t, float32(1), buf[Slot(k)+15])
}

func TestComposeRejectsOutOfRangeSlot(t *testing.T) {
	buf := make([]float32, Slot(2))
	assert.ErrorIs(t, Compose(mgl64.Vec3{}, mgl64.QuatIdent(), buf, Slot(2)), ErrSlotOutOfRange)
	assert.ErrorIs(t, Compose(mgl64.Vec3{}, mgl64.QuatIdent(), buf, -1), ErrSlotOutOfRange)
	assert.ErrorIs(t, Compose(mgl64.Vec3{}, mgl64.QuatIdent(), buf, 20), ErrSlotOutOfRange)
}

func TestPoseConversion(t *testing.T) {
	tr := physics.Transform{
		Position:    mgl64.Vec3{1, -2, 3.5},
		Orientation: mgl64.QuatRotate(0.7, mgl64.Vec3{0, 0, 1}),
	}
	p := Pose(tr)
	assert.Equal(t, 3.5, p.Position.Z)
	assert.Equal(t, tr.Orientation.W, p.Orientation.W)
	assert.Equal(t, tr, FromPose(p))
}
