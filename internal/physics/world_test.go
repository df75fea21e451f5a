package physics

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGroundWorld(t *testing.T) (*World, BodyID) {
	t.Helper()
	w := NewWorld(DefaultConfig())
	ground, err := w.CreateStaticBody(BoxFromSize(200, 1, 200), mgl64.Vec3{}, mgl64.QuatIdent(), 0.5)
	require.NoError(t, err)
	return w, ground
}

func TestCreateBodyRejectsMalformedShapes(t *testing.T) {
	w, _ := newGroundWorld(t)
	before := w.BodyCount()

	tests := []struct {
		name  string
		shape Shape
		mass  float64
		quat  mgl64.Quat
		want  error
	}{
		{name: "zero radius", shape: Sphere{Radius: 0}, mass: 1, quat: mgl64.QuatIdent(), want: ErrInvalidShape},
		{name: "negative radius", shape: Sphere{Radius: -1}, mass: 1, quat: mgl64.QuatIdent(), want: ErrInvalidShape},
		{name: "nan extent", shape: Box{HalfExtents: mgl64.Vec3{1, math.NaN(), 1}}, mass: 1, quat: mgl64.QuatIdent(), want: ErrInvalidShape},
		{name: "negative extent", shape: BoxFromSize(1, -2, 1), mass: 1, quat: mgl64.QuatIdent(), want: ErrInvalidShape},
		{name: "nil shape", shape: nil, mass: 1, quat: mgl64.QuatIdent(), want: ErrInvalidShape},
		{name: "zero mass", shape: Sphere{Radius: 1}, mass: 0, quat: mgl64.QuatIdent(), want: ErrInvalidMass},
		{name: "infinite mass", shape: Sphere{Radius: 1}, mass: math.Inf(1), quat: mgl64.QuatIdent(), want: ErrInvalidMass},
		{name: "zero quaternion", shape: Sphere{Radius: 1}, mass: 1, quat: mgl64.Quat{}, want: ErrInvalidTransform},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := w.CreateDynamicBody(tt.shape, mgl64.Vec3{0, 3, 0}, tt.quat, tt.mass)
			require.ErrorIs(t, err, tt.want)
			assert.Zero(t, id)
		})
	}

	_, err := w.CreateStaticBody(Sphere{Radius: 0}, mgl64.Vec3{}, mgl64.QuatIdent(), 1)
	require.ErrorIs(t, err, ErrInvalidShape)

	assert.Equal(t, before, w.BodyCount(), "rejected bodies must not be registered")
}

func TestTransformUnknownBody(t *testing.T) {
	w, ground := newGroundWorld(t)

	_, err := w.Transform(ground + 100)
	require.ErrorIs(t, err, ErrUnknownBody)
	_, err = w.Transform(0)
	require.ErrorIs(t, err, ErrUnknownBody)
	assert.False(t, w.Has(0))
	assert.True(t, w.Has(ground))
}

func TestStepNonPositiveDeltaIsNoop(t *testing.T) {
	w, _ := newGroundWorld(t)
	ball, err := w.CreateDynamicBody(Sphere{Radius: 0.5}, mgl64.Vec3{1, 5, 2}, mgl64.QuatIdent(), 1)
	require.NoError(t, err)
	require.NoError(t, w.SetLinearVelocity(ball, mgl64.Vec3{1, 0, 0}))

	before, err := w.Transform(ball)
	require.NoError(t, err)

	for _, dt := range []float64{0, -0.5, math.NaN(), math.Inf(1), math.Inf(-1)} {
		assert.Equal(t, 0, w.Step(dt, 10), "delta %v", dt)
	}

	after, err := w.Transform(ball)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, uint64(0), w.Steps())
}

func TestStepSubdividesIntoFixedSteps(t *testing.T) {
	w, _ := newGroundWorld(t)

	assert.Equal(t, 1, w.Step(DefaultFixedStep, 10))
	assert.Equal(t, 2, w.Step(2*DefaultFixedStep, 10))
	// half a step accumulates until a whole step is available
	assert.Equal(t, 0, w.Step(DefaultFixedStep/2, 10))
	assert.Equal(t, 1, w.Step(DefaultFixedStep/2, 10))
	assert.Equal(t, uint64(4), w.Steps())
}

func TestStepCapsPathologicalDelta(t *testing.T) {
	w, _ := newGroundWorld(t)
	ball, err := w.CreateDynamicBody(Sphere{Radius: 0.5}, mgl64.Vec3{0, 100, 0}, mgl64.QuatIdent(), 1)
	require.NoError(t, err)

	n := w.Step(30, 10)
	assert.Equal(t, 10, n)

	// the dropped remainder is not replayed on the next call
	assert.Equal(t, 1, w.Step(DefaultFixedStep, 10))

	tr, err := w.Transform(ball)
	require.NoError(t, err)
	fallTime := 11 * DefaultFixedStep
	maxDrop := 0.5*10*fallTime*fallTime + 0.1
	assert.Greater(t, tr.Position.Y(), 100-maxDrop)
}

func TestSphereSettlesOnGround(t *testing.T) {
	w, _ := newGroundWorld(t)
	ball, err := w.CreateDynamicBody(Sphere{Radius: 0.5}, mgl64.Vec3{0, 3, 0}, mgl64.QuatIdent(), 1)
	require.NoError(t, err)

	for _i := 0; _i < 300; _i++ {
		w.Step(DefaultFixedStep, 10)
	}

	tr, err := w.Transform(ball)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, tr.Position.Y(), 0.02, "ball should rest on the ground top at y=0.5")
	assert.InDelta(t, 0, tr.Position.X(), 1e-6)
	assert.InDelta(t, 0, tr.Position.Z(), 1e-6)
}

func TestStaticBodyNeverMoves(t *testing.T) {
	w, ground := newGroundWorld(t)
	_, err := w.CreateDynamicBody(BoxFromSize(1, 1, 1), mgl64.Vec3{0, 2, 0}, mgl64.QuatIdent(), 10)
	require.NoError(t, err)

	for _i := 0; _i < 120; _i++ {
		w.Step(DefaultFixedStep, 10)
	}

	tr, err := w.Transform(ground)
	require.NoError(t, err)
	assert.Equal(t, mgl64.Vec3{}, tr.Position)
	assert.Equal(t, mgl64.QuatIdent(), tr.Orientation)
}

func TestBoxComesToRestOnGround(t *testing.T) {
	w, _ := newGroundWorld(t)
	crate, err := w.CreateDynamicBody(BoxFromSize(1, 1, 1), mgl64.Vec3{0, 2, 0}, mgl64.QuatIdent(), 10)
	require.NoError(t, err)

	for _i := 0; _i < 300; _i++ {
		w.Step(DefaultFixedStep, 10)
	}

	tr, err := w.Transform(crate)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, tr.Position.Y(), 0.03)
	v, err := w.LinearVelocity(crate)
	require.NoError(t, err)
	assert.Less(t, v.Len(), 0.1)
}

func TestSpheresDoNotInterpenetrate(t *testing.T) {
	w, _ := newGroundWorld(t)
	lower, err := w.CreateDynamicBody(Sphere{Radius: 0.5}, mgl64.Vec3{0, 1, 0}, mgl64.QuatIdent(), 1)
	require.NoError(t, err)
	upper, err := w.CreateDynamicBody(Sphere{Radius: 0.5}, mgl64.Vec3{0, 2.5, 0}, mgl64.QuatIdent(), 1)
	require.NoError(t, err)

	for _i := 0; _i < 300; _i++ {
		w.Step(DefaultFixedStep, 10)
	}

	a, err := w.Transform(lower)
	require.NoError(t, err)
	b, err := w.Transform(upper)
	require.NoError(t, err)
	assert.Greater(t, b.Position.Sub(a.Position).Len(), 0.95)
}

func TestRayBoxHitsTopFace(t *testing.T) {
	w, ground := newGroundWorld(t)
	b := w.bodies[ground]

	hit, ok := rayBox(mgl64.Vec3{3, 5, -2}, mgl64.Vec3{0, -1, 0}, 10, b, b.shape.(Box))
	require.True(t, ok)
	assert.InDelta(t, 4.5, hit.distance, 1e-9)
	assert.InDelta(t, 1, hit.normal.Y(), 1e-9)

	_, ok = rayBox(mgl64.Vec3{3, 5, -2}, mgl64.Vec3{0, -1, 0}, 4, b, b.shape.(Box))
	assert.False(t, ok, "hit beyond max distance")

	_, ok = rayBox(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{0, -1, 0}, 10, b, b.shape.(Box))
	assert.False(t, ok, "ray starting inside the box")
}

func TestSphereRestsOnDynamicBox(t *testing.T) {
	w, _ := newGroundWorld(t)
	crate, err := w.CreateDynamicBody(BoxFromSize(2, 1, 2), mgl64.Vec3{0, 1, 0}, mgl64.QuatIdent(), 10)
	require.NoError(t, err)
	ball, err := w.CreateDynamicBody(Sphere{Radius: 0.5}, mgl64.Vec3{0, 4, 0}, mgl64.QuatIdent(), 1)
	require.NoError(t, err)

	for _i := 0; _i < 300; _i++ {
		w.Step(DefaultFixedStep, 10)
	}

	c, err := w.Transform(crate)
	require.NoError(t, err)
	b, err := w.Transform(ball)
	require.NoError(t, err)
	// crate top is at y=1.5
	assert.InDelta(t, 1.0, c.Position.Y(), 0.05)
	assert.InDelta(t, 2.0, b.Position.Y(), 0.05)
}

func TestMovingBoxPushesSphere(t *testing.T) {
	w, _ := newGroundWorld(t)
	crate, err := w.CreateDynamicBody(BoxFromSize(1, 1, 1), mgl64.Vec3{-3, 1, 0}, mgl64.QuatIdent(), 10)
	require.NoError(t, err)
	ball, err := w.CreateDynamicBody(Sphere{Radius: 0.5}, mgl64.Vec3{0, 1, 0}, mgl64.QuatIdent(), 1)
	require.NoError(t, err)
	require.NoError(t, w.SetLinearVelocity(crate, mgl64.Vec3{6, 0, 0}))

	for _i := 0; _i < 120; _i++ {
		w.Step(DefaultFixedStep, 10)
	}

	c, err := w.Transform(crate)
	require.NoError(t, err)
	b, err := w.Transform(ball)
	require.NoError(t, err)
	if b.Position.X() < 0.3 {
		t.Fatalf("expected the crate to push the ball along +x, got x=%.3f", b.Position.X())
	}
	assert.Greater(t, b.Position.X()-c.Position.X(), 0.95)
}

func TestRestitutionMakesSpheresBounce(t *testing.T) {
	peak := func(restitution float64) float64 {
		w, _ := newGroundWorld(t)
		ball, err := w.CreateDynamicBody(Sphere{Radius: 0.5}, mgl64.Vec3{0, 5.5, 0}, mgl64.QuatIdent(), 1)
		require.NoError(t, err)
		require.NoError(t, w.SetMaterial(ball, 0.5, restitution))

		// the ball lands after roughly 57 steps
		highest := math.Inf(-1)
		for i := 0; i < 150; i++ {
			w.Step(DefaultFixedStep, 10)
			if i < 70 {
				continue
			}
			tr, err := w.Transform(ball)
			require.NoError(t, err)
			highest = math.Max(highest, tr.Position.Y())
		}
		return highest
	}

	if dead := peak(0); dead > 1.6 {
		t.Fatalf("expected an inelastic ball to stay down, peak=%.3f", dead)
	}
	if bouncy := peak(0.8); bouncy < 2.5 {
		t.Fatalf("expected an elastic ball to rebound, peak=%.3f", bouncy)
	}
}

func TestSetMaterialUnknownBody(t *testing.T) {
	w := NewWorld(DefaultConfig())
	assert.ErrorIs(t, w.SetMaterial(BodyID(42), 0.5, 0.5), ErrUnknownBody)
}
