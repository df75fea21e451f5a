package physics

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testWheels() []WheelDescriptor {
	return []WheelDescriptor{
		{Lateral: 1.1, Height: 0.3, Axial: 1.3, Radius: 0.35, Width: 0.2, Front: true},
		{Lateral: -1.1, Height: 0.3, Axial: 1.3, Radius: 0.35, Width: 0.2, Front: true},
		{Lateral: -1.1, Height: 0.3, Axial: -1.3, Radius: 0.4, Width: 0.3},
		{Lateral: 1.1, Height: 0.3, Axial: -1.3, Radius: 0.4, Width: 0.3},
	}
}

func newTestVehicle(t *testing.T) (*World, *Vehicle) {
	t.Helper()
	w, _ := newGroundWorld(t)
	chassis, err := w.CreateDynamicBody(BoxFromSize(1.8, 0.6, 4), mgl64.Vec3{0, 1.2, 0}, mgl64.QuatIdent(), 800)
	require.NoError(t, err)
	v, err := w.CreateVehicle(chassis, testWheels(), DefaultTuning())
	require.NoError(t, err)
	return w, v
}

func settle(w *World, steps int) {
	for _i := 0; _i < steps; _i++ {
		w.Step(DefaultFixedStep, DefaultMaxSubSteps)
	}
}

func TestCreateVehicleValidation(t *testing.T) {
	w, ground := newGroundWorld(t)
	chassis, err := w.CreateDynamicBody(BoxFromSize(1.8, 0.6, 4), mgl64.Vec3{0, 2, 0}, mgl64.QuatIdent(), 800)
	require.NoError(t, err)

	_, err = w.CreateVehicle(chassis, testWheels()[:3], DefaultTuning())
	assert.ErrorIs(t, err, ErrWheelCount)

	bad := testWheels()
	bad[2].Radius = 0
	_, err = w.CreateVehicle(chassis, bad, DefaultTuning())
	assert.ErrorIs(t, err, ErrInvalidShape)

	_, err = w.CreateVehicle(ground, testWheels(), DefaultTuning())
	assert.ErrorIs(t, err, ErrStaticChassis)

	_, err = w.CreateVehicle(chassis+50, testWheels(), DefaultTuning())
	assert.ErrorIs(t, err, ErrUnknownBody)

	v, err := w.CreateVehicle(chassis, testWheels(), DefaultTuning())
	require.NoError(t, err)
	assert.Equal(t, chassis, v.Chassis())
}

func TestWheelIndexOutOfRange(t *testing.T) {
	_, v := newTestVehicle(t)

	_, err := v.WheelTransform(NumWheels)
	assert.ErrorIs(t, err, ErrWheelIndex)
	_, err = v.Wheel(-1)
	assert.ErrorIs(t, err, ErrWheelIndex)

	// out of range actuation is ignored
	v.ApplyEngineForce(1000, 7)
	v.SetBrake(10, -2)
	v.SetSteering(0.3, 4)
	for i := 0; i < NumWheels; i++ {
		ws, err := v.Wheel(i)
		require.NoError(t, err)
		assert.Zero(t, ws.EngineForce)
		assert.Zero(t, ws.Brake)
		assert.Zero(t, ws.Steering)
	}
}

func TestVehicleRestsOnSuspension(t *testing.T) {
	w, v := newTestVehicle(t)
	settle(w, 240)

	for i := 0; i < NumWheels; i++ {
		ws, err := v.Wheel(i)
		require.NoError(t, err)
		assert.True(t, ws.InContact, "wheel %d should touch the ground", i)
		assert.Greater(t, ws.SuspensionForce, 0.0)
	}

	tr := v.ChassisTransform()
	assert.InDelta(t, 1.05, tr.Position.Y(), 0.1)
	assert.InDelta(t, 0, v.Speed(), 0.5)
}

func TestVehicleAcceleratesWithFrontDrive(t *testing.T) {
	w, v := newTestVehicle(t)
	settle(w, 120)
	start := v.ChassisTransform().Position

	v.ApplyEngineForce(2000, FrontLeft)
	v.ApplyEngineForce(2000, FrontRight)
	settle(w, 60)

	end := v.ChassisTransform().Position
	assert.Greater(t, end.Z(), start.Z()+1, "vehicle should move forward along +z")
	assert.InDelta(t, start.X(), end.X(), 0.05, "straight-line drive should not drift sideways")
	assert.Greater(t, v.Speed(), 10.0)
}

func TestVehicleBrakesToRest(t *testing.T) {
	w, v := newTestVehicle(t)
	settle(w, 60)
	chassis := v.Chassis()
	require.NoError(t, w.SetLinearVelocity(chassis, mgl64.Vec3{0, 0, 5}))
	for i := 0; i < NumWheels; i++ {
		v.SetBrake(100, i)
	}

	settle(w, 180)

	assert.InDelta(t, 0, v.Speed(), 1)
}

func TestVehicleSteersTowardPositiveX(t *testing.T) {
	w, v := newTestVehicle(t)
	settle(w, 120)

	v.SetSteering(0.5, FrontLeft)
	v.SetSteering(0.5, FrontRight)
	v.ApplyEngineForce(2000, FrontLeft)
	v.ApplyEngineForce(2000, FrontRight)
	settle(w, 60)

	assert.Greater(t, v.ChassisTransform().Position.X(), 0.1)
}

func TestWheelTransformFollowsChassis(t *testing.T) {
	w, v := newTestVehicle(t)
	settle(w, 120)

	chassis := v.ChassisTransform()
	fl, err := v.WheelTransform(FrontLeft)
	require.NoError(t, err)
	rr, err := v.WheelTransform(RearRight)
	require.NoError(t, err)

	assert.Greater(t, fl.Position.X(), chassis.Position.X())
	assert.Greater(t, fl.Position.Z(), chassis.Position.Z())
	assert.Greater(t, rr.Position.X(), chassis.Position.X())
	assert.Less(t, rr.Position.Z(), chassis.Position.Z())
	assert.Less(t, fl.Position.Y(), chassis.Position.Y())
	assert.InDelta(t, 1, fl.Orientation.Len(), 1e-9)
}
