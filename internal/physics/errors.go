package physics

import "errors"

var (
	// ErrInvalidShape is returned when a shape has a non-positive or non-finite dimension.
	ErrInvalidShape = errors.New("physics: invalid shape")
	// ErrInvalidMass is returned when a dynamic body is created without a positive finite mass.
	ErrInvalidMass = errors.New("physics: invalid mass")
	// ErrInvalidTransform is returned for non-finite positions or a zero orientation.
	ErrInvalidTransform = errors.New("physics: invalid transform")
	// ErrUnknownBody is returned when a handle does not refer to a body of this world.
	ErrUnknownBody = errors.New("physics: unknown body")
	// ErrStaticChassis is returned when a vehicle is built on a body without mass.
	ErrStaticChassis = errors.New("physics: vehicle chassis must be dynamic")
	// ErrWheelCount is returned when a vehicle is not given exactly NumWheels wheels.
	ErrWheelCount = errors.New("physics: wrong wheel count")
	// ErrWheelIndex is returned for a wheel index outside [0, NumWheels).
	ErrWheelIndex = errors.New("physics: wheel index out of range")
)
