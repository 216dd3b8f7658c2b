package hardware

import "context"

// ActuatorSink receives the final, already-bounded commands.
type ActuatorSink interface {
	// SetDriveOutput drives the base.  headingOffsetDegrees is the robot's
	// heading when driving field relative; the forward/strafe vector is
	// rotated by it before mixing.
	SetDriveOutput(forward, strafe, rotation, headingOffsetDegrees float64)
	SetLiftOutput(speed float64)
	// SetRawWheelOutput drives every wheel at the same speed, no mixing.
	SetRawWheelOutput(speed float64)
	SetClamps(leftClosed, rightClosed bool)
}

// SensorSource returns the latest cached readings; none of its methods block.
type SensorSource interface {
	// CurrentHeadingDegrees is continuous: it does not wrap at +/-180.
	CurrentHeadingDegrees() float64
	// CurrentRotationalRate is in degrees per second, positive when the
	// heading is increasing.
	CurrentRotationalRate() float64
	IsHighLimitActive() bool
	IsLowLimitActive() bool
	RawElevationSample() float64
}

type Interface interface {
	ActuatorSink
	SensorSource

	Start(ctx context.Context) error
	// StopMotors zeroes every motor output.
	StopMotors()
	PlaySound(path string)
	Shutdown()
}
