package hardware

import (
	"math"

	"github.com/golang/geo/r2"
)

// WheelSpeeds are mecanum wheel commands in [-1, 1].
type WheelSpeeds struct {
	FrontLeft, FrontRight, BackLeft, BackRight float64
}

// RotateToRobotFrame turns a field-relative (strafe, forward) vector into
// the robot's frame, given the robot's heading in degrees (anti-clockwise
// positive).
func RotateToRobotFrame(forward, strafe, headingDegrees float64) (robotForward, robotStrafe float64) {
	if headingDegrees == 0 {
		return forward, strafe
	}
	theta := -headingDegrees * math.Pi / 180
	v := r2.Point{X: strafe, Y: forward}
	rotated := v.Mul(math.Cos(theta)).Add(v.Ortho().Mul(math.Sin(theta)))
	return rotated.Y, rotated.X
}

// Mix converts a drive command into wheel speeds.  Rotation is positive
// anti-clockwise.  If any wheel would exceed full speed, all four are scaled
// down together to keep the direction of travel.
func Mix(forward, strafe, rotation, headingDegrees float64) WheelSpeeds {
	forward, strafe = RotateToRobotFrame(forward, strafe, headingDegrees)

	frontLeft := forward + strafe - rotation
	frontRight := forward - strafe + rotation
	backLeft := forward - strafe - rotation
	backRight := forward + strafe + rotation

	m1 := math.Max(math.Abs(frontLeft), math.Abs(frontRight))
	m2 := math.Max(math.Abs(backLeft), math.Abs(backRight))
	m := math.Max(m1, m2)
	scale := 1.0
	if m > 1 {
		scale = 1.0 / m
	}

	return WheelSpeeds{
		FrontLeft:  frontLeft * scale,
		FrontRight: frontRight * scale,
		BackLeft:   backLeft * scale,
		BackRight:  backRight * scale,
	}
}

// escPulse maps a motor speed in [-1, 1] to the 0..1 servo range, 0.5 being
// stopped.
func escPulse(speed float64) float64 {
	if math.IsNaN(speed) {
		return 0.5
	}
	speed = math.Max(-1, math.Min(1, speed))
	return (speed + 1) / 2
}
