package tasks

import (
	"fmt"
	"math"
	"time"

	"github.com/tigerbot-team/stackbot/pkg/headingholder"
	"github.com/tigerbot-team/stackbot/pkg/scheduler"
)

type DriveForTimeParams struct {
	Duration time.Duration `mapstructure:"duration"`
	Forward  float64       `mapstructure:"forward"`
	Strafe   float64       `mapstructure:"strafe"`
}

// DriveForTime drives with a fixed intent for a fixed time.  There are no
// wheel encoders, so time is the only measure of distance.
func DriveForTime(r *Robot, p DriveForTimeParams) *scheduler.Task {
	intent := headingholder.Intent{Forward: p.Forward, Strafe: p.Strafe}
	return scheduler.NewTask(fmt.Sprintf("drive-for-time(%v,%.2f,%.2f)", p.Duration, p.Forward, p.Strafe), scheduler.Hooks{
		Execute: func(t *scheduler.Task) error {
			r.drive(intent)
			return nil
		},
		IsFinished: func(t *scheduler.Task) bool {
			return t.Elapsed() >= p.Duration
		},
	}, Drivebase)
}

type RotateForTimeParams struct {
	Duration time.Duration `mapstructure:"duration"`
	Speed    float64       `mapstructure:"speed"`
}

func RotateForTime(r *Robot, p RotateForTimeParams) *scheduler.Task {
	intent := headingholder.Intent{Rotation: p.Speed}
	return scheduler.NewTask(fmt.Sprintf("rotate-for-time(%v,%.2f)", p.Duration, p.Speed), scheduler.Hooks{
		Execute: func(t *scheduler.Task) error {
			r.drive(intent)
			return nil
		},
		IsFinished: func(t *scheduler.Task) bool {
			return t.Elapsed() >= p.Duration
		},
	}, Drivebase)
}

type RotateByParams struct {
	// Degrees is relative to the heading when the task starts, positive
	// anti-clockwise.
	Degrees float64 `mapstructure:"degrees"`
	// Speed defaults to the configured rotate speed.
	Speed float64 `mapstructure:"speed"`
}

// RotateBy turns on the spot until the heading reaches or passes the target.
func RotateBy(r *Robot, p RotateByParams) *scheduler.Task {
	speed := p.Speed
	if speed == 0 {
		speed = r.Config.RotateSpeed
	}
	speed = math.Abs(speed)
	var target, direction float64
	return scheduler.NewTask(fmt.Sprintf("rotate-by(%.1f)", p.Degrees), scheduler.Hooks{
		Initialize: func(t *scheduler.Task) error {
			start := r.Sensors.CurrentHeadingDegrees()
			target = start + p.Degrees
			direction = sign(p.Degrees)
			r.Logger.Debugw("rotating", "from", start, "to", target)
			return nil
		},
		Execute: func(t *scheduler.Task) error {
			r.drive(headingholder.Intent{Rotation: direction * speed})
			return nil
		},
		IsFinished: func(t *scheduler.Task) bool {
			heading := r.Sensors.CurrentHeadingDegrees()
			switch {
			case direction > 0:
				return heading >= target
			case direction < 0:
				return heading <= target
			default:
				return true
			}
		},
	}, Drivebase)
}

// ToggleFieldRelative flips between robot- and field-relative driving.  It
// claims the drivebase for one tick so the switch can't happen half way
// through another drive task.
func ToggleFieldRelative(r *Robot) *scheduler.Task {
	return scheduler.NewTask("toggle-field-relative", scheduler.Hooks{
		Initialize: func(t *scheduler.Task) error {
			r.Shaper.ToggleFieldRelative()
			return nil
		},
		Execute: func(t *scheduler.Task) error {
			r.drive(r.intents.DriveIntent())
			return nil
		},
		IsFinished: func(t *scheduler.Task) bool {
			return true
		},
	}, Drivebase)
}

type WaitParams struct {
	Duration time.Duration `mapstructure:"duration"`
}

// Wait claims nothing and finishes after Duration.
func Wait(p WaitParams) *scheduler.Task {
	return scheduler.NewTask(fmt.Sprintf("wait(%v)", p.Duration), scheduler.Hooks{
		IsFinished: func(t *scheduler.Task) bool {
			return t.Elapsed() >= p.Duration
		},
	})
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
