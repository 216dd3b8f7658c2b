package tasks

import (
	"fmt"
	"math"
	"time"

	"github.com/tigerbot-team/stackbot/pkg/scheduler"
)

type MoveToHeightParams struct {
	Height float64 `mapstructure:"height"`
	// Speed and Accuracy default to the configured values.
	Speed    float64 `mapstructure:"speed"`
	Accuracy float64 `mapstructure:"accuracy"`
}

// MoveToHeight runs the lift towards Height at a fixed speed.  It stops when
// it is within Accuracy, when it passes the target, or when it hits the
// limit switch it is heading for.
func MoveToHeight(r *Robot, p MoveToHeightParams) *scheduler.Task {
	speed := p.Speed
	if speed == 0 {
		speed = r.Config.MoveToHeightSpeed
	}
	speed = math.Abs(speed)
	accuracy := p.Accuracy
	if accuracy == 0 {
		accuracy = r.Config.HeightAccuracy
	}
	var direction float64
	return scheduler.NewTask(fmt.Sprintf("move-to-height(%.1f)", p.Height), scheduler.Hooks{
		Initialize: func(t *scheduler.Task) error {
			// Execute samples the range finder; only read it here if
			// nothing has yet.
			h := r.Lift.Height()
			if !r.Lift.HasHeight() {
				h = r.Lift.Sample()
			}
			if math.Abs(p.Height-h) > accuracy {
				direction = sign(p.Height - h)
			}
			r.Logger.Debugw("moving lift", "from", h, "to", p.Height)
			return nil
		},
		Execute: func(t *scheduler.Task) error {
			r.Lift.Drive(direction * speed)
			return nil
		},
		IsFinished: func(t *scheduler.Task) bool {
			h := r.Lift.Height()
			switch {
			case direction == 0:
				return true
			case math.Abs(p.Height-h) <= accuracy:
				return true
			case direction > 0:
				return h >= p.Height || r.Lift.AtHighLimit()
			default:
				return h <= p.Height || r.Lift.AtLowLimit()
			}
		},
		End:         stopLift(r),
		Interrupted: func(t *scheduler.Task) { r.Lift.Stop() },
	}, Lift)
}

// ResetLift runs the lift down until the bottom limit switch.
func ResetLift(r *Robot) *scheduler.Task {
	return scheduler.NewTask("reset-lift", scheduler.Hooks{
		Execute: func(t *scheduler.Task) error {
			r.Lift.Drive(-1)
			return nil
		},
		IsFinished: func(t *scheduler.Task) bool {
			return r.Lift.AtLowLimit()
		},
		End:         stopLift(r),
		Interrupted: func(t *scheduler.Task) { r.Lift.Stop() },
	}, Lift)
}

type LiftForTimeParams struct {
	Duration time.Duration `mapstructure:"duration"`
	Speed    float64       `mapstructure:"speed"`
}

// LiftForTime runs the lift at Speed for Duration, or until the limit switch
// in that direction.
func LiftForTime(r *Robot, p LiftForTimeParams) *scheduler.Task {
	return scheduler.NewTask(fmt.Sprintf("lift-for-time(%v,%.2f)", p.Duration, p.Speed), scheduler.Hooks{
		Execute: func(t *scheduler.Task) error {
			r.Lift.Drive(p.Speed)
			return nil
		},
		IsFinished: func(t *scheduler.Task) bool {
			if t.Elapsed() >= p.Duration {
				return true
			}
			return (p.Speed > 0 && r.Lift.AtHighLimit()) || (p.Speed < 0 && r.Lift.AtLowLimit())
		},
		End:         stopLift(r),
		Interrupted: func(t *scheduler.Task) { r.Lift.Stop() },
	}, Lift)
}

func stopLift(r *Robot) func(t *scheduler.Task) error {
	return func(t *scheduler.Task) error {
		r.Lift.Stop()
		return nil
	}
}
