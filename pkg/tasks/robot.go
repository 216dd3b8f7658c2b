// Package tasks holds the robot's resources and the tasks that drive them.
//
// Every task is a scheduler.Task built from a small params struct.  Tasks
// only touch the subsystems they claim, and everything they send to the
// motors goes through the velocity shaper or the lift safety controller.
package tasks

import (
	"time"

	"github.com/edaniels/golog"

	"github.com/tigerbot-team/stackbot/pkg/elevation"
	"github.com/tigerbot-team/stackbot/pkg/hardware"
	"github.com/tigerbot-team/stackbot/pkg/headingholder"
	"github.com/tigerbot-team/stackbot/pkg/scheduler"
)

const (
	Drivebase scheduler.ResourceID = "drivebase"
	Lift      scheduler.ResourceID = "lift"
	Clamps    scheduler.ResourceID = "clamps"
)

type Config struct {
	// ManualLiftScale scales the trigger difference.
	ManualLiftScale   float64
	RotateSpeed       float64
	MoveToHeightSpeed float64
	HeightAccuracy    float64
	ClampSettle       time.Duration
}

func DefaultConfig() Config {
	return Config{
		ManualLiftScale:   0.8,
		RotateSpeed:       0.9,
		MoveToHeightSpeed: 1,
		HeightAccuracy:    0.4,
		ClampSettle:       250 * time.Millisecond,
	}
}

// IntentSource is where the default tasks get their commands from.
type IntentSource interface {
	DriveIntent() headingholder.Intent
	// LiftIntent is in [-1, 1], positive up.
	LiftIntent() float64
}

// Idle is an IntentSource that asks for nothing.
type Idle struct{}

func (Idle) DriveIntent() headingholder.Intent { return headingholder.Intent{} }
func (Idle) LiftIntent() float64               { return 0 }

// ClampState is the commanded state of the two pneumatic clamps.
type ClampState struct {
	Left  bool
	Right bool
}

type Robot struct {
	Config    Config
	Sensors   hardware.SensorSource
	Actuators hardware.ActuatorSink
	Shaper    *headingholder.VelocityShaper
	Lift      *elevation.SafetyController
	Clamps    ClampState
	Logger    golog.Logger

	intents IntentSource
}

func NewRobot(
	cfg Config,
	hw hardware.Interface,
	shaper *headingholder.VelocityShaper,
	lift *elevation.SafetyController,
	logger golog.Logger,
) *Robot {
	return &Robot{
		Config:    cfg,
		Sensors:   hw,
		Actuators: hw,
		Shaper:    shaper,
		Lift:      lift,
		Logger:    logger.Named("tasks"),
		intents:   Idle{},
	}
}

// SetIntentSource switches where the default tasks read from, e.g. the
// joystick in teleop and Idle in autonomous.
func (r *Robot) SetIntentSource(src IntentSource) {
	if src == nil {
		src = Idle{}
	}
	r.intents = src
}

// RegisterResources registers the drivebase, lift and clamps with their
// default tasks.
func (r *Robot) RegisterResources(s *scheduler.Scheduler) error {
	if err := s.RegisterResource(Drivebase, func() *scheduler.Task { return ManualDrive(r) }); err != nil {
		return err
	}
	if err := s.RegisterResource(Lift, func() *scheduler.Task { return ManualLift(r) }); err != nil {
		return err
	}
	return s.RegisterResource(Clamps, func() *scheduler.Task { return HoldClamps(r) })
}

// drive shapes intent and sends it to the drivebase.  Only the drivebase
// holder may call it, once per tick.
func (r *Robot) drive(intent headingholder.Intent) headingholder.Output {
	sample := headingholder.HeadingSample{
		ContinuousDegrees: r.Sensors.CurrentHeadingDegrees(),
		RatePerSecond:     r.Sensors.CurrentRotationalRate(),
	}
	out := r.Shaper.Shape(intent, sample)
	r.Actuators.SetDriveOutput(out.Forward, out.Strafe, out.Rotation, out.HeadingOffset)
	return out
}

func (r *Robot) setClamps(c ClampState) {
	if c != r.Clamps {
		r.Logger.Infow("clamps", "left", c.Left, "right", c.Right)
	}
	r.Clamps = c
	r.Actuators.SetClamps(c.Left, c.Right)
}

// ManualDrive is the drivebase default: operator intent through the shaper.
func ManualDrive(r *Robot) *scheduler.Task {
	return scheduler.NewTask("manual-drive", scheduler.Hooks{
		Execute: func(t *scheduler.Task) error {
			r.drive(r.intents.DriveIntent())
			return nil
		},
	}, Drivebase)
}

// ManualLift is the lift default: trigger difference through the safety
// controller.
func ManualLift(r *Robot) *scheduler.Task {
	return scheduler.NewTask("manual-lift", scheduler.Hooks{
		Execute: func(t *scheduler.Task) error {
			r.Lift.Drive(r.intents.LiftIntent() * r.Config.ManualLiftScale)
			return nil
		},
	}, Lift)
}

// HoldClamps is the clamps default.  It keeps asserting the last commanded
// state.
func HoldClamps(r *Robot) *scheduler.Task {
	return scheduler.NewTask("hold-clamps", scheduler.Hooks{
		Execute: func(t *scheduler.Task) error {
			r.Actuators.SetClamps(r.Clamps.Left, r.Clamps.Right)
			return nil
		},
	}, Clamps)
}
