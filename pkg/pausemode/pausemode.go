// Package pausemode disables the robot: the control loop stops ticking and
// every output is zeroed.
package pausemode

import (
	"context"

	"github.com/edaniels/golog"

	"github.com/tigerbot-team/stackbot/pkg/controlloop"
	"github.com/tigerbot-team/stackbot/pkg/hardware"
	"github.com/tigerbot-team/stackbot/pkg/scheduler"
	"github.com/tigerbot-team/stackbot/pkg/tasks"
)

type PauseMode struct {
	loop   *controlloop.Loop
	sched  *scheduler.Scheduler
	robot  *tasks.Robot
	hw     hardware.Interface
	sound  string
	logger golog.Logger
}

func New(loop *controlloop.Loop, sched *scheduler.Scheduler, robot *tasks.Robot, hw hardware.Interface, sound string, logger golog.Logger) *PauseMode {
	return &PauseMode{
		loop:   loop,
		sched:  sched,
		robot:  robot,
		hw:     hw,
		sound:  sound,
		logger: logger.Named("pausemode"),
	}
}

func (m *PauseMode) Name() string {
	return "Pause mode"
}

func (m *PauseMode) StartupSound() string {
	return m.sound
}

// Start pauses the loop and then runs one last tick by hand, so that the
// reclaim takes effect before the motors are zeroed.
func (m *PauseMode) Start(ctx context.Context) {
	m.loop.SetPaused(true)
	m.loop.Do(func() {
		m.robot.SetIntentSource(tasks.Idle{})
		if err := m.sched.Schedule(m.sched.Reclaim("pause")); err != nil {
			m.logger.Errorw("failed to reclaim resources", "error", err)
		}
	})
	m.loop.Step()
	m.loop.Do(m.hw.StopMotors)
	m.logger.Infow("motors stopped")
}

// Stop lets the loop run again.  The shaper is reset so that drive commands
// ramp up from zero rather than from what was sent before the pause.
func (m *PauseMode) Stop() {
	m.loop.Do(func() {
		m.robot.Shaper.Reset()
	})
	m.loop.SetPaused(false)
}
