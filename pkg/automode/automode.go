// Package automode runs one autonomous routine through the scheduler.
package automode

import (
	"context"

	"github.com/edaniels/golog"

	"github.com/tigerbot-team/stackbot/pkg/controlloop"
	"github.com/tigerbot-team/stackbot/pkg/routine"
	"github.com/tigerbot-team/stackbot/pkg/scheduler"
	"github.com/tigerbot-team/stackbot/pkg/sequence"
	"github.com/tigerbot-team/stackbot/pkg/tasks"
)

type AutoMode struct {
	loop    *controlloop.Loop
	sched   *scheduler.Scheduler
	robot   *tasks.Robot
	library *routine.Library
	routine string
	sound   string
	logger  golog.Logger

	// Only touched inside loop.Do.
	running *sequence.Sequencer
}

func New(
	loop *controlloop.Loop,
	sched *scheduler.Scheduler,
	robot *tasks.Robot,
	library *routine.Library,
	routineName string,
	sound string,
	logger golog.Logger,
) *AutoMode {
	return &AutoMode{
		loop:    loop,
		sched:   sched,
		robot:   robot,
		library: library,
		routine: routineName,
		sound:   sound,
		logger:  logger.Named("automode"),
	}
}

func (m *AutoMode) Name() string {
	return "Autonomous mode (" + m.routine + ")"
}

func (m *AutoMode) StartupSound() string {
	return m.sound
}

// Start schedules a fresh run of the routine.  The operator's sticks are
// ignored while it runs.
func (m *AutoMode) Start(ctx context.Context) {
	m.loop.Do(func() {
		m.robot.SetIntentSource(tasks.Idle{})
		seq, err := m.library.Build(m.routine, routine.Deps{
			Robot:     m.robot,
			Scheduler: m.sched,
			Logger:    m.logger,
		})
		if err != nil {
			m.logger.Errorw("can't build routine", "routine", m.routine, "error", err)
			return
		}
		if err := m.sched.Schedule(seq.Task()); err != nil {
			m.logger.Errorw("can't schedule routine", "routine", m.routine, "error", err)
			return
		}
		seq.Task().Watch(func(t *scheduler.Task) {
			m.logger.Infow("routine done", "routine", m.routine, "state", t.State(),
				"elapsed", t.Elapsed(), "skipped", seq.Err())
		})
		m.running = seq
	})
}

// Stop takes the resources back from the routine.  With its running step
// interrupted the routine starts nothing more and finishes on its own.
func (m *AutoMode) Stop() {
	m.loop.Do(func() {
		if m.running != nil && !m.running.Task().Done() {
			m.logger.Infow("abandoning routine", "routine", m.routine, "at", m.running.String())
		}
		m.running = nil
		if err := m.sched.Schedule(m.sched.Reclaim("auto-stop")); err != nil {
			m.logger.Errorw("failed to reclaim resources", "error", err)
		}
	})
}

// Running is the routine started by the last Start, if any.
func (m *AutoMode) Running() *sequence.Sequencer {
	var seq *sequence.Sequencer
	m.loop.Do(func() { seq = m.running })
	return seq
}
