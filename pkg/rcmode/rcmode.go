// Package rcmode is teleop: the sticks drive through the scheduler's default
// tasks and the buttons schedule one-shot tasks.
package rcmode

import (
	"context"
	"sync"

	"github.com/edaniels/golog"

	"github.com/tigerbot-team/stackbot/pkg/controlloop"
	"github.com/tigerbot-team/stackbot/pkg/headingholder"
	"github.com/tigerbot-team/stackbot/pkg/joystick"
	"github.com/tigerbot-team/stackbot/pkg/operator"
	"github.com/tigerbot-team/stackbot/pkg/scheduler"
	"github.com/tigerbot-team/stackbot/pkg/tasks"
	"github.com/tigerbot-team/stackbot/pkg/tunable"
)

// Height the triangle button lifts to, inches.  One tote.
const PresetHeight = 20

type RCMode struct {
	loop     *controlloop.Loop
	sched    *scheduler.Scheduler
	robot    *tasks.Robot
	sticks   *operator.Sticks
	tunables *tunable.Tunables
	sound    string
	logger   golog.Logger

	cancel         context.CancelFunc
	stopWG         sync.WaitGroup
	joystickEvents chan *joystick.Event
}

func New(
	loop *controlloop.Loop,
	sched *scheduler.Scheduler,
	robot *tasks.Robot,
	sticks *operator.Sticks,
	tunables *tunable.Tunables,
	sound string,
	logger golog.Logger,
) *RCMode {
	return &RCMode{
		loop:           loop,
		sched:          sched,
		robot:          robot,
		sticks:         sticks,
		tunables:       tunables,
		sound:          sound,
		logger:         logger.Named("rcmode"),
		joystickEvents: make(chan *joystick.Event),
	}
}

func (m *RCMode) Name() string {
	return "Teleop mode"
}

func (m *RCMode) StartupSound() string {
	return m.sound
}

func (m *RCMode) Start(ctx context.Context) {
	m.loop.Do(func() {
		m.sticks.Reset()
		m.robot.SetIntentSource(m.sticks)
	})
	m.stopWG.Add(1)
	var loopCtx context.Context
	loopCtx, m.cancel = context.WithCancel(ctx)
	go m.eventLoop(loopCtx)
}

func (m *RCMode) Stop() {
	m.cancel()
	m.stopWG.Wait()
	m.loop.Do(func() {
		m.robot.SetIntentSource(tasks.Idle{})
		if err := m.sched.Schedule(m.sched.Reclaim("teleop-stop")); err != nil {
			m.logger.Errorw("failed to reclaim resources", "error", err)
		}
	})
}

func (m *RCMode) OnJoystickEvent(event *joystick.Event) {
	m.joystickEvents <- event
}

func (m *RCMode) eventLoop(ctx context.Context) {
	defer m.stopWG.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-m.joystickEvents:
			m.handle(event)
		}
	}
}

func (m *RCMode) handle(event *joystick.Event) {
	if m.sticks.OnEvent(event) {
		return
	}
	switch event.Type {
	case joystick.EventTypeAxis:
		// D-pad: left/right picks a tunable, up/down changes it.
		switch event.Number {
		case joystick.AxisDPadX:
			if event.Value > 0 {
				m.tunables.SelectNext()
			} else if event.Value < 0 {
				m.tunables.SelectPrev()
			}
		case joystick.AxisDPadY:
			if event.Value < 0 {
				m.tunables.AdjustCurrent(1)
			} else if event.Value > 0 {
				m.tunables.AdjustCurrent(-1)
			}
		}
	case joystick.EventTypeButton:
		if event.Value != 1 {
			return
		}
		switch event.Number {
		case joystick.ButtonCross:
			m.schedule(func() *scheduler.Task { return tasks.ToggleClamps(m.robot, tasks.ClampBoth) })
		case joystick.ButtonL1:
			m.schedule(func() *scheduler.Task { return tasks.ToggleClamps(m.robot, tasks.ClampLeft) })
		case joystick.ButtonR1:
			m.schedule(func() *scheduler.Task { return tasks.ToggleClamps(m.robot, tasks.ClampRight) })
		case joystick.ButtonCircle:
			m.schedule(func() *scheduler.Task { return tasks.ToggleFieldRelative(m.robot) })
		case joystick.ButtonTriangle:
			m.schedule(func() *scheduler.Task {
				return tasks.MoveToHeight(m.robot, tasks.MoveToHeightParams{Height: PresetHeight})
			})
		case joystick.ButtonSquare:
			m.schedule(func() *scheduler.Task { return tasks.ResetLift(m.robot) })
		}
	}
}

func (m *RCMode) schedule(build func() *scheduler.Task) {
	m.loop.Do(func() {
		t := build()
		if err := m.sched.Schedule(t); err != nil {
			m.logger.Warnw("button ignored", "task", t.Name(), "error", err)
		}
	})
}

// NewGainTunables exposes the shaper's rate gains to the d-pad.
func NewGainTunables(loop *controlloop.Loop, shaper *headingholder.VelocityShaper, logger golog.Logger) *tunable.Tunables {
	ts := tunable.New(logger)
	var gains headingholder.Gains
	loop.Do(func() { gains = shaper.Gains() })
	retune := func(set func(g *headingholder.Gains, v float64)) func(float64) {
		return func(v float64) {
			loop.Do(func() {
				g := shaper.Gains()
				set(&g, v)
				shaper.Tune(g)
			})
		}
	}
	ts.Create("kp", gains.Kp, 0.05, retune(func(g *headingholder.Gains, v float64) { g.Kp = v }))
	ts.Create("ki", gains.Ki, 0.01, retune(func(g *headingholder.Gains, v float64) { g.Ki = v }))
	ts.Create("kd", gains.Kd, 0.001, retune(func(g *headingholder.Gains, v float64) { g.Kd = v }))
	return ts
}
