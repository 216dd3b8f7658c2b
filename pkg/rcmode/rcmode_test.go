package rcmode

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"

	"github.com/tigerbot-team/stackbot/pkg/controlloop"
	"github.com/tigerbot-team/stackbot/pkg/elevation"
	"github.com/tigerbot-team/stackbot/pkg/hardware"
	"github.com/tigerbot-team/stackbot/pkg/headingholder"
	"github.com/tigerbot-team/stackbot/pkg/joystick"
	"github.com/tigerbot-team/stackbot/pkg/operator"
	"github.com/tigerbot-team/stackbot/pkg/scheduler"
	"github.com/tigerbot-team/stackbot/pkg/tasks"
)

const period = 20 * time.Millisecond

type rig struct {
	mock   *clock.Mock
	sched  *scheduler.Scheduler
	sim    *hardware.Sim
	robot  *tasks.Robot
	shaper *headingholder.VelocityShaper
	mode   *RCMode
}

func newRig(t *testing.T) *rig {
	logger := golog.NewTestLogger(t)
	sim := hardware.NewSim(hardware.DefaultSimConfig(), period, logger)
	lift := elevation.NewSafetyController(elevation.DefaultConfig(), sim, sim, logger)
	shaper := headingholder.NewVelocityShaper(headingholder.DefaultConfig(), period, logger)
	robot := tasks.NewRobot(tasks.DefaultConfig(), sim, shaper, lift, logger)
	mock := clock.NewMock()
	sched := scheduler.New(scheduler.Config{Period: period}, mock, logger)
	if err := robot.RegisterResources(sched); err != nil {
		t.Fatal(err)
	}
	// The loop is never started: the test ticks the scheduler itself and Do
	// runs inline.
	loop := controlloop.New(sched, mock, logger)
	tunables := NewGainTunables(loop, shaper, logger)
	mode := New(loop, sched, robot, operator.NewSticks(operator.DefaultConfig()), tunables, "", logger)
	mode.Start(context.Background())
	t.Cleanup(mode.Stop)
	return &rig{mock: mock, sched: sched, sim: sim, robot: robot, shaper: shaper, mode: mode}
}

func (r *rig) tick(n int) {
	for i := 0; i < n; i++ {
		r.mock.Add(period)
		r.sched.Tick()
		r.sim.Advance()
	}
}

func press(button uint8) *joystick.Event {
	return &joystick.Event{Type: joystick.EventTypeButton, Number: button, Value: 1}
}

func TestStickDrivesRobot(t *testing.T) {
	r := newRig(t)
	r.mode.handle(&joystick.Event{Type: joystick.EventTypeAxis, Number: joystick.AxisLStickY, Value: -joystick.AxisMax})
	r.tick(3)
	if math.Abs(r.sim.Drive.Forward-0.3) > 1e-9 {
		t.Errorf("forward = %v after 3 ticks, expected 0.3", r.sim.Drive.Forward)
	}
}

func TestTriggerDrivesLift(t *testing.T) {
	r := newRig(t)
	r.mode.handle(&joystick.Event{Type: joystick.EventTypeAxis, Number: joystick.AxisR2, Value: joystick.AxisMax})
	r.tick(1)
	if math.Abs(r.sim.Lift-0.8) > 1e-9 {
		t.Errorf("lift = %v, expected 0.8", r.sim.Lift)
	}
}

func TestClampButtons(t *testing.T) {
	r := newRig(t)
	r.mode.handle(press(joystick.ButtonCross))
	r.tick(1)
	if !r.sim.LeftClamp || !r.sim.RightClamp {
		t.Fatalf("cross should close both clamps")
	}
	// A new toggle takes the clamps over from one that is still settling.
	r.mode.handle(press(joystick.ButtonL1))
	r.tick(20)
	if r.sim.LeftClamp || !r.sim.RightClamp {
		t.Errorf("L1 should open the left clamp only: left=%v right=%v", r.sim.LeftClamp, r.sim.RightClamp)
	}
	r.mode.handle(&joystick.Event{Type: joystick.EventTypeButton, Number: joystick.ButtonR1, Value: 0})
	r.tick(1)
	if !r.sim.RightClamp {
		t.Error("button release should do nothing")
	}
}

func TestCircleTogglesFieldRelative(t *testing.T) {
	r := newRig(t)
	r.mode.handle(press(joystick.ButtonCircle))
	r.tick(1)
	if !r.shaper.FieldRelative() {
		t.Error("field relative not enabled")
	}
}

func TestDPadTunesGains(t *testing.T) {
	r := newRig(t)
	before := r.shaper.Gains()
	r.mode.handle(&joystick.Event{Type: joystick.EventTypeAxis, Number: joystick.AxisDPadY, Value: -joystick.AxisMax})
	after := r.shaper.Gains()
	if math.Abs(after.Kp-(before.Kp+0.05)) > 1e-9 {
		t.Errorf("kp %v -> %v, expected +0.05", before.Kp, after.Kp)
	}
	r.mode.handle(&joystick.Event{Type: joystick.EventTypeAxis, Number: joystick.AxisDPadX, Value: joystick.AxisMax})
	r.mode.handle(&joystick.Event{Type: joystick.EventTypeAxis, Number: joystick.AxisDPadY, Value: joystick.AxisMax})
	if math.Abs(r.shaper.Gains().Ki-(before.Ki-0.01)) > 1e-9 {
		t.Errorf("ki = %v, expected %v", r.shaper.Gains().Ki, before.Ki-0.01)
	}
}

func TestStopCancelsButtonTasks(t *testing.T) {
	r := newRig(t)
	r.mode.handle(press(joystick.ButtonSquare))
	r.tick(1)
	if h := r.sched.Holder(tasks.Lift); h == nil || h.IsDefault() {
		t.Fatalf("lift held by %v, expected reset-lift", h)
	}
	r.mode.Stop()
	// One tick to take the lift back, one for the default to start.
	r.tick(2)
	if h := r.sched.Holder(tasks.Lift); h == nil || !h.IsDefault() {
		t.Errorf("lift held by %v after stop", h)
	}
	if r.sim.Lift != 0 {
		t.Errorf("lift output %v after stop", r.sim.Lift)
	}
	// Restart so the cleanup Stop has something to stop.
	r.mode.Start(context.Background())
}
