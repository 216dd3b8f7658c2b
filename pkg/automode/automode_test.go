package automode

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"

	"github.com/tigerbot-team/stackbot/pkg/controlloop"
	"github.com/tigerbot-team/stackbot/pkg/elevation"
	"github.com/tigerbot-team/stackbot/pkg/hardware"
	"github.com/tigerbot-team/stackbot/pkg/headingholder"
	"github.com/tigerbot-team/stackbot/pkg/routine"
	"github.com/tigerbot-team/stackbot/pkg/scheduler"
	"github.com/tigerbot-team/stackbot/pkg/tasks"
)

const period = 20 * time.Millisecond

func newMode(t *testing.T, name string, custom map[string]routine.Definition) (*AutoMode, *scheduler.Scheduler, *clock.Mock) {
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
	loop := controlloop.New(sched, mock, logger, sim.Advance)
	return New(loop, sched, robot, routine.NewLibrary(custom), name, "", logger), sched, mock
}

func TestStartRunsRoutine(t *testing.T) {
	m, sched, mock := newMode(t, "wiggle", map[string]routine.Definition{
		"wiggle": {Steps: []routine.StepConfig{
			{Task: "rotate-for-time", Params: map[string]interface{}{"duration": "100ms", "speed": 0.5}},
			{Task: "rotate-for-time", Params: map[string]interface{}{"duration": "100ms", "speed": -0.5}},
		}},
	})
	m.Start(context.Background())
	seq := m.Running()
	if seq == nil {
		t.Fatal("routine not started")
	}
	for i := 0; i < 10; i++ {
		mock.Add(period)
		sched.Tick()
	}
	if !seq.Task().Done() || seq.Err() != nil {
		t.Errorf("routine %v done=%v err=%v", seq, seq.Task().Done(), seq.Err())
	}
}

func TestStopAbandonsRoutine(t *testing.T) {
	m, sched, mock := newMode(t, "bin", nil)
	m.Start(context.Background())
	seq := m.Running()
	for i := 0; i < 5; i++ {
		mock.Add(period)
		sched.Tick()
	}
	m.Stop()
	if m.Running() != nil {
		t.Error("mode still reports a running routine")
	}
	for i := 0; i < 2; i++ {
		mock.Add(period)
		sched.Tick()
	}
	if !seq.Task().Done() || !seq.Aborted() {
		t.Errorf("routine is %v (aborted %v) after stop", seq.Task().State(), seq.Aborted())
	}
	for _, task := range sched.Active() {
		if !task.IsDefault() {
			t.Errorf("%v still active after stop", task)
		}
	}
}

// Switching out of teleop queues a reclaim just before the routine starts.
func TestStartRightAfterTeleopStop(t *testing.T) {
	m, sched, mock := newMode(t, "bin", nil)
	mock.Add(period)
	sched.Tick()

	stop := sched.Reclaim("teleop-stop")
	if err := sched.Schedule(stop); err != nil {
		t.Fatal(err)
	}
	m.Start(context.Background())
	seq := m.Running()
	if seq == nil {
		t.Fatal("routine not started")
	}
	mock.Add(period)
	sched.Tick()
	if stop.State() != scheduler.StateInterrupted || stop.Err() != nil {
		t.Errorf("reclaim is %v (err %v), expected the routine to take over", stop.State(), stop.Err())
	}
	if h := sched.Holder(tasks.Clamps); h == nil || h.Name() != "open-clamps(both)" {
		t.Errorf("clamps held by %v, expected the first step", h)
	}
	for i := 0; i < 2; i++ {
		mock.Add(period)
		sched.Tick()
	}
	if seq.Task().Done() || seq.Err() != nil {
		t.Errorf("routine is %v with err %v, expected it still running", seq.Task().State(), seq.Err())
	}
}

func TestUnknownRoutineStartsNothing(t *testing.T) {
	m, sched, _ := newMode(t, "moonwalk", nil)
	m.Start(context.Background())
	if m.Running() != nil || len(sched.Active()) != 0 {
		t.Error("expected nothing to run")
	}
}
