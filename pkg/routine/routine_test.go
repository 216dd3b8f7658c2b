package routine

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/tigerbot-team/stackbot/pkg/elevation"
	"github.com/tigerbot-team/stackbot/pkg/hardware"
	"github.com/tigerbot-team/stackbot/pkg/headingholder"
	"github.com/tigerbot-team/stackbot/pkg/scheduler"
	"github.com/tigerbot-team/stackbot/pkg/sequence"
	"github.com/tigerbot-team/stackbot/pkg/tasks"
)

const period = 20 * time.Millisecond

type rig struct {
	t     *testing.T
	mock  *clock.Mock
	sched *scheduler.Scheduler
	sim   *hardware.Sim
	deps  Deps
}

func newRig(t *testing.T) *rig {
	logger := golog.NewTestLogger(t)
	sim := hardware.NewSim(hardware.DefaultSimConfig(), period, logger)
	liftCfg := elevation.DefaultConfig()
	liftCfg.FilterSize = 3
	lift := elevation.NewSafetyController(liftCfg, sim, sim, logger)
	shaper := headingholder.NewVelocityShaper(headingholder.DefaultConfig(), period, logger)
	robot := tasks.NewRobot(tasks.DefaultConfig(), sim, shaper, lift, logger)
	mock := clock.NewMock()
	sched := scheduler.New(scheduler.Config{Period: period}, mock, logger)
	if err := robot.RegisterResources(sched); err != nil {
		t.Fatal(err)
	}
	return &rig{
		t:     t,
		mock:  mock,
		sched: sched,
		sim:   sim,
		deps:  Deps{Robot: robot, Scheduler: sched, Logger: logger},
	}
}

func (r *rig) run(seq *sequence.Sequencer, maxTicks int) int {
	r.t.Helper()
	if err := r.sched.Schedule(seq.Task()); err != nil {
		r.t.Fatal(err)
	}
	for i := 1; i <= maxTicks; i++ {
		r.mock.Add(period)
		r.sched.Tick()
		r.sim.Advance()
		if seq.Task().Done() {
			return i
		}
	}
	r.t.Fatalf("routine %s not done after %d ticks", seq, maxTicks)
	return 0
}

func TestBuiltinsAreValid(t *testing.T) {
	r := newRig(t)
	lib := NewLibrary(nil)
	for _, name := range []string{"bin", "tote", "stack", "test", "pickup-bin"} {
		if _, ok := lib.Definition(name); !ok {
			t.Errorf("missing built-in routine %s", name)
		}
	}
	if err := lib.Check(r.deps.Robot); err != nil {
		t.Errorf("built-in routines don't check: %v", err)
	}
}

func TestCheckReportsEveryBadStep(t *testing.T) {
	r := newRig(t)
	lib := NewLibrary(map[string]Definition{
		"broken": {Steps: []StepConfig{
			{Task: "fly"},
			{Task: "wait", Mode: "sideways", Params: map[string]interface{}{"duration": "1s"}},
			{Task: "move-to-height", Params: map[string]interface{}{"heigth": 20}},
		}},
	})
	err := lib.Check(r.deps.Robot)
	if err == nil {
		t.Fatal("expected errors")
	}
	if n := len(multierr.Errors(err)); n != 3 {
		t.Errorf("got %d errors, expected 3: %v", n, err)
	}
}

func TestBuildUnknownRoutine(t *testing.T) {
	r := newRig(t)
	if _, err := NewLibrary(nil).Build("dance", r.deps); !errors.Is(err, ErrUnknownRoutine) {
		t.Errorf("unexpected error %v", err)
	}
}

func TestCustomRoutineReplacesBuiltin(t *testing.T) {
	lib := NewLibrary(map[string]Definition{
		"bin": {Steps: []StepConfig{{Task: "wait", Params: map[string]interface{}{"duration": "20ms"}}}},
	})
	def, _ := lib.Definition("bin")
	if len(def.Steps) != 1 {
		t.Errorf("bin has %d steps, expected the custom one", len(def.Steps))
	}
}

func TestClampTimeoutThenDrive(t *testing.T) {
	r := newRig(t)
	lib := NewLibrary(map[string]Definition{
		"grab-and-go": {Steps: []StepConfig{
			{Task: "close-clamps", Timeout: 100 * time.Millisecond},
			{Task: "drive-for-time", Params: map[string]interface{}{"duration": "2s", "forward": 1}},
		}},
	})
	seq, err := lib.Build("grab-and-go", r.deps)
	if err != nil {
		t.Fatal(err)
	}
	if ticks := r.run(seq, 500); ticks != 105 {
		t.Errorf("routine took %d ticks, expected 105", ticks)
	}
	if !r.sim.LeftClamp || !r.sim.RightClamp {
		t.Error("clamps not closed")
	}
}

func TestParallelLiftAndDrive(t *testing.T) {
	r := newRig(t)
	lib := NewLibrary(map[string]Definition{
		"both": {Steps: []StepConfig{
			{Task: "drive-for-time", Params: map[string]interface{}{"duration": "200ms", "forward": 1}},
			{Task: "lift-for-time", Mode: "parallel", Params: map[string]interface{}{"duration": "200ms", "speed": 0.5}},
		}},
	})
	seq, err := lib.Build("both", r.deps)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.sched.Schedule(seq.Task()); err != nil {
		t.Fatal(err)
	}
	r.mock.Add(period)
	r.sched.Tick()
	if r.sim.Drive.Forward == 0 || r.sim.Lift == 0 {
		t.Errorf("expected drive and lift together, got forward %v lift %v", r.sim.Drive.Forward, r.sim.Lift)
	}
}

func TestRoutineTimeout(t *testing.T) {
	r := newRig(t)
	lib := NewLibrary(map[string]Definition{
		"slow": {Timeout: 100 * time.Millisecond, Steps: []StepConfig{
			{Task: "wait", Params: map[string]interface{}{"duration": "1s"}},
			{Task: "close-clamps"},
		}},
	})
	seq, err := lib.Build("slow", r.deps)
	if err != nil {
		t.Fatal(err)
	}
	if ticks := r.run(seq, 100); ticks != 5 {
		t.Errorf("routine ran %d ticks, expected 5", ticks)
	}
	if !seq.Aborted() {
		t.Error("expected the routine to be aborted")
	}
}

func TestBinRoutineInSim(t *testing.T) {
	r := newRig(t)
	seq, err := NewLibrary(nil).Build("bin", r.deps)
	if err != nil {
		t.Fatal(err)
	}
	r.run(seq, 2000)
	if seq.Err() != nil {
		t.Errorf("bin routine errors: %v", seq.Err())
	}
	if !r.sim.IsLowLimitActive() {
		t.Errorf("lift finished at %v, expected at the bottom", r.sim.Height())
	}
	if r.sim.LeftClamp || r.sim.RightClamp {
		t.Error("clamps left closed")
	}
}
