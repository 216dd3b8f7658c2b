package sequence

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"github.com/tigerbot-team/stackbot/pkg/scheduler"
)

const (
	drivebase scheduler.ResourceID = "drivebase"
	lift      scheduler.ResourceID = "lift"
)

const period = 20 * time.Millisecond

type harness struct {
	*scheduler.Scheduler
	t      *testing.T
	mock   *clock.Mock
	logger golog.Logger
	tick   int
	// started records the tick at which each named task initialised.
	started map[string]int
}

func newHarness(t *testing.T) *harness {
	logger := golog.NewTestLogger(t)
	mock := clock.NewMock()
	h := &harness{
		Scheduler: scheduler.New(scheduler.Config{Period: period}, mock, logger),
		t:         t,
		mock:      mock,
		logger:    logger,
		started:   map[string]int{},
	}
	for _, id := range []scheduler.ResourceID{drivebase, lift} {
		id := id
		if err := h.RegisterResource(id, func() *scheduler.Task {
			return scheduler.NewTask("idle-"+string(id), scheduler.Hooks{}, id)
		}); err != nil {
			t.Fatal(err)
		}
	}
	return h
}

func (h *harness) step() {
	h.tick++
	h.mock.Add(period)
	h.Tick()
}

// runUntil ticks until t is done and returns the tick it finished on.
func (h *harness) runUntil(t *scheduler.Task, maxTicks int) int {
	h.t.Helper()
	for i := 0; i < maxTicks; i++ {
		h.step()
		if t.Done() {
			return h.tick
		}
	}
	h.t.Fatalf("%v not done after %d ticks", t, maxTicks)
	return 0
}

// ticking builds a task that finishes after n steps (never if n is 0).
func (h *harness) ticking(name string, n int, requires ...scheduler.ResourceID) Constructor {
	return func() (*scheduler.Task, error) {
		hooks := scheduler.Hooks{
			Initialize: func(t *scheduler.Task) error {
				h.started[name] = h.tick
				return nil
			},
		}
		if n > 0 {
			hooks.IsFinished = func(t *scheduler.Task) bool { return t.Ticks() >= n }
		}
		return scheduler.NewTask(name, hooks, requires...), nil
	}
}

// timed builds a task that finishes once it has run for d.
func (h *harness) timed(name string, d time.Duration, requires ...scheduler.ResourceID) Constructor {
	return func() (*scheduler.Task, error) {
		return scheduler.NewTask(name, scheduler.Hooks{
			Initialize: func(t *scheduler.Task) error {
				h.started[name] = h.tick
				return nil
			},
			IsFinished: func(t *scheduler.Task) bool { return t.Elapsed() >= d },
		}, requires...), nil
	}
}

func (h *harness) start(s *Sequencer) {
	h.t.Helper()
	if err := h.Schedule(s.Task()); err != nil {
		h.t.Fatal(err)
	}
}

func (h *harness) expectStarted(name string, tick int) {
	h.t.Helper()
	got, ok := h.started[name]
	if !ok {
		h.t.Errorf("%s never started", name)
		return
	}
	if got != tick {
		h.t.Errorf("%s started on tick %d, expected %d", name, got, tick)
	}
}

func (h *harness) expectNotStarted(name string) {
	h.t.Helper()
	if got, ok := h.started[name]; ok {
		h.t.Errorf("%s started on tick %d, expected it not to run", name, got)
	}
}

func TestBatching(t *testing.T) {
	h := newHarness(t)
	steps := []Step{
		Parallel("p", h.ticking("p", 1), 0),
		Sequential("a", h.ticking("a", 1), 0),
		Parallel("b", h.ticking("b", 1), 0),
		Parallel("c", h.ticking("c", 1), 0),
		Sequential("d", h.ticking("d", 1), 0),
	}
	batches := batch(steps)
	if len(batches) != 3 {
		t.Fatalf("got %d batches, expected 3", len(batches))
	}
	for i, n := range []int{1, 3, 1} {
		if len(batches[i]) != n {
			t.Errorf("batch %d has %d steps, expected %d", i, len(batches[i]), n)
		}
	}
}

func TestParallelStepsJoinPreviousSequential(t *testing.T) {
	h := newHarness(t)
	s := New("r", h, h.logger,
		Sequential("a", h.ticking("a", 3, drivebase), 0),
		Parallel("b", h.ticking("b", 5, lift), 0),
		Sequential("c", h.ticking("c", 1, drivebase), 0),
	)
	h.start(s)
	done := h.runUntil(s.Task(), 50)

	h.expectStarted("a", 1)
	h.expectStarted("b", 1)
	// c waits for b even though a has freed the drivebase.
	h.expectStarted("c", 6)
	if done != 6 {
		t.Errorf("routine finished on tick %d, expected 6", done)
	}
	if s.Err() != nil {
		t.Errorf("unexpected error: %v", s.Err())
	}
}

func TestStepTimeout(t *testing.T) {
	h := newHarness(t)
	s := New("r", h, h.logger,
		Sequential("forever", h.ticking("forever", 0, drivebase), 50*time.Millisecond),
		Sequential("next", h.ticking("next", 1, drivebase), 0),
	)
	h.start(s)
	done := h.runUntil(s.Task(), 50)
	// 50ms at 20ms per tick times out on the third tick.
	h.expectStarted("next", 4)
	if done != 4 {
		t.Errorf("routine finished on tick %d, expected 4", done)
	}
}

func TestStepTimeoutKeepsShorterTaskTimeout(t *testing.T) {
	h := newHarness(t)
	ctor := func() (*scheduler.Task, error) {
		task, _ := h.ticking("short", 0, drivebase)()
		return task.SetTimeout(40 * time.Millisecond), nil
	}
	s := New("r", h, h.logger,
		Sequential("short", ctor, time.Second),
		Sequential("next", h.ticking("next", 1), 0),
	)
	h.start(s)
	h.runUntil(s.Task(), 100)
	h.expectStarted("next", 3)
}

func TestClampThenDriveRoutine(t *testing.T) {
	h := newHarness(t)
	s := New("stack", h, h.logger,
		// The clamp takes 250ms to settle but the step gives it 100ms.
		Sequential("close-clamp", h.timed("close-clamp", 250*time.Millisecond, lift), 100*time.Millisecond),
		Sequential("drive", h.timed("drive", 2*time.Second, drivebase), 0),
	)
	h.start(s)
	done := h.runUntil(s.Task(), 500)
	h.expectStarted("drive", 6)
	if done != 105 {
		t.Errorf("routine finished on tick %d, expected 105", done)
	}
}

func TestFailedStepIsSkipped(t *testing.T) {
	h := newHarness(t)
	broken := func() (*scheduler.Task, error) {
		return nil, errors.New("no such height")
	}
	panics := func() (*scheduler.Task, error) {
		panic("boom")
	}
	s := New("r", h, h.logger,
		Sequential("broken", broken, 0),
		Sequential("panics", panics, 0),
		Sequential("unknown", h.ticking("unknown", 1, "propeller"), 0),
		Sequential("ok", h.ticking("ok", 2, drivebase), 0),
	)
	h.start(s)
	done := h.runUntil(s.Task(), 50)
	h.expectStarted("ok", 1)
	if done != 2 {
		t.Errorf("routine finished on tick %d, expected 2", done)
	}
	if s.Err() == nil {
		t.Fatal("expected the skipped steps to be reported")
	}
	for _, name := range []string{"broken", "panics", "unknown"} {
		if !strings.Contains(s.Err().Error(), name) {
			t.Errorf("error %q does not mention %s", s.Err(), name)
		}
	}
}

func TestInterruptedStepAbortsRoutine(t *testing.T) {
	h := newHarness(t)
	s := New("r", h, h.logger,
		Sequential("drive", h.ticking("drive", 10, drivebase), 0),
		Parallel("lift", h.ticking("lift", 10, lift), 0),
		Sequential("after", h.ticking("after", 1), 0),
	)
	h.start(s)
	h.step()
	h.step()

	operator := scheduler.NewTask("operator", scheduler.Hooks{}, drivebase)
	if err := h.Schedule(operator); err != nil {
		t.Fatal(err)
	}
	done := h.runUntil(s.Task(), 50)
	if !s.Aborted() {
		t.Error("routine not marked aborted")
	}
	// The parallel lift step is allowed to finish.
	if done != 10 {
		t.Errorf("routine finished on tick %d, expected 10", done)
	}
	h.expectNotStarted("after")
}

func TestRoutineTimeoutStopsNewSteps(t *testing.T) {
	h := newHarness(t)
	s := New("r", h, h.logger,
		Sequential("slow", h.ticking("slow", 10, drivebase), 0),
		Sequential("after", h.ticking("after", 1), 0),
	)
	s.Task().SetTimeout(60 * time.Millisecond)
	h.start(s)
	done := h.runUntil(s.Task(), 50)
	if done != 3 || !s.Task().TimedOut() {
		t.Errorf("routine finished on tick %d (timed out %v), expected 3", done, s.Task().TimedOut())
	}
	for i := 0; i < 10; i++ {
		h.step()
	}
	h.expectNotStarted("after")
}

func TestEmptyRoutine(t *testing.T) {
	h := newHarness(t)
	s := New("empty", h, h.logger)
	h.start(s)
	if done := h.runUntil(s.Task(), 5); done != 1 {
		t.Errorf("empty routine finished on tick %d", done)
	}
}

func TestFootprint(t *testing.T) {
	h := newHarness(t)
	s := New("r", h, h.logger,
		Sequential("a", h.ticking("a", 2, drivebase), 0),
		Parallel("b", h.ticking("b", 2, lift, drivebase), 0),
	)
	// b overlaps a, so it is rejected at scheduling and only a runs.
	h.start(s)
	h.step()
	fp := s.Footprint()
	if len(fp) != 1 || fp[0] != drivebase {
		t.Errorf("footprint %v", fp)
	}
	if s.Err() == nil {
		t.Error("expected the overlapping parallel step to be reported")
	}
}

func TestSkippedStepsLogWithoutStacks(t *testing.T) {
	h := newHarness(t)
	s := New("r", h, h.logger,
		Sequential("a", h.ticking("a", 2, drivebase), 0),
		Parallel("b", h.ticking("b", 2, drivebase), 0),
	)
	h.start(s)
	h.step()
	if s.Err() == nil {
		t.Fatal("expected the overlapping parallel step to be reported")
	}
	// Each skip is one line; a stack would add file:line frames.
	if verbose := fmt.Sprintf("%+v", s.Err()); strings.Contains(verbose, ".go:") {
		t.Errorf("skipped step error carries a stack trace:\n%s", verbose)
	}
}
