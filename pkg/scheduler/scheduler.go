// Package scheduler arbitrates exclusive subsystems (resources) between
// cooperative tasks.  Everything happens inside Tick, on the caller's
// goroutine: a Tick resolves pending claims, steps every running task once
// and then retires the tasks that are done.  A resource nobody has claimed is
// held by a fresh instance of its default task.
package scheduler

import (
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
)

const DefaultPeriod = 20 * time.Millisecond

type Config struct {
	Period time.Duration
}

type resource struct {
	id      ResourceID
	holder  *Task
	factory func() *Task
}

type Scheduler struct {
	period time.Duration
	clock  clock.Clock
	logger golog.Logger

	resources     map[ResourceID]*resource
	resourceOrder []ResourceID

	pending []*Task
	// active holds the running tasks in admission order.
	active    []*Task
	nextOrder int

	ticks    int
	lastTick time.Time
}

func New(cfg Config, clk clock.Clock, logger golog.Logger) *Scheduler {
	if cfg.Period <= 0 {
		cfg.Period = DefaultPeriod
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Scheduler{
		period:    cfg.Period,
		clock:     clk,
		logger:    logger.Named("scheduler"),
		resources: map[ResourceID]*resource{},
	}
}

func (s *Scheduler) Period() time.Duration {
	return s.period
}

func (s *Scheduler) TickCount() int {
	return s.ticks
}

// RegisterResource declares a resource and the factory for its default task.
// The factory is called whenever the resource has no holder, so it must
// return a new Task every time.
func (s *Scheduler) RegisterResource(id ResourceID, defaultFactory func() *Task) error {
	if _, ok := s.resources[id]; ok {
		return configErrorf(ErrDuplicateResource, "%q", id)
	}
	if defaultFactory == nil {
		return configErrorf(ErrBadDefault, "%q has no default task factory", id)
	}
	sample := defaultFactory()
	if sample == nil {
		return configErrorf(ErrBadDefault, "%q default task factory returned nil", id)
	}
	if len(sample.requires) != 1 || sample.requires[0] != id {
		return configErrorf(ErrBadDefault, "%q default task %q must require exactly that resource, not %v",
			id, sample.Name(), sample.requires)
	}
	s.resources[id] = &resource{id: id, factory: defaultFactory}
	s.resourceOrder = append(s.resourceOrder, id)
	s.logger.Debugw("registered resource", "resource", id, "default", sample.Name())
	return nil
}

// Schedule queues t for admission at the next resolution phase.  It may be
// called from inside task hooks; tasks queued during resolution are admitted
// in the same Tick.
func (s *Scheduler) Schedule(t *Task) error {
	if t == nil {
		return configErrorf(ErrBadDefault, "nil task")
	}
	if t.scheduled || t.state != StateCreated {
		return configErrorf(ErrTaskReused, "%q is %v", t.Name(), t.state)
	}
	for _, id := range t.requires {
		if _, ok := s.resources[id]; !ok {
			return configErrorf(ErrUnknownResource, "%q requires %q", t.Name(), id)
		}
	}
	for _, p := range s.pending {
		if t.reclaim || p.reclaim {
			continue
		}
		if t.overlaps(p) {
			return configErrorf(ErrClaimConflict, "%q and pending %q claim the same resource", t.Name(), p.Name())
		}
	}
	t.scheduled = true
	s.pending = append(s.pending, t)
	s.logger.Debugw("scheduled", "task", t.Name(), "requires", t.requires)
	return nil
}

// Holder returns the task currently holding id, or nil.
func (s *Scheduler) Holder(id ResourceID) *Task {
	r, ok := s.resources[id]
	if !ok {
		return nil
	}
	return r.holder
}

// Active returns the running tasks in admission order.
func (s *Scheduler) Active() []*Task {
	return append([]*Task(nil), s.active...)
}

// Reclaim returns a task that claims every registered resource, steps once
// and finishes, so the defaults take over again on the following tick.
// Queued claims never conflict with a reclaim: tasks queued before it are
// admitted first and then interrupted by it, and tasks queued after it
// (including a routine's first steps) interrupt it in turn.
func (s *Scheduler) Reclaim(name string) *Task {
	t := NewTask(name, Hooks{
		Initialize: func(t *Task) error {
			s.logger.Infow("reclaiming resources", "by", name)
			return nil
		},
		IsFinished: func(t *Task) bool { return true },
	}, s.resourceOrder...)
	t.reclaim = true
	return t
}

// Tick runs one control period.
func (s *Scheduler) Tick() {
	now := s.clock.Now()
	prev := s.lastTick
	if s.ticks == 0 {
		prev = now.Add(-s.period)
	}
	s.ticks++
	s.lastTick = now

	s.resolve(prev)
	s.step(now)
	s.retire()
}

func (s *Scheduler) resolve(startedAt time.Time) {
	for len(s.pending) > 0 {
		t := s.pending[0]
		s.pending = s.pending[1:]
		s.admit(t, startedAt)
	}
	for _, id := range s.resourceOrder {
		r := s.resources[id]
		if r.holder != nil {
			continue
		}
		d := r.factory()
		if d == nil {
			s.logger.Errorw("default task factory returned nil", "resource", id)
			continue
		}
		if len(d.requires) != 1 || d.requires[0] != id || d.scheduled {
			s.logger.Errorw("rejecting bad default task", "resource", id, "task", d.Name())
			continue
		}
		d.scheduled = true
		d.isDefault = true
		s.admit(d, startedAt)
	}
}

func (s *Scheduler) admit(t *Task, startedAt time.Time) {
	for _, id := range t.requires {
		r := s.resources[id]
		if h := r.holder; h != nil {
			s.logger.Infow("interrupting", "task", h.Name(), "by", t.Name(), "resource", id)
			s.interrupt(h)
		}
	}
	for _, id := range t.requires {
		s.resources[id].holder = t
	}
	t.order = s.nextOrder
	s.nextOrder++
	t.startedAt = startedAt
	t.steppedAt = startedAt
	t.state = StateInitialized
	s.active = append(s.active, t)

	if t.hooks.Initialize != nil {
		if err := guard(func() error { return t.hooks.Initialize(t) }); err != nil {
			s.fault(t, PhaseInitialize, err)
			return
		}
	}
	if t.state == StateInitialized {
		t.state = StateRunning
	}
}

func (s *Scheduler) interrupt(t *Task) {
	if t.Done() {
		return
	}
	t.state = StateInterrupted
	if t.hooks.Interrupted != nil {
		if err := guard(func() error { t.hooks.Interrupted(t); return nil }); err != nil {
			s.logger.Errorw("interrupt hook failed", "task", t.Name(), "error", err)
			t.err = &StepFault{Task: t.Name(), Phase: PhaseInterrupt, Err: err}
		}
	}
	s.release(t)
	t.notifyWatchers()
}

func (s *Scheduler) step(now time.Time) {
	for _, t := range s.Active() {
		if t.state != StateRunning {
			continue
		}
		t.steppedAt = now
		t.ticks++
		if t.hooks.Execute == nil {
			continue
		}
		if err := guard(func() error { return t.hooks.Execute(t) }); err != nil {
			s.fault(t, PhaseExecute, err)
		}
	}
}

// retire checks the newest tasks first so that a composite sees its
// children's End before its own predicate runs.
func (s *Scheduler) retire() {
	active := s.Active()
	for i := len(active) - 1; i >= 0; i-- {
		t := active[i]
		if t.state != StateRunning {
			continue
		}
		var done bool
		if err := guard(func() error { done = t.finished(); return nil }); err != nil {
			s.fault(t, PhaseIsFinished, err)
			continue
		}
		if !done {
			continue
		}
		if t.timedOut {
			s.logger.Infow("timeout expired", "task", t.Name(), "elapsed", t.Elapsed(), "timeout", t.timeout)
		}
		s.finish(t)
	}
}

func (s *Scheduler) finish(t *Task) {
	t.state = StateFinished
	if t.hooks.End != nil {
		if err := guard(func() error { return t.hooks.End(t) }); err != nil {
			f := &StepFault{Task: t.Name(), Phase: PhaseEnd, Err: err}
			s.logger.Errorw("task fault", "task", t.Name(), "phase", PhaseEnd, "error", err)
			t.err = f
		}
	}
	s.release(t)
	s.logger.Debugw("finished", "task", t.Name(), "ticks", t.ticks, "elapsed", t.Elapsed())
	t.notifyWatchers()
}

// fault forces t to Finished after a failing hook, still giving End a chance
// to leave the hardware safe.
func (s *Scheduler) fault(t *Task, phase Phase, err error) {
	f := &StepFault{Task: t.Name(), Phase: phase, Err: err}
	s.logger.Errorw("task fault", "task", t.Name(), "phase", phase, "error", err)
	s.finish(t)
	// A failing End is logged by finish; the first fault is the one reported.
	t.err = f
}

func (s *Scheduler) release(t *Task) {
	for _, id := range t.requires {
		if r := s.resources[id]; r.holder == t {
			r.holder = nil
		}
	}
	for i, a := range s.active {
		if a == t {
			s.active = append(s.active[:i], s.active[i+1:]...)
			break
		}
	}
}
