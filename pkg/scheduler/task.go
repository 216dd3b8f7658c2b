package scheduler

import (
	"fmt"
	"time"
)

// ResourceID names an exclusively-owned subsystem, e.g. the drivebase.
type ResourceID string

type State int

const (
	StateCreated State = iota
	StateInitialized
	StateRunning
	StateFinished
	StateInterrupted
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateInitialized:
		return "initialized"
	case StateRunning:
		return "running"
	case StateFinished:
		return "finished"
	case StateInterrupted:
		return "interrupted"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Hooks are the behaviour of a Task.  Any of them may be nil.  A nil
// IsFinished means the task only stops when it is interrupted, which is what
// default tasks want.
type Hooks struct {
	Initialize  func(t *Task) error
	Execute     func(t *Task) error
	IsFinished  func(t *Task) bool
	End         func(t *Task) error
	Interrupted func(t *Task)
}

// Task is a unit of cooperative work that holds a fixed set of resources
// while it runs.  A Task runs at most once.
type Task struct {
	name     string
	requires []ResourceID
	hooks    Hooks
	timeout  time.Duration

	state     State
	scheduled bool
	order     int
	startedAt time.Time
	steppedAt time.Time
	ticks     int
	timedOut  bool
	err       error
	isDefault bool
	reclaim   bool

	watchers []func(*Task)
}

func NewTask(name string, hooks Hooks, requires ...ResourceID) *Task {
	seen := map[ResourceID]bool{}
	var reqs []ResourceID
	for _, r := range requires {
		if seen[r] {
			continue
		}
		seen[r] = true
		reqs = append(reqs, r)
	}
	return &Task{
		name:     name,
		requires: reqs,
		hooks:    hooks,
	}
}

func (t *Task) Name() string {
	return t.name
}

func (t *Task) String() string {
	return fmt.Sprintf("%s(%s)", t.name, t.state)
}

func (t *Task) Requires() []ResourceID {
	return append([]ResourceID(nil), t.requires...)
}

func (t *Task) requiresResource(id ResourceID) bool {
	for _, r := range t.requires {
		if r == id {
			return true
		}
	}
	return false
}

func (t *Task) overlaps(other *Task) bool {
	for _, r := range t.requires {
		if other.requiresResource(r) {
			return true
		}
	}
	return false
}

// SetTimeout bounds the task's run time.  Once Elapsed reaches d the task
// finishes normally (End runs) at the next finish check.  Zero disables the
// timeout.  Only effective before the task is scheduled.
func (t *Task) SetTimeout(d time.Duration) *Task {
	if t.scheduled {
		return t
	}
	t.timeout = d
	return t
}

func (t *Task) Timeout() time.Duration {
	return t.timeout
}

func (t *Task) State() State {
	return t.state
}

// IsDefault is true for tasks the scheduler created to hold an idle resource.
func (t *Task) IsDefault() bool {
	return t.isDefault
}

// Done is true once the task has finished or been interrupted.
func (t *Task) Done() bool {
	return t.state == StateFinished || t.state == StateInterrupted
}

// Elapsed is the control time the task has run for: one period per step.
func (t *Task) Elapsed() time.Duration {
	if t.startedAt.IsZero() {
		return 0
	}
	return t.steppedAt.Sub(t.startedAt)
}

// Ticks is the number of times Execute has been called.
func (t *Task) Ticks() int {
	return t.ticks
}

func (t *Task) TimedOut() bool {
	return t.timedOut
}

// Err returns the fault that stopped the task, if any.
func (t *Task) Err() error {
	return t.err
}

// Watch registers fn to be called once the task has ended or been
// interrupted.  Watchers run inside Tick, after End / Interrupted.
func (t *Task) Watch(fn func(*Task)) {
	t.watchers = append(t.watchers, fn)
}

func (t *Task) notifyWatchers() {
	watchers := t.watchers
	t.watchers = nil
	for _, w := range watchers {
		w(t)
	}
}

func (t *Task) expired() bool {
	return t.timeout > 0 && t.Elapsed() >= t.timeout
}

// finished evaluates the timeout and then the task's own predicate.
func (t *Task) finished() bool {
	if t.expired() {
		t.timedOut = true
		return true
	}
	if t.hooks.IsFinished == nil {
		return false
	}
	return t.hooks.IsFinished(t)
}
