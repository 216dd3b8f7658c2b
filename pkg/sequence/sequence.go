// Package sequence composes tasks into routines.
//
// A routine is a list of steps.  Each Sequential step starts a new batch;
// Parallel steps join the batch of the step before them.  A batch's tasks
// are all scheduled together and the next batch only starts when every task
// in the current one has finished, timed out or been interrupted.
package sequence

import (
	"fmt"
	"strings"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/tigerbot-team/stackbot/pkg/scheduler"
)

type Mode int

const (
	ModeSequential Mode = iota
	ModeParallel
)

func (m Mode) String() string {
	if m == ModeParallel {
		return "parallel"
	}
	return "sequential"
}

// Constructor builds a step's task when its batch starts, so every run gets
// a fresh task.
type Constructor func() (*scheduler.Task, error)

type Step struct {
	Name    string
	New     Constructor
	Mode    Mode
	Timeout time.Duration
}

func Sequential(name string, ctor Constructor, timeout time.Duration) Step {
	return Step{Name: name, New: ctor, Mode: ModeSequential, Timeout: timeout}
}

func Parallel(name string, ctor Constructor, timeout time.Duration) Step {
	return Step{Name: name, New: ctor, Mode: ModeParallel, Timeout: timeout}
}

// Of adapts a plain task constructor.
func Of(build func() *scheduler.Task) Constructor {
	return func() (*scheduler.Task, error) {
		return build(), nil
	}
}

// Scheduler is the part of the scheduler a Sequencer uses.
type Scheduler interface {
	Schedule(t *scheduler.Task) error
}

type Sequencer struct {
	name    string
	sched   Scheduler
	logger  golog.Logger
	batches [][]Step

	task        *scheduler.Task
	cursor      int
	outstanding map[*scheduler.Task]bool
	aborted     bool
	errs        error
}

func batch(steps []Step) [][]Step {
	var batches [][]Step
	for i, s := range steps {
		if i == 0 || s.Mode == ModeSequential {
			batches = append(batches, nil)
		}
		batches[len(batches)-1] = append(batches[len(batches)-1], s)
	}
	return batches
}

func New(name string, sched Scheduler, logger golog.Logger, steps ...Step) *Sequencer {
	s := &Sequencer{
		name:        name,
		sched:       sched,
		logger:      logger.Named("sequence").With("routine", name),
		batches:     batch(steps),
		outstanding: map[*scheduler.Task]bool{},
	}
	s.task = scheduler.NewTask(name, scheduler.Hooks{
		Initialize: func(t *scheduler.Task) error {
			s.advance()
			return nil
		},
		IsFinished: func(t *scheduler.Task) bool {
			return len(s.outstanding) == 0 && (s.aborted || s.cursor >= len(s.batches))
		},
		End: func(t *scheduler.Task) error {
			if len(s.outstanding) > 0 {
				// Timed out: let the running children finish but start nothing new.
				s.aborted = true
				s.logger.Infow("routine stopped with steps still running", "running", s.running())
			}
			s.logger.Infow("routine finished", "ticks", t.Ticks(), "elapsed", t.Elapsed(), "aborted", s.aborted)
			return nil
		},
	})
	return s
}

// Task is the composite task to schedule.  It claims no resources itself.
func (s *Sequencer) Task() *scheduler.Task {
	return s.task
}

func (s *Sequencer) Name() string {
	return s.name
}

// Err collects the steps that could not be started.
func (s *Sequencer) Err() error {
	return s.errs
}

func (s *Sequencer) Aborted() bool {
	return s.aborted
}

// Footprint is the union of the resources held by the running children.
func (s *Sequencer) Footprint() []scheduler.ResourceID {
	seen := map[scheduler.ResourceID]bool{}
	var ids []scheduler.ResourceID
	for child := range s.outstanding {
		for _, id := range child.Requires() {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return ids
}

func (s *Sequencer) running() string {
	var names []string
	for child := range s.outstanding {
		names = append(names, child.Name())
	}
	return strings.Join(names, ",")
}

// advance starts batches until one has something running or none are left.
func (s *Sequencer) advance() {
	for !s.aborted && len(s.outstanding) == 0 && s.cursor < len(s.batches) {
		b := s.batches[s.cursor]
		s.cursor++
		s.logger.Debugw("starting batch", "batch", s.cursor, "of", len(s.batches), "steps", len(b))
		for _, step := range b {
			s.start(step)
		}
	}
}

func (s *Sequencer) start(step Step) {
	child, err := construct(step)
	if err == nil {
		if step.Timeout > 0 && (child.Timeout() == 0 || step.Timeout < child.Timeout()) {
			child.SetTimeout(step.Timeout)
		}
		err = s.sched.Schedule(child)
	}
	if err != nil {
		err = errors.WithMessagef(err, "step %q skipped", step.Name)
		s.logger.Warnw("skipping step", "step", step.Name, "error", err)
		s.errs = multierr.Append(s.errs, err)
		return
	}
	s.outstanding[child] = true
	child.Watch(s.childDone)
}

func construct(step Step) (t *scheduler.Task, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("constructor panicked: %v", r)
		}
	}()
	if step.New == nil {
		return nil, errors.New("no constructor")
	}
	t, err = step.New()
	if err == nil && t == nil {
		err = errors.New("constructor returned no task")
	}
	return t, err
}

func (s *Sequencer) childDone(child *scheduler.Task) {
	delete(s.outstanding, child)
	switch {
	case child.State() == scheduler.StateInterrupted:
		if !s.aborted {
			s.logger.Infow("step interrupted; abandoning routine", "step", child.Name())
		}
		s.aborted = true
	case child.Err() != nil:
		s.logger.Warnw("step failed", "step", child.Name(), "error", child.Err())
	case child.TimedOut():
		s.logger.Infow("step timed out", "step", child.Name())
	}
	if s.task.State() == scheduler.StateRunning {
		s.advance()
	}
}

func (s *Sequencer) String() string {
	return fmt.Sprintf("%s[%d/%d]", s.name, s.cursor, len(s.batches))
}
