// Package routine turns named lists of task steps into sequences.  The
// autonomous routines are plain data so that new ones can be written in the
// config file without a rebuild.
package routine

import (
	"sort"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/tigerbot-team/stackbot/pkg/scheduler"
	"github.com/tigerbot-team/stackbot/pkg/sequence"
	"github.com/tigerbot-team/stackbot/pkg/tasks"
)

const DefaultRoutine = "stack"

var ErrUnknownRoutine = errors.New("unknown routine")

// StepConfig is one step as written in the config file, e.g.
//
//	- task: move-to-height
//	  mode: parallel
//	  timeout: 3s
//	  params: {height: 20}
type StepConfig struct {
	Task string
	// Mode is "sequential" (the default) or "parallel".
	Mode    string
	Timeout time.Duration
	Params  map[string]interface{}
}

type Definition struct {
	// Timeout bounds the whole routine.  Zero means no limit.
	Timeout time.Duration
	Steps   []StepConfig
}

type Deps struct {
	Robot     *tasks.Robot
	Scheduler sequence.Scheduler
	Logger    golog.Logger
}

type Library struct {
	defs map[string]Definition
}

// NewLibrary returns the built-in routines plus custom ones.  A custom
// routine replaces a built-in of the same name.
func NewLibrary(custom map[string]Definition) *Library {
	defs := Builtin()
	for name, def := range custom {
		defs[name] = def
	}
	return &Library{defs: defs}
}

func (l *Library) Names() []string {
	var names []string
	for n := range l.defs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (l *Library) Definition(name string) (Definition, bool) {
	def, ok := l.defs[name]
	return def, ok
}

// Build makes a fresh sequence for the named routine.  Step tasks are only
// constructed when their batch starts.
func (l *Library) Build(name string, deps Deps) (*sequence.Sequencer, error) {
	def, ok := l.defs[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownRoutine, "%q", name)
	}
	var steps []sequence.Step
	for i, sc := range def.Steps {
		mode, err := parseMode(sc.Mode)
		if err != nil {
			return nil, errors.Wrapf(err, "routine %s step %d", name, i)
		}
		sc := sc
		steps = append(steps, sequence.Step{
			Name: sc.Task,
			New: func() (*scheduler.Task, error) {
				return tasks.Build(deps.Robot, sc.Task, sc.Params)
			},
			Mode:    mode,
			Timeout: sc.Timeout,
		})
	}
	seq := sequence.New(name, deps.Scheduler, deps.Logger, steps...)
	if def.Timeout > 0 {
		seq.Task().SetTimeout(def.Timeout)
	}
	return seq, nil
}

// Check builds every step of every routine once, without scheduling
// anything, so that typos in the config file show up at start-up.
func (l *Library) Check(r *tasks.Robot) error {
	var errs error
	for _, name := range l.Names() {
		for i, sc := range l.defs[name].Steps {
			if _, err := parseMode(sc.Mode); err != nil {
				errs = multierr.Append(errs, errors.Wrapf(err, "routine %s step %d", name, i))
			}
			if _, err := tasks.Build(r, sc.Task, sc.Params); err != nil {
				errs = multierr.Append(errs, errors.Wrapf(err, "routine %s step %d", name, i))
			}
		}
	}
	return errs
}

func parseMode(s string) (sequence.Mode, error) {
	switch s {
	case "", "sequential":
		return sequence.ModeSequential, nil
	case "parallel":
		return sequence.ModeParallel, nil
	default:
		return 0, errors.Errorf("unknown step mode %q", s)
	}
}
