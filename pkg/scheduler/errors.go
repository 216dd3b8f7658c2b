package scheduler

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kinds of ConfigError.  Test with errors.Is.
var (
	ErrDuplicateResource = errors.New("resource already registered")
	ErrUnknownResource   = errors.New("resource not registered")
	ErrBadDefault        = errors.New("bad default task")
	ErrClaimConflict     = errors.New("conflicting resource claims")
	ErrTaskReused        = errors.New("task already scheduled")
)

// ConfigError is a setup mistake: bad registration or an unschedulable task.
type ConfigError struct {
	Kind error
	Msg  string
}

func configErrorf(kind error, format string, args ...interface{}) *ConfigError {
	return &ConfigError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func (e *ConfigError) Error() string {
	return e.Kind.Error() + ": " + e.Msg
}

func (e *ConfigError) Unwrap() error {
	return e.Kind
}

// Phase names the task hook that was running when a fault happened.
type Phase string

const (
	PhaseInitialize Phase = "initialize"
	PhaseExecute    Phase = "execute"
	PhaseIsFinished Phase = "is-finished"
	PhaseEnd        Phase = "end"
	PhaseInterrupt  Phase = "interrupted"
)

// StepFault records an error returned from, or a panic raised in, a task hook.
// The scheduler never lets it escape Tick; it is available from Task.Err.
type StepFault struct {
	Task  string
	Phase Phase
	Err   error
}

func (f *StepFault) Error() string {
	return fmt.Sprintf("task %q failed in %s: %v", f.Task, f.Phase, f.Err)
}

func (f *StepFault) Unwrap() error {
	return f.Err
}

// guard runs fn, turning a panic into an error.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = errors.Wrap(e, "panic")
			} else {
				err = errors.Errorf("panic: %v", r)
			}
		}
	}()
	return fn()
}
