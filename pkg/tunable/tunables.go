// Package tunable holds values that can be nudged from the gamepad while the
// robot runs, e.g. the heading-rate gains.
package tunable

import (
	"math"
	"sync"

	"github.com/edaniels/golog"
)

type Tunable struct {
	Name string
	Step float64

	lock     sync.Mutex
	value    float64
	min      float64
	onChange func(float64)
}

// Add moves the value by steps * Step, not going below the minimum, and
// reports the new value to the change callback.
func (t *Tunable) Add(steps int) float64 {
	t.lock.Lock()
	t.value = math.Max(t.min, t.value+float64(steps)*t.Step)
	// Avoid 0.30000000000000004 in the logs and the config.
	t.value = math.Round(t.value/t.Step) * t.Step
	v := t.value
	onChange := t.onChange
	t.lock.Unlock()
	if onChange != nil {
		onChange(v)
	}
	return v
}

func (t *Tunable) Get() float64 {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.value
}

type Tunables struct {
	logger golog.Logger

	lock     sync.Mutex
	All      []*Tunable
	selected int
}

func New(logger golog.Logger) *Tunables {
	return &Tunables{logger: logger.Named("tunable")}
}

// Create adds a tunable that can't go below zero.  onChange may be nil.
func (t *Tunables) Create(name string, value, step float64, onChange func(float64)) *Tunable {
	t.lock.Lock()
	defer t.lock.Unlock()
	newTunable := &Tunable{
		Name:     name,
		Step:     step,
		value:    value,
		onChange: onChange,
	}
	t.All = append(t.All, newTunable)
	return newTunable
}

func (t *Tunables) SelectNext() *Tunable {
	return t.move(1)
}

func (t *Tunables) SelectPrev() *Tunable {
	return t.move(-1)
}

func (t *Tunables) move(delta int) *Tunable {
	t.lock.Lock()
	if len(t.All) == 0 {
		t.lock.Unlock()
		return nil
	}
	t.selected = (t.selected + delta + len(t.All)) % len(t.All)
	current := t.All[t.selected]
	t.lock.Unlock()
	t.logger.Infow("tunable selected", "name", current.Name, "value", current.Get())
	return current
}

// AdjustCurrent nudges the selected tunable.
func (t *Tunables) AdjustCurrent(steps int) {
	current := t.Current()
	if current == nil {
		return
	}
	v := current.Add(steps)
	t.logger.Infow("tunable", "name", current.Name, "value", v)
}

func (t *Tunables) Current() *Tunable {
	t.lock.Lock()
	defer t.lock.Unlock()
	if len(t.All) == 0 {
		return nil
	}
	return t.All[t.selected]
}
