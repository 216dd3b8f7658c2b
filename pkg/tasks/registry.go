package tasks

import (
	"sort"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"

	"github.com/tigerbot-team/stackbot/pkg/scheduler"
)

// Factory builds a task from loosely-typed params, as found in a config file.
type Factory func(r *Robot, params map[string]interface{}) (*scheduler.Task, error)

var ErrUnknownTask = errors.New("unknown task")

var factories = map[string]Factory{
	"drive-for-time":  withParams(DriveForTime),
	"rotate-for-time": withParams(RotateForTime),
	"rotate-by":       withParams(RotateBy),
	"move-to-height":  withParams(MoveToHeight),
	"lift-for-time":   withParams(LiftForTime),
	"clamps": withParams(func(r *Robot, p ClampParams) *scheduler.Task {
		return SetClamps(r, p)
	}),
	"wait": withParams(func(r *Robot, p WaitParams) *scheduler.Task {
		return Wait(p)
	}),
	"reset-lift":            noParams(ResetLift),
	"close-clamps":          noParams(CloseClamps),
	"open-clamps":           noParams(OpenClamps),
	"toggle-field-relative": noParams(ToggleFieldRelative),
}

// Build makes the named task.
func Build(r *Robot, name string, params map[string]interface{}) (*scheduler.Task, error) {
	f, ok := factories[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownTask, "%q", name)
	}
	t, err := f(r, params)
	if err != nil {
		return nil, errors.Wrapf(err, "bad params for %s", name)
	}
	return t, nil
}

// Names lists the tasks Build knows, sorted.
func Names() []string {
	var names []string
	for n := range factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// DecodeParams fills out from a params map.  Durations are written as
// strings, e.g. "1.5s".  Unknown keys are an error.
func DecodeParams(params map[string]interface{}, out interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(params)
}

func withParams[P any](build func(*Robot, P) *scheduler.Task) Factory {
	return func(r *Robot, params map[string]interface{}) (*scheduler.Task, error) {
		var p P
		if err := DecodeParams(params, &p); err != nil {
			return nil, err
		}
		if v, ok := interface{}(p).(interface{ Validate() error }); ok {
			if err := v.Validate(); err != nil {
				return nil, err
			}
		}
		return build(r, p), nil
	}
}

func noParams(build func(*Robot) *scheduler.Task) Factory {
	return func(r *Robot, params map[string]interface{}) (*scheduler.Task, error) {
		if len(params) > 0 {
			return nil, errors.New("takes no params")
		}
		return build(r), nil
	}
}
