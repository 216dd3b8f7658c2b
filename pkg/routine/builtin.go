package routine

import "time"

const (
	timeToScoring = 800 * time.Millisecond
	timeToTote    = 2 * time.Second
	toteHeight    = 20.0
	binHeight     = 20.0
)

func step(task string, params map[string]interface{}) StepConfig {
	return StepConfig{Task: task, Params: params}
}

func moveTo(height float64) StepConfig {
	return step("move-to-height", map[string]interface{}{"height": height})
}

func driveFor(d time.Duration, forward float64) StepConfig {
	return step("drive-for-time", map[string]interface{}{"duration": d.String(), "forward": forward})
}

func wait(d time.Duration) StepConfig {
	return step("wait", map[string]interface{}{"duration": d.String()})
}

func toggleClamp(side string) StepConfig {
	return step("clamps", map[string]interface{}{"action": "toggle", "side": side})
}

var (
	openClamps  = step("open-clamps", nil)
	closeClamps = step("close-clamps", nil)
	resetLift   = step("reset-lift", nil)
)

// Every autonomous routine starts from open clamps and the lift at the
// bottom.
func fromHome(steps ...StepConfig) Definition {
	return Definition{Steps: append([]StepConfig{openClamps, resetLift}, steps...)}
}

// Builtin returns the routines that need no configuration.
func Builtin() map[string]Definition {
	return map[string]Definition{
		// Lift the recycling bin and carry it into the scoring zone.
		"bin": fromHome(
			closeClamps,
			moveTo(binHeight),
			driveFor(timeToScoring, 1),
			resetLift,
			openClamps,
		),
		"tote": fromHome(
			closeClamps,
			wait(100*time.Millisecond),
			moveTo(toteHeight),
			driveFor(timeToScoring, 1),
			resetLift,
			openClamps,
		),
		// Exercise the lift.
		"test": fromHome(
			moveTo(30),
			wait(time.Second),
			moveTo(20),
			wait(time.Second),
			moveTo(40),
			wait(time.Second),
			resetLift,
		),
		// Put the bin on the tote, pick both up and score them.
		"stack": fromHome(
			closeClamps,
			moveTo(toteHeight+binHeight),
			driveFor(timeToTote, 1),
			openClamps,
			resetLift,
			closeClamps,
			moveTo(toteHeight),
			step("rotate-by", map[string]interface{}{"degrees": -90.0}),
			driveFor(timeToScoring, 1),
			resetLift,
			openClamps,
		),
		// Grab the bin with one clamp, back off, grab with the other.
		"pickup-bin": {Steps: []StepConfig{
			toggleClamp("left"),
			driveFor(500*time.Millisecond, -0.5),
			toggleClamp("right"),
			driveFor(1700*time.Millisecond, -1),
		}},
	}
}
