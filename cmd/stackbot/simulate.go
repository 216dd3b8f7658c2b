package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"github.com/tigerbot-team/stackbot/pkg/hardware"
	"github.com/tigerbot-team/stackbot/pkg/routine"
	"github.com/tigerbot-team/stackbot/pkg/scheduler"
)

type SimulateCmd struct {
	Routine string        `arg:"" optional:"" help:"Routine to run; defaults to the autonomous routine."`
	MaxTime time.Duration `help:"Give up after this much simulated time." default:"30s"`
	Every   int           `help:"Print every Nth tick." default:"1"`
}

// Run steps the scheduler against hardware.Sim on a mock clock, so a
// routine that takes 15s runs in well under a second.
func (s *SimulateCmd) Run(c *Context) error {
	cfg := c.cfg
	name := s.Routine
	if name == "" {
		name = cfg.Autonomous
	}

	mock := clock.NewMock()
	sim := hardware.NewSim(cfg.Sim, cfg.Period, c.logger)
	sched, robot, err := assemble(cfg, sim, mock, c.logger)
	if err != nil {
		return err
	}
	seq, err := cfg.Library().Build(name, routine.Deps{Robot: robot, Scheduler: sched, Logger: c.logger})
	if err != nil {
		return err
	}
	if err := sched.Schedule(seq.Task()); err != nil {
		return errors.Wrap(err, "failed to schedule routine")
	}

	every := s.Every
	if every < 1 {
		every = 1
	}
	fmt.Printf("%6s %8s %7s %7s %7s %6s %7s %8s %5s  %s\n",
		"tick", "time", "fwd", "strafe", "rot", "lift", "height", "heading", "clamp", "tasks")
	maxTicks := int(s.MaxTime / cfg.Period)
	for tick := 1; tick <= maxTicks && !seq.Task().Done(); tick++ {
		mock.Add(cfg.Period)
		sched.Tick()
		sim.Advance()
		if tick%every == 0 || seq.Task().Done() {
			fmt.Printf("%6d %8v %7.2f %7.2f %7.2f %6.2f %7.2f %8.1f %5s  %s\n",
				tick, time.Duration(tick)*cfg.Period,
				sim.Drive.Forward, sim.Drive.Strafe, sim.Drive.Rotation,
				sim.Lift, sim.Height(), sim.CurrentHeadingDegrees(),
				clampString(sim.LeftClamp, sim.RightClamp), activeTasks(sched))
		}
	}

	t := seq.Task()
	fmt.Printf("\nroutine %s: %v after %d ticks (%v), timed out %v, aborted %v\n",
		name, t.State(), sched.TickCount(), t.Elapsed(), t.TimedOut(), seq.Aborted())
	if !t.Done() {
		return errors.Errorf("routine %s still running after %v", name, s.MaxTime)
	}
	if seq.Err() != nil {
		return errors.Wrapf(seq.Err(), "routine %s skipped steps", name)
	}
	return nil
}

func clampString(left, right bool) string {
	b := func(closed bool) string {
		if closed {
			return "X"
		}
		return "-"
	}
	return b(left) + b(right)
}

func activeTasks(sched *scheduler.Scheduler) string {
	var names []string
	for _, t := range sched.Active() {
		if !t.IsDefault() {
			names = append(names, t.Name())
		}
	}
	return strings.Join(names, " ")
}
