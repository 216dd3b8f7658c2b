package main

import (
	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"github.com/tigerbot-team/stackbot/pkg/config"
	"github.com/tigerbot-team/stackbot/pkg/elevation"
	"github.com/tigerbot-team/stackbot/pkg/hardware"
	"github.com/tigerbot-team/stackbot/pkg/headingholder"
	"github.com/tigerbot-team/stackbot/pkg/scheduler"
	"github.com/tigerbot-team/stackbot/pkg/tasks"
)

// assemble wires the shaper, lift controller and scheduler to hw and checks
// every routine's steps against the result.
func assemble(cfg config.Config, hw hardware.Interface, clk clock.Clock, logger golog.Logger) (*scheduler.Scheduler, *tasks.Robot, error) {
	shaper := headingholder.NewVelocityShaper(cfg.Drive, cfg.Period, logger)
	lift := elevation.NewSafetyController(cfg.Lift, hw, hw, logger)
	robot := tasks.NewRobot(cfg.Tasks, hw, shaper, lift, logger)
	sched := scheduler.New(scheduler.Config{Period: cfg.Period}, clk, logger)
	if err := robot.RegisterResources(sched); err != nil {
		return nil, nil, errors.Wrap(err, "failed to register resources")
	}
	if err := cfg.Library().Check(robot); err != nil {
		return nil, nil, errors.Wrap(err, "bad routine")
	}
	return sched, robot, nil
}
