package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/alecthomas/kong"
	"github.com/edaniels/golog"

	"github.com/tigerbot-team/stackbot/pkg/config"
)

var CLI struct {
	Config string `help:"Config file; the config in use is written next to it." default:"/cfg/stackbot.yaml" type:"path"`
	Debug  bool   `help:"Log at debug level."`

	Run      RunCmd      `cmd:"" default:"1" help:"Drive the robot."`
	Simulate SimulateCmd `cmd:"" help:"Run a routine against the simulated robot and print a timeline."`
	Routines RoutinesCmd `cmd:"" help:"List the routines."`
}

type Context struct {
	cfg     config.Config
	cfgPath string
	logger  golog.Logger
}

func main() {
	fmt.Println("---- stackbot ----")
	fmt.Println("GOMAXPROCS", runtime.GOMAXPROCS(0))

	kctx := kong.Parse(&CLI,
		kong.Name("stackbot"),
		kong.Description("Mecanum drivebase, lift and clamps on a cooperative task scheduler."),
	)

	logger := golog.NewLogger("stackbot")
	if CLI.Debug {
		logger = golog.NewDevelopmentLogger("stackbot")
	}

	cfg, err := config.Load(CLI.Config, logger)
	if err != nil {
		logger.Errorw("failed to load config", "error", err)
		os.Exit(1)
	}

	err = kctx.Run(&Context{cfg: cfg, cfgPath: CLI.Config, logger: logger})
	kctx.FatalIfErrorf(err)
}
