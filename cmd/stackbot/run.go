package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"github.com/tigerbot-team/stackbot/pkg/automode"
	"github.com/tigerbot-team/stackbot/pkg/controlloop"
	"github.com/tigerbot-team/stackbot/pkg/hardware"
	"github.com/tigerbot-team/stackbot/pkg/joystick"
	"github.com/tigerbot-team/stackbot/pkg/operator"
	"github.com/tigerbot-team/stackbot/pkg/pausemode"
	"github.com/tigerbot-team/stackbot/pkg/rcmode"
)

type Mode interface {
	Name() string
	StartupSound() string
	Start(ctx context.Context)
	Stop()
}

type JoystickUser interface {
	OnJoystickEvent(event *joystick.Event)
}

type RunCmd struct {
	Dummy    bool   `help:"Log hardware calls instead of making them."`
	Joystick string `help:"Joystick device." default:"/dev/input/js0" env:"JOYSTICK_DEVICE"`
}

func (r *RunCmd) Run(c *Context) error {
	logger := c.logger
	cfg := c.cfg

	// Our global context, we cancel it to trigger shutdown.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Hook Ctrl-C etc.
	registerSignalHandlers(cancel, logger)

	var hw hardware.Interface
	if r.Dummy {
		hw = hardware.NewDummy(logger)
	} else {
		hw = hardware.New(cfg.Hardware, logger)
	}
	defer func() {
		logger.Info("Zeroing motors for shut down")
		hw.Shutdown()
		time.Sleep(100 * time.Millisecond)
	}()
	if err := hw.Start(ctx); err != nil {
		return errors.Wrap(err, "failed to start hardware")
	}

	sched, robot, err := assemble(cfg, hw, nil, logger)
	if err != nil {
		return err
	}
	if err := cfg.WriteInUse(c.cfgPath, logger); err != nil {
		logger.Warnw("failed to record config", "error", err)
	}

	loop := controlloop.New(sched, nil, logger)
	loop.Start(ctx)
	defer loop.Stop()

	// Wait for the joystick and kick off a background thread to read from it.
	joystickEvents, err := initJoystick(ctx, cancel, r.Joystick, logger)
	if err != nil {
		return err
	}

	hw.PlaySound(cfg.Sounds.Start)

	sticks := operator.NewSticks(cfg.Operator)
	tunables := rcmode.NewGainTunables(loop, robot.Shaper, logger)
	allModes := []Mode{
		// Disabled until the operator picks a mode.
		pausemode.New(loop, sched, robot, hw, cfg.Sounds.Pause, logger),
		rcmode.New(loop, sched, robot, sticks, tunables, cfg.Sounds.Teleop, logger),
		automode.New(loop, sched, robot, cfg.Library(), cfg.Autonomous, cfg.Sounds.Auto, logger),
	}
	var activeMode Mode = allModes[0]
	logger.Infow("mode", "name", activeMode.Name())
	activeMode.Start(ctx)
	activeModeIdx := 0

	switchMode := func(delta int) {
		activeMode.Stop()
		activeModeIdx += delta
		activeModeIdx = (activeModeIdx + len(allModes)) % len(allModes)
		activeMode = allModes[activeModeIdx]
		logger.Infow("mode switch", "name", activeMode.Name())
		hw.PlaySound(activeMode.StartupSound())
		activeMode.Start(ctx)
	}

	watchdog := time.NewTicker(5 * time.Second)
	defer watchdog.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Context done, stopping active mode and shutting down")
			activeMode.Stop()
			return nil
		case event, ok := <-joystickEvents:
			if !ok {
				logger.Error("Joystick events channel closed!")
				activeMode.Stop()
				return errors.New("lost joystick")
			}
			// Intercept the Options button to implement mode switching.
			if event.Type == joystick.EventTypeButton && event.Value == 1 {
				if event.Number == joystick.ButtonOptions {
					switchMode(1)
					continue
				} else if event.Number == joystick.ButtonShare {
					switchMode(-1)
					continue
				}
			}
			// Pass other joystick events through if this mode requires them.
			if ju, ok := activeMode.(JoystickUser); ok {
				done := make(chan struct{})
				go func() {
					defer close(done)
					ju.OnJoystickEvent(event)
				}()
				timeout := time.NewTimer(1 * time.Second)
				select {
				case <-done:
					timeout.Stop()
				case <-timeout.C:
					// Modes only queue the event; blocking this long is a deadlock.
					panic("Deadlock? Active mode blocked OnJoystickEvent for >1s")
				}
			}
		case <-watchdog.C:
			logger.Debugw("Main loop still running", "ticks", loop.Ticks())
		}
	}
}

func initJoystick(ctx context.Context, cancel context.CancelFunc, device string, logger golog.Logger) (chan *joystick.Event, error) {
	j, err := joystick.WaitForJoystick(ctx, device, logger)
	if err != nil {
		return nil, errors.Wrap(err, "no joystick")
	}
	joystickEvents := make(chan *joystick.Event, 1)
	go func() {
		defer cancel()
		err := joystick.LoopReadingEvents(ctx, j, joystickEvents, logger)
		logger.Warnw("Joystick failed", "error", err)
	}()
	return joystickEvents, nil
}

func registerSignalHandlers(cancelFunc context.CancelFunc, logger golog.Logger) {
	// Hook Ctrl-C to cause shut down.
	signals := make(chan os.Signal, 2)
	signal.Notify(signals, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		s := <-signals
		logger.Infow("Signal", "signal", s)
		cancelFunc()
		time.Sleep(2 * time.Second)
		os.Exit(0)
	}()
}
