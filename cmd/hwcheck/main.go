// hwcheck pokes the robot's hardware one piece at a time, for bring-up and
// for when something on the robot stops responding.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"github.com/tigerbot-team/stackbot/pkg/config"
	"github.com/tigerbot-team/stackbot/pkg/elevation"
	"github.com/tigerbot-team/stackbot/pkg/hardware"
	"github.com/tigerbot-team/stackbot/pkg/joystick"
	"github.com/tigerbot-team/stackbot/pkg/pca9685"
)

var CLI struct {
	Config string `help:"Config file." default:"/cfg/stackbot.yaml" type:"path"`

	Sensors  SensorsCmd  `cmd:"" help:"Print heading, turn rate, lift height and limit switches."`
	Joystick JoystickCmd `cmd:"" help:"Print joystick events."`
	Servo    ServoCmd    `cmd:"" help:"Set PWM board outputs by hand."`
	Clamps   ClampsCmd   `cmd:"" help:"Cycle the clamps."`
}

type Context struct {
	ctx    context.Context
	cfg    config.Config
	logger golog.Logger
}

func main() {
	kctx := kong.Parse(&CLI, kong.Name("hwcheck"))
	logger := golog.NewDevelopmentLogger("hwcheck")
	cfg, err := config.Load(CLI.Config, logger)
	kctx.FatalIfErrorf(err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	signals := make(chan os.Signal, 2)
	signal.Notify(signals, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-signals
		cancel()
	}()

	err = kctx.Run(&Context{ctx: ctx, cfg: cfg, logger: logger})
	kctx.FatalIfErrorf(err)
}

func startHardware(c *Context) (*hardware.Hardware, error) {
	hw := hardware.New(c.cfg.Hardware, c.logger)
	if err := hw.Start(c.ctx); err != nil {
		hw.Shutdown()
		return nil, errors.Wrap(err, "failed to start hardware")
	}
	return hw, nil
}

type SensorsCmd struct {
	Interval time.Duration `default:"200ms"`
}

func (s *SensorsCmd) Run(c *Context) error {
	hw, err := startHardware(c)
	if err != nil {
		return err
	}
	defer hw.Shutdown()
	// Only used for its filter; the lift is never driven.
	lift := elevation.NewSafetyController(c.cfg.Lift, hw, hw, c.logger)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return nil
		case <-ticker.C:
		}
		raw := hw.RawElevationSample()
		height := lift.Sample()
		fmt.Printf("heading %7.1f  rate %7.1f  raw %.3fV  height %6.2f  low %-5v high %-5v\n",
			hw.CurrentHeadingDegrees(), hw.CurrentRotationalRate(), raw, height,
			hw.IsLowLimitActive(), hw.IsHighLimitActive())
	}
}

type JoystickCmd struct {
	Device string `default:"/dev/input/js0" env:"JOYSTICK_DEVICE"`
}

func (j *JoystickCmd) Run(c *Context) error {
	js, err := joystick.WaitForJoystick(c.ctx, j.Device, c.logger)
	if err != nil {
		return err
	}
	events := make(chan *joystick.Event)
	go func() {
		err := joystick.LoopReadingEvents(c.ctx, js, events, c.logger)
		c.logger.Infow("joystick closed", "error", err)
	}()
	for e := range events {
		fmt.Println(e)
	}
	return nil
}

type ServoCmd struct{}

func (s *ServoCmd) Run(c *Context) error {
	pwm, err := pca9685.New(c.cfg.Hardware.I2CDevice, c.cfg.Hardware.PWMAddr)
	if err != nil {
		return err
	}
	defer pwm.Close()
	if err := pwm.Configure(); err != nil {
		return errors.Wrap(err, "failed to configure PCA9685")
	}

	fmt.Printf(`Commands:
    s <n> <position>        # Servo/ESC pulse, 0.0-1.0; 0.5=centre (motor stopped)
    p <n> <pwm-duty-cycle>  # Raw duty cycle, 0.0-1.0

Motors: front left %d, front right %d, back left %d, back right %d, lift %v
`, c.cfg.Hardware.FrontLeftPort, c.cfg.Hardware.FrontRightPort,
		c.cfg.Hardware.BackLeftPort, c.cfg.Hardware.BackRightPort, c.cfg.Hardware.LiftPorts)

	reader := bufio.NewReader(os.Stdin)
	for c.ctx.Err() == nil {
		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return nil
		}
		parts := strings.Fields(line)
		if len(parts) != 3 || (parts[0] != "s" && parts[0] != "p") {
			fmt.Println("Expected s|p <n> <value>")
			continue
		}
		n, err := strconv.Atoi(parts[1])
		if err != nil || n < 0 || n > 15 {
			fmt.Println("Expected 0 <= n < 16, not", parts[1])
			continue
		}
		v, err := strconv.ParseFloat(parts[2], 64)
		if err != nil {
			fmt.Println("Expected float, not", parts[2])
			continue
		}
		if parts[0] == "s" {
			err = pwm.SetServo(n, v)
		} else {
			err = pwm.SetPWM(n, v)
		}
		if err != nil {
			return errors.Wrap(err, "failed to write to PCA9685")
		}
	}
	return nil
}

type ClampsCmd struct {
	Cycles int           `default:"3"`
	Hold   time.Duration `default:"1s"`
}

func (cl *ClampsCmd) Run(c *Context) error {
	hw, err := startHardware(c)
	if err != nil {
		return err
	}
	defer hw.Shutdown()
	steps := []struct{ left, right bool }{{true, false}, {true, true}, {false, true}, {false, false}}
	for i := 0; i < cl.Cycles; i++ {
		for _, s := range steps {
			fmt.Printf("left closed %-5v right closed %v\n", s.left, s.right)
			hw.SetClamps(s.left, s.right)
			select {
			case <-c.ctx.Done():
				return nil
			case <-time.After(cl.Hold):
			}
		}
	}
	return nil
}
