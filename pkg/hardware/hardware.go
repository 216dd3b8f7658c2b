package hardware

import (
	"context"
	"sync"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/host"

	"github.com/tigerbot-team/stackbot/pkg/bno08x"
	"github.com/tigerbot-team/stackbot/pkg/headingholder/angle"
	"github.com/tigerbot-team/stackbot/pkg/ina219"
	"github.com/tigerbot-team/stackbot/pkg/pca9685"
	"github.com/tigerbot-team/stackbot/pkg/sound"
)

type Config struct {
	I2CDevice string
	PWMAddr   int

	FrontLeftPort  int
	FrontRightPort int
	BackLeftPort   int
	BackRightPort  int
	// The lift has two motors geared together; both get the same command.
	LiftPorts []int

	IMUDevice       string
	RangeFinderAddr int

	HighLimitPin string
	LowLimitPin  string
	// Switches pull the pin low when pressed.
	LimitActiveLow bool

	LeftClampPin  string
	RightClampPin string
}

func DefaultConfig() Config {
	return Config{
		I2CDevice:       "/dev/i2c-1",
		PWMAddr:         pca9685.DefaultAddr,
		FrontLeftPort:   0,
		BackRightPort:   1,
		BackLeftPort:    2,
		FrontRightPort:  3,
		LiftPorts:       []int{4, 5},
		IMUDevice:       bno08x.DefaultDevice,
		RangeFinderAddr: ina219.Addr1,
		HighLimitPin:    "GPIO17",
		LowLimitPin:     "GPIO27",
		LimitActiveLow:  true,
		LeftClampPin:    "GPIO22",
		RightClampPin:   "GPIO23",
	}
}

// Hardware is the real robot.  Actuator and sensor calls come from the
// control loop goroutine; the IMU is read on its own goroutine.
type Hardware struct {
	cfg    Config
	logger golog.Logger

	pwm         pca9685.Interface
	rangeFinder ina219.Interface
	imu         *bno08x.BNO08X

	highLimit, lowLimit   gpio.PinIO
	leftClamp, rightClamp gpio.PinIO

	soundsToPlay chan string

	cancelIMU context.CancelFunc
	imuDone   sync.WaitGroup

	headingLock sync.Mutex
	heading     angle.Unwrapper
	lastReport  time.Time
	lastHeading float64
	rate        float64

	lastRange float64
}

var _ Interface = (*Hardware)(nil)

func New(cfg Config, logger golog.Logger) *Hardware {
	logger = logger.Named("hardware")
	return &Hardware{
		cfg:          cfg,
		logger:       logger,
		imu:          bno08x.New(cfg.IMUDevice, logger),
		soundsToPlay: sound.InitSound(logger),
	}
}

func (h *Hardware) Start(ctx context.Context) error {
	if _, err := host.Init(); err != nil {
		return errors.Wrap(err, "failed to initialise periph")
	}
	var err error
	h.highLimit, err = inputPin(h.cfg.HighLimitPin)
	if err != nil {
		return err
	}
	h.lowLimit, err = inputPin(h.cfg.LowLimitPin)
	if err != nil {
		return err
	}
	h.leftClamp, err = outputPin(h.cfg.LeftClampPin)
	if err != nil {
		return err
	}
	h.rightClamp, err = outputPin(h.cfg.RightClampPin)
	if err != nil {
		return err
	}

	pwm, err := pca9685.New(h.cfg.I2CDevice, h.cfg.PWMAddr)
	if err != nil {
		return err
	}
	if err := pwm.Configure(); err != nil {
		return errors.Wrap(err, "failed to configure PWM board")
	}
	h.pwm = pwm
	h.StopMotors()

	rf, err := ina219.NewI2C(h.cfg.I2CDevice, h.cfg.RangeFinderAddr)
	if err != nil {
		return err
	}
	h.rangeFinder = rf

	var imuCtx context.Context
	imuCtx, h.cancelIMU = context.WithCancel(ctx)
	h.imuDone.Add(1)
	go func() {
		defer h.imuDone.Done()
		h.imu.LoopReadingReports(imuCtx)
	}()
	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	report, err := h.imu.WaitForReportAfter(waitCtx, time.Time{})
	if err != nil {
		return errors.Wrap(err, "IMU did not report")
	}
	h.logger.Infow("hardware started", "imu", report.String())
	return nil
}

func inputPin(name string) (gpio.PinIO, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, errors.Errorf("no such GPIO %q", name)
	}
	if err := p.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return nil, errors.Wrapf(err, "failed to configure %s as input", name)
	}
	return p, nil
}

func outputPin(name string) (gpio.PinIO, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, errors.Errorf("no such GPIO %q", name)
	}
	if err := p.Out(gpio.Low); err != nil {
		return nil, errors.Wrapf(err, "failed to configure %s as output", name)
	}
	return p, nil
}

func (h *Hardware) setServo(port int, speed float64) {
	if h.pwm == nil {
		return
	}
	if err := h.pwm.SetServo(port, escPulse(speed)); err != nil {
		h.logger.Warnw("failed to set motor speed", "port", port, "error", err)
	}
}

func (h *Hardware) setWheels(w WheelSpeeds) {
	h.setServo(h.cfg.FrontLeftPort, w.FrontLeft)
	h.setServo(h.cfg.FrontRightPort, w.FrontRight)
	h.setServo(h.cfg.BackLeftPort, w.BackLeft)
	h.setServo(h.cfg.BackRightPort, w.BackRight)
}

func (h *Hardware) SetDriveOutput(forward, strafe, rotation, headingOffsetDegrees float64) {
	h.setWheels(Mix(forward, strafe, rotation, headingOffsetDegrees))
}

func (h *Hardware) SetRawWheelOutput(speed float64) {
	h.setWheels(WheelSpeeds{speed, speed, speed, speed})
}

func (h *Hardware) SetLiftOutput(speed float64) {
	for _, p := range h.cfg.LiftPorts {
		h.setServo(p, speed)
	}
}

func (h *Hardware) SetClamps(leftClosed, rightClosed bool) {
	for _, c := range []struct {
		pin    gpio.PinIO
		closed bool
	}{{h.leftClamp, leftClosed}, {h.rightClamp, rightClosed}} {
		if c.pin == nil {
			continue
		}
		if err := c.pin.Out(gpio.Level(c.closed)); err != nil {
			h.logger.Warnw("failed to set clamp", "pin", c.pin.Name(), "error", err)
		}
	}
}

func (h *Hardware) StopMotors() {
	h.SetRawWheelOutput(0)
	h.SetLiftOutput(0)
}

// updateHeading folds any new IMU report into the continuous heading and
// the turn rate.
func (h *Hardware) updateHeading() {
	report := h.imu.CurrentReport()
	h.headingLock.Lock()
	defer h.headingLock.Unlock()
	if !report.Time.After(h.lastReport) {
		return
	}
	heading := h.heading.Update(report.YawDegrees())
	if !h.lastReport.IsZero() {
		dt := report.Time.Sub(h.lastReport).Seconds()
		if dt > 0 {
			h.rate = (heading - h.lastHeading) / dt
		}
	}
	h.lastReport = report.Time
	h.lastHeading = heading
}

func (h *Hardware) CurrentHeadingDegrees() float64 {
	h.updateHeading()
	h.headingLock.Lock()
	defer h.headingLock.Unlock()
	return h.lastHeading
}

func (h *Hardware) CurrentRotationalRate() float64 {
	h.updateHeading()
	h.headingLock.Lock()
	defer h.headingLock.Unlock()
	return h.rate
}

func (h *Hardware) limitActive(p gpio.PinIO) bool {
	if p == nil {
		return false
	}
	return p.Read() == gpio.Level(!h.cfg.LimitActiveLow)
}

func (h *Hardware) IsHighLimitActive() bool {
	return h.limitActive(h.highLimit)
}

func (h *Hardware) IsLowLimitActive() bool {
	return h.limitActive(h.lowLimit)
}

// RawElevationSample returns the range finder voltage, or the last good
// reading if the read fails.
func (h *Hardware) RawElevationSample() float64 {
	if h.rangeFinder == nil {
		return h.lastRange
	}
	v, err := h.rangeFinder.ReadBusVoltage()
	if err != nil {
		h.logger.Warnw("failed to read range finder", "error", err)
		return h.lastRange
	}
	h.lastRange = v
	return v
}

func (h *Hardware) PlaySound(path string) {
	if path == "" {
		return
	}
	defer func() {
		recover() // Don't die if the channel is already closed.
	}()
	select {
	case h.soundsToPlay <- path:
		return
	case <-time.After(10 * time.Millisecond):
		h.logger.Debugw("timed out trying to play sound", "sound", path)
	}
}

func (h *Hardware) Shutdown() {
	h.StopMotors()
	h.SetClamps(false, false)
	if h.cancelIMU != nil {
		h.cancelIMU()
		h.imuDone.Wait()
	}
	close(h.soundsToPlay)
	var err error
	if h.pwm != nil {
		err = multierr.Append(err, h.pwm.Close())
	}
	if h.rangeFinder != nil {
		err = multierr.Append(err, h.rangeFinder.Close())
	}
	if err != nil {
		h.logger.Warnw("errors during shutdown", "error", err)
	}
}
