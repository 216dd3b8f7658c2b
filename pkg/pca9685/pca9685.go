// Package pca9685 drives the 16-channel PCA9685 PWM board, which generates
// the servo-style pulses for the motor controllers.
package pca9685

import (
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"golang.org/x/exp/io/i2c"
)

const (
	DefaultAddr = 0x40

	RegMode1 = 0x00
	RegMode2 = 0x01

	// Each PWM output has two 16-bit (low byte first) registers.
	// First register is the on time, second is the off time.
	RegLEDBase = 0x06

	RegPreScale = 0xfe // Pre-scaler for PWM frequency.

	NumPorts = 16

	PWMPeriod = 20 * time.Millisecond

	ServoMinPulseDuration = 1000 * time.Microsecond
	ServoMaxPulseDuration = 2000 * time.Microsecond

	PWMMax = 4095

	ServoMinPWM = float64(PWMMax * ServoMinPulseDuration / PWMPeriod)
	ServoMaxPWM = float64(PWMMax * ServoMaxPulseDuration / PWMPeriod)
)

var ErrBadPort = errors.New("port out of range")

type Interface interface {
	Configure() error
	// SetServo sets a 1-2ms pulse; value is in [0, 1] with 0.5 centred.
	SetServo(port int, value float64) error
	SetPWM(port int, value float64) error
	Close() error
}

type register interface {
	WriteReg(reg byte, buf []byte) error
	Close() error
}

type PCA9685 struct {
	dev register
}

func New(deviceFile string, addr int) (*PCA9685, error) {
	if addr == 0 {
		addr = DefaultAddr
	}
	dev, err := i2c.Open(&i2c.Devfs{Dev: deviceFile}, addr)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open PCA9685 at %s:%#x", deviceFile, addr)
	}
	return &PCA9685{dev: dev}, nil
}

func (p *PCA9685) Configure() error {
	steps := []struct {
		reg byte
		val byte
	}{
		{RegMode1, 0x11},    // Sleep so the pre-scaler can be written.
		{RegPreScale, 0x79}, // 50Hz.
		{RegMode1, 0x01},    // Reset.
	}
	for _, s := range steps {
		if err := p.dev.WriteReg(s.reg, []byte{s.val}); err != nil {
			return errors.Wrapf(err, "failed to write register %#x", s.reg)
		}
	}
	// Required delay after reset.
	time.Sleep(1 * time.Millisecond)
	return errors.Wrap(p.dev.WriteReg(RegMode1, []byte{0x81}), "failed to enable PCA9685")
}

func (p *PCA9685) SetServo(port int, value float64) error {
	return p.write(port, uint16(ServoMinPWM+clamp01(value)*(ServoMaxPWM-ServoMinPWM)))
}

func (p *PCA9685) SetPWM(port int, value float64) error {
	return p.write(port, uint16(PWMMax*clamp01(value)))
}

func (p *PCA9685) write(port int, pwmValue uint16) error {
	if port < 0 || port >= NumPorts {
		return errors.Wrapf(ErrBadPort, "port %d", port)
	}
	addr := RegLEDBase + port*4
	return p.dev.WriteReg(byte(addr), []byte{0, 0, byte(pwmValue & 0xff), byte(pwmValue >> 8)})
}

func (p *PCA9685) Close() error {
	return p.dev.Close()
}

func clamp01(v float64) float64 {
	if v < 0 || v != v {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Dummy logs instead of driving a board.
func Dummy(logger golog.Logger) Interface {
	return &dummyPWM{logger: logger.Named("pca9685")}
}

type dummyPWM struct {
	logger golog.Logger
}

func (d *dummyPWM) Configure() error {
	d.logger.Debug("Configure")
	return nil
}

func (d *dummyPWM) SetServo(port int, value float64) error {
	d.logger.Debugw("SetServo", "port", port, "value", value)
	return nil
}

func (d *dummyPWM) SetPWM(port int, value float64) error {
	d.logger.Debugw("SetPWM", "port", port, "value", value)
	return nil
}

func (d *dummyPWM) Close() error {
	return nil
}
