// Package ina219 reads the INA219 monitor.  On this robot its bus-voltage
// input measures the analog range finder under the lift.
package ina219

import (
	"github.com/pkg/errors"
	"golang.org/x/exp/io/i2c"
)

const (
	Addr1 = 0x41
	Addr2 = 0x44

	RegConfig = 0
	RegBusV   = 2

	BusVoltageLSB = 0.004
)

type Interface interface {
	ReadBusVoltage() (float64, error)
	Close() error
}

type port interface {
	// ReadReg reads len(buf) bytes from the device.
	ReadReg(reg byte, buf []byte) error
	WriteReg(reg byte, buf []byte) (err error)
	Close() error
}

type INA219 struct {
	dev port
}

func NewI2C(deviceFile string, addr int) (*INA219, error) {
	dev, err := i2c.Open(&i2c.Devfs{Dev: deviceFile}, addr)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open INA219 at %s:%#x", deviceFile, addr)
	}
	return &INA219{dev: dev}, nil
}

func (m *INA219) ReadBusVoltage() (float64, error) {
	raw, err := m.Read16(RegBusV)
	if err != nil {
		return 0, err
	}
	// Bottom three bits are status flags.
	return float64(raw>>3) * BusVoltageLSB, nil
}

func (m *INA219) Read16(reg byte) (uint16, error) {
	var buf [2]byte
	if err := m.dev.ReadReg(reg, buf[:]); err != nil {
		return 0, errors.Wrapf(err, "failed to read INA219 register %d", reg)
	}
	return uint16(buf[0])<<8 | uint16(buf[1]), nil
}

func (m *INA219) Close() error {
	return m.dev.Close()
}
