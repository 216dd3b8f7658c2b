// Package bno08x reads the BNO08x IMU in its UART-RVC mode: a 100Hz stream of
// 19-byte packets carrying yaw/pitch/roll in hundredths of a degree.
package bno08x

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.bug.st/serial"
)

const DefaultDevice = "/dev/ttyAMA0"

const ReportFrequency = 100
const ReportInterval = time.Second / ReportFrequency

const packetLen = 19

var header = []byte{0xaa, 0xaa}

var ErrNoReport = errors.New("no IMU report")

type IMUReport struct {
	Time   time.Time
	Index  uint8
	Yaw    int16
	Pitch  int16
	Roll   int16
	XAccel int16
	YAccel int16
	ZAccel int16
}

func (i IMUReport) String() string {
	return fmt.Sprintf("[%02x] Y:%7.2f P:%7.2f R:%7.2f X:%7.2f Y:%7.2f Z:%7.2f",
		i.Index, float64(i.Yaw)/100.0, float64(i.Pitch)/100.0, float64(i.Roll)/100.0,
		float64(i.XAccel)/100.0, float64(i.YAccel)/100.0, float64(i.ZAccel)/100.0)
}

func (i IMUReport) YawDegrees() float64 {
	return float64(i.Yaw) / 100.0
}

type Interface interface {
	CurrentReport() IMUReport
	WaitForReportAfter(ctx context.Context, t time.Time) (IMUReport, error)
}

type BNO08X struct {
	device string
	logger golog.Logger

	lock       sync.Mutex
	cond       *sync.Cond
	lastReport IMUReport
}

var _ Interface = (*BNO08X)(nil)

func New(device string, logger golog.Logger) *BNO08X {
	if device == "" {
		device = DefaultDevice
	}
	b := &BNO08X{
		device: device,
		logger: logger.Named("bno08x"),
	}
	b.cond = sync.NewCond(&b.lock)
	return b
}

func (b *BNO08X) CurrentReport() IMUReport {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.lastReport
}

// WaitForReportAfter blocks until a report newer than t arrives, the context
// is done, or the IMU has been silent for a second.
func (b *BNO08X) WaitForReportAfter(ctx context.Context, t time.Time) (IMUReport, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	start := time.Now()
	for !b.lastReport.Time.After(t) {
		if ctx.Err() != nil {
			return b.lastReport, ctx.Err()
		}
		if time.Since(start) > time.Second {
			return b.lastReport, errors.Wrap(ErrNoReport, "IMU silent for >1s")
		}
		b.cond.Wait()
	}
	return b.lastReport, nil
}

// LoopReadingReports reads from the serial port until ctx is done, reopening
// the port after errors.
func (b *BNO08X) LoopReadingReports(ctx context.Context) {
	defer b.cond.Broadcast()
	for ctx.Err() == nil {
		err := b.openAndLoop(ctx)
		if ctx.Err() != nil {
			return
		}
		b.logger.Warnw("read loop stopped; will retry", "error", err)
		time.Sleep(100 * time.Millisecond)
		b.cond.Broadcast()
	}
}

func (b *BNO08X) openAndLoop(ctx context.Context) error {
	s, err := serial.Open(b.device, &serial.Mode{BaudRate: 115200})
	if err != nil {
		return errors.Wrapf(err, "failed to open serial port %s", b.device)
	}
	defer s.Close()

	br := bufio.NewReader(s)
	for ctx.Err() == nil {
		if err := resync(br); err != nil {
			return err
		}
		b.logger.Debug("in sync with packet stream")
		if err := b.readPackets(ctx, br); err != nil && !errors.Is(err, errLostSync) {
			return err
		}
	}
	return ctx.Err()
}

var errLostSync = errors.New("lost sync")

func resync(br *bufio.Reader) error {
	for {
		buf, err := br.Peek(2)
		if err != nil {
			return errors.Wrap(err, "failed to read from serial")
		}
		if bytes.Equal(buf, header) {
			return nil
		}
		if _, err := br.Discard(1); err != nil {
			return errors.Wrap(err, "failed to read from serial")
		}
	}
}

func (b *BNO08X) readPackets(ctx context.Context, r io.Reader) error {
	buf := make([]byte, packetLen)
	for ctx.Err() == nil {
		if _, err := io.ReadFull(r, buf); err != nil {
			return errors.Wrap(err, "failed to read from serial")
		}
		report, err := ParsePacket(buf)
		if err != nil {
			b.logger.Warnw("bad packet", "error", err)
			return errLostSync
		}
		report.Time = time.Now()
		b.setReport(report)
	}
	return ctx.Err()
}

// ParsePacket decodes one packet, checking the header and checksum.
func ParsePacket(buf []byte) (IMUReport, error) {
	var report IMUReport
	if len(buf) != packetLen {
		return report, errors.Errorf("packet is %d bytes, expected %d", len(buf), packetLen)
	}
	if !bytes.Equal(buf[:2], header) {
		return report, errLostSync
	}
	var checksum uint8
	for _, b := range buf[2 : packetLen-1] {
		checksum += b
	}
	if buf[packetLen-1] != checksum {
		return report, errors.Errorf("bad checksum %x != %x", buf[packetLen-1], checksum)
	}
	report.Index = buf[2]
	report.Yaw = int16(binary.LittleEndian.Uint16(buf[3:5]))
	report.Pitch = int16(binary.LittleEndian.Uint16(buf[5:7]))
	report.Roll = int16(binary.LittleEndian.Uint16(buf[7:9]))
	report.XAccel = int16(binary.LittleEndian.Uint16(buf[9:11]))
	report.YAccel = int16(binary.LittleEndian.Uint16(buf[11:13]))
	report.ZAccel = int16(binary.LittleEndian.Uint16(buf[13:15]))
	return report, nil
}

func (b *BNO08X) setReport(report IMUReport) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.lastReport = report
	b.cond.Broadcast()
}
