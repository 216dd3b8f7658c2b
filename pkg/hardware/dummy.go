package hardware

import (
	"context"

	"github.com/edaniels/golog"
)

// Dummy logs every call and reports a robot sitting still at the bottom of
// its lift travel.
type Dummy struct {
	logger golog.Logger
}

func NewDummy(logger golog.Logger) *Dummy {
	return &Dummy{logger: logger.Named("dummy")}
}

func (d *Dummy) Start(ctx context.Context) error {
	d.logger.Info("Start")
	return nil
}

func (d *Dummy) SetDriveOutput(forward, strafe, rotation, headingOffsetDegrees float64) {
	d.logger.Debugw("SetDriveOutput", "forward", forward, "strafe", strafe, "rotation", rotation, "offset", headingOffsetDegrees)
}

func (d *Dummy) SetLiftOutput(speed float64) {
	d.logger.Debugw("SetLiftOutput", "speed", speed)
}

func (d *Dummy) SetRawWheelOutput(speed float64) {
	d.logger.Debugw("SetRawWheelOutput", "speed", speed)
}

func (d *Dummy) SetClamps(leftClosed, rightClosed bool) {
	d.logger.Infow("SetClamps", "left", leftClosed, "right", rightClosed)
}

func (d *Dummy) StopMotors() {
	d.logger.Info("StopMotors")
}

func (d *Dummy) CurrentHeadingDegrees() float64 {
	return 0
}

func (d *Dummy) CurrentRotationalRate() float64 {
	return 0
}

func (d *Dummy) IsHighLimitActive() bool {
	return false
}

func (d *Dummy) IsLowLimitActive() bool {
	return true
}

func (d *Dummy) RawElevationSample() float64 {
	return 0
}

func (d *Dummy) PlaySound(path string) {
	d.logger.Infow("PlaySound", "path", path)
}

func (d *Dummy) Shutdown() {
	d.logger.Info("Shutdown")
}

var _ Interface = (*Dummy)(nil)
