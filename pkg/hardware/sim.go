package hardware

import (
	"context"
	"math"
	"time"

	"github.com/edaniels/golog"
)

type SimConfig struct {
	// Turn rate at full rotation command, degrees/s.
	MaxRotationRate float64
	// Lift travel at full speed, inches/s.
	LiftInchesPerSecond float64
	// The limit switches trip at these heights.
	BottomHeight float64
	TopHeight    float64
	StartHeight  float64
	// Inverse of the range finder conversion.
	InchesPerVolt float64
	Offset        float64
}

func DefaultSimConfig() SimConfig {
	return SimConfig{
		MaxRotationRate:     360,
		LiftInchesPerSecond: 30,
		BottomHeight:        12,
		TopHeight:           76,
		StartHeight:         30,
		InchesPerVolt:       512.0 / 5.0,
		Offset:              8.5,
	}
}

// DriveCommand is the last SetDriveOutput call.
type DriveCommand struct {
	Forward, Strafe, Rotation, HeadingOffset float64
}

// Sim is a simple plant: commands are integrated over one period each time
// Advance is called.  It is not safe for concurrent use.
type Sim struct {
	cfg    SimConfig
	period time.Duration
	logger golog.Logger

	Drive      DriveCommand
	RawWheel   float64
	Lift       float64
	LeftClamp  bool
	RightClamp bool
	Sounds     []string

	heading float64
	rate    float64
	height  float64
}

var _ Interface = (*Sim)(nil)

func NewSim(cfg SimConfig, period time.Duration, logger golog.Logger) *Sim {
	return &Sim{
		cfg:    cfg,
		period: period,
		logger: logger.Named("sim"),
		height: cfg.StartHeight,
	}
}

// Advance moves the simulated robot on by one period.
func (s *Sim) Advance() {
	dt := s.period.Seconds()
	s.rate = s.Drive.Rotation * s.cfg.MaxRotationRate
	s.heading += s.rate * dt
	s.height += s.Lift * s.cfg.LiftInchesPerSecond * dt
	s.height = math.Max(s.cfg.BottomHeight, math.Min(s.cfg.TopHeight, s.height))
}

func (s *Sim) Height() float64 {
	return s.height
}

func (s *Sim) SetHeight(h float64) {
	s.height = h
}

func (s *Sim) SetHeading(degrees float64) {
	s.heading = degrees
}

func (s *Sim) Start(ctx context.Context) error {
	return nil
}

func (s *Sim) SetDriveOutput(forward, strafe, rotation, headingOffsetDegrees float64) {
	s.Drive = DriveCommand{forward, strafe, rotation, headingOffsetDegrees}
	s.RawWheel = 0
}

func (s *Sim) SetRawWheelOutput(speed float64) {
	s.Drive = DriveCommand{}
	s.RawWheel = speed
}

func (s *Sim) SetLiftOutput(speed float64) {
	s.Lift = speed
}

func (s *Sim) SetClamps(leftClosed, rightClosed bool) {
	if leftClosed != s.LeftClamp || rightClosed != s.RightClamp {
		s.logger.Debugw("clamps", "left", leftClosed, "right", rightClosed)
	}
	s.LeftClamp, s.RightClamp = leftClosed, rightClosed
}

func (s *Sim) StopMotors() {
	s.Drive = DriveCommand{}
	s.RawWheel = 0
	s.Lift = 0
}

func (s *Sim) CurrentHeadingDegrees() float64 {
	return s.heading
}

func (s *Sim) CurrentRotationalRate() float64 {
	return s.rate
}

func (s *Sim) IsHighLimitActive() bool {
	return s.height >= s.cfg.TopHeight
}

func (s *Sim) IsLowLimitActive() bool {
	return s.height <= s.cfg.BottomHeight
}

func (s *Sim) RawElevationSample() float64 {
	return (s.height - s.cfg.Offset) / s.cfg.InchesPerVolt
}

func (s *Sim) PlaySound(path string) {
	s.Sounds = append(s.Sounds, path)
}

func (s *Sim) Shutdown() {
	s.StopMotors()
}
