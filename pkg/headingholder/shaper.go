// Package headingholder turns raw drive intents into bounded drive commands:
// deadzone, optional field-relative heading offset, turn-rate feedback,
// acceleration limiting and a final clamp.
package headingholder

import (
	"math"
	"time"

	"github.com/edaniels/golog"

	"github.com/tigerbot-team/stackbot/pkg/headingholder/angle"
)

// Intent is what the driver (or a routine) asks for, each axis in [-1, 1].
type Intent struct {
	Forward  float64
	Strafe   float64
	Rotation float64
}

type HeadingSample struct {
	ContinuousDegrees float64
	RatePerSecond     float64
}

type Output struct {
	Forward  float64
	Strafe   float64
	Rotation float64
	// HeadingOffset is the robot heading in [0, 360) when driving field
	// relative, otherwise 0.
	HeadingOffset float64
}

type Config struct {
	DeadzoneForward  float64
	DeadzoneStrafe   float64
	DeadzoneRotation float64

	// Largest change of each output axis in one tick.  Zero or less turns
	// the limit off for that axis.
	MaxDeltaForward  float64
	MaxDeltaStrafe   float64
	MaxDeltaRotation float64

	// MaxRotationRate (degrees/s) is the turn rate that full rotation
	// command is expected to produce.
	MaxRotationRate float64
	Gains           Gains
	MaxIntegral     float64
	MaxD            float64
	// Rate feedback is off while both the rotation intent and the
	// normalized measured rate are below NoiseFloor.
	NoiseFloor float64

	FieldRelative bool
}

func DefaultConfig() Config {
	return Config{
		DeadzoneForward:  0.15,
		DeadzoneStrafe:   0.15,
		DeadzoneRotation: 0.20,
		MaxDeltaForward:  0.1,
		MaxDeltaStrafe:   0.1,
		MaxDeltaRotation: 0.2,
		MaxRotationRate:  360,
		Gains: Gains{
			Kp: 0.3,
			Ki: 0.1,
			Kd: 0,
		},
		MaxIntegral: 0.3,
		MaxD:        100,
		NoiseFloor:  0.02,
	}
}

type VelocityShaper struct {
	cfg    Config
	period time.Duration
	logger golog.Logger

	rate          RateController
	fieldRelative bool
	last          Output
}

func NewVelocityShaper(cfg Config, period time.Duration, logger golog.Logger) *VelocityShaper {
	return &VelocityShaper{
		cfg:    cfg,
		period: period,
		logger: logger.Named("shaper"),
		rate: RateController{
			Gains:       cfg.Gains,
			MaxIntegral: cfg.MaxIntegral,
			MaxD:        cfg.MaxD,
		},
		fieldRelative: cfg.FieldRelative,
	}
}

// Shape produces this tick's drive command.  Call it exactly once per tick.
func (s *VelocityShaper) Shape(intent Intent, sample HeadingSample) Output {
	forward := Deadzone(intent.Forward, s.cfg.DeadzoneForward)
	strafe := Deadzone(intent.Strafe, s.cfg.DeadzoneStrafe)
	rotation := Deadzone(intent.Rotation, s.cfg.DeadzoneRotation)

	var offset float64
	if s.fieldRelative {
		offset = angle.ZeroTo360(sample.ContinuousDegrees)
	}

	rotation = s.correctRotation(intent.Rotation, rotation, sample.RatePerSecond)

	out := Output{
		Forward:       Clamp(Slew(s.last.Forward, forward, s.cfg.MaxDeltaForward)),
		Strafe:        Clamp(Slew(s.last.Strafe, strafe, s.cfg.MaxDeltaStrafe)),
		Rotation:      Clamp(Slew(s.last.Rotation, rotation, s.cfg.MaxDeltaRotation)),
		HeadingOffset: offset,
	}
	s.last = out
	return out
}

func (s *VelocityShaper) correctRotation(raw, target, rate float64) float64 {
	if s.cfg.MaxRotationRate <= 0 {
		return target
	}
	if math.IsNaN(rate) {
		rate = 0
	}
	normalizedRate := rate / s.cfg.MaxRotationRate
	if math.IsNaN(raw) {
		raw = 0
	}
	if math.Abs(raw) < s.cfg.NoiseFloor && math.Abs(normalizedRate) < s.cfg.NoiseFloor {
		s.rate.Reset()
		return target
	}
	correction := s.rate.Update(target, normalizedRate, s.period)
	return target - correction
}

func (s *VelocityShaper) FieldRelative() bool {
	return s.fieldRelative
}

func (s *VelocityShaper) SetFieldRelative(on bool) {
	if on != s.fieldRelative {
		s.logger.Infow("field relative driving", "enabled", on)
	}
	s.fieldRelative = on
}

func (s *VelocityShaper) ToggleFieldRelative() bool {
	s.SetFieldRelative(!s.fieldRelative)
	return s.fieldRelative
}

// Reset forgets the previous output and the rate controller state, so the
// next Shape ramps up from zero.
func (s *VelocityShaper) Reset() {
	s.last = Output{}
	s.rate.Reset()
}

// Tune replaces the rate feedback gains.
func (s *VelocityShaper) Tune(g Gains) {
	if g != s.rate.Gains {
		s.logger.Infow("rate gains", "kp", g.Kp, "ki", g.Ki, "kd", g.Kd)
	}
	s.rate.Gains = g
}

func (s *VelocityShaper) Gains() Gains {
	return s.rate.Gains
}

func (s *VelocityShaper) Last() Output {
	return s.last
}

// Deadzone returns exactly 0 for inputs smaller than threshold.
func Deadzone(value, threshold float64) float64 {
	if math.IsNaN(value) || math.Abs(value) < threshold {
		return 0
	}
	return value
}

// Slew moves from prev towards target by at most maxDelta.
func Slew(prev, target, maxDelta float64) float64 {
	if maxDelta <= 0 {
		return target
	}
	if target > prev+maxDelta {
		return prev + maxDelta
	}
	if target < prev-maxDelta {
		return prev - maxDelta
	}
	return target
}

func Clamp(value float64) float64 {
	if math.IsNaN(value) {
		return 0
	}
	return math.Max(-1, math.Min(1, value))
}
