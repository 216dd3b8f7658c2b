// Package elevation keeps the lift inside its travel envelope: it slows the
// lift near either end of travel and refuses to push into an active limit
// switch, whatever speed it is asked for.
package elevation

import (
	"math"

	"github.com/edaniels/golog"
)

type Config struct {
	// Height = raw sensor volts * InchesPerVolt + Offset.
	InchesPerVolt float64
	Offset        float64
	FilterSize    int

	// Below MinHeight moving down, or above TopHeight moving up, speed is
	// multiplied by DecelFactor.
	MinHeight   float64
	TopHeight   float64
	DecelFactor float64
}

func DefaultConfig() Config {
	return Config{
		InchesPerVolt: 512.0 / 5.0,
		Offset:        8.5,
		FilterSize:    DefaultFilterSize,
		MinHeight:     15.5,
		TopHeight:     73,
		DecelFactor:   0.3,
	}
}

type Sensors interface {
	IsHighLimitActive() bool
	IsLowLimitActive() bool
	RawElevationSample() float64
}

type Sink interface {
	SetLiftOutput(speed float64)
}

type SafetyController struct {
	cfg     Config
	sensors Sensors
	sink    Sink
	filter  *TrimmedMeanFilter
	logger  golog.Logger

	low, high  bool
	lastOutput float64
	stopped    bool
}

func NewSafetyController(cfg Config, sensors Sensors, sink Sink, logger golog.Logger) *SafetyController {
	return &SafetyController{
		cfg:     cfg,
		sensors: sensors,
		sink:    sink,
		filter:  NewTrimmedMeanFilter(cfg.FilterSize),
		logger:  logger.Named("elevation"),
	}
}

func (c *SafetyController) Config() Config {
	return c.cfg
}

// Sample reads the sensors once: the range finder into the filter, and the
// limit switches.
func (c *SafetyController) Sample() float64 {
	raw := c.sensors.RawElevationSample()
	h, updated := c.filter.Add(raw*c.cfg.InchesPerVolt + c.cfg.Offset)
	if updated {
		c.logger.Debugw("height", "inches", h)
	}
	c.low = c.sensors.IsLowLimitActive()
	c.high = c.sensors.IsHighLimitActive()
	return h
}

// Drive samples the sensors, applies the envelope to speed and sends the
// result to the lift motor.  It returns what was sent.
func (c *SafetyController) Drive(speed float64) float64 {
	height := c.Sample()
	out := Envelope(c.cfg, speed, height, c.low, c.high)
	stopped := out == 0 && speed != 0 && (c.low || c.high)
	if stopped && !c.stopped {
		c.logger.Infow("lift held at limit switch", "requested", speed, "low", c.low, "high", c.high)
	}
	c.stopped = stopped
	c.lastOutput = out
	c.sink.SetLiftOutput(out)
	return out
}

// Stop sends zero.  Zero never needs the envelope.
func (c *SafetyController) Stop() {
	c.lastOutput = 0
	c.sink.SetLiftOutput(0)
}

func (c *SafetyController) Height() float64 {
	return c.filter.Value()
}

// HasHeight is false until the first sample.
func (c *SafetyController) HasHeight() bool {
	return c.filter.Seeded()
}

func (c *SafetyController) AtLowLimit() bool {
	return c.low
}

func (c *SafetyController) AtHighLimit() bool {
	return c.high
}

func (c *SafetyController) LastOutput() float64 {
	return c.lastOutput
}

// Envelope is the pure part of Drive.  The hard stop is applied last so it
// always wins over the slow zones.
func Envelope(cfg Config, speed, height float64, lowActive, highActive bool) float64 {
	if math.IsNaN(speed) {
		return 0
	}
	speed = math.Max(-1, math.Min(1, speed))
	if height <= cfg.MinHeight && speed < 0 {
		speed *= cfg.DecelFactor
	} else if height >= cfg.TopHeight && speed > 0 {
		speed *= cfg.DecelFactor
	}
	if highActive && speed > 0 {
		return 0
	}
	if lowActive && speed < 0 {
		return 0
	}
	return speed
}
