// Package operator turns gamepad axes into drive and lift intents.
package operator

import (
	"math"
	"sync"

	"github.com/tigerbot-team/stackbot/pkg/headingholder"
	"github.com/tigerbot-team/stackbot/pkg/joystick"
)

type Config struct {
	// Expo curves the sticks so that small deflections give fine control.
	// 1 is linear.
	Expo    float64
	YawExpo float64
}

func DefaultConfig() Config {
	return Config{
		Expo:    1.6,
		YawExpo: 2.5,
	}
}

// Sticks holds the latest axis values.  OnEvent is called from the joystick
// goroutine and the intents are read by the control loop, so everything is
// under a lock.
type Sticks struct {
	cfg Config

	lock                              sync.Mutex
	leftX, leftY, rightX              int16
	leftTrigger, rightTrigger         int16
	leftTriggerSeen, rightTriggerSeen bool
}

func NewSticks(cfg Config) *Sticks {
	return &Sticks{cfg: cfg}
}

// OnEvent records an axis event.  It reports whether the event was used.
func (s *Sticks) OnEvent(event *joystick.Event) bool {
	if event.Type != joystick.EventTypeAxis {
		return false
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	switch event.Number {
	case joystick.AxisLStickX:
		s.leftX = event.Value
	case joystick.AxisLStickY:
		s.leftY = event.Value
	case joystick.AxisRStickX:
		s.rightX = event.Value
	case joystick.AxisL2:
		s.leftTrigger = event.Value
		s.leftTriggerSeen = true
	case joystick.AxisR2:
		s.rightTrigger = event.Value
		s.rightTriggerSeen = true
	default:
		return false
	}
	return true
}

// Reset centres the sticks and releases the triggers, e.g. after the
// joystick reconnects.
func (s *Sticks) Reset() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.leftX, s.leftY, s.rightX = 0, 0, 0
	s.leftTriggerSeen, s.rightTriggerSeen = false, false
}

// DriveIntent: left stick translates, right stick X turns.  Stick up is
// forward and stick left turns anti-clockwise.
func (s *Sticks) DriveIntent() headingholder.Intent {
	s.lock.Lock()
	defer s.lock.Unlock()
	return headingholder.Intent{
		Forward:  ApplyExpo(-joystick.Normalize(s.leftY), s.cfg.Expo),
		Strafe:   ApplyExpo(joystick.Normalize(s.leftX), s.cfg.Expo),
		Rotation: ApplyExpo(-joystick.Normalize(s.rightX), s.cfg.YawExpo),
	}
}

// LiftIntent is the right trigger minus the left trigger.
func (s *Sticks) LiftIntent() float64 {
	s.lock.Lock()
	defer s.lock.Unlock()
	return trigger(s.rightTrigger, s.rightTriggerSeen) - trigger(s.leftTrigger, s.leftTriggerSeen)
}

// trigger maps a trigger axis to [0, 1].  Until the first event the axis
// reads 0, which would be half pressed, so an unseen trigger is released.
func trigger(value int16, seen bool) float64 {
	if !seen {
		return 0
	}
	return (joystick.Normalize(value) + 1) / 2
}

func ApplyExpo(value float64, expo float64) float64 {
	if expo <= 0 {
		expo = 1
	}
	absVal := math.Abs(value)
	absExpo := math.Pow(absVal, expo)
	return math.Copysign(absExpo, value)
}
