package tasks

import (
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/tigerbot-team/stackbot/pkg/scheduler"
)

type ClampAction string

const (
	ClampClose  ClampAction = "close"
	ClampOpen   ClampAction = "open"
	ClampToggle ClampAction = "toggle"
)

type ClampSide string

const (
	ClampBoth  ClampSide = "both"
	ClampLeft  ClampSide = "left"
	ClampRight ClampSide = "right"
)

type ClampParams struct {
	Action ClampAction `mapstructure:"action"`
	Side   ClampSide   `mapstructure:"side"`
	// Settle is how long to hold the clamps resource while the cylinders
	// move.  Defaults to the configured settle time.
	Settle time.Duration `mapstructure:"settle"`
}

func (p ClampParams) Validate() error {
	switch p.Action {
	case ClampClose, ClampOpen, ClampToggle:
	default:
		return errors.Errorf("unknown clamp action %q", p.Action)
	}
	switch p.Side {
	case ClampBoth, ClampLeft, ClampRight, "":
	default:
		return errors.Errorf("unknown clamp side %q", p.Side)
	}
	return nil
}

func (p ClampParams) apply(c ClampState) ClampState {
	set := func(v bool) bool {
		switch p.Action {
		case ClampClose:
			return true
		case ClampOpen:
			return false
		default:
			return !v
		}
	}
	if p.Side != ClampRight {
		c.Left = set(c.Left)
	}
	if p.Side != ClampLeft {
		c.Right = set(c.Right)
	}
	return c
}

// SetClamps changes the clamps as soon as it starts, then waits for them to
// settle.
func SetClamps(r *Robot, p ClampParams) *scheduler.Task {
	if p.Side == "" {
		p.Side = ClampBoth
	}
	settle := p.Settle
	if settle == 0 {
		settle = r.Config.ClampSettle
	}
	return scheduler.NewTask(fmt.Sprintf("%s-clamps(%s)", p.Action, p.Side), scheduler.Hooks{
		Initialize: func(t *scheduler.Task) error {
			if err := p.Validate(); err != nil {
				return err
			}
			r.setClamps(p.apply(r.Clamps))
			return nil
		},
		Execute: func(t *scheduler.Task) error {
			r.Actuators.SetClamps(r.Clamps.Left, r.Clamps.Right)
			return nil
		},
		IsFinished: func(t *scheduler.Task) bool {
			return t.Elapsed() >= settle
		},
	}, Clamps)
}

func CloseClamps(r *Robot) *scheduler.Task {
	return SetClamps(r, ClampParams{Action: ClampClose})
}

func OpenClamps(r *Robot) *scheduler.Task {
	return SetClamps(r, ClampParams{Action: ClampOpen})
}

func ToggleClamps(r *Robot, side ClampSide) *scheduler.Task {
	return SetClamps(r, ClampParams{Action: ClampToggle, Side: side})
}
