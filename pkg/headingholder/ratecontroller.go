package headingholder

import (
	"math"
	"time"
)

type Gains struct {
	Kp float64
	Ki float64
	Kd float64
}

// RateController compares the measured turn rate with the commanded one and
// returns a correction to subtract from the rotation command.
type RateController struct {
	Gains       Gains
	MaxIntegral float64
	MaxD        float64

	lastError float64
	iError    float64
	primed    bool
}

// Update runs one PID step.  Both target and normalizedRate are fractions of
// the maximum rotation rate.
func (r *RateController) Update(target, normalizedRate float64, dt time.Duration) float64 {
	secs := dt.Seconds()
	if secs <= 0 {
		secs = 1
	}
	rateError := normalizedRate - target

	var dError float64
	if r.primed {
		dError = (rateError - r.lastError) / secs
	}
	if r.MaxD > 0 {
		dError = math.Max(-r.MaxD, math.Min(r.MaxD, dError))
	}
	r.iError += rateError * secs
	if r.MaxIntegral > 0 {
		r.iError = math.Max(-r.MaxIntegral, math.Min(r.MaxIntegral, r.iError))
	}
	r.lastError = rateError
	r.primed = true

	return r.Gains.Kp*rateError + r.Gains.Ki*r.iError + r.Gains.Kd*dError
}

func (r *RateController) Reset() {
	r.lastError = 0
	r.iError = 0
	r.primed = false
}

func (r *RateController) Integral() float64 {
	return r.iError
}
