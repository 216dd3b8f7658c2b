package angle

import "math"

// PlusMinus180 is an angle in degrees, stored as a value in range (-180, 180].
// All operations clamp their output into range.
type PlusMinus180 struct {
	float64
}

func (a PlusMinus180) Add(b PlusMinus180) PlusMinus180 {
	return FromFloat(a.float64 + b.float64)
}

func (a PlusMinus180) Sub(b PlusMinus180) PlusMinus180 {
	return FromFloat(a.float64 - b.float64)
}

func (a PlusMinus180) AddFloat(f float64) PlusMinus180 {
	return FromFloat(a.float64 + f)
}

func (a PlusMinus180) SubFloat(f float64) PlusMinus180 {
	return FromFloat(a.float64 - f)
}

// Float returns the angle in degrees, range (-180, 180].
func (a PlusMinus180) Float() float64 {
	return a.float64
}

// FromFloat converts a float of any magnitude to a PlusMinus180 by calculating
// f mod 360 and shifting into range.
func FromFloat(f float64) PlusMinus180 {
	d := math.Mod(f, 360)
	if d <= -180 {
		d += 360
	} else if d > 180 {
		d -= 360
	}
	return PlusMinus180{d}
}

// ZeroTo360 reduces a continuous heading of any magnitude into [0, 360).
func ZeroTo360(f float64) float64 {
	d := math.Mod(f, 360)
	if d < 0 {
		d += 360
	}
	if d >= 360 {
		// -tiny + 360 rounds up to 360.
		d = 0
	}
	return d
}

// Unwrapper turns a stream of (-180, 180] readings into a continuous heading
// by accumulating the shortest delta between consecutive readings.
type Unwrapper struct {
	started    bool
	last       PlusMinus180
	continuous float64
}

func (u *Unwrapper) Update(reading float64) float64 {
	r := FromFloat(reading)
	if !u.started {
		u.started = true
		u.last = r
		u.continuous = r.Float()
		return u.continuous
	}
	u.continuous += r.Sub(u.last).Float()
	u.last = r
	return u.continuous
}

func (u *Unwrapper) Continuous() float64 {
	return u.continuous
}
