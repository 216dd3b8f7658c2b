package elevation

import (
	"gonum.org/v1/gonum/floats"
)

const DefaultFilterSize = 10

// TrimmedMeanFilter smooths a noisy range finder.  Samples collect in a
// fixed-size buffer; when it fills, the value becomes the mean of the buffer
// with one minimum and one maximum thrown away, and the buffer starts over.
// Between updates the previous value is held.
type TrimmedMeanFilter struct {
	buf    []float64
	n      int
	value  float64
	seeded bool
}

func NewTrimmedMeanFilter(size int) *TrimmedMeanFilter {
	if size < 3 {
		size = 3
	}
	return &TrimmedMeanFilter{buf: make([]float64, size)}
}

// Add feeds one sample and reports whether the filtered value was recomputed.
func (f *TrimmedMeanFilter) Add(sample float64) (float64, bool) {
	if !f.seeded {
		f.value = sample
		f.seeded = true
	}
	f.buf[f.n] = sample
	f.n++
	if f.n < len(f.buf) {
		return f.value, false
	}
	f.value = TrimmedMean(f.buf)
	f.n = 0
	return f.value, true
}

func (f *TrimmedMeanFilter) Value() float64 {
	return f.value
}

func (f *TrimmedMeanFilter) Seeded() bool {
	return f.seeded
}

func (f *TrimmedMeanFilter) Size() int {
	return len(f.buf)
}

// TrimmedMean averages xs after discarding one smallest and one largest
// element.  xs must hold at least three values.
func TrimmedMean(xs []float64) float64 {
	lo := floats.MinIdx(xs)
	hi := floats.MaxIdx(xs)
	if lo == hi {
		// All equal.
		return xs[0]
	}
	sum := floats.Sum(xs) - xs[lo] - xs[hi]
	return sum / float64(len(xs)-2)
}
