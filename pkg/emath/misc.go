package emath

import(
	"math"
	"sort"

	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/stat"
)

// Some functions that only operate on basic types, that are useful

// https://www.sjbrown.co.uk/posts/gamma-correct-rendering/ - "linear RGB to sRGB"
func GammaExpand_F64(f float64) float64 {
	if f <= 0.0031308 {
		return 12.92 * f
	}
	return 1.055 * math.Pow(f, 1.0/2.4) - 0.055
}

// Median of v; v is not modified. Zero for an empty slice.
func Median(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	s := append([]float64(nil), v...)
	sort.Float64s(s)
	if len(s)%2 == 1 {
		return s[len(s)/2]
	}
	return (s[len(s)/2-1] + s[len(s)/2]) / 2
}

// RunningMedian is the median over a window of 2*hw+1 values centred on
// each element. The window shrinks at the ends.
func RunningMedian(v []float64, hw int) []float64 {
	out := make([]float64, len(v))
	for i := range v {
		lo, hi := window(i, hw, len(v))
		out[i] = Median(v[lo:hi])
	}
	return out
}

// MovingAverage is the mean over a window of 2*hw+1 values centred on
// each element. The window shrinks at the ends.
func MovingAverage(v []float64, hw int) []float64 {
	out := make([]float64, len(v))
	for i := range v {
		lo, hi := window(i, hw, len(v))
		out[i] = stat.Mean(v[lo:hi], nil)
	}
	return out
}

func window(i, hw, n int) (int, int) {
	lo, hi := i-hw, i+hw+1
	if lo < 0 { lo = 0 }
	if hi > n { hi = n }
	return lo, hi
}

// FillGaps replaces the values where good is false by linear
// interpolation between the good neighbours, holding the end values flat.
// It returns a new slice. With no good values, it returns zeros.
func FillGaps(v []float64, good []bool) []float64 {
	xs, ys := []float64{}, []float64{}
	for i := range v {
		if good[i] {
			xs = append(xs, float64(i))
			ys = append(ys, v[i])
		}
	}

	out := make([]float64, len(v))
	switch len(xs) {
	case 0:
		return out
	case 1:
		for i := range out {
			out[i] = ys[0]
		}
		return out
	}

	var pl interp.PiecewiseLinear
	if err := pl.Fit(xs, ys); err != nil {
		// xs is increasing by construction; hold the median if it ever isn't
		for i := range out {
			out[i] = Median(ys)
		}
		return out
	}
	for i := range v {
		if good[i] {
			out[i] = v[i]
		} else {
			out[i] = pl.Predict(float64(i))
		}
	}
	return out
}
