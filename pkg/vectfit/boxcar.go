package vectfit

import(
	"fmt"

	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/stat"

	"github.com/abworrall/optextr/pkg/emath"
)

// Boxcar fits with a running median of data/mult, and evaluates with a
// running mean over the good pixels, interpolating linearly across the
// bad ones.
type Boxcar struct {
	HalfWidth int
}

type BoxcarCoeffs struct {
	Mean float64
}

func (BoxcarCoeffs)isCoeffs() {}
func (c BoxcarCoeffs)String() string { return fmt.Sprintf("boxcar{mean=%.4g}", c.Mean) }

func (b Boxcar)Name() string { return fmt.Sprintf("boxcar(%d)", b.HalfWidth) }

func (b Boxcar)check(x, data, variance, mult []float64) error {
	if err := checkInputs(x, data, variance, mult); err != nil {
		return err
	}
	if b.HalfWidth < 1 {
		return &ParameterError{Param: "halfwidth", Reason: "must be >= 1"}
	}
	return nil
}

func (b Boxcar)Fit(x, data, variance, mult []float64) ([]float64, Coeffs, error) {
	if err := b.check(x, data, variance, mult); err != nil {
		return nil, nil, err
	}
	r := ratios(data, mult)
	return emath.RunningMedian(r, b.HalfWidth), BoxcarCoeffs{Mean: stat.Mean(r, nil)}, nil
}

func (b Boxcar)Eval(x, data, variance, mult []float64, c Coeffs) ([]float64, error) {
	if err := b.check(x, data, variance, mult); err != nil {
		return nil, err
	}
	if _, ok := c.(BoxcarCoeffs); !ok {
		return nil, coeffsMismatch(b, c)
	}

	goodX, goodR, goodIdx := []float64{}, []float64{}, []int{}
	for i := range x {
		if m := multAt(mult, i); m != 0 {
			goodX = append(goodX, x[i])
			goodR = append(goodR, data[i]/m)
			goodIdx = append(goodIdx, i)
		}
	}

	est := make([]float64, len(x))
	switch len(goodIdx) {
	case 0:
		return est, nil
	case 1:
		for i := range est {
			est[i] = goodR[0]
		}
		return est, nil
	}

	for j := 1; j < len(goodX); j++ {
		if goodX[j] <= goodX[j-1] {
			return nil, &ParameterError{Param: "x", Reason: "must be strictly increasing"}
		}
	}

	smooth := emath.MovingAverage(goodR, b.HalfWidth)
	var pl interp.PiecewiseLinear
	if err := pl.Fit(goodX, smooth); err != nil {
		return nil, &ParameterError{Param: "x", Reason: err.Error()}
	}
	for i := range x {
		est[i] = pl.Predict(x[i])
	}
	for j, i := range goodIdx {
		est[i] = smooth[j]
	}
	return est, nil
}
