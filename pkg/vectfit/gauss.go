package vectfit

import(
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"

	"github.com/abworrall/optextr/pkg/emath"
)

var minimize = optimize.Minimize

// Gaussian fits height*exp(-z^2/2), z = (x-center)/halfwidth, to
// data/mult by weighted nonlinear least squares.
type Gaussian struct {
	// MaxIterations caps the optimizer; zero means 200.
	MaxIterations int
}

type GaussCoeffs struct {
	Height    float64
	Center    float64
	HalfWidth float64
}

func (GaussCoeffs)isCoeffs() {}
func (c GaussCoeffs)String() string {
	return fmt.Sprintf("gauss{h=%.4g, c=%.3f, w=%.3f}", c.Height, c.Center, c.HalfWidth)
}

func (c GaussCoeffs)At(x float64) float64 {
	z := (x - c.Center) / c.HalfWidth
	return c.Height * math.Exp(-z*z/2)
}

func (c GaussCoeffs)valid() bool {
	for _, v := range []float64{c.Height, c.Center, c.HalfWidth} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return c.HalfWidth != 0
}

func (g Gaussian)Name() string { return "gauss" }

func (g Gaussian)Fit(x, data, variance, mult []float64) ([]float64, Coeffs, error) {
	if err := checkInputs(x, data, variance, mult); err != nil {
		return nil, nil, err
	}
	n := len(x)
	if n <= 4 {
		return nil, nil, &ParameterError{Param: "x", Reason: fmt.Sprintf("gaussian needs more than 4 points, got %d", n)}
	}
	for i := 1; i < n; i++ {
		if x[i] <= x[i-1] {
			return nil, nil, &ParameterError{Param: "x", Reason: "must be strictly increasing"}
		}
	}

	r := ratios(data, mult)
	w := make([]float64, n)
	nw := 0
	for i := range w {
		if m := multAt(mult, i); m != 0 && variance[i] > 0 {
			w[i] = m * m / variance[i]
			nw++
		}
	}

	hbw := n/2 - 1
	if hbw > 4 {
		hbw = 4
	}

	first := gaussGuess(x, r, emath.MovingAverage(r, hbw))
	if nw < 3 {
		return gaussEstimate(x, data, variance, mult, first), first, fmt.Errorf("gauss: %d weighted points: %w", nw, ErrNoGoodPixels)
	}

	if c, ok := g.refine(x, r, w, first); ok {
		return gaussEstimate(x, data, variance, mult, c), c, nil
	}

	// Second try fits the median smoothed ratio, which a cosmic ray
	// cannot drag away from the profile.
	med := emath.RunningMedian(r, hbw)
	second := gaussGuess(x, med, med)
	if c, ok := g.refine(x, med, w, second); ok {
		return gaussEstimate(x, data, variance, mult, c), c, nil
	}

	return gaussEstimate(x, data, variance, mult, first), first, fmt.Errorf("gauss refinement: %w", ErrNoConvergence)
}

func (g Gaussian)Eval(x, data, variance, mult []float64, c Coeffs) ([]float64, error) {
	if err := checkInputs(x, data, variance, mult); err != nil {
		return nil, err
	}
	gc, ok := c.(GaussCoeffs)
	if !ok {
		return nil, coeffsMismatch(g, c)
	}
	return gaussEstimate(x, data, variance, mult, gc), nil
}

// gaussGuess picks the strongest extremum of the smoothed vector, and
// measures its width where the raw ratio exceeds height/e.
func gaussGuess(x, r, smooth []float64) GaussCoeffs {
	iMax, iMin := 0, 0
	for i := range smooth {
		if smooth[i] > smooth[iMax] { iMax = i }
		if smooth[i] < smooth[iMin] { iMin = i }
	}
	i := iMax
	if math.Abs(smooth[iMin]) > math.Abs(smooth[iMax]) {
		i = iMin
	}

	c := GaussCoeffs{Height: smooth[i], Center: x[i], HalfWidth: 0.5}
	lim := math.Abs(c.Height) / math.E
	lo, hi := math.Inf(1), math.Inf(-1)
	for j := range r {
		if math.Abs(r[j]) > lim {
			lo = math.Min(lo, x[j])
			hi = math.Max(hi, x[j])
		}
	}
	if hi >= lo {
		c.HalfWidth = (hi - lo + 1) / 2
	}
	return c
}

func (g Gaussian)refine(x, r, w []float64, init GaussCoeffs) (GaussCoeffs, bool) {
	if init.Height == 0 {
		return init, false
	}

	chi2 := func(a []float64) float64 {
		c := GaussCoeffs{a[0], a[1], a[2]}
		s := 0.0
		for i := range x {
			d := r[i] - c.At(x[i])
			s += w[i] * d * d
		}
		return s
	}
	grad := func(grad, a []float64) {
		h, mu, sig := a[0], a[1], a[2]
		grad[0], grad[1], grad[2] = 0, 0, 0
		for i := range x {
			z := (x[i] - mu) / sig
			e := math.Exp(-z*z/2)
			res := r[i] - h*e
			k := -2 * w[i] * res
			grad[0] += k * e
			grad[1] += k * h * e * z / sig
			grad[2] += k * h * e * z * z / sig
		}
	}

	iters := g.MaxIterations
	if iters == 0 {
		iters = 200
	}

	start := []float64{init.Height, init.Center, init.HalfWidth}
	p := optimize.Problem{Func: chi2, Grad: grad}
	res, err := minimize(p, start, &optimize.Settings{MajorIterations: iters}, &optimize.BFGS{})
	if res == nil {
		return init, false
	}
	// Line search stalls close to the minimum are reported as errors,
	// but the location is still an improvement.
	if err != nil && !(res.F <= chi2(start)) {
		return init, false
	}

	c := GaussCoeffs{res.X[0], res.X[1], math.Abs(res.X[2])}
	if !c.valid() {
		return init, false
	}
	return c, true
}

// gaussEstimate is the model, except at pixels with no usable variance
// where the data ratio is kept.
func gaussEstimate(x, data, variance, mult []float64, c GaussCoeffs) []float64 {
	est := make([]float64, len(x))
	for i := range x {
		if m := multAt(mult, i); m != 0 && variance[i] <= 0 {
			est[i] = data[i] / m
		} else {
			est[i] = c.At(x[i])
		}
	}
	return est
}
