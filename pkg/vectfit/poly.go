package vectfit

import(
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Polynomial fits data/mult with a weighted least squares polynomial,
// weights mult^2/variance. Pixels with zero variance are not fitted and
// keep their raw ratio as the estimate.
type Polynomial struct {
	Degree int
}

// PolyCoeffs are in terms of t = (x-Center)/Scale, lowest order first.
type PolyCoeffs struct {
	Coeffs []float64
	Center float64
	Scale  float64
}

func (PolyCoeffs)isCoeffs() {}
func (c PolyCoeffs)String() string {
	return fmt.Sprintf("poly%v(t=(x-%.3g)/%.3g)", c.Coeffs, c.Center, c.Scale)
}

// At evaluates the polynomial at x.
func (c PolyCoeffs)At(x float64) float64 {
	t := (x - c.Center) / c.Scale
	v := 0.0
	for k := len(c.Coeffs)-1; k >= 0; k-- {
		v = v*t + c.Coeffs[k]
	}
	return v
}

func (p Polynomial)Name() string { return fmt.Sprintf("poly(%d)", p.Degree) }

func (p Polynomial)check(x, data, variance, mult []float64) error {
	if err := checkInputs(x, data, variance, mult); err != nil {
		return err
	}
	if p.Degree < 0 {
		return &ParameterError{Param: "degree", Reason: "must be >= 0"}
	}
	if len(x) <= p.Degree {
		return &ParameterError{Param: "degree", Reason: fmt.Sprintf("%d points cannot fit degree %d", len(x), p.Degree)}
	}
	return nil
}

func (p Polynomial)Fit(x, data, variance, mult []float64) ([]float64, Coeffs, error) {
	if err := p.check(x, data, variance, mult); err != nil {
		return nil, nil, err
	}

	est := ratios(data, mult)

	ts, ys, ws := []float64{}, []float64{}, []float64{}
	center, scale := polyFrame(x)
	for i := range x {
		m := multAt(mult, i)
		if m == 0 || variance[i] <= 0 {
			continue
		}
		ts = append(ts, (x[i]-center)/scale)
		ys = append(ys, est[i])
		ws = append(ws, m*m/variance[i])
	}
	if len(ts) <= p.Degree {
		return est, nil, fmt.Errorf("poly degree %d, %d fittable points: %w", p.Degree, len(ts), ErrNoGoodPixels)
	}

	c := PolyCoeffs{Center: center, Scale: scale}
	switch p.Degree {
	case 0:
		c.Coeffs = []float64{stat.Mean(ys, ws)}
	case 1:
		alpha, beta := stat.LinearRegression(ts, ys, ws, false)
		c.Coeffs = []float64{alpha, beta}
	default:
		coeffs, err := weightedLeastSquares(ts, ys, ws, p.Degree)
		if err != nil {
			return est, nil, err
		}
		c.Coeffs = coeffs
	}

	for i := range x {
		if multAt(mult, i) != 0 && variance[i] <= 0 {
			continue
		}
		est[i] = c.At(x[i])
	}

	return est, c, nil
}

func (p Polynomial)Eval(x, data, variance, mult []float64, c Coeffs) ([]float64, error) {
	if err := p.check(x, data, variance, mult); err != nil {
		return nil, err
	}
	pc, ok := c.(PolyCoeffs)
	if !ok {
		return nil, coeffsMismatch(p, c)
	}

	est := make([]float64, len(x))
	for i := range x {
		if m := multAt(mult, i); m != 0 && variance[i] <= 0 {
			est[i] = data[i] / m
		} else {
			est[i] = pc.At(x[i])
		}
	}
	return est, nil
}

// polyFrame centres and scales x onto [-1,1] to keep the Vandermonde
// matrix well conditioned.
func polyFrame(x []float64) (center, scale float64) {
	lo, hi := floats.Min(x), floats.Max(x)
	center = (lo + hi) / 2
	scale = (hi - lo) / 2
	if scale == 0 {
		scale = 1
	}
	return
}

func weightedLeastSquares(ts, ys, ws []float64, deg int) ([]float64, error) {
	n := len(ts)
	a := mat.NewDense(n, deg+1, nil)
	b := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		sw := math.Sqrt(ws[i])
		pow := 1.0
		for k := 0; k <= deg; k++ {
			a.Set(i, k, sw*pow)
			pow *= ts[i]
		}
		b.SetVec(i, sw*ys[i])
	}

	var sol mat.VecDense
	if err := sol.SolveVec(a, b); err != nil {
		// A finite condition number is only a warning.
		if cond, ok := err.(mat.Condition); !ok || math.IsInf(float64(cond), 1) {
			return nil, fmt.Errorf("poly degree %d: %v: %w", deg, err, ErrNoConvergence)
		}
	}
	return mat.Col(nil, 0, &sol), nil
}
