// Package procvect is the iterative robust fitting driver. It fits a
// strategy to the good pixels of a vector, rejects the single worst
// outlier, and refits, until no pixel exceeds the rejection threshold or
// too few pixels remain.
package procvect

import(
	"fmt"
	"log"
	"math"

	"github.com/abworrall/optextr/pkg/vectfit"
)

const DefaultMinPixels = 6

// Vector is one data vector and its co-indexed companions. Nil slices
// take defaults: X all positions, Variance ones, Mult one, Background
// and SkyVariance zeros, Mask all good.
type Vector struct {
	X           []int // positions to fit, strictly increasing
	Data        []float64
	Variance    []float64
	Mult        []float64 // length 1 (broadcast) or len(Data)
	Background  []float64
	SkyVariance []float64
	Mask        []bool
}

// Params for one run of the driver. Zero MinPixels means DefaultMinPixels.
type Params struct {
	Threshold        float64 // in sigma, or data units if AbsThreshold
	AbsThreshold     bool
	Gain             float64 // electrons per data unit
	ReadNoiseSq      float64 // read noise variance, data units
	BadPixelFraction float64 // tolerated fraction of rejected pixels
	NoUpdate         bool    // don't update the variance from the fit
	MinPixels        int

	Index     int // vector number, for logs
	Verbosity int
	Observer  Observer
}

func DefaultParams() Params {
	return Params{
		Threshold:        5,
		Gain:             1,
		BadPixelFraction: 0.5,
		MinPixels:        DefaultMinPixels,
	}
}

// Iteration describes one pass of the reject loop.
type Iteration struct {
	Index         int // the vector number from Params
	Iteration     int
	Good          int // pixels fitted this pass
	Worst         int // position rejected, or -1
	WorstResidual float64
	Coeffs        vectfit.Coeffs
}

// Observer is called after each fit of the reject loop.
type Observer func(Iteration)

// Result of a driver run. Slices are indexed like Vector.Data.
type Result struct {
	Estimate   []float64 // model at every position, mult not applied
	Variance   []float64
	Mask       []bool
	Residuals  []float64 // |d/m-est|, or (d-m*est)^2/var; zero where not fitted
	Coeffs     vectfit.Coeffs
	Iterations int
	Rejected   int

	// Degraded is set when the loop was abandoned; Err holds the cause.
	Degraded bool
	Err      error
}

// Process runs the reject loop. Structural problems with the inputs are
// returned as errors. Statistical failures are reported through
// Result.Degraded. The caller's slices are not modified.
func Process(v Vector, s vectfit.Strategy, p Params) (Result, error) {
	w, err := newWork(v, s, p)
	if err != nil {
		return Result{}, err
	}
	return w.run()
}

// ErrorThreshold is the minimum number of good pixels needed to keep
// fitting a vector with n fit positions.
func ErrorThreshold(n int, p Params) int {
	minPix := p.MinPixels
	if minPix <= 0 {
		minPix = DefaultMinPixels
	}
	t := math.Max(float64(minPix), 0.1*float64(n))
	t = math.Max(t, (1-p.BadPixelFraction)*float64(n))
	return int(math.Ceil(t))
}

type work struct {
	s vectfit.Strategy
	p Params

	nx         int
	x          []int
	data, vari []float64
	mult       []float64
	bg, sky    []float64
	mask       []bool
	good       []int
	thresh     int

	res Result
}

func newWork(v Vector, s vectfit.Strategy, p Params) (*work, error) {
	if s == nil {
		return nil, &vectfit.ParameterError{Param: "strategy", Reason: "is nil"}
	}
	if err := p.validate(); err != nil {
		return nil, err
	}

	nx := len(v.Data)
	if nx == 0 {
		return nil, &vectfit.ParameterError{Param: "data", Reason: "is empty"}
	}

	w := &work{s: s, p: p, nx: nx, data: append([]float64(nil), v.Data...)}

	var err error
	if w.vari, err = floatsOr("variance", v.Variance, nx, 1); err != nil {
		return nil, err
	}
	if w.bg, err = floatsOr("background", v.Background, nx, 0); err != nil {
		return nil, err
	}
	if w.sky, err = floatsOr("skyvariance", v.SkyVariance, nx, 0); err != nil {
		return nil, err
	}

	switch len(v.Mult) {
	case 0:
		w.mult = []float64{1}
	case 1, nx:
		w.mult = append([]float64(nil), v.Mult...)
	default:
		return nil, &vectfit.VectorLengthError{A: "mult", B: "data", LenA: len(v.Mult), LenB: nx}
	}

	switch len(v.Mask) {
	case 0:
		w.mask = make([]bool, nx)
		for i := range w.mask {
			w.mask[i] = true
		}
	case nx:
		w.mask = append([]bool(nil), v.Mask...)
	default:
		return nil, &vectfit.VectorLengthError{A: "mask", B: "data", LenA: len(v.Mask), LenB: nx}
	}

	if v.X == nil {
		w.x = make([]int, nx)
		for i := range w.x {
			w.x[i] = i
		}
	} else {
		for i, xi := range v.X {
			if xi < 0 || xi >= nx {
				return nil, &vectfit.ParameterError{Param: "x", Reason: fmt.Sprintf("position %d outside [0,%d)", xi, nx)}
			}
			if i > 0 && xi <= v.X[i-1] {
				return nil, &vectfit.ParameterError{Param: "x", Reason: "must be strictly increasing"}
			}
		}
		w.x = append([]int(nil), v.X...)
	}
	if len(w.x) == 0 {
		return nil, &vectfit.ParameterError{Param: "x", Reason: "no positions to fit"}
	}

	for _, i := range w.x {
		if w.mask[i] {
			w.good = append(w.good, i)
		}
	}
	w.thresh = ErrorThreshold(len(w.x), p)

	w.res = Result{
		Variance:  w.vari,
		Mask:      w.mask,
		Residuals: make([]float64, nx),
	}
	return w, nil
}

func (p Params)validate() error {
	switch {
	case p.Threshold < 0 || math.IsNaN(p.Threshold):
		return &vectfit.ParameterError{Param: "threshold", Reason: "must be >= 0"}
	case !(p.Gain > 0):
		return &vectfit.ParameterError{Param: "gain", Reason: "must be > 0"}
	case p.ReadNoiseSq < 0:
		return &vectfit.ParameterError{Param: "readnoise", Reason: "variance must be >= 0"}
	case p.BadPixelFraction < 0 || p.BadPixelFraction > 1:
		return &vectfit.ParameterError{Param: "badpixelfraction", Reason: "must be in [0,1]"}
	}
	return nil
}

func floatsOr(name string, v []float64, n int, def float64) ([]float64, error) {
	if v == nil {
		out := make([]float64, n)
		for i := range out {
			out[i] = def
		}
		return out, nil
	}
	if len(v) != n {
		return nil, &vectfit.VectorLengthError{A: name, B: "data", LenA: len(v), LenB: n}
	}
	return append([]float64(nil), v...), nil
}

func (w *work)multAt(i int) float64 {
	if len(w.mult) == 1 {
		return w.mult[0]
	}
	return w.mult[i]
}

// gather pulls out the good pixels, keeping a broadcast mult at length 1.
func (w *work)gather() (x, d, v, m []float64) {
	for _, i := range w.good {
		x = append(x, float64(i))
		d = append(d, w.data[i])
		v = append(v, w.vari[i])
		if len(w.mult) != 1 {
			m = append(m, w.mult[i])
		}
	}
	if len(w.mult) == 1 {
		m = w.mult
	}
	return
}

func (w *work)residual(i int, est float64) float64 {
	m := w.multAt(i)
	if m == 0 {
		return 0
	}
	if w.p.AbsThreshold {
		return math.Abs(w.data[i]/m - est)
	}
	if w.vari[i] <= 0 {
		return 0
	}
	d := w.data[i] - m*est
	return d * d / w.vari[i]
}

func (w *work)limit() float64 {
	if w.p.AbsThreshold {
		return w.p.Threshold
	}
	return w.p.Threshold * w.p.Threshold
}

func (w *work)modelVariance(i int, est float64) float64 {
	return math.Abs(w.multAt(i)*est + w.bg[i])/w.p.Gain + w.p.ReadNoiseSq + w.sky[i]
}

func (w *work)run() (Result, error) {
	if len(w.good) < w.thresh {
		return w.degrade(fmt.Errorf("%d good pixels, need %d: %w", len(w.good), w.thresh, vectfit.ErrNoGoodPixels))
	}

	for {
		w.res.Iterations++
		x, d, v, m := w.gather()
		est, coeffs, err := w.s.Fit(x, d, v, m)
		if err != nil {
			if vectfit.IsStatistical(err) {
				if coeffs != nil {
					w.res.Coeffs = coeffs
				}
				return w.degrade(err)
			}
			return Result{}, fmt.Errorf("vector %d, %s fit: %w", w.p.Index, w.s.Name(), err)
		}
		w.res.Coeffs = coeffs

		worst, worstR := -1, w.limit()
		for j, i := range w.good {
			r := w.residual(i, est[j])
			w.res.Residuals[i] = r
			if r > worstR {
				worst, worstR = i, r
			}
		}
		if !w.p.NoUpdate {
			for j, i := range w.good {
				w.vari[i] = w.modelVariance(i, est[j])
			}
		}

		if w.p.Verbosity > 2 {
			log.Printf("procvect[%d] iter %d: %d good, worst %d (%.3g), %s\n", w.p.Index, w.res.Iterations, len(w.good), worst, worstR, coeffs)
		}
		if w.p.Observer != nil {
			w.p.Observer(Iteration{w.p.Index, w.res.Iterations, len(w.good), worst, worstR, coeffs})
		}

		if worst < 0 {
			break
		}

		w.mask[worst] = false
		w.res.Rejected++
		w.dropGood(worst)
		if len(w.good) < w.thresh {
			return w.degrade(fmt.Errorf("%d good pixels after rejection, need %d: %w", len(w.good), w.thresh, vectfit.ErrNoGoodPixels))
		}
	}

	est, err := w.evalAll(w.res.Coeffs)
	if err != nil {
		return Result{}, fmt.Errorf("vector %d, %s eval: %w", w.p.Index, w.s.Name(), err)
	}
	w.res.Estimate = est
	if !w.p.NoUpdate {
		for i := range w.vari {
			w.vari[i] = w.modelVariance(i, est[i])
		}
	}

	return w.res, nil
}

func (w *work)dropGood(pos int) {
	for j, i := range w.good {
		if i == pos {
			w.good = append(w.good[:j], w.good[j+1:]...)
			return
		}
	}
}

// evalAll evaluates the model at every position, with rejected pixels
// and positions outside X carrying zero mult.
func (w *work)evalAll(c vectfit.Coeffs) ([]float64, error) {
	inX := make([]bool, w.nx)
	for _, i := range w.x {
		inX[i] = true
	}
	x := make([]float64, w.nx)
	m := make([]float64, w.nx)
	for i := range x {
		x[i] = float64(i)
		if inX[i] && w.mask[i] {
			m[i] = w.multAt(i)
		}
	}
	return w.s.Eval(x, w.data, w.vari, m, c)
}

// degrade abandons the loop, and returns the best estimate available.
func (w *work)degrade(cause error) (Result, error) {
	w.res.Degraded = true
	w.res.Err = cause

	if w.res.Coeffs == nil && len(w.good) > 0 {
		x, d, v, m := w.gather()
		if _, c, err := w.s.Fit(x, d, v, m); c != nil && (err == nil || vectfit.IsStatistical(err)) {
			w.res.Coeffs = c
		}
	}
	if w.res.Coeffs != nil {
		if est, err := w.evalAll(w.res.Coeffs); err == nil {
			w.res.Estimate = est
		}
	}
	if w.res.Estimate == nil {
		w.res.Estimate = make([]float64, w.nx)
	}

	if w.p.Verbosity > 1 {
		log.Printf("procvect[%d] degraded after %d iterations: %v\n", w.p.Index, w.res.Iterations, cause)
	}
	return w.res, nil
}
