package optextr

import(
	"context"
	"log"
	"math"

	"github.com/abworrall/optextr/pkg/emath"
	"github.com/abworrall/optextr/pkg/procvect"
	"github.com/abworrall/optextr/pkg/vectfit"
)

// traceVariance weights the per-row centres in the smoothing fit,
// equivalent to a 0.1 pixel uncertainty.
const traceVariance = 0.01

type TraceParams struct {
	Bounds
	Centroid       bool    // centre of mass instead of a Gaussian fit
	Degree         int     // of the polynomial through the row centres
	GaussThreshold float64 // absolute, in units of data/spec
	ShiftThreshold float64 // pixels
	Driver         procvect.Params
	Workers        int
	Observer       RowObserver
}

// Trace is the position of the object along each row.
type Trace struct {
	Centers  []float64
	Widths   []float64
	Heights  []float64
	RowOK    []bool
	Smooth   []float64 // polynomial through the good centres, every row
	Coeffs   vectfit.Coeffs
	Degraded bool // the smoothing fit failed, Smooth is a best effort
	Stats    StageStats
}

// FindTrace measures where the object sits in each row, then fits a
// smooth polynomial through the centres, rejecting rows that stray by
// more than ShiftThreshold pixels.
func FindTrace(ctx context.Context, data, variance emath.FloatGrid, mask emath.MaskGrid, spec []float64, p TraceParams) (Trace, error) {
	if err := checkShapes(data, map[string]emath.FloatGrid{"variance": variance}, mask); err != nil {
		return Trace{}, err
	}
	if err := p.check(data.Dx()); err != nil {
		return Trace{}, err
	}
	if len(spec) != data.Dy() {
		return Trace{}, &vectfit.VectorLengthError{A: "spec", B: "rows", LenA: len(spec), LenB: data.Dy()}
	}

	ny := data.Dy()
	tr := Trace{
		Centers: make([]float64, ny),
		Widths:  make([]float64, ny),
		Heights: make([]float64, ny),
		RowOK:   make([]bool, ny),
	}

	cols := p.Columns()
	vr := vectorRunner{stage: "trace", workers: p.Workers, observer: p.Observer}
	results, err := vr.run(ctx, ny, func(y int) (procvect.Result, error) {
		if p.Centroid {
			return procvect.Result{}, tr.centroidRow(data, mask, cols, y)
		}
		return tr.gaussRow(data, variance, mask, spec, cols, y, p)
	})
	if err != nil {
		return tr, err
	}

	if !p.Centroid {
		tr.Stats = newStageStats("trace", results)
	} else {
		tr.Stats = StageStats{Stage: "trace"}
	}

	if err := tr.smooth(p); err != nil {
		return tr, err
	}
	if p.Driver.Verbosity > 0 {
		good := 0
		for _, ok := range tr.RowOK {
			if ok { good++ }
		}
		log.Printf("trace: %d/%d rows located, smooth fit %s\n", good, ny, tr.Coeffs)
	}
	return tr, nil
}

func (tr *Trace)centroidRow(data emath.FloatGrid, mask emath.MaskGrid, cols []int, y int) error {
	x := make([]float64, len(cols))
	d := make([]float64, len(cols))
	for i, c := range cols {
		x[i] = float64(c)
		if mask.Get(c, y) {
			d[i] = math.Max(0, data.Get(c, y))
		}
	}
	_, c, err := vectfit.CentroidOfMass{}.Fit(x, d, make([]float64, len(x)), []float64{1})
	if vectfit.IsStatistical(err) {
		return nil
	} else if err != nil {
		return err
	}

	tr.Centers[y] = c.(vectfit.CentroidCoeffs).Center
	tr.Widths[y] = 1
	for _, v := range d {
		tr.Heights[y] = math.Max(tr.Heights[y], v)
	}
	tr.RowOK[y] = true
	return nil
}

func (tr *Trace)gaussRow(data, variance emath.FloatGrid, mask emath.MaskGrid, spec []float64, cols []int, y int, p TraceParams) (procvect.Result, error) {
	if spec[y] == 0 {
		return procvect.Result{Degraded: true}, nil
	}

	dp := p.Driver
	dp.Index = y
	dp.Threshold = p.GaussThreshold
	dp.AbsThreshold = true
	dp.NoUpdate = true
	v := procvect.Vector{
		X:        cols,
		Data:     data.Row(y),
		Variance: variance.Row(y),
		Mult:     []float64{spec[y]},
		Mask:     mask.Row(y),
	}
	res, err := procvect.Process(v, vectfit.Gaussian{}, dp)
	if err != nil {
		return res, err
	}

	c, ok := res.Coeffs.(vectfit.GaussCoeffs)
	if res.Degraded || !ok || c.Height == 0 || c.Center < float64(p.X1) || c.Center > float64(p.X2) {
		return res, nil
	}
	tr.Centers[y] = c.Center
	tr.Widths[y] = c.HalfWidth
	tr.Heights[y] = c.Height
	tr.RowOK[y] = true
	return res, nil
}

// smooth fits the trace polynomial through the rows that were located.
func (tr *Trace)smooth(p TraceParams) error {
	rows := []int{}
	for y, ok := range tr.RowOK {
		if ok {
			rows = append(rows, y)
		}
	}
	if len(rows) <= p.Degree {
		tr.Degraded = true
		tr.Smooth = make([]float64, len(tr.Centers))
		return nil
	}

	variance := make([]float64, len(tr.Centers))
	for i := range variance {
		variance[i] = traceVariance
	}

	dp := p.Driver
	dp.Index = -1
	dp.Threshold = p.ShiftThreshold
	dp.AbsThreshold = true
	dp.NoUpdate = true
	v := procvect.Vector{X: rows, Data: tr.Centers, Variance: variance}
	res, err := procvect.Process(v, vectfit.Polynomial{Degree: p.Degree}, dp)
	if err != nil {
		return err
	}

	tr.Smooth = res.Estimate
	tr.Coeffs = res.Coeffs
	tr.Degraded = res.Degraded
	for _, y := range rows {
		tr.RowOK[y] = res.Mask[y]
	}
	return nil
}
