package optextr

import(
	"context"
	"log"
	"math"

	"github.com/abworrall/optextr/pkg/emath"
	"github.com/abworrall/optextr/pkg/procvect"
	"github.com/abworrall/optextr/pkg/vectfit"
)

type ProfileParams struct {
	Bounds
	Method          FitMethod
	Degree          int
	BoxcarHalfWidth int
	NoFit           bool
	Driver          procvect.Params
	Workers         int
	Observer        RowObserver
}

type ProfileResult struct {
	Profile   emath.FloatGrid // zero outside the object, rows sum to 1
	Mask      emath.MaskGrid
	Residuals emath.FloatGrid
	Rejected  emath.MaskGrid // true where the profile fit rejected a good input pixel
	RowOK     []bool
	VectorOK  []bool // per fitted vector: columns for poly/boxcar, rows for gauss
	Stats     StageStats
}

// FitProfile estimates the spatial profile of the object at each
// wavelength, from background subtracted data and a first guess of the
// spectrum. Polynomial and boxcar fits run down each object column, the
// profile changing slowly with wavelength; Gaussian fits run across each
// row.
func FitProfile(ctx context.Context, data, variance, sky, bg emath.FloatGrid, mask emath.MaskGrid, spec []float64, p ProfileParams) (ProfileResult, error) {
	if err := checkShapes(data, map[string]emath.FloatGrid{"variance": variance, "skyvariance": sky, "background": bg}, mask); err != nil {
		return ProfileResult{}, err
	}
	if err := p.check(data.Dx()); err != nil {
		return ProfileResult{}, err
	}
	if len(spec) != data.Dy() {
		return ProfileResult{}, &vectfit.VectorLengthError{A: "spec", B: "rows", LenA: len(spec), LenB: data.Dy()}
	}

	out := ProfileResult{
		Profile:   data.NewFromThis(),
		Mask:      *mask.Copy(),
		Residuals: data.NewFromThis(),
		Rejected:  emath.NewMaskGrid(data.Dx(), data.Dy()),
		RowOK:     make([]bool, data.Dy()),
	}

	if p.NoFit {
		noFitProfile(data, mask, spec, p.Bounds, &out)
		out.Stats = StageStats{Stage: "profile"}
		return out, nil
	}

	s, err := p.strategy()
	if err != nil {
		return out, err
	}

	vr := vectorRunner{stage: "profile", workers: p.Workers, observer: p.Observer}
	var results []procvect.Result

	if p.Method == MethodGauss {
		cols := p.Columns()
		results, err = vr.run(ctx, data.Dy(), func(y int) (procvect.Result, error) {
			dp := p.Driver
			dp.Index = y
			v := procvect.Vector{
				X:           cols,
				Data:        data.Row(y),
				Variance:    variance.Row(y),
				Mult:        []float64{spec[y]},
				Background:  bg.Row(y),
				SkyVariance: sky.Row(y),
				Mask:        mask.Row(y),
			}
			res, err := procvect.Process(v, s, dp)
			if err != nil {
				return res, err
			}
			for _, x := range cols {
				out.Profile.Set(x, y, res.Estimate[x])
				out.Mask.Set(x, y, res.Mask[x])
				if res.Mask[x] {
					out.Residuals.Set(x, y, res.Residuals[x])
				}
			}
			return res, nil
		})

	} else {
		results, err = vr.run(ctx, p.Width(), func(i int) (procvect.Result, error) {
			x := p.X1 + i
			dp := p.Driver
			dp.Index = x
			v := procvect.Vector{
				Data:        data.Col(x),
				Variance:    variance.Col(x),
				Mult:        spec,
				Background:  bg.Col(x),
				SkyVariance: sky.Col(x),
				Mask:        mask.Col(x),
			}
			res, err := procvect.Process(v, s, dp)
			if err != nil {
				return res, err
			}
			out.Profile.SetCol(x, res.Estimate)
			out.Mask.SetCol(x, res.Mask)
			for y := range res.Estimate {
				if res.Mask[y] {
					out.Residuals.Set(x, y, res.Residuals[y])
				}
			}
			return res, nil
		})
	}
	if err != nil {
		return out, err
	}

	out.VectorOK = make([]bool, len(results))
	for i, r := range results {
		out.VectorOK[i] = !r.Degraded
	}

	for y := 0; y < data.Dy(); y++ {
		rowOK := normaliseRow(&out.Profile, y, p.Bounds)
		if p.Method == MethodGauss {
			rowOK = rowOK && out.VectorOK[y]
		}
		out.RowOK[y] = rowOK
	}

	for y := 0; y < data.Dy(); y++ {
		for x := 0; x < data.Dx(); x++ {
			out.Rejected.Set(x, y, mask.Get(x, y) && !out.Mask.Get(x, y))
		}
	}

	out.Stats = newStageStats("profile", results)
	if p.Driver.Verbosity > 0 {
		log.Printf("profile(%s): %d vectors, %d degraded, %d pixels rejected\n", s.Name(), out.Stats.Vectors, out.Stats.Degraded, out.Stats.Rejected)
	}
	return out, nil
}

// noFitProfile takes the profile straight from data/spec.
func noFitProfile(data emath.FloatGrid, mask emath.MaskGrid, spec []float64, b Bounds, out *ProfileResult) {
	for y := 0; y < data.Dy(); y++ {
		for _, x := range b.Columns() {
			if spec[y] == 0 || !mask.Get(x, y) {
				continue
			}
			out.Profile.Set(x, y, data.Get(x, y)/spec[y])
		}
		out.RowOK[y] = normaliseRow(&out.Profile, y, b)
	}
	for y := 0; y < data.Dy(); y++ {
		for x := 0; x < data.Dx(); x++ {
			out.Rejected.Set(x, y, false)
		}
	}
}

// normaliseRow clips the profile row to >= 0, zeros it outside the
// object, and scales it to sum to 1. A row with nothing positive is set
// to zero and reported as bad.
func normaliseRow(prof *emath.FloatGrid, y int, b Bounds) bool {
	row := prof.Row(y)
	sum := 0.0
	for x := range row {
		if !b.Contains(x) || !(row[x] > 0) || math.IsInf(row[x], 0) {
			row[x] = 0
		}
		sum += row[x]
	}
	if sum > 0 {
		for x := range row {
			row[x] /= sum
		}
	}
	prof.SetRow(y, row)
	return sum > 0
}
