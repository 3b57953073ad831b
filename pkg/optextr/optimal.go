package optextr

import(
	"context"
	"log"

	"github.com/abworrall/optextr/pkg/emath"
	"github.com/abworrall/optextr/pkg/procvect"
	"github.com/abworrall/optextr/pkg/vectfit"
)

type ExtractParams struct {
	Bounds
	Driver   procvect.Params
	Workers  int
	Observer RowObserver
}

type OptimalResult struct {
	Spectrum      []float64
	Variance      []float64
	Mask          emath.MaskGrid
	Residuals     emath.FloatGrid
	VarianceImage emath.FloatGrid // the variance model after extraction
	RowOK         []bool
	Stats         StageStats
}

// ExtractOptimal combines the object pixels of each row, weighting by
// profile^2/variance, and rejects pixels that disagree with the profile
// scaled by the extracted flux.
func ExtractOptimal(ctx context.Context, data, profile, variance, sky, bg emath.FloatGrid, mask emath.MaskGrid, p ExtractParams) (OptimalResult, error) {
	grids := map[string]emath.FloatGrid{"profile": profile, "variance": variance, "skyvariance": sky, "background": bg}
	if err := checkShapes(data, grids, mask); err != nil {
		return OptimalResult{}, err
	}
	if err := p.check(data.Dx()); err != nil {
		return OptimalResult{}, err
	}

	ny := data.Dy()
	out := OptimalResult{
		Spectrum:      make([]float64, ny),
		Variance:      make([]float64, ny),
		Mask:          *mask.Copy(),
		Residuals:     data.NewFromThis(),
		VarianceImage: *variance.Copy(),
		RowOK:         make([]bool, ny),
	}

	cols := p.Columns()
	vr := vectorRunner{stage: "optimal", workers: p.Workers, observer: p.Observer}
	results, err := vr.run(ctx, ny, func(y int) (procvect.Result, error) {
		dp := p.Driver
		dp.Index = y
		v := procvect.Vector{
			X:           cols,
			Data:        data.Row(y),
			Variance:    variance.Row(y),
			Mult:        profile.Row(y),
			Background:  bg.Row(y),
			SkyVariance: sky.Row(y),
			Mask:        mask.Row(y),
		}
		res, err := procvect.Process(v, vectfit.Optimal{}, dp)
		if err != nil {
			return res, err
		}

		if c, ok := res.Coeffs.(vectfit.OptimalCoeffs); ok {
			out.Spectrum[y] = c.Flux
			out.Variance[y] = c.Variance
		}
		for _, x := range cols {
			out.Mask.Set(x, y, res.Mask[x])
			out.VarianceImage.Set(x, y, res.Variance[x])
			if res.Mask[x] {
				out.Residuals.Set(x, y, res.Residuals[x])
			}
		}
		out.RowOK[y] = !res.Degraded
		return res, nil
	})
	if err != nil {
		return out, err
	}

	out.Stats = newStageStats("optimal", results)
	if p.Driver.Verbosity > 0 {
		log.Printf("optimal: %d rows, %d degraded, %d pixels rejected\n", out.Stats.Vectors, out.Stats.Degraded, out.Stats.Rejected)
	}
	return out, nil
}
