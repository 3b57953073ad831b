package optextr

import(
	"context"
	"log"

	"github.com/abworrall/optextr/pkg/emath"
	"github.com/abworrall/optextr/pkg/procvect"
	"github.com/abworrall/optextr/pkg/vectfit"
)

type BackgroundParams struct {
	Bounds
	Degree   int
	Skip     bool // constant background from the median of the background columns
	Driver   procvect.Params
	Workers  int
	Observer RowObserver
}

type BackgroundResult struct {
	Background emath.FloatGrid
	Variance   emath.FloatGrid // input variance, updated at the background columns
	Mask       emath.MaskGrid
	Residuals  emath.FloatGrid
	RowOK      []bool
	Stats      StageStats
}

// FitBackground fits the sky in each row, using the columns either side
// of the object. The fit is evaluated across the whole row, object
// columns included.
func FitBackground(ctx context.Context, data, variance, sky emath.FloatGrid, mask emath.MaskGrid, p BackgroundParams) (BackgroundResult, error) {
	if err := checkShapes(data, map[string]emath.FloatGrid{"variance": variance, "skyvariance": sky}, mask); err != nil {
		return BackgroundResult{}, err
	}
	if err := p.check(data.Dx()); err != nil {
		return BackgroundResult{}, err
	}
	if p.Degree < 0 {
		return BackgroundResult{}, &vectfit.ParameterError{Param: "degree", Reason: "must be >= 0"}
	}

	cols := []int{}
	for x := 0; x < data.Dx(); x++ {
		if !p.Contains(x) {
			cols = append(cols, x)
		}
	}
	if len(cols) == 0 {
		return BackgroundResult{}, &vectfit.ParameterError{Param: "x1,x2", Reason: "object covers every column, no background left"}
	}

	out := BackgroundResult{
		Background: data.NewFromThis(),
		Variance:   *variance.Copy(),
		Mask:       *mask.Copy(),
		Residuals:  data.NewFromThis(),
		RowOK:      make([]bool, data.Dy()),
	}

	if p.Skip {
		return skipBackground(data, mask, cols, out), nil
	}

	vr := vectorRunner{stage: "background", workers: p.Workers, observer: p.Observer}
	results, err := vr.run(ctx, data.Dy(), func(y int) (procvect.Result, error) {
		maskRow := mask.Row(y)

		deg := p.Degree
		if left, right := countGood(maskRow, 0, p.X1), countGood(maskRow, p.X2+1, data.Dx()); left < 2 || right < 2 {
			deg = 0
		}

		dp := p.Driver
		dp.Index = y
		v := procvect.Vector{
			X:           cols,
			Data:        data.Row(y),
			Variance:    variance.Row(y),
			Mult:        []float64{1},
			SkyVariance: sky.Row(y),
			Mask:        maskRow,
		}
		res, err := procvect.Process(v, vectfit.Polynomial{Degree: deg}, dp)
		if err != nil {
			return res, err
		}

		out.Background.SetRow(y, res.Estimate)
		for _, x := range cols {
			out.Variance.Set(x, y, res.Variance[x])
			out.Mask.Set(x, y, res.Mask[x])
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

	out.Stats = newStageStats("background", results)
	if p.Driver.Verbosity > 0 {
		log.Printf("background: %d rows, %d degraded, %d pixels rejected\n", out.Stats.Vectors, out.Stats.Degraded, out.Stats.Rejected)
	}
	return out, nil
}

func countGood(mask []bool, from, to int) int {
	n := 0
	for x := from; x < to; x++ {
		if mask[x] {
			n++
		}
	}
	return n
}

// skipBackground fills the background with the median of the good
// background pixels.
func skipBackground(data emath.FloatGrid, mask emath.MaskGrid, cols []int, out BackgroundResult) BackgroundResult {
	vals := []float64{}
	for y := 0; y < data.Dy(); y++ {
		for _, x := range cols {
			if mask.Get(x, y) {
				vals = append(vals, data.Get(x, y))
			}
		}
	}
	out.Background.Fill(emath.Median(vals))
	for y := range out.RowOK {
		out.RowOK[y] = true
	}
	out.Stats = StageStats{Stage: "background"}
	return out
}
