package optextr

import(
	"github.com/abworrall/optextr/pkg/emath"
)

// StandardResult is a plain sum over the object columns of each row.
type StandardResult struct {
	Spectrum []float64
	Variance []float64

	// Adjusted fills masked object pixels by interpolating along the row
	// before summing, which avoids the dips a plain sum gets from
	// rejected pixels.
	Adjusted         []float64
	AdjustedVariance []float64
}

// ExtractStandard sums data*mask and variance*mask across [x1,x2].
func ExtractStandard(data, variance emath.FloatGrid, mask emath.MaskGrid, b Bounds) (StandardResult, error) {
	if err := checkShapes(data, map[string]emath.FloatGrid{"variance": variance}, mask); err != nil {
		return StandardResult{}, err
	}
	if err := b.check(data.Dx()); err != nil {
		return StandardResult{}, err
	}

	ny := data.Dy()
	out := StandardResult{
		Spectrum:         make([]float64, ny),
		Variance:         make([]float64, ny),
		Adjusted:         make([]float64, ny),
		AdjustedVariance: make([]float64, ny),
	}

	cols := b.Columns()
	d := make([]float64, len(cols))
	v := make([]float64, len(cols))
	good := make([]bool, len(cols))
	for y := 0; y < ny; y++ {
		for i, x := range cols {
			d[i], v[i], good[i] = data.Get(x, y), variance.Get(x, y), mask.Get(x, y)
			if good[i] {
				out.Spectrum[y] += d[i]
				out.Variance[y] += v[i]
			}
		}
		fd, fv := emath.FillGaps(d, good), emath.FillGaps(v, good)
		for i := range fd {
			out.Adjusted[y] += fd[i]
			out.AdjustedVariance[y] += fv[i]
		}
	}

	return out, nil
}
