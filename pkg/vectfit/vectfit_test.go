package vectfit

import(
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/optimize"
)

func seq(n int) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = float64(i)
	}
	return x
}

func fill(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestPolynomialRecoversExactly(t *testing.T) {
	x := seq(20)
	for deg, f := range []func(float64) float64{
		func(x float64) float64 { return 7 },
		func(x float64) float64 { return 3 + 2*x },
		func(x float64) float64 { return 3 + 2*x - 0.5*x*x },
		func(x float64) float64 { return 1 - x + 0.25*x*x + 0.01*x*x*x },
	} {
		data := make([]float64, len(x))
		for i := range x {
			data[i] = 2 * f(x[i])
		}
		est, c, err := Polynomial{Degree: deg}.Fit(x, data, fill(len(x), 1), []float64{2})
		require.NoError(t, err)
		require.IsType(t, PolyCoeffs{}, c)
		for i := range x {
			assert.InDelta(t, f(x[i]), est[i], 1e-6, "degree %d at x=%v", deg, x[i])
		}

		again, err := Polynomial{Degree: deg}.Eval(x, data, fill(len(x), 1), fill(len(x), 0), c)
		require.NoError(t, err)
		assert.InDeltaSlice(t, est, again, 1e-9)
	}
}

func TestPolynomialZeroVarianceKeepsRatio(t *testing.T) {
	x := seq(10)
	data := fill(10, 4)
	data[3] = 100
	v := fill(10, 1)
	v[3] = 0

	est, _, err := Polynomial{Degree: 1}.Fit(x, data, v, []float64{2})
	require.NoError(t, err)
	assert.InDelta(t, 50, est[3], 1e-12)
	assert.InDelta(t, 2, est[0], 1e-9)
}

func TestPolynomialErrors(t *testing.T) {
	x := seq(5)
	var pe *ParameterError
	var le *VectorLengthError

	_, _, err := Polynomial{Degree: -1}.Fit(x, fill(5, 1), fill(5, 1), []float64{1})
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "degree", pe.Param)

	_, _, err = Polynomial{Degree: 5}.Fit(x, fill(5, 1), fill(5, 1), []float64{1})
	assert.True(t, errors.As(err, &pe))

	_, _, err = Polynomial{Degree: 1}.Fit(x, fill(4, 1), fill(5, 1), []float64{1})
	require.True(t, errors.As(err, &le))
	assert.Equal(t, 5, le.LenA)
	assert.Equal(t, 4, le.LenB)

	_, _, err = Polynomial{Degree: 1}.Fit(x, fill(5, 1), fill(5, 1), fill(3, 1))
	assert.True(t, errors.As(err, &le))

	_, err = Polynomial{Degree: 1}.Eval(x, fill(5, 1), fill(5, 1), []float64{1}, BoxcarCoeffs{})
	assert.True(t, errors.As(err, &pe))
}

func TestPolynomialTooFewUsableIsStatistical(t *testing.T) {
	x := seq(6)
	_, _, err := Polynomial{Degree: 2}.Fit(x, fill(6, 1), []float64{1, 1, 0, 0, 0, 0}, []float64{1})
	assert.ErrorIs(t, err, ErrNoGoodPixels)
	assert.True(t, IsStatistical(err))
}

func TestBoxcar(t *testing.T) {
	x := seq(21)
	data := fill(21, 5)
	data[10] = 100
	v := fill(21, 1)
	b := Boxcar{HalfWidth: 2}

	est, c, err := b.Fit(x, data, v, []float64{1})
	require.NoError(t, err)
	assert.InDeltaSlice(t, fill(21, 5), est, 1e-12)

	mult := fill(21, 1)
	mult[10] = 0
	mult[0] = 0
	ev, err := b.Eval(x, data, v, mult, c)
	require.NoError(t, err)
	assert.InDeltaSlice(t, fill(21, 5), ev, 1e-12)

	_, _, err = Boxcar{}.Fit(x, data, v, []float64{1})
	var pe *ParameterError
	assert.True(t, errors.As(err, &pe))
}

func TestBoxcarEvalNeedsIncreasingX(t *testing.T) {
	_, err := Boxcar{HalfWidth: 1}.Eval([]float64{0, 2, 1, 3}, fill(4, 1), fill(4, 1), []float64{1}, BoxcarCoeffs{})
	var pe *ParameterError
	assert.True(t, errors.As(err, &pe))
}

func TestBoxcarInterpolatesBadPixels(t *testing.T) {
	x := seq(5)
	data := []float64{0, 10, 999, 30, 40}
	mult := []float64{1, 1, 0, 1, 1}
	ev, err := Boxcar{HalfWidth: 1}.Eval(x, data, fill(5, 1), mult, BoxcarCoeffs{})
	require.NoError(t, err)

	// good pixels smoothed in their own sequence: [5, 40/3, 80/3, 35]
	assert.InDelta(t, 5.0, ev[0], 1e-9)
	assert.InDelta(t, 40.0/3, ev[1], 1e-9)
	assert.InDelta(t, (40.0/3+80.0/3)/2, ev[2], 1e-9)
	assert.InDelta(t, 35.0, ev[4], 1e-9)
}

func TestGaussianRecovers(t *testing.T) {
	truth := GaussCoeffs{Height: 50, Center: 20.3, HalfWidth: 3}
	x := seq(41)
	data := make([]float64, len(x))
	for i := range x {
		data[i] = 2 * truth.At(x[i])
	}

	est, c, err := Gaussian{}.Fit(x, data, fill(len(x), 1), []float64{2})
	require.NoError(t, err)
	gc := c.(GaussCoeffs)
	assert.InDelta(t, truth.Center, gc.Center, 1e-2)
	assert.InDelta(t, truth.Height, gc.Height, 1e-1)
	assert.InDelta(t, truth.HalfWidth, gc.HalfWidth, 1e-2)
	assert.InDelta(t, truth.At(20), est[20], 1e-1)
}

func TestGaussianErrors(t *testing.T) {
	var pe *ParameterError
	_, _, err := Gaussian{}.Fit(seq(4), fill(4, 1), fill(4, 1), []float64{1})
	assert.True(t, errors.As(err, &pe))

	_, _, err = Gaussian{}.Fit([]float64{0, 1, 1, 2, 3, 4}, fill(6, 1), fill(6, 1), []float64{1})
	assert.True(t, errors.As(err, &pe))
}

// cancelling is a vector whose moving and running medians are zero
// everywhere, so neither starting guess has any height.
func cancelling(a float64) []float64 {
	return []float64{a, -a, 0, 0, 0, 0, 0, 0, 0, a, -a}
}

func TestGaussianBothAttemptsFail(t *testing.T) {
	x := seq(11)
	est, c, err := Gaussian{}.Fit(x, cancelling(10), fill(11, 1), []float64{1})
	assert.ErrorIs(t, err, ErrNoConvergence)
	assert.True(t, IsStatistical(err))
	require.IsType(t, GaussCoeffs{}, c)
	assert.Equal(t, 0.0, c.(GaussCoeffs).Height)
	assert.Equal(t, fill(11, 0), est)
}

func TestGaussianRetriesOnMedian(t *testing.T) {
	truth := GaussCoeffs{Height: 50, Center: 20.3, HalfWidth: 3}
	x := seq(41)
	data := make([]float64, len(x))
	for i := range x {
		data[i] = truth.At(x[i])
	}
	data[33] += 5000

	calls := 0
	minimize = func(p optimize.Problem, start []float64, s *optimize.Settings, m optimize.Method) (*optimize.Result, error) {
		calls++
		if calls == 1 {
			return &optimize.Result{Location: optimize.Location{X: start, F: math.Inf(1)}, Status: optimize.Failure}, errors.New("linesearch: no progress")
		}
		return optimize.Minimize(p, start, s, m)
	}
	t.Cleanup(func() { minimize = optimize.Minimize })

	_, c, err := Gaussian{}.Fit(x, data, fill(len(x), 1), []float64{1})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	// the median smoothed profile is flatter, but stays centred, and
	// the cosmic ray at 33 is gone
	gc := c.(GaussCoeffs)
	assert.InDelta(t, truth.Center, gc.Center, 0.5)
	assert.InDelta(t, truth.Height, gc.Height, 15)
	assert.Greater(t, gc.HalfWidth, 2.0)
}

func TestGaussianNoConvergenceKeepsGuess(t *testing.T) {
	truth := GaussCoeffs{Height: 50, Center: 20, HalfWidth: 3}
	x := seq(41)
	data := make([]float64, len(x))
	for i := range x {
		data[i] = truth.At(x[i])
	}

	minimize = func(p optimize.Problem, start []float64, s *optimize.Settings, m optimize.Method) (*optimize.Result, error) {
		return nil, errors.New("no result")
	}
	t.Cleanup(func() { minimize = optimize.Minimize })

	est, c, err := Gaussian{}.Fit(x, data, fill(len(x), 1), []float64{1})
	assert.ErrorIs(t, err, ErrNoConvergence)
	gc := c.(GaussCoeffs)
	assert.Equal(t, 20.0, gc.Center, "first guess sits on the peak")
	assert.Len(t, est, len(x))
}

func TestGaussianKeepsDataWithoutVariance(t *testing.T) {
	truth := GaussCoeffs{Height: 50, Center: 20.3, HalfWidth: 3}
	x := seq(41)
	data := make([]float64, len(x))
	for i := range x {
		data[i] = 2 * truth.At(x[i])
	}
	data[5] = 3
	variance := fill(len(x), 1)
	variance[5] = 0

	est, c, err := Gaussian{}.Fit(x, data, variance, []float64{2})
	require.NoError(t, err)
	assert.Equal(t, 1.5, est[5])
	assert.InDelta(t, truth.At(20), est[20], 1e-1)

	ev, err := Gaussian{}.Eval(x, data, variance, []float64{2}, c)
	require.NoError(t, err)
	assert.Equal(t, est, ev)
}

func TestCentroid(t *testing.T) {
	x := seq(15)
	data := make([]float64, 15)
	for i := range data {
		data[i] = math.Max(0, 5-math.Abs(x[i]-7))
	}
	est, c, err := CentroidOfMass{}.Fit(x, data, fill(15, 1), []float64{1})
	require.NoError(t, err)
	assert.InDelta(t, 7.0, c.(CentroidCoeffs).Center, 1e-12)
	assert.Equal(t, data, est)

	_, _, err = CentroidOfMass{}.Fit(x, fill(15, 0), fill(15, 1), []float64{1})
	assert.ErrorIs(t, err, ErrNoGoodPixels)
}

func TestOptimalFlux(t *testing.T) {
	p := []float64{0.1, 0.2, 0.4, 0.2, 0.1, 0}
	data := []float64{100, 200, 400, 200, 100, 12345}
	est, c, err := Optimal{}.Fit(seq(6), data, fill(6, 1), p)
	require.NoError(t, err)

	oc := c.(OptimalCoeffs)
	assert.InDelta(t, 1000, oc.Flux, 1e-9)
	assert.InDelta(t, 1/0.26, oc.Variance, 1e-9)
	assert.InDeltaSlice(t, fill(6, 1000), est, 1e-9)

	_, _, err = Optimal{}.Fit(seq(6), data, fill(6, 1), fill(6, 0))
	assert.ErrorIs(t, err, ErrNoGoodPixels)
}
