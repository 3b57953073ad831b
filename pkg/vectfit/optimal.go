package vectfit

import "fmt"

// Optimal is the profile-weighted flux estimator of optimal extraction.
// Here mult is the spatial profile, and the model is a single flux:
//
//	flux     = sum(p*d/v) / sum(p^2/v)
//	variance = 1 / sum(p^2/v)
//
// over pixels with p != 0 and v > 0. The estimate is flux everywhere, so
// that mult*estimate is the predicted data.
type Optimal struct{}

type OptimalCoeffs struct {
	Flux     float64
	Variance float64
}

func (OptimalCoeffs)isCoeffs() {}
func (c OptimalCoeffs)String() string {
	return fmt.Sprintf("optimal{flux=%.5g, var=%.5g}", c.Flux, c.Variance)
}

func (Optimal)Name() string { return "optimal" }

func (o Optimal)Fit(x, data, variance, mult []float64) ([]float64, Coeffs, error) {
	if err := checkInputs(x, data, variance, mult); err != nil {
		return nil, nil, err
	}

	num, den := 0.0, 0.0
	for i := range data {
		p := multAt(mult, i)
		if p == 0 || variance[i] <= 0 {
			continue
		}
		num += p * data[i] / variance[i]
		den += p * p / variance[i]
	}

	est := make([]float64, len(x))
	if den == 0 {
		return est, OptimalCoeffs{}, fmt.Errorf("optimal flux: %w", ErrNoGoodPixels)
	}

	c := OptimalCoeffs{Flux: num / den, Variance: 1 / den}
	for i := range est {
		est[i] = c.Flux
	}
	return est, c, nil
}

func (o Optimal)Eval(x, data, variance, mult []float64, c Coeffs) ([]float64, error) {
	if err := checkInputs(x, data, variance, mult); err != nil {
		return nil, err
	}
	oc, ok := c.(OptimalCoeffs)
	if !ok {
		return nil, coeffsMismatch(o, c)
	}
	est := make([]float64, len(x))
	for i := range est {
		est[i] = oc.Flux
	}
	return est, nil
}
