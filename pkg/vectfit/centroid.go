package vectfit

import "fmt"

// CentroidOfMass locates the intensity-weighted centre of data/mult. Its
// estimate is the ratio itself, so it never drives a rejection.
type CentroidOfMass struct{}

type CentroidCoeffs struct {
	Center float64
}

func (CentroidCoeffs)isCoeffs() {}
func (c CentroidCoeffs)String() string { return fmt.Sprintf("centroid{%.3f}", c.Center) }

func (CentroidOfMass)Name() string { return "centroid" }

func (cm CentroidOfMass)Fit(x, data, variance, mult []float64) ([]float64, Coeffs, error) {
	if err := checkInputs(x, data, variance, mult); err != nil {
		return nil, nil, err
	}
	r := ratios(data, mult)
	sum, moment := 0.0, 0.0
	for i := range r {
		sum += r[i]
		moment += x[i] * r[i]
	}
	if sum == 0 {
		return r, nil, fmt.Errorf("centroid of empty vector: %w", ErrNoGoodPixels)
	}
	return r, CentroidCoeffs{Center: moment / sum}, nil
}

func (cm CentroidOfMass)Eval(x, data, variance, mult []float64, c Coeffs) ([]float64, error) {
	if err := checkInputs(x, data, variance, mult); err != nil {
		return nil, err
	}
	if _, ok := c.(CentroidCoeffs); !ok {
		return nil, coeffsMismatch(cm, c)
	}
	return ratios(data, mult), nil
}
