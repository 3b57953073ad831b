// Package vectfit holds the model-fitting strategies used to estimate a
// smooth version of a one dimensional data vector.
//
// Every strategy models data = mult * model + noise. The mult vector is
// either a single value applied to every pixel, or one value per pixel.
// A zero mult marks a pixel as unusable; the driver passes mult*mask to
// Eval so that rejected pixels carry no weight.
package vectfit

import "fmt"

// Strategy fits a model to a vector, and evaluates a previously fitted
// model at a set of positions. x must be strictly increasing.
type Strategy interface {
	Name() string

	// Fit returns the model estimate at each x, and the fitted
	// coefficients.
	Fit(x, data, variance, mult []float64) ([]float64, Coeffs, error)

	// Eval returns the estimate at each x for coefficients c, which must
	// have come from a Fit by the same strategy.
	Eval(x, data, variance, mult []float64, c Coeffs) ([]float64, error)
}

// Coeffs is the closed set of coefficient types the strategies produce.
type Coeffs interface {
	fmt.Stringer
	isCoeffs()
}

func multAt(mult []float64, i int) float64 {
	if len(mult) == 1 {
		return mult[0]
	}
	return mult[i]
}

// ratio is d/m, or zero for an unusable pixel
func ratio(d, m float64) float64 {
	if m == 0 {
		return 0
	}
	return d / m
}

func ratios(data, mult []float64) []float64 {
	r := make([]float64, len(data))
	for i := range data {
		r[i] = ratio(data[i], multAt(mult, i))
	}
	return r
}

func coeffsMismatch(s Strategy, c Coeffs) error {
	return &ParameterError{Param: "coeffs", Reason: fmt.Sprintf("%T cannot be evaluated by %s", c, s.Name())}
}
