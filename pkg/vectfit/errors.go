package vectfit

import(
	"errors"
	"fmt"
)

// Statistical failures. These are recoverable: callers flag the vector
// as degraded and carry on.
var(
	ErrNoConvergence = errors.New("fit did not converge")
	ErrNoGoodPixels  = errors.New("no usable pixels")
)

// VectorLengthError reports two co-indexed inputs of different length.
type VectorLengthError struct {
	A, B       string
	LenA, LenB int
}

func (e *VectorLengthError)Error() string {
	return fmt.Sprintf("length mismatch: %s has %d elements, %s has %d", e.A, e.LenA, e.B, e.LenB)
}

// ParameterError reports a structurally invalid input value.
type ParameterError struct {
	Param  string
	Reason string
}

func (e *ParameterError)Error() string {
	return fmt.Sprintf("bad parameter %s: %s", e.Param, e.Reason)
}

// IsStatistical reports whether err is a recoverable fitting failure,
// rather than a problem with the inputs.
func IsStatistical(err error) bool {
	return errors.Is(err, ErrNoConvergence) || errors.Is(err, ErrNoGoodPixels)
}

func checkLen(a string, la int, b string, lb int) error {
	if la != lb {
		return &VectorLengthError{A: a, B: b, LenA: la, LenB: lb}
	}
	return nil
}

// checkMult allows a mult of length 1 (broadcast) or n.
func checkMult(mult []float64, n int) error {
	if len(mult) != 1 && len(mult) != n {
		return &VectorLengthError{A: "mult", B: "data", LenA: len(mult), LenB: n}
	}
	return nil
}

func checkInputs(x, data, variance, mult []float64) error {
	if err := checkLen("x", len(x), "data", len(data)); err != nil {
		return err
	}
	if err := checkLen("variance", len(variance), "data", len(data)); err != nil {
		return err
	}
	return checkMult(mult, len(data))
}
