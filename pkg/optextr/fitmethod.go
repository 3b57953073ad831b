package optextr

import(
	"fmt"

	"github.com/abworrall/optextr/pkg/vectfit"
)

// FitMethod selects the profile fitting strategy.
type FitMethod int

const(
	MethodPoly FitMethod = iota
	MethodGauss
	MethodBoxcar
)

var fitMethodNames = map[FitMethod]string{
	MethodPoly:   "poly",
	MethodGauss:  "gauss",
	MethodBoxcar: "boxcar",
}

func (m FitMethod)String() string {
	if s, ok := fitMethodNames[m]; ok {
		return s
	}
	return fmt.Sprintf("FitMethod(%d)", int(m))
}

func (m FitMethod)Valid() bool {
	_, ok := fitMethodNames[m]
	return ok
}

func ParseFitMethod(s string) (FitMethod, error) {
	for m, name := range fitMethodNames {
		if name == s {
			return m, nil
		}
	}
	return 0, &vectfit.ParameterError{Param: "method", Reason: fmt.Sprintf("no fit method named '%s'", s)}
}

func (m FitMethod)MarshalYAML() (interface{}, error) { return m.String(), nil }

func (m *FitMethod)UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := ParseFitMethod(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Set and Type let a FitMethod be a command line flag.
func (m *FitMethod)Set(s string) error {
	parsed, err := ParseFitMethod(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
func (m *FitMethod)Type() string { return "method" }

// strategy builds the profile strategy for p.
func (p ProfileParams)strategy() (vectfit.Strategy, error) {
	switch p.Method {
	case MethodPoly:   return vectfit.Polynomial{Degree: p.Degree}, nil
	case MethodGauss:  return vectfit.Gaussian{}, nil
	case MethodBoxcar: return vectfit.Boxcar{HalfWidth: p.BoxcarHalfWidth}, nil
	}
	return nil, &vectfit.ParameterError{Param: "method", Reason: p.Method.String()}
}
