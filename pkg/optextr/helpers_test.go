package optextr

import(
	"math"

	"github.com/abworrall/optextr/pkg/emath"
)

// scene describes a synthetic exposure: a sky plus an object whose
// spatial profile is a Gaussian normalised over the object columns.
type scene struct {
	rows, cols int
	x1, x2     int
	center     func(y int) float64
	width      float64
	flux       func(y int) float64
	sky        func(x, y int) float64
}

func defaultScene() scene {
	return scene{
		rows: 60, cols: 32,
		x1: 10, x2: 20,
		center: func(y int) float64 { return 15 },
		width:  1.5,
		flux:   func(y int) float64 { return 1000 + 10*float64(y) },
		sky:    func(x, y int) float64 { return 100 + 0.5*float64(x) + 0.1*float64(y) },
	}
}

func (s scene)profile() emath.FloatGrid {
	p := emath.NewFloatGrid(s.cols, s.rows)
	for y := 0; y < s.rows; y++ {
		sum := 0.0
		for x := s.x1; x <= s.x2; x++ {
			z := (float64(x) - s.center(y)) / s.width
			sum += math.Exp(-z*z/2)
		}
		for x := s.x1; x <= s.x2; x++ {
			z := (float64(x) - s.center(y)) / s.width
			p.Set(x, y, math.Exp(-z*z/2)/sum)
		}
	}
	return p
}

func (s scene)objectOnly() emath.FloatGrid {
	p := s.profile()
	g := emath.NewFloatGrid(s.cols, s.rows)
	for y := 0; y < s.rows; y++ {
		for x := 0; x < s.cols; x++ {
			g.Set(x, y, s.flux(y)*p.Get(x, y))
		}
	}
	return g
}

func (s scene)skyOnly() emath.FloatGrid {
	g := emath.NewFloatGrid(s.cols, s.rows)
	for y := 0; y < s.rows; y++ {
		for x := 0; x < s.cols; x++ {
			g.Set(x, y, s.sky(x, y))
		}
	}
	return g
}

func (s scene)data() emath.FloatGrid {
	obj, sky := s.objectOnly(), s.skyOnly()
	g := emath.NewFloatGrid(s.cols, s.rows)
	for y := 0; y < s.rows; y++ {
		for x := 0; x < s.cols; x++ {
			g.Set(x, y, obj.Get(x, y) + sky.Get(x, y))
		}
	}
	return g
}

// poissonVariance is |g| + 1, the variance model with gain 1 and a read
// noise of 1.
func poissonVariance(g emath.FloatGrid) emath.FloatGrid {
	v := g.NewFromThis()
	for y := 0; y < g.Dy(); y++ {
		for x := 0; x < g.Dx(); x++ {
			v.Set(x, y, math.Abs(g.Get(x, y)) + 1)
		}
	}
	return v
}

func (s scene)fluxes() []float64 {
	f := make([]float64, s.rows)
	for y := range f {
		f[y] = s.flux(y)
	}
	return f
}

func zeros(g emath.FloatGrid) emath.FloatGrid { return g.NewFromThis() }
