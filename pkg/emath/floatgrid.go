package emath

import(
	"fmt"
	"image"
	"image/color"
	"math"
	"sort"

	"github.com/fogleman/gg"
)

// A FloatGrid is a detector image. x indexes the column (the spatial
// axis), y indexes the row (the wavelength axis).
type FloatGrid struct {
	stride int
	values []float64
}

func NewFloatGrid(w, h int) FloatGrid {
	return FloatGrid{
		stride: w,
		values: make([]float64, w*h),
	}
}

// NewFloatGridFrom wraps row-major values; it copies them.
func NewFloatGridFrom(w, h int, vals []float64) (FloatGrid, error) {
	if w <= 0 || h <= 0 || len(vals) != w*h {
		return FloatGrid{}, fmt.Errorf("grid %dx%d cannot hold %d values", w, h, len(vals))
	}
	g := NewFloatGrid(w, h)
	copy(g.values, vals)
	return g, nil
}

func (g1 *FloatGrid)NewFromThis() FloatGrid  { return NewFloatGrid(g1.Dx(), g1.Dy()) }
func (fg *FloatGrid)Set(x, y int, v float64) { fg.values[fg.stride*y + x] = v }
func (fg *FloatGrid)Get(x, y int) float64    { return fg.values[fg.stride*y + x] }
func (fg *FloatGrid)Dx() int                 { return fg.stride }
func (fg *FloatGrid)Dy() int {
	if fg.stride == 0 {
		return 0
	}
	return len(fg.values) / fg.stride
}

// Values returns a copy of the row-major pixel values.
func (fg *FloatGrid)Values() []float64 {
	return append([]float64(nil), fg.values...)
}

func (g1 *FloatGrid)Copy() *FloatGrid {
	g2 := FloatGrid{stride: g1.stride, values:make([]float64, len(g1.values))}
	copy(g2.values, g1.values)
	return &g2
}

func (fg *FloatGrid)SameSize(g2 FloatGrid) bool {
	return fg.Dx() == g2.Dx() && fg.Dy() == g2.Dy()
}

// Row returns a copy of row y.
func (fg *FloatGrid)Row(y int) []float64 {
	return append([]float64(nil), fg.values[y*fg.stride:(y+1)*fg.stride]...)
}

func (fg *FloatGrid)SetRow(y int, v []float64) {
	copy(fg.values[y*fg.stride:(y+1)*fg.stride], v)
}

// Col returns a copy of column x.
func (fg *FloatGrid)Col(x int) []float64 {
	col := make([]float64, fg.Dy())
	for y := range col {
		col[y] = fg.Get(x, y)
	}
	return col
}

func (fg *FloatGrid)SetCol(x int, v []float64) {
	for y := range v {
		fg.Set(x, y, v[y])
	}
}

// Sub returns fg - g2.
func (fg FloatGrid)Sub(g2 FloatGrid) FloatGrid {
	out := fg.NewFromThis()
	for i := range fg.values {
		out.values[i] = fg.values[i] - g2.values[i]
	}
	return out
}

func (fg *FloatGrid)Fill(v float64) {
	for i := range fg.values {
		fg.values[i] = v
	}
}

// FindMaxMinAtPercentile returns the values at two percentiles of the
// finite pixel values.
func (I *FloatGrid)FindMaxMinAtPercentile(minPrct, maxPrct float64) (float64, float64) {
	vI := []float64{}

	for i:=0 ; i<len(I.values) ; i++ {
		if val := I.values[i]; !math.IsNaN(val) && !math.IsInf(val, 0) {
			vI = append(vI, val)
		}
	}
	if len(vI) == 0 {
		return 0, 0
	}

	sort.Float64s(vI)

	iMin := int(minPrct * float64(len(vI)))
	iMax := int(maxPrct * float64(len(vI)))
	if iMin < 0        { iMin = 0 }
	if iMax >= len(vI) { iMax = len(vI)-1 }

	return vI[iMin], vI[iMax]
}

func (fg *FloatGrid)Stats() string {
	min := math.MaxFloat64
	max := -1.0  * min

	for i:=0 ; i<len(fg.values) ; i++ {
		if fg.values[i] > max { max = fg.values[i] }
		if fg.values[i] < min { min = fg.values[i] }
	}
	return fmt.Sprintf("fg[%dx%d, vals{%f,%f}]", fg.Dx(), fg.Dy(), min, max)
}

// ToImg saves a simple grayscale, stretched between the 1st and 99th
// percentile values and gamma scaled to look normal for human vision.
func (fg *FloatGrid)ToImg(title, filename string) error {
	min, max := fg.FindMaxMinAtPercentile(0.01, 0.99)
	if max <= min {
		max = min + 1
	}

	img := image.NewRGBA64(image.Rectangle{Max:image.Point{fg.Dx(), fg.Dy()}})
	for x:=0; x<fg.Dx(); x++ {
		for y:=0; y<fg.Dy(); y++ {
			lum := math.Max(0, math.Min(1, (fg.Get(x,y) - min) / (max - min)))
			gray := uint16(GammaExpand_F64(lum) * 65535.0)
			img.Set(x, y, color.RGBA64{gray, gray, gray, 0xFFFF})
		}
	}

	dc := gg.NewContextForImage(img)
	dc.SetRGB(1,0.2,0.2)
	dc.DrawString(title, 5, 15)
	return dc.SavePNG(filename)
}
