package emath

import(
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFloatGridRowsAndCols(t *testing.T) {
	g, err := NewFloatGridFrom(3, 2, []float64{1, 2, 3, 4, 5, 6})
	require.NoError(t, err)

	assert.Equal(t, 3, g.Dx())
	assert.Equal(t, 2, g.Dy())
	assert.Equal(t, 6.0, g.Get(2, 1))
	assert.Equal(t, []float64{4, 5, 6}, g.Row(1))
	assert.Equal(t, []float64{2, 5}, g.Col(1))

	row := g.Row(0)
	row[0] = 99
	assert.Equal(t, 1.0, g.Get(0, 0), "rows are copies")

	g.SetCol(0, []float64{7, 8})
	assert.Equal(t, []float64{7, 2, 3, 8, 5, 6}, g.Values())

	assert.Equal(t, "fg[3x2, vals{2.000000,8.000000}]", g.Stats())

	d := g.Sub(g)
	assert.Equal(t, make([]float64, 6), d.Values())

	_, err = NewFloatGridFrom(4, 2, []float64{1, 2})
	assert.Error(t, err)
}

func TestMaskGrid(t *testing.T) {
	m := NewMaskGrid(4, 3)
	assert.Equal(t, 0, m.CountBad())

	m.Set(1, 2, false)
	m2 := m.Copy()
	m2.Set(0, 0, false)
	assert.Equal(t, 1, m.CountBad())
	assert.Equal(t, 2, m2.CountBad())
	assert.Equal(t, []bool{true, true, false}, m.Col(1))

	m.SetCol(3, []bool{false, true, true})
	assert.Equal(t, 2, m.CountBad())
	m.SetCol(3, []bool{true, true, true})

	fg := m.AsFloatGrid()
	assert.Equal(t, 0.0, fg.Get(1, 2))
	back := MaskFromFloatGrid(fg)
	assert.Equal(t, m.Row(2), back.Row(2))
}

func TestMedians(t *testing.T) {
	assert.Equal(t, 0.0, Median(nil))
	assert.Equal(t, 3.0, Median([]float64{5, 1, 3}))
	assert.Equal(t, 2.5, Median([]float64{4, 1, 3, 2}))

	v := []float64{1, 1, 50, 1, 1, 2, 2}
	assert.Equal(t, []float64{1, 1, 1, 1, 1, 2, 2}, RunningMedian(v, 1))
	assert.Equal(t, 50.0, v[2], "input untouched")

	assert.InDeltaSlice(t, []float64{1.5, 2, 3, 3.5}, MovingAverage([]float64{1, 2, 3, 4}, 1), 1e-12)
}

func TestFillGaps(t *testing.T) {
	v := []float64{9, 2, -1, -1, 8, 9}
	good := []bool{false, true, false, false, true, true}
	assert.InDeltaSlice(t, []float64{2, 2, 4, 6, 8, 9}, FillGaps(v, good), 1e-12)

	assert.Equal(t, []float64{3, 3}, FillGaps([]float64{3, 7}, []bool{true, false}))
	assert.Equal(t, []float64{0, 0}, FillGaps([]float64{3, 7}, []bool{false, false}))
}

func TestDumpImages(t *testing.T) {
	g := NewFloatGrid(16, 8)
	for y := 0; y < 8; y++ {
		for x := 0; x < 16; x++ {
			g.Set(x, y, float64(x*y))
		}
	}
	dir := t.TempDir()
	require.NoError(t, g.ToImg("test", filepath.Join(dir, "g.png")))
	require.NoError(t, g.WriteToHDR(filepath.Join(dir, "g.hdr")))
	assert.FileExists(t, filepath.Join(dir, "g.png"))
	assert.FileExists(t, filepath.Join(dir, "g.hdr"))
}
