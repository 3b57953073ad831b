package optextr

import(
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/astrogo/fitsio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/tiff"

	"github.com/abworrall/optextr/pkg/emath"
)

func writeTIFF(t *testing.T, filename string, w, h int) {
	img := image.NewGray16(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray16(x, y, color.Gray16{Y: uint16(100*y + x)})
		}
	}
	f, err := os.Create(filename)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, tiff.Encode(f, img, nil))
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("x1: 2\nx2: 4\nprofile:\n  method: boxcar\n"), 0644))
	writeTIFF(t, filepath.Join(dir, "b.tif"), 7, 5)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello"), 0644))

	e := NewExtraction()
	require.NoError(t, e.LoadFilesAndDirs(dir))

	assert.Equal(t, filepath.Join(dir, "b.tif"), e.Source)
	assert.Equal(t, Bounds{X1: 2, X2: 4}, e.Bounds())
	assert.Equal(t, MethodBoxcar, e.Profile.Method)
	assert.Equal(t, MethodBoxcar, e.ProfileParams().Method)
	assert.Equal(t, 7, e.Data.Dx())
	assert.Equal(t, 5, e.Data.Dy())
	assert.Equal(t, 302.0, e.Data.Get(2, 3))
	assert.False(t, e.haveVariance)
}

func TestLoadFITSPlanes(t *testing.T) {
	dir := t.TempDir()
	data, err := emath.NewFloatGridFrom(3, 2, []float64{1, 2, 3, 4, 5, 6})
	require.NoError(t, err)
	variance, err := emath.NewFloatGridFrom(3, 2, []float64{2, 2, 2, 3, 3, 3})
	require.NoError(t, err)
	mask := emath.NewMaskGrid(3, 2)
	mask.Set(1, 1, false)

	fg := mask.AsFloatGrid()
	require.NoError(t, writeFITS(filepath.Join(dir, "obs.fits"), []int{3, 2}, data.Values()))
	require.NoError(t, writeFITS(filepath.Join(dir, "obs.var.fits"), []int{3, 2}, variance.Values()))
	require.NoError(t, writeFITS(filepath.Join(dir, "obs.mask.fits"), []int{3, 2}, fg.Values()))

	e := NewExtraction()
	require.NoError(t, e.LoadFilesAndDirs(dir))

	assert.Equal(t, data.Values(), e.Data.Values())
	assert.Equal(t, variance.Values(), e.Variance.Values())
	assert.True(t, e.haveVariance)
	assert.True(t, e.haveMask)
	assert.False(t, e.Mask.Get(1, 1))
	assert.True(t, e.Mask.Get(0, 1))
}

// writeFITSImage writes a single HDU of the given BITPIX; data must be a
// slice of the matching Go type.
func writeFITSImage(t *testing.T, filename string, bitpix int, axes []int, data interface{}, cards ...fitsio.Card) {
	w, err := os.Create(filename)
	require.NoError(t, err)
	defer w.Close()

	f, err := fitsio.Create(w)
	require.NoError(t, err)

	img := fitsio.NewImage(bitpix, axes)
	defer img.Close()
	require.NoError(t, img.Header().Append(cards...))
	require.NoError(t, img.Write(data))
	require.NoError(t, f.Write(img))
	require.NoError(t, f.Close())
}

func TestLoadFITSIntegerAndSinglePrecision(t *testing.T) {
	dir := t.TempDir()

	// unsigned 16 bit counts, stored the usual way as int16 with BZERO
	counts := []int16{-32768, -32668, 0, 32767, -32000, 100}
	writeFITSImage(t, filepath.Join(dir, "counts.fits"), 16, []int{3, 2}, counts,
		fitsio.Card{Name: "BZERO", Value: 32768},
		fitsio.Card{Name: "BSCALE", Value: 1.0},
	)
	planes, err := loadFITS(filepath.Join(dir, "counts.fits"))
	require.NoError(t, err)
	require.Len(t, planes, 1)
	assert.Equal(t, []float64{0, 100, 32768, 65535, 768, 32868}, planes[0].Values())

	writeFITSImage(t, filepath.Join(dir, "scaled.fits"), 32, []int{2, 2}, []int32{1, 2, 3, -4},
		fitsio.Card{Name: "BSCALE", Value: 0.5},
		fitsio.Card{Name: "BZERO", Value: 10.0},
	)
	planes, err = loadFITS(filepath.Join(dir, "scaled.fits"))
	require.NoError(t, err)
	assert.Equal(t, []float64{10.5, 11, 11.5, 8}, planes[0].Values())

	writeFITSImage(t, filepath.Join(dir, "bytes.fits"), 8, []int{2, 1}, []byte{7, 255})
	planes, err = loadFITS(filepath.Join(dir, "bytes.fits"))
	require.NoError(t, err)
	assert.Equal(t, []float64{7, 255}, planes[0].Values())

	writeFITSImage(t, filepath.Join(dir, "obs.fits"), -32, []int{3, 2}, []float32{1.5, 2, 3, 4, 5, 6.25})
	e := NewExtraction()
	require.NoError(t, e.LoadFilesAndDirs(filepath.Join(dir, "obs.fits")))
	assert.Equal(t, []float64{1.5, 2, 3, 4, 5, 6.25}, e.Data.Values())
	assert.Equal(t, 3, e.Data.Dx())
	assert.Equal(t, 2, e.Data.Dy())
}

func TestLoadErrors(t *testing.T) {
	e := NewExtraction()
	assert.Error(t, e.LoadFilesAndDirs(filepath.Join(t.TempDir(), "missing.fits")))

	dir := t.TempDir()
	writeTIFF(t, filepath.Join(dir, "one.tif"), 4, 4)
	writeTIFF(t, filepath.Join(dir, "two.tif"), 4, 4)
	e = NewExtraction()
	assert.Error(t, e.LoadFilesAndDirs(dir), "two images")

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("profile:\n  method: cubic\n"), 0644))
	e = NewExtraction()
	assert.Error(t, e.LoadFilesAndDirs(bad))
}
