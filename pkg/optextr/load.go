package optextr

import(
	"fmt"
	"image"
	"image/color"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/astrogo/fitsio"
	"golang.org/x/image/tiff"

	"github.com/abworrall/optextr/pkg/emath"
)

// LoadFilesAndDirs loads config and image files, recursing into
// directories. A .yaml file replaces the config. An image file supplies
// the data; files named *.var.fits and *.mask.fits supply the variance
// and mask planes, as do the second and third HDUs of a FITS file.
func (e *Extraction)LoadFilesAndDirs(args ...string) (error) {
	for _, arg := range args {
		item, err := os.Stat(arg)

		switch {

		case err != nil:
			return fmt.Errorf("load %s: %w", arg, err)

		case item.IsDir():
			// Is a dir, recurse into contents
			contents, err := os.ReadDir(arg)
			if err != nil {
				return fmt.Errorf("readdir %s: %w", arg, err)
			}
			for _, content := range contents {
				if err := e.LoadFilesAndDirs(filepath.Join(arg, content.Name())); err != nil {
					return fmt.Errorf("load %s: %w", arg, err)
				}
			}

		default: // is a file, load it
			if err := e.loadFile(arg); err != nil {
				return fmt.Errorf("loadfile %s: %w", arg, err)
			}
		}
	}

	return nil
}

func (e *Extraction)loadFile(filename string) error {
	lower := strings.ToLower(filename)

	switch {

	case strings.HasSuffix(lower, ".var.fits"):
		planes, err := loadFITS(filename)
		if err != nil {
			return err
		}
		e.SetVariance(planes[0])

	case strings.HasSuffix(lower, ".mask.fits"):
		planes, err := loadFITS(filename)
		if err != nil {
			return err
		}
		e.SetMask(emath.MaskFromFloatGrid(planes[0]))

	case strings.HasSuffix(lower, ".fits"), strings.HasSuffix(lower, ".fit"), strings.HasSuffix(lower, ".fts"):
		if e.Source != "" {
			return fmt.Errorf("already have an image from %s", e.Source)
		}
		planes, err := loadFITS(filename)
		if err != nil {
			return err
		}
		e.SetImage(filename, planes[0])
		if len(planes) > 1 {
			e.SetVariance(planes[1])
		}
		if len(planes) > 2 {
			e.SetMask(emath.MaskFromFloatGrid(planes[2]))
		}

	case strings.HasSuffix(lower, ".tif"), strings.HasSuffix(lower, ".tiff"):
		if e.Source != "" {
			return fmt.Errorf("already have an image from %s", e.Source)
		}
		g, err := loadTIFF(filename)
		if err != nil {
			return fmt.Errorf("Loading %s as TIFF failed: %w", filename, err)
		}
		e.SetImage(filename, g)

	case strings.HasSuffix(lower, ".yaml"), strings.HasSuffix(lower, ".yml"):
		cfg, err := loadConfig(filename)
		if err != nil {
			return fmt.Errorf("Loading %s as config YAML failed: %w", filename, err)
		}
		e.Config = cfg
		log.Printf("Loaded base configuration from %s\n", filename)

	default:
		log.Printf("Skipping %s\n", filename)
	}

	return nil
}

func loadConfig(filename string) (Config, error) {
	contents, err := os.ReadFile(filename)
	if err != nil {
		return Config{}, fmt.Errorf("config read %s: %w", filename, err)
	}

	return newConfigFromYaml(contents)
}

// loadFITS reads every 2-D image HDU in the file, in order.
func loadFITS(filename string) ([]emath.FloatGrid, error) {
	r, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open+r fits '%s': %w", filename, err)
	}
	defer r.Close()

	f, err := fitsio.Open(r)
	if err != nil {
		return nil, fmt.Errorf("fits parsing '%s': %w", filename, err)
	}
	defer f.Close()

	planes := []emath.FloatGrid{}
	for i, hdu := range f.HDUs() {
		img, ok := hdu.(fitsio.Image)
		if !ok {
			continue
		}
		axes := img.Header().Axes()
		if len(axes) != 2 {
			if i == 0 && len(axes) == 0 {
				continue // empty primary, data is in the extensions
			}
			return nil, fmt.Errorf("fits '%s' HDU %d: want a 2-D image, have %d axes", filename, i, len(axes))
		}

		w, h := axes[0], axes[1]
		raw, err := readPixels(img, w*h)
		if err != nil {
			return nil, fmt.Errorf("fits '%s' HDU %d: %w", filename, i, err)
		}
		g, err := emath.NewFloatGridFrom(w, h, raw)
		if err != nil {
			return nil, fmt.Errorf("fits '%s' HDU %d: %w", filename, i, err)
		}
		planes = append(planes, g)
	}

	if len(planes) == 0 {
		return nil, fmt.Errorf("fits '%s': no image HDU", filename)
	}
	return planes, nil
}

type pixel interface {
	~uint8 | ~int16 | ~int32 | ~int64 | ~float32 | ~float64
}

func readAs[T pixel](img fitsio.Image, n int) ([]float64, error) {
	raw := make([]T, n)
	if err := img.Read(&raw); err != nil {
		return nil, err
	}
	out := make([]float64, len(raw))
	for i, v := range raw {
		out[i] = float64(v)
	}
	return out, nil
}

// readPixels reads n pixels of any BITPIX, applying BSCALE and BZERO.
func readPixels(img fitsio.Image, n int) ([]float64, error) {
	var vals []float64
	var err error

	switch bitpix := img.Header().Bitpix(); bitpix {
	case 8:
		vals, err = readAs[uint8](img, n)
	case 16:
		vals, err = readAs[int16](img, n)
	case 32:
		vals, err = readAs[int32](img, n)
	case 64:
		vals, err = readAs[int64](img, n)
	case -32:
		vals, err = readAs[float32](img, n)
	case -64:
		vals, err = readAs[float64](img, n)
	default:
		return nil, fmt.Errorf("unsupported BITPIX %d", bitpix)
	}
	if err != nil {
		return nil, err
	}

	scale, err := cardFloat(img.Header(), "BSCALE", 1)
	if err != nil {
		return nil, err
	}
	zero, err := cardFloat(img.Header(), "BZERO", 0)
	if err != nil {
		return nil, err
	}
	if scale != 1 || zero != 0 {
		for i, v := range vals {
			vals[i] = zero + scale*v
		}
	}
	return vals, nil
}

func cardFloat(hdr *fitsio.Header, name string, def float64) (float64, error) {
	card := hdr.Get(name)
	if card == nil {
		return def, nil
	}
	switch v := card.Value.(type) {
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	}
	return 0, fmt.Errorf("%s: non-numeric value %v", name, card.Value)
}

// loadTIFF reads a grayscale TIFF; color images are converted to 16 bit
// luminance.
func loadTIFF(filename string) (emath.FloatGrid, error) {
	reader, err := os.Open(filename)
	if err != nil {
		return emath.FloatGrid{}, fmt.Errorf("open+r img '%s': %w", filename, err)
	}
	defer reader.Close()

	img, err := tiff.Decode(reader)
	if err != nil {
		return emath.FloatGrid{}, fmt.Errorf("tiff loading '%s': %w", filename, err)
	}
	return gridFromImage(img), nil
}

func gridFromImage(img image.Image) emath.FloatGrid {
	b := img.Bounds()
	g := emath.NewFloatGrid(b.Dx(), b.Dy())
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			c := color.Gray16Model.Convert(img.At(b.Min.X + x, b.Min.Y + y)).(color.Gray16)
			g.Set(x, y, float64(c.Y))
		}
	}
	return g
}
