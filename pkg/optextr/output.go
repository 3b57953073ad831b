package optextr

import(
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/astrogo/fitsio"

	"github.com/abworrall/optextr/pkg/emath"
)

// WriteProducts saves the extracted spectra and the diagnostic images
// into dir, plus a summary.yaml describing the run.
func (e *Extraction)WriteProducts(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	path := func(name string) string { return filepath.Join(dir, name) }

	source := fitsio.Card{Name: "SOURCE", Value: e.Source, Comment: "input image"}
	bounds := []fitsio.Card{
		source,
		{Name: "X1", Value: e.X1, Comment: "first object column"},
		{Name: "X2", Value: e.X2, Comment: "last object column"},
	}

	spectra := map[string][]float64{
		"spectrum.fits":     e.Optimal.Spectrum,
		"spectrum-var.fits": e.Optimal.Variance,
		"stdspec.fits":      e.Standard.Spectrum,
		"stdspec-var.fits":  e.Standard.Variance,
	}
	if e.TraceFit != nil {
		spectra["trace.fits"] = e.TraceFit.Smooth
	}
	for name, v := range spectra {
		if err := writeFITS(path(name), []int{len(v)}, v, bounds...); err != nil {
			return err
		}
	}

	mask := e.Optimal.Mask.AsFloatGrid()
	images := map[string]emath.FloatGrid{
		"background.fits": e.BackgroundFit.Background,
		"profile.fits":    e.ProfileFit.Profile,
		"variance.fits":   e.Optimal.VarianceImage,
		"residuals.fits":  e.Optimal.Residuals,
		"mask.fits":       mask,
	}
	for name, g := range images {
		if err := writeFITS(path(name), []int{g.Dx(), g.Dy()}, g.Values(), bounds...); err != nil {
			return err
		}
		if e.Verbosity > 1 {
			log.Printf(" -- %s: %s\n", name, g.Stats())
		}
	}

	if e.Output.DumpPNG {
		for name, g := range images {
			if err := g.ToImg(name, path(name+".png")); err != nil {
				log.Printf("png dump %s: %v\n", name, err)
			}
		}
	}
	if e.Output.DumpHDR {
		if err := e.ProfileFit.Profile.WriteToHDR(path("profile.hdr")); err != nil {
			return err
		}
	}

	b, err := e.Summary.AsYaml()
	if err != nil {
		return fmt.Errorf("summary yaml: %w", err)
	}
	if err := os.WriteFile(path("summary.yaml"), b, 0644); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}

	if e.Verbosity > 0 {
		log.Printf("Wrote products to %s\n", dir)
	}
	return nil
}

// writeFITS saves one float64 image as a single HDU file.
func writeFITS(filename string, axes []int, vals []float64, cards ...fitsio.Card) error {
	w, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("open+w fits '%s': %w", filename, err)
	}
	defer w.Close()

	f, err := fitsio.Create(w)
	if err != nil {
		return fmt.Errorf("fits create '%s': %w", filename, err)
	}

	img := fitsio.NewImage(-64, axes)
	defer img.Close()

	if err := img.Header().Append(cards...); err != nil {
		return fmt.Errorf("fits header '%s': %w", filename, err)
	}
	if err := img.Write(&vals); err != nil {
		return fmt.Errorf("fits data '%s': %w", filename, err)
	}
	if err := f.Write(img); err != nil {
		return fmt.Errorf("fits write '%s': %w", filename, err)
	}
	return f.Close()
}
