package emath

import(
	"fmt"
	"image"
	"image/color"
	"os"

	"github.com/mdouchement/hdr/codec/rgbe"
	"github.com/mdouchement/hdr/hdrcolor"
)

// hdrGrid presents a FloatGrid as a gray hdr.Image, so its unclipped
// float values can be saved as Radiance RGBE.
type hdrGrid struct {
	fg FloatGrid
}

// Implement image.Image
func (h hdrGrid)ColorModel() color.Model { return hdrcolor.RGBModel }
func (h hdrGrid)Bounds() image.Rectangle { return image.Rect(0, 0, h.fg.Dx(), h.fg.Dy()) }
func (h hdrGrid)At(x, y int) color.Color { return h.HDRAt(x, y) }

// Implement hdr.Image
func (h hdrGrid)HDRAt(x, y int) hdrcolor.Color {
	v := h.fg.Get(x, y)
	if v < 0 {
		v = 0 // RGBE cannot hold negatives
	}
	return hdrcolor.RGB{R: v, G: v, B: v}
}
func (h hdrGrid)Size() int { return h.fg.Dx() * h.fg.Dy() }

func (fg FloatGrid)WriteToHDR(filename string) error {
	writer, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("FloatGrid.WriteToHDR, open+w '%s': %v", filename, err)
	}
	defer writer.Close()

	if err := rgbe.Encode(writer, hdrGrid{fg}); err != nil {
		return fmt.Errorf("FloatGrid.WriteToHDR, encoding RGBE: %w", err)
	}
	return nil
}
