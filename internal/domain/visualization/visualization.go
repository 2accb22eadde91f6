// Package visualization renders quick-look images of composites. Parameters
// here only affect the picture; exported data is never stretched.
package visualization

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"

	"github.com/okian/geocomp/internal/domain/raster"
)

// Sentinel kinds for visualization errors.
var (
	ErrBandCount    = errors.New("visualization needs one band or at least three")
	ErrInvalidRange = errors.New("visualization min must be below max")
)

// VisParams controls the linear stretch and gamma of a quick-look.
type VisParams struct {
	Bands []string `json:"bands"`
	Min   float64  `json:"min"`
	Max   float64  `json:"max"`
	Gamma float64  `json:"gamma"`
}

// Landsat8Preview is the default preview stretch for Landsat 8 surface reflectance.
func Landsat8Preview() VisParams {
	return VisParams{
		Bands: []string{"B1", "B2", "B3", "B4", "B5", "B6", "B7"},
		Min:   0,
		Max:   3000,
		Gamma: 1.4,
	}
}

// Validate checks band count and stretch range.
func (v VisParams) Validate() error {
	if n := len(v.Bands); n == 0 || n == 2 {
		return fmt.Errorf("%w: got %d", ErrBandCount, n)
	}
	if !(v.Min < v.Max) {
		return fmt.Errorf("%w: min %v max %v", ErrInvalidRange, v.Min, v.Max)
	}
	if v.Gamma < 0 {
		return fmt.Errorf("gamma must not be negative, got %v", v.Gamma)
	}
	return nil
}

// Stretch maps a value to [0,1]: (v-min)/(max-min), clamped, then v^(1/gamma).
func (v VisParams) Stretch(x float64) float64 {
	s := (x - v.Min) / (v.Max - v.Min)
	s = math.Max(0, math.Min(1, s))
	if v.Gamma > 0 && v.Gamma != 1 {
		s = math.Pow(s, 1/v.Gamma)
	}
	return s
}

// Render draws img with vis. One band renders grayscale, three or more render
// the first three as red, green and blue. No-data pixels are transparent.
func Render(img *raster.Image, vis VisParams) (*image.NRGBA, error) {
	if err := vis.Validate(); err != nil {
		return nil, err
	}
	names := vis.Bands
	if len(names) > 3 {
		names = names[:3]
	}
	bands := make([]*raster.Band, len(names))
	for i, n := range names {
		b, ok := img.Band(n)
		if !ok {
			return nil, fmt.Errorf("%w: %s", raster.ErrUnknownBand, n)
		}
		bands[i] = b
	}

	g := img.Grid
	out := image.NewNRGBA(image.Rect(0, 0, g.Width, g.Height))
	for i := 0; i < g.Len(); i++ {
		var c [3]uint8
		valid := true
		for k := 0; k < 3; k++ {
			b := bands[0]
			if len(bands) == 3 {
				b = bands[k]
			}
			if !b.Valid[i] {
				valid = false
				break
			}
			c[k] = uint8(math.Round(vis.Stretch(b.Data[i]) * 255))
		}
		if !valid {
			continue
		}
		out.SetNRGBA(i%g.Width, i/g.Width, color.NRGBA{R: c[0], G: c[1], B: c[2], A: 255})
	}
	return out, nil
}

// Mask draws a boolean band in two colours: on where the value is non-zero.
// No-data pixels are transparent.
func Mask(b *raster.Band, g raster.Grid, on, off color.NRGBA) *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, g.Width, g.Height))
	for i := 0; i < g.Len() && i < len(b.Data); i++ {
		if !b.Valid[i] {
			continue
		}
		c := off
		if b.Data[i] != 0 {
			c = on
		}
		out.SetNRGBA(i%g.Width, i/g.Width, c)
	}
	return out
}

// WritePNG encodes m as PNG.
func WritePNG(w io.Writer, m image.Image) error {
	if err := png.Encode(w, m); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}
