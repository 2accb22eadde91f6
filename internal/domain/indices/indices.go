// Package indices computes Landsat 8 spectral indices and the change between
// two acquisitions of the same index.
package indices

import (
	"errors"
	"fmt"
	"image/color"
	"strings"

	"github.com/okian/geocomp/internal/domain/raster"
)

// ErrUnknownIndex is returned for index names that are not supported.
var ErrUnknownIndex = errors.New("unknown spectral index")

// Index names a spectral index.
type Index string

// Supported indices.
const (
	NDVI Index = "ndvi"
	NDWI Index = "ndwi"
	NDBI Index = "ndbi"
	SAVI Index = "savi"
)

// SoilFactor is the SAVI soil brightness correction L.
const SoilFactor = 0.5

// All lists the supported indices.
var All = []Index{NDVI, NDWI, NDBI, SAVI}

// Change colours: pink where the index dropped past the threshold, dark blue elsewhere.
var (
	ChangeColor   = color.NRGBA{R: 255, G: 192, B: 203, A: 255}
	NoChangeColor = color.NRGBA{R: 0, G: 0, B: 139, A: 255}
)

// Parse resolves an index name case-insensitively.
func Parse(name string) (Index, error) {
	idx := Index(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range All {
		if idx == known {
			return idx, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownIndex, name)
}

// Bands returns the Landsat 8 bands the index reads.
func (i Index) Bands() []string {
	switch i {
	case NDVI, SAVI:
		return []string{"B5", "B4"}
	case NDWI:
		return []string{"B3", "B5"}
	case NDBI:
		return []string{"B6", "B5"}
	}
	return nil
}

// Compute evaluates the index over img. Pixels where an input is no-data or
// the denominator is zero are no-data.
func Compute(i Index, img *raster.Image) (*raster.Band, error) {
	names := i.Bands()
	if names == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownIndex, string(i))
	}
	a, ok := img.Band(names[0])
	if !ok {
		return nil, fmt.Errorf("%s: %w: %s", i, raster.ErrUnknownBand, names[0])
	}
	b, ok := img.Band(names[1])
	if !ok {
		return nil, fmt.Errorf("%s: %w: %s", i, raster.ErrUnknownBand, names[1])
	}
	if i == SAVI {
		return soilAdjusted(string(i), a, b, SoilFactor), nil
	}
	return normalizedDifference(string(i), a, b), nil
}

// (a-b)/(a+b)
func normalizedDifference(name string, a, b *raster.Band) *raster.Band {
	out := raster.NewBand(name, len(a.Data))
	for p := range a.Data {
		if !a.Valid[p] || !b.Valid[p] {
			continue
		}
		if den := a.Data[p] + b.Data[p]; den != 0 {
			out.Set(p, (a.Data[p]-b.Data[p])/den)
		}
	}
	return out
}

// (nir-red)/(nir+red+L) * (1+L)
func soilAdjusted(name string, nir, red *raster.Band, l float64) *raster.Band {
	out := raster.NewBand(name, len(nir.Data))
	for p := range nir.Data {
		if !nir.Valid[p] || !red.Valid[p] {
			continue
		}
		if den := nir.Data[p] + red.Data[p] + l; den != 0 {
			out.Set(p, (nir.Data[p]-red.Data[p])/den*(1+l))
		}
	}
	return out
}

// Change holds the difference between two years and its binary mask.
type Change struct {
	// Diff is year1 - year2.
	Diff *raster.Band
	// Mask is 1 where Diff > threshold and 0 elsewhere.
	Mask *raster.Band
}

// Detect compares the same index of two years. Both bands must have the same length.
func Detect(year1, year2 *raster.Band, threshold float64) (Change, error) {
	if len(year1.Data) != len(year2.Data) {
		return Change{}, fmt.Errorf("%w: %d and %d pixels", raster.ErrShape, len(year1.Data), len(year2.Data))
	}
	diff := raster.NewBand(year1.Name+"_change", len(year1.Data))
	mask := raster.NewBand(year1.Name+"_mask", len(year1.Data))
	for p := range year1.Data {
		if !year1.Valid[p] || !year2.Valid[p] {
			continue
		}
		d := year1.Data[p] - year2.Data[p]
		diff.Set(p, d)
		if d > threshold {
			mask.Set(p, 1)
		} else {
			mask.Set(p, 0)
		}
	}
	return Change{Diff: diff, Mask: mask}, nil
}
