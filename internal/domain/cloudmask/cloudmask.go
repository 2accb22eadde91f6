// Package cloudmask removes cloud and cloud-shadow pixels from scenes using
// the bit-packed quality band that ships with surface reflectance products.
package cloudmask

import (
	"errors"
	"fmt"
	"math"

	"github.com/okian/geocomp/internal/domain/raster"
)

// ErrMissingQABand is returned when an image has no quality band to read flags from.
var ErrMissingQABand = errors.New("quality band not found")

const (
	// BitCloudShadow is set in pixel_qa where the pixel is in cloud shadow.
	BitCloudShadow uint = 3
	// BitCloud is set in pixel_qa where the pixel is cloudy.
	BitCloud uint = 5

	// DefaultQABand is the Landsat 8 surface reflectance quality band.
	DefaultQABand = "pixel_qa"
)

// Mask flags pixels whose quality band has any of Bits set.
type Mask struct {
	QABand string `json:"qa_band" yaml:"qa_band"`
	Bits   []uint `json:"bits" yaml:"bits"`
}

// DefaultLandsat8SR masks cloud shadow and cloud on Landsat 8 surface reflectance.
func DefaultLandsat8SR() Mask {
	return Mask{QABand: DefaultQABand, Bits: []uint{BitCloudShadow, BitCloud}}
}

func (m Mask) band() string {
	if m.QABand == "" {
		return DefaultQABand
	}
	return m.QABand
}

func (m Mask) flags() uint64 {
	var f uint64
	for _, b := range m.Bits {
		f |= 1 << b
	}
	return f
}

// Clear reports whether a QA value has none of the mask bits set.
func (m Mask) Clear(qa float64) bool {
	return uint64(int64(qa))&m.flags() == 0
}

// Apply returns a copy of img where every band is no-data wherever the QA
// value flags the pixel or is itself no-data. img is not modified.
func (m Mask) Apply(img *raster.Image) (*raster.Image, error) {
	name := m.band()
	qa, ok := img.Band(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s in scene %s", ErrMissingQABand, name, img.ID)
	}
	flags := m.flags()
	keep := make([]bool, len(qa.Data))
	for i, v := range qa.Data {
		if !qa.Valid[i] || math.IsNaN(v) || v < 0 {
			continue
		}
		keep[i] = uint64(v)&flags == 0
	}
	return img.UpdateMask(keep)
}

// Ratio is the fraction of QA pixels that Apply would mask, counting no-data as masked.
func (m Mask) Ratio(img *raster.Image) float64 {
	qa, ok := img.Band(m.band())
	if !ok || len(qa.Data) == 0 {
		return 0
	}
	masked := 0
	for i, v := range qa.Data {
		if !qa.Valid[i] || !m.Clear(v) {
			masked++
		}
	}
	return float64(masked) / float64(len(qa.Data))
}
