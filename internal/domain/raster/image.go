package raster

import (
	"fmt"
	"time"
)

// Band is one pixel plane. Valid[i] is false where the pixel is no-data.
type Band struct {
	Name  string
	Data  []float64
	Valid []bool
}

// NewBand allocates a band of n no-data pixels.
func NewBand(name string, n int) *Band {
	return &Band{Name: name, Data: make([]float64, n), Valid: make([]bool, n)}
}

// Set stores v at i and marks it valid.
func (b *Band) Set(i int, v float64) {
	b.Data[i] = v
	b.Valid[i] = true
}

// ValidCount returns the number of valid pixels.
func (b *Band) ValidCount() int {
	n := 0
	for _, ok := range b.Valid {
		if ok {
			n++
		}
	}
	return n
}

// ValidValues returns the values of valid pixels in index order.
func (b *Band) ValidValues() []float64 {
	out := make([]float64, 0, len(b.Data))
	for i, ok := range b.Valid {
		if ok {
			out = append(out, b.Data[i])
		}
	}
	return out
}

func (b *Band) clone() *Band {
	return &Band{
		Name:  b.Name,
		Data:  append([]float64(nil), b.Data...),
		Valid: append([]bool(nil), b.Valid...),
	}
}

// Image is a multi-band raster on a single grid. Band names are unique.
type Image struct {
	ID       string
	Acquired time.Time
	Grid     Grid

	bands []*Band
	index map[string]int
}

// NewImage validates band shapes and names and builds an image.
func NewImage(id string, acquired time.Time, grid Grid, bands ...*Band) (*Image, error) {
	if err := grid.Validate(); err != nil {
		return nil, err
	}
	img := &Image{ID: id, Acquired: acquired, Grid: grid, index: make(map[string]int, len(bands))}
	for _, b := range bands {
		if len(b.Data) != grid.Len() || len(b.Valid) != grid.Len() {
			return nil, fmt.Errorf("%w: band %s has %d values, grid has %d", ErrShape, b.Name, len(b.Data), grid.Len())
		}
		if _, dup := img.index[b.Name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateBand, b.Name)
		}
		img.index[b.Name] = len(img.bands)
		img.bands = append(img.bands, b)
	}
	return img, nil
}

// Band returns the named band.
func (im *Image) Band(name string) (*Band, bool) {
	i, ok := im.index[name]
	if !ok {
		return nil, false
	}
	return im.bands[i], true
}

// Bands returns the bands in schema order.
func (im *Image) Bands() []*Band {
	return append([]*Band(nil), im.bands...)
}

// BandNames returns the band names in schema order.
func (im *Image) BandNames() []string {
	names := make([]string, len(im.bands))
	for i, b := range im.bands {
		names[i] = b.Name
	}
	return names
}

// Select returns a new image holding only the named bands, in the given order.
func (im *Image) Select(names ...string) (*Image, error) {
	bands := make([]*Band, 0, len(names))
	for _, n := range names {
		b, ok := im.Band(n)
		if !ok {
			return nil, fmt.Errorf("%w: %s (have %v)", ErrUnknownBand, n, im.BandNames())
		}
		bands = append(bands, b.clone())
	}
	return NewImage(im.ID, im.Acquired, im.Grid, bands...)
}

// Clone returns a deep copy.
func (im *Image) Clone() *Image {
	bands := make([]*Band, len(im.bands))
	for i, b := range im.bands {
		bands[i] = b.clone()
	}
	out, _ := NewImage(im.ID, im.Acquired, im.Grid, bands...)
	return out
}

// UpdateMask returns a copy whose pixels are valid only where they were valid
// and keep[i] is true. keep applies to every band. The receiver is not modified.
func (im *Image) UpdateMask(keep []bool) (*Image, error) {
	if len(keep) != im.Grid.Len() {
		return nil, fmt.Errorf("%w: mask has %d values, grid has %d", ErrShape, len(keep), im.Grid.Len())
	}
	out := im.Clone()
	for _, b := range out.bands {
		for i := range b.Valid {
			b.Valid[i] = b.Valid[i] && keep[i]
		}
	}
	return out, nil
}

// Sample returns the value of band name at map coordinates (x, y).
func (im *Image) Sample(name string, x, y float64) (float64, bool) {
	b, ok := im.Band(name)
	if !ok {
		return 0, false
	}
	i, ok := im.Grid.Locate(x, y)
	if !ok || !b.Valid[i] {
		return 0, false
	}
	return b.Data[i], true
}
