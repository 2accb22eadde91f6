// Package raster implements the in-memory raster model: grids, multi-band
// images with per-pixel validity, lazy collections and the reducers applied
// to them.
package raster

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// MaxGridSide bounds the width and height of a grid so that pixel counts
// stay representable.
const MaxGridSide = math.MaxInt32

// Grid is a north-up affine pixel grid. Origin is the upper-left corner.
type Grid struct {
	OriginX     float64 `json:"origin_x"`
	OriginY     float64 `json:"origin_y"`
	PixelWidth  float64 `json:"pixel_width"`
	PixelHeight float64 `json:"pixel_height"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	CRS         string  `json:"crs,omitempty"`
}

// GridFor snaps bound outwards to multiples of scale and returns the covering grid.
func GridFor(b orb.Bound, scale float64, crs string) (Grid, error) {
	if scale <= 0 || math.IsNaN(scale) || math.IsInf(scale, 0) {
		return Grid{}, fmt.Errorf("%w: scale must be positive, got %v", ErrInvalidGrid, scale)
	}
	if b.Max[0] < b.Min[0] || b.Max[1] < b.Min[1] {
		return Grid{}, fmt.Errorf("%w: empty bound", ErrInvalidGrid)
	}
	minCol := math.Floor(b.Min[0] / scale)
	maxCol := math.Ceil(b.Max[0] / scale)
	minRow := math.Floor(b.Min[1] / scale)
	maxRow := math.Ceil(b.Max[1] / scale)
	cols, rows := math.Max(1, maxCol-minCol), math.Max(1, maxRow-minRow)
	if !(cols <= MaxGridSide && rows <= MaxGridSide) {
		return Grid{}, fmt.Errorf("%w: %w: %gx%g pixels at scale %v", ErrInvalidGrid, ErrGridTooLarge, cols, rows, scale)
	}
	w, h := int(cols), int(rows)
	return Grid{
		OriginX:     minCol * scale,
		OriginY:     (minRow + float64(h)) * scale,
		PixelWidth:  scale,
		PixelHeight: scale,
		Width:       w,
		Height:      h,
		CRS:         crs,
	}, nil
}

// GridFromGeoTransform builds a grid from a GDAL style geotransform.
// Rotated or south-up transforms are rejected.
func GridFromGeoTransform(gt [6]float64, width, height int, crs string) (Grid, error) {
	if gt[2] != 0 || gt[4] != 0 {
		return Grid{}, fmt.Errorf("%w: rotated geotransform", ErrInvalidGrid)
	}
	if gt[1] <= 0 || gt[5] >= 0 {
		return Grid{}, fmt.Errorf("%w: geotransform must be north-up", ErrInvalidGrid)
	}
	g := Grid{OriginX: gt[0], OriginY: gt[3], PixelWidth: gt[1], PixelHeight: -gt[5], Width: width, Height: height, CRS: crs}
	return g, g.Validate()
}

// Validate checks that the grid has a positive size.
func (g Grid) Validate() error {
	if g.Width <= 0 || g.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidGrid, g.Width, g.Height)
	}
	if g.Width > MaxGridSide || g.Height > MaxGridSide {
		return fmt.Errorf("%w: %w: %dx%d", ErrInvalidGrid, ErrGridTooLarge, g.Width, g.Height)
	}
	if g.PixelWidth <= 0 || g.PixelHeight <= 0 {
		return fmt.Errorf("%w: pixel size %vx%v", ErrInvalidGrid, g.PixelWidth, g.PixelHeight)
	}
	return nil
}

// Len is the number of pixels in one band.
func (g Grid) Len() int { return g.Width * g.Height }

// GeoTransform returns the GDAL style geotransform of the grid.
func (g Grid) GeoTransform() [6]float64 {
	return [6]float64{g.OriginX, g.PixelWidth, 0, g.OriginY, 0, -g.PixelHeight}
}

// Center returns the map coordinates of the centre of pixel (col, row).
func (g Grid) Center(col, row int) (float64, float64) {
	return g.OriginX + (float64(col)+0.5)*g.PixelWidth, g.OriginY - (float64(row)+0.5)*g.PixelHeight
}

// Locate returns the flat pixel index containing (x, y), or false outside the grid.
func (g Grid) Locate(x, y float64) (int, bool) {
	col := int(math.Floor((x - g.OriginX) / g.PixelWidth))
	row := int(math.Floor((g.OriginY - y) / g.PixelHeight))
	if col < 0 || row < 0 || col >= g.Width || row >= g.Height {
		return 0, false
	}
	return row*g.Width + col, true
}

// Bound returns the map extent of the grid.
func (g Grid) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{g.OriginX, g.OriginY - float64(g.Height)*g.PixelHeight},
		Max: orb.Point{g.OriginX + float64(g.Width)*g.PixelWidth, g.OriginY},
	}
}

// resampleIndex maps every pixel of dst to the nearest pixel of g (-1 outside).
func (g Grid) resampleIndex(dst Grid) []int {
	idx := make([]int, dst.Len())
	for row := 0; row < dst.Height; row++ {
		for col := 0; col < dst.Width; col++ {
			x, y := dst.Center(col, row)
			i, ok := g.Locate(x, y)
			if !ok {
				i = -1
			}
			idx[row*dst.Width+col] = i
		}
	}
	return idx
}
