package raster

import (
	"context"
	"fmt"
	"time"
)

// Clipper decides whether a map coordinate is inside a boundary.
type Clipper interface {
	Contains(x, y float64) bool
}

type accumulator struct {
	sum   []float64
	count []int
}

// Mean reduces the collection along time. For every band and every pixel of
// grid the result is the arithmetic mean of the valid observations; pixels
// without observations are no-data. Images are sampled on grid by nearest
// neighbour. Bands of the collection schema always appear in the output,
// even when the collection is empty.
func Mean(ctx context.Context, c *Collection, grid Grid) (*Image, error) {
	if err := grid.Validate(); err != nil {
		return nil, err
	}
	n := grid.Len()
	order := make([]string, 0, len(c.schema))
	acc := make(map[string]*accumulator, len(c.schema))
	ensure := func(name string) *accumulator {
		a, ok := acc[name]
		if !ok {
			a = &accumulator{sum: make([]float64, n), count: make([]int, n)}
			acc[name] = a
			order = append(order, name)
		}
		return a
	}
	for _, name := range c.schema {
		ensure(name)
	}

	for img, err := range c.All(ctx) {
		if err != nil {
			return nil, fmt.Errorf("reduce mean: %w", err)
		}
		var idx []int
		if img.Grid != grid {
			idx = img.Grid.resampleIndex(grid)
		}
		for _, b := range img.bands {
			a := ensure(b.Name)
			for i := 0; i < n; i++ {
				src := i
				if idx != nil {
					src = idx[i]
					if src < 0 {
						continue
					}
				}
				if b.Valid[src] {
					a.sum[i] += b.Data[src]
					a.count[i]++
				}
			}
		}
	}

	bands := make([]*Band, 0, len(order))
	for _, name := range order {
		a := acc[name]
		out := NewBand(name, n)
		for i := 0; i < n; i++ {
			if a.count[i] > 0 {
				out.Set(i, a.sum[i]/float64(a.count[i]))
			}
		}
		bands = append(bands, out)
	}
	return NewImage("mean", time.Time{}, grid, bands...)
}

// Clip returns a copy of img where pixels whose centre falls outside r are no-data.
// Clipping twice with the same boundary gives the same image.
func Clip(img *Image, r Clipper) *Image {
	keep := make([]bool, img.Grid.Len())
	for row := 0; row < img.Grid.Height; row++ {
		for col := 0; col < img.Grid.Width; col++ {
			x, y := img.Grid.Center(col, row)
			keep[row*img.Grid.Width+col] = r.Contains(x, y)
		}
	}
	out, _ := img.UpdateMask(keep)
	return out
}
