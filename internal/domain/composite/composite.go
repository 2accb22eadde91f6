// Package composite wires the region loader, the archive query and the cloud
// mask into a lazy temporal composite.
package composite

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/geocomp/internal/domain/cloudmask"
	"github.com/okian/geocomp/internal/domain/raster"
	"github.com/okian/geocomp/internal/domain/region"
	"github.com/okian/geocomp/pkg/metrics"
)

// Catalog resolves region identifiers to boundaries.
type Catalog interface {
	Region(ctx context.Context, id string) (*region.Region, error)
}

// ArchiveInfo describes an image archive.
type ArchiveInfo struct {
	ID    string         `json:"id"`
	CRS   string         `json:"crs"`
	Bands []string       `json:"bands"`
	Mask  cloudmask.Mask `json:"mask"`
}

// Archive answers date-range queries over image archives.
type Archive interface {
	Info(ctx context.Context, id string) (ArchiveInfo, error)
	// Query returns the lazy collection of scenes acquired in [start, end).
	Query(ctx context.Context, id string, start, end time.Time) (*raster.Collection, error)
}

// Composite is an unevaluated mean composite of a masked collection clipped
// to a region. Nothing is read until Render runs.
type Composite struct {
	Collection *raster.Collection
	Region     *region.Region
	CRS        string
}

// Grid returns the export grid of the composite at scale.
func (c *Composite) Grid(scale float64) (raster.Grid, error) {
	return raster.GridFor(c.Region.Bound(), scale, c.CRS)
}

// Render evaluates the composite on grid: the mean is reduced first, then clipped.
func (c *Composite) Render(ctx context.Context, grid raster.Grid) (*raster.Image, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRenderLatency(float64(time.Since(start).Milliseconds()))
	}()

	mean, err := raster.Mean(ctx, c.Collection, grid)
	if err != nil {
		return nil, fmt.Errorf("render composite: %w", err)
	}
	return raster.Clip(mean, c.Region), nil
}
