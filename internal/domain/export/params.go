// Package export describes export requests, the pixel ceiling guarding them
// and the contract of the asynchronous job submitter.
package export

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/bits"
	"path"
	"regexp"
	"strings"

	"github.com/okian/geocomp/internal/domain/raster"
	"github.com/okian/geocomp/internal/domain/region"
)

const (
	// DefaultMaxPixels applies when Params.MaxPixels is zero.
	DefaultMaxPixels int64 = 1e8
	// NoData is written for masked pixels of exported rasters.
	NoData = -9999.0
	// Extension of exported files.
	Extension = ".tif"
)

var descriptionRE = regexp.MustCompile(`^[A-Za-z0-9_.,:;-]+$`)

// Params are the parameters of one export.
type Params struct {
	// Description names the task and the output file.
	Description string `json:"description"`
	// Folder is the destination prefix inside the export bucket.
	Folder    string   `json:"folder"`
	Bands     []string `json:"bands"`
	Scale     float64  `json:"scale"`
	MaxPixels int64    `json:"max_pixels"`
	// CRS of the output grid. Empty means the composite's CRS.
	CRS string `json:"crs,omitempty"`
	// Region bounds the export grid.
	Region *region.Region `json:"-"`
}

// WithDefaults returns a copy with zero values replaced by defaults.
func (p Params) WithDefaults() Params {
	if p.MaxPixels == 0 {
		p.MaxPixels = DefaultMaxPixels
	}
	p.Bands = append([]string(nil), p.Bands...)
	return p
}

// Validate checks the parameters without looking at any pixels.
func (p Params) Validate() error {
	switch {
	case p.Description == "":
		return fmt.Errorf("%w: description is required", ErrInvalidParams)
	case !descriptionRE.MatchString(p.Description):
		return fmt.Errorf("%w: description %q may only contain letters, digits and _.,:;-", ErrInvalidParams, p.Description)
	case strings.Contains(p.Folder, ".."):
		return fmt.Errorf("%w: folder %q", ErrInvalidParams, p.Folder)
	case p.Scale <= 0:
		return fmt.Errorf("%w: scale must be positive, got %v", ErrInvalidParams, p.Scale)
	case len(p.Bands) == 0:
		return fmt.Errorf("%w: at least one band is required", ErrInvalidParams)
	case p.MaxPixels <= 0:
		return fmt.Errorf("%w: max pixels must be positive, got %d", ErrInvalidParams, p.MaxPixels)
	case p.Region == nil:
		return fmt.Errorf("%w: region is required", ErrInvalidParams)
	}
	for _, b := range p.Bands {
		if strings.TrimSpace(b) == "" {
			return fmt.Errorf("%w: empty band name", ErrInvalidParams)
		}
	}
	return nil
}

// Grid returns the export grid: the region bound snapped to Scale.
func (p Params) Grid() (raster.Grid, error) {
	if p.Region == nil {
		return raster.Grid{}, fmt.Errorf("%w: region is required", ErrInvalidParams)
	}
	return raster.GridFor(p.Region.Bound(), p.Scale, p.CRS)
}

// EstimatePixels is width * height * bands of the export grid. Counts that
// do not fit an int64, and grids too large to allocate, are ErrTooManyPixels.
func EstimatePixels(p Params) (int64, error) {
	g, err := p.Grid()
	if errors.Is(err, raster.ErrGridTooLarge) {
		return 0, fmt.Errorf("%w: %w", ErrTooManyPixels, err)
	}
	if err != nil {
		return 0, err
	}
	hi, px := bits.Mul64(uint64(g.Width), uint64(g.Height))
	if hi == 0 {
		hi, px = bits.Mul64(px, uint64(len(p.Bands)))
	}
	if hi != 0 || px > math.MaxInt64 {
		return 0, fmt.Errorf("%w: %dx%d grid with %d bands overflows", ErrTooManyPixels, g.Width, g.Height, len(p.Bands))
	}
	return int64(px), nil
}

// CheckPixels fails with ErrTooManyPixels when the export would exceed MaxPixels.
// Exports are never truncated to fit.
func CheckPixels(p Params) (int64, error) {
	n, err := EstimatePixels(p)
	if err != nil {
		return n, err
	}
	if n > p.MaxPixels {
		return n, fmt.Errorf("%w: %d pixels requested, limit %d", ErrTooManyPixels, n, p.MaxPixels)
	}
	return n, nil
}

// ObjectKey is the key of the output object inside the export bucket.
func (p Params) ObjectKey() string {
	return path.Join(strings.Trim(p.Folder, "/"), p.Description+Extension)
}

// Location formats the destination URL of an export.
func Location(bucket string, p Params) string {
	return "s3://" + bucket + "/" + p.ObjectKey()
}

// Source renders the image to export on a grid.
type Source interface {
	Render(ctx context.Context, grid raster.Grid) (*raster.Image, error)
}

// JobHandle identifies a submitted export.
type JobHandle struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Location string `json:"location"`
}

// Submitter hands exports to the asynchronous job queue. Submit returns as
// soon as the job is queued; it never waits for the export to run.
type Submitter interface {
	Submit(ctx context.Context, src Source, p Params) (JobHandle, error)
}
