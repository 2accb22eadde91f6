package composite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/okian/geocomp/internal/domain/cloudmask"
	"github.com/okian/geocomp/internal/domain/raster"
	"github.com/okian/geocomp/pkg/logger"
	"github.com/okian/geocomp/pkg/metrics"
)

// Request declares a composite: which archive, which dates and which region.
type Request struct {
	Archive string    `json:"archive"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Region  string    `json:"region"`
}

// Validate checks that the identifiers are present. Date ranges are never rejected.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Archive) == "" {
		return fmt.Errorf("%w: archive is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(r.Region) == "" {
		return fmt.Errorf("%w: region is required", ErrInvalidRequest)
	}
	return nil
}

// Pipeline builds composites from requests.
type Pipeline struct {
	catalog Catalog
	archive Archive
	logger  logger.Logger
}

// Option applies a configuration option to the Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(l logger.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPipeline returns a pipeline reading regions from catalog and scenes from archive.
func NewPipeline(catalog Catalog, archive Archive, opts ...Option) *Pipeline {
	p := &Pipeline{catalog: catalog, archive: archive}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = logger.Get().Named("pipeline")
	}
	return p
}

// Build loads the region, queries the archive and masks every scene. The
// returned composite is lazy; no scene is read here.
func (p *Pipeline) Build(ctx context.Context, req Request) (*Composite, error) {
	metrics.RecordCompositeRequest()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	r, err := p.catalog.Region(ctx, req.Region)
	if err != nil {
		metrics.RecordRegionLoad("error")
		return nil, fmt.Errorf("load region %q: %w", req.Region, err)
	}
	metrics.RecordRegionLoad("ok")

	info, err := p.archive.Info(ctx, req.Archive)
	if err != nil {
		return nil, fmt.Errorf("archive %q: %w", req.Archive, err)
	}
	col, err := p.archive.Query(ctx, req.Archive, req.Start, req.End)
	if err != nil {
		return nil, fmt.Errorf("query archive %q: %w", req.Archive, err)
	}

	mask := info.Mask
	if len(mask.Bits) == 0 {
		mask = cloudmask.DefaultLandsat8SR()
	}
	masked := col.Map(func(img *raster.Image) (*raster.Image, error) {
		metrics.RecordSceneRead(mask.Ratio(img))
		return mask.Apply(img)
	})

	p.logger.Debug(ctx, "composite built",
		logger.String("archive", req.Archive),
		logger.String("region", req.Region),
		logger.Int("scenes", col.Len()),
		logger.String("start", req.Start.Format(time.DateOnly)),
		logger.String("end", req.End.Format(time.DateOnly)),
	)
	return &Composite{Collection: masked, Region: r, CRS: info.CRS}, nil
}
