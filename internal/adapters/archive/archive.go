package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/okian/geocomp/internal/adapters/geotiff"
	"github.com/okian/geocomp/internal/domain/composite"
	"github.com/okian/geocomp/internal/domain/raster"
	"github.com/okian/geocomp/pkg/logger"
)

// Index lists scenes of an archive acquired in [start, end).
type Index interface {
	Scenes(ctx context.Context, archive string, start, end time.Time) ([]raster.SceneRef, error)
}

// Downloader copies objects to local files.
type Downloader interface {
	Download(ctx context.Context, bucket, key, path string) error
}

// ReadFunc decodes a raster file, naming bands positionally.
type ReadFunc func(path string, names ...string) (*raster.Image, error)

// Archive implements composite.Archive over manifest definitions.
type Archive struct {
	defs       map[string]Definition
	index      Index
	downloader Downloader
	stagingDir string
	read       ReadFunc
	logger     logger.Logger
}

// Option applies a configuration option to the Archive.
type Option func(*Archive)

// WithIndex lists scenes from idx instead of the manifest.
func WithIndex(idx Index) Option {
	return func(a *Archive) { a.index = idx }
}

// WithDownloader fetches s3:// scenes through d into stagingDir.
func WithDownloader(d Downloader, stagingDir string) Option {
	return func(a *Archive) {
		a.downloader = d
		a.stagingDir = stagingDir
	}
}

// WithReader replaces the GeoTIFF decoder.
func WithReader(read ReadFunc) Option {
	return func(a *Archive) {
		if read != nil {
			a.read = read
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(a *Archive) {
		if l != nil {
			a.logger = l
		}
	}
}

// New returns an archive over the manifest definitions.
func New(m *Manifest, opts ...Option) *Archive {
	a := &Archive{defs: make(map[string]Definition, len(m.Archives)), read: geotiff.Read}
	for _, d := range m.Archives {
		a.defs[d.ID] = d
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = logger.Get().Named("archive")
	}
	return a
}

// IDs lists the archive identifiers in order.
func (a *Archive) IDs() []string {
	ids := make([]string, 0, len(a.defs))
	for id := range a.defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Info implements composite.Archive.
func (a *Archive) Info(_ context.Context, id string) (composite.ArchiveInfo, error) {
	d, ok := a.defs[id]
	if !ok {
		return composite.ArchiveInfo{}, fmt.Errorf("%w: %s", composite.ErrArchiveNotFound, id)
	}
	return composite.ArchiveInfo{ID: d.ID, CRS: d.CRS, Bands: append([]string(nil), d.Bands...), Mask: d.Mask}, nil
}

// Query implements composite.Archive. Nothing is read until the collection is iterated.
func (a *Archive) Query(ctx context.Context, id string, start, end time.Time) (*raster.Collection, error) {
	d, ok := a.defs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", composite.ErrArchiveNotFound, id)
	}
	refs := d.refs()
	if a.index != nil {
		var err error
		if refs, err = a.index.Scenes(ctx, id, start, end); err != nil {
			return nil, fmt.Errorf("scene index: %w", err)
		}
	}
	a.logger.Debug(ctx, "archive query",
		logger.String("archive", id),
		logger.Int("scenes", len(refs)),
	)
	return raster.NewCollection(d.Bands, refs, a.opener(d)).FilterDate(start, end), nil
}

func (a *Archive) opener(d Definition) raster.OpenFunc {
	return func(ctx context.Context, ref raster.SceneRef) (*raster.Image, error) {
		path, cleanup, err := a.fetch(ctx, ref.Location)
		if err != nil {
			return nil, fmt.Errorf("fetch scene %s: %w", ref.ID, err)
		}
		defer cleanup()
		img, err := a.read(path, d.Bands...)
		if err != nil {
			return nil, fmt.Errorf("read scene %s: %w", ref.ID, err)
		}
		if img.Grid.CRS == "" {
			img.Grid.CRS = d.CRS
		}
		out, err := raster.NewImage(ref.ID, ref.Acquired, img.Grid, img.Bands()...)
		if err != nil {
			return nil, fmt.Errorf("scene %s: %w", ref.ID, err)
		}
		return out, nil
	}
}

func isRemote(location string) bool { return strings.HasPrefix(location, "s3://") }

// fetch returns a local path for location and a cleanup for staged copies.
func (a *Archive) fetch(ctx context.Context, location string) (string, func(), error) {
	if !isRemote(location) {
		return location, func() {}, nil
	}
	if a.downloader == nil {
		return "", nil, fmt.Errorf("no object store configured for %s", location)
	}
	bucket, key, ok := strings.Cut(strings.TrimPrefix(location, "s3://"), "/")
	if !ok || key == "" {
		return "", nil, fmt.Errorf("malformed location %q", location)
	}
	f, err := os.CreateTemp(a.stagingDir, "scene-*"+filepath.Ext(key))
	if err != nil {
		return "", nil, fmt.Errorf("stage scene: %w", err)
	}
	path := f.Name()
	_ = f.Close()
	cleanup := func() { _ = os.Remove(path) }
	if err := a.downloader.Download(ctx, bucket, key, path); err != nil {
		cleanup()
		return "", nil, err
	}
	return path, cleanup, nil
}
