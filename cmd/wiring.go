package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/okian/geocomp/internal/adapters/archive"
	"github.com/okian/geocomp/internal/adapters/catalog"
	"github.com/okian/geocomp/internal/adapters/geotiff"
	"github.com/okian/geocomp/internal/adapters/objectstore"
	"github.com/okian/geocomp/internal/adapters/sceneindex"
	service "github.com/okian/geocomp/internal/app"
	"github.com/okian/geocomp/internal/config"
	"github.com/okian/geocomp/internal/domain/composite"
	"github.com/okian/geocomp/pkg/logger"
)

// components are the adapters selected by configuration.
type components struct {
	cfg      *config.Config
	store    *objectstore.Store
	index    *sceneindex.Index
	catalog  composite.Catalog
	archive  *archive.Archive
	pipeline *composite.Pipeline
}

// buildComponents wires the catalog, archive and pipeline. The object store
// is only dialled when something configured needs it.
func buildComponents(ctx context.Context, cfg *config.Config) (*components, error) {
	geotiff.Register()
	log := logger.Get()
	c := &components{cfg: cfg}

	manifest, err := archive.LoadManifest(cfg.ArchivesManifest)
	if err != nil {
		return nil, err
	}

	if cfg.CatalogDir == "" || cfg.ExportDir == "" || hasRemoteScenes(manifest) {
		c.store, err = objectstore.New(objectstore.Config{
			Endpoint:  cfg.StoreEndpoint,
			AccessKey: cfg.StoreAccessKey,
			SecretKey: cfg.StoreSecretKey,
			Region:    cfg.StoreRegion,
			UseSSL:    cfg.StoreUseSSL,
		})
		if err != nil {
			return nil, err
		}
	}

	if cfg.CatalogDir != "" {
		c.catalog = catalog.NewDir(cfg.CatalogDir)
	} else {
		c.catalog = catalog.NewBucket(c.store, cfg.AssetsBucket)
	}

	opts := []archive.Option{}
	if c.store != nil {
		opts = append(opts, archive.WithDownloader(c.store, stagingDir(cfg)))
	}
	if cfg.SceneIndexDSN != "" {
		c.index, err = sceneindex.Open(ctx, sceneindex.DefaultConfig(cfg.SceneIndexDSN))
		if err != nil {
			return nil, err
		}
		if err := c.index.Migrate(ctx); err != nil {
			c.Close()
			return nil, err
		}
		opts = append(opts, archive.WithIndex(c.index))
	}
	c.archive = archive.New(manifest, opts...)
	c.pipeline = composite.NewPipeline(c.catalog, c.archive)

	log.Debug(ctx, "components ready",
		logger.String("manifest", cfg.ArchivesManifest),
		logger.Any("archives", c.archive.IDs()),
		logger.Any("object_store", c.store != nil),
		logger.Any("scene_index", c.index != nil),
	)
	return c, nil
}

// sink returns where exports are written: a local directory or the exports bucket.
func (c *components) sink(ctx context.Context) (service.Sink, error) {
	if c.cfg.ExportDir != "" {
		return objectstore.NewDirSink(c.cfg.ExportDir), nil
	}
	if c.store == nil {
		return nil, fmt.Errorf("%w: exports need export_dir or an object store", config.ErrInvalidConfig)
	}
	if err := c.store.EnsureBucket(ctx, c.cfg.ExportsBucket); err != nil {
		return nil, err
	}
	return objectstore.NewBucketSink(c.store, c.cfg.ExportsBucket), nil
}

// Close releases the scene index connection.
func (c *components) Close() {
	if c.index != nil {
		_ = c.index.Close()
	}
}

func stagingDir(cfg *config.Config) string {
	if cfg.StagingDir != "" {
		return cfg.StagingDir
	}
	return os.TempDir()
}

func hasRemoteScenes(m *archive.Manifest) bool {
	for _, d := range m.Archives {
		for _, s := range d.Scenes {
			if strings.HasPrefix(s.Location, "s3://") {
				return true
			}
		}
	}
	return false
}

// newService builds the export service over the configured components.
func newService(ctx context.Context, c *components, opts ...service.Option) (*service.Service, error) {
	sink, err := c.sink(ctx)
	if err != nil {
		return nil, err
	}
	base := []service.Option{
		service.WithLogger(logger.Get().Named("service")),
		service.WithPipeline(c.pipeline),
		service.WithSink(sink),
		service.WithWorkerCount(c.cfg.WorkerCount),
		service.WithQueueSize(c.cfg.QueueSize),
		service.WithDefaultMaxPixels(int64(c.cfg.DefaultMaxPixels)),
		service.WithStagingDir(stagingDir(c.cfg)),
	}
	return service.New(append(base, opts...)...), nil
}
