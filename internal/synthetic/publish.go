package synthetic

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/okian/geocomp/internal/adapters/archive"
	"github.com/okian/geocomp/internal/domain/raster"
	"github.com/okian/geocomp/pkg/logger"
)

// Uploader copies local files into a bucket.
type Uploader interface {
	Upload(ctx context.Context, bucket, key, path, contentType string) (int64, error)
}

// Indexer records scene references of an archive.
type Indexer interface {
	Upsert(ctx context.Context, archive string, refs ...raster.SceneRef) error
}

// Published says where Publish put things.
type Published struct {
	Scenes int
	Bytes  int64
}

// Publish uploads the region to assetsBucket and every scene to
// scenesBucket, rewriting scene locations to s3:// URLs, and records the
// scenes in idx when it is not nil. The manifest file is rewritten to match.
func Publish(ctx context.Context, res *Result, up Uploader, assetsBucket, scenesBucket string, idx Indexer) (Published, error) {
	log := logger.Get().Named("synthetic")
	var out Published

	regionKey := filepath.Base(res.RegionPath)
	if _, err := up.Upload(ctx, assetsBucket, regionKey, res.RegionPath, "application/geo+json"); err != nil {
		return out, fmt.Errorf("upload region: %w", err)
	}

	base := filepath.Dir(res.ManifestPath)
	for a := range res.Manifest.Archives {
		def := &res.Manifest.Archives[a]
		refs := make([]raster.SceneRef, 0, len(def.Scenes))
		for s := range def.Scenes {
			sc := &def.Scenes[s]
			local := sc.Location
			if !filepath.IsAbs(local) {
				local = filepath.Join(base, local)
			}
			key := def.ID + "/" + filepath.Base(local)
			n, err := up.Upload(ctx, scenesBucket, key, local, "image/tiff")
			if err != nil {
				return out, fmt.Errorf("upload %s: %w", sc.ID, err)
			}
			sc.Location = "s3://" + scenesBucket + "/" + key
			refs = append(refs, raster.SceneRef{ID: sc.ID, Acquired: sc.Acquired, Location: sc.Location})
			out.Scenes++
			out.Bytes += n
		}
		if idx != nil {
			if err := idx.Upsert(ctx, def.ID, refs...); err != nil {
				return out, fmt.Errorf("index %s: %w", def.ID, err)
			}
		}
	}

	if err := writeManifest(res.ManifestPath, res.Manifest); err != nil {
		return out, err
	}
	log.Info(ctx, "archive published",
		logger.Int("scenes", out.Scenes),
		logger.Int64("bytes", out.Bytes),
		logger.String("assets", assetsBucket+"/"+regionKey),
	)
	return out, nil
}

func writeManifest(path string, m *archive.Manifest) error {
	data, err := m.Encode()
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	return writeFile(path, data)
}
