// Package catalog resolves region identifiers to GeoJSON boundaries stored
// in the object store, a local directory or memory.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/okian/geocomp/internal/adapters/objectstore"
	"github.com/okian/geocomp/internal/domain/region"
)

// Extension of region assets.
const Extension = ".geojson"

func validID(id string) error {
	if id == "" || strings.Contains(id, "..") || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("%w: invalid identifier %q", region.ErrAssetNotFound, id)
	}
	return nil
}

// Getter reads whole objects from a bucket.
type Getter interface {
	Get(ctx context.Context, bucket, key string) ([]byte, error)
}

// Bucket serves regions stored as <id>.geojson in an object store bucket.
type Bucket struct {
	store  Getter
	bucket string
}

// NewBucket returns a catalog reading from bucket.
func NewBucket(store Getter, bucket string) *Bucket {
	return &Bucket{store: store, bucket: bucket}
}

// Region implements composite.Catalog.
func (c *Bucket) Region(ctx context.Context, id string) (*region.Region, error) {
	if err := validID(id); err != nil {
		return nil, err
	}
	data, err := c.store.Get(ctx, c.bucket, id+Extension)
	if errors.Is(err, objectstore.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", region.ErrAssetNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch region %s: %w", id, err)
	}
	return region.Parse(id, data)
}

// Dir serves regions stored as <root>/<id>.geojson.
type Dir struct {
	root string
}

// NewDir returns a catalog reading below root.
func NewDir(root string) *Dir { return &Dir{root: root} }

// Region implements composite.Catalog.
func (c *Dir) Region(ctx context.Context, id string) (*region.Region, error) {
	if err := validID(id); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(c.root, id+Extension))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", region.ErrAssetNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("read region %s: %w", id, err)
	}
	return region.Parse(id, data)
}

// Memory is an in-process catalog.
type Memory struct {
	mu      sync.RWMutex
	regions map[string]*region.Region
}

// NewMemory returns a catalog holding regions.
func NewMemory(regions ...*region.Region) *Memory {
	m := &Memory{regions: make(map[string]*region.Region, len(regions))}
	for _, r := range regions {
		m.regions[r.ID()] = r
	}
	return m
}

// Add registers or replaces a region.
func (m *Memory) Add(r *region.Region) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.regions[r.ID()] = r
}

// Region implements composite.Catalog.
func (m *Memory) Region(_ context.Context, id string) (*region.Region, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.regions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", region.ErrAssetNotFound, id)
	}
	return r, nil
}
