package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/geocomp/internal/domain/composite"
	"github.com/okian/geocomp/internal/domain/raster"
)

// Memory is an in-process archive of decoded images.
type Memory struct {
	info   composite.ArchiveInfo
	images map[string]*raster.Image
	refs   []raster.SceneRef
}

// NewMemory returns an archive holding images.
func NewMemory(info composite.ArchiveInfo, images ...*raster.Image) *Memory {
	m := &Memory{info: info, images: make(map[string]*raster.Image, len(images))}
	for _, img := range images {
		m.images[img.ID] = img
		m.refs = append(m.refs, raster.SceneRef{ID: img.ID, Acquired: img.Acquired})
	}
	return m
}

// Info implements composite.Archive.
func (m *Memory) Info(_ context.Context, id string) (composite.ArchiveInfo, error) {
	if id != m.info.ID {
		return composite.ArchiveInfo{}, fmt.Errorf("%w: %s", composite.ErrArchiveNotFound, id)
	}
	return m.info, nil
}

// Query implements composite.Archive.
func (m *Memory) Query(ctx context.Context, id string, start, end time.Time) (*raster.Collection, error) {
	if _, err := m.Info(ctx, id); err != nil {
		return nil, err
	}
	open := func(_ context.Context, ref raster.SceneRef) (*raster.Image, error) {
		return m.images[ref.ID], nil
	}
	return raster.NewCollection(m.info.Bands, m.refs, open).FilterDate(start, end), nil
}
