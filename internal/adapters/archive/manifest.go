// Package archive serves image archives described by a YAML manifest. Scene
// lists come from the manifest or a scene index; pixels come from GeoTIFFs
// on disk or in the object store.
package archive

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/okian/geocomp/internal/domain/cloudmask"
	"github.com/okian/geocomp/internal/domain/raster"
)

// ErrInvalidManifest is returned for manifests that cannot be used.
var ErrInvalidManifest = errors.New("invalid archive manifest")

// Manifest lists the archives the service can query.
type Manifest struct {
	Archives []Definition `yaml:"archives"`
}

// Definition describes one archive.
type Definition struct {
	ID    string         `yaml:"id"`
	CRS   string         `yaml:"crs"`
	Bands []string       `yaml:"bands"`
	Mask  cloudmask.Mask `yaml:"mask"`
	// Scenes is ignored when a scene index is configured.
	Scenes []Scene `yaml:"scenes"`
}

// Scene is one manifest entry. Location is a path relative to the manifest
// or an s3://bucket/key URL.
type Scene struct {
	ID       string    `yaml:"id"`
	Acquired time.Time `yaml:"acquired"`
	Location string    `yaml:"location"`
}

// LoadManifest reads a manifest file. Relative scene paths are resolved
// against the manifest directory.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	base := filepath.Dir(path)
	for i := range m.Archives {
		for j, s := range m.Archives[i].Scenes {
			if !isRemote(s.Location) && !filepath.IsAbs(s.Location) {
				m.Archives[i].Scenes[j].Location = filepath.Join(base, s.Location)
			}
		}
	}
	return m, nil
}

// ParseManifest decodes and validates a manifest.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}
	seen := map[string]bool{}
	for i := range m.Archives {
		d := &m.Archives[i]
		if d.ID == "" {
			return nil, fmt.Errorf("%w: archive %d has no id", ErrInvalidManifest, i)
		}
		if seen[d.ID] {
			return nil, fmt.Errorf("%w: duplicate archive %s", ErrInvalidManifest, d.ID)
		}
		seen[d.ID] = true
		if len(d.Bands) == 0 {
			return nil, fmt.Errorf("%w: archive %s has no bands", ErrInvalidManifest, d.ID)
		}
		if len(d.Mask.Bits) == 0 {
			d.Mask = cloudmask.DefaultLandsat8SR()
		}
		for _, s := range d.Scenes {
			if s.ID == "" || s.Location == "" {
				return nil, fmt.Errorf("%w: archive %s has a scene without id or location", ErrInvalidManifest, d.ID)
			}
		}
	}
	return &m, nil
}

// Encode writes the manifest as YAML.
func (m *Manifest) Encode() ([]byte, error) {
	return yaml.Marshal(m)
}

func (d Definition) refs() []raster.SceneRef {
	out := make([]raster.SceneRef, len(d.Scenes))
	for i, s := range d.Scenes {
		out[i] = raster.SceneRef{ID: s.ID, Acquired: s.Acquired, Location: s.Location}
	}
	return out
}
