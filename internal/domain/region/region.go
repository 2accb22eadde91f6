// Package region holds the named polygon boundaries used to clip composites
// and bound exports.
package region

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// Sentinel kinds for region errors.
var (
	ErrAssetNotFound   = errors.New("asset not found")
	ErrInvalidGeometry = errors.New("asset has no polygonal geometry")
)

// Region is a named polygon or multi-polygon boundary. It is immutable once built.
type Region struct {
	id       string
	geometry orb.MultiPolygon
	bound    orb.Bound
}

// New builds a Region from a multipolygon. Empty geometry is rejected.
func New(id string, mp orb.MultiPolygon) (*Region, error) {
	if len(mp) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidGeometry, id)
	}
	// Copy so callers cannot mutate the region through the slice they passed.
	cp, ok := orb.Clone(mp).(orb.MultiPolygon)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidGeometry, id)
	}
	return &Region{id: id, geometry: cp, bound: cp.Bound()}, nil
}

// FromFeatureCollection merges every Polygon and MultiPolygon feature of fc into one region.
// Non-polygonal features are ignored.
func FromFeatureCollection(id string, fc *geojson.FeatureCollection) (*Region, error) {
	if fc == nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidGeometry, id)
	}
	var mp orb.MultiPolygon
	for _, f := range fc.Features {
		switch g := f.Geometry.(type) {
		case orb.Polygon:
			mp = append(mp, g)
		case orb.MultiPolygon:
			mp = append(mp, g...)
		}
	}
	return New(id, mp)
}

// Parse decodes a GeoJSON document (FeatureCollection, Feature or bare geometry).
func Parse(id string, data []byte) (*Region, error) {
	if fc, err := geojson.UnmarshalFeatureCollection(data); err == nil && len(fc.Features) > 0 {
		return FromFeatureCollection(id, fc)
	}
	if f, err := geojson.UnmarshalFeature(data); err == nil && f.Geometry != nil {
		return FromFeatureCollection(id, &geojson.FeatureCollection{Features: []*geojson.Feature{f}})
	}
	g, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidGeometry, id, err)
	}
	return FromFeatureCollection(id, &geojson.FeatureCollection{Features: []*geojson.Feature{geojson.NewFeature(g.Geometry())}})
}

// ID returns the asset identifier the region was loaded from.
func (r *Region) ID() string { return r.id }

// Bound returns the bounding box of the region.
func (r *Region) Bound() orb.Bound { return r.bound }

// Geometry returns a copy of the region geometry.
func (r *Region) Geometry() orb.MultiPolygon {
	cp, _ := orb.Clone(r.geometry).(orb.MultiPolygon)
	return cp
}

// Contains reports whether (x, y) is inside the region. Holes are excluded.
func (r *Region) Contains(x, y float64) bool {
	p := orb.Point{x, y}
	if !r.bound.Contains(p) {
		return false
	}
	return planar.MultiPolygonContains(r.geometry, p)
}

// Area returns the planar area in squared CRS units.
func (r *Region) Area() float64 {
	return planar.Area(r.geometry)
}
