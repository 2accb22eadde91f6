// Package synthetic writes a small Landsat-like archive for local runs: one
// region asset, a series of cloudy multi-band scenes and the manifest that
// lists them.
package synthetic

import (
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/paulmach/orb"
)

// ErrInvalidConfig is returned for configurations Generate cannot honour.
var ErrInvalidConfig = errors.New("invalid synthetic archive config")

// Bands of every generated scene, QA band last.
var Bands = []string{"B1", "B2", "B3", "B4", "B5", "B6", "B7", "pixel_qa"}

// Config holds configuration for a generated archive.
type Config struct {
	OutDir    string    // Root directory for scenes, region and manifest
	ArchiveID string    // Archive identifier written to the manifest
	RegionID  string    // Region asset identifier
	CRS       string    // CRS of every scene
	Bound     orb.Bound // Region extent in CRS units
	Scale     float64   // Pixel size in CRS units
	Start     time.Time // First acquisition
	Years     int       // Number of years covered
	PerYear   int       // Scenes per year
	Cloud     float64   // Share of each scene covered by cloud, 0..1
	Seed      uint64    // Seed of the pixel generator
	Workers   int       // Scenes written concurrently
}

// DefaultConfig mirrors the muns_city example: a small UTM extent, 16-day
// revisits over 2020-2022 at 30 m.
func DefaultConfig() Config {
	return Config{
		OutDir:    "testdata/archive",
		ArchiveID: "LANDSAT/LC08/C01/T1_SR",
		RegionID:  "muns_city",
		CRS:       "EPSG:32632",
		Bound:     orb.Bound{Min: orb.Point{399960, 5750010}, Max: orb.Point{405960, 5756010}},
		Scale:     30,
		Start:     time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		Years:     3,
		PerYear:   23,
		Cloud:     0.3,
		Seed:      1,
		Workers:   runtime.NumCPU(),
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch {
	case c.OutDir == "":
		return fmt.Errorf("%w: out dir is required", ErrInvalidConfig)
	case c.ArchiveID == "" || c.RegionID == "":
		return fmt.Errorf("%w: archive and region ids are required", ErrInvalidConfig)
	case c.Scale <= 0:
		return fmt.Errorf("%w: scale must be positive", ErrInvalidConfig)
	case c.Bound.Max[0] <= c.Bound.Min[0] || c.Bound.Max[1] <= c.Bound.Min[1]:
		return fmt.Errorf("%w: empty bound", ErrInvalidConfig)
	case c.Years < 1 || c.PerYear < 1:
		return fmt.Errorf("%w: years and scenes per year must be >= 1", ErrInvalidConfig)
	case c.Cloud < 0 || c.Cloud > 1:
		return fmt.Errorf("%w: cloud share must be within [0, 1]", ErrInvalidConfig)
	}
	return nil
}
