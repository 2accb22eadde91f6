package synthetic

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/okian/geocomp/internal/adapters/archive"
	"github.com/okian/geocomp/internal/adapters/catalog"
	"github.com/okian/geocomp/internal/domain/cloudmask"
	"github.com/okian/geocomp/internal/domain/raster"
	"github.com/okian/geocomp/pkg/logger"
)

// QA values written by the generator. Clear land has bits 1 and 6 set;
// cloud and shadow add bit 5 or bit 3 on top.
const (
	QAClear  = 322
	QACloud  = QAClear | 1<<cloudmask.BitCloud
	QAShadow = QAClear | 1<<cloudmask.BitCloudShadow
	QAFill   = 1
)

// Reflectance model constants (surface reflectance scaled by 1e4).
const (
	cloudReflectance  = 8000.0
	shadowFactor      = 0.4
	seasonalAmplitude = 0.15
	noiseAmplitude    = 60.0
	daysPerYear       = 365.25
	filePermission    = 0o644
	dirPermission     = 0o755
)

// bandBase is the mean clear-sky reflectance of B1..B7 over vegetated land.
var bandBase = []float64{350, 420, 700, 600, 2800, 1900, 1100}

// Encoder writes one image to a file.
type Encoder interface {
	Write(path string, img *raster.Image) error
}

// Result describes what Generate wrote.
type Result struct {
	Manifest     *archive.Manifest
	ManifestPath string
	RegionPath   string
	Grid         raster.Grid
}

// Generate writes the region asset, every scene and the manifest under cfg.OutDir.
func Generate(ctx context.Context, cfg Config, enc Encoder) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := logger.Get().Named("synthetic")
	grid, err := raster.GridFor(cfg.Bound, cfg.Scale, cfg.CRS)
	if err != nil {
		return nil, err
	}
	sceneDir := filepath.Join(cfg.OutDir, "scenes")
	regionDir := filepath.Join(cfg.OutDir, "regions")
	for _, d := range []string{sceneDir, regionDir} {
		if err := os.MkdirAll(d, dirPermission); err != nil {
			return nil, fmt.Errorf("create %s: %w", d, err)
		}
	}

	regionPath := filepath.Join(regionDir, cfg.RegionID+catalog.Extension)
	if err := writeRegion(regionPath, cfg.RegionID, cfg.Bound); err != nil {
		return nil, err
	}

	dates := Acquisitions(cfg.Start, cfg.Years, cfg.PerYear)
	scenes := make([]archive.Scene, len(dates))
	log.Info(ctx, "generating scenes",
		logger.Int("scenes", len(dates)),
		logger.Int("width", grid.Width),
		logger.Int("height", grid.Height),
	)

	type task struct {
		index int
		date  time.Time
	}
	workers := max(cfg.Workers, 1)
	tasks := make(chan task, workers*2)
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range tasks {
				id := SceneID(t.date)
				rng := rand.New(rand.NewPCG(cfg.Seed, uint64(t.index)))
				img, err := Scene(rng, id, t.date, grid, cfg.Cloud)
				if err != nil {
					errs <- err
					return
				}
				name := id + ".tif"
				if err := enc.Write(filepath.Join(sceneDir, name), img); err != nil {
					errs <- fmt.Errorf("write %s: %w", name, err)
					return
				}
				scenes[t.index] = archive.Scene{ID: id, Acquired: t.date, Location: filepath.Join("scenes", name)}
			}
		}()
	}

	var genErr error
feed:
	for i, d := range dates {
		select {
		case tasks <- task{index: i, date: d}:
		case genErr = <-errs:
			break feed
		case <-ctx.Done():
			genErr = ctx.Err()
			break feed
		}
	}
	close(tasks)
	wg.Wait()
	close(errs)
	if genErr == nil {
		genErr = <-errs
	}
	if genErr != nil {
		return nil, genErr
	}

	m := &archive.Manifest{Archives: []archive.Definition{{
		ID:     cfg.ArchiveID,
		CRS:    cfg.CRS,
		Bands:  append([]string(nil), Bands...),
		Mask:   cloudmask.DefaultLandsat8SR(),
		Scenes: scenes,
	}}}
	manifestPath := filepath.Join(cfg.OutDir, "archives.yaml")
	if err := writeManifest(manifestPath, m); err != nil {
		return nil, err
	}
	log.Info(ctx, "archive written", logger.String("manifest", manifestPath), logger.String("region", regionPath))
	return &Result{Manifest: m, ManifestPath: manifestPath, RegionPath: regionPath, Grid: grid}, nil
}

// Acquisitions spreads perYear dates evenly over each year from start.
func Acquisitions(start time.Time, years, perYear int) []time.Time {
	out := make([]time.Time, 0, years*perYear)
	step := time.Duration(float64(24*time.Hour) * daysPerYear / float64(perYear))
	for y := 0; y < years; y++ {
		first := start.AddDate(y, 0, 0)
		for i := 0; i < perYear; i++ {
			out = append(out, first.Add(time.Duration(i)*step).Truncate(24*time.Hour))
		}
	}
	return out
}

// SceneID names a scene by its acquisition date.
func SceneID(t time.Time) string {
	return "LC08_" + t.Format("20060102")
}

// Scene generates one multi-band image on grid: a seasonal reflectance
// field with noise, a cloud blob covering about cloud of the grid and its
// shadow offset to the south-east.
func Scene(rng *rand.Rand, id string, acquired time.Time, grid raster.Grid, cloud float64) (*raster.Image, error) {
	n := grid.Len()
	bands := make([]*raster.Band, len(Bands))
	for i, name := range Bands {
		bands[i] = raster.NewBand(name, n)
	}
	qa := bands[len(bands)-1]

	season := 1 + seasonalAmplitude*math.Sin(2*math.Pi*float64(acquired.YearDay())/daysPerYear)
	radius := math.Sqrt(cloud*float64(n)/math.Pi) * grid.PixelWidth
	cx := grid.OriginX + rng.Float64()*float64(grid.Width)*grid.PixelWidth
	cy := grid.OriginY - rng.Float64()*float64(grid.Height)*grid.PixelHeight
	sx, sy := cx+radius, cy-radius

	for row := 0; row < grid.Height; row++ {
		for col := 0; col < grid.Width; col++ {
			i := row*grid.Width + col
			x, y := grid.Center(col, row)
			gradient := 1 + 0.1*float64(col)/float64(max(grid.Width-1, 1))
			inCloud := cloud > 0 && math.Hypot(x-cx, y-cy) <= radius
			inShadow := !inCloud && cloud > 0 && math.Hypot(x-sx, y-sy) <= radius
			for b := range bandBase {
				v := bandBase[b]*season*gradient + rng.NormFloat64()*noiseAmplitude
				switch {
				case inCloud:
					v = cloudReflectance + rng.NormFloat64()*noiseAmplitude
				case inShadow:
					v *= shadowFactor
				}
				bands[b].Set(i, math.Max(0, math.Round(v)))
			}
			switch {
			case inCloud:
				qa.Set(i, QACloud)
			case inShadow:
				qa.Set(i, QAShadow)
			default:
				qa.Set(i, QAClear)
			}
		}
	}
	return raster.NewImage(id, acquired, grid, bands...)
}

func writeRegion(path, id string, b orb.Bound) error {
	f := geojson.NewFeature(b.ToPolygon())
	f.Properties["name"] = id
	fc := geojson.NewFeatureCollection().Append(f)
	data, err := fc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode region: %w", err)
	}
	return writeFile(path, data)
}

func writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, filePermission); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}
