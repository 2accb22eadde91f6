// Package geotiff reads and writes multi-band rasters as GeoTIFF through GDAL.
package geotiff

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/airbusgeo/godal"

	"github.com/okian/geocomp/internal/domain/raster"
)

// ErrNoBands is returned when a dataset or band directory holds no bands.
var ErrNoBands = errors.New("no raster bands found")

var registerOnce sync.Once

// Register loads the GDAL drivers. It is safe to call more than once.
func Register() {
	registerOnce.Do(godal.RegisterAll)
}

// Codec writes images as Float64 GeoTIFF with a fixed no-data value.
type Codec struct {
	NoData float64
	// Options are GTiff creation options such as COMPRESS=DEFLATE.
	Options []string
}

// NewCodec returns a codec using noData for masked pixels.
func NewCodec(noData float64) *Codec {
	Register()
	return &Codec{NoData: noData, Options: []string{"TILED=YES", "COMPRESS=DEFLATE"}}
}

// Write encodes img to path. Every band keeps its name as band description.
func (c *Codec) Write(path string, img *raster.Image) error {
	bands := img.Bands()
	if len(bands) == 0 {
		return ErrNoBands
	}
	g := img.Grid
	ds, err := godal.Create(godal.GTiff, path, len(bands), godal.Float64, g.Width, g.Height,
		godal.CreationOption(c.Options...))
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	werr := c.write(ds, img)
	if err := ds.Close(); err != nil && werr == nil {
		werr = fmt.Errorf("close %s: %w", path, err)
	}
	if werr != nil {
		_ = os.Remove(path)
	}
	return werr
}

func (c *Codec) write(ds *godal.Dataset, img *raster.Image) error {
	g := img.Grid
	if err := ds.SetGeoTransform(g.GeoTransform()); err != nil {
		return fmt.Errorf("set geotransform: %w", err)
	}
	if g.CRS != "" {
		sr, err := spatialRef(g.CRS)
		if err != nil {
			return err
		}
		defer sr.Close()
		if err := ds.SetSpatialRef(sr); err != nil {
			return fmt.Errorf("set spatial ref: %w", err)
		}
	}
	buf := make([]float64, g.Len())
	for i, band := range ds.Bands() {
		src := img.Bands()[i]
		for p := range buf {
			if src.Valid[p] {
				buf[p] = src.Data[p]
			} else {
				buf[p] = c.NoData
			}
		}
		if err := band.SetNoData(c.NoData); err != nil {
			return fmt.Errorf("band %s: set nodata: %w", src.Name, err)
		}
		if err := band.SetDescription(src.Name); err != nil {
			return fmt.Errorf("band %s: set description: %w", src.Name, err)
		}
		if err := band.Write(0, 0, buf, g.Width, g.Height); err != nil {
			return fmt.Errorf("band %s: write: %w", src.Name, err)
		}
	}
	return nil
}

// Read decodes a GeoTIFF. Bands are named by their description, falling back
// to names when given positionally, then to B1..Bn.
func Read(path string, names ...string) (*raster.Image, error) {
	Register()
	ds, err := godal.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer ds.Close()

	st := ds.Structure()
	if st.NBands == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoBands, path)
	}
	gt, err := ds.GeoTransform()
	if err != nil {
		return nil, fmt.Errorf("geotransform %s: %w", path, err)
	}
	grid, err := raster.GridFromGeoTransform(gt, st.SizeX, st.SizeY, crsOf(ds))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	bands := make([]*raster.Band, 0, st.NBands)
	buf := make([]float64, grid.Len())
	for i, b := range ds.Bands() {
		name := b.Description()
		if i < len(names) && names[i] != "" {
			name = names[i]
		}
		if name == "" {
			name = "B" + strconv.Itoa(i+1)
		}
		if err := b.Read(0, 0, buf, st.SizeX, st.SizeY); err != nil {
			return nil, fmt.Errorf("read %s band %d: %w", path, i+1, err)
		}
		nd, hasND := b.NoData()
		out := raster.NewBand(name, len(buf))
		for p, v := range buf {
			if math.IsNaN(v) || (hasND && v == nd) {
				continue
			}
			out.Set(p, v)
		}
		bands = append(bands, out)
	}
	return raster.NewImage(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)), time.Time{}, grid, bands...)
}

var bandFileRE = regexp.MustCompile(`B(\d+)`)

// ReadBandDir reads a directory of single-band files whose names carry a
// band number (LC08_..._B4.TIF) and stacks them as B1..Bn. All files must
// share one grid.
func ReadBandDir(dir string) (*raster.Image, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read band dir: %w", err)
	}
	files := map[int]string{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := bandFileRE.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		files[n] = filepath.Join(dir, e.Name())
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoBands, dir)
	}
	nums := make([]int, 0, len(files))
	for n := range files {
		nums = append(nums, n)
	}
	sort.Ints(nums)

	var grid raster.Grid
	bands := make([]*raster.Band, 0, len(nums))
	for i, n := range nums {
		img, err := Read(files[n])
		if err != nil {
			return nil, err
		}
		if i == 0 {
			grid = img.Grid
		} else if img.Grid != grid {
			return nil, fmt.Errorf("%w: %s is not on the grid of the other bands", raster.ErrShape, files[n])
		}
		b := img.Bands()[0]
		b.Name = "B" + strconv.Itoa(n)
		bands = append(bands, b)
	}
	return raster.NewImage(filepath.Base(dir), time.Time{}, grid, bands...)
}

// spatialRef builds a spatial reference from "EPSG:<code>" or WKT.
func spatialRef(crs string) (*godal.SpatialRef, error) {
	if code, ok := strings.CutPrefix(strings.ToUpper(crs), "EPSG:"); ok {
		n, err := strconv.Atoi(code)
		if err != nil {
			return nil, fmt.Errorf("invalid crs %q: %w", crs, err)
		}
		sr, err := godal.NewSpatialRefFromEPSG(n)
		if err != nil {
			return nil, fmt.Errorf("crs %q: %w", crs, err)
		}
		return sr, nil
	}
	sr, err := godal.NewSpatialRefFromWKT(crs)
	if err != nil {
		return nil, fmt.Errorf("crs %q: %w", crs, err)
	}
	return sr, nil
}

func crsOf(ds *godal.Dataset) string {
	sr := ds.SpatialRef()
	if sr == nil {
		return ""
	}
	defer sr.Close()
	if name, code := sr.AuthorityName(""), sr.AuthorityCode(""); name != "" && code != "" {
		return name + ":" + code
	}
	wkt, err := sr.WKT()
	if err != nil {
		return ""
	}
	return wkt
}
