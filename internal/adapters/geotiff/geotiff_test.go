package geotiff_test

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/geocomp/internal/adapters/geotiff"
	"github.com/okian/geocomp/internal/domain/raster"
	. "github.com/smartystreets/goconvey/convey"
)

var grid = raster.Grid{OriginX: 399960, OriginY: 5800020, PixelWidth: 30, PixelHeight: 30, Width: 3, Height: 2, CRS: "EPSG:32632"}

func band(name string, values ...float64) *raster.Band {
	b := raster.NewBand(name, len(values))
	for i, v := range values {
		if !math.IsNaN(v) {
			b.Set(i, v)
		}
	}
	return b
}

func TestCodec(t *testing.T) {
	Convey("Given a two band image with masked pixels", t, func() {
		nan := math.NaN()
		img, err := raster.NewImage("mean", time.Time{}, grid,
			band("B1", 1.5, 2, nan, 4, 5, 6),
			band("pixel_qa", 66, nan, 66, 66, 66, 322),
		)
		So(err, ShouldBeNil)
		path := filepath.Join(t.TempDir(), "L8_B1_2022.tif")
		codec := geotiff.NewCodec(-9999)

		Convey("When it is written and read back", func() {
			So(codec.Write(path, img), ShouldBeNil)
			back, err := geotiff.Read(path)
			So(err, ShouldBeNil)

			Convey("Then grid, band names and values survive", func() {
				So(back.Grid, ShouldResemble, grid)
				So(back.BandNames(), ShouldResemble, []string{"B1", "pixel_qa"})
				b1, _ := back.Band("B1")
				So(b1.Data[0], ShouldEqual, 1.5)
				So(b1.Valid, ShouldResemble, []bool{true, true, false, true, true, true})
			})

			Convey("And explicit names override descriptions", func() {
				renamed, err := geotiff.Read(path, "blue")
				So(err, ShouldBeNil)
				So(renamed.BandNames(), ShouldResemble, []string{"blue", "pixel_qa"})
			})
		})
	})

	Convey("Given a directory of single band files", t, func() {
		dir := t.TempDir()
		codec := geotiff.NewCodec(-9999)
		for name, v := range map[string]float64{"LC08_T1_B5.TIF": 300, "LC08_T1_B4.TIF": 100, "README.txt": 0} {
			img, err := raster.NewImage(name, time.Time{}, grid, band("x", v, v, v, v, v, v))
			So(err, ShouldBeNil)
			if filepath.Ext(name) == ".TIF" {
				So(codec.Write(filepath.Join(dir, name), img), ShouldBeNil)
			}
		}

		Convey("When the directory is stacked", func() {
			img, err := geotiff.ReadBandDir(dir)

			Convey("Then bands are named after their file number", func() {
				So(err, ShouldBeNil)
				So(img.BandNames(), ShouldResemble, []string{"B4", "B5"})
				b5, _ := img.Band("B5")
				So(b5.Data[0], ShouldEqual, 300)
			})
		})
	})
}
