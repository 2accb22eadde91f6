package indices_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/okian/geocomp/internal/domain/indices"
	"github.com/okian/geocomp/internal/domain/raster"
	. "github.com/smartystreets/goconvey/convey"
)

func year(t *testing.T, b3, b4, b5, b6 []float64) *raster.Image {
	t.Helper()
	g := raster.Grid{OriginX: 0, OriginY: 30, PixelWidth: 30, PixelHeight: 30, Width: len(b3), Height: 1}
	mk := func(name string, values []float64) *raster.Band {
		b := raster.NewBand(name, len(values))
		for i, v := range values {
			if !math.IsNaN(v) {
				b.Set(i, v)
			}
		}
		return b
	}
	img, err := raster.NewImage("y", time.Time{}, g, mk("B3", b3), mk("B4", b4), mk("B5", b5), mk("B6", b6))
	if err != nil {
		t.Fatalf("image: %v", err)
	}
	return img
}

func TestCompute(t *testing.T) {
	Convey("Given a scene with green, red, NIR and SWIR bands", t, func() {
		nan := math.NaN()
		img := year(t,
			[]float64{200, 100, 0},
			[]float64{100, 300, 0},
			[]float64{300, 100, 0},
			[]float64{100, 300, nan},
		)

		Convey("Then NDVI is (B5-B4)/(B5+B4)", func() {
			b, err := indices.Compute(indices.NDVI, img)
			So(err, ShouldBeNil)
			So(b.Data[0], ShouldAlmostEqual, 0.5)
			So(b.Data[1], ShouldAlmostEqual, -0.5)
		})

		Convey("Then a zero denominator is no-data", func() {
			b, _ := indices.Compute(indices.NDVI, img)
			So(b.Valid[2], ShouldBeFalse)
		})

		Convey("Then NDWI is (B3-B5)/(B3+B5)", func() {
			b, _ := indices.Compute(indices.NDWI, img)
			So(b.Data[0], ShouldAlmostEqual, -0.2)
		})

		Convey("Then NDBI is (B6-B5)/(B6+B5) and no-data propagates", func() {
			b, _ := indices.Compute(indices.NDBI, img)
			So(b.Data[1], ShouldAlmostEqual, 0.5)
			So(b.Valid[2], ShouldBeFalse)
		})

		Convey("Then SAVI applies the soil factor", func() {
			b, _ := indices.Compute(indices.SAVI, img)
			So(b.Data[0], ShouldAlmostEqual, 200/400.5*1.5)
			So(b.Data[2], ShouldEqual, 0)
		})

		Convey("Then a missing band is reported", func() {
			sel, _ := img.Select("B3")
			_, err := indices.Compute(indices.NDVI, sel)
			So(errors.Is(err, raster.ErrUnknownBand), ShouldBeTrue)
		})
	})

	Convey("Given index names", t, func() {
		idx, err := indices.Parse(" NDVI ")
		So(err, ShouldBeNil)
		So(idx, ShouldEqual, indices.NDVI)
		_, err = indices.Parse("evi")
		So(errors.Is(err, indices.ErrUnknownIndex), ShouldBeTrue)
	})
}

func TestDetect(t *testing.T) {
	Convey("Given the same index for two years", t, func() {
		y1 := raster.NewBand("ndvi", 4)
		y2 := raster.NewBand("ndvi", 4)
		for i, v := range []float64{0.6, 0.2, 0.3} {
			y1.Set(i, v)
		}
		for i, v := range []float64{0.1, 0.4, 0.3, 0.5} {
			y2.Set(i, v)
		}

		Convey("When detecting change at threshold zero", func() {
			c, err := indices.Detect(y1, y2, 0)
			So(err, ShouldBeNil)

			Convey("Then the difference is year1 minus year2", func() {
				So(c.Diff.Data[0], ShouldAlmostEqual, 0.5)
				So(c.Diff.Data[1], ShouldAlmostEqual, -0.2)
			})

			Convey("And the mask marks strictly positive differences", func() {
				So(c.Mask.Data[:3], ShouldResemble, []float64{1, 0, 0})
				So(c.Mask.Valid, ShouldResemble, []bool{true, true, true, false})
			})
		})

		Convey("When the shapes differ", func() {
			_, err := indices.Detect(y1, raster.NewBand("ndvi", 2), 0)
			So(errors.Is(err, raster.ErrShape), ShouldBeTrue)
		})
	})
}
