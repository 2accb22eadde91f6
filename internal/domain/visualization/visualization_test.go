package visualization_test

import (
	"bytes"
	"errors"
	"image/color"
	"image/png"
	"math"
	"testing"
	"time"

	"github.com/okian/geocomp/internal/domain/raster"
	"github.com/okian/geocomp/internal/domain/visualization"
	. "github.com/smartystreets/goconvey/convey"
)

func composite(t *testing.T) *raster.Image {
	t.Helper()
	g := raster.Grid{OriginX: 0, OriginY: 30, PixelWidth: 30, PixelHeight: 30, Width: 3, Height: 1}
	mk := func(name string, values ...float64) *raster.Band {
		b := raster.NewBand(name, len(values))
		for i, v := range values {
			if !math.IsNaN(v) {
				b.Set(i, v)
			}
		}
		return b
	}
	img, err := raster.NewImage("mean", time.Time{}, g,
		mk("B1", 0, 3000, 1500),
		mk("B2", 3000, 0, math.NaN()),
		mk("B3", -10, 9000, 750),
		mk("B4", 1, 1, 1),
	)
	if err != nil {
		t.Fatalf("image: %v", err)
	}
	return img
}

func TestStretch(t *testing.T) {
	Convey("Given the Landsat 8 preview parameters", t, func() {
		vis := visualization.Landsat8Preview()

		Convey("Then values are stretched, clamped and gamma corrected", func() {
			So(vis.Stretch(0), ShouldEqual, 0)
			So(vis.Stretch(3000), ShouldEqual, 1)
			So(vis.Stretch(-5), ShouldEqual, 0)
			So(vis.Stretch(6000), ShouldEqual, 1)
			So(vis.Stretch(1500), ShouldAlmostEqual, math.Pow(0.5, 1/1.4))
		})

		Convey("Then gamma 1 is linear", func() {
			vis.Gamma = 1
			So(vis.Stretch(750), ShouldAlmostEqual, 0.25)
		})
	})
}

func TestRender(t *testing.T) {
	Convey("Given a composite with a no-data pixel", t, func() {
		img := composite(t)

		Convey("When rendering seven bands", func() {
			m, err := visualization.Render(img, visualization.VisParams{Bands: []string{"B1", "B2", "B3", "B4", "B5", "B6", "B7"}, Max: 3000, Gamma: 1})

			Convey("Then only the first three are used as RGB", func() {
				So(err, ShouldBeNil)
				So(m.NRGBAAt(0, 0), ShouldResemble, color.NRGBA{R: 0, G: 255, B: 0, A: 255})
				So(m.NRGBAAt(1, 0), ShouldResemble, color.NRGBA{R: 255, G: 0, B: 255, A: 255})
			})

			Convey("And a pixel missing in any channel is transparent", func() {
				So(m.NRGBAAt(2, 0).A, ShouldEqual, 0)
			})
		})

		Convey("When rendering one band", func() {
			m, err := visualization.Render(img, visualization.VisParams{Bands: []string{"B1"}, Max: 3000, Gamma: 1})
			So(err, ShouldBeNil)
			So(m.NRGBAAt(2, 0), ShouldResemble, color.NRGBA{R: 128, G: 128, B: 128, A: 255})
		})

		Convey("When rendering two bands", func() {
			_, err := visualization.Render(img, visualization.VisParams{Bands: []string{"B1", "B2"}, Max: 1})
			So(errors.Is(err, visualization.ErrBandCount), ShouldBeTrue)
		})

		Convey("When the range is empty", func() {
			_, err := visualization.Render(img, visualization.VisParams{Bands: []string{"B1"}, Min: 5, Max: 5})
			So(errors.Is(err, visualization.ErrInvalidRange), ShouldBeTrue)
		})

		Convey("When a band is missing", func() {
			_, err := visualization.Render(img, visualization.VisParams{Bands: []string{"B9"}, Max: 1})
			So(errors.Is(err, raster.ErrUnknownBand), ShouldBeTrue)
		})

		Convey("Then the PNG encoding decodes to the same size", func() {
			m, _ := visualization.Render(img, visualization.Landsat8Preview())
			var buf bytes.Buffer
			So(visualization.WritePNG(&buf, m), ShouldBeNil)
			decoded, err := png.Decode(&buf)
			So(err, ShouldBeNil)
			So(decoded.Bounds().Dx(), ShouldEqual, 3)
		})
	})
}
