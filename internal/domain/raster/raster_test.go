package raster_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/okian/geocomp/internal/domain/raster"
	"github.com/paulmach/orb"
	. "github.com/smartystreets/goconvey/convey"
)

var grid2x2 = raster.Grid{OriginX: 0, OriginY: 60, PixelWidth: 30, PixelHeight: 30, Width: 2, Height: 2, CRS: "EPSG:32632"}

// band builds a band from values; NaN marks no-data.
func band(name string, values ...float64) *raster.Band {
	b := raster.NewBand(name, len(values))
	for i, v := range values {
		if !math.IsNaN(v) {
			b.Set(i, v)
		}
	}
	return b
}

func image(t *testing.T, id string, day int, bands ...*raster.Band) *raster.Image {
	t.Helper()
	img, err := raster.NewImage(id, time.Date(2022, 1, day, 0, 0, 0, 0, time.UTC), grid2x2, bands...)
	if err != nil {
		t.Fatalf("new image: %v", err)
	}
	return img
}

// memCollection serves pre-built images and counts opens.
func memCollection(images ...*raster.Image) (*raster.Collection, *int) {
	opens := 0
	refs := make([]raster.SceneRef, len(images))
	byID := map[string]*raster.Image{}
	for i, img := range images {
		refs[i] = raster.SceneRef{ID: img.ID, Acquired: img.Acquired}
		byID[img.ID] = img
	}
	open := func(_ context.Context, ref raster.SceneRef) (*raster.Image, error) {
		opens++
		return byID[ref.ID], nil
	}
	return raster.NewCollection([]string{"B1"}, refs, open), &opens
}

type box orb.Bound

func (b box) Contains(x, y float64) bool { return orb.Bound(b).Contains(orb.Point{x, y}) }

func TestGrid(t *testing.T) {
	Convey("Given a bound and a scale", t, func() {
		b := orb.Bound{Min: orb.Point{10, 10}, Max: orb.Point{95, 70}}

		Convey("When snapping a grid to it", func() {
			g, err := raster.GridFor(b, 30, "EPSG:32632")

			Convey("Then the grid covers the bound on scale multiples", func() {
				So(err, ShouldBeNil)
				So(g.OriginX, ShouldEqual, 0)
				So(g.OriginY, ShouldEqual, 90)
				So(g.Width, ShouldEqual, 4)
				So(g.Height, ShouldEqual, 3)
				So(g.Bound().Contains(b.Min), ShouldBeTrue)
				So(g.Bound().Contains(b.Max), ShouldBeTrue)
			})

			Convey("And pixel lookup round-trips through pixel centres", func() {
				x, y := g.Center(3, 2)
				i, ok := g.Locate(x, y)
				So(ok, ShouldBeTrue)
				So(i, ShouldEqual, 2*4+3)
				_, ok = g.Locate(-1, 50)
				So(ok, ShouldBeFalse)
			})

			Convey("And the geotransform round-trips", func() {
				back, err := raster.GridFromGeoTransform(g.GeoTransform(), g.Width, g.Height, g.CRS)
				So(err, ShouldBeNil)
				So(back, ShouldResemble, g)
			})
		})

		Convey("When the scale is not positive", func() {
			_, err := raster.GridFor(b, 0, "")
			So(errors.Is(err, raster.ErrInvalidGrid), ShouldBeTrue)
		})
	})

	Convey("Given a rotated geotransform", t, func() {
		_, err := raster.GridFromGeoTransform([6]float64{0, 30, 1, 0, 0, -30}, 2, 2, "")
		So(errors.Is(err, raster.ErrInvalidGrid), ShouldBeTrue)
	})
}

func TestImage(t *testing.T) {
	Convey("Given an image with two bands", t, func() {
		img := image(t, "a", 1, band("B1", 1, 2, 3, 4), band("B2", 5, 6, 7, math.NaN()))

		Convey("Then select keeps only the requested bands in order", func() {
			sel, err := img.Select("B2")
			So(err, ShouldBeNil)
			So(sel.BandNames(), ShouldResemble, []string{"B2"})
			_, err = img.Select("B9")
			So(errors.Is(err, raster.ErrUnknownBand), ShouldBeTrue)
		})

		Convey("And UpdateMask never mutates the input", func() {
			masked, err := img.UpdateMask([]bool{true, false, true, false})
			So(err, ShouldBeNil)
			b1, _ := masked.Band("B1")
			So(b1.Valid, ShouldResemble, []bool{true, false, true, false})
			orig, _ := img.Band("B1")
			So(orig.ValidCount(), ShouldEqual, 4)
		})

		Convey("And sampling honours no-data", func() {
			v, ok := img.Sample("B1", 45, 15)
			So(ok, ShouldBeTrue)
			So(v, ShouldEqual, 4)
			_, ok = img.Sample("B2", 45, 15)
			So(ok, ShouldBeFalse)
		})
	})

	Convey("Given mismatched shapes or duplicate names", t, func() {
		_, err := raster.NewImage("x", time.Time{}, grid2x2, band("B1", 1, 2))
		So(errors.Is(err, raster.ErrShape), ShouldBeTrue)
		_, err = raster.NewImage("x", time.Time{}, grid2x2, band("B1", 1, 2, 3, 4), band("B1", 1, 2, 3, 4))
		So(errors.Is(err, raster.ErrDuplicateBand), ShouldBeTrue)
	})
}

func TestCollection(t *testing.T) {
	Convey("Given a collection of three scenes", t, func() {
		a := image(t, "a", 1, band("B1", 1, 1, 1, 1))
		b := image(t, "b", 10, band("B1", 2, 2, 2, 2))
		c := image(t, "c", 20, band("B1", 3, 3, 3, 3))
		col, opens := memCollection(a, b, c)

		Convey("When filtering by date and mapping", func() {
			mapped := 0
			filtered := col.FilterDate(time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2022, 1, 20, 0, 0, 0, 0, time.UTC)).
				Map(func(img *raster.Image) (*raster.Image, error) {
					mapped++
					return img.UpdateMask([]bool{false, false, false, false})
				})

			Convey("Then nothing is opened until iteration", func() {
				So(*opens, ShouldEqual, 0)
				So(mapped, ShouldEqual, 0)
				So(filtered.Len(), ShouldEqual, 2)
			})

			Convey("And the interval is half open and masked images stay in the sequence", func() {
				var ids []string
				for img, err := range filtered.All(context.Background()) {
					So(err, ShouldBeNil)
					ids = append(ids, img.ID)
					b1, _ := img.Band("B1")
					So(b1.ValidCount(), ShouldEqual, 0)
				}
				So(ids, ShouldResemble, []string{"a", "b"})
			})

			Convey("And the sequence can be iterated again", func() {
				for range filtered.All(context.Background()) {
				}
				for range filtered.All(context.Background()) {
				}
				So(*opens, ShouldEqual, 4)
				So(mapped, ShouldEqual, 4)
			})
		})

		Convey("When the date range is inverted", func() {
			empty := col.FilterDate(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC))
			So(empty.Len(), ShouldEqual, 0)
		})

		Convey("When an open fails", func() {
			boom := errors.New("boom")
			failing := raster.NewCollection(nil, col.Refs(), func(context.Context, raster.SceneRef) (*raster.Image, error) {
				return nil, boom
			})
			n := 0
			var got error
			for _, err := range failing.All(context.Background()) {
				n++
				got = err
			}
			So(n, ShouldEqual, 1)
			So(errors.Is(got, boom), ShouldBeTrue)
		})
	})
}

func TestMean(t *testing.T) {
	Convey("Given observations with gaps", t, func() {
		nan := math.NaN()
		a := image(t, "a", 1, band("B1", 10, nan, 4, nan))
		b := image(t, "b", 2, band("B1", 20, 6, nan, nan))
		c := image(t, "c", 3, band("B1", 30, nan, 8, nan))
		col, _ := memCollection(a, b, c)

		Convey("When reducing by mean", func() {
			mean, err := raster.Mean(context.Background(), col, grid2x2)
			So(err, ShouldBeNil)
			b1, _ := mean.Band("B1")

			Convey("Then each pixel is the mean of its valid observations", func() {
				So(b1.Data[0], ShouldEqual, 20)
				So(b1.Data[1], ShouldEqual, 6)
				So(b1.Data[2], ShouldEqual, 6)
			})

			Convey("And pixels without observations are no-data", func() {
				So(b1.Valid, ShouldResemble, []bool{true, true, true, false})
			})

			Convey("And the order of the collection does not matter", func() {
				rev, _ := memCollection(c, a, b)
				other, err := raster.Mean(context.Background(), rev, grid2x2)
				So(err, ShouldBeNil)
				ob1, _ := other.Band("B1")
				So(cmp.Diff(b1.Data, ob1.Data), ShouldBeEmpty)
			})
		})

		Convey("When the collection is empty", func() {
			empty := col.FilterDate(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2031, 1, 1, 0, 0, 0, 0, time.UTC))
			mean, err := raster.Mean(context.Background(), empty, grid2x2)

			Convey("Then the composite keeps the schema and is entirely no-data", func() {
				So(err, ShouldBeNil)
				So(mean.BandNames(), ShouldResemble, []string{"B1"})
				b1, _ := mean.Band("B1")
				So(b1.ValidCount(), ShouldEqual, 0)
			})
		})

		Convey("When the target grid differs from the scene grid", func() {
			coarse := raster.Grid{OriginX: 0, OriginY: 60, PixelWidth: 60, PixelHeight: 60, Width: 1, Height: 1}
			mean, err := raster.Mean(context.Background(), col, coarse)

			Convey("Then scenes are sampled at the target pixel centres", func() {
				So(err, ShouldBeNil)
				b1, _ := mean.Band("B1")
				// Centre (30,30) falls in scene pixel (col 1,row 1): no-data everywhere.
				So(b1.Valid[0], ShouldBeFalse)
			})
		})
	})
}

func TestClip(t *testing.T) {
	Convey("Given a composite and a boundary covering the left column", t, func() {
		img := image(t, "m", 1, band("B1", 1, 2, 3, 4))
		left := box{Min: orb.Point{0, 0}, Max: orb.Point{30, 60}}

		Convey("When clipping", func() {
			once := raster.Clip(img, left)
			b1, _ := once.Band("B1")

			Convey("Then pixels outside become no-data", func() {
				So(b1.Valid, ShouldResemble, []bool{true, false, true, false})
			})

			Convey("And clipping again is idempotent", func() {
				twice := raster.Clip(once, left)
				b2, _ := twice.Band("B1")
				So(b2.Valid, ShouldResemble, b1.Valid)
				So(b2.Data, ShouldResemble, b1.Data)
			})
		})
	})
}

func TestDescribe(t *testing.T) {
	Convey("Given a band with valid and missing pixels", t, func() {
		img := image(t, "m", 1, band("B1", 1, 2, 3, math.NaN()), band("B2", math.NaN(), math.NaN(), math.NaN(), math.NaN()))
		s := raster.Describe(img)

		Convey("Then statistics cover valid pixels only", func() {
			So(s[0].Count, ShouldEqual, 3)
			So(s[0].Total, ShouldEqual, 4)
			So(s[0].Min, ShouldEqual, 1)
			So(s[0].Max, ShouldEqual, 3)
			So(s[0].Mean, ShouldEqual, 2)
			So(s[0].Median, ShouldEqual, 2)
		})

		Convey("And empty bands report NaN", func() {
			So(s[1].Count, ShouldEqual, 0)
			So(math.IsNaN(s[1].Mean), ShouldBeTrue)
		})
	})
}

func TestGridSideLimit(t *testing.T) {
	Convey("Given a bound 2^32 units wide", t, func() {
		b := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1 << 32, 1 << 32}}

		Convey("Then a grid wider than MaxGridSide is refused", func() {
			_, err := raster.GridFor(b, 1, "")
			So(errors.Is(err, raster.ErrInvalidGrid), ShouldBeTrue)
			So(errors.Is(err, raster.ErrGridTooLarge), ShouldBeTrue)
		})

		Convey("Then a scale that makes the span infinite is refused", func() {
			_, err := raster.GridFor(b, 1e-320, "")
			So(errors.Is(err, raster.ErrGridTooLarge), ShouldBeTrue)
		})

		Convey("And a hand-built oversized grid cannot be reduced", func() {
			g := raster.Grid{PixelWidth: 1, PixelHeight: 1, Width: 1 << 32, Height: 1 << 32}
			_, err := raster.Mean(context.Background(), raster.NewCollection(nil, nil, nil), g)
			So(errors.Is(err, raster.ErrGridTooLarge), ShouldBeTrue)
		})
	})
}
