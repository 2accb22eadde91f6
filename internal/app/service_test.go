package service_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/paulmach/orb"

	service "github.com/okian/geocomp/internal/app"
	"github.com/okian/geocomp/internal/adapters/objectstore"
	"github.com/okian/geocomp/internal/domain/export"
	"github.com/okian/geocomp/internal/domain/raster"
	"github.com/okian/geocomp/internal/domain/region"
	"github.com/okian/geocomp/pkg/logger"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

// recordingEncoder keeps every image it was asked to write.
type recordingEncoder struct {
	mu     sync.Mutex
	images []*raster.Image
}

func (e *recordingEncoder) Write(path string, img *raster.Image) error {
	e.mu.Lock()
	e.images = append(e.images, img)
	e.mu.Unlock()
	return os.WriteFile(path, []byte(img.ID), 0o600)
}

func (e *recordingEncoder) written() []*raster.Image {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*raster.Image(nil), e.images...)
}

// blockingSource renders a single band once release is closed.
type blockingSource struct {
	release chan struct{}
}

func (s blockingSource) Render(ctx context.Context, g raster.Grid) (*raster.Image, error) {
	select {
	case <-s.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	b := raster.NewBand("B1", g.Len())
	return raster.NewImage("blocked", time.Time{}, g, b)
}

func square(t *testing.T, id string, size float64) *region.Region {
	t.Helper()
	r, err := region.New(id, orb.MultiPolygon{{{{0, 0}, {size, 0}, {size, size}, {0, size}, {0, 0}}}})
	if err != nil {
		t.Fatalf("region: %v", err)
	}
	return r
}

func newService(t *testing.T, opts ...service.Option) *service.Service {
	t.Helper()
	base := []service.Option{
		service.WithSink(objectstore.NewDirSink(t.TempDir())),
		service.WithEncoder(&recordingEncoder{}),
		service.WithStagingDir(t.TempDir()),
	}
	return service.New(append(base, opts...)...)
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then it should have sensible defaults", func() {
			So(svc, ShouldNotBeNil)
			stats := svc.GetStats()
			So(stats["started"], ShouldEqual, false)
			So(stats["defaultMaxPixels"], ShouldEqual, export.DefaultMaxPixels)
		})

		Convey("And it refuses to start without a sink", func() {
			So(errors.Is(svc.Start(context.Background()), service.ErrNoSink), ShouldBeTrue)
		})
	})

	Convey("Given a new service with custom options", t, func() {
		svc := newService(t,
			service.WithWorkerCount(8),
			service.WithQueueSize(50),
			service.WithDefaultMaxPixels(1e6),
		)

		Convey("Then it should report them", func() {
			stats := svc.GetStats()
			So(stats["workerCount"], ShouldEqual, 8)
			So(stats["queueSize"], ShouldEqual, 50)
			So(stats["defaultMaxPixels"], ShouldEqual, int64(1e6))
		})
	})
}

func TestService_StartStop(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := newService(t)
		defer svc.Stop()

		Convey("When starting the service", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			err := svc.Start(ctx)

			Convey("Then it should start successfully", func() {
				So(err, ShouldBeNil)
				So(svc.GetStats()["started"], ShouldEqual, true)
				So(svc.GetStats()["totalJobs"], ShouldEqual, 0)
			})

			Convey("And starting twice is a no-op", func() {
				So(svc.Start(ctx), ShouldBeNil)
			})

			Convey("When stopping the service", func() {
				svc.Stop()

				Convey("Then it should be marked as stopped", func() {
					So(svc.GetStats()["started"], ShouldEqual, false)
				})

				Convey("And submissions are refused", func() {
					_, err := svc.Submit(ctx, blockingSource{}, export.Params{})
					So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
				})
			})
		})
	})
}

func TestService_Submit(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		svc := newService(t, service.WithWorkerCount(1), service.WithQueueSize(1))
		So(svc.Start(ctx), ShouldBeNil)
		release := make(chan struct{})
		var once sync.Once
		unblock := func() { once.Do(func() { close(release) }) }
		Reset(func() {
			unblock()
			svc.Stop()
		})

		params := export.Params{
			Description: "L8_B1_2022",
			Folder:      "Mns",
			Bands:       []string{"B1"},
			Scale:       30,
			Region:      square(t, "muns_city", 300),
		}

		Convey("When the parameters are invalid", func() {
			bad := params
			bad.Description = "has spaces"
			_, err := svc.Submit(ctx, blockingSource{release: release}, bad)

			Convey("Then nothing is queued", func() {
				So(errors.Is(err, export.ErrInvalidParams), ShouldBeTrue)
				So(svc.GetStats()["totalJobs"], ShouldEqual, 0)
			})
		})

		Convey("When the export exceeds the pixel ceiling", func() {
			big := params
			big.MaxPixels = 99
			_, err := svc.Submit(ctx, blockingSource{release: release}, big)

			Convey("Then it is rejected instead of truncated", func() {
				So(errors.Is(err, export.ErrTooManyPixels), ShouldBeTrue)
				So(svc.GetStats()["totalJobs"], ShouldEqual, 0)
			})
		})

		Convey("When the grid is too large to count", func() {
			for _, scale := range []float64{1, 1e-300} {
				huge := params
				huge.Region = square(t, "huge", 1<<32)
				huge.Scale = scale
				huge.MaxPixels = 1e13
				_, err := svc.Submit(ctx, blockingSource{release: release}, huge)

				So(errors.Is(err, export.ErrTooManyPixels), ShouldBeTrue)
			}

			Convey("Then no job is recorded", func() {
				So(svc.GetStats()["totalJobs"], ShouldEqual, 0)
			})
		})

		Convey("When no ceiling is given", func() {
			h, err := svc.Submit(ctx, blockingSource{release: release}, params)
			So(err, ShouldBeNil)

			Convey("Then the default applies and the job is queued", func() {
				j, err := svc.Job(ctx, h.ID)
				So(err, ShouldBeNil)
				So(j.MaxPixels, ShouldEqual, export.DefaultMaxPixels)
				So(j.EstimatedPixels, ShouldEqual, 100)
				So(h.Location, ShouldEndWith, "L8_B1_2022.tif")
			})
		})

		Convey("When more jobs arrive than the queue holds", func() {
			var rejected int
			for i := 0; i < 5; i++ {
				_, err := svc.Submit(ctx, blockingSource{release: release}, params)
				if errors.Is(err, export.ErrBackpressure) {
					rejected++
				}
			}

			Convey("Then the excess is refused with backpressure and recorded as failed", func() {
				So(rejected, ShouldBeGreaterThanOrEqualTo, 2)
				failed, err := svc.Jobs(ctx, "failed", 0)
				So(err, ShouldBeNil)
				So(len(failed), ShouldEqual, rejected)
			})
		})

		Convey("When an unknown job is requested", func() {
			_, err := svc.Job(ctx, "nope")
			So(errors.Is(err, export.ErrNotFound), ShouldBeTrue)
		})
	})
}
