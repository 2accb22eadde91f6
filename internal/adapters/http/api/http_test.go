package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/geocomp/internal/adapters/http/api"
	"github.com/okian/geocomp/internal/domain/export"
	"github.com/okian/geocomp/internal/domain/region"
	"github.com/okian/geocomp/internal/domain/types"
)

// Mock implementations for testing
type mockDeps struct {
	exportErr error
	received  []types.ExportRequest
	jobs      map[string]types.Job
	listed    struct {
		status string
		limit  int
	}
}

func (m *mockDeps) Export(_ context.Context, req types.ExportRequest) (export.JobHandle, error) {
	if m.exportErr != nil {
		return export.JobHandle{}, m.exportErr
	}
	m.received = append(m.received, req)
	return export.JobHandle{ID: "job-1", Status: "queued", Location: "s3://exports/Mns/L8_B1_2022.tif"}, nil
}

func (m *mockDeps) Job(_ context.Context, id string) (types.Job, error) {
	j, ok := m.jobs[id]
	if !ok {
		return types.Job{}, fmt.Errorf("get %s: %w", id, export.ErrNotFound)
	}
	return j, nil
}

func (m *mockDeps) Jobs(_ context.Context, status string, limit int) ([]types.Job, error) {
	m.listed.status, m.listed.limit = status, limit
	out := []types.Job{}
	for _, j := range m.jobs {
		if status == "" || j.Status == status {
			out = append(out, j)
		}
	}
	return out, nil
}

type mockStats struct{}

func (mockStats) GetStats() map[string]interface{} {
	return map[string]interface{}{"started": true, "queueLength": 0}
}

func newMux(deps *mockDeps) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps, mockStats{}).Register(context.Background(), mux)
	return mux
}

const mnsBody = `{
	"archive": "LANDSAT/LC08/C01/T1_SR",
	"start": "2022-01-01",
	"end": "2023-01-01",
	"region": "muns_city",
	"description": "L8_B1_2022",
	"folder": "Mns",
	"bands": ["B1"],
	"scale": 30,
	"max_pixels": 10000000000000
}`

func TestExportsHandler(t *testing.T) {
	Convey("Given an API server", t, func() {
		deps := &mockDeps{}
		mux := newMux(deps)

		post := func(body string) *httptest.ResponseRecorder {
			req := httptest.NewRequest(http.MethodPost, "/v1/exports", strings.NewReader(body))
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			return w
		}

		Convey("When a valid export is posted", func() {
			w := post(mnsBody)

			Convey("Then it is accepted without waiting for the job", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				var h export.JobHandle
				So(json.Unmarshal(w.Body.Bytes(), &h), ShouldBeNil)
				So(h.ID, ShouldEqual, "job-1")
				So(h.Status, ShouldEqual, "queued")
			})

			Convey("And the request reaches the service intact", func() {
				So(len(deps.received), ShouldEqual, 1)
				got := deps.received[0]
				So(got.Composite.Region, ShouldEqual, "muns_city")
				So(got.Composite.Start.Equal(time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)), ShouldBeTrue)
				So(got.Bands, ShouldResemble, []string{"B1"})
				So(got.MaxPixels, ShouldEqual, int64(1e13))
			})
		})

		Convey("When the body is not JSON", func() {
			w := post("{")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(len(deps.received), ShouldEqual, 0)
		})

		Convey("When a date is malformed", func() {
			w := post(strings.Replace(mnsBody, "2022-01-01", "01/01/2022", 1))
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(w.Body.String(), ShouldContainSubstring, "invalid start")
		})

		Convey("When the service reports errors", func() {
			cases := []struct {
				err  error
				code int
				kind string
			}{
				{fmt.Errorf("load: %w", region.ErrAssetNotFound), http.StatusNotFound, "not_found"},
				{fmt.Errorf("%w: 1e14 pixels", export.ErrTooManyPixels), http.StatusUnprocessableEntity, "too_many_pixels"},
				{export.ErrBackpressure, http.StatusTooManyRequests, "backpressure"},
				{fmt.Errorf("%w: scale", export.ErrInvalidParams), http.StatusBadRequest, "bad_request"},
				{errors.New("disk on fire"), http.StatusInternalServerError, "internal_error"},
			}
			for _, c := range cases {
				deps.exportErr = c.err
				w := post(mnsBody)
				So(w.Code, ShouldEqual, c.code)
				So(w.Body.String(), ShouldContainSubstring, `"code":"`+c.kind+`"`)
			}
		})

		Convey("When the method is wrong", func() {
			req := httptest.NewRequest(http.MethodGet, "/v1/exports", http.NoBody)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestJobsHandler(t *testing.T) {
	Convey("Given an API server with two jobs", t, func() {
		deps := &mockDeps{jobs: map[string]types.Job{
			"a": {ID: "a", Status: "completed", Location: "s3://exports/Mns/a.tif"},
			"b": {ID: "b", Status: "failed", Error: "boom"},
		}}
		mux := newMux(deps)

		get := func(path string) *httptest.ResponseRecorder {
			req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			return w
		}

		Convey("When one job is requested", func() {
			w := get("/v1/jobs/a")
			So(w.Code, ShouldEqual, http.StatusOK)
			var j types.Job
			So(json.Unmarshal(w.Body.Bytes(), &j), ShouldBeNil)
			So(j.Location, ShouldEqual, "s3://exports/Mns/a.tif")
		})

		Convey("When an unknown job is requested", func() {
			So(get("/v1/jobs/zzz").Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When the id is missing", func() {
			So(get("/v1/jobs/").Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When jobs are listed by status", func() {
			w := get("/v1/jobs?status=failed&limit=5")
			So(w.Code, ShouldEqual, http.StatusOK)
			var jobs []types.Job
			So(json.Unmarshal(w.Body.Bytes(), &jobs), ShouldBeNil)
			So(len(jobs), ShouldEqual, 1)
			So(deps.listed.status, ShouldEqual, "failed")
			So(deps.listed.limit, ShouldEqual, 5)
		})

		Convey("When the filter is invalid", func() {
			So(get("/v1/jobs?status=lost").Code, ShouldEqual, http.StatusBadRequest)
			So(get("/v1/jobs?limit=0").Code, ShouldEqual, http.StatusBadRequest)
			So(get("/v1/jobs?limit=abc").Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestHealthAndStats(t *testing.T) {
	Convey("Given an API server", t, func() {
		mux := newMux(&mockDeps{})

		Convey("Then /healthz answers JSON by default", func() {
			req := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"status":"ok"`)
		})

		Convey("And /healthz serves metrics to scrapers", func() {
			req := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)
			req.Header.Set("Accept", "text/plain")
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "geocomp_")
		})

		Convey("And /stats returns the service statistics", func() {
			req := httptest.NewRequest(http.MethodGet, "/stats", http.NoBody)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			So(w.Code, ShouldEqual, http.StatusOK)
			var stats map[string]interface{}
			So(json.Unmarshal(w.Body.Bytes(), &stats), ShouldBeNil)
			So(stats["started"], ShouldEqual, true)
			So(stats, ShouldContainKey, "uptime_seconds")
		})

		Convey("And /stats refuses writes", func() {
			req := httptest.NewRequest(http.MethodPost, "/stats", http.NoBody)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestKind(t *testing.T) {
	Convey("Given a wrapped kind error", t, func() {
		cause := errors.New("bad json")
		err := api.WrapKind("api.op", api.ErrBadRequest, cause)

		Convey("Then both the kind and the cause are reachable", func() {
			So(err.Error(), ShouldEqual, "api.op: bad json")
			So(errors.Is(err, api.ErrBadRequest), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
		})

		Convey("And a bare kind names its sentinel", func() {
			So(api.NewKind("api.op", api.ErrNotFound).Error(), ShouldEqual, "api.op: not found")
		})
	})
}
