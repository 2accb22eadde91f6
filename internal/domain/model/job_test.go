package model_test

import (
	"testing"

	model "github.com/okian/geocomp/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestJobStatus(t *testing.T) {
	convey.Convey("Given the job statuses", t, func() {
		convey.Convey("Then only completed and failed are terminal", func() {
			convey.So(model.JobQueued.Terminal(), convey.ShouldBeFalse)
			convey.So(model.JobRunning.Terminal(), convey.ShouldBeFalse)
			convey.So(model.JobCompleted.Terminal(), convey.ShouldBeTrue)
			convey.So(model.JobFailed.Terminal(), convey.ShouldBeTrue)
		})

		convey.Convey("Then the lifecycle order is stable", func() {
			convey.So(model.Statuses, convey.ShouldResemble, []model.JobStatus{"queued", "running", "completed", "failed"})
		})
	})

	convey.Convey("Given a job", t, func() {
		j := &model.Job{ID: "abc", Status: model.JobCompleted, Location: "s3://exports/Mns/L8_B1_2022.tif"}

		convey.Convey("Then its handle carries id, status and location", func() {
			h := j.Handle()
			convey.So(h.ID, convey.ShouldEqual, "abc")
			convey.So(h.Status, convey.ShouldEqual, "completed")
			convey.So(h.Location, convey.ShouldEqual, j.Location)
		})
	})
}
