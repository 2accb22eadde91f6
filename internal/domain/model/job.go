// Package model contains domain models passed between layers.
package model

import (
	"time"

	"github.com/okian/geocomp/internal/domain/export"
)

// JobStatus is the lifecycle state of an export job.
type JobStatus string

// Job statuses. A job moves queued -> running -> completed or failed.
const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Statuses lists every status in lifecycle order.
var Statuses = []JobStatus{JobQueued, JobRunning, JobCompleted, JobFailed}

// Terminal reports whether no further transition is possible.
func (s JobStatus) Terminal() bool { return s == JobCompleted || s == JobFailed }

// Job is one asynchronous export.
type Job struct {
	ID       string
	Status   JobStatus
	Params   export.Params
	Source   export.Source `json:"-"`
	Bucket   string
	Location string
	Error    string

	// EstimatedPixels is computed at submission.
	EstimatedPixels int64
	Bytes           int64

	Submitted time.Time
	Started   time.Time
	Finished  time.Time
}

// Handle returns the caller-facing view of the job.
func (j *Job) Handle() export.JobHandle {
	return export.JobHandle{ID: j.ID, Status: string(j.Status), Location: j.Location}
}
