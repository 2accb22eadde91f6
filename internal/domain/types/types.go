// Package types contains the request and response payloads of the HTTP API.
package types

import (
	"time"

	"github.com/okian/geocomp/internal/domain/composite"
	"github.com/okian/geocomp/internal/domain/model"
)

// ExportRequest submits one export of a composite.
type ExportRequest struct {
	Composite   composite.Request `json:"composite"`
	Description string            `json:"description"`
	Folder      string            `json:"folder"`
	Bands       []string          `json:"bands"`
	Scale       float64           `json:"scale"`
	MaxPixels   int64             `json:"max_pixels,omitempty"`
	CRS         string            `json:"crs,omitempty"`
}

// Job is the JSON view of an export job.
type Job struct {
	ID              string     `json:"id"`
	Status          string     `json:"status"`
	Description     string     `json:"description"`
	Folder          string     `json:"folder"`
	Bands           []string   `json:"bands"`
	Scale           float64    `json:"scale"`
	MaxPixels       int64      `json:"max_pixels"`
	Region          string     `json:"region,omitempty"`
	Location        string     `json:"location"`
	Error           string     `json:"error,omitempty"`
	EstimatedPixels int64      `json:"estimated_pixels"`
	Bytes           int64      `json:"bytes,omitempty"`
	Submitted       time.Time  `json:"submitted"`
	Started         *time.Time `json:"started,omitempty"`
	Finished        *time.Time `json:"finished,omitempty"`
}

// FromJob converts a job to its JSON view.
func FromJob(j *model.Job) Job {
	out := Job{
		ID:              j.ID,
		Status:          string(j.Status),
		Description:     j.Params.Description,
		Folder:          j.Params.Folder,
		Bands:           append([]string(nil), j.Params.Bands...),
		Scale:           j.Params.Scale,
		MaxPixels:       j.Params.MaxPixels,
		Location:        j.Location,
		Error:           j.Error,
		EstimatedPixels: j.EstimatedPixels,
		Bytes:           j.Bytes,
		Submitted:       j.Submitted,
	}
	if j.Params.Region != nil {
		out.Region = j.Params.Region.ID()
	}
	if !j.Started.IsZero() {
		t := j.Started
		out.Started = &t
	}
	if !j.Finished.IsZero() {
		t := j.Finished
		out.Finished = &t
	}
	return out
}
