// Package repository stores export jobs.
package repository

import (
	"context"

	"github.com/okian/geocomp/internal/domain/model"
)

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Status model.JobStatus
	// Limit caps the number of jobs returned, newest first.
	Limit int
}

// Store provides read/write access to export jobs.
type Store interface {
	// Create records a new job. Returns ErrDuplicate when the id exists.
	Create(ctx context.Context, j *model.Job) error

	// Get returns a copy of the job. Returns ErrNotFound if the id is unknown.
	Get(ctx context.Context, id string) (*model.Job, error)

	// Update applies fn to the stored job under the store lock and returns a copy of the result.
	Update(ctx context.Context, id string, fn func(*model.Job) error) (*model.Job, error)

	// List returns copies of matching jobs, newest first.
	List(ctx context.Context, f Filter) ([]*model.Job, error)

	// CountByStatus returns the number of jobs per status.
	CountByStatus(ctx context.Context) map[model.JobStatus]int

	// Count returns the number of jobs tracked.
	Count(ctx context.Context) int
}
