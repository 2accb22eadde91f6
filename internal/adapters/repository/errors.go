package repository

import (
	"errors"

	"github.com/okian/geocomp/internal/domain/export"
)

// Sentinel kinds for job store errors.
var (
	// ErrNotFound also matches export.ErrNotFound.
	ErrNotFound     = export.ErrNotFound
	ErrDuplicate    = errors.New("job already exists")
	ErrInvalidLimit = errors.New("invalid job list limit")
)
