package export

import "errors"

// Sentinel kinds for export errors.
var (
	ErrInvalidParams = errors.New("invalid export parameters")
	ErrTooManyPixels = errors.New("export exceeds max pixels")
	ErrBackpressure  = errors.New("export queue is full")
	ErrNotFound      = errors.New("export job not found")
)
