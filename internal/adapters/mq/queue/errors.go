package queue

import "errors"

var (
	// ErrFull is returned when the queue holds capacity jobs.
	ErrFull = errors.New("queue full")
	// ErrClosed is returned by Enqueue after Close.
	ErrClosed = errors.New("queue closed")
)
