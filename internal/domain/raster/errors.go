package raster

import "errors"

// Sentinel kinds for raster errors.
var (
	ErrUnknownBand   = errors.New("unknown band")
	ErrDuplicateBand = errors.New("duplicate band")
	ErrShape         = errors.New("band length does not match grid")
	ErrInvalidGrid   = errors.New("invalid grid")
	ErrGridTooLarge  = errors.New("grid too large")
)
