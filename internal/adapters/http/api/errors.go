package api

import (
	"errors"
	"net/http"

	"github.com/okian/geocomp/internal/domain/composite"
	"github.com/okian/geocomp/internal/domain/export"
	"github.com/okian/geocomp/internal/domain/region"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrNotFound     = errors.New("not found")
	ErrBackpressure = errors.New("backpressure")
)

// Kind tags an error with the operation that produced it and the sentinel
// that decides its status code.
type Kind struct {
	Op   string
	Kind error
	Err  error
}

// NewKind returns a Kind error with no underlying cause.
func NewKind(op string, kind error) error {
	return &Kind{Op: op, Kind: kind}
}

// WrapKind returns a Kind error carrying err.
func WrapKind(op string, kind, err error) error {
	if err == nil {
		return NewKind(op, kind)
	}
	return &Kind{Op: op, Kind: kind, Err: err}
}

func (k *Kind) Error() string {
	if k.Err == nil {
		return k.Op + ": " + k.Kind.Error()
	}
	return k.Op + ": " + k.Err.Error()
}

// Unwrap exposes both the kind and the cause to errors.Is.
func (k *Kind) Unwrap() []error {
	if k.Err == nil {
		return []error{k.Kind}
	}
	return []error{k.Kind, k.Err}
}

// statusFor maps domain sentinels to an HTTP status and an error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBackpressure), errors.Is(err, export.ErrBackpressure):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, export.ErrTooManyPixels):
		return http.StatusUnprocessableEntity, "too_many_pixels"
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, export.ErrInvalidParams),
		errors.Is(err, composite.ErrInvalidRequest),
		errors.Is(err, region.ErrInvalidGeometry):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, ErrNotFound),
		errors.Is(err, export.ErrNotFound),
		errors.Is(err, region.ErrAssetNotFound):
		return http.StatusNotFound, "not_found"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
