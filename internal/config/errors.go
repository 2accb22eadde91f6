package config

import "errors"

// Sentinel errors returned by Load, LoadFile and Validate.
var (
	ErrInvalidConfig = errors.New("invalid config")
	ErrLoadConfig    = errors.New("load config failed")
)
