package composite

import (
	"errors"
	"fmt"

	"github.com/okian/geocomp/internal/domain/region"
)

// Sentinel kinds for composite errors.
var (
	// ErrArchiveNotFound also matches region.ErrAssetNotFound.
	ErrArchiveNotFound = fmt.Errorf("archive %w", region.ErrAssetNotFound)
	ErrInvalidRequest  = errors.New("invalid composite request")
)
