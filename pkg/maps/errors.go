package maps

import "errors"

// Map loading errors
var (
	ErrInvalidPackage    = errors.New("not a valid map package")
	ErrUnsupportedFormat = errors.New("unsupported map format")
	ErrInvalidBinary     = errors.New("invalid map binary data")
	ErrSizeMismatch      = errors.New("map size does not match binary data")
	ErrUnknownTileset    = errors.New("unknown tileset")
	ErrInvalidRange      = errors.New("invalid search range")
	ErrInvalidMetadata   = errors.New("invalid map metadata")
)
