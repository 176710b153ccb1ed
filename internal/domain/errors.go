package domain

import "errors"

var (
	ErrInvalidID     = errors.New("invalid id")
	ErrInvalidColumn = errors.New("invalid day column")
	ErrInvalidTopRow = errors.New("invalid top row offset")
	ErrInvalidHeight = errors.New("invalid card height")
	ErrInvalidColor  = errors.New("invalid card color")
	ErrInvalidCell   = errors.New("invalid grid cell")
)
