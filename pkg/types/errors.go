package types

import "errors"

// Domain errors for type validation
var (
	ErrMissingPath = errors.New("path is required")
	ErrInvalidRank = errors.New("rank must be >= 0")
)
